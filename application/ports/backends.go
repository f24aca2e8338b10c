package ports

import (
	"context"
	"time"

	"graphitti-backend/domain/scoring"
	"graphitti-backend/domain/versioning"
)

// ExtractOptions controls which entities a graph extraction includes
type ExtractOptions struct {
	IncludeConcepts      bool
	IncludeRelationships bool

	// ConceptFilter restricts the extraction to concepts whose attributes
	// match every listed key/value pair. Empty means no filtering.
	ConceptFilter map[string]interface{}
}

// GraphRepository is the boundary to the graph storage engine. Extraction is
// an unguarded bulk read; under concurrent writers the result is a fuzzy
// point-in-time view, which snapshot callers accept.
type GraphRepository interface {
	// ExtractState reads the current graph state per the options
	ExtractState(ctx context.Context, opts ExtractOptions) (*versioning.GraphState, error)

	// Counts returns the current concept and relationship totals
	Counts(ctx context.Context) (concepts int, relationships int, err error)

	// UpsertConcept creates or replaces a concept
	UpsertConcept(ctx context.Context, concept versioning.Concept) error

	// DeleteConcept removes a concept by id
	DeleteConcept(ctx context.Context, id string) error

	// UpsertRelationship creates or replaces a relationship
	UpsertRelationship(ctx context.Context, relationship versioning.Relationship) error

	// DeleteRelationship removes a relationship by id
	DeleteRelationship(ctx context.Context, id string) error
}

// SnapshotStore is the opaque blob backend snapshot payloads live in.
// Implementations are pluggable: filesystem, object storage, in-memory.
type SnapshotStore interface {
	// Store persists a payload and returns its locator. The snapshot id is
	// part of the locator so snapshots of the same kind created in the same
	// second never share a payload.
	Store(ctx context.Context, id, version string, data []byte, kind versioning.SnapshotType) (locator string, err error)

	// Load fetches a payload by locator
	Load(ctx context.Context, locator string) ([]byte, error)

	// Size returns the stored payload size in bytes
	Size(ctx context.Context, locator string) (int64, error)

	// Delete removes a stored payload
	Delete(ctx context.Context, locator string) error
}

// AdvisoryLock serializes operations that must not interleave, such as
// graph-wide restores
type AdvisoryLock interface {
	// Acquire takes the named lock, returning a release function. Returns an
	// error if the lock is held by another owner.
	Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (release func(context.Context) error, err error)
}

// EventPublisher emits lifecycle events for external consumers
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, detail interface{}) error
}

// MetricsEmitter pushes health gauges to the metrics backend. Emission is
// best-effort; failures are logged, not propagated.
type MetricsEmitter interface {
	EmitHealth(ctx context.Context, report scoring.HealthReport) error
}
