package ports

import (
	"context"
	"time"

	"graphitti-backend/domain/versioning"
)

// ChangeFilter restricts change record queries. Only these fields are
// filterable; repositories must build queries from them rather than from
// caller-supplied strings.
type ChangeFilter struct {
	EntityID   string
	EntityType versioning.EntityType
	ChangeType versioning.ChangeType
	BatchID    string
	SessionID  string
	Since      *time.Time
	Until      *time.Time
	Limit      int
}

// ChangeRecordRepository persists the append-only change log
type ChangeRecordRepository interface {
	// Save appends a change record. Records are never updated or deleted
	// here; retention pruning is an external concern.
	Save(ctx context.Context, record *versioning.ChangeRecord) error

	// List returns change records matching the filter, newest first
	List(ctx context.Context, filter ChangeFilter) ([]*versioning.ChangeRecord, error)

	// CountSince returns the number of change records after the given time
	CountSince(ctx context.Context, since time.Time) (int, error)

	// CountDistinctSessionsSince returns how many distinct sessions produced
	// changes after the given time
	CountDistinctSessionsSince(ctx context.Context, since time.Time) (int, error)

	// DailyRollup refreshes and returns per-day change counts for the range
	DailyRollup(ctx context.Context, start, end time.Time) ([]versioning.DailyChangeCount, error)
}

// SnapshotRepository persists snapshot rows (blobs live in the SnapshotStore)
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot *versioning.Snapshot) error
	GetByID(ctx context.Context, id string) (*versioning.Snapshot, error)

	// GetLatest returns the most recently created snapshot of any kind, or
	// nil when no snapshots exist
	GetLatest(ctx context.Context) (*versioning.Snapshot, error)

	List(ctx context.Context, limit int) ([]*versioning.Snapshot, error)

	// DeleteOlderThan removes snapshots created before the cutoff, keeping
	// any whose kind is listed in keep. Returns the deleted rows' storage
	// locators so callers can delete the payloads too.
	DeleteOlderThan(ctx context.Context, cutoff time.Time, keep []versioning.SnapshotType) ([]string, error)

	Count(ctx context.Context) (int, error)
}

// IterationRepository persists iteration milestones
type IterationRepository interface {
	Save(ctx context.Context, iteration *versioning.Iteration) error
	GetByVersion(ctx context.Context, version string) (*versioning.Iteration, error)
	VersionExists(ctx context.Context, version string) (bool, error)

	// GetLatest returns the most recently created iteration, or nil
	GetLatest(ctx context.Context) (*versioning.Iteration, error)

	List(ctx context.Context, limit int) ([]*versioning.Iteration, error)

	// ListBetween returns iterations created within [start, end]
	ListBetween(ctx context.Context, start, end time.Time) ([]*versioning.Iteration, error)

	Count(ctx context.Context) (int, error)
}

// BatchRepository persists change batches
type BatchRepository interface {
	Save(ctx context.Context, batch *versioning.Batch) error
	GetByID(ctx context.Context, id string) (*versioning.Batch, error)

	// IncrementChangeCount atomically bumps the batch's change counter
	IncrementChangeCount(ctx context.Context, id string) error

	// SetStatus transitions the batch and stamps its completion time
	SetStatus(ctx context.Context, id string, status versioning.BatchStatus, completedAt time.Time) error

	List(ctx context.Context, limit int) ([]*versioning.Batch, error)

	// CountFailedSince counts batches that failed after the given time
	CountFailedSince(ctx context.Context, since time.Time) (int, error)
}

// EvolutionMetricsRepository persists derived evolution metric rows
type EvolutionMetricsRepository interface {
	Save(ctx context.Context, metrics *versioning.EvolutionMetrics) error
	GetByIterationID(ctx context.Context, iterationID string) (*versioning.EvolutionMetrics, error)
}
