package versioning

import (
	"fmt"
	"time"

	"graphitti-backend/pkg/errors"
)

// SnapshotType represents the kind of snapshot taken
type SnapshotType string

const (
	SnapshotTypeFullGraph          SnapshotType = "full_graph"
	SnapshotTypeIncremental        SnapshotType = "incremental"
	SnapshotTypeConceptSubset      SnapshotType = "concept_subset"
	SnapshotTypeRelationshipSubset SnapshotType = "relationship_subset"
	SnapshotTypeDailyBackup        SnapshotType = "daily_backup"
	SnapshotTypeWeeklyBackup       SnapshotType = "weekly_backup"
	SnapshotTypeMilestone          SnapshotType = "milestone"
	SnapshotTypePreMigration       SnapshotType = "pre_migration"
)

var snapshotTypes = map[SnapshotType]bool{
	SnapshotTypeFullGraph:          true,
	SnapshotTypeIncremental:        true,
	SnapshotTypeConceptSubset:      true,
	SnapshotTypeRelationshipSubset: true,
	SnapshotTypeDailyBackup:        true,
	SnapshotTypeWeeklyBackup:       true,
	SnapshotTypeMilestone:          true,
	SnapshotTypePreMigration:       true,
}

// ParseSnapshotType validates a snapshot type string
func ParseSnapshotType(s string) (SnapshotType, error) {
	st := SnapshotType(s)
	if !snapshotTypes[st] {
		return "", errors.NewInvalidArgumentError("unknown snapshot type: " + s)
	}
	return st, nil
}

// Snapshot is a persisted, checksummed capture of graph state at a point in
// time. Immutable once created.
type Snapshot struct {
	ID                string                 `json:"id"`
	Type              SnapshotType           `json:"type"`
	Timestamp         time.Time              `json:"timestamp"`
	Version           string                 `json:"version"`
	Name              string                 `json:"name,omitempty"`
	Description       string                 `json:"description,omitempty"`
	ConceptCount      int                    `json:"concept_count"`
	RelationshipCount int                    `json:"relationship_count"`
	Checksum          string                 `json:"checksum"`
	SizeBytes         int64                  `json:"size_bytes"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	StorageLocator    string                 `json:"storage_locator"`
	ParentSnapshotID  string                 `json:"parent_snapshot_id,omitempty"`
	Tags              []string               `json:"tags,omitempty"`
}

// SnapshotVersion generates the human-readable version string for a snapshot
func SnapshotVersion(t SnapshotType, at time.Time) string {
	return fmt.Sprintf("%s_%s", t, at.UTC().Format("20060102T150405Z"))
}
