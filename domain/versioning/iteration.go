package versioning

import (
	"time"
)

// Iteration is a named milestone referencing a snapshot plus derived quality
// metrics. Immutable once created.
type Iteration struct {
	ID                 string                 `json:"id"`
	Version            string                 `json:"version"`
	Name               string                 `json:"name"`
	Description        string                 `json:"description,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	SnapshotID         string                 `json:"snapshot_id,omitempty"`
	ParentIterationID  string                 `json:"parent_iteration_id,omitempty"`
	ChangesSinceParent int                    `json:"changes_since_parent"`
	Features           []string               `json:"features,omitempty"`
	PerformanceMetrics map[string]interface{} `json:"performance_metrics,omitempty"`
	QualityScores      map[string]interface{} `json:"quality_scores,omitempty"`
	StabilityRating    float64                `json:"stability_rating"`
	Tags               []string               `json:"tags,omitempty"`
}

// ClampRating clamps a rating to [0, 1]
func ClampRating(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// IterationComparison describes how the graph changed between two iterations
type IterationComparison struct {
	FromVersion    string             `json:"from_version"`
	ToVersion      string             `json:"to_version"`
	FromCreatedAt  time.Time          `json:"from_created_at"`
	ToCreatedAt    time.Time          `json:"to_created_at"`
	TotalChanges   int                `json:"total_changes"`
	ChangesByType  map[ChangeType]int `json:"changes_by_type"`
	StabilityDelta float64            `json:"stability_delta"`

	// Populated only for detailed comparisons
	Changes      []*ChangeRecord `json:"changes,omitempty"`
	SnapshotDiff *GraphDiff      `json:"snapshot_diff,omitempty"`
}
