package versioning

import (
	"time"
)

// EvolutionMetrics is one derived row per iteration+snapshot pair describing
// how the graph changed since the parent iteration
type EvolutionMetrics struct {
	ID                    string    `json:"id"`
	IterationID           string    `json:"iteration_id"`
	SnapshotID            string    `json:"snapshot_id"`
	ComputedAt            time.Time `json:"computed_at"`
	ConceptsAdded         int       `json:"concepts_added"`
	ConceptsModified      int       `json:"concepts_modified"`
	ConceptsRemoved       int       `json:"concepts_removed"`
	RelationshipsAdded    int       `json:"relationships_added"`
	RelationshipsModified int       `json:"relationships_modified"`
	RelationshipsRemoved  int       `json:"relationships_removed"`
	AvgConnectivity       float64   `json:"avg_connectivity"`
	GraphDensity          float64   `json:"graph_density"`
	ClusteringCoefficient float64   `json:"clustering_coefficient"`
	DiversityIndex        float64   `json:"diversity_index"`
	InnovationRate        float64   `json:"innovation_rate"`
	StabilityScore        float64   `json:"stability_score"`
}

// DailyChangeCount is one row of the daily change rollup aggregate
type DailyChangeCount struct {
	Day           string             `json:"day"` // YYYY-MM-DD
	TotalChanges  int                `json:"total_changes"`
	ChangesByType map[ChangeType]int `json:"changes_by_type"`
}
