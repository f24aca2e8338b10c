package scoring

import (
	"graphitti-backend/domain/versioning"
)

// HealthInputs are the raw counts and aggregates the health strategy reads.
// Nullable aggregates are modeled as pointers; nil means "no data".
type HealthInputs struct {
	ConceptCount       int
	RelationshipCount  int
	ChangesLast24h     int
	ChangesLast7d      int
	ActiveSessions     int
	SnapshotCount      int
	IterationCount     int
	RecentErrors       int
	AverageRelevance   *float64
	HighQualityRatio   *float64
	LatestStability    *float64
}

// HealthFactors are the five component scores, each in [0, 1]
type HealthFactors struct {
	Stability        float64 `json:"stability"`
	Quality          float64 `json:"quality"`
	Activity         float64 `json:"activity"`
	InverseErrorRate float64 `json:"inverse_error_rate"`
	Density          float64 `json:"density"`
}

// HealthReport is the composite health signal
type HealthReport struct {
	Factors         HealthFactors `json:"factors"`
	OverallScore    float64       `json:"overall_score"`
	Grade           string        `json:"grade"`
	Recommendations []string      `json:"recommendations"`
}

// HealthStrategy computes the composite health score from raw inputs.
// It is advisory: missing data defaults to neutral values, never errors.
type HealthStrategy interface {
	Evaluate(in HealthInputs) HealthReport
}

// DefaultHealth is the reference health formula: five clamped factors
// averaged without weights, graded on fixed thresholds.
type DefaultHealth struct {
	// WeeklyActivityCap is the 7-day change count that counts as fully active
	WeeklyActivityCap float64
	// DensityCap is the relationships-per-concept ratio treated as fully dense
	DensityCap float64
	// RecommendationFloor triggers a recommendation for factors below it
	RecommendationFloor float64
}

func NewDefaultHealth() *DefaultHealth {
	return &DefaultHealth{
		WeeklyActivityCap:   700,
		DensityCap:          3.0,
		RecommendationFloor: 0.6,
	}
}

func (h *DefaultHealth) Evaluate(in HealthInputs) HealthReport {
	factors := HealthFactors{
		Stability:        0.5,
		Quality:          0.5,
		Activity:         0,
		InverseErrorRate: 1,
		Density:          0,
	}

	if in.LatestStability != nil {
		factors.Stability = versioning.ClampRating(*in.LatestStability)
	}
	if in.AverageRelevance != nil {
		factors.Quality = versioning.ClampRating(*in.AverageRelevance)
	}

	if h.WeeklyActivityCap > 0 {
		factors.Activity = versioning.ClampRating(float64(in.ChangesLast7d) / h.WeeklyActivityCap)
	}

	if in.ChangesLast24h > 0 {
		rate := 1 - float64(in.RecentErrors)/float64(in.ChangesLast24h)
		if rate < 0 {
			rate = 0
		}
		factors.InverseErrorRate = versioning.ClampRating(rate)
	} else if in.RecentErrors > 0 {
		factors.InverseErrorRate = 0
	}

	if in.ConceptCount > 0 && h.DensityCap > 0 {
		ratio := float64(in.RelationshipCount) / float64(in.ConceptCount)
		factors.Density = versioning.ClampRating(ratio / h.DensityCap)
	}

	overall := (factors.Stability + factors.Quality + factors.Activity +
		factors.InverseErrorRate + factors.Density) / 5

	return HealthReport{
		Factors:         factors,
		OverallScore:    overall,
		Grade:           gradeFor(overall),
		Recommendations: h.recommendations(factors),
	}
}

func gradeFor(score float64) string {
	switch {
	case score >= 0.9:
		return "A"
	case score >= 0.8:
		return "B"
	case score >= 0.7:
		return "C"
	case score >= 0.6:
		return "D"
	default:
		return "F"
	}
}

func (h *DefaultHealth) recommendations(f HealthFactors) []string {
	recs := []string{}
	if f.Stability < h.RecommendationFloor {
		recs = append(recs, "Graph churn is high; consider creating an iteration checkpoint to establish a stable baseline.")
	}
	if f.Quality < h.RecommendationFloor {
		recs = append(recs, "Average concept relevance is low; review recent imports and prune low-quality concepts.")
	}
	if f.Activity < h.RecommendationFloor {
		recs = append(recs, "Change activity is low; verify that the analysis pipeline is feeding the graph.")
	}
	if f.InverseErrorRate < h.RecommendationFloor {
		recs = append(recs, "Recent error rate is elevated; inspect failed batches and storage backend health.")
	}
	if f.Density < h.RecommendationFloor {
		recs = append(recs, "Graph connectivity is sparse; run relationship discovery to link isolated concepts.")
	}
	return recs
}
