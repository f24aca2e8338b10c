package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 { return &v }

func TestDefaultHealth_NeutralDefaults(t *testing.T) {
	h := NewDefaultHealth()

	report := h.Evaluate(HealthInputs{})

	assert.Equal(t, 0.5, report.Factors.Stability)
	assert.Equal(t, 0.5, report.Factors.Quality)
	assert.Equal(t, 0.0, report.Factors.Activity)
	assert.Equal(t, 1.0, report.Factors.InverseErrorRate)
	assert.Equal(t, 0.0, report.Factors.Density)
	assert.InDelta(t, 0.4, report.OverallScore, 1e-9)
	assert.Equal(t, "F", report.Grade)
}

func TestDefaultHealth_FactorsInRange(t *testing.T) {
	h := NewDefaultHealth()

	report := h.Evaluate(HealthInputs{
		ConceptCount:      10,
		RelationshipCount: 100000,
		ChangesLast24h:    5,
		ChangesLast7d:     1000000,
		RecentErrors:      100,
		AverageRelevance:  floatPtr(7.5), // out of range, must clamp
		LatestStability:   floatPtr(-3),
	})

	for _, f := range []float64{
		report.Factors.Stability,
		report.Factors.Quality,
		report.Factors.Activity,
		report.Factors.InverseErrorRate,
		report.Factors.Density,
		report.OverallScore,
	} {
		assert.GreaterOrEqual(t, f, 0.0)
		assert.LessOrEqual(t, f, 1.0)
	}
}

func TestDefaultHealth_EmptyGraphHasZeroDensity(t *testing.T) {
	h := NewDefaultHealth()

	report := h.Evaluate(HealthInputs{ConceptCount: 0, RelationshipCount: 50})
	assert.Equal(t, 0.0, report.Factors.Density)
}

func TestDefaultHealth_ErrorRateFloorsAtZero(t *testing.T) {
	h := NewDefaultHealth()

	report := h.Evaluate(HealthInputs{ChangesLast24h: 10, RecentErrors: 50})
	assert.Equal(t, 0.0, report.Factors.InverseErrorRate)

	// Errors with no changes at all still read as fully degraded.
	report = h.Evaluate(HealthInputs{ChangesLast24h: 0, RecentErrors: 3})
	assert.Equal(t, 0.0, report.Factors.InverseErrorRate)
}

func TestDefaultHealth_Grades(t *testing.T) {
	h := NewDefaultHealth()

	perfect := h.Evaluate(HealthInputs{
		ConceptCount:      100,
		RelationshipCount: 300,
		ChangesLast24h:    100,
		ChangesLast7d:     700,
		RecentErrors:      0,
		AverageRelevance:  floatPtr(1.0),
		LatestStability:   floatPtr(1.0),
	})
	assert.Equal(t, 1.0, perfect.OverallScore)
	assert.Equal(t, "A", perfect.Grade)
	assert.Empty(t, perfect.Recommendations)

	assert.Equal(t, "A", gradeFor(0.9))
	assert.Equal(t, "B", gradeFor(0.85))
	assert.Equal(t, "C", gradeFor(0.7))
	assert.Equal(t, "D", gradeFor(0.65))
	assert.Equal(t, "F", gradeFor(0.59))
}

func TestDefaultHealth_RecommendationsForWeakFactors(t *testing.T) {
	h := NewDefaultHealth()

	report := h.Evaluate(HealthInputs{
		ConceptCount:      100,
		RelationshipCount: 10, // sparse
		ChangesLast7d:     0,  // inactive
		LatestStability:   floatPtr(0.2),
	})

	assert.NotEmpty(t, report.Recommendations)
	assert.GreaterOrEqual(t, len(report.Recommendations), 3)
}
