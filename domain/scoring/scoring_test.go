package scoring

import (
	"testing"
	"time"

	"graphitti-backend/domain/versioning"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStability_QuietGraphIsStable(t *testing.T) {
	s := NewDefaultStability()

	score := s.Score(StabilityInputs{ChangesSinceParent: 0, DeletionRatio: 0})
	assert.Equal(t, 1.0, score)
}

func TestDefaultStability_ChurnLowersScore(t *testing.T) {
	s := NewDefaultStability()

	low := s.Score(StabilityInputs{ChangesSinceParent: 50})
	high := s.Score(StabilityInputs{ChangesSinceParent: 450})
	assert.Greater(t, low, high)

	// Past the cap the churn penalty saturates.
	capped := s.Score(StabilityInputs{ChangesSinceParent: 10000})
	atCap := s.Score(StabilityInputs{ChangesSinceParent: 500})
	assert.Equal(t, atCap, capped)
}

func TestDefaultStability_AlwaysInRange(t *testing.T) {
	s := NewDefaultStability()

	inputs := []StabilityInputs{
		{ChangesSinceParent: 0, DeletionRatio: 0},
		{ChangesSinceParent: 1000000, DeletionRatio: 1},
		{ChangesSinceParent: 250, DeletionRatio: 0.5, TimeSinceParent: 48 * time.Hour},
	}
	for _, in := range inputs {
		score := s.Score(in)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestDefaultQuality_EmptyGraphDefaults(t *testing.T) {
	q := NewDefaultQuality()

	scores := q.Scores(&versioning.GraphState{})
	assert.Equal(t, 0.5, scores["average_relevance"])
	assert.Equal(t, 0.0, scores["high_quality_ratio"])
}

func TestDefaultQuality_Aggregates(t *testing.T) {
	q := NewDefaultQuality()

	state := &versioning.GraphState{Concepts: []versioning.Concept{
		{ID: "c1", Attributes: map[string]interface{}{"relevance": 0.9}},
		{ID: "c2", Attributes: map[string]interface{}{"relevance": 0.3}},
		{ID: "c3"}, // unscored
	}}

	scores := q.Scores(state)
	assert.InDelta(t, 0.6, scores["average_relevance"].(float64), 1e-9)
	assert.InDelta(t, 1.0/3.0, scores["high_quality_ratio"].(float64), 1e-9)
	assert.InDelta(t, 2.0/3.0, scores["scored_concept_rate"].(float64), 1e-9)
}

func TestDefaultEvolution_EmptyGraph(t *testing.T) {
	e := NewDefaultEvolution()

	fig := e.Compute(&versioning.GraphState{}, &versioning.GraphDiff{})
	assert.Zero(t, fig.AvgConnectivity)
	assert.Zero(t, fig.GraphDensity)
	assert.Zero(t, fig.ClusteringCoefficient)
	assert.Zero(t, fig.DiversityIndex)
	assert.Zero(t, fig.InnovationRate)
}

func TestDefaultEvolution_Figures(t *testing.T) {
	e := NewDefaultEvolution()

	// Triangle: fully clustered, one relationship type.
	state := &versioning.GraphState{
		Concepts: []versioning.Concept{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Relationships: []versioning.Relationship{
			{ID: "r1", SourceID: "a", TargetID: "b", Type: "related"},
			{ID: "r2", SourceID: "b", TargetID: "c", Type: "related"},
			{ID: "r3", SourceID: "c", TargetID: "a", Type: "related"},
		},
	}

	fig := e.Compute(state, &versioning.GraphDiff{
		ConceptsToAdd: []versioning.Concept{{ID: "a"}},
	})

	assert.InDelta(t, 2.0, fig.AvgConnectivity, 1e-9)
	assert.InDelta(t, 0.5, fig.GraphDensity, 1e-9)
	assert.InDelta(t, 1.0, fig.ClusteringCoefficient, 1e-9)
	// Single relationship type carries no diversity.
	assert.Zero(t, fig.DiversityIndex)
	assert.InDelta(t, 1.0/6.0, fig.InnovationRate, 1e-9)
}

func TestDefaultEvolution_DiversityMaxForUniformTypes(t *testing.T) {
	e := NewDefaultEvolution()

	state := &versioning.GraphState{
		Concepts: []versioning.Concept{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		Relationships: []versioning.Relationship{
			{ID: "r1", SourceID: "a", TargetID: "b", Type: "supports"},
			{ID: "r2", SourceID: "c", TargetID: "d", Type: "contradicts"},
		},
	}

	fig := e.Compute(state, nil)
	assert.InDelta(t, 1.0, fig.DiversityIndex, 1e-9)
}
