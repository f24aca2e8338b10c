package scoring

import (
	"math"
	"time"

	"graphitti-backend/domain/versioning"
)

// StabilityInputs are the signals a stability strategy scores from
type StabilityInputs struct {
	ChangesSinceParent int
	TimeSinceParent    time.Duration
	DeletionRatio      float64 // deletions / total changes since parent
}

// StabilityStrategy scores how stable the graph has been leading up to an
// iteration. Scores are clamped to [0, 1].
type StabilityStrategy interface {
	Score(in StabilityInputs) float64
}

// QualityStrategy derives quality aggregates from a graph state
type QualityStrategy interface {
	Scores(state *versioning.GraphState) map[string]interface{}
}

// EvolutionStrategy computes derived evolution figures for an iteration
// relative to its parent's snapshot state
type EvolutionStrategy interface {
	Compute(current *versioning.GraphState, diff *versioning.GraphDiff) EvolutionFigures
}

// EvolutionFigures are the structural ratios persisted in evolution metrics
type EvolutionFigures struct {
	AvgConnectivity       float64
	GraphDensity          float64
	ClusteringCoefficient float64
	DiversityIndex        float64
	InnovationRate        float64
}

// DefaultStability penalizes churn: heavy recent change and high deletion
// ratios read as an unstable graph.
type DefaultStability struct {
	// ChurnCap is the change count treated as fully unstable
	ChurnCap int
}

func NewDefaultStability() *DefaultStability {
	return &DefaultStability{ChurnCap: 500}
}

func (s *DefaultStability) Score(in StabilityInputs) float64 {
	cap := s.ChurnCap
	if cap <= 0 {
		cap = 500
	}

	churn := float64(in.ChangesSinceParent) / float64(cap)
	if churn > 1 {
		churn = 1
	}

	score := 1.0 - 0.6*churn - 0.4*in.DeletionRatio
	return versioning.ClampRating(score)
}

// DefaultQuality derives simple aggregates from concept attributes: the
// average relevance score and the share of concepts above the high-quality
// bar. Missing attributes default to neutral values.
type DefaultQuality struct {
	HighQualityThreshold float64
}

func NewDefaultQuality() *DefaultQuality {
	return &DefaultQuality{HighQualityThreshold: 0.7}
}

func (q *DefaultQuality) Scores(state *versioning.GraphState) map[string]interface{} {
	if state == nil || len(state.Concepts) == 0 {
		return map[string]interface{}{
			"average_relevance":   0.5,
			"high_quality_ratio":  0.0,
			"scored_concept_rate": 0.0,
		}
	}

	var sum float64
	scored := 0
	highQuality := 0
	for _, c := range state.Concepts {
		relevance, ok := relevanceOf(c)
		if !ok {
			continue
		}
		scored++
		sum += relevance
		if relevance >= q.HighQualityThreshold {
			highQuality++
		}
	}

	avg := 0.5
	if scored > 0 {
		avg = sum / float64(scored)
	}

	return map[string]interface{}{
		"average_relevance":   avg,
		"high_quality_ratio":  float64(highQuality) / float64(len(state.Concepts)),
		"scored_concept_rate": float64(scored) / float64(len(state.Concepts)),
	}
}

func relevanceOf(c versioning.Concept) (float64, bool) {
	if c.Attributes == nil {
		return 0, false
	}
	switch v := c.Attributes["relevance"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// DefaultEvolution computes structural figures from the current state and
// the diff against the parent state
type DefaultEvolution struct{}

func NewDefaultEvolution() *DefaultEvolution {
	return &DefaultEvolution{}
}

func (e *DefaultEvolution) Compute(current *versioning.GraphState, diff *versioning.GraphDiff) EvolutionFigures {
	fig := EvolutionFigures{}
	if current == nil {
		return fig
	}

	n := len(current.Concepts)
	m := len(current.Relationships)

	if n > 0 {
		fig.AvgConnectivity = 2 * float64(m) / float64(n)
	}
	if n > 1 {
		fig.GraphDensity = float64(m) / (float64(n) * float64(n-1))
	}
	fig.ClusteringCoefficient = clusteringCoefficient(current)
	fig.DiversityIndex = diversityIndex(current)

	if diff != nil && n > 0 {
		added := len(diff.ConceptsToAdd) + len(diff.RelationshipsToAdd)
		fig.InnovationRate = versioning.ClampRating(float64(added) / float64(n+m))
	}

	return fig
}

// clusteringCoefficient approximates the global clustering coefficient as
// the ratio of closed triplets over all triplets on the undirected graph
func clusteringCoefficient(state *versioning.GraphState) float64 {
	adj := make(map[string]map[string]bool)
	link := func(a, b string) {
		if adj[a] == nil {
			adj[a] = make(map[string]bool)
		}
		adj[a][b] = true
	}
	for _, r := range state.Relationships {
		if r.SourceID == r.TargetID {
			continue
		}
		link(r.SourceID, r.TargetID)
		link(r.TargetID, r.SourceID)
	}

	var triplets, closed float64
	for _, neighbors := range adj {
		degree := len(neighbors)
		if degree < 2 {
			continue
		}
		triplets += float64(degree*(degree-1)) / 2

		keys := make([]string, 0, degree)
		for k := range neighbors {
			keys = append(keys, k)
		}
		for i := 0; i < len(keys); i++ {
			for j := i + 1; j < len(keys); j++ {
				if adj[keys[i]][keys[j]] {
					closed++
				}
			}
		}
	}

	if triplets == 0 {
		return 0
	}
	return closed / triplets
}

// diversityIndex is a normalized Shannon entropy over relationship types
func diversityIndex(state *versioning.GraphState) float64 {
	if len(state.Relationships) == 0 {
		return 0
	}

	counts := make(map[string]int)
	for _, r := range state.Relationships {
		counts[r.Type]++
	}
	if len(counts) <= 1 {
		return 0
	}

	total := float64(len(state.Relationships))
	var entropy float64
	for _, c := range counts {
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}

	return entropy / math.Log2(float64(len(counts)))
}
