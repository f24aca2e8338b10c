package versioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stateWith(concepts []Concept, relationships []Relationship) *GraphState {
	return &GraphState{Concepts: concepts, Relationships: relationships}
}

func TestGraphState_ChecksumIgnoresOrder(t *testing.T) {
	a := stateWith(
		[]Concept{{ID: "c1", Name: "alpha"}, {ID: "c2", Name: "beta"}},
		[]Relationship{{ID: "r1", SourceID: "c1", TargetID: "c2", Type: "related"}},
	)
	b := stateWith(
		[]Concept{{ID: "c2", Name: "beta"}, {ID: "c1", Name: "alpha"}},
		[]Relationship{{ID: "r1", SourceID: "c1", TargetID: "c2", Type: "related"}},
	)

	checksumA, err := a.Checksum()
	require.NoError(t, err)
	checksumB, err := b.Checksum()
	require.NoError(t, err)

	assert.Equal(t, checksumA, checksumB)
}

func TestGraphState_SerializeRoundTrip(t *testing.T) {
	state := stateWith(
		[]Concept{{ID: "c1", Name: "alpha", Attributes: map[string]interface{}{"relevance": 0.8}}},
		[]Relationship{{ID: "r1", SourceID: "c1", TargetID: "c1", Type: "self"}},
	)

	data, err := state.Serialize()
	require.NoError(t, err)

	decoded, err := ParseGraphState(data)
	require.NoError(t, err)
	assert.Equal(t, state.Concepts, decoded.Concepts)
	assert.Equal(t, state.Relationships, decoded.Relationships)
}

func TestComputeDiff_SelfIsEmpty(t *testing.T) {
	state := stateWith(
		[]Concept{{ID: "c1"}, {ID: "c2"}},
		[]Relationship{{ID: "r1", SourceID: "c1", TargetID: "c2", Type: "related"}},
	)

	diff := ComputeDiff(state, state)
	assert.True(t, diff.IsEmpty())
	assert.Equal(t, 0, diff.TotalOperations())
}

func TestComputeDiff_AddUpdateRemove(t *testing.T) {
	current := stateWith(
		[]Concept{
			{ID: "keep", Name: "unchanged"},
			{ID: "mutate", Name: "old name"},
			{ID: "drop", Name: "obsolete"},
		},
		[]Relationship{
			{ID: "r-keep", SourceID: "keep", TargetID: "mutate", Type: "related"},
			{ID: "r-drop", SourceID: "keep", TargetID: "drop", Type: "related"},
		},
	)
	target := stateWith(
		[]Concept{
			{ID: "keep", Name: "unchanged"},
			{ID: "mutate", Name: "new name"},
			{ID: "fresh", Name: "brand new"},
		},
		[]Relationship{
			{ID: "r-keep", SourceID: "keep", TargetID: "mutate", Type: "related"},
			{ID: "r-new", SourceID: "keep", TargetID: "fresh", Type: "related"},
		},
	)

	diff := ComputeDiff(current, target)

	require.Len(t, diff.ConceptsToAdd, 1)
	assert.Equal(t, "fresh", diff.ConceptsToAdd[0].ID)
	require.Len(t, diff.ConceptsToUpdate, 1)
	assert.Equal(t, "mutate", diff.ConceptsToUpdate[0].ID)
	require.Len(t, diff.ConceptsToRemove, 1)
	assert.Equal(t, "drop", diff.ConceptsToRemove[0].ID)

	require.Len(t, diff.RelationshipsToAdd, 1)
	assert.Equal(t, "r-new", diff.RelationshipsToAdd[0].ID)
	assert.Empty(t, diff.RelationshipsToUpdate)
	require.Len(t, diff.RelationshipsToRemove, 1)
	assert.Equal(t, "r-drop", diff.RelationshipsToRemove[0].ID)

	assert.Equal(t, 5, diff.TotalOperations())
	assert.Equal(t, 1, diff.Counts()["concepts_to_add"])
}

func TestComputeDiff_AttributeChangeIsUpdate(t *testing.T) {
	current := stateWith([]Concept{{ID: "c1", Attributes: map[string]interface{}{"relevance": 0.5}}}, nil)
	target := stateWith([]Concept{{ID: "c1", Attributes: map[string]interface{}{"relevance": 0.9}}}, nil)

	diff := ComputeDiff(current, target)
	require.Len(t, diff.ConceptsToUpdate, 1)
	assert.Empty(t, diff.ConceptsToAdd)
	assert.Empty(t, diff.ConceptsToRemove)
}

func TestClampRating(t *testing.T) {
	assert.Equal(t, 0.0, ClampRating(-0.2))
	assert.Equal(t, 1.0, ClampRating(1.7))
	assert.Equal(t, 0.4, ClampRating(0.4))
}
