package services

import (
	"context"
	"testing"

	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIteration_WithMilestoneSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedGraph(t,
		[]versioning.Concept{{ID: "c1"}, {ID: "c2"}},
		[]versioning.Relationship{{ID: "r1", SourceID: "c1", TargetID: "c2", Type: "related"}},
	)

	iteration, err := f.iterations.CreateIteration(ctx, CreateIterationInput{
		Version:        "v1.0.0",
		Name:           "first stable",
		Features:       []string{"concept import"},
		CreateSnapshot: true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, iteration.SnapshotID)
	assert.Empty(t, iteration.ParentIterationID)
	assert.Zero(t, iteration.ChangesSinceParent)
	// No parent and no churn reads as a fully stable graph.
	assert.Equal(t, 1.0, iteration.StabilityRating)

	snapshot, err := f.snapshotRepo.GetByID(ctx, iteration.SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, versioning.SnapshotTypeMilestone, snapshot.Type)
	assert.Contains(t, snapshot.Tags, "iteration:v1.0.0")

	// Evolution metrics are derived against an empty parent state.
	metrics, err := f.metricsRepo.GetByIterationID(ctx, iteration.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.ConceptsAdded)
	assert.Equal(t, 1, metrics.RelationshipsAdded)
	assert.Equal(t, iteration.SnapshotID, metrics.SnapshotID)
}

func TestCreateIteration_DuplicateVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.iterations.CreateIteration(ctx, CreateIterationInput{Version: "v1.0.0"})
	require.NoError(t, err)

	_, err = f.iterations.CreateIteration(ctx, CreateIterationInput{Version: "v1.0.0"})
	assert.True(t, errors.IsInvalidArgument(err))

	count, err := f.iterationRepo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateIteration_RequiresVersion(t *testing.T) {
	f := newFixture(t)

	_, err := f.iterations.CreateIteration(context.Background(), CreateIterationInput{})
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestCreateIteration_Lineage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v1, err := f.iterations.CreateIteration(ctx, CreateIterationInput{Version: "v1"})
	require.NoError(t, err)

	for _, id := range []string{"c1", "c2"} {
		_, err := f.tracker.TrackChange(ctx, TrackChangeInput{
			Type:       versioning.ChangeTypeConceptCreated,
			EntityID:   id,
			EntityType: versioning.EntityTypeConcept,
		})
		require.NoError(t, err)
	}
	_, err = f.tracker.TrackChange(ctx, TrackChangeInput{
		Type:       versioning.ChangeTypeConceptDeleted,
		EntityID:   "c1",
		EntityType: versioning.EntityTypeConcept,
	})
	require.NoError(t, err)

	v2, err := f.iterations.CreateIteration(ctx, CreateIterationInput{Version: "v2"})
	require.NoError(t, err)

	assert.Equal(t, v1.ID, v2.ParentIterationID)
	assert.Equal(t, 3, v2.ChangesSinceParent)
	// A third of the changes were deletions, so v2 scores below v1.
	assert.Less(t, v2.StabilityRating, v1.StabilityRating)
}

func TestCompareIterations_MirrorInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.iterations.CreateIteration(ctx, CreateIterationInput{Version: "v1"})
	require.NoError(t, err)

	track := func(ct versioning.ChangeType, id string) {
		t.Helper()
		_, err := f.tracker.TrackChange(ctx, TrackChangeInput{
			Type:       ct,
			EntityID:   id,
			EntityType: versioning.EntityTypeConcept,
		})
		require.NoError(t, err)
	}
	track(versioning.ChangeTypeConceptCreated, "c1")
	track(versioning.ChangeTypeConceptCreated, "c2")
	track(versioning.ChangeTypeConceptUpdated, "c1")
	track(versioning.ChangeTypeConceptDeleted, "c2")

	_, err = f.iterations.CreateIteration(ctx, CreateIterationInput{Version: "v2"})
	require.NoError(t, err)

	forward, err := f.iterations.CompareIterations(ctx, "v1", "v2", false)
	require.NoError(t, err)
	reverse, err := f.iterations.CompareIterations(ctx, "v2", "v1", false)
	require.NoError(t, err)

	assert.Equal(t, forward.TotalChanges, reverse.TotalChanges)
	assert.Equal(t,
		forward.ChangesByType[versioning.ChangeTypeConceptCreated],
		reverse.ChangesByType[versioning.ChangeTypeConceptDeleted])
	assert.Equal(t,
		forward.ChangesByType[versioning.ChangeTypeConceptDeleted],
		reverse.ChangesByType[versioning.ChangeTypeConceptCreated])
	assert.Equal(t,
		forward.ChangesByType[versioning.ChangeTypeConceptUpdated],
		reverse.ChangesByType[versioning.ChangeTypeConceptUpdated])
	assert.InDelta(t, -forward.StabilityDelta, reverse.StabilityDelta, 1e-9)

	assert.Equal(t, 2, forward.ChangesByType[versioning.ChangeTypeConceptCreated])
	assert.Equal(t, 1, forward.ChangesByType[versioning.ChangeTypeConceptDeleted])
}

func TestCompareIterations_DetailedIncludesSnapshotDiff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedGraph(t, []versioning.Concept{{ID: "c1"}}, nil)
	_, err := f.iterations.CreateIteration(ctx, CreateIterationInput{Version: "v1", CreateSnapshot: true})
	require.NoError(t, err)

	require.NoError(t, f.graph.UpsertConcept(ctx, versioning.Concept{ID: "c2"}))
	_, err = f.iterations.CreateIteration(ctx, CreateIterationInput{Version: "v2", CreateSnapshot: true})
	require.NoError(t, err)

	comparison, err := f.iterations.CompareIterations(ctx, "v1", "v2", true)
	require.NoError(t, err)

	require.NotNil(t, comparison.SnapshotDiff)
	require.Len(t, comparison.SnapshotDiff.ConceptsToAdd, 1)
	assert.Equal(t, "c2", comparison.SnapshotDiff.ConceptsToAdd[0].ID)
}

func TestCompareIterations_UnknownVersion(t *testing.T) {
	f := newFixture(t)

	_, err := f.iterations.CompareIterations(context.Background(), "v1", "v2", false)
	assert.True(t, errors.IsNotFound(err))
}
