package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSnapshot_FullGraph(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedGraph(t,
		[]versioning.Concept{{ID: "c1", Name: "alpha"}, {ID: "c2", Name: "beta"}},
		[]versioning.Relationship{{ID: "r1", SourceID: "c1", TargetID: "c2", Type: "related"}},
	)

	snapshot, err := f.snapshots.CreateSnapshot(ctx, CreateSnapshotInput{
		Type:                 versioning.SnapshotTypeFullGraph,
		Name:                 "baseline",
		IncludeConcepts:      true,
		IncludeRelationships: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, snapshot.ConceptCount)
	assert.Equal(t, 1, snapshot.RelationshipCount)
	assert.Len(t, snapshot.Checksum, 64)
	assert.NotEmpty(t, snapshot.StorageLocator)
	assert.Greater(t, snapshot.SizeBytes, int64(0))
	assert.True(t, strings.HasPrefix(snapshot.Version, "full_graph_"))
	assert.Empty(t, snapshot.ParentSnapshotID)

	// The stored payload decodes back to the captured state.
	state, err := f.snapshots.LoadState(ctx, snapshot)
	require.NoError(t, err)
	assert.Len(t, state.Concepts, 2)
	assert.Len(t, state.Relationships, 1)

	checksum, err := state.Checksum()
	require.NoError(t, err)
	assert.Equal(t, snapshot.Checksum, checksum)
}

func TestCreateSnapshot_SameSecondKeepsDistinctPayloads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedGraph(t, []versioning.Concept{{ID: "c1", Name: "alpha"}}, nil)

	first, err := f.snapshots.CreateSnapshot(ctx, CreateSnapshotInput{
		Type:            versioning.SnapshotTypeFullGraph,
		IncludeConcepts: true,
	})
	require.NoError(t, err)

	// Mutate and snapshot again immediately; both land in the same second.
	require.NoError(t, f.graph.UpsertConcept(ctx, versioning.Concept{ID: "c2", Name: "beta"}))
	second, err := f.snapshots.CreateSnapshot(ctx, CreateSnapshotInput{
		Type:            versioning.SnapshotTypeFullGraph,
		IncludeConcepts: true,
	})
	require.NoError(t, err)

	assert.NotEqual(t, first.StorageLocator, second.StorageLocator,
		"snapshots of one kind in the same second must not share a payload")

	// The first snapshot's payload is intact: it still matches its checksum.
	firstState, err := f.snapshots.LoadState(ctx, first)
	require.NoError(t, err)
	firstChecksum, err := firstState.Checksum()
	require.NoError(t, err)
	assert.Equal(t, first.Checksum, firstChecksum)
	assert.Len(t, firstState.Concepts, 1)

	secondState, err := f.snapshots.LoadState(ctx, second)
	require.NoError(t, err)
	assert.Len(t, secondState.Concepts, 2)
}

func TestCreateSnapshot_RejectsUnknownType(t *testing.T) {
	f := newFixture(t)

	_, err := f.snapshots.CreateSnapshot(context.Background(), CreateSnapshotInput{
		Type: versioning.SnapshotType("hourly"),
	})
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestCreateSnapshot_IncrementalLinksParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedGraph(t, []versioning.Concept{{ID: "c1"}}, nil)

	first, err := f.snapshots.CreateSnapshot(ctx, CreateSnapshotInput{
		Type:            versioning.SnapshotTypeIncremental,
		IncludeConcepts: true,
	})
	require.NoError(t, err)
	assert.Empty(t, first.ParentSnapshotID, "the first snapshot has nothing to link to")

	second, err := f.snapshots.CreateSnapshot(ctx, CreateSnapshotInput{
		Type:            versioning.SnapshotTypeIncremental,
		IncludeConcepts: true,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ParentSnapshotID)
}

func TestCreateSnapshot_ConceptFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedGraph(t, []versioning.Concept{
		{ID: "c1", Attributes: map[string]interface{}{"domain": "physics"}},
		{ID: "c2", Attributes: map[string]interface{}{"domain": "biology"}},
		{ID: "c3", Attributes: map[string]interface{}{"domain": "physics"}},
	}, nil)

	snapshot, err := f.snapshots.CreateSnapshot(ctx, CreateSnapshotInput{
		Type:            versioning.SnapshotTypeConceptSubset,
		IncludeConcepts: true,
		ConceptFilter:   map[string]interface{}{"domain": "physics"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, snapshot.ConceptCount)
	assert.Equal(t, 0, snapshot.RelationshipCount)
}

func TestPruneSnapshots_KeepsListedKinds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedGraph(t, []versioning.Concept{{ID: "c1"}}, nil)

	// A real daily backup, aged past the retention window.
	oldDaily, err := f.snapshots.CreateSnapshot(ctx, CreateSnapshotInput{
		Type:            versioning.SnapshotTypeDailyBackup,
		IncludeConcepts: true,
	})
	require.NoError(t, err)
	oldDaily.Timestamp = time.Now().UTC().Add(-60 * 24 * time.Hour)
	require.NoError(t, f.snapshotRepo.Save(ctx, oldDaily))

	old := time.Now().UTC().Add(-60 * 24 * time.Hour)
	require.NoError(t, f.snapshotRepo.Save(ctx, &versioning.Snapshot{
		ID: "s2", Type: versioning.SnapshotTypeMilestone, Timestamp: old, Version: "milestone_old",
	}))
	require.NoError(t, f.snapshotRepo.Save(ctx, &versioning.Snapshot{
		ID: "s3", Type: versioning.SnapshotTypeDailyBackup, Timestamp: time.Now().UTC(), Version: "daily_new",
	}))

	deleted, err := f.snapshots.PruneSnapshots(ctx, 30*24*time.Hour, []versioning.SnapshotType{
		versioning.SnapshotTypeMilestone,
		versioning.SnapshotTypePreMigration,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	count, err := f.snapshotRepo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = f.snapshotRepo.GetByID(ctx, oldDaily.ID)
	assert.True(t, errors.IsNotFound(err))

	// The pruned snapshot's payload is deleted from the blob store too.
	_, err = f.snapshots.LoadState(ctx, oldDaily)
	assert.Error(t, err)
}
