package services

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"graphitti-backend/application/ports"
	"graphitti-backend/domain/versioning"
	"graphitti-backend/infrastructure/persistence/memory"
	"graphitti-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func baselineSnapshot(t *testing.T, f *fixture) *versioning.Snapshot {
	t.Helper()

	f.seedGraph(t,
		[]versioning.Concept{{ID: "c1", Name: "alpha"}, {ID: "c2", Name: "beta"}},
		[]versioning.Relationship{{ID: "r1", SourceID: "c1", TargetID: "c2", Type: "related"}},
	)

	snapshot, err := f.snapshots.CreateSnapshot(context.Background(), CreateSnapshotInput{
		Type:                 versioning.SnapshotTypeFullGraph,
		Name:                 "baseline",
		IncludeConcepts:      true,
		IncludeRelationships: true,
	})
	require.NoError(t, err)
	return snapshot
}

func TestRestoreSnapshot_DryRunDoesNotMutate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snapshot := baselineSnapshot(t, f)

	// Drift away from the snapshot.
	require.NoError(t, f.graph.DeleteRelationship(ctx, "r1"))
	require.NoError(t, f.graph.DeleteConcept(ctx, "c2"))
	require.NoError(t, f.graph.UpsertConcept(ctx, versioning.Concept{ID: "c3", Name: "gamma"}))

	result, err := f.restore.RestoreSnapshot(ctx, snapshot.ID, true)
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Equal(t, snapshot.ID, result.SnapshotID)
	require.NotNil(t, result.Diff)
	assert.Equal(t, 3, result.Diff.TotalOperations())
	assert.Nil(t, result.BatchSummary)

	// The graph, change log, and batch store are untouched.
	concepts, relationships, err := f.graph.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, concepts)
	assert.Equal(t, 0, relationships)

	records, err := f.changes.List(ctx, ports.ChangeFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)

	batches, err := f.batches.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestRestoreSnapshot_AppliesDiffThroughTracker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snapshot := baselineSnapshot(t, f)

	require.NoError(t, f.graph.DeleteRelationship(ctx, "r1"))
	require.NoError(t, f.graph.DeleteConcept(ctx, "c2"))
	require.NoError(t, f.graph.UpsertConcept(ctx, versioning.Concept{ID: "c3", Name: "gamma"}))

	result, err := f.restore.RestoreSnapshot(ctx, snapshot.ID, false)
	require.NoError(t, err)

	require.NotNil(t, result.BatchSummary)
	assert.Equal(t, versioning.BatchStatusCompleted, result.BatchSummary.Status)
	assert.Equal(t, 3, result.BatchSummary.TotalChanges)
	assert.Equal(t, 1, result.BatchSummary.ChangesByType[versioning.ChangeTypeConceptCreated])
	assert.Equal(t, 1, result.BatchSummary.ChangesByType[versioning.ChangeTypeConceptDeleted])
	assert.Equal(t, 1, result.BatchSummary.ChangesByType[versioning.ChangeTypeRelationshipCreated])

	// The graph is back at the snapshotted state.
	state, err := f.graph.ExtractState(ctx, ports.ExtractOptions{
		IncludeConcepts:      true,
		IncludeRelationships: true,
	})
	require.NoError(t, err)
	checksum, err := state.Checksum()
	require.NoError(t, err)
	assert.Equal(t, snapshot.Checksum, checksum)

	// Every applied entry is in the change log under the restore batch.
	records, err := f.changes.List(ctx, ports.ChangeFilter{BatchID: result.BatchSummary.BatchID})
	require.NoError(t, err)
	assert.Len(t, records, 3)
	for _, r := range records {
		assert.Equal(t, "restore", r.Source)
	}
}

func TestRestoreSnapshot_MatchingStateIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snapshot := baselineSnapshot(t, f)

	result, err := f.restore.RestoreSnapshot(ctx, snapshot.ID, false)
	require.NoError(t, err)

	assert.True(t, result.Diff.IsEmpty())
	require.NotNil(t, result.BatchSummary)
	assert.Equal(t, versioning.BatchStatusCompleted, result.BatchSummary.Status)
	assert.Zero(t, result.BatchSummary.TotalChanges)
}

func TestRestoreSnapshot_UnknownSnapshot(t *testing.T) {
	f := newFixture(t)

	_, err := f.restore.RestoreSnapshot(context.Background(), "missing", true)
	assert.True(t, errors.IsNotFound(err))
}

func TestRestoreSnapshot_HeldLockIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snapshot := baselineSnapshot(t, f)

	release, err := f.lock.Acquire(ctx, "graph-restore", "another-session", time.Minute)
	require.NoError(t, err)
	defer release(ctx)

	_, err = f.restore.RestoreSnapshot(ctx, snapshot.ID, false)
	require.Error(t, err)
	assert.True(t, errors.IsConsistency(err))

	// Dry runs never touch the lock.
	result, err := f.restore.RestoreSnapshot(ctx, snapshot.ID, true)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
}

// rejectingGraph fails upserts for one concept id, letting tests trigger a
// mid-application failure
type rejectingGraph struct {
	*memory.GraphRepository
	rejectID string
}

func (g *rejectingGraph) UpsertConcept(ctx context.Context, c versioning.Concept) error {
	if c.ID == g.rejectID {
		return stderrors.New("write rejected")
	}
	return g.GraphRepository.UpsertConcept(ctx, c)
}

func TestRestoreSnapshot_FailureMarksBatchFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	snapshot := baselineSnapshot(t, f)

	require.NoError(t, f.graph.DeleteRelationship(ctx, "r1"))
	require.NoError(t, f.graph.DeleteConcept(ctx, "c2"))

	restore := NewRestoreService(
		f.snapshots,
		f.tracker,
		&rejectingGraph{GraphRepository: f.graph, rejectID: "c2"},
		memory.NewAdvisoryLock(),
		nil,
		zap.NewNop(),
	)

	_, err := restore.RestoreSnapshot(ctx, snapshot.ID, false)
	require.Error(t, err)
	assert.True(t, errors.IsConsistency(err))

	batches, err := f.batches.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, versioning.BatchStatusFailed, batches[0].Status)
}
