package services

import (
	"context"
	"testing"

	"graphitti-backend/application/ports"
	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/common"
	"graphitti-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackChange_RecordsSessionAndChecksum(t *testing.T) {
	f := newFixture(t)
	ctx := common.WithSessionID(context.Background(), "session_abc")

	changeID, err := f.tracker.TrackChange(ctx, TrackChangeInput{
		Type:       versioning.ChangeTypeConceptCreated,
		EntityID:   "concept-1",
		EntityType: versioning.EntityTypeConcept,
		NewValue:   map[string]interface{}{"name": "quantum computing"},
		Source:     "api",
		UserID:     "user-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, changeID)

	records, err := f.changes.List(ctx, ports.ChangeFilter{EntityID: "concept-1"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, changeID, record.ID)
	assert.Equal(t, "session_abc", record.SessionID)
	assert.Len(t, record.Checksum, 64)
	assert.Empty(t, record.BatchID)
	assert.False(t, record.Timestamp.IsZero())
}

func TestTrackChange_RequiresEntityID(t *testing.T) {
	f := newFixture(t)

	_, err := f.tracker.TrackChange(context.Background(), TrackChangeInput{
		Type:       versioning.ChangeTypeConceptCreated,
		EntityType: versioning.EntityTypeConcept,
	})
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestBatchLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	handle, err := f.tracker.StartBatch(ctx, StartBatchInput{
		Name:   "nightly import",
		Source: "import",
	})
	require.NoError(t, err)
	require.NotEmpty(t, handle.ID)

	for i, ct := range []versioning.ChangeType{
		versioning.ChangeTypeConceptCreated,
		versioning.ChangeTypeConceptCreated,
		versioning.ChangeTypeRelationshipCreated,
	} {
		_, err := f.tracker.TrackChange(ctx, TrackChangeInput{
			Type:       ct,
			EntityID:   string(rune('a' + i)),
			EntityType: versioning.EntityTypeConcept,
			Batch:      handle,
		})
		require.NoError(t, err)
	}

	batch, err := f.batches.GetByID(ctx, handle.ID)
	require.NoError(t, err)
	assert.Equal(t, versioning.BatchStatusActive, batch.Status)
	assert.Equal(t, 3, batch.ChangeCount)

	summary, err := f.tracker.CompleteBatch(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, handle.ID, summary.BatchID)
	assert.Equal(t, versioning.BatchStatusCompleted, summary.Status)
	assert.Equal(t, 3, summary.TotalChanges)
	assert.Equal(t, 2, summary.ChangesByType[versioning.ChangeTypeConceptCreated])
	assert.Equal(t, 1, summary.ChangesByType[versioning.ChangeTypeRelationshipCreated])
	assert.GreaterOrEqual(t, summary.Duration.Nanoseconds(), int64(0))

	batch, err = f.batches.GetByID(ctx, handle.ID)
	require.NoError(t, err)
	assert.Equal(t, versioning.BatchStatusCompleted, batch.Status)
	require.NotNil(t, batch.CompletedAt)
}

func TestCompleteBatch_NotActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	handle, err := f.tracker.StartBatch(ctx, StartBatchInput{Name: "once"})
	require.NoError(t, err)

	_, err = f.tracker.CompleteBatch(ctx, handle)
	require.NoError(t, err)

	_, err = f.tracker.CompleteBatch(ctx, handle)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestCompleteBatch_MissingHandle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.CompleteBatch(ctx, nil)
	assert.True(t, errors.IsNotFound(err))

	_, err = f.tracker.CompleteBatch(ctx, &BatchHandle{})
	assert.True(t, errors.IsNotFound(err))

	err = f.tracker.FailBatch(ctx, nil)
	assert.True(t, errors.IsNotFound(err))
}

func TestStartBatch_RequiresName(t *testing.T) {
	f := newFixture(t)

	_, err := f.tracker.StartBatch(context.Background(), StartBatchInput{})
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestFailBatch_PreservesChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	handle, err := f.tracker.StartBatch(ctx, StartBatchInput{Name: "doomed"})
	require.NoError(t, err)

	_, err = f.tracker.TrackChange(ctx, TrackChangeInput{
		Type:       versioning.ChangeTypeConceptDeleted,
		EntityID:   "concept-1",
		EntityType: versioning.EntityTypeConcept,
		Batch:      handle,
	})
	require.NoError(t, err)

	require.NoError(t, f.tracker.FailBatch(ctx, handle))

	batch, err := f.batches.GetByID(ctx, handle.ID)
	require.NoError(t, err)
	assert.Equal(t, versioning.BatchStatusFailed, batch.Status)

	// The change log keeps the records for audit even though the batch failed.
	records, err := f.changes.List(ctx, ports.ChangeFilter{BatchID: handle.ID})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
