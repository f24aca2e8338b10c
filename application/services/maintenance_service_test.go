package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// capturingPublisher records published events for assertions
type capturingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *capturingPublisher) Publish(ctx context.Context, eventType string, detail interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func newMaintenance(f *fixture, publisher *capturingPublisher, policy IterationPolicy) *MaintenanceService {
	return NewMaintenanceService(
		f.snapshots, f.iterations, f.analytics,
		f.changes, f.iterationRepo,
		publisher,
		30*24*time.Hour,
		policy,
		zap.NewNop(),
	)
}

func TestRunScheduledSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := newMaintenance(f, nil, DefaultIterationPolicy())

	f.seedGraph(t, []versioning.Concept{{ID: "c1"}}, nil)

	snapshot, err := m.RunScheduledSnapshot(ctx, versioning.SnapshotTypeDailyBackup)
	require.NoError(t, err)
	assert.Equal(t, versioning.SnapshotTypeDailyBackup, snapshot.Type)
	assert.Equal(t, 1, snapshot.ConceptCount)
}

func TestRunScheduledSnapshot_RejectsManualKinds(t *testing.T) {
	f := newFixture(t)
	m := newMaintenance(f, nil, DefaultIterationPolicy())

	_, err := m.RunScheduledSnapshot(context.Background(), versioning.SnapshotTypeMilestone)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestCheckHealth_AlertsBelowThreshold(t *testing.T) {
	f := newFixture(t)
	publisher := &capturingPublisher{}
	m := newMaintenance(f, publisher, DefaultIterationPolicy())

	// An empty graph scores 0.4 overall, under the 0.5 threshold.
	health, err := m.CheckHealth(context.Background(), 0.5)
	require.NoError(t, err)
	assert.Less(t, health.Report.OverallScore, 0.5)
	assert.Contains(t, publisher.events, "graphitti.health.degraded")
}

func TestCheckHealth_NoAlertAboveThreshold(t *testing.T) {
	f := newFixture(t)
	publisher := &capturingPublisher{}
	m := newMaintenance(f, publisher, DefaultIterationPolicy())

	_, err := m.CheckHealth(context.Background(), 0.1)
	require.NoError(t, err)
	assert.Empty(t, publisher.events)
}

func TestMaybeCreateIteration_FirstCheckpoint(t *testing.T) {
	f := newFixture(t)
	m := newMaintenance(f, nil, DefaultIterationPolicy())

	iteration, err := m.MaybeCreateIteration(context.Background())
	require.NoError(t, err)
	require.NotNil(t, iteration)
	assert.Contains(t, iteration.Tags, "automatic")
	assert.NotEmpty(t, iteration.SnapshotID)
}

func TestMaybeCreateIteration_BelowChangeThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := newMaintenance(f, nil, DefaultIterationPolicy())

	_, err := f.iterations.CreateIteration(ctx, CreateIterationInput{Version: "v1"})
	require.NoError(t, err)

	iteration, err := m.MaybeCreateIteration(ctx)
	require.NoError(t, err)
	assert.Nil(t, iteration)
}

func TestMaybeCreateIteration_ChangeThresholdTriggers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := newMaintenance(f, nil, IterationPolicy{
		MinChangesSinceParent: 2,
		MaxParentAge:          7 * 24 * time.Hour,
		MinStability:          0.4,
	})

	_, err := f.iterations.CreateIteration(ctx, CreateIterationInput{Version: "v1"})
	require.NoError(t, err)

	for _, id := range []string{"c1", "c2"} {
		_, err := f.tracker.TrackChange(ctx, TrackChangeInput{
			Type:       versioning.ChangeTypeConceptCreated,
			EntityID:   id,
			EntityType: versioning.EntityTypeConcept,
		})
		require.NoError(t, err)
	}

	iteration, err := m.MaybeCreateIteration(ctx)
	require.NoError(t, err)
	require.NotNil(t, iteration)
	assert.Equal(t, 2, iteration.ChangesSinceParent)
}

func TestMaybeCreateIteration_SkipsUnstableGraph(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := newMaintenance(f, nil, IterationPolicy{
		MinChangesSinceParent: 1,
		MaxParentAge:          7 * 24 * time.Hour,
		MinStability:          0.4,
	})

	// Seed an iteration row with a stability rating under the floor.
	require.NoError(t, f.iterationRepo.Save(ctx, &versioning.Iteration{
		ID:              "it-1",
		Version:         "v1",
		CreatedAt:       time.Now().UTC(),
		StabilityRating: 0.1,
	}))

	_, err := f.tracker.TrackChange(ctx, TrackChangeInput{
		Type:       versioning.ChangeTypeConceptDeleted,
		EntityID:   "c1",
		EntityType: versioning.EntityTypeConcept,
	})
	require.NoError(t, err)

	iteration, err := m.MaybeCreateIteration(ctx)
	require.NoError(t, err)
	assert.Nil(t, iteration)
}
