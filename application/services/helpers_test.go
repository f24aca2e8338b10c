package services

import (
	"context"
	"testing"

	"graphitti-backend/domain/scoring"
	"graphitti-backend/domain/versioning"
	"graphitti-backend/infrastructure/blobstore"
	"graphitti-backend/infrastructure/persistence/memory"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fixture wires the services against the in-memory repositories and an
// in-memory blob bucket
type fixture struct {
	changes       *memory.ChangeRecordRepository
	batches       *memory.BatchRepository
	snapshotRepo  *memory.SnapshotRepository
	iterationRepo *memory.IterationRepository
	metricsRepo   *memory.EvolutionMetricsRepository
	graph         *memory.GraphRepository
	lock          *memory.AdvisoryLock

	tracker    *ChangeTracker
	snapshots  *SnapshotService
	restore    *RestoreService
	iterations *IterationService
	analytics  *AnalyticsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := blobstore.Open(context.Background(), "mem://")
	require.NoError(t, err)

	logger := zap.NewNop()

	f := &fixture{
		changes:       memory.NewChangeRecordRepository(),
		batches:       memory.NewBatchRepository(),
		snapshotRepo:  memory.NewSnapshotRepository(),
		iterationRepo: memory.NewIterationRepository(),
		metricsRepo:   memory.NewEvolutionMetricsRepository(),
		graph:         memory.NewGraphRepository(),
		lock:          memory.NewAdvisoryLock(),
	}

	f.tracker = NewChangeTracker(f.changes, f.batches, logger)
	f.snapshots = NewSnapshotService(f.snapshotRepo, f.graph, store, nil, logger)
	f.restore = NewRestoreService(f.snapshots, f.tracker, f.graph, f.lock, nil, logger)
	f.iterations = NewIterationService(
		f.iterationRepo, f.metricsRepo, f.changes, f.graph, f.snapshots,
		scoring.NewDefaultStability(), scoring.NewDefaultQuality(), scoring.NewDefaultEvolution(),
		nil, logger,
	)
	f.analytics = NewAnalyticsService(
		f.changes, f.snapshotRepo, f.iterationRepo, f.batches, f.graph,
		scoring.NewDefaultQuality(), scoring.NewDefaultHealth(),
		nil, logger,
	)

	return f
}

func (f *fixture) seedGraph(t *testing.T, concepts []versioning.Concept, relationships []versioning.Relationship) {
	t.Helper()
	ctx := context.Background()
	for _, c := range concepts {
		require.NoError(t, f.graph.UpsertConcept(ctx, c))
	}
	for _, r := range relationships {
		require.NoError(t, f.graph.UpsertRelationship(ctx, r))
	}
}
