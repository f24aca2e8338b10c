package services

import (
	"context"
	"testing"
	"time"

	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveChangeAt(t *testing.T, f *fixture, at time.Time, ct versioning.ChangeType, session string) {
	t.Helper()
	err := f.changes.Save(context.Background(), &versioning.ChangeRecord{
		ID:         at.Format(time.RFC3339Nano) + "_" + string(ct),
		Type:       ct,
		Timestamp:  at,
		EntityID:   "c1",
		EntityType: versioning.EntityTypeConcept,
		SessionID:  session,
	})
	require.NoError(t, err)
}

func TestGetEvolutionTimeline_ValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := f.analytics.GetEvolutionTimeline(ctx, now.Add(-24*time.Hour), now, "hourly", false)
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = f.analytics.GetEvolutionTimeline(ctx, now, now.Add(-24*time.Hour), "daily", false)
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestGetEvolutionTimeline_Daily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	day1 := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	saveChangeAt(t, f, day1, versioning.ChangeTypeConceptCreated, "s1")
	saveChangeAt(t, f, day1.Add(time.Hour), versioning.ChangeTypeConceptCreated, "s1")
	saveChangeAt(t, f, day1.Add(2*time.Hour), versioning.ChangeTypeConceptUpdated, "s2")
	saveChangeAt(t, f, day2, versioning.ChangeTypeConceptDeleted, "s2")

	start := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)

	timeline, err := f.analytics.GetEvolutionTimeline(ctx, start, end, "daily", true)
	require.NoError(t, err)

	assert.Equal(t, 4, timeline.TotalChanges)
	assert.Equal(t, "2026-08-25", timeline.MostActiveDay)
	require.Len(t, timeline.Entries, 2)
	assert.Equal(t, "2026-08-25", timeline.Entries[0].Period)
	assert.Equal(t, 3, timeline.Entries[0].TotalChanges)
	assert.Equal(t, 2, timeline.Entries[0].ChangesByType[versioning.ChangeTypeConceptCreated])
	assert.Equal(t, 1, timeline.Entries[1].TotalChanges)
	assert.InDelta(t, 4.0/3.0, timeline.AvgChangesPerDay, 1e-9)
}

func TestGetEvolutionTimeline_WeeklyBucketing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Tuesday and Wednesday of the same ISO week collapse into one bucket.
	saveChangeAt(t, f, time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC), versioning.ChangeTypeConceptCreated, "s1")
	saveChangeAt(t, f, time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC), versioning.ChangeTypeConceptCreated, "s1")
	saveChangeAt(t, f, time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC), versioning.ChangeTypeConceptUpdated, "s1")

	start := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	timeline, err := f.analytics.GetEvolutionTimeline(ctx, start, end, "weekly", true)
	require.NoError(t, err)

	require.Len(t, timeline.Entries, 1)
	assert.Equal(t, 3, timeline.Entries[0].TotalChanges)
	assert.Equal(t, 2, timeline.Entries[0].ChangesByType[versioning.ChangeTypeConceptCreated])
	assert.Equal(t, 1, timeline.Entries[0].ChangesByType[versioning.ChangeTypeConceptUpdated])
}

func TestGetEvolutionTimeline_OverlaysMilestones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.iterations.CreateIteration(ctx, CreateIterationInput{Version: "v1", Name: "first"})
	require.NoError(t, err)

	now := time.Now().UTC()
	timeline, err := f.analytics.GetEvolutionTimeline(ctx, now.Add(-time.Hour), now.Add(time.Hour), "daily", false)
	require.NoError(t, err)

	assert.Equal(t, 1, timeline.IterationCount)
	require.Len(t, timeline.Milestones, 1)
	assert.Equal(t, "v1", timeline.Milestones[0].Version)
	assert.Equal(t, "first", timeline.Milestones[0].Name)
}

func TestGetGraphHealthMetrics_EmptyGraph(t *testing.T) {
	f := newFixture(t)

	metrics, err := f.analytics.GetGraphHealthMetrics(context.Background())
	require.NoError(t, err)

	assert.Zero(t, metrics.ConceptCount)
	assert.Zero(t, metrics.RelationshipCount)
	assert.Zero(t, metrics.ChangesLast24h)
	assert.Zero(t, metrics.RecentErrors)

	// Nothing recorded yet degrades to neutral factors, not an error.
	assert.Equal(t, 0.5, metrics.Report.Factors.Stability)
	assert.Equal(t, 0.5, metrics.Report.Factors.Quality)
	assert.Equal(t, 1.0, metrics.Report.Factors.InverseErrorRate)
	assert.Equal(t, "F", metrics.Report.Grade)
}

func TestGetGraphHealthMetrics_CountsFailedBatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	handle, err := f.tracker.StartBatch(ctx, StartBatchInput{Name: "doomed"})
	require.NoError(t, err)
	require.NoError(t, f.tracker.FailBatch(ctx, handle))

	metrics, err := f.analytics.GetGraphHealthMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.RecentErrors)
	assert.Equal(t, 0.0, metrics.Report.Factors.InverseErrorRate)
}

func TestGetStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedGraph(t,
		[]versioning.Concept{{ID: "c1"}, {ID: "c2"}},
		[]versioning.Relationship{{ID: "r1", SourceID: "c1", TargetID: "c2", Type: "related"}},
	)

	now := time.Now().UTC()
	saveChangeAt(t, f, now.Add(-time.Hour), versioning.ChangeTypeConceptCreated, "s1")
	saveChangeAt(t, f, now.Add(-2*time.Hour), versioning.ChangeTypeConceptCreated, "s2")
	saveChangeAt(t, f, now.Add(-3*time.Hour), versioning.ChangeTypeRelationshipCreated, "s1")

	stats, err := f.analytics.GetStatistics(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.ConceptCount)
	assert.Equal(t, 1, stats.RelationshipCount)
	assert.Equal(t, 3, stats.TotalChanges30d)
	assert.Equal(t, 2, stats.ChangesByType[versioning.ChangeTypeConceptCreated])
	assert.Equal(t, 1, stats.ChangesByType[versioning.ChangeTypeRelationshipCreated])
	assert.Equal(t, 2, stats.ActiveSessions)
	assert.NotEmpty(t, stats.MostActiveDay)
}
