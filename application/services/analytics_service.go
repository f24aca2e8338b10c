package services

import (
	"context"
	"time"

	"graphitti-backend/application/ports"
	"graphitti-backend/domain/scoring"
	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/errors"

	"go.uber.org/zap"
)

// AnalyticsService aggregates the change log and version history into
// timelines and the composite health score. Its outputs are informational;
// missing data degrades to neutral values instead of failing.
type AnalyticsService struct {
	changeRepo    ports.ChangeRecordRepository
	snapshotRepo  ports.SnapshotRepository
	iterationRepo ports.IterationRepository
	batchRepo     ports.BatchRepository
	graphRepo     ports.GraphRepository
	quality       scoring.QualityStrategy
	health        scoring.HealthStrategy
	emitter       ports.MetricsEmitter
	logger        *zap.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(
	changeRepo ports.ChangeRecordRepository,
	snapshotRepo ports.SnapshotRepository,
	iterationRepo ports.IterationRepository,
	batchRepo ports.BatchRepository,
	graphRepo ports.GraphRepository,
	quality scoring.QualityStrategy,
	health scoring.HealthStrategy,
	emitter ports.MetricsEmitter,
	logger *zap.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		changeRepo:    changeRepo,
		snapshotRepo:  snapshotRepo,
		iterationRepo: iterationRepo,
		batchRepo:     batchRepo,
		graphRepo:     graphRepo,
		quality:       quality,
		health:        health,
		emitter:       emitter,
		logger:        logger,
	}
}

// TimelineEntry is one bucket of the evolution timeline
type TimelineEntry struct {
	Period        string                        `json:"period"`
	TotalChanges  int                           `json:"total_changes"`
	ChangesByType map[versioning.ChangeType]int `json:"changes_by_type,omitempty"`
}

// TimelineMilestone marks an iteration falling inside the timeline range
type TimelineMilestone struct {
	Version   string    `json:"version"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Stability float64   `json:"stability"`
}

// Timeline is the evolution timeline response
type Timeline struct {
	Start            time.Time           `json:"start"`
	End              time.Time           `json:"end"`
	Granularity      string              `json:"granularity"`
	Entries          []TimelineEntry     `json:"entries"`
	Milestones       []TimelineMilestone `json:"milestones"`
	TotalChanges     int                 `json:"total_changes"`
	AvgChangesPerDay float64             `json:"avg_changes_per_day"`
	MostActiveDay    string              `json:"most_active_day,omitempty"`
	IterationCount   int                 `json:"iteration_count"`
}

// GetEvolutionTimeline refreshes the daily rollup, buckets it at the
// requested granularity, and overlays iteration milestones in range
func (s *AnalyticsService) GetEvolutionTimeline(ctx context.Context, start, end time.Time, granularity string, includeDetails bool) (*Timeline, error) {
	if granularity == "" {
		granularity = "daily"
	}
	if granularity != "daily" && granularity != "weekly" {
		return nil, errors.NewInvalidArgumentError("unknown granularity: " + granularity)
	}
	if end.Before(start) {
		return nil, errors.NewInvalidArgumentError("timeline end precedes start")
	}

	rollup, err := s.changeRepo.DailyRollup(ctx, start, end)
	if err != nil {
		return nil, err
	}

	timeline := &Timeline{
		Start:       start,
		End:         end,
		Granularity: granularity,
		Entries:     []TimelineEntry{},
		Milestones:  []TimelineMilestone{},
	}

	mostActive := 0
	for _, day := range rollup {
		timeline.TotalChanges += day.TotalChanges
		if day.TotalChanges > mostActive {
			mostActive = day.TotalChanges
			timeline.MostActiveDay = day.Day
		}
	}

	if granularity == "weekly" {
		timeline.Entries = bucketWeekly(rollup, includeDetails)
	} else {
		for _, day := range rollup {
			entry := TimelineEntry{Period: day.Day, TotalChanges: day.TotalChanges}
			if includeDetails {
				entry.ChangesByType = day.ChangesByType
			}
			timeline.Entries = append(timeline.Entries, entry)
		}
	}

	days := end.Sub(start).Hours() / 24
	if days < 1 {
		days = 1
	}
	timeline.AvgChangesPerDay = float64(timeline.TotalChanges) / days

	iterations, err := s.iterationRepo.ListBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}
	for _, it := range iterations {
		timeline.Milestones = append(timeline.Milestones, TimelineMilestone{
			Version:   it.Version,
			Name:      it.Name,
			CreatedAt: it.CreatedAt,
			Stability: it.StabilityRating,
		})
	}
	timeline.IterationCount = len(iterations)

	return timeline, nil
}

func bucketWeekly(rollup []versioning.DailyChangeCount, includeDetails bool) []TimelineEntry {
	weekOf := func(day string) string {
		t, err := time.Parse("2006-01-02", day)
		if err != nil {
			return day
		}
		year, week := t.ISOWeek()
		return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).
			AddDate(0, 0, (week-1)*7).Format("2006-W02")
	}

	order := []string{}
	buckets := map[string]*TimelineEntry{}
	for _, day := range rollup {
		key := weekOf(day.Day)
		entry, ok := buckets[key]
		if !ok {
			entry = &TimelineEntry{Period: key}
			if includeDetails {
				entry.ChangesByType = map[versioning.ChangeType]int{}
			}
			buckets[key] = entry
			order = append(order, key)
		}
		entry.TotalChanges += day.TotalChanges
		if includeDetails {
			for t, c := range day.ChangesByType {
				entry.ChangesByType[t] += c
			}
		}
	}

	entries := make([]TimelineEntry, 0, len(order))
	for _, key := range order {
		entries = append(entries, *buckets[key])
	}
	return entries
}

// HealthMetrics is the health endpoint response: raw counts plus the scored
// report
type HealthMetrics struct {
	ConceptCount      int                  `json:"concept_count"`
	RelationshipCount int                  `json:"relationship_count"`
	ChangesLast24h    int                  `json:"changes_last_24h"`
	ChangesLast7d     int                  `json:"changes_last_7d"`
	ActiveSessions    int                  `json:"active_sessions"`
	SnapshotCount     int                  `json:"snapshot_count"`
	IterationCount    int                  `json:"iteration_count"`
	RecentErrors      int                  `json:"recent_errors"`
	Report            scoring.HealthReport `json:"report"`
}

// GetGraphHealthMetrics gathers raw counts and quality aggregates and scores
// them into the composite health signal
func (s *AnalyticsService) GetGraphHealthMetrics(ctx context.Context) (*HealthMetrics, error) {
	now := time.Now().UTC()

	concepts, relationships, err := s.graphRepo.Counts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count graph entities")
	}

	changes24h, err := s.changeRepo.CountSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	changes7d, err := s.changeRepo.CountSince(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		return nil, err
	}
	sessions, err := s.changeRepo.CountDistinctSessionsSince(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		return nil, err
	}
	snapshotCount, err := s.snapshotRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	iterationCount, err := s.iterationRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	recentErrors, err := s.batchRepo.CountFailedSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	inputs := scoring.HealthInputs{
		ConceptCount:      concepts,
		RelationshipCount: relationships,
		ChangesLast24h:    changes24h,
		ChangesLast7d:     changes7d,
		ActiveSessions:    sessions,
		SnapshotCount:     snapshotCount,
		IterationCount:    iterationCount,
		RecentErrors:      recentErrors,
	}

	// Quality aggregates and stability are advisory; failures fall back to
	// the strategy's neutral defaults instead of failing the call.
	if state, err := s.graphRepo.ExtractState(ctx, ports.ExtractOptions{
		IncludeConcepts: true,
	}); err == nil {
		qualityScores := s.quality.Scores(state)
		if avg, ok := qualityScores["average_relevance"].(float64); ok {
			inputs.AverageRelevance = &avg
		}
		if ratio, ok := qualityScores["high_quality_ratio"].(float64); ok {
			inputs.HighQualityRatio = &ratio
		}
	} else {
		s.logger.Warn("Failed to extract state for quality scoring", zap.Error(err))
	}

	if latest, err := s.iterationRepo.GetLatest(ctx); err == nil && latest != nil {
		stability := latest.StabilityRating
		inputs.LatestStability = &stability
	} else if err != nil {
		s.logger.Warn("Failed to load latest iteration for health", zap.Error(err))
	}

	report := s.health.Evaluate(inputs)

	if s.emitter != nil {
		if err := s.emitter.EmitHealth(ctx, report); err != nil {
			s.logger.Warn("Failed to emit health metrics", zap.Error(err))
		}
	}

	return &HealthMetrics{
		ConceptCount:      concepts,
		RelationshipCount: relationships,
		ChangesLast24h:    changes24h,
		ChangesLast7d:     changes7d,
		ActiveSessions:    sessions,
		SnapshotCount:     snapshotCount,
		IterationCount:    iterationCount,
		RecentErrors:      recentErrors,
		Report:            report,
	}, nil
}

// Statistics is the aggregate statistics response
type Statistics struct {
	ConceptCount      int                           `json:"concept_count"`
	RelationshipCount int                           `json:"relationship_count"`
	SnapshotCount     int                           `json:"snapshot_count"`
	IterationCount    int                           `json:"iteration_count"`
	ChangesByType     map[versioning.ChangeType]int `json:"changes_by_type"`
	TotalChanges30d   int                           `json:"total_changes_30d"`
	MostActiveDay     string                        `json:"most_active_day,omitempty"`
	ActiveSessions    int                           `json:"active_sessions"`
}

// GetStatistics aggregates recent activity for the statistics endpoint
func (s *AnalyticsService) GetStatistics(ctx context.Context) (*Statistics, error) {
	now := time.Now().UTC()
	start := now.Add(-30 * 24 * time.Hour)

	concepts, relationships, err := s.graphRepo.Counts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count graph entities")
	}
	snapshotCount, err := s.snapshotRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	iterationCount, err := s.iterationRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := s.changeRepo.CountDistinctSessionsSince(ctx, start)
	if err != nil {
		return nil, err
	}

	rollup, err := s.changeRepo.DailyRollup(ctx, start, now)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		ConceptCount:      concepts,
		RelationshipCount: relationships,
		SnapshotCount:     snapshotCount,
		IterationCount:    iterationCount,
		ChangesByType:     map[versioning.ChangeType]int{},
		ActiveSessions:    sessions,
	}

	mostActive := 0
	for _, day := range rollup {
		stats.TotalChanges30d += day.TotalChanges
		for t, c := range day.ChangesByType {
			stats.ChangesByType[t] += c
		}
		if day.TotalChanges > mostActive {
			mostActive = day.TotalChanges
			stats.MostActiveDay = day.Day
		}
	}

	return stats, nil
}
