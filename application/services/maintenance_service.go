package services

import (
	"context"
	"fmt"
	"time"

	"graphitti-backend/application/ports"
	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/errors"

	"go.uber.org/zap"
)

// IterationPolicy decides when the scheduler should checkpoint a new
// iteration automatically
type IterationPolicy struct {
	// MinChangesSinceParent triggers an iteration once this many changes
	// accumulated since the latest iteration
	MinChangesSinceParent int

	// MaxParentAge triggers an iteration once the latest iteration is older
	// than this
	MaxParentAge time.Duration

	// MinStability blocks automatic iterations while the latest stability
	// rating is below this
	MinStability float64
}

// DefaultIterationPolicy returns the scheduler's default thresholds
func DefaultIterationPolicy() IterationPolicy {
	return IterationPolicy{
		MinChangesSinceParent: 100,
		MaxParentAge:          7 * 24 * time.Hour,
		MinStability:          0.4,
	}
}

// MaintenanceService is what the cron-style scheduler calls into: periodic
// snapshots with retention pruning, health checks with alerting, and
// threshold-driven automatic iterations.
type MaintenanceService struct {
	snapshots  *SnapshotService
	iterations *IterationService
	analytics  *AnalyticsService
	changeRepo ports.ChangeRecordRepository
	iterRepo   ports.IterationRepository
	publisher  ports.EventPublisher
	retention  time.Duration
	policy     IterationPolicy
	logger     *zap.Logger
}

// NewMaintenanceService creates a new maintenance service
func NewMaintenanceService(
	snapshots *SnapshotService,
	iterations *IterationService,
	analytics *AnalyticsService,
	changeRepo ports.ChangeRecordRepository,
	iterRepo ports.IterationRepository,
	publisher ports.EventPublisher,
	retention time.Duration,
	policy IterationPolicy,
	logger *zap.Logger,
) *MaintenanceService {
	return &MaintenanceService{
		snapshots:  snapshots,
		iterations: iterations,
		analytics:  analytics,
		changeRepo: changeRepo,
		iterRepo:   iterRepo,
		publisher:  publisher,
		retention:  retention,
		policy:     policy,
		logger:     logger,
	}
}

// retainedKinds are never pruned regardless of age
var retainedKinds = []versioning.SnapshotType{
	versioning.SnapshotTypeMilestone,
	versioning.SnapshotTypePreMigration,
}

// RunScheduledSnapshot creates the scheduled snapshot variant and prunes
// snapshots older than the retention window afterward
func (s *MaintenanceService) RunScheduledSnapshot(ctx context.Context, kind versioning.SnapshotType) (*versioning.Snapshot, error) {
	switch kind {
	case versioning.SnapshotTypeDailyBackup, versioning.SnapshotTypeWeeklyBackup, versioning.SnapshotTypeIncremental:
	default:
		return nil, errors.NewInvalidArgumentError("unsupported scheduled snapshot kind: " + string(kind))
	}

	snapshot, err := s.snapshots.CreateSnapshot(ctx, CreateSnapshotInput{
		Type:                 kind,
		Name:                 fmt.Sprintf("scheduled %s", kind),
		IncludeConcepts:      true,
		IncludeRelationships: true,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.snapshots.PruneSnapshots(ctx, s.retention, retainedKinds); err != nil {
		// The snapshot itself succeeded; pruning retries on the next run.
		s.logger.Warn("Retention pruning failed", zap.Error(err))
	}

	return snapshot, nil
}

// CheckHealth computes health metrics and publishes a degradation event when
// the overall score drops below the threshold
func (s *MaintenanceService) CheckHealth(ctx context.Context, threshold float64) (*HealthMetrics, error) {
	health, err := s.analytics.GetGraphHealthMetrics(ctx)
	if err != nil {
		return nil, err
	}

	if health.Report.OverallScore < threshold && s.publisher != nil {
		if err := s.publisher.Publish(ctx, "graphitti.health.degraded", health.Report); err != nil {
			s.logger.Warn("Failed to publish health alert", zap.Error(err))
		}
	}

	return health, nil
}

// MaybeCreateIteration checkpoints a new iteration when the change-count or
// age threshold is exceeded and the latest stability rating is adequate.
// Returns nil when no iteration was warranted.
func (s *MaintenanceService) MaybeCreateIteration(ctx context.Context) (*versioning.Iteration, error) {
	latest, err := s.iterRepo.GetLatest(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	trigger := false
	if latest == nil {
		trigger = true
	} else {
		if latest.StabilityRating < s.policy.MinStability {
			s.logger.Info("Skipping automatic iteration: stability below threshold",
				zap.Float64("stability", latest.StabilityRating),
				zap.Float64("threshold", s.policy.MinStability),
			)
			return nil, nil
		}

		changes, err := s.changeRepo.CountSince(ctx, latest.CreatedAt)
		if err != nil {
			return nil, err
		}
		if changes >= s.policy.MinChangesSinceParent {
			trigger = true
		}
		if now.Sub(latest.CreatedAt) >= s.policy.MaxParentAge {
			trigger = true
		}
	}

	if !trigger {
		return nil, nil
	}

	version := "auto_" + now.Format("20060102T150405Z")
	return s.iterations.CreateIteration(ctx, CreateIterationInput{
		Version:        version,
		Name:           "Automatic checkpoint",
		Description:    "Iteration created by the scheduler after change or age thresholds were exceeded",
		Tags:           []string{"automatic"},
		CreateSnapshot: true,
	})
}
