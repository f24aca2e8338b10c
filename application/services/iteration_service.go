package services

import (
	"context"
	"fmt"
	"time"

	"graphitti-backend/application/ports"
	"graphitti-backend/domain/scoring"
	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IterationService creates named milestones and computes their lineage and
// derived quality metrics. Scoring formulas live behind strategies so they
// stay testable apart from persistence.
type IterationService struct {
	iterationRepo ports.IterationRepository
	metricsRepo   ports.EvolutionMetricsRepository
	changeRepo    ports.ChangeRecordRepository
	graphRepo     ports.GraphRepository
	snapshots     *SnapshotService
	stability     scoring.StabilityStrategy
	quality       scoring.QualityStrategy
	evolution     scoring.EvolutionStrategy
	publisher     ports.EventPublisher
	logger        *zap.Logger
}

// NewIterationService creates a new iteration service
func NewIterationService(
	iterationRepo ports.IterationRepository,
	metricsRepo ports.EvolutionMetricsRepository,
	changeRepo ports.ChangeRecordRepository,
	graphRepo ports.GraphRepository,
	snapshots *SnapshotService,
	stability scoring.StabilityStrategy,
	quality scoring.QualityStrategy,
	evolution scoring.EvolutionStrategy,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *IterationService {
	return &IterationService{
		iterationRepo: iterationRepo,
		metricsRepo:   metricsRepo,
		changeRepo:    changeRepo,
		graphRepo:     graphRepo,
		snapshots:     snapshots,
		stability:     stability,
		quality:       quality,
		evolution:     evolution,
		publisher:     publisher,
		logger:        logger,
	}
}

// CreateIterationInput describes a new milestone
type CreateIterationInput struct {
	Version        string
	Name           string
	Description    string
	Features       []string
	Tags           []string
	CreateSnapshot bool
}

// CreateIteration persists a new milestone. The version must be globally
// unique; duplicates fail before anything is persisted. Unless skipped, a
// milestone snapshot is created first and linked to the iteration.
func (s *IterationService) CreateIteration(ctx context.Context, in CreateIterationInput) (*versioning.Iteration, error) {
	if in.Version == "" {
		return nil, errors.NewInvalidArgumentError("iteration version is required")
	}
	exists, err := s.iterationRepo.VersionExists(ctx, in.Version)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.NewInvalidArgumentError("iteration version already exists: " + in.Version)
	}

	now := time.Now().UTC()

	var snapshotID string
	if in.CreateSnapshot {
		snapshot, err := s.snapshots.CreateSnapshot(ctx, CreateSnapshotInput{
			Type:                 versioning.SnapshotTypeMilestone,
			Name:                 in.Name,
			Description:          fmt.Sprintf("Milestone snapshot for iteration %s", in.Version),
			Tags:                 append([]string{"iteration:" + in.Version}, in.Tags...),
			Metadata:             map[string]interface{}{"iteration_version": in.Version},
			IncludeConcepts:      true,
			IncludeRelationships: true,
		})
		if err != nil {
			return nil, err
		}
		snapshotID = snapshot.ID
	}

	parent, err := s.iterationRepo.GetLatest(ctx)
	if err != nil {
		return nil, err
	}

	var parentID string
	changesSinceParent := 0
	deletionRatio := 0.0
	timeSinceParent := time.Duration(0)
	if parent != nil {
		parentID = parent.ID
		timeSinceParent = now.Sub(parent.CreatedAt)

		changesSinceParent, err = s.changeRepo.CountSince(ctx, parent.CreatedAt)
		if err != nil {
			return nil, err
		}

		since := parent.CreatedAt
		records, err := s.changeRepo.List(ctx, ports.ChangeFilter{Since: &since})
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			deletions := 0
			for _, r := range records {
				if r.Type == versioning.ChangeTypeConceptDeleted || r.Type == versioning.ChangeTypeRelationshipDeleted {
					deletions++
				}
			}
			deletionRatio = float64(deletions) / float64(len(records))
		}
	}

	state, err := s.graphRepo.ExtractState(ctx, ports.ExtractOptions{
		IncludeConcepts:      true,
		IncludeRelationships: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to extract graph state")
	}

	stabilityRating := s.stability.Score(scoring.StabilityInputs{
		ChangesSinceParent: changesSinceParent,
		TimeSinceParent:    timeSinceParent,
		DeletionRatio:      deletionRatio,
	})

	iteration := &versioning.Iteration{
		ID:                 uuid.New().String(),
		Version:            in.Version,
		Name:               in.Name,
		Description:        in.Description,
		CreatedAt:          now,
		SnapshotID:         snapshotID,
		ParentIterationID:  parentID,
		ChangesSinceParent: changesSinceParent,
		Features:           in.Features,
		PerformanceMetrics: map[string]interface{}{
			"concept_count":        len(state.Concepts),
			"relationship_count":   len(state.Relationships),
			"changes_since_parent": changesSinceParent,
		},
		QualityScores:   s.quality.Scores(state),
		StabilityRating: versioning.ClampRating(stabilityRating),
		Tags:            in.Tags,
	}

	if err := s.iterationRepo.Save(ctx, iteration); err != nil {
		return nil, err
	}

	if err := s.computeEvolutionMetrics(ctx, iteration, parent, state, deletionRatio); err != nil {
		// Evolution metrics are derived and advisory; their failure does not
		// invalidate the persisted iteration.
		s.logger.Warn("Failed to compute evolution metrics",
			zap.Error(err),
			zap.String("iterationID", iteration.ID),
		)
	}

	s.logger.Info("Created iteration",
		zap.String("iterationID", iteration.ID),
		zap.String("version", iteration.Version),
		zap.String("parentID", parentID),
		zap.Int("changesSinceParent", changesSinceParent),
		zap.Float64("stability", iteration.StabilityRating),
	)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, "graphitti.iteration.created", iteration); err != nil {
			s.logger.Warn("Failed to publish iteration event", zap.Error(err))
		}
	}

	return iteration, nil
}

// computeEvolutionMetrics diffs this iteration's snapshot state against the
// parent's and persists one derived metrics row
func (s *IterationService) computeEvolutionMetrics(ctx context.Context, iteration *versioning.Iteration, parent *versioning.Iteration, state *versioning.GraphState, deletionRatio float64) error {
	var diff *versioning.GraphDiff
	if parent != nil && parent.SnapshotID != "" {
		parentSnapshot, err := s.snapshots.GetSnapshot(ctx, parent.SnapshotID)
		if err != nil {
			return err
		}
		parentState, err := s.snapshots.LoadState(ctx, parentSnapshot)
		if err != nil {
			return err
		}
		diff = versioning.ComputeDiff(parentState, state)
	} else {
		diff = versioning.ComputeDiff(&versioning.GraphState{}, state)
	}

	figures := s.evolution.Compute(state, diff)

	metrics := &versioning.EvolutionMetrics{
		ID:                    uuid.New().String(),
		IterationID:           iteration.ID,
		SnapshotID:            iteration.SnapshotID,
		ComputedAt:            time.Now().UTC(),
		ConceptsAdded:         len(diff.ConceptsToAdd),
		ConceptsModified:      len(diff.ConceptsToUpdate),
		ConceptsRemoved:       len(diff.ConceptsToRemove),
		RelationshipsAdded:    len(diff.RelationshipsToAdd),
		RelationshipsModified: len(diff.RelationshipsToUpdate),
		RelationshipsRemoved:  len(diff.RelationshipsToRemove),
		AvgConnectivity:       figures.AvgConnectivity,
		GraphDensity:          figures.GraphDensity,
		ClusteringCoefficient: figures.ClusteringCoefficient,
		DiversityIndex:        figures.DiversityIndex,
		InnovationRate:        figures.InnovationRate,
		StabilityScore:        iteration.StabilityRating,
	}

	return s.metricsRepo.Save(ctx, metrics)
}

// mirrorChangeType swaps creations and deletions for reversed comparisons
var mirrorChangeType = map[versioning.ChangeType]versioning.ChangeType{
	versioning.ChangeTypeConceptCreated:      versioning.ChangeTypeConceptDeleted,
	versioning.ChangeTypeConceptDeleted:      versioning.ChangeTypeConceptCreated,
	versioning.ChangeTypeRelationshipCreated: versioning.ChangeTypeRelationshipDeleted,
	versioning.ChangeTypeRelationshipDeleted: versioning.ChangeTypeRelationshipCreated,
}

// CompareIterations aggregates the change log between two iterations'
// creation times. Comparing (A,B) and (B,A) yields mirrored counts:
// creations and deletions swap, updates stay equal.
func (s *IterationService) CompareIterations(ctx context.Context, fromVersion, toVersion string, detailed bool) (*versioning.IterationComparison, error) {
	from, err := s.iterationRepo.GetByVersion(ctx, fromVersion)
	if err != nil {
		return nil, err
	}
	to, err := s.iterationRepo.GetByVersion(ctx, toVersion)
	if err != nil {
		return nil, err
	}

	start, end := from.CreatedAt, to.CreatedAt
	reversed := false
	if start.After(end) {
		start, end = end, start
		reversed = true
	}

	records, err := s.changeRepo.List(ctx, ports.ChangeFilter{Since: &start, Until: &end})
	if err != nil {
		return nil, err
	}

	histogram := make(map[versioning.ChangeType]int)
	for _, r := range records {
		t := r.Type
		if reversed {
			if mirrored, ok := mirrorChangeType[t]; ok {
				t = mirrored
			}
		}
		histogram[t]++
	}

	comparison := &versioning.IterationComparison{
		FromVersion:    from.Version,
		ToVersion:      to.Version,
		FromCreatedAt:  from.CreatedAt,
		ToCreatedAt:    to.CreatedAt,
		TotalChanges:   len(records),
		ChangesByType:  histogram,
		StabilityDelta: to.StabilityRating - from.StabilityRating,
	}

	if detailed {
		comparison.Changes = records
		if from.SnapshotID != "" && to.SnapshotID != "" {
			diff, err := s.snapshotDiff(ctx, from.SnapshotID, to.SnapshotID)
			if err != nil {
				return nil, err
			}
			comparison.SnapshotDiff = diff
		}
	}

	return comparison, nil
}

func (s *IterationService) snapshotDiff(ctx context.Context, fromSnapshotID, toSnapshotID string) (*versioning.GraphDiff, error) {
	fromSnapshot, err := s.snapshots.GetSnapshot(ctx, fromSnapshotID)
	if err != nil {
		return nil, err
	}
	toSnapshot, err := s.snapshots.GetSnapshot(ctx, toSnapshotID)
	if err != nil {
		return nil, err
	}

	fromState, err := s.snapshots.LoadState(ctx, fromSnapshot)
	if err != nil {
		return nil, err
	}
	toState, err := s.snapshots.LoadState(ctx, toSnapshot)
	if err != nil {
		return nil, err
	}

	return versioning.ComputeDiff(fromState, toState), nil
}

// GetIteration fetches an iteration by version
func (s *IterationService) GetIteration(ctx context.Context, version string) (*versioning.Iteration, error) {
	return s.iterationRepo.GetByVersion(ctx, version)
}

// ListIterations returns recent iterations, newest first
func (s *IterationService) ListIterations(ctx context.Context, limit int) ([]*versioning.Iteration, error) {
	return s.iterationRepo.List(ctx, limit)
}

// GetEvolutionMetrics fetches the derived metrics row for an iteration
func (s *IterationService) GetEvolutionMetrics(ctx context.Context, iterationID string) (*versioning.EvolutionMetrics, error) {
	return s.metricsRepo.GetByIterationID(ctx, iterationID)
}
