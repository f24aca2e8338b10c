package services

import (
	"context"
	"fmt"
	"time"

	"graphitti-backend/application/ports"
	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/common"
	"graphitti-backend/pkg/errors"

	"go.uber.org/zap"
)

// restoreLockResource names the advisory lock serializing graph-wide
// restores against each other
const restoreLockResource = "graph-restore"

const restoreLockTTL = 10 * time.Minute

// RestoreService rolls the graph back to a stored snapshot, or previews the
// delta without touching anything
type RestoreService struct {
	snapshots *SnapshotService
	tracker   *ChangeTracker
	graphRepo ports.GraphRepository
	lock      ports.AdvisoryLock
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewRestoreService creates a new restore service
func NewRestoreService(
	snapshots *SnapshotService,
	tracker *ChangeTracker,
	graphRepo ports.GraphRepository,
	lock ports.AdvisoryLock,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *RestoreService {
	return &RestoreService{
		snapshots: snapshots,
		tracker:   tracker,
		graphRepo: graphRepo,
		lock:      lock,
		publisher: publisher,
		logger:    logger,
	}
}

// RestoreResult reports what a restoration did, or would do
type RestoreResult struct {
	SnapshotID      string                    `json:"snapshot_id"`
	SnapshotVersion string                    `json:"snapshot_version"`
	DryRun          bool                      `json:"dry_run"`
	Counts          map[string]int            `json:"counts"`
	Diff            *versioning.GraphDiff     `json:"diff,omitempty"`
	BatchSummary    *versioning.BatchSummary  `json:"batch_summary,omitempty"`
}

// RestoreSnapshot computes the delta between current graph state and the
// snapshot. With dryRun it returns the delta without mutating graph state,
// change log or batches. Otherwise it applies every delta entry through the
// normal mutation + change tracking path inside a dedicated batch; a failure
// mid-application marks the batch failed and aborts, so partial application
// is never reported as success.
func (s *RestoreService) RestoreSnapshot(ctx context.Context, snapshotID string, dryRun bool) (*RestoreResult, error) {
	snapshot, err := s.snapshots.GetSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	target, err := s.snapshots.LoadState(ctx, snapshot)
	if err != nil {
		return nil, err
	}

	current, err := s.graphRepo.ExtractState(ctx, ports.ExtractOptions{
		IncludeConcepts:      true,
		IncludeRelationships: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to extract current graph state")
	}

	diff := versioning.ComputeDiff(current, target)

	result := &RestoreResult{
		SnapshotID:      snapshot.ID,
		SnapshotVersion: snapshot.Version,
		DryRun:          dryRun,
		Counts:          diff.Counts(),
		Diff:            diff,
	}

	if dryRun {
		return result, nil
	}

	owner := common.GetSessionID(ctx)
	release, err := s.lock.Acquire(ctx, restoreLockResource, owner, restoreLockTTL)
	if err != nil {
		return nil, errors.Wrap(err, "another restore is in progress")
	}
	defer func() {
		if err := release(ctx); err != nil {
			s.logger.Warn("Failed to release restore lock", zap.Error(err))
		}
	}()

	batch, err := s.tracker.StartBatch(ctx, StartBatchInput{
		Name:        fmt.Sprintf("restore_%s", snapshot.Version),
		Description: fmt.Sprintf("Restoration of snapshot %s", snapshot.ID),
		Source:      "restore",
		Metadata:    map[string]interface{}{"snapshot_id": snapshot.ID},
	})
	if err != nil {
		return nil, err
	}

	if err := s.applyDiff(ctx, current, diff, batch); err != nil {
		if failErr := s.tracker.FailBatch(ctx, batch); failErr != nil {
			s.logger.Error("Failed to mark restore batch as failed", zap.Error(failErr))
		}
		return nil, errors.NewConsistencyError(
			fmt.Sprintf("restore of snapshot %s aborted after partial application", snapshot.ID), err)
	}

	summary, err := s.tracker.CompleteBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	result.BatchSummary = summary

	s.logger.Info("Restored snapshot",
		zap.String("snapshotID", snapshot.ID),
		zap.String("version", snapshot.Version),
		zap.Int("operations", diff.TotalOperations()),
	)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, "graphitti.restore.completed", result); err != nil {
			s.logger.Warn("Failed to publish restore event", zap.Error(err))
		}
	}

	return result, nil
}

// applyDiff applies delta entries one by one, stopping at the first failure.
// Every applied entry goes through the change tracker so the restoration is
// itself auditable.
func (s *RestoreService) applyDiff(ctx context.Context, current *versioning.GraphState, diff *versioning.GraphDiff, batch *BatchHandle) error {
	oldConcepts := make(map[string]versioning.Concept, len(current.Concepts))
	for _, c := range current.Concepts {
		oldConcepts[c.ID] = c
	}
	oldRels := make(map[string]versioning.Relationship, len(current.Relationships))
	for _, r := range current.Relationships {
		oldRels[r.ID] = r
	}

	for _, c := range diff.ConceptsToAdd {
		if err := s.applyConcept(ctx, c, versioning.ChangeTypeConceptCreated, nil, batch); err != nil {
			return err
		}
	}
	for _, c := range diff.ConceptsToUpdate {
		old := conceptValue(oldConcepts[c.ID])
		if err := s.applyConcept(ctx, c, versioning.ChangeTypeConceptUpdated, old, batch); err != nil {
			return err
		}
	}
	for _, c := range diff.ConceptsToRemove {
		if err := s.graphRepo.DeleteConcept(ctx, c.ID); err != nil {
			return err
		}
		if _, err := s.tracker.TrackChange(ctx, TrackChangeInput{
			Type:       versioning.ChangeTypeConceptDeleted,
			EntityID:   c.ID,
			EntityType: versioning.EntityTypeConcept,
			OldValue:   conceptValue(c),
			Source:     "restore",
			Batch:      batch,
		}); err != nil {
			return err
		}
	}

	for _, r := range diff.RelationshipsToAdd {
		if err := s.applyRelationship(ctx, r, versioning.ChangeTypeRelationshipCreated, nil, batch); err != nil {
			return err
		}
	}
	for _, r := range diff.RelationshipsToUpdate {
		old := relationshipValue(oldRels[r.ID])
		if err := s.applyRelationship(ctx, r, versioning.ChangeTypeRelationshipUpdated, old, batch); err != nil {
			return err
		}
	}
	for _, r := range diff.RelationshipsToRemove {
		if err := s.graphRepo.DeleteRelationship(ctx, r.ID); err != nil {
			return err
		}
		if _, err := s.tracker.TrackChange(ctx, TrackChangeInput{
			Type:       versioning.ChangeTypeRelationshipDeleted,
			EntityID:   r.ID,
			EntityType: versioning.EntityTypeRelationship,
			OldValue:   relationshipValue(r),
			Source:     "restore",
			Batch:      batch,
		}); err != nil {
			return err
		}
	}

	return nil
}

func (s *RestoreService) applyConcept(ctx context.Context, c versioning.Concept, changeType versioning.ChangeType, oldValue map[string]interface{}, batch *BatchHandle) error {
	if err := s.graphRepo.UpsertConcept(ctx, c); err != nil {
		return err
	}
	_, err := s.tracker.TrackChange(ctx, TrackChangeInput{
		Type:       changeType,
		EntityID:   c.ID,
		EntityType: versioning.EntityTypeConcept,
		OldValue:   oldValue,
		NewValue:   conceptValue(c),
		Source:     "restore",
		Batch:      batch,
	})
	return err
}

func (s *RestoreService) applyRelationship(ctx context.Context, r versioning.Relationship, changeType versioning.ChangeType, oldValue map[string]interface{}, batch *BatchHandle) error {
	if err := s.graphRepo.UpsertRelationship(ctx, r); err != nil {
		return err
	}
	_, err := s.tracker.TrackChange(ctx, TrackChangeInput{
		Type:       changeType,
		EntityID:   r.ID,
		EntityType: versioning.EntityTypeRelationship,
		OldValue:   oldValue,
		NewValue:   relationshipValue(r),
		Source:     "restore",
		Batch:      batch,
	})
	return err
}

func conceptValue(c versioning.Concept) map[string]interface{} {
	return map[string]interface{}{
		"id":         c.ID,
		"name":       c.Name,
		"attributes": c.Attributes,
	}
}

func relationshipValue(r versioning.Relationship) map[string]interface{} {
	return map[string]interface{}{
		"id":         r.ID,
		"source_id":  r.SourceID,
		"target_id":  r.TargetID,
		"type":       r.Type,
		"attributes": r.Attributes,
	}
}
