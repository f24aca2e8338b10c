package services

import (
	"context"
	"time"

	"graphitti-backend/application/ports"
	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/common"
	"graphitti-backend/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BatchHandle identifies an active batch. It is returned by StartBatch and
// threaded explicitly through subsequent calls, so two sessions served by the
// same tracker instance can never interfere with each other's batches.
type BatchHandle struct {
	ID string
}

// ChangeTracker is the audit log for graph mutations plus the batch
// coordinator. It assumes the caller already applied the mutation elsewhere;
// persistence failures propagate untouched.
type ChangeTracker struct {
	changeRepo ports.ChangeRecordRepository
	batchRepo  ports.BatchRepository
	logger     *zap.Logger
}

// NewChangeTracker creates a new change tracker
func NewChangeTracker(
	changeRepo ports.ChangeRecordRepository,
	batchRepo ports.BatchRepository,
	logger *zap.Logger,
) *ChangeTracker {
	return &ChangeTracker{
		changeRepo: changeRepo,
		batchRepo:  batchRepo,
		logger:     logger,
	}
}

// TrackChangeInput carries one mutation to record
type TrackChangeInput struct {
	Type       versioning.ChangeType
	EntityID   string
	EntityType versioning.EntityType
	OldValue   map[string]interface{}
	NewValue   map[string]interface{}
	Metadata   map[string]interface{}
	Source     string
	UserID     string
	Batch      *BatchHandle
}

// TrackChange appends a change record tagged with the caller's session and,
// when a batch handle is supplied, the batch id. The batch's change counter
// is incremented atomically alongside.
func (s *ChangeTracker) TrackChange(ctx context.Context, in TrackChangeInput) (string, error) {
	if in.EntityID == "" {
		return "", errors.NewInvalidArgumentError("entity id is required")
	}

	checksum, err := versioning.ComputeChecksum(in.EntityID, in.EntityType, in.Type, in.NewValue)
	if err != nil {
		return "", errors.Wrap(err, "failed to compute change checksum")
	}

	record := &versioning.ChangeRecord{
		ID:         uuid.New().String(),
		Type:       in.Type,
		Timestamp:  time.Now().UTC(),
		EntityID:   in.EntityID,
		EntityType: in.EntityType,
		OldValue:   in.OldValue,
		NewValue:   in.NewValue,
		Metadata:   in.Metadata,
		Source:     in.Source,
		UserID:     in.UserID,
		SessionID:  common.GetSessionID(ctx),
		Checksum:   checksum,
	}
	if in.Batch != nil {
		record.BatchID = in.Batch.ID
	}

	if err := s.changeRepo.Save(ctx, record); err != nil {
		return "", err
	}

	if in.Batch != nil {
		if err := s.batchRepo.IncrementChangeCount(ctx, in.Batch.ID); err != nil {
			return "", err
		}
	}

	s.logger.Debug("Tracked change",
		zap.String("changeID", record.ID),
		zap.String("type", string(record.Type)),
		zap.String("entityID", record.EntityID),
		zap.String("batchID", record.BatchID),
	)

	return record.ID, nil
}

// StartBatchInput names a new unit of work
type StartBatchInput struct {
	Name        string
	Description string
	Source      string
	Metadata    map[string]interface{}
	UserID      string
}

// StartBatch creates an active batch and returns its handle
func (s *ChangeTracker) StartBatch(ctx context.Context, in StartBatchInput) (*BatchHandle, error) {
	if in.Name == "" {
		return nil, errors.NewInvalidArgumentError("batch name is required")
	}

	batch := &versioning.Batch{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Description: in.Description,
		StartedAt:   time.Now().UTC(),
		Status:      versioning.BatchStatusActive,
		Source:      in.Source,
		Metadata:    in.Metadata,
		UserID:      in.UserID,
		SessionID:   common.GetSessionID(ctx),
	}

	if err := s.batchRepo.Save(ctx, batch); err != nil {
		return nil, err
	}

	s.logger.Info("Started batch",
		zap.String("batchID", batch.ID),
		zap.String("name", batch.Name),
	)

	return &BatchHandle{ID: batch.ID}, nil
}

// CompleteBatch marks the batch completed and returns its summary, including
// a histogram of the change types recorded under it
func (s *ChangeTracker) CompleteBatch(ctx context.Context, handle *BatchHandle) (*versioning.BatchSummary, error) {
	if handle == nil || handle.ID == "" {
		return nil, errors.NewNotFoundError("batch", "(no active batch)")
	}
	return s.finishBatch(ctx, handle.ID, versioning.BatchStatusCompleted)
}

// CompleteBatchByID completes a batch addressed by id, for callers that hold
// an id rather than a handle
func (s *ChangeTracker) CompleteBatchByID(ctx context.Context, batchID string) (*versioning.BatchSummary, error) {
	if batchID == "" {
		return nil, errors.NewNotFoundError("batch", "(no active batch)")
	}
	return s.finishBatch(ctx, batchID, versioning.BatchStatusCompleted)
}

// FailBatch marks the batch failed, preserving its recorded changes for audit
func (s *ChangeTracker) FailBatch(ctx context.Context, handle *BatchHandle) error {
	if handle == nil || handle.ID == "" {
		return errors.NewNotFoundError("batch", "(no active batch)")
	}
	_, err := s.finishBatch(ctx, handle.ID, versioning.BatchStatusFailed)
	return err
}

func (s *ChangeTracker) finishBatch(ctx context.Context, batchID string, status versioning.BatchStatus) (*versioning.BatchSummary, error) {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.Status != versioning.BatchStatusActive {
		return nil, errors.NewInvalidArgumentError("batch is not active: " + string(batch.Status))
	}

	completedAt := time.Now().UTC()
	if err := s.batchRepo.SetStatus(ctx, batchID, status, completedAt); err != nil {
		return nil, err
	}

	records, err := s.changeRepo.List(ctx, ports.ChangeFilter{BatchID: batchID})
	if err != nil {
		return nil, err
	}

	histogram := make(map[versioning.ChangeType]int)
	for _, r := range records {
		histogram[r.Type]++
	}

	summary := &versioning.BatchSummary{
		BatchID:       batchID,
		Name:          batch.Name,
		Status:        status,
		TotalChanges:  len(records),
		ChangesByType: histogram,
		StartedAt:     batch.StartedAt,
		CompletedAt:   completedAt,
		Duration:      completedAt.Sub(batch.StartedAt),
	}

	s.logger.Info("Finished batch",
		zap.String("batchID", batchID),
		zap.String("status", string(status)),
		zap.Int("totalChanges", summary.TotalChanges),
		zap.Duration("duration", summary.Duration),
	)

	return summary, nil
}

// ListChanges returns recent change records matching the filter
func (s *ChangeTracker) ListChanges(ctx context.Context, filter ports.ChangeFilter) ([]*versioning.ChangeRecord, error) {
	return s.changeRepo.List(ctx, filter)
}

// ListBatches returns recent batches
func (s *ChangeTracker) ListBatches(ctx context.Context, limit int) ([]*versioning.Batch, error) {
	return s.batchRepo.List(ctx, limit)
}
