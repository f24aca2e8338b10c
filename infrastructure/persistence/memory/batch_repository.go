package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/errors"
)

// BatchRepository is an in-memory batch store for tests and local
// development
type BatchRepository struct {
	mu      sync.RWMutex
	batches map[string]*versioning.Batch
}

// NewBatchRepository creates an empty in-memory batch store
func NewBatchRepository() *BatchRepository {
	return &BatchRepository{batches: map[string]*versioning.Batch{}}
}

// Save persists a batch
func (r *BatchRepository) Save(ctx context.Context, batch *versioning.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *batch
	r.batches[batch.ID] = &copied
	return nil
}

// GetByID fetches a batch by id
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*versioning.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	batch, ok := r.batches[id]
	if !ok {
		return nil, errors.NewNotFoundError("batch", id)
	}
	copied := *batch
	return &copied, nil
}

// IncrementChangeCount atomically bumps the batch's change counter
func (r *BatchRepository) IncrementChangeCount(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch, ok := r.batches[id]
	if !ok {
		return errors.NewNotFoundError("batch", id)
	}
	batch.ChangeCount++
	return nil
}

// SetStatus transitions the batch and stamps its completion time
func (r *BatchRepository) SetStatus(ctx context.Context, id string, status versioning.BatchStatus, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	batch, ok := r.batches[id]
	if !ok {
		return errors.NewNotFoundError("batch", id)
	}
	batch.Status = status
	batch.CompletedAt = &completedAt
	return nil
}

// List returns recent batches, newest first
func (r *BatchRepository) List(ctx context.Context, limit int) ([]*versioning.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*versioning.Batch, 0, len(r.batches))
	for _, batch := range r.batches {
		copied := *batch
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountFailedSince counts batches that failed after the given time
func (r *BatchRepository) CountFailedSince(ctx context.Context, since time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, batch := range r.batches {
		if batch.Status == versioning.BatchStatusFailed && batch.CompletedAt != nil && batch.CompletedAt.After(since) {
			count++
		}
	}
	return count, nil
}
