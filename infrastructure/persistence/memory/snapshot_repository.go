package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/errors"
)

// SnapshotRepository is an in-memory snapshot row store for tests and local
// development
type SnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*versioning.Snapshot
	order     []string // creation order
}

// NewSnapshotRepository creates an empty in-memory snapshot store
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{snapshots: map[string]*versioning.Snapshot{}}
}

// Save persists a snapshot row
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *versioning.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *snapshot
	if _, exists := r.snapshots[snapshot.ID]; !exists {
		r.order = append(r.order, snapshot.ID)
	}
	r.snapshots[snapshot.ID] = &copied
	return nil
}

// GetByID fetches a snapshot row by id
func (r *SnapshotRepository) GetByID(ctx context.Context, id string) (*versioning.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot, ok := r.snapshots[id]
	if !ok {
		return nil, errors.NewNotFoundError("snapshot", id)
	}
	copied := *snapshot
	return &copied, nil
}

// GetLatest returns the most recently created snapshot, or nil
func (r *SnapshotRepository) GetLatest(ctx context.Context) (*versioning.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		if snapshot, ok := r.snapshots[r.order[i]]; ok {
			copied := *snapshot
			return &copied, nil
		}
	}
	return nil, nil
}

// List returns recent snapshots, newest first
func (r *SnapshotRepository) List(ctx context.Context, limit int) ([]*versioning.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*versioning.Snapshot, 0, len(r.snapshots))
	for _, snapshot := range r.snapshots {
		copied := *snapshot
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteOlderThan removes snapshots created before the cutoff, keeping the
// listed kinds. Returns the deleted rows' storage locators.
func (r *SnapshotRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, keep []versioning.SnapshotType) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keepKinds := map[versioning.SnapshotType]bool{}
	for _, k := range keep {
		keepKinds[k] = true
	}

	var locators []string
	remaining := r.order[:0]
	for _, id := range r.order {
		snapshot := r.snapshots[id]
		if snapshot != nil && snapshot.Timestamp.Before(cutoff) && !keepKinds[snapshot.Type] {
			locators = append(locators, snapshot.StorageLocator)
			delete(r.snapshots, id)
			continue
		}
		remaining = append(remaining, id)
	}
	r.order = remaining
	return locators, nil
}

// Count returns the number of snapshot rows
func (r *SnapshotRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.snapshots), nil
}
