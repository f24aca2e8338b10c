package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/errors"
)

// IterationRepository is an in-memory iteration store for tests and local
// development
type IterationRepository struct {
	mu         sync.RWMutex
	iterations map[string]*versioning.Iteration // keyed by version
}

// NewIterationRepository creates an empty in-memory iteration store
func NewIterationRepository() *IterationRepository {
	return &IterationRepository{iterations: map[string]*versioning.Iteration{}}
}

// Save persists an iteration
func (r *IterationRepository) Save(ctx context.Context, iteration *versioning.Iteration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.iterations[iteration.Version]; exists {
		return errors.NewInvalidArgumentError("iteration version already exists: " + iteration.Version)
	}
	copied := *iteration
	r.iterations[iteration.Version] = &copied
	return nil
}

// GetByVersion fetches an iteration by its version
func (r *IterationRepository) GetByVersion(ctx context.Context, version string) (*versioning.Iteration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	iteration, ok := r.iterations[version]
	if !ok {
		return nil, errors.NewNotFoundError("iteration", version)
	}
	copied := *iteration
	return &copied, nil
}

// VersionExists reports whether an iteration with the version exists
func (r *IterationRepository) VersionExists(ctx context.Context, version string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.iterations[version]
	return ok, nil
}

// GetLatest returns the most recently created iteration, or nil
func (r *IterationRepository) GetLatest(ctx context.Context) (*versioning.Iteration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *versioning.Iteration
	for _, iteration := range r.iterations {
		if latest == nil || iteration.CreatedAt.After(latest.CreatedAt) {
			latest = iteration
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

// List returns recent iterations, newest first
func (r *IterationRepository) List(ctx context.Context, limit int) ([]*versioning.Iteration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*versioning.Iteration, 0, len(r.iterations))
	for _, iteration := range r.iterations {
		copied := *iteration
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListBetween returns iterations created within [start, end], oldest first
func (r *IterationRepository) ListBetween(ctx context.Context, start, end time.Time) ([]*versioning.Iteration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*versioning.Iteration
	for _, iteration := range r.iterations {
		if iteration.CreatedAt.Before(start) || iteration.CreatedAt.After(end) {
			continue
		}
		copied := *iteration
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Count returns the number of iterations
func (r *IterationRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.iterations), nil
}
