package memory

import (
	"context"
	"sync"

	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/errors"
)

// EvolutionMetricsRepository is an in-memory metrics store for tests and
// local development
type EvolutionMetricsRepository struct {
	mu      sync.RWMutex
	metrics map[string]*versioning.EvolutionMetrics // keyed by iteration id
}

// NewEvolutionMetricsRepository creates an empty in-memory metrics store
func NewEvolutionMetricsRepository() *EvolutionMetricsRepository {
	return &EvolutionMetricsRepository{metrics: map[string]*versioning.EvolutionMetrics{}}
}

// Save persists a metrics row
func (r *EvolutionMetricsRepository) Save(ctx context.Context, metrics *versioning.EvolutionMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *metrics
	r.metrics[metrics.IterationID] = &copied
	return nil
}

// GetByIterationID fetches the metrics row for an iteration
func (r *EvolutionMetricsRepository) GetByIterationID(ctx context.Context, iterationID string) (*versioning.EvolutionMetrics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	metrics, ok := r.metrics[iterationID]
	if !ok {
		return nil, errors.NewNotFoundError("evolution metrics", iterationID)
	}
	copied := *metrics
	return &copied, nil
}
