package memory

import (
	"context"
	"reflect"
	"sync"

	"graphitti-backend/application/ports"
	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/errors"
)

// GraphRepository is an in-memory graph store for tests and local
// development
type GraphRepository struct {
	mu            sync.RWMutex
	concepts      map[string]versioning.Concept
	relationships map[string]versioning.Relationship
}

// NewGraphRepository creates an empty in-memory graph
func NewGraphRepository() *GraphRepository {
	return &GraphRepository{
		concepts:      map[string]versioning.Concept{},
		relationships: map[string]versioning.Relationship{},
	}
}

// ExtractState reads the current graph state per the options
func (r *GraphRepository) ExtractState(ctx context.Context, opts ports.ExtractOptions) (*versioning.GraphState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := &versioning.GraphState{}
	if opts.IncludeConcepts {
		for _, c := range r.concepts {
			if !conceptMatchesFilter(c, opts.ConceptFilter) {
				continue
			}
			state.Concepts = append(state.Concepts, c)
		}
	}
	if opts.IncludeRelationships {
		for _, rel := range r.relationships {
			state.Relationships = append(state.Relationships, rel)
		}
	}
	state.Canonicalize()
	return state, nil
}

func conceptMatchesFilter(c versioning.Concept, filter map[string]interface{}) bool {
	for key, want := range filter {
		got, ok := c.Attributes[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// Counts returns the current concept and relationship totals
func (r *GraphRepository) Counts(ctx context.Context) (int, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.concepts), len(r.relationships), nil
}

// UpsertConcept creates or replaces a concept
func (r *GraphRepository) UpsertConcept(ctx context.Context, concept versioning.Concept) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.concepts[concept.ID] = concept
	return nil
}

// DeleteConcept removes a concept by id
func (r *GraphRepository) DeleteConcept(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.concepts[id]; !ok {
		return errors.NewNotFoundError("concept", id)
	}
	delete(r.concepts, id)
	return nil
}

// UpsertRelationship creates or replaces a relationship
func (r *GraphRepository) UpsertRelationship(ctx context.Context, relationship versioning.Relationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.relationships[relationship.ID] = relationship
	return nil
}

// DeleteRelationship removes a relationship by id
func (r *GraphRepository) DeleteRelationship(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.relationships[id]; !ok {
		return errors.NewNotFoundError("relationship", id)
	}
	delete(r.relationships, id)
	return nil
}
