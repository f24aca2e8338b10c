package versioning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"reflect"
	"sort"
)

// Concept is the versioned view of a graph node. Attributes hold whatever
// the analysis pipeline produced; this subsystem treats them as opaque.
type Concept struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Relationship is the versioned view of a graph edge
type Relationship struct {
	ID         string                 `json:"id"`
	SourceID   string                 `json:"source_id"`
	TargetID   string                 `json:"target_id"`
	Type       string                 `json:"type"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// GraphState is a point-in-time extraction of the graph, the unit snapshots
// persist and restores diff against
type GraphState struct {
	Concepts      []Concept      `json:"concepts"`
	Relationships []Relationship `json:"relationships"`
}

// Canonicalize sorts concepts and relationships by id so that serialization
// and checksums are deterministic regardless of extraction order
func (s *GraphState) Canonicalize() {
	sort.Slice(s.Concepts, func(i, j int) bool {
		return s.Concepts[i].ID < s.Concepts[j].ID
	})
	sort.Slice(s.Relationships, func(i, j int) bool {
		return s.Relationships[i].ID < s.Relationships[j].ID
	})
}

// Serialize returns the canonical JSON encoding of the state
func (s *GraphState) Serialize() ([]byte, error) {
	s.Canonicalize()
	return json.Marshal(s)
}

// Checksum hashes the canonical serialization. Two states with the same
// entities always produce the same checksum.
func (s *GraphState) Checksum() (string, error) {
	data, err := s.Serialize()
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// ParseGraphState decodes a serialized snapshot payload
func ParseGraphState(data []byte) (*GraphState, error) {
	var state GraphState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GraphDiff is the set-difference between a current state and a target
// state, computed independently for concepts and relationships by entity id.
// Add/Update/Remove are the operations that transform current into target.
type GraphDiff struct {
	ConceptsToAdd         []Concept      `json:"concepts_to_add"`
	ConceptsToUpdate      []Concept      `json:"concepts_to_update"`
	ConceptsToRemove      []Concept      `json:"concepts_to_remove"`
	RelationshipsToAdd    []Relationship `json:"relationships_to_add"`
	RelationshipsToUpdate []Relationship `json:"relationships_to_update"`
	RelationshipsToRemove []Relationship `json:"relationships_to_remove"`
}

// TotalOperations returns the number of mutations the diff represents
func (d *GraphDiff) TotalOperations() int {
	return len(d.ConceptsToAdd) + len(d.ConceptsToUpdate) + len(d.ConceptsToRemove) +
		len(d.RelationshipsToAdd) + len(d.RelationshipsToUpdate) + len(d.RelationshipsToRemove)
}

// IsEmpty reports whether the two states already match
func (d *GraphDiff) IsEmpty() bool {
	return d.TotalOperations() == 0
}

// Counts summarizes the diff for API responses
func (d *GraphDiff) Counts() map[string]int {
	return map[string]int{
		"concepts_to_add":         len(d.ConceptsToAdd),
		"concepts_to_update":      len(d.ConceptsToUpdate),
		"concepts_to_remove":      len(d.ConceptsToRemove),
		"relationships_to_add":    len(d.RelationshipsToAdd),
		"relationships_to_update": len(d.RelationshipsToUpdate),
		"relationships_to_remove": len(d.RelationshipsToRemove),
	}
}

// ComputeDiff computes the delta that would transform current into target.
// Diffing a state against itself yields an empty diff.
func ComputeDiff(current, target *GraphState) *GraphDiff {
	diff := &GraphDiff{}

	currentConcepts := make(map[string]Concept, len(current.Concepts))
	for _, c := range current.Concepts {
		currentConcepts[c.ID] = c
	}
	targetConcepts := make(map[string]Concept, len(target.Concepts))
	for _, c := range target.Concepts {
		targetConcepts[c.ID] = c
	}

	for _, c := range target.Concepts {
		existing, ok := currentConcepts[c.ID]
		if !ok {
			diff.ConceptsToAdd = append(diff.ConceptsToAdd, c)
		} else if !reflect.DeepEqual(existing, c) {
			diff.ConceptsToUpdate = append(diff.ConceptsToUpdate, c)
		}
	}
	for _, c := range current.Concepts {
		if _, ok := targetConcepts[c.ID]; !ok {
			diff.ConceptsToRemove = append(diff.ConceptsToRemove, c)
		}
	}

	currentRels := make(map[string]Relationship, len(current.Relationships))
	for _, r := range current.Relationships {
		currentRels[r.ID] = r
	}
	targetRels := make(map[string]Relationship, len(target.Relationships))
	for _, r := range target.Relationships {
		targetRels[r.ID] = r
	}

	for _, r := range target.Relationships {
		existing, ok := currentRels[r.ID]
		if !ok {
			diff.RelationshipsToAdd = append(diff.RelationshipsToAdd, r)
		} else if !reflect.DeepEqual(existing, r) {
			diff.RelationshipsToUpdate = append(diff.RelationshipsToUpdate, r)
		}
	}
	for _, r := range current.Relationships {
		if _, ok := targetRels[r.ID]; !ok {
			diff.RelationshipsToRemove = append(diff.RelationshipsToRemove, r)
		}
	}

	return diff
}
