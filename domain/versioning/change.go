package versioning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"graphitti-backend/pkg/errors"
)

// ChangeType represents the type of a tracked change
type ChangeType string

const (
	ChangeTypeConceptCreated      ChangeType = "concept_created"
	ChangeTypeConceptUpdated      ChangeType = "concept_updated"
	ChangeTypeConceptDeleted      ChangeType = "concept_deleted"
	ChangeTypeRelationshipCreated ChangeType = "relationship_created"
	ChangeTypeRelationshipUpdated ChangeType = "relationship_updated"
	ChangeTypeRelationshipDeleted ChangeType = "relationship_deleted"
	ChangeTypeBatchUpdate         ChangeType = "batch_update"
	ChangeTypeSchemaMigration     ChangeType = "schema_migration"
	ChangeTypeDataImport          ChangeType = "data_import"
	ChangeTypeAutoEnhancement     ChangeType = "automated_enhancement"
)

var changeTypes = map[ChangeType]bool{
	ChangeTypeConceptCreated:      true,
	ChangeTypeConceptUpdated:      true,
	ChangeTypeConceptDeleted:      true,
	ChangeTypeRelationshipCreated: true,
	ChangeTypeRelationshipUpdated: true,
	ChangeTypeRelationshipDeleted: true,
	ChangeTypeBatchUpdate:         true,
	ChangeTypeSchemaMigration:     true,
	ChangeTypeDataImport:          true,
	ChangeTypeAutoEnhancement:     true,
}

// ParseChangeType validates a change type string
func ParseChangeType(s string) (ChangeType, error) {
	ct := ChangeType(s)
	if !changeTypes[ct] {
		return "", errors.NewInvalidArgumentError("unknown change type: " + s)
	}
	return ct, nil
}

// EntityType identifies what kind of graph entity a change touched
type EntityType string

const (
	EntityTypeConcept      EntityType = "concept"
	EntityTypeRelationship EntityType = "relationship"
)

// ParseEntityType validates an entity type string
func ParseEntityType(s string) (EntityType, error) {
	et := EntityType(s)
	if et != EntityTypeConcept && et != EntityTypeRelationship {
		return "", errors.NewInvalidArgumentError("unknown entity type: " + s)
	}
	return et, nil
}

// ChangeRecord is an append-only audit log entry for one mutation to a
// concept or relationship
type ChangeRecord struct {
	ID         string                 `json:"id"`
	Type       ChangeType             `json:"type"`
	Timestamp  time.Time              `json:"timestamp"`
	EntityID   string                 `json:"entity_id"`
	EntityType EntityType             `json:"entity_type"`
	OldValue   map[string]interface{} `json:"old_value,omitempty"`
	NewValue   map[string]interface{} `json:"new_value,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Source     string                 `json:"source"`
	UserID     string                 `json:"user_id,omitempty"`
	SessionID  string                 `json:"session_id"`
	BatchID    string                 `json:"batch_id,omitempty"`
	Checksum   string                 `json:"checksum"`
}

// ComputeChecksum derives the change checksum from entity id, entity type,
// change type and the new value. json.Marshal sorts map keys, so identical
// inputs always hash to the same value.
func ComputeChecksum(entityID string, entityType EntityType, changeType ChangeType, newValue map[string]interface{}) (string, error) {
	payload := struct {
		EntityID   string                 `json:"entity_id"`
		EntityType EntityType             `json:"entity_type"`
		ChangeType ChangeType             `json:"change_type"`
		NewValue   map[string]interface{} `json:"new_value"`
	}{
		EntityID:   entityID,
		EntityType: entityType,
		ChangeType: changeType,
		NewValue:   newValue,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
