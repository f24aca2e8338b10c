package versioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeChecksum_Deterministic(t *testing.T) {
	value := map[string]interface{}{
		"name":  "quantum computing",
		"score": 0.92,
		"tags":  []interface{}{"physics", "computing"},
	}

	first, err := ComputeChecksum("concept-1", EntityTypeConcept, ChangeTypeConceptCreated, value)
	require.NoError(t, err)

	second, err := ComputeChecksum("concept-1", EntityTypeConcept, ChangeTypeConceptCreated, map[string]interface{}{
		"tags":  []interface{}{"physics", "computing"},
		"score": 0.92,
		"name":  "quantum computing",
	})
	require.NoError(t, err)

	assert.Equal(t, first, second, "identical payloads must hash identically regardless of key order")
	assert.Len(t, first, 64)
}

func TestComputeChecksum_SensitiveToInputs(t *testing.T) {
	base, err := ComputeChecksum("concept-1", EntityTypeConcept, ChangeTypeConceptCreated, nil)
	require.NoError(t, err)

	otherEntity, err := ComputeChecksum("concept-2", EntityTypeConcept, ChangeTypeConceptCreated, nil)
	require.NoError(t, err)
	assert.NotEqual(t, base, otherEntity)

	otherType, err := ComputeChecksum("concept-1", EntityTypeConcept, ChangeTypeConceptDeleted, nil)
	require.NoError(t, err)
	assert.NotEqual(t, base, otherType)
}

func TestParseChangeType(t *testing.T) {
	ct, err := ParseChangeType("concept_created")
	require.NoError(t, err)
	assert.Equal(t, ChangeTypeConceptCreated, ct)

	_, err = ParseChangeType("concept_exploded")
	assert.Error(t, err)

	_, err = ParseChangeType("")
	assert.Error(t, err)
}

func TestParseEntityType(t *testing.T) {
	et, err := ParseEntityType("relationship")
	require.NoError(t, err)
	assert.Equal(t, EntityTypeRelationship, et)

	_, err = ParseEntityType("node")
	assert.Error(t, err)
}

func TestParseBatchStatus(t *testing.T) {
	for _, valid := range []string{"active", "completed", "failed", "cancelled"} {
		_, err := ParseBatchStatus(valid)
		assert.NoError(t, err, valid)
	}

	_, err := ParseBatchStatus("paused")
	assert.Error(t, err)
}

func TestParseSnapshotType(t *testing.T) {
	st, err := ParseSnapshotType("milestone")
	require.NoError(t, err)
	assert.Equal(t, SnapshotTypeMilestone, st)

	_, err = ParseSnapshotType("hourly_backup")
	assert.Error(t, err)
}
