package versioning

import (
	"time"

	"graphitti-backend/pkg/errors"
)

// BatchStatus represents the lifecycle state of a change batch
type BatchStatus string

const (
	BatchStatusActive    BatchStatus = "active"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
	BatchStatusCancelled BatchStatus = "cancelled"
)

// ParseBatchStatus validates a batch status string
func ParseBatchStatus(s string) (BatchStatus, error) {
	bs := BatchStatus(s)
	switch bs {
	case BatchStatusActive, BatchStatusCompleted, BatchStatusFailed, BatchStatusCancelled:
		return bs, nil
	}
	return "", errors.NewInvalidArgumentError("unknown batch status: " + s)
}

// Batch groups a sequence of change records under one named unit of work
type Batch struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Status      BatchStatus            `json:"status"`
	ChangeCount int                    `json:"change_count"`
	Source      string                 `json:"source"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	UserID      string                 `json:"user_id,omitempty"`
	SessionID   string                 `json:"session_id"`
}

// BatchSummary is returned when a batch completes
type BatchSummary struct {
	BatchID       string             `json:"batch_id"`
	Name          string             `json:"name"`
	Status        BatchStatus        `json:"status"`
	TotalChanges  int                `json:"total_changes"`
	ChangesByType map[ChangeType]int `json:"changes_by_type"`
	StartedAt     time.Time          `json:"started_at"`
	CompletedAt   time.Time          `json:"completed_at"`
	Duration      time.Duration      `json:"duration"`
}
