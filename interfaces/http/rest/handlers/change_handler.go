package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"graphitti-backend/application/ports"
	"graphitti-backend/application/services"
	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/common"
	"graphitti-backend/pkg/errors"
	"graphitti-backend/pkg/utils"

	"go.uber.org/zap"
)

// ChangeHandler handles change log HTTP requests
type ChangeHandler struct {
	tracker *services.ChangeTracker
	logger  *zap.Logger
}

// NewChangeHandler creates a new change handler
func NewChangeHandler(tracker *services.ChangeTracker, logger *zap.Logger) *ChangeHandler {
	return &ChangeHandler{
		tracker: tracker,
		logger:  logger,
	}
}

// TrackChangeRequest is the request body for recording one change
type TrackChangeRequest struct {
	Type       string                 `json:"type" validate:"required"`
	EntityID   string                 `json:"entity_id" validate:"required,max=200"`
	EntityType string                 `json:"entity_type" validate:"required"`
	OldValue   map[string]interface{} `json:"old_value,omitempty"`
	NewValue   map[string]interface{} `json:"new_value,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Source     string                 `json:"source,omitempty" validate:"omitempty,max=100"`
	BatchID    string                 `json:"batch_id,omitempty"`
}

// TrackChange handles POST /changes
func (h *ChangeHandler) TrackChange(w http.ResponseWriter, r *http.Request) {
	var req TrackChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondAppError(w, errors.NewInvalidArgumentError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondAppError(w, errors.NewInvalidArgumentError("validation error: "+err.Error()))
		return
	}

	changeType, err := versioning.ParseChangeType(req.Type)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	entityType, err := versioning.ParseEntityType(req.EntityType)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	userID, _ := common.GetUserID(r.Context())
	in := services.TrackChangeInput{
		Type:       changeType,
		EntityID:   req.EntityID,
		EntityType: entityType,
		OldValue:   req.OldValue,
		NewValue:   req.NewValue,
		Metadata:   req.Metadata,
		Source:     req.Source,
		UserID:     userID,
	}
	if req.BatchID != "" {
		in.Batch = &services.BatchHandle{ID: req.BatchID}
	}

	changeID, err := h.tracker.TrackChange(r.Context(), in)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, map[string]string{"change_id": changeID})
}

// ListChanges handles GET /changes. Filters are bound to whitelisted query
// parameters only.
func (h *ChangeHandler) ListChanges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := ports.ChangeFilter{
		EntityID:  q.Get("entity_id"),
		BatchID:   q.Get("batch_id"),
		SessionID: q.Get("session_id"),
		Limit:     queryInt(r, "limit", 100),
	}

	if raw := q.Get("entity_type"); raw != "" {
		entityType, err := versioning.ParseEntityType(raw)
		if err != nil {
			common.RespondAppError(w, err)
			return
		}
		filter.EntityType = entityType
	}
	if raw := q.Get("type"); raw != "" {
		changeType, err := versioning.ParseChangeType(raw)
		if err != nil {
			common.RespondAppError(w, err)
			return
		}
		filter.ChangeType = changeType
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.RespondAppError(w, errors.NewInvalidArgumentError("invalid since timestamp: "+raw))
			return
		}
		filter.Since = &since
	}
	if raw := q.Get("until"); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.RespondAppError(w, errors.NewInvalidArgumentError("invalid until timestamp: "+raw))
			return
		}
		filter.Until = &until
	}

	records, err := h.tracker.ListChanges(r.Context(), filter)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, records)
}
