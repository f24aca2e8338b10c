package handlers

import (
	"encoding/json"
	"net/http"

	"graphitti-backend/application/services"
	"graphitti-backend/pkg/common"
	"graphitti-backend/pkg/errors"
	"graphitti-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BatchHandler handles change batch HTTP requests
type BatchHandler struct {
	tracker *services.ChangeTracker
	logger  *zap.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(tracker *services.ChangeTracker, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{
		tracker: tracker,
		logger:  logger,
	}
}

// StartBatchRequest is the request body for starting a batch
type StartBatchRequest struct {
	Name        string                 `json:"name" validate:"required,max=200"`
	Description string                 `json:"description,omitempty" validate:"omitempty,max=2000"`
	Source      string                 `json:"source,omitempty" validate:"omitempty,max=100"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// StartBatch handles POST /batches
func (h *BatchHandler) StartBatch(w http.ResponseWriter, r *http.Request) {
	var req StartBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondAppError(w, errors.NewInvalidArgumentError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondAppError(w, errors.NewInvalidArgumentError("validation error: "+err.Error()))
		return
	}

	userID, _ := common.GetUserID(r.Context())
	handle, err := h.tracker.StartBatch(r.Context(), services.StartBatchInput{
		Name:        req.Name,
		Description: req.Description,
		Source:      req.Source,
		Metadata:    req.Metadata,
		UserID:      userID,
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, map[string]string{"batch_id": handle.ID})
}

// CompleteBatch handles POST /batches/{batchID}/complete
func (h *BatchHandler) CompleteBatch(w http.ResponseWriter, r *http.Request) {
	summary, err := h.tracker.CompleteBatchByID(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, summary)
}

// FailBatch handles POST /batches/{batchID}/fail
func (h *BatchHandler) FailBatch(w http.ResponseWriter, r *http.Request) {
	handle := &services.BatchHandle{ID: chi.URLParam(r, "batchID")}
	if err := h.tracker.FailBatch(r.Context(), handle); err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"batch_id": handle.ID, "status": "failed"})
}

// ListBatches handles GET /batches
func (h *BatchHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	batches, err := h.tracker.ListBatches(r.Context(), limit)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, batches)
}
