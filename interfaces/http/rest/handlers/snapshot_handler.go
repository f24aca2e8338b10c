package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"graphitti-backend/application/services"
	"graphitti-backend/domain/versioning"
	"graphitti-backend/pkg/common"
	"graphitti-backend/pkg/errors"
	"graphitti-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SnapshotHandler handles snapshot and restore HTTP requests
type SnapshotHandler struct {
	snapshots *services.SnapshotService
	restore   *services.RestoreService
	logger    *zap.Logger
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(
	snapshots *services.SnapshotService,
	restore *services.RestoreService,
	logger *zap.Logger,
) *SnapshotHandler {
	return &SnapshotHandler{
		snapshots: snapshots,
		restore:   restore,
		logger:    logger,
	}
}

// CreateSnapshotRequest is the request body for creating a snapshot
type CreateSnapshotRequest struct {
	Type                 string                 `json:"type" validate:"required"`
	Name                 string                 `json:"name,omitempty" validate:"omitempty,max=200"`
	Description          string                 `json:"description,omitempty" validate:"omitempty,max=2000"`
	Tags                 []string               `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=100"`
	Metadata             map[string]interface{} `json:"metadata,omitempty"`
	IncludeConcepts      *bool                  `json:"include_concepts,omitempty"`
	IncludeRelationships *bool                  `json:"include_relationships,omitempty"`
	ConceptFilter        map[string]interface{} `json:"concept_filter,omitempty"`
}

// CreateSnapshot handles POST /snapshots
func (h *SnapshotHandler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req CreateSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondAppError(w, errors.NewInvalidArgumentError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondAppError(w, errors.NewInvalidArgumentError("validation error: "+err.Error()))
		return
	}

	snapshotType, err := versioning.ParseSnapshotType(req.Type)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	in := services.CreateSnapshotInput{
		Type:                 snapshotType,
		Name:                 req.Name,
		Description:          req.Description,
		Tags:                 req.Tags,
		Metadata:             req.Metadata,
		IncludeConcepts:      true,
		IncludeRelationships: true,
		ConceptFilter:        req.ConceptFilter,
	}
	if req.IncludeConcepts != nil {
		in.IncludeConcepts = *req.IncludeConcepts
	}
	if req.IncludeRelationships != nil {
		in.IncludeRelationships = *req.IncludeRelationships
	}

	snapshot, err := h.snapshots.CreateSnapshot(r.Context(), in)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, snapshot)
}

// GetSnapshot handles GET /snapshots/{snapshotID}
func (h *SnapshotHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.snapshots.GetSnapshot(r.Context(), chi.URLParam(r, "snapshotID"))
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, snapshot)
}

// ListSnapshots handles GET /snapshots
func (h *SnapshotHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	snapshots, err := h.snapshots.ListSnapshots(r.Context(), limit)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, snapshots)
}

// RestoreSnapshotRequest is the request body for a restore
type RestoreSnapshotRequest struct {
	DryRun bool `json:"dry_run"`
}

// RestoreSnapshot handles POST /snapshots/{snapshotID}/restore
func (h *SnapshotHandler) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	var req RestoreSnapshotRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			common.RespondAppError(w, errors.NewInvalidArgumentError("invalid request body: "+err.Error()))
			return
		}
	}

	result, err := h.restore.RestoreSnapshot(r.Context(), chi.URLParam(r, "snapshotID"), req.DryRun)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// queryInt reads an integer query parameter, falling back to a default
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
