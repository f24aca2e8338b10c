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

// IterationHandler handles iteration milestone HTTP requests
type IterationHandler struct {
	iterations *services.IterationService
	logger     *zap.Logger
}

// NewIterationHandler creates a new iteration handler
func NewIterationHandler(iterations *services.IterationService, logger *zap.Logger) *IterationHandler {
	return &IterationHandler{
		iterations: iterations,
		logger:     logger,
	}
}

// CreateIterationRequest is the request body for creating an iteration
type CreateIterationRequest struct {
	Version        string   `json:"version" validate:"required,max=100"`
	Name           string   `json:"name,omitempty" validate:"omitempty,max=200"`
	Description    string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	Features       []string `json:"features,omitempty" validate:"omitempty,max=50,dive,max=200"`
	Tags           []string `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=100"`
	CreateSnapshot *bool    `json:"create_snapshot,omitempty"`
}

// CreateIteration handles POST /iterations
func (h *IterationHandler) CreateIteration(w http.ResponseWriter, r *http.Request) {
	var req CreateIterationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondAppError(w, errors.NewInvalidArgumentError("invalid request body: "+err.Error()))
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondAppError(w, errors.NewInvalidArgumentError("validation error: "+err.Error()))
		return
	}

	in := services.CreateIterationInput{
		Version:        req.Version,
		Name:           req.Name,
		Description:    req.Description,
		Features:       req.Features,
		Tags:           req.Tags,
		CreateSnapshot: true,
	}
	if req.CreateSnapshot != nil {
		in.CreateSnapshot = *req.CreateSnapshot
	}

	iteration, err := h.iterations.CreateIteration(r.Context(), in)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, iteration)
}

// GetIteration handles GET /iterations/{version}
func (h *IterationHandler) GetIteration(w http.ResponseWriter, r *http.Request) {
	iteration, err := h.iterations.GetIteration(r.Context(), chi.URLParam(r, "version"))
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, iteration)
}

// ListIterations handles GET /iterations
func (h *IterationHandler) ListIterations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	iterations, err := h.iterations.ListIterations(r.Context(), limit)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, iterations)
}

// GetEvolutionMetrics handles GET /iterations/{version}/metrics
func (h *IterationHandler) GetEvolutionMetrics(w http.ResponseWriter, r *http.Request) {
	iteration, err := h.iterations.GetIteration(r.Context(), chi.URLParam(r, "version"))
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	metrics, err := h.iterations.GetEvolutionMetrics(r.Context(), iteration.ID)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, metrics)
}

// CompareIterations handles GET /iterations/compare?from=&to=&detailed=
func (h *IterationHandler) CompareIterations(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		common.RespondAppError(w, errors.NewInvalidArgumentError("from and to versions are required"))
		return
	}
	detailed := r.URL.Query().Get("detailed") == "true"

	comparison, err := h.iterations.CompareIterations(r.Context(), from, to, detailed)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, comparison)
}
