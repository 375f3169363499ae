// This file implements the farmer-facing crop listing endpoints: CRUD on the
// farmer's own listings plus the dashboard stats aggregate. Every route
// requires an authenticated farmer; consumers get 403.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"kisaanconnect/internal/core"
	"kisaanconnect/internal/market"
	"kisaanconnect/internal/types"
)

// --- Service Interfaces ---

// FarmerService defines the crop listing operations the handler needs.
type FarmerService interface {
	CreateCrop(ctx context.Context, farmerID int64, in market.CropInput) (*types.Crop, error)
	ListCrops(ctx context.Context, farmerID int64) ([]types.Crop, error)
	GetCrop(ctx context.Context, farmerID, cropID int64) (*types.Crop, error)
	UpdateCrop(ctx context.Context, farmerID, cropID int64, in market.CropInput) (*types.Crop, error)
	DeleteCrop(ctx context.Context, farmerID, cropID int64) error
	Stats(ctx context.Context, farmerID int64) (*types.FarmerStats, error)
}

// --- Request/Response Models ---

// CropRequest is the request body for creating and updating a listing. An
// update replaces the full listing; there is no partial patch.
type CropRequest struct {
	Name         string  `json:"name" validate:"required,max=100"`
	Quantity     float64 `json:"quantity" validate:"required,gt=0"`
	Unit         string  `json:"unit" validate:"required,max=20"`
	PricePerUnit float64 `json:"price_per_unit" validate:"required,gt=0"`
	Description  string  `json:"description" validate:"omitempty,max=1000"`
	Location     string  `json:"location" validate:"omitempty,max=200"`
	Available    *bool   `json:"available,omitempty"`
}

func (req CropRequest) toInput() market.CropInput {
	available := true
	if req.Available != nil {
		available = *req.Available
	}
	return market.CropInput{
		Name:         req.Name,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		PricePerUnit: req.PricePerUnit,
		Description:  req.Description,
		Location:     req.Location,
		Available:    available,
	}
}

// --- Handler ---

// CropHandler serves the /farmer route group.
type CropHandler struct {
	service   FarmerService
	validator *core.Validator
	logger    *slog.Logger
}

// NewCropHandler creates a CropHandler.
func NewCropHandler(service FarmerService, validator *core.Validator, logger *slog.Logger) *CropHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CropHandler{
		service:   service,
		validator: validator,
		logger:    logger,
	}
}

// RegisterRoutes mounts the farmer routes behind authentication and the
// farmer role check.
func (h *CropHandler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/farmer", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(core.RequireRole(types.RoleFarmer))

		r.Get("/stats", h.HandleStats)

		r.Route("/crops", func(r chi.Router) {
			r.Post("/", h.HandleCreate)
			r.Get("/", h.HandleList)

			r.Route("/{cropID}", func(r chi.Router) {
				r.Get("/", h.HandleGet)
				r.Put("/", h.HandleUpdate)
				r.Delete("/", h.HandleDelete)
			})
		})
	})
}

// --- Handler Methods ---

// HandleCreate processes POST /v1/farmer/crops.
func (h *CropHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	var req CropRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	crop, err := h.service.CreateCrop(r.Context(), actor.UserID, req.toInput())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: crop})
}

// HandleList processes GET /v1/farmer/crops. Only the caller's own listings
// are returned.
func (h *CropHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	crops, err := h.service.ListCrops(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: crops})
}

// HandleGet processes GET /v1/farmer/crops/{cropID}.
func (h *CropHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	cropID, err := parseIDParam(r, "cropID")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	crop, err := h.service.GetCrop(r.Context(), actor.UserID, cropID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: crop})
}

// HandleUpdate processes PUT /v1/farmer/crops/{cropID}. Updating another
// farmer's crop returns the same not-found error as a nonexistent one.
func (h *CropHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	cropID, err := parseIDParam(r, "cropID")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req CropRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	crop, err := h.service.UpdateCrop(r.Context(), actor.UserID, cropID, req.toInput())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: crop})
}

// HandleDelete processes DELETE /v1/farmer/crops/{cropID}.
func (h *CropHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	cropID, err := parseIDParam(r, "cropID")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.service.DeleteCrop(r.Context(), actor.UserID, cropID); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: map[string]string{"message": "crop deleted"},
	})
}

// HandleStats processes GET /v1/farmer/stats.
func (h *CropHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	stats, err := h.service.Stats(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: stats})
}

// parseIDParam parses a numeric chi URL parameter. A malformed value maps to
// a not-found style validation error rather than a 500.
func parseIDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeValidationFailed, "invalid "+name+" parameter", nil, map[string]any{
			name: raw,
		})
	}
	return id, nil
}
