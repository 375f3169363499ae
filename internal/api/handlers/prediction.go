// This file implements the crop price prediction endpoint. The endpoint is
// public: price discovery is useful to farmers and consumers alike, and the
// model holds no account data.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kisaanconnect/internal/core"
	"kisaanconnect/internal/prediction"
)

// --- Service Interfaces ---

// Predictor defines the inference operation the handler needs. When the
// model artifact failed to load, PredictPrice fails fast with a
// service-unavailable error.
type Predictor interface {
	PredictPrice(ctx context.Context, req *prediction.PredictionRequest) (*prediction.PredictionResult, error)
}

// --- Handler ---

// PredictionHandler serves POST /v1/predictions/price.
type PredictionHandler struct {
	service   Predictor
	validator *core.Validator
	logger    *slog.Logger
}

// NewPredictionHandler creates a PredictionHandler.
func NewPredictionHandler(service Predictor, validator *core.Validator, logger *slog.Logger) *PredictionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictionHandler{
		service:   service,
		validator: validator,
		logger:    logger,
	}
}

// RegisterRoutes mounts the prediction route.
func (h *PredictionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/predictions/price", h.HandlePredictPrice)
}

// --- Handler Methods ---

// HandlePredictPrice processes POST /v1/predictions/price. Missing optional
// inputs (rain_fall, temperature, soil_quality) are tolerated; each one
// absent lowers the reported confidence.
func (h *PredictionHandler) HandlePredictPrice(w http.ResponseWriter, r *http.Request) {
	var req prediction.PredictionRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.service.PredictPrice(r.Context(), &req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}
