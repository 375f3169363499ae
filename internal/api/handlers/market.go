// This file implements the consumer-facing marketplace endpoints: public
// browsing, cart management, order placement and history, and the consumer
// spending stats aggregate.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kisaanconnect/internal/core"
	"kisaanconnect/internal/market"
	"kisaanconnect/internal/types"
)

// --- Service Interfaces ---

// ConsumerService defines the marketplace, cart, and order operations the
// handler needs.
type ConsumerService interface {
	Marketplace(ctx context.Context, search string) ([]types.Crop, error)
	AddToCart(ctx context.Context, consumerID, cropID int64, quantity float64) (*types.CartItem, error)
	GetCart(ctx context.Context, consumerID int64) (*market.Cart, error)
	RemoveCartItem(ctx context.Context, consumerID, itemID int64) error
	PlaceOrder(ctx context.Context, consumerID int64, shippingAddress string) (*market.OrderDetail, error)
	GetOrder(ctx context.Context, consumerID, orderID int64) (*market.OrderDetail, error)
	ListOrders(ctx context.Context, consumerID int64) ([]types.Order, error)
	Stats(ctx context.Context, consumerID int64) (*types.ConsumerStats, error)
}

// --- Request Models ---

// AddToCartRequest is the request body for POST /v1/cart.
type AddToCartRequest struct {
	CropID   int64   `json:"crop_id" validate:"required,gt=0"`
	Quantity float64 `json:"quantity" validate:"required,gt=0"`
}

// PlaceOrderRequest is the request body for POST /v1/orders.
type PlaceOrderRequest struct {
	ShippingAddress string `json:"shipping_address" validate:"required,max=500"`
}

// --- Handler ---

// MarketHandler serves the marketplace browse route plus the consumer cart
// and order route groups.
type MarketHandler struct {
	service   ConsumerService
	validator *core.Validator
	logger    *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(service ConsumerService, validator *core.Validator, logger *slog.Logger) *MarketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketHandler{
		service:   service,
		validator: validator,
		logger:    logger,
	}
}

// RegisterRoutes mounts the marketplace routes. browsing is public; cart,
// orders, and stats require an authenticated consumer.
func (h *MarketHandler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Get("/marketplace", h.HandleMarketplace)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(core.RequireRole(types.RoleConsumer))

		r.Route("/cart", func(r chi.Router) {
			r.Post("/", h.HandleAddToCart)
			r.Get("/", h.HandleGetCart)
			r.Delete("/items/{itemID}", h.HandleRemoveCartItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.HandlePlaceOrder)
			r.Get("/", h.HandleListOrders)
			r.Get("/{orderID}", h.HandleGetOrder)
		})

		r.Get("/consumer/stats", h.HandleStats)
	})
}

// --- Handler Methods ---

// HandleMarketplace processes GET /v1/marketplace. The optional search query
// parameter filters by crop name or location, case-insensitively.
func (h *MarketHandler) HandleMarketplace(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")

	crops, err := h.service.Marketplace(r.Context(), search)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: crops})
}

// HandleAddToCart processes POST /v1/cart. Adding a crop already in the open
// cart merges quantities and keeps the original price snapshot.
func (h *MarketHandler) HandleAddToCart(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	var req AddToCartRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	item, err := h.service.AddToCart(r.Context(), actor.UserID, req.CropID, req.Quantity)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: item})
}

// HandleGetCart processes GET /v1/cart.
func (h *MarketHandler) HandleGetCart(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	cart, err := h.service.GetCart(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: cart})
}

// HandleRemoveCartItem processes DELETE /v1/cart/items/{itemID}.
func (h *MarketHandler) HandleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	itemID, err := parseIDParam(r, "itemID")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.service.RemoveCartItem(r.Context(), actor.UserID, itemID); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: map[string]string{"message": "item removed"},
	})
}

// HandlePlaceOrder processes POST /v1/orders. The entire open cart becomes a
// single order atomically; the cart is cleared in the same transaction.
func (h *MarketHandler) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	var req PlaceOrderRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	order, err := h.service.PlaceOrder(r.Context(), actor.UserID, req.ShippingAddress)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: order})
}

// HandleListOrders processes GET /v1/orders.
func (h *MarketHandler) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	orders, err := h.service.ListOrders(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: orders})
}

// HandleGetOrder processes GET /v1/orders/{orderID}. Another consumer's
// order is indistinguishable from a nonexistent one.
func (h *MarketHandler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	orderID, err := parseIDParam(r, "orderID")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	order, err := h.service.GetOrder(r.Context(), actor.UserID, orderID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: order})
}

// HandleStats processes GET /v1/consumer/stats.
func (h *MarketHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
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
