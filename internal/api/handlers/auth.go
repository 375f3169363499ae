// Package handlers contains the HTTP handler implementations for the
// KisaanConnect API.
//
// Each handler file follows the same shape: request/response models with
// validate tags, locally declared service interfaces, a handler struct with a
// constructor, and a RegisterRoutes method that mounts the routes onto the
// versioned router.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"kisaanconnect/internal/auth"
	"kisaanconnect/internal/core"
	"kisaanconnect/internal/types"
)

// --- Service Interfaces ---

// AuthService defines the account and session operations the handler needs.
// The handler depends on this abstraction rather than the concrete
// auth.Service so tests can substitute a stub.
type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput) (*types.User, error)
	Login(ctx context.Context, username, password string) (*types.User, string, *types.Session, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, userID int64) (*types.User, error)
}

// --- Request/Response Models ---

// RegisterRequest is the request body for POST /v1/auth/register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role" validate:"required,oneof=farmer consumer"`
	Name     string `json:"name" validate:"omitempty,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// LoginRequest is the request body for POST /v1/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserResponse is the public view of an account. The password hash never
// leaves the service layer.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
}

// AuthResponse is returned on successful login. The token is a bearer token
// the client sends back in the Authorization header.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

func toUserResponse(u *types.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Role:     string(u.Role),
		Name:     u.Name,
		Email:    u.Email,
	}
}

// --- Handler ---

// AuthHandler serves registration, login, logout, and the current-user
// endpoint.
type AuthHandler struct {
	service   AuthService
	validator *core.Validator
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(service AuthService, validator *core.Validator, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		service:   service,
		validator: validator,
		logger:    logger,
	}
}

// RegisterRoutes mounts the auth routes. Register and login are public;
// logout and me require a valid session.
func (h *AuthHandler) RegisterRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.HandleRegister)
		r.Post("/login", h.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout", h.HandleLogout)
			r.Get("/me", h.HandleMe)
		})
	})
}

// --- Handler Methods ---

// HandleRegister processes POST /v1/auth/register.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	user, err := h.service.Register(r.Context(), auth.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Role:     types.UserRole(req.Role),
		Name:     req.Name,
		Email:    req.Email,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: toUserResponse(user)})
}

// HandleLogin processes POST /v1/auth/login. Invalid credentials return a
// single generic error regardless of whether the username exists.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	user, token, session, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: AuthResponse{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		User:      toUserResponse(user),
	}})
}

// HandleLogout processes POST /v1/auth/logout. Logout is idempotent: a token
// that is already gone still yields 200.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := core.BearerToken(r)
	if err := h.service.Logout(r.Context(), token); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: map[string]string{"message": "logged out"},
	})
}

// HandleMe processes GET /v1/auth/me.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthTokenMissing, "authentication required", nil))
		return
	}

	user, err := h.service.Me(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: toUserResponse(user)})
}
