package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kisaanconnect/internal/core"
	"kisaanconnect/internal/market"
	"kisaanconnect/internal/types"
)

type mockFarmerService struct {
	createFn func(ctx context.Context, farmerID int64, in market.CropInput) (*types.Crop, error)
	listFn   func(ctx context.Context, farmerID int64) ([]types.Crop, error)
	getFn    func(ctx context.Context, farmerID, cropID int64) (*types.Crop, error)
	updateFn func(ctx context.Context, farmerID, cropID int64, in market.CropInput) (*types.Crop, error)
	deleteFn func(ctx context.Context, farmerID, cropID int64) error
	statsFn  func(ctx context.Context, farmerID int64) (*types.FarmerStats, error)
}

func (m *mockFarmerService) CreateCrop(ctx context.Context, farmerID int64, in market.CropInput) (*types.Crop, error) {
	return m.createFn(ctx, farmerID, in)
}

func (m *mockFarmerService) ListCrops(ctx context.Context, farmerID int64) ([]types.Crop, error) {
	return m.listFn(ctx, farmerID)
}

func (m *mockFarmerService) GetCrop(ctx context.Context, farmerID, cropID int64) (*types.Crop, error) {
	return m.getFn(ctx, farmerID, cropID)
}

func (m *mockFarmerService) UpdateCrop(ctx context.Context, farmerID, cropID int64, in market.CropInput) (*types.Crop, error) {
	return m.updateFn(ctx, farmerID, cropID, in)
}

func (m *mockFarmerService) DeleteCrop(ctx context.Context, farmerID, cropID int64) error {
	return m.deleteFn(ctx, farmerID, cropID)
}

func (m *mockFarmerService) Stats(ctx context.Context, farmerID int64) (*types.FarmerStats, error) {
	return m.statsFn(ctx, farmerID)
}

func testCrop() *types.Crop {
	return &types.Crop{
		ID:           12,
		Name:         "Rice",
		Quantity:     100,
		Unit:         "kg",
		PricePerUnit: 45.5,
		Location:     "Punjab",
		Available:    true,
		FarmerID:     7,
		CreatedAt:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

// farmerRouter mounts the crop routes with a stub auth middleware that
// injects the given actor.
func farmerRouter(svc FarmerService, actor types.Actor) *chi.Mux {
	h := NewCropHandler(svc, core.NewValidator(nil), nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r, withActor(actor))
	return r
}

func farmerActor() types.Actor {
	return types.Actor{UserID: 7, Username: "ramesh", Role: types.RoleFarmer}
}

func TestCropCreate_Success(t *testing.T) {
	svc := &mockFarmerService{
		createFn: func(_ context.Context, farmerID int64, in market.CropInput) (*types.Crop, error) {
			assert.Equal(t, int64(7), farmerID)
			assert.Equal(t, "Rice", in.Name)
			assert.True(t, in.Available)
			return testCrop(), nil
		},
	}
	r := farmerRouter(svc, farmerActor())

	body := `{"name":"Rice","quantity":100,"unit":"kg","price_per_unit":45.5,"location":"Punjab"}`
	req := httptest.NewRequest(http.MethodPost, "/farmer/crops", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	crop := decodeData[types.Crop](t, w)
	assert.Equal(t, int64(12), crop.ID)
}

func TestCropCreate_AvailableFlagRespected(t *testing.T) {
	svc := &mockFarmerService{
		createFn: func(_ context.Context, _ int64, in market.CropInput) (*types.Crop, error) {
			assert.False(t, in.Available)
			return testCrop(), nil
		},
	}
	r := farmerRouter(svc, farmerActor())

	body := `{"name":"Rice","quantity":100,"unit":"kg","price_per_unit":45.5,"available":false}`
	req := httptest.NewRequest(http.MethodPost, "/farmer/crops", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestCropCreate_ValidationFailure(t *testing.T) {
	r := farmerRouter(&mockFarmerService{}, farmerActor())

	body := `{"name":"Rice","quantity":-5,"unit":"kg","price_per_unit":45.5}`
	req := httptest.NewRequest(http.MethodPost, "/farmer/crops", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	detail := decodeHandlerError(t, w)
	assert.Equal(t, string(types.ErrCodeValidationFailed), detail.Code)
	assert.Contains(t, detail.Details, "quantity")
}

func TestCropRoutes_ConsumerForbidden(t *testing.T) {
	r := farmerRouter(&mockFarmerService{}, types.Actor{UserID: 9, Username: "sita", Role: types.RoleConsumer})

	req := httptest.NewRequest(http.MethodGet, "/farmer/crops", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(types.ErrCodePermissionRole), decodeHandlerError(t, w).Code)
}

func TestCropGet_NotFound(t *testing.T) {
	svc := &mockFarmerService{
		getFn: func(_ context.Context, _, _ int64) (*types.Crop, error) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCrop, "crop not found", nil)
		},
	}
	r := farmerRouter(svc, farmerActor())

	req := httptest.NewRequest(http.MethodGet, "/farmer/crops/99", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCropGet_MalformedID(t *testing.T) {
	r := farmerRouter(&mockFarmerService{}, farmerActor())

	req := httptest.NewRequest(http.MethodGet, "/farmer/crops/abc", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCropUpdate_Success(t *testing.T) {
	svc := &mockFarmerService{
		updateFn: func(_ context.Context, farmerID, cropID int64, in market.CropInput) (*types.Crop, error) {
			assert.Equal(t, int64(7), farmerID)
			assert.Equal(t, int64(12), cropID)
			assert.Equal(t, 50.0, in.PricePerUnit)
			c := testCrop()
			c.PricePerUnit = in.PricePerUnit
			return c, nil
		},
	}
	r := farmerRouter(svc, farmerActor())

	body := `{"name":"Rice","quantity":100,"unit":"kg","price_per_unit":50}`
	req := httptest.NewRequest(http.MethodPut, "/farmer/crops/12", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	crop := decodeData[types.Crop](t, w)
	assert.Equal(t, 50.0, crop.PricePerUnit)
}

func TestCropDelete_Success(t *testing.T) {
	var deleted int64
	svc := &mockFarmerService{
		deleteFn: func(_ context.Context, _, cropID int64) error {
			deleted = cropID
			return nil
		},
	}
	r := farmerRouter(svc, farmerActor())

	req := httptest.NewRequest(http.MethodDelete, "/farmer/crops/12", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(12), deleted)
}

func TestFarmerStats_Success(t *testing.T) {
	svc := &mockFarmerService{
		statsFn: func(_ context.Context, farmerID int64) (*types.FarmerStats, error) {
			assert.Equal(t, int64(7), farmerID)
			return &types.FarmerStats{
				TotalCrops:    4,
				TotalQuantity: 350,
				TotalValue:    15925.5,
				CropsByType:   []types.CropTypeCount{{Name: "Rice", Count: 3}},
			}, nil
		},
	}
	r := farmerRouter(svc, farmerActor())

	req := httptest.NewRequest(http.MethodGet, "/farmer/stats", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := decodeData[types.FarmerStats](t, w)
	assert.Equal(t, 4, stats.TotalCrops)
	assert.InDelta(t, 15925.5, stats.TotalValue, 1e-9)
}
