// Package market implements the marketplace domain: farmer crop listings,
// consumer carts, and order placement.
package market

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"kisaanconnect/internal/types"
)

// FarmerCropRepo defines the data access methods needed by the farmer
// service.
type FarmerCropRepo interface {
	Create(ctx context.Context, crop *types.Crop) error
	GetByID(ctx context.Context, id int64) (*types.Crop, error)
	ListByFarmer(ctx context.Context, farmerID int64) ([]types.Crop, error)
	Update(ctx context.Context, crop *types.Crop) error
	Delete(ctx context.Context, id, farmerID int64) error
	CountByFarmer(ctx context.Context, farmerID int64) (int, error)
	Totals(ctx context.Context, farmerID int64) (quantity, value float64, err error)
	CountByType(ctx context.Context, farmerID int64) ([]types.CropTypeCount, error)
}

// FarmerService manages a farmer's crop listings and dashboard stats.
type FarmerService struct {
	crops  FarmerCropRepo
	logger *slog.Logger
}

// NewFarmerService creates a new FarmerService.
func NewFarmerService(crops FarmerCropRepo, logger *slog.Logger) *FarmerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FarmerService{crops: crops, logger: logger}
}

// CropInput carries the mutable fields of a crop listing.
type CropInput struct {
	Name         string
	Quantity     float64
	Unit         string
	PricePerUnit float64
	Description  string
	Location     string
	Available    bool
}

// CreateCrop adds a new listing owned by the farmer.
func (s *FarmerService) CreateCrop(ctx context.Context, farmerID int64, in CropInput) (*types.Crop, error) {
	crop := &types.Crop{
		Name:         in.Name,
		Quantity:     in.Quantity,
		Unit:         in.Unit,
		PricePerUnit: in.PricePerUnit,
		Description:  in.Description,
		Location:     in.Location,
		Available:    in.Available,
		FarmerID:     farmerID,
	}
	if err := s.crops.Create(ctx, crop); err != nil {
		return nil, err
	}

	s.logger.Info("crop listed",
		"crop_id", crop.ID,
		"farmer_id", farmerID,
		"name", crop.Name,
	)
	return crop, nil
}

// ListCrops returns the farmer's listings.
func (s *FarmerService) ListCrops(ctx context.Context, farmerID int64) ([]types.Crop, error) {
	return s.crops.ListByFarmer(ctx, farmerID)
}

// GetCrop returns a single listing owned by the farmer. A crop owned by a
// different farmer is reported as not found.
func (s *FarmerService) GetCrop(ctx context.Context, farmerID, cropID int64) (*types.Crop, error) {
	crop, err := s.crops.GetByID(ctx, cropID)
	if err != nil {
		return nil, err
	}
	if crop.FarmerID != farmerID {
		return nil, types.NewAppError(types.ErrCodeNotFoundCrop, "crop not found", nil)
	}
	return crop, nil
}

// UpdateCrop applies changes to a listing owned by the farmer.
func (s *FarmerService) UpdateCrop(ctx context.Context, farmerID, cropID int64, in CropInput) (*types.Crop, error) {
	crop := &types.Crop{
		ID:           cropID,
		Name:         in.Name,
		Quantity:     in.Quantity,
		Unit:         in.Unit,
		PricePerUnit: in.PricePerUnit,
		Description:  in.Description,
		Location:     in.Location,
		Available:    in.Available,
		FarmerID:     farmerID,
	}
	if err := s.crops.Update(ctx, crop); err != nil {
		return nil, err
	}
	return s.crops.GetByID(ctx, cropID)
}

// DeleteCrop removes a listing owned by the farmer.
func (s *FarmerService) DeleteCrop(ctx context.Context, farmerID, cropID int64) error {
	return s.crops.Delete(ctx, cropID, farmerID)
}

// Stats assembles the farmer dashboard. The three aggregate queries are
// independent so they run concurrently; the first failure cancels the rest.
func (s *FarmerService) Stats(ctx context.Context, farmerID int64) (*types.FarmerStats, error) {
	var stats types.FarmerStats

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		count, err := s.crops.CountByFarmer(gctx, farmerID)
		if err != nil {
			return err
		}
		stats.TotalCrops = count
		return nil
	})

	g.Go(func() error {
		quantity, value, err := s.crops.Totals(gctx, farmerID)
		if err != nil {
			return err
		}
		stats.TotalQuantity = quantity
		stats.TotalValue = value
		return nil
	})

	g.Go(func() error {
		byType, err := s.crops.CountByType(gctx, farmerID)
		if err != nil {
			return err
		}
		stats.CropsByType = byType
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}
