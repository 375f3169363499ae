package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"kisaanconnect/internal/types"
)

// CropRepository provides data access for the crops table.
type CropRepository struct {
	db DBTX
}

// NewCropRepository creates a new CropRepository backed by the given
// database connection (pool or transaction).
func NewCropRepository(db DBTX) *CropRepository {
	return &CropRepository{db: db}
}

const cropColumns = `c.id, c.name, c.quantity, c.unit, c.price_per_unit, c.description,
	c.location, c.available, c.farmer_id, c.created_at`

func scanCrop(row pgx.Row) (*types.Crop, error) {
	var c types.Crop
	var (
		description *string
		location    *string
	)
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Quantity,
		&c.Unit,
		&c.PricePerUnit,
		&description,
		&location,
		&c.Available,
		&c.FarmerID,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if description != nil {
		c.Description = *description
	}
	if location != nil {
		c.Location = *location
	}
	return &c, nil
}

func scanCrops(rows pgx.Rows) ([]types.Crop, error) {
	defer rows.Close()

	crops := make([]types.Crop, 0)
	for rows.Next() {
		c, err := scanCrop(rows)
		if err != nil {
			return nil, err
		}
		crops = append(crops, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return crops, nil
}

// Create inserts a new crop listing and populates the generated ID and
// created_at.
func (r *CropRepository) Create(ctx context.Context, crop *types.Crop) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO crops (name, quantity, unit, price_per_unit, description, location, available, farmer_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		crop.Name,
		crop.Quantity,
		crop.Unit,
		crop.PricePerUnit,
		nilIfEmpty(crop.Description),
		nilIfEmpty(crop.Location),
		crop.Available,
		crop.FarmerID,
	).Scan(&crop.ID, &crop.CreatedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create crop", err)
	}
	return nil
}

// GetByID retrieves a crop by its ID.
// Returns ErrCodeNotFoundCrop if no crop exists.
func (r *CropRepository) GetByID(ctx context.Context, id int64) (*types.Crop, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+cropColumns+` FROM crops c WHERE c.id = $1`,
		id,
	)

	c, err := scanCrop(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCrop, "crop not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve crop", err)
	}
	return c, nil
}

// ListByFarmer returns all crops owned by the given farmer, newest first.
func (r *CropRepository) ListByFarmer(ctx context.Context, farmerID int64) ([]types.Crop, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+cropColumns+` FROM crops c
		 WHERE c.farmer_id = $1
		 ORDER BY c.created_at DESC, c.id DESC`,
		farmerID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list crops", err)
	}

	crops, err := scanCrops(rows)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan crops", err)
	}
	return crops, nil
}

// ListAvailable returns all crops currently available for purchase, newest
// first. When search is non-empty it is matched case-insensitively against
// the crop name and location.
func (r *CropRepository) ListAvailable(ctx context.Context, search string) ([]types.Crop, error) {
	query := `SELECT ` + cropColumns + ` FROM crops c WHERE c.available = true`
	args := []any{}
	if search != "" {
		query += ` AND (c.name ILIKE $1 OR c.location ILIKE $1)`
		args = append(args, "%"+search+"%")
	}
	query += ` ORDER BY c.created_at DESC, c.id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list available crops", err)
	}

	crops, err := scanCrops(rows)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan crops", err)
	}
	return crops, nil
}

// Update applies changes to a crop's mutable fields, scoped to the owning
// farmer. Returns ErrCodeNotFoundCrop when the crop does not exist or belongs
// to a different farmer; ownership failures are indistinguishable from
// missing rows so farmers cannot probe each other's listings.
func (r *CropRepository) Update(ctx context.Context, crop *types.Crop) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE crops SET name = $1, quantity = $2, unit = $3, price_per_unit = $4,
		 description = $5, location = $6, available = $7
		 WHERE id = $8 AND farmer_id = $9`,
		crop.Name,
		crop.Quantity,
		crop.Unit,
		crop.PricePerUnit,
		nilIfEmpty(crop.Description),
		nilIfEmpty(crop.Location),
		crop.Available,
		crop.ID,
		crop.FarmerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update crop", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundCrop, "crop not found", nil)
	}
	return nil
}

// Delete removes a crop listing, scoped to the owning farmer.
func (r *CropRepository) Delete(ctx context.Context, id, farmerID int64) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM crops WHERE id = $1 AND farmer_id = $2`,
		id,
		farmerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete crop", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundCrop, "crop not found", nil)
	}
	return nil
}

// CountByFarmer returns the number of crop listings owned by the farmer.
func (r *CropRepository) CountByFarmer(ctx context.Context, farmerID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM crops WHERE farmer_id = $1`,
		farmerID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count crops", err)
	}
	return count, nil
}

// Totals returns the summed quantity and total listing value
// (quantity * price_per_unit) across the farmer's crops.
func (r *CropRepository) Totals(ctx context.Context, farmerID int64) (quantity, value float64, err error) {
	err = r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0), COALESCE(SUM(quantity * price_per_unit), 0)
		 FROM crops WHERE farmer_id = $1`,
		farmerID,
	).Scan(&quantity, &value)
	if err != nil {
		return 0, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to compute crop totals", err)
	}
	return quantity, value, nil
}

// CountByType returns the per-crop-name listing counts for the farmer's
// dashboard breakdown, most frequent first.
func (r *CropRepository) CountByType(ctx context.Context, farmerID int64) ([]types.CropTypeCount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT name, COUNT(*) FROM crops
		 WHERE farmer_id = $1
		 GROUP BY name
		 ORDER BY COUNT(*) DESC, name ASC`,
		farmerID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to count crops by type", err)
	}
	defer rows.Close()

	counts := make([]types.CropTypeCount, 0)
	for rows.Next() {
		var c types.CropTypeCount
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan crop type count", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read crop type counts", err)
	}
	return counts, nil
}
