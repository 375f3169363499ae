package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kisaanconnect/internal/types"
)

func cropScanFn(id int64, name string, farmerID int64) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*int64) = id
		*dest[1].(*string) = name
		*dest[2].(*float64) = 100
		*dest[3].(*string) = "kg"
		*dest[4].(*float64) = 45.5
		*dest[5].(**string) = nil
		*dest[6].(**string) = nil
		*dest[7].(*bool) = true
		*dest[8].(*int64) = farmerID
		*dest[9].(*time.Time) = time.Now().UTC()
		return nil
	}
}

func TestCropRepository_Create_Success(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewCropRepository(dbMock)

	now := time.Now().UTC()
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*int64) = 11
			*dest[1].(*time.Time) = now
			return nil
		},
	}
	dbMock.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(row)

	crop := &types.Crop{
		Name:         "Rice",
		Quantity:     100,
		Unit:         "kg",
		PricePerUnit: 45.5,
		Available:    true,
		FarmerID:     7,
	}
	err := repo.Create(context.Background(), crop)
	require.NoError(t, err)
	assert.Equal(t, int64(11), crop.ID)
}

func TestCropRepository_GetByID_NotFound(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewCropRepository(dbMock)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	dbMock.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(row)

	_, err := repo.GetByID(context.Background(), 999)
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundCrop, appErr.Code)
}

func TestCropRepository_ListByFarmer(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewCropRepository(dbMock)

	rows := newMockRows(
		cropScanFn(1, "Rice", 7),
		cropScanFn(2, "Wheat", 7),
	)
	dbMock.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	crops, err := repo.ListByFarmer(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, crops, 2)
	assert.Equal(t, "Rice", crops[0].Name)
	assert.Equal(t, "Wheat", crops[1].Name)
}

func TestCropRepository_ListByFarmer_Empty(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewCropRepository(dbMock)

	dbMock.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(newMockRows(), nil)

	crops, err := repo.ListByFarmer(context.Background(), 7)
	require.NoError(t, err)
	assert.NotNil(t, crops)
	assert.Empty(t, crops)
}

func TestCropRepository_ListAvailable_SearchAddsPredicate(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewCropRepository(dbMock)

	var gotSQL string
	var gotArgs []any
	dbMock.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			gotSQL = args.String(1)
			gotArgs = args.Get(2).([]any)
		}).
		Return(newMockRows(cropScanFn(1, "Rice", 7)), nil)

	crops, err := repo.ListAvailable(context.Background(), "rice")
	require.NoError(t, err)
	require.Len(t, crops, 1)
	assert.Contains(t, gotSQL, "ILIKE")
	require.Len(t, gotArgs, 1)
	assert.Equal(t, "%rice%", gotArgs[0])
}

func TestCropRepository_Update_WrongFarmerLooksLikeNotFound(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewCropRepository(dbMock)

	dbMock.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.Update(context.Background(), &types.Crop{ID: 1, FarmerID: 99})
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundCrop, appErr.Code)
}

func TestCropRepository_Delete_Success(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewCropRepository(dbMock)

	dbMock.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 1"), nil)

	err := repo.Delete(context.Background(), 1, 7)
	require.NoError(t, err)
}

func TestCropRepository_Totals(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewCropRepository(dbMock)

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*float64) = 350
			*dest[1].(*float64) = 15925.5
			return nil
		},
	}
	dbMock.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(row)

	quantity, value, err := repo.Totals(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, float64(350), quantity)
	assert.Equal(t, 15925.5, value)
}

func TestCropRepository_CountByType(t *testing.T) {
	dbMock := new(mockDBTX)
	repo := NewCropRepository(dbMock)

	rows := newMockRows(
		func(dest ...any) error {
			*dest[0].(*string) = "Rice"
			*dest[1].(*int) = 3
			return nil
		},
		func(dest ...any) error {
			*dest[0].(*string) = "Wheat"
			*dest[1].(*int) = 1
			return nil
		},
	)
	dbMock.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	counts, err := repo.CountByType(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, types.CropTypeCount{Name: "Rice", Count: 3}, counts[0])
}
