package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"kisaanconnect/internal/types"
)

// --- Mocks ---

type mockCartRepo struct {
	mock.Mock
}

func (m *mockCartRepo) OpenCartID(ctx context.Context, consumerID int64) (string, error) {
	args := m.Called(ctx, consumerID)
	return args.String(0), args.Error(1)
}

func (m *mockCartRepo) GetItemByCrop(ctx context.Context, consumerID, cropID int64) (*types.CartItem, error) {
	args := m.Called(ctx, consumerID, cropID)
	if item := args.Get(0); item != nil {
		return item.(*types.CartItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCartRepo) AddItem(ctx context.Context, consumerID int64, item *types.CartItem) error {
	args := m.Called(ctx, consumerID, item)
	return args.Error(0)
}

func (m *mockCartRepo) UpdateItemQuantity(ctx context.Context, itemID int64, quantity float64) error {
	args := m.Called(ctx, itemID, quantity)
	return args.Error(0)
}

func (m *mockCartRepo) ListItems(ctx context.Context, consumerID int64) ([]types.CartItem, error) {
	args := m.Called(ctx, consumerID)
	if items := args.Get(0); items != nil {
		return items.([]types.CartItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCartRepo) RemoveItem(ctx context.Context, consumerID, itemID int64) error {
	args := m.Called(ctx, consumerID, itemID)
	return args.Error(0)
}

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) GetByID(ctx context.Context, id, consumerID int64) (*types.Order, error) {
	args := m.Called(ctx, id, consumerID)
	if o := args.Get(0); o != nil {
		return o.(*types.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderRepo) ListByConsumer(ctx context.Context, consumerID int64) ([]types.Order, error) {
	args := m.Called(ctx, consumerID)
	if o := args.Get(0); o != nil {
		return o.([]types.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderRepo) ListItems(ctx context.Context, orderID int64) ([]types.OrderItem, error) {
	args := m.Called(ctx, orderID)
	if items := args.Get(0); items != nil {
		return items.([]types.OrderItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOrderRepo) CountByConsumer(ctx context.Context, consumerID int64) (int, error) {
	args := m.Called(ctx, consumerID)
	return args.Int(0), args.Error(1)
}

func (m *mockOrderRepo) TotalSpending(ctx context.Context, consumerID int64) (float64, error) {
	args := m.Called(ctx, consumerID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockOrderRepo) CountByStatus(ctx context.Context, consumerID int64) ([]types.OrderStatusCount, error) {
	args := m.Called(ctx, consumerID)
	if c := args.Get(0); c != nil {
		return c.([]types.OrderStatusCount), args.Error(1)
	}
	return nil, args.Error(1)
}

// fakeTxManager executes the callback with in-memory repos, recording writes.
type fakeTxManager struct {
	createdOrder *types.Order
	createdItems []types.OrderItem
	cartCleared  bool
	failWith     error
}

func (m *fakeTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context, repos OrderTxRepos) error) error {
	if m.failWith != nil {
		return m.failWith
	}
	return fn(ctx, OrderTxRepos{
		CreateOrder: func(_ context.Context, order *types.Order) error {
			order.ID = 101
			order.CreatedAt = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
			m.createdOrder = order
			return nil
		},
		CreateOrderItems: func(_ context.Context, orderID int64, items []types.OrderItem) error {
			m.createdItems = items
			return nil
		},
		ClearCart: func(_ context.Context, consumerID int64) error {
			m.cartCleared = true
			return nil
		},
	})
}

type capturingPublisher struct {
	events []*types.OrderPlacedEvent
	err    error
}

func (p *capturingPublisher) PublishOrderPlaced(ctx context.Context, event *types.OrderPlacedEvent) error {
	p.events = append(p.events, event)
	return p.err
}

func notFoundCartItem() *types.AppError {
	return types.NewAppError(types.ErrCodeNotFoundCartItem, "cart item not found", nil)
}

// --- AddToCart ---

func TestAddToCart_NewItemGetsFreshCartID(t *testing.T) {
	crops := new(mockCropRepo)
	crops.On("GetByID", mock.Anything, int64(11)).Return(&types.Crop{
		ID:           11,
		Name:         "Rice",
		PricePerUnit: 45.5,
		Available:    true,
	}, nil)

	cart := new(mockCartRepo)
	cart.On("GetItemByCrop", mock.Anything, int64(7), int64(11)).Return(nil, notFoundCartItem())
	cart.On("OpenCartID", mock.Anything, int64(7)).Return("", nil)
	cart.On("AddItem", mock.Anything, int64(7), mock.MatchedBy(func(item *types.CartItem) bool {
		return item.CropID == 11 && item.CropName == "Rice" && item.UnitPrice == 45.5 && item.Quantity == 2
	})).Return(nil)

	svc := NewConsumerService(crops, cart, new(mockOrderRepo), &fakeTxManager{}, nil, testLogger())

	item, err := svc.AddToCart(context.Background(), 7, 11, 2)
	require.NoError(t, err)

	// A fresh cart gets a new UUID cart ID.
	_, parseErr := uuid.Parse(item.CartID)
	assert.NoError(t, parseErr)
	cart.AssertExpectations(t)
}

func TestAddToCart_ReusesOpenCartID(t *testing.T) {
	crops := new(mockCropRepo)
	crops.On("GetByID", mock.Anything, int64(12)).Return(&types.Crop{
		ID:           12,
		Name:         "Wheat",
		PricePerUnit: 30,
		Available:    true,
	}, nil)

	cart := new(mockCartRepo)
	cart.On("GetItemByCrop", mock.Anything, int64(7), int64(12)).Return(nil, notFoundCartItem())
	cart.On("OpenCartID", mock.Anything, int64(7)).Return("existing-cart-id", nil)
	cart.On("AddItem", mock.Anything, int64(7), mock.Anything).Return(nil)

	svc := NewConsumerService(crops, cart, new(mockOrderRepo), &fakeTxManager{}, nil, testLogger())

	item, err := svc.AddToCart(context.Background(), 7, 12, 1)
	require.NoError(t, err)
	assert.Equal(t, "existing-cart-id", item.CartID)
}

func TestAddToCart_MergesSameCropKeepingPriceSnapshot(t *testing.T) {
	crops := new(mockCropRepo)
	crops.On("GetByID", mock.Anything, int64(11)).Return(&types.Crop{
		ID:           11,
		Name:         "Rice",
		PricePerUnit: 50, // listing price has moved since the first add
		Available:    true,
	}, nil)

	cart := new(mockCartRepo)
	cart.On("GetItemByCrop", mock.Anything, int64(7), int64(11)).Return(&types.CartItem{
		ID:        5,
		CropID:    11,
		Quantity:  2,
		UnitPrice: 45.5,
	}, nil)
	cart.On("UpdateItemQuantity", mock.Anything, int64(5), float64(5)).Return(nil)

	svc := NewConsumerService(crops, cart, new(mockOrderRepo), &fakeTxManager{}, nil, testLogger())

	item, err := svc.AddToCart(context.Background(), 7, 11, 3)
	require.NoError(t, err)
	assert.Equal(t, float64(5), item.Quantity)
	assert.Equal(t, 45.5, item.UnitPrice)
	cart.AssertExpectations(t)
}

func TestAddToCart_NonPositiveQuantity(t *testing.T) {
	svc := NewConsumerService(new(mockCropRepo), new(mockCartRepo), new(mockOrderRepo), &fakeTxManager{}, nil, testLogger())

	_, err := svc.AddToCart(context.Background(), 7, 11, 0)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationQuantity, appErr.Code)
}

func TestAddToCart_UnavailableCropIsNotFound(t *testing.T) {
	crops := new(mockCropRepo)
	crops.On("GetByID", mock.Anything, int64(11)).Return(&types.Crop{
		ID:        11,
		Available: false,
	}, nil)

	svc := NewConsumerService(crops, new(mockCartRepo), new(mockOrderRepo), &fakeTxManager{}, nil, testLogger())

	_, err := svc.AddToCart(context.Background(), 7, 11, 1)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundCrop, appErr.Code)
}

// --- GetCart ---

func TestGetCart_ComputesTotals(t *testing.T) {
	cart := new(mockCartRepo)
	cart.On("ListItems", mock.Anything, int64(7)).Return([]types.CartItem{
		{ID: 1, CartID: "cart-uuid", Quantity: 2, UnitPrice: 45.5},
		{ID: 2, CartID: "cart-uuid", Quantity: 3, UnitPrice: 30},
	}, nil)

	svc := NewConsumerService(new(mockCropRepo), cart, new(mockOrderRepo), &fakeTxManager{}, nil, testLogger())

	got, err := svc.GetCart(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "cart-uuid", got.CartID)
	assert.Equal(t, 2, got.TotalItems)
	assert.InDelta(t, 181.0, got.TotalAmount, 1e-9)
}

func TestGetCart_Empty(t *testing.T) {
	cart := new(mockCartRepo)
	cart.On("ListItems", mock.Anything, int64(7)).Return([]types.CartItem{}, nil)

	svc := NewConsumerService(new(mockCropRepo), cart, new(mockOrderRepo), &fakeTxManager{}, nil, testLogger())

	got, err := svc.GetCart(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, got.CartID)
	assert.Zero(t, got.TotalItems)
	assert.Zero(t, got.TotalAmount)
}

// --- PlaceOrder ---

func TestPlaceOrder_Success(t *testing.T) {
	cart := new(mockCartRepo)
	cart.On("ListItems", mock.Anything, int64(7)).Return([]types.CartItem{
		{ID: 1, CropID: 11, CropName: "Rice", Quantity: 2, UnitPrice: 45.5},
		{ID: 2, CropID: 12, CropName: "Wheat", Quantity: 3, UnitPrice: 30},
	}, nil)

	txm := &fakeTxManager{}
	pub := &capturingPublisher{}

	svc := NewConsumerService(new(mockCropRepo), cart, new(mockOrderRepo), txm, pub, testLogger())

	detail, err := svc.PlaceOrder(context.Background(), 7, "12 Mandi Road, Karnal")
	require.NoError(t, err)

	assert.Equal(t, int64(101), detail.ID)
	assert.Equal(t, types.OrderStatusPending, detail.Status)
	assert.InDelta(t, 181.0, detail.TotalAmount, 1e-9)
	require.Len(t, detail.Items, 2)
	assert.True(t, txm.cartCleared)

	// Event published after commit with a fresh trace ID.
	require.Len(t, pub.events, 1)
	event := pub.events[0]
	assert.Equal(t, int64(101), event.OrderID)
	assert.Equal(t, 2, event.ItemCount)
	_, parseErr := uuid.Parse(event.TraceID)
	assert.NoError(t, parseErr)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	cart := new(mockCartRepo)
	cart.On("ListItems", mock.Anything, int64(7)).Return([]types.CartItem{}, nil)

	svc := NewConsumerService(new(mockCropRepo), cart, new(mockOrderRepo), &fakeTxManager{}, nil, testLogger())

	_, err := svc.PlaceOrder(context.Background(), 7, "")

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationEmptyCart, appErr.Code)
}

func TestPlaceOrder_TxFailureSurfacesAndSkipsEvent(t *testing.T) {
	cart := new(mockCartRepo)
	cart.On("ListItems", mock.Anything, int64(7)).Return([]types.CartItem{
		{ID: 1, CropID: 11, Quantity: 1, UnitPrice: 10},
	}, nil)

	dbErr := types.NewAppError(types.ErrCodeInternalDB, "failed to create order", nil)
	pub := &capturingPublisher{}

	svc := NewConsumerService(new(mockCropRepo), cart, new(mockOrderRepo), &fakeTxManager{failWith: dbErr}, pub, testLogger())

	_, err := svc.PlaceOrder(context.Background(), 7, "")
	require.Error(t, err)
	assert.Empty(t, pub.events)
}

func TestPlaceOrder_PublishFailureDoesNotFailOrder(t *testing.T) {
	cart := new(mockCartRepo)
	cart.On("ListItems", mock.Anything, int64(7)).Return([]types.CartItem{
		{ID: 1, CropID: 11, CropName: "Rice", Quantity: 1, UnitPrice: 10},
	}, nil)

	pub := &capturingPublisher{err: errors.New("sqs unreachable")}

	svc := NewConsumerService(new(mockCropRepo), cart, new(mockOrderRepo), &fakeTxManager{}, pub, testLogger())

	detail, err := svc.PlaceOrder(context.Background(), 7, "")
	require.NoError(t, err)
	assert.Equal(t, int64(101), detail.ID)
}

// --- Orders & stats ---

func TestGetOrder_WithItems(t *testing.T) {
	orders := new(mockOrderRepo)
	orders.On("GetByID", mock.Anything, int64(101), int64(7)).Return(&types.Order{
		ID:         101,
		ConsumerID: 7,
		Status:     types.OrderStatusPending,
	}, nil)
	orders.On("ListItems", mock.Anything, int64(101)).Return([]types.OrderItem{
		{ID: 1, OrderID: 101, CropName: "Rice"},
	}, nil)

	svc := NewConsumerService(new(mockCropRepo), new(mockCartRepo), orders, &fakeTxManager{}, nil, testLogger())

	detail, err := svc.GetOrder(context.Background(), 7, 101)
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, "Rice", detail.Items[0].CropName)
}

func TestConsumerStats(t *testing.T) {
	orders := new(mockOrderRepo)
	orders.On("CountByConsumer", mock.Anything, int64(7)).Return(3, nil)
	orders.On("TotalSpending", mock.Anything, int64(7)).Return(560.5, nil)
	orders.On("CountByStatus", mock.Anything, int64(7)).Return([]types.OrderStatusCount{
		{Status: types.OrderStatusPending, Count: 2},
		{Status: types.OrderStatusDelivered, Count: 1},
	}, nil)

	svc := NewConsumerService(new(mockCropRepo), new(mockCartRepo), orders, &fakeTxManager{}, nil, testLogger())

	stats, err := svc.Stats(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalOrders)
	assert.Equal(t, 560.5, stats.TotalSpending)
	require.Len(t, stats.OrderStatus, 2)
}
