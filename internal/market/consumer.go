package market

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"kisaanconnect/internal/types"
)

// MarketCropRepo defines the crop reads needed by the consumer service.
type MarketCropRepo interface {
	GetByID(ctx context.Context, id int64) (*types.Crop, error)
	ListAvailable(ctx context.Context, search string) ([]types.Crop, error)
}

// CartRepo defines the cart data access needed by the consumer service.
type CartRepo interface {
	OpenCartID(ctx context.Context, consumerID int64) (string, error)
	GetItemByCrop(ctx context.Context, consumerID, cropID int64) (*types.CartItem, error)
	AddItem(ctx context.Context, consumerID int64, item *types.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID int64, quantity float64) error
	ListItems(ctx context.Context, consumerID int64) ([]types.CartItem, error)
	RemoveItem(ctx context.Context, consumerID, itemID int64) error
}

// OrderRepo defines the order reads needed outside the placement transaction.
type OrderRepo interface {
	GetByID(ctx context.Context, id, consumerID int64) (*types.Order, error)
	ListByConsumer(ctx context.Context, consumerID int64) ([]types.Order, error)
	ListItems(ctx context.Context, orderID int64) ([]types.OrderItem, error)
	CountByConsumer(ctx context.Context, consumerID int64) (int, error)
	TotalSpending(ctx context.Context, consumerID int64) (float64, error)
	CountByStatus(ctx context.Context, consumerID int64) ([]types.OrderStatusCount, error)
}

// OrderTxRepos are the transaction-scoped repositories handed to an order
// placement callback. All writes through them commit or roll back together.
type OrderTxRepos struct {
	CreateOrder      func(ctx context.Context, order *types.Order) error
	CreateOrderItems func(ctx context.Context, orderID int64, items []types.OrderItem) error
	ClearCart        func(ctx context.Context, consumerID int64) error
}

// OrderTxManager abstracts transactional execution for order placement.
type OrderTxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, repos OrderTxRepos) error) error
}

// EventPublisher publishes marketplace events to the fulfilment queue.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *types.OrderPlacedEvent) error
}

// Cart is the assembled view of a consumer's cart.
type Cart struct {
	CartID      string           `json:"cart_id,omitempty"`
	Items       []types.CartItem `json:"items"`
	TotalItems  int              `json:"total_items"`
	TotalAmount float64          `json:"total_amount"`
}

// OrderDetail is an order with its line items.
type OrderDetail struct {
	types.Order
	Items []types.OrderItem `json:"items"`
}

// ConsumerService implements marketplace browsing, cart management, and
// order placement.
type ConsumerService struct {
	crops     MarketCropRepo
	cart      CartRepo
	orders    OrderRepo
	txManager OrderTxManager
	events    EventPublisher // nil disables event publishing
	logger    *slog.Logger
}

// NewConsumerService creates a new ConsumerService.
func NewConsumerService(
	crops MarketCropRepo,
	cart CartRepo,
	orders OrderRepo,
	txManager OrderTxManager,
	events EventPublisher,
	logger *slog.Logger,
) *ConsumerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsumerService{
		crops:     crops,
		cart:      cart,
		orders:    orders,
		txManager: txManager,
		events:    events,
		logger:    logger,
	}
}

// Marketplace returns the available crop listings, optionally filtered by a
// search term.
func (s *ConsumerService) Marketplace(ctx context.Context, search string) ([]types.Crop, error) {
	return s.crops.ListAvailable(ctx, search)
}

// AddToCart adds a crop to the consumer's cart with a price snapshot of the
// current listing price. Adding a crop that is already in the cart merges
// into the existing line by summing quantities; the original price snapshot
// is kept.
func (s *ConsumerService) AddToCart(ctx context.Context, consumerID, cropID int64, quantity float64) (*types.CartItem, error) {
	if quantity <= 0 {
		return nil, types.NewAppError(types.ErrCodeValidationQuantity, "quantity must be positive", nil)
	}

	crop, err := s.crops.GetByID(ctx, cropID)
	if err != nil {
		return nil, err
	}
	if !crop.Available {
		return nil, types.NewAppError(types.ErrCodeNotFoundCrop, "crop not found", nil)
	}

	// Merge path: same crop already in the cart.
	existing, err := s.cart.GetItemByCrop(ctx, consumerID, cropID)
	if err == nil {
		existing.Quantity += quantity
		if err := s.cart.UpdateItemQuantity(ctx, existing.ID, existing.Quantity); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if appErr, ok := err.(*types.AppError); !ok || appErr.Code != types.ErrCodeNotFoundCartItem {
		return nil, err
	}

	cartID, err := s.cart.OpenCartID(ctx, consumerID)
	if err != nil {
		return nil, err
	}
	if cartID == "" {
		cartID = uuid.NewString()
	}

	item := &types.CartItem{
		CartID:    cartID,
		CropID:    crop.ID,
		CropName:  crop.Name,
		Quantity:  quantity,
		UnitPrice: crop.PricePerUnit,
	}
	if err := s.cart.AddItem(ctx, consumerID, item); err != nil {
		return nil, err
	}
	return item, nil
}

// GetCart returns the consumer's cart with computed totals.
func (s *ConsumerService) GetCart(ctx context.Context, consumerID int64) (*Cart, error) {
	items, err := s.cart.ListItems(ctx, consumerID)
	if err != nil {
		return nil, err
	}

	cart := &Cart{Items: items}
	for _, item := range items {
		cart.TotalItems++
		cart.TotalAmount += item.Quantity * item.UnitPrice
	}
	if len(items) > 0 {
		cart.CartID = items[0].CartID
	}
	return cart, nil
}

// RemoveCartItem removes a single line from the consumer's cart.
func (s *ConsumerService) RemoveCartItem(ctx context.Context, consumerID, itemID int64) error {
	return s.cart.RemoveItem(ctx, consumerID, itemID)
}

// PlaceOrder converts the consumer's cart into a pending order. Order
// creation, line items, and cart clearing commit in one transaction.
// The order-placed event is published after commit on a best-effort basis:
// a publish failure is logged, never surfaced to the consumer.
func (s *ConsumerService) PlaceOrder(ctx context.Context, consumerID int64, shippingAddress string) (*OrderDetail, error) {
	items, err := s.cart.ListItems(ctx, consumerID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationEmptyCart, "cart is empty", nil)
	}

	var total float64
	orderItems := make([]types.OrderItem, 0, len(items))
	for _, item := range items {
		total += item.Quantity * item.UnitPrice
		orderItems = append(orderItems, types.OrderItem{
			CropID:    item.CropID,
			CropName:  item.CropName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	order := &types.Order{
		ConsumerID:      consumerID,
		TotalAmount:     total,
		Status:          types.OrderStatusPending,
		ShippingAddress: shippingAddress,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context, repos OrderTxRepos) error {
		if err := repos.CreateOrder(txCtx, order); err != nil {
			return err
		}
		if err := repos.CreateOrderItems(txCtx, order.ID, orderItems); err != nil {
			return err
		}
		return repos.ClearCart(txCtx, consumerID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order placed",
		"order_id", order.ID,
		"consumer_id", consumerID,
		"total_amount", order.TotalAmount,
		"item_count", len(orderItems),
	)

	if s.events != nil {
		event := &types.OrderPlacedEvent{
			TraceID:     uuid.NewString(),
			OrderID:     order.ID,
			ConsumerID:  consumerID,
			TotalAmount: order.TotalAmount,
			ItemCount:   len(orderItems),
			Status:      order.Status,
			PlacedAt:    order.CreatedAt,
		}
		if pubErr := s.events.PublishOrderPlaced(ctx, event); pubErr != nil {
			s.logger.Warn("failed to publish order event",
				"order_id", order.ID,
				"error", pubErr,
			)
		}
	}

	return &OrderDetail{Order: *order, Items: orderItems}, nil
}

// GetOrder returns an order with its line items, scoped to the consumer.
func (s *ConsumerService) GetOrder(ctx context.Context, consumerID, orderID int64) (*OrderDetail, error) {
	order, err := s.orders.GetByID(ctx, orderID, consumerID)
	if err != nil {
		return nil, err
	}
	items, err := s.orders.ListItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: *order, Items: items}, nil
}

// ListOrders returns the consumer's order history, newest first.
func (s *ConsumerService) ListOrders(ctx context.Context, consumerID int64) ([]types.Order, error) {
	return s.orders.ListByConsumer(ctx, consumerID)
}

// Stats assembles the consumer dashboard. Like the farmer dashboard, the
// aggregate queries run concurrently.
func (s *ConsumerService) Stats(ctx context.Context, consumerID int64) (*types.ConsumerStats, error) {
	var stats types.ConsumerStats

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		count, err := s.orders.CountByConsumer(gctx, consumerID)
		if err != nil {
			return err
		}
		stats.TotalOrders = count
		return nil
	})

	g.Go(func() error {
		spending, err := s.orders.TotalSpending(gctx, consumerID)
		if err != nil {
			return err
		}
		stats.TotalSpending = spending
		return nil
	})

	g.Go(func() error {
		byStatus, err := s.orders.CountByStatus(gctx, consumerID)
		if err != nil {
			return err
		}
		stats.OrderStatus = byStatus
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}
