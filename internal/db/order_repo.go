package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"kisaanconnect/internal/types"
)

// OrderRepository provides data access for the orders and order_items tables.
type OrderRepository struct {
	db DBTX
}

// NewOrderRepository creates a new OrderRepository backed by the given
// database connection (pool or transaction).
func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `o.id, o.consumer_id, o.total_amount, o.status, o.shipping_address, o.created_at`

func scanOrder(row pgx.Row) (*types.Order, error) {
	var o types.Order
	var shippingAddress *string
	err := row.Scan(
		&o.ID,
		&o.ConsumerID,
		&o.TotalAmount,
		&o.Status,
		&shippingAddress,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if shippingAddress != nil {
		o.ShippingAddress = *shippingAddress
	}
	return &o, nil
}

// Create inserts a new order and populates the generated ID and created_at.
func (r *OrderRepository) Create(ctx context.Context, order *types.Order) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO orders (consumer_id, total_amount, status, shipping_address)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		order.ConsumerID,
		order.TotalAmount,
		order.Status,
		nilIfEmpty(order.ShippingAddress),
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create order", err)
	}
	return nil
}

// CreateItems inserts the order's line items. Called within the order
// placement transaction immediately after Create.
func (r *OrderRepository) CreateItems(ctx context.Context, orderID int64, items []types.OrderItem) error {
	for i := range items {
		items[i].OrderID = orderID
		err := r.db.QueryRow(ctx,
			`INSERT INTO order_items (order_id, crop_id, crop_name, quantity, unit_price)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			orderID,
			items[i].CropID,
			items[i].CropName,
			items[i].Quantity,
			items[i].UnitPrice,
		).Scan(&items[i].ID)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "failed to create order item", err)
		}
	}
	return nil
}

// GetByID retrieves an order scoped to the owning consumer.
// Returns ErrCodeNotFoundOrder when absent or owned by someone else.
func (r *OrderRepository) GetByID(ctx context.Context, id, consumerID int64) (*types.Order, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders o
		 WHERE o.id = $1 AND o.consumer_id = $2`,
		id,
		consumerID,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundOrder, "order not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve order", err)
	}
	return o, nil
}

// ListByConsumer returns the consumer's orders, newest first.
func (r *OrderRepository) ListByConsumer(ctx context.Context, consumerID int64) ([]types.Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders o
		 WHERE o.consumer_id = $1
		 ORDER BY o.created_at DESC, o.id DESC`,
		consumerID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list orders", err)
	}
	defer rows.Close()

	orders := make([]types.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan order", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read orders", err)
	}
	return orders, nil
}

// ListItems returns the line items for an order.
func (r *OrderRepository) ListItems(ctx context.Context, orderID int64) ([]types.OrderItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, order_id, crop_id, crop_name, quantity, unit_price
		 FROM order_items WHERE order_id = $1
		 ORDER BY id ASC`,
		orderID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list order items", err)
	}
	defer rows.Close()

	items := make([]types.OrderItem, 0)
	for rows.Next() {
		var item types.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.CropID, &item.CropName, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan order item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read order items", err)
	}
	return items, nil
}

// CountByConsumer returns the number of orders placed by the consumer.
func (r *OrderRepository) CountByConsumer(ctx context.Context, consumerID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE consumer_id = $1`,
		consumerID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count orders", err)
	}
	return count, nil
}

// TotalSpending returns the summed total_amount across the consumer's orders.
func (r *OrderRepository) TotalSpending(ctx context.Context, consumerID int64) (float64, error) {
	var total float64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_amount), 0) FROM orders WHERE consumer_id = $1`,
		consumerID,
	).Scan(&total)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to compute total spending", err)
	}
	return total, nil
}

// CountByStatus returns the per-status order counts for the consumer's
// dashboard breakdown.
func (r *OrderRepository) CountByStatus(ctx context.Context, consumerID int64) ([]types.OrderStatusCount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT status, COUNT(*) FROM orders
		 WHERE consumer_id = $1
		 GROUP BY status
		 ORDER BY COUNT(*) DESC, status ASC`,
		consumerID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to count orders by status", err)
	}
	defer rows.Close()

	counts := make([]types.OrderStatusCount, 0)
	for rows.Next() {
		var c types.OrderStatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan order status count", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read order status counts", err)
	}
	return counts, nil
}
