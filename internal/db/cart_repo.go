package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"kisaanconnect/internal/types"
)

// CartRepository provides data access for the cart_items table. A consumer
// has at most one open cart, identified by a UUID cart_id shared by its items.
type CartRepository struct {
	db DBTX
}

// NewCartRepository creates a new CartRepository backed by the given
// database connection (pool or transaction).
func NewCartRepository(db DBTX) *CartRepository {
	return &CartRepository{db: db}
}

const cartItemColumns = `ci.id, ci.cart_id, ci.crop_id, ci.crop_name, ci.quantity, ci.unit_price, ci.created_at`

func scanCartItem(row pgx.Row) (*types.CartItem, error) {
	var item types.CartItem
	err := row.Scan(
		&item.ID,
		&item.CartID,
		&item.CropID,
		&item.CropName,
		&item.Quantity,
		&item.UnitPrice,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// OpenCartID returns the UUID of the consumer's open cart, or "" when the
// cart is empty. The open cart is the cart_id of the consumer's current
// cart_items rows.
func (r *CartRepository) OpenCartID(ctx context.Context, consumerID int64) (string, error) {
	var cartID string
	err := r.db.QueryRow(ctx,
		`SELECT cart_id FROM cart_items
		 WHERE consumer_id = $1
		 ORDER BY created_at ASC
		 LIMIT 1`,
		consumerID,
	).Scan(&cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", types.NewAppError(types.ErrCodeInternalDB, "failed to look up open cart", err)
	}
	return cartID, nil
}

// GetItemByCrop returns the consumer's cart line for the given crop, or
// pgx.ErrNoRows-mapped nil,ErrCodeNotFoundCartItem when absent. Used by the
// add-to-cart merge path.
func (r *CartRepository) GetItemByCrop(ctx context.Context, consumerID, cropID int64) (*types.CartItem, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+cartItemColumns+` FROM cart_items ci
		 WHERE ci.consumer_id = $1 AND ci.crop_id = $2`,
		consumerID,
		cropID,
	)

	item, err := scanCartItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCartItem, "cart item not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve cart item", err)
	}
	return item, nil
}

// AddItem inserts a new cart line and populates the generated ID and
// created_at.
func (r *CartRepository) AddItem(ctx context.Context, consumerID int64, item *types.CartItem) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO cart_items (consumer_id, cart_id, crop_id, crop_name, quantity, unit_price)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		consumerID,
		item.CartID,
		item.CropID,
		item.CropName,
		item.Quantity,
		item.UnitPrice,
	).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to add cart item", err)
	}
	return nil
}

// UpdateItemQuantity sets the quantity on an existing cart line.
func (r *CartRepository) UpdateItemQuantity(ctx context.Context, itemID int64, quantity float64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE cart_items SET quantity = $1 WHERE id = $2`,
		quantity,
		itemID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update cart item", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundCartItem, "cart item not found", nil)
	}
	return nil
}

// ListItems returns the consumer's cart lines, oldest first.
func (r *CartRepository) ListItems(ctx context.Context, consumerID int64) ([]types.CartItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+cartItemColumns+` FROM cart_items ci
		 WHERE ci.consumer_id = $1
		 ORDER BY ci.created_at ASC, ci.id ASC`,
		consumerID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list cart items", err)
	}
	defer rows.Close()

	items := make([]types.CartItem, 0)
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan cart item", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read cart items", err)
	}
	return items, nil
}

// RemoveItem deletes a single cart line, scoped to the consumer.
func (r *CartRepository) RemoveItem(ctx context.Context, consumerID, itemID int64) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND consumer_id = $2`,
		itemID,
		consumerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to remove cart item", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundCartItem, "cart item not found", nil)
	}
	return nil
}

// Clear removes all of the consumer's cart lines. Called inside the order
// placement transaction after order items are written.
func (r *CartRepository) Clear(ctx context.Context, consumerID int64) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM cart_items WHERE consumer_id = $1`,
		consumerID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to clear cart", err)
	}
	return nil
}
