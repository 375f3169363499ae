package types

import "time"

// UserRole identifies which side of the marketplace an account belongs to.
type UserRole string

const (
	RoleFarmer   UserRole = "farmer"
	RoleConsumer UserRole = "consumer"
)

// Valid reports whether the role is one of the two supported marketplace roles.
func (r UserRole) Valid() bool {
	return r == RoleFarmer || r == RoleConsumer
}

// User is a registered marketplace account.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         UserRole  `json:"role" db:"role"`
	Name         string    `json:"name,omitempty" db:"name"`
	Email        string    `json:"email,omitempty" db:"email"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Session is a server-side login session. Only the SHA-256 hash of the raw
// bearer token is stored; the raw token exists solely in the login response.
type Session struct {
	TokenHash string    `db:"token_hash"`
	UserID    int64     `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// Expired reports whether the session has passed its expiry at the given time.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Crop is a farmer's produce listing.
type Crop struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Quantity     float64   `json:"quantity" db:"quantity"`
	Unit         string    `json:"unit" db:"unit"`
	PricePerUnit float64   `json:"price_per_unit" db:"price_per_unit"`
	Description  string    `json:"description,omitempty" db:"description"`
	Location     string    `json:"location,omitempty" db:"location"`
	Available    bool      `json:"available" db:"available"`
	FarmerID     int64     `json:"farmer_id" db:"farmer_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// CartItem is a single crop entry in a consumer's cart. The unit price is a
// snapshot of the listing price at the time the item was added.
type CartItem struct {
	ID        int64     `json:"id" db:"id"`
	CartID    string    `json:"cart_id" db:"cart_id"`
	CropID    int64     `json:"crop_id" db:"crop_id"`
	CropName  string    `json:"crop_name" db:"crop_name"`
	Quantity  float64   `json:"quantity" db:"quantity"`
	UnitPrice float64   `json:"unit_price" db:"unit_price"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// OrderStatus tracks an order through its lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a placed consumer order.
type Order struct {
	ID              int64       `json:"id" db:"id"`
	ConsumerID      int64       `json:"consumer_id" db:"consumer_id"`
	TotalAmount     float64     `json:"total_amount" db:"total_amount"`
	Status          OrderStatus `json:"status" db:"status"`
	ShippingAddress string      `json:"shipping_address" db:"shipping_address"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
}

// OrderItem is a line item on an order, denormalized with the crop name and
// unit price captured at checkout.
type OrderItem struct {
	ID        int64   `json:"id" db:"id"`
	OrderID   int64   `json:"order_id" db:"order_id"`
	CropID    int64   `json:"crop_id" db:"crop_id"`
	CropName  string  `json:"crop_name" db:"crop_name"`
	Quantity  float64 `json:"quantity" db:"quantity"`
	UnitPrice float64 `json:"unit_price" db:"unit_price"`
}

// CropTypeCount is one row of the crops-by-type dashboard breakdown.
type CropTypeCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// FarmerStats contains aggregated counts for the farmer dashboard.
type FarmerStats struct {
	TotalCrops    int             `json:"total_crops"`
	TotalQuantity float64         `json:"total_quantity"`
	TotalValue    float64         `json:"total_value"`
	CropsByType   []CropTypeCount `json:"crops_by_type"`
}

// OrderStatusCount is one row of the orders-by-status dashboard breakdown.
type OrderStatusCount struct {
	Status OrderStatus `json:"status"`
	Count  int         `json:"count"`
}

// ConsumerStats contains aggregated counts for the consumer dashboard.
type ConsumerStats struct {
	TotalOrders   int                `json:"total_orders"`
	TotalSpending float64            `json:"total_spending"`
	OrderStatus   []OrderStatusCount `json:"order_status"`
}

// OrderPlacedEvent is the message published to the fulfilment queue when a
// consumer places an order.
type OrderPlacedEvent struct {
	TraceID     string      `json:"trace_id"`
	OrderID     int64       `json:"order_id"`
	ConsumerID  int64       `json:"consumer_id"`
	TotalAmount float64     `json:"total_amount"`
	ItemCount   int         `json:"item_count"`
	Status      OrderStatus `json:"status"`
	PlacedAt    time.Time   `json:"placed_at"`
}
