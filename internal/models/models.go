package models

import "time"

// User represents an account that owns clients and their orders
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username,omitempty"`
	Email        string    `db:"email" json:"email"`
	FullName     string    `db:"full_name" json:"full_name,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Client represents a customer record owned by a user
type Client struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	Address   string    `db:"address" json:"address,omitempty"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Product represents a catalog entry. Price is in minor currency units.
type Product struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
	Price       int64     `db:"price" json:"price"`
	Stock       int       `db:"stock" json:"stock"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Order represents a customer order. Total is in minor currency units
// and always equals the sum of its items' subtotals.
type Order struct {
	ID        int64       `db:"id" json:"id"`
	ClientID  int64       `db:"client_id" json:"client_id"`
	Status    OrderStatus `db:"status" json:"status"`
	Total     int64       `db:"total" json:"total"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`

	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// OrderItem represents one line of an order. UnitPrice is a snapshot of
// the product price at order time; Subtotal = Quantity * UnitPrice.
type OrderItem struct {
	ID        int64 `db:"id" json:"id"`
	OrderID   int64 `db:"order_id" json:"order_id"`
	ProductID int64 `db:"product_id" json:"product_id"`
	Quantity  int   `db:"quantity" json:"quantity"`
	UnitPrice int64 `db:"unit_price" json:"unit_price"`
	Subtotal  int64 `db:"subtotal" json:"subtotal"`
}

// OrderFilter narrows order listings. Nil/zero fields are ignored.
type OrderFilter struct {
	ClientID  *int64
	Status    string
	StartDate *time.Time
	EndDate   *time.Time
	Offset    int
	Limit     int
}

// TimelineEntry is one recorded lifecycle event of an order
type TimelineEntry struct {
	ID         int64     `db:"id" json:"id"`
	OrderID    int64     `db:"order_id" json:"order_id"`
	EventID    string    `db:"event_id" json:"event_id"`
	EventType  string    `db:"event_type" json:"event_type"`
	FromStatus string    `db:"from_status" json:"from_status,omitempty"`
	ToStatus   string    `db:"to_status" json:"to_status,omitempty"`
	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`
}

// ProcessedEvent for idempotent event consumption
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
