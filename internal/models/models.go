package models

import "time"

// Category groups products on the menu. SortOrder controls menu ordering.
type Category struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
	SortOrder   int       `db:"sort_order" json:"order"`
	Available   bool      `db:"available" json:"available"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Product is a menu item
type Product struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Price       int64     `db:"price" json:"price"`
	CategoryID  int64     `db:"category_id" json:"category_id"`
	Image       string    `db:"image" json:"image,omitempty"`
	Available   bool      `db:"available" json:"available"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Order represents a customer order. SequenceNumber is assigned by the
// database on insert: unique and increasing, with gaps permitted when an
// insert rolls back.
type Order struct {
	SequenceNumber  int64     `db:"sequence_number" json:"sequence_number"`
	CustomerName    string    `db:"customer_name" json:"customer_name"`
	Status          string    `db:"status" json:"status"`
	DeliveryType    string    `db:"delivery_type" json:"delivery_type"`
	DeliveryAddress string    `db:"delivery_address" json:"delivery_address,omitempty"`
	ScheduledTime   string    `db:"scheduled_time" json:"scheduled_time,omitempty"`
	Comments        string    `db:"comments" json:"comments,omitempty"`
	TotalPrice      int64     `db:"total_price" json:"total_price"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// OrderItem is a (product, quantity) pair owned by its order. The unit price
// is not stored on the item; it is baked into the order total at creation
// time. ProductName/ProductPrice are resolved from the catalog when the
// order is read back.
type OrderItem struct {
	ID            int64  `db:"id" json:"-"`
	OrderSequence int64  `db:"order_sequence" json:"-"`
	ProductID     int64  `db:"product_id" json:"product_id"`
	Quantity      int    `db:"quantity" json:"quantity"`
	ProductName   string `db:"product_name" json:"product_name,omitempty"`
	ProductPrice  int64  `db:"product_price" json:"product_price,omitempty"`
}

// Order statuses
const (
	StatusPending    = "pending"
	StatusAccepted   = "accepted"
	StatusRejected   = "rejected"
	StatusProcessing = "processing"
	StatusEnRoute    = "en_route"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// Delivery types
const (
	DeliveryTypeDelivery = "delivery"
	DeliveryTypePickup   = "pickup"
)

// ValidStatuses is the fixed status enumeration.
var ValidStatuses = []string{
	StatusPending,
	StatusAccepted,
	StatusRejected,
	StatusProcessing,
	StatusEnRoute,
	StatusDelivered,
	StatusCancelled,
}

// IsValidStatus reports whether s is in the status enumeration.
func IsValidStatus(s string) bool {
	for _, v := range ValidStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ActiveStatuses is the set returned when completed orders are excluded from
// a listing: exactly pending, accepted and en_route. processing is not in
// this set even though it is non-terminal; that asymmetry is the documented
// external contract and is pinned by tests.
var ActiveStatuses = []string{StatusPending, StatusAccepted, StatusEnRoute}

// Transitions is the allowed status graph. Statuses with no entry
// (rejected, delivered, cancelled) are terminal.
var Transitions = map[string][]string{
	StatusPending:    {StatusAccepted, StatusRejected, StatusProcessing, StatusCancelled},
	StatusAccepted:   {StatusProcessing},
	StatusProcessing: {StatusEnRoute},
	StatusEnRoute:    {StatusDelivered},
}

// CanTransition reports whether from -> to is an allowed transition.
func CanTransition(from, to string) bool {
	for _, next := range Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
