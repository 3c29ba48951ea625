package models

import "time"

// Event types published to the order audit stream
const (
	EventTypeOrderCreated       = "OrderCreated"
	EventTypeOrderStatusChanged = "OrderStatusChanged"
)

// BaseEvent contains common event fields
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent is published when an order is created
type OrderCreatedEvent struct {
	BaseEvent
	SequenceNumber int64           `json:"sequence_number"`
	CustomerName   string          `json:"customer_name"`
	TotalPrice     int64           `json:"total_price"`
	DeliveryType   string          `json:"delivery_type"`
	Items          []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent is published when an order status changes
type OrderStatusChangedEvent struct {
	BaseEvent
	SequenceNumber int64  `json:"sequence_number"`
	CustomerName   string `json:"customer_name"`
	OldStatus      string `json:"old_status"`
	NewStatus      string `json:"new_status"`
}

// OrderItemData is the event representation of a line item
type OrderItemData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}

// StatusNotification is the payload pushed to real-time subscribers of an
// order when its status changes. Delivery is best-effort; the order record
// stays the source of truth.
type StatusNotification struct {
	SequenceNumber int64              `json:"sequence_number"`
	Status         string             `json:"status"`
	Message        string             `json:"message"`
	CustomerName   string             `json:"customer_name"`
	TotalPrice     int64              `json:"total_price"`
	Items          []NotificationItem `json:"items"`
	Delivery       NotificationDest   `json:"delivery"`
	Comments       string             `json:"comments,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`
}

// NotificationItem is a resolved line-item summary
type NotificationItem struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

// NotificationDest carries the delivery details of the order
type NotificationDest struct {
	Type          string `json:"type"`
	Address       string `json:"address,omitempty"`
	ScheduledTime string `json:"scheduled_time,omitempty"`
}
