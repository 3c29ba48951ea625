package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sushi-chatbot/internal/models"
	"sushi-chatbot/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStore is the storage contract the order engine depends on. Lookup
// misses are reported as (nil, nil) so the engine can fail closed with a
// NOT_FOUND of its own.
type OrderStore interface {
	// CreateOrder persists the order and its items atomically: on error
	// nothing may remain visible.
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrder(ctx context.Context, sequenceNumber int64, customerName string) (*models.Order, error)
	GetOrderItems(ctx context.Context, sequenceNumber int64) ([]models.OrderItem, error)
	ListOrders(ctx context.Context, statuses []string, nameFilter string) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, sequenceNumber int64, status string) error
}

// ProductReader resolves products at order-creation time
type ProductReader interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
}

// Notifier receives one call per successful status update. Delivery is
// best-effort; the engine never fails on it.
type Notifier interface {
	Notify(ctx context.Context, notification *models.StatusNotification)
}

// EventPublisher publishes order audit events
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// OrderService implements the order lifecycle: creation with price
// computation, the status state machine, and notification on status change.
type OrderService struct {
	store    OrderStore
	catalog  ProductReader
	notifier Notifier
	events   EventPublisher
	logger   *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store OrderStore, catalog ProductReader, notifier Notifier, events EventPublisher) *OrderService {
	return &OrderService{
		store:    store,
		catalog:  catalog,
		notifier: notifier,
		events:   events,
		logger:   util.GetLogger(),
	}
}

// CreateOrderInput is the order creation payload. Field names match the
// external JSON contract; unknown fields are rejected at the boundary.
type CreateOrderInput struct {
	CustomerName    string           `json:"customerName"`
	Items           []OrderItemInput `json:"items"`
	DeliveryType    string           `json:"deliveryType"`
	DeliveryAddress string           `json:"deliveryAddress"`
	ScheduledTime   string           `json:"scheduledTime"`
	Comments        string           `json:"comments"`
}

// OrderItemInput is one requested line item
type OrderItemInput struct {
	ProductID int64 `json:"product"`
	Quantity  int   `json:"quantity"`
}

// NormalizeName applies the customer-name normalization used both at order
// creation and at lookup: trimmed and case-folded.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CreateOrder validates the input, resolves every product, computes the
// total as the sum of unit price times quantity at this moment, and persists
// the order with status pending, items included, in one atomic write. No
// notification fires on creation.
func (os *OrderService) CreateOrder(ctx context.Context, input *CreateOrderInput) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	if err := validateOrderInput(input); err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, err
	}

	var totalPrice int64
	for _, item := range input.Items {
		product, err := os.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			util.OrdersFailedTotal.WithLabelValues("catalog_error").Inc()
			return nil, fmt.Errorf("failed to resolve product %d: %w", item.ProductID, err)
		}
		if product == nil {
			util.OrdersFailedTotal.WithLabelValues("product_not_found").Inc()
			return nil, NotFoundError(fmt.Sprintf("product %d does not exist", item.ProductID))
		}
		if !product.Available {
			util.OrdersFailedTotal.WithLabelValues("product_unavailable").Inc()
			return nil, UnavailableError(fmt.Sprintf("product %s is not available", product.Name))
		}

		totalPrice += product.Price * int64(item.Quantity)
	}

	order := &models.Order{
		CustomerName:    NormalizeName(input.CustomerName),
		Status:          models.StatusPending,
		DeliveryType:    input.DeliveryType,
		DeliveryAddress: strings.TrimSpace(input.DeliveryAddress),
		ScheduledTime:   input.ScheduledTime,
		Comments:        strings.TrimSpace(input.Comments),
		TotalPrice:      totalPrice,
	}

	items := make([]models.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	if err := os.store.CreateOrder(ctx, order, items); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	os.logger.Info("Order created",
		zap.Int64("sequence_number", order.SequenceNumber),
		zap.String("customer_name", order.CustomerName),
		zap.Int64("total_price", order.TotalPrice))

	resolved, err := os.resolveItems(ctx, order)
	if err != nil {
		return nil, err
	}

	os.publishCreated(ctx, resolved)
	return resolved, nil
}

// ListOrders retrieves orders newest-first. Without includeCompleted the
// result is restricted to the active statuses (pending, accepted, en_route).
// The optional name filter is a case-insensitive substring match.
func (os *OrderService) ListOrders(ctx context.Context, includeCompleted bool, nameFilter string) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	var statuses []string
	if !includeCompleted {
		statuses = models.ActiveStatuses
	}

	orders, err := os.store.ListOrders(ctx, statuses, strings.TrimSpace(nameFilter))
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, NotFoundError("no orders found")
	}

	return orders, nil
}

// GetOrder retrieves an order by sequence number and customer name. Both are
// required; the name must match exactly after normalization. A mismatch on
// either yields NOT_FOUND.
func (os *OrderService) GetOrder(ctx context.Context, sequenceNumber int64, customerName string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	if sequenceNumber == 0 || strings.TrimSpace(customerName) == "" {
		return nil, ValidationError("the order number and the customer name are required")
	}

	order, err := os.store.GetOrder(ctx, sequenceNumber, NormalizeName(customerName))
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, NotFoundError("no order was found with the provided details")
	}

	return os.resolveItems(ctx, order)
}

// UpdateStatus moves an order along the status state machine and, after
// persisting, hands the new status to the notifier exactly once. The
// notification is fire-and-forget; the call never fails on delivery.
func (os *OrderService) UpdateStatus(ctx context.Context, sequenceNumber int64, newStatus, customerName string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if !models.IsValidStatus(newStatus) {
		return nil, ValidationError(fmt.Sprintf("invalid order status: %s", newStatus))
	}
	if strings.TrimSpace(customerName) == "" {
		return nil, ValidationError("the customer name is required")
	}

	order, err := os.store.GetOrder(ctx, sequenceNumber, NormalizeName(customerName))
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, NotFoundError("no order was found with the provided details")
	}

	if newStatus == models.StatusCancelled && order.Status != models.StatusPending {
		return nil, ValidationError("only pending orders can be cancelled")
	}
	if !models.CanTransition(order.Status, newStatus) {
		return nil, ValidationError(fmt.Sprintf("cannot change order status from %s to %s", order.Status, newStatus))
	}

	oldStatus := order.Status
	if err := os.store.UpdateOrderStatus(ctx, sequenceNumber, newStatus); err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	order.Status = newStatus
	order.UpdatedAt = time.Now()

	util.OrderStatusUpdatesTotal.WithLabelValues(newStatus).Inc()
	if newStatus == models.StatusCancelled {
		util.OrdersCancelledTotal.Inc()
	}

	resolved, err := os.resolveItems(ctx, order)
	if err != nil {
		return nil, err
	}

	os.notifier.Notify(ctx, buildNotification(resolved))

	os.publishStatusChanged(ctx, resolved, oldStatus)

	os.logger.Info("Order status updated",
		zap.Int64("sequence_number", sequenceNumber),
		zap.String("old_status", oldStatus),
		zap.String("new_status", newStatus))

	return resolved, nil
}

// resolveItems loads the order's line items with product details attached
func (os *OrderService) resolveItems(ctx context.Context, order *models.Order) (*models.Order, error) {
	items, err := os.store.GetOrderItems(ctx, order.SequenceNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	order.Items = items
	return order, nil
}

func (os *OrderService) publishCreated(ctx context.Context, order *models.Order) {
	if os.events == nil {
		return
	}

	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.ProductPrice,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		SequenceNumber: order.SequenceNumber,
		CustomerName:   order.CustomerName,
		TotalPrice:     order.TotalPrice,
		DeliveryType:   order.DeliveryType,
		Items:          items,
	}

	if err := os.events.PublishOrderCreated(ctx, event); err != nil {
		os.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

func (os *OrderService) publishStatusChanged(ctx context.Context, order *models.Order, oldStatus string) {
	if os.events == nil {
		return
	}

	event := &models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderStatusChanged,
			Timestamp: time.Now(),
		},
		SequenceNumber: order.SequenceNumber,
		CustomerName:   order.CustomerName,
		OldStatus:      oldStatus,
		NewStatus:      order.Status,
	}

	if err := os.events.PublishOrderStatusChanged(ctx, event); err != nil {
		os.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}
}

// buildNotification snapshots an order with resolved items for the
// real-time channel
func buildNotification(order *models.Order) *models.StatusNotification {
	items := make([]models.NotificationItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.NotificationItem{
			Product:  item.ProductName,
			Quantity: item.Quantity,
			Price:    item.ProductPrice,
		})
	}

	return &models.StatusNotification{
		SequenceNumber: order.SequenceNumber,
		Status:         order.Status,
		CustomerName:   order.CustomerName,
		TotalPrice:     order.TotalPrice,
		Items:          items,
		Delivery: models.NotificationDest{
			Type:          order.DeliveryType,
			Address:       order.DeliveryAddress,
			ScheduledTime: order.ScheduledTime,
		},
		Comments:  order.Comments,
		Timestamp: time.Now(),
	}
}

func validateOrderInput(input *CreateOrderInput) error {
	if strings.TrimSpace(input.CustomerName) == "" {
		return ValidationError("the customer name is required")
	}
	if len(input.Items) == 0 {
		return ValidationError("the order must contain at least one item")
	}
	if input.DeliveryType != models.DeliveryTypeDelivery && input.DeliveryType != models.DeliveryTypePickup {
		return ValidationError("deliveryType must be delivery or pickup")
	}
	if len(input.Comments) > 500 {
		return ValidationError("comments must not exceed 500 characters")
	}

	for _, item := range input.Items {
		if item.ProductID == 0 {
			return ValidationError("every item must have a product and a quantity")
		}
		if item.Quantity < 1 {
			return ValidationError("the quantity must be a number greater than 0")
		}
	}

	return nil
}
