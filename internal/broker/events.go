package broker

import (
	"context"
	"fmt"

	"sushi-chatbot/internal/models"
)

// EventPublisher publishes order audit events. The stream is informational:
// nothing in this service consumes it, and publish failures are reported to
// the caller to log, not to fail the request.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderCreated publishes an OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	key := fmt.Sprintf("order-%d", event.SequenceNumber)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderStatusChanged publishes an OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	key := fmt.Sprintf("order-%d", event.SequenceNumber)
	return ep.producer.PublishEvent(ctx, key, event)
}
