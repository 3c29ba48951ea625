package notify

import (
	"context"
	"fmt"

	"sushi-chatbot/internal/models"
	"sushi-chatbot/internal/util"

	"go.uber.org/zap"
)

// Publisher is the single capability the dispatcher needs from the
// real-time transport. Publishing to a topic nobody listens on is a no-op.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// OrderTopic is the channel name for one order's status notifications
func OrderTopic(sequenceNumber int64) string {
	return fmt.Sprintf("orders.status.%d", sequenceNumber)
}

var statusMessages = map[string]string{
	models.StatusPending:    "Your order is awaiting confirmation ⏳",
	models.StatusAccepted:   "Your order has been accepted! 👍",
	models.StatusProcessing: "Your order is being prepared! 🍱",
	models.StatusEnRoute:    "Your order is on its way! 🛵",
	models.StatusDelivered:  "Your order has been delivered. Enjoy! 🍣",
	models.StatusCancelled:  "You have cancelled your order 😔. We hope to see you again soon 🤞",
}

// Dispatcher turns order status changes into human-readable messages and
// fans them out over the publisher. Delivery is at-most-once and
// best-effort: publish errors are logged and swallowed, and there is no
// queueing of missed notifications — the order record stays the source of
// truth.
type Dispatcher struct {
	publisher Publisher
	logger    *zap.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(publisher Publisher) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// Notify publishes one status notification for the order. Never fails.
func (d *Dispatcher) Notify(ctx context.Context, notification *models.StatusNotification) {
	notification.Message = Message(notification.SequenceNumber, notification.Status)

	topic := OrderTopic(notification.SequenceNumber)
	if err := d.publisher.Publish(ctx, topic, notification); err != nil {
		util.NotificationsFailedTotal.Inc()
		d.logger.Error("Failed to publish order notification",
			zap.Int64("sequence_number", notification.SequenceNumber),
			zap.String("status", notification.Status),
			zap.Error(err))
		return
	}

	util.NotificationsPublishedTotal.Inc()
	d.logger.Info("Order notification published",
		zap.Int64("sequence_number", notification.SequenceNumber),
		zap.String("status", notification.Status))
}

// Message builds the push message for a status change. Unknown statuses get
// the generic fallback.
func Message(sequenceNumber int64, status string) string {
	header := fmt.Sprintf("Update on your order #%d! 🔔\n\n", sequenceNumber)

	body, ok := statusMessages[status]
	if !ok {
		body = fmt.Sprintf("Status: %s", status)
	}
	return header + body
}
