package notify

import (
	"context"
	"errors"
	"testing"

	"sushi-chatbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	topics   []string
	payloads []interface{}
	fail     error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	if p.fail != nil {
		return p.fail
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func TestNotifyPublishesToOrderTopic(t *testing.T) {
	publisher := &recordingPublisher{}
	dispatcher := NewDispatcher(publisher)

	notification := &models.StatusNotification{
		SequenceNumber: 42,
		Status:         models.StatusAccepted,
	}
	dispatcher.Notify(context.Background(), notification)

	require.Len(t, publisher.topics, 1)
	assert.Equal(t, "orders.status.42", publisher.topics[0])
	assert.Contains(t, notification.Message, "Update on your order #42!")
	assert.Contains(t, notification.Message, "accepted")
}

func TestNotifySwallowsPublishErrors(t *testing.T) {
	publisher := &recordingPublisher{fail: errors.New("redis down")}
	dispatcher := NewDispatcher(publisher)

	notification := &models.StatusNotification{
		SequenceNumber: 7,
		Status:         models.StatusEnRoute,
	}

	// Notify has no error return; a publish failure must not panic or
	// propagate.
	dispatcher.Notify(context.Background(), notification)
	assert.Empty(t, publisher.topics)
}

func TestMessageTemplates(t *testing.T) {
	cases := []struct {
		status   string
		fragment string
	}{
		{models.StatusPending, "awaiting confirmation"},
		{models.StatusAccepted, "accepted"},
		{models.StatusProcessing, "being prepared"},
		{models.StatusEnRoute, "on its way"},
		{models.StatusDelivered, "delivered"},
		{models.StatusCancelled, "cancelled your order"},
	}

	for _, tc := range cases {
		message := Message(5, tc.status)
		assert.Contains(t, message, "Update on your order #5!", tc.status)
		assert.Contains(t, message, tc.fragment, tc.status)
	}
}

func TestMessageUnknownStatusFallback(t *testing.T) {
	message := Message(9, "beamed_up")
	assert.Contains(t, message, "Status: beamed_up")
}

func TestOrderTopic(t *testing.T) {
	assert.Equal(t, "orders.status.123", OrderTopic(123))
}
