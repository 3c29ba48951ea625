package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sushi-chatbot/internal/models"
	"sushi-chatbot/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	Event string
	Data  interface{}
}

type recorderEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (e *recorderEmitter) Emit(event string, data interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{Event: event, Data: data})
}

func (e *recorderEmitter) byName(name string) []recordedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var matched []recordedEvent
	for _, ev := range e.events {
		if ev.Event == name {
			matched = append(matched, ev)
		}
	}
	return matched
}

type fakeBridge struct {
	mu         sync.Mutex
	nextThread string
	createErr  error
	reply      string
	processErr error

	created   int
	processed []string
}

func (b *fakeBridge) CreateConversation(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return "", b.createErr
	}
	b.created++
	return b.nextThread, nil
}

func (b *fakeBridge) ProcessMessage(ctx context.Context, conversationID, message string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.processed = append(b.processed, message)
	if b.processErr != nil {
		return "", b.processErr
	}
	return b.reply, nil
}

func newTestRouter(bridge Bridge) *Router {
	router := NewRouter(nil, nil, 0)
	router.SetBridge(bridge)
	return router
}

func TestHandleMessageCreatesConversation(t *testing.T) {
	bridge := &fakeBridge{nextThread: "thread_1", reply: "Hi there!"}
	router := newTestRouter(bridge)
	emitter := &recorderEmitter{}

	router.HandleMessage(context.Background(), "conn_1", "hello", "", emitter)

	created := emitter.byName("thread_created")
	require.Len(t, created, 1)
	assert.Equal(t, "thread_1", created[0].Data)

	received := emitter.byName("receive_message")
	require.Len(t, received, 1)
	assert.Equal(t, map[string]string{"role": "assistant", "content": "Hi there!"}, received[0].Data)

	conversationID, ok := router.SessionConversation("conn_1")
	assert.True(t, ok)
	assert.Equal(t, "thread_1", conversationID)
}

func TestHandleMessageReusesConversation(t *testing.T) {
	bridge := &fakeBridge{nextThread: "thread_1", reply: "ok"}
	router := newTestRouter(bridge)
	emitter := &recorderEmitter{}

	router.HandleMessage(context.Background(), "conn_1", "first", "", emitter)
	router.HandleMessage(context.Background(), "conn_1", "second", "", emitter)

	assert.Len(t, emitter.byName("thread_created"), 1, "conversation is created once per session")
	assert.Equal(t, []string{"first", "second"}, bridge.processed)
}

// Messages arrive on their own goroutines; one session must still end up
// with exactly one conversation, with processing serialized behind it.
func TestConcurrentMessagesShareOneConversation(t *testing.T) {
	bridge := &fakeBridge{nextThread: "thread_1", reply: "ok"}
	router := newTestRouter(bridge)
	emitter := &recorderEmitter{}

	const messages = 8
	var wg sync.WaitGroup
	for i := 0; i < messages; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			router.HandleMessage(context.Background(), "conn_1", "hello", "", emitter)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, bridge.created, "one session gets exactly one conversation")
	assert.Len(t, emitter.byName("thread_created"), 1)
	assert.Len(t, emitter.byName("receive_message"), messages)
	assert.Len(t, bridge.processed, messages)

	conversationID, ok := router.SessionConversation("conn_1")
	assert.True(t, ok)
	assert.Equal(t, "thread_1", conversationID)
}

func TestHandleMessageTypingSignal(t *testing.T) {
	bridge := &fakeBridge{nextThread: "thread_1", reply: "ok"}
	router := newTestRouter(bridge)
	emitter := &recorderEmitter{}

	router.HandleMessage(context.Background(), "conn_1", "hello", "", emitter)

	typing := emitter.byName("bot_typing")
	require.Len(t, typing, 2)
	assert.Equal(t, true, typing[0].Data)
	assert.Equal(t, false, typing[1].Data)
}

func TestHandleMessageTypingRetractedOnFailure(t *testing.T) {
	bridge := &fakeBridge{nextThread: "thread_1", processErr: errors.New("run failed")}
	router := newTestRouter(bridge)
	emitter := &recorderEmitter{}

	router.HandleMessage(context.Background(), "conn_1", "hello", "", emitter)

	typing := emitter.byName("bot_typing")
	require.Len(t, typing, 2)
	assert.Equal(t, false, typing[1].Data)

	errs := emitter.byName("error")
	require.Len(t, errs, 1)
	assert.Equal(t, map[string]string{"message": "error processing the message"}, errs[0].Data)

	// the session survives the failure
	_, ok := router.SessionConversation("conn_1")
	assert.True(t, ok)
}

func TestHandleMessageCreateConversationFailure(t *testing.T) {
	bridge := &fakeBridge{createErr: errors.New("api down")}
	router := newTestRouter(bridge)
	emitter := &recorderEmitter{}

	router.HandleMessage(context.Background(), "conn_1", "hello", "", emitter)

	errs := emitter.byName("error")
	require.Len(t, errs, 1)
	assert.Equal(t, map[string]string{"message": "failed to initialize the chat"}, errs[0].Data)
	assert.Empty(t, emitter.byName("bot_typing"))
	assert.Empty(t, bridge.processed)
}

func TestHandleMessageClientConversationOverride(t *testing.T) {
	bridge := &fakeBridge{reply: "ok"}
	router := newTestRouter(bridge)
	emitter := &recorderEmitter{}

	router.HandleMessage(context.Background(), "conn_1", "hello", "thread_known", emitter)

	assert.Empty(t, emitter.byName("thread_created"))
	conversationID, _ := router.SessionConversation("conn_1")
	assert.Equal(t, "thread_known", conversationID)
}

func TestHandleReconnectIsIdempotent(t *testing.T) {
	router := newTestRouter(&fakeBridge{})

	router.HandleReconnect("conn_1", "thread_9")
	router.HandleReconnect("conn_1", "thread_9")

	conversationID, ok := router.SessionConversation("conn_1")
	assert.True(t, ok)
	assert.Equal(t, "thread_9", conversationID)

	// an empty conversation id is a no-op and creates no session
	router.HandleReconnect("conn_2", "")
	_, ok = router.SessionConversation("conn_2")
	assert.False(t, ok)
}

func TestHandleDisconnectDropsSession(t *testing.T) {
	router := newTestRouter(&fakeBridge{nextThread: "thread_1", reply: "ok"})
	emitter := &recorderEmitter{}

	router.HandleMessage(context.Background(), "conn_1", "hello", "", emitter)
	router.HandleDisconnect("conn_1")

	_, ok := router.SessionConversation("conn_1")
	assert.False(t, ok)
}

func TestCurrentTimeAppliesOffset(t *testing.T) {
	router := NewRouter(nil, nil, -3)
	router.now = func() time.Time {
		return time.Date(2024, 6, 1, 14, 30, 0, 0, time.UTC)
	}

	result := router.currentTime()
	assert.Equal(t, "11:30", result["current_time"])
}

func TestCurrentTimeWrapsAroundMidnight(t *testing.T) {
	router := NewRouter(nil, nil, 5)
	router.now = func() time.Time {
		return time.Date(2024, 6, 1, 22, 0, 0, 0, time.UTC)
	}

	result := router.currentTime()
	assert.Equal(t, "03:00", result["current_time"])
}

func TestExecuteToolUnknownTool(t *testing.T) {
	router := newTestRouter(&fakeBridge{})

	output, err := router.ExecuteTool(context.Background(), "summon_chef", "{}")
	require.NoError(t, err)
	assert.Contains(t, output, "unknown tool: summon_chef")
}

// The order-facing tools run against the real services over in-memory
// storage fakes.

type toolOrderStore struct {
	orders  map[int64]*models.Order
	items   map[int64][]models.OrderItem
	nextSeq int64
}

func newToolOrderStore() *toolOrderStore {
	return &toolOrderStore{
		orders: make(map[int64]*models.Order),
		items:  make(map[int64][]models.OrderItem),
	}
}

func (s *toolOrderStore) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	s.nextSeq++
	order.SequenceNumber = s.nextSeq
	copied := *order
	s.orders[order.SequenceNumber] = &copied
	for _, item := range items {
		item.OrderSequence = order.SequenceNumber
		s.items[order.SequenceNumber] = append(s.items[order.SequenceNumber], item)
	}
	return nil
}

func (s *toolOrderStore) GetOrder(ctx context.Context, sequenceNumber int64, customerName string) (*models.Order, error) {
	order, ok := s.orders[sequenceNumber]
	if !ok || order.CustomerName != customerName {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (s *toolOrderStore) GetOrderItems(ctx context.Context, sequenceNumber int64) ([]models.OrderItem, error) {
	return s.items[sequenceNumber], nil
}

func (s *toolOrderStore) ListOrders(ctx context.Context, statuses []string, nameFilter string) ([]models.Order, error) {
	var result []models.Order
	for _, order := range s.orders {
		result = append(result, *order)
	}
	return result, nil
}

func (s *toolOrderStore) UpdateOrderStatus(ctx context.Context, sequenceNumber int64, status string) error {
	s.orders[sequenceNumber].Status = status
	return nil
}

type toolProductReader struct {
	products map[int64]*models.Product
}

func (r *toolProductReader) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return r.products[id], nil
}

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, notification *models.StatusNotification) {}

func newToolRouter() (*Router, *toolOrderStore) {
	store := newToolOrderStore()
	catalog := &toolProductReader{products: map[int64]*models.Product{
		1: {ID: 1, Name: "Salmon Roll", Price: 2500, Available: true},
	}}
	orders := service.NewOrderService(store, catalog, noopNotifier{}, nil)
	return NewRouter(orders, nil, 0), store
}

func TestCreateOrderTool(t *testing.T) {
	router, store := newToolRouter()

	args := `{
		"customer_name": "Alice",
		"delivery_type": "delivery",
		"delivery_address": "123 Fish St",
		"items": [{"product_id": 1, "quantity": 2}]
	}`

	output, err := router.ExecuteTool(context.Background(), ToolCreateOrder, args)
	require.NoError(t, err)

	assert.Contains(t, output, `"success":true`)
	assert.Contains(t, output, `"subscribeToOrder":1`)
	require.Len(t, store.orders, 1)
	assert.Equal(t, int64(5000), store.orders[1].TotalPrice)
}

func TestCreateOrderToolIgnoresScheduledTimeForDelivery(t *testing.T) {
	router, store := newToolRouter()

	args := `{
		"customer_name": "Alice",
		"delivery_type": "delivery",
		"delivery_address": "123 Fish St",
		"scheduled_time": "19:00",
		"items": [{"product_id": 1, "quantity": 1}]
	}`

	_, err := router.ExecuteTool(context.Background(), ToolCreateOrder, args)
	require.NoError(t, err)
	assert.Empty(t, store.orders[1].ScheduledTime)
}

func TestCreateOrderToolValidationFailure(t *testing.T) {
	router, _ := newToolRouter()

	output, err := router.ExecuteTool(context.Background(), ToolCreateOrder, `{"customer_name":"Alice"}`)
	require.NoError(t, err, "a domain failure is tool output, not a tool error")
	assert.Contains(t, output, `"success":false`)
	assert.Contains(t, output, "the order must contain at least one item")
}

func TestCheckOrderStatusTool(t *testing.T) {
	router, store := newToolRouter()
	store.orders[7] = &models.Order{
		SequenceNumber: 7,
		CustomerName:   "alice",
		Status:         models.StatusEnRoute,
		TotalPrice:     5000,
	}
	store.items[7] = []models.OrderItem{
		{ProductID: 1, Quantity: 2, ProductName: "Salmon Roll", ProductPrice: 2500},
	}

	output, err := router.ExecuteTool(context.Background(), ToolCheckOrderStatus,
		`{"order_number": 7, "customer_name": "Alice"}`)
	require.NoError(t, err)

	assert.Contains(t, output, `"orderNumber":7`)
	assert.Contains(t, output, `"status":"en_route"`)
	assert.Contains(t, output, `"product":"Salmon Roll"`)
}

func TestCheckOrderStatusToolNotFound(t *testing.T) {
	router, _ := newToolRouter()

	output, err := router.ExecuteTool(context.Background(), ToolCheckOrderStatus,
		`{"order_number": 99, "customer_name": "Alice"}`)
	require.NoError(t, err)
	assert.Contains(t, output, `"success":false`)
	assert.Contains(t, output, "no order was found with the provided details")
}

func TestCancelOrderToolNormalizesResponse(t *testing.T) {
	router, store := newToolRouter()
	store.orders[3] = &models.Order{SequenceNumber: 3, CustomerName: "alice", Status: models.StatusPending}

	output, err := router.ExecuteTool(context.Background(), ToolCancelOrder,
		`{"order_number": 3, "customer_name": "Alice"}`)
	require.NoError(t, err)
	assert.Contains(t, output, `"success":true`)
	assert.Contains(t, output, `"sequenceNumber":3`)
	assert.Contains(t, output, `"status":"cancelled"`)

	// cancelling a non-pending order fails but keeps the same shape
	store.orders[4] = &models.Order{SequenceNumber: 4, CustomerName: "alice", Status: models.StatusEnRoute}
	output, err = router.ExecuteTool(context.Background(), ToolCancelOrder,
		`{"order_number": 4, "customer_name": "Alice"}`)
	require.NoError(t, err)
	assert.Contains(t, output, `"success":false`)
	assert.Contains(t, output, "only pending orders can be cancelled")
	assert.Contains(t, output, `"sequenceNumber":null`)
	assert.Contains(t, output, `"status":null`)
}
