package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"sushi-chatbot/internal/chat"
	"sushi-chatbot/internal/models"
	"sushi-chatbot/internal/redisclient"
	"sushi-chatbot/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const topicPrefix = "orders.status."

// Hub owns the real-time connections, their per-order subscriptions, and
// the fan-out of published status notifications to locally subscribed
// connections. Subscriptions are membership only; a connection may follow
// any number of orders and an order any number of connections.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]chat.Emitter
	subs    map[int64]map[string]struct{}

	router   *chat.Router
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHub creates a new hub. Connections from allowedOrigin (or with no
// Origin header) are accepted.
func NewHub(router *chat.Router, allowedOrigin string) *Hub {
	return &Hub{
		clients: make(map[string]chat.Emitter),
		subs:    make(map[int64]map[string]struct{}),
		router:  router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
		logger: util.GetLogger(),
	}
}

// HandleWS upgrades an HTTP request to a websocket connection and serves it
func (h *Hub) HandleWS(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newConn(uuid.New().String(), h, ws)
	h.register(conn.id, conn)

	h.logger.Info("Client connected", zap.String("conn_id", conn.id))

	go conn.writePump()
	go conn.readPump()
}

// Subscribe adds the connection to an order's notification channel
func (h *Hub) Subscribe(connID string, sequenceNumber int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[connID]; !ok {
		return
	}
	if h.subs[sequenceNumber] == nil {
		h.subs[sequenceNumber] = make(map[string]struct{})
	}
	h.subs[sequenceNumber][connID] = struct{}{}

	h.logger.Info("Client subscribed to order",
		zap.String("conn_id", connID),
		zap.Int64("sequence_number", sequenceNumber))
}

// Unsubscribe removes the connection from an order's notification channel
func (h *Hub) Unsubscribe(connID string, sequenceNumber int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs[sequenceNumber], connID)
	if len(h.subs[sequenceNumber]) == 0 {
		delete(h.subs, sequenceNumber)
	}
}

// Deliver pushes a status notification to every connection subscribed to
// the order. Zero subscribers means the notification is silently dropped.
func (h *Hub) Deliver(sequenceNumber int64, notification *models.StatusNotification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID := range h.subs[sequenceNumber] {
		if emitter, ok := h.clients[connID]; ok {
			emitter.Emit("receive_message", map[string]string{
				"role":    "assistant",
				"content": notification.Message,
			})
		}
	}
}

// RunSubscriber consumes the redis notification channels and routes each
// published notification to locally subscribed connections. It returns
// when the context is cancelled.
func (h *Hub) RunSubscriber(ctx context.Context, redis *redisclient.Client) error {
	pubsub := redis.PSubscribe(ctx, topicPrefix+"*")
	defer pubsub.Close()

	h.logger.Info("Realtime subscriber started")
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			sequenceNumber, err := strconv.ParseInt(strings.TrimPrefix(msg.Channel, topicPrefix), 10, 64)
			if err != nil {
				h.logger.Warn("Ignoring notification on malformed channel",
					zap.String("channel", msg.Channel))
				continue
			}

			var notification models.StatusNotification
			if err := json.Unmarshal([]byte(msg.Payload), &notification); err != nil {
				h.logger.Warn("Ignoring malformed notification payload",
					zap.String("channel", msg.Channel),
					zap.Error(err))
				continue
			}

			h.Deliver(sequenceNumber, &notification)
		}
	}
}

func (h *Hub) register(connID string, emitter chat.Emitter) {
	h.mu.Lock()
	h.clients[connID] = emitter
	h.mu.Unlock()

	util.ConnectionsActive.Inc()
}

// unregister tears down the connection: its subscriptions go away and the
// chat router discards its session.
func (h *Hub) unregister(connID string) {
	h.mu.Lock()
	delete(h.clients, connID)
	for sequenceNumber, conns := range h.subs {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(h.subs, sequenceNumber)
		}
	}
	h.mu.Unlock()

	h.router.HandleDisconnect(connID)
	util.ConnectionsActive.Dec()

	h.logger.Info("Client disconnected", zap.String("conn_id", connID))
}

// subscriberCount reports how many connections follow an order (test hook)
func (h *Hub) subscriberCount(sequenceNumber int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sequenceNumber])
}
