package realtime

import (
	"context"
	"encoding/json"
	"time"

	"sushi-chatbot/internal/util"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 * 1024
)

// envelope is the wire format of every event in both directions
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type reconnectPayload struct {
	ConversationID string `json:"conversationId"`
}

type sendMessagePayload struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

// Conn is one websocket connection. Its write pump is the only writer on
// the socket; Emit queues frames and drops them if the client cannot keep
// up, which is acceptable for best-effort notifications.
type Conn struct {
	id     string
	hub    *Hub
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	logger *zap.Logger
}

func newConn(id string, hub *Hub, ws *websocket.Conn) *Conn {
	return &Conn{
		id:     id,
		hub:    hub,
		ws:     ws,
		send:   make(chan []byte, 64),
		done:   make(chan struct{}),
		logger: util.GetLogger(),
	}
}

// Emit queues one outbound event for the connection
func (c *Conn) Emit(event string, data interface{}) {
	encoded, err := json.Marshal(data)
	if err != nil {
		c.logger.Error("Failed to encode outbound event",
			zap.String("event", event),
			zap.Error(err))
		return
	}

	frame, err := json.Marshal(envelope{Event: event, Data: encoded})
	if err != nil {
		return
	}

	select {
	case <-c.done:
	case c.send <- frame:
	default:
		c.logger.Warn("Dropping event for slow client",
			zap.String("conn_id", c.id),
			zap.String("event", event))
	}
}

func (c *Conn) readPump() {
	defer func() {
		c.hub.unregister(c.id)
		close(c.done)
		_ = c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("Websocket read error",
					zap.String("conn_id", c.id),
					zap.Error(err))
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.Emit("error", map[string]string{"message": "malformed event"})
			continue
		}

		c.dispatch(&env)
	}
}

func (c *Conn) dispatch(env *envelope) {
	switch env.Event {
	case "subscribe_to_order":
		var sequenceNumber int64
		if err := json.Unmarshal(env.Data, &sequenceNumber); err != nil {
			c.Emit("error", map[string]string{"message": "subscribe_to_order expects an order number"})
			return
		}
		c.hub.Subscribe(c.id, sequenceNumber)

	case "unsubscribe_from_order":
		var sequenceNumber int64
		if err := json.Unmarshal(env.Data, &sequenceNumber); err != nil {
			c.Emit("error", map[string]string{"message": "unsubscribe_from_order expects an order number"})
			return
		}
		c.hub.Unsubscribe(c.id, sequenceNumber)

	case "reconnect_chat":
		var payload reconnectPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			c.Emit("error", map[string]string{"message": "malformed reconnect_chat payload"})
			return
		}
		c.hub.router.HandleReconnect(c.id, payload.ConversationID)

	case "send_message":
		var payload sendMessagePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			c.Emit("error", map[string]string{"message": "malformed send_message payload"})
			return
		}
		// Processing can take many poll intervals against the
		// assistant; keep the read pump free for subscribe events.
		go c.hub.router.HandleMessage(context.Background(), c.id, payload.Message, payload.ConversationID, c)

	default:
		c.Emit("error", map[string]string{"message": "unknown event: " + env.Event})
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
