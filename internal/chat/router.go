package chat

import (
	"context"
	"sync"
	"time"

	"sushi-chatbot/internal/service"
	"sushi-chatbot/internal/util"

	"go.uber.org/zap"
)

// Emitter delivers an outbound event to one real-time connection
type Emitter interface {
	Emit(event string, data interface{})
}

// Bridge is the assistant surface the router talks to
type Bridge interface {
	CreateConversation(ctx context.Context) (string, error)
	ProcessMessage(ctx context.Context, conversationID, message string) (string, error)
}

// Session is the ephemeral per-connection chat state. It lives from the
// first message (or an explicit reconnect) until the connection closes; a
// processing failure never destroys it.
type Session struct {
	// mu guards the fields and serializes message processing, so
	// concurrent messages on one connection cannot each create a
	// conversation.
	mu sync.Mutex

	ConversationID string
	LastActivity   time.Time
}

// Router owns the session map and routes chat traffic between real-time
// connections and the assistant bridge. It also exposes the tool dispatch
// surface the bridge invokes mid-run.
type Router struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	bridge   Bridge
	orders   *service.OrderService
	catalog  *service.CatalogService
	tzOffset int
	now      func() time.Time
	logger   *zap.Logger
}

// NewRouter creates a new chat router. The bridge is attached afterwards
// with SetBridge because bridge and router reference each other.
func NewRouter(orders *service.OrderService, catalog *service.CatalogService, tzOffset int) *Router {
	return &Router{
		sessions: make(map[string]*Session),
		orders:   orders,
		catalog:  catalog,
		tzOffset: tzOffset,
		now:      time.Now,
		logger:   util.GetLogger(),
	}
}

// SetBridge attaches the assistant bridge
func (r *Router) SetBridge(bridge Bridge) {
	r.bridge = bridge
}

// HandleReconnect associates a known conversation with the connection's
// session, creating the session if needed. Idempotent.
func (r *Router) HandleReconnect(connID, conversationID string) {
	if conversationID == "" {
		return
	}

	session := r.ensureSession(connID)
	session.mu.Lock()
	session.ConversationID = conversationID
	session.LastActivity = r.now()
	session.mu.Unlock()

	r.logger.Info("Chat reconnected",
		zap.String("conn_id", connID),
		zap.String("conversation_id", conversationID))
}

// HandleDisconnect discards the connection's session
func (r *Router) HandleDisconnect(connID string) {
	r.mu.Lock()
	delete(r.sessions, connID)
	r.mu.Unlock()
}

// HandleMessage processes one chat message from a connection. A
// client-supplied conversation id overrides the session's association. When
// no conversation exists yet, one is created and announced through
// thread_created before the message is processed. A typing signal is
// emitted while processing and retracted on every exit path; failures
// surface as an error event and leave the session intact.
func (r *Router) HandleMessage(ctx context.Context, connID, message, conversationID string, emitter Emitter) {
	util.ChatMessagesTotal.Inc()

	session := r.ensureSession(connID)
	session.mu.Lock()
	defer session.mu.Unlock()

	if conversationID != "" {
		session.ConversationID = conversationID
	}

	if session.ConversationID == "" {
		newID, err := r.bridge.CreateConversation(ctx)
		if err != nil {
			util.ChatErrorsTotal.Inc()
			r.logger.Error("Failed to create conversation",
				zap.String("conn_id", connID),
				zap.Error(err))
			emitter.Emit("error", map[string]string{"message": "failed to initialize the chat"})
			return
		}
		session.ConversationID = newID
		emitter.Emit("thread_created", newID)
	}

	emitter.Emit("bot_typing", true)
	defer emitter.Emit("bot_typing", false)

	reply, err := r.bridge.ProcessMessage(ctx, session.ConversationID, message)
	session.LastActivity = r.now()

	if err != nil {
		util.ChatErrorsTotal.Inc()
		r.logger.Warn("Failed to process chat message",
			zap.String("conn_id", connID),
			zap.String("conversation_id", session.ConversationID),
			zap.Error(err))
		emitter.Emit("error", map[string]string{"message": "error processing the message"})
		return
	}

	emitter.Emit("receive_message", map[string]string{
		"role":    "assistant",
		"content": reply,
	})
}

// SessionConversation returns the conversation id currently associated
// with the connection, if any.
func (r *Router) SessionConversation(connID string) (string, bool) {
	r.mu.RLock()
	session, ok := r.sessions[connID]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	return session.ConversationID, session.ConversationID != ""
}

func (r *Router) ensureSession(connID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[connID]
	if !ok {
		session = &Session{LastActivity: r.now()}
		r.sessions[connID] = session
	}
	return session
}
