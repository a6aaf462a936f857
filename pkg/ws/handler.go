package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrymomot/notifyhub/pkg/logger"
	"github.com/dmitrymomot/notifyhub/pkg/notify"
	"github.com/dmitrymomot/notifyhub/pkg/realtime"
)

const (
	defaultWriteTimeout   = 10 * time.Second
	defaultPingInterval   = 30 * time.Second
	defaultPongTimeout    = 75 * time.Second
	defaultMaxMessageSize = 4 << 10

	// Buffer for protocol acks so the read loop never blocks on a slow
	// writer; overflow drops the ack, which clients must tolerate.
	ctlBuffer = 8
)

// Handler upgrades HTTP requests to WebSocket sessions and bridges them
// onto a realtime registry. Each session gets one registry connection;
// joining a room subscribes the session to that recipient's events.
type Handler struct {
	registry       *realtime.Registry[notify.Event]
	log            *slog.Logger
	writeTimeout   time.Duration
	pingInterval   time.Duration
	pongTimeout    time.Duration
	maxMessageSize int64
	upgrader       websocket.Upgrader
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger for the Handler.
func WithHandlerLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithWriteTimeout bounds each outbound frame write.
func WithWriteTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithPingInterval sets how often transport-level pings are sent.
func WithPingInterval(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithPongTimeout sets how long a session may stay silent before it is
// considered dead and torn down.
func WithPongTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.pongTimeout = d
		}
	}
}

// WithCheckOrigin overrides the upgrader's origin check. The default
// accepts any origin, which suits same-infrastructure deployments behind
// a trusted proxy.
func WithCheckOrigin(check func(*http.Request) bool) HandlerOption {
	return func(h *Handler) {
		if check != nil {
			h.upgrader.CheckOrigin = check
		}
	}
}

// NewHandler creates a WebSocket handler over the given registry.
func NewHandler(registry *realtime.Registry[notify.Event], opts ...HandlerOption) *Handler {
	h := &Handler{
		registry:       registry,
		log:            slog.Default(),
		writeTimeout:   defaultWriteTimeout,
		pingInterval:   defaultPingInterval,
		pongTimeout:    defaultPongTimeout,
		maxMessageSize: defaultMaxMessageSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and runs the session until the client
// disconnects or the registry shuts down.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.log.DebugContext(r.Context(), "websocket upgrade rejected", logger.Error(err))
		return
	}

	client := h.registry.Register()
	h.log.DebugContext(r.Context(), "websocket session opened", logger.ConnectionID(client.ID()))

	sess := &session{
		handler: h,
		ws:      conn,
		client:  client,
		ctl:     make(chan ack, ctlBuffer),
	}
	go sess.writeLoop()
	sess.readLoop()

	// Unregister synchronously so a reconnecting client can never race
	// its own previous membership.
	h.registry.Unregister(client.ID())
	conn.Close()
	h.log.DebugContext(r.Context(), "websocket session closed",
		logger.ConnectionID(client.ID()),
		logger.Count(client.Dropped()),
	)
}

// session is one live WebSocket connection.
type session struct {
	handler *Handler
	ws      *websocket.Conn
	client  *realtime.Connection[notify.Event]
	ctl     chan ack
}

// readLoop consumes client commands until the connection errors out.
func (s *session) readLoop() {
	h := s.handler

	s.ws.SetReadLimit(h.maxMessageSize)
	_ = s.ws.SetReadDeadline(time.Now().Add(h.pongTimeout))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(h.pongTimeout))
	})

	for {
		var cmd command
		if err := s.ws.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("websocket read failed", logger.ConnectionID(s.client.ID()), logger.Error(err))
			}
			return
		}
		// Any inbound frame counts as liveness.
		_ = s.ws.SetReadDeadline(time.Now().Add(h.pongTimeout))

		switch cmd.Action {
		case actionJoin:
			if cmd.RecipientID == "" {
				continue
			}
			h.registry.Join(s.client.ID(), cmd.RecipientID)
			s.enqueue(ack{Type: typeJoined, RecipientID: cmd.RecipientID})
		case actionPing:
			s.enqueue(ack{Type: typePong})
		default:
			h.log.Debug("websocket unknown action ignored",
				logger.ConnectionID(s.client.ID()),
				slog.String("action", cmd.Action),
			)
		}
	}
}

// enqueue hands a protocol frame to the write loop without blocking.
func (s *session) enqueue(a ack) {
	select {
	case s.ctl <- a:
	default:
	}
}

// writeLoop is the single writer on the underlying connection. It drains
// the registry outbox and the protocol ack channel, and keeps the
// transport alive with periodic pings. It exits once the outbox closes,
// which happens on Unregister or registry shutdown.
func (s *session) writeLoop() {
	h := s.handler
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-s.client.Events():
			if !ok {
				_ = s.ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
				_ = s.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				s.ws.Close()
				return
			}
			_ = s.ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := s.ws.WriteJSON(event); err != nil {
				s.ws.Close()
				return
			}
		case a := <-s.ctl:
			_ = s.ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := s.ws.WriteJSON(a); err != nil {
				s.ws.Close()
				return
			}
		case <-ticker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.ws.Close()
				return
			}
		}
	}
}
