package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"medy-coop-service/internal/app"
	"medy-coop-service/internal/realtime"
)

const (
	defaultHeartbeat = 30 * time.Second
	writeWait        = 10 * time.Second
	maxMessageSize   = 64 << 10
	sendBuffer       = 32
)

// WSOptions configures the websocket endpoint.
type WSOptions struct {
	AllowedOrigins []string
	Heartbeat      time.Duration
}

type WSHandler struct {
	service   *app.CoopService
	hub       *realtime.Hub
	log       zerolog.Logger
	upgrader  websocket.Upgrader
	heartbeat time.Duration
}

func NewWSHandler(service *app.CoopService, hub *realtime.Hub, log zerolog.Logger, opts WSOptions) *WSHandler {
	heartbeat := opts.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	allowed := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return &WSHandler{
		service:   service,
		hub:       hub,
		log:       log.With().Str("component", "ws_handler").Logger(),
		heartbeat: heartbeat,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type sessionRef struct {
	SessionID string `json:"sessionId"`
}

// wsConn adapts a gorilla connection to realtime.Conn. Writes go through a single writer goroutine.
type wsConn struct {
	id     string
	userID string
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func newWSConn(userID string) *wsConn {
	return &wsConn{
		id:     uuid.NewString(),
		userID: userID,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *wsConn) ID() string     { return c.id }
func (c *wsConn) UserID() string { return c.userID }

func (c *wsConn) Send(ctx context.Context, msg []byte) error {
	select {
	case <-c.done:
		return realtime.ErrConnClosed
	default:
	}
	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return realtime.ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *wsConn) close() {
	c.once.Do(func() { close(c.done) })
}

// ServeWS upgrades the request and binds the socket to the caller's user id.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if userID == "" {
		writeError(w, h.log, errMissingIdentity)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	c := newWSConn(userID)
	h.hub.Register(c)
	defer h.hub.Unregister(c)
	defer c.close()

	writerDone := make(chan struct{})
	go h.writeLoop(conn, c, writerDone)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(2 * h.heartbeat))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * h.heartbeat))
	})

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * h.heartbeat))
		h.handle(ctx, c, inbound)
	}

	c.close()
	<-writerDone
}

func (h *WSHandler) writeLoop(conn *websocket.Conn, c *wsConn, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.log.Debug().Err(err).Str("user_id", c.userID).Msg("ws write error")
				c.close()
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				_ = conn.Close()
				return
			}
		case <-c.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

func (h *WSHandler) handle(ctx context.Context, c *wsConn, in inboundMessage) {
	switch in.Type {
	case "ping":
		h.reply(ctx, c, "pong", map[string]int64{"serverTime": time.Now().UnixMilli()})
	case "coop.join":
		ref, ok := h.sessionRef(ctx, c, in.Payload)
		if !ok {
			return
		}
		if err := h.hub.JoinSession(ctx, c, ref.SessionID, h.service.EnsureParticipant); err != nil {
			h.reply(ctx, c, "error", errorFrom(err))
			return
		}
		h.reply(ctx, c, "coop.joined", ref)
	case "coop.leave":
		ref, ok := h.sessionRef(ctx, c, in.Payload)
		if !ok {
			return
		}
		h.hub.LeaveSession(c, ref.SessionID)
	case "coop.snapshot":
		ref, ok := h.sessionRef(ctx, c, in.Payload)
		if !ok {
			return
		}
		// GetSession pushes coop:snapshot through the hub on success.
		if _, err := h.service.GetSession(ctx, ref.SessionID, c.userID); err != nil {
			h.reply(ctx, c, "error", errorFrom(err))
		}
	default:
		h.reply(ctx, c, "error", errorBody{Code: "UNSUPPORTED_MESSAGE", Message: "unsupported message type"})
	}
}

func (h *WSHandler) sessionRef(ctx context.Context, c *wsConn, raw json.RawMessage) (sessionRef, bool) {
	var ref sessionRef
	if err := json.Unmarshal(raw, &ref); err != nil || ref.SessionID == "" {
		h.reply(ctx, c, "error", errorBody{Code: "INVALID_PAYLOAD", Message: "sessionId is required"})
		return ref, false
	}
	return ref, true
}

func (h *WSHandler) reply(ctx context.Context, c *wsConn, typ string, payload any) {
	data, err := json.Marshal(realtime.Envelope{Type: typ, Payload: payload})
	if err != nil {
		h.log.Error().Err(err).Str("type", typ).Msg("encode ws reply")
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	_ = c.Send(sendCtx, data)
}
