// Package realtime fans session events out to connected participants.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// EventSnapshot carries a full session view to a single requester.
const EventSnapshot = "coop:snapshot"

// ErrConnClosed is returned by Conn.Send once the connection is gone; it is never retried.
var ErrConnClosed = errors.New("connection closed")

// Conn is a live duplex connection bound to one user.
type Conn interface {
	ID() string
	UserID() string
	Send(ctx context.Context, msg []byte) error
}

// Envelope is the frame written to sockets.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Options tunes throttling and delivery.
type Options struct {
	ThrottleWindow time.Duration
	Retries        int
	RetryBase      time.Duration
	SendTimeout    time.Duration
	Clock          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.ThrottleWindow <= 0 {
		o.ThrottleWindow = 10 * time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 100 * time.Millisecond
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 5 * time.Second
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Hub keeps two independent lookup tables (user → conns, session → conns).
// Neither table owns a connection; Unregister removes it from both.
type Hub struct {
	log  zerolog.Logger
	opts Options

	mu       sync.RWMutex
	users    map[string]map[string]Conn
	sessions map[string]map[string]Conn
	bus      Bus
	presence Presence

	tmu       sync.Mutex
	throttles map[string]*throttleEntry
	lastPrune time.Time

	wg sync.WaitGroup
}

type throttleEntry struct {
	limiter *rate.Limiter
	last    time.Time
}

func NewHub(log zerolog.Logger, opts Options) *Hub {
	return &Hub{
		log:       log.With().Str("component", "realtime_hub").Logger(),
		opts:      opts.withDefaults(),
		users:     make(map[string]map[string]Conn),
		sessions:  make(map[string]map[string]Conn),
		throttles: make(map[string]*throttleEntry),
	}
}

// UseBus routes every emission through bus so all instances deliver to their local sockets.
func (h *Hub) UseBus(ctx context.Context, bus Bus) error {
	if err := bus.StartForwarder(ctx, func(m BusMessage) {
		h.deliver(m.UserIDs, m.Data)
	}); err != nil {
		return err
	}
	h.mu.Lock()
	h.bus = bus
	h.mu.Unlock()
	return nil
}

// UsePresence publishes local connections to p and keeps their leases alive every refresh
// until ctx is done. IsOnline then also sees users connected to other instances.
func (h *Hub) UsePresence(ctx context.Context, p Presence, refresh time.Duration) {
	h.mu.Lock()
	h.presence = p
	h.mu.Unlock()
	if refresh <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.refreshPresence(ctx, p)
			}
		}
	}()
}

// Register binds c to its user.
func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	addConn(h.users, c.UserID(), c)
	presence := h.presence
	h.mu.Unlock()

	if presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.SendTimeout)
		defer cancel()
		if err := presence.Add(ctx, c.UserID(), c.ID()); err != nil {
			h.log.Warn().Err(err).Str("user_id", c.UserID()).Msg("presence add failed")
		}
	}
}

// Unregister removes c from every table it appears in.
func (h *Hub) Unregister(c Conn) {
	h.mu.Lock()
	removeConn(h.users, c.UserID(), c.ID())
	for sessionID := range h.sessions {
		removeConn(h.sessions, sessionID, c.ID())
	}
	presence := h.presence
	h.mu.Unlock()

	if presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.SendTimeout)
		defer cancel()
		if err := presence.Remove(ctx, c.UserID(), c.ID()); err != nil {
			h.log.Warn().Err(err).Str("user_id", c.UserID()).Msg("presence remove failed")
		}
	}
}

// JoinSession adds c to the session room once authorize accepts its user.
func (h *Hub) JoinSession(ctx context.Context, c Conn, sessionID string, authorize func(ctx context.Context, sessionID, userID string) error) error {
	if err := authorize(ctx, sessionID, c.UserID()); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	addConn(h.sessions, sessionID, c)
	return nil
}

func (h *Hub) LeaveSession(c Conn, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	removeConn(h.sessions, sessionID, c.ID())
}

// IsOnline reports whether userID has at least one live connection, here or on any
// instance sharing the presence set.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	local := len(h.users[userID]) > 0
	presence := h.presence
	h.mu.RUnlock()
	if local || presence == nil {
		return local
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.opts.SendTimeout)
	defer cancel()
	online, err := presence.Online(ctx, userID)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", userID).Msg("presence lookup failed")
		return false
	}
	return online
}

// RoomSize returns how many connections joined sessionID.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// EmitSessionEvent delivers event to the participants and the session room.
// At most one emission per (sessionID, event) passes per throttle window; it reports whether this one did.
func (h *Hub) EmitSessionEvent(sessionID string, participantIDs []string, event string, payload any) bool {
	if !h.allow(sessionID + "|" + event) {
		h.log.Debug().Str("session_id", sessionID).Str("event", event).Msg("event throttled")
		return false
	}
	data, err := json.Marshal(Envelope{Type: event, Payload: payload})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("encode event")
		return false
	}
	h.dispatch(participantIDs, sessionID, data)
	return true
}

// SendSnapshot targets only userID and bypasses the throttle.
func (h *Hub) SendSnapshot(sessionID, userID string, payload any) {
	data, err := json.Marshal(Envelope{Type: EventSnapshot, Payload: payload})
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("encode snapshot")
		return
	}
	h.dispatch([]string{userID}, "", data)
}

// Wait blocks until in-flight deliveries finish.
func (h *Hub) Wait() {
	h.wg.Wait()
}

func (h *Hub) dispatch(userIDs []string, sessionID string, data []byte) {
	h.mu.RLock()
	bus := h.bus
	if sessionID != "" {
		userIDs = append(append([]string(nil), userIDs...), roomUsers(h.sessions[sessionID])...)
	}
	h.mu.RUnlock()

	if bus == nil {
		h.deliver(userIDs, data)
		return
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.SendTimeout)
		defer cancel()
		if err := bus.Publish(ctx, BusMessage{UserIDs: dedupe(userIDs), Data: data}); err != nil {
			h.log.Warn().Err(err).Msg("bus publish failed, delivering locally")
			h.deliver(userIDs, data)
		}
	}()
}

func (h *Hub) deliver(userIDs []string, data []byte) {
	h.mu.RLock()
	targets := make(map[string]Conn)
	for _, userID := range userIDs {
		for id, c := range h.users[userID] {
			targets[id] = c
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.wg.Add(1)
		go func(c Conn) {
			defer h.wg.Done()
			h.sendWithRetry(c, data)
		}(c)
	}
}

func (h *Hub) sendWithRetry(c Conn, data []byte) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.opts.RetryBase
	b.MaxInterval = 8 * h.opts.RetryBase
	b.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.SendTimeout)
		defer cancel()
		err := c.Send(ctx, data)
		if errors.Is(err, ErrConnClosed) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithMaxRetries(b, uint64(h.opts.Retries)))
	if err != nil {
		h.log.Warn().Err(err).Str("conn_id", c.ID()).Str("user_id", c.UserID()).Msg("socket delivery failed")
	}
}

func (h *Hub) refreshPresence(ctx context.Context, p Presence) {
	h.mu.RLock()
	conns := make(map[string][]string, len(h.users))
	for userID, set := range h.users {
		for id := range set {
			conns[userID] = append(conns[userID], id)
		}
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, h.opts.SendTimeout)
	defer cancel()
	if err := p.Refresh(ctx, conns); err != nil {
		h.log.Warn().Err(err).Int("users", len(conns)).Msg("presence refresh failed")
	}
}

func (h *Hub) allow(key string) bool {
	now := h.opts.Clock()
	h.tmu.Lock()
	defer h.tmu.Unlock()

	if now.Sub(h.lastPrune) >= h.opts.ThrottleWindow {
		for k, e := range h.throttles {
			if now.Sub(e.last) >= h.opts.ThrottleWindow {
				delete(h.throttles, k)
			}
		}
		h.lastPrune = now
	}

	entry, ok := h.throttles[key]
	if !ok {
		entry = &throttleEntry{limiter: rate.NewLimiter(rate.Every(h.opts.ThrottleWindow), 1)}
		h.throttles[key] = entry
	}
	if !entry.limiter.AllowN(now, 1) {
		return false
	}
	entry.last = now
	return true
}

func addConn(table map[string]map[string]Conn, key string, c Conn) {
	set, ok := table[key]
	if !ok {
		set = make(map[string]Conn)
		table[key] = set
	}
	set[c.ID()] = c
}

func removeConn(table map[string]map[string]Conn, key, connID string) {
	set, ok := table[key]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(table, key)
	}
}

func roomUsers(room map[string]Conn) []string {
	out := make([]string, 0, len(room))
	for _, c := range room {
		out = append(out, c.UserID())
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
