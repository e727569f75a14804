package websocket

import (
	"context"
	"log/slog"
	"time"

	"github.com/chatrelay/relay/backend/internal/metrics"
	"github.com/chatrelay/relay/backend/internal/models"
	"github.com/chatrelay/relay/backend/internal/services"
)

// Hub owns the connection registry and the history window and is the only
// goroutine that mutates them. Connections, REST handlers and the sweeper
// reach it through channels, so every event is applied to completion before
// the next one starts.
type Hub struct {
	// register requests from new connections
	register chan Conn

	// unregister requests from closing connections
	unregister chan Conn

	// inbound carries decoded events from connections
	inbound chan inboundEvent

	// queries runs read-side and maintenance closures inside the loop
	queries chan func()

	registry *services.Registry
	store    *services.MessageStore
	router   *Router
	notifier *services.Notifier
	metrics  *metrics.Metrics
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// HubConfig sizes the hub.
type HubConfig struct {
	MaxHistory       int
	NotificationIcon string
}

type inboundEvent struct {
	conn  Conn
	event models.Event
}

// NewHub creates a new Hub instance. Call Run in its own goroutine.
func NewHub(cfg HubConfig, m *metrics.Metrics) *Hub {
	if m == nil {
		m = metrics.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	registry := services.NewRegistry()
	router := NewRouter(m)
	return &Hub{
		register:   make(chan Conn),
		unregister: make(chan Conn),
		inbound:    make(chan inboundEvent),
		queries:    make(chan func()),
		registry:   registry,
		store:      services.NewMessageStore(cfg.MaxHistory),
		router:     router,
		notifier:   services.NewNotifier(registry, router, cfg.NotificationIcon),
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main event loop.
// This should be called in a goroutine: go hub.Run()
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			n := h.router.CloseAll()
			slog.Info("hub stopped", "closedConnections", n)
			return

		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unregister:
			h.handleUnregister(c)

		case in := <-h.inbound:
			h.handleEvent(in.conn, in.event)

		case fn := <-h.queries:
			fn()
		}
	}
}

// Shutdown stops the event loop, closes every connection and waits for the
// loop to exit or the timeout to pass.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	select {
	case <-h.done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}

// Register hands a new connection to the hub. It returns false if the hub
// has stopped.
func (h *Hub) Register(c Conn) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister tells the hub a connection closed.
func (h *Hub) Unregister(c Conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Dispatch hands a decoded inbound event to the hub.
func (h *Hub) Dispatch(c Conn, ev models.Event) {
	select {
	case h.inbound <- inboundEvent{conn: c, event: ev}:
	case <-h.done:
	}
}

// do runs fn inside the event loop and waits for it. It returns false if the
// hub has stopped.
func (h *Hub) do(fn func()) bool {
	finished := make(chan struct{})
	select {
	case h.queries <- func() { fn(); close(finished) }:
	case <-h.done:
		return false
	}
	<-finished
	return true
}

// History returns the messages created after t (all of them for a zero t),
// without inline file content.
func (h *Hub) History(after time.Time) []models.Message {
	var out []models.Message
	h.do(func() { out = models.WithoutContent(h.store.After(after)) })
	return out
}

// Users returns the current roster.
func (h *Hub) Users() []models.Profile {
	var out []models.Profile
	h.do(func() { out = h.registry.Snapshot() })
	return out
}

// SweepHistory evicts messages older than maxAge. It runs inside the loop so
// it never overlaps a mutation of the window.
func (h *Hub) SweepHistory(maxAge time.Duration) int {
	evicted := 0
	h.do(func() {
		evicted = h.store.Sweep(maxAge)
		if evicted > 0 {
			h.metrics.HistorySwept.Add(float64(evicted))
			h.metrics.HistoryLen.Set(float64(h.store.Len()))
		}
	})
	return evicted
}

func (h *Hub) handleRegister(c Conn) {
	if c == nil {
		slog.Warn("nil connection registration skipped")
		return
	}
	h.registry.Register(c.ID())
	h.router.Add(c)
	slog.Info("client connected", "clientId", c.ID(), "clients", h.router.Len())
}

func (h *Hub) handleUnregister(c Conn) {
	if _, ok := h.router.Remove(c.ID()); !ok {
		return
	}
	if err := c.Close(); err != nil {
		slog.Debug("close failed", "clientId", c.ID(), "error", err)
	}

	state, ok := h.registry.Unregister(c.ID())
	if !ok || !state.Joined {
		slog.Info("client disconnected before join", "clientId", c.ID())
		return
	}
	h.metrics.JoinedClients.Set(float64(h.registry.JoinedCount()))
	slog.Info("client left", "clientId", c.ID(), "username", state.Username, "clients", h.router.Len())

	h.router.Broadcast(models.NewSystem(state.Username+" left the chat", h.now()), "")
	h.router.Broadcast(services.ActiveUsers(h.registry), "")
}
