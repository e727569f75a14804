package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/chatrelay/relay/backend/internal/metrics"
)

var (
	// ErrNotReady is returned by Send once a connection is closing.
	ErrNotReady = errors.New("connection not ready")
	// ErrSendBufferFull is returned by Send when the outbound queue is full.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn is the hub's view of a connection.
type Conn interface {
	ID() string
	// Send queues a frame without blocking.
	Send(data []byte) error
	// Ready reports whether the connection still accepts frames.
	Ready() bool
	// Close tells the connection the hub is done with it.
	Close() error
}

// Router fans serialized payloads out to live connections. Every outbound
// frame goes through it. Delivery is best-effort: frames for connections
// that are not ready, or whose queue is full, are skipped.
//
// Router is owned by the hub and used from its event loop only.
type Router struct {
	conns   map[string]Conn
	metrics *metrics.Metrics
}

// NewRouter creates an empty router.
func NewRouter(m *metrics.Metrics) *Router {
	return &Router{conns: make(map[string]Conn), metrics: m}
}

// Add starts routing frames to c.
func (r *Router) Add(c Conn) {
	r.conns[c.ID()] = c
	r.metrics.Connections.Set(float64(len(r.conns)))
}

// Remove stops routing frames to the connection with the given id and
// returns it.
func (r *Router) Remove(connID string) (Conn, bool) {
	c, ok := r.conns[connID]
	if ok {
		delete(r.conns, connID)
		r.metrics.Connections.Set(float64(len(r.conns)))
	}
	return c, ok
}

// Len returns the number of routed connections.
func (r *Router) Len() int { return len(r.conns) }

// Broadcast serializes payload once and queues it on every connection except
// the one with id excludeID (empty excludes none). It returns the number of
// connections the frame was queued on.
func (r *Router) Broadcast(payload any, excludeID string) int {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("broadcast marshal failed", "error", err)
		return 0
	}
	sent := 0
	for id, c := range r.conns {
		if id == excludeID {
			continue
		}
		if r.deliver(c, data) {
			sent++
		}
	}
	slog.Debug("broadcast", "bytes", len(data), "recipients", sent)
	return sent
}

// Unicast queues payload on exactly one connection.
func (r *Router) Unicast(connID string, payload any) {
	c, ok := r.conns[connID]
	if !ok {
		slog.Debug("unicast to unknown connection", "clientId", connID)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("unicast marshal failed", "clientId", connID, "error", err)
		return
	}
	r.deliver(c, data)
}

// CloseAll closes every routed connection.
func (r *Router) CloseAll() int {
	for _, c := range r.conns {
		if err := c.Close(); err != nil {
			slog.Debug("close failed", "clientId", c.ID(), "error", err)
		}
	}
	return len(r.conns)
}

func (r *Router) deliver(c Conn, data []byte) bool {
	if !c.Ready() {
		r.metrics.FramesSkipped.Inc()
		return false
	}
	if err := c.Send(data); err != nil {
		slog.Warn("frame skipped", "clientId", c.ID(), "error", err)
		r.metrics.FramesSkipped.Inc()
		return false
	}
	r.metrics.FramesSent.Inc()
	return true
}
