package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chatrelay/relay/backend/internal/models"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Default maximum frame size allowed from peer; files travel inline
	defaultMaxFrameBytes = 10 * 1024 * 1024

	// Outbound frames queued per connection before frames are skipped
	sendBufferSize = 256
)

// ClientOptions tunes per-connection limits.
type ClientOptions struct {
	MaxFrameBytes  int64
	RateLimitRPS   float64
	RateLimitBurst int
}

// Client represents a single WebSocket connection.
//
// Send and Close are only called from the hub's event loop, which is what
// makes closing the send channel safe.
type Client struct {
	hub *Hub

	// WebSocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	// id identifies the connection in the registry and router
	id string

	remoteAddr string
	maxFrame   int64
	limiter    *rate.Limiter

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewClient creates a new Client instance
func NewClient(hub *Hub, conn *websocket.Conn, id, remoteAddr string, opts ClientOptions) *Client {
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = defaultMaxFrameBytes
	}
	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		id:         id,
		remoteAddr: remoteAddr,
		maxFrame:   opts.MaxFrameBytes,
		limiter:    limiter,
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// Ready reports whether Close has not been called yet.
func (c *Client) Ready() bool { return !c.closed.Load() }

// Send queues a frame for WritePump without blocking.
func (c *Client) Send(data []byte) error {
	if c.closed.Load() {
		return ErrNotReady
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close stops outbound delivery; WritePump then sends a close frame and
// tears the socket down.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.send)
	})
	return nil
}

// ReadPump pumps frames from the WebSocket connection to the hub.
// This runs in its own goroutine per client
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxFrame)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			break
		}

		if c.limiter != nil && !c.limiter.Allow() {
			slog.Warn("rate limit exceeded, frame dropped", "clientId", c.id, "remote", c.remoteAddr)
			c.hub.metrics.EventsDropped.WithLabelValues("rate_limited").Inc()
			continue
		}

		ev, err := models.DecodeEvent(data)
		if err != nil {
			reason := "malformed"
			if errors.Is(err, models.ErrUnknownEventType) {
				reason = "unknown_type"
			}
			slog.Warn("inbound frame dropped", "clientId", c.id, "reason", reason, "error", err)
			c.hub.metrics.EventsDropped.WithLabelValues(reason).Inc()
			continue
		}
		c.hub.Dispatch(c, ev)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
// This runs in its own goroutine per client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One JSON object per frame; clients parse each frame on its own
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Debug("write failed", "clientId", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		slog.Warn("frame exceeded size limit", "clientId", c.id, "limit", c.maxFrame)
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure):
		slog.Warn("read error", "clientId", c.id, "error", err)
	default:
		slog.Debug("connection closed", "clientId", c.id, "error", err)
	}
}
