package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's Prometheus collectors on a private registry,
// so several hubs (as in tests) never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	Connections   prometheus.Gauge
	JoinedClients prometheus.Gauge
	Events        *prometheus.CounterVec
	EventsDropped *prometheus.CounterVec
	FramesSent    prometheus.Counter
	FramesSkipped prometheus.Counter
	HistoryLen    prometheus.Gauge
	HistorySwept  prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_connections",
			Help: "Open websocket connections, joined or not.",
		}),
		JoinedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_joined_clients",
			Help: "Connections that completed a join.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_events_total",
			Help: "Inbound events processed, by type.",
		}, []string{"type"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_events_dropped_total",
			Help: "Inbound frames dropped, by reason.",
		}, []string{"reason"}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_frames_sent_total",
			Help: "Outbound frames queued to a connection.",
		}),
		FramesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_frames_skipped_total",
			Help: "Outbound frames skipped because the connection was not ready.",
		}),
		HistoryLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_history_messages",
			Help: "Messages currently in the history window.",
		}),
		HistorySwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_history_swept_total",
			Help: "Messages evicted by the age-based sweep.",
		}),
	}
	m.registry.MustRegister(
		m.Connections,
		m.JoinedClients,
		m.Events,
		m.EventsDropped,
		m.FramesSent,
		m.FramesSkipped,
		m.HistoryLen,
		m.HistorySwept,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
