// Package metric exposes prometheus instrumentation for the engine.
//
// All methods are nil-safe; components accept a *Metrics and simply
// skip instrumentation when it is nil.
package metric

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the engine's prometheus collectors.
type Metrics struct {
	framesReceived prometheus.Counter
	framesSent     prometheus.Counter
	decodeErrors   prometheus.Counter
	busDrops       prometheus.Counter

	sessionsCompleted *prometheus.CounterVec
	sessionsFailed    *prometheus.CounterVec

	nodesKnown prometheus.Gauge
}

// New creates the engine collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vscp_frames_received_total",
			Help: "Frames received from the transport port.",
		}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vscp_frames_sent_total",
			Help: "Frames handed to the transport port.",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vscp_decode_errors_total",
			Help: "Received frames that failed Level I decoding.",
		}),
		busDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vscp_bus_drops_total",
			Help: "Events dropped from subscriber queues on overflow.",
		}),
		sessionsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vscp_sessions_completed_total",
			Help: "Sessions that reached the Completed state.",
		}, []string{"kind"}),
		sessionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vscp_sessions_failed_total",
			Help: "Sessions that ended in Failed or Aborted, by reason.",
		}, []string{"kind", "reason"}),
		nodesKnown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vscp_nodes_known",
			Help: "Nodes currently present in the discovery registry.",
		}),
	}

	reg.MustRegister(
		m.framesReceived,
		m.framesSent,
		m.decodeErrors,
		m.busDrops,
		m.sessionsCompleted,
		m.sessionsFailed,
		m.nodesKnown,
	)
	return m
}

// FrameReceived counts one received frame.
func (m *Metrics) FrameReceived() {
	if m == nil {
		return
	}
	m.framesReceived.Inc()
}

// FrameSent counts one sent frame.
func (m *Metrics) FrameSent() {
	if m == nil {
		return
	}
	m.framesSent.Inc()
}

// DecodeError counts one undecodable frame.
func (m *Metrics) DecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

// BusDrops adds n dropped events.
func (m *Metrics) BusDrops(n uint64) {
	if m == nil {
		return
	}
	m.busDrops.Add(float64(n))
}

// SessionCompleted counts one completed session of the given kind.
func (m *Metrics) SessionCompleted(kind string) {
	if m == nil {
		return
	}
	m.sessionsCompleted.WithLabelValues(kind).Inc()
}

// SessionFailed counts one failed session of the given kind and reason.
func (m *Metrics) SessionFailed(kind, reason string) {
	if m == nil {
		return
	}
	m.sessionsFailed.WithLabelValues(kind, reason).Inc()
}

// NodesKnown sets the registry size gauge.
func (m *Metrics) NodesKnown(n int) {
	if m == nil {
		return
	}
	m.nodesKnown.Set(float64(n))
}
