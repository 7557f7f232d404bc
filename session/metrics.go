package session

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pawtrack/walkstream/metric"
)

// sessionMetrics holds Prometheus metrics for one streaming session.
// A nil receiver disables all recording, so call sites stay unconditional.
type sessionMetrics struct {
	registry  *metric.MetricsRegistry
	component string

	samplesAccepted prometheus.Counter
	samplesRejected prometheus.Counter
	batchesSent     prometheus.Counter
	batchesDropped  prometheus.Counter
	framesReceived  prometheus.Counter
	framesDropped   prometheus.Counter
	reconnects      prometheus.Counter

	state prometheus.Gauge
}

// newSessionMetrics creates and registers session metrics. A nil registry
// returns nil metrics (feature disabled).
func newSessionMetrics(registry *metric.MetricsRegistry, sessionID string) (*sessionMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	labels := prometheus.Labels{"session_id": sessionID}
	component := "session_" + sessionID

	m := &sessionMetrics{
		registry:  registry,
		component: component,
		samplesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "walkstream",
			Subsystem:   "session",
			Name:        "samples_accepted_total",
			ConstLabels: labels,
			Help:        "Total number of samples accepted into the batcher",
		}),
		samplesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "walkstream",
			Subsystem:   "session",
			Name:        "samples_rejected_total",
			ConstLabels: labels,
			Help:        "Total number of samples rejected by validation",
		}),
		batchesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "walkstream",
			Subsystem:   "session",
			Name:        "batches_sent_total",
			ConstLabels: labels,
			Help:        "Total number of batches handed to the transport",
		}),
		batchesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "walkstream",
			Subsystem:   "session",
			Name:        "batches_dropped_total",
			ConstLabels: labels,
			Help:        "Total number of batches dropped on encode or send failure",
		}),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "walkstream",
			Subsystem:   "session",
			Name:        "frames_received_total",
			ConstLabels: labels,
			Help:        "Total number of inbound frames received",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "walkstream",
			Subsystem:   "session",
			Name:        "frames_dropped_total",
			ConstLabels: labels,
			Help:        "Total number of inbound frames dropped",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "walkstream",
			Subsystem:   "session",
			Name:        "reconnect_attempts_total",
			ConstLabels: labels,
			Help:        "Total number of reconnect attempts",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "walkstream",
			Subsystem:   "session",
			Name:        "state",
			ConstLabels: labels,
			Help:        "Current session state as an integer code",
		}),
	}

	if err := registry.RegisterCounter(component, "samples_accepted", m.samplesAccepted); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "samples_rejected", m.samplesRejected); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "batches_sent", m.batchesSent); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "batches_dropped", m.batchesDropped); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "frames_received", m.framesReceived); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "frames_dropped", m.framesDropped); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "reconnects", m.reconnects); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(component, "state", m.state); err != nil {
		return nil, err
	}

	return m, nil
}

// unregister releases the session's metric registrations so a new session
// with the same ID can register against the same registry.
func (m *sessionMetrics) unregister() {
	if m == nil {
		return
	}
	for _, name := range []string{
		"samples_accepted", "samples_rejected", "batches_sent", "batches_dropped",
		"frames_received", "frames_dropped", "reconnects", "state",
	} {
		m.registry.Unregister(m.component, name)
	}
}

func (m *sessionMetrics) sampleAccepted() {
	if m != nil {
		m.samplesAccepted.Inc()
	}
}

func (m *sessionMetrics) sampleRejected() {
	if m != nil {
		m.samplesRejected.Inc()
	}
}

func (m *sessionMetrics) batchSent() {
	if m != nil {
		m.batchesSent.Inc()
	}
}

func (m *sessionMetrics) batchDropped() {
	if m != nil {
		m.batchesDropped.Inc()
	}
}

func (m *sessionMetrics) frameReceived() {
	if m != nil {
		m.framesReceived.Inc()
	}
}

func (m *sessionMetrics) frameDropped() {
	if m != nil {
		m.framesDropped.Inc()
	}
}

func (m *sessionMetrics) reconnectAttempt() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *sessionMetrics) setState(s State) {
	if m != nil {
		m.state.Set(float64(s))
	}
}
