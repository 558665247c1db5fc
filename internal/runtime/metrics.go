package runtime

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NodeMetrics tracks traffic and step statistics of one node.
type NodeMetrics struct {
	mu sync.Mutex

	received     *prometheus.CounterVec
	sent         *prometheus.CounterVec
	injected     prometheus.Counter
	stepDuration *prometheus.HistogramVec
	stepErrors   *prometheus.CounterVec

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	registered bool
}

func newNodeCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nodeflow",
			Subsystem: "node",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

// NewNodeMetrics creates the collectors. A nil registry selects the
// Prometheus default registry. Call Register before use.
func NewNodeMetrics(registry *prometheus.Registry) *NodeMetrics {
	m := &NodeMetrics{
		received: newNodeCounterVec("messages_received_total", "Wire messages handed to the handler, by payload type", []string{"type"}),
		sent:     newNodeCounterVec("messages_sent_total", "Messages written to stdout, by payload type", []string{"type"}),
		injected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nodeflow",
			Subsystem: "node",
			Name:      "injected_events_total",
			Help:      "Injected events handed to the handler",
		}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nodeflow",
			Subsystem: "node",
			Name:      "step_duration_seconds",
			Help:      "Time spent in one handler step",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"kind"}),
		stepErrors: newNodeCounterVec("step_errors_total", "Handler steps that failed, by event kind", []string{"kind"}),
	}

	if registry == nil {
		m.registerer = prometheus.DefaultRegisterer
		m.gatherer = prometheus.DefaultGatherer
	} else {
		m.registerer = registry
		m.gatherer = registry
	}
	return m
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *NodeMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.received,
		m.sent,
		m.injected,
		m.stepDuration,
		m.stepErrors,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// Handler serves the registry the metrics were registered with.
func (m *NodeMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordStep records one handler step. tag is the payload type for wire
// messages and empty for injected events.
func (m *NodeMetrics) RecordStep(kind EventKind, tag string, took time.Duration, err error) {
	if m == nil {
		return
	}
	switch kind {
	case EventMessage:
		m.received.WithLabelValues(tag).Inc()
	case EventInjected:
		m.injected.Inc()
	}
	m.stepDuration.WithLabelValues(kind.String()).Observe(took.Seconds())
	if err != nil {
		m.stepErrors.WithLabelValues(kind.String()).Inc()
	}
}

func (m *NodeMetrics) observeSent(tag string) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(tag).Inc()
}

// Reset resets all metrics (useful for testing).
func (m *NodeMetrics) Reset() {
	m.received.Reset()
	m.sent.Reset()
	m.stepDuration.Reset()
	m.stepErrors.Reset()
}
