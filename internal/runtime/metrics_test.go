package runtime

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	loggingpkg "github.com/drblury/nodeflow/internal/runtime/logging"
)

func TestNodeMetrics_Register_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewNodeMetrics(reg)

	require.NoError(t, metrics.Register())
	require.NoError(t, metrics.Register())

	// A second instance on the same registry is tolerated.
	require.NoError(t, NewNodeMetrics(reg).Register())
}

func TestNodeMetrics_NilRegistryUsesDefault(t *testing.T) {
	metrics := NewNodeMetrics(nil)
	assert.Equal(t, prometheus.DefaultRegisterer, metrics.registerer)
	assert.Equal(t, prometheus.DefaultGatherer, metrics.gatherer)
}

func TestNodeMetrics_RecordStep(t *testing.T) {
	metrics := NewNodeMetrics(prometheus.NewRegistry())
	require.NoError(t, metrics.Register())

	metrics.RecordStep(EventMessage, "read", 2*time.Millisecond, nil)
	metrics.RecordStep(EventMessage, "read", time.Millisecond, errors.New("x"))
	metrics.observeSent("read_ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.received.WithLabelValues("read")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.stepErrors.WithLabelValues("message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.sent.WithLabelValues("read_ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.stepDuration))

	metrics.Reset()
	assert.Equal(t, 0, testutil.CollectAndCount(metrics.received))
}

func TestNodeMetrics_NilIsNoop(t *testing.T) {
	var metrics *NodeMetrics
	assert.NotPanics(t, func() {
		metrics.RecordStep(EventInjected, "", time.Millisecond, nil)
		metrics.observeSent("x")
	})
}

func TestNodeMetrics_Handler(t *testing.T) {
	metrics := NewNodeMetrics(prometheus.NewRegistry())
	require.NoError(t, metrics.Register())
	metrics.observeSent("generate_ok")

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `nodeflow_node_messages_sent_total{type="generate_ok"} 1`)
}

func TestStartMetricsServer(t *testing.T) {
	metrics := NewNodeMetrics(prometheus.NewRegistry())
	require.NoError(t, metrics.Register())
	metrics.observeSent("echo_ok")

	stop, err := startMetricsServer("127.0.0.1:0", "/metrics", metrics, loggingpkg.NewNopLogger())
	require.NoError(t, err)
	stop()

	_, err = startMetricsServer("not-an-address", "/metrics", metrics, loggingpkg.NewNopLogger())
	assert.Error(t, err)
}

func TestRun_ServesMetrics(t *testing.T) {
	logger := &capturingLogger{}
	_, err := runEcho(t, input(initLine(1, "n1", "n1"), echoLine(2, "a")),
		WithMetricsServer("127.0.0.1:0", ""), WithLogger(logger))
	require.NoError(t, err)
	assert.Contains(t, logger.infos, "Starting metrics server")
}
