package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	loggingpkg "github.com/drblury/nodeflow/internal/runtime/logging"
)

const metricsShutdownTimeout = 5 * time.Second

// startMetricsServer exposes metrics on addr until the returned stop func is
// called. The listener is bound before returning so a bad address fails the
// node at startup.
func startMetricsServer(addr, path string, metrics *NodeMetrics, logger loggingpkg.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: metricsShutdownTimeout,
	}

	logger.Info("Starting metrics server", loggingpkg.LogFields{"address": ln.Addr().String(), "path": path})
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", err, loggingpkg.LogFields{"address": addr})
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			_ = srv.Close()
		}
	}, nil
}
