package runtime

import (
	"io"
	"os"

	configpkg "github.com/drblury/nodeflow/internal/runtime/config"
	loggingpkg "github.com/drblury/nodeflow/internal/runtime/logging"
)

// Option configures a node.
type Option func(*options)

type options struct {
	in              io.Reader
	out             io.Writer
	logger          loggingpkg.Logger
	hooks           StepHooks
	metrics         *NodeMetrics
	metricsAddr     string
	metricsPath     string
	injectionBuffer int
	tracerName      string
}

func defaultOptions() options {
	return options{
		in:              os.Stdin,
		out:             os.Stdout,
		logger:          loggingpkg.NewNopLogger(),
		metricsPath:     configpkg.DefaultMetricsPath,
		injectionBuffer: configpkg.DefaultInjectionBuffer,
		tracerName:      configpkg.DefaultTracerName,
	}
}

// WithInput replaces stdin as the source of wire lines.
func WithInput(r io.Reader) Option {
	return func(o *options) {
		if r != nil {
			o.in = r
		}
	}
}

// WithOutput replaces stdout as the sink of wire lines.
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.out = w
		}
	}
}

// WithLogger sets the diagnostics logger. It must not write to the output
// stream.
func WithLogger(logger loggingpkg.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHooks adds step hooks. Repeated calls merge in order.
func WithHooks(hooks StepHooks) Option {
	return func(o *options) {
		o.hooks = o.hooks.Merge(hooks)
	}
}

// WithMetrics records node metrics into m.
func WithMetrics(m *NodeMetrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithMetricsServer serves the node metrics over HTTP on addr. Without
// WithMetrics a private registry is used.
func WithMetricsServer(addr, path string) Option {
	return func(o *options) {
		o.metricsAddr = addr
		if path != "" {
			o.metricsPath = path
		}
	}
}

// WithInjectionBuffer sets the capacity of the injected-event queue.
func WithInjectionBuffer(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.injectionBuffer = n
		}
	}
}

// WithTracerName names the OpenTelemetry tracer used for step spans.
func WithTracerName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.tracerName = name
		}
	}
}

// WithConfig applies the node settings of cfg. The logger is built by the
// caller, see logging.New.
func WithConfig(cfg configpkg.Config) Option {
	return func(o *options) {
		WithMetricsServer(cfg.MetricsAddr, cfg.MetricsPath)(o)
		WithInjectionBuffer(cfg.InjectionBuffer)(o)
		WithTracerName(cfg.TracerName)(o)
	}
}
