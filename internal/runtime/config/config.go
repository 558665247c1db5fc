package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	errspkg "github.com/drblury/nodeflow/internal/runtime/errors"
	jsoncodec "github.com/drblury/nodeflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/nodeflow/internal/runtime/logging"
)

// Defaults applied by Default and by zero-value fields at runtime.
const (
	DefaultLogLevel        = "info"
	DefaultLogFormat       = loggingpkg.FormatText
	DefaultInjectionBuffer = 64
	DefaultMetricsPath     = "/metrics"
	DefaultTracerName      = "nodeflow"
)

// Env variable names read by ApplyEnv.
const (
	EnvLogLevel        = "NODEFLOW_LOG_LEVEL"
	EnvLogFormat       = "NODEFLOW_LOG_FORMAT"
	EnvMetricsAddr     = "NODEFLOW_METRICS_ADDR"
	EnvInjectionBuffer = "NODEFLOW_INJECTION_BUFFER"
)

// Config groups the process-level settings of a node. None of them change the
// protocol spoken on stdin/stdout.
type Config struct {
	// LogLevel is one of debug, info, warn or error. Logs always go to stderr.
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `yaml:"log_format" json:"log_format"`

	// MetricsAddr exposes Prometheus metrics over HTTP when set, e.g. "127.0.0.1:9464".
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	// MetricsPath defaults to /metrics.
	MetricsPath string `yaml:"metrics_path" json:"metrics_path"`

	// InjectionBuffer is the capacity of the injected-event queue. Zero makes
	// every Send rendezvous with the dispatch loop.
	InjectionBuffer int `yaml:"injection_buffer" json:"injection_buffer"`

	// TracerName names the OpenTelemetry tracer used for step spans.
	TracerName string `yaml:"tracer_name" json:"tracer_name"`
}

// Default returns the configuration used when nothing is supplied.
func Default() Config {
	return Config{
		LogLevel:        DefaultLogLevel,
		LogFormat:       DefaultLogFormat,
		MetricsPath:     DefaultMetricsPath,
		InjectionBuffer: DefaultInjectionBuffer,
		TracerName:      DefaultTracerName,
	}
}

func (c Config) String() string {
	// Use a type alias to avoid infinite recursion when printing
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(c))
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	errs = append(errs, c.validateLogging()...)
	errs = append(errs, c.validateMetrics()...)
	if c.InjectionBuffer < 0 {
		errs = append(errs, errors.New("injection: buffer cannot be negative"))
	}

	return errspkg.NewConfigValidationError(errors.Join(errs...))
}

func (c *Config) validateLogging() []error {
	var errs []error
	if c.LogLevel != "" {
		if _, err := loggingpkg.ParseLevel(c.LogLevel); err != nil {
			errs = append(errs, err)
		}
	}
	switch strings.ToLower(c.LogFormat) {
	case "", loggingpkg.FormatText, loggingpkg.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("logging: unknown format %q", c.LogFormat))
	}
	return errs
}

func (c *Config) validateMetrics() []error {
	if c.MetricsAddr == "" {
		return nil
	}
	var errs []error
	_, port, err := net.SplitHostPort(c.MetricsAddr)
	if err != nil {
		errs = append(errs, fmt.Errorf("metrics: invalid address %q: %w", c.MetricsAddr, err))
	} else if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("metrics: invalid port %q", port))
	}
	if c.MetricsPath != "" && !strings.HasPrefix(c.MetricsPath, "/") {
		errs = append(errs, fmt.Errorf("metrics: path %q must start with /", c.MetricsPath))
	}
	return errs
}

// ValidateConfig is a convenience function to validate a config pointer.
func ValidateConfig(c *Config) error {
	if c == nil {
		return errspkg.ErrConfigRequired
	}
	return c.Validate()
}

// LoadFile reads a YAML or JSON file on top of Default. Fields absent from the
// file keep their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := jsoncodec.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format: %s", ext)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from NODEFLOW_* variables. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvLogFormat); ok {
		c.LogFormat = v
	}
	if v, ok := lookup(EnvMetricsAddr); ok {
		c.MetricsAddr = v
	}
	if v, ok := lookup(EnvInjectionBuffer); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvInjectionBuffer, err)
		}
		c.InjectionBuffer = n
	}
	return nil
}
