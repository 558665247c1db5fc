// Package cli holds the command-line plumbing shared by the node binaries.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/drblury/nodeflow"
	configpkg "github.com/drblury/nodeflow/internal/runtime/config"
)

// RunFunc starts a node with the options derived from flags, environment and
// config file.
type RunFunc func(ctx context.Context, logger nodeflow.Logger, opts ...nodeflow.Option) error

type settings struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsAddr string
}

// NewRootCommand builds the command of one node binary. Precedence, lowest
// first: defaults, --config file, NODEFLOW_* environment, flags.
func NewRootCommand(use, short string, run RunFunc) *cobra.Command {
	var s settings

	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Long:          short + "\n\nThe node speaks newline-delimited JSON on stdin/stdout; logs go to stderr.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := s.load(cmd, os.LookupEnv)
			if err != nil {
				return err
			}
			logger, err := nodeflow.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			logger.Debug("Configuration loaded", nodeflow.LogFields{"config": cfg.String()})

			return run(cmd.Context(), logger,
				nodeflow.WithConfig(cfg),
				nodeflow.WithLogger(logger),
				nodeflow.WithHooks(nodeflow.LoggingHooks(logger)),
			)
		},
	}
	// stdout belongs to the wire protocol.
	cmd.SetOut(os.Stderr)

	flags := cmd.Flags()
	flags.StringVar(&s.configPath, "config", "", "YAML or JSON config file")
	flags.StringVar(&s.logLevel, "log-level", configpkg.DefaultLogLevel, "log level: debug, info, warn or error")
	flags.StringVar(&s.logFormat, "log-format", configpkg.DefaultLogFormat, "log format: text or json")
	flags.StringVar(&s.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	return cmd
}

func (s *settings) load(cmd *cobra.Command, lookup func(string) (string, bool)) (nodeflow.Config, error) {
	cfg := configpkg.Default()
	if s.configPath != "" {
		loaded, err := configpkg.LoadFile(s.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = s.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = s.logFormat
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = s.metricsAddr
	}

	if err := configpkg.ValidateConfig(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Execute runs cmd until it returns or the process is interrupted and
// reports the exit status.
func Execute(cmd *cobra.Command, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", cmd.Name(), err)
		return 1
	}
	return 0
}
