package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/ruleforge/internal/config"
	"github.com/roach88/ruleforge/internal/engine"
	"github.com/roach88/ruleforge/internal/journal"
	"github.com/roach88/ruleforge/internal/metrics"
	"github.com/roach88/ruleforge/internal/registry"
)

// session holds what a command loaded from the configuration.
type session struct {
	opts    *RootOptions
	cfg     config.Config
	logger  *slog.Logger
	journal *journal.Journal
	out     *OutputFormatter
}

// openSession loads and validates the configuration and opens the journal
// when one is configured. Configuration problems are command errors.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}

	s := &session{
		opts:   opts,
		cfg:    cfg,
		logger: newLogger(cmd.ErrOrStderr(), opts.Verbose),
		out: &OutputFormatter{
			Format:  opts.Format,
			Writer:  cmd.OutOrStdout(),
			Verbose: opts.Verbose,
		},
	}
	if cfg.Journal != "" {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		s.journal = j
	}
	return s, nil
}

func (s *session) close() {
	if s.journal == nil {
		return
	}
	if err := s.journal.Close(); err != nil {
		s.logger.Error("error closing journal", "path", s.cfg.Journal, "error", err)
	}
}

// loadHost reads the registry file. Without one the host is empty.
func (s *session) loadHost() (*registry.Registry, error) {
	if s.cfg.Registry == "" {
		s.logger.Info("no registry configured, host is empty")
		return registry.New(nil), nil
	}
	st, err := registry.Load(s.cfg.Registry)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load registry", err)
	}
	return registry.New(st), nil
}

func (s *session) newEngine(host engine.Host, m *metrics.Metrics) *engine.Engine {
	return engine.New(engine.Options{
		Config:    s.cfg,
		Host:      host,
		Toolchain: s.opts.Toolchain,
		Journal:   s.journal,
		Metrics:   m,
		Logger:    s.logger,
	})
}

// newLogger returns a text logger at info level, debug when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// commandContext returns the command's context, or a background context
// when the command runs without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
