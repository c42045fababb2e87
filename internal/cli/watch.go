package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/ruleforge/internal/engine"
	"github.com/roach88/ruleforge/internal/events"
	"github.com/roach88/ruleforge/internal/ir"
	"github.com/roach88/ruleforge/internal/metrics"
	"github.com/roach88/ruleforge/internal/reactor"
	"github.com/roach88/ruleforge/internal/registry"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	MetricsAddr string
	Debounce    time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the helper archive up to date",
		Long: `Activate and keep running: library archives and user sources changed in
the library directory, and host changes written to the registry file, each
trigger the matching regeneration and rebuild.

Runs until interrupted.

Example:
  ruleforge watch --config ruleforge.yaml
  ruleforge watch --metrics-addr :9464 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", reactor.DefaultDebounce, "quiet period before a registry change is applied")

	return cmd
}

func runWatch(cmd *cobra.Command, opts *WatchOptions) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.close()

	host, err := s.loadHost()
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	eng := s.newEngine(host, metrics.New(reg))
	if err := eng.Activate(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return WrapExitError(ExitCommandError, "failed to activate", err)
	}
	defer eng.Deactivate()

	watcher, err := reactor.NewWatcher(s.cfg.LibDir, eng.Reactor(), s.logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to watch library directory", err)
	}
	defer watcher.Close()

	dispatcher := events.NewDispatcher(s.logger)
	dispatcher.Subscribe(eng.Reactor())

	var fw *reactor.FileWatcher
	if s.cfg.Registry != "" {
		reloader := &registryReloader{
			path:      s.cfg.Registry,
			host:      host,
			publisher: dispatcher,
			refresher: eng,
			logger:    s.logger,
		}
		fw, err = reactor.NewFileWatcher(s.cfg.Registry, opts.Debounce, reloader.reload, s.logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to watch registry", err)
		}
		defer fw.Close()
	}

	var ln net.Listener
	if opts.MetricsAddr != "" {
		ln, err = net.Listen("tcp", opts.MetricsAddr)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to listen for metrics", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	if fw != nil {
		g.Go(func() error { return fw.Run(gctx) })
	}
	if ln != nil {
		handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		g.Go(func() error { return serveMetrics(gctx, ln, handler, s.logger) })
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Watching", s.cfg.LibDir)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "watch error", err)
	}

	s.logger.Info("watch stopped gracefully")
	return nil
}

// serveMetrics serves /metrics on ln until ctx is done.
func serveMetrics(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

type publisher interface {
	Publish(ev ir.Event) bool
}

type refresher interface {
	Refresh() (bool, error)
}

// registryReloader applies a changed registry file to the host: the
// resulting host events go to the dispatcher, and a change of the declared
// proxy actions, which has no event, refreshes the engine directly.
type registryReloader struct {
	path      string
	host      *registry.Registry
	publisher publisher
	refresher refresher
	logger    *slog.Logger
}

func (r *registryReloader) reload() {
	st, err := registry.Load(r.path)
	if err != nil {
		r.logger.Warn("registry reload failed, keeping current host state", "path", r.path, "error", err)
		return
	}

	change := r.host.Replace(st)
	r.logger.Info("registry reloaded",
		"path", r.path,
		"events", len(change.Events),
		"actions_changed", change.ActionsChanged)

	for _, ev := range change.Events {
		if !r.publisher.Publish(ev) {
			r.logger.Warn("event dropped, dispatcher stopped", "event", ev.String())
		}
	}
	if change.ActionsChanged {
		// A failed rebuild has already been logged by the engine.
		if _, err := r.refresher.Refresh(); errors.Is(err, engine.ErrNotActive) {
			r.logger.Warn("refresh skipped", "path", r.path, "error", err)
		}
	}
}
