package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/ni/internal/app"
	"github.com/conneroisu/ni/internal/config"
	nierrors "github.com/conneroisu/ni/internal/errors"
	"github.com/conneroisu/ni/internal/logging"
	"github.com/conneroisu/ni/internal/metrics"
	"github.com/conneroisu/ni/internal/monitoring"
	"github.com/conneroisu/ni/internal/renderer"
	"github.com/conneroisu/ni/internal/security"
	"github.com/conneroisu/ni/internal/server"
	"github.com/conneroisu/ni/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Boot the application and serve it over HTTP",
	Long: `Boot the application directory and serve it.

Every controller, model, view, library and helper under the root is loaded
before the server starts listening; any failure aborts with a non-zero
exit. Every code file must have a module compiled into this binary, so
applications with controllers run serve from their own main package.
Requests are dispatched as /controller/action/args... after custom
routes are applied. /metrics and /healthz are served alongside.

Examples:
  ni serve --root ./app            # Serve ./app on localhost:3000
  ni serve --root ./app -p 8080    # Serve on another port
  NI_AUTOMATIC_VIEWS=true ni serve # Render views after actions
  ni serve --automatic-views --watch-views  # Re-read edited views`,
	RunE: runServe,
}

var serveFlags *StandardFlags

func init() {
	rootCmd.AddCommand(serveCmd)

	serveFlags = AddStandardFlags(serveCmd, "server")
	serveCmd.Flags().Bool("automatic-views", false, "Render root/view_dir/controller/action after each action")
	serveCmd.Flags().Bool("watch-views", false, "Recompile automatic views when their files change")
	bindFlags(serveCmd.Flags(), map[string]string{
		"automatic-views": config.KeyAutomaticViews,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	errHandler := nierrors.NewErrorHandler(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	a, err := app.New(cfg, app.WithLogger(logger), app.WithMetrics(m))
	if err != nil {
		errHandler.Handle(ctx, err)
		return err
	}

	if err := a.Boot(ctx); err != nil {
		errHandler.Handle(ctx, err)
		return err
	}

	h, err := a.Handler(nil)
	if err != nil {
		return err
	}

	health := monitoring.NewHealthMonitor(logger)
	health.RegisterCheck(monitoring.StoreHealthChecker(a.Store))
	health.RegisterCheck(monitoring.DirectoryHealthChecker("views", cfg.ViewRoot()))

	srv := server.New(cfg.Address(), h, server.Options{
		Logger:   logger,
		Metrics:  m,
		Health:   health,
		Security: security.DefaultConfig(),
	})

	if watch, _ := cmd.Flags().GetBool("watch-views"); watch {
		w, err := watchViews(ctx, cfg, a.Renderer(), logger)
		if err != nil {
			logger.Warn(ctx, err, "View watching disabled")
		} else {
			defer w.Stop()
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Starting ni server at http://%s\n", cfg.Address())

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info(ctx, "Server stopped")
	return nil
}

// watchViews drops compiled views from r whenever a file under the view
// directory changes.
func watchViews(ctx context.Context, cfg *config.Config, r *renderer.Renderer, logger logging.Logger) (*watcher.FileWatcher, error) {
	w, err := watcher.NewFileWatcher(watcher.DefaultDelay, logger)
	if err != nil {
		return nil, err
	}

	w.AddFilter(watcher.ExtFilter(cfg.ViewExt))
	w.AddFilter(watcher.NoBackupFilter)
	w.AddFilter(watcher.NoHiddenFilter)
	w.AddHandler(func(events []watcher.ChangeEvent) error {
		paths := watcher.Paths(events)
		dropped := r.Invalidate(paths...)
		logger.Debug(ctx, "Views changed", "files", paths, "dropped", dropped)
		return nil
	})

	if err := w.AddRecursive(cfg.ViewRoot()); err != nil {
		_ = w.Stop()
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return nil, err
	}

	return w, nil
}

// newLogger builds the process logger from the log section.
func newLogger(cfg *config.Config, out io.Writer) (*logging.NiLogger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    out,
		Component: "ni",
	}), nil
}
