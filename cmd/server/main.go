/*
main.go - Application entry point

PURPOSE:
  Starts the payout engine HTTP server and exposes the scheduled jobs as
  one-shot commands for operators and external schedulers.

COMMANDS:
  serve        HTTP API plus the in-process cron scheduler
  tick         Run the monthly gift/bonus tick once (--month YYYY-MM)
  deactivate   Deactivate expired bonus plans once
  cleanup      Purge rejected customers past retention once

STARTUP SEQUENCE:
  1. Load configuration (file, PAYOUT_* env, defaults)
  2. Build the zap logger
  3. Open the SQLite store (migrations run on open)
  4. Build the portfolio service
  5. serve only: start scheduler and HTTP server

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler, waiting for a running job
  2. Stop accepting new connections
  3. Wait for active requests (http.shutdown_timeout)
  4. Close database connection

EXAMPLES:
  ./server serve --config ./config.toml
  PAYOUT_DATABASE_PATH=":memory:" ./server serve
  ./server tick --month 2024-01

SEE ALSO:
  - config/config.go: Settings and defaults
  - api/server.go: Router configuration
  - api/scheduler.go: Cron jobs
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/payout-engine/api"
	"github.com/warp/payout-engine/config"
	"github.com/warp/payout-engine/generic"
	"github.com/warp/payout-engine/logger"
	"github.com/warp/payout-engine/portfolio"
	"github.com/warp/payout-engine/store/sqlite"
	"go.uber.org/zap"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "server",
		Short:         "Payout engine",
		Long:          `Investment payouts, agent commissions, recurring deposits and incentives over a REST API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.toml if present)")

	rootCmd.AddCommand(
		newServeCommand(),
		newTickCommand(),
		newDeactivateCommand(),
		newCleanupCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app is everything a command needs.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *sqlite.Store
	service *portfolio.Service
}

func bootstrap() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	svc := portfolio.NewService(store, log.Named("portfolio"),
		portfolio.WithPenalty(cfg.Deposit.PenaltyAmount),
		portfolio.WithRejectedRetention(cfg.Cleanup.RejectedRetention),
	)
	return &app{cfg: cfg, log: log, store: store, service: svc}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close database", zap.Error(err))
	}
	a.log.Sync()
}

// scheduler builds the job runner whether or not it is enabled, so the
// one-shot commands share its job definitions.
func (a *app) scheduler() (*api.Scheduler, error) {
	return api.NewScheduler(a.service, a.log, a.cfg.Scheduler)
}

// =============================================================================
// SERVE
// =============================================================================

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched, err := a.scheduler()
	if err != nil {
		return err
	}
	if a.cfg.Scheduler.Enabled {
		sched.Start(ctx)
		defer sched.Stop()
	} else {
		a.log.Info("scheduler disabled")
	}

	handler := api.NewHandler(a.service, a.store, a.log.Named("http"))
	server := &http.Server{
		Addr:         ":" + a.cfg.App.Port,
		Handler:      api.NewRouter(handler, a.cfg.HTTP.CORSAllowOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server starting",
			zap.String("app", a.cfg.App.Name),
			zap.String("addr", server.Addr),
			zap.String("database", a.cfg.Database.Path),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.log.Info("server stopped")
	return nil
}

// =============================================================================
// ONE-SHOT JOBS
// =============================================================================

func newTickCommand() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run the monthly gift and bonus tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := context.Background()
			var grants int
			if month == "" {
				sched, err := a.scheduler()
				if err != nil {
					return err
				}
				out, err := sched.RunMonthlyTick(ctx)
				if err != nil {
					return err
				}
				grants = len(out)
			} else {
				p, err := generic.ParseMonth(month)
				if err != nil {
					return err
				}
				out, err := a.service.RunMonthlyTick(ctx, p)
				if err != nil {
					return err
				}
				grants = len(out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d grants issued\n", grants)
			return nil
		},
	}
	cmd.Flags().StringVarP(&month, "month", "m", "", "month to evaluate, YYYY-MM (default: previous month)")
	return cmd
}

func newDeactivateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate",
		Short: "Deactivate bonus plans past their validity",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			expired, err := a.service.DeactivateExpiredPlans(context.Background(), a.service.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d plans deactivated\n", len(expired))
			return nil
		},
	}
}

func newCleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Purge rejected customers past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.service.PurgeRejected(context.Background(), a.service.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rejected customers purged\n", n)
			return nil
		},
	}
}
