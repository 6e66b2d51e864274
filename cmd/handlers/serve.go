package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"axial/internal/config"
	"axial/internal/logger"
	"axial/internal/metrics"
	"axial/internal/observability"
	"axial/internal/pipeline"
	"axial/internal/scheduler"
	"axial/internal/server"
	"axial/internal/sources"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// NewServeCmd creates the serve command for running the scheduled pipeline
func NewServeCmd() *cobra.Command {
	var (
		port        int
		host        string
		noSchedule  bool
		skipSeeding bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled pipeline and its HTTP API",
		Long: `Run the pipeline on its cron schedule and serve the operational HTTP API.

The server provides:
  • GET  /health                 Liveness and database check
  • GET  /metrics                Prometheus metrics
  • POST /api/pipeline/sync      Trigger an ingestion pass
  • POST /api/pipeline/enrich    Trigger cluster enrichment
  • POST /api/pipeline/digest    Trigger today's digest
  • GET  /api/pipeline/status    Counters, last digest and next runs

When the sources table is empty and feeds.seed_file is set, sources are
seeded before the first sync.

Examples:
  # Start on the configured port
  axial serve

  # Serve the API only, no scheduled runs
  axial serve --no-schedule --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host, noSchedule, skipSeeding)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 3001)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 127.0.0.1)")
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "Disable scheduled runs")
	cmd.Flags().BoolVar(&skipSeeding, "skip-seed", false, "Do not seed sources on an empty database")

	return cmd
}

func runServe(ctx context.Context, port int, host string, noSchedule, skipSeeding bool) error {
	log := logger.Get()
	cfg := config.Get()

	// Override server config from flags if provided
	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	var (
		recorders      []pipeline.Recorder
		metricsHandler http.Handler
	)
	if cfg.Observability.MetricsEnabled {
		m := metrics.NewDefault()
		recorders = append(recorders, m)
		metricsHandler = m.Handler()
	}

	posthog, err := observability.NewPostHogClient()
	if err != nil {
		return fmt.Errorf("failed to initialize analytics: %w", err)
	}
	defer func() {
		if err := posthog.Shutdown(); err != nil {
			logger.Error("Failed to flush analytics", err)
		}
	}()
	if posthog.IsEnabled() {
		recorders = append(recorders, posthog)
	}

	a, err := newApp(ctx, recorders...)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info("Database connection successful")

	if !skipSeeding {
		manager := sources.NewManager(a.db.Sources(), newFetcher())
		seeded, result, err := manager.SeedIfEmpty(ctx, cfg.Feeds.SeedFile)
		if err != nil {
			return fmt.Errorf("failed to seed sources: %w", err)
		}
		if seeded {
			log.Info("Seeded sources", "inserted", result.Inserted, "skipped", result.Skipped, "failed", result.Failed)
		}
	}

	var sched *scheduler.Scheduler
	if cfg.Schedule.Enabled && !noSchedule {
		sched, err = scheduler.New(a.pipeline, scheduler.Config{
			Sync:         cfg.Schedule.Sync,
			Digest:       cfg.Schedule.Digest,
			Timezone:     cfg.Schedule.Timezone,
			RunOnStartup: cfg.Schedule.RunOnStartup,
		})
		if err != nil {
			return fmt.Errorf("failed to configure scheduler: %w", err)
		}
		a.pipeline.SetScheduleReporter(sched)
	}

	srv := server.New(a.pipeline, a.db, metricsHandler, serverCfg)

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		log.Info("Press Ctrl+C to stop")
		serverErrors <- srv.Start()
	}()

	if sched != nil {
		sched.Start()
		defer sched.Stop()
	}

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive our signal or an error from server
	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		// Create shutdown context with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Attempt graceful shutdown
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed, forcing close", "error", err)
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		log.Info("Server stopped successfully")
	}

	return nil
}
