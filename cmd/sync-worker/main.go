package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	apphttp "github.com/tablepilot/platform-sync/pkg/app/http"
	"github.com/tablepilot/platform-sync/pkg/config"
	"github.com/tablepilot/platform-sync/pkg/connector"
	"github.com/tablepilot/platform-sync/pkg/connector/resos"
	"github.com/tablepilot/platform-sync/pkg/pgutil"
	"github.com/tablepilot/platform-sync/pkg/platform"
	"github.com/tablepilot/platform-sync/pkg/reservation"
	"github.com/tablepilot/platform-sync/pkg/sync"
	"github.com/tablepilot/platform-sync/pkg/synclog"
	"github.com/tablepilot/platform-sync/pkg/syncmap"
)

var configPath = flag.String("config", "config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting platform sync worker",
		zap.String("schedule", cfg.Sync.RetrySweepSchedule),
		zap.Int("sweep_limit", cfg.Sync.RetrySweepLimit))

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connection established")

	reservations := reservation.NewStore(db)
	mappings := syncmap.NewStore(db)
	ledger := synclog.NewStore(db)
	configs := platform.NewStore(db)

	registry := connector.NewRegistry(configs, logger)
	registry.Register(resos.PlatformKey, resos.New)

	svc := sync.NewService(reservations, mappings, ledger, configs, registry, logger, cfg.Sync.OutboundTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Sync.RetrySweepSchedule, func() {
		sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		processed, err := svc.ProcessRetries(sweepCtx, cfg.Sync.RetrySweepLimit)
		if err != nil {
			logger.Error("Retry sweep failed", zap.Error(err))
			return
		}
		if processed > 0 {
			logger.Info("Retry sweep completed", zap.Int("processed", processed))
		}
	})
	if err != nil {
		logger.Fatal("Invalid retry sweep schedule", zap.Error(err))
	}
	scheduler.Start()

	// Liveness and metrics only; the operator API lives on the sync-server.
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	if err := apphttp.ServeAndWait(ctx, r, logger, &cfg.Server); err != nil {
		logger.Error("HTTP server failed", zap.Error(err))
	}

	cronCtx := scheduler.Stop()
	select {
	case <-cronCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("Timed out waiting for running sweep to finish")
	}

	logger.Info("Worker stopped")
}
