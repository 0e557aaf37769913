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
	"go.uber.org/zap"

	apphttp "github.com/tablepilot/platform-sync/pkg/app/http"
	"github.com/tablepilot/platform-sync/pkg/auth"
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

	logger.Info("Starting platform sync server",
		zap.String("config", *configPath),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port))

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Database connection established",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database))

	reservations := reservation.NewStore(db)
	mappings := syncmap.NewStore(db)
	ledger := synclog.NewStore(db)
	configs := platform.NewStore(db)

	registry := connector.NewRegistry(configs, logger)
	registry.Register(resos.PlatformKey, resos.New)
	logger.Info("Connector registry initialized", zap.Strings("platforms", registry.Supported()))

	svc := sync.NewService(reservations, mappings, ledger, configs, registry, logger, cfg.Sync.OutboundTimeout)

	if cfg.Auth.OperatorJWTSecret == "" {
		logger.Warn("auth.operator_jwt_secret is not set; /ops endpoints will reject every request")
	}
	validator := auth.NewOperatorValidator(cfg.Auth.OperatorJWTSecret, cfg.Auth.Issuer)
	handler := sync.NewHandler(svc, registry, validator, cfg.Sync.RetrySweepLimit, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(r)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := apphttp.ServeAndWait(ctx, r, logger, &cfg.Server); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}
