// Command forecaster serves 24-hour flood forecasts for French hydrometric
// sites.
//
// It fetches discharge observations from the Hub'Eau hydrometrie API, runs
// one of three forecasting algorithms (trend extrapolation, moving average,
// linear regression) over the cleaned series, and serves the results over
// HTTP with uncertainty bounds. Forecasts are cached as snapshots in memory
// or Redis so the API stays responsive when Hub'Eau is down. An optional
// background tracker keeps snapshots warm for a configured list of sites.
//
// Endpoints:
//   - GET /api/flood/algorithms                  - available algorithms
//   - GET /api/flood/forecast/{site}?algorithm=  - 24-hour forecast
//   - GET /api/flood/sites?search=               - site catalog
//   - GET /api/flood/sites/search/{term}         - site search
//   - GET /api/flood/historical-data/{site}      - daily mean discharge
//   - GET /api/flood/real-time-data/{site}       - recent raw observations
//   - GET /healthz                               - health check
//   - GET /metrics                               - Prometheus metrics
//
// Usage:
//
//	forecaster \
//	  -listen=:8080 \
//	  -storage=redis -redis-addr=localhost:6379 \
//	  -departments=38,73 \
//	  -sites=W3150010,W1410010 -interval=1h
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hydralert/floodcast/cmd/forecaster/config"
	"github.com/hydralert/floodcast/cmd/forecaster/logger"
	"github.com/hydralert/floodcast/cmd/forecaster/metrics"
	"github.com/hydralert/floodcast/cmd/forecaster/router"
	"github.com/hydralert/floodcast/pkg/forecast"
	"github.com/hydralert/floodcast/pkg/httpx"
	"github.com/hydralert/floodcast/pkg/hubeau"
	"github.com/hydralert/floodcast/pkg/storage"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	log.Info("starting floodcast forecaster",
		"version", version,
		"storage", cfg.Storage,
		"default_algorithm", cfg.DefaultAlgorithm,
	)

	registry, err := forecast.NewStandardRegistry(cfg.DefaultAlgorithm)
	if err != nil {
		log.Error("failed to build algorithm registry", "error", err)
		os.Exit(1)
	}

	hubeauClient := hubeau.NewClient(cfg.HubeauURL, log)

	store, err := buildStore(cfg)
	if err != nil {
		log.Error("failed to initialize snapshot store", "error", err)
		os.Exit(1)
	}
	defer closeStore(store, log)

	engine := forecast.NewEngine(registry, hubeauClient, nil, cfg.Lookback, log)
	m := metrics.New()

	mux := router.SetupRoutes(router.Services{
		Engine:       engine,
		Catalog:      hubeauClient,
		Observations: hubeauClient,
		Store:        store,
		Departments:  cfg.Departments,
		Lookback:     cfg.Lookback,
		Metrics:      m,
		Logger:       log,
	})
	handler := httpx.RecoveryMiddleware(log)(httpx.LoggingMiddleware(log)(mux))
	httpServer := httpx.NewServer(cfg.Listen, handler, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.Sites) > 0 {
		tracker := NewTracker(cfg.Sites, engine, store, nil, log, m)
		go func() {
			if err := tracker.Run(ctx, cfg.Interval); err != nil && err != context.Canceled {
				log.Error("site tracker failed", "error", err)
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			log.Error("server failed", "error", err)
		}
	}

	log.Info("shutting down")
	cancel()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		log.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("shutdown complete")
}

// buildStore constructs the snapshot store selected by configuration.
func buildStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Storage == "redis" {
		return storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SnapshotTTL)
	}
	return storage.NewMemoryStoreWithTTL(cfg.SnapshotTTL, 5*time.Minute), nil
}

func closeStore(store storage.Store, log *slog.Logger) {
	switch s := store.(type) {
	case *storage.RedisStore:
		if err := s.Close(); err != nil {
			log.Error("failed to close redis store", "error", err)
		}
	case *storage.MemoryStore:
		s.Stop()
	}
}
