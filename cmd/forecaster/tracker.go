// This file contains the Tracker, which keeps forecast snapshots warm for a
// fixed set of sites. Each tick runs the forecast pipeline for every tracked
// site and stores the result, so the API can answer from the snapshot store
// even when Hub'Eau is slow or briefly unavailable.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hydralert/floodcast/cmd/forecaster/metrics"
	"github.com/hydralert/floodcast/pkg/forecast"
	"github.com/hydralert/floodcast/pkg/storage"
)

// Tracker refreshes forecasts for tracked sites in the background.
type Tracker struct {
	sites   []string
	engine  *forecast.Engine
	store   storage.Store
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewTracker creates a Tracker. Metrics may be nil.
func NewTracker(sites []string, engine *forecast.Engine, store storage.Store, clock clockwork.Clock, logger *slog.Logger, m *metrics.Metrics) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		sites:   sites,
		engine:  engine,
		store:   store,
		clock:   clock,
		logger:  logger,
		metrics: m,
	}
}

// Run executes the refresh loop at regular intervals. Blocks until the
// context is canceled.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) error {
	t.logger.Info("starting site tracker", "sites", len(t.sites), "interval", interval)

	ticker := t.clock.NewTicker(interval)
	defer ticker.Stop()

	t.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("site tracker stopped")
			return ctx.Err()
		case <-ticker.Chan():
			t.Tick(ctx)
		}
	}
}

// Tick refreshes the snapshot for every tracked site. A failing site does not
// stop the others.
func (t *Tracker) Tick(ctx context.Context) {
	start := t.clock.Now()

	var refreshed int
	for _, site := range t.sites {
		if ctx.Err() != nil {
			return
		}
		if err := t.refresh(ctx, site); err != nil {
			t.logger.Error("site refresh failed", "site", site, "error", err)
			if t.metrics != nil {
				t.metrics.RecordError("tracker", "refresh_failed")
			}
			continue
		}
		refreshed++
	}

	t.logger.Info("tracker tick complete",
		"refreshed", refreshed,
		"sites", len(t.sites),
		"duration_ms", t.clock.Since(start).Milliseconds(),
	)
}

func (t *Tracker) refresh(ctx context.Context, site string) error {
	start := t.clock.Now()
	result, err := t.engine.Forecast(ctx, site, "")
	if t.metrics != nil {
		t.metrics.RecordPredict(t.clock.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("forecast: %w", err)
	}

	snapshot := storage.Snapshot{
		Site:         site,
		AlgorithmKey: result.AlgorithmKey,
		GeneratedAt:  t.clock.Now().UTC(),
		HorizonHours: forecast.Horizon,
		Points:       result.Points,
	}
	if err := t.store.Put(ctx, snapshot); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}

	if t.metrics != nil {
		t.metrics.RecordForecast(result.AlgorithmKey)
		if len(result.Points) > 0 {
			t.metrics.SetPredicted(site, result.Points[0].Predicted)
		}
	}

	t.logger.Debug("refreshed site snapshot", "site", site, "algorithm", result.AlgorithmKey)
	return nil
}
