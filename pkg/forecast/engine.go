package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hydralert/floodcast/pkg/hydro"
)

// DefaultLookback is the historical window requested from the observation
// source: 30 days of daily mean discharge.
const DefaultLookback = 30 * 24 * time.Hour

// ObservationSource supplies the observation history for a site. Implemented
// by the Hub'Eau client in production and by fakes in tests. The engine makes
// exactly one Historical call per forecast request and does not cache.
type ObservationSource interface {
	Historical(ctx context.Context, site string, lookback time.Duration) (hydro.Series, error)
}

// Engine orchestrates a forecast request:
//
//	resolve algorithm → fetch history → clean → predict → normalize
//
// The engine is stateless apart from its read-only configuration and is safe
// for concurrent use. Forecast timestamps are stamped from the injected clock
// at now+1h through now+24h.
type Engine struct {
	registry *Registry
	source   ObservationSource
	clock    clockwork.Clock
	lookback time.Duration
	horizon  int
	logger   *slog.Logger
}

// NewEngine creates a forecast engine. A nil clock uses the wall clock, a nil
// logger uses slog.Default, and a non-positive lookback uses DefaultLookback.
func NewEngine(registry *Registry, source ObservationSource, clock clockwork.Clock, lookback time.Duration, logger *slog.Logger) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}

	return &Engine{
		registry: registry,
		source:   source,
		clock:    clock,
		lookback: lookback,
		horizon:  Horizon,
		logger:   logger,
	}
}

// Registry exposes the engine's algorithm catalogue for listing endpoints.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Forecast generates a 24-hour forecast for a site. An empty or unknown
// algorithmKey falls back to the registry default; the returned result is
// tagged with the key that actually ran. Fails with ErrInsufficientData when
// the fetched history is empty or entirely invalid, or when the resolved
// algorithm needs more points than remain after cleaning.
func (e *Engine) Forecast(ctx context.Context, site, algorithmKey string) (Result, error) {
	alg := e.registry.Resolve(algorithmKey)
	if algorithmKey != "" && alg.Key() != algorithmKey {
		e.logger.Warn("unknown algorithm key, using default",
			"requested", algorithmKey,
			"resolved", alg.Key(),
		)
	}

	series, err := e.source.Historical(ctx, site, e.lookback)
	if err != nil {
		return Result{}, fmt.Errorf("fetch observations for site %q: %w", site, err)
	}

	history := series.Clean()
	if len(history) == 0 {
		return Result{}, fmt.Errorf("site %q: %w: no valid observations in the last %v",
			site, ErrInsufficientData, e.lookback)
	}

	result, err := alg.Predict(ctx, history, e.horizon)
	if err != nil {
		return Result{}, fmt.Errorf("algorithm %q: %w", alg.Key(), err)
	}

	if len(result.Points) != e.horizon {
		return Result{}, fmt.Errorf("algorithm %q returned %d points, want %d",
			alg.Key(), len(result.Points), e.horizon)
	}

	e.normalize(&result)
	result.AlgorithmKey = alg.Key()

	e.logger.Debug("forecast generated",
		"site", site,
		"algorithm", alg.Key(),
		"observations", len(history),
		"points", len(result.Points),
	)

	return result, nil
}

// normalize stamps hourly timestamps from the clock and derives bounds for
// points that carry only an estimate.
func (e *Engine) normalize(result *Result) {
	start := e.clock.Now().UTC().Truncate(time.Second)
	for i := range result.Points {
		result.Points[i].Timestamp = start.Add(time.Duration(i+1) * time.Hour)
	}
	deriveBounds(result.Points)
}
