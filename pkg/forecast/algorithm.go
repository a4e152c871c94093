// Package forecast provides the flood forecasting engine: a closed set of
// interchangeable 24-hour forecasting algorithms, the registry that exposes
// them by key, and the engine that orchestrates a forecast request.
//
// Algorithms are pure functions of their input history. They hold no state,
// perform no I/O, and may be called concurrently. Available algorithms:
//   - TrendAlgorithm          — rate-of-change extrapolation over a short window
//   - MovingAverageAlgorithm  — flat window mean, conservative baseline
//   - LinearRegressionAlgorithm — ordinary least squares over elapsed time
package forecast

import (
	"context"
	"errors"
	"time"

	"github.com/hydralert/floodcast/pkg/hydro"
)

// Horizon is the fixed forecast length: 24 hourly steps.
const Horizon = 24

// ErrInsufficientData is returned when the observation history is empty or
// below an algorithm's minimum after invalid samples are filtered out.
// Callers should translate it into a "not enough data for this site" response
// rather than a generic failure.
var ErrInsufficientData = errors.New("insufficient observation data")

// Point is a single forecast step. Lower <= Predicted <= Upper holds for
// every point the engine returns.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Predicted float64   `json:"predicted"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
}

// Result is a complete forecast for one site. AlgorithmKey is the key of the
// algorithm that actually ran, which may differ from the requested key when
// the registry fell back to the default.
type Result struct {
	AlgorithmKey string  `json:"algorithmKey"`
	Points       []Point `json:"points"`
}

// Algorithm is the contract every forecasting strategy implements.
//
// Predict consumes a cleaned, ascending, timestamp-deduplicated history and
// returns exactly horizon points. Implementations fill Predicted only; the
// engine stamps timestamps and derives bounds for points that lack them.
// Implementations must be pure: same history in, same points out.
type Algorithm interface {
	// Key is the stable machine-readable identifier used for selection.
	Key() string

	// DisplayName is the human-readable name shown to clients.
	DisplayName() string

	// Predict produces the forecast or fails with ErrInsufficientData.
	Predict(ctx context.Context, history hydro.Series, horizon int) (Result, error)
}

// flatResult builds a horizon-length result with every step predicting the
// same value. Shared by the degenerate single-point cases.
func flatResult(value float64, horizon int) Result {
	points := make([]Point, horizon)
	for i := range points {
		points[i].Predicted = value
	}
	return Result{Points: points}
}

// clampNonNegative floors a prediction at zero. Discharge cannot be negative;
// downward trends are cut off rather than extrapolated below the axis.
func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
