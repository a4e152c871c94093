package forecast

import (
	"context"
	"fmt"

	"github.com/hydralert/floodcast/pkg/hydro"
)

// defaultAverageWindow is the number of trailing samples averaged when the
// caller does not configure a window.
const defaultAverageWindow = 24

// MovingAverageAlgorithm forecasts the arithmetic mean of a fixed trailing
// window for every horizon step. The forecast is deliberately flat: robust to
// short-term noise and non-reactive to trend, it serves as the conservative
// baseline the other algorithms are compared against.
type MovingAverageAlgorithm struct {
	// Window is the trailing sample count to average. Defaults to 24 if <= 0.
	// Shorter histories use all available samples.
	Window int
}

func (a MovingAverageAlgorithm) Key() string { return "moving_average" }

func (a MovingAverageAlgorithm) DisplayName() string { return "Moyenne Mobile" }

// Predict implements Algorithm.
func (a MovingAverageAlgorithm) Predict(ctx context.Context, history hydro.Series, horizon int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if len(history) == 0 {
		return Result{}, fmt.Errorf("moving average: %w: window is empty", ErrInsufficientData)
	}

	window := a.Window
	if window <= 0 {
		window = defaultAverageWindow
	}
	if window > len(history) {
		window = len(history)
	}

	values := history[len(history)-window:].Values()
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	return flatResult(mean, horizon), nil
}
