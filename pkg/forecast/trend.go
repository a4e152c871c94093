package forecast

import (
	"context"
	"fmt"

	"github.com/hydralert/floodcast/pkg/hydro"
)

// defaultTrendWindow is the number of trailing observations the rate is
// averaged over.
const defaultTrendWindow = 7

// TrendAlgorithm extrapolates the average rate of change over a short
// trailing window linearly across the horizon:
//
//	predicted[i] = last + rate*(i+1)
//	rate         = (window_last - window_first) / (len(window)-1)
//
// A single-point history yields a flat forecast (rate zero). Reactive to
// recent movement, so it overshoots on noisy series; the moving average is
// the conservative counterpart.
type TrendAlgorithm struct {
	// Window is the trailing sample count the rate is computed over.
	// Defaults to 7 if <= 0.
	Window int
}

func (a TrendAlgorithm) Key() string { return "simple" }

func (a TrendAlgorithm) DisplayName() string { return "Tendance Simple" }

// Predict implements Algorithm.
func (a TrendAlgorithm) Predict(ctx context.Context, history hydro.Series, horizon int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	latest, ok := history.Last()
	if !ok {
		return Result{}, fmt.Errorf("trend: %w: history is empty", ErrInsufficientData)
	}

	last := latest.Value
	if len(history) == 1 {
		return flatResult(last, horizon), nil
	}

	window := a.Window
	if window <= 0 {
		window = defaultTrendWindow
	}
	if window > len(history) {
		window = len(history)
	}

	recent := history[len(history)-window:]
	rate := (recent[len(recent)-1].Value - recent[0].Value) / float64(len(recent)-1)

	points := make([]Point, horizon)
	for i := range points {
		points[i].Predicted = clampNonNegative(last + rate*float64(i+1))
	}

	return Result{Points: points}, nil
}
