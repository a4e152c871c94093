package forecast

import (
	"context"
	"fmt"

	"github.com/hydralert/floodcast/pkg/hydro"
)

// LinearRegressionAlgorithm fits an ordinary least squares line
//
//	value = intercept + slope*t
//
// where t is elapsed time in hours since the first observation, then
// extrapolates from the last observation: predicted[i] is the fitted value at
// t_last + (i+1) hours.
//
// The slope and intercept come from the standard closed-form OLS sums; a
// single-variable fit needs no iterative solver. Histories with fewer than
// two distinct timestamps have zero time variance and fail with
// ErrInsufficientData instead of dividing by zero.
type LinearRegressionAlgorithm struct{}

func (LinearRegressionAlgorithm) Key() string { return "linear_regression" }

func (LinearRegressionAlgorithm) DisplayName() string { return "Régression Linéaire" }

// Predict implements Algorithm.
func (LinearRegressionAlgorithm) Predict(ctx context.Context, history hydro.Series, horizon int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if len(history) < 2 {
		return Result{}, fmt.Errorf("linear regression: %w: need at least 2 observations, have %d",
			ErrInsufficientData, len(history))
	}

	origin := history[0].Timestamp
	lastT := history.Span().Hours()

	n := float64(len(history))
	var sumT, sumV, sumTV, sumT2 float64
	for _, obs := range history {
		t := obs.Timestamp.Sub(origin).Hours()
		sumT += t
		sumV += obs.Value
		sumTV += t * obs.Value
		sumT2 += t * t
	}

	denom := n*sumT2 - sumT*sumT
	if denom == 0 {
		return Result{}, fmt.Errorf("linear regression: %w: zero time variance across %d observations",
			ErrInsufficientData, len(history))
	}

	slope := (n*sumTV - sumT*sumV) / denom
	intercept := (sumV - slope*sumT) / n

	points := make([]Point, horizon)
	for i := range points {
		t := lastT + float64(i+1)
		points[i].Predicted = clampNonNegative(intercept + slope*t)
	}

	return Result{Points: points}, nil
}
