package forecast

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/hydralert/floodcast/pkg/hydro"
)

func TestLinearRegressionAlgorithm_Keys(t *testing.T) {
	alg := LinearRegressionAlgorithm{}
	if alg.Key() != "linear_regression" {
		t.Errorf("Key() = %q, want %q", alg.Key(), "linear_regression")
	}
	if alg.DisplayName() == "" {
		t.Error("DisplayName() is empty")
	}
}

func TestLinearRegressionAlgorithm_PerfectLine(t *testing.T) {
	// Hourly samples 1, 2, 3: slope 1 per hour, intercept 1.
	result, err := LinearRegressionAlgorithm{}.Predict(context.Background(), makeSeries(1, 2, 3), Horizon)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	const eps = 1e-9
	if got := result.Points[0].Predicted; math.Abs(got-4.0) > eps {
		t.Errorf("step 1 = %v, want 4.0", got)
	}
	if got := result.Points[23].Predicted; math.Abs(got-27.0) > eps {
		t.Errorf("step 24 = %v, want 27.0", got)
	}
}

func TestLinearRegressionAlgorithm_NoisyLineFitsThrough(t *testing.T) {
	// v = 100 + 2t with residuals (+1, -1, 0, 0, -1, +1). The residuals sum
	// to zero and are uncorrelated with t, so the least-squares fit is
	// exactly slope 2, intercept 100.
	result, err := LinearRegressionAlgorithm{}.Predict(context.Background(),
		makeSeries(101, 101, 104, 106, 107, 111), Horizon)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	const eps = 1e-9
	for i, p := range result.Points {
		want := 100.0 + 2.0*float64(5+i+1)
		if math.Abs(p.Predicted-want) > eps {
			t.Errorf("Points[%d].Predicted = %v, want %v", i, p.Predicted, want)
		}
	}
}

func TestLinearRegressionAlgorithm_InsufficientData(t *testing.T) {
	tests := []struct {
		name    string
		history hydro.Series
	}{
		{"empty", hydro.Series{}},
		{"single point", makeSeries(5)},
		{
			"zero time variance",
			hydro.Series{
				{Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Value: 5, Kind: hydro.Discharge},
				{Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Value: 7, Kind: hydro.Discharge},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LinearRegressionAlgorithm{}.Predict(context.Background(), tt.history, Horizon)
			if !errors.Is(err, ErrInsufficientData) {
				t.Errorf("Predict() error = %v, want ErrInsufficientData", err)
			}
		})
	}
}

func TestLinearRegressionAlgorithm_FallingLineClampsAtZero(t *testing.T) {
	result, err := LinearRegressionAlgorithm{}.Predict(context.Background(), makeSeries(30, 20, 10), Horizon)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}

	for i, p := range result.Points {
		if p.Predicted < 0 {
			t.Errorf("Points[%d].Predicted = %v, want >= 0", i, p.Predicted)
		}
	}
	if result.Points[23].Predicted != 0 {
		t.Errorf("step 24 = %v, want 0", result.Points[23].Predicted)
	}
}
