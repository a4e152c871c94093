package forecast

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hydralert/floodcast/pkg/hydro"
)

// fakeSource returns a canned series or error for every site.
type fakeSource struct {
	series hydro.Series
	err    error
	calls  int
}

func (f *fakeSource) Historical(ctx context.Context, site string, lookback time.Duration) (hydro.Series, error) {
	f.calls++
	return f.series, f.err
}

func newTestEngine(t *testing.T, source ObservationSource, clock clockwork.Clock) *Engine {
	t.Helper()
	registry, err := NewStandardRegistry("moving_average")
	if err != nil {
		t.Fatalf("NewStandardRegistry() error = %v", err)
	}
	return NewEngine(registry, source, clock, 0, nil)
}

func TestEngine_Forecast_HorizonAndTimestamps(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	engine := newTestEngine(t, &fakeSource{series: makeSeries(10, 12, 14)}, clockwork.NewFakeClockAt(now))

	result, err := engine.Forecast(context.Background(), "W3150010", "moving_average")
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	if len(result.Points) != Horizon {
		t.Fatalf("len(Points) = %d, want %d", len(result.Points), Horizon)
	}
	for i, p := range result.Points {
		want := now.Add(time.Duration(i+1) * time.Hour)
		if !p.Timestamp.Equal(want) {
			t.Errorf("Points[%d].Timestamp = %v, want %v", i, p.Timestamp, want)
		}
	}
}

func TestEngine_Forecast_BoundInvariant(t *testing.T) {
	engine := newTestEngine(t, &fakeSource{series: makeSeries(5, 7)}, clockwork.NewFakeClock())

	for _, key := range []string{"simple", "moving_average", "linear_regression"} {
		result, err := engine.Forecast(context.Background(), "W3150010", key)
		if err != nil {
			t.Fatalf("Forecast(%q) error = %v", key, err)
		}
		for i, p := range result.Points {
			if p.Lower > p.Predicted || p.Upper < p.Predicted {
				t.Errorf("%s: points[%d]: lower=%v predicted=%v upper=%v",
					key, i, p.Lower, p.Predicted, p.Upper)
			}
		}
	}
}

func TestEngine_Forecast_DerivedBounds(t *testing.T) {
	// Flat history at 100: the moving average predicts exactly 100 and the
	// engine applies the ±20% band.
	engine := newTestEngine(t, &fakeSource{series: makeSeries(100, 100, 100)}, clockwork.NewFakeClock())

	result, err := engine.Forecast(context.Background(), "W3150010", "moving_average")
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	const eps = 1e-9
	for i, p := range result.Points {
		if math.Abs(p.Lower-80.0) > eps || math.Abs(p.Upper-120.0) > eps {
			t.Errorf("points[%d]: bounds = [%v, %v], want [80, 120]", i, p.Lower, p.Upper)
		}
	}
}

func TestEngine_Forecast_Deterministic(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC))
	engine := newTestEngine(t, &fakeSource{series: makeSeries(3, 9, 4, 12, 8)}, clock)

	first, err := engine.Forecast(context.Background(), "W3150010", "linear_regression")
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	second, err := engine.Forecast(context.Background(), "W3150010", "linear_regression")
	if err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different results")
	}
}

func TestEngine_Forecast_TagsResolvedKeyOnFallback(t *testing.T) {
	engine := newTestEngine(t, &fakeSource{series: makeSeries(10, 12, 14)}, clockwork.NewFakeClock())

	tests := []struct {
		requested string
		want      string
	}{
		{"", "moving_average"},
		{"nonexistent_key", "moving_average"},
		{"simple", "simple"},
	}

	for _, tt := range tests {
		result, err := engine.Forecast(context.Background(), "W3150010", tt.requested)
		if err != nil {
			t.Fatalf("Forecast(%q) error = %v", tt.requested, err)
		}
		if result.AlgorithmKey != tt.want {
			t.Errorf("Forecast(%q).AlgorithmKey = %q, want %q", tt.requested, result.AlgorithmKey, tt.want)
		}
	}
}

func TestEngine_Forecast_InsufficientData(t *testing.T) {
	invalid := hydro.Series{
		{Timestamp: time.Now(), Value: -1, Kind: hydro.Discharge},
		{Timestamp: time.Now(), Value: 0, Kind: hydro.Discharge},
	}

	tests := []struct {
		name   string
		series hydro.Series
	}{
		{"empty history", hydro.Series{}},
		{"all observations invalid", invalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, &fakeSource{series: tt.series}, clockwork.NewFakeClock())
			_, err := engine.Forecast(context.Background(), "W3150010", "")
			if !errors.Is(err, ErrInsufficientData) {
				t.Errorf("Forecast() error = %v, want ErrInsufficientData", err)
			}
		})
	}
}

func TestEngine_Forecast_SinglePointPerAlgorithm(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"simple", false},
		{"moving_average", false},
		{"linear_regression", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			engine := newTestEngine(t, &fakeSource{series: makeSeries(42)}, clockwork.NewFakeClock())
			result, err := engine.Forecast(context.Background(), "W3150010", tt.key)

			if tt.wantErr {
				if !errors.Is(err, ErrInsufficientData) {
					t.Errorf("Forecast() error = %v, want ErrInsufficientData", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Forecast() error = %v", err)
			}
			for i, p := range result.Points {
				if p.Predicted != 42 {
					t.Errorf("points[%d].Predicted = %v, want 42 (flat)", i, p.Predicted)
				}
			}
		})
	}
}

func TestEngine_Forecast_SourceErrorPropagates(t *testing.T) {
	sourceErr := errors.New("hubeau unavailable")
	engine := newTestEngine(t, &fakeSource{err: sourceErr}, clockwork.NewFakeClock())

	_, err := engine.Forecast(context.Background(), "W3150010", "")
	if !errors.Is(err, sourceErr) {
		t.Errorf("Forecast() error = %v, want wrapped source error", err)
	}
	if errors.Is(err, ErrInsufficientData) {
		t.Error("source failure must not be masked as insufficient data")
	}
}

func TestEngine_Forecast_FetchesOncePerRequest(t *testing.T) {
	source := &fakeSource{series: makeSeries(10, 12, 14)}
	engine := newTestEngine(t, source, clockwork.NewFakeClock())

	if _, err := engine.Forecast(context.Background(), "W3150010", ""); err != nil {
		t.Fatalf("Forecast() error = %v", err)
	}
	if source.calls != 1 {
		t.Errorf("source called %d times, want 1", source.calls)
	}
}
