package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hydralert/floodcast/pkg/forecast"
	"github.com/hydralert/floodcast/pkg/hydro"
	"github.com/hydralert/floodcast/pkg/storage"
)

type fakeSource struct {
	series  map[string]hydro.Series
	failing map[string]bool
	calls   int

	// fetched receives one signal per Historical call when set, so tests can
	// wait for a fetch instead of sleeping.
	fetched chan struct{}
}

func (f *fakeSource) Historical(ctx context.Context, site string, lookback time.Duration) (hydro.Series, error) {
	f.calls++
	if f.fetched != nil {
		select {
		case f.fetched <- struct{}{}:
		default:
		}
	}
	if f.failing[site] {
		return nil, errors.New("connection refused")
	}
	return f.series[site], nil
}

func siteSeries(values ...float64) hydro.Series {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	series := make(hydro.Series, len(values))
	for i, v := range values {
		series[i] = hydro.Observation{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Value:     v,
			Kind:      hydro.Discharge,
		}
	}
	return series
}

func newTestTracker(t *testing.T, sites []string, source *fakeSource, clock clockwork.Clock) (*Tracker, *storage.MemoryStore) {
	t.Helper()

	registry, err := forecast.NewStandardRegistry("")
	if err != nil {
		t.Fatalf("NewStandardRegistry() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := forecast.NewEngine(registry, source, clock, 0, logger)
	store := storage.NewMemoryStore()

	return NewTracker(sites, engine, store, clock, logger, nil), store
}

func TestTracker_Tick_StoresSnapshots(t *testing.T) {
	source := &fakeSource{series: map[string]hydro.Series{
		"W3150010": siteSeries(10, 12, 14),
		"W1410010": siteSeries(5, 7),
	}}
	tracker, store := newTestTracker(t, []string{"W3150010", "W1410010"}, source, clockwork.NewFakeClock())

	tracker.Tick(context.Background())

	for _, site := range []string{"W3150010", "W1410010"} {
		snapshot, found, err := store.GetLatest(context.Background(), site)
		if err != nil || !found {
			t.Fatalf("GetLatest(%q) = (found=%v, err=%v), want stored snapshot", site, found, err)
		}
		if snapshot.AlgorithmKey != "moving_average" {
			t.Errorf("snapshot algorithm = %q, want moving_average", snapshot.AlgorithmKey)
		}
		if len(snapshot.Points) != forecast.Horizon {
			t.Errorf("snapshot points = %d, want %d", len(snapshot.Points), forecast.Horizon)
		}
	}
}

func TestTracker_Tick_FailingSiteDoesNotStopOthers(t *testing.T) {
	source := &fakeSource{
		series:  map[string]hydro.Series{"W1410010": siteSeries(10, 12, 14)},
		failing: map[string]bool{"W3150010": true},
	}
	tracker, store := newTestTracker(t, []string{"W3150010", "W1410010"}, source, clockwork.NewFakeClock())

	tracker.Tick(context.Background())

	if _, found, _ := store.GetLatest(context.Background(), "W3150010"); found {
		t.Error("failing site should not have a snapshot")
	}
	if _, found, _ := store.GetLatest(context.Background(), "W1410010"); !found {
		t.Error("healthy site should have a snapshot")
	}
}

func TestTracker_Run_ContextCancellation(t *testing.T) {
	source := &fakeSource{
		series:  map[string]hydro.Series{"W3150010": siteSeries(10, 12, 14)},
		fetched: make(chan struct{}, 1),
	}
	tracker, _ := newTestTracker(t, []string{"W3150010"}, source, clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- tracker.Run(ctx, time.Hour)
	}()

	// Let the initial tick fetch before canceling, otherwise the tick may
	// observe the canceled context and skip the site.
	select {
	case <-source.fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("initial tick did not fetch")
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after context cancellation")
	}

	if source.calls == 0 {
		t.Error("expected at least one fetch from the initial tick")
	}
}

func TestTracker_Run_TicksOnInterval(t *testing.T) {
	source := &fakeSource{
		series:  map[string]hydro.Series{"W3150010": siteSeries(10, 12, 14)},
		fetched: make(chan struct{}, 1),
	}
	clock := clockwork.NewFakeClock()
	tracker, _ := newTestTracker(t, []string{"W3150010"}, source, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- tracker.Run(ctx, time.Hour)
	}()

	select {
	case <-source.fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("initial tick did not fetch")
	}

	// Wait for the loop to block on the ticker, then fire one interval.
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("BlockUntilContext() error = %v", err)
	}
	clock.Advance(time.Hour)

	select {
	case <-source.fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("tracker did not tick after the interval elapsed")
	}

	cancel()
	<-done
}
