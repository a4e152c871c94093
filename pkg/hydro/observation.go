// Package hydro defines the observation data model shared by the forecast
// engine and the Hub'Eau adapter.
//
// An Observation is a single measured sample at a hydrometric site. A Series
// is the ordered history handed to a forecasting algorithm. Series are built
// fresh per request and never mutated after construction; cleaning produces a
// new slice.
package hydro

import (
	"math"
	"sort"
	"time"
)

// Quantity identifies what a sample measures.
type Quantity string

const (
	// Discharge is volumetric flow in m³/s, the forecast quantity.
	Discharge Quantity = "discharge"
	// Stage is water height in mm, observed in real time but not forecast.
	Stage Quantity = "stage"
)

// Observation is a single measured point. Immutable once recorded.
type Observation struct {
	Timestamp time.Time
	Value     float64
	Kind      Quantity
}

// Valid reports whether the sample is usable for analysis. Non-finite and
// non-positive readings are discarded, matching the upstream policy for
// discharge data.
func (o Observation) Valid() bool {
	return !math.IsNaN(o.Value) && !math.IsInf(o.Value, 0) && o.Value > 0
}

// Series is an ordered sequence of observations for one site.
type Series []Observation

// Clean returns a new series sorted ascending by timestamp, deduplicated by
// timestamp (last sample wins), with invalid observations removed. Algorithms
// assume their input has this shape; the engine calls Clean defensively
// rather than trusting the adapter.
func (s Series) Clean() Series {
	out := make(Series, 0, len(s))
	for _, obs := range s {
		if obs.Valid() {
			out = append(out, obs)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	deduped := out[:0]
	for _, obs := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Timestamp.Equal(obs.Timestamp) {
			deduped[n-1] = obs
			continue
		}
		deduped = append(deduped, obs)
	}

	return deduped
}

// Values extracts the sample values in series order.
func (s Series) Values() []float64 {
	values := make([]float64, len(s))
	for i, obs := range s {
		values[i] = obs.Value
	}
	return values
}

// Last returns the most recent observation. The second return is false for an
// empty series.
func (s Series) Last() (Observation, bool) {
	if len(s) == 0 {
		return Observation{}, false
	}
	return s[len(s)-1], true
}

// Span returns the elapsed time between the first and last observation.
// Zero for series with fewer than two points.
func (s Series) Span() time.Duration {
	if len(s) < 2 {
		return 0
	}
	return s[len(s)-1].Timestamp.Sub(s[0].Timestamp)
}
