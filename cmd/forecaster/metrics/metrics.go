// Package metrics provides Prometheus instrumentation for the forecaster.
//
// Metrics exposed on /metrics:
//   - floodcast_fetch_seconds: Histogram of Hub'Eau fetch duration
//   - floodcast_predict_seconds: Histogram of forecast generation duration
//   - floodcast_forecasts_total: Counter of generated forecasts by algorithm
//   - floodcast_errors_total: Counter of errors by component and reason
//   - floodcast_predicted_discharge: Gauge of the first forecast step per site
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the forecaster.
type Metrics struct {
	FetchSeconds       prometheus.Histogram
	PredictSeconds     prometheus.Histogram
	ForecastsTotal     *prometheus.CounterVec
	ErrorsTotal        *prometheus.CounterVec
	PredictedDischarge *prometheus.GaugeVec
}

// New creates and registers all forecaster metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		FetchSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "floodcast_fetch_seconds",
			Help:    "Time spent fetching observations from Hub'Eau",
			Buckets: prometheus.DefBuckets,
		}),

		PredictSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "floodcast_predict_seconds",
			Help:    "Time spent generating a forecast",
			Buckets: prometheus.DefBuckets,
		}),

		ForecastsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "floodcast_forecasts_total",
			Help: "Total forecasts generated, by algorithm",
		}, []string{"algorithm"}),

		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "floodcast_errors_total",
			Help: "Total errors by component and reason",
		}, []string{"component", "reason"}),

		PredictedDischarge: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "floodcast_predicted_discharge",
			Help: "First forecast step in m³/s, by site",
		}, []string{"site"}),
	}
}

// RecordFetch records the duration of one Hub'Eau fetch.
func (m *Metrics) RecordFetch(seconds float64) {
	m.FetchSeconds.Observe(seconds)
}

// RecordPredict records the duration of one forecast generation.
func (m *Metrics) RecordPredict(seconds float64) {
	m.PredictSeconds.Observe(seconds)
}

// RecordForecast counts a generated forecast for an algorithm.
func (m *Metrics) RecordForecast(algorithm string) {
	m.ForecastsTotal.WithLabelValues(algorithm).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}

// SetPredicted publishes the first forecast step for a site.
func (m *Metrics) SetPredicted(site string, value float64) {
	m.PredictedDischarge.WithLabelValues(site).Set(value)
}
