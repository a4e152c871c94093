// Package router configures the forecaster's HTTP API.
//
// Routes:
//   - GET /api/flood/algorithms                  - available algorithms and the default
//   - GET /api/flood/forecast/{site}?algorithm=  - 24-hour forecast with bounds
//   - GET /api/flood/sites?search=&limit=        - site catalog with optional search
//   - GET /api/flood/sites/search/{term}         - dedicated search endpoint
//   - GET /api/flood/historical-data/{site}      - 30 days of daily mean discharge
//   - GET /api/flood/real-time-data/{site}       - last 24h of raw observations
//   - GET /healthz                               - health check
//   - GET /metrics                               - Prometheus metrics
//
// The forecast payload keeps the legacy field names (date_prevision,
// valeur_prevue, valeur_min, valeur_max) existing clients depend on. When the
// observation API is unreachable and a stored snapshot exists for the site,
// the forecast endpoint serves it with an X-Floodcast-Stale header instead of
// failing.
package router

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hydralert/floodcast/cmd/forecaster/metrics"
	"github.com/hydralert/floodcast/pkg/forecast"
	"github.com/hydralert/floodcast/pkg/httpx"
	"github.com/hydralert/floodcast/pkg/hubeau"
	"github.com/hydralert/floodcast/pkg/hydro"
	"github.com/hydralert/floodcast/pkg/storage"
)

var siteCodeRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,24}$`)

// SiteCatalog lists and searches hydrometric sites.
type SiteCatalog interface {
	Sites(ctx context.Context, query hubeau.SiteQuery) ([]hubeau.Site, error)
}

// ObservationReader fetches observation series for a site.
type ObservationReader interface {
	Historical(ctx context.Context, site string, lookback time.Duration) (hydro.Series, error)
	RealTime(ctx context.Context, site string, window time.Duration) (hydro.Series, error)
}

// Services bundles the collaborators the HTTP handlers depend on. Metrics and
// Store may be nil.
type Services struct {
	Engine       *forecast.Engine
	Catalog      SiteCatalog
	Observations ObservationReader
	Store        storage.Store
	Departments  []string
	Lookback     time.Duration
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// SetupRoutes builds the ServeMux for the forecaster API.
func SetupRoutes(svc Services) *http.ServeMux {
	if svc.Logger == nil {
		svc.Logger = slog.Default()
	}
	if svc.Lookback <= 0 {
		svc.Lookback = forecast.DefaultLookback
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", httpx.HealthHandler())
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/flood/algorithms", handleAlgorithms(svc))
	mux.HandleFunc("GET /api/flood/forecast/{site}", handleForecast(svc))
	mux.HandleFunc("GET /api/flood/sites", handleSites(svc))
	mux.HandleFunc("GET /api/flood/sites/search/{term}", handleSiteSearch(svc))
	mux.HandleFunc("GET /api/flood/historical-data/{site}", handleHistorical(svc))
	mux.HandleFunc("GET /api/flood/real-time-data/{site}", handleRealTime(svc))

	return mux
}

func handleAlgorithms(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		registry := svc.Engine.Registry()

		available := make(map[string]string)
		for _, desc := range registry.List() {
			available[desc.Key] = desc.DisplayName
		}

		resp := map[string]any{
			"success":              true,
			"available_algorithms": available,
			"current_algorithm":    registry.DefaultKey(),
		}
		writeJSON(w, svc.Logger, http.StatusOK, resp)
	}
}

func handleForecast(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		site := r.PathValue("site")
		if !siteCodeRegex.MatchString(site) {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid site code")
			return
		}
		algorithmKey := r.URL.Query().Get("algorithm")

		ctx, cancel := context.WithTimeout(r.Context(), 45*time.Second)
		defer cancel()

		start := time.Now()
		result, err := svc.Engine.Forecast(ctx, site, algorithmKey)
		if svc.Metrics != nil {
			svc.Metrics.RecordPredict(time.Since(start).Seconds())
		}

		switch {
		case err == nil:
		case errors.Is(err, forecast.ErrInsufficientData):
			if svc.Metrics != nil {
				svc.Metrics.RecordError("engine", "insufficient_data")
			}
			httpx.WriteErrorMessage(w, http.StatusNotFound, "not enough observation data for this site")
			return
		default:
			if snapshot, ok := staleSnapshot(ctx, svc, site); ok {
				svc.Logger.Warn("serving stale forecast snapshot", "site", site, "error", err)
				w.Header().Set("X-Floodcast-Stale", "true")
				writeJSON(w, svc.Logger, http.StatusOK, forecastResponse(svc, snapshot.AlgorithmKey, snapshot.Points))
				return
			}
			svc.Logger.Error("forecast failed", "site", site, "error", err)
			if svc.Metrics != nil {
				svc.Metrics.RecordError("engine", "forecast_failed")
			}
			httpx.WriteErrorMessage(w, http.StatusBadGateway, "observation service unavailable")
			return
		}

		if svc.Metrics != nil {
			svc.Metrics.RecordForecast(result.AlgorithmKey)
			if len(result.Points) > 0 {
				svc.Metrics.SetPredicted(site, result.Points[0].Predicted)
			}
		}

		if svc.Store != nil {
			snapshot := storage.Snapshot{
				Site:         site,
				AlgorithmKey: result.AlgorithmKey,
				GeneratedAt:  time.Now().UTC(),
				HorizonHours: forecast.Horizon,
				Points:       result.Points,
			}
			if err := svc.Store.Put(ctx, snapshot); err != nil {
				svc.Logger.Warn("failed to store forecast snapshot", "site", site, "error", err)
			}
		}

		writeJSON(w, svc.Logger, http.StatusOK, forecastResponse(svc, result.AlgorithmKey, result.Points))
	}
}

// staleSnapshot fetches a stored snapshot to serve while the observation API
// is down.
func staleSnapshot(ctx context.Context, svc Services, site string) (storage.Snapshot, bool) {
	if svc.Store == nil {
		return storage.Snapshot{}, false
	}
	snapshot, found, err := svc.Store.GetLatest(ctx, site)
	if err != nil {
		svc.Logger.Warn("snapshot lookup failed", "site", site, "error", err)
		return storage.Snapshot{}, false
	}
	return snapshot, found
}

// forecastResponse shapes a forecast into the legacy wire format.
func forecastResponse(svc Services, algorithmKey string, points []forecast.Point) map[string]any {
	previsions := make([]map[string]any, len(points))
	for i, p := range points {
		previsions[i] = map[string]any{
			"date_prevision": p.Timestamp.Format(time.RFC3339),
			"valeur_prevue":  round3(p.Predicted),
			"valeur_min":     round3(p.Lower),
			"valeur_max":     round3(p.Upper),
		}
	}

	return map[string]any{
		"success":            true,
		"algorithme_utilise": displayName(svc.Engine.Registry(), algorithmKey),
		"nombre_previsions":  len(previsions),
		"previsions":         previsions,
	}
}

func displayName(registry *forecast.Registry, key string) string {
	for _, desc := range registry.List() {
		if desc.Key == key {
			return desc.DisplayName
		}
	}
	return key
}

func handleSites(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := hubeau.SiteQuery{
			Search:      r.URL.Query().Get("search"),
			Departments: svc.Departments,
			Limit:       queryInt(r, "limit", 100),
		}

		sites, err := svc.Catalog.Sites(r.Context(), query)
		if err != nil {
			svc.Logger.Error("site catalog fetch failed", "error", err)
			if svc.Metrics != nil {
				svc.Metrics.RecordError("hubeau", "sites_failed")
			}
			httpx.WriteErrorMessage(w, http.StatusBadGateway, "site catalog unavailable")
			return
		}

		writeJSON(w, svc.Logger, http.StatusOK, map[string]any{
			"success":     true,
			"count":       len(sites),
			"search_term": query.Search,
			"sites":       sites,
		})
	}
}

func handleSiteSearch(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		departments := svc.Departments
		if r.URL.Query().Get("all_departments") == "true" {
			departments = nil
		}

		query := hubeau.SiteQuery{
			Search:      r.PathValue("term"),
			Departments: departments,
			Limit:       queryInt(r, "limit", 50),
		}

		sites, err := svc.Catalog.Sites(r.Context(), query)
		if err != nil {
			svc.Logger.Error("site search failed", "term", query.Search, "error", err)
			if svc.Metrics != nil {
				svc.Metrics.RecordError("hubeau", "search_failed")
			}
			httpx.WriteErrorMessage(w, http.StatusBadGateway, "site catalog unavailable")
			return
		}

		writeJSON(w, svc.Logger, http.StatusOK, map[string]any{
			"success":     true,
			"count":       len(sites),
			"search_term": query.Search,
			"sites":       sites,
		})
	}
}

func handleHistorical(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		site := r.PathValue("site")
		if !siteCodeRegex.MatchString(site) {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid site code")
			return
		}

		start := time.Now()
		series, err := svc.Observations.Historical(r.Context(), site, svc.Lookback)
		if svc.Metrics != nil {
			svc.Metrics.RecordFetch(time.Since(start).Seconds())
		}
		if err != nil {
			svc.Logger.Error("historical fetch failed", "site", site, "error", err)
			if svc.Metrics != nil {
				svc.Metrics.RecordError("hubeau", "historical_failed")
			}
			httpx.WriteErrorMessage(w, http.StatusBadGateway, "observation service unavailable")
			return
		}

		writeJSON(w, svc.Logger, http.StatusOK, observationsResponse(series))
	}
}

func handleRealTime(svc Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		site := r.PathValue("site")
		if !siteCodeRegex.MatchString(site) {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid site code")
			return
		}

		start := time.Now()
		series, err := svc.Observations.RealTime(r.Context(), site, 24*time.Hour)
		if svc.Metrics != nil {
			svc.Metrics.RecordFetch(time.Since(start).Seconds())
		}
		if err != nil {
			svc.Logger.Error("real-time fetch failed", "site", site, "error", err)
			if svc.Metrics != nil {
				svc.Metrics.RecordError("hubeau", "realtime_failed")
			}
			httpx.WriteErrorMessage(w, http.StatusBadGateway, "observation service unavailable")
			return
		}

		writeJSON(w, svc.Logger, http.StatusOK, observationsResponse(series))
	}
}

// observationsResponse shapes an observation series for the API. Discharge is
// reported in m³/s, stage in mm.
func observationsResponse(series hydro.Series) map[string]any {
	observations := make([]map[string]any, len(series))
	for i, obs := range series {
		unit := "m³/s"
		if obs.Kind == hydro.Stage {
			unit = "mm"
		}
		observations[i] = map[string]any{
			"date_obs": obs.Timestamp.Format(time.RFC3339),
			"valeur":   round3(obs.Value),
			"grandeur": string(obs.Kind),
			"unite":    unit,
		}
	}

	return map[string]any{
		"success":      true,
		"count":        len(observations),
		"observations": observations,
	}
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return defaultValue
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	if err := httpx.WriteJSON(w, status, v); err != nil {
		logger.Error("failed to write JSON response", "error", err)
	}
}
