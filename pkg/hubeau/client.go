// Package hubeau is a client for the Hub'Eau hydrometrie API
// (https://hubeau.eaufrance.fr), the public referential for French
// hydrometric monitoring sites and their observations.
//
// The client covers the three endpoints the forecaster needs:
//   - /referentiel/sites    — site catalog with department filter and search
//   - /obs_elab             — elaborated daily mean discharge (grandeur QmJ)
//   - /observations_tr      — real-time discharge and stage readings
//
// Hub'Eau reports elaborated discharge in L/s; the client converts to m³/s so
// every downstream consumer sees one unit. Calls go through a circuit breaker
// so a degraded upstream fails fast instead of piling up requests.
package hubeau

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"

	"github.com/hydralert/floodcast/pkg/hydro"
)

// DefaultBaseURL is the production Hub'Eau hydrometrie API root.
const DefaultBaseURL = "https://hubeau.eaufrance.fr/api/v2/hydrometrie"

// grandeurDailyDischarge selects elaborated daily mean discharge observations.
const grandeurDailyDischarge = "QmJ"

var (
	errServerError = errors.New("hubeau: server error")
	errRateLimited = errors.New("hubeau: rate limited")
)

// Client talks to the Hub'Eau hydrometrie API. Create one with NewClient and
// share it across requests; it is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a Hub'Eau client. An empty baseURL uses the production
// API; a nil logger uses slog.Default.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "hubeau",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker:    breaker,
		logger:     logger,
	}
}

// get performs a GET against the API through the circuit breaker and returns
// the raw response body. Rate limiting and 5xx responses count as breaker
// failures; other non-200 statuses are plain errors.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("hubeau: invalid base URL: %w", err)
	}
	u.Path += path
	u.RawQuery = params.Encode()

	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, errRateLimited
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: status %d", errServerError, resp.StatusCode)
		case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent:
			return nil, fmt.Errorf("hubeau: unexpected status %d", resp.StatusCode)
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, fmt.Errorf("hubeau: %s: %w", path, err)
	}

	return result.([]byte), nil
}

// Historical fetches elaborated daily mean discharge for a site over the
// lookback window, converted to m³/s. Implements forecast.ObservationSource.
//
// Samples Hub'Eau reports as null or non-numeric are skipped here; the engine
// filters non-positive values on its side.
func (c *Client) Historical(ctx context.Context, site string, lookback time.Duration) (hydro.Series, error) {
	end := time.Now().UTC()
	start := end.Add(-lookback)

	params := url.Values{}
	params.Set("code_entite", site)
	params.Set("grandeur_hydro", grandeurDailyDischarge)
	params.Set("date_debut_obs_elab", start.Format("2006-01-02"))
	params.Set("date_fin_obs_elab", end.Format("2006-01-02"))
	params.Set("size", "100")

	body, err := c.get(ctx, "/obs_elab", params)
	if err != nil {
		return nil, err
	}

	dates := gjson.GetBytes(body, "data.#.date_obs_elab").Array()
	values := gjson.GetBytes(body, "data.#.resultat_obs_elab").Array()
	if len(dates) != len(values) {
		return nil, fmt.Errorf("hubeau: obs_elab: %d dates for %d values", len(dates), len(values))
	}

	series := make(hydro.Series, 0, len(values))
	for i, raw := range values {
		if raw.Type != gjson.Number {
			continue
		}
		ts, err := parseObservationTime(dates[i].String())
		if err != nil {
			continue
		}
		series = append(series, hydro.Observation{
			Timestamp: ts,
			Value:     litersToCubicMeters(raw.Float()),
			Kind:      hydro.Discharge,
		})
	}

	c.logger.Debug("fetched historical observations",
		"site", site,
		"observations", len(series),
		"lookback", lookback,
	)

	return series, nil
}

// RealTime fetches raw observations for the trailing window, typically the
// last 24 hours. Discharge readings (grandeur Q) are converted to m³/s; stage
// readings (grandeur H) stay in mm.
func (c *Client) RealTime(ctx context.Context, site string, window time.Duration) (hydro.Series, error) {
	end := time.Now().UTC()
	start := end.Add(-window)

	params := url.Values{}
	params.Set("code_entite", site)
	params.Set("date_debut_obs", start.Format("2006-01-02"))
	params.Set("date_fin_obs", end.Format("2006-01-02"))
	params.Set("size", "50")

	body, err := c.get(ctx, "/observations_tr", params)
	if err != nil {
		return nil, err
	}

	rows := gjson.GetBytes(body, "data").Array()
	series := make(hydro.Series, 0, len(rows))
	for _, row := range rows {
		raw := row.Get("resultat_obs")
		if raw.Type != gjson.Number {
			continue
		}
		ts, err := parseObservationTime(row.Get("date_obs").String())
		if err != nil {
			continue
		}

		obs := hydro.Observation{Timestamp: ts}
		if row.Get("grandeur_hydro").String() == "H" {
			obs.Kind = hydro.Stage
			obs.Value = raw.Float()
		} else {
			obs.Kind = hydro.Discharge
			obs.Value = litersToCubicMeters(raw.Float())
		}
		series = append(series, obs)
	}

	c.logger.Debug("fetched real-time observations", "site", site, "observations", len(series))

	return series, nil
}

// litersToCubicMeters converts a Hub'Eau L/s discharge reading to m³/s.
func litersToCubicMeters(v float64) float64 {
	return v / 1000.0
}

// parseObservationTime accepts the timestamp shapes Hub'Eau emits: RFC3339
// for real-time observations, bare dates for elaborated daily ones.
func parseObservationTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("hubeau: unparseable observation time %q", s)
}
