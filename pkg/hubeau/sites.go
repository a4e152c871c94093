package hubeau

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Site is one entry of the hydrometric site referential.
type Site struct {
	Code      string  `json:"code_site"`
	Label     string  `json:"libelle_site"`
	Commune   string  `json:"libelle_commune_site"`
	River     string  `json:"libelle_cours_eau"`
	Longitude float64 `json:"longitude_site"`
	Latitude  float64 `json:"latitude_site"`
}

// SiteQuery filters and ranks the site referential.
type SiteQuery struct {
	// Search is a free-text term matched against site label, commune,
	// code, and river. Empty means no filtering.
	Search string

	// Departments restricts the referential to department codes
	// (e.g. "38", "73"). Empty means all departments.
	Departments []string

	// Limit caps the number of results. Non-positive defaults to 100.
	Limit int
}

// Sites fetches the site referential and applies the query's search filter
// and relevance ranking. Ranking favors label prefix matches, then label,
// river, and commune matches, preserving referential order between ties.
func (c *Client) Sites(ctx context.Context, query SiteQuery) ([]Site, error) {
	params := url.Values{}
	params.Set("format", "json")
	params.Set("size", "500")
	for _, dept := range query.Departments {
		params.Add("code_departement", dept)
	}

	body, err := c.get(ctx, "/referentiel/sites", params)
	if err != nil {
		return nil, err
	}

	rows := gjson.GetBytes(body, "data").Array()
	sites := make([]Site, 0, len(rows))
	for _, row := range rows {
		sites = append(sites, Site{
			Code:      row.Get("code_site").String(),
			Label:     row.Get("libelle_site").String(),
			Commune:   row.Get("libelle_commune_site").String(),
			River:     row.Get("libelle_cours_eau").String(),
			Longitude: row.Get("longitude_site").Float(),
			Latitude:  row.Get("latitude_site").Float(),
		})
	}

	sites = filterSites(sites, query.Search)

	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(sites) > limit {
		sites = sites[:limit]
	}

	c.logger.Debug("fetched site referential",
		"sites", len(sites),
		"search", query.Search,
		"departments", strings.Join(query.Departments, ","),
	)

	return sites, nil
}

// filterSites keeps sites matching the search term and sorts them by
// relevance. An empty term returns the input unchanged.
func filterSites(sites []Site, search string) []Site {
	if search == "" {
		return sites
	}

	term := strings.ToLower(search)
	matched := make([]Site, 0, len(sites))
	for _, site := range sites {
		if relevance(site, term) > 0 {
			matched = append(matched, site)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return relevance(matched[i], term) > relevance(matched[j], term)
	})

	return matched
}

// relevance scores a site against a lowercased search term. Zero means no
// match.
func relevance(site Site, term string) int {
	score := 0
	label := strings.ToLower(site.Label)
	river := strings.ToLower(site.River)
	commune := strings.ToLower(site.Commune)
	code := strings.ToLower(site.Code)

	if strings.Contains(label, term) {
		if strings.HasPrefix(label, term) {
			score += 100
		} else {
			score += 50
		}
	}
	if strings.Contains(river, term) {
		score += 25
	}
	if strings.Contains(commune, term) {
		score += 10
	}
	if strings.Contains(code, term) {
		score += 5
	}

	return score
}
