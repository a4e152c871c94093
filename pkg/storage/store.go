// Package storage persists the latest forecast snapshot per hydrometric
// site. The tracker writes a snapshot after each refresh; the HTTP layer can
// answer from a warm snapshot when the upstream observation API is degraded.
package storage

import (
	"context"
	"time"

	"github.com/hydralert/floodcast/pkg/forecast"
)

// Snapshot is a generated forecast for one site, plus the metadata needed to
// judge its freshness.
type Snapshot struct {
	Site         string           `json:"site"`
	AlgorithmKey string           `json:"algorithmKey"`
	GeneratedAt  time.Time        `json:"generatedAt"`
	HorizonHours int              `json:"horizonHours"`
	Points       []forecast.Point `json:"points"`
}

// Store holds the latest snapshot per site.
type Store interface {
	Put(ctx context.Context, snapshot Snapshot) error
	GetLatest(ctx context.Context, site string) (Snapshot, bool, error)
}
