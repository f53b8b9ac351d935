package search

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/floodwatch/flood-search-service/internal/domain"
	"github.com/floodwatch/flood-search-service/internal/store"
)

const (
	cacheQueryWindow = 6 * time.Hour

	// Acceptance thresholds, all boundary-inclusive.
	cacheMaxDistanceM  = 500.0
	cacheMaxAge        = 3 * time.Hour
	cacheMaxRadiusDiff = 0.5
	cacheMinItems      = 3
)

// CacheStore is the slice of the store the gate reads from.
type CacheStore interface {
	RecentSearches(ctx context.Context, updatedAfter time.Time) ([]store.CacheCandidate, error)
	ItemsForSearch(ctx context.Context, searchID uint) ([]domain.ContentItem, error)
}

// Hit is an accepted cache candidate: its stored items and age in hours,
// rounded to one decimal.
type Hit struct {
	SearchID uint
	Items    []domain.ContentItem
	AgeHours float64
}

// Gate decides whether a recent nearby search can answer the current one
// without re-fetching.
type Gate struct {
	store  CacheStore
	logger *slog.Logger
}

// NewGate creates a cache gate over the store.
func NewGate(st CacheStore, logger *slog.Logger) *Gate {
	return &Gate{store: st, logger: logger}
}

// Check scans recent searches for the first acceptable candidate. Store
// errors are treated as a miss: a broken cache must degrade to a fresh
// fetch, never to a failed request.
func (g *Gate) Check(ctx context.Context, q domain.SearchQuery) (Hit, bool) {
	now := domain.Now()
	candidates, err := g.store.RecentSearches(ctx, now.Add(-cacheQueryWindow))
	if err != nil {
		g.logger.Warn("cache lookup failed, treating as miss", "error", err)
		return Hit{}, false
	}

	for _, c := range candidates {
		if !g.accepts(q, c, now) {
			continue
		}

		items, err := g.store.ItemsForSearch(ctx, c.Record.ID)
		if err != nil {
			g.logger.Warn("cache items load failed, treating as miss",
				"search_id", c.Record.ID, "error", err)
			return Hit{}, false
		}

		age := now.Sub(c.Record.UpdatedAt).Hours()
		return Hit{
			SearchID: c.Record.ID,
			Items:    items,
			AgeHours: math.Round(age*10) / 10,
		}, true
	}
	return Hit{}, false
}

// accepts applies the four acceptance thresholds to one candidate.
func (g *Gate) accepts(q domain.SearchQuery, c store.CacheCandidate, now time.Time) bool {
	if c.ItemCount < cacheMinItems {
		return false
	}
	if domain.Haversine(q.Lat, q.Lng, c.Record.Lat, c.Record.Lng) > cacheMaxDistanceM {
		return false
	}
	if math.Abs(c.Record.RadiusM-q.RadiusM)/q.RadiusM > cacheMaxRadiusDiff {
		return false
	}
	if now.Sub(c.Record.UpdatedAt) > cacheMaxAge {
		return false
	}
	return true
}
