// Package search orchestrates one flood lookup: cache gate, concurrent
// source fan-out, dedupe and ranking, synthetic fallbacks, best-effort
// persistence, and heatmap synthesis.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/floodwatch/flood-search-service/internal/domain"
	"github.com/floodwatch/flood-search-service/internal/observability"
)

// Result data sources, reported to callers and metrics.
const (
	DataSourceReal     = "real"
	DataSourceCache    = "cache"
	DataSourceFallback = "fallback"
)

const (
	maxResults     = 25
	fallbackCount  = 3
	defaultTimeout = 15 * time.Second
	maxRadiusM     = 50000.0
)

// ErrInvalidInput marks request validation failures; the transport layer
// maps it to a client error.
var ErrInvalidInput = errors.New("invalid input")

// Store is the persistence surface the orchestrator needs.
type Store interface {
	CacheStore
	UpsertSearchRecord(ctx context.Context, q domain.SearchQuery) (domain.SearchRecord, error)
	ReplaceContentItems(ctx context.Context, searchID uint, items []domain.ContentItem) error
	IncidentsWithin(ctx context.Context, lat, lng, radiusM float64) ([]domain.Incident, error)
}

// Stats summarizes one search for the response payload.
type Stats struct {
	TotalFetched  int            `json:"totalFetched"`
	AfterDedupe   int            `json:"afterDedupe"`
	Returned      int            `json:"returned"`
	SourceCounts  map[string]int `json:"sourceCounts"`
	FailedSources []string       `json:"failedSources,omitempty"`
	ElapsedMS     int64          `json:"elapsedMs"`
}

// Response is the outcome of one search.
type Response struct {
	News       []domain.ContentItem  `json:"news"`
	SearchID   uint                  `json:"searchId"`
	Cached     bool                  `json:"cached"`
	CacheAge   *float64              `json:"cacheAge,omitempty"`
	Points     []domain.HeatmapPoint `json:"points"`
	DataSource string                `json:"dataSource"`
	Stats      Stats                 `json:"stats"`
}

// Deps wires the orchestrator's collaborators. Geocoder may be nil when
// address resolution is disabled; Rand may be nil for a time-seeded source.
type Deps struct {
	Store          Store
	Geocoder       domain.Geocoder
	Sources        []Source
	Generators     []Source
	AdapterTimeout time.Duration
	Logger         *slog.Logger
	Metrics        *observability.Metrics
	Rand           *rand.Rand
}

// Service runs the per-request state machine.
type Service struct {
	store          Store
	geocoder       domain.Geocoder
	sources        []Source
	generators     []Source
	gate           *Gate
	adapterTimeout time.Duration
	logger         *slog.Logger
	metrics        *observability.Metrics
	rng            *rand.Rand
}

// New creates the search orchestrator.
func New(d Deps) *Service {
	if d.AdapterTimeout <= 0 {
		d.AdapterTimeout = defaultTimeout
	}
	return &Service{
		store:          d.Store,
		geocoder:       d.Geocoder,
		sources:        d.Sources,
		generators:     d.Generators,
		gate:           NewGate(d.Store, d.Logger),
		adapterTimeout: d.AdapterTimeout,
		logger:         d.Logger,
		metrics:        d.Metrics,
		rng:            d.Rand,
	}
}

// Search executes one lookup. Only invalid input produces an error; every
// upstream failure degrades to cached, synthetic, or fallback content.
func (s *Service) Search(ctx context.Context, q domain.SearchQuery) (Response, error) {
	start := time.Now()

	q, err := s.resolve(ctx, q)
	if err != nil {
		return Response{}, err
	}
	if err := validate(q); err != nil {
		return Response{}, err
	}

	defer func() {
		s.metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	// The gate reads candidate freshness stamps, so it must run before
	// the counter upsert. A cache hit is still a search: the counter
	// bumps after the decision, and never fails the request.
	if hit, ok := s.gate.Check(ctx, q); ok {
		if _, err := s.store.UpsertSearchRecord(ctx, q); err != nil {
			s.logger.Warn("search record upsert failed", "error", err)
		}

		s.logger.Info("cache hit",
			"search_id", hit.SearchID, "age_hours", hit.AgeHours, "items", len(hit.Items))
		s.metrics.SearchRequests.WithLabelValues(DataSourceCache).Inc()

		age := hit.AgeHours
		return Response{
			News:       hit.Items,
			SearchID:   hit.SearchID,
			Cached:     true,
			CacheAge:   &age,
			Points:     s.heatmap(ctx, q, hit.Items),
			DataSource: DataSourceCache,
			Stats: Stats{
				TotalFetched: len(hit.Items),
				AfterDedupe:  len(hit.Items),
				Returned:     len(hit.Items),
				SourceCounts: countBySource(hit.Items),
				ElapsedMS:    time.Since(start).Milliseconds(),
			},
		}, nil
	}

	rec, err := s.store.UpsertSearchRecord(ctx, q)
	if err != nil {
		s.logger.Warn("search record upsert failed", "error", err)
	}

	results := FanOut(s.sources, q, s.adapterTimeout, s.logger, s.metrics)
	fetched := merge(results)

	dataSource := DataSourceReal
	if len(fetched) == 0 && len(s.generators) > 0 {
		// Real sources came up empty; consult the synthetic generators.
		// Their items stay clearly tagged as forum/social content.
		results = append(results, FanOut(s.generators, q, s.adapterTimeout, s.logger, s.metrics)...)
		fetched = merge(results)
	}

	deduped := domain.Dedupe(fetched)
	news := domain.Rank(deduped, maxResults)

	if len(news) == 0 {
		news = domain.FallbackItems(q.Address, fallbackCount)
		dataSource = DataSourceFallback
	}

	s.persist(ctx, rec.ID, news)

	heatmapNews := news
	if dataSource == DataSourceFallback {
		// Fallback items carry no geographic evidence.
		heatmapNews = nil
	}

	s.metrics.SearchRequests.WithLabelValues(dataSource).Inc()
	s.logger.Info("search completed",
		"search_id", rec.ID,
		"data_source", dataSource,
		"fetched", len(fetched),
		"returned", len(news),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	return Response{
		News:       news,
		SearchID:   rec.ID,
		Cached:     false,
		Points:     s.heatmap(ctx, q, heatmapNews),
		DataSource: dataSource,
		Stats: Stats{
			TotalFetched:  len(fetched),
			AfterDedupe:   len(deduped),
			Returned:      len(news),
			SourceCounts:  countBySource(news),
			FailedSources: failedSources(results),
			ElapsedMS:     time.Since(start).Milliseconds(),
		},
	}, nil
}

// resolve fills in coordinates from the address when the request carries
// none and a geocoder is configured.
func (s *Service) resolve(ctx context.Context, q domain.SearchQuery) (domain.SearchQuery, error) {
	if q.Lat != 0 || q.Lng != 0 || q.Address == "" || s.geocoder == nil {
		return q, nil
	}

	r, err := s.geocoder.ForwardGeocode(ctx, q.Address)
	if err != nil {
		return q, fmt.Errorf("%w: address %q could not be resolved", ErrInvalidInput, q.Address)
	}
	if r.NormalizedAddress == "" {
		return q, fmt.Errorf("%w: address %q not found", ErrInvalidInput, q.Address)
	}

	q.Lat = r.Lat
	q.Lng = r.Lng
	q.Address = r.NormalizedAddress
	return q, nil
}

func validate(q domain.SearchQuery) error {
	if q.Lat < -90 || q.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidInput, q.Lat)
	}
	if q.Lng < -180 || q.Lng > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidInput, q.Lng)
	}
	if q.Lat == 0 && q.Lng == 0 {
		return fmt.Errorf("%w: location is required", ErrInvalidInput)
	}
	if q.RadiusM <= 0 {
		return fmt.Errorf("%w: radius must be positive, got %v", ErrInvalidInput, q.RadiusM)
	}
	if q.RadiusM > maxRadiusM {
		return fmt.Errorf("%w: radius %v exceeds %v meters", ErrInvalidInput, q.RadiusM, maxRadiusM)
	}
	return nil
}

// persist associates the returned items with the search record. Best
// effort: the caller still gets results when the write fails.
func (s *Service) persist(ctx context.Context, searchID uint, items []domain.ContentItem) {
	if searchID == 0 {
		return
	}
	if err := s.store.ReplaceContentItems(ctx, searchID, items); err != nil {
		s.logger.Warn("content persist failed", "search_id", searchID, "error", err)
		return
	}
	s.metrics.ItemsPersisted.Add(float64(len(items)))
}

// heatmap synthesizes map points, preferring stored incidents over news
// jitter. An incident query failure degrades to the news-derived points.
func (s *Service) heatmap(ctx context.Context, q domain.SearchQuery, news []domain.ContentItem) []domain.HeatmapPoint {
	incidents, err := s.store.IncidentsWithin(ctx, q.Lat, q.Lng, q.RadiusM)
	if err != nil {
		s.logger.Warn("incident query failed", "error", err)
		incidents = nil
	}
	return domain.BuildHeatmapPoints(q, incidents, news, s.rng)
}

func countBySource(items []domain.ContentItem) map[string]int {
	counts := make(map[string]int, len(items))
	for _, item := range items {
		counts[item.SourceName]++
	}
	return counts
}

func failedSources(results []Result) []string {
	var failed []string
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Name)
		}
	}
	return failed
}
