package search

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodwatch/flood-search-service/internal/domain"
	"github.com/floodwatch/flood-search-service/internal/observability"
	"github.com/floodwatch/flood-search-service/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "search_test.db"))
	require.NoError(t, err)
	return st
}

func newService(st Store, sources, generators []Source) *Service {
	return New(Deps{
		Store:          st,
		Sources:        sources,
		Generators:     generators,
		AdapterTimeout: time.Second,
		Logger:         discardLogger(),
		Metrics:        observability.NewMetricsForTesting(),
		Rand:           rand.New(rand.NewSource(1)),
	})
}

func threeItems(prefix string) []domain.ContentItem {
	return []domain.ContentItem{
		item("https://"+prefix+"/1", prefix+" 安南區淹水警戒", 9),
		item("https://"+prefix+"/2", prefix+" 台南豪雨特報", 7),
		item("https://"+prefix+"/3", prefix+" 排水系統滿載", 5),
	}
}

func TestSearch_FreshQueryFetchesAndPersists(t *testing.T) {
	frozenClock(t)
	st := openTestStore(t)
	src := &stubSource{name: "feeds", items: threeItems("feeds")}

	svc := newService(st, []Source{src}, nil)

	resp, err := svc.Search(context.Background(), gateQuery)
	require.NoError(t, err)

	assert.False(t, resp.Cached)
	assert.Nil(t, resp.CacheAge)
	assert.Equal(t, DataSourceReal, resp.DataSource)
	assert.Len(t, resp.News, 3)
	assert.NotZero(t, resp.SearchID)
	assert.Equal(t, 3, resp.Stats.TotalFetched)
	assert.Equal(t, 3, resp.Stats.Returned)

	// The record exists with count 1 and its items were persisted.
	candidates, err := st.RecentSearches(context.Background(), domain.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 1, candidates[0].Record.SearchCount)
	assert.Equal(t, 3, candidates[0].ItemCount)
}

func TestSearch_RepeatQueryServedFromCache(t *testing.T) {
	frozenClock(t)
	st := openTestStore(t)
	src := &stubSource{name: "feeds", items: threeItems("feeds")}

	svc := newService(st, []Source{src}, nil)

	first, err := svc.Search(context.Background(), gateQuery)
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := svc.Search(context.Background(), gateQuery)
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, DataSourceCache, second.DataSource)
	require.NotNil(t, second.CacheAge)
	assert.Equal(t, 0.0, *second.CacheAge)
	assert.Len(t, second.News, 3)
	assert.Equal(t, first.SearchID, second.SearchID)
	assert.Equal(t, int32(1), src.calls.Load(), "cache hit must not touch the adapters")

	// The counter still incremented for the cached search.
	candidates, err := st.RecentSearches(context.Background(), domain.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 2, candidates[0].Record.SearchCount)
}

func TestSearch_CacheExpiresAfterMaxAge(t *testing.T) {
	fake := fakeClock(t)
	st := openTestStore(t)
	src := &stubSource{name: "feeds", items: threeItems("feeds")}

	svc := newService(st, []Source{src}, nil)

	first, err := svc.Search(context.Background(), gateQuery)
	require.NoError(t, err)
	require.False(t, first.Cached)

	fake.Advance(3*time.Hour + 6*time.Minute)

	second, err := svc.Search(context.Background(), gateQuery)
	require.NoError(t, err)

	assert.False(t, second.Cached, "items past the age bound must not be served from cache")
	assert.Equal(t, DataSourceReal, second.DataSource)
	assert.Equal(t, int32(2), src.calls.Load(), "an expired candidate forces a refetch")
}

func TestSearch_CacheHitDoesNotExtendFreshness(t *testing.T) {
	fake := fakeClock(t)
	st := openTestStore(t)
	src := &stubSource{name: "feeds", items: threeItems("feeds")}

	svc := newService(st, []Source{src}, nil)

	first, err := svc.Search(context.Background(), gateQuery)
	require.NoError(t, err)
	require.False(t, first.Cached)

	fake.Advance(2 * time.Hour)
	second, err := svc.Search(context.Background(), gateQuery)
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.NotNil(t, second.CacheAge)
	assert.Equal(t, 2.0, *second.CacheAge)

	// Four hours after the fetch: the hit two hours ago must not have
	// reset the age.
	fake.Advance(2 * time.Hour)
	third, err := svc.Search(context.Background(), gateQuery)
	require.NoError(t, err)

	assert.False(t, third.Cached)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestSearch_InvalidRadiusRejectedWithoutStoreMutation(t *testing.T) {
	frozenClock(t)
	st := openTestStore(t)
	src := &stubSource{name: "feeds", items: threeItems("feeds")}

	svc := newService(st, []Source{src}, nil)

	_, err := svc.Search(context.Background(), domain.SearchQuery{Lat: 23, Lng: 120.2, RadiusM: -5})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, src.calls.Load())

	candidates, err := st.RecentSearches(context.Background(), domain.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSearch_ValidationErrors(t *testing.T) {
	svc := newService(openTestStore(t), nil, nil)

	for name, q := range map[string]domain.SearchQuery{
		"latitude out of range":  {Lat: 91, Lng: 120, RadiusM: 500},
		"longitude out of range": {Lat: 23, Lng: 181, RadiusM: 500},
		"missing location":       {RadiusM: 500},
		"zero radius":            {Lat: 23, Lng: 120.2},
		"radius too large":       {Lat: 23, Lng: 120.2, RadiusM: 1e9},
	} {
		_, err := svc.Search(context.Background(), q)
		assert.ErrorIs(t, err, ErrInvalidInput, name)
	}
}

func TestSearch_GeneratorsOnlyConsultedWhenRealSourcesEmpty(t *testing.T) {
	frozenClock(t)
	st := openTestStore(t)
	real := &stubSource{name: "feeds", items: threeItems("feeds")}
	gen := &stubSource{name: "ptt-flood", items: []domain.ContentItem{item("https://ptt/1", "安南淹水回報", 4)}}

	svc := newService(st, []Source{real}, []Source{gen})

	resp, err := svc.Search(context.Background(), gateQuery)
	require.NoError(t, err)

	assert.Equal(t, DataSourceReal, resp.DataSource)
	assert.Zero(t, gen.calls.Load(), "generators must stay idle while real sources produce items")

	for _, it := range resp.News {
		assert.NotEqual(t, "https://ptt/1", it.URL)
	}
}

func TestSearch_GeneratorsFillEmptyRealResults(t *testing.T) {
	frozenClock(t)
	st := openTestStore(t)
	real := &stubSource{name: "feeds"}
	gen := &stubSource{name: "ptt-flood", items: []domain.ContentItem{item("https://ptt/1", "安南淹水回報", 4)}}

	svc := newService(st, []Source{real}, []Source{gen})

	resp, err := svc.Search(context.Background(), gateQuery)
	require.NoError(t, err)

	assert.Equal(t, DataSourceReal, resp.DataSource)
	assert.Equal(t, int32(1), gen.calls.Load())
	require.Len(t, resp.News, 1)
	assert.Equal(t, "https://ptt/1", resp.News[0].URL)
}

func TestSearch_FallbackWhenEverythingEmpty(t *testing.T) {
	frozenClock(t)
	st := openTestStore(t)

	svc := newService(st, []Source{&stubSource{name: "feeds"}}, []Source{&stubSource{name: "ptt-flood"}})

	resp, err := svc.Search(context.Background(), gateQuery)
	require.NoError(t, err)

	assert.Equal(t, DataSourceFallback, resp.DataSource)
	require.Len(t, resp.News, 3)
	for _, it := range resp.News {
		assert.Equal(t, domain.ContentTypeFallback, it.ContentType)
		assert.NotEmpty(t, it.Title)
	}

	// No evidence anywhere: the heatmap degrades to the estimated ring.
	require.Len(t, resp.Points, 5)
	for _, p := range resp.Points {
		assert.Equal(t, "estimated", p.Type)
	}
}

func TestSearch_DedupesAcrossSources(t *testing.T) {
	frozenClock(t)
	st := openTestStore(t)

	shared := "安南區淹水最新災情整理"
	a := &stubSource{name: "a", items: []domain.ContentItem{
		{Title: shared, URL: "https://news.example/story?utm_source=rss", Score: 6, SourceName: "a", ContentType: domain.ContentTypeLocal},
	}}
	b := &stubSource{name: "b", items: []domain.ContentItem{
		{Title: shared, URL: "https://news.example/story", Score: 9, SourceName: "b", ContentType: domain.ContentTypeLocal},
	}}

	svc := newService(st, []Source{a, b}, nil)

	resp, err := svc.Search(context.Background(), gateQuery)
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Stats.TotalFetched)
	assert.Equal(t, 1, resp.Stats.AfterDedupe)
	require.Len(t, resp.News, 1)
	assert.Equal(t, "b", resp.News[0].SourceName, "the higher-scored duplicate wins")
}

func TestSearch_FailedSourceReportedInStats(t *testing.T) {
	frozenClock(t)
	st := openTestStore(t)

	ok := &stubSource{name: "feeds", items: threeItems("feeds")}
	bad := &stubSource{name: "newsindex", err: context.DeadlineExceeded}

	svc := newService(st, []Source{ok, bad}, nil)

	resp, err := svc.Search(context.Background(), gateQuery)
	require.NoError(t, err)

	assert.Equal(t, DataSourceReal, resp.DataSource)
	assert.Len(t, resp.News, 3)
	assert.Equal(t, []string{"newsindex"}, resp.Stats.FailedSources)
}

func TestSearch_IncidentsDriveHeatmap(t *testing.T) {
	frozenClock(t)
	st := openTestStore(t)

	require.NoError(t, st.UpsertIncident(context.Background(), domain.Incident{
		ID: "rpt-1", Lat: 23.001, Lng: 120.201, Severity: 3,
		ReportedAt: domain.Now(), IngestedAt: domain.Now(),
	}))

	svc := newService(st, []Source{&stubSource{name: "feeds", items: threeItems("feeds")}}, nil)

	resp, err := svc.Search(context.Background(), gateQuery)
	require.NoError(t, err)

	require.Len(t, resp.Points, 1)
	assert.Equal(t, "incident", resp.Points[0].Type)
	assert.Equal(t, 3.0, resp.Points[0].Weight)
}

// --- geocoder resolution ---

type stubGeocoder struct {
	result domain.GeocodingResult
	err    error
	calls  int
}

func (g *stubGeocoder) ForwardGeocode(_ context.Context, _ string) (domain.GeocodingResult, error) {
	g.calls++
	return g.result, g.err
}

func TestSearch_AddressOnlyQueryGeocoded(t *testing.T) {
	frozenClock(t)
	st := openTestStore(t)
	geo := &stubGeocoder{result: domain.GeocodingResult{Lat: 23.0471, Lng: 120.1843, NormalizedAddress: "安南區, 臺南市"}}

	svc := New(Deps{
		Store:          st,
		Geocoder:       geo,
		Sources:        []Source{&stubSource{name: "feeds", items: threeItems("feeds")}},
		AdapterTimeout: time.Second,
		Logger:         discardLogger(),
		Metrics:        observability.NewMetricsForTesting(),
	})

	resp, err := svc.Search(context.Background(), domain.SearchQuery{Address: "台南市安南區", RadiusM: 500})
	require.NoError(t, err)

	assert.Equal(t, 1, geo.calls)
	assert.Equal(t, DataSourceReal, resp.DataSource)

	candidates, err := st.RecentSearches(context.Background(), domain.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 23.0471, candidates[0].Record.Lat)
}

func TestSearch_UnresolvableAddressRejected(t *testing.T) {
	st := openTestStore(t)
	geo := &stubGeocoder{} // empty result

	svc := New(Deps{
		Store:          st,
		Geocoder:       geo,
		AdapterTimeout: time.Second,
		Logger:         discardLogger(),
		Metrics:        observability.NewMetricsForTesting(),
	})

	_, err := svc.Search(context.Background(), domain.SearchQuery{Address: "不存在的地方", RadiusM: 500})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSearch_NoGeocoderMeansCoordinatesRequired(t *testing.T) {
	svc := newService(openTestStore(t), nil, nil)

	_, err := svc.Search(context.Background(), domain.SearchQuery{Address: "台南市安南區", RadiusM: 500})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
