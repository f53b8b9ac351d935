package social

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodwatch/flood-search-service/internal/domain"
)

var testQuery = domain.SearchQuery{Lat: 23.0, Lng: 120.2, Address: "台南市安南區", RadiusM: 500}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPlatform(templates ...Template) Platform {
	return Platform{
		Name:        "test-forum",
		ContentType: domain.ContentTypeForum,
		Templates:   templates,
		Window:      6 * time.Hour,
		MaxReplies:  10,
	}
}

func TestFetch_FillsLocationIntoTemplates(t *testing.T) {
	p := testPlatform(Template{Title: "{loc}淹水回報", Body: "{loc}目前積水狀況回報。", Probability: 1})
	g := New(p, domain.NewScorer(nil), rand.New(rand.NewSource(1)), discardLogger())

	items, err := g.Fetch(context.Background(), testQuery)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.Contains(t, items[0].Title, "安南")
	assert.NotContains(t, items[0].Title, "{loc}")
	assert.Equal(t, "test-forum", items[0].SourceName)
	assert.Equal(t, domain.ContentTypeForum, items[0].ContentType)
	assert.LessOrEqual(t, items[0].Score, 8.0)
}

func TestFetch_ZeroProbabilityTemplateNeverDrawn(t *testing.T) {
	p := testPlatform(
		Template{Title: "{loc}淹水回報", Body: "積水回報。", Probability: 1},
		Template{Title: "{loc}絕不出現的貼文", Body: "淹水。", Probability: 0},
	)
	g := New(p, domain.NewScorer(nil), rand.New(rand.NewSource(1)), discardLogger())

	items, err := g.Fetch(context.Background(), testQuery)
	require.NoError(t, err)

	require.Len(t, items, 1)
	assert.NotContains(t, items[0].Title, "絕不出現")
}

func TestFetch_TopicOnlyMatchKept(t *testing.T) {
	// Relaxed filter: a post mentioning flooding but not the location
	// still passes, unlike the feed adapters' AND requirement.
	p := testPlatform(Template{Title: "市區大淹水", Body: "到處都在積水。", Probability: 1})
	g := New(p, domain.NewScorer(nil), rand.New(rand.NewSource(1)), discardLogger())

	items, err := g.Fetch(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestFetch_IrrelevantTemplateDropped(t *testing.T) {
	p := testPlatform(Template{Title: "今晚吃什麼", Body: "求宵夜推薦。", Probability: 1})
	g := New(p, domain.NewScorer(nil), rand.New(rand.NewSource(1)), discardLogger())

	items, err := g.Fetch(context.Background(), testQuery)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFetch_TimestampsWithinWindow(t *testing.T) {
	frozen := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() { domain.SetClock(nil) })

	p := testPlatform(Template{Title: "{loc}淹水回報", Body: "積水回報。", Probability: 1})
	g := New(p, domain.NewScorer(nil), rand.New(rand.NewSource(42)), discardLogger())

	items, err := g.Fetch(context.Background(), testQuery)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.False(t, items[0].PublishedAt.After(frozen))
	assert.False(t, items[0].PublishedAt.Before(frozen.Add(-p.Window)))
}

func TestDefaultPlatforms_TemplatesAreRelevant(t *testing.T) {
	scorer := domain.NewScorer(nil)
	for _, p := range DefaultPlatforms() {
		require.NotEmpty(t, p.Templates, p.Name)
		for _, tpl := range p.Templates {
			locOrTopic := scorer.TopicScore(tpl.Title, tpl.Body) > 0
			assert.True(t, locOrTopic, "%s template %q matches no flood keyword", p.Name, tpl.Title)
			assert.Greater(t, tpl.Probability, 0.0)
			assert.LessOrEqual(t, tpl.Probability, 1.0)
		}
	}
}
