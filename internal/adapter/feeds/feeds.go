// Package feeds discovers flood-related articles from syndicated news
// feeds (RSS and Atom) across Taiwanese outlets.
package feeds

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/floodwatch/flood-search-service/internal/domain"
)

// Feed describes one syndication endpoint. Priority runs 1–10; feeds at 8+
// form the first fetch tier.
type Feed struct {
	Name     string
	URL      string
	Priority int
	Category string // one of the domain content types
}

// DefaultFeeds returns the production outlet list. Injected so tests can
// point the adapter at local fixtures instead.
func DefaultFeeds() []Feed {
	return []Feed{
		{Name: "cwa-alerts", URL: "https://www.cwa.gov.tw/rss/Data/cwa_warning.xml", Priority: 10, Category: domain.ContentTypeWeather},
		{Name: "ncdr-alerts", URL: "https://alerts.ncdr.nat.gov.tw/RssAtomFeed.ashx", Priority: 9, Category: domain.ContentTypeGovernment},
		{Name: "cna", URL: "https://feeds.feedburner.com/rsscna/local", Priority: 8, Category: domain.ContentTypeNational},
		{Name: "pts", URL: "https://news.pts.org.tw/xml/newsfeed.xml", Priority: 7, Category: domain.ContentTypeNational},
		{Name: "ltn", URL: "https://news.ltn.com.tw/rss/local.xml", Priority: 6, Category: domain.ContentTypeLocal},
		{Name: "udn", URL: "https://udn.com/rssfeed/news/2/6638", Priority: 5, Category: domain.ContentTypeLocal},
	}
}

const (
	highPriorityFloor = 8
	thinResultCount   = 10
	maxItems          = 25
	scoreCeiling      = 15.0
	discardThreshold  = 2.0
	snippetRunes      = 300
)

// Adapter fetches and scores syndicated articles.
type Adapter struct {
	feeds   []Feed
	scorer  *domain.Scorer
	parser  *gofeed.Parser
	timeout time.Duration
	logger  *slog.Logger
}

// New builds a feed adapter over the given outlet list.
func New(feeds []Feed, scorer *domain.Scorer, timeout time.Duration, logger *slog.Logger) *Adapter {
	return &Adapter{
		feeds:   feeds,
		scorer:  scorer,
		parser:  gofeed.NewParser(),
		timeout: timeout,
		logger:  logger,
	}
}

// Name identifies the adapter in fan-out results and metrics.
func (a *Adapter) Name() string { return "feeds" }

// Fetch queries outlets in priority tiers: high-priority feeds first, the
// rest only when the first tier comes back thin. Individual feed failures
// are logged and skipped; Fetch itself only fails on an empty feed list.
func (a *Adapter) Fetch(ctx context.Context, q domain.SearchQuery) ([]domain.ContentItem, error) {
	var high, medium []Feed
	for _, f := range a.feeds {
		if f.Priority >= highPriorityFloor {
			high = append(high, f)
		} else {
			medium = append(medium, f)
		}
	}

	items := a.fetchTier(ctx, high, q)
	if len(items) < thinResultCount && len(medium) > 0 {
		items = append(items, a.fetchTier(ctx, medium, q)...)
	}

	return domain.Rank(domain.Dedupe(items), maxItems), nil
}

// fetchTier fetches one tier of feeds concurrently and merges the scored
// survivors.
func (a *Adapter) fetchTier(ctx context.Context, tier []Feed, q domain.SearchQuery) []domain.ContentItem {
	var (
		mu    sync.Mutex
		items []domain.ContentItem
		wg    sync.WaitGroup
	)

	for _, f := range tier {
		wg.Add(1)
		go func(f Feed) {
			defer wg.Done()
			got, err := a.fetchFeed(ctx, f, q)
			if err != nil {
				a.logger.Warn("feed fetch failed", "feed", f.Name, "error", err)
				return
			}
			mu.Lock()
			items = append(items, got...)
			mu.Unlock()
		}(f)
	}

	wg.Wait()
	return items
}

func (a *Adapter) fetchFeed(ctx context.Context, f Feed, q domain.SearchQuery) ([]domain.ContentItem, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	parsed, err := a.parser.ParseURLWithContext(f.URL, ctx)
	if err != nil {
		return nil, err
	}

	now := domain.Now()
	var items []domain.ContentItem
	for _, entry := range parsed.Items {
		item, ok := a.buildItem(f, entry, q, now)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// buildItem normalizes one feed entry and scores it, reporting whether it
// clears the relevance bar (location AND topic match, combined score > 2).
func (a *Adapter) buildItem(f Feed, entry *gofeed.Item, q domain.SearchQuery, now time.Time) (domain.ContentItem, bool) {
	title := strings.TrimSpace(entry.Title)
	if title == "" || entry.Link == "" {
		return domain.ContentItem{}, false
	}

	body := entry.Description
	if body == "" {
		body = entry.Content
	}
	body = stripHTML(body)

	locScore := a.scorer.LocationScore(title, body, q.Address)
	topicScore := a.scorer.TopicScore(title, body)
	if locScore == 0 || topicScore == 0 {
		return domain.ContentItem{}, false
	}

	score := a.scorer.Combined(locScore, topicScore, f.Category, f.Priority, scoreCeiling)
	if score <= discardThreshold {
		return domain.ContentItem{}, false
	}

	published := now
	if entry.PublishedParsed != nil {
		published = *entry.PublishedParsed
	} else if entry.UpdatedParsed != nil {
		published = *entry.UpdatedParsed
	}

	return domain.ContentItem{
		Title:       title,
		URL:         entry.Link,
		Snippet:     truncate(body, snippetRunes),
		SourceName:  f.Name,
		ContentType: f.Category,
		Score:       score,
		PublishedAt: published,
	}, true
}

// stripHTML removes markup and collapses whitespace. gofeed already decodes
// entities; feed bodies still arrive with inline tags.
func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
