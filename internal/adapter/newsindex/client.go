// Package newsindex queries a public news-index API (GDELT DOC 2.0 format)
// for flood coverage of a location.
package newsindex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/floodwatch/flood-search-service/internal/domain"
)

const (
	maxAccepted    = 8
	topicFloor     = 3
	scoreCeiling   = 10.0
	seendateLayout = "20060102T150405Z"
)

// Client implements the news-index source adapter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	scorer     *domain.Scorer
	logger     *slog.Logger
}

// New creates a news-index client against the given DOC-style endpoint.
func New(baseURL string, timeout time.Duration, scorer *domain.Scorer, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		scorer:     scorer,
		logger:     logger,
	}
}

// Name identifies the adapter in fan-out results and metrics.
func (c *Client) Name() string { return "newsindex" }

// Fetch runs a boolean query combining the location fragments with flood
// terms, keeping articles that clear the topic-relevance floor. At most
// eight articles are accepted per call.
func (c *Client) Fetch(ctx context.Context, q domain.SearchQuery) ([]domain.ContentItem, error) {
	query := buildQuery(q.Address)
	if query == "" {
		return nil, nil
	}

	params := url.Values{
		"query":      {query},
		"mode":       {"artlist"},
		"format":     {"json"},
		"maxrecords": {"30"},
		"sort":       {"datedesc"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news index request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("news index status %d: %s", resp.StatusCode, body)
	}

	var indexResp response
	if err := json.NewDecoder(resp.Body).Decode(&indexResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	now := domain.Now()
	var items []domain.ContentItem
	for _, art := range indexResp.Articles {
		if len(items) >= maxAccepted {
			break
		}
		title := strings.TrimSpace(art.Title)
		if title == "" || art.URL == "" {
			continue
		}

		topicScore := c.scorer.TopicScore(title, "")
		if topicScore <= topicFloor {
			continue
		}
		locScore := c.scorer.LocationScore(title, "", q.Address)

		items = append(items, domain.ContentItem{
			Title:       title,
			URL:         art.URL,
			Snippet:     title,
			SourceName:  art.Domain,
			ContentType: domain.ContentTypeNational,
			Score:       c.scorer.Combined(locScore, topicScore, domain.ContentTypeNational, 0, scoreCeiling),
			PublishedAt: parseSeenDate(art.SeenDate, now),
		})
	}
	return items, nil
}

// buildQuery combines location fragments with flood terms into the index's
// boolean syntax: (loc1 OR loc2) (flood OR 淹水 ...).
func buildQuery(address string) string {
	frags := domain.SplitAdministrative(address)
	if len(frags) == 0 {
		return ""
	}
	loc := "(" + strings.Join(frags, " OR ") + ")"
	return loc + ` ("淹水" OR "洪水" OR "豪雨" OR flood OR flooding)`
}

// parseSeenDate parses the index's compact timestamp, falling back to now
// on anything malformed.
func parseSeenDate(s string, now time.Time) time.Time {
	t, err := time.Parse(seendateLayout, s)
	if err != nil {
		return now
	}
	return t
}

// DOC API response types.

type response struct {
	Articles []article `json:"articles"`
}

type article struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Domain   string `json:"domain"`
	SeenDate string `json:"seendate"`
	Language string `json:"language"`
}
