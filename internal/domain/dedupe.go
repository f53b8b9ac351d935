package domain

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParams are stripped from URLs before deduplication so the same
// article shared through different channels collapses to one identity.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"fbclid":       true,
	"gclid":        true,
	"ref":          true,
}

const dedupeTitleRunes = 20

// NormalizeURL lower-cases a URL and strips tracking query parameters.
// Unparseable URLs are returned lower-cased as-is.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}

	q := u.Query()
	for param := range q {
		if trackingParams[strings.ToLower(param)] {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""

	return strings.ToLower(u.String())
}

// DedupeKey builds the dedup identity of an item: normalized URL plus the
// first 20 runes of the lower-cased title.
func DedupeKey(item ContentItem) string {
	title := []rune(strings.ToLower(strings.TrimSpace(item.Title)))
	if len(title) > dedupeTitleRunes {
		title = title[:dedupeTitleRunes]
	}
	return NormalizeURL(item.URL) + "|" + string(title)
}

// Dedupe collapses items sharing a dedup key, keeping the highest-scored
// occurrence. Input order is not preserved; callers rank afterwards.
func Dedupe(items []ContentItem) []ContentItem {
	if len(items) == 0 {
		return items
	}

	// Highest score first so the best duplicate wins the key.
	sorted := make([]ContentItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	seen := make(map[string]bool, len(sorted))
	out := sorted[:0]
	for _, item := range sorted {
		key := DedupeKey(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

// Rank stable-sorts items by descending score and truncates to limit.
// A limit ≤ 0 keeps everything.
func Rank(items []ContentItem, limit int) []ContentItem {
	sorted := make([]ContentItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
