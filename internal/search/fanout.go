package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/floodwatch/flood-search-service/internal/domain"
	"github.com/floodwatch/flood-search-service/internal/observability"
)

// Source is one content adapter queried during fan-out.
type Source interface {
	Name() string
	Fetch(ctx context.Context, q domain.SearchQuery) ([]domain.ContentItem, error)
}

// Result is the settled outcome of one source: items on success, Err on
// failure, never both. A failing source contributes zero items and never
// aborts its siblings.
type Result struct {
	Name  string
	Items []domain.ContentItem
	Err   error
}

// FanOut queries every source concurrently and waits for all of them,
// returning one Result per source in input order. Each source gets its own
// timeout derived from a fresh context: caller cancellation does not reach
// in-flight fetches once the fan-out has started.
func FanOut(sources []Source, q domain.SearchQuery, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) []Result {
	results := make([]Result, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			start := time.Now()
			items, err := src.Fetch(ctx, q)
			metrics.AdapterDuration.WithLabelValues(src.Name()).Observe(time.Since(start).Seconds())

			switch {
			case err != nil:
				logger.Warn("source fetch failed", "source", src.Name(), "error", err)
				metrics.AdapterFetches.WithLabelValues(src.Name(), "error").Inc()
				results[i] = Result{Name: src.Name(), Err: err}
			case len(items) == 0:
				metrics.AdapterFetches.WithLabelValues(src.Name(), "empty").Inc()
				results[i] = Result{Name: src.Name()}
			default:
				metrics.AdapterFetches.WithLabelValues(src.Name(), "success").Inc()
				results[i] = Result{Name: src.Name(), Items: items}
			}
		}(i, src)
	}
	wg.Wait()

	return results
}

// merge flattens fan-out results into one item slice.
func merge(results []Result) []domain.ContentItem {
	var items []domain.ContentItem
	for _, r := range results {
		items = append(items, r.Items...)
	}
	return items
}
