package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodwatch/flood-search-service/internal/domain"
	"github.com/floodwatch/flood-search-service/internal/store"
)

var gateQuery = domain.SearchQuery{Lat: 23.0, Lng: 120.2, Address: "台南市安南區", RadiusM: 500}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- mock cache store ---

type mockCacheStore struct {
	candidates []store.CacheCandidate
	items      []domain.ContentItem
	listErr    error
	itemsErr   error
}

func (m *mockCacheStore) RecentSearches(_ context.Context, _ time.Time) ([]store.CacheCandidate, error) {
	return m.candidates, m.listErr
}

func (m *mockCacheStore) ItemsForSearch(_ context.Context, _ uint) ([]domain.ContentItem, error) {
	return m.items, m.itemsErr
}

func candidate(id uint, lat, lng, radiusM float64, updatedAt time.Time, itemCount int) store.CacheCandidate {
	return store.CacheCandidate{
		Record: domain.SearchRecord{
			ID: id, Lat: lat, Lng: lng, RadiusM: radiusM, UpdatedAt: updatedAt,
		},
		ItemCount: itemCount,
	}
}

func frozenClock(t *testing.T) time.Time {
	t.Helper()
	return fakeClock(t).Now()
}

func fakeClock(t *testing.T) *clockwork.FakeClock {
	t.Helper()
	fake := clockwork.NewFakeClockAt(time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })
	return fake
}

// --- gate tests ---

func TestGate_AcceptsExactBoundaries(t *testing.T) {
	now := frozenClock(t)

	// Radius diff exactly 50%, age exactly 3h, exactly 3 items: all
	// thresholds are inclusive.
	st := &mockCacheStore{
		candidates: []store.CacheCandidate{
			candidate(7, gateQuery.Lat, gateQuery.Lng, 750, now.Add(-3*time.Hour), 3),
		},
		items: make([]domain.ContentItem, 3),
	}

	hit, ok := NewGate(st, discardLogger()).Check(context.Background(), gateQuery)
	require.True(t, ok)
	assert.Equal(t, uint(7), hit.SearchID)
	assert.Len(t, hit.Items, 3)
	assert.Equal(t, 3.0, hit.AgeHours)
}

func TestGate_RejectsBeyondDistance(t *testing.T) {
	now := frozenClock(t)

	farLat, farLng := domain.Offset(gateQuery.Lat, gateQuery.Lng, 501, 90)
	nearLat, nearLng := domain.Offset(gateQuery.Lat, gateQuery.Lng, 499, 90)

	st := &mockCacheStore{
		candidates: []store.CacheCandidate{
			candidate(1, farLat, farLng, 500, now.Add(-time.Hour), 5),
			candidate(2, nearLat, nearLng, 500, now.Add(-time.Hour), 5),
		},
		items: make([]domain.ContentItem, 5),
	}

	hit, ok := NewGate(st, discardLogger()).Check(context.Background(), gateQuery)
	require.True(t, ok)
	assert.Equal(t, uint(2), hit.SearchID, "the 501m candidate must be skipped")
}

func TestGate_RejectsTooOld(t *testing.T) {
	now := frozenClock(t)

	st := &mockCacheStore{
		candidates: []store.CacheCandidate{
			candidate(1, gateQuery.Lat, gateQuery.Lng, 500, now.Add(-3*time.Hour-6*time.Minute), 5),
		},
		items: make([]domain.ContentItem, 5),
	}

	_, ok := NewGate(st, discardLogger()).Check(context.Background(), gateQuery)
	assert.False(t, ok)
}

func TestGate_RejectsRadiusMismatch(t *testing.T) {
	now := frozenClock(t)

	st := &mockCacheStore{
		candidates: []store.CacheCandidate{
			candidate(1, gateQuery.Lat, gateQuery.Lng, 751, now.Add(-time.Hour), 5),
		},
		items: make([]domain.ContentItem, 5),
	}

	_, ok := NewGate(st, discardLogger()).Check(context.Background(), gateQuery)
	assert.False(t, ok)
}

func TestGate_RejectsTooFewItems(t *testing.T) {
	now := frozenClock(t)

	st := &mockCacheStore{
		candidates: []store.CacheCandidate{
			candidate(1, gateQuery.Lat, gateQuery.Lng, 500, now.Add(-time.Hour), 2),
		},
	}

	_, ok := NewGate(st, discardLogger()).Check(context.Background(), gateQuery)
	assert.False(t, ok)
}

func TestGate_StoreErrorFailsOpen(t *testing.T) {
	frozenClock(t)

	st := &mockCacheStore{listErr: errors.New("database locked")}

	_, ok := NewGate(st, discardLogger()).Check(context.Background(), gateQuery)
	assert.False(t, ok, "a broken cache must read as a miss, not an error")
}

func TestGate_ItemLoadErrorFailsOpen(t *testing.T) {
	now := frozenClock(t)

	st := &mockCacheStore{
		candidates: []store.CacheCandidate{
			candidate(1, gateQuery.Lat, gateQuery.Lng, 500, now.Add(-time.Hour), 5),
		},
		itemsErr: errors.New("database locked"),
	}

	_, ok := NewGate(st, discardLogger()).Check(context.Background(), gateQuery)
	assert.False(t, ok)
}
