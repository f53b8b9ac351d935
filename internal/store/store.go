// Package store persists search records, content items, and flood incidents
// in SQLite via GORM. Spatial queries use a bounding-box prefilter and
// haversine refinement; exact geo indexing is not worth it at this scale.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/floodwatch/flood-search-service/internal/domain"
)

// Store wraps the GORM handle with domain-shaped queries.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite database at path and migrates
// the schema. The GORM clock is wired to the domain clock so record
// timestamps are controllable in tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		NowFunc: domain.Now,
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if err := db.AutoMigrate(&domain.SearchRecord{}, &domain.ContentItem{}, &domain.Incident{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db}, nil
}

// UpsertSearchRecord increments the search counter for the exact
// (lat, lng, radius) tuple, creating the record on first search. The
// counter is approximate: concurrent identical searches may race.
func (s *Store) UpsertSearchRecord(ctx context.Context, q domain.SearchQuery) (domain.SearchRecord, error) {
	var rec domain.SearchRecord
	err := s.db.WithContext(ctx).
		Where("lat = ? AND lng = ? AND radius_m = ?", q.Lat, q.Lng, q.RadiusM).
		First(&rec).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec = domain.SearchRecord{
			Lat:         q.Lat,
			Lng:         q.Lng,
			RadiusM:     q.RadiusM,
			Address:     q.Address,
			SearchCount: 1,
		}
		if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
			return domain.SearchRecord{}, fmt.Errorf("create search record: %w", err)
		}
		return rec, nil
	case err != nil:
		return domain.SearchRecord{}, fmt.Errorf("find search record: %w", err)
	}

	rec.SearchCount++
	if q.Address != "" {
		rec.Address = q.Address
	}
	// UpdateColumns skips the updated_at auto-touch. That timestamp marks
	// when the record's items were last stored, not when it was last
	// searched; the cache gate reads it as the candidate's age.
	err = s.db.WithContext(ctx).Model(&rec).
		UpdateColumns(map[string]any{"search_count": rec.SearchCount, "address": rec.Address}).Error
	if err != nil {
		return domain.SearchRecord{}, fmt.Errorf("update search record: %w", err)
	}
	return rec, nil
}

// ReplaceContentItems associates items with a search record, dropping any
// items from previous runs of the same search first, and stamps the
// record's freshness timestamp.
func (s *Store) ReplaceContentItems(ctx context.Context, searchID uint, items []domain.ContentItem) error {
	if err := s.db.WithContext(ctx).Where("search_id = ?", searchID).Delete(&domain.ContentItem{}).Error; err != nil {
		return fmt.Errorf("clear content items: %w", err)
	}

	if len(items) > 0 {
		for i := range items {
			items[i].ID = 0
			items[i].SearchID = searchID
		}
		if err := s.db.WithContext(ctx).CreateInBatches(items, 100).Error; err != nil {
			return fmt.Errorf("insert content items: %w", err)
		}
	}

	err := s.db.WithContext(ctx).Model(&domain.SearchRecord{}).
		Where("id = ?", searchID).
		UpdateColumn("updated_at", domain.Now()).Error
	if err != nil {
		return fmt.Errorf("stamp search record: %w", err)
	}
	return nil
}

// CacheCandidate pairs a recent search record with its item count; items
// are only loaded for the candidate that passes the cache gate.
type CacheCandidate struct {
	Record    domain.SearchRecord
	ItemCount int
}

// RecentSearches returns search records whose items were stored after the
// cutoff, freshest first, each with its associated item count.
func (s *Store) RecentSearches(ctx context.Context, updatedAfter time.Time) ([]CacheCandidate, error) {
	var rows []struct {
		domain.SearchRecord
		ItemCount int
	}
	err := s.db.WithContext(ctx).
		Model(&domain.SearchRecord{}).
		Select("search_records.*, (SELECT COUNT(*) FROM content_items WHERE content_items.search_id = search_records.id) AS item_count").
		Where("updated_at > ?", updatedAfter).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query recent searches: %w", err)
	}

	candidates := make([]CacheCandidate, 0, len(rows))
	for _, r := range rows {
		candidates = append(candidates, CacheCandidate{Record: r.SearchRecord, ItemCount: r.ItemCount})
	}
	return candidates, nil
}

// ItemsForSearch loads the content items associated with a search record,
// best score first.
func (s *Store) ItemsForSearch(ctx context.Context, searchID uint) ([]domain.ContentItem, error) {
	var items []domain.ContentItem
	err := s.db.WithContext(ctx).
		Where("search_id = ?", searchID).
		Order("score DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("query content items: %w", err)
	}
	return items, nil
}

// IncidentsWithin returns incidents inside the circle around (lat, lng).
// The bounding box narrows the scan; haversine trims the corners.
func (s *Store) IncidentsWithin(ctx context.Context, lat, lng, radiusM float64) ([]domain.Incident, error) {
	minLat, maxLat, minLng, maxLng := domain.BoundingBox(lat, lng, radiusM)

	var rows []domain.Incident
	err := s.db.WithContext(ctx).
		Where("lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?", minLat, maxLat, minLng, maxLng).
		Order("reported_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query incidents: %w", err)
	}

	incidents := rows[:0]
	for _, inc := range rows {
		if domain.Haversine(lat, lng, inc.Lat, inc.Lng) <= radiusM {
			incidents = append(incidents, inc)
		}
	}
	return incidents, nil
}

// UpsertIncident inserts an incident, ignoring duplicates. Incident IDs are
// deterministic, so replaying the report topic is idempotent.
func (s *Store) UpsertIncident(ctx context.Context, inc domain.Incident) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&inc).Error
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}
