package domain

import (
	"context"
	"time"
)

// SearchQuery is the immutable input of one search request.
type SearchQuery struct {
	Lat     float64
	Lng     float64
	Address string
	RadiusM float64
}

// SearchRecord is the persisted trace of searches at a location. Keyed by
// the (lat, lng, radius) tuple; SearchCount is an approximate counter —
// concurrent identical searches may race on the increment.
type SearchRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Lat         float64   `gorm:"index:idx_search_loc" json:"lat"`
	Lng         float64   `gorm:"index:idx_search_loc" json:"lng"`
	RadiusM     float64   `json:"radius_m"`
	Address     string    `json:"address"`
	SearchCount int       `json:"search_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`
}

// ContentItem is the normalized unit produced by every source adapter.
type ContentItem struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	SearchID    uint      `gorm:"index" json:"-"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Snippet     string    `json:"snippet"`
	SourceName  string    `json:"source_name"`
	ContentType string    `json:"content_type"`
	Score       float64   `json:"relevance_score"`
	PublishedAt time.Time `json:"published_at"`
}

// Content type tags. Synthetic content keeps a distinct tag so consumers
// can always tell generated posts from real sources.
const (
	ContentTypeGovernment = "government"
	ContentTypeWeather    = "weather"
	ContentTypeNational   = "national"
	ContentTypeLocal      = "local"
	ContentTypeSensor     = "sensor"
	ContentTypeForum      = "forum"
	ContentTypeSocial     = "social"
	ContentTypeFallback   = "fallback"
)

// BackupSuffix marks sensor items emitted from the last-known monitoring
// state after a total upstream failure.
const BackupSuffix = "_backup"

// HeatmapPoint is a weighted map point derived per response, not persisted.
type HeatmapPoint struct {
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Weight float64 `json:"weight"`
	Type   string  `json:"type"` // "incident", "news", or "estimated"
}

// Incident is a confirmed flood report stored for heatmap rendering.
type Incident struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Description  string    `json:"description"`
	Lat          float64   `gorm:"index:idx_incident_loc" json:"lat"`
	Lng          float64   `gorm:"index:idx_incident_loc" json:"lng"`
	Severity     int       `json:"severity"` // 1 minor, 2 moderate, 3 severe
	WaterLevelCM float64   `json:"water_level_cm"`
	Source       string    `json:"source"`
	ReportedAt   time.Time `gorm:"index" json:"reported_at"`
	IngestedAt   time.Time `json:"ingested_at"`
}

// RawReport is an unprocessed incident message from the source topic.
type RawReport struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}
