// Package sensor turns open rainfall and river-level readings into content
// items when measurements near the search area exceed warning thresholds.
package sensor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/floodwatch/flood-search-service/internal/domain"
)

const (
	scoreCeiling = 12.0

	rainWarningMM  = 30.0 // hourly accumulation
	riverModerateM = 2.0
	riverSevereM   = 5.0
	backupAgeHours = 3
)

// RainfallAdapter reads hourly precipitation from an open weather endpoint.
type RainfallAdapter struct {
	url        string
	apiKey     string
	httpClient *http.Client
	scorer     *domain.Scorer
	logger     *slog.Logger
}

// NewRainfall builds the rainfall-station adapter.
func NewRainfall(url, apiKey string, timeout time.Duration, scorer *domain.Scorer, logger *slog.Logger) *RainfallAdapter {
	return &RainfallAdapter{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		scorer:     scorer,
		logger:     logger,
	}
}

// Name identifies the adapter in fan-out results and metrics.
func (a *RainfallAdapter) Name() string { return "rainfall" }

// Fetch emits one item per station whose name matches the target area and
// whose reading exceeds the warning threshold. A total endpoint failure
// degrades to the last-known-state backup items instead of an error.
func (a *RainfallAdapter) Fetch(ctx context.Context, q domain.SearchQuery) ([]domain.ContentItem, error) {
	var resp rainfallResponse
	if err := getJSON(ctx, a.httpClient, a.url, a.apiKey, &resp); err != nil {
		a.logger.Warn("rainfall endpoint unavailable, serving backup state", "error", err)
		return backupItems(q.Address, "cwb-rainfall", "雨量站"), nil
	}

	var items []domain.ContentItem
	for _, st := range resp.Records.Stations {
		if !stationMatches(st.Name, q.Address) || st.RainfallMM <= rainWarningMM {
			continue
		}
		title := fmt.Sprintf("%s雨量站時雨量 %.1f 毫米 豪雨警戒", st.Name, st.RainfallMM)
		body := fmt.Sprintf("%s 觀測站於 %s 錄得時雨量 %.1f 毫米,已超過大雨警戒值,低窪地區慎防積水。", st.Name, st.ObsTime, st.RainfallMM)
		items = append(items, a.buildItem(q, title, body, st.Name, st.ObsTime))
	}
	return items, nil
}

func (a *RainfallAdapter) buildItem(q domain.SearchQuery, title, body, station, obsTime string) domain.ContentItem {
	locScore := a.scorer.LocationScore(title, body, q.Address)
	topicScore := a.scorer.TopicScore(title, body)
	return domain.ContentItem{
		Title:       title,
		URL:         "https://www.cwa.gov.tw/V8/C/P/Rainfall/Rainfall_QZJ.html#" + station,
		Snippet:     body,
		SourceName:  "cwb-rainfall",
		ContentType: domain.ContentTypeSensor,
		Score:       a.scorer.Combined(locScore, topicScore, domain.ContentTypeSensor, 0, scoreCeiling),
		PublishedAt: parseObsTime(obsTime),
	}
}

// RiverAdapter reads river gauge levels from an open hydrology endpoint.
type RiverAdapter struct {
	url        string
	apiKey     string
	httpClient *http.Client
	scorer     *domain.Scorer
	logger     *slog.Logger
}

// NewRiver builds the river-gauge adapter.
func NewRiver(url, apiKey string, timeout time.Duration, scorer *domain.Scorer, logger *slog.Logger) *RiverAdapter {
	return &RiverAdapter{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		scorer:     scorer,
		logger:     logger,
	}
}

// Name identifies the adapter in fan-out results and metrics.
func (a *RiverAdapter) Name() string { return "river" }

// Fetch emits one item per gauge near the target area above the second
// warning stage (2 m); levels above 5 m read as severe. Total endpoint
// failure degrades to backup items.
func (a *RiverAdapter) Fetch(ctx context.Context, q domain.SearchQuery) ([]domain.ContentItem, error) {
	var resp riverResponse
	if err := getJSON(ctx, a.httpClient, a.url, a.apiKey, &resp); err != nil {
		a.logger.Warn("river endpoint unavailable, serving backup state", "error", err)
		return backupItems(q.Address, "wra-river", "水位站"), nil
	}

	var items []domain.ContentItem
	for _, st := range resp.Stations {
		if !stationMatches(st.Name, q.Address) || st.LevelM <= riverModerateM {
			continue
		}
		grade := "二級警戒"
		if st.LevelM > riverSevereM {
			grade = "一級警戒"
		}
		title := fmt.Sprintf("%s水位站水位 %.2f 公尺 %s", st.Name, st.LevelM, grade)
		body := fmt.Sprintf("%s 水位站目前水位 %.2f 公尺,達%s,沿岸請注意溢堤風險。", st.Name, st.LevelM, grade)

		locScore := a.scorer.LocationScore(title, body, q.Address)
		topicScore := a.scorer.TopicScore(title, body)
		items = append(items, domain.ContentItem{
			Title:       title,
			URL:         "https://fhy.wra.gov.tw/fhy/Monitor/Waterlevel#" + st.Name,
			Snippet:     body,
			SourceName:  "wra-river",
			ContentType: domain.ContentTypeSensor,
			Score:       a.scorer.Combined(locScore, topicScore, domain.ContentTypeSensor, 0, scoreCeiling),
			PublishedAt: parseObsTime(st.ObsTime),
		})
	}
	return items, nil
}

// stationMatches reports whether a station name shares an administrative
// fragment with the target address.
func stationMatches(station, address string) bool {
	for _, frag := range domain.SplitAdministrative(address) {
		if strings.Contains(station, frag) {
			return true
		}
	}
	return false
}

// backupItems represents the last known monitoring state when the live
// endpoint is unreachable. Clearly tagged with the _backup suffix and
// timestamped in the past so callers never mistake them for live readings.
func backupItems(address, source, kind string) []domain.ContentItem {
	loc := address
	if frags := domain.SplitAdministrative(address); len(frags) > 0 {
		loc = frags[0]
	}

	stamp := domain.Now().Add(-backupAgeHours * time.Hour)
	return []domain.ContentItem{
		{
			Title:       fmt.Sprintf("%s周邊%s監測資料(非即時)", loc, kind),
			URL:         fmt.Sprintf("https://floodwatch.example/monitoring/%s/%s/last", source, loc),
			Snippet:     fmt.Sprintf("%s附近%s即時資料暫時無法取得,以下為數小時前的最後監測狀態,僅供參考。", loc, kind),
			SourceName:  source + domain.BackupSuffix,
			ContentType: domain.ContentTypeSensor,
			Score:       3.0,
			PublishedAt: stamp,
		},
		{
			Title:       fmt.Sprintf("%s%s連線異常通知", loc, kind),
			URL:         fmt.Sprintf("https://floodwatch.example/monitoring/%s/%s/status", source, loc),
			Snippet:     fmt.Sprintf("與%s周邊%s的連線暫時中斷,恢復後將更新即時讀數。", loc, kind),
			SourceName:  source + domain.BackupSuffix,
			ContentType: domain.ContentTypeSensor,
			Score:       3.0,
			PublishedAt: stamp,
		},
	}
}

func getJSON(ctx context.Context, client *http.Client, url, apiKey string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sensor request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sensor status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode sensor response: %w", err)
	}
	return nil
}

// parseObsTime accepts RFC 3339 observation times, falling back to now.
func parseObsTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return domain.Now()
}

// Open data response shapes, trimmed to the fields in use.

type rainfallResponse struct {
	Records struct {
		Stations []rainfallStation `json:"station"`
	} `json:"records"`
}

type rainfallStation struct {
	Name       string  `json:"stationName"`
	ObsTime    string  `json:"obsTime"`
	RainfallMM float64 `json:"rainfallMM"`
}

type riverResponse struct {
	Stations []riverStation `json:"stations"`
}

type riverStation struct {
	Name    string  `json:"stationName"`
	ObsTime string  `json:"obsTime"`
	LevelM  float64 `json:"waterLevelM"`
}
