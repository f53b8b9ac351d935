package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// rawReportPayload is the flat JSON published by upstream report collectors.
type rawReportPayload struct {
	Source       string  `json:"source"`
	Description  string  `json:"description"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	WaterLevelCM float64 `json:"water_level_cm"`
	ReportedAt   string  `json:"reported_at"` // RFC 3339; message timestamp when absent
}

// ParseRawReport deserializes a RawReport's value into an Incident.
func ParseRawReport(raw RawReport) (Incident, error) {
	var p rawReportPayload
	if err := json.Unmarshal(raw.Value, &p); err != nil {
		return Incident{}, fmt.Errorf("parse raw report: %w", err)
	}
	if p.Lat == 0 && p.Lng == 0 {
		return Incident{}, fmt.Errorf("raw report has no coordinates")
	}

	reportedAt := raw.Timestamp
	if p.ReportedAt != "" {
		if t, err := time.Parse(time.RFC3339, p.ReportedAt); err == nil {
			reportedAt = t
		}
	}

	source := strings.TrimSpace(p.Source)
	if source == "" {
		source = "unknown"
	}

	return Incident{
		ID:           reportID(source, p.Lat, p.Lng, reportedAt),
		Description:  strings.TrimSpace(p.Description),
		Lat:          p.Lat,
		Lng:          p.Lng,
		WaterLevelCM: p.WaterLevelCM,
		Source:       source,
		ReportedAt:   reportedAt,
	}, nil
}

// EnrichIncident derives severity from the reported water depth and stamps
// the ingestion time.
func EnrichIncident(inc Incident) Incident {
	inc.Severity = deriveSeverity(inc.WaterLevelCM)
	inc.IngestedAt = clock.Now()
	return inc
}

// deriveSeverity maps water depth in centimeters to a three-level scale:
// >200 cm severe, >50 cm moderate, otherwise minor. Thresholds follow the
// Water Resources Agency flood warning levels (first/second stage).
func deriveSeverity(waterLevelCM float64) int {
	switch {
	case waterLevelCM > 200:
		return 3
	case waterLevelCM > 50:
		return 2
	default:
		return 1
	}
}

// reportID produces a deterministic ID from a report's key fields, making
// re-ingestion of the same report idempotent.
func reportID(source string, lat, lng float64, reportedAt time.Time) string {
	input := fmt.Sprintf("%s|%.5f|%.5f|%s", source, lat, lng, reportedAt.UTC().Format(time.RFC3339))
	hash := sha256.Sum256([]byte(input))
	return "rpt-" + hex.EncodeToString(hash[:8])
}
