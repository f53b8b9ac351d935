// Package geocode implements domain.Geocoder against a Nominatim-style
// search endpoint, with an LRU cache decorator for repeated addresses.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/floodwatch/flood-search-service/internal/domain"
)

const userAgent = "flood-search-service/1.0"

// Client implements domain.Geocoder using a Nominatim-compatible API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a geocoding client against the given search endpoint.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// ForwardGeocode converts a free-text address to coordinates. An unknown
// address yields a zero-value result, not an error.
func (c *Client) ForwardGeocode(ctx context.Context, address string) (domain.GeocodingResult, error) {
	params := url.Values{
		"q":               {address},
		"format":          {"json"},
		"limit":           {"1"},
		"countrycodes":    {"tw"},
		"accept-language": {"zh-TW"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}
	// Nominatim's usage policy requires an identifying agent.
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("forward geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.GeocodingResult{}, fmt.Errorf("geocoder status %d: %s", resp.StatusCode, body)
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}
	if len(places) == 0 {
		return domain.GeocodingResult{}, nil
	}

	p := places[0]
	lat, latErr := strconv.ParseFloat(p.Lat, 64)
	lng, lngErr := strconv.ParseFloat(p.Lon, 64)
	if latErr != nil || lngErr != nil {
		return domain.GeocodingResult{}, fmt.Errorf("malformed coordinates %q,%q", p.Lat, p.Lon)
	}

	return domain.GeocodingResult{
		Lat:               lat,
		Lng:               lng,
		NormalizedAddress: p.DisplayName,
	}, nil
}

// Nominatim search response entry; coordinates arrive as strings.

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}
