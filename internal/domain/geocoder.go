package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat               float64
	Lng               float64
	NormalizedAddress string
}

// Geocoder resolves free-text addresses to coordinates. Implementations may
// return a zero-value result when the address is unknown.
type Geocoder interface {
	ForwardGeocode(ctx context.Context, address string) (GeocodingResult, error)
}
