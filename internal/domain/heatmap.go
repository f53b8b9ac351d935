package domain

import "math/rand"

const (
	estimatedRingPoints = 5
	newsJitterMaxM      = 400.0
)

// Fractions of the search radius used for the estimated ring, one per point.
var ringRadiusFractions = [estimatedRingPoints]float64{0.3, 0.45, 0.6, 0.75, 0.9}

// ringWeights cycles 3,2,1 so the ring reads as a gradient, not a uniform blob.
var ringWeights = [estimatedRingPoints]float64{3, 2, 1, 3, 2}

// BuildHeatmapPoints synthesizes map points for a response, in priority
// order: real incidents inside the radius, else jittered points near the
// center for each news item, else a deterministic five-point "estimated"
// ring. rng drives news jitter; pass a seeded source for reproducible tests.
func BuildHeatmapPoints(q SearchQuery, incidents []Incident, news []ContentItem, rng *rand.Rand) []HeatmapPoint {
	if len(incidents) > 0 {
		points := make([]HeatmapPoint, 0, len(incidents))
		for _, inc := range incidents {
			points = append(points, HeatmapPoint{
				Lat:    inc.Lat,
				Lng:    inc.Lng,
				Weight: float64(inc.Severity),
				Type:   "incident",
			})
		}
		return points
	}

	if len(news) > 0 {
		if rng == nil {
			rng = rand.New(rand.NewSource(rand.Int63()))
		}
		points := make([]HeatmapPoint, 0, len(news))
		for range news {
			lat, lng := Offset(q.Lat, q.Lng, rng.Float64()*newsJitterMaxM, rng.Float64()*360)
			weight := 1 + rng.Float64()*3 // 1–4
			points = append(points, HeatmapPoint{Lat: lat, Lng: lng, Weight: weight, Type: "news"})
		}
		return points
	}

	// No evidence at all: an explicit placeholder ring, evenly spaced by
	// angle so consumers can recognize it is not data-driven.
	points := make([]HeatmapPoint, 0, estimatedRingPoints)
	for i := 0; i < estimatedRingPoints; i++ {
		angle := float64(i) * (360.0 / estimatedRingPoints)
		lat, lng := Offset(q.Lat, q.Lng, q.RadiusM*ringRadiusFractions[i], angle)
		points = append(points, HeatmapPoint{
			Lat:    lat,
			Lng:    lng,
			Weight: ringWeights[i],
			Type:   "estimated",
		})
	}
	return points
}
