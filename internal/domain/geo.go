package domain

import "math"

// earthRadiusM is the mean Earth radius used for great-circle distances.
const earthRadiusM = 6371000.0

// Haversine returns the great-circle distance in meters between two
// WGS-84 coordinate pairs.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}

// Offset displaces a coordinate by the given distance (meters) along a
// bearing (degrees clockwise from north). Accurate enough at city scale,
// which is all heatmap jitter and estimated rings need.
func Offset(lat, lng, distanceM, bearingDeg float64) (float64, float64) {
	bearing := bearingDeg * math.Pi / 180
	dLat := distanceM * math.Cos(bearing) / earthRadiusM * 180 / math.Pi
	dLng := distanceM * math.Sin(bearing) / (earthRadiusM * math.Cos(lat*math.Pi/180)) * 180 / math.Pi
	return lat + dLat, lng + dLng
}

// BoundingBox returns the min/max latitude and longitude of a square that
// fully contains the circle of radiusM around the center. Used to cheapen
// spatial store queries before haversine refinement.
func BoundingBox(lat, lng, radiusM float64) (minLat, maxLat, minLng, maxLng float64) {
	dLat := radiusM / earthRadiusM * 180 / math.Pi
	dLng := radiusM / (earthRadiusM * math.Cos(lat*math.Pi/180)) * 180 / math.Pi
	return lat - dLat, lat + dLat, lng - dLng, lng + dLng
}
