package domain

import "context"

// GeocodingResult is the place a provider reports for a coordinate.
type GeocodingResult struct {
	Lat, Lon         float64 // provider's place center, not the query point
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // 0.0 to 1.0
}

// Geocoder names the place under a centroid. Implementations accept any
// longitude and fold it as their API requires.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}
