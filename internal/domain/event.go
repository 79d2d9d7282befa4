package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// CentroidPoint is one day of an event's trajectory.
type CentroidPoint struct {
	Date      time.Time `json:"date"`
	ClusterID int       `json:"cluster_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	AreaKm2   float64   `json:"area_km2"`
	Intensity float64   `json:"intensity"`
}

// EventSummary is the finalized record of one closed track.
type EventSummary struct {
	ID            string          `json:"id"`
	TrackID       int             `json:"track_id"`
	Dataset       string          `json:"dataset"`
	Region        string          `json:"region"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	DurationDays  int             `json:"duration_days"`
	PeakIntensity float64         `json:"peak_intensity"`
	PeakDate      time.Time       `json:"peak_date"`
	TotalAreaTime float64         `json:"total_area_time_km2_days"`
	MaxAreaKm2    float64         `json:"max_area_km2"`
	Path          []CentroidPoint `json:"path"`
	SplitFrom     int             `json:"split_from,omitempty"`
	MergedInto    int             `json:"merged_into,omitempty"`

	// Geocoding enrichment of the peak-day centroid.
	PlaceName        string  `json:"place_name,omitempty"`
	FormattedAddress string  `json:"formatted_address,omitempty"`
	GeoConfidence    float64 `json:"geo_confidence,omitempty"`
	GeoSource        string  `json:"geo_source,omitempty"` // one of the GeoSource constants

	GeneratedAt time.Time `json:"generated_at"`
}

// PeakPoint returns the path entry recorded on the peak date.
func (e EventSummary) PeakPoint() CentroidPoint {
	for _, p := range e.Path {
		if p.Date.Equal(e.PeakDate) {
			return p
		}
	}
	return e.Path[0]
}

// Summarize condenses a track into an EventSummary. Peak intensity is the
// largest daily intensity (first occurrence wins); total area-time is the sum
// of daily areas in km²·day.
func Summarize(t *Track, dataset, region string) EventSummary {
	ev := EventSummary{
		TrackID:       t.ID,
		Dataset:       dataset,
		Region:        region,
		StartDate:     t.Start(),
		EndDate:       t.End(),
		DurationDays:  t.Duration(),
		PeakIntensity: math.Inf(-1),
		SplitFrom:     t.SplitFrom,
		MergedInto:    t.MergedInto,
		Path:          make([]CentroidPoint, 0, len(t.Observations)),
		GeneratedAt:   Now(),
	}
	for _, obs := range t.Observations {
		c := obs.Cluster
		ev.Path = append(ev.Path, CentroidPoint{
			Date:      obs.Date,
			ClusterID: c.ID,
			Lat:       c.CentroidLat,
			Lon:       c.CentroidLon,
			AreaKm2:   c.AreaKm2,
			Intensity: finiteOrZero(c.Intensity),
		})
		ev.TotalAreaTime += c.AreaKm2
		ev.MaxAreaKm2 = math.Max(ev.MaxAreaKm2, c.AreaKm2)
		if c.Intensity > ev.PeakIntensity {
			ev.PeakIntensity = c.Intensity
			ev.PeakDate = obs.Date
		}
	}
	if math.IsInf(ev.PeakIntensity, -1) {
		ev.PeakIntensity = 0
		ev.PeakDate = ev.StartDate
	}
	first := t.Observations[0].Cluster
	ev.ID = generateEventID(dataset, region, ev.StartDate, first.ID)
	return ev
}

// SummarizeTracks summarizes every closed track lasting at least minDays,
// preserving track order.
func SummarizeTracks(tracks []*Track, dataset, region string, minDays int) []EventSummary {
	out := make([]EventSummary, 0, len(tracks))
	for _, t := range tracks {
		if !t.Closed() || t.Duration() < minDays {
			continue
		}
		out = append(out, Summarize(t, dataset, region))
	}
	return out
}

// finiteOrZero keeps NaN out of serialized summaries.
func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// generateEventID derives a stable ID from the event's origin: a cluster
// belongs to at most one track on its first day, so (date, cluster) is unique
// within a dataset and region, and re-running tracking on the same artifacts
// reproduces the same IDs.
func generateEventID(dataset, region string, start time.Time, firstCluster int) string {
	input := fmt.Sprintf("%s|%s|%s|%d", dataset, region, DateKey(start), firstCluster)
	hash := sha256.Sum256([]byte(input))
	return "hw-" + hex.EncodeToString(hash[:8])
}
