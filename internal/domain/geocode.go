package domain

import (
	"context"
	"log/slog"
)

// GeoSource values record how an event's place name was obtained.
const (
	GeoSourceReverse    = "reverse"
	GeoSourceUnresolved = "unresolved" // provider answered with no place
	GeoSourceFailed     = "failed"
	GeoSourceSkipped    = "skipped" // provider abandoned for this run
)

// maxConsecutiveGeocodeFailures stops lookups for the rest of a batch once
// the provider looks unavailable.
const maxConsecutiveGeocodeFailures = 3

// EnrichWithGeocoding names the place under an event's peak-day centroid.
// A nil geocoder or an empty path leaves the event unchanged. Failures are
// logged and recorded in GeoSource; they never drop the event.
func EnrichWithGeocoding(ctx context.Context, event EventSummary, geocoder Geocoder, logger *slog.Logger) EventSummary {
	if geocoder == nil || len(event.Path) == 0 {
		return event
	}

	peak := event.PeakPoint()
	place, err := geocoder.ReverseGeocode(ctx, peak.Lat, peak.Lon)
	switch {
	case err != nil:
		logger.Warn("reverse geocoding failed",
			"event_id", event.ID, "peak_date", DateKey(peak.Date), "lat", peak.Lat, "lon", peak.Lon, "error", err)
		event.GeoSource = GeoSourceFailed
	case place.FormattedAddress == "":
		event.GeoSource = GeoSourceUnresolved
	default:
		event.PlaceName = place.PlaceName
		event.FormattedAddress = place.FormattedAddress
		event.GeoConfidence = place.Confidence
		event.GeoSource = GeoSourceReverse
	}
	return event
}

// EnrichEvents geocodes every event in place and returns how many were
// named. After maxConsecutiveGeocodeFailures failures in a row, or once ctx
// is done, the remaining events are marked skipped without a lookup.
func EnrichEvents(ctx context.Context, events []EventSummary, geocoder Geocoder, logger *slog.Logger) int {
	if geocoder == nil {
		return 0
	}
	named, failures := 0, 0
	for i := range events {
		if failures >= maxConsecutiveGeocodeFailures || ctx.Err() != nil {
			if len(events[i].Path) > 0 {
				events[i].GeoSource = GeoSourceSkipped
			}
			continue
		}
		events[i] = EnrichWithGeocoding(ctx, events[i], geocoder, logger)
		switch events[i].GeoSource {
		case GeoSourceFailed:
			failures++
			if failures == maxConsecutiveGeocodeFailures {
				logger.Warn("geocoding disabled for remaining events", "failures", failures, "remaining", len(events)-i-1)
			}
		case GeoSourceReverse:
			named++
			failures = 0
		default:
			failures = 0
		}
	}
	return named
}
