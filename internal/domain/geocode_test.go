package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockGeocoder struct {
	result GeocodingResult
	err    error
	calls  int
	gotLat float64
	gotLon float64
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, lat, lon float64) (GeocodingResult, error) {
	m.calls++
	m.gotLat, m.gotLon = lat, lon
	return m.result, m.err
}

func geocodeFixture() EventSummary {
	return EventSummary{
		ID:       "hw-1",
		PeakDate: day(2019, time.July, 2),
		Path: []CentroidPoint{
			{Date: day(2019, time.July, 1), Lat: 40, Lon: -3},
			{Date: day(2019, time.July, 2), Lat: 41.5, Lon: 2.1},
		},
	}
}

func TestEnrichWithGeocoding_NilGeocoder(t *testing.T) {
	result := EnrichWithGeocoding(context.Background(), geocodeFixture(), nil, discardLogger())

	assert.Empty(t, result.GeoSource)
	assert.Empty(t, result.FormattedAddress)
}

func TestEnrichWithGeocoding_ReversePeakCentroid(t *testing.T) {
	geo := &mockGeocoder{result: GeocodingResult{
		FormattedAddress: "Barcelona, Catalonia, Spain",
		PlaceName:        "Barcelona",
		Confidence:       0.8,
	}}

	result := EnrichWithGeocoding(context.Background(), geocodeFixture(), geo, discardLogger())

	assert.Equal(t, 1, geo.calls)
	assert.Equal(t, 41.5, geo.gotLat)
	assert.Equal(t, 2.1, geo.gotLon)
	assert.Equal(t, "Barcelona, Catalonia, Spain", result.FormattedAddress)
	assert.Equal(t, "Barcelona", result.PlaceName)
	assert.Equal(t, 0.8, result.GeoConfidence)
	assert.Equal(t, GeoSourceReverse, result.GeoSource)
}

func TestEnrichWithGeocoding_Failure(t *testing.T) {
	geo := &mockGeocoder{err: errors.New("timeout")}

	result := EnrichWithGeocoding(context.Background(), geocodeFixture(), geo, discardLogger())

	assert.Equal(t, GeoSourceFailed, result.GeoSource)
	assert.Empty(t, result.PlaceName)
}

func TestEnrichWithGeocoding_NoResult(t *testing.T) {
	geo := &mockGeocoder{}

	result := EnrichWithGeocoding(context.Background(), geocodeFixture(), geo, discardLogger())

	assert.Equal(t, GeoSourceUnresolved, result.GeoSource)
	assert.Empty(t, result.FormattedAddress)
}

func TestEnrichWithGeocoding_EmptyPath(t *testing.T) {
	geo := &mockGeocoder{}

	result := EnrichWithGeocoding(context.Background(), EventSummary{ID: "hw-2"}, geo, discardLogger())

	assert.Zero(t, geo.calls)
	assert.Empty(t, result.GeoSource)
}

func geocodeBatch(n int) []EventSummary {
	events := make([]EventSummary, n)
	for i := range events {
		events[i] = geocodeFixture()
	}
	return events
}

func TestEnrichEvents_NamesEvery(t *testing.T) {
	geo := &mockGeocoder{result: GeocodingResult{FormattedAddress: "Barcelona, Spain"}}
	events := geocodeBatch(4)

	named := EnrichEvents(context.Background(), events, geo, discardLogger())

	assert.Equal(t, 4, named)
	assert.Equal(t, 4, geo.calls)
	for _, ev := range events {
		assert.Equal(t, GeoSourceReverse, ev.GeoSource)
	}
}

func TestEnrichEvents_StopsAfterConsecutiveFailures(t *testing.T) {
	geo := &mockGeocoder{err: errors.New("503")}
	events := geocodeBatch(5)

	named := EnrichEvents(context.Background(), events, geo, discardLogger())

	assert.Zero(t, named)
	assert.Equal(t, maxConsecutiveGeocodeFailures, geo.calls)
	assert.Equal(t, GeoSourceFailed, events[2].GeoSource)
	assert.Equal(t, GeoSourceSkipped, events[3].GeoSource)
	assert.Equal(t, GeoSourceSkipped, events[4].GeoSource)
}

func TestEnrichEvents_CancelledContextSkips(t *testing.T) {
	geo := &mockGeocoder{result: GeocodingResult{FormattedAddress: "x"}}
	events := geocodeBatch(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	EnrichEvents(ctx, events, geo, discardLogger())

	assert.Zero(t, geo.calls)
	assert.Equal(t, GeoSourceSkipped, events[0].GeoSource)
}

func TestEnrichEvents_NilGeocoder(t *testing.T) {
	events := geocodeBatch(1)
	assert.Zero(t, EnrichEvents(context.Background(), events, nil, discardLogger()))
	assert.Empty(t, events[0].GeoSource)
}
