package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "events.db"), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testRun(id string) domain.TrackingRun {
	return domain.TrackingRun{
		ID:              id,
		Dataset:         "ERA5",
		Region:          "global",
		StartDate:       day(2019, time.May, 1),
		EndDate:         day(2019, time.September, 30),
		Days:            153,
		IncompleteDates: []time.Time{day(2019, time.June, 3)},
		Events:          2,
		StartedAt:       time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt:      time.Date(2024, time.March, 1, 10, 5, 0, 0, time.UTC),
	}
}

func testEvents() []domain.EventSummary {
	generated := time.Date(2024, time.March, 1, 10, 5, 0, 0, time.UTC)
	return []domain.EventSummary{
		{
			ID: "hw-b", TrackID: 2, Dataset: "ERA5", Region: "global",
			StartDate: day(2019, time.July, 20), EndDate: day(2019, time.July, 22), DurationDays: 3,
			PeakIntensity: 4.5, PeakDate: day(2019, time.July, 21), TotalAreaTime: 900, MaxAreaKm2: 400,
			Path: []domain.CentroidPoint{
				{Date: day(2019, time.July, 20), ClusterID: 1, Lat: 48, Lon: 2, AreaKm2: 200, Intensity: 3},
				{Date: day(2019, time.July, 21), ClusterID: 2, Lat: 48.5, Lon: 2.5, AreaKm2: 400, Intensity: 4.5},
				{Date: day(2019, time.July, 22), ClusterID: 1, Lat: 49, Lon: 3, AreaKm2: 300, Intensity: 2},
			},
			MergedInto: 1, PlaceName: "Paris", FormattedAddress: "Paris, France", GeoConfidence: 0.9, GeoSource: "reverse",
			GeneratedAt: generated,
		},
		{
			ID: "hw-a", TrackID: 1, Dataset: "ERA5", Region: "global",
			StartDate: day(2019, time.June, 25), EndDate: day(2019, time.June, 25), DurationDays: 1,
			PeakIntensity: 2, PeakDate: day(2019, time.June, 25), TotalAreaTime: 100, MaxAreaKm2: 100,
			Path:        []domain.CentroidPoint{{Date: day(2019, time.June, 25), ClusterID: 3, Lat: 40, Lon: -3, AreaKm2: 100, Intensity: 2}},
			GeneratedAt: generated,
		},
	}
}

func TestStore_WriteAndListEvents(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	events := testEvents()

	require.NoError(t, s.WriteEvents(ctx, testRun("run-1"), events))

	got, err := s.ListEvents(ctx, "ERA5", "global")
	require.NoError(t, err)
	want := []domain.EventSummary{events[1], events[0]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	other, err := s.ListEvents(ctx, "ERA5", "europe")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_RerunUpsertsEvents(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	events := testEvents()
	require.NoError(t, s.WriteEvents(ctx, testRun("run-1"), events))

	events[0].PlaceName = "Lyon"
	require.NoError(t, s.WriteEvents(ctx, testRun("run-2"), events))

	got, err := s.ListEvents(ctx, "ERA5", "global")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Lyon", got[1].PlaceName)
}

func TestStore_Run(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	run := testRun("run-1")
	require.NoError(t, s.WriteEvents(ctx, run, nil))

	got, err := s.Run(ctx, "run-1")
	require.NoError(t, err)
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("run mismatch (-want +got):\n%s", diff)
	}

	_, err = s.Run(ctx, "missing")
	assert.Error(t, err)
}

func TestOpen_ReappliesMigrationsIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	s, err := Open(path, discardLogger())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", s.Name())
	require.NoError(t, s.Close())
}
