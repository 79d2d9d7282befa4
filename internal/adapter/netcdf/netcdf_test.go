package netcdf

import (
	"context"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleDataset(t *testing.T) *domain.Dataset {
	t.Helper()
	dates := []time.Time{
		time.Date(2019, time.July, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2019, time.July, 2, 0, 0, 0, 0, time.UTC),
	}
	values := []float64{
		20, 21.5, 22,
		23, math.NaN(), 25,

		30, 31, 32,
		33, 34, 35.25,
	}
	actual, err := domain.FieldFromValues(2, 2, 3, values)
	require.NoError(t, err)
	return &domain.Dataset{
		Lats:   []float64{50, 49},
		Lons:   []float64{-1, 0, 1},
		Dates:  dates,
		Actual: actual,
	}
}

func TestSeries_RoundTripKelvin(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "in", "t2m.nc")
	ds := sampleDataset(t)
	opts := Options{KelvinToCelsius: true}

	require.NoError(t, WriteSeries(ctx, path, opts, ds))
	got, err := NewReader(opts, discardLogger()).ReadSeries(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, ds.Lats, got.Lats)
	assert.Equal(t, ds.Lons, got.Lons)
	assert.Equal(t, ds.Dates, got.Dates)
	nt, nlat, nlon := got.Actual.Shape()
	require.Equal(t, []int{2, 2, 3}, []int{nt, nlat, nlon})
	assert.True(t, math.IsNaN(got.Actual.At(0, 1, 1)))
	assert.InDelta(t, 21.5, got.Actual.At(0, 0, 1), 1e-3)
	assert.InDelta(t, 35.25, got.Actual.At(1, 1, 2), 1e-3)
}

func TestReadSeries_CustomVariableNames(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tas.nc")
	opts := Options{TemperatureVar: "tas", LatVar: "lat", LonVar: "lon"}

	require.NoError(t, WriteSeries(ctx, path, opts, sampleDataset(t)))

	got, err := NewReader(opts, discardLogger()).ReadSeries(ctx, path)
	require.NoError(t, err)
	assert.InDelta(t, 20, got.Actual.At(0, 0, 0), 1e-6)

	_, err = NewReader(Options{}, discardLogger()).ReadSeries(ctx, path)
	assert.Error(t, err, "default variable names are absent")
}

func TestReadSeries_MissingFile(t *testing.T) {
	_, err := NewReader(Options{}, discardLogger()).ReadSeries(context.Background(), filepath.Join(t.TempDir(), "none.nc"))
	assert.Error(t, err)
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "processed", "heatwave-processed.nc")
	ds := sampleDataset(t)
	ds.Threshold = domain.NewFieldFilled(2, 2, 3, 24)
	ds.Threshold.Set(1, 0, 0, math.NaN())
	ds.Mask = domain.NewField(2, 2, 3)
	ds.Mask.Set(1, 1, 2, 1)

	store := NewStore(discardLogger())
	require.NoError(t, store.WriteDataset(ctx, path, ds))

	got, err := store.ReadDataset(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, ds.Lats, got.Lats)
	assert.Equal(t, ds.Lons, got.Lons)
	assert.Equal(t, ds.Dates, got.Dates)
	assert.Equal(t, 24.0, got.Threshold.At(0, 0, 0))
	assert.True(t, math.IsNaN(got.Threshold.At(1, 0, 0)))
	assert.Equal(t, 1.0, got.Mask.At(1, 1, 2))
	assert.Equal(t, 0.0, got.Mask.At(0, 0, 0))
	assert.Equal(t, 35.25, got.Actual.At(1, 1, 2))
}

func TestStore_WriteRequiresThresholdAndMask(t *testing.T) {
	err := NewStore(discardLogger()).WriteDataset(context.Background(), filepath.Join(t.TempDir(), "p.nc"), sampleDataset(t))
	assert.Error(t, err)
}

func TestParseTimeUnits(t *testing.T) {
	tests := []struct {
		units    string
		wantStep time.Duration
		wantRef  time.Time
	}{
		{"hours since 1900-01-01 00:00:00", time.Hour, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"days since 1970-01-01", 24 * time.Hour, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"seconds since 2000-01-01T12:00:00Z", time.Second, time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"minutes since 1850-1-1", time.Minute, time.Date(1850, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.units, func(t *testing.T) {
			step, ref, err := parseTimeUnits(tt.units)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStep, step)
			assert.True(t, tt.wantRef.Equal(ref), "got %s", ref)
		})
	}

	for _, bad := range []string{"hours", "fortnights since 1900-01-01", "days since yesterday"} {
		_, _, err := parseTimeUnits(bad)
		assert.Error(t, err, bad)
	}
}
