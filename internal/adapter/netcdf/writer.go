package netcdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
)

// Variable names of the processed dataset written by the threshold stage.
const (
	VarLat       = "lat"
	VarLon       = "lon"
	VarTime      = "time"
	VarActual    = "T_actual"
	VarThreshold = "T_threshold"
	VarMask      = "heatwave_mask"

	processedTimeUnits = "hours since 1900-01-01 00:00:00"
)

var processedEpoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// Store writes and reads the processed dataset: actual temperature,
// calendar-day threshold, and the persistence-filtered exceedance mask.
type Store struct {
	logger *slog.Logger
}

// NewStore creates a processed dataset store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

// WriteDataset writes ds to path, creating parent directories as needed.
// Threshold and Mask must be present.
func (s *Store) WriteDataset(ctx context.Context, path string, ds *domain.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ds.Validate(); err != nil {
		return fmt.Errorf("write dataset %s: %w", path, err)
	}
	if ds.Threshold == nil || ds.Mask == nil {
		return fmt.Errorf("write dataset %s: threshold and mask are required", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write dataset %s: %w", path, err)
	}

	nt, nlat, nlon := ds.Actual.Shape()
	h := cdf.NewHeader([]string{VarTime, VarLat, VarLon}, []int{nt, nlat, nlon})
	h.AddAttribute("", "title", "heatwave processed dataset")
	h.AddAttribute("", "created", time.Now().UTC().Format(time.RFC3339))

	h.AddVariable(VarLat, []string{VarLat}, []float64{0})
	h.AddAttribute(VarLat, "units", "degrees_north")
	h.AddVariable(VarLon, []string{VarLon}, []float64{0})
	h.AddAttribute(VarLon, "units", "degrees_east")
	h.AddVariable(VarTime, []string{VarTime}, []float64{0})
	h.AddAttribute(VarTime, "units", processedTimeUnits)
	h.AddAttribute(VarTime, "calendar", "gregorian")

	fields := []struct {
		name, units, long string
		data              *domain.Field
	}{
		{VarActual, "degC", "daily 2 m air temperature", ds.Actual},
		{VarThreshold, "degC", "calendar-day percentile threshold", ds.Threshold},
		{VarMask, "1", "persistence-filtered exceedance mask", ds.Mask},
	}
	dims := []string{VarTime, VarLat, VarLon}
	for _, f := range fields {
		h.AddVariable(f.name, dims, []float32{0})
		h.AddAttribute(f.name, "units", f.units)
		h.AddAttribute(f.name, "long_name", f.long)
	}
	h.Define()

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write dataset %s: %w", path, err)
	}
	defer out.Close()

	ff, err := cdf.Create(out, h)
	if err != nil {
		return fmt.Errorf("write dataset %s: %w", path, err)
	}

	hours := make([]float64, len(ds.Dates))
	for i, d := range ds.Dates {
		hours[i] = domain.Day(d).Sub(processedEpoch).Hours()
	}
	if err := writeFloat64(ff, VarLat, ds.Lats); err != nil {
		return fmt.Errorf("write dataset %s: %w", path, err)
	}
	if err := writeFloat64(ff, VarLon, ds.Lons); err != nil {
		return fmt.Errorf("write dataset %s: %w", path, err)
	}
	if err := writeFloat64(ff, VarTime, hours); err != nil {
		return fmt.Errorf("write dataset %s: %w", path, err)
	}
	for _, f := range fields {
		if err := writeFloat32(ff, f.name, f.data.Values()); err != nil {
			return fmt.Errorf("write dataset %s: %w", path, err)
		}
	}
	if err := cdf.UpdateNumRecs(out); err != nil {
		return fmt.Errorf("write dataset %s: %w", path, err)
	}

	s.logger.Info("wrote processed dataset", "path", path, "timesteps", nt, "nlat", nlat, "nlon", nlon)
	return nil
}

// ReadDataset loads a dataset written by WriteDataset.
func (s *Store) ReadDataset(ctx context.Context, path string) (*domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	defer f.Close()

	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("read dataset header %s: %w", path, err)
	}

	ds := &domain.Dataset{}
	if ds.Lats, err = readVar(ff, VarLat); err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	if ds.Lons, err = readVar(ff, VarLon); err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	if ds.Dates, err = readTime(ff, VarTime); err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}

	nt, nlat, nlon := len(ds.Dates), len(ds.Lats), len(ds.Lons)
	targets := []struct {
		name string
		dst  **domain.Field
	}{
		{VarActual, &ds.Actual},
		{VarThreshold, &ds.Threshold},
		{VarMask, &ds.Mask},
	}
	for _, tgt := range targets {
		values, err := readVar(ff, tgt.name)
		if err != nil {
			return nil, fmt.Errorf("read dataset %s: %w", path, err)
		}
		field, err := domain.FieldFromValues(nt, nlat, nlon, values)
		if err != nil {
			return nil, fmt.Errorf("read dataset %s: variable %s: %w", path, tgt.name, err)
		}
		*tgt.dst = field
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return ds, nil
}

// WriteSeries writes ds.Actual in the input layout read by Reader, under the
// variable names in opts. Values are converted back to Kelvin when
// opts.KelvinToCelsius is set, so a round trip through Reader is lossless
// up to float32 precision.
func WriteSeries(ctx context.Context, path string, opts Options, ds *domain.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ds.Validate(); err != nil {
		return fmt.Errorf("write series %s: %w", path, err)
	}
	opts = opts.withDefaults()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write series %s: %w", path, err)
	}

	nt, nlat, nlon := ds.Actual.Shape()
	h := cdf.NewHeader([]string{opts.TimeVar, opts.LatVar, opts.LonVar}, []int{nt, nlat, nlon})
	h.AddVariable(opts.LatVar, []string{opts.LatVar}, []float64{0})
	h.AddAttribute(opts.LatVar, "units", "degrees_north")
	h.AddVariable(opts.LonVar, []string{opts.LonVar}, []float64{0})
	h.AddAttribute(opts.LonVar, "units", "degrees_east")
	h.AddVariable(opts.TimeVar, []string{opts.TimeVar}, []float64{0})
	h.AddAttribute(opts.TimeVar, "units", processedTimeUnits)
	h.AddVariable(opts.TemperatureVar, []string{opts.TimeVar, opts.LatVar, opts.LonVar}, []float32{0})
	units := "degC"
	if opts.KelvinToCelsius {
		units = "K"
	}
	h.AddAttribute(opts.TemperatureVar, "units", units)
	h.Define()

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write series %s: %w", path, err)
	}
	defer out.Close()

	ff, err := cdf.Create(out, h)
	if err != nil {
		return fmt.Errorf("write series %s: %w", path, err)
	}

	hours := make([]float64, len(ds.Dates))
	for i, d := range ds.Dates {
		hours[i] = domain.Day(d).Sub(processedEpoch).Hours()
	}
	values := append([]float64(nil), ds.Actual.Values()...)
	if opts.KelvinToCelsius {
		for i := range values {
			values[i] += kelvinOffset
		}
	}
	for _, w := range []func() error{
		func() error { return writeFloat64(ff, opts.LatVar, ds.Lats) },
		func() error { return writeFloat64(ff, opts.LonVar, ds.Lons) },
		func() error { return writeFloat64(ff, opts.TimeVar, hours) },
		func() error { return writeFloat32(ff, opts.TemperatureVar, values) },
		func() error { return cdf.UpdateNumRecs(out) },
	} {
		if err := w(); err != nil {
			return fmt.Errorf("write series %s: %w", path, err)
		}
	}
	return nil
}

func writeFloat64(ff *cdf.File, name string, data []float64) error {
	end := ff.Header.Lengths(name)
	if n := product(end); n != len(data) {
		return fmt.Errorf("variable %s: dims are %d but array length is %d", name, n, len(data))
	}
	w := ff.Writer(name, make([]int, len(end)), end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write variable %s: %w", name, err)
	}
	return nil
}

func writeFloat32(ff *cdf.File, name string, data []float64) error {
	end := ff.Header.Lengths(name)
	if n := product(end); n != len(data) {
		return fmt.Errorf("variable %s: dims are %d but array length is %d", name, n, len(data))
	}
	data32 := make([]float32, len(data))
	for i, v := range data {
		data32[i] = float32(v)
	}
	w := ff.Writer(name, make([]int, len(end)), end)
	if _, err := w.Write(data32); err != nil {
		return fmt.Errorf("write variable %s: %w", name, err)
	}
	return nil
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
