package netcdf

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
)

const kelvinOffset = 273.15

// Options names the input variables and controls unit conversion.
type Options struct {
	TemperatureVar  string
	LatVar          string
	LonVar          string
	TimeVar         string
	KelvinToCelsius bool
}

func (o Options) withDefaults() Options {
	if o.TemperatureVar == "" {
		o.TemperatureVar = "t2m"
	}
	if o.LatVar == "" {
		o.LatVar = "latitude"
	}
	if o.LonVar == "" {
		o.LonVar = "longitude"
	}
	if o.TimeVar == "" {
		o.TimeVar = "time"
	}
	return o
}

// Reader loads daily temperature series from NetCDF classic files.
type Reader struct {
	opts   Options
	logger *slog.Logger
}

// NewReader creates a Reader for the given variable names.
func NewReader(opts Options, logger *slog.Logger) *Reader {
	return &Reader{opts: opts.withDefaults(), logger: logger}
}

// ReadSeries reads the temperature variable with its axes. The returned
// dataset carries only the Actual field; packed values are unpacked, fill
// values become NaN, and Kelvin is converted to Celsius when configured.
func (r *Reader) ReadSeries(ctx context.Context, path string) (*domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open netcdf %s: %w", path, err)
	}
	defer f.Close()

	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("read netcdf header %s: %w", path, err)
	}

	lats, err := readVar(ff, r.opts.LatVar)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	lons, err := readVar(ff, r.opts.LonVar)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	dates, err := readTime(ff, r.opts.TimeVar)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	dims := ff.Header.Lengths(r.opts.TemperatureVar)
	if len(dims) != 3 || dims[0] != len(dates) || dims[1] != len(lats) || dims[2] != len(lons) {
		return nil, fmt.Errorf("read %s: variable %s has shape %v, want (%d, %d, %d): %w",
			path, r.opts.TemperatureVar, dims, len(dates), len(lats), len(lons), domain.ErrShapeMismatch)
	}
	values, err := readVar(ff, r.opts.TemperatureVar)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if r.opts.KelvinToCelsius {
		for i, v := range values {
			values[i] = v - kelvinOffset
		}
	}

	actual, err := domain.FieldFromValues(len(dates), len(lats), len(lons), values)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	r.logger.Info("loaded temperature series",
		"path", path,
		"variable", r.opts.TemperatureVar,
		"timesteps", len(dates),
		"nlat", len(lats),
		"nlon", len(lons),
	)
	return &domain.Dataset{Lats: lats, Lons: lons, Dates: dates, Actual: actual}, nil
}

// readVar reads a whole variable as float64, applying scale_factor,
// add_offset, and _FillValue/missing_value.
func readVar(ff *cdf.File, name string) ([]float64, error) {
	dims := ff.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("variable %s not in file", name)
	}
	r := ff.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("read variable %s: %w", name, err)
	}

	var out []float64
	switch b := buf.(type) {
	case []float64:
		out = b
	case []float32:
		out = make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
	case []int32:
		out = make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
	case []int16:
		out = make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
	case []int8:
		out = make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("variable %s: unsupported type %T", name, buf)
	}

	fills := append(numericAttr(ff, name, "_FillValue"), numericAttr(ff, name, "missing_value")...)
	scale, offset := 1.0, 0.0
	if v := numericAttr(ff, name, "scale_factor"); len(v) > 0 {
		scale = v[0]
	}
	if v := numericAttr(ff, name, "add_offset"); len(v) > 0 {
		offset = v[0]
	}
	for i, v := range out {
		if isFill(v, fills) {
			out[i] = math.NaN()
			continue
		}
		out[i] = v*scale + offset
	}
	return out, nil
}

func isFill(v float64, fills []float64) bool {
	for _, f := range fills {
		if v == f || (math.Abs(f) >= 9.9e36 && math.Abs(v) >= 9.9e36) {
			return true
		}
	}
	return false
}

// numericAttr returns a numeric attribute as float64s, or nil when absent.
func numericAttr(ff *cdf.File, name, attr string) []float64 {
	switch v := ff.Header.GetAttribute(name, attr).(type) {
	case []float64:
		return v
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out
	case []int32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out
	case []int16:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out
	}
	return nil
}

// readTime decodes a CF time coordinate into UTC calendar days.
func readTime(ff *cdf.File, name string) ([]time.Time, error) {
	units, ok := ff.Header.GetAttribute(name, "units").(string)
	if !ok {
		return nil, fmt.Errorf("variable %s: missing units attribute", name)
	}
	step, ref, err := parseTimeUnits(units)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	raw, err := readVar(ff, name)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(raw))
	for i, v := range raw {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("variable %s: missing value at index %d", name, i)
		}
		out[i] = domain.Day(ref.Add(time.Duration(math.Round(v * float64(step)))))
	}
	return out, nil
}

var refLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.0",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2 15:04:05",
	"2006-1-2",
}

// parseTimeUnits splits a CF "<unit> since <reference>" string.
func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	unit, ref, found := strings.Cut(strings.TrimSpace(units), " since ")
	if !found {
		return 0, time.Time{}, fmt.Errorf("time units %q: want \"<unit> since <reference>\"", units)
	}

	var step time.Duration
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "days", "day", "d":
		step = 24 * time.Hour
	case "hours", "hour", "h":
		step = time.Hour
	case "minutes", "minute", "min":
		step = time.Minute
	case "seconds", "second", "s":
		step = time.Second
	default:
		return 0, time.Time{}, fmt.Errorf("time units %q: unsupported unit %q", units, unit)
	}

	ref = strings.TrimSuffix(strings.TrimSpace(ref), " UTC")
	for _, layout := range refLayouts {
		if t, err := time.Parse(layout, ref); err == nil {
			return step, t.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("time units %q: unparseable reference date", units)
}
