package domain

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// PercentileMethod selects how a percentile is read off a sorted sample.
type PercentileMethod string

const (
	// PercentileLinear interpolates linearly between the two closest ranks.
	PercentileLinear PercentileMethod = "linear"
	// PercentileEmpirical takes the empirical-CDF quantile (no interpolation).
	PercentileEmpirical PercentileMethod = "empirical"
)

// ParsePercentileMethod validates a configured method name.
func ParsePercentileMethod(s string) (PercentileMethod, error) {
	switch m := PercentileMethod(s); m {
	case PercentileLinear, PercentileEmpirical:
		return m, nil
	}
	return "", fmt.Errorf("unknown percentile method %q", s)
}

// ThresholdOptions configures ComputeThreshold.
type ThresholdOptions struct {
	Percentile float64 // in (0, 100); 90 when zero
	Method     PercentileMethod
}

// Series is a time-indexed field with its decoded calendar dates.
type Series struct {
	Dates  []time.Time
	Values *Field
}

// ThresholdResult carries the per-date threshold field and the dates for
// which no climatology sample shared the calendar day.
type ThresholdResult struct {
	Threshold    *Field
	MissingDates []time.Time
}

type monthDay struct {
	month time.Month
	day   int
}

func monthDayOf(t time.Time) monthDay { return monthDay{t.Month(), t.Day()} }

// ComputeThreshold derives a calendar-day climatological threshold. For each
// actual date, every climatology sample sharing its (month, day) is pooled
// regardless of year and the percentile is taken per cell, ignoring NaN.
// Dates without any matching sample get an all-NaN threshold and are listed
// in MissingDates; they are logged but never fail the computation.
func ComputeThreshold(actual, climatology Series, opts ThresholdOptions, logger *slog.Logger) (ThresholdResult, error) {
	if opts.Percentile == 0 {
		opts.Percentile = 90
	}
	if opts.Percentile <= 0 || opts.Percentile >= 100 {
		return ThresholdResult{}, fmt.Errorf("compute threshold: percentile %g outside (0, 100)", opts.Percentile)
	}
	if opts.Method == "" {
		opts.Method = PercentileLinear
	}
	if err := checkSeries("actual", actual); err != nil {
		return ThresholdResult{}, err
	}
	if err := checkSeries("climatology", climatology); err != nil {
		return ThresholdResult{}, err
	}

	nt, nlat, nlon := actual.Values.Shape()
	_, clat, clon := climatology.Values.Shape()
	if nlat != clat || nlon != clon {
		return ThresholdResult{}, fmt.Errorf("compute threshold: actual grid (%d, %d) vs climatology grid (%d, %d): %w",
			nlat, nlon, clat, clon, ErrShapeMismatch)
	}

	byDay := make(map[monthDay][]int)
	for i, d := range climatology.Dates {
		k := monthDayOf(d)
		byDay[k] = append(byDay[k], i)
	}

	out := ThresholdResult{Threshold: NewField(nt, nlat, nlon)}
	computed := make(map[monthDay]Slice)
	for t, date := range actual.Dates {
		k := monthDayOf(date)
		dst := out.Threshold.Slice(t)

		if cached, ok := computed[k]; ok {
			copy(dst.Values, cached.Values)
			continue
		}

		samples := byDay[k]
		if len(samples) == 0 {
			for i := range dst.Values {
				dst.Values[i] = math.NaN()
			}
			out.MissingDates = append(out.MissingDates, date)
			logger.Warn("no climatology samples for calendar day, threshold marked missing",
				"date", DateKey(date), "grid", fmt.Sprintf("%dx%d", nlat, nlon))
			continue
		}

		buf := make([]float64, 0, len(samples))
		for cell := range dst.Values {
			buf = buf[:0]
			for _, s := range samples {
				v := climatology.Values.Slice(s).Values[cell]
				if !math.IsNaN(v) {
					buf = append(buf, v)
				}
			}
			dst.Values[cell] = Percentile(buf, opts.Percentile, opts.Method)
		}
		computed[k] = dst
	}
	return out, nil
}

func checkSeries(name string, s Series) error {
	if s.Values == nil {
		return fmt.Errorf("compute threshold: %s series has no values: %w", name, ErrShapeMismatch)
	}
	nt, _, _ := s.Values.Shape()
	if nt != len(s.Dates) {
		return fmt.Errorf("compute threshold: %s series has %d timesteps but %d dates: %w",
			name, nt, len(s.Dates), ErrShapeMismatch)
	}
	return nil
}

// Percentile returns the p-th percentile (0 to 100) of values. values is sorted
// in place. NaN is returned for an empty sample.
func Percentile(values []float64, p float64, method PercentileMethod) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sort.Float64s(values)
	if method == PercentileEmpirical {
		return stat.Quantile(p/100, stat.Empirical, values, nil)
	}

	rank := p / 100 * float64(len(values)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return values[lo]
	}
	frac := rank - float64(lo)
	return values[lo] + frac*(values[hi]-values[lo])
}

// ExceedanceMask marks 1 where actual > threshold and 0 everywhere else,
// including wherever either side is NaN.
func ExceedanceMask(actual, threshold *Field) (*Field, error) {
	if actual == nil || threshold == nil {
		return nil, errors.New("exceedance mask: nil field")
	}
	if !sameShape(actual, threshold) {
		return nil, fmt.Errorf("exceedance mask: %w", ErrShapeMismatch)
	}
	nt, nlat, nlon := actual.Shape()
	out := NewField(nt, nlat, nlon)
	a, th, m := actual.Values(), threshold.Values(), out.Values()
	for i := range a {
		if a[i] > th[i] {
			m[i] = 1
		}
	}
	return out, nil
}
