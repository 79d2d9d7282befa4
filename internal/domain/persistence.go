package domain

import (
	"fmt"
	"time"
)

// DefaultMinConsecutiveDays is the shortest exceedance run kept by the
// persistence filter unless configured otherwise.
const DefaultMinConsecutiveDays = 3

// Run is an inclusive index range of consecutive exceedance timesteps.
type Run struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of timesteps in the run.
func (r Run) Len() int { return r.End - r.Start + 1 }

// PersistentRuns returns the maximal runs of exceedance (finite values > 0)
// in series whose length is at least minDays.
func PersistentRuns(series []float64, minDays int) []Run {
	return persistentRuns(series, nil, minDays)
}

// persistentRuns treats breaks[i] == true as a discontinuity between i-1 and i.
func persistentRuns(series []float64, breaks []bool, minDays int) []Run {
	var runs []Run
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start+1 >= minDays {
			runs = append(runs, Run{Start: start, End: end})
		}
		start = -1
	}
	for i, v := range series {
		if breaks != nil && breaks[i] {
			flush(i - 1)
		}
		if isMember(v) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i - 1)
	}
	flush(len(series) - 1)
	return runs
}

// ApplyPersistenceFilter keeps, per cell and independently along the time
// axis, only exceedance runs of at least minDays timesteps. Everything else,
// including shorter runs and NaN, becomes 0. The filter is purely temporal.
func ApplyPersistenceFilter(mask *Field, minDays int) *Field {
	return applyPersistence(mask, nil, minDays)
}

// ApplyPersistenceFilterDates is ApplyPersistenceFilter for a time axis that
// may skip days: a run also ends wherever two consecutive timesteps are not
// consecutive calendar days.
func ApplyPersistenceFilterDates(mask *Field, dates []time.Time, minDays int) (*Field, error) {
	nt, _, _ := mask.Shape()
	if len(dates) != nt {
		return nil, fmt.Errorf("persistence filter: %d dates for %d timesteps: %w", len(dates), nt, ErrShapeMismatch)
	}
	breaks := make([]bool, nt)
	for i := 1; i < nt; i++ {
		breaks[i] = !NextDay(dates[i-1], dates[i])
	}
	return applyPersistence(mask, breaks, minDays), nil
}

func applyPersistence(mask *Field, breaks []bool, minDays int) *Field {
	if minDays < 1 {
		minDays = 1
	}
	nt, nlat, nlon := mask.Shape()
	out := NewField(nt, nlat, nlon)
	series := make([]float64, nt)
	for row := 0; row < nlat; row++ {
		for col := 0; col < nlon; col++ {
			for t := 0; t < nt; t++ {
				series[t] = mask.At(t, row, col)
			}
			for _, r := range persistentRuns(series, breaks, minDays) {
				for t := r.Start; t <= r.End; t++ {
					out.Set(t, row, col, 1)
				}
			}
		}
	}
	return out
}
