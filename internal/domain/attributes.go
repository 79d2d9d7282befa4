package domain

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// IntensityStatistic summarizes the anomalies of a cluster's members.
type IntensityStatistic string

const (
	IntensityMean   IntensityStatistic = "mean"
	IntensityMedian IntensityStatistic = "median"
	IntensityMax    IntensityStatistic = "max"
)

// ParseIntensityStatistic validates a configured statistic name.
func ParseIntensityStatistic(s string) (IntensityStatistic, error) {
	switch st := IntensityStatistic(s); st {
	case IntensityMean, IntensityMedian, IntensityMax:
		return st, nil
	}
	return "", fmt.Errorf("unknown intensity statistic %q", s)
}

// ComputeAttributes fills in area, intensity, peak anomaly, and area-weighted
// centroid for every cluster in place. anomaly is actual − threshold for the
// same timestep. Membership is left untouched.
//
// On periodic grids the cluster's columns are unwrapped starting just after
// the widest run of unoccupied columns, so a cluster straddling the seam, or
// one wider than 180°, averages over its own extent rather than the
// complement.
func ComputeAttributes(set *ClusterSet, anomaly Slice, g *Grid, statistic IntensityStatistic) error {
	nlat, nlon := g.Shape()
	if anomaly.NLat != nlat || anomaly.NLon != nlon {
		return fmt.Errorf("compute attributes: anomaly (%d, %d) vs grid (%d, %d): %w",
			anomaly.NLat, anomaly.NLon, nlat, nlon, ErrShapeMismatch)
	}
	if statistic == "" {
		statistic = IntensityMean
	}

	for _, c := range set.Clusters() {
		if len(c.Cells) == 0 {
			continue
		}
		weights := make([]float64, len(c.Cells))
		lats := make([]float64, len(c.Cells))
		lons := make([]float64, len(c.Cells))
		values := make([]float64, 0, len(c.Cells))

		var unwrap map[int]float64
		if g.Periodic() {
			unwrap = unwrappedLons(c.Cells, g)
		}
		for i, cell := range c.Cells {
			weights[i] = g.CellArea(cell.Row)
			lats[i] = g.Lat(cell.Row)
			lon := g.Lon(cell.Col)
			if unwrap != nil {
				lon = unwrap[cell.Col]
			}
			lons[i] = lon
			if v := anomaly.At(cell.Row, cell.Col); !math.IsNaN(v) {
				values = append(values, v)
			}
		}

		c.AreaKm2 = floats.Sum(weights)
		c.CentroidLat = stat.Mean(lats, weights)
		c.CentroidLon = stat.Mean(lons, weights)
		if g.Periodic() {
			c.CentroidLon = g.normalizeLon(c.CentroidLon)
		}
		c.Intensity = summarize(values, statistic)
		if len(values) > 0 {
			c.MaxAnomaly = floats.Max(values)
		} else {
			c.MaxAnomaly = math.NaN()
		}
	}
	return nil
}

// unwrappedLons maps each occupied column to a continuous longitude. The cut
// goes through the largest circular gap between occupied columns; ties keep
// the lowest-indexed gap, with the seam gap checked first.
func unwrappedLons(cells []Cell, g *Grid) map[int]float64 {
	_, nlon := g.Shape()
	seen := make(map[int]bool, len(cells))
	cols := make([]int, 0, len(cells))
	for _, cell := range cells {
		if !seen[cell.Col] {
			seen[cell.Col] = true
			cols = append(cols, cell.Col)
		}
	}
	sort.Ints(cols)

	start := cols[0]
	widest := cols[0] + nlon - cols[len(cols)-1]
	for i := 1; i < len(cols); i++ {
		if gap := cols[i] - cols[i-1]; gap > widest {
			widest, start = gap, cols[i]
		}
	}

	out := make(map[int]float64, len(cols))
	base := g.Lon(start)
	for _, col := range cols {
		steps := (col - start + nlon) % nlon
		out[col] = base + float64(steps)*g.ResolutionLon()
	}
	return out
}

func summarize(values []float64, statistic IntensityStatistic) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	switch statistic {
	case IntensityMedian:
		return Percentile(append([]float64(nil), values...), 50, PercentileLinear)
	case IntensityMax:
		return floats.Max(values)
	default:
		return stat.Mean(values, nil)
	}
}
