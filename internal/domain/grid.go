package domain

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for cell areas.
const EarthRadiusKm = 6371.0

// spacingTolerance is the allowed relative deviation of any step from the
// mean step of an axis.
const spacingTolerance = 0.01

// Cell addresses one grid point by (latitude row, longitude column).
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Grid is a rectilinear latitude/longitude grid.
type Grid struct {
	lats     []float64
	lons     []float64
	resLat   float64 // signed mean step, degrees
	resLon   float64
	periodic bool
	lonMin   float64
	areas    []float64 // per row, km²
}

// NewGrid validates the coordinate axes and precomputes per-row cell areas.
// Both axes need at least two strictly monotonic, evenly spaced points.
// When periodic is true, column 0 and column len(lons)-1 are neighbours.
func NewGrid(lats, lons []float64, periodic bool) (*Grid, error) {
	resLat, err := axisResolution("latitude", lats)
	if err != nil {
		return nil, err
	}
	resLon, err := axisResolution("longitude", lons)
	if err != nil {
		return nil, err
	}
	for _, lat := range lats {
		if lat < -90 || lat > 90 {
			return nil, &InvalidGridError{Axis: "latitude", Reason: fmt.Sprintf("value %g outside [-90, 90]", lat)}
		}
	}

	g := &Grid{
		lats:     append([]float64(nil), lats...),
		lons:     append([]float64(nil), lons...),
		resLat:   resLat,
		resLon:   resLon,
		periodic: periodic,
		lonMin:   math.Min(lons[0], lons[len(lons)-1]),
		areas:    make([]float64, len(lats)),
	}

	dLat := math.Abs(resLat) * math.Pi / 180
	dLon := math.Abs(resLon) * math.Pi / 180
	for i, lat := range lats {
		g.areas[i] = EarthRadiusKm * EarthRadiusKm * dLon * dLat * math.Cos(lat*math.Pi/180)
	}
	return g, nil
}

// axisResolution returns the mean step of a coordinate axis, rejecting empty,
// non-monotonic, or unevenly spaced axes.
func axisResolution(axis string, values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, &InvalidGridError{Axis: axis, Reason: "empty"}
	}
	if len(values) < 2 {
		return 0, &InvalidGridError{Axis: axis, Reason: "need at least two points to derive spacing"}
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, &InvalidGridError{Axis: axis, Reason: fmt.Sprintf("non-finite value at index %d", i)}
		}
	}

	ascending := values[1] > values[0]
	for i := 1; i < len(values); i++ {
		step := values[i] - values[i-1]
		if step == 0 || (step > 0) != ascending {
			return 0, &InvalidGridError{Axis: axis, Reason: fmt.Sprintf("not strictly monotonic at index %d", i)}
		}
	}

	mean := (values[len(values)-1] - values[0]) / float64(len(values)-1)
	for i := 1; i < len(values); i++ {
		step := values[i] - values[i-1]
		if math.Abs(step-mean) > spacingTolerance*math.Abs(mean) {
			return 0, &InvalidGridError{
				Axis:   axis,
				Reason: fmt.Sprintf("uneven spacing at index %d: step %g, mean %g", i, step, mean),
			}
		}
	}
	return mean, nil
}

// Shape returns (nlat, nlon).
func (g *Grid) Shape() (int, int) { return len(g.lats), len(g.lons) }

// Lat returns the latitude of a row.
func (g *Grid) Lat(row int) float64 { return g.lats[row] }

// Lon returns the longitude of a column.
func (g *Grid) Lon(col int) float64 { return g.lons[col] }

// Lats returns a copy of the latitude axis.
func (g *Grid) Lats() []float64 { return append([]float64(nil), g.lats...) }

// Lons returns a copy of the longitude axis.
func (g *Grid) Lons() []float64 { return append([]float64(nil), g.lons...) }

// ResolutionLat is the signed mean latitude step in degrees.
func (g *Grid) ResolutionLat() float64 { return g.resLat }

// ResolutionLon is the signed mean longitude step in degrees.
func (g *Grid) ResolutionLon() float64 { return g.resLon }

// Periodic reports whether the first and last longitude columns touch.
func (g *Grid) Periodic() bool { return g.periodic }

// CellArea returns the area in km² of any cell on the given row:
// R² · Δlon · Δlat · cos(lat), with the steps in radians.
func (g *Grid) CellArea(row int) float64 { return g.areas[row] }

// Contains reports whether c lies on the grid.
func (g *Grid) Contains(c Cell) bool {
	return c.Row >= 0 && c.Row < len(g.lats) && c.Col >= 0 && c.Col < len(g.lons)
}

// Neighbors returns the 4-connected neighbours of a cell. Longitude wraps
// when the grid is periodic; latitude never wraps across the poles.
func (g *Grid) Neighbors(row, col int) []Cell {
	nlat, nlon := g.Shape()
	out := make([]Cell, 0, 4)
	if row > 0 {
		out = append(out, Cell{row - 1, col})
	}
	if row < nlat-1 {
		out = append(out, Cell{row + 1, col})
	}
	switch {
	case col > 0:
		out = append(out, Cell{row, col - 1})
	case g.periodic && nlon > 2:
		out = append(out, Cell{row, nlon - 1})
	}
	switch {
	case col < nlon-1:
		out = append(out, Cell{row, col + 1})
	case g.periodic && nlon > 2:
		out = append(out, Cell{row, 0})
	}
	return out
}

// normalizeLon maps a longitude into the grid's own 360° window so derived
// longitudes use the same convention as the axis.
func (g *Grid) normalizeLon(lon float64) float64 {
	lon = math.Mod(lon-g.lonMin, 360)
	if lon < 0 {
		lon += 360
	}
	return lon + g.lonMin
}
