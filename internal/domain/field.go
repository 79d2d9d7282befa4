package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/ctessum/sparse"
)

// Field is a dense (time, lat, lon) array of float64. NaN marks missing values.
type Field struct {
	data *sparse.DenseArray
}

// NewField allocates a zero-valued field.
func NewField(nt, nlat, nlon int) *Field {
	return &Field{data: sparse.ZerosDense(nt, nlat, nlon)}
}

// NewFieldFilled allocates a field with every element set to v.
func NewFieldFilled(nt, nlat, nlon int, v float64) *Field {
	f := NewField(nt, nlat, nlon)
	for i := range f.data.Elements {
		f.data.Elements[i] = v
	}
	return f
}

// FieldFromValues wraps row-major (time, lat, lon) values without copying.
func FieldFromValues(nt, nlat, nlon int, values []float64) (*Field, error) {
	if len(values) != nt*nlat*nlon {
		return nil, fmt.Errorf("field of shape (%d, %d, %d) needs %d values, got %d: %w",
			nt, nlat, nlon, nt*nlat*nlon, len(values), ErrShapeMismatch)
	}
	d := &sparse.DenseArray{Shape: []int{nt, nlat, nlon}, Elements: values}
	return &Field{data: d}, nil
}

// Shape returns (nt, nlat, nlon).
func (f *Field) Shape() (int, int, int) {
	return f.data.Shape[0], f.data.Shape[1], f.data.Shape[2]
}

// At returns the value at (t, row, col).
func (f *Field) At(t, row, col int) float64 {
	return f.data.Elements[f.offset(t, row, col)]
}

// Set stores v at (t, row, col).
func (f *Field) Set(t, row, col int, v float64) {
	f.data.Elements[f.offset(t, row, col)] = v
}

// Values exposes the row-major backing slice.
func (f *Field) Values() []float64 { return f.data.Elements }

// Slice returns a view of one timestep. Writes through the view modify f.
func (f *Field) Slice(t int) Slice {
	_, nlat, nlon := f.Shape()
	n := nlat * nlon
	return Slice{NLat: nlat, NLon: nlon, Values: f.data.Elements[t*n : (t+1)*n]}
}

// SetSlice copies s into timestep t.
func (f *Field) SetSlice(t int, s Slice) error {
	_, nlat, nlon := f.Shape()
	if s.NLat != nlat || s.NLon != nlon {
		return fmt.Errorf("set slice %d: (%d, %d) into (%d, %d): %w", t, s.NLat, s.NLon, nlat, nlon, ErrShapeMismatch)
	}
	copy(f.Slice(t).Values, s.Values)
	return nil
}

// Select returns a new field holding only the listed timesteps, in order.
func (f *Field) Select(indices []int) *Field {
	_, nlat, nlon := f.Shape()
	out := NewField(len(indices), nlat, nlon)
	for i, t := range indices {
		copy(out.Slice(i).Values, f.Slice(t).Values)
	}
	return out
}

func (f *Field) offset(t, row, col int) int {
	_, nlat, nlon := f.Shape()
	return (t*nlat+row)*nlon + col
}

func sameShape(a, b *Field) bool {
	at, ai, aj := a.Shape()
	bt, bi, bj := b.Shape()
	return at == bt && ai == bi && aj == bj
}

// Slice is one (lat, lon) timestep of a Field.
type Slice struct {
	NLat   int
	NLon   int
	Values []float64
}

// NewSlice allocates a slice with every element set to v.
func NewSlice(nlat, nlon int, v float64) Slice {
	s := Slice{NLat: nlat, NLon: nlon, Values: make([]float64, nlat*nlon)}
	if v != 0 {
		for i := range s.Values {
			s.Values[i] = v
		}
	}
	return s
}

// At returns the value at (row, col).
func (s Slice) At(row, col int) float64 { return s.Values[row*s.NLon+col] }

// Set stores v at (row, col).
func (s Slice) Set(row, col int, v float64) { s.Values[row*s.NLon+col] = v }

// Count returns the number of finite values greater than zero.
func (s Slice) Count() int {
	n := 0
	for _, v := range s.Values {
		if isMember(v) {
			n++
		}
	}
	return n
}

// Anomaly returns actual − threshold cell by cell; NaN on either side stays NaN.
func Anomaly(actual, threshold Slice) (Slice, error) {
	if actual.NLat != threshold.NLat || actual.NLon != threshold.NLon {
		return Slice{}, fmt.Errorf("anomaly: (%d, %d) vs (%d, %d): %w",
			actual.NLat, actual.NLon, threshold.NLat, threshold.NLon, ErrShapeMismatch)
	}
	out := NewSlice(actual.NLat, actual.NLon, 0)
	for i := range actual.Values {
		out.Values[i] = actual.Values[i] - threshold.Values[i]
	}
	return out, nil
}

// isMember is the single exceedance predicate used for clustering: a finite
// value strictly above zero. It accepts both 0/1 masks and signed anomalies.
func isMember(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// Dataset bundles the coordinate axes, the time axis, and the fields of one run.
// Threshold and Mask are nil until computed.
type Dataset struct {
	Lats      []float64
	Lons      []float64
	Dates     []time.Time
	Actual    *Field
	Threshold *Field
	Mask      *Field
}

// Validate checks that every present field matches the axes.
func (d *Dataset) Validate() error {
	if d.Actual == nil {
		return fmt.Errorf("dataset: missing actual field: %w", ErrShapeMismatch)
	}
	nt, nlat, nlon := d.Actual.Shape()
	if nt != len(d.Dates) || nlat != len(d.Lats) || nlon != len(d.Lons) {
		return fmt.Errorf("dataset: field (%d, %d, %d) vs axes (%d, %d, %d): %w",
			nt, nlat, nlon, len(d.Dates), len(d.Lats), len(d.Lons), ErrShapeMismatch)
	}
	for name, f := range map[string]*Field{"threshold": d.Threshold, "mask": d.Mask} {
		if f != nil && !sameShape(d.Actual, f) {
			return fmt.Errorf("dataset: %s field does not match actual field: %w", name, ErrShapeMismatch)
		}
	}
	return nil
}

// SelectDates keeps the timesteps whose date satisfies keep, returning a new
// dataset and the original indices that survived.
func (d *Dataset) SelectDates(keep func(time.Time) bool) (*Dataset, []int) {
	var idx []int
	for i, date := range d.Dates {
		if keep(date) {
			idx = append(idx, i)
		}
	}
	out := &Dataset{Lats: d.Lats, Lons: d.Lons, Dates: make([]time.Time, len(idx))}
	for i, t := range idx {
		out.Dates[i] = d.Dates[t]
	}
	out.Actual = d.Actual.Select(idx)
	if d.Threshold != nil {
		out.Threshold = d.Threshold.Select(idx)
	}
	if d.Mask != nil {
		out.Mask = d.Mask.Select(idx)
	}
	return out, idx
}
