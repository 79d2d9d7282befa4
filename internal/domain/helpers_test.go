package domain

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testGrid builds an nlat x nlon one-degree grid starting at (lat0, lon0).
func testGrid(t *testing.T, nlat, nlon int, lat0, lon0, step float64, periodic bool) *Grid {
	t.Helper()
	lats := make([]float64, nlat)
	for i := range lats {
		lats[i] = lat0 + float64(i)*step
	}
	lons := make([]float64, nlon)
	for j := range lons {
		lons[j] = lon0 + float64(j)*step
	}
	g, err := NewGrid(lats, lons, periodic)
	require.NoError(t, err)
	return g
}

// sliceFromRows builds a Slice from literal rows; any negative value becomes NaN.
func sliceFromRows(rows [][]float64) Slice {
	s := NewSlice(len(rows), len(rows[0]), 0)
	for i, row := range rows {
		for j, v := range row {
			if v < 0 {
				v = math.NaN()
			}
			s.Set(i, j, v)
		}
	}
	return s
}

// setFromCells builds a ClusterSet with one cluster per cell list, IDs from 1.
func setFromCells(t *testing.T, clusters ...[]Cell) *ClusterSet {
	t.Helper()
	set := NewClusterSet()
	for i, cells := range clusters {
		require.NoError(t, set.Add(&Cluster{ID: i + 1, Cells: cells, AreaKm2: float64(len(cells)), Intensity: float64(i + 1)}))
	}
	return set
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cellSets(set *ClusterSet) [][]Cell {
	out := make([][]Cell, 0, set.Len())
	for _, c := range set.Clusters() {
		out = append(out, c.Cells)
	}
	return out
}
