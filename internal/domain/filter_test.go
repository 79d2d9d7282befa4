package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterClusters_DropsSmallAndRelabels(t *testing.T) {
	g := testGrid(t, 4, 4, 0, 0, 1, false)
	mask := sliceFromRows([][]float64{
		{1, 0, 1, 1},
		{0, 0, 1, 1},
		{1, 0, 0, 0},
		{1, 0, 0, 1},
	})
	set, err := DetectClusters(mask, g)
	require.NoError(t, err)
	require.Equal(t, 4, set.Len())

	// Two equatorial cells are ~24700 km²; a single cell ~12360 km².
	filtered, filteredMask := FilterClusters(set, g, 20000)

	require.Equal(t, 2, filtered.Len())
	assert.Equal(t, []int{1, 2}, filtered.IDs())
	assert.Equal(t, []Cell{{0, 2}, {0, 3}, {1, 2}, {1, 3}}, filtered.Clusters()[0].Cells)
	assert.Equal(t, []Cell{{2, 0}, {3, 0}}, filtered.Clusters()[1].Cells)
	assert.InDelta(t, ClusterArea(filtered.Clusters()[1], g), filtered.Clusters()[1].AreaKm2, 1e-9)

	assert.Equal(t, 6, filteredMask.Count())
	assert.True(t, math.IsNaN(filteredMask.At(0, 0)))
	assert.Equal(t, 1.0, filteredMask.At(3, 0))

	// The input set keeps its original labels.
	assert.Equal(t, 4, set.Len())
	assert.Equal(t, []Cell{{0, 0}}, set.Clusters()[0].Cells)
}

func TestFilterClusters_AllFilteredOut(t *testing.T) {
	g := testGrid(t, 2, 2, 0, 0, 1, false)
	set, err := DetectClusters(sliceFromRows([][]float64{{1, 0}, {0, 1}}), g)
	require.NoError(t, err)

	filtered, mask := FilterClusters(set, g, 1e9)
	assert.Equal(t, 0, filtered.Len())
	assert.Zero(t, mask.Count())
}

func TestFilterClusters_MonotonicInThreshold(t *testing.T) {
	g := testGrid(t, 6, 6, 40, 0, 1, true)
	mask := sliceFromRows([][]float64{
		{1, 1, 0, 0, 0, 1},
		{0, 0, 0, 1, 0, 0},
		{1, 1, 1, 1, 0, 1},
		{0, 0, 0, 0, 0, 1},
		{1, 0, 1, 0, 0, 1},
		{1, 0, 1, 1, 0, 0},
	})
	set, err := DetectClusters(mask, g)
	require.NoError(t, err)

	prev := math.MaxInt
	for _, minArea := range []float64{0, 5000, 10000, 20000, 40000, 60000, 1e6} {
		filtered, _ := FilterClusters(set, g, minArea)
		assert.LessOrEqual(t, filtered.Len(), prev, "minArea %g", minArea)
		prev = filtered.Len()
	}
}
