package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMember(t *testing.T) {
	tests := []struct {
		name string
		v    float64
		want bool
	}{
		{"mask one", 1, true},
		{"positive anomaly", 0.25, true},
		{"zero", 0, false},
		{"negative", -3, false},
		{"missing", math.NaN(), false},
		{"positive infinity", math.Inf(1), false},
		{"negative infinity", math.Inf(-1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isMember(tt.v))
		})
	}
}

func TestDetectClusters_IgnoresInfiniteCells(t *testing.T) {
	g := testGrid(t, 2, 3, 0, 0, 1, false)
	s := NewSlice(2, 3, 0)
	s.Set(0, 0, 1)
	s.Set(0, 1, math.Inf(1))
	s.Set(0, 2, 1)

	set, err := DetectClusters(s, g)
	require.NoError(t, err)

	assert.Equal(t, 2, set.Len(), "an infinite cell must not bridge its neighbours")
	assert.Equal(t, 2, s.Count())
}
