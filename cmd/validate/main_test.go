package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
)

func june(d int) time.Time {
	return time.Date(2019, time.June, d, 0, 0, 0, 0, time.UTC)
}

func TestConsecutiveSegments(t *testing.T) {
	got := consecutiveSegments([]time.Time{june(1), june(2), june(3), june(10), june(11), june(20)})
	assert.Equal(t, []domain.Run{{Start: 0, End: 2}, {Start: 3, End: 4}, {Start: 5, End: 5}}, got)
	assert.Empty(t, consecutiveSegments(nil))
}

func TestValidatePersistence(t *testing.T) {
	dates := []time.Time{june(1), june(2), june(3), june(4), june(10)}
	ds := &domain.Dataset{
		Lats:      []float64{0, 1},
		Lons:      []float64{0, 1},
		Dates:     dates,
		Actual:    domain.NewFieldFilled(5, 2, 2, 25),
		Threshold: domain.NewFieldFilled(5, 2, 2, 20),
		Mask:      domain.NewField(5, 2, 2),
	}
	for d := 0; d < 3; d++ {
		ds.Mask.Set(d, 0, 0, 1)
	}
	require.True(t, validatePersistence(ds, 3).passed())

	// A lone masked day after the gap breaks the rule.
	ds.Mask.Set(4, 1, 1, 1)
	p := validatePersistence(ds, 3)
	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], "cell (1, 1)")

	// Masked but not above threshold.
	ds.Mask.Set(4, 1, 1, 0)
	ds.Actual.Set(1, 0, 0, 10)
	p = validatePersistence(ds, 3)
	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], "not above threshold")
}

func TestValidateEvents(t *testing.T) {
	good := domain.EventSummary{
		ID: "hw-a", StartDate: june(1), EndDate: june(2), DurationDays: 2, PeakDate: june(2),
		Path: []domain.CentroidPoint{{Date: june(1), ClusterID: 1}, {Date: june(2), ClusterID: 1}},
	}
	set := domain.NewClusterSet()
	require.NoError(t, set.Add(&domain.Cluster{ID: 1, Cells: []domain.Cell{{Row: 0, Col: 0}}}))
	artifacts := map[string]domain.DayArtifact{
		"20190601": {Date: june(1), Clusters: set},
		"20190602": {Date: june(2), Clusters: set},
	}
	require.True(t, validateEvents([]domain.EventSummary{good}, artifacts).passed())

	bad := good
	bad.ID = "hw-b"
	bad.DurationDays = 3
	dup := good
	missing := good
	missing.ID = "hw-c"
	missing.Path = []domain.CentroidPoint{{Date: june(1), ClusterID: 9}, {Date: june(2), ClusterID: 1}}

	p := validateEvents([]domain.EventSummary{good, bad, dup, missing}, artifacts)
	assert.Len(t, p.errors, 4, "%v", p.errors)
}
