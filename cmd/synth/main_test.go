package main

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
)

func smallParams() params {
	return params{seed: 7, nlat: 10, nlon: 12, lat0: 40, lon0: 0, step: 1, year: 2019, climStart: 2001, climEnd: 2003, noise: 1}
}

func TestGenerate_ShapesAndDates(t *testing.T) {
	p := smallParams()
	actual, clim := generate(p, defaultAnomalies(p))

	require.NoError(t, actual.Validate())
	require.NoError(t, clim.Validate())
	assert.Len(t, actual.Dates, 153, "1 May to 30 September")
	assert.Len(t, clim.Dates, 3*153)
	assert.Equal(t, time.Date(2019, time.May, 1, 0, 0, 0, 0, time.UTC), actual.Dates[0])

	_, err := domain.NewGrid(actual.Lats, actual.Lons, false)
	require.NoError(t, err)
}

func TestGenerate_Deterministic(t *testing.T) {
	p := smallParams()
	a1, _ := generate(p, nil)
	a2, _ := generate(p, nil)
	assert.Equal(t, a1.Actual.Values(), a2.Actual.Values())

	p.seed = 8
	a3, _ := generate(p, nil)
	assert.NotEqual(t, a1.Actual.Values(), a3.Actual.Values())
}

func TestAnomaly_DriftsAndExpires(t *testing.T) {
	a := anomaly{
		start: time.Date(2019, time.July, 10, 0, 0, 0, 0, time.UTC), days: 3,
		row: 5, col: 2, dCol: 1, amplitude: 10, sigma: 2,
	}

	assert.Equal(t, 10.0, a.at(a.start, 5, 2))
	assert.Equal(t, 10.0, a.at(a.start.AddDate(0, 0, 2), 5, 4), "centre moved two columns east")
	assert.Less(t, a.at(a.start.AddDate(0, 0, 2), 5, 2), 10.0)
	assert.Zero(t, a.at(a.start.AddDate(0, 0, 3), 5, 5), "expired")
	assert.Zero(t, a.at(a.start.AddDate(0, 0, -1), 5, 2), "not started")
}

func TestBaseline_PeaksInSummer(t *testing.T) {
	may := baseline(45, time.Date(2019, time.May, 1, 0, 0, 0, 0, time.UTC))
	july := baseline(45, time.Date(2019, time.July, 15, 0, 0, 0, 0, time.UTC))
	north := baseline(55, time.Date(2019, time.July, 15, 0, 0, 0, 0, time.UTC))

	assert.Greater(t, july, may)
	assert.Greater(t, july, north)
	assert.False(t, math.IsNaN(july))
}
