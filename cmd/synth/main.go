// Command synth writes a small synthetic actual and climatology NetCDF pair
// for smoke runs of the threshold, detect, and track commands. The
// climatology is a seasonal cycle with noise; the actual year adds warm
// anomalies that drift across the grid, so tracking has something to follow.
//
// Usage:
//
//	go run ./cmd/synth -out-dir data/synth -seed 42
//	ACTUAL_PATH=data/synth/actual.nc CLIMATOLOGY_PATH=data/synth/climatology.nc go run ./cmd/threshold
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/couchcryptid/heatwave-tracker/internal/adapter/netcdf"
	"github.com/couchcryptid/heatwave-tracker/internal/domain"
)

// params describes the synthetic grid and periods.
type params struct {
	seed       uint64
	nlat, nlon int
	lat0, lon0 float64
	step       float64
	year       int
	climStart  int
	climEnd    int
	noise      float64 // standard deviation, °C
}

// anomaly is a Gaussian warm blob centred at (row, col) on its start day
// and moving by (dRow, dCol) cells per day.
type anomaly struct {
	start     time.Time
	days      int
	row, col  float64
	dRow      float64
	dCol      float64
	amplitude float64 // °C
	sigma     float64 // cells
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "data/synth", "directory for actual.nc and climatology.nc")
	seed := flag.Uint64("seed", 42, "random seed")
	nlat := flag.Int("nlat", 24, "number of latitude rows")
	nlon := flag.Int("nlon", 48, "number of longitude columns")
	year := flag.Int("year", 2019, "analysis year")
	climStart := flag.Int("clim-start", 1991, "first climatology year")
	climEnd := flag.Int("clim-end", 2000, "last climatology year")
	flag.Parse()

	p := params{
		seed:      *seed,
		nlat:      *nlat,
		nlon:      *nlon,
		lat0:      34,
		lon0:      -12,
		step:      1,
		year:      *year,
		climStart: *climStart,
		climEnd:   *climEnd,
		noise:     1.5,
	}
	if p.nlat < 8 || p.nlon < 8 {
		return fmt.Errorf("grid must be at least 8x8, got %dx%d", p.nlat, p.nlon)
	}
	if p.climEnd < p.climStart {
		return fmt.Errorf("clim-end %d before clim-start %d", p.climEnd, p.climStart)
	}

	anomalies := defaultAnomalies(p)
	actual, clim := generate(p, anomalies)

	opts := netcdf.Options{KelvinToCelsius: true}
	ctx := context.Background()
	actualPath := filepath.Join(*outDir, "actual.nc")
	if err := netcdf.WriteSeries(ctx, actualPath, opts, actual); err != nil {
		return fmt.Errorf("writing actual series: %w", err)
	}
	log.Printf("wrote %s: %d days on a %dx%d grid", actualPath, len(actual.Dates), p.nlat, p.nlon)

	climPath := filepath.Join(*outDir, "climatology.nc")
	if err := netcdf.WriteSeries(ctx, climPath, opts, clim); err != nil {
		return fmt.Errorf("writing climatology series: %w", err)
	}
	log.Printf("wrote %s: %d days (%d-%d)", climPath, len(clim.Dates), p.climStart, p.climEnd)

	for _, a := range anomalies {
		log.Printf("anomaly: %s for %d days, +%.1f °C, drift (%+.1f, %+.1f) cells/day",
			domain.DateKey(a.start), a.days, a.amplitude, a.dRow, a.dCol)
	}
	return nil
}

// defaultAnomalies places one drifting and one stationary heatwave in July
// and August of the analysis year.
func defaultAnomalies(p params) []anomaly {
	return []anomaly{
		{
			start: time.Date(p.year, time.July, 10, 0, 0, 0, 0, time.UTC), days: 8,
			row: float64(p.nlat) / 2, col: float64(p.nlon) / 5,
			dCol: 1, amplitude: 10, sigma: 3,
		},
		{
			start: time.Date(p.year, time.August, 2, 0, 0, 0, 0, time.UTC), days: 5,
			row: float64(p.nlat) / 4, col: 3 * float64(p.nlon) / 4,
			amplitude: 9, sigma: 2.5,
		},
	}
}

// seasonDates lists 1 May to 30 September of every year in [from, to].
func seasonDates(from, to int) []time.Time {
	s := domain.Season{StartYear: from, EndYear: to, StartMonth: time.May, EndMonth: time.September}
	return s.Dates()
}

// generate builds the actual and climatology datasets in °C.
func generate(p params, anomalies []anomaly) (actual, clim *domain.Dataset) {
	rng := rand.New(rand.NewPCG(p.seed, p.seed^0x9e3779b97f4a7c15))
	lats := make([]float64, p.nlat)
	for i := range lats {
		lats[i] = p.lat0 + float64(i)*p.step
	}
	lons := make([]float64, p.nlon)
	for j := range lons {
		lons[j] = p.lon0 + float64(j)*p.step
	}

	build := func(dates []time.Time, warm []anomaly) *domain.Dataset {
		f := domain.NewField(len(dates), p.nlat, p.nlon)
		for t, d := range dates {
			for row, lat := range lats {
				for col := range lons {
					v := baseline(lat, d) + rng.NormFloat64()*p.noise
					for _, a := range warm {
						v += a.at(d, row, col)
					}
					f.Set(t, row, col, v)
				}
			}
		}
		return &domain.Dataset{Lats: lats, Lons: lons, Dates: dates, Actual: f}
	}

	clim = build(seasonDates(p.climStart, p.climEnd), nil)
	actual = build(seasonDates(p.year, p.year), anomalies)
	return actual, clim
}

// baseline is a seasonal cycle peaking in mid July, cooling with latitude.
func baseline(lat float64, d time.Time) float64 {
	doy := float64(d.YearDay())
	return 30 - 0.5*(lat-34) + 6*math.Sin(math.Pi*(doy-121)/153)
}

// at returns the anomaly's contribution at a cell on date d.
func (a anomaly) at(d time.Time, row, col int) float64 {
	day := int(domain.Day(d).Sub(a.start).Hours() / 24)
	if day < 0 || day >= a.days {
		return 0
	}
	cr := a.row + a.dRow*float64(day)
	cc := a.col + a.dCol*float64(day)
	r2 := (float64(row)-cr)*(float64(row)-cr) + (float64(col)-cc)*(float64(col)-cc)
	return a.amplitude * math.Exp(-r2/(2*a.sigma*a.sigma))
}
