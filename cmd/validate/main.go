// Command validate checks the on-disk outputs of a heatwave run for internal
// consistency: every per-date artifact loads and agrees with itself, the
// processed mask honours the persistence rule, artifact members are a subset
// of the processed mask, and the event file agrees with the artifacts.
//
// Paths default to the same environment configuration the pipeline uses.
//
// Usage:
//
//	go run ./cmd/validate -min-days 3
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/heatwave-tracker/internal/adapter/artifact"
	"github.com/couchcryptid/heatwave-tracker/internal/adapter/jsonfile"
	"github.com/couchcryptid/heatwave-tracker/internal/adapter/netcdf"
	"github.com/couchcryptid/heatwave-tracker/internal/config"
	"github.com/couchcryptid/heatwave-tracker/internal/domain"
)

// maxReported caps the detailed errors printed per phase.
const maxReported = 20

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}
	clustersDir := flag.String("clusters-dir", cfg.ClustersDir, "directory holding per-date artifacts")
	processed := flag.String("processed", cfg.ProcessedPath, "processed NetCDF dataset")
	events := flag.String("events", cfg.EventsOutputPath, "events JSON file (skipped when absent)")
	minDays := flag.Int("min-days", cfg.MinConsecutiveDays, "minimum exceedance run length")
	flag.Parse()

	if code := run(*clustersDir, *processed, *events, *minDays); code != 0 {
		os.Exit(code)
	}
}

func run(clustersDir, processedPath, eventsPath string, minDays int) int {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fmt.Println("=== Heatwave Output Validation ===")
	fmt.Println()

	store := artifact.NewStore(clustersDir, logger)
	dates, err := store.Dates(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: list artifacts: %v\n", err)
		return 1
	}
	ds, err := netcdf.NewStore(logger).ReadDataset(ctx, processedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load processed dataset: %v\n", err)
		return 1
	}

	artifacts, integrity := validateArtifacts(ctx, store, dates)
	phases := []*phase{
		integrity,
		validatePersistence(ds, minDays),
		validateArtifactsInMask(artifacts, ds),
	}
	var nEvents int
	if _, err := os.Stat(eventsPath); err == nil {
		evs, err := jsonfile.ReadEvents(eventsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load events: %v\n", err)
			return 1
		}
		nEvents = len(evs)
		phases = append(phases, validateEvents(evs, artifacts))
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Inputs: %d artifact dates, %d processed days, %d events\n", len(dates), len(ds.Dates), nEvents)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxReported {
				fmt.Printf("  ... and %d more\n", len(p.errors)-maxReported)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Println("\nAll checks passed.")
	return 0
}

// validateArtifacts loads every artifact date, returning the ones that
// loaded keyed by date.
func validateArtifacts(ctx context.Context, store *artifact.Store, dates []time.Time) (map[string]domain.DayArtifact, *phase) {
	p := &phase{name: "Artifact integrity"}
	out := make(map[string]domain.DayArtifact, len(dates))
	if len(dates) == 0 {
		p.errorf("no artifacts found in %s", store.Dir())
	}
	for _, d := range dates {
		a, err := store.Load(ctx, d)
		if err != nil {
			p.errorf("%s: %v", domain.DateKey(d), err)
			continue
		}
		out[domain.DateKey(d)] = a
	}
	return out, p
}

// validatePersistence checks that every mask run is at least minDays long
// and that every masked cell exceeds its threshold.
func validatePersistence(ds *domain.Dataset, minDays int) *phase {
	p := &phase{name: "Persistence filter"}
	if ds.Mask == nil || ds.Threshold == nil {
		p.errorf("processed dataset lacks mask or threshold")
		return p
	}
	nt, nlat, nlon := ds.Mask.Shape()
	series := make([]float64, nt)
	for row := 0; row < nlat; row++ {
		for col := 0; col < nlon; col++ {
			for t := 0; t < nt; t++ {
				series[t] = ds.Mask.At(t, row, col)
				if series[t] > 0 && !(ds.Actual.At(t, row, col) > ds.Threshold.At(t, row, col)) {
					p.errorf("%s cell (%d, %d): masked but not above threshold", domain.DateKey(ds.Dates[t]), row, col)
				}
			}
			for _, seg := range consecutiveSegments(ds.Dates) {
				for _, r := range domain.PersistentRuns(series[seg.Start:seg.End+1], 1) {
					if r.Len() < minDays {
						p.errorf("cell (%d, %d): run of %d days from %s is shorter than %d",
							row, col, r.Len(), domain.DateKey(ds.Dates[seg.Start+r.Start]), minDays)
					}
				}
			}
		}
	}
	return p
}

// consecutiveSegments splits a date axis into runs of consecutive days.
func consecutiveSegments(dates []time.Time) []domain.Run {
	var out []domain.Run
	start := 0
	for i := 1; i <= len(dates); i++ {
		if i == len(dates) || !domain.NextDay(dates[i-1], dates[i]) {
			out = append(out, domain.Run{Start: start, End: i - 1})
			start = i
		}
	}
	return out
}

// validateArtifactsInMask checks that filtered cluster members are a subset
// of the processed mask on the same date.
func validateArtifactsInMask(artifacts map[string]domain.DayArtifact, ds *domain.Dataset) *phase {
	p := &phase{name: "Artifacts within processed mask"}
	if ds.Mask == nil {
		p.errorf("processed dataset lacks mask")
		return p
	}
	index := make(map[string]int, len(ds.Dates))
	for t, d := range ds.Dates {
		index[domain.DateKey(d)] = t
	}
	for key, a := range artifacts {
		t, ok := index[key]
		if !ok {
			p.errorf("%s: artifact date not in processed dataset", key)
			continue
		}
		nlat, nlon := len(ds.Lats), len(ds.Lons)
		if err := a.Check(nlat, nlon); err != nil {
			p.errorf("%s: %v", key, err)
			continue
		}
		for _, c := range a.Clusters.Clusters() {
			for _, cell := range c.Cells {
				if ds.Mask.At(t, cell.Row, cell.Col) <= 0 {
					p.errorf("%s cluster %d: cell (%d, %d) not in processed mask", key, c.ID, cell.Row, cell.Col)
				}
			}
		}
	}
	return p
}

// validateEvents checks each event's lifecycle fields against its path and
// the artifacts it references.
func validateEvents(events []domain.EventSummary, artifacts map[string]domain.DayArtifact) *phase {
	p := &phase{name: "Event consistency"}
	seen := make(map[string]bool, len(events))
	for _, ev := range events {
		if seen[ev.ID] {
			p.errorf("%s: duplicate event id", ev.ID)
		}
		seen[ev.ID] = true

		want := int(domain.Day(ev.EndDate).Sub(domain.Day(ev.StartDate)).Hours()/24) + 1
		if ev.DurationDays != want {
			p.errorf("%s: duration %d, dates span %d days", ev.ID, ev.DurationDays, want)
		}
		if len(ev.Path) != ev.DurationDays {
			p.errorf("%s: path has %d points for %d days", ev.ID, len(ev.Path), ev.DurationDays)
			continue
		}
		peakFound := false
		for i, pt := range ev.Path {
			if i > 0 && !domain.NextDay(ev.Path[i-1].Date, pt.Date) {
				p.errorf("%s: path skips from %s to %s", ev.ID, domain.DateKey(ev.Path[i-1].Date), domain.DateKey(pt.Date))
			}
			if pt.Date.Equal(ev.PeakDate) {
				peakFound = true
			}
			if a, ok := artifacts[domain.DateKey(pt.Date)]; ok {
				if _, ok := a.Clusters.Get(pt.ClusterID); !ok {
					p.errorf("%s: cluster %d missing from %s artifact", ev.ID, pt.ClusterID, domain.DateKey(pt.Date))
				}
			}
		}
		if !peakFound {
			p.errorf("%s: peak date %s not on path", ev.ID, domain.DateKey(ev.PeakDate))
		}
	}
	return p
}
