package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
	"github.com/couchcryptid/heatwave-tracker/internal/observability"
)

// DetectionOptions configures the detection stage.
type DetectionOptions struct {
	ProcessedPath string
	Season        domain.Season
	Periodic      bool
	MinAreaKm2    float64
	Statistic     domain.IntensityStatistic
	Workers       int
}

// DayFailure records a date whose detection failed.
type DayFailure struct {
	Date time.Time
	Err  error
}

// DetectionReport summarizes a detection run.
type DetectionReport struct {
	Days     int
	Clusters int
	Failures []DayFailure // sorted by date
}

// Complete reports whether every selected date produced an artifact.
func (r DetectionReport) Complete() bool { return len(r.Failures) == 0 }

// DetectionPipeline labels, filters, and attributes the clusters of every
// season date and writes one artifact per date. Dates are independent: they
// are split into contiguous chunks, one per worker, and a failing date does
// not stop the others.
type DetectionPipeline struct {
	progress
	reader    DatasetReader
	artifacts ArtifactWriter
	opts      DetectionOptions
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu     sync.Mutex
	report DetectionReport
}

// NewDetectionPipeline wires the detection stage.
func NewDetectionPipeline(r DatasetReader, a ArtifactWriter, opts DetectionOptions, logger *slog.Logger, metrics *observability.Metrics) *DetectionPipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &DetectionPipeline{reader: r, artifacts: a, opts: opts, logger: logger, metrics: metrics}
}

// Run processes every season date of the processed dataset. The error is
// non-nil only when the run could not start or was cancelled; per-date
// failures are returned in the report.
func (p *DetectionPipeline) Run(ctx context.Context) (DetectionReport, error) {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	defer p.finish()

	ds, err := p.reader.ReadDataset(ctx, p.opts.ProcessedPath)
	if err != nil {
		return DetectionReport{}, fmt.Errorf("read processed dataset: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return DetectionReport{}, err
	}
	if ds.Threshold == nil || ds.Mask == nil {
		return DetectionReport{}, fmt.Errorf("processed dataset %s lacks threshold or mask: %w",
			p.opts.ProcessedPath, domain.ErrShapeMismatch)
	}
	grid, err := domain.NewGrid(ds.Lats, ds.Lons, p.opts.Periodic)
	if err != nil {
		return DetectionReport{}, err
	}

	season, _ := ds.SelectDates(p.opts.Season.Contains)
	n := len(season.Dates)
	p.begin("detect", n)
	p.report = DetectionReport{Days: n}
	if n == 0 {
		p.logger.Warn("no dates fall inside the season window",
			"start_year", p.opts.Season.StartYear, "end_year", p.opts.Season.EndYear)
		return p.report, nil
	}

	chunks := Partition(n, p.opts.Workers)
	p.logger.Info("detection started",
		"days", n,
		"workers", len(chunks),
		"grid", fmt.Sprintf("%dx%d", len(ds.Lats), len(ds.Lons)),
		"periodic", p.opts.Periodic,
	)

	g, gctx := errgroup.WithContext(ctx)
	for w, c := range chunks {
		g.Go(func() error {
			for t := c.Start; t < c.End; t++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				p.runDay(gctx, w, grid, season, t)
			}
			return nil
		})
	}
	err = g.Wait()

	sort.Slice(p.report.Failures, func(i, j int) bool {
		return p.report.Failures[i].Date.Before(p.report.Failures[j].Date)
	})
	if err != nil {
		return p.report, fmt.Errorf("detection interrupted: %w", err)
	}
	p.logger.Info("detection complete",
		"days", n,
		"clusters", p.report.Clusters,
		"failed_days", len(p.report.Failures),
	)
	return p.report, nil
}

func (p *DetectionPipeline) runDay(ctx context.Context, worker int, grid *domain.Grid, ds *domain.Dataset, t int) {
	date := ds.Dates[t]
	start := time.Now()
	clusters, pixels, err := p.detectDay(ctx, grid, ds, t)
	elapsed := time.Since(start)
	p.metrics.DayDuration.Observe(elapsed.Seconds())

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.metrics.DayFailures.Inc()
		p.report.Failures = append(p.report.Failures, DayFailure{Date: date, Err: err})
		p.step(false)
		p.logger.Error("day failed", "date", domain.DateKey(date), "worker", worker, "error", err)
		return
	}
	p.metrics.DaysProcessed.Inc()
	p.metrics.ClustersDetected.Add(float64(clusters))
	p.report.Clusters += clusters
	p.step(true)
	p.logger.Debug("day processed",
		"date", domain.DateKey(date),
		"worker", worker,
		"pixels", pixels,
		"clusters", clusters,
		"duration", elapsed,
	)
}

// detectDay runs detection, the area filter, and attribution for one
// timestep and persists the result.
func (p *DetectionPipeline) detectDay(ctx context.Context, grid *domain.Grid, ds *domain.Dataset, t int) (clusters, pixels int, err error) {
	date := ds.Dates[t]
	anomaly, err := domain.Anomaly(ds.Actual.Slice(t), ds.Threshold.Slice(t))
	if err != nil {
		return 0, 0, fmt.Errorf("detect %s: %w", domain.DateKey(date), err)
	}
	mask := ds.Mask.Slice(t)
	set, err := domain.DetectClusters(mask, grid)
	if err != nil {
		return 0, 0, fmt.Errorf("detect %s: %w", domain.DateKey(date), err)
	}
	kept, keptMask := domain.FilterClusters(set, grid, p.opts.MinAreaKm2)
	if err := domain.ComputeAttributes(kept, anomaly, grid, p.opts.Statistic); err != nil {
		return 0, 0, fmt.Errorf("detect %s: %w", domain.DateKey(date), err)
	}
	a := domain.DayArtifact{Date: date, Mask: keptMask, Clusters: kept}
	if err := p.artifacts.Save(ctx, grid, a); err != nil {
		return 0, 0, fmt.Errorf("save %s: %w", domain.DateKey(date), err)
	}
	return kept.Len(), mask.Count(), nil
}

// Chunk is a half-open range of timestep indices.
type Chunk struct {
	Start, End int
}

// Partition splits n timesteps into contiguous chunks of ceil(n/workers)
// timesteps. Fewer chunks than workers are returned when n is small; no
// chunk is empty.
func Partition(n, workers int) []Chunk {
	if n <= 0 {
		return nil
	}
	workers = max(workers, 1)
	h := (n + workers - 1) / workers
	var out []Chunk
	for k := 0; k*h < n; k++ {
		out = append(out, Chunk{Start: k * h, End: min((k+1)*h, n)})
	}
	return out
}
