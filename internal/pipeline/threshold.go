package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
	"github.com/couchcryptid/heatwave-tracker/internal/observability"
)

// axisTolerance is the largest coordinate difference, in degrees, at which
// the actual and climatology grids are considered the same.
const axisTolerance = 1e-6

// ThresholdOptions configures the threshold stage.
type ThresholdOptions struct {
	ActualPath         string
	ClimatologyPath    string
	ProcessedPath      string
	Percentile         float64
	Method             domain.PercentileMethod
	MinConsecutiveDays int
}

// ThresholdReport summarizes a threshold run.
type ThresholdReport struct {
	Days         int
	MissingDates []time.Time
	RawCells     int // exceedance cell-days before the persistence filter
	KeptCells    int // exceedance cell-days after it
}

// ThresholdPipeline computes the calendar-day threshold, the exceedance mask,
// and the persistence filter, then writes the processed dataset.
type ThresholdPipeline struct {
	progress
	reader  SeriesReader
	writer  DatasetWriter
	opts    ThresholdOptions
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewThresholdPipeline wires the threshold stage.
func NewThresholdPipeline(r SeriesReader, w DatasetWriter, opts ThresholdOptions, logger *slog.Logger, metrics *observability.Metrics) *ThresholdPipeline {
	return &ThresholdPipeline{reader: r, writer: w, opts: opts, logger: logger, metrics: metrics}
}

// Run executes the stage once.
func (p *ThresholdPipeline) Run(ctx context.Context) (ThresholdReport, error) {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	p.begin("threshold", 1)
	defer p.finish()
	start := time.Now()

	actual, err := p.reader.ReadSeries(ctx, p.opts.ActualPath)
	if err != nil {
		return ThresholdReport{}, fmt.Errorf("read actual: %w", err)
	}
	clim, err := p.reader.ReadSeries(ctx, p.opts.ClimatologyPath)
	if err != nil {
		return ThresholdReport{}, fmt.Errorf("read climatology: %w", err)
	}
	if _, err := domain.NewGrid(actual.Lats, actual.Lons, false); err != nil {
		return ThresholdReport{}, fmt.Errorf("actual grid: %w", err)
	}
	if !sameAxis(actual.Lats, clim.Lats) || !sameAxis(actual.Lons, clim.Lons) {
		return ThresholdReport{}, fmt.Errorf("climatology grid (%d, %d) does not match actual grid (%d, %d): %w",
			len(clim.Lats), len(clim.Lons), len(actual.Lats), len(actual.Lons), domain.ErrShapeMismatch)
	}
	p.logger.Info("series loaded",
		"actual_days", len(actual.Dates),
		"climatology_days", len(clim.Dates),
		"grid", fmt.Sprintf("%dx%d", len(actual.Lats), len(actual.Lons)),
	)

	res, err := domain.ComputeThreshold(
		domain.Series{Dates: actual.Dates, Values: actual.Actual},
		domain.Series{Dates: clim.Dates, Values: clim.Actual},
		domain.ThresholdOptions{Percentile: p.opts.Percentile, Method: p.opts.Method},
		p.logger,
	)
	if err != nil {
		return ThresholdReport{}, err
	}
	p.metrics.ThresholdMissingDays.Add(float64(len(res.MissingDates)))

	raw, err := domain.ExceedanceMask(actual.Actual, res.Threshold)
	if err != nil {
		return ThresholdReport{}, err
	}
	kept, err := domain.ApplyPersistenceFilterDates(raw, actual.Dates, p.opts.MinConsecutiveDays)
	if err != nil {
		return ThresholdReport{}, err
	}

	actual.Threshold = res.Threshold
	actual.Mask = kept
	if err := ctx.Err(); err != nil {
		return ThresholdReport{}, err
	}
	if err := p.writer.WriteDataset(ctx, p.opts.ProcessedPath, actual); err != nil {
		p.step(false)
		return ThresholdReport{}, fmt.Errorf("write processed dataset: %w", err)
	}
	p.step(true)

	report := ThresholdReport{
		Days:         len(actual.Dates),
		MissingDates: res.MissingDates,
		RawCells:     countMembers(raw),
		KeptCells:    countMembers(kept),
	}
	p.logger.Info("threshold stage complete",
		"path", p.opts.ProcessedPath,
		"days", report.Days,
		"missing_days", len(report.MissingDates),
		"raw_cells", report.RawCells,
		"kept_cells", report.KeptCells,
		"duration", time.Since(start),
	)
	return report, nil
}

func sameAxis(a, b []float64) bool {
	return len(a) == len(b) && floats.EqualApprox(a, b, axisTolerance)
}

func countMembers(f *domain.Field) int {
	n := 0
	for _, v := range f.Values() {
		if v > 0 {
			n++
		}
	}
	return n
}
