package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
	"github.com/couchcryptid/heatwave-tracker/internal/observability"
)

// TrackingOptions configures the tracking stage.
type TrackingOptions struct {
	Dataset         string
	Region          string
	Season          domain.Season
	DiscoverDates   bool
	BestEffort      bool
	Overlap         domain.OverlapMetric
	MinDurationDays int
}

// TrackingPipeline links the per-date artifacts into tracks in one
// sequential pass, summarizes them, and hands the events to every sink.
//
// In strict mode a missing or damaged artifact aborts output: the pass still
// runs so that every gap is reported, then an *domain.IncompleteInputError is
// returned and no sink is called. In best-effort mode gap dates count as days
// without clusters and are recorded on the run.
type TrackingPipeline struct {
	progress
	artifacts ArtifactReader
	geocoder  domain.Geocoder
	sinks     []EventSink
	opts      TrackingOptions
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewTrackingPipeline wires the tracking stage. A nil geocoder disables
// place-name enrichment.
func NewTrackingPipeline(a ArtifactReader, geocoder domain.Geocoder, sinks []EventSink, opts TrackingOptions, logger *slog.Logger, metrics *observability.Metrics) *TrackingPipeline {
	return &TrackingPipeline{
		artifacts: a,
		geocoder:  geocoder,
		sinks:     sinks,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run tracks the configured window and returns the run record. Sink
// failures do not stop the other sinks; they are joined into the error.
func (p *TrackingPipeline) Run(ctx context.Context) (domain.TrackingRun, error) {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	defer p.finish()

	dates, err := p.dates(ctx)
	if err != nil {
		return domain.TrackingRun{}, err
	}
	run := domain.TrackingRun{
		ID:        uuid.NewString(),
		Dataset:   p.opts.Dataset,
		Region:    p.opts.Region,
		StartDate: dates[0],
		EndDate:   dates[len(dates)-1],
		Days:      len(dates),
		StartedAt: domain.Now(),
	}
	p.begin("track", len(dates))
	logger := p.logger.With("run_id", run.ID)
	logger.Info("tracking started",
		"start", domain.DateKey(run.StartDate),
		"end", domain.DateKey(run.EndDate),
		"days", run.Days,
		"best_effort", p.opts.BestEffort,
	)

	tracker := domain.NewTracker(domain.TrackerOptions{
		Overlap:         p.opts.Overlap,
		MinDurationDays: p.opts.MinDurationDays,
	}, logger)

	var causes []error
	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return run, err
		}
		var set *domain.ClusterSet
		a, loadErr := p.artifacts.Load(ctx, date)
		switch {
		case loadErr == nil:
			set = a.Clusters
		case ctx.Err() != nil:
			return run, ctx.Err()
		default:
			run.IncompleteDates = append(run.IncompleteDates, date)
			causes = append(causes, loadErr)
			p.metrics.DataGaps.Inc()
			logger.Warn("detection artifact unavailable, treating date as empty",
				"date", domain.DateKey(date), "error", loadErr)
		}
		if err := tracker.Step(date, set); err != nil {
			return run, err
		}
		p.step(loadErr == nil)
	}
	tracks := tracker.Finish()
	p.metrics.TracksOpened.Add(float64(len(tracks)))
	for _, l := range tracker.Lineage() {
		p.metrics.Lineage.WithLabelValues(string(l.Kind)).Inc()
	}

	if !run.Complete() && !p.opts.BestEffort {
		logger.Error("tracking input incomplete, no events written", "missing_days", len(run.IncompleteDates))
		return run, &domain.IncompleteInputError{Dates: run.IncompleteDates, Causes: causes}
	}

	events := tracker.Events(p.opts.Dataset, p.opts.Region)
	named := domain.EnrichEvents(ctx, events, p.geocoder, logger)
	run.Events = len(events)
	run.FinishedAt = domain.Now()
	p.metrics.EventsEmitted.Add(float64(len(events)))
	logger.Info("tracking complete",
		"tracks", len(tracks),
		"events", len(events),
		"named", named,
		"splits", countLineage(tracker.Lineage(), domain.LinkSplit),
		"merges", countLineage(tracker.Lineage(), domain.LinkMerge),
		"incomplete_days", len(run.IncompleteDates),
	)

	return run, p.writeSinks(ctx, logger, run, events)
}

// dates returns the tracking window: the season's calendar, or the dates
// that have a dictionary on disk when discovery is enabled.
func (p *TrackingPipeline) dates(ctx context.Context) ([]time.Time, error) {
	if !p.opts.DiscoverDates {
		dates := p.opts.Season.Dates()
		if len(dates) == 0 {
			return nil, fmt.Errorf("season %d-%d months %d-%d has no dates",
				p.opts.Season.StartYear, p.opts.Season.EndYear, p.opts.Season.StartMonth, p.opts.Season.EndMonth)
		}
		return dates, nil
	}
	dates, err := p.artifacts.Dates(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover dates: %w", err)
	}
	if len(dates) == 0 {
		return nil, errors.New("discover dates: no detection artifacts found")
	}
	p.logger.Info("dates discovered from artifacts",
		"first", domain.DateKey(dates[0]), "last", domain.DateKey(dates[len(dates)-1]), "count", len(dates))
	return dates, nil
}

func (p *TrackingPipeline) writeSinks(ctx context.Context, logger *slog.Logger, run domain.TrackingRun, events []domain.EventSummary) error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.WriteEvents(ctx, run, events); err != nil {
			p.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			logger.Error("event sink failed", "sink", s.Name(), "error", err)
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func countLineage(ls []domain.Lineage, kind domain.LinkKind) int {
	n := 0
	for _, l := range ls {
		if l.Kind == kind {
			n++
		}
	}
	return n
}
