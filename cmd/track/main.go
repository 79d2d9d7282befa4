// Command track links the per-date cluster artifacts into heatwave events
// and writes them to every configured sink: the JSON file always, plus
// SQLite, Kafka, and a trajectory plot when enabled.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/heatwave-tracker/internal/adapter/artifact"
	"github.com/couchcryptid/heatwave-tracker/internal/adapter/httpadapter"
	"github.com/couchcryptid/heatwave-tracker/internal/adapter/jsonfile"
	kafkaadapter "github.com/couchcryptid/heatwave-tracker/internal/adapter/kafka"
	"github.com/couchcryptid/heatwave-tracker/internal/adapter/mapbox"
	"github.com/couchcryptid/heatwave-tracker/internal/adapter/plot"
	"github.com/couchcryptid/heatwave-tracker/internal/adapter/sqlite"
	"github.com/couchcryptid/heatwave-tracker/internal/config"
	"github.com/couchcryptid/heatwave-tracker/internal/domain"
	"github.com/couchcryptid/heatwave-tracker/internal/observability"
	"github.com/couchcryptid/heatwave-tracker/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	sinks := []pipeline.EventSink{jsonfile.NewWriter(cfg.EventsOutputPath, logger)}
	if cfg.EventsDBPath != "" {
		store, err := sqlite.Open(cfg.EventsDBPath, logger)
		if err != nil {
			logger.Error("failed to open event store", "error", err)
			return 1
		}
		defer closeLogged(logger, "sqlite", store.Close)
		sinks = append(sinks, store)
	}
	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer closeLogged(logger, "kafka writer", writer.Close)
		sinks = append(sinks, writer)
	}
	if cfg.EventsPlotPath != "" {
		sinks = append(sinks, plot.NewWriter(cfg.EventsPlotPath, logger))
	}

	p := pipeline.NewTrackingPipeline(
		artifact.NewStore(cfg.ClustersDir, logger),
		geocoder,
		sinks,
		pipeline.TrackingOptions{
			Dataset:         cfg.Dataset,
			Region:          cfg.Region,
			Season:          cfg.Season(),
			DiscoverDates:   cfg.TrackDiscoverDates,
			BestEffort:      cfg.TrackBestEffort,
			Overlap:         cfg.OverlapMetric,
			MinDurationDays: cfg.MinEventDurationDays,
		},
		logger, metrics,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown := httpadapter.Background(cfg.HTTPAddr, p, cfg.ShutdownTimeout, logger)
	defer shutdown()

	tr, err := p.Run(ctx)
	var incomplete *domain.IncompleteInputError
	switch {
	case errors.As(err, &incomplete):
		logger.Error("tracking refused: detection artifacts missing or damaged; rerun detect or set TRACK_BEST_EFFORT=true",
			"missing_days", len(incomplete.Dates), "error", err)
		return 1
	case err != nil:
		logger.Error("tracking stage failed", "run_id", tr.ID, "error", err)
		return 1
	}
	if !tr.Complete() {
		logger.Warn("events written from incomplete input", "run_id", tr.ID, "missing_days", len(tr.IncompleteDates))
	}
	return 0
}

func closeLogged(logger *slog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error("close error", "component", name, "error", err)
	}
}
