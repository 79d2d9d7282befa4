// Command threshold computes the calendar-day percentile threshold and the
// persistence-filtered exceedance mask, and writes the processed dataset
// read by the detect command.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/heatwave-tracker/internal/adapter/httpadapter"
	"github.com/couchcryptid/heatwave-tracker/internal/adapter/netcdf"
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

	reader := netcdf.NewReader(netcdf.Options{
		TemperatureVar:  cfg.TemperatureVar,
		LatVar:          cfg.LatVar,
		LonVar:          cfg.LonVar,
		KelvinToCelsius: cfg.KelvinToCelsius,
	}, logger)
	store := netcdf.NewStore(logger)

	p := pipeline.NewThresholdPipeline(reader, store, pipeline.ThresholdOptions{
		ActualPath:         cfg.ActualPath,
		ClimatologyPath:    cfg.ClimatologyPath,
		ProcessedPath:      cfg.ProcessedPath,
		Percentile:         cfg.Percentile,
		Method:             cfg.PercentileMethod,
		MinConsecutiveDays: cfg.MinConsecutiveDays,
	}, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown := httpadapter.Background(cfg.HTTPAddr, p, cfg.ShutdownTimeout, logger)
	defer shutdown()

	report, err := p.Run(ctx)
	if err != nil {
		logger.Error("threshold stage failed", "error", err)
		return 1
	}
	for _, d := range report.MissingDates {
		logger.Warn("threshold missing", "date", domain.DateKey(d))
	}
	return 0
}
