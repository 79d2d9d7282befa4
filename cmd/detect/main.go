// Command detect labels the heatwave clusters of every season date in the
// processed dataset and writes one artifact set per date. It exits non-zero
// when any date failed so that an incomplete run is never mistaken for a
// complete one.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/heatwave-tracker/internal/adapter/artifact"
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

	p := pipeline.NewDetectionPipeline(
		netcdf.NewStore(logger),
		artifact.NewStore(cfg.ClustersDir, logger),
		pipeline.DetectionOptions{
			ProcessedPath: cfg.ProcessedPath,
			Season:        cfg.Season(),
			Periodic:      cfg.Periodic,
			MinAreaKm2:    cfg.MinClusterAreaKm2,
			Statistic:     cfg.IntensityStatistic,
			Workers:       cfg.Workers,
		},
		logger, metrics,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown := httpadapter.Background(cfg.HTTPAddr, p, cfg.ShutdownTimeout, logger)
	defer shutdown()

	report, err := p.Run(ctx)
	if err != nil {
		logger.Error("detection stage failed", "error", err)
		return 1
	}
	if !report.Complete() {
		for _, f := range report.Failures {
			logger.Error("date not detected", "date", domain.DateKey(f.Date), "error", f.Err)
		}
		logger.Error("detection incomplete", "failed_days", len(report.Failures), "days", report.Days)
		return 1
	}
	logger.Info("artifacts written", "dir", cfg.ClustersDir, "days", report.Days, "clusters", report.Clusters)
	return 0
}
