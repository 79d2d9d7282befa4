// Package sqlite stores tracking runs and their event summaries in a local
// SQLite database, migrated from the embedded schema on open.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

const dateLayout = "2006-01-02"

// Store is an event sink backed by SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and applies pending migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	logger.Info("event store ready", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := msqlite.WithInstance(db, &msqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// m is not closed: closing it would close db.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Name identifies the sink in logs and metrics.
func (s *Store) Name() string { return "sqlite" }

// WriteEvents records the run and upserts its events in one transaction.
// Event IDs are deterministic, so re-running a window replaces its rows.
func (s *Store) WriteEvents(ctx context.Context, run domain.TrackingRun, events []domain.EventSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	incomplete := make([]string, len(run.IncompleteDates))
	for i, d := range run.IncompleteDates {
		incomplete[i] = d.Format(dateLayout)
	}
	incompleteJSON, err := json.Marshal(incomplete)
	if err != nil {
		return fmt.Errorf("encode incomplete dates: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tracking_runs (id, dataset, region, start_date, end_date, days,
			incomplete_dates, events, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Dataset, run.Region,
		run.StartDate.Format(dateLayout), run.EndDate.Format(dateLayout), run.Days,
		string(incompleteJSON), run.Events,
		run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO heatwave_events (id, run_id, track_id, dataset, region, start_date, end_date,
			duration_days, peak_intensity, peak_date, total_area_time, max_area_km2,
			split_from, merged_into, place_name, formatted_address, geo_confidence, geo_source,
			generated_at, path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			run_id = excluded.run_id,
			track_id = excluded.track_id,
			end_date = excluded.end_date,
			duration_days = excluded.duration_days,
			peak_intensity = excluded.peak_intensity,
			peak_date = excluded.peak_date,
			total_area_time = excluded.total_area_time,
			max_area_km2 = excluded.max_area_km2,
			split_from = excluded.split_from,
			merged_into = excluded.merged_into,
			place_name = excluded.place_name,
			formatted_address = excluded.formatted_address,
			geo_confidence = excluded.geo_confidence,
			geo_source = excluded.geo_source,
			generated_at = excluded.generated_at,
			path = excluded.path`)
	if err != nil {
		return fmt.Errorf("prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		path, err := json.Marshal(ev.Path)
		if err != nil {
			return fmt.Errorf("encode path of event %s: %w", ev.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			ev.ID, run.ID, ev.TrackID, ev.Dataset, ev.Region,
			ev.StartDate.Format(dateLayout), ev.EndDate.Format(dateLayout), ev.DurationDays,
			ev.PeakIntensity, ev.PeakDate.Format(dateLayout), ev.TotalAreaTime, ev.MaxAreaKm2,
			ev.SplitFrom, ev.MergedInto, ev.PlaceName, ev.FormattedAddress, ev.GeoConfidence, ev.GeoSource,
			ev.GeneratedAt.UTC().Format(time.RFC3339Nano), string(path),
		)
		if err != nil {
			return fmt.Errorf("upsert event %s: %w", ev.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit events: %w", err)
	}
	s.logger.Info("events stored", "run_id", run.ID, "events", len(events))
	return nil
}

// ListEvents returns the stored events of a dataset and region ordered by
// start date, then track ID.
func (s *Store) ListEvents(ctx context.Context, dataset, region string) ([]domain.EventSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, track_id, dataset, region, start_date, end_date, duration_days,
			peak_intensity, peak_date, total_area_time, max_area_km2, split_from, merged_into,
			place_name, formatted_address, geo_confidence, geo_source, generated_at, path
		FROM heatwave_events
		WHERE dataset = ? AND region = ?
		ORDER BY start_date, track_id`, dataset, region)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []domain.EventSummary
	for rows.Next() {
		var (
			ev                                   domain.EventSummary
			start, end, peak, generated, pathRaw string
		)
		if err := rows.Scan(&ev.ID, &ev.TrackID, &ev.Dataset, &ev.Region, &start, &end, &ev.DurationDays,
			&ev.PeakIntensity, &peak, &ev.TotalAreaTime, &ev.MaxAreaKm2, &ev.SplitFrom, &ev.MergedInto,
			&ev.PlaceName, &ev.FormattedAddress, &ev.GeoConfidence, &ev.GeoSource, &generated, &pathRaw); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.StartDate, err = time.Parse(dateLayout, start); err != nil {
			return nil, fmt.Errorf("event %s start_date: %w", ev.ID, err)
		}
		if ev.EndDate, err = time.Parse(dateLayout, end); err != nil {
			return nil, fmt.Errorf("event %s end_date: %w", ev.ID, err)
		}
		if ev.PeakDate, err = time.Parse(dateLayout, peak); err != nil {
			return nil, fmt.Errorf("event %s peak_date: %w", ev.ID, err)
		}
		if ev.GeneratedAt, err = time.Parse(time.RFC3339Nano, generated); err != nil {
			return nil, fmt.Errorf("event %s generated_at: %w", ev.ID, err)
		}
		if err := json.Unmarshal([]byte(pathRaw), &ev.Path); err != nil {
			return nil, fmt.Errorf("event %s path: %w", ev.ID, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Run looks up a tracking run by ID.
func (s *Store) Run(ctx context.Context, id string) (domain.TrackingRun, error) {
	var (
		run                                       domain.TrackingRun
		start, end, incomplete, started, finished string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, dataset, region, start_date, end_date, days, incomplete_dates, events, started_at, finished_at
		FROM tracking_runs WHERE id = ?`, id).
		Scan(&run.ID, &run.Dataset, &run.Region, &start, &end, &run.Days, &incomplete, &run.Events, &started, &finished)
	if err != nil {
		return run, fmt.Errorf("query run %s: %w", id, err)
	}

	var dates []string
	if err := json.Unmarshal([]byte(incomplete), &dates); err != nil {
		return run, fmt.Errorf("run %s incomplete_dates: %w", id, err)
	}
	for _, d := range dates {
		t, err := time.Parse(dateLayout, d)
		if err != nil {
			return run, fmt.Errorf("run %s incomplete_dates: %w", id, err)
		}
		run.IncompleteDates = append(run.IncompleteDates, t)
	}
	for _, f := range []struct {
		raw    string
		layout string
		dst    *time.Time
	}{
		{start, dateLayout, &run.StartDate},
		{end, dateLayout, &run.EndDate},
		{started, time.RFC3339Nano, &run.StartedAt},
		{finished, time.RFC3339Nano, &run.FinishedAt},
	} {
		if *f.dst, err = time.Parse(f.layout, f.raw); err != nil {
			return run, fmt.Errorf("run %s: %w", id, err)
		}
	}
	return run, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
