// Package jsonfile writes event summaries to a JSON file.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
)

// Writer replaces the output file with the events of each run.
type Writer struct {
	path   string
	logger *slog.Logger
}

// NewWriter returns a JSON event sink writing to path.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "json" }

// WriteEvents writes the events as an indented JSON array. The file is
// written under a temporary name and renamed, so readers see either the old
// or the new array. An empty run writes [].
func (w *Writer) WriteEvents(ctx context.Context, run domain.TrackingRun, events []domain.EventSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if events == nil {
		events = []domain.EventSummary{}
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".events-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write events: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("rename events file: %w", err)
	}
	w.logger.Info("events written", "path", w.path, "events", len(events), "run_id", run.ID)
	return nil
}

// ReadEvents loads an events file written by Writer.
func ReadEvents(path string) ([]domain.EventSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events %s: %w", path, err)
	}
	var events []domain.EventSummary
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode events %s: %w", path, err)
	}
	return events, nil
}
