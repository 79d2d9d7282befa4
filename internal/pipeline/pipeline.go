// Package pipeline runs the three batch stages: threshold, detection, and
// tracking. Each stage reads through a small port interface so adapters can
// be swapped in tests.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
)

// SeriesReader loads a raw temperature series from a NetCDF input.
type SeriesReader interface {
	ReadSeries(ctx context.Context, path string) (*domain.Dataset, error)
}

// DatasetWriter persists the processed dataset of the threshold stage.
type DatasetWriter interface {
	WriteDataset(ctx context.Context, path string, ds *domain.Dataset) error
}

// DatasetReader loads the processed dataset for detection.
type DatasetReader interface {
	ReadDataset(ctx context.Context, path string) (*domain.Dataset, error)
}

// ArtifactWriter persists one date's detection output.
type ArtifactWriter interface {
	Save(ctx context.Context, g *domain.Grid, a domain.DayArtifact) error
}

// ArtifactReader loads detection output for tracking.
type ArtifactReader interface {
	Load(ctx context.Context, date time.Time) (domain.DayArtifact, error)
	Dates(ctx context.Context) ([]time.Time, error)
}

// EventSink receives the events of a finished tracking run.
type EventSink interface {
	Name() string
	WriteEvents(ctx context.Context, run domain.TrackingRun, events []domain.EventSummary) error
}

// Progress is a snapshot of a stage's work.
type Progress struct {
	Stage     string    `json:"stage"`
	Total     int       `json:"total"`
	Done      int       `json:"done"`
	Failed    int       `json:"failed"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Finished  bool      `json:"finished"`
}

// progress is embedded by every stage. It backs the readiness probe and the
// /status endpoint.
type progress struct {
	mu    sync.Mutex
	p     Progress
	ready atomic.Bool
}

func (s *progress) begin(stage string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p = Progress{Stage: stage, Total: total, StartedAt: time.Now().UTC()}
}

// step records one finished unit of work. The stage becomes ready after
// its first unit, successful or not.
func (s *progress) step(ok bool) {
	s.mu.Lock()
	if ok {
		s.p.Done++
	} else {
		s.p.Failed++
	}
	s.mu.Unlock()
	s.ready.Store(true)
}

func (s *progress) finish() {
	s.mu.Lock()
	s.p.Finished = true
	s.mu.Unlock()
	s.ready.Store(true)
}

// Progress returns the current snapshot.
func (s *progress) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p
}

// CheckReadiness returns nil once the stage has completed a unit of work.
func (s *progress) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("pipeline has not completed any work yet")
	}
	return nil
}
