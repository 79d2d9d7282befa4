package plot

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(d int) time.Time {
	return time.Date(2019, time.June, d, 0, 0, 0, 0, time.UTC)
}

func testEvent(id string, start int, lons ...float64) domain.EventSummary {
	ev := domain.EventSummary{ID: id, StartDate: day(start), DurationDays: len(lons)}
	for i, lon := range lons {
		ev.Path = append(ev.Path, domain.CentroidPoint{Date: day(start + i), Lat: 45 + float64(i), Lon: lon})
	}
	return ev
}

func TestWriteEvents_WritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "tracks.png")
	w := NewWriter(path, discardLogger())
	run := domain.TrackingRun{ID: "run-1", Dataset: "ERA5", Region: "europe", StartDate: day(1), EndDate: day(30)}

	err := w.WriteEvents(context.Background(), run, []domain.EventSummary{
		testEvent("hw-a", 1, 2, 3, 4),
		testEvent("hw-b", 10, -5),
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "expected a PNG header")
}

func TestWriteEvents_NoEventsWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracks.png")
	w := NewWriter(path, discardLogger())

	require.NoError(t, w.WriteEvents(context.Background(), domain.TrackingRun{}, nil))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteEvents_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := NewWriter(filepath.Join(t.TempDir(), "tracks.png"), discardLogger())

	err := w.WriteEvents(ctx, domain.TrackingRun{}, []domain.EventSummary{testEvent("hw-a", 1, 0)})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSegments_SplitsAtSeam(t *testing.T) {
	ev := testEvent("hw-a", 1, 178, 179.5, -179.5, -178)

	segs := segments(ev.Path)

	require.Len(t, segs, 2)
	assert.Len(t, segs[0], 2)
	assert.Len(t, segs[1], 2)
	assert.Equal(t, -179.5, segs[1][0].X)
}

func TestSegments_ContinuousPath(t *testing.T) {
	ev := testEvent("hw-a", 1, 10, 11, 12)

	segs := segments(ev.Path)

	require.Len(t, segs, 1)
	assert.Len(t, segs[0], 3)
}
