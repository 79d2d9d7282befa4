// Package plot draws event centroid trajectories on a longitude/latitude plane.
package plot

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
)

// maxLegendEntries keeps the legend readable on long runs.
const maxLegendEntries = 12

// Writer renders one image per tracking run. The format follows the file
// extension of the path (png, svg, pdf).
type Writer struct {
	path   string
	logger *slog.Logger
}

// NewWriter returns a trajectory plot sink writing to path.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{path: path, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "plot" }

// WriteEvents draws every event path as a line with a marker on each daily
// centroid. Runs with no events write nothing.
func (w *Writer) WriteEvents(ctx context.Context, run domain.TrackingRun, events []domain.EventSummary) error {
	if len(events) == 0 {
		w.logger.Info("no events to plot", "run_id", run.ID)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p := gplot.New()
	p.Title.Text = fmt.Sprintf("Heatwave trajectories %s %s (%s to %s)",
		run.Dataset, run.Region, domain.DateKey(run.StartDate), domain.DateKey(run.EndDate))
	p.X.Label.Text = "Longitude (°)"
	p.Y.Label.Text = "Latitude (°)"
	p.Add(plotter.NewGrid())

	for i, ev := range events {
		color := plotutil.Color(i)
		for j, seg := range segments(ev.Path) {
			line, points, err := plotter.NewLinePoints(seg)
			if err != nil {
				return fmt.Errorf("plot event %s: %w", ev.ID, err)
			}
			line.Color = color
			line.Width = vg.Points(1)
			points.GlyphStyle.Color = color
			points.GlyphStyle.Radius = vg.Points(1.5)
			p.Add(line, points)
			if j == 0 && i < maxLegendEntries {
				p.Legend.Add(fmt.Sprintf("%s (%dd)", domain.DateKey(ev.StartDate), ev.DurationDays), line)
			}
		}
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	if err := p.Save(14*vg.Inch, 7*vg.Inch, w.path); err != nil {
		return fmt.Errorf("save trajectory plot: %w", err)
	}
	w.logger.Info("trajectory plot written", "path", w.path, "events", len(events))
	return nil
}

// segments splits a path wherever consecutive centroids are more than 180°
// of longitude apart, so tracks crossing the seam are not drawn across the map.
func segments(path []domain.CentroidPoint) []plotter.XYs {
	var out []plotter.XYs
	var cur plotter.XYs
	for i, pt := range path {
		if i > 0 && math.Abs(pt.Lon-path[i-1].Lon) > 180 {
			out = append(out, cur)
			cur = nil
		}
		cur = append(cur, plotter.XY{X: pt.Lon, Y: pt.Lat})
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
