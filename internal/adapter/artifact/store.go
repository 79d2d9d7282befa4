// Package artifact persists per-day detection output as three JSON files
// keyed by date: the filtered mask, the cluster dictionary, and the count.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/heatwave-tracker/internal/domain"
)

const (
	maskPrefix       = "heatwave-mask_"
	dictionaryPrefix = "heatwave-dictionary_"
	countPrefix      = "heatwave-count_"
	ext              = ".json"
)

// Store reads and writes day artifacts under a single directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore returns a store rooted at dir. The directory is created on first save.
func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Dir returns the artifact directory.
func (s *Store) Dir() string { return s.dir }

type clusterRecord struct {
	ID          int          `json:"id"`
	AreaKm2     float64      `json:"area_km2"`
	Intensity   *float64     `json:"intensity"`
	MaxAnomaly  *float64     `json:"max_anomaly"`
	CentroidLat float64      `json:"centroid_lat"`
	CentroidLon float64      `json:"centroid_lon"`
	CellCount   int          `json:"cell_count"`
	Cells       [][4]float64 `json:"cells"` // row, col, lat, lon
}

type countRecord struct {
	Count int `json:"count"`
}

func (s *Store) path(prefix string, date time.Time) string {
	return filepath.Join(s.dir, prefix+domain.DateKey(date)+ext)
}

// Save writes the three files for a.Date. Each file is written to a
// temporary name and renamed into place; the count goes last, so a reader
// that finds the count file finds the other two complete.
func (s *Store) Save(ctx context.Context, g *domain.Grid, a domain.DayArtifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := domain.DateKey(a.Date)
	nlat, nlon := g.Shape()
	if err := a.Check(nlat, nlon); err != nil {
		return fmt.Errorf("save artifact %s: %w", key, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("save artifact %s: %w", key, err)
	}

	mask := make([][]*float64, nlat)
	one := 1.0
	for i := range mask {
		mask[i] = make([]*float64, nlon)
		for j := range mask[i] {
			if v := a.Mask.At(i, j); !math.IsNaN(v) && v > 0 {
				mask[i][j] = &one
			}
		}
	}

	dict := make([]clusterRecord, 0, a.Count())
	for _, c := range a.Clusters.Clusters() {
		rec := clusterRecord{
			ID:          c.ID,
			AreaKm2:     c.AreaKm2,
			Intensity:   finite(c.Intensity),
			MaxAnomaly:  finite(c.MaxAnomaly),
			CentroidLat: c.CentroidLat,
			CentroidLon: c.CentroidLon,
			CellCount:   c.Size(),
			Cells:       make([][4]float64, len(c.Cells)),
		}
		for i, cell := range c.Cells {
			rec.Cells[i] = [4]float64{float64(cell.Row), float64(cell.Col), g.Lat(cell.Row), g.Lon(cell.Col)}
		}
		dict = append(dict, rec)
	}

	if err := writeJSONAtomic(s.path(maskPrefix, a.Date), mask); err != nil {
		return fmt.Errorf("save artifact %s: %w", key, err)
	}
	if err := writeJSONAtomic(s.path(dictionaryPrefix, a.Date), dict); err != nil {
		return fmt.Errorf("save artifact %s: %w", key, err)
	}
	if err := writeJSONAtomic(s.path(countPrefix, a.Date), countRecord{Count: len(dict)}); err != nil {
		return fmt.Errorf("save artifact %s: %w", key, err)
	}
	return nil
}

// Load reads and cross-checks the three files for date. It returns
// domain.ErrMissingArtifact when none exist, domain.ErrPartialArtifact when
// only some do, and domain.ErrCorruptArtifact when they fail to parse or
// disagree.
func (s *Store) Load(ctx context.Context, date time.Time) (domain.DayArtifact, error) {
	if err := ctx.Err(); err != nil {
		return domain.DayArtifact{}, err
	}
	key := domain.DateKey(date)
	var (
		mask    [][]*float64
		dict    []clusterRecord
		count   countRecord
		missing []string
	)
	for _, f := range []struct {
		prefix string
		dst    any
	}{
		{maskPrefix, &mask},
		{dictionaryPrefix, &dict},
		{countPrefix, &count},
	} {
		err := readJSON(s.path(f.prefix, date), f.dst)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			missing = append(missing, strings.TrimSuffix(f.prefix, "_"))
		case err != nil:
			return domain.DayArtifact{}, fmt.Errorf("load artifact %s: %w: %w", key, domain.ErrCorruptArtifact, err)
		}
	}
	switch len(missing) {
	case 0:
	case 3:
		return domain.DayArtifact{}, fmt.Errorf("load artifact %s: %w", key, domain.ErrMissingArtifact)
	default:
		return domain.DayArtifact{}, fmt.Errorf("load artifact %s: missing %s: %w",
			key, strings.Join(missing, ", "), domain.ErrPartialArtifact)
	}

	if count.Count != len(dict) {
		return domain.DayArtifact{}, fmt.Errorf("load artifact %s: count %d but dictionary has %d clusters: %w",
			key, count.Count, len(dict), domain.ErrCorruptArtifact)
	}
	if len(mask) == 0 || len(mask[0]) == 0 {
		return domain.DayArtifact{}, fmt.Errorf("load artifact %s: empty mask: %w", key, domain.ErrCorruptArtifact)
	}

	nlat, nlon := len(mask), len(mask[0])
	slice := domain.NewSlice(nlat, nlon, math.NaN())
	for i, row := range mask {
		if len(row) != nlon {
			return domain.DayArtifact{}, fmt.Errorf("load artifact %s: ragged mask row %d: %w", key, i, domain.ErrCorruptArtifact)
		}
		for j, v := range row {
			if v != nil {
				slice.Set(i, j, *v)
			}
		}
	}

	set := domain.NewClusterSet()
	for _, rec := range dict {
		if rec.CellCount != len(rec.Cells) {
			return domain.DayArtifact{}, fmt.Errorf("load artifact %s: cluster %d cell_count %d but %d cells: %w",
				key, rec.ID, rec.CellCount, len(rec.Cells), domain.ErrCorruptArtifact)
		}
		c := &domain.Cluster{
			ID:          rec.ID,
			AreaKm2:     rec.AreaKm2,
			Intensity:   orNaN(rec.Intensity),
			MaxAnomaly:  orNaN(rec.MaxAnomaly),
			CentroidLat: rec.CentroidLat,
			CentroidLon: rec.CentroidLon,
			Cells:       make([]domain.Cell, len(rec.Cells)),
		}
		for i, cell := range rec.Cells {
			c.Cells[i] = domain.Cell{Row: int(cell[0]), Col: int(cell[1])}
		}
		if err := set.Add(c); err != nil {
			return domain.DayArtifact{}, fmt.Errorf("load artifact %s: %w: %w", key, domain.ErrCorruptArtifact, err)
		}
	}

	a := domain.DayArtifact{Date: domain.Day(date), Mask: slice, Clusters: set}
	if err := a.Check(nlat, nlon); err != nil {
		return domain.DayArtifact{}, err
	}
	return a, nil
}

// Dates lists the dates that have a dictionary file, in increasing order.
// A missing directory yields no dates.
func (s *Store) Dates(ctx context.Context) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list artifacts in %s: %w", s.dir, err)
	}
	var dates []time.Time
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, dictionaryPrefix) || !strings.HasSuffix(name, ext) {
			continue
		}
		d, err := domain.ParseDateKey(strings.TrimSuffix(strings.TrimPrefix(name, dictionaryPrefix), ext))
		if err != nil {
			s.logger.Warn("skipping unrecognized artifact file", "file", name, "error", err)
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
