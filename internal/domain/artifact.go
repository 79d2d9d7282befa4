package domain

import (
	"fmt"
	"time"
)

// DayArtifact is the detection output for one date: the filtered spatial
// mask (1 for members, NaN elsewhere) and the attributed clusters. The
// cluster count is Clusters.Len(); the three are persisted and loaded together.
type DayArtifact struct {
	Date     time.Time
	Mask     Slice
	Clusters *ClusterSet
}

// Count returns the number of clusters.
func (a DayArtifact) Count() int { return a.Clusters.Len() }

// Check verifies that the mask, the clusters, and the grid agree: matching
// shape, in-bounds member cells, and one mask cell per member cell.
func (a DayArtifact) Check(nlat, nlon int) error {
	key := DateKey(a.Date)
	if a.Mask.NLat != nlat || a.Mask.NLon != nlon || len(a.Mask.Values) != nlat*nlon {
		return fmt.Errorf("artifact %s: mask (%d, %d) vs grid (%d, %d): %w",
			key, a.Mask.NLat, a.Mask.NLon, nlat, nlon, ErrCorruptArtifact)
	}
	seen := make(map[Cell]bool, a.Clusters.TotalCells())
	for _, c := range a.Clusters.Clusters() {
		for _, cell := range c.Cells {
			if cell.Row < 0 || cell.Row >= nlat || cell.Col < 0 || cell.Col >= nlon {
				return fmt.Errorf("artifact %s: cluster %d cell (%d, %d) outside grid: %w",
					key, c.ID, cell.Row, cell.Col, ErrCorruptArtifact)
			}
			if seen[cell] {
				return fmt.Errorf("artifact %s: cell (%d, %d) in more than one cluster: %w",
					key, cell.Row, cell.Col, ErrCorruptArtifact)
			}
			seen[cell] = true
			if !isMember(a.Mask.At(cell.Row, cell.Col)) {
				return fmt.Errorf("artifact %s: cluster %d cell (%d, %d) not set in mask: %w",
					key, c.ID, cell.Row, cell.Col, ErrCorruptArtifact)
			}
		}
	}
	if n := a.Mask.Count(); n != len(seen) {
		return fmt.Errorf("artifact %s: mask has %d member cells, clusters have %d: %w",
			key, n, len(seen), ErrCorruptArtifact)
	}
	return nil
}
