package domain

import "math"

// ClusterArea sums the row-dependent cell areas of a cluster's members, in km².
func ClusterArea(c *Cluster, g *Grid) float64 {
	area := 0.0
	for _, cell := range c.Cells {
		area += g.CellArea(cell.Row)
	}
	return area
}

// FilterClusters drops clusters whose area is below minAreaKm2 and relabels
// the survivors 1..n in their original order. The returned mask holds 1 for
// surviving member cells and NaN everywhere else. The input set is not
// modified; survivors are copies carrying their computed area.
func FilterClusters(set *ClusterSet, g *Grid, minAreaKm2 float64) (*ClusterSet, Slice) {
	nlat, nlon := g.Shape()
	mask := NewSlice(nlat, nlon, math.NaN())
	out := NewClusterSet()

	for _, c := range set.Clusters() {
		area := ClusterArea(c, g)
		if area < minAreaKm2 {
			continue
		}
		kept := *c
		kept.ID = out.Len() + 1
		kept.AreaKm2 = area
		kept.Cells = append([]Cell(nil), c.Cells...)
		for _, cell := range kept.Cells {
			mask.Set(cell.Row, cell.Col, 1)
		}
		// IDs are sequential, so Add cannot fail.
		_ = out.Add(&kept)
	}
	return out, mask
}
