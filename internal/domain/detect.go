package domain

import "fmt"

// DetectClusters labels the 4-connected components of one timestep. A cell
// is a member when its value is finite and strictly positive, so the input
// may be a 0/1 exceedance mask or a signed anomaly field. When the grid is
// periodic, column 0 and the last column of a row are also adjacent.
//
// IDs are assigned from 1 in row-major order of each component's first cell,
// and member cells are stored in row-major order, so identical input always
// yields identical output. No members yields an empty set.
func DetectClusters(s Slice, g *Grid) (*ClusterSet, error) {
	nlat, nlon := g.Shape()
	if s.NLat != nlat || s.NLon != nlon || len(s.Values) != nlat*nlon {
		return nil, fmt.Errorf("detect clusters: slice (%d, %d) vs grid (%d, %d): %w",
			s.NLat, s.NLon, nlat, nlon, ErrShapeMismatch)
	}

	set := NewClusterSet()
	visited := make([]bool, nlat*nlon)
	var queue []Cell

	for row := 0; row < nlat; row++ {
		for col := 0; col < nlon; col++ {
			idx := row*nlon + col
			if visited[idx] || !isMember(s.Values[idx]) {
				continue
			}

			c := &Cluster{ID: set.Len() + 1}
			visited[idx] = true
			queue = append(queue[:0], Cell{row, col})
			for len(queue) > 0 {
				cur := queue[0]
				queue = queue[1:]
				c.Cells = append(c.Cells, cur)
				for _, nb := range g.Neighbors(cur.Row, cur.Col) {
					ni := nb.Row*nlon + nb.Col
					if visited[ni] || !isMember(s.Values[ni]) {
						continue
					}
					visited[ni] = true
					queue = append(queue, nb)
				}
			}
			sortCells(c.Cells)

			if err := set.Add(c); err != nil {
				return nil, fmt.Errorf("detect clusters: %w", err)
			}
		}
	}
	return set, nil
}
