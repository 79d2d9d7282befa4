package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Cluster is one spatially connected set of exceedance cells at a single
// timestep. IDs are local to the timestep.
type Cluster struct {
	ID          int     `json:"id"`
	Cells       []Cell  `json:"-"`
	AreaKm2     float64 `json:"area_km2"`
	Intensity   float64 `json:"intensity"`
	MaxAnomaly  float64 `json:"max_anomaly"`
	CentroidLat float64 `json:"centroid_lat"`
	CentroidLon float64 `json:"centroid_lon"`
}

// Size returns the number of member cells.
func (c *Cluster) Size() int { return len(c.Cells) }

// ClusterSet is an ordered mapping from cluster ID to cluster. Iteration and
// serialization always follow ascending ID, which for detector output is the
// row-major scan order of each cluster's first cell.
type ClusterSet struct {
	clusters []*Cluster
	index    map[int]int
}

// NewClusterSet returns an empty set.
func NewClusterSet() *ClusterSet {
	return &ClusterSet{index: make(map[int]int)}
}

// Add appends c. IDs must be positive and strictly increasing.
func (s *ClusterSet) Add(c *Cluster) error {
	if c.ID <= 0 {
		return fmt.Errorf("cluster id %d: must be positive", c.ID)
	}
	if n := len(s.clusters); n > 0 && c.ID <= s.clusters[n-1].ID {
		return fmt.Errorf("cluster id %d: not greater than previous id %d", c.ID, s.clusters[n-1].ID)
	}
	s.index[c.ID] = len(s.clusters)
	s.clusters = append(s.clusters, c)
	return nil
}

// Len returns the cluster count. A nil set has no clusters.
func (s *ClusterSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.clusters)
}

// Get looks up a cluster by ID.
func (s *ClusterSet) Get(id int) (*Cluster, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.clusters[i], true
}

// Clusters returns the clusters in ascending ID order.
func (s *ClusterSet) Clusters() []*Cluster {
	if s == nil {
		return nil
	}
	return append([]*Cluster(nil), s.clusters...)
}

// IDs returns the cluster IDs in ascending order.
func (s *ClusterSet) IDs() []int {
	ids := make([]int, 0, s.Len())
	for _, c := range s.Clusters() {
		ids = append(ids, c.ID)
	}
	return ids
}

// TotalCells returns the number of member cells across all clusters.
func (s *ClusterSet) TotalCells() int {
	n := 0
	for _, c := range s.Clusters() {
		n += c.Size()
	}
	return n
}

// MarshalJSON encodes the set as an ID-ordered array.
func (s *ClusterSet) MarshalJSON() ([]byte, error) {
	clusters := s.Clusters()
	if clusters == nil {
		clusters = []*Cluster{}
	}
	return json.Marshal(clusters)
}

func sortCells(cells []Cell) {
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}
		return cells[i].Col < cells[j].Col
	})
}
