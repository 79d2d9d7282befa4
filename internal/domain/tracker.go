package domain

import (
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// OverlapMetric selects how the strength of a day-to-day cluster link is scored.
type OverlapMetric string

const (
	// OverlapCells scores a link by the number of shared cells.
	OverlapCells OverlapMetric = "cells"
	// OverlapFraction scores a link by shared cells over the smaller cluster's size.
	OverlapFraction OverlapMetric = "fraction"
)

// ParseOverlapMetric validates a configured metric name.
func ParseOverlapMetric(s string) (OverlapMetric, error) {
	switch m := OverlapMetric(s); m {
	case OverlapCells, OverlapFraction:
		return m, nil
	}
	return "", fmt.Errorf("unknown overlap metric %q", s)
}

// TrackerOptions configures a Tracker.
type TrackerOptions struct {
	Overlap OverlapMetric
	// MinDurationDays drops shorter tracks from Events. Values below 1 keep everything.
	MinDurationDays int
}

// Observation is one day of a track.
type Observation struct {
	Date    time.Time
	Cluster *Cluster
}

// Track follows one heatwave through consecutive days. A track is open from
// its first observation until the first day with no successor, after which
// it is closed for good.
type Track struct {
	ID           int
	Observations []Observation
	// SplitFrom is the parent track when this track began as a secondary
	// branch of a split; 0 otherwise.
	SplitFrom int
	// MergedInto is the surviving track when this track ended by merging; 0 otherwise.
	MergedInto int

	closed bool
}

// Start returns the date of the first observation.
func (t *Track) Start() time.Time { return t.Observations[0].Date }

// End returns the date of the last observation.
func (t *Track) End() time.Time { return t.Observations[len(t.Observations)-1].Date }

// Duration returns the lifetime in days, counting both endpoints.
func (t *Track) Duration() int {
	return int(Day(t.End()).Sub(Day(t.Start())).Hours()/24) + 1
}

// Closed reports whether the track has ended.
func (t *Track) Closed() bool { return t.closed }

func (t *Track) last() *Cluster { return t.Observations[len(t.Observations)-1].Cluster }

// LinkKind labels a lineage event.
type LinkKind string

const (
	LinkSplit LinkKind = "split"
	LinkMerge LinkKind = "merge"
)

// Lineage records a split or merge between two tracks on a given day.
type Lineage struct {
	Kind LinkKind
	Date time.Time
	// Track is the track that started (split) or ended (merge).
	Track int
	// Other is the parent track (split) or the surviving track (merge).
	Other int
}

// Tracker links per-day cluster sets into tracks in a single sequential pass.
//
// Between consecutive days, every (predecessor, successor) pair sharing at
// least one cell is a candidate link. Candidates are accepted greedily by
// strength descending, then predecessor ID ascending, then successor ID
// ascending, skipping any pair where either side is already linked. An
// accepted link extends the predecessor's track. Successors left unlinked
// open new tracks, and count as splits from their strongest predecessor when
// they overlap one. Predecessors left unlinked close, and count as merges into
// the track that took their strongest successor when they overlap one.
//
// Acceptance is a matching, not a per-cluster argmax. A predecessor whose
// strongest successor was claimed by a stronger predecessor still links to
// its next-best unclaimed successor, so it continues rather than closing as a
// merge. Only predecessors left with no unclaimed overlapping successor merge.
type Tracker struct {
	opts   TrackerOptions
	logger *slog.Logger

	tracks   []*Track
	open     map[int]*Track // previous day's cluster ID -> track
	prev     *ClusterSet
	prevDate time.Time
	started  bool
	lineage  []Lineage
}

// NewTracker returns an empty tracker.
func NewTracker(opts TrackerOptions, logger *slog.Logger) *Tracker {
	if opts.Overlap == "" {
		opts.Overlap = OverlapCells
	}
	return &Tracker{opts: opts, logger: logger, open: make(map[int]*Track)}
}

type candidate struct {
	pred, succ int
	shared     int
	strength   float64
}

// Step consumes the clusters of the next day. Dates must strictly increase.
// A nil set means no clusters. When date is not the calendar day after the
// previous step, every open track closes before the new day is linked.
func (tr *Tracker) Step(date time.Time, set *ClusterSet) error {
	date = Day(date)
	if tr.started && !date.After(tr.prevDate) {
		return fmt.Errorf("track step %s: dates must increase (previous %s)", DateKey(date), DateKey(tr.prevDate))
	}
	if tr.started && !NextDay(tr.prevDate, date) {
		tr.closeAll()
	}

	cands := tr.candidates(set)
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.strength != b.strength {
			return a.strength > b.strength
		}
		if a.pred != b.pred {
			return a.pred < b.pred
		}
		return a.succ < b.succ
	})

	// Strongest partner per side, using the same ordering as acceptance.
	bestSucc := make(map[int]int)
	bestPred := make(map[int]int)
	linkedPred := make(map[int]bool)
	next := make(map[int]*Track, set.Len())
	for _, c := range cands {
		if _, ok := bestSucc[c.pred]; !ok {
			bestSucc[c.pred] = c.succ
		}
		if _, ok := bestPred[c.succ]; !ok {
			bestPred[c.succ] = c.pred
		}
		if linkedPred[c.pred] || next[c.succ] != nil {
			continue
		}
		linkedPred[c.pred] = true
		cl, _ := set.Get(c.succ)
		track := tr.open[c.pred]
		track.Observations = append(track.Observations, Observation{Date: date, Cluster: cl})
		next[c.succ] = track
	}

	for _, cl := range set.Clusters() {
		if next[cl.ID] != nil {
			continue
		}
		track := &Track{ID: len(tr.tracks) + 1, Observations: []Observation{{Date: date, Cluster: cl}}}
		tr.tracks = append(tr.tracks, track)
		next[cl.ID] = track
		if pred, ok := bestPred[cl.ID]; ok {
			parent := tr.open[pred]
			track.SplitFrom = parent.ID
			tr.lineage = append(tr.lineage, Lineage{Kind: LinkSplit, Date: date, Track: track.ID, Other: parent.ID})
			tr.logger.Debug("heatwave split",
				"date", DateKey(date), "track_id", track.ID, "parent_track_id", parent.ID, "cluster_id", cl.ID)
		}
	}

	for _, id := range tr.prev.IDs() {
		if linkedPred[id] {
			continue
		}
		track := tr.open[id]
		track.closed = true
		if succ, ok := bestSucc[id]; ok {
			survivor := next[succ]
			track.MergedInto = survivor.ID
			tr.lineage = append(tr.lineage, Lineage{Kind: LinkMerge, Date: date, Track: track.ID, Other: survivor.ID})
			tr.logger.Debug("heatwave merge",
				"date", DateKey(date), "track_id", track.ID, "surviving_track_id", survivor.ID)
		}
	}

	tr.open = next
	tr.prev = set
	tr.prevDate = date
	tr.started = true
	return nil
}

func (tr *Tracker) candidates(set *ClusterSet) []candidate {
	if tr.prev.Len() == 0 || set.Len() == 0 {
		return nil
	}
	owner := make(map[Cell]int, tr.prev.TotalCells())
	for _, c := range tr.prev.Clusters() {
		for _, cell := range c.Cells {
			owner[cell] = c.ID
		}
	}

	var out []candidate
	for _, succ := range set.Clusters() {
		shared := make(map[int]int)
		for _, cell := range succ.Cells {
			if id, ok := owner[cell]; ok {
				shared[id]++
			}
		}
		for pred, n := range shared {
			out = append(out, candidate{pred: pred, succ: succ.ID, shared: n, strength: tr.strength(pred, succ, n)})
		}
	}
	return out
}

func (tr *Tracker) strength(pred int, succ *Cluster, shared int) float64 {
	if tr.opts.Overlap != OverlapFraction {
		return float64(shared)
	}
	p, _ := tr.prev.Get(pred)
	smaller := min(p.Size(), succ.Size())
	return float64(shared) / float64(smaller)
}

func (tr *Tracker) closeAll() {
	for _, track := range tr.open {
		track.closed = true
	}
	tr.open = make(map[int]*Track)
	tr.prev = nil
}

// Finish closes every open track and returns all tracks in creation order.
func (tr *Tracker) Finish() []*Track {
	tr.closeAll()
	return append([]*Track(nil), tr.tracks...)
}

// Events summarizes every closed track lasting at least MinDurationDays.
// Call Finish first to include tracks still open at the end of the window.
func (tr *Tracker) Events(dataset, region string) []EventSummary {
	return SummarizeTracks(tr.tracks, dataset, region, max(tr.opts.MinDurationDays, 1))
}

// OpenTracks returns the number of tracks still open.
func (tr *Tracker) OpenTracks() int { return len(tr.open) }

// Tracks returns every track created so far in creation order.
func (tr *Tracker) Tracks() []*Track { return append([]*Track(nil), tr.tracks...) }

// Lineage returns the splits and merges observed so far, in the order found.
func (tr *Tracker) Lineage() []Lineage { return append([]Lineage(nil), tr.lineage...) }
