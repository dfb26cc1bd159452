// Package snapstats reduces the recorded state history of one tracked
// download into cumulative figures: hours spent stalled and seeding, how
// often it was seen queued, and whether its progress got stuck.
package snapstats

import (
	"sort"
	"time"
)

// DefaultStuckThreshold is the gap above which unchanged progress between
// two consecutive snapshots counts as stuck.
const DefaultStuckThreshold = 2 * time.Hour

// State is the upstream download state recorded in a snapshot.
type State string

const (
	Stalled     State = "stalled"
	Seeding     State = "seeding"
	Queued      State = "queued"
	Downloading State = "downloading"
)

// Snapshot is one point-in-time observation. Progress is nil when the
// upstream did not report it.
type Snapshot struct {
	State     State     `json:"state" yaml:"state"`
	Progress  *float64  `json:"progress,omitempty" yaml:"progress,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Metrics are the aggregates derived from a snapshot history.
type Metrics struct {
	StalledTimeHours float64 `json:"stalled_time_hours"`
	SeedingTimeHours float64 `json:"seeding_time_hours"`
	StuckProgress    bool    `json:"stuck_progress"`
	QueuedCount      int     `json:"queued_count"`
}

// Calculator holds the tunables of Compute. The zero value uses
// DefaultStuckThreshold.
type Calculator struct {
	StuckThreshold time.Duration
}

// Compute is Calculator{}.Compute.
func Compute(snapshots []Snapshot, now time.Time) Metrics {
	return Calculator{}.Compute(snapshots, now)
}

// Compute walks the history once in ascending CreatedAt order. Intervals
// still open at the last snapshot are counted up to now, since the item is
// still in that state. The input slice is not modified.
func (c Calculator) Compute(snapshots []Snapshot, now time.Time) Metrics {
	if len(snapshots) == 0 {
		return Metrics{}
	}
	threshold := c.StuckThreshold
	if threshold <= 0 {
		threshold = DefaultStuckThreshold
	}

	sorted := make([]Snapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	var (
		m                      Metrics
		stalled, seeding       interval
		stalledDur, seedingDur time.Duration
	)
	for i, s := range sorted {
		stalledDur += stalled.track(s.State == Stalled, s.CreatedAt)
		seedingDur += seeding.track(s.State == Seeding, s.CreatedAt)
		if s.State == Queued {
			m.QueuedCount++
		}
		if i > 0 && !m.StuckProgress && stuck(sorted[i-1], s, threshold) {
			m.StuckProgress = true
		}
	}
	stalledDur += stalled.closeAt(now)
	seedingDur += seeding.closeAt(now)

	m.StalledTimeHours = stalledDur.Hours()
	m.SeedingTimeHours = seedingDur.Hours()
	return m
}

// interval is an open-ended stretch of one state.
type interval struct {
	open  bool
	start time.Time
}

// track opens the interval on entering the state and returns the closed
// duration on leaving it.
func (iv *interval) track(in bool, at time.Time) time.Duration {
	switch {
	case in && !iv.open:
		iv.open, iv.start = true, at
	case !in && iv.open:
		return iv.closeAt(at)
	}
	return 0
}

func (iv *interval) closeAt(at time.Time) time.Duration {
	if !iv.open {
		return 0
	}
	iv.open = false
	if d := at.Sub(iv.start); d > 0 {
		return d
	}
	return 0
}

// stuck reports unchanged progress across a gap longer than threshold.
func stuck(prev, next Snapshot, threshold time.Duration) bool {
	if prev.Progress == nil || next.Progress == nil {
		return false
	}
	return *prev.Progress == *next.Progress && next.CreatedAt.Sub(prev.CreatedAt) > threshold
}
