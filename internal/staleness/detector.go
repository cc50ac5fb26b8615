// Package staleness decides whether a freshly listed snapshot set
// represents progress since the previous collection.
package staleness

import "github.com/kebairia/restic-health/internal/restic"

// Decision is the outcome of comparing the current snapshot list against
// the last recorded snapshot ID.
type Decision int

const (
	// NoNewData means the newest snapshot is the one already recorded.
	NoNewData Decision = iota
	// NewDataAvailable means the backend holds a snapshot not yet recorded.
	NewDataAvailable
)

func (d Decision) String() string {
	if d == NewDataAvailable {
		return "new-data-available"
	}
	return "no-new-data"
}

// Detect compares the newest ID in the current snapshot list against the
// last recorded one. Comparison is strictly by snapshot ID; IDs are
// unique and assigned by the backend, while timestamps are informational
// only. A location with no recorded artifact has lastID "", so any
// non-empty repository counts as new data on first collection, while a
// repository that has never produced a snapshot reports no progress.
func Detect(current []restic.Snapshot, lastID string) Decision {
	if restic.NewestID(current) == lastID {
		return NoNewData
	}
	return NewDataAvailable
}
