package restic

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is one entry of `restic snapshots --json`. Restic emits the
// list ordered oldest to newest; IDs are unique per repository.
type Snapshot struct {
	ID       string    `json:"id"`
	ShortID  string    `json:"short_id"`
	Time     time.Time `json:"time"`
	Hostname string    `json:"hostname"`
	Paths    []string  `json:"paths"`
	Tags     []string  `json:"tags,omitempty"`
}

// ParseSnapshots decodes the raw JSON output of `restic snapshots`.
func ParseSnapshots(raw []byte) ([]Snapshot, error) {
	var snaps []Snapshot
	if err := json.Unmarshal(raw, &snaps); err != nil {
		return nil, fmt.Errorf("decode snapshot list: %w", err)
	}
	return snaps, nil
}

// NewestID returns the ID of the newest snapshot in a restic-ordered
// list, or "" for an empty list.
func NewestID(snaps []Snapshot) string {
	if len(snaps) == 0 {
		return ""
	}
	return snaps[len(snaps)-1].ID
}
