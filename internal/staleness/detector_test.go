package staleness

import (
	"testing"
	"time"

	"github.com/kebairia/restic-health/internal/restic"
)

func snaps(ids ...string) []restic.Snapshot {
	var list []restic.Snapshot
	for i, id := range ids {
		list = append(list, restic.Snapshot{
			ID:   id,
			Time: time.Date(2026, 8, 20+i, 0, 0, 0, 0, time.UTC),
		})
	}
	return list
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		current []restic.Snapshot
		lastID  string
		want    Decision
	}{
		{
			name:    "unchanged snapshot set",
			current: snaps("aaa", "bbb"),
			lastID:  "bbb",
			want:    NoNewData,
		},
		{
			name:    "one additional snapshot",
			current: snaps("aaa", "bbb", "ccc"),
			lastID:  "bbb",
			want:    NewDataAvailable,
		},
		{
			name:    "no prior artifact",
			current: snaps("aaa"),
			lastID:  "",
			want:    NewDataAvailable,
		},
		{
			name:    "empty repository never recorded",
			current: nil,
			lastID:  "",
			want:    NoNewData,
		},
		{
			name:    "snapshots vanished since last record",
			current: nil,
			lastID:  "bbb",
			want:    NewDataAvailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.current, tt.lastID); got != tt.want {
				t.Errorf("Detect() = %s, want %s", got, tt.want)
			}
		})
	}
}
