package state

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fixedClock(t *testing.T) func() time.Time {
	t.Helper()
	at := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestWriteArtifact_SequencesSameDayWrites(t *testing.T) {
	store := NewStore(t.TempDir(), WithClock(fixedClock(t)))

	first, err := store.WriteArtifact("www@nas", KindSnapshotCount, []byte(`{"snapshot_count":1}`))
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	second, err := store.WriteArtifact("www@nas", KindSnapshotCount, []byte(`{"snapshot_count":2}`))
	if err != nil {
		t.Fatalf("second write: %v", err)
	}

	if first != "snapshot-count-2026-08-28-1.json" {
		t.Errorf("unexpected first artifact name: %s", first)
	}
	if second != "snapshot-count-2026-08-28-2.json" {
		t.Errorf("unexpected second artifact name: %s", second)
	}
}

func TestWriteArtifact_LatestReferenceTracksNewest(t *testing.T) {
	store := NewStore(t.TempDir(), WithClock(fixedClock(t)))

	if _, err := store.WriteArtifact("www@nas", KindRawSnapshots, []byte(`[]`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	newest, err := store.WriteArtifact("www@nas", KindRawSnapshots, []byte(`[{"id":"abc"}]`))
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	content, err := store.ReadLatest("www@nas", KindRawSnapshots)
	if err != nil {
		t.Fatalf("ReadLatest: %v", err)
	}
	if !bytes.Equal(content, []byte(`[{"id":"abc"}]`)) {
		t.Errorf("latest content = %s", content)
	}

	target, err := os.Readlink(filepath.Join(store.Root(), "www@nas", KindRawSnapshots+".latest.json"))
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if target != newest {
		t.Errorf("latest reference points at %s, want %s", target, newest)
	}
}

func TestWriteArtifact_CompleteSetForOneCollection(t *testing.T) {
	store := NewStore(t.TempDir(), WithClock(fixedClock(t)))

	kinds := []string{KindRawSnapshots, KindRestoreSizeLatest, KindSnapshotCount}
	for _, kind := range kinds {
		if _, err := store.WriteArtifact("www@nas", kind, []byte(`{}`)); err != nil {
			t.Fatalf("write %s: %v", kind, err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(store.Root(), "www@nas"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	// Three dated artifacts plus three latest references.
	if len(entries) != 6 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected 6 files, got %d: %v", len(entries), names)
	}
}

// A crash between the artifact rename and the reference swap leaves an
// orphaned artifact but the previous reference must still resolve.
func TestLatestReference_SurvivesInterruptedWrite(t *testing.T) {
	store := NewStore(t.TempDir(), WithClock(fixedClock(t)))

	if _, err := store.WriteArtifact("www@nas", KindRawSnapshots, []byte(`[{"id":"old"}]`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Simulate the interruption: the new artifact landed, the reference
	// swap never happened.
	dir := filepath.Join(store.Root(), "www@nas")
	orphan := filepath.Join(dir, "raw-snapshots-2026-08-28-2.json")
	if err := os.WriteFile(orphan, []byte(`[{"id":"new"}]`), 0o644); err != nil {
		t.Fatalf("plant orphan: %v", err)
	}

	content, err := store.ReadLatest("www@nas", KindRawSnapshots)
	if err != nil {
		t.Fatalf("ReadLatest after interruption: %v", err)
	}
	if !bytes.Equal(content, []byte(`[{"id":"old"}]`)) {
		t.Errorf("latest content = %s, want prior artifact", content)
	}

	// A leftover temp link from the interrupted swap must not block the
	// next collection.
	tmpLink := filepath.Join(dir, KindRawSnapshots+".latest.json.tmp")
	if err := os.Symlink("raw-snapshots-2026-08-28-2.json", tmpLink); err != nil {
		t.Fatalf("plant temp link: %v", err)
	}
	if _, err := store.WriteArtifact("www@nas", KindRawSnapshots, []byte(`[{"id":"newer"}]`)); err != nil {
		t.Fatalf("write after interruption: %v", err)
	}
	content, err = store.ReadLatest("www@nas", KindRawSnapshots)
	if err != nil {
		t.Fatalf("ReadLatest: %v", err)
	}
	if !bytes.Equal(content, []byte(`[{"id":"newer"}]`)) {
		t.Errorf("latest content = %s", content)
	}
}

func TestReadLatest_NoArtifact(t *testing.T) {
	store := NewStore(t.TempDir())
	if _, err := store.ReadLatest("www@nas", KindRawSnapshots); !errors.Is(err, ErrNoArtifact) {
		t.Fatalf("expected ErrNoArtifact, got %v", err)
	}
}

func TestReadLastSnapshotID(t *testing.T) {
	store := NewStore(t.TempDir(), WithClock(fixedClock(t)))

	id, err := store.ReadLastSnapshotID("www@nas")
	if err != nil {
		t.Fatalf("ReadLastSnapshotID: %v", err)
	}
	if id != "" {
		t.Errorf("expected empty ID before first collection, got %q", id)
	}

	raw := []byte(`[
		{"id":"aaa","time":"2026-08-27T01:00:00Z"},
		{"id":"bbb","time":"2026-08-28T01:00:00Z"}
	]`)
	if _, err := store.WriteArtifact("www@nas", KindRawSnapshots, raw); err != nil {
		t.Fatalf("write: %v", err)
	}

	id, err = store.ReadLastSnapshotID("www@nas")
	if err != nil {
		t.Fatalf("ReadLastSnapshotID: %v", err)
	}
	if id != "bbb" {
		t.Errorf("expected newest ID bbb, got %q", id)
	}
}
