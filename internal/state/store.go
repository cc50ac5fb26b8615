package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kebairia/restic-health/internal/restic"
)

// Artifact kinds; each value is also the on-disk filename prefix.
const (
	KindRawSnapshots      = "raw-snapshots"
	KindRestoreSizeLatest = "raw-stats-restore-size-latest"
	KindSnapshotCount     = "snapshot-count"

	// Extended kinds, written only when extended stats are enabled.
	KindRawDataLatest = "raw-stats-raw-data-latest"
	KindRawDataAll    = "raw-stats-raw-data-all"
	KindDiffLatest    = "raw-diff-stats-latest"
)

// ErrStateIO indicates a filesystem failure in the state directory. Always
// fatal for the affected location.
var ErrStateIO = errors.New("state store I/O failure")

// ErrNoArtifact is returned when no artifact of the requested kind has
// ever been written for a location.
var ErrNoArtifact = errors.New("no artifact recorded")

const (
	dirMode  = 0o755
	fileMode = 0o644
)

// Store owns a state directory holding, per location, every historical
// artifact plus one latest reference per kind. Artifacts are immutable
// once written and are never deleted here; pruning history is external
// tooling's concern.
type Store struct {
	root string
	now  func() time.Time
}

// StoreOption overrides a default setting on a Store.
type StoreOption func(*Store)

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore returns a Store rooted at dir. The directory tree is created
// lazily on first write.
func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{root: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the state directory path.
func (s *Store) Root() string { return s.root }

// locationDir returns the directory holding one location's artifacts.
func (s *Store) locationDir(location string) string {
	return filepath.Join(s.root, location)
}

// latestPath returns the latest-reference path for (location, kind).
func (s *Store) latestPath(location, kind string) string {
	return filepath.Join(s.locationDir(location), kind+".latest.json")
}

// nextSequence returns 1 plus the highest sequence number among existing
// artifacts of the given kind and date, so that repeated collections on
// one day never collide.
func (s *Store) nextSequence(dir, kind, date string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 1, nil
		}
		return 0, fmt.Errorf("%w: read %s: %v", ErrStateIO, dir, err)
	}

	prefix := kind + "-" + date + "-"
	max := 0
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		seqStr := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
		seq, err := strconv.Atoi(seqStr)
		if err != nil {
			continue
		}
		if seq > max {
			max = seq
		}
	}
	return max + 1, nil
}

// WriteArtifact persists one observation for (location, kind) and swaps
// the kind's latest reference to it. The artifact is written to a
// temporary sibling and renamed into place before the reference moves, so
// an interruption at any point leaves the previous reference resolving to
// a complete artifact. Returns the artifact filename within the location
// directory.
func (s *Store) WriteArtifact(location, kind string, content []byte) (string, error) {
	dir := s.locationDir(location)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrStateIO, dir, err)
	}

	date := s.now().Format("2006-01-02")
	seq, err := s.nextSequence(dir, kind, date)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s-%d.json", kind, date, seq)
	path := filepath.Join(dir, name)

	if err := writeFileAtomic(path, content); err != nil {
		return "", err
	}
	if err := s.updateLatest(location, kind, name); err != nil {
		return "", err
	}
	return name, nil
}

// writeFileAtomic writes content to a temporary file in the target's
// directory, syncs it, and renames it into place.
func writeFileAtomic(path string, content []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrStateIO, tmp, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: write %s: %v", ErrStateIO, tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: sync %s: %v", ErrStateIO, tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: close %s: %v", ErrStateIO, tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %v", ErrStateIO, path, err)
	}
	return nil
}

// updateLatest repoints the latest reference at artifactName. The
// reference is a relative symlink swapped in via rename; it is never
// mutated in place, so it cannot dangle even if the process dies
// mid-update.
func (s *Store) updateLatest(location, kind, artifactName string) error {
	latest := s.latestPath(location, kind)
	tmp := latest + ".tmp"

	// A leftover temp link from a previous interrupted run must not block
	// the swap.
	os.Remove(tmp)
	if err := os.Symlink(artifactName, tmp); err != nil {
		return fmt.Errorf("%w: link %s: %v", ErrStateIO, tmp, err)
	}
	if err := os.Rename(tmp, latest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: update latest reference %s: %v", ErrStateIO, latest, err)
	}
	return nil
}

// ReadLatest returns the content of the newest artifact for
// (location, kind), or ErrNoArtifact if none has been written.
func (s *Store) ReadLatest(location, kind string) ([]byte, error) {
	content, err := os.ReadFile(s.latestPath(location, kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoArtifact
		}
		return nil, fmt.Errorf("%w: read latest %s/%s: %v", ErrStateIO, location, kind, err)
	}
	return content, nil
}

// ReadLastSnapshotID returns the newest snapshot ID recorded in the
// latest raw-snapshots artifact for a location, or "" when the location
// has no recorded artifact yet.
func (s *Store) ReadLastSnapshotID(location string) (string, error) {
	content, err := s.ReadLatest(location, KindRawSnapshots)
	if err != nil {
		if errors.Is(err, ErrNoArtifact) {
			return "", nil
		}
		return "", err
	}
	snaps, err := restic.ParseSnapshots(content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStateIO, err)
	}
	return restic.NewestID(snaps), nil
}
