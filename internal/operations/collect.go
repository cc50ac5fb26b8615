package operations

import (
	"encoding/json"
	"fmt"

	"github.com/kebairia/restic-health/internal/config"
	"github.com/kebairia/restic-health/internal/restic"
	"github.com/kebairia/restic-health/internal/state"
	"github.com/kebairia/restic-health/internal/staleness"
)

// CollectAll collects health metrics for every configured location and
// returns an aggregate error if any location failed. With skipCurrent, a
// location whose newest snapshot was already recorded is skipped rather
// than failed.
func CollectAll(configPath string, skipCurrent bool) error {
	op, err := NewOperator(configPath)
	if err != nil {
		return err
	}
	return Aggregate(op.Collect(skipCurrent))
}

// Collect runs one collection cycle per location, sequentially. A failure
// in one location does not stop the remaining ones; every location gets
// an outcome.
func (op *Operator) Collect(skipCurrent bool) []Result {
	locations := op.cfg.ExpandLocations()
	results := make([]Result, 0, len(locations))
	for _, loc := range locations {
		op.log.Info("collecting", "location", loc.Name())
		res := op.collectLocation(loc, skipCurrent)
		if res.Err != nil {
			op.log.Error("collection failed",
				"location", res.Location,
				"outcome", string(res.Outcome),
				"error", res.Err.Error(),
			)
		} else {
			op.log.Info("collection done",
				"location", res.Location,
				"outcome", string(res.Outcome),
			)
		}
		results = append(results, res)
	}
	return results
}

// collectLocation performs one fetch, compare, persist cycle.
func (op *Operator) collectLocation(loc config.Location, skipCurrent bool) Result {
	name := loc.Name()

	backend, err := op.newBackend(op.ctx, loc)
	if err != nil {
		return Result{Location: name, Outcome: OutcomeFailed, Err: err}
	}

	rawSnapshots, snaps, err := backend.Snapshots(op.ctx)
	if err != nil {
		return Result{Location: name, Outcome: OutcomeFailed, Err: err}
	}

	lastID, err := op.store.ReadLastSnapshotID(name)
	if err != nil {
		return Result{Location: name, Outcome: OutcomeFailed, Err: err}
	}

	if staleness.Detect(snaps, lastID) == staleness.NoNewData {
		if skipCurrent {
			return Result{Location: name, Outcome: OutcomeSkipped}
		}
		return Result{
			Location: name,
			Outcome:  OutcomeNoNewData,
			Err:      fmt.Errorf("backend reports no snapshot newer than the recorded one"),
		}
	}

	artifacts, err := op.fetchArtifacts(backend, snaps)
	if err != nil {
		return Result{Location: name, Outcome: OutcomeFailed, Err: err}
	}

	// All payloads are in hand before anything is written, and the
	// raw-snapshots artifact goes last: its latest reference is the
	// staleness marker, so it must only advance once every other kind
	// for this observation is on disk.
	for _, a := range artifacts {
		if _, err := op.store.WriteArtifact(name, a.kind, a.content); err != nil {
			return Result{Location: name, Outcome: OutcomeFailed, Err: err}
		}
	}
	if _, err := op.store.WriteArtifact(name, state.KindRawSnapshots, rawSnapshots); err != nil {
		return Result{Location: name, Outcome: OutcomeFailed, Err: err}
	}

	return Result{Location: name, Outcome: OutcomeCollected}
}

type artifact struct {
	kind    string
	content []byte
}

// fetchArtifacts queries the backend for every metric recorded alongside
// the snapshot list. Stats exist only once the repository has a snapshot;
// diff stats need two.
func (op *Operator) fetchArtifacts(backend Backend, snaps []restic.Snapshot) ([]artifact, error) {
	count, err := json.Marshal(map[string]int{"snapshot_count": len(snaps)})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot count: %w", err)
	}
	artifacts := []artifact{{state.KindSnapshotCount, count}}

	if len(snaps) >= 1 {
		restoreSize, err := backend.Stats(op.ctx, "restore-size", "latest")
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact{state.KindRestoreSizeLatest, restoreSize})
	}

	if !op.cfg.Collect.ExtendedStats {
		return artifacts, nil
	}

	if len(snaps) >= 1 {
		rawDataLatest, err := backend.Stats(op.ctx, "raw-data", "latest")
		if err != nil {
			return nil, err
		}
		rawDataAll, err := backend.Stats(op.ctx, "raw-data", "")
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts,
			artifact{state.KindRawDataLatest, rawDataLatest},
			artifact{state.KindRawDataAll, rawDataAll},
		)
	}

	if len(snaps) >= 2 {
		diff, err := backend.Diff(op.ctx, snaps[len(snaps)-2].ID, snaps[len(snaps)-1].ID)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact{state.KindDiffLatest, diff})
	}

	return artifacts, nil
}
