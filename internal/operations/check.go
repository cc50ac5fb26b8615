package operations

import (
	"errors"

	"github.com/kebairia/restic-health/internal/config"
	"github.com/kebairia/restic-health/internal/restic"
)

// CheckAll verifies repository integrity for every configured location.
// The structural check validates metadata consistency only; with readData
// every stored object's content is re-read and verified, which is the
// only way a corrupted or missing data object surfaces.
func CheckAll(configPath string, readData bool) error {
	op, err := NewOperator(configPath)
	if err != nil {
		return err
	}
	return Aggregate(op.Check(readData))
}

// Check runs the requested check mode per location, sequentially,
// continuing past failures so every location gets a verdict.
func (op *Operator) Check(readData bool) []Result {
	mode := "structural"
	if readData {
		mode = "full-data"
	}

	locations := op.cfg.ExpandLocations()
	results := make([]Result, 0, len(locations))
	for _, loc := range locations {
		op.log.Info("checking", "location", loc.Name(), "mode", mode)
		res := op.checkLocation(loc, readData)
		if res.Err != nil {
			op.log.Error("check failed",
				"location", res.Location,
				"mode", mode,
				"outcome", string(res.Outcome),
				"error", res.Err.Error(),
			)
		} else {
			op.log.Info("check done",
				"location", res.Location,
				"mode", mode,
				"outcome", string(res.Outcome),
			)
		}
		results = append(results, res)
	}
	return results
}

func (op *Operator) checkLocation(loc config.Location, readData bool) Result {
	name := loc.Name()

	backend, err := op.newBackend(op.ctx, loc)
	if err != nil {
		return Result{Location: name, Outcome: OutcomeFailed, Err: err}
	}

	err = backend.Check(op.ctx, readData)
	if err == nil {
		return Result{Location: name, Outcome: OutcomeHealthy}
	}

	var integrity *restic.IntegrityError
	if errors.As(err, &integrity) {
		outcome := OutcomeStructuralFailure
		if integrity.ReadData {
			outcome = OutcomeDataCorruption
		}
		return Result{Location: name, Outcome: outcome, Err: err}
	}
	return Result{Location: name, Outcome: OutcomeFailed, Err: err}
}
