package operations

import (
	"errors"
	"fmt"
)

// Outcome classifies how one location fared in an operation.
type Outcome string

const (
	// Collection outcomes.
	OutcomeCollected Outcome = "collected"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeNoNewData Outcome = "no-new-data"

	// Check outcomes.
	OutcomeHealthy           Outcome = "healthy"
	OutcomeStructuralFailure Outcome = "structural-failure"
	OutcomeDataCorruption    Outcome = "data-corruption"

	// Export outcome.
	OutcomeExported Outcome = "exported"

	// OutcomeFailed covers engine command errors and state I/O errors.
	OutcomeFailed Outcome = "failed"
)

// Result is one location's outcome within an aggregate operation.
type Result struct {
	Location string
	Outcome  Outcome
	Err      error
}

// OK reports whether the outcome counts as success. Skipping is benign:
// the operator explicitly acknowledged the absence of new data.
func (r Result) OK() bool {
	switch r.Outcome {
	case OutcomeCollected, OutcomeSkipped, OutcomeHealthy, OutcomeExported:
		return true
	}
	return false
}

// Aggregate folds per-location results into the operation's overall
// error: nil only when every location succeeded.
func Aggregate(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.OK() {
			continue
		}
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %s: %w", r.Location, r.Outcome, r.Err))
		} else {
			errs = append(errs, fmt.Errorf("%s: %s", r.Location, r.Outcome))
		}
	}
	return errors.Join(errs...)
}
