package restic

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTimeout is attached as the cancellation cause when an invocation
// exceeds the configured timeout.
var ErrTimeout = errors.New("restic operation timed out")

// CommandError reports a restic invocation that exited non-zero for a
// reason other than a recognized check failure. It is never retried.
type CommandError struct {
	Args       []string
	ExitStatus int
	Output     string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("restic %s exited with status %d",
		strings.Join(e.Args, " "), e.ExitStatus)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// IntegrityError reports a failed repository check. ReadData records which
// check mode produced the verdict: false means the structural check found
// inconsistent metadata, true means the full-data check found corrupt or
// missing object content.
type IntegrityError struct {
	ReadData   bool
	ExitStatus int
	Detail     string
}

func (e *IntegrityError) Error() string {
	kind := "structural check failed"
	if e.ReadData {
		kind = "full-data check failed"
	}
	if detail := strings.TrimSpace(e.Detail); detail != "" {
		return kind + ": " + detail
	}
	return kind
}
