package recorder

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSequence reports a lifecycle operation called out of order, for
// example start before a successful setup. The recorder state is not
// mutated.
var ErrInvalidSequence = errors.New("invalid operation sequence")

// ErrAlreadyRecording reports a start attempt while a recording is already
// in progress.
var ErrAlreadyRecording = errors.New("already recording")

// SetupError aggregates configure failures. Setup is all-or-nothing: when it
// is returned, no device has been started and the recorder stays
// unconfigured.
type SetupError struct {
	Failed []string
	Errs   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed for devices [%s]: %v", strings.Join(e.Failed, ", "), e.Errs)
}

func (e *SetupError) Unwrap() error { return e.Errs }

// PartialStartError reports that some devices failed to start while the rest
// keep recording. It is a non-fatal warning: aborting the survivors would
// discard already useful captures.
type PartialStartError struct {
	Failed []string
	Errs   error
}

func (e *PartialStartError) Error() string {
	return fmt.Sprintf("devices [%s] failed to start, remaining devices keep recording: %v",
		strings.Join(e.Failed, ", "), e.Errs)
}

func (e *PartialStartError) Unwrap() error { return e.Errs }
