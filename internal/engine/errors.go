package engine

import (
	"fmt"
	"time"
)

// SubmitConfirmationError reports that a submission attempt could not be
// confirmed: the control never reached the expected state sequence, or the
// document showed no structural progress despite visual recovery.
type SubmitConfirmationError struct {
	Phase  string // state-machine phase that failed
	Reason string
}

func (e *SubmitConfirmationError) Error() string {
	return fmt.Sprintf("submit not confirmed (%s): %s", e.Phase, e.Reason)
}

// WatchdogError reports that a poll loop hit the hard watchdog ceiling
// before stabilizing. Distinct from a soft timeout: a watchdog abort means
// the loop itself was runaway, not merely that evidence was late.
type WatchdogError struct {
	Stage   string
	Elapsed time.Duration
}

func (e *WatchdogError) Error() string {
	return fmt.Sprintf("watchdog abort in %s after %s", e.Stage, e.Elapsed)
}

// AnswerTimeoutError reports that no completion evidence arrived within the
// soft bound. The cause is not guessed.
type AnswerTimeoutError struct {
	Window string
}

func (e *AnswerTimeoutError) Error() string {
	return fmt.Sprintf("no completion evidence within %s", e.Window)
}

// AnswerNotAvailableError reports that observation happened but no usable
// answer text could be derived from either the side channel or the document.
type AnswerNotAvailableError struct {
	Reason string
}

func (e *AnswerNotAvailableError) Error() string {
	return "answer not available: " + e.Reason
}

// ProbeExecutionError reports that the observation mechanism itself failed,
// e.g. the response hook could not attach. Extraction can still succeed
// independently, so this is never fatal on its own.
type ProbeExecutionError struct {
	Err error
}

func (e *ProbeExecutionError) Error() string {
	return "probe execution failed: " + e.Err.Error()
}

func (e *ProbeExecutionError) Unwrap() error { return e.Err }

// SessionError reports that the underlying browser session is closed or
// unresponsive. Every subsequent question would fail identically, so this is
// the one class that aborts a whole run.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string {
	return "session unusable: " + e.Err.Error()
}

func (e *SessionError) Unwrap() error { return e.Err }
