// Package engine implements answer acquisition against the conversational
// web UI: submit confirmation, completion probing, and DOM answer extraction.
package engine

import "strings"

// SubmitControlState is the reduced state of the submit control.
type SubmitControlState int

const (
	// StateUnknown means no recognizable marker was observed.
	StateUnknown SubmitControlState = iota
	// StateReady means the control is accepting a submission.
	StateReady
	// StateBusy means the UI is processing and the control is locked.
	StateBusy
)

func (s SubmitControlState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Class markers observed on the target UI's submit button. These are an
// emergent property of its styling, not a documented contract.
const (
	readyClassMarker    = "text-blue-500"
	busyClassMarker     = "text-gray-400"
	disabledClassMarker = "cursor-not-allowed"
)

// ControlAttrs is one submit-control candidate's rendered attributes at a
// single point in time.
type ControlAttrs struct {
	Class        string
	Disabled     bool
	AriaDisabled bool
	Visible      bool
}

// IsReadyMarked reports whether the candidate carries the ready marker.
func (c ControlAttrs) IsReadyMarked() bool {
	return strings.Contains(c.Class, readyClassMarker)
}

// IsBusyMarked reports whether the candidate carries the busy marker pair.
func (c ControlAttrs) IsBusyMarked() bool {
	if !strings.Contains(c.Class, busyClassMarker) {
		return false
	}
	return strings.Contains(c.Class, disabledClassMarker) || c.Disabled || c.AriaDisabled
}

// ClassifyControls reduces the current set of submit-control candidates to a
// single state. Multiple nodes can match the submit selectors (duplicate or
// hidden controls); classification considers all of them, and ready wins a
// tie against busy. Pure function: same attributes, same answer.
func ClassifyControls(controls []ControlAttrs) SubmitControlState {
	for _, c := range controls {
		if c.IsReadyMarked() {
			return StateReady
		}
	}
	for _, c := range controls {
		if c.IsBusyMarked() {
			return StateBusy
		}
	}
	return StateUnknown
}

// ClickableIndex returns the index of the first candidate that is both
// ready-marked and visible, or -1. Only visible candidates may be clicked;
// hidden duplicates still count for classification above.
func ClickableIndex(controls []ControlAttrs) int {
	for i, c := range controls {
		if c.IsReadyMarked() && c.Visible {
			return i
		}
	}
	return -1
}
