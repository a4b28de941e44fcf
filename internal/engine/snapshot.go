package engine

// StructuralSnapshot is a point-in-time read of the conversation document's
// structural counters. It is captured as a value and passed around; no
// component holds a live handle into the document.
//
// Ordinals use -1 when no matching node was observed.
type StructuralSnapshot struct {
	MessageCount       int    `json:"message_count"`
	LastMessageOrdinal int    `json:"last_message_ordinal"`
	LastBlockOrdinal   int    `json:"last_block_ordinal"`
	LastTimestamp      string `json:"last_timestamp,omitempty"`
}

// EmptySnapshot is the degraded value returned when the document could not
// be read. Readers must degrade to this instead of failing, because
// snapshots are taken inside poll loops that a single bad read must not
// destabilize.
func EmptySnapshot() StructuralSnapshot {
	return StructuralSnapshot{MessageCount: 0, LastMessageOrdinal: -1, LastBlockOrdinal: -1}
}

// ProgressedFrom reports whether this snapshot shows real forward progress
// relative to a snapshot taken before a submission: the message count must
// have strictly increased and the highest answer-block ordinal must not have
// gone backwards. A submission whose "ready" recovery lacks this progress is
// cosmetic, not confirmed.
func (s StructuralSnapshot) ProgressedFrom(before StructuralSnapshot) bool {
	if s.MessageCount <= before.MessageCount {
		return false
	}
	return s.LastBlockOrdinal >= before.LastBlockOrdinal
}

// ConversationPage is the engine's view of the one live page. The chat
// package provides the rod-backed implementation; tests provide fakes.
//
// Snapshot and Controls are advisory reads: they never block and degrade to
// zero values on transient failure. FillQuestion and ClickSubmit are the only
// writes against the page, and they are strictly sequenced by the
// orchestrator.
type ConversationPage interface {
	// Snapshot reads the current structural counters. Never errors.
	Snapshot() StructuralSnapshot
	// Controls returns the rendered attributes of every submit-control
	// candidate currently in the document. Never errors.
	Controls() []ControlAttrs

	FillQuestion(text string) error
	ClickSubmit() error

	// HTML returns the full rendered document as one frozen string.
	HTML() (string, error)
	// Screenshot captures the current viewport as PNG bytes.
	Screenshot() ([]byte, error)

	// ConversationID is the identifier correlating this page's submissions,
	// side-channel traffic, and document regions.
	ConversationID() string
	// Healthy reports whether the underlying session is still usable.
	Healthy() bool
}
