package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmitPhase names the confirmation state machine's states. Exported so
// diagnostics and errors can carry the exact phase a failure occurred in.
type SubmitPhase string

const (
	PhaseIdle          SubmitPhase = "idle"
	PhaseAwaitingBusy  SubmitPhase = "awaiting-busy"
	PhaseBusy          SubmitPhase = "busy"
	PhaseAwaitingReady SubmitPhase = "awaiting-ready"
	PhaseReady         SubmitPhase = "ready"
)

// SubmissionReceipt records one submission attempt. Created exactly once per
// attempt, immutable after creation, and deliberately ignorant of answer
// completion: completion is someone else's evidence.
type SubmissionReceipt struct {
	SubmissionID string
	SentAt       time.Time
	Acknowledged bool
	Diagnostics  map[string]string
}

// Submitter drives one submission attempt through the confirmation state
// machine. The target UI publishes no submit acknowledgment, so confirmation
// is reconstructed from the control's visual state plus structural progress
// in the document.
//
// Machine: Idle -> AwaitingBusy -> Busy -> AwaitingReady -> Ready(confirmed).
// Filling the input locks the control (busy marker) while the UI processes
// it; the control recovering to ready is the Busy->Ready edge, and the click
// fires exactly once on that edge. A control that was already ready before
// the fill is a stale read and is never clicked.
type Submitter struct {
	page   ConversationPage
	timing Timing
	log    *zap.Logger
}

// NewSubmitter wires a state machine against one page.
func NewSubmitter(page ConversationPage, timing Timing, log *zap.Logger) *Submitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Submitter{page: page, timing: timing, log: log}
}

// Submit runs one confirmation attempt. On entering Ready the document must
// show forward progress relative to before (message count strictly up,
// answer-block ordinal not regressed); visual recovery without progress is
// reported as a confirmation failure.
func (s *Submitter) Submit(ctx context.Context, question string, before StructuralSnapshot) (SubmissionReceipt, error) {
	receipt := SubmissionReceipt{
		SubmissionID: uuid.NewString(),
		SentAt:       time.Now(),
		Diagnostics:  map[string]string{},
	}

	if err := s.page.FillQuestion(question); err != nil {
		return receipt, &SubmitConfirmationError{Phase: string(PhaseIdle), Reason: fmt.Sprintf("fill input: %v", err)}
	}

	// AwaitingBusy: the fill must be seen to lock the control.
	res, elapsed := pollUntil(ctx, s.timing.Tick, s.timing.AwaitBusyBound, s.timing.Watchdog, func() bool {
		return ClassifyControls(s.page.Controls()) == StateBusy
	})
	receipt.Diagnostics["busy_after_ms"] = fmt.Sprintf("%d", elapsed.Milliseconds())
	if err := loopError(res, elapsed, PhaseAwaitingBusy, "control never went busy after fill"); err != nil {
		return receipt, err
	}
	s.log.Debug("submit control busy",
		zap.String("submission_id", receipt.SubmissionID),
		zap.Duration("after", elapsed))

	// Busy -> AwaitingReady: generation-side lock must release.
	res, elapsed = pollUntil(ctx, s.timing.Tick, s.timing.AwaitReadyBound, s.timing.Watchdog, func() bool {
		return ClassifyControls(s.page.Controls()) == StateReady
	})
	receipt.Diagnostics["ready_after_ms"] = fmt.Sprintf("%d", elapsed.Milliseconds())
	if err := loopError(res, elapsed, PhaseAwaitingReady, "control never returned to ready"); err != nil {
		return receipt, err
	}

	// Busy->Ready edge confirmed: click exactly once.
	receipt.SentAt = time.Now()
	if err := s.page.ClickSubmit(); err != nil {
		return receipt, &SubmitConfirmationError{Phase: string(PhaseAwaitingReady), Reason: fmt.Sprintf("click: %v", err)}
	}
	s.log.Debug("submit clicked", zap.String("submission_id", receipt.SubmissionID))

	// Ready: the click must surface in the document. The echoed message
	// appears asynchronously, so progress is polled under the busy bound
	// rather than read once.
	var after StructuralSnapshot
	res, elapsed = pollUntil(ctx, s.timing.Tick, s.timing.AwaitBusyBound, s.timing.Watchdog, func() bool {
		after = s.page.Snapshot()
		return after.ProgressedFrom(before)
	})
	receipt.Diagnostics["progress_after_ms"] = fmt.Sprintf("%d", elapsed.Milliseconds())
	receipt.Diagnostics["message_count_after"] = fmt.Sprintf("%d", after.MessageCount)
	receipt.Diagnostics["last_block_after"] = fmt.Sprintf("%d", after.LastBlockOrdinal)
	if res == pollWatchdogFired {
		return receipt, &WatchdogError{Stage: string(PhaseReady), Elapsed: elapsed}
	}
	if res != pollDone {
		return receipt, &SubmitConfirmationError{
			Phase: string(PhaseReady),
			Reason: fmt.Sprintf("no structural progress: messages %d -> %d, block %d -> %d",
				before.MessageCount, after.MessageCount, before.LastBlockOrdinal, after.LastBlockOrdinal),
		}
	}

	receipt.Acknowledged = true
	s.log.Info("submit confirmed",
		zap.String("submission_id", receipt.SubmissionID),
		zap.Int("message_count", after.MessageCount),
		zap.Int("last_block", after.LastBlockOrdinal))
	return receipt, nil
}

func loopError(res pollResult, elapsed time.Duration, phase SubmitPhase, reason string) error {
	switch res {
	case pollDone:
		return nil
	case pollWatchdogFired:
		return &WatchdogError{Stage: string(phase), Elapsed: elapsed}
	case pollCanceled:
		return &SubmitConfirmationError{Phase: string(phase), Reason: "canceled"}
	default:
		return &SubmitConfirmationError{Phase: string(phase), Reason: reason}
	}
}
