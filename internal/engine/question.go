package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Capture stages, used as artifact names by the capture sink.
const (
	StagePreSubmit  = "pre_submit"
	StagePostSubmit = "post_submit"
	StageFinal      = "final"
)

// CaptureSink persists raw evidence for forensic replay. Implementations
// are best-effort: a failed write is reported so it can be logged, but it
// never stops acquisition.
type CaptureSink interface {
	SaveHTML(stage string, doc string) (string, error)
	SaveScreenshot(png []byte) (string, error)
	SaveProbe(summary ProbeSummary) (string, error)
	SaveExtraction(result ExtractionResult, candidates []CandidateBlock, errs []string) (string, error)
	SaveText(name, content string) (string, error)
}

// QuestionOutcome aggregates everything observed for one question. Created
// once by the acquisition flow and never mutated afterwards; the reporting
// layer renders it as-is.
type QuestionOutcome struct {
	QuestionID     string
	OrdinanceID    string
	QuestionText   string
	ConversationID string

	Receipt SubmissionReceipt
	Before  StructuralSnapshot
	After   StructuralSnapshot
	Probe   ProbeSummary

	Extraction        ExtractionResult
	AnswerText        string
	ValidationFailure string // cross-validation downgrade reason, empty when clean

	Captures    map[string]string // stage/artifact -> path
	Diagnostics map[string]string
	ExecutedAt  time.Time
}

// CompletionProber abstracts the side-channel observer so acquisition can be
// exercised without a browser.
type CompletionProber interface {
	Observe(ctx context.Context, convID string, window time.Duration) (ProbeSummary, error)
}

// Acquisition runs one question end to end: submit confirmation, bounded
// completion probing, extraction, and cross-validation.
type Acquisition struct {
	page      ConversationPage
	submitter *Submitter
	prober    CompletionProber
	sink      CaptureSink
	timing    Timing
	log       *zap.Logger
}

// NewAcquisition composes the engine for one page. sink may be nil when no
// evidence should be persisted (tests).
func NewAcquisition(page ConversationPage, prober CompletionProber, sink CaptureSink, timing Timing, log *zap.Logger) *Acquisition {
	if log == nil {
		log = zap.NewNop()
	}
	return &Acquisition{
		page:      page,
		submitter: NewSubmitter(page, timing, log),
		prober:    prober,
		sink:      sink,
		timing:    timing,
		log:       log,
	}
}

// Run executes one question. The returned outcome is populated as far as
// execution got, even when err is non-nil: every question leaves a record
// and best-effort raw captures, never a silent drop.
//
// Probe failures are swallowed into diagnostics; completion evidence is
// advisory. Document structure is authoritative: the selected block's
// ordinal must match the final snapshot's last answer-block ordinal and the
// message count must have grown since before the submission, or the outcome
// is downgraded even when extraction itself reported VALID.
func (a *Acquisition) Run(ctx context.Context, questionID, ordinanceID, questionText string) (QuestionOutcome, error) {
	outcome := QuestionOutcome{
		QuestionID:     questionID,
		OrdinanceID:    ordinanceID,
		QuestionText:   questionText,
		ConversationID: a.page.ConversationID(),
		Captures:       map[string]string{},
		Diagnostics:    map[string]string{},
		ExecutedAt:     time.Now(),
	}

	if !a.page.Healthy() {
		return outcome, &SessionError{Err: errors.New("page is closed or unresponsive")}
	}

	outcome.Before = a.page.Snapshot()
	a.captureHTML(&outcome, StagePreSubmit)

	receipt, err := a.submitter.Submit(ctx, questionText, outcome.Before)
	outcome.Receipt = receipt
	if err != nil {
		a.captureHTML(&outcome, StagePostSubmit)
		return outcome, err
	}
	a.captureHTML(&outcome, StagePostSubmit)

	summary, probeErr := a.prober.Observe(ctx, outcome.ConversationID, a.timing.SoftTimeout)
	outcome.Probe = summary
	if probeErr != nil {
		// Observation is advisory; extraction can still succeed.
		outcome.Diagnostics["probe_error"] = probeErr.Error()
		a.log.Warn("completion probe failed", zap.Error(probeErr))
	}
	a.saveProbe(&outcome)

	finalDoc := a.captureHTML(&outcome, StageFinal)
	a.captureScreenshot(&outcome)
	outcome.After = a.page.Snapshot()

	outcome.Extraction = ExtractAnswer(finalDoc)
	a.saveExtraction(&outcome, finalDoc)

	if outcome.Extraction.Status == ExtractionValid {
		outcome.ValidationFailure = a.crossValidate(outcome)
		if outcome.ValidationFailure == "" {
			outcome.AnswerText = outcome.Extraction.Text
			a.saveAnswerText(&outcome)
			return outcome, nil
		}
	}

	a.saveAnswerText(&outcome)
	return outcome, a.classifyMiss(outcome)
}

// crossValidate checks the extraction against the final structural snapshot.
// Empty string means clean.
func (a *Acquisition) crossValidate(outcome QuestionOutcome) string {
	if outcome.After.MessageCount <= outcome.Before.MessageCount {
		return fmt.Sprintf("message count did not increase: %d -> %d",
			outcome.Before.MessageCount, outcome.After.MessageCount)
	}
	if outcome.After.LastBlockOrdinal >= 0 && outcome.Extraction.SelectedOrdinal != outcome.After.LastBlockOrdinal {
		return fmt.Sprintf("selected block %d does not match last answer block %d",
			outcome.Extraction.SelectedOrdinal, outcome.After.LastBlockOrdinal)
	}
	return ""
}

// classifyMiss maps a failed acquisition to the error taxonomy. No
// completion evidence at all within the window is a timeout; evidence
// without usable authoritative text is not-available.
func (a *Acquisition) classifyMiss(outcome QuestionOutcome) error {
	hasEvidence := outcome.Probe.HasCompletionSignal || strings.TrimSpace(outcome.Probe.AnswerText()) != ""
	if !hasEvidence && outcome.Extraction.Status != ExtractionValid {
		return &AnswerTimeoutError{Window: a.timing.SoftTimeout.String()}
	}
	if outcome.ValidationFailure != "" {
		return &AnswerNotAvailableError{Reason: outcome.ValidationFailure}
	}
	return &AnswerNotAvailableError{Reason: outcome.Extraction.Reason}
}

func (a *Acquisition) captureHTML(outcome *QuestionOutcome, stage string) string {
	doc, err := a.page.HTML()
	if err != nil {
		outcome.Diagnostics["capture_"+stage] = err.Error()
		return ""
	}
	if a.sink == nil {
		return doc
	}
	path, err := a.sink.SaveHTML(stage, doc)
	if err != nil {
		a.log.Warn("html capture failed", zap.String("stage", stage), zap.Error(err))
		outcome.Diagnostics["capture_"+stage] = err.Error()
		return doc
	}
	outcome.Captures[stage] = path
	return doc
}

func (a *Acquisition) captureScreenshot(outcome *QuestionOutcome) {
	png, err := a.page.Screenshot()
	if err != nil {
		outcome.Diagnostics["screenshot"] = err.Error()
		return
	}
	if a.sink == nil {
		return
	}
	path, err := a.sink.SaveScreenshot(png)
	if err != nil {
		a.log.Warn("screenshot capture failed", zap.Error(err))
		outcome.Diagnostics["screenshot"] = err.Error()
		return
	}
	outcome.Captures["screenshot"] = path
}

func (a *Acquisition) saveProbe(outcome *QuestionOutcome) {
	if a.sink == nil {
		return
	}
	path, err := a.sink.SaveProbe(outcome.Probe)
	if err != nil {
		a.log.Warn("probe capture failed", zap.Error(err))
		outcome.Diagnostics["probe_capture"] = err.Error()
		return
	}
	outcome.Captures["probe"] = path
}

func (a *Acquisition) saveExtraction(outcome *QuestionOutcome, finalDoc string) {
	if a.sink == nil {
		return
	}
	candidates, errs := CollectCandidates(finalDoc)
	path, err := a.sink.SaveExtraction(outcome.Extraction, candidates, errs)
	if err != nil {
		a.log.Warn("extraction diagnostics capture failed", zap.Error(err))
		outcome.Diagnostics["extraction_capture"] = err.Error()
		return
	}
	outcome.Captures["extraction"] = path
}

func (a *Acquisition) saveAnswerText(outcome *QuestionOutcome) {
	if a.sink == nil {
		return
	}
	if path, err := a.sink.SaveText("answer_extracted.txt", outcome.Extraction.Text); err == nil {
		outcome.Captures["answer_extracted"] = path
	}
	if path, err := a.sink.SaveText("answer_raw.txt", outcome.Extraction.RawText); err == nil {
		outcome.Captures["answer_raw"] = path
	}
}
