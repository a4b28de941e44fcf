// Package run drives a full acquisition run: ordinance by ordinance,
// question by question, mapping each outcome or failure to a result status
// and persisting the observation record. Control is continue-on-error; the
// only abort is an unusable session.
package run

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"answerhound/internal/engine"
	"answerhound/internal/report"
)

// ResultStatus is the per-question disposition recorded in the manifest.
type ResultStatus string

const (
	StatusSuccess   ResultStatus = "SUCCESS"
	StatusNoAnswer  ResultStatus = "NO_ANSWER"
	StatusTimeout   ResultStatus = "TIMEOUT"
	StatusUIError   ResultStatus = "UI_ERROR"
	StatusExecError ResultStatus = "EXEC_ERROR"
)

// Question is one question to ask, with its stable id.
type Question struct {
	ID   string `yaml:"question_id"`
	Text string `yaml:"text"`
}

// Ordinance is one target document scope the questions are asked against.
type Ordinance struct {
	ID string `yaml:"ordinance_id"`
}

// Result records one question's disposition.
type Result struct {
	OrdinanceID string
	QuestionID  string
	Status      ResultStatus
	Reason      string
	AnswerPath  string
}

// Summary is the outcome of a whole run. FatalError is set only when the
// run aborted because the session became unusable.
type Summary struct {
	RunID      string
	ExecutedAt time.Time
	Aborted    bool
	FatalError string
	Results    []Result
}

// Acquirer runs a single question end to end. *engine.Acquisition
// satisfies it.
type Acquirer interface {
	Run(ctx context.Context, questionID, ordinanceID, questionText string) (engine.QuestionOutcome, error)
}

// Healther reports session usability for the fatal-state check.
type Healther interface {
	Healthy() bool
}

// Runner iterates a question set against one open conversation.
type Runner struct {
	acquirer Acquirer
	session  Healther
	root     string
	log      *zap.Logger
}

// NewRunner creates a runner writing artifacts under root.
func NewRunner(acquirer Acquirer, session Healther, root string, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{acquirer: acquirer, session: session, root: root, log: log}
}

// Run executes every ordinance × question pair in order. It never retries
// a question and never stops on a per-question failure; it stops only when
// the session itself is gone. The manifest is written once at the end,
// aborted or not.
func (r *Runner) Run(ctx context.Context, runID string, ordinances []Ordinance, questions []Question) (*Summary, error) {
	summary := &Summary{
		RunID:      runID,
		ExecutedAt: time.Now().UTC(),
	}
	runRoot := filepath.Join(r.root, "runs", runID)

	for _, ordinance := range ordinances {
		for _, question := range questions {
			if err := ctx.Err(); err != nil {
				summary.Aborted = true
				summary.FatalError = err.Error()
				break
			}

			result := r.runOne(ctx, runRoot, runID, ordinance, question, summary)
			summary.Results = append(summary.Results, result)

			if summary.Aborted {
				break
			}
		}
		if summary.Aborted {
			break
		}
	}

	manifestPath := filepath.Join(runRoot, "manifest.yaml")
	if err := WriteManifest(manifestPath, BuildManifest(summary)); err != nil {
		r.log.Error("manifest write failed", zap.Error(err))
		return summary, fmt.Errorf("write manifest: %w", err)
	}

	r.log.Info("run finished",
		zap.String("run_id", runID),
		zap.Int("results", len(summary.Results)),
		zap.Bool("aborted", summary.Aborted))
	return summary, nil
}

// runOne executes a single question and maps its outcome. It may mark the
// summary aborted when the failure coincides with a dead session.
func (r *Runner) runOne(ctx context.Context, runRoot, runID string, ordinance Ordinance, question Question, summary *Summary) Result {
	result := Result{
		OrdinanceID: ordinance.ID,
		QuestionID:  question.ID,
	}

	outcome, err := r.acquirer.Run(ctx, question.ID, ordinance.ID, question.Text)
	result.Status, result.Reason = r.classify(err, summary)

	questionDir := filepath.Join(runRoot, "entries", ordinance.ID, question.ID)
	answerPath, werr := report.WriteAnswer(questionDir, report.Answer{
		RunID:        runID,
		ExecutedAt:   summary.ExecutedAt.Format(time.RFC3339),
		ResultStatus: string(result.Status),
		ResultReason: result.Reason,
		AbortedRun:   summary.Aborted,
		Outcome:      outcome,
	})
	if werr != nil {
		r.log.Error("answer write failed",
			zap.String("question_id", question.ID),
			zap.Error(werr))
		result.Status = StatusExecError
		if result.Reason == "" {
			result.Reason = fmt.Sprintf("answer write failed: %v", werr)
		}
	} else {
		result.AnswerPath = answerPath
	}

	r.log.Info("question finished",
		zap.String("ordinance_id", ordinance.ID),
		zap.String("question_id", question.ID),
		zap.String("status", string(result.Status)),
		zap.String("reason", result.Reason))
	return result
}

// classify maps the error taxonomy to a result status. A session-class
// failure, or a UI failure with an unhealthy session behind it, aborts the
// run.
func (r *Runner) classify(err error, summary *Summary) (ResultStatus, string) {
	if err == nil {
		return StatusSuccess, ""
	}

	var sessionErr *engine.SessionError
	if errors.As(err, &sessionErr) {
		summary.Aborted = true
		summary.FatalError = err.Error()
		return StatusUIError, err.Error()
	}

	var timeoutErr *engine.AnswerTimeoutError
	if errors.As(err, &timeoutErr) {
		return StatusTimeout, err.Error()
	}

	var notAvailErr *engine.AnswerNotAvailableError
	if errors.As(err, &notAvailErr) {
		return StatusNoAnswer, err.Error()
	}

	var probeErr *engine.ProbeExecutionError
	if errors.As(err, &probeErr) {
		return StatusExecError, err.Error()
	}

	var submitErr *engine.SubmitConfirmationError
	var watchdogErr *engine.WatchdogError
	if errors.As(err, &submitErr) || errors.As(err, &watchdogErr) {
		if r.session != nil && !r.session.Healthy() {
			summary.Aborted = true
			summary.FatalError = err.Error()
		}
		return StatusUIError, err.Error()
	}

	return StatusExecError, err.Error()
}
