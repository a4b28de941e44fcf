package run

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"answerhound/internal/capture"
	"answerhound/internal/engine"
)

// ScopedAcquirer builds one engine acquisition per question so each
// question's captures land in its own directory.
type ScopedAcquirer struct {
	page    engine.ConversationPage
	prober  engine.CompletionProber
	timing  engine.Timing
	runRoot string
	log     *zap.Logger
}

// NewScopedAcquirer creates an acquirer writing captures under runRoot.
func NewScopedAcquirer(page engine.ConversationPage, prober engine.CompletionProber, timing engine.Timing, runRoot string, log *zap.Logger) *ScopedAcquirer {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScopedAcquirer{page: page, prober: prober, timing: timing, runRoot: runRoot, log: log}
}

// Run executes one question with a capture store scoped to it.
func (a *ScopedAcquirer) Run(ctx context.Context, questionID, ordinanceID, questionText string) (engine.QuestionOutcome, error) {
	dir := filepath.Join(a.runRoot, "entries", ordinanceID, questionID, "capture")
	store, err := capture.NewStore(dir)
	if err != nil {
		return engine.QuestionOutcome{
			QuestionID:  questionID,
			OrdinanceID: ordinanceID,
		}, fmt.Errorf("create capture dir: %w", err)
	}

	acq := engine.NewAcquisition(a.page, a.prober, store, a.timing, a.log)
	return acq.Run(ctx, questionID, ordinanceID, questionText)
}
