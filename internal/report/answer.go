// Package report renders the per-question answer.md artifact. The file is
// an observation record handed to a downstream evaluation pipeline, so it
// carries the raw observed values and no judgement.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"answerhound/internal/engine"
)

// FrontMatter is the YAML header of answer.md.
type FrontMatter struct {
	SchemaVersion   string `yaml:"schema_version"`
	RunID           string `yaml:"run_id"`
	ExecutedAt      string `yaml:"executed_at"`
	ExtractedStatus string `yaml:"extracted_status"`
	ResultStatus    string `yaml:"result_status"`
	ResultReason    string `yaml:"result_reason"`
	AbortedRun      bool   `yaml:"aborted_run"`
	OrdinanceID     string `yaml:"ordinance_id"`
	QuestionID      string `yaml:"question_id"`
	ConversationID  string `yaml:"conversation_id"`
	SubmissionID    string `yaml:"submission_id"`
}

const schemaVersion = "v0.1r+"

// Answer is everything the renderer needs for one question's record.
type Answer struct {
	RunID        string
	ExecutedAt   string
	ResultStatus string
	ResultReason string
	AbortedRun   bool

	Outcome engine.QuestionOutcome
}

// WriteAnswer renders answer.md into dir. An existing file is never
// overwritten; a second write for the same question is a caller bug and
// surfaces as an error.
func WriteAnswer(dir string, a Answer) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create answer dir: %w", err)
	}
	path := filepath.Join(dir, "answer.md")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("answer already exists: %s: %w", path, os.ErrExist)
	}

	fm := FrontMatter{
		SchemaVersion:   schemaVersion,
		RunID:           a.RunID,
		ExecutedAt:      a.ExecutedAt,
		ExtractedStatus: normalizeStatus(string(a.Outcome.Extraction.Status)),
		ResultStatus:    a.ResultStatus,
		ResultReason:    a.ResultReason,
		AbortedRun:      a.AbortedRun,
		OrdinanceID:     a.Outcome.OrdinanceID,
		QuestionID:      a.Outcome.QuestionID,
		ConversationID:  valueOrNA(a.Outcome.ConversationID),
		SubmissionID:    valueOrNA(a.Outcome.Receipt.SubmissionID),
	}
	header, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("marshal front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(header)
	b.WriteString("---\n\n")

	section(&b, "Question", a.Outcome.QuestionText)
	fenced(&b, "Answer (Extracted)", a.Outcome.AnswerText)
	fenced(&b, "Answer (Raw)", a.Outcome.Extraction.RawText)

	b.WriteString("## Metadata (Observed)\n\n")
	meta(&b, "selected_ordinal", fmt.Sprintf("%d", a.Outcome.Extraction.SelectedOrdinal))
	meta(&b, "parity", valueOrNA(a.Outcome.Extraction.ParityNote))
	meta(&b, "extraction_reason", valueOrNA(a.Outcome.Extraction.Reason))
	meta(&b, "text_len", fmt.Sprintf("%d", a.Outcome.Extraction.TextLength))
	meta(&b, "candidates", fmt.Sprintf("%d", len(a.Outcome.Extraction.Candidates)))
	meta(&b, "validation_failure", valueOrNA(a.Outcome.ValidationFailure))
	meta(&b, "message_count_before", fmt.Sprintf("%d", a.Outcome.Before.MessageCount))
	meta(&b, "message_count_after", fmt.Sprintf("%d", a.Outcome.After.MessageCount))
	meta(&b, "side_channel_signal", fmt.Sprintf("%t", a.Outcome.Probe.HasCompletionSignal))

	for _, stage := range sortedKeys(a.Outcome.Captures) {
		meta(&b, "capture_"+stage, a.Outcome.Captures[stage])
	}
	for _, key := range sortedKeys(a.Outcome.Diagnostics) {
		meta(&b, "diag_"+key, a.Outcome.Diagnostics[key])
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write answer.md: %w", err)
	}
	return path, nil
}

func section(b *strings.Builder, title, body string) {
	fmt.Fprintf(b, "## %s\n\n%s\n\n", title, body)
}

func fenced(b *strings.Builder, title, body string) {
	fmt.Fprintf(b, "## %s\n\n```text\n%s\n```\n\n", title, body)
}

func meta(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, "- %s: %s\n", key, value)
}

func valueOrNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

func normalizeStatus(s string) string {
	if s == "VALID" {
		return "VALID"
	}
	return "INVALID"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
