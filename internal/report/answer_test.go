package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"answerhound/internal/engine"
)

func sampleAnswer() Answer {
	return Answer{
		RunID:        "run-42",
		ExecutedAt:   "2026-02-11T09:30:00Z",
		ResultStatus: "SUCCESS",
		AbortedRun:   false,
		Outcome: engine.QuestionOutcome{
			QuestionID:     "Q7",
			OrdinanceID:    "ord-131009",
			QuestionText:   "この文書の目的を説明してください。",
			ConversationID: "chat-abc123",
			Receipt:        engine.SubmissionReceipt{SubmissionID: "c0ffee", Acknowledged: true},
			Before:         engine.StructuralSnapshot{MessageCount: 4, LastBlockOrdinal: 6},
			After:          engine.StructuralSnapshot{MessageCount: 6, LastBlockOrdinal: 8},
			Extraction: engine.ExtractionResult{
				Status:          engine.ExtractionValid,
				SelectedOrdinal: 8,
				ParityNote:      engine.ParityEvenMax,
				TextLength:      12,
				RawText:         "raw answer\nwith noise",
			},
			AnswerText: "answer text.",
			Captures: map[string]string{
				"final_html": "/tmp/final.html",
				"screenshot": "/tmp/final.png",
			},
			Diagnostics: map[string]string{"probe_error": ""},
		},
	}
}

func TestWriteAnswerRendersFrontMatterAndSections(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "entries", "ord-131009", "Q7")

	path, err := WriteAnswer(dir, sampleAnswer())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "answer.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	parts := strings.SplitN(content, "---\n", 3)
	require.Len(t, parts, 3, "front matter must be fenced by --- lines")

	var fm FrontMatter
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &fm))
	assert.Equal(t, "run-42", fm.RunID)
	assert.Equal(t, "VALID", fm.ExtractedStatus)
	assert.Equal(t, "SUCCESS", fm.ResultStatus)
	assert.Equal(t, "chat-abc123", fm.ConversationID)
	assert.False(t, fm.AbortedRun)

	assert.Contains(t, content, "## Question")
	assert.Contains(t, content, "この文書の目的を説明してください。")
	assert.Contains(t, content, "## Answer (Extracted)")
	assert.Contains(t, content, "answer text.")
	assert.Contains(t, content, "## Answer (Raw)")
	assert.Contains(t, content, "raw answer\nwith noise")
	assert.Contains(t, content, "## Metadata (Observed)")
	assert.Contains(t, content, "- selected_ordinal: 8")
	assert.Contains(t, content, "- parity: even-max")
	assert.Contains(t, content, "- capture_final_html: /tmp/final.html")
}

func TestWriteAnswerRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()

	_, err := WriteAnswer(dir, sampleAnswer())
	require.NoError(t, err)

	_, err = WriteAnswer(dir, sampleAnswer())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrExist)
}

func TestWriteAnswerFailureRecord(t *testing.T) {
	dir := t.TempDir()
	a := Answer{
		RunID:        "run-43",
		ExecutedAt:   "2026-02-11T09:31:00Z",
		ResultStatus: "NO_ANSWER",
		ResultReason: "answer not available: no even candidates among markdown-n blocks",
		Outcome: engine.QuestionOutcome{
			QuestionID:  "Q8",
			OrdinanceID: "ord-131009",
			Extraction: engine.ExtractionResult{
				Status:          engine.ExtractionInvalid,
				SelectedOrdinal: -1,
				Reason:          "no even candidates among markdown-n blocks",
			},
		},
	}

	path, err := WriteAnswer(dir, a)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "extracted_status: INVALID")
	assert.Contains(t, content, "result_status: NO_ANSWER")
	assert.Contains(t, content, "- selected_ordinal: -1")
	assert.Contains(t, content, "submission_id: N/A")
	assert.Contains(t, content, "conversation_id: N/A")
}
