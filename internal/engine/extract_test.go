package engine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatDoc builds a document with one received-message region containing the
// given markdown ordinals.
func chatDoc(ordinals ...int) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="chat">`)
	b.WriteString(`<div class="message-received">`)
	for _, n := range ordinals {
		fmt.Fprintf(&b, `<div class="markdown" id="markdown-%d"><p>block %d text</p></div>`, n, n)
	}
	b.WriteString(`</div></div></body></html>`)
	return b.String()
}

func TestExtractAnswerParitySelection(t *testing.T) {
	tests := []struct {
		name       string
		ordinals   []int
		wantStatus ExtractionStatus
		wantPick   int
		wantParity string
	}{
		{"fallback when max is odd", []int{1, 2, 3, 5}, ExtractionValid, 2, ParityFallbackToEven},
		{"even max is the normal case", []int{1, 2, 3, 4}, ExtractionValid, 4, ParityEvenMax},
		{"single even", []int{2}, ExtractionValid, 2, ParityEvenMax},
		{"no even candidates", []int{1, 3, 5}, ExtractionInvalid, -1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ExtractAnswer(chatDoc(tt.ordinals...))
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, tt.wantPick, res.SelectedOrdinal)
			assert.Equal(t, tt.wantParity, res.ParityNote)
			assert.Equal(t, tt.ordinals, res.Candidates)
			if tt.wantStatus == ExtractionInvalid {
				assert.Contains(t, res.Reason, "no even candidates")
			}
		})
	}
}

func TestExtractAnswerScopeExclusivity(t *testing.T) {
	// The earlier region holds higher ordinals than anything in the later
	// region; they must never be selectable.
	doc := `<html><body>
	<div class="message-received">
		<div class="markdown" id="markdown-10"><p>stale answer</p></div>
	</div>
	<div class="message-received">
		<div class="markdown" id="markdown-1"><p>echo</p></div>
		<div class="markdown" id="markdown-2"><p>fresh answer</p></div>
	</div>
	</body></html>`

	res := ExtractAnswer(doc)
	require.Equal(t, ExtractionValid, res.Status)
	assert.Equal(t, 2, res.SelectedOrdinal)
	assert.Equal(t, []int{1, 2}, res.Candidates)
	assert.NotContains(t, res.Text, "stale answer")
	assert.Contains(t, res.Text, "fresh answer")
}

func TestExtractAnswerPreconditions(t *testing.T) {
	t.Run("no scope", func(t *testing.T) {
		res := ExtractAnswer(`<html><body><div class="chat"></div></body></html>`)
		assert.Equal(t, ExtractionInvalid, res.Status)
		assert.Contains(t, res.Reason, "no message-received")
	})

	t.Run("scope without candidates", func(t *testing.T) {
		res := ExtractAnswer(`<html><body><div class="message-received"><p>plain</p></div></body></html>`)
		assert.Equal(t, ExtractionInvalid, res.Status)
		assert.Contains(t, res.Reason, "no markdown-n candidates")
	})

	t.Run("invalid id fails loudly", func(t *testing.T) {
		doc := `<div class="message-received">
			<div class="markdown" id="markdown-2"><p>fine</p></div>
			<div class="markdown" id="markdown-x"><p>broken</p></div>
		</div>`
		res := ExtractAnswer(doc)
		assert.Equal(t, ExtractionInvalid, res.Status)
		assert.Contains(t, res.Reason, "invalid markdown id: markdown-x")
		assert.Len(t, res.Errors, 1)
	})

	t.Run("missing id fails loudly", func(t *testing.T) {
		doc := `<div class="message-received"><div class="markdown"><p>anon</p></div></div>`
		res := ExtractAnswer(doc)
		assert.Equal(t, ExtractionInvalid, res.Status)
		assert.Contains(t, res.Reason, "missing id")
	})
}

func TestExtractAnswerCleanup(t *testing.T) {
	doc := `<div class="message-received">
		<div class="markdown" id="markdown-2">
			<p>the answer body</p>
			<button>コピー</button>
			<svg><path d="m0 0"></path></svg>
			<span aria-hidden="true">decoration</span>
		</div>
	</div>`

	res := ExtractAnswer(doc)
	require.Equal(t, ExtractionValid, res.Status)
	assert.Contains(t, res.Text, "the answer body")
	assert.NotContains(t, res.Text, "コピー")
	assert.NotContains(t, res.Text, "decoration")
	// The raw copy is lossy-free and keeps the noise for audit.
	assert.Contains(t, res.RawText, "コピー")
}

func TestExtractAnswerEmptyAfterCleanup(t *testing.T) {
	doc := `<div class="message-received">
		<div class="markdown" id="markdown-2"><button>送信</button></div>
	</div>`

	res := ExtractAnswer(doc)
	assert.Equal(t, ExtractionInvalid, res.Status)
	assert.Equal(t, "empty after cleanup", res.Reason)
	// A candidate was nominally selected; that is preserved for diagnostics.
	assert.Equal(t, 2, res.SelectedOrdinal)
}

// The persisted final document, re-parsed, must reproduce the recorded
// selection. Extraction reads one frozen snapshot, so this is a pure
// determinism check.
func TestExtractAnswerRoundTrip(t *testing.T) {
	doc := chatDoc(1, 2, 3, 4)

	first := ExtractAnswer(doc)
	require.Equal(t, ExtractionValid, first.Status)

	second := ExtractAnswer(doc)
	assert.Equal(t, first.SelectedOrdinal, second.SelectedOrdinal)
	assert.Equal(t, first.TextLength, second.TextLength)
	assert.NotZero(t, second.TextLength)
}

func TestCollectCandidates(t *testing.T) {
	doc := `<div class="message-received">
		<div class="markdown" id="markdown-1" data-state="done"><p>echo</p></div>
		<div class="markdown" id="markdown-2"><p>answer</p></div>
		<div class="markdown" id="oops"><p>junk</p></div>
	</div>`

	blocks, errs := CollectCandidates(doc)
	require.Len(t, blocks, 3)
	assert.True(t, blocks[0].IsValidID)
	assert.Equal(t, 1, blocks[0].Ordinal)
	assert.Equal(t, "done", blocks[0].DataAttrs["data-state"])
	assert.True(t, blocks[1].IsValidID)
	assert.False(t, blocks[2].IsValidID)
	assert.Equal(t, -1, blocks[2].Ordinal)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "invalid markdown id")
}
