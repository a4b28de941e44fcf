package capture

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"answerhound/internal/engine"
)

func TestStoreArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "entries", "Q1")
	store, err := NewStore(dir)
	require.NoError(t, err)

	path, err := store.SaveHTML(engine.StageFinal, "<html><body>doc</body></html>")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "final.html"), path)

	summary := engine.ProbeSummary{
		ConversationID:      "chat-1",
		HasCompletionSignal: true,
		Events: []engine.TrafficEvent{
			{At: time.Now(), Kind: engine.TrafficRestGet, URL: "https://x/chat/chat-1/messages", Method: "GET", Status: 200},
			{At: time.Now(), Kind: engine.TrafficCompletionSignal, ParseError: true, URL: "https://x/graphql", Method: "POST", Status: 200},
		},
	}
	_, err = store.SaveProbe(summary)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "probe_events.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2, "parse errors are recorded, not dropped")

	var ev engine.TrafficEvent
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &ev))
	assert.True(t, ev.ParseError)

	extraction := engine.ExtractAnswer(`<div class="message-received"><div class="markdown" id="markdown-2"><p>ans</p></div></div>`)
	_, err = store.SaveExtraction(extraction, []engine.CandidateBlock{{Ordinal: 2, IsValidID: true}}, nil)
	require.NoError(t, err)

	var payload struct {
		Result engine.ExtractionResult `json:"result"`
	}
	data, err := os.ReadFile(filepath.Join(dir, "extraction.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, engine.ExtractionValid, payload.Result.Status)
	assert.Equal(t, 2, payload.Result.SelectedOrdinal)
}
