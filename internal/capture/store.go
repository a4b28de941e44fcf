// Package capture persists raw per-question evidence (document snapshots,
// screenshots, probe traffic, extraction diagnostics) for forensic replay.
package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"answerhound/internal/engine"
)

var _ engine.CaptureSink = (*Store)(nil)

// Store writes one question's artifacts into a single directory.
type Store struct {
	dir string
}

// NewStore creates the question directory and returns a store rooted there.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory artifacts are written into.
func (s *Store) Dir() string { return s.dir }

// SaveHTML writes one rendered-document checkpoint.
func (s *Store) SaveHTML(stage string, doc string) (string, error) {
	return s.write(stage+".html", []byte(doc))
}

// SaveScreenshot writes the visual capture.
func (s *Store) SaveScreenshot(png []byte) (string, error) {
	return s.write("final.png", png)
}

// SaveProbe writes the traffic log as JSONL next to a summary JSON. The
// JSONL keeps every observed exchange, parse errors included; the summary is
// the probe's folded verdict.
func (s *Store) SaveProbe(summary engine.ProbeSummary) (string, error) {
	var lines []byte
	for _, ev := range summary.Events {
		line, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		lines = append(lines, line...)
		lines = append(lines, '\n')
	}
	if _, err := s.write("probe_events.jsonl", lines); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal probe summary: %w", err)
	}
	return s.write("probe_summary.json", data)
}

// SaveExtraction writes the extraction result together with every candidate
// considered, so a successful run is still auditable.
func (s *Store) SaveExtraction(result engine.ExtractionResult, candidates []engine.CandidateBlock, errs []string) (string, error) {
	payload := struct {
		Result     engine.ExtractionResult `json:"result"`
		Candidates []engine.CandidateBlock `json:"candidates"`
		Errors     []string                `json:"errors,omitempty"`
	}{Result: result, Candidates: candidates, Errors: errs}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal extraction diagnostics: %w", err)
	}
	return s.write("extraction.json", data)
}

// SaveText writes a named text artifact.
func (s *Store) SaveText(name, content string) (string, error) {
	return s.write(name, []byte(content))
}

func (s *Store) write(name string, data []byte) (string, error) {
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}
