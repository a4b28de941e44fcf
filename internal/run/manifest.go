package run

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestEntry is one question's line in the run manifest.
type ManifestEntry struct {
	OrdinanceID  string `yaml:"ordinance_id"`
	QuestionID   string `yaml:"question_id"`
	ResultStatus string `yaml:"result_status"`
	ResultReason string `yaml:"result_reason,omitempty"`
	File         string `yaml:"file,omitempty"`
}

// Manifest is the single run-level index handed downstream together with
// the answer files.
type Manifest struct {
	SchemaVersion string          `yaml:"schema_version"`
	Kind          string          `yaml:"kind"`
	RunID         string          `yaml:"run_id"`
	ExecutedAt    string          `yaml:"executed_at"`
	Aborted       bool            `yaml:"aborted"`
	FatalError    string          `yaml:"fatal_error,omitempty"`
	Entries       []ManifestEntry `yaml:"entries"`
}

const manifestSchemaVersion = "manifest_v0.1"

// BuildManifest folds a run summary into its manifest.
func BuildManifest(summary *Summary) Manifest {
	m := Manifest{
		SchemaVersion: manifestSchemaVersion,
		Kind:          "manifest",
		RunID:         summary.RunID,
		ExecutedAt:    summary.ExecutedAt.Format(time.RFC3339),
		Aborted:       summary.Aborted,
		FatalError:    summary.FatalError,
		Entries:       make([]ManifestEntry, 0, len(summary.Results)),
	}
	for _, result := range summary.Results {
		m.Entries = append(m.Entries, ManifestEntry{
			OrdinanceID:  result.OrdinanceID,
			QuestionID:   result.QuestionID,
			ResultStatus: string(result.Status),
			ResultReason: result.Reason,
			File:         result.AnswerPath,
		})
	}
	return m
}

// WriteManifest writes the manifest exactly once. A manifest already on
// disk means a run id collision; refuse rather than clobber the record.
func WriteManifest(path string, m Manifest) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("manifest already exists: %s: %w", path, os.ErrExist)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
