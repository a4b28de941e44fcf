package run

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// QuestionSet is the YAML input naming what to ask against what.
type QuestionSet struct {
	SetID      string      `yaml:"set_id"`
	Ordinances []Ordinance `yaml:"ordinances"`
	Questions  []Question  `yaml:"questions"`
}

// LoadQuestionSet reads and validates a question set file.
func LoadQuestionSet(path string) (*QuestionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question set: %w", err)
	}

	var set QuestionSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse question set: %w", err)
	}

	if len(set.Questions) == 0 {
		return nil, fmt.Errorf("question set %s has no questions", path)
	}
	if len(set.Ordinances) == 0 {
		// A set without explicit scopes runs once against the open
		// conversation as-is.
		set.Ordinances = []Ordinance{{ID: "default"}}
	}

	seen := make(map[string]bool, len(set.Questions))
	for _, q := range set.Questions {
		if q.ID == "" {
			return nil, fmt.Errorf("question set %s has a question without question_id", path)
		}
		if q.Text == "" {
			return nil, fmt.Errorf("question %s has no text", q.ID)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("duplicate question_id %s", q.ID)
		}
		seen[q.ID] = true
	}
	return &set, nil
}
