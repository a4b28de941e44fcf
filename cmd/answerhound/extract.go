package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"answerhound/internal/engine"
)

var extractShowCandidates bool

// extractCmd re-runs the answer extraction against a saved HTML capture.
// Useful for diagnosing a NO_ANSWER result offline without the browser.
var extractCmd = &cobra.Command{
	Use:   "extract [html-file]",
	Short: "Extract the answer block from a saved HTML capture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read capture: %w", err)
		}

		result := engine.ExtractAnswer(string(data))
		if !extractShowCandidates {
			result.Candidates = nil
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))

		if result.Status != engine.ExtractionValid {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractShowCandidates, "candidates", false, "include every candidate block considered")
}
