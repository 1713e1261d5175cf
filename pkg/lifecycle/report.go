package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Report is the outcome of a Run.
type Report struct {
	RunID     string        `json:"run_id"`
	Env       string        `json:"env,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Classes   []ClassResult `json:"classes"`
	Summary   Summary       `json:"summary"`
}

// Summary counts final test statuses. Retried counts tests that needed more
// than one attempt; Attempts counts every attempt.
type Summary struct {
	Classes        int `json:"classes"`
	ClassesAborted int `json:"classes_aborted"`
	Total          int `json:"total"`
	Passed         int `json:"passed"`
	Failed         int `json:"failed"`
	Skipped        int `json:"skipped"`
	Retried        int `json:"retried"`
	Attempts       int `json:"attempts"`
}

// OK reports whether nothing failed or was skipped.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Skipped == 0 && s.ClassesAborted == 0
}

// Summarize tallies class results.
func Summarize(classes []ClassResult) Summary {
	var s Summary
	for _, c := range classes {
		s.Classes++
		if c.Error != "" {
			s.ClassesAborted++
		}
		for _, t := range c.Tests {
			s.Total++
			s.Attempts += len(t.Attempts)
			if len(t.Attempts) > 1 {
				s.Retried++
			}
			switch t.Status {
			case StatusPassed:
				s.Passed++
			case StatusFailed:
				s.Failed++
			case StatusSkipped:
				s.Skipped++
			}
		}
	}
	return s
}

// WriteReport writes report.json and summary.json into dir and returns the
// path of the full report.
func WriteReport(dir string, report *Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(dir, "report.json")
	if err := writeJSON(path, report); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, "summary.json"), report.Summary); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	return path, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0600)
}
