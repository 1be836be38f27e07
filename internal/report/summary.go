package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dkoosis/conform/internal/fixture"
	"github.com/dkoosis/conform/internal/version"
)

// summaryVersion is bumped when the summary.json layout changes.
const summaryVersion = "1"

// Summary is the persisted record of a run.
type Summary struct {
	Version  string    `json:"version"`
	Tool     string    `json:"tool_version"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	NotRun  int `json:"not_run"`

	// Aborted names why the run stopped early, empty when it completed.
	Aborted string `json:"aborted,omitempty"`

	Tests []TestRecord `json:"tests"`
}

// TestRecord is one reported test.
type TestRecord struct {
	Name      string           `json:"name"`
	Index     int              `json:"index"`
	Category  fixture.Category `json:"category"`
	Verdict   string           `json:"verdict"`
	ElapsedMS float64          `json:"elapsed_ms"`
	Result    string           `json:"result,omitempty"`
	Diff      string           `json:"diff,omitempty"`
	Missing   int              `json:"missing,omitempty"`
	Extra     int              `json:"extra,omitempty"`
	ExitCode  int              `json:"exit_code"`
}

// OK reports whether every executed test passed and the run completed.
func (s Summary) OK() bool {
	return s.Failed == 0 && s.Aborted == ""
}

// WriteSummary writes s as indented JSON to path.
func WriteSummary(path string, s Summary) error {
	s.Version = summaryVersion
	s.Tool = version.Version
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

// ReadSummary loads a summary written by WriteSummary.
func ReadSummary(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, fmt.Errorf("reading summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return Summary{}, fmt.Errorf("decoding summary %s: %w", path, err)
	}
	return s, nil
}
