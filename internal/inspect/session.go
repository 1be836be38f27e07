// Package inspect browses the artifacts of a finished run.
//
// A Session is loaded from a log directory's summary.json. Each reported
// test can be viewed through four panes: its diff, the captured client
// output, the expected transcript and the shared server log.
package inspect

import (
	"fmt"
	"io"
	"path/filepath"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dkoosis/conform/internal/fixture"
	"github.com/dkoosis/conform/internal/report"
	"github.com/dkoosis/conform/internal/runlog"
)

// Pane selects which artifact is shown for a test.
type Pane int

const (
	PaneDiff Pane = iota
	PaneResult
	PaneExpected
	PaneServer
)

var panes = []Pane{PaneDiff, PaneResult, PaneExpected, PaneServer}

func (p Pane) String() string {
	switch p {
	case PaneResult:
		return "result"
	case PaneExpected:
		return "expected"
	case PaneServer:
		return "server log"
	default:
		return "diff"
	}
}

// Session is a loaded run.
type Session struct {
	Summary    report.Summary
	logs       *runlog.Dir
	fixtureDir string
}

// Load opens the run recorded in logDir. fixtureDir locates the expected
// transcripts.
func Load(logDir, fixtureDir string) (*Session, error) {
	logs, err := runlog.Open(logDir)
	if err != nil {
		return nil, err
	}
	sum, err := report.ReadSummary(logs.Summary())
	if err != nil {
		return nil, err
	}
	return &Session{Summary: sum, logs: logs, fixtureDir: fixtureDir}, nil
}

// Len reports how many tests were recorded.
func (s *Session) Len() int { return len(s.Summary.Tests) }

// Artifact returns the content of pane p for the i-th recorded test.
// Missing artifacts yield a placeholder, not an error.
func (s *Session) Artifact(i int, p Pane) (string, error) {
	if i < 0 || i >= s.Len() {
		return "", fmt.Errorf("no test at position %d", i)
	}
	rec := s.Summary.Tests[i]

	var path string
	switch p {
	case PaneResult:
		path = s.logs.Result(rec.Name)
	case PaneExpected:
		path = filepath.Join(s.fixtureDir, fixture.Name(rec.Index)+".exp")
	case PaneServer:
		path = s.logs.ServerLog()
	default:
		path = s.logs.Diff(rec.Name)
	}

	content, err := runlog.ReadArtifact(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if content == "" {
		if p == PaneDiff && rec.Verdict != report.Fail.String() {
			return "(no differences)", nil
		}
		return fmt.Sprintf("(%s is empty or missing)", path), nil
	}
	return content, nil
}

// RenderPlain writes a text listing of the session for non-interactive
// output.
func RenderPlain(w io.Writer, s *Session) {
	sum := s.Summary
	title := cases.Title(language.English)
	fmt.Fprintf(w, "Run of %s: %d passed, %d failed, %d skipped, %d not run\n",
		sum.Started.Format("2006-01-02 15:04:05"), sum.Passed, sum.Failed, sum.Skipped, sum.NotRun)
	if sum.Aborted != "" {
		fmt.Fprintf(w, "Aborted: %s\n", sum.Aborted)
	}
	for _, rec := range sum.Tests {
		line := fmt.Sprintf("  %-11s %s %s %.3f ms", title.String(rec.Verdict), rec.Name, title.String(rec.Category.String()), rec.ElapsedMS)
		if rec.Diff != "" {
			line += "  diff: " + rec.Diff
		}
		fmt.Fprintln(w, line)
	}
}
