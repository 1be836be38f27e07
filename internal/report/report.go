// Package report prints run progress and persists the run summary.
//
// Each executed test produces exactly one console line:
//
//	[Pass] test03 -> 12.345 ms
//	[Pass] test10 -> 48.002 ms <load>
//	[Fail] test16 -> 3.140 ms <control>
//	       diff: logs/test16.diff
//
// A shutdown-trigger test whose server keeps running adds the line
// "Server did not shut down!". Skipped tests print nothing.
package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/dkoosis/conform/internal/fixture"
)

// Verdict is the outcome class of one test.
type Verdict int

const (
	// Pass means the transcripts matched.
	Pass Verdict = iota
	// Fail means the transcripts differed.
	Fail
	// NoShutdown means the transcripts matched but the server did not
	// exit after a shutdown-trigger test.
	NoShutdown
)

// String returns the lower-case verdict name.
func (v Verdict) String() string {
	switch v {
	case Fail:
		return "fail"
	case NoShutdown:
		return "no-shutdown"
	default:
		return "pass"
	}
}

// Outcome is one test's result as handed to the reporter.
type Outcome struct {
	Case     fixture.Case
	Verdict  Verdict
	Elapsed  time.Duration
	Result   string // captured client stdout
	DiffPath string // set for failures
	Missing  int
	Extra    int
	ExitCode int
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithTheme selects the console theme.
func WithTheme(t Theme) Option {
	return func(r *Reporter) { r.theme = t }
}

// WithColor forces colour on or off. nil means auto-detect from the
// writer.
func WithColor(force *bool) Option {
	return func(r *Reporter) { r.forceColor = force }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// Reporter prints per-test lines and accumulates the summary.
type Reporter struct {
	w          io.Writer
	theme      Theme
	forceColor *bool
	color      bool
	now        func() time.Time

	summary Summary
}

// New returns a reporter writing to w.
func New(w io.Writer, opts ...Option) *Reporter {
	r := &Reporter{w: w, theme: DefaultTheme(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.color = r.detectColor()
	r.summary = Summary{Started: r.now(), Tests: []TestRecord{}}
	return r
}

func (r *Reporter) detectColor() bool {
	if r.forceColor != nil {
		return *r.forceColor
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := r.w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Phase prints a progress line such as "Compiling...".
func (r *Reporter) Phase(msg string) {
	fmt.Fprintln(r.w, r.style(r.theme.Muted, msg))
}

// Report prints the status line for o and records it. For a failure it
// also prints the diff artifact path.
func (r *Reporter) Report(o Outcome) {
	fmt.Fprintln(r.w, r.Line(o))
	if o.Verdict == Fail && o.DiffPath != "" {
		fmt.Fprintf(r.w, "       diff: %s\n", o.DiffPath)
	}

	r.summary.Tests = append(r.summary.Tests, TestRecord{
		Name:      o.Case.Name,
		Index:     o.Case.Index,
		Category:  o.Case.Category,
		Verdict:   o.Verdict.String(),
		ElapsedMS: millis(o.Elapsed),
		Result:    o.Result,
		Diff:      o.DiffPath,
		Missing:   o.Missing,
		Extra:     o.Extra,
		ExitCode:  o.ExitCode,
	})
	switch o.Verdict {
	case Pass:
		r.summary.Passed++
	default:
		r.summary.Failed++
	}
}

// NoShutdown records that the server outlived the shutdown-trigger test
// tc, which was already reported as passing.
func (r *Reporter) NoShutdown(tc fixture.Case) {
	fmt.Fprintln(r.w, r.style(r.theme.Fail, "Server did not shut down!"))
	for i := len(r.summary.Tests) - 1; i >= 0; i-- {
		rec := &r.summary.Tests[i]
		if rec.Index != tc.Index {
			continue
		}
		if rec.Verdict == Pass.String() {
			r.summary.Passed--
			r.summary.Failed++
		}
		rec.Verdict = NoShutdown.String()
		return
	}
}

// Skip records a skipped test. Nothing is printed.
func (r *Reporter) Skip(fixture.Case) {
	r.summary.Skipped++
}

// Line formats the status line for o.
func (r *Reporter) Line(o Outcome) string {
	label, style := "[Pass]", r.theme.Pass
	if o.Verdict == Fail {
		label, style = "[Fail]", r.theme.Fail
	}
	line := fmt.Sprintf("%s %s -> %.3f ms", r.style(style, label), o.Case.Name, millis(o.Elapsed))
	if tag := o.Case.Category.Tag(); tag != "" {
		line += " " + r.style(r.theme.Tag, "<"+tag+">")
	}
	return line
}

// Finish closes the summary with the run's terminal state, prints the
// tally line and returns the summary. abort is empty for a complete run.
func (r *Reporter) Finish(notRun int, abort string) Summary {
	r.summary.Finished = r.now()
	r.summary.NotRun = notRun
	r.summary.Aborted = abort

	tally := fmt.Sprintf("%d passed, %d failed, %d skipped", r.summary.Passed, r.summary.Failed, r.summary.Skipped)
	if notRun > 0 {
		tally += fmt.Sprintf(", %d not run", notRun)
	}
	tally += fmt.Sprintf(" in %s", r.summary.Finished.Sub(r.summary.Started).Round(time.Millisecond))
	style := r.theme.Pass
	if r.summary.Failed > 0 || abort != "" {
		style = r.theme.Fail
	}
	fmt.Fprintln(r.w, r.style(style, tally))
	return r.summary
}

// Summary returns a copy of the summary accumulated so far.
func (r *Reporter) Summary() Summary {
	s := r.summary
	s.Tests = append([]TestRecord(nil), r.summary.Tests...)
	return s
}

func (r *Reporter) style(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
