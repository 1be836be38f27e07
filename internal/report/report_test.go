package report

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/conform/internal/fixture"
)

var noColor = func() *bool { b := false; return &b }()

func fixedClock() func() time.Time {
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	return func() time.Time {
		calls++
		return t0.Add(time.Duration(calls-1) * 1500 * time.Millisecond)
	}
}

func tc(i int, cat fixture.Category) fixture.Case {
	return fixture.Case{Index: i, Name: fixture.Name(i), Category: cat}
}

func TestReporter_LineFormat(t *testing.T) {
	r := New(&bytes.Buffer{}, WithColor(noColor))

	tests := []struct {
		name string
		o    Outcome
		want string
	}{
		{"plain pass", Outcome{Case: tc(3, fixture.Plain), Elapsed: 12345 * time.Microsecond}, "[Pass] test03 -> 12.345 ms"},
		{"shutdown pass", Outcome{Case: tc(10, fixture.Shutdown), Elapsed: 48 * time.Millisecond}, "[Pass] test10 -> 48.000 ms <load>"},
		{"control pass", Outcome{Case: tc(16, fixture.Control), Elapsed: time.Millisecond}, "[Pass] test16 -> 1.000 ms <control>"},
		{"fail", Outcome{Case: tc(7, fixture.Plain), Verdict: Fail, Elapsed: 500 * time.Microsecond}, "[Fail] test07 -> 0.500 ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Line(tt.o))
		})
	}
}

func TestReporter_ReportPrintsDiffPathOnFailure(t *testing.T) {
	var out bytes.Buffer
	r := New(&out, WithColor(noColor))

	r.Report(Outcome{Case: tc(1, fixture.Plain), Elapsed: time.Millisecond})
	r.Report(Outcome{Case: tc(2, fixture.Plain), Verdict: Fail, DiffPath: "logs/test02.diff", Missing: 1, Extra: 1})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[Pass] test01 -> 1.000 ms", lines[0])
	assert.Equal(t, "[Fail] test02 -> 0.000 ms", lines[1])
	assert.Equal(t, "       diff: logs/test02.diff", lines[2])

	s := r.Summary()
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 1, s.Failed)
	require.Len(t, s.Tests, 2)
	assert.Equal(t, "fail", s.Tests[1].Verdict)
	assert.Equal(t, "logs/test02.diff", s.Tests[1].Diff)
}

func TestReporter_SkipPrintsNothing(t *testing.T) {
	var out bytes.Buffer
	r := New(&out, WithColor(noColor))

	r.Skip(tc(4, fixture.Skip))

	assert.Empty(t, out.String())
	assert.Equal(t, 1, r.Summary().Skipped)
	assert.Empty(t, r.Summary().Tests)
}

func TestReporter_NoShutdownIsDistinct(t *testing.T) {
	var out bytes.Buffer
	r := New(&out, WithColor(noColor))
	shut := tc(2, fixture.Shutdown)

	r.Report(Outcome{Case: shut, Elapsed: 2 * time.Millisecond})
	r.NoShutdown(shut)

	assert.Equal(t, "[Pass] test02 -> 2.000 ms <load>\nServer did not shut down!\n", out.String())
	s := r.Summary()
	assert.Zero(t, s.Passed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, "no-shutdown", s.Tests[0].Verdict)
}

func TestReporter_FinishTally(t *testing.T) {
	var out bytes.Buffer
	r := New(&out, WithColor(noColor), WithClock(fixedClock()))
	r.Report(Outcome{Case: tc(1, fixture.Plain)})
	r.Skip(tc(2, fixture.Skip))
	r.Report(Outcome{Case: tc(3, fixture.Plain), Verdict: Fail})

	s := r.Finish(5, "test03 failed")

	assert.Contains(t, out.String(), "1 passed, 1 failed, 1 skipped, 5 not run in 1.5s\n")
	assert.Equal(t, 5, s.NotRun)
	assert.Equal(t, "test03 failed", s.Aborted)
	assert.False(t, s.OK())
}

func TestReporter_ColorWrapsButKeepsText(t *testing.T) {
	on := true
	r := New(&bytes.Buffer{}, WithColor(&on), WithTheme(MonoTheme()))

	assert.Equal(t, "[Pass] test01 -> 1.000 ms", r.Line(Outcome{Case: tc(1, fixture.Plain), Elapsed: time.Millisecond}))
}

func TestReporter_PhaseLine(t *testing.T) {
	var out bytes.Buffer
	New(&out, WithColor(noColor)).Phase("Compiling...")

	assert.Equal(t, "Compiling...\n", out.String())
}

func TestThemeByName(t *testing.T) {
	assert.Equal(t, "orca", ThemeByName("orca").Name)
	assert.Equal(t, "mono", ThemeByName("mono").Name)
	assert.Equal(t, "default", ThemeByName("unknown").Name)
}

func TestSummary_WriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	r := New(&bytes.Buffer{}, WithColor(noColor), WithClock(fixedClock()))
	r.Report(Outcome{Case: tc(1, fixture.Shutdown), Elapsed: 3 * time.Millisecond, Result: "logs/test01.res"})
	want := r.Finish(0, "")

	require.NoError(t, WriteSummary(path, want))
	got, err := ReadSummary(path)

	require.NoError(t, err)
	assert.Equal(t, "1", got.Version)
	assert.NotEmpty(t, got.Tool)
	assert.True(t, got.OK())
	require.Len(t, got.Tests, 1)
	assert.Equal(t, fixture.Shutdown, got.Tests[0].Category)
	assert.InDelta(t, 3.0, got.Tests[0].ElapsedMS, 1e-9)
	assert.True(t, want.Started.Equal(got.Started))
}

func TestReadSummary_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadSummary(filepath.Join(dir, "none.json"))
	assert.Error(t, err)
}

func TestRenderCatalog(t *testing.T) {
	var out bytes.Buffer
	cat := fixture.NewCatalog(fixture.Spec{Dir: "fx", Start: 1, End: 5, Control: []int{2}, Shutdown: []int{3}, Skip: []int{4}})

	RenderCatalog(&out, cat.Cases())

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "TEST    CATEGORY  INPUT", lines[0])
	assert.Equal(t, "test03  shutdown  "+filepath.Join("fx", "test03.dsl"), lines[3])
	assert.Equal(t, "Plain: 1, Control: 1, Shutdown: 1, Skip: 1", lines[5])
}

func TestRenderCatalog_Empty(t *testing.T) {
	var out bytes.Buffer
	RenderCatalog(&out, nil)

	assert.Contains(t, out.String(), "No tests in range")
}
