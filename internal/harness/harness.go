// Package harness sequences a conformance run.
//
// A run builds the binaries, recreates the log directory, starts the
// server and then executes the catalog in ascending index order. Each
// test runs the client against the live server and compares its output
// with the expected transcript. The first failing test ends the run.
// After a passing shutdown-trigger test the sequencer waits for the
// server to exit and starts a fresh one before the next test. Whatever
// the outcome, a server still alive at the end is terminated.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dkoosis/conform/internal/build"
	"github.com/dkoosis/conform/internal/config"
	"github.com/dkoosis/conform/internal/fixture"
	"github.com/dkoosis/conform/internal/process"
	"github.com/dkoosis/conform/internal/report"
	"github.com/dkoosis/conform/internal/runlog"
	"github.com/dkoosis/conform/pkg/verify"
)

var (
	// ErrMismatch reports a test whose output differed from the expected
	// transcript.
	ErrMismatch = errors.New("output mismatch")

	// ErrNoShutdown reports a shutdown-trigger test after which the
	// server kept running.
	ErrNoShutdown = errors.New("server did not shut down")
)

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithStderr forwards build, server and client stderr to w.
func WithStderr(w io.Writer) Option {
	return func(s *Sequencer) { s.stderr = w }
}

// WithDebug enables lifecycle tracing to w.
func WithDebug(w io.Writer) Option {
	return func(s *Sequencer) { s.debug = w }
}

// WithGrace overrides the server termination grace period.
func WithGrace(d time.Duration) Option {
	return func(s *Sequencer) { s.grace = d }
}

// Sequencer runs one conformance pass. It is not reusable.
type Sequencer struct {
	cfg     config.Config
	catalog *fixture.Catalog
	rep     *report.Reporter

	stderr io.Writer
	debug  io.Writer
	grace  time.Duration

	logs *runlog.Dir
	ctrl *process.Controller
}

// New returns a sequencer for cfg reporting to rep.
func New(cfg config.Config, rep *report.Reporter, opts ...Option) *Sequencer {
	s := &Sequencer{
		cfg:     cfg,
		catalog: Catalog(cfg),
		rep:     rep,
		grace:   process.DefaultGrace,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog builds the test catalog described by cfg.
func Catalog(cfg config.Config) *fixture.Catalog {
	return fixture.NewCatalog(fixture.Spec{
		Dir:      cfg.FixtureDir,
		Start:    cfg.Start,
		End:      cfg.End,
		Control:  cfg.Control(),
		Shutdown: cfg.Shutdown(),
		Skip:     cfg.Skip(),
	})
}

// Run executes the whole pass and returns its summary, which is also
// written to the log directory. The error is nil only when every
// executed test passed. Verdict failures wrap ErrMismatch or
// ErrNoShutdown; a missing fixture wraps process.ErrMissingFixture.
func (s *Sequencer) Run(ctx context.Context) (report.Summary, error) {
	if !s.cfg.NoBuild {
		s.rep.Phase("Compiling...")
		builder := build.Builder{
			Make:        s.cfg.Make,
			CleanTarget: s.cfg.CleanTarget,
			Dir:         s.cfg.ExecDir,
			Stderr:      s.stderr,
			Debug:       s.debug,
		}
		if _, err := builder.Run(ctx); err != nil {
			return s.finish(s.countRunnable(s.catalog.Cases()), err)
		}
	}

	s.rep.Phase("Starting...")
	logs, err := runlog.Create(s.cfg.LogDir)
	if err != nil {
		return report.Summary{}, err
	}
	s.logs = logs
	s.ctrl = process.NewController(
		process.Descriptor{Path: s.cfg.Server, Dir: s.cfg.ExecDir},
		process.Descriptor{Path: s.cfg.Client, Dir: s.cfg.ExecDir},
		logs,
		process.WithStderr(s.stderr),
		process.WithGrace(s.grace),
		process.WithDebug(s.debug),
	)

	notRun, runErr := s.execute(ctx)
	return s.finish(notRun, runErr)
}

// execute runs the catalog and returns how many runnable tests were
// never reached. The server is always terminated before it returns.
func (s *Sequencer) execute(ctx context.Context) (notRun int, err error) {
	defer func() {
		if terr := s.ctrl.Shutdown(); terr != nil {
			s.tracef("terminating server: %v", terr)
		}
	}()

	cases := s.catalog.Cases()
	if _, err := s.ctrl.StartServer(ctx); err != nil {
		return s.countRunnable(cases), err
	}

	for i, tc := range cases {
		if tc.Category == fixture.Skip {
			s.rep.Skip(tc)
			continue
		}
		if err := s.runTest(ctx, tc); err != nil {
			return s.countRunnable(cases[i+1:]), err
		}
	}
	return 0, nil
}

// runTest executes one test and, for a passing shutdown-trigger test,
// cycles the server.
func (s *Sequencer) runTest(ctx context.Context, tc fixture.Case) error {
	run, err := s.ctrl.RunClient(ctx, tc)
	if err != nil {
		return err
	}

	res, err := verify.CompareFiles(tc.Expected, run.Output)
	if err != nil {
		return fmt.Errorf("%s: %w", tc.Name, err)
	}
	diffPath := s.logs.Diff(tc.Name)
	if err := verify.WriteDiff(diffPath, res); err != nil {
		return fmt.Errorf("%s: writing diff: %w", tc.Name, err)
	}

	outcome := report.Outcome{
		Case:     tc,
		Verdict:  report.Pass,
		Elapsed:  run.Elapsed,
		Result:   run.Output,
		ExitCode: run.ExitCode,
	}
	if !res.Pass {
		outcome.Verdict = report.Fail
		outcome.DiffPath = diffPath
		outcome.Missing = res.Missing
		outcome.Extra = res.Extra
	}
	s.rep.Report(outcome)

	if !res.Pass {
		return fmt.Errorf("%w: %s", ErrMismatch, tc.Name)
	}
	if tc.Category == fixture.Shutdown {
		return s.cycleServer(ctx, tc)
	}
	return nil
}

// cycleServer waits for the server to exit after shutdown-trigger test
// tc and starts a new one. Without a configured timeout the wait is
// unbounded.
func (s *Sequencer) cycleServer(ctx context.Context, tc fixture.Case) error {
	srv := s.ctrl.Server()

	waitCtx := ctx
	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
	}
	status, waitErr := srv.Wait(waitCtx)

	if exited, _ := srv.Poll(); !exited {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("waiting for server after %s: %w", tc.Name, err)
		}
		s.rep.NoShutdown(tc)
		return fmt.Errorf("%w after %s", ErrNoShutdown, tc.Name)
	}
	s.tracef("server pid=%d exited status=%d after %s uptime=%s (wait: %v)", srv.PID(), status, tc.Name, srv.Uptime().Round(time.Millisecond), waitErr)

	next, err := s.ctrl.StartServer(ctx)
	if err != nil {
		return fmt.Errorf("restarting server after %s: %w", tc.Name, err)
	}
	s.tracef("server restarted pid=%d", next.PID())
	return nil
}

// finish closes the report and persists the summary. A summary write
// failure only surfaces when the run itself succeeded.
func (s *Sequencer) finish(notRun int, runErr error) (report.Summary, error) {
	abort := ""
	if runErr != nil {
		abort = runErr.Error()
	}
	sum := s.rep.Finish(notRun, abort)
	if s.logs != nil {
		if err := report.WriteSummary(s.logs.Summary(), sum); err != nil && runErr == nil {
			return sum, err
		}
	}
	return sum, runErr
}

func (s *Sequencer) countRunnable(cases []fixture.Case) int {
	n := 0
	for _, tc := range cases {
		if tc.Category != fixture.Skip {
			n++
		}
	}
	return n
}

func (s *Sequencer) tracef(format string, args ...any) {
	if s.debug != nil {
		fmt.Fprintf(s.debug, "[DEBUG harness] "+format+"\n", args...)
	}
}
