// conform runs a client/server conformance suite.
//
// Usage:
//
//	conform                      build, start the server and run every test
//	conform run --start 10       run from test10 onward
//	conform list                 show the resolved test catalog
//	conform inspect              browse the artifacts of the last run
//	conform version
//
// Tests run one at a time in index order. The first failing test stops
// the run. Exit codes: 0 all tests passed, 1 a test failed or the server
// did not shut down, 2 usage or configuration error, 3 missing fixture
// or infrastructure failure.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dkoosis/conform/internal/config"
	"github.com/dkoosis/conform/internal/harness"
	"github.com/dkoosis/conform/internal/inspect"
	"github.com/dkoosis/conform/internal/report"
	"github.com/dkoosis/conform/internal/version"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
	exitInfra = 3
)

// ExitCodeError attaches a process exit code to an error.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e ExitCodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e ExitCodeError) Unwrap() error { return e.Err }

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line and returns the exit code, so tests can
// drive the CLI without os.Exit.
func execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	code := exitCode(err)
	if code != exitFail {
		fmt.Fprintf(stderr, "conform: %v\n", err)
	}
	return code
}

// exitCode maps an error to the documented exit codes. Verdict failures
// were already printed by the reporter.
func exitCode(err error) int {
	var coded ExitCodeError
	if errors.As(err, &coded) {
		return coded.Code
	}
	switch {
	case errors.Is(err, harness.ErrMismatch), errors.Is(err, harness.ErrNoShutdown):
		return exitFail
	case errors.Is(err, config.ErrInvalid):
		return exitUsage
	default:
		return exitInfra
	}
}

// usageError marks errors caused by the command line itself.
func usageError(err error) error {
	return ExitCodeError{Code: exitUsage, Err: err}
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError(err)
	}
	return nil
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &config.Flags{}

	root := &cobra.Command{
		Use:   "conform",
		Short: "Run a client/server conformance suite",
		Long: `conform builds the server and client under test, starts the server and
runs the client once per test script, comparing its output with the
expected transcript. Lines are compared as an unordered multiset; blank
lines are ignored. The first failing test ends the run.`,
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSuite(cmd, flags, stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		fmt.Fprintln(stderr, cmd.UsageString())
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "config file (default ./"+config.LocalConfigFile+" when present)")
	pf.StringVar(&flags.ExecDir, "exec-dir", config.DefaultExecDir, "directory the build, server and client run in")
	pf.StringVar(&flags.FixtureDir, "fixtures", config.DefaultFixtureDir, "directory holding testNN.dsl and testNN.exp")
	pf.StringVar(&flags.LogDir, "logs", config.DefaultLogDir, "artifact directory, recreated on every run")
	pf.IntVar(&flags.Start, "start", config.DefaultStart, "first test index (inclusive)")
	pf.IntVar(&flags.End, "end", config.DefaultEnd, "last test index (exclusive)")
	pf.StringVar(&flags.Control, "control", "", "control test indices, e.g. 16,20-22")
	pf.StringVar(&flags.Shutdown, "shutdown", "", "shutdown-trigger test indices")
	pf.StringVar(&flags.Skip, "skip", "", "test indices to skip")
	pf.StringVar(&flags.Clean, "clean", config.DefaultCleanTarget, "make target run before the build; empty skips it")
	pf.BoolVar(&flags.NoBuild, "no-build", false, "reuse the existing binaries")
	pf.DurationVar(&flags.Timeout, "shutdown-timeout", 0, "bound the wait for the server to exit after a shutdown test (0 waits forever)")
	pf.StringVar(&flags.Theme, "theme", config.DefaultTheme, "console theme: default, orca, mono")
	pf.BoolVar(&flags.NoColor, "no-color", false, "disable colour output")
	pf.BoolVar(&flags.Debug, "debug", false, "trace configuration and process lifecycle on stderr")

	root.AddCommand(
		newRunCmd(flags, stdout, stderr),
		newListCmd(flags, stdout, stderr),
		newInspectCmd(flags, stdout, stderr),
		newVersionCmd(stdout),
	)
	return root
}

// resolveConfig marks the flags the user actually passed and resolves
// the configuration.
func resolveConfig(cmd *cobra.Command, flags *config.Flags, stderr io.Writer) (config.Config, error) {
	changed := cmd.Flags().Changed
	flags.ExecDirSet = changed("exec-dir")
	flags.FixtureDirSet = changed("fixtures")
	flags.LogDirSet = changed("logs")
	flags.StartSet = changed("start")
	flags.EndSet = changed("end")
	flags.ControlSet = changed("control")
	flags.ShutdownSet = changed("shutdown")
	flags.SkipSet = changed("skip")
	flags.CleanSet = changed("clean")
	flags.NoBuildSet = changed("no-build")
	flags.TimeoutSet = changed("shutdown-timeout")
	flags.ThemeSet = changed("theme")
	flags.NoColorSet = changed("no-color")
	flags.DebugSet = changed("debug")
	return config.Resolve(*flags, stderr)
}

func newRunCmd(flags *config.Flags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Build, start the server and run the suite (default)",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSuite(cmd, flags, stdout, stderr)
		},
	}
}

func runSuite(cmd *cobra.Command, flags *config.Flags, stdout, stderr io.Writer) error {
	cfg, err := resolveConfig(cmd, flags, stderr)
	if err != nil {
		return err
	}

	rep := report.New(stdout, report.WithTheme(report.ThemeByName(cfg.Theme)), colorOption(cfg))
	opts := []harness.Option{harness.WithStderr(stderr)}
	if cfg.Debug {
		opts = append(opts, harness.WithDebug(stderr))
	}
	_, err = harness.New(cfg, rep, opts...).Run(cmd.Context())
	return err
}

func colorOption(cfg config.Config) report.Option {
	if cfg.NoColor {
		off := false
		return report.WithColor(&off)
	}
	return report.WithColor(nil)
}

func newListCmd(flags *config.Flags, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the resolved test catalog",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, flags, stderr)
			if err != nil {
				return err
			}
			report.RenderCatalog(stdout, harness.Catalog(cfg).Cases())
			return nil
		},
	}
}

func newInspectCmd(flags *config.Flags, stdout, stderr io.Writer) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Browse the artifacts of the last run",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd, flags, stderr)
			if err != nil {
				return err
			}
			session, err := inspect.Load(cfg.LogDir, cfg.FixtureDir)
			if err != nil {
				return err
			}
			if plain || !isTTYWriter(stdout) {
				inspect.RenderPlain(stdout, session)
				return nil
			}
			return inspect.Run(cmd.Context(), session, report.ThemeByName(cfg.Theme))
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print a text listing instead of the interactive viewer")
	return cmd
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  noArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprint(stdout, version.String())
		},
	}
}

// isTTYWriter reports whether w is a terminal.
func isTTYWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
