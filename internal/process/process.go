// Package process launches and supervises the server and client under
// test.
//
// Every launch is described by a Descriptor passed by value: executable,
// working directory and the files bound to stdin and stdout. The
// Controller owns at most one live server at a time and runs clients
// one after another against it.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/dkoosis/conform/internal/fixture"
)

// DefaultGrace is how long Terminate waits after SIGTERM before it
// escalates to SIGKILL.
const DefaultGrace = 2 * time.Second

// waitDelay bounds how long Wait keeps copying a non-file stderr after
// the process exited, in case a grandchild still holds the pipe.
const waitDelay = time.Second

var (
	// ErrMissingFixture reports a test whose input or expected transcript
	// does not exist. It is fatal to a run.
	ErrMissingFixture = errors.New("missing fixture")

	// ErrServerRunning is returned by StartServer while a previous server
	// is still alive.
	ErrServerRunning = errors.New("server already running")
)

// Descriptor describes one process launch.
type Descriptor struct {
	Path string   // executable; relative paths resolve against Dir
	Args []string // arguments after Path
	Dir  string   // working directory

	Stdin  string // file bound to stdin; empty means no input
	Stdout string // file bound to stdout; empty discards output
	Append bool   // open Stdout for append instead of truncating it
}

// command builds the exec.Cmd for d with the files already opened. The
// returned closer releases those files.
func (d Descriptor) command(ctx context.Context, stderr io.Writer) (*exec.Cmd, func(), error) {
	var files []*os.File
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	cmd := exec.CommandContext(ctx, d.Path, d.Args...)
	cmd.Dir = d.Dir
	cmd.Stderr = stderr
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killGroup(cmd.Process) }
	cmd.WaitDelay = waitDelay

	if d.Stdin != "" {
		in, err := os.Open(d.Stdin)
		if err != nil {
			return nil, nil, fmt.Errorf("opening stdin for %s: %w", d.Path, err)
		}
		files = append(files, in)
		cmd.Stdin = in
	}
	if d.Stdout != "" {
		flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if d.Append {
			flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
		out, err := os.OpenFile(d.Stdout, flags, 0o644)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("opening stdout for %s: %w", d.Path, err)
		}
		files = append(files, out)
		cmd.Stdout = out
	}
	return cmd, closeAll, nil
}

// Artifacts names the files the controller writes.
type Artifacts interface {
	ServerLog() string
	Result(name string) string
}

// ClientRun is the outcome of one client execution.
type ClientRun struct {
	Output   string        // path of the captured stdout
	Elapsed  time.Duration // process start to exit
	ExitCode int
}

// Option configures a Controller.
type Option func(*Controller)

// WithStderr sends server and client stderr to w. By default it is
// discarded.
func WithStderr(w io.Writer) Option {
	return func(c *Controller) { c.stderr = w }
}

// WithGrace overrides the SIGTERM to SIGKILL grace period.
func WithGrace(d time.Duration) Option {
	return func(c *Controller) { c.grace = d }
}

// WithDebug writes process lifecycle traces to w.
func WithDebug(w io.Writer) Option {
	return func(c *Controller) { c.debug = w }
}

// Controller starts servers and runs clients.
type Controller struct {
	server    Descriptor
	client    Descriptor
	artifacts Artifacts

	stderr io.Writer
	grace  time.Duration
	debug  io.Writer

	live    *Server
	started int
}

// NewController returns a controller for the given server and client
// templates. Their Stdin/Stdout fields are ignored; the controller binds
// them per launch from artifacts and the test case.
func NewController(server, client Descriptor, artifacts Artifacts, opts ...Option) *Controller {
	c := &Controller{
		server:    server,
		client:    client,
		artifacts: artifacts,
		grace:     DefaultGrace,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Server returns the most recently started server, or nil.
func (c *Controller) Server() *Server { return c.live }

// StartServer launches a new server with stdout captured to the server
// log. The first start of a controller truncates the log; restarts
// append to it.
func (c *Controller) StartServer(ctx context.Context) (*Server, error) {
	if c.live != nil {
		if exited, _ := c.live.Poll(); !exited {
			return nil, ErrServerRunning
		}
	}

	d := c.server
	d.Stdin = ""
	d.Stdout = c.artifacts.ServerLog()
	d.Append = c.started > 0

	cmd, closeFiles, err := d.command(ctx, c.stderr)
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		closeFiles()
		return nil, fmt.Errorf("starting server %s: %w", d.Path, err)
	}

	s := &Server{cmd: cmd, grace: c.grace, done: make(chan struct{}), started: time.Now()}
	go s.reap(closeFiles)

	c.live = s
	c.started++
	c.tracef("server started pid=%d (start #%d)", s.PID(), c.started)
	return s, nil
}

// RunClient runs the client for tc with stdin bound to the test's input
// script and stdout to its result file, and blocks until the client
// exits. A missing input or expected transcript yields ErrMissingFixture
// before anything is launched.
func (c *Controller) RunClient(ctx context.Context, tc fixture.Case) (ClientRun, error) {
	for _, path := range []string{tc.Input, tc.Expected} {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return ClientRun{}, fmt.Errorf("%w: %s", ErrMissingFixture, path)
			}
			return ClientRun{}, fmt.Errorf("checking fixture %s: %w", path, err)
		}
	}

	d := c.client
	d.Stdin = tc.Input
	d.Stdout = c.artifacts.Result(tc.Name)
	d.Append = false

	cmd, closeFiles, err := d.command(ctx, c.stderr)
	if err != nil {
		return ClientRun{}, err
	}
	defer closeFiles()

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return ClientRun{}, fmt.Errorf("starting client %s: %w", d.Path, err)
	}
	waitErr := cmd.Wait()
	elapsed := time.Since(start)

	run := ClientRun{Output: d.Stdout, Elapsed: elapsed, ExitCode: exitStatus(cmd.ProcessState)}
	c.tracef("client %s exited status=%d after %s", tc.Name, run.ExitCode, elapsed)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return run, fmt.Errorf("client %s interrupted: %w", tc.Name, ctxErr)
	}
	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return run, fmt.Errorf("waiting for client %s: %w", tc.Name, waitErr)
	}
	return run, nil
}

// Shutdown terminates the live server, if any. It is safe to call when
// no server was started or the server already exited.
func (c *Controller) Shutdown() error {
	if c.live == nil {
		return nil
	}
	if exited, _ := c.live.Poll(); exited {
		return nil
	}
	c.tracef("terminating server pid=%d", c.live.PID())
	return c.live.Terminate()
}

func (c *Controller) tracef(format string, args ...any) {
	if c.debug != nil {
		fmt.Fprintf(c.debug, "[DEBUG process] "+format+"\n", args...)
	}
}

// Server is a handle to a supervised server process.
type Server struct {
	cmd     *exec.Cmd
	grace   time.Duration
	started time.Time
	exited  time.Time

	done    chan struct{}
	status  int
	waitErr error

	termOnce sync.Once
	termErr  error
}

// reap waits for the process and publishes its status. It is the only
// caller of cmd.Wait.
func (s *Server) reap(closeFiles func()) {
	err := s.cmd.Wait()
	closeFiles()
	s.status = exitStatus(s.cmd.ProcessState)
	s.exited = time.Now()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		s.waitErr = err
	}
	close(s.done)
}

// PID returns the operating-system process id.
func (s *Server) PID() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Uptime returns how long the server has been running. Once the server
// has exited it is the lifetime of the process.
func (s *Server) Uptime() time.Duration {
	select {
	case <-s.done:
		return s.exited.Sub(s.started)
	default:
		return time.Since(s.started)
	}
}

// Poll reports without blocking whether the server has exited and, if
// so, its exit status.
func (s *Server) Poll() (exited bool, status int) {
	select {
	case <-s.done:
		return true, s.status
	default:
		return false, 0
	}
}

// Wait blocks until the server exits or ctx is done. On ctx expiry the
// server is left running and ctx's error is returned.
func (s *Server) Wait(ctx context.Context) (int, error) {
	select {
	case <-s.done:
		return s.status, s.waitErr
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Done is closed when the server has exited.
func (s *Server) Done() <-chan struct{} { return s.done }

// Terminate stops the server: SIGTERM to its process group, then SIGKILL
// if it has not exited within the grace period. Calling it on an exited
// server, or more than once, returns nil.
func (s *Server) Terminate() error {
	s.termOnce.Do(func() {
		if exited, _ := s.Poll(); exited {
			return
		}
		if err := terminateGroup(s.cmd.Process); err != nil {
			s.termErr = fmt.Errorf("terminating server: %w", err)
		}
		timer := time.NewTimer(s.grace)
		defer timer.Stop()
		select {
		case <-s.done:
			return
		case <-timer.C:
		}
		if err := killGroup(s.cmd.Process); err != nil {
			s.termErr = fmt.Errorf("killing server: %w", err)
			return
		}
		<-s.done
	})
	return s.termErr
}
