//go:build !unix

package process

import (
	"errors"
	"os"
	"os/exec"
)

// setProcessGroup is a no-op on non-Unix platforms.
func setProcessGroup(cmd *exec.Cmd) {}

// terminateGroup kills the process directly; there is no graceful
// signal to send on non-Unix platforms.
func terminateGroup(p *os.Process) error {
	return killGroup(p)
}

// killGroup kills the process directly on non-Unix platforms.
func killGroup(p *os.Process) error {
	if p == nil {
		return nil
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// exitStatus uses ProcessState.ExitCode, available cross-platform.
func exitStatus(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	return state.ExitCode()
}
