// Package build drives the external build of the binaries under test.
package build

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// Builder runs "<Make> <CleanTarget>" followed by "<Make>" in Dir.
//
// The build is an opaque collaborator: its stdout is discarded and its
// exit status is not checked. A broken build surfaces as failing tests.
// Failures are traced when Debug is set.
type Builder struct {
	Make        string
	CleanTarget string
	Dir         string

	Stderr io.Writer // build diagnostics; nil discards them
	Debug  io.Writer // nil disables tracing
}

// Step is one build invocation and its outcome.
type Step struct {
	Args     []string
	Duration time.Duration
	Err      error
}

// Run performs the clean and build steps in order and returns both
// outcomes. It only fails when ctx is cancelled.
func (b Builder) Run(ctx context.Context) ([]Step, error) {
	var invocations [][]string
	if b.CleanTarget != "" {
		invocations = append(invocations, []string{b.CleanTarget})
	}
	invocations = append(invocations, nil)

	steps := make([]Step, 0, len(invocations))
	for _, args := range invocations {
		step := b.invoke(ctx, args)
		steps = append(steps, step)
		if err := ctx.Err(); err != nil {
			return steps, fmt.Errorf("build interrupted: %w", err)
		}
	}
	return steps, nil
}

func (b Builder) invoke(ctx context.Context, args []string) Step {
	start := time.Now()
	cmd := exec.CommandContext(ctx, b.Make, args...)
	cmd.Dir = b.Dir
	cmd.Stderr = b.Stderr

	err := cmd.Run()
	step := Step{Args: args, Duration: time.Since(start), Err: err}
	if err != nil && b.Debug != nil {
		fmt.Fprintf(b.Debug, "[DEBUG build] %s %v in %s: %v\n", b.Make, args, b.Dir, err)
	}
	return step
}
