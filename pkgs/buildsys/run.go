package buildsys

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Cmd is one external process invocation.
type Cmd struct {
	Dir  string
	Args []string
	Env  []string // nil inherits the process environment
}

func (c Cmd) String() string {
	return strings.Join(c.Args, " ")
}

// Runner runs external commands. Implementations must return a
// *BuildToolError when the command exits with a non-zero status.
type Runner interface {
	Run(ctx context.Context, cmd Cmd) error
}

// ExecRunner runs commands with os/exec. Standard output is streamed to
// Stdout; standard error is streamed to Stderr and captured so that it can
// be reported when the command fails.
type ExecRunner struct {
	Stdout io.Writer // os.Stdout when nil
	Stderr io.Writer // os.Stderr when nil
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Cmd) error {
	if len(c.Args) == 0 {
		return errors.New("buildsys: empty command")
	}
	stdout, stderr := r.Stdout, r.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	var captured bytes.Buffer
	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, &captured)

	err := cmd.Run()
	if err == nil {
		return nil
	}
	te := &BuildToolError{
		Args:     c.Args,
		Dir:      c.Dir,
		ExitCode: -1,
		Stderr:   captured.String(),
		Err:      err,
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		te.ExitCode = ee.ExitCode()
	}
	return te
}

// BuildToolError reports an external command that failed.
type BuildToolError struct {
	Args     []string
	Dir      string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *BuildToolError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.ExitCode < 0 && e.Err != nil {
		msg = fmt.Sprintf("%s: %v", strings.Join(e.Args, " "), e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\nstderr: " + s
	}
	return msg
}

func (e *BuildToolError) Unwrap() error { return e.Err }

// StepError records which lifecycle step of an adapter failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return e.Step + ": " + e.Err.Error() }

func (e *StepError) Unwrap() error { return e.Err }
