// Package buildsystest provides a buildsys.Runner that records commands
// instead of running them.
package buildsystest

import (
	"context"
	"strings"
	"sync"

	"github.com/goplus/cibuildpkg/pkgs/buildsys"
)

// Recorder records every command it is asked to run. When Hook is set it
// is called for each command and its error is returned, which lets tests
// simulate tool output or failures.
type Recorder struct {
	Hook func(cmd buildsys.Cmd) error

	mu   sync.Mutex
	cmds []buildsys.Cmd
}

// Run implements buildsys.Runner.
func (r *Recorder) Run(ctx context.Context, cmd buildsys.Cmd) error {
	r.mu.Lock()
	r.cmds = append(r.cmds, cmd)
	r.mu.Unlock()
	if r.Hook != nil {
		return r.Hook(cmd)
	}
	return nil
}

// Cmds returns the recorded commands.
func (r *Recorder) Cmds() []buildsys.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]buildsys.Cmd(nil), r.cmds...)
}

// Lines returns the recorded commands as space separated strings.
func (r *Recorder) Lines() []string {
	cmds := r.Cmds()
	lines := make([]string, len(cmds))
	for i, c := range cmds {
		lines[i] = strings.Join(c.Args, " ")
	}
	return lines
}

// Tools returns the first argument of every recorded command.
func (r *Recorder) Tools() []string {
	cmds := r.Cmds()
	tools := make([]string, len(cmds))
	for i, c := range cmds {
		tools[i] = c.Args[0]
	}
	return tools
}

// Reset forgets the recorded commands.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.cmds = nil
	r.mu.Unlock()
}
