// Package makefile builds packages that ship a bare Makefile and no
// configure step.
package makefile

import (
	"context"

	"github.com/goplus/cibuildpkg/pkgs/buildsys"
)

// Makefile drives plain make builds. The prefix is passed as PREFIX to both
// the build and the install invocation.
type Makefile struct {
	opts buildsys.Options
}

var _ buildsys.BuildSystem = (*Makefile)(nil)

// New returns a ready-to-use Makefile.
func New(opts buildsys.Options) *Makefile {
	return &Makefile{opts: opts}
}

func (m *Makefile) prefixArg() string {
	return "PREFIX=" + m.opts.MangledPath(m.opts.Prefix)
}

// Configure does nothing.
func (m *Makefile) Configure(ctx context.Context) error {
	return nil
}

// Build runs make in the source directory.
func (m *Makefile) Build(ctx context.Context) error {
	o := &m.opts
	args := append([]string{"make"}, buildsys.MakeArgs(o.Parallel)...)
	args = append(args, m.prefixArg())
	args = append(args, o.Args...)
	return o.Runner.Run(ctx, o.Command(o.SourceDir, args...))
}

// Install runs "make install" in the source directory.
func (m *Makefile) Install(ctx context.Context) error {
	o := &m.opts
	args := append([]string{"make", "install", m.prefixArg()}, o.Args...)
	return o.Runner.Run(ctx, o.Command(o.SourceDir, args...))
}
