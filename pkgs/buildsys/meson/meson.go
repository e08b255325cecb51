// Package meson wraps the meson setup and ninja build/install workflow.
package meson

import (
	"context"
	"os"

	"github.com/goplus/cibuildpkg/pkgs/buildsys"
)

// Meson drives Meson-based builds.
type Meson struct {
	opts buildsys.Options
}

var _ buildsys.BuildSystem = (*Meson)(nil)

// New returns a ready-to-use Meson.
func New(opts buildsys.Options) *Meson {
	return &Meson{opts: opts}
}

// ConfigureArgs returns the arguments passed after the source directory.
func (m *Meson) ConfigureArgs() []string {
	args := []string{"--libdir=lib", "--prefix=" + m.opts.Prefix}
	return append(args, m.opts.Args...)
}

// Configure runs "meson <source>" inside BuildDir.
func (m *Meson) Configure(ctx context.Context) error {
	o := &m.opts
	if err := os.MkdirAll(o.BuildDir, 0o755); err != nil {
		return err
	}
	args := append([]string{"meson", o.SourceDir}, m.ConfigureArgs()...)
	return o.Runner.Run(ctx, o.Command(o.BuildDir, args...))
}

// Build runs ninja, which picks its own parallelism.
func (m *Meson) Build(ctx context.Context) error {
	o := &m.opts
	args := []string{"ninja", "--verbose"}
	if !o.Parallel {
		args = append(args, "-j1")
	}
	return o.Runner.Run(ctx, o.Command(o.BuildDir, args...))
}

// Install runs "ninja install".
func (m *Meson) Install(ctx context.Context) error {
	o := &m.opts
	return o.Runner.Run(ctx, o.Command(o.BuildDir, "ninja", "install"))
}
