// Package cmake wraps the cmake configure/build/install workflow.
package cmake

import (
	"context"
	"os"
	"path/filepath"

	"github.com/goplus/cibuildpkg/pkgs/buildsys"
)

// Generator is the CMake generator used for every package.
const Generator = "Unix Makefiles"

// CMake drives CMake-based builds.
type CMake struct {
	opts buildsys.Options
}

var _ buildsys.BuildSystem = (*CMake)(nil)

// New returns a ready-to-use CMake.
func New(opts buildsys.Options) *CMake {
	return &CMake{opts: opts}
}

// ConfigureArgs returns the arguments passed after the source directory.
// Shared libraries are always on and the install layout is fixed. Package
// arguments come last so they can override the prefix; the intermediate
// passes of a multi-pass build rely on that.
func (c *CMake) ConfigureArgs() []string {
	o := &c.opts
	args := []string{
		"-G" + Generator,
		"-DBUILD_SHARED_LIBS=1",
		"-DCMAKE_INSTALL_LIBDIR=lib",
		"-DCMAKE_INSTALL_PREFIX=" + o.Prefix,
	}
	if o.GOOS == "darwin" {
		args = append(args, "-DCMAKE_INSTALL_NAME_DIR="+filepath.Join(o.Prefix, "lib"))
	}
	return append(args, o.Args...)
}

// Configure runs "cmake <source>" inside BuildDir.
func (c *CMake) Configure(ctx context.Context) error {
	o := &c.opts
	if err := os.MkdirAll(o.BuildDir, 0o755); err != nil {
		return err
	}
	args := append([]string{"cmake", o.SourceDir}, c.ConfigureArgs()...)
	return o.Runner.Run(ctx, o.Command(o.BuildDir, args...))
}

// Build runs "cmake --build .".
func (c *CMake) Build(ctx context.Context) error {
	o := &c.opts
	args := append([]string{"cmake", "--build", ".", "--verbose"}, buildsys.MakeArgs(o.Parallel)...)
	return o.Runner.Run(ctx, o.Command(o.BuildDir, args...))
}

// Install runs "cmake --install .".
func (c *CMake) Install(ctx context.Context) error {
	o := &c.opts
	return o.Runner.Run(ctx, o.Command(o.BuildDir, "cmake", "--install", "."))
}
