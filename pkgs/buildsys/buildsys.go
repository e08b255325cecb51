// Package buildsys defines the contract shared by the build system adapters
// (autotools, CMake, Meson, plain make) and the process runner they use.
package buildsys

import (
	"context"
)

// BuildSystem captures the configure/compile/install lifecycle every
// adapter implements.
type BuildSystem interface {
	// Configure generates the build tree. Package arguments are forwarded
	// verbatim.
	Configure(ctx context.Context) error
	// Build compiles, honoring the parallelism allowed for the package.
	Build(ctx context.Context) error
	// Install copies the artifacts into the install prefix.
	Install(ctx context.Context) error
}

// Options holds what an adapter needs to build one package.
type Options struct {
	// SourceDir is the build root inside the extracted tree.
	SourceDir string
	// BuildDir is where out-of-tree artifacts go. It may equal SourceDir.
	BuildDir string
	// Prefix is the install prefix, either the target or the builder tree.
	Prefix string
	// Args are the package specific arguments.
	Args []string
	// Parallel enables parallel compilation.
	Parallel bool
	// Env is the complete environment of every spawned command.
	Env []string
	// Runner runs the commands. It must not be nil.
	Runner Runner
	// Mangle converts host paths into the form the toolchain expects.
	// Nil means identity.
	Mangle func(string) string
	// GOOS is the host operating system, used for platform quirks.
	GOOS string
}

// MangledPath applies o.Mangle to path.
func (o *Options) MangledPath(path string) string {
	if o.Mangle == nil {
		return path
	}
	return o.Mangle(path)
}

// Command returns a Cmd running args in dir with the options environment.
func (o *Options) Command(dir string, args ...string) Cmd {
	return Cmd{Dir: dir, Args: args, Env: o.Env}
}

// Run performs configure, build and install in order, stopping at the
// first failure.
func Run(ctx context.Context, bs BuildSystem) error {
	if err := bs.Configure(ctx); err != nil {
		return &StepError{Step: "configure", Err: err}
	}
	if err := bs.Build(ctx); err != nil {
		return &StepError{Step: "build", Err: err}
	}
	if err := bs.Install(ctx); err != nil {
		return &StepError{Step: "install", Err: err}
	}
	return nil
}

// MakeArgs returns the GNU make style arguments for the given parallelism.
func MakeArgs(parallel bool) []string {
	if parallel {
		return []string{"-j"}
	}
	return nil
}
