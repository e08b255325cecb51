// Package autotools drives the classic configure/make/make-install workflow.
package autotools

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/goplus/cibuildpkg/pkgs/buildsys"
)

// AutoTools drives Autotools-style builds.
type AutoTools struct {
	opts buildsys.Options
}

var _ buildsys.BuildSystem = (*AutoTools)(nil)

// New returns a ready-to-use AutoTools.
func New(opts buildsys.Options) *AutoTools {
	return &AutoTools{opts: opts}
}

// ConfigureArgs returns the arguments passed to the configure script,
// standard flags first, package flags last.
func (a *AutoTools) ConfigureArgs() []string {
	o := &a.opts
	args := []string{
		"--disable-static",
		"--enable-shared",
		"--libdir=" + o.MangledPath(filepath.Join(o.Prefix, "lib")),
		"--prefix=" + o.MangledPath(o.Prefix),
	}
	return append(args, o.Args...)
}

// Configure runs <SourceDir>/configure through sh inside BuildDir.
func (a *AutoTools) Configure(ctx context.Context) error {
	o := &a.opts
	if err := os.MkdirAll(o.BuildDir, 0o755); err != nil {
		return err
	}
	script := o.MangledPath(filepath.Join(o.SourceDir, "configure"))
	args := append([]string{"sh", script}, a.ConfigureArgs()...)
	return o.Runner.Run(ctx, o.Command(o.BuildDir, args...))
}

// Build runs "make" with verbose output.
func (a *AutoTools) Build(ctx context.Context) error {
	o := &a.opts
	args := append([]string{"make"}, buildsys.MakeArgs(o.Parallel)...)
	args = append(args, "V=1")
	return o.Runner.Run(ctx, o.Command(o.BuildDir, args...))
}

// Install runs "make install".
func (a *AutoTools) Install(ctx context.Context) error {
	o := &a.opts
	return o.Runner.Run(ctx, o.Command(o.BuildDir, "make", "install"))
}

// ConfigScripts are the portability helpers that old archives bundle in
// versions too old to recognize current host triples.
var ConfigScripts = []string{"config.guess", "config.sub"}

// ConfigScriptURL is where up to date helpers are downloaded from.
const ConfigScriptURL = "https://raw.githubusercontent.com/gcc-mirror/gcc/refs/heads/master/"

// FetchFunc downloads url to dest.
type FetchFunc func(ctx context.Context, url, dest string) error

// RefreshConfigScripts replaces every config.guess and config.sub below
// root with the upstream copy. Upstream copies are downloaded once into
// cacheDir and reused by later packages.
func RefreshConfigScripts(ctx context.Context, root, cacheDir string, fetch FetchFunc) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !slices.Contains(ConfigScripts, d.Name()) {
			return nil
		}
		cached := filepath.Join(cacheDir, d.Name())
		if _, err := os.Stat(cached); os.IsNotExist(err) {
			if err := fetch(ctx, ConfigScriptURL+d.Name(), cached); err != nil {
				return err
			}
		}
		data, err := os.ReadFile(cached)
		if err != nil {
			return err
		}
		// replace rather than rewrite, so a symlinked helper is never
		// written through
		if err := os.Remove(path); err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o755); err != nil {
			return err
		}
		return os.Chmod(path, 0o755)
	})
}
