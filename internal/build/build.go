// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package build drives packages through extract, configure, build and
// install into the target or the builder prefix.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/goplus/cibuildpkg/internal/env"
	"github.com/goplus/cibuildpkg/internal/extract"
	"github.com/goplus/cibuildpkg/internal/fetch"
	"github.com/goplus/cibuildpkg/internal/platform"
	"github.com/goplus/cibuildpkg/pkgs/buildsys"
	"github.com/goplus/cibuildpkg/pkgs/buildsys/autotools"
	"github.com/goplus/cibuildpkg/pkgs/buildsys/cmake"
	"github.com/goplus/cibuildpkg/pkgs/buildsys/makefile"
	"github.com/goplus/cibuildpkg/pkgs/buildsys/meson"
	"github.com/goplus/cibuildpkg/pkgs/spec"
)

// BuilderSuffix is appended to the destination to form the prefix that
// receives build-time tools.
const BuilderSuffix = ".builder"

// Verifier checks a cached source archive before it is extracted.
type Verifier interface {
	Verify(s spec.Spec) error
}

// PackageError reports the package and the operation that failed.
type PackageError struct {
	Name string
	Op   string // fetch, extract, configure, build, install or marker
	Err  error
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("package %s: %s failed: %v", e.Name, e.Op, e.Err)
}

func (e *PackageError) Unwrap() error { return e.Err }

// Options configures a Builder.
type Options struct {
	Dest      string // target prefix
	BuildDir  string
	SourceDir string
	PatchDir  string

	Platform platform.Info
	// ArchFlags are the macOS architecture flags. Taken from ARCHFLAGS in
	// Environ when empty.
	ArchFlags string
	// Environ is the environment every command starts from. os.Environ()
	// when nil.
	Environ []string

	// Runner runs the build tools. An ExecRunner when nil.
	Runner buildsys.Runner
	// Verifier defaults to a fetch.Fetcher on SourceDir.
	Verifier Verifier
	// Download fetches the canonical config.guess and config.sub. Defaults
	// to a fetch.Fetcher.
	Download autotools.FetchFunc

	Logger *log.Logger
	// Out receives the log group markers. os.Stdout when nil.
	Out io.Writer
}

// Builder builds packages one at a time, in the order they are given.
type Builder struct {
	dest      string
	buildDir  string
	sourceDir string
	platform  platform.Info
	archFlags string
	environ   []string

	runner    buildsys.Runner
	verifier  Verifier
	download  autotools.FetchFunc
	extractor *extract.Extractor
	logger    *log.Logger
	out       io.Writer
}

// NewBuilder returns a Builder for opts. Directories are made absolute.
func NewBuilder(opts Options) (*Builder, error) {
	if opts.Dest == "" {
		return nil, errors.New("build: empty destination")
	}
	b := &Builder{
		platform:  opts.Platform,
		archFlags: opts.ArchFlags,
		environ:   opts.Environ,
		runner:    opts.Runner,
		verifier:  opts.Verifier,
		download:  opts.Download,
		logger:    opts.Logger,
		out:       opts.Out,
	}
	var patchDir string
	for _, d := range []struct {
		dst *string
		src string
	}{
		{&b.dest, opts.Dest},
		{&b.buildDir, opts.BuildDir},
		{&b.sourceDir, opts.SourceDir},
		{&patchDir, opts.PatchDir},
	} {
		if d.src == "" {
			continue
		}
		abs, err := filepath.Abs(d.src)
		if err != nil {
			return nil, err
		}
		*d.dst = abs
	}
	if b.environ == nil {
		b.environ = os.Environ()
	}
	if b.archFlags == "" {
		b.archFlags, _ = env.Lookup(b.environ, "ARCHFLAGS")
	}
	if b.platform.OS == "" {
		info, err := platform.Detect()
		if err != nil {
			return nil, err
		}
		b.platform = info
	}
	if b.runner == nil {
		b.runner = &buildsys.ExecRunner{}
	}
	if b.logger == nil {
		b.logger = log.Default()
	}
	if b.out == nil {
		b.out = os.Stdout
	}
	if b.verifier == nil || b.download == nil {
		f := fetch.New(fetch.Options{SourceDir: b.sourceDir, Logger: b.logger})
		if b.verifier == nil {
			b.verifier = f
		}
		if b.download == nil {
			b.download = f.Download
		}
	}
	b.extractor = extract.New(extract.Options{
		SourceDir: b.sourceDir,
		BuildDir:  b.buildDir,
		PatchDir:  patchDir,
		Runner:    b.runner,
		Logger:    b.logger,
	})
	return b, nil
}

// Prefix returns the install prefix for target packages, or for tools
// when forBuilder is set.
func (b *Builder) Prefix(forBuilder bool) string {
	if forBuilder {
		return b.dest + BuilderSuffix
	}
	return b.dest
}

// Installed reports whether s already has a marker in the chosen prefix.
func (b *Builder) Installed(s spec.Spec, forBuilder bool) bool {
	_, err := os.Stat(markerPath(b.Prefix(forBuilder), s.Name))
	return err == nil
}

// CreateDirectories starts a fresh build tree and makes sure the source
// cache exists. Prefixes and the cache are kept.
func (b *Builder) CreateDirectories() error {
	if b.platform.OS == "darwin" {
		for _, name := range []string{"ARCHFLAGS", "MACOSX_DEPLOYMENT_TARGET"} {
			v, _ := env.Lookup(b.environ, name)
			b.logger.Info("environment", "name", name, "value", v)
		}
	}
	if err := os.RemoveAll(b.buildDir); err != nil {
		return err
	}
	for _, d := range []string{b.buildDir, b.sourceDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// BuildAll checks the order of tools followed by packages, then builds the
// tools into the builder prefix and the packages into the target prefix.
// It stops at the first failure.
func (b *Builder) BuildAll(ctx context.Context, tools, pkgs []spec.Spec) error {
	if err := spec.CheckOrder(tools, pkgs); err != nil {
		return err
	}
	b.logger.Info("build order", "tools", spec.Names(tools, " "), "packages", spec.Names(pkgs, " "))
	for _, t := range tools {
		if err := b.Build(ctx, t, true); err != nil {
			return err
		}
	}
	for _, p := range pkgs {
		if err := b.Build(ctx, p, false); err != nil {
			return err
		}
	}
	return nil
}

// Build installs s unless its marker already exists. The marker is written
// only after the install step succeeded, so a failed package is retried
// from scratch by the next run.
func (b *Builder) Build(ctx context.Context, s spec.Spec, forBuilder bool) error {
	if b.Installed(s, forBuilder) {
		b.logger.Debug("already installed", "package", s.Name, "builder", forBuilder)
		return nil
	}
	return b.group("build "+s.Name, func() error {
		return b.build(ctx, s, forBuilder)
	})
}

func (b *Builder) build(ctx context.Context, s spec.Spec, forBuilder bool) error {
	if err := b.verifier.Verify(s); err != nil {
		return &PackageError{Name: s.Name, Op: "fetch", Err: err}
	}
	tree, err := b.extractor.Extract(ctx, s)
	if err != nil {
		return &PackageError{Name: s.Name, Op: "extract", Err: err}
	}
	if s.Kind == spec.Autoconf {
		if err := autotools.RefreshConfigScripts(ctx, tree, b.sourceDir, b.download); err != nil {
			return &PackageError{Name: s.Name, Op: "extract", Err: err}
		}
	}
	if s.Name == "ffmpeg" && b.platform.OS == "windows" {
		if err := quotePkgVersion(filepath.Join(tree, s.SourceDir, "configure")); err != nil {
			return &PackageError{Name: s.Name, Op: "extract", Err: err}
		}
	}

	prefix := b.Prefix(forBuilder)
	environ := b.environment(s, forBuilder)
	if s.Name == MultiPassPackage {
		err = b.buildMultiPass(ctx, s, tree, prefix, environ)
	} else {
		err = b.buildSingle(ctx, s, tree, prefix, environ)
	}
	if err != nil {
		var se *buildsys.StepError
		if errors.As(err, &se) {
			return &PackageError{Name: s.Name, Op: se.Step, Err: se.Err}
		}
		return &PackageError{Name: s.Name, Op: "build", Err: err}
	}

	if err := writeMarker(prefix, s.Name); err != nil {
		return &PackageError{Name: s.Name, Op: "marker", Err: err}
	}
	b.logger.Info("installed", "package", s.Name, "prefix", prefix)
	return nil
}

func (b *Builder) buildSingle(ctx context.Context, s spec.Spec, tree, prefix string, environ []string) error {
	bs, err := newBuildSystem(s.Kind, b.adapterOptions(s, tree, prefix, environ))
	if err != nil {
		return err
	}
	return buildsys.Run(ctx, bs)
}

// newBuildSystem selects exactly one adapter per kind.
func newBuildSystem(kind spec.BuildKind, opts buildsys.Options) (buildsys.BuildSystem, error) {
	switch kind {
	case spec.Autoconf:
		return autotools.New(opts), nil
	case spec.CMake:
		return cmake.New(opts), nil
	case spec.Meson:
		return meson.New(opts), nil
	case spec.Make:
		return makefile.New(opts), nil
	}
	return nil, fmt.Errorf("unknown build kind %d", int(kind))
}

func (b *Builder) adapterOptions(s spec.Spec, tree, prefix string, environ []string) buildsys.Options {
	goos := b.platform.OS
	return buildsys.Options{
		SourceDir: filepath.Join(tree, s.SourceDir),
		BuildDir:  filepath.Join(tree, s.BuildDir),
		Prefix:    prefix,
		Args:      s.BuildArgs,
		Parallel:  s.Parallel,
		Env:       environ,
		Runner:    b.runner,
		Mangle:    func(p string) string { return env.Mangle(goos, p) },
		GOOS:      goos,
	}
}

// environment returns the complete environment for building s: flags
// pointing at the prefix, the package's own additions and the builder
// tools on PATH.
func (b *Builder) environment(s spec.Spec, forBuilder bool) []string {
	o := env.ForPrefix(b.Prefix(forBuilder), env.Options{
		GOOS:       b.platform.OS,
		ForBuilder: forBuilder,
		ArchFlags:  b.archFlags,
	})
	for _, v := range s.Env {
		sep := v.Separator
		if sep == "" {
			sep = " "
		}
		o = o.With(v.Name, v.Value, sep)
	}
	o = o.WithToolPath(filepath.Join(b.Prefix(true), "bin"))
	return o.Apply(b.environ)
}
