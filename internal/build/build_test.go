// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/goplus/cibuildpkg/internal/env"
	"github.com/goplus/cibuildpkg/internal/fetch"
	"github.com/goplus/cibuildpkg/internal/platform"
	"github.com/goplus/cibuildpkg/pkgs/buildsys"
	"github.com/goplus/cibuildpkg/pkgs/spec"
)

func TestPrefix(t *testing.T) {
	e := newFixture(t, linux)
	dest := filepath.Join(e.root, "dest")
	if got := e.builder.Prefix(false); got != dest {
		t.Errorf("Prefix(false) = %s", got)
	}
	if got := e.builder.Prefix(true); got != dest+".builder" {
		t.Errorf("Prefix(true) = %s", got)
	}
}

func TestNewBuilderRequiresDest(t *testing.T) {
	if _, err := NewBuilder(Options{Platform: linux}); err == nil {
		t.Fatal("NewBuilder() accepted an empty destination")
	}
}

func TestBuildIdempotent(t *testing.T) {
	e := newFixture(t, linux)
	s := e.archive(t, "foo", spec.CMake, nil)
	ctx := context.Background()

	if err := e.builder.Build(ctx, s, false); err != nil {
		t.Fatalf("Build() = %v", err)
	}
	marker := filepath.Join(e.builder.Prefix(false), "var", "lib", "cibuildpkg", "foo")
	data, err := os.ReadFile(marker)
	if err != nil || string(data) != "installed\n" {
		t.Fatalf("marker = %q, %v", data, err)
	}
	if !e.builder.Installed(s, false) {
		t.Error("Installed() = false after Build")
	}

	before := tree(t, e.builder.Prefix(false))
	e.rec.Reset()
	e.out.Reset()
	if err := e.builder.Build(ctx, s, false); err != nil {
		t.Fatalf("second Build() = %v", err)
	}
	if n := len(e.rec.Cmds()); n != 0 {
		t.Errorf("second Build() ran %d commands", n)
	}
	if e.out.Len() != 0 {
		t.Errorf("second Build() opened a log group: %q", e.out.String())
	}
	if after := tree(t, e.builder.Prefix(false)); !slices.Equal(before, after) {
		t.Errorf("prefix changed: %v -> %v", before, after)
	}
}

func TestBuildIntegrity(t *testing.T) {
	e := newFixture(t, linux)
	s := e.archive(t, "foo", spec.CMake, nil)
	archive := filepath.Join(e.builder.sourceDir, s.ArchiveName())
	data, _ := os.ReadFile(archive)
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(archive, data, 0o644); err != nil {
		t.Fatal(err)
	}

	err := e.builder.Build(context.Background(), s, false)
	var pe *PackageError
	if !errors.As(err, &pe) || pe.Op != "fetch" || pe.Name != "foo" {
		t.Fatalf("Build() = %v, want fetch PackageError", err)
	}
	var ie *fetch.IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("Build() = %v, want IntegrityError", err)
	}
	if n := len(e.rec.Cmds()); n != 0 {
		t.Errorf("%d build commands ran after a digest mismatch", n)
	}
	if e.builder.Installed(s, false) {
		t.Error("marker written for a failed package")
	}
	if !strings.Contains(e.out.String(), "failed") {
		t.Errorf("log group does not report the failure: %q", e.out.String())
	}
}

func TestBuildDispatch(t *testing.T) {
	tests := []struct {
		kind  spec.BuildKind
		tools []string
	}{
		{spec.Autoconf, []string{"sh", "make", "make"}},
		{spec.CMake, []string{"cmake", "cmake", "cmake"}},
		{spec.Meson, []string{"meson", "ninja", "ninja"}},
		{spec.Make, []string{"make", "make"}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			e := newFixture(t, linux)
			s := e.archive(t, "pkg", tt.kind, nil)
			if err := e.builder.Build(context.Background(), s, false); err != nil {
				t.Fatalf("Build() = %v", err)
			}
			if got := e.rec.Tools(); !slices.Equal(got, tt.tools) {
				t.Errorf("tools = %q, want %q", got, tt.tools)
			}
		})
	}
}

func TestBuildUnknownKind(t *testing.T) {
	e := newFixture(t, linux)
	s := e.archive(t, "pkg", spec.BuildKind(42), nil)
	err := e.builder.Build(context.Background(), s, false)
	var pe *PackageError
	if !errors.As(err, &pe) || pe.Op != "build" {
		t.Fatalf("Build() = %v", err)
	}
	if n := len(e.rec.Cmds()); n != 0 {
		t.Errorf("ran %d commands for an unknown kind", n)
	}
}

func TestBuildForBuilder(t *testing.T) {
	e := newFixture(t, linux)
	s := e.archive(t, "nasm", spec.Autoconf, nil)
	if err := e.builder.Build(context.Background(), s, true); err != nil {
		t.Fatalf("Build() = %v", err)
	}
	if !e.builder.Installed(s, true) {
		t.Error("not installed in the builder prefix")
	}
	if e.builder.Installed(s, false) {
		t.Error("marked installed in the target prefix")
	}
	configure := e.rec.Cmds()[0]
	want := "--prefix=" + e.builder.Prefix(true)
	if !slices.Contains(configure.Args, want) {
		t.Errorf("configure args %q lack %s", configure.Args, want)
	}
}

func TestBuildEnvironment(t *testing.T) {
	e := newFixture(t, linux)
	s := e.archive(t, "foo", spec.CMake, nil)
	s.Env = []spec.EnvVar{{Name: "LDFLAGS", Value: "-Lextra"}}
	if err := e.builder.Build(context.Background(), s, false); err != nil {
		t.Fatal(err)
	}
	prefix := e.builder.Prefix(false)
	cmdEnv := e.rec.Cmds()[0].Env
	check := func(name, want string) {
		t.Helper()
		if got, _ := env.Lookup(cmdEnv, name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	check("CPPFLAGS", "-I"+filepath.Join(prefix, "include"))
	check("LDFLAGS", "-Lextra -L"+filepath.Join(prefix, "lib"))
	check("PKG_CONFIG_PATH", filepath.Join(prefix, "lib", "pkgconfig"))
	check("PATH", filepath.Join(e.builder.Prefix(true), "bin")+string(os.PathListSeparator)+"/usr/bin")
	check("HOME", "/home/ci")
}

func TestBuildRefreshesConfigScripts(t *testing.T) {
	e := newFixture(t, linux)
	s := e.archive(t, "gmp", spec.Autoconf, map[string]string{
		"configure":             "#!/bin/sh\n",
		"config.guess":          "old",
		"build-aux/config.sub":  "old",
		"build-aux/config.sub2": "keep",
		"other/config.sub":      "old",
	})
	if err := e.builder.Build(context.Background(), s, false); err != nil {
		t.Fatal(err)
	}
	tree := filepath.Join(e.builder.buildDir, "gmp")
	for _, p := range []string{"config.guess", "build-aux/config.sub", "other/config.sub"} {
		data, err := os.ReadFile(filepath.Join(tree, p))
		if err != nil || !strings.Contains(string(data), "upstream") {
			t.Errorf("%s = %q, %v", p, data, err)
		}
	}
	if data, _ := os.ReadFile(filepath.Join(tree, "build-aux/config.sub2")); string(data) != "keep" {
		t.Errorf("config.sub2 touched: %q", data)
	}
	// each script is downloaded once and then served from the cache
	if len(e.fetched) != 2 {
		t.Errorf("downloads = %q", e.fetched)
	}
}

func TestBuildAppliesPatch(t *testing.T) {
	e := newFixture(t, linux)
	s := e.archive(t, "foo", spec.Make, nil)
	patches := filepath.Join(e.root, "patches")
	if err := os.MkdirAll(patches, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(patches, "foo.patch"), []byte("diff\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := e.builder.Build(context.Background(), s, false); err != nil {
		t.Fatal(err)
	}
	if got := e.rec.Tools(); !slices.Equal(got, []string{"patch", "make", "make"}) {
		t.Errorf("tools = %q", got)
	}
}

func TestBuildFailureLeavesNoMarker(t *testing.T) {
	e := newFixture(t, linux)
	s := e.archive(t, "foo", spec.CMake, nil)
	e.rec.Hook = func(c buildsys.Cmd) error {
		if slices.Contains(c.Args, "--install") {
			return &buildsys.BuildToolError{Args: c.Args, Dir: c.Dir, ExitCode: 2, Stderr: "permission denied"}
		}
		return nil
	}
	err := e.builder.Build(context.Background(), s, false)
	var pe *PackageError
	if !errors.As(err, &pe) || pe.Op != "install" {
		t.Fatalf("Build() = %v, want install PackageError", err)
	}
	if !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("stderr missing from %q", err)
	}
	if e.builder.Installed(s, false) {
		t.Error("marker written after a failed install")
	}

	e.rec.Hook = nil
	e.rec.Reset()
	if err := e.builder.Build(context.Background(), s, false); err != nil {
		t.Fatalf("rerun Build() = %v", err)
	}
	if n := len(e.rec.Cmds()); n != 3 {
		t.Errorf("rerun ran %d commands, want a full rebuild", n)
	}
}

func TestBuildAllOrder(t *testing.T) {
	// b's configure needs a.h, which only a's install provides.
	setup := func(t *testing.T) (*fixture, spec.Spec, spec.Spec) {
		e := newFixture(t, linux)
		a := e.archive(t, "a", spec.CMake, nil)
		b := e.archive(t, "b", spec.CMake, nil)
		header := filepath.Join(e.builder.Prefix(false), "include", "a.h")
		e.rec.Hook = func(c buildsys.Cmd) error {
			switch {
			case e.pkgOf(c.Dir) == "a" && slices.Contains(c.Args, "--install"):
				os.MkdirAll(filepath.Dir(header), 0o755)
				return os.WriteFile(header, nil, 0o644)
			case e.pkgOf(c.Dir) == "b" && c.Args[0] == "cmake" && c.Args[1] != "--build" && c.Args[1] != "--install":
				if _, err := os.Stat(header); err != nil {
					return &buildsys.BuildToolError{Args: c.Args, Dir: c.Dir, ExitCode: 1, Stderr: "a.h: No such file or directory"}
				}
			}
			return nil
		}
		return e, a, b
	}
	ctx := context.Background()

	t.Run("ordered", func(t *testing.T) {
		e, a, b := setup(t)
		b.Requires = []string{"a"}
		if err := e.builder.BuildAll(ctx, nil, []spec.Spec{a, b}); err != nil {
			t.Fatalf("BuildAll() = %v", err)
		}
	})
	t.Run("declared", func(t *testing.T) {
		e, a, b := setup(t)
		b.Requires = []string{"a"}
		err := e.builder.BuildAll(ctx, nil, []spec.Spec{b, a})
		var oe *spec.OrderError
		if !errors.As(err, &oe) || oe.Package != "b" || oe.Dependency != "a" {
			t.Fatalf("BuildAll() = %v, want OrderError", err)
		}
		if n := len(e.rec.Cmds()); n != 0 {
			t.Errorf("ran %d commands before rejecting the order", n)
		}
	})
	t.Run("undeclared", func(t *testing.T) {
		e, a, b := setup(t)
		err := e.builder.BuildAll(ctx, nil, []spec.Spec{b, a})
		var pe *PackageError
		if !errors.As(err, &pe) || pe.Name != "b" || pe.Op != "configure" {
			t.Fatalf("BuildAll() = %v, want configure failure of b", err)
		}
		var te *buildsys.BuildToolError
		if !errors.As(err, &te) || !strings.Contains(te.Stderr, "a.h") {
			t.Fatalf("BuildAll() = %v, want BuildToolError", err)
		}
		if e.builder.Installed(a, false) {
			t.Error("a built after b failed")
		}
	})
}

func TestBuildAllToolsFirst(t *testing.T) {
	e := newFixture(t, linux)
	tool := e.archive(t, "nasm", spec.Autoconf, map[string]string{"configure": ""})
	lib := e.archive(t, "x264", spec.Autoconf, map[string]string{"configure": ""})
	var logs bytes.Buffer
	e.builder.logger = log.New(&logs)
	if err := e.builder.BuildAll(context.Background(), []spec.Spec{tool}, []spec.Spec{lib}); err != nil {
		t.Fatal(err)
	}
	if !e.builder.Installed(tool, true) || !e.builder.Installed(lib, false) {
		t.Error("markers missing")
	}
	first := e.rec.Cmds()[0]
	if e.pkgOf(first.Dir) != "nasm" {
		t.Errorf("first command for %s, want nasm", e.pkgOf(first.Dir))
	}
	if !strings.Contains(logs.String(), "tools=nasm packages=x264") {
		t.Errorf("build order not logged: %q", logs.String())
	}
}

func TestLogGroup(t *testing.T) {
	e := newFixture(t, linux)
	s := e.archive(t, "foo", spec.Meson, nil)
	if err := e.builder.Build(context.Background(), s, false); err != nil {
		t.Fatal(err)
	}
	out := e.out.String()
	if !strings.HasPrefix(out, "::group::build foo\n") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "::endgroup::\n") || !strings.Contains(out, "ok") {
		t.Errorf("output = %q", out)
	}
}

func TestCreateDirectories(t *testing.T) {
	e := newFixture(t, platform.Info{OS: "darwin", Machine: "arm64"})
	stale := filepath.Join(e.builder.buildDir, "old")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatal(err)
	}
	cached := filepath.Join(e.builder.sourceDir, "keep.tar.gz")
	if err := os.WriteFile(cached, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := e.builder.CreateDirectories(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("build dir not cleaned")
	}
	if _, err := os.Stat(cached); err != nil {
		t.Error("source cache cleaned")
	}
}
