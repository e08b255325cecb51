// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"

	"github.com/goplus/cibuildpkg/internal/platform"
	"github.com/goplus/cibuildpkg/pkgs/buildsys/buildsystest"
	"github.com/goplus/cibuildpkg/pkgs/spec"
)

var linux = platform.Info{OS: "linux", Machine: "x86_64", Libc: platform.Glibc, PtrBits: 64}

type fixture struct {
	root    string
	builder *Builder
	rec     *buildsystest.Recorder
	out     *bytes.Buffer
	fetched []string // urls passed to Download
}

func newFixture(t *testing.T, info platform.Info) *fixture {
	t.Helper()
	e := &fixture{root: t.TempDir(), rec: &buildsystest.Recorder{}, out: &bytes.Buffer{}}
	b, err := NewBuilder(Options{
		Dest:      filepath.Join(e.root, "dest"),
		BuildDir:  filepath.Join(e.root, "build"),
		SourceDir: filepath.Join(e.root, "source"),
		PatchDir:  filepath.Join(e.root, "patches"),
		Platform:  info,
		Environ:   []string{"PATH=/usr/bin", "HOME=/home/ci"},
		Runner:    e.rec,
		Download: func(ctx context.Context, url, dest string) error {
			e.fetched = append(e.fetched, url)
			return os.WriteFile(dest, []byte("#!/bin/sh\necho upstream\n"), 0o644)
		},
		Logger: log.New(io.Discard),
		Out:    e.out,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.CreateDirectories(); err != nil {
		t.Fatal(err)
	}
	e.builder = b
	return e
}

// archive writes <name>-1.0.tar.gz with a single root into the source
// cache and returns a spec for it whose digest matches.
func (e *fixture) archive(t *testing.T, name string, kind spec.BuildKind, files map[string]string) spec.Spec {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	root := name + "-1.0/"
	if files == nil {
		files = map[string]string{"README": name}
	}
	for p, body := range files {
		hdr := &tar.Header{Name: root + p, Mode: 0o755, Size: int64(len(body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		io.WriteString(tw, body)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	file := name + "-1.0.tar.gz"
	if err := os.WriteFile(filepath.Join(e.builder.sourceDir, file), buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(buf.Bytes())
	s := spec.New(name, "https://example.org/"+file, hex.EncodeToString(sum[:]))
	s.Kind = kind
	return s
}

// tree lists every path below dir.
func tree(t *testing.T, dir string) []string {
	t.Helper()
	var paths []string
	filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, p)
		paths = append(paths, rel)
		return nil
	})
	return paths
}

// pkgOf returns the package a recorded command belongs to, assuming it
// runs somewhere below <build>/<name>/.
func (e *fixture) pkgOf(dir string) string {
	rel, err := filepath.Rel(e.builder.buildDir, dir)
	if err != nil {
		return ""
	}
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return first
}
