// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/goplus/cibuildpkg/internal/platform"
	"github.com/goplus/cibuildpkg/pkgs/buildsys"
	"github.com/goplus/cibuildpkg/pkgs/spec"
)

func TestX265Passes(t *testing.T) {
	base := spec.New("x265", "https://example.org/x265.tar.gz", "")
	base.Kind = spec.CMake
	base.SourceDir = "source"

	p12, p10, final, err := X265Passes(base, "/scratch", true)
	if err != nil {
		t.Fatal(err)
	}
	if p12.BuildDir != "x265-12bits" || p10.BuildDir != "x265-10bits" || final.BuildDir != "build" {
		t.Errorf("build dirs = %s %s %s", p12.BuildDir, p10.BuildDir, final.BuildDir)
	}
	want12 := []string{
		"-DHIGH_BIT_DEPTH=1", "-DMAIN12=1", "-DEXPORT_C_API=0", "-DENABLE_CLI=0",
		"-DENABLE_SHARED=0", "-DCMAKE_INSTALL_PREFIX=/scratch",
	}
	if !slices.Equal(p12.BuildArgs, want12) {
		t.Errorf("12-bit args = %q", p12.BuildArgs)
	}
	if slices.Contains(p10.BuildArgs, "-DMAIN12=1") || !slices.Contains(p10.BuildArgs, "-DHIGH_BIT_DEPTH=1") {
		t.Errorf("10-bit args = %q", p10.BuildArgs)
	}
	if !slices.Contains(final.BuildArgs, "-DEXTRA_LINK_FLAGS=-L../x265-10bits -L../x265-12bits") {
		t.Errorf("final args = %q", final.BuildArgs)
	}
	if len(base.BuildArgs) != 0 || base.BuildDir != "build" {
		t.Errorf("base modified: %+v", base)
	}

	p12, p10, _, _ = X265Passes(base, "/scratch", false)
	for _, p := range []spec.Spec{p12, p10} {
		if !slices.Contains(p.BuildArgs, "-DENABLE_ASSEMBLY=0") || !slices.Contains(p.BuildArgs, "-DENABLE_ALTIVEC=0") {
			t.Errorf("%s args on arm = %q", p.BuildDir, p.BuildArgs)
		}
	}
}

func TestX265PassesRejectsArgs(t *testing.T) {
	base := spec.New("x265", "https://example.org/x265.tar.gz", "")
	base.BuildArgs = []string{"-DFOO=1"}
	if _, _, _, err := X265Passes(base, "/scratch", true); err == nil {
		t.Fatal("X265Passes() accepted declared build arguments")
	}
}

func TestBuildMultiPass(t *testing.T) {
	for _, info := range []platform.Info{linux, {OS: "linux", Machine: "aarch64", Libc: platform.Glibc, PtrBits: 64}} {
		t.Run(info.Machine, func(t *testing.T) {
			e := newFixture(t, info)
			s := e.archive(t, "x265", spec.CMake, map[string]string{"source/CMakeLists.txt": ""})
			s.SourceDir = "source"
			tree := filepath.Join(e.builder.buildDir, "x265")
			prefix := e.builder.Prefix(false)
			var configures [][]string

			e.rec.Hook = func(c buildsys.Cmd) error {
				if c.Args[0] != "cmake" {
					return fmt.Errorf("unexpected tool %s", c.Args[0])
				}
				dir := filepath.Base(c.Dir)
				switch c.Args[1] {
				case "--build":
					if dir != "build" {
						return os.WriteFile(filepath.Join(c.Dir, "libx265.a"), nil, 0o644)
					}
				case "--install":
					if dir == "build" {
						lib := filepath.Join(prefix, "lib")
						os.MkdirAll(lib, 0o755)
						return os.WriteFile(filepath.Join(lib, "libx265.so"), nil, 0o755)
					}
				default:
					configures = append(configures, c.Args)
					if dir == "build" {
						for _, a := range []string{"x265-12bits/libx265-12bits.a", "x265-10bits/libx265-10bits.a"} {
							if _, err := os.Stat(filepath.Join(tree, a)); err != nil {
								return fmt.Errorf("final pass before static archives: %w", err)
							}
						}
					}
				}
				return nil
			}

			if err := e.builder.Build(context.Background(), s, false); err != nil {
				t.Fatalf("Build() = %v", err)
			}
			if n := len(e.rec.Cmds()); n != 9 {
				t.Errorf("ran %d commands, want 3 passes of 3", n)
			}
			if len(configures) != 3 {
				t.Fatalf("configured %d times", len(configures))
			}
			scratch := "-DCMAKE_INSTALL_PREFIX=" + filepath.Join(tree, "dummy_install_path")
			if !slices.Contains(configures[0], "-DMAIN12=1") || !slices.Contains(configures[0], scratch) {
				t.Errorf("pass 1 = %q", configures[0])
			}
			if slices.Contains(configures[2], scratch) {
				t.Errorf("final pass installs into scratch: %q", configures[2])
			}
			noAsm := slices.Contains(configures[0], "-DENABLE_ASSEMBLY=0")
			if noAsm == info.IsX86_64() {
				t.Errorf("ENABLE_ASSEMBLY=0 present = %v on %s", noAsm, info.Machine)
			}

			entries, err := os.ReadDir(filepath.Join(prefix, "lib"))
			if err != nil {
				t.Fatal(err)
			}
			var shared []string
			for _, ent := range entries {
				if strings.Contains(ent.Name(), ".so") {
					shared = append(shared, ent.Name())
				}
			}
			if !slices.Equal(shared, []string{"libx265.so"}) {
				t.Errorf("shared libraries = %q", shared)
			}
		})
	}
}

func TestBuildMultiPassMissingArchive(t *testing.T) {
	e := newFixture(t, linux)
	s := e.archive(t, "x265", spec.CMake, nil)
	err := e.builder.Build(context.Background(), s, false)
	if err == nil {
		t.Fatal("Build() succeeded without static archives")
	}
	if e.builder.Installed(s, false) {
		t.Error("marker written")
	}
	if n := len(e.rec.Cmds()); n != 6 {
		t.Errorf("ran %d commands, want the two static passes only", n)
	}
}
