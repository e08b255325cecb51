// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/goplus/cibuildpkg/pkgs/buildsys"
	"github.com/goplus/cibuildpkg/pkgs/buildsys/cmake"
	"github.com/goplus/cibuildpkg/pkgs/spec"
)

// MultiPassPackage is built three times: 12-bit and 10-bit static
// libraries first, then the 8-bit shared library that links both.
const MultiPassPackage = "x265"

// X265Passes derives the three cmake passes from base. The first two
// install into scratch so that only the final shared library reaches the
// real prefix. Without x86_64 there is no high bit depth assembly.
func X265Passes(base spec.Spec, scratch string, x86_64 bool) (p12, p10, final spec.Spec, err error) {
	if len(base.BuildArgs) != 0 {
		return p12, p10, final, errors.New("x265: build arguments are derived, the package must not declare any")
	}
	var highBits []string
	if !x86_64 {
		highBits = []string{"-DENABLE_ASSEMBLY=0", "-DENABLE_ALTIVEC=0"}
	}
	static := func(extra ...string) []string {
		args := append([]string{"-DHIGH_BIT_DEPTH=1"}, extra...)
		args = append(args,
			"-DEXPORT_C_API=0",
			"-DENABLE_CLI=0",
			"-DENABLE_SHARED=0",
			"-DCMAKE_INSTALL_PREFIX="+scratch,
		)
		return append(args, highBits...)
	}
	p12 = base.With(spec.WithBuildDir("x265-12bits"), spec.WithBuildArgs(static("-DMAIN12=1")...))
	p10 = base.With(spec.WithBuildDir("x265-10bits"), spec.WithBuildArgs(static()...))
	final = base.With(spec.WithBuildArgs(
		"-DEXTRA_LIB=x265-10bits.a;x265-12bits.a",
		"-DLINKED_10BIT=1",
		"-DLINKED_12BIT=1",
		"-DEXTRA_LINK_FLAGS=-L../x265-10bits -L../x265-12bits",
	))
	return p12, p10, final, nil
}

func (b *Builder) buildMultiPass(ctx context.Context, s spec.Spec, tree, prefix string, environ []string) error {
	p12, p10, final, err := X265Passes(s, filepath.Join(tree, "dummy_install_path"), b.platform.IsX86_64())
	if err != nil {
		return err
	}
	for _, p := range []spec.Spec{p12, p10} {
		if err := buildsys.Run(ctx, cmake.New(b.adapterOptions(p, tree, prefix, environ))); err != nil {
			return err
		}
	}
	for _, r := range []struct{ dir, name string }{
		{p12.BuildDir, "libx265-12bits.a"},
		{p10.BuildDir, "libx265-10bits.a"},
	} {
		dir := filepath.Join(tree, r.dir)
		if err := os.Rename(filepath.Join(dir, "libx265.a"), filepath.Join(dir, r.name)); err != nil {
			return &buildsys.StepError{Step: "build", Err: err}
		}
	}
	return buildsys.Run(ctx, cmake.New(b.adapterOptions(final, tree, prefix, environ)))
}
