// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"os"
	"path/filepath"

	"github.com/goplus/cibuildpkg/internal/atomicfile"
)

// Prefix layout:
//
//	<prefix>/
//	  bin/ include/ lib/ ...          # installed files
//	  var/lib/cibuildpkg/<name>       # installed marker, content "installed\n"
//
// A marker is created once, after a successful install, and never updated
// or removed.
const markerContent = "installed\n"

func markerDir(prefix string) string {
	return filepath.Join(prefix, "var", "lib", "cibuildpkg")
}

func markerPath(prefix, name string) string {
	return filepath.Join(markerDir(prefix), name)
}

func writeMarker(prefix, name string) error {
	if err := os.MkdirAll(markerDir(prefix), 0o755); err != nil {
		return err
	}
	return atomicfile.WriteFile(markerPath(prefix, name), []byte(markerContent), 0o644)
}
