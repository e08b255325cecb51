// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"bytes"
	"os"
)

var (
	unquotedPkgVersion = []byte("test_cmd $pkg_config --exists --print-errors $pkg_version || return")
	quotedPkgVersion   = []byte(`test_cmd $pkg_config --exists --print-errors "$pkg_version" || return`)
)

// quotePkgVersion quotes $pkg_version in test_pkg_config of the ffmpeg
// configure script. Unquoted, a version constraint such as "x264 >= 0.1"
// is split by the MSYS shell and pkg-config fails.
func quotePkgVersion(configure string) error {
	data, err := os.ReadFile(configure)
	if err != nil {
		return err
	}
	fixed := bytes.ReplaceAll(data, unquotedPkgVersion, quotedPkgVersion)
	if bytes.Equal(fixed, data) {
		return nil
	}
	return os.WriteFile(configure, fixed, 0o755)
}
