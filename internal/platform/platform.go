// Package platform computes the platform tag used to name build outputs,
// e.g. manylinux_x86_64 or macosx_arm64.
package platform

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
)

// Libc flavours on linux.
const (
	Glibc = "glibc"
	Musl  = "musl"
)

// Info describes the host platform.
type Info struct {
	OS      string // runtime.GOOS
	Machine string // uname machine, e.g. x86_64, aarch64, arm64
	Libc    string // Glibc or Musl on linux, empty elsewhere
	PtrBits int    // 32 or 64
}

// Detect inspects the running host.
func Detect() (Info, error) {
	m, err := machine()
	if err != nil {
		return Info{}, fmt.Errorf("detect machine: %w", err)
	}
	info := Info{
		OS:      runtime.GOOS,
		Machine: m,
		PtrBits: strconv.IntSize,
	}
	if info.OS == "linux" {
		info.Libc = detectLibc("/")
	}
	return info, nil
}

// Tag returns the platform tag of info.
func (info Info) Tag() (string, error) {
	switch info.OS {
	case "linux":
		if info.Libc == Musl {
			return "musllinux_" + info.Machine, nil
		}
		return "manylinux_" + info.Machine, nil
	case "darwin":
		return "macosx_" + info.Machine, nil
	case "windows":
		if info.PtrBits == 64 {
			return "win_amd64", nil
		}
		return "win32", nil
	}
	return "", fmt.Errorf("unsupported system %s", info.OS)
}

// IsX86_64 reports whether the machine has the x86_64 instruction set.
func (info Info) IsX86_64() bool {
	switch info.Machine {
	case "x86_64", "amd64", "AMD64":
		return true
	}
	return false
}

// IsMusl reports whether the host is a musl based linux.
func (info Info) IsMusl() bool {
	return info.OS == "linux" && info.Libc == Musl
}

// detectLibc reports Musl when the musl dynamic loader is installed below
// root, Glibc otherwise.
func detectLibc(root string) string {
	for _, pattern := range []string{"lib/ld-musl-*.so.1", "usr/lib/ld-musl-*.so.1"} {
		if m, _ := filepath.Glob(filepath.Join(root, pattern)); len(m) > 0 {
			return Musl
		}
	}
	return Glibc
}

// goarchMachine maps a GOARCH to the name uname would report.
func goarchMachine(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "386":
		return "i686"
	case "arm64":
		return "aarch64"
	}
	return goarch
}
