// Package env composes the process environment of build commands. It never
// mutates the environment of the running process: an Overlay is a value
// that is applied to a copy of a base environment for each command.
package env

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Prepend returns value in front of cur, separated by sep. An empty cur
// yields value alone.
func Prepend(cur, value, sep string) string {
	if cur == "" {
		return value
	}
	return value + sep + cur
}

type prepend struct {
	name, value, sep string
}

// Overlay is an ordered list of values to prepend to environment variables.
// Later entries end up in front of earlier ones.
type Overlay struct {
	ops []prepend
}

// With returns a copy of o that additionally prepends value to name.
func (o Overlay) With(name, value, sep string) Overlay {
	ops := make([]prepend, len(o.ops), len(o.ops)+1)
	copy(ops, o.ops)
	return Overlay{ops: append(ops, prepend{name, value, sep})}
}

// Apply returns a new environment made of base with o applied. Variables
// that do not exist in base are appended in the order they were first
// touched. base is not modified.
func (o Overlay) Apply(base []string) []string {
	out := make([]string, len(base), len(base)+len(o.ops))
	copy(out, base)
	idx := make(map[string]int, len(out))
	for i, kv := range out {
		if k, _, ok := strings.Cut(kv, "="); ok {
			idx[envKey(k)] = i
		}
	}
	for _, op := range o.ops {
		key := envKey(op.name)
		if i, ok := idx[key]; ok {
			k, cur, _ := strings.Cut(out[i], "=")
			out[i] = k + "=" + Prepend(cur, op.value, op.sep)
			continue
		}
		idx[key] = len(out)
		out = append(out, op.name+"="+op.value)
	}
	return out
}

// Lookup returns the value of name in env.
func Lookup(env []string, name string) (string, bool) {
	key := envKey(name)
	for i := len(env) - 1; i >= 0; i-- {
		if k, v, ok := strings.Cut(env[i], "="); ok && envKey(k) == key {
			return v, true
		}
	}
	return "", false
}

// Options configures ForPrefix.
type Options struct {
	// GOOS selects platform specific behaviour. runtime.GOOS when empty.
	GOOS string
	// ForBuilder is set when building tools into the builder prefix.
	ForBuilder bool
	// ArchFlags are the macOS architecture flags (ARCHFLAGS). They are
	// added to CFLAGS, CXXFLAGS and LDFLAGS of target builds on darwin.
	ArchFlags string
}

// ForPrefix returns the overlay that lets compilers, linkers and pkg-config
// find what is already installed in prefix.
func ForPrefix(prefix string, opts Options) Overlay {
	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	mangle := func(p string) string { return Mangle(goos, p) }

	var o Overlay
	o = o.With("CPPFLAGS", "-I"+mangle(filepath.Join(prefix, "include")), " ")
	o = o.With("LDFLAGS", "-L"+mangle(filepath.Join(prefix, "lib")), " ")
	o = o.With("PKG_CONFIG_PATH", mangle(filepath.Join(prefix, "lib", "pkgconfig")), ":")

	if goos == "darwin" && !opts.ForBuilder && opts.ArchFlags != "" {
		for _, name := range []string{"CFLAGS", "CXXFLAGS", "LDFLAGS"} {
			o = o.With(name, opts.ArchFlags, " ")
		}
	}
	return o
}

// WithToolPath returns o with dir prepended to PATH using the host list
// separator.
func (o Overlay) WithToolPath(dir string) Overlay {
	return o.With("PATH", dir, string(os.PathListSeparator))
}

// Mangle converts a host path into the form expected by the toolchain of
// goos. On windows the MSYS tools want forward slashes and "/c/..." instead
// of "C:\..."; elsewhere paths are returned unchanged.
func Mangle(goos, path string) string {
	if goos != "windows" {
		return path
	}
	path = strings.ReplaceAll(path, `\`, "/")
	if len(path) >= 2 && path[1] == ':' {
		path = "/" + strings.ToLower(path[:1]) + path[2:]
	}
	return path
}

func envKey(k string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(k)
	}
	return k
}
