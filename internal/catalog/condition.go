package catalog

import (
	"slices"

	"github.com/goplus/cibuildpkg/internal/platform"
	"github.com/goplus/cibuildpkg/pkgs/spec"
)

// Target is what a catalogue is resolved for.
type Target struct {
	Platform platform.Info
	Variant  spec.Variant
}

// Condition restricts an entry to some targets. Every non-empty field
// must match; the zero Condition matches everything.
type Condition struct {
	OS      []string `yaml:"os"`
	NotOS   []string `yaml:"not_os"`
	Arch    []string `yaml:"arch"`
	NotArch []string `yaml:"not_arch"`
	Libc    string   `yaml:"libc"`
	Variant string   `yaml:"variant"`
}

// Match reports whether t satisfies c.
func (c *Condition) Match(t Target) bool {
	if c == nil {
		return true
	}
	p := t.Platform
	if len(c.OS) > 0 && !slices.Contains(c.OS, p.OS) {
		return false
	}
	if slices.Contains(c.NotOS, p.OS) {
		return false
	}
	if len(c.Arch) > 0 && !slices.Contains(c.Arch, p.Machine) {
		return false
	}
	if slices.Contains(c.NotArch, p.Machine) {
		return false
	}
	if c.Libc != "" && (p.OS != "linux" || c.Libc != p.Libc) {
		return false
	}
	if c.Variant != "" && c.Variant != t.Variant.String() {
		return false
	}
	return true
}
