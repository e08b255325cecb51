// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package spec defines the immutable description of one buildable source
// package along with the small amount of logic that operates on it.
package spec

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"
)

// BuildKind selects the upstream build system used for a package.
type BuildKind int

const (
	Autoconf BuildKind = iota
	CMake
	Meson
	Make
)

var kindNames = [...]string{
	Autoconf: "autoconf",
	CMake:    "cmake",
	Meson:    "meson",
	Make:     "make",
}

func (k BuildKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("BuildKind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the known build systems.
func (k BuildKind) Valid() bool {
	return k >= Autoconf && k <= Make
}

// ParseBuildKind parses a build system name. The empty string means Autoconf.
func ParseBuildKind(s string) (BuildKind, error) {
	if s == "" {
		return Autoconf, nil
	}
	for i, name := range kindNames {
		if name == s {
			return BuildKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown build system %q", s)
}

// Variant is the feature selection of a run.
type Variant int

const (
	Commercial Variant = iota
	Community
)

func (v Variant) String() string {
	if v == Community {
		return "community"
	}
	return "commercial"
}

// When controls whether a package takes part in a run.
type When int

const (
	Always When = iota
	CommunityOnly
	CommercialOnly
	Excluded
)

var whenNames = [...]string{
	Always:         "always",
	CommunityOnly:  "community",
	CommercialOnly: "commercial",
	Excluded:       "excluded",
}

func (w When) String() string {
	if w < 0 || int(w) >= len(whenNames) {
		return fmt.Sprintf("When(%d)", int(w))
	}
	return whenNames[w]
}

// ParseWhen parses an inclusion tag. The empty string means Always.
func ParseWhen(s string) (When, error) {
	if s == "" {
		return Always, nil
	}
	for i, name := range whenNames {
		if name == s {
			return When(i), nil
		}
	}
	return 0, fmt.Errorf("unknown inclusion tag %q", s)
}

// Includes reports whether a package tagged w is built for variant v.
func (w When) Includes(v Variant) bool {
	switch w {
	case Always:
		return true
	case CommunityOnly:
		return v == Community
	case CommercialOnly:
		return v == Commercial
	}
	return false
}

// EnvVar is a value prepended to an environment variable while building
// a single package.
type EnvVar struct {
	Name      string
	Value     string
	Separator string // " " when empty
}

// Spec describes one buildable unit. A Spec is a value: copy it, never
// mutate a Spec that has been handed to the builder.
type Spec struct {
	Name            string
	SourceURL       string
	SourceFilename  string
	SHA256          string
	Kind            BuildKind
	BuildArgs       []string
	BuildDir        string
	Parallel        bool
	Requires        []string
	SourceDir       string
	StripComponents int
	When            When
	Env             []EnvVar
}

// New returns a Spec with the defaults used by the catalogue: autoconf,
// out-of-tree "build" directory, parallel builds and one stripped component.
func New(name, sourceURL, sha256 string) Spec {
	return Spec{
		Name:            name,
		SourceURL:       sourceURL,
		SHA256:          sha256,
		BuildDir:        "build",
		Parallel:        true,
		StripComponents: 1,
	}
}

// ArchiveName returns the file name of the source archive in the cache.
func (s Spec) ArchiveName() string {
	if s.SourceFilename != "" {
		return s.SourceFilename
	}
	if u, err := url.Parse(s.SourceURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return s.SourceURL[strings.LastIndex(s.SourceURL, "/")+1:]
}

// Validate checks the fields that the builder relies on.
func (s Spec) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is empty"))
	}
	if strings.ContainsAny(s.Name, `/\`) || s.Name == "." || s.Name == ".." {
		errs = append(errs, fmt.Errorf("name %q is not a valid directory name", s.Name))
	}
	if s.SourceURL == "" {
		errs = append(errs, errors.New("source url is empty"))
	}
	if s.StripComponents != 0 && s.StripComponents != 1 {
		errs = append(errs, fmt.Errorf("strip components must be 0 or 1, got %d", s.StripComponents))
	}
	if !s.Kind.Valid() {
		errs = append(errs, fmt.Errorf("invalid build system %v", s.Kind))
	}
	if len(errs) > 0 {
		return fmt.Errorf("package %q: %w", s.Name, errors.Join(errs...))
	}
	return nil
}

// Option overrides fields of a copied Spec.
type Option func(*Spec)

// WithBuildDir overrides the build directory.
func WithBuildDir(dir string) Option {
	return func(s *Spec) { s.BuildDir = dir }
}

// WithBuildArgs replaces the build arguments.
func WithBuildArgs(args ...string) Option {
	return func(s *Spec) { s.BuildArgs = args }
}

// With returns a copy of s with opts applied. Slices are cloned so the
// copy never aliases s.
func (s Spec) With(opts ...Option) Spec {
	c := s
	c.BuildArgs = slices.Clone(s.BuildArgs)
	c.Requires = slices.Clone(s.Requires)
	c.Env = slices.Clone(s.Env)
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Filter returns the specs built for variant v, in order.
func Filter(specs []Spec, v Variant) []Spec {
	out := make([]Spec, 0, len(specs))
	for _, s := range specs {
		if s.When.Includes(v) {
			out = append(out, s)
		}
	}
	return out
}
