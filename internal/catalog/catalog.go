// Package catalog loads the package catalogue, a YAML document listing
// the build tools and packages in build order, and resolves it for a
// target platform and variant.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/goplus/cibuildpkg/pkgs/spec"
)

//go:embed packages.yaml
var defaultCatalog []byte

// Catalog is a parsed catalogue. It is not modified after loading.
type Catalog struct {
	Tools    []Entry `yaml:"tools"`
	Packages []Entry `yaml:"packages"`
}

// Entry is one package as written in the catalogue.
type Entry struct {
	Name      string     `yaml:"name"`
	URL       string     `yaml:"url"`
	Filename  string     `yaml:"filename"`
	SHA256    string     `yaml:"sha256"`
	Build     string     `yaml:"build"`
	BuildDir  string     `yaml:"build_dir"`
	SourceDir string     `yaml:"source_dir"`
	Strip     *int       `yaml:"strip"`
	Parallel  *bool      `yaml:"parallel"`
	SerialOn  []string   `yaml:"serial_on"` // operating systems building with -j1
	Requires  []string   `yaml:"requires"`
	When      string     `yaml:"when"`
	Platforms *Condition `yaml:"platforms"`
	Args      []Arg      `yaml:"args"`
	Env       []Env      `yaml:"env"`
}

// Arg is a build argument. In YAML it is either a plain string or a
// mapping {if: <condition>, then: [...], else: [...]}.
type Arg struct {
	If   *Condition
	Then []string
	Else []string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Arg) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		var s string
		if err := n.Decode(&s); err != nil {
			return err
		}
		*a = Arg{Then: []string{s}}
		return nil
	}
	var raw struct {
		If   *Condition `yaml:"if"`
		Then []string   `yaml:"then"`
		Else []string   `yaml:"else"`
	}
	if err := n.Decode(&raw); err != nil {
		return err
	}
	if raw.If == nil {
		return fmt.Errorf("line %d: conditional argument without if", n.Line)
	}
	*a = Arg{If: raw.If, Then: raw.Then, Else: raw.Else}
	return nil
}

func (a Arg) resolve(t Target) []string {
	if a.If.Match(t) {
		return a.Then
	}
	return a.Else
}

// Env is a value prepended to an environment variable of one package.
type Env struct {
	Name      string     `yaml:"name"`
	Value     string     `yaml:"value"`
	Separator string     `yaml:"sep"`
	If        *Condition `yaml:"if"`
}

// Default returns the embedded catalogue.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads the catalogue at path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a catalogue. Unknown fields are rejected.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Resolve evaluates every condition for t and returns the tools and the
// packages to build, in catalogue order. Packages excluded by the variant
// or the platform are dropped. The result is validated, including the
// declared build order.
func (c *Catalog) Resolve(t Target) (tools, pkgs []spec.Spec, err error) {
	if tools, err = resolveAll(c.Tools, t); err != nil {
		return nil, nil, err
	}
	if pkgs, err = resolveAll(c.Packages, t); err != nil {
		return nil, nil, err
	}
	if err := spec.CheckOrder(tools, pkgs); err != nil {
		return nil, nil, err
	}
	return tools, pkgs, nil
}

func resolveAll(entries []Entry, t Target) ([]spec.Spec, error) {
	var errs []error
	specs := make([]spec.Spec, 0, len(entries))
	for _, e := range entries {
		if !e.Platforms.Match(t) {
			continue
		}
		s, err := e.Spec(t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		specs = append(specs, s)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return spec.Filter(specs, t.Variant), nil
}

// Spec converts e into a spec for target t.
func (e *Entry) Spec(t Target) (spec.Spec, error) {
	s := spec.New(e.Name, e.URL, e.SHA256)
	s.SourceFilename = e.Filename
	s.SourceDir = e.SourceDir
	s.Requires = e.Requires
	if e.BuildDir != "" {
		s.BuildDir = e.BuildDir
	}
	if e.Strip != nil {
		s.StripComponents = *e.Strip
	}
	if e.Parallel != nil {
		s.Parallel = *e.Parallel
	}
	for _, goos := range e.SerialOn {
		if goos == t.Platform.OS {
			s.Parallel = false
		}
	}

	var err error
	if s.Kind, err = spec.ParseBuildKind(e.Build); err != nil {
		return s, fmt.Errorf("package %s: %w", e.Name, err)
	}
	if s.When, err = spec.ParseWhen(e.When); err != nil {
		return s, fmt.Errorf("package %s: %w", e.Name, err)
	}
	for _, a := range e.Args {
		s.BuildArgs = append(s.BuildArgs, a.resolve(t)...)
	}
	for _, v := range e.Env {
		if v.If.Match(t) {
			s.Env = append(s.Env, spec.EnvVar{Name: v.Name, Value: v.Value, Separator: v.Separator})
		}
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}
