// Package extract unpacks source archives into the build tree and applies
// local patches.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/goplus/cibuildpkg/pkgs/buildsys"
	"github.com/goplus/cibuildpkg/pkgs/spec"
)

// ExtractionError reports an archive that cannot be unpacked as declared.
type ExtractionError struct {
	Name    string
	Archive string
	Roots   []string // distinct top level names, set when stripping failed
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: extract %s: %v", e.Name, e.Archive, e.Err)
	}
	return fmt.Sprintf("%s: cannot strip path components of %s, found %d top level entries %v",
		e.Name, e.Archive, len(e.Roots), e.Roots)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Options configures an Extractor.
type Options struct {
	SourceDir string // where archives are cached
	BuildDir  string // where trees are extracted, one directory per package
	PatchDir  string // holds <name>.patch files
	Runner    buildsys.Runner
	Logger    *log.Logger
}

// Extractor turns cached archives into patched source trees.
type Extractor struct {
	opts Options
}

// New returns an Extractor.
func New(opts Options) *Extractor {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Extractor{opts: opts}
}

// Dir returns the directory the tree of s is extracted to.
func (x *Extractor) Dir(s spec.Spec) string {
	return filepath.Join(x.opts.BuildDir, s.Name)
}

// Extract unpacks the archive of s into Dir(s), stripping the single top
// level directory when s.StripComponents is 1, then applies
// <PatchDir>/<name>.patch if present. A previous tree is replaced.
func (x *Extractor) Extract(ctx context.Context, s spec.Spec) (string, error) {
	archive := filepath.Join(x.opts.SourceDir, s.ArchiveName())
	if _, err := os.Stat(archive); err != nil {
		return "", &ExtractionError{Name: s.Name, Archive: archive, Err: err}
	}
	if s.StripComponents != 0 && s.StripComponents != 1 {
		return "", &ExtractionError{Name: s.Name, Archive: archive,
			Err: fmt.Errorf("unsupported strip components %d", s.StripComponents)}
	}

	var root string
	if s.StripComponents == 1 {
		roots, err := Roots(archive)
		if err != nil {
			return "", &ExtractionError{Name: s.Name, Archive: archive, Err: err}
		}
		if len(roots) != 1 {
			return "", &ExtractionError{Name: s.Name, Archive: archive, Roots: roots}
		}
		root = roots[0]
	}

	if err := os.MkdirAll(x.opts.BuildDir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.MkdirTemp(x.opts.BuildDir, ".extract-"+s.Name+"-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmp)

	if err := unpack(archive, tmp); err != nil {
		return "", &ExtractionError{Name: s.Name, Archive: archive, Err: err}
	}
	dir := x.Dir(s)
	if err := os.RemoveAll(dir); err != nil {
		return "", err
	}
	if err := os.Rename(filepath.Join(tmp, root), dir); err != nil {
		return "", err
	}
	x.opts.Logger.Debug("extracted", "package", s.Name, "dir", dir)

	if err := x.patch(ctx, s, dir); err != nil {
		return "", err
	}
	return dir, nil
}

func (x *Extractor) patch(ctx context.Context, s spec.Spec, dir string) error {
	if x.opts.PatchDir == "" {
		return nil
	}
	p := filepath.Join(x.opts.PatchDir, s.Name+".patch")
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}
	x.opts.Logger.Info("applying patch", "package", s.Name, "patch", p)
	return x.opts.Runner.Run(ctx, buildsys.Cmd{Args: []string{"patch", "-d", dir, "-i", p, "-p1"}})
}

// Roots lists the distinct first path segments of the entries of archive,
// in order of first appearance.
func Roots(archive string) ([]string, error) {
	var roots []string
	seen := make(map[string]bool)
	err := walk(archive, func(e entry) error {
		top, _, _ := strings.Cut(e.name, "/")
		if !seen[top] {
			seen[top] = true
			roots = append(roots, top)
		}
		return nil
	})
	return roots, err
}
