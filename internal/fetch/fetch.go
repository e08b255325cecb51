// Copyright (c) 2026 The XGo Authors (xgo.dev). All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fetch downloads source archives into the source cache and
// verifies their digests.
package fetch

import (
	"context"
	_ "crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/goplus/cibuildpkg/internal/atomicfile"
	"github.com/goplus/cibuildpkg/pkgs/spec"
)

// IntegrityError reports an archive that is missing after a download
// attempt or whose digest does not match the declared one.
type IntegrityError struct {
	Name     string
	Path     string
	Expected string
	Actual   string
	Missing  bool
}

func (e *IntegrityError) Error() string {
	if e.Missing {
		return fmt.Sprintf("%s: archive %s is missing", e.Name, e.Path)
	}
	return fmt.Sprintf("%s: sha256 mismatch for %s: expected %s, got %s", e.Name, e.Path, e.Expected, e.Actual)
}

// Options configures a Fetcher.
type Options struct {
	// SourceDir is the source cache holding downloaded archives.
	SourceDir string
	// Jobs bounds the number of concurrent downloads. Zero means
	// runtime.NumCPU().
	Jobs int
	// Client performs the downloads. Nil means a client with transparent
	// compression disabled, so archives are stored byte for byte.
	Client *http.Client
	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Fetcher populates the source cache.
type Fetcher struct {
	dir    string
	jobs   int
	client *http.Client
	logger *log.Logger
}

// New returns a Fetcher for opts.
func New(opts Options) *Fetcher {
	f := &Fetcher{
		dir:    opts.SourceDir,
		jobs:   opts.Jobs,
		client: opts.Client,
		logger: opts.Logger,
	}
	if f.jobs <= 0 {
		f.jobs = runtime.NumCPU()
	}
	if f.client == nil {
		f.client = &http.Client{
			Transport: &http.Transport{
				Proxy:              http.ProxyFromEnvironment,
				DisableCompression: true,
			},
		}
	}
	if f.logger == nil {
		f.logger = log.Default()
	}
	return f
}

// Path returns where the archive of s is cached.
func (f *Fetcher) Path(s spec.Spec) string {
	return filepath.Join(f.dir, s.ArchiveName())
}

// Fetch makes sure the archive of every spec is cached and verified.
// Archives already in the cache are not downloaded again. Download
// failures are logged and surface as a missing archive. Every spec is
// processed even when some fail; the first failure is returned.
func (f *Fetcher) Fetch(ctx context.Context, specs []spec.Spec) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	var g errgroup.Group
	g.SetLimit(f.jobs)
	for _, s := range specs {
		g.Go(func() error {
			err := f.fetch(ctx, s)
			if err != nil {
				f.logger.Error("fetch failed", "package", s.Name, "err", err)
			}
			return err
		})
	}
	return g.Wait()
}

func (f *Fetcher) fetch(ctx context.Context, s spec.Spec) error {
	path := f.Path(s)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		f.logger.Info("downloading", "package", s.Name, "url", s.SourceURL)
		if err := f.Download(ctx, s.SourceURL, path); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Warn("download failed", "package", s.Name, "err", err)
		}
	}
	return f.Verify(s)
}

// Verify checks the cached archive of s against its declared digest. A
// spec without a digest is accepted and the computed digest is logged.
func (f *Fetcher) Verify(s spec.Spec) error {
	path := f.Path(s)
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &IntegrityError{Name: s.Name, Path: path, Missing: true}
	}
	if err != nil {
		return err
	}
	defer file.Close()

	actual, err := digest.SHA256.FromReader(file)
	if err != nil {
		return fmt.Errorf("%s: hash %s: %w", s.Name, path, err)
	}
	if s.SHA256 == "" {
		f.logger.Warn("no digest declared", "package", s.Name, "sha256", actual.Encoded())
		return nil
	}
	if expected := strings.ToLower(s.SHA256); actual.Encoded() != expected {
		return &IntegrityError{Name: s.Name, Path: path, Expected: expected, Actual: actual.Encoded()}
	}
	return nil
}

// Download fetches url into dest. Nothing appears under dest unless the
// whole body was received.
func (f *Fetcher) Download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := atomicfile.Create(dest, 0o644)
	if err != nil {
		return err
	}
	defer out.Cleanup()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	return out.Commit()
}
