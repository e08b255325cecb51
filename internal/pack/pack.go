// Package pack strips the installed libraries and bundles the destination
// into the output archive.
package pack

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/goplus/cibuildpkg/internal/atomicfile"
	"github.com/goplus/cibuildpkg/pkgs/buildsys"
)

// Dirs are the destination directories that make up the output.
var Dirs = []string{"bin", "include", "lib"}

// ArchivePath returns the output archive for the platform tag.
func ArchivePath(outputDir, tag string) string {
	return filepath.Join(outputDir, "ffmpeg-"+tag+".tar.gz")
}

// Exists reports whether path exists. A run whose output archive exists
// has nothing to do.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Libraries returns the shared libraries installed in dest.
func Libraries(dest, goos string) ([]string, error) {
	var pattern string
	switch goos {
	case "darwin":
		pattern = filepath.Join(dest, "lib", "*.dylib")
	case "windows":
		pattern = filepath.Join(dest, "bin", "*.dll")
	default:
		pattern = filepath.Join(dest, "lib", "*.so")
	}
	return filepath.Glob(pattern)
}

// Strip removes symbols from libs. On darwin only debug symbols are
// removed and the load commands are printed for the build log.
func Strip(ctx context.Context, r buildsys.Runner, goos string, libs []string) error {
	if len(libs) == 0 {
		return nil
	}
	if goos == "darwin" {
		if err := r.Run(ctx, buildsys.Cmd{Args: append([]string{"strip", "-S"}, libs...)}); err != nil {
			return err
		}
		return r.Run(ctx, buildsys.Cmd{Args: append([]string{"otool", "-L"}, libs...)})
	}
	return r.Run(ctx, buildsys.Cmd{Args: append([]string{"strip", "-s"}, libs...)})
}

// Archive writes a gzip compressed tarball of dirs, relative to dest, to
// out. The archive only appears once it is complete.
func Archive(dest, out string, dirs ...string) error {
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	f, err := atomicfile.Create(out, 0o644)
	if err != nil {
		return err
	}
	defer f.Cleanup()

	zw := gzip.NewWriter(f)
	tw := tar.NewWriter(zw)
	for _, dir := range dirs {
		if err := writeDir(tw, dest, dir); err != nil {
			return fmt.Errorf("archive %s: %w", dir, err)
		}
	}
	if err := errors.Join(tw.Close(), zw.Close()); err != nil {
		return err
	}
	return f.Commit()
}

// writeDir adds dest/dir and everything below it, named relative to dest.
func writeDir(tw *tar.Writer, dest, dir string) error {
	return filepath.WalkDir(filepath.Join(dest, dir), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dest, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	})
}
