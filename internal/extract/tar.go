package extract

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	xzMagic    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	bzip2Magic = []byte("BZh")
)

// openTar opens archive and returns a tar reader over its decompressed
// content. The compression is detected from the leading magic bytes so
// that misnamed archives still work.
func openTar(archive string) (*tar.Reader, io.Closer, error) {
	f, err := os.Open(archive)
	if err != nil {
		return nil, nil, err
	}
	br := bufio.NewReader(f)
	head, _ := br.Peek(len(xzMagic))

	var r io.Reader = br
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("gzip: %w", err)
		}
		r = zr
	case bytes.HasPrefix(head, xzMagic):
		zr, err := xz.NewReader(br)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("xz: %w", err)
		}
		r = zr
	case bytes.HasPrefix(head, bzip2Magic):
		r = bzip2.NewReader(br)
	}
	return tar.NewReader(r), f, nil
}

type entry struct {
	name string // cleaned, slash separated, relative
	hdr  *tar.Header
	r    io.Reader
}

// walk calls fn for every file system entry of archive. Names are
// cleaned; entries escaping the archive root are rejected.
func walk(archive string, fn func(e entry) error) error {
	tr, c, err := openTar(archive)
	if err != nil {
		return err
	}
	defer c.Close()
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		name := path.Clean(strings.TrimPrefix(hdr.Name, "./"))
		if name == "." {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(name)) {
			return fmt.Errorf("entry %q escapes the archive root", hdr.Name)
		}
		if err := fn(entry{name: name, hdr: hdr, r: tr}); err != nil {
			return err
		}
	}
}

// unpack extracts archive below dest, keeping modes, symlinks and
// modification times.
func unpack(archive, dest string) error {
	type dirTime struct {
		path  string
		mtime time.Time
	}
	var dirs []dirTime
	err := walk(archive, func(e entry) error {
		target := filepath.Join(dest, filepath.FromSlash(e.name))
		if err := checkParents(dest, e.name); err != nil {
			return err
		}
		existing, err := os.Lstat(target)
		if err == nil && existing.Mode()&fs.ModeSymlink != 0 {
			if e.hdr.Typeflag == tar.TypeDir {
				return fmt.Errorf("directory %q replaces a symlink", e.name)
			}
			// replace the link, never write through it
			if err := os.Remove(target); err != nil {
				return err
			}
		}
		mode := e.hdr.FileInfo().Mode()
		switch e.hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			dirs = append(dirs, dirTime{target, e.hdr.ModTime})
			return os.Chmod(target, mode.Perm()|0o700)
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := writeFile(target, e.r, mode.Perm()); err != nil {
				return err
			}
			return os.Chtimes(target, e.hdr.ModTime, e.hdr.ModTime)
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			os.Remove(target)
			return os.Symlink(e.hdr.Linkname, target)
		case tar.TypeLink:
			src := path.Clean(strings.TrimPrefix(e.hdr.Linkname, "./"))
			if !filepath.IsLocal(filepath.FromSlash(src)) {
				return fmt.Errorf("hard link %q escapes the archive root", e.hdr.Linkname)
			}
			if err := checkParents(dest, src); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			os.Remove(target)
			return os.Link(filepath.Join(dest, filepath.FromSlash(src)), target)
		}
		return nil
	})
	if err != nil {
		return err
	}
	// directory times last, writing entries updates them
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chtimes(dirs[i].path, dirs[i].mtime, dirs[i].mtime); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o600)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, r)
	return errors.Join(err, f.Close())
}

// checkParents fails when a directory on the way from dest to the
// slash separated name rel is a symlink. Links created by the archive
// may point anywhere, so nothing is written through them.
func checkParents(dest, rel string) error {
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		parent := strings.Join(parts[:i], "/")
		fi, err := os.Lstat(filepath.Join(dest, filepath.FromSlash(parent)))
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if fi.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("entry %q passes through symlink %q", rel, parent)
		}
	}
	return nil
}
