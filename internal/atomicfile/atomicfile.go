// Package atomicfile writes files that appear under their final name only
// once they are complete.
package atomicfile

import (
	"io"
	"os"
)

// File is a pending file. Data written to it becomes visible under the
// destination path on Commit. Cleanup discards it and is a no-op after a
// successful Commit, so it can always be deferred.
type File interface {
	io.Writer
	Commit() error
	Cleanup() error
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	f, err := Create(path, perm)
	if err != nil {
		return err
	}
	defer f.Cleanup()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Commit()
}
