//go:build !windows

package atomicfile

import (
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

type pendingFile struct {
	*renameio.PendingFile
}

func (f pendingFile) Commit() error { return f.CloseAtomicallyReplace() }

// Create starts a pending file for path. The temporary file lives next to
// path so the final rename never crosses a file system.
func Create(path string, perm os.FileMode) (File, error) {
	f, err := renameio.NewPendingFile(path,
		renameio.WithTempDir(filepath.Dir(path)),
		renameio.WithPermissions(perm))
	if err != nil {
		return nil, err
	}
	return pendingFile{f}, nil
}
