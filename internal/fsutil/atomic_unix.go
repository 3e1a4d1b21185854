//go:build !windows

package fsutil

import (
	"os"

	"github.com/google/renameio/v2"
)

// WriteFileAtomic replaces path with data via a temp file in the same
// directory and a rename, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return renameio.WriteFile(path, data, perm)
}
