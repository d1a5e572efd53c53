package lnutils

import (
	"errors"
	"fmt"
	"os"
)

// CreateDir creates dir and any missing parents with the given permissions.
// An existing directory is not an error.
func CreateDir(dir string, perm os.FileMode) error {
	err := os.MkdirAll(dir, perm)
	if err == nil {
		return nil
	}

	// A dangling symlink usually points at an unmounted volume.
	var pathErr *os.PathError
	if errors.As(err, &pathErr) && os.IsExist(err) {
		if target, lerr := os.Readlink(pathErr.Path); lerr == nil {
			err = fmt.Errorf("is symlink %s -> %s mounted?",
				pathErr.Path, target)
		}
	}

	return fmt.Errorf("unable to create directory %q: %w", dir, err)
}
