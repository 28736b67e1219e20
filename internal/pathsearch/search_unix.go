//go:build !windows

package pathsearch

import (
	"errors"
	"io/fs"

	"golang.org/x/sys/unix"
)

// ListSeparator is the default search path delimiter.
const ListSeparator = ":"

const separators = "/"

// isExecutable asks the kernel whether the current user may execute path.
// A refused access(2) means the candidate is unsuitable, not that the search
// failed.
func isExecutable(path string, _ fs.FileInfo) bool {
	return unix.Access(path, unix.X_OK) == nil
}

// skippable reports whether a stat error means "try the next candidate".
func skippable(err error) bool {
	switch {
	case errors.Is(err, unix.ENOENT),
		errors.Is(err, unix.ENOTDIR),
		errors.Is(err, unix.EACCES),
		errors.Is(err, unix.ELOOP):
		return true
	}
	return false
}
