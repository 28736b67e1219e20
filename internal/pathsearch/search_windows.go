//go:build windows

package pathsearch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows"
)

// ListSeparator is the default search path delimiter.
const ListSeparator = ";"

const separators = `/\`

// isExecutable approximates the execute bit with the PATHEXT extension list,
// since Windows file modes carry no execute permission.
func isExecutable(path string, _ fs.FileInfo) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}

	pathext := os.Getenv("PATHEXT")
	if pathext == "" {
		pathext = ".com;.exe;.bat;.cmd"
	}
	for _, e := range strings.Split(strings.ToLower(pathext), ";") {
		if e == ext {
			return true
		}
	}
	return false
}

func skippable(err error) bool {
	switch {
	case errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, windows.ERROR_PATH_NOT_FOUND),
		errors.Is(err, windows.ERROR_CANT_RESOLVE_FILENAME):
		return true
	}
	return false
}
