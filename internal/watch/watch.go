// Package watch detects changes to build scripts so --watch mode can rerun
// the bootstrap.
//
// A Watcher reports individual file events under a root directory; a
// Debouncer coalesces bursts of them into one Batch after a quiet period.
package watch

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// Common errors returned by watcher operations.
var (
	ErrWatcherClosed   = errors.New("watcher is closed")
	ErrAlreadyWatching = errors.New("path is already being watched")
	ErrPathNotExist    = errors.New("path does not exist")
)

// Op represents the type of file system operation.
type Op uint32

const (
	// OpCreate indicates a file or directory was created.
	OpCreate Op = 1 << iota
	// OpWrite indicates a file was written to.
	OpWrite
	// OpRemove indicates a file or directory was removed.
	OpRemove
	// OpRename indicates a file or directory was renamed.
	OpRename
)

// String returns the set operations joined with "|".
func (op Op) String() string {
	var names []string
	for _, o := range []struct {
		op   Op
		name string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
	} {
		if op.Has(o.op) {
			names = append(names, o.name)
		}
	}
	if len(names) == 0 {
		return "UNKNOWN"
	}
	return strings.Join(names, "|")
}

// Has returns true if the operation includes the given op.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event represents a file system change event.
type Event struct {
	// Path is the absolute path of the affected file or directory.
	Path string
	// Op is the operation that occurred.
	Op Op
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// Source produces events. *Watcher is the fsnotify implementation.
type Source interface {
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}

// Filter decides which paths are interesting.
type Filter struct {
	// Include holds base-name glob patterns; a file must match one of them.
	// Empty includes every file.
	Include []string
	// Ignore holds directory base names that are skipped entirely.
	Ignore []string
}

// MatchFile reports whether a changed file should trigger a rebuild.
func (f Filter) MatchFile(path string) bool {
	if f.ignoredBelow(path) {
		return false
	}
	if len(f.Include) == 0 {
		return true
	}
	base := filepath.Base(path)
	for _, pattern := range f.Include {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// IgnoreDir reports whether a directory should not be watched.
func (f Filter) IgnoreDir(path string) bool {
	base := filepath.Base(path)
	for _, name := range f.Ignore {
		if name == base {
			return true
		}
	}
	return false
}

// ignoredBelow reports whether any directory component of path is ignored.
func (f Filter) ignoredBelow(path string) bool {
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if f.IgnoreDir(dir) {
			return true
		}
		if parent := filepath.Dir(dir); parent == dir {
			return false
		}
	}
}
