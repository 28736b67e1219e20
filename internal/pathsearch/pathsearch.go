// Package pathsearch resolves executable names against a search path.
package pathsearch

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// ResolveError is returned when a candidate fails with an error that is not
// one of the benign "keep looking" classes.
type ResolveError struct {
	// Name is the executable being searched for.
	Name string
	// Dir is the search path entry being tested.
	Dir string
	// Path is the full candidate path.
	Path string
	// Err is the underlying OS error.
	Err error
}

// Error implements the error interface.
func (e *ResolveError) Error() string {
	return fmt.Sprintf("fatal error attempting to resolve path: %s: %s (attempting to find '%s' in '%s')",
		errText(e.Err), e.Path, e.Name, e.Dir)
}

// Unwrap returns the underlying error.
func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Resolve searches searchPath for an executable called name.
//
// If name already contains a path separator it is returned unchanged and no
// search is performed. Otherwise searchPath is split on any of the characters
// in delimiter; an empty delimiter makes the whole of searchPath one entry.
// An empty entry means the current directory. The first entry holding a regular, executable file
// wins.
//
// Candidates that do not exist, sit below a non-directory, are not accessible,
// loop through symlinks, or are not suitable files are skipped. Any other
// error aborts the search with a *ResolveError. found is false when nothing
// matched.
func Resolve(name, searchPath, delimiter string) (path string, found bool, err error) {
	if HasSeparator(name) {
		return name, true, nil
	}

	for _, dir := range Split(searchPath, delimiter) {
		if dir == "" {
			dir = "."
		}

		candidate := dir + string(os.PathSeparator) + name

		ok, err := checkCandidate(candidate)
		if err != nil {
			if skippable(err) {
				continue
			}
			return "", false, &ResolveError{Name: name, Dir: dir, Path: candidate, Err: err}
		}
		if ok {
			return candidate, true, nil
		}
	}

	return "", false, nil
}

// HasSeparator reports whether name contains a path separator.
func HasSeparator(name string) bool {
	return strings.ContainsAny(name, separators)
}

// Split splits s at every occurrence of any character in delims.
//
// Unlike strings.FieldsFunc, empty tokens are preserved, so "a::b" yields
// ["a", "", "b"] and "" yields [""].
func Split(s, delims string) []string {
	if delims == "" {
		return []string{s}
	}

	var out []string
	for {
		i := strings.IndexAny(s, delims)
		if i < 0 {
			return append(out, s)
		}
		out = append(out, s[:i])
		_, size := utf8.DecodeRuneInString(s[i:])
		s = s[i+size:]
	}
}

// checkCandidate stats path and reports whether it is a regular executable.
// A non-nil error is always the stat error.
func checkCandidate(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}
	return isExecutable(path, info), nil
}

func errText(err error) string {
	if pe, ok := err.(*os.PathError); ok {
		return pe.Err.Error()
	}
	return err.Error()
}
