package lua

import (
	"errors"
	"fmt"
)

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNotEnumerable is returned for values that are neither tables nor
	// carry a callable __pairs metamethod.
	ErrNotEnumerable = errors.New("value is not enumerable")
)

// LoadError is returned when a script cannot be loaded (read or compiled).
type LoadError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("lua bootstrap failed: %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}
