package process

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by Execute matches exactly one of these
// with errors.Is.
var (
	// ErrInvalidArgument indicates a malformed request, detected before any
	// OS resource is allocated.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSpawn indicates the OS refused to create the process.
	ErrSpawn = errors.New("failed to create subprocess")

	// ErrIO indicates writing stdin, reading stdout/stderr or waiting failed.
	ErrIO = errors.New("subprocess i/o failure")

	// ErrNonZeroExit indicates the child exited with a non-zero status.
	ErrNonZeroExit = errors.New("subprocess exited non-zero")

	// ErrDestroy indicates the process handle could not be cleaned up after
	// an otherwise successful run.
	ErrDestroy = errors.New("failed to destroy (cleanup) subprocess")

	// ErrNoStdin is returned by a handle whose stdin was not piped.
	ErrNoStdin = errors.New("stdin was not piped")
)

// Error describes a failed step of an Execute call.
type Error struct {
	// Kind is one of the Err* kinds above.
	Kind error
	// Op names the step that failed, e.g. "spawn", "write stdin", "read stdout".
	Op string
	// Stream is "stdin", "stdout" or "stderr" for stream failures.
	Stream string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ExitError is returned when a child exits non-zero and the caller did not
// allow it. Its message carries the full command line and both captures.
type ExitError struct {
	Argv     []string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (exit code %d):", ErrNonZeroExit, e.ExitCode)
	for _, arg := range e.Argv {
		b.WriteString(" «")
		b.WriteString(arg)
		b.WriteString("»")
	}
	b.WriteString("\n\n--- STDOUT ------------\n")
	b.Write(e.Stdout)
	b.WriteString("\n--- STDERR ------------\n")
	b.Write(e.Stderr)
	b.WriteString("\n")
	return b.String()
}

// Is matches ErrNonZeroExit.
func (e *ExitError) Is(target error) bool {
	return target == ErrNonZeroExit
}

func invalidArgument(format string, args ...any) error {
	return &Error{Kind: ErrInvalidArgument, Err: fmt.Errorf(format, args...)}
}
