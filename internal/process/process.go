package process

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"sync/atomic"
)

// EnvSpec selects the environment of a child process.
//
// The zero value inherits the parent's environment. An explicit spec replaces
// it wholesale; nothing from the parent leaks through, and an explicit spec
// with no entries gives the child an empty environment.
type EnvSpec struct {
	explicit bool
	entries  []string
}

// InheritEnv returns a spec that inherits the parent's environment.
func InheritEnv() EnvSpec {
	return EnvSpec{}
}

// ExplicitEnv returns a spec made of the given KEY=VALUE entries.
func ExplicitEnv(entries []string) EnvSpec {
	cp := make([]string, len(entries))
	copy(cp, entries)
	return EnvSpec{explicit: true, entries: cp}
}

// ExplicitEnvMap returns a spec built from a name to value mapping,
// in sorted name order.
func ExplicitEnvMap(vars map[string]string) EnvSpec {
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	sort.Strings(names)

	entries := make([]string, 0, len(names))
	for _, k := range names {
		entries = append(entries, k+"="+vars[k])
	}
	return EnvSpec{explicit: true, entries: entries}
}

// Inherited reports whether the parent's environment is inherited.
func (e EnvSpec) Inherited() bool {
	return !e.explicit
}

// Entries returns a copy of the explicit entries.
func (e EnvSpec) Entries() []string {
	cp := make([]string, len(e.entries))
	copy(cp, e.entries)
	return cp
}

// StartSpec describes a process for a Backend to create.
type StartSpec struct {
	// Argv is the command; Argv[0] is the program.
	Argv []string
	// Env selects the child's environment.
	Env EnvSpec
	// Stdin requests a pipe to the child's standard input.
	Stdin bool
}

// Backend creates OS processes.
type Backend interface {
	Start(spec StartSpec) (Handle, error)
}

// Handle is a started process together with its standard streams.
type Handle interface {
	// Stdin returns the write end of the child's stdin pipe.
	Stdin() (io.WriteCloser, error)
	// Stdout returns the read end of the child's stdout pipe.
	Stdout() (io.Reader, error)
	// Stderr returns the read end of the child's stderr pipe.
	Stderr() (io.Reader, error)
	// Wait blocks until the child exits and returns its exit code.
	// A non-zero exit is not an error.
	Wait() (int, error)
	// Destroy releases every resource held by the handle, terminating the
	// child if it has not been waited for.
	Destroy() error
}

// ExecBackend starts processes with os/exec.
type ExecBackend struct{}

// Start implements Backend.
func (ExecBackend) Start(spec StartSpec) (Handle, error) {
	if len(spec.Argv) == 0 {
		return nil, errors.New("empty argument vector")
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...) //nolint:gosec // running build commands is the purpose of this package
	if !spec.Env.Inherited() {
		// A non-nil empty slice keeps exec from falling back to os.Environ.
		cmd.Env = append(make([]string, 0, len(spec.Env.entries)), spec.Env.entries...)
	}

	p := &Process{Cmd: cmd}

	var err error
	if spec.Stdin {
		if p.stdin, err = cmd.StdinPipe(); err != nil {
			return nil, fmt.Errorf("stdin pipe: %w", err)
		}
	}
	if p.stdout, err = cmd.StdoutPipe(); err != nil {
		p.closePipes()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if p.stderr, err = cmd.StderrPipe(); err != nil {
		p.closePipes()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	// exec closes every pipe it created when Start fails.
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return p, nil
}

// Process is the os/exec implementation of Handle.
type Process struct {
	// Cmd is the underlying exec.Cmd.
	Cmd *exec.Cmd

	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	waited atomic.Bool

	destroyOnce sync.Once
	destroyErr  error
}

// Stdin implements Handle.
func (p *Process) Stdin() (io.WriteCloser, error) {
	if p.stdin == nil {
		return nil, ErrNoStdin
	}
	return p.stdin, nil
}

// Stdout implements Handle.
func (p *Process) Stdout() (io.Reader, error) {
	return p.stdout, nil
}

// Stderr implements Handle.
func (p *Process) Stderr() (io.Reader, error) {
	return p.stderr, nil
}

// Wait implements Handle. It must not be called before both output pipes
// have been drained.
func (p *Process) Wait() (int, error) {
	err := p.Cmd.Wait()
	p.waited.Store(true)

	if err == nil {
		return 0, nil
	}

	// ExitCode is -1 for a child terminated by a signal.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return -1, err
}

// Destroy implements Handle. Calling it more than once returns the result of
// the first call.
func (p *Process) Destroy() error {
	p.destroyOnce.Do(func() {
		p.destroyErr = p.destroy()
	})
	return p.destroyErr
}

func (p *Process) destroy() error {
	var errs []error

	if p.stdin != nil {
		if err := p.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, fmt.Errorf("close stdin: %w", err))
		}
	}

	if !p.waited.Load() && p.Cmd.Process != nil {
		if err := p.Cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("kill: %w", err))
		}
		// Reap the child and close the parent ends of the pipes. The
		// resulting "signal: killed" status is expected here.
		_ = p.Cmd.Wait()
		p.waited.Store(true)
	}

	return errors.Join(errs...)
}

// closePipes releases pipes obtained before a failed start.
func (p *Process) closePipes() {
	for _, c := range []io.Closer{p.stdin, p.stdout, p.stderr} {
		if c != nil {
			_ = c.Close()
		}
	}
}
