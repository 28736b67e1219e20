package process

import (
	"bytes"
	"errors"
	"io"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/oro/internal/logging"
)

// Request describes one command to execute.
type Request struct {
	// Command is the argument vector; Command[0] is the program.
	Command []string

	// Env selects the child's environment. The zero value inherits.
	Env EnvSpec

	// Stdin is written to the child's standard input, which is then closed.
	// A nil slice leaves stdin as the backend creates it.
	Stdin []byte

	// AllowNonZero returns a Result for non-zero exits instead of an
	// *ExitError.
	AllowNonZero bool
}

// Result holds the status and output of a completed command.
type Result struct {
	// ID identifies the execution in logs.
	ID string
	// ExitCode is the process exit code. -1 if the process was killed.
	ExitCode int
	// Stdout is the captured standard output.
	Stdout []byte
	// Stderr is the captured standard error.
	Stderr []byte
	// Duration is how long the execution took.
	Duration time.Duration
}

// Spawner executes commands through a Backend.
type Spawner struct {
	backend Backend
	log     *logging.Logger
}

// Option configures a Spawner.
type Option func(*Spawner)

// WithBackend sets the backend used to create processes.
func WithBackend(b Backend) Option {
	return func(s *Spawner) {
		if b != nil {
			s.backend = b
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Spawner) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSpawner creates a Spawner backed by os/exec unless configured otherwise.
func NewSpawner(opts ...Option) *Spawner {
	s := &Spawner{
		backend: ExecBackend{},
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent("process")
	return s
}

// Execute runs req.Command to completion.
//
// Stdout and stderr are drained concurrently while the stdin payload is
// written, so a child filling either pipe cannot stall the call. Both
// captures are complete before the exit status is collected.
//
// The handle is destroyed exactly once on every path after a successful
// start. If destruction fails after an otherwise successful run the result is
// discarded and an ErrDestroy error returned; if the run had already failed,
// the original error wins.
func (s *Spawner) Execute(req Request) (res *Result, err error) {
	if len(req.Command) == 0 {
		return nil, invalidArgument("argument list cannot be empty")
	}

	id := uuid.NewString()
	log := s.log.With(logging.Fields(
		logging.FieldExecID, id,
		logging.FieldProgram, req.Command[0],
	))
	start := time.Now()

	h, err := s.backend.Start(StartSpec{
		Argv:  req.Command,
		Env:   req.Env,
		Stdin: req.Stdin != nil,
	})
	if err != nil {
		log.Debug("subprocess creation failed", logging.Fields(logging.FieldError, err))
		return nil, &Error{Kind: ErrSpawn, Op: "spawn", Err: err}
	}
	log.Debug("subprocess started", logging.Fields("argc", len(req.Command)))

	defer func() {
		derr := h.Destroy()
		if derr == nil {
			return
		}
		if err == nil {
			res = nil
			err = &Error{Kind: ErrDestroy, Op: "destroy", Err: derr}
			return
		}
		log.Debug("ignoring destroy failure after earlier error", logging.Fields(logging.FieldError, derr))
	}()

	var stdout, stderr bytes.Buffer
	var drains errgroup.Group

	if err := startDrain(&drains, "stdout", h.Stdout, &stdout); err != nil {
		return nil, err
	}
	if err := startDrain(&drains, "stderr", h.Stderr, &stderr); err != nil {
		return nil, err
	}

	if req.Stdin != nil {
		if err := writeStdin(h, req.Stdin); err != nil {
			return nil, err
		}
	}

	if err := drains.Wait(); err != nil {
		return nil, err
	}

	code, err := h.Wait()
	if err != nil {
		return nil, &Error{Kind: ErrIO, Op: "wait", Err: err}
	}

	res = &Result{
		ID:       id,
		ExitCode: code,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	log.Debug("subprocess exited", logging.Fields(
		logging.FieldExitCode, code,
		logging.FieldDuration, res.Duration.Milliseconds(),
	))

	if code != 0 && !req.AllowNonZero {
		argv := make([]string, len(req.Command))
		copy(argv, req.Command)
		return nil, &ExitError{
			Argv:     argv,
			ExitCode: code,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}

	return res, nil
}

// startDrain opens a stream and copies it into buf on a group goroutine.
func startDrain(g *errgroup.Group, stream string, open func() (io.Reader, error), buf *bytes.Buffer) error {
	r, err := open()
	if err != nil {
		return &Error{Kind: ErrIO, Op: "open " + stream, Stream: stream, Err: err}
	}

	g.Go(func() error {
		if _, err := buf.ReadFrom(r); err != nil {
			return &Error{Kind: ErrIO, Op: "read " + stream, Stream: stream, Err: err}
		}
		return nil
	})
	return nil
}

// writeStdin writes the whole payload and closes the stream so the child
// sees EOF.
//
// A child may exit without reading all of its input. The resulting broken
// pipe is not an error; the exit status decides the outcome.
func writeStdin(h Handle, payload []byte) error {
	w, err := h.Stdin()
	if err != nil {
		return &Error{Kind: ErrIO, Op: "open stdin", Stream: "stdin", Err: err}
	}

	n, werr := w.Write(payload)
	if werr == nil && n != len(payload) {
		werr = io.ErrShortWrite
	}
	cerr := w.Close()
	if errors.Is(werr, syscall.EPIPE) {
		werr = nil
	}
	if errors.Is(cerr, syscall.EPIPE) {
		cerr = nil
	}

	if werr != nil {
		return &Error{Kind: ErrIO, Op: "write stdin", Stream: "stdin", Err: werr}
	}
	if cerr != nil {
		return &Error{Kind: ErrIO, Op: "close stdin", Stream: "stdin", Err: cerr}
	}
	return nil
}
