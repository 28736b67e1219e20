// Package syscmd implements the small helper commands oro-build exposes
// through --syscall, so build scripts can rely on them on every platform.
package syscmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// Func runs a helper with its arguments (the helper name excluded) and
// returns the process exit code.
type Func func(args []string, stdout, stderr io.Writer) int

var commands = map[string]Func{
	"touch":        touch,
	"pass":         func([]string, io.Writer, io.Writer) int { return ExitOK },
	"fail":         func([]string, io.Writer, io.Writer) int { return ExitFailure },
	"echo":         echo,
	"init-depfile": initDepfile,
	"cp":           cp,
}

// Names returns the helper names in sorted order.
func Names() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named helper.
func Lookup(name string) (Func, bool) {
	fn, ok := commands[name]
	return fn, ok
}

// Run dispatches to the named helper. Unknown names exit with ExitUsage.
func Run(name string, args []string, stdout, stderr io.Writer) int {
	fn, ok := Lookup(name)
	if !ok {
		fmt.Fprintf(stderr, "error: unknown syscall: %s\n", name)
		return ExitUsage
	}
	return fn(args, stdout, stderr)
}

// touch creates each file if needed and sets its times to now. Every path
// is attempted; any failure makes the exit code non-zero.
func touch(args []string, _, stderr io.Writer) int {
	status := ExitOK

	for _, path := range args {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(stderr, "touch: %v\n", err)
			status = ExitFailure
			continue
		}

		now := time.Now()
		if err := os.Chtimes(path, now, now); err != nil {
			fmt.Fprintf(stderr, "touch: %v\n", err)
			status = ExitFailure
		}

		if err := f.Close(); err != nil {
			// Not counted as a failure.
			fmt.Fprintf(stderr, "touch: warning: %v\n", err)
		}
	}

	return status
}

func echo(args []string, stdout, _ io.Writer) int {
	fmt.Fprintln(stdout, strings.Join(args, " "))
	return ExitOK
}

// initDepfile writes an empty make-style dependency file: for "out.d" the
// content is "out:\n".
func initDepfile(args []string, _, stderr io.Writer) int {
	switch {
	case len(args) == 0:
		fmt.Fprintln(stderr, "error: no output file given")
		return ExitUsage
	case len(args) > 1:
		fmt.Fprintf(stderr, "error: expected exactly 1 argument; got %d\n", len(args))
		return ExitUsage
	}

	path := args[0]
	if path == "" {
		fmt.Fprintln(stderr, "error: filepath cannot be empty")
		return ExitUsage
	}
	target, ok := strings.CutSuffix(path, ".d")
	if !ok || target == "" {
		fmt.Fprintf(stderr, "error: filepath must end with '.d': %s\n", path)
		return ExitUsage
	}

	if err := os.WriteFile(path, []byte(target+":\n"), 0644); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitFailure
	}
	return ExitOK
}

// cp copies "in out", or "in... dir" into dir under each input's base name.
func cp(args []string, _, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprintln(stderr, "error: usage: cp <inputs[...]> <output[_directory]>")
		return ExitUsage
	}

	if len(args) == 2 {
		if err := copyFile(args[0], args[1]); err != nil {
			fmt.Fprintf(stderr, "cp: %v\n", err)
			return ExitFailure
		}
		return ExitOK
	}

	dir := args[len(args)-1]
	if info, err := os.Stat(dir); err != nil {
		fmt.Fprintf(stderr, "cp: %v\n", err)
		return ExitFailure
	} else if !info.IsDir() {
		fmt.Fprintf(stderr, "cp: not a directory: %s\n", dir)
		return ExitFailure
	}

	status := ExitOK
	for _, in := range args[:len(args)-1] {
		if err := copyFile(in, filepath.Join(dir, filepath.Base(in))); err != nil {
			fmt.Fprintf(stderr, "cp: %v\n", err)
			status = ExitFailure
		}
	}
	return status
}

// copyFile copies from into to, creating or truncating to. On Linux the
// copy goes through copy_file_range/sendfile via (*os.File).ReadFrom.
func copyFile(from, to string) (err error) {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s to %s: %w", from, to, err)
	}
	return nil
}
