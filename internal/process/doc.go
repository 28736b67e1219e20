// Package process spawns child processes for build scripts and captures
// their output.
//
// # Spawner
//
// A Spawner runs one command to completion per Execute call:
//
//	sp := process.NewSpawner(process.WithLogger(log))
//	res, err := sp.Execute(process.Request{
//	    Command: []string{"cc", "-c", "main.c"},
//	    Env:     process.ExplicitEnvMap(map[string]string{"PATH": "/usr/bin"}),
//	    Stdin:   []byte("input"),
//	})
//
// Execute writes the optional stdin payload, drains stdout and stderr
// concurrently until EOF, waits for the child and returns its exit code and
// both captures. A non-zero exit is reported as an *ExitError unless
// Request.AllowNonZero is set. A child that exits without consuming its
// stdin is judged by its exit status alone; the broken pipe is dropped.
//
// # Handles
//
// Every started child is represented by a Handle. The Spawner owns the
// handle for the duration of the call and destroys it exactly once on every
// return path. A failure to destroy after an otherwise successful run turns
// the result into an ErrDestroy error; after a failed run it is ignored.
//
// # Backends
//
// The Backend interface decouples the Spawner from os/exec. ExecBackend is
// the production implementation; tests substitute their own to inject
// failures at each step.
//
// # Thread Safety
//
// A Spawner is safe for concurrent use. Each Execute call owns its handle and
// buffers exclusively.
package process
