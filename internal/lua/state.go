// Package lua hosts build scripts on gopher-lua and exposes host primitives
// to them through the __ORO__ table.
package lua

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// State wraps gopher-lua with the standard libraries opened and pairs
// upgraded to honor __pairs.
//
// gopher-lua's LState is not goroutine-safe. The mutex serializes calls made
// through State; code that uses LuaState directly must do its own locking.
type State struct {
	L *lua.LState

	mu     sync.Mutex
	ctx    context.Context
	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithContext makes running scripts abort once ctx is done.
func WithContext(ctx context.Context) StateOption {
	return func(s *State) {
		s.ctx = ctx
	}
}

// NewState creates a Lua state with every standard library opened.
func NewState(opts ...StateOption) *State {
	s := &State{}
	for _, opt := range opts {
		opt(s)
	}

	s.L = lua.NewState()
	installPairs(s.L)
	if s.ctx != nil {
		s.L.SetContext(s.ctx)
	}
	return s
}

// DoFile loads and runs a script.
//
// A script that cannot be read or compiled yields a *LoadError. Runtime
// errors are returned as *lua.ApiError, whose message carries the Lua
// traceback.
func (s *State) DoFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	fn, err := s.L.LoadFile(path)
	if err != nil {
		return &LoadError{Path: path, Err: err}
	}
	return s.call(fn)
}

// DoString runs a chunk of Lua source.
func (s *State) DoString(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	fn, err := s.L.LoadString(code)
	if err != nil {
		return &LoadError{Path: "<string>", Err: err}
	}
	return s.call(fn)
}

// call runs fn with panic recovery. gopher-lua converts Lua errors into
// *ApiError itself; the recover only guards against Go panics escaping from
// host functions.
func (s *State) call(fn *lua.LFunction) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	s.L.Push(fn)
	return s.L.PCall(0, lua.MultRet, nil)
}

// Close releases all resources associated with the Lua state.
// After Close is called, all other methods will return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.L.Close()
	s.closed = true
	return nil
}
