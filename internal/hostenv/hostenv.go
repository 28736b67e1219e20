// Package hostenv captures the host process environment once at start-up.
//
// A Snapshot is immutable after construction and is safe for concurrent use.
// It is the default, inheritable environment handed to build scripts.
package hostenv

import (
	"os"
	"strings"
)

// Snapshot is a read-only view of an environment block.
type Snapshot struct {
	vars map[string]string

	// keys preserves first-seen order so iteration is stable.
	keys []string
}

// Capture enumerates the current process environment.
func Capture() *Snapshot {
	return FromEnviron(os.Environ())
}

// FromEnviron builds a Snapshot from KEY=VALUE entries.
//
// Each entry is split on its first '='. Entries without '=' are skipped.
// When a name appears more than once the last value wins.
func FromEnviron(entries []string) *Snapshot {
	s := &Snapshot{
		vars: make(map[string]string, len(entries)),
		keys: make([]string, 0, len(entries)),
	}

	for _, entry := range entries {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if _, seen := s.vars[name]; !seen {
			s.keys = append(s.keys, name)
		}
		s.vars[name] = value
	}

	return s
}

// Lookup returns the value for name.
func (s *Snapshot) Lookup(name string) (string, bool) {
	v, ok := s.vars[name]
	return v, ok
}

// Len returns the number of variables.
func (s *Snapshot) Len() int {
	return len(s.keys)
}

// Keys returns variable names in first-seen order.
func (s *Snapshot) Keys() []string {
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// Each calls fn for every variable in first-seen order.
// Iteration stops early if fn returns false.
func (s *Snapshot) Each(fn func(name, value string) bool) {
	for _, k := range s.keys {
		if !fn(k, s.vars[k]) {
			return
		}
	}
}

// Environ returns the snapshot flattened to KEY=VALUE entries.
// The returned slice is a fresh copy owned by the caller.
func (s *Snapshot) Environ() []string {
	out := make([]string, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k+"="+s.vars[k])
	}
	return out
}

// Map returns a copy of the variables as a map.
func (s *Snapshot) Map() map[string]string {
	m := make(map[string]string, len(s.vars))
	for k, v := range s.vars {
		m[k] = v
	}
	return m
}
