package lua

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	lfs "layeh.com/gopher-lfs"

	"github.com/dshills/oro/internal/hostenv"
	"github.com/dshills/oro/internal/logging"
	"github.com/dshills/oro/internal/pathsearch"
	"github.com/dshills/oro/internal/process"
)

// GlobalName is the global that holds the host table.
const GlobalName = "__ORO__"

// Host exposes process spawning, path resolution and the host environment to
// build scripts.
type Host struct {
	// Spawner runs execute() calls. Required.
	Spawner *process.Spawner
	// Env is the snapshot published as __ORO__.env. Required.
	Env *hostenv.Snapshot

	RootDir     string
	BinDir      string
	BuildScript string
	// Args are the arguments left after the build script.
	Args []string

	// Delimiter is the default search_path delimiter set. Empty means the
	// platform list separator.
	Delimiter string
	// PackagePath holds extra package.path templates, searched after the
	// root directory ones.
	PackagePath []string

	Logger *logging.Logger
}

// Install publishes the host table as __ORO__ and points package.path at the
// root directory. LuaFileSystem is reachable as __ORO__.lfs only; no global
// lfs is left behind.
func (h *Host) Install(s *State) error {
	log := h.Logger
	if log == nil {
		log = logging.Nop()
	}
	log = log.WithComponent("lua")

	s.mu.Lock()
	defer s.mu.Unlock()

	L := s.L
	b := NewBridge(L)

	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"execute":     h.execute,
		"search_path": h.searchPath,
		"split":       split,
	})
	mod.RawSetString("root_dir", lua.LString(h.RootDir))
	mod.RawSetString("bin_dir", lua.LString(h.BinDir))
	mod.RawSetString("build_script", lua.LString(h.BuildScript))
	mod.RawSetString("arg", b.StringSlice(h.Args))
	mod.RawSetString("env", newEnvProxy(L, h.Env))

	fsmod, err := requireLFS(L)
	if err != nil {
		return fmt.Errorf("load lfs: %w", err)
	}
	mod.RawSetString("lfs", fsmod)

	L.SetGlobal(GlobalName, mod)

	path := h.packagePath()
	L.SetField(L.GetGlobal("package"), "path", lua.LString(path))

	log.Debug("host installed", logging.Fields(
		"root_dir", h.RootDir,
		"package_path", path,
		"env_vars", h.Env.Len(),
	))
	return nil
}

// requireLFS loads gopher-lfs through require so package.loaded.lfs is
// populated the same way a script's own require would.
func requireLFS(L *lua.LState) (lua.LValue, error) {
	lfs.Preload(L)
	if err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal("require"),
		NRet:    1,
		Protect: true,
	}, lua.LString("lfs")); err != nil {
		return nil, err
	}
	mod := L.Get(-1)
	L.Pop(1)
	L.SetGlobal("lfs", lua.LNil)
	return mod, nil
}

// packagePath resolves `require "a.b"` to <root>/a/b.lua, and a directory
// module to its <root>/a/b/_.lua index.
func (h *Host) packagePath() string {
	parts := []string{h.RootDir + "/?.lua", h.RootDir + "/?/_.lua"}
	parts = append(parts, h.PackagePath...)
	return strings.Join(parts, ";")
}

// execute(cmd [, opts]) -> code, stdout, stderr
//
// Options are read from opts when given, otherwise from cmd itself:
// env (table, or nil to inherit), stdin (string) and raise (boolean,
// default true).
func (h *Host) execute(L *lua.LState) int {
	cmd := L.CheckTable(1)
	opts := cmd
	if L.GetTop() >= 2 && L.Get(2) != lua.LNil {
		opts = L.CheckTable(2)
	}

	argv, bad, ok := NewBridge(L).TableStrings(cmd)
	if !ok {
		L.ArgError(1, fmt.Sprintf("command element %d must be a string", bad))
		return 0
	}

	req := process.Request{Command: argv}

	if v := L.GetField(opts, "raise"); v != lua.LNil {
		req.AllowNonZero = !lua.LVAsBool(v)
	}

	switch v := L.GetField(opts, "env"); v.Type() {
	case lua.LTNil:
	case lua.LTTable, lua.LTUserData:
		entries, err := MarshalEnviron(L, v)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		req.Env = process.ExplicitEnv(entries)
	default:
		L.RaiseError("`env` option must either be nil or a table")
		return 0
	}

	if v := L.GetField(opts, "stdin"); v != lua.LNil {
		if !lua.LVCanConvToString(v) {
			L.RaiseError("`stdin` option must be a string, got %s", v.Type())
			return 0
		}
		req.Stdin = []byte(lua.LVAsString(v))
	}

	res, err := h.Spawner.Execute(req)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}

	L.Push(lua.LNumber(res.ExitCode))
	L.Push(lua.LString(res.Stdout))
	L.Push(lua.LString(res.Stderr))
	return 3
}

// search_path(name, path [, delim]) -> path | nil
func (h *Host) searchPath(L *lua.LState) int {
	name := L.CheckString(1)
	path := L.CheckString(2)

	// An explicit "" means no splitting; only an absent argument takes the
	// default.
	delim := h.Delimiter
	if delim == "" {
		delim = pathsearch.ListSeparator
	}
	if L.GetTop() >= 3 && L.Get(3) != lua.LNil {
		delim = L.CheckString(3)
	}

	resolved, found, err := pathsearch.Resolve(name, path, delim)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	if !found {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(resolved))
	return 1
}

// split(str, delims) -> { tokens... }
func split(L *lua.LState) int {
	str := L.CheckString(1)
	delims := L.CheckString(2)
	L.Push(NewBridge(L).StringSlice(pathsearch.Split(str, delims)))
	return 1
}

// newEnvProxy returns an empty table whose metatable serves the snapshot
// read-only. pairs() walks the snapshot in capture order and execute's env
// marshalling takes the flattened list through __environ.
func newEnvProxy(L *lua.LState, snap *hostenv.Snapshot) *lua.LTable {
	keys := snap.Keys()
	index := make(map[string]int, len(keys))
	for i, k := range keys {
		index[k] = i
	}

	next := func(L *lua.LState) int {
		i := 0
		if ctrl := L.Get(2); ctrl != lua.LNil {
			j, ok := index[lua.LVAsString(ctrl)]
			if !ok {
				L.RaiseError("invalid key to 'next'")
				return 0
			}
			i = j + 1
		}
		if i >= len(keys) {
			L.Push(lua.LNil)
			return 1
		}
		v, _ := snap.Lookup(keys[i])
		L.Push(lua.LString(keys[i]))
		L.Push(lua.LString(v))
		return 2
	}

	mt := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"__index": func(L *lua.LState) int {
			k := L.Get(2)
			if !lua.LVCanConvToString(k) {
				L.Push(lua.LNil)
				return 1
			}
			if v, ok := snap.Lookup(lua.LVAsString(k)); ok {
				L.Push(lua.LString(v))
				return 1
			}
			L.Push(lua.LNil)
			return 1
		},
		"__newindex": func(L *lua.LState) int {
			L.RaiseError("%s.env is read-only", GlobalName)
			return 0
		},
		"__pairs": func(L *lua.LState) int {
			L.Push(L.NewFunction(next))
			L.Push(L.Get(1))
			L.Push(lua.LNil)
			return 3
		},
		"__len": func(L *lua.LState) int {
			L.Push(lua.LNumber(snap.Len()))
			return 1
		},
		"__environ": func(L *lua.LState) int {
			L.Push(NewBridge(L).StringSlice(snap.Environ()))
			return 1
		},
	})

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}
