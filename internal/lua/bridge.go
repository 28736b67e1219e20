package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// Bridge converts values between Go and Lua.
type Bridge struct {
	L *lua.LState
}

// NewBridge creates a new Bridge for the given Lua state.
func NewBridge(L *lua.LState) *Bridge {
	return &Bridge{L: L}
}

// StringSlice converts a string slice to a Lua array.
func (b *Bridge) StringSlice(s []string) *lua.LTable {
	t := b.L.CreateTable(len(s), 0)
	for i, v := range s {
		t.RawSetInt(i+1, lua.LString(v))
	}
	return t
}

// TableStrings reads t[1..#t] as strings. The index of the first element
// that is not a string or number is returned with ok == false.
func (b *Bridge) TableStrings(t *lua.LTable) (out []string, bad int, ok bool) {
	n := t.Len()
	out = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		v := t.RawGetInt(i)
		if !lua.LVCanConvToString(v) {
			return nil, i, false
		}
		out = append(out, lua.LVAsString(v))
	}
	return out, 0, true
}
