package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Enumerable walks the key/value pairs of a Lua value.
type Enumerable interface {
	// Each calls fn for every pair until the enumeration ends or fn returns
	// an error, which Each then returns.
	Each(fn func(k, v lua.LValue) error) error
}

// Enumerate probes v once and returns the matching enumeration strategy.
//
// A value whose metatable has a callable __pairs is walked through the
// iterator triple that __pairs returns. Any other table is walked in raw
// table order. A __pairs metafield that is present but not a function is
// ignored.
func Enumerate(L *lua.LState, v lua.LValue) (Enumerable, error) {
	if mm := L.GetMetaField(v, "__pairs"); mm.Type() == lua.LTFunction {
		return &iteratorEnumerable{L: L, subject: v, pairs: mm}, nil
	}

	tb, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotEnumerable, v.Type())
	}
	return tableEnumerable{tb}, nil
}

type tableEnumerable struct {
	tb *lua.LTable
}

func (e tableEnumerable) Each(fn func(k, v lua.LValue) error) error {
	for k, v := e.tb.Next(lua.LNil); k != lua.LNil; k, v = e.tb.Next(k) {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// iteratorEnumerable drives the generic-for protocol by hand:
// iter, state, ctrl = __pairs(subject), then k, v = iter(state, ctrl) until
// k is nil.
type iteratorEnumerable struct {
	L       *lua.LState
	subject lua.LValue
	pairs   lua.LValue
}

func (e *iteratorEnumerable) Each(fn func(k, v lua.LValue) error) error {
	L := e.L

	iter, state, ctrl, err := e.triple()
	if err != nil {
		return err
	}

	for {
		if err := L.CallByParam(lua.P{Fn: iter, NRet: 2, Protect: true}, state, ctrl); err != nil {
			return err
		}
		k, v := L.Get(-2), L.Get(-1)
		L.Pop(2)

		if k == lua.LNil {
			return nil
		}
		if err := fn(k, v); err != nil {
			return err
		}
		ctrl = k
	}
}

func (e *iteratorEnumerable) triple() (iter, state, ctrl lua.LValue, err error) {
	L := e.L

	if err := L.CallByParam(lua.P{Fn: e.pairs, NRet: 3, Protect: true}, e.subject); err != nil {
		return nil, nil, nil, err
	}
	iter, state, ctrl = L.Get(-3), L.Get(-2), L.Get(-1)
	L.Pop(3)

	if iter.Type() != lua.LTFunction {
		return nil, nil, nil, fmt.Errorf("%w: __pairs returned %s, want function", ErrNotEnumerable, iter.Type())
	}
	if state == lua.LNil {
		state = e.subject
	}
	return iter, state, ctrl, nil
}

// installPairs replaces the global pairs with one that honors __pairs.
// gopher-lua's own pairs only accepts plain tables.
func installPairs(L *lua.LState) {
	L.SetGlobal("pairs", L.NewClosure(luaPairs, L.GetGlobal("next")))
}

func luaPairs(L *lua.LState) int {
	v := L.CheckAny(1)

	if mm := L.GetMetaField(v, "__pairs"); mm.Type() == lua.LTFunction {
		L.Push(mm)
		L.Push(v)
		L.Call(1, 3)
		return 3
	}

	tb := L.CheckTable(1)
	L.Push(L.Get(lua.UpvalueIndex(1)))
	L.Push(tb)
	L.Push(lua.LNil)
	return 3
}
