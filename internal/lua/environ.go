package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/oro/internal/process"
)

// Environer is implemented by userdata values that can hand over a ready
// KEY=VALUE list, bypassing enumeration.
type Environer interface {
	Environ() []string
}

// MarshalEnviron flattens a Lua value into KEY=VALUE entries for a child
// process environment.
//
// An override is checked first: userdata wrapping an Environer, or a value
// whose metatable carries __environ (a string array, or a function returning
// one). Without an override the value is enumerated; pairs with a number key
// contribute their value verbatim, any other pair contributes key=value.
func MarshalEnviron(L *lua.LState, src lua.LValue) ([]string, error) {
	if ud, ok := src.(*lua.LUserData); ok {
		if e, ok := ud.Value.(Environer); ok {
			entries := e.Environ()
			out := make([]string, len(entries))
			copy(out, entries)
			return out, nil
		}
	}

	if mm := L.GetMetaField(src, "__environ"); mm != lua.LNil {
		return environOverride(L, src, mm)
	}

	en, err := Enumerate(L, src)
	if err != nil {
		return nil, fmt.Errorf("%w: env: %w", process.ErrInvalidArgument, err)
	}

	var out []string
	err = en.Each(func(k, v lua.LValue) error {
		if k.Type() == lua.LTNumber {
			s, err := envString(v, "entry "+lua.LVAsString(k))
			if err != nil {
				return err
			}
			out = append(out, s)
			return nil
		}

		name, err := envString(k, "key")
		if err != nil {
			return err
		}
		value, err := envString(v, "value of "+name)
		if err != nil {
			return err
		}
		out = append(out, name+"="+value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func environOverride(L *lua.LState, src, mm lua.LValue) ([]string, error) {
	list := mm
	if mm.Type() == lua.LTFunction {
		if err := L.CallByParam(lua.P{Fn: mm, NRet: 1, Protect: true}, src); err != nil {
			return nil, err
		}
		list = L.Get(-1)
		L.Pop(1)
	}

	tb, ok := list.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: env: __environ must yield a table, got %s", process.ErrInvalidArgument, list.Type())
	}

	n := tb.Len()
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		s, err := envString(tb.RawGetInt(i), fmt.Sprintf("__environ entry %d", i))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func envString(v lua.LValue, what string) (string, error) {
	if !lua.LVCanConvToString(v) {
		return "", fmt.Errorf("%w: env %s must be a string or number, got %s", process.ErrInvalidArgument, what, v.Type())
	}
	return lua.LVAsString(v), nil
}
