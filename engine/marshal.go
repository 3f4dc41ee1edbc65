package engine

import (
	"math"
	"strconv"

	lua "github.com/yuin/gopher-lua"

	luaruntime "github.com/wippyai/lua-runtime"
	"github.com/wippyai/lua-runtime/errors"
	"github.com/wippyai/lua-runtime/registry"
)

// MaxNestingDepth bounds recursive marshalling in both directions.
const MaxNestingDepth = 100

// udBox tags userdata created by this bridge so the marshaller can route it
// back to its host-object slot.
type udBox struct {
	id    uint32
	proxy bool
}

// FromLua converts a Lua value into the host-neutral model. depth counts
// recursive descents into aggregates; exceeding MaxNestingDepth fails with
// depth_exceeded rather than recursing unboundedly.
func (s *State) FromLua(lv lua.LValue, depth int) (luaruntime.Value, error) {
	if depth > MaxNestingDepth {
		return luaruntime.Nil(), errors.DepthExceeded(errors.PhaseMarshal, depth)
	}

	switch v := lv.(type) {
	case *lua.LNilType:
		return luaruntime.Nil(), nil
	case lua.LBool:
		return luaruntime.Bool(bool(v)), nil
	case lua.LNumber:
		f := float64(v)
		if i, ok := exactInt64(f); ok {
			return luaruntime.Int(i), nil
		}
		return luaruntime.Float(f), nil
	case lua.LString:
		// Byte-for-byte; Lua strings are not assumed to be valid text.
		return luaruntime.Str(string(v)), nil
	case *lua.LTable:
		if s.L.GetMetatable(v) != lua.LNil {
			// Attached behavior must stay live: preserve by reference.
			id := s.refs.Insert(registry.SlotTable, v)
			return luaruntime.TableValue(luaruntime.NewHandle(id, s.refs)), nil
		}
		return s.tableToValue(v, depth)
	case *lua.LFunction:
		id := s.refs.Insert(registry.SlotFunction, v)
		return luaruntime.FuncValue(luaruntime.NewHandle(id, s.refs)), nil
	case *lua.LState:
		id := s.refs.Insert(registry.SlotThread, v)
		return luaruntime.ThreadValue(luaruntime.NewHandle(id, s.refs)), nil
	case *lua.LUserData:
		return s.userdataToValue(v)
	default:
		return luaruntime.Nil(), errors.New(errors.PhaseMarshal, errors.KindUnsupported).
			LuaType(lv.Type().String()).
			Detail("value cannot cross the boundary").
			Build()
	}
}

// tableToValue structurally copies a table without attached behavior. Keys
// forming the contiguous sequence 1..N produce a Sequence; any other key
// set produces a Map with stringified keys. Non-string, non-number keys are
// skipped, matching the reference marshaller.
func (s *State) tableToValue(tbl *lua.LTable, depth int) (luaruntime.Value, error) {
	count := 0
	maxIndex := int64(0)
	sequential := true

	key := lua.LValue(lua.LNil)
	for {
		k, _ := tbl.Next(key)
		if k == lua.LNil {
			break
		}
		key = k

		switch kv := k.(type) {
		case lua.LNumber:
			count++
			if i, ok := exactInt64(float64(kv)); ok && i >= 1 {
				if i > maxIndex {
					maxIndex = i
				}
			} else {
				sequential = false
			}
		case lua.LString:
			count++
			sequential = false
		default:
			// Unrepresentable key; the entry is dropped from the copy,
			// but its presence still disqualifies the sequence form.
			sequential = false
		}
	}

	if sequential && maxIndex == int64(count) {
		items := make([]luaruntime.Value, 0, count)
		for i := 1; i <= count; i++ {
			item, err := s.FromLua(tbl.RawGetInt(i), depth+1)
			if err != nil {
				return luaruntime.Nil(), err
			}
			items = append(items, item)
		}
		return luaruntime.Seq(items), nil
	}

	m := make(map[string]luaruntime.Value, count)
	key = lua.LNil
	for {
		k, v := tbl.Next(key)
		if k == lua.LNil {
			break
		}
		key = k

		ks, ok := tableKeyString(k)
		if !ok {
			continue
		}
		mv, err := s.FromLua(v, depth+1)
		if err != nil {
			return luaruntime.Nil(), err
		}
		m[ks] = mv
	}
	return luaruntime.MapOf(m), nil
}

func (s *State) userdataToValue(ud *lua.LUserData) (luaruntime.Value, error) {
	if box, ok := ud.Value.(*udBox); ok {
		ho, found := s.refs.HostObject(box.id)
		if !found {
			return luaruntime.Nil(), errors.InvalidHandle(errors.PhaseMarshal,
				"userdata references a released host object")
		}
		// The new handle is one more owner of the slot.
		s.refs.Increment(box.id)
		h := luaruntime.NewUserdataHandle(box.id, s.refs, false, box.proxy, ho.Readable, ho.Writable)
		return luaruntime.UserdataValue(h), nil
	}

	// Created inside the embedded runtime: keep it alive via a slot and
	// round-trip it untouched.
	id := s.refs.Insert(registry.SlotForeign, ud)
	h := luaruntime.NewUserdataHandle(id, s.refs, true, false, false, false)
	return luaruntime.UserdataValue(h), nil
}

// ToLua converts a host-neutral value into a Lua value, re-materializing
// handles from their registry slots. The same depth cap applies.
func (s *State) ToLua(v luaruntime.Value, depth int) (lua.LValue, error) {
	if depth > MaxNestingDepth {
		return lua.LNil, errors.DepthExceeded(errors.PhasePush, depth)
	}

	switch v.Kind() {
	case luaruntime.KindNil:
		return lua.LNil, nil
	case luaruntime.KindBool:
		return lua.LBool(v.Bool()), nil
	case luaruntime.KindInt64:
		return lua.LNumber(float64(v.Int64())), nil
	case luaruntime.KindFloat64:
		return lua.LNumber(v.Float64()), nil
	case luaruntime.KindString:
		return lua.LString(v.Str()), nil
	case luaruntime.KindSequence:
		tbl := s.L.CreateTable(len(v.Sequence()), 0)
		for i, item := range v.Sequence() {
			lv, err := s.ToLua(item, depth+1)
			if err != nil {
				return lua.LNil, err
			}
			tbl.RawSetInt(i+1, lv)
		}
		return tbl, nil
	case luaruntime.KindMap:
		tbl := s.L.CreateTable(0, len(v.Map()))
		for k, item := range v.Map() {
			lv, err := s.ToLua(item, depth+1)
			if err != nil {
				return lua.LNil, err
			}
			tbl.RawSetString(k, lv)
		}
		return tbl, nil
	case luaruntime.KindFunction:
		raw, err := s.slotForHandle(v.Handle(), registry.SlotFunction)
		if err != nil {
			return lua.LNil, err
		}
		return raw.(*lua.LFunction), nil
	case luaruntime.KindTable:
		raw, err := s.slotForHandle(v.Handle(), registry.SlotTable)
		if err != nil {
			return lua.LNil, err
		}
		return raw.(*lua.LTable), nil
	case luaruntime.KindThread:
		return s.threadToLua(v.Handle())
	case luaruntime.KindUserdata:
		return s.userdataToLua(v.Handle())
	default:
		return lua.LNil, errors.Unsupported(errors.PhasePush, "unknown value kind")
	}
}

func (s *State) slotForHandle(h *luaruntime.Handle, kind registry.SlotKind) (any, error) {
	if !h.Valid() {
		return nil, errors.InvalidHandle(errors.PhasePush, "handle has been released")
	}
	raw, ok := s.refs.GetTyped(h.ID(), kind)
	if !ok {
		return nil, errors.NotFound(errors.PhaseRegistry, "slot", strconv.Itoa(int(h.ID())))
	}
	return raw, nil
}

func (s *State) threadToLua(h *luaruntime.Handle) (lua.LValue, error) {
	raw, err := s.slotForHandle(h, registry.SlotThread)
	if err != nil {
		return lua.LNil, err
	}
	switch t := raw.(type) {
	case *thread:
		return t.co, nil
	case *lua.LState:
		return t, nil
	}
	return lua.LNil, errors.InvalidHandle(errors.PhasePush, "thread slot holds an unexpected value")
}

func (s *State) userdataToLua(h *luaruntime.Handle) (lua.LValue, error) {
	if !h.Valid() {
		return lua.LNil, errors.InvalidHandle(errors.PhasePush, "handle has been released")
	}
	if ud, ok := s.wrappers[h.ID()]; ok {
		// Pushing a host-owned handle back in adds one embedded-side
		// owner, keeping the finalizer obligation balanced.
		s.refs.Increment(h.ID())
		return ud, nil
	}
	raw, ok := s.refs.GetTyped(h.ID(), registry.SlotForeign)
	if !ok {
		return lua.LNil, errors.NotFound(errors.PhaseRegistry, "slot", strconv.Itoa(int(h.ID())))
	}
	return raw.(*lua.LUserData), nil
}

// PushValue marshals v and pushes it onto L's stack.
func (s *State) PushValue(L *lua.LState, v luaruntime.Value) error {
	lv, err := s.ToLua(v, 0)
	if err != nil {
		return err
	}
	L.Push(lv)
	return nil
}

// StackValue marshals the value at stack position idx of L.
func (s *State) StackValue(L *lua.LState, idx int) (luaruntime.Value, error) {
	return s.FromLua(L.Get(idx), 0)
}

func exactInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f != math.Trunc(f) {
		return 0, false
	}
	if f < -9223372036854775808.0 || f >= 9223372036854775808.0 {
		return 0, false
	}
	return int64(f), true
}

// tableKeyString renders a table key the way Lua's tostring would: integral
// numbers without a fraction, others in %.14g form.
func tableKeyString(k lua.LValue) (string, bool) {
	switch kv := k.(type) {
	case lua.LString:
		return string(kv), true
	case lua.LNumber:
		f := float64(kv)
		if i, ok := exactInt64(f); ok {
			return strconv.FormatInt(i, 10), true
		}
		return strconv.FormatFloat(f, 'g', 14, 64), true
	default:
		return "", false
	}
}
