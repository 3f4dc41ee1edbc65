package engine

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	luaruntime "github.com/wippyai/lua-runtime"
	"github.com/wippyai/lua-runtime/errors"
	"github.com/wippyai/lua-runtime/registry"
)

// PropertyGetter is implemented by host objects whose properties scripts
// may read through a proxy binding.
type PropertyGetter interface {
	GetProperty(name string) (luaruntime.Value, error)
}

// PropertySetter is implemented by host objects whose properties scripts
// may assign through a proxy binding.
type PropertySetter interface {
	SetProperty(name string, value luaruntime.Value) error
}

// BindOptions controls how a host object appears to scripts.
type BindOptions struct {
	// Opaque objects carry no property access at all; indexing raises an
	// error. Readable and Writable are ignored for opaque bindings.
	Opaque bool

	// Readable permits property reads via GetProperty.
	Readable bool

	// Writable permits property assignment via SetProperty.
	Writable bool
}

// BindObject wraps obj in a userdata value, binds it under the global name,
// and returns a handle owning the underlying registry slot. The handle and
// the global reference share one slot; releasing the handle drops the host
// side's claim while the script-visible userdata stays usable until the
// slot's count reaches zero.
func (s *State) BindObject(name string, obj any, opts BindOptions) (*luaruntime.Handle, error) {
	if obj == nil {
		return nil, errors.InvalidInput(errors.PhaseHost, "bound object must not be nil")
	}
	if opts.Opaque {
		opts.Readable = false
		opts.Writable = false
	} else {
		if opts.Readable {
			if _, ok := obj.(PropertyGetter); !ok {
				return nil, errors.InvalidInput(errors.PhaseHost,
					"readable binding requires a PropertyGetter")
			}
		}
		if opts.Writable {
			if _, ok := obj.(PropertySetter); !ok {
				return nil, errors.InvalidInput(errors.PhaseHost,
					"writable binding requires a PropertySetter")
			}
		}
	}

	id := s.refs.CreateHandle(obj, opts.Readable, opts.Writable, func(id uint32, _ any) {
		delete(s.wrappers, id)
		Logger().Debug("host object released", zap.Uint32("id", id))
	})

	ud := s.L.NewUserData()
	ud.Value = &udBox{id: id, proxy: !opts.Opaque}
	if opts.Opaque {
		s.L.SetMetatable(ud, s.opaqueMetatable())
	} else {
		s.L.SetMetatable(ud, s.proxyMetatable())
	}
	s.wrappers[id] = ud

	if name != "" {
		s.L.SetGlobal(name, ud)
	}

	// The returned handle is a second owner alongside the wrapper. Opaque
	// on the handle is reserved for runtime-created userdata; a host object
	// bound without a proxy reports Proxy()==false instead.
	s.refs.Increment(id)
	return luaruntime.NewUserdataHandle(id, s.refs, false, !opts.Opaque,
		opts.Readable, opts.Writable), nil
}

// proxyMetatable lazily builds the metatable shared by every proxy
// binding. Access checks run per call against the slot's permissions, so
// one table serves objects with different capabilities.
func (s *State) proxyMetatable() *lua.LTable {
	if s.proxyMT != nil {
		return s.proxyMT
	}
	mt := s.L.NewTable()
	s.L.SetField(mt, "__index", s.L.NewFunction(s.proxyIndex))
	s.L.SetField(mt, "__newindex", s.L.NewFunction(s.proxyNewIndex))
	s.L.SetField(mt, "__metatable", lua.LString("protected"))
	s.proxyMT = mt
	return mt
}

func (s *State) opaqueMetatable() *lua.LTable {
	if s.opaqueMT != nil {
		return s.opaqueMT
	}
	mt := s.L.NewTable()
	raise := func(L *lua.LState) int {
		id := uint32(0)
		if ud, ok := L.Get(1).(*lua.LUserData); ok {
			if box, ok := ud.Value.(*udBox); ok {
				id = box.id
			}
		}
		L.RaiseError("%s", errors.NotIndexable(id).Error())
		return 0
	}
	s.L.SetField(mt, "__index", s.L.NewFunction(raise))
	s.L.SetField(mt, "__newindex", s.L.NewFunction(raise))
	s.L.SetField(mt, "__metatable", lua.LString("protected"))
	s.opaqueMT = mt
	return mt
}

func (s *State) proxyIndex(L *lua.LState) int {
	ud := L.CheckUserData(1)
	key := L.CheckString(2)

	box, ho, ok := s.boundObject(L, ud)
	if !ok {
		return 0
	}
	if !ho.Readable {
		L.RaiseError("%s", errors.NotReadable(box.id, key).Error())
		return 0
	}
	getter := ho.Object.(PropertyGetter)

	v, err := s.callGetter(getter, key)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}

	lv, err := s.ToLua(v, 0)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	L.Push(lv)
	return 1
}

func (s *State) proxyNewIndex(L *lua.LState) int {
	ud := L.CheckUserData(1)
	key := L.CheckString(2)
	raw := L.Get(3)

	box, ho, ok := s.boundObject(L, ud)
	if !ok {
		return 0
	}
	if !ho.Writable {
		L.RaiseError("%s", errors.NotWritable(box.id, key).Error())
		return 0
	}
	setter := ho.Object.(PropertySetter)

	v, err := s.FromLua(raw, 0)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	if err := s.callSetter(setter, key, v); err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	return 0
}

// boundObject resolves a proxy userdata back to its host-object slot,
// raising in L when the slot is gone.
func (s *State) boundObject(L *lua.LState, ud *lua.LUserData) (*udBox, registry.HostObject, bool) {
	box, isBox := ud.Value.(*udBox)
	if !isBox {
		L.RaiseError("%s", errors.InvalidHandle(errors.PhaseHost, "userdata is not a host binding").Error())
		return nil, registry.HostObject{}, false
	}
	ho, found := s.refs.HostObject(box.id)
	if !found {
		L.RaiseError("%s", errors.InvalidHandle(errors.PhaseHost, "host object has been released").Error())
		return nil, registry.HostObject{}, false
	}
	return box, ho, true
}

func (s *State) callGetter(g PropertyGetter, key string) (v luaruntime.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.HostFault("property get "+key, fmt.Errorf("%v", r))
		}
	}()
	return g.GetProperty(key)
}

func (s *State) callSetter(st PropertySetter, key string, v luaruntime.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.HostFault("property set "+key, fmt.Errorf("%v", r))
		}
	}()
	return st.SetProperty(key, v)
}
