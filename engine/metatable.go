package engine

import (
	lua "github.com/yuin/gopher-lua"

	luaruntime "github.com/wippyai/lua-runtime"
	"github.com/wippyai/lua-runtime/errors"
)

// MetaEntry is one metamethod or metafield to install. Exactly one of
// Value and Fn should be set; Fn wins when both are.
type MetaEntry struct {
	Name  string
	Value luaruntime.Value
	Fn    HostFunc
}

// InstallMetatable attaches a metatable to the table bound under the
// global name. The target must already exist and be a table; the entries
// are installed on a fresh metatable, replacing any previous one. Function
// entries route through the host-call bridge under a reserved name, so
// re-registration and async exclusivity apply to them as well.
func (s *State) InstallMetatable(globalName string, entries []MetaEntry) error {
	target := s.L.GetGlobal(globalName)
	if target == lua.LNil {
		return errors.NotFound(errors.PhaseHost, "global", globalName)
	}
	tbl, ok := target.(*lua.LTable)
	if !ok {
		return errors.NotTable(globalName, target.Type().String())
	}

	mt := s.L.NewTable()
	for _, e := range entries {
		if e.Name == "" {
			return errors.InvalidInput(errors.PhaseHost, "metatable entry name must not be empty")
		}
		if e.Fn != nil {
			key := "__meta." + globalName + "." + e.Name
			s.hostMu.Lock()
			s.hostFuncs[key] = e.Fn
			s.hostMu.Unlock()
			s.L.SetField(mt, e.Name, s.L.NewFunction(s.trampoline(key)))
			continue
		}
		lv, err := s.ToLua(e.Value, 0)
		if err != nil {
			return err
		}
		s.L.SetField(mt, e.Name, lv)
	}

	s.L.SetMetatable(tbl, mt)
	return nil
}
