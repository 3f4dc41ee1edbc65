package engine

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	luaruntime "github.com/wippyai/lua-runtime"
	"github.com/wippyai/lua-runtime/errors"
)

// Module declares a named module loadable via require. Values are plain
// exports; Funcs route through the host-call bridge.
type Module struct {
	Name   string
	Values map[string]luaruntime.Value
	Funcs  map[string]HostFunc
}

// RegisterModule preloads the module so require(name) resolves it without
// touching the search path. The state must have the package library open.
func (s *State) RegisterModule(m Module) error {
	if m.Name == "" {
		return errors.InvalidInput(errors.PhaseLoad, "module name must not be empty")
	}
	if s.L.GetGlobal("package") == lua.LNil {
		return errors.Load("registering a module requires the package library", nil)
	}

	for name, fn := range m.Funcs {
		if fn == nil {
			return errors.InvalidInput(errors.PhaseLoad, "module function "+name+" must not be nil")
		}
		key := m.Name + "." + name
		s.hostMu.Lock()
		s.hostFuncs[key] = fn
		s.hostMu.Unlock()
	}

	s.L.PreloadModule(m.Name, func(L *lua.LState) int {
		exports := L.NewTable()
		for name, v := range m.Values {
			lv, err := s.ToLua(v, 0)
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.SetField(exports, name, lv)
		}
		for name := range m.Funcs {
			L.SetField(exports, name, L.NewFunction(s.trampoline(m.Name+"."+name)))
		}
		L.Push(exports)
		return 1
	})

	Logger().Debug("module preloaded", zap.String("module", m.Name))
	return nil
}

// AddSearchPath appends a pattern to package.path. The pattern must carry
// at least one "?" placeholder for the module name.
func (s *State) AddSearchPath(pattern string) error {
	if !strings.Contains(pattern, "?") {
		return errors.BadSearchPath(pattern)
	}
	pkg := s.L.GetGlobal("package")
	tbl, ok := pkg.(*lua.LTable)
	if !ok {
		return errors.Load("adding a search path requires the package library", nil)
	}

	current := ""
	if ps, ok := s.L.GetField(tbl, "path").(lua.LString); ok {
		current = string(ps)
	}
	if current == "" {
		s.L.SetField(tbl, "path", lua.LString(pattern))
	} else {
		s.L.SetField(tbl, "path", lua.LString(current+";"+pattern))
	}
	return nil
}
