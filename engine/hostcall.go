package engine

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	luaruntime "github.com/wippyai/lua-runtime"
	"github.com/wippyai/lua-runtime/errors"
)

// HostFunc is a host-side function callable from scripts. Arguments arrive
// already marshalled; returned values are expanded into Lua multi-returns.
// A returned error aborts the calling script with the error's message.
type HostFunc func(args []luaruntime.Value) ([]luaruntime.Value, error)

// RegisterFunction exposes fn as a global. Registering the same name again
// replaces the previous function; calls in flight resolve the name at call
// time, so they observe the replacement too.
func (s *State) RegisterFunction(name string, fn HostFunc) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseHost, "function name must not be empty")
	}
	if fn == nil {
		return errors.InvalidInput(errors.PhaseHost, "function must not be nil")
	}

	s.hostMu.Lock()
	_, replaced := s.hostFuncs[name]
	s.hostFuncs[name] = fn
	s.hostMu.Unlock()

	s.L.SetGlobal(name, s.L.NewFunction(s.trampoline(name)))

	Logger().Debug("host function registered",
		zap.String("name", name),
		zap.Bool("replaced", replaced))
	return nil
}

// trampoline bridges a Lua call into the named host function. It marshals
// from the calling state (which may be a coroutine, not the root state) so
// yields and resumes see consistent stacks.
func (s *State) trampoline(name string) lua.LGFunction {
	return func(L *lua.LState) int {
		if s.asyncMode.Load() {
			L.RaiseError("%s", errors.AsyncUnavailable(name).Error())
			return 0
		}

		s.hostMu.RLock()
		fn, ok := s.hostFuncs[name]
		s.hostMu.RUnlock()
		if !ok {
			L.RaiseError("%s", errors.NotFound(errors.PhaseHost, "function", name).Error())
			return 0
		}

		top := L.GetTop()
		args := make([]luaruntime.Value, 0, top)
		for i := 1; i <= top; i++ {
			v, err := s.FromLua(L.Get(i), 0)
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			args = append(args, v)
		}

		results, err := s.invokeHost(name, fn, args)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}

		for _, r := range results {
			lv, err := s.ToLua(r, 0)
			if err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(lv)
		}
		return len(results)
	}
}

// invokeHost calls fn, converting a panic into a host_fault error so a
// misbehaving host function cannot unwind through the interpreter.
func (s *State) invokeHost(name string, fn HostFunc, args []luaruntime.Value) (results []luaruntime.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.HostFault(name, fmt.Errorf("%v", r))
		}
	}()
	return fn(args)
}
