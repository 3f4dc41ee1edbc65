package engine

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	luaruntime "github.com/wippyai/lua-runtime"
	"github.com/wippyai/lua-runtime/errors"
	"github.com/wippyai/lua-runtime/registry"
)

// Library names accepted by Config.Libraries.
const (
	LibBase      = "base"
	LibPackage   = "package"
	LibTable     = "table"
	LibString    = "string"
	LibMath      = "math"
	LibCoroutine = "coroutine"
	LibIO        = "io"
	LibOS        = "os"
	LibDebug     = "debug"
	LibChannel   = "channel"
)

// openOrder fixes the library initialization order; the package library
// must come first so modules registered later can rely on package.preload.
var openOrder = []string{
	LibPackage, LibBase, LibTable, LibString, LibMath,
	LibCoroutine, LibIO, LibOS, LibDebug, LibChannel,
}

var libraryOpeners = map[string]struct {
	luaName string
	open    lua.LGFunction
}{
	LibBase:      {lua.BaseLibName, lua.OpenBase},
	LibPackage:   {lua.LoadLibName, lua.OpenPackage},
	LibTable:     {lua.TabLibName, lua.OpenTable},
	LibString:    {lua.StringLibName, lua.OpenString},
	LibMath:      {lua.MathLibName, lua.OpenMath},
	LibCoroutine: {lua.CoroutineLibName, lua.OpenCoroutine},
	LibIO:        {lua.IoLibName, lua.OpenIo},
	LibOS:        {lua.OsLibName, lua.OpenOs},
	LibDebug:     {lua.DebugLibName, lua.OpenDebug},
	LibChannel:   {lua.ChannelLibName, lua.OpenChannel},
}

// Config controls State construction.
type Config struct {
	// Libraries lists the standard libraries to open, by the Lib* names
	// above. Unknown names fail construction; an empty list builds a bare
	// state. Excluded libraries are never opened, so their globals report
	// as nil to Lua code.
	Libraries []string

	// CallStackSize and RegistrySize tune the interpreter; zero means
	// gopher-lua defaults.
	CallStackSize int
	RegistrySize  int
}

// State wraps one gopher-lua interpreter instance together with the
// reference registry, host function table, and execution flags. A State is
// not reentrant; callers serialize access via the runtime busy flag.
type State struct {
	L    *lua.LState
	refs *registry.RefTable

	hostFuncs map[string]HostFunc
	hostMu    sync.RWMutex

	// wrappers maps host-object slot ids to the userdata values exposed to
	// Lua, so every push of the same id yields the same Lua identity.
	wrappers map[uint32]*lua.LUserData

	proxyMT  *lua.LTable
	opaqueMT *lua.LTable

	asyncMode atomic.Bool
	closed    bool
}

// NewState constructs an interpreter with the requested library surface.
func NewState(cfg Config) (*State, error) {
	for _, name := range cfg.Libraries {
		if _, ok := libraryOpeners[name]; !ok {
			return nil, errors.UnknownLibrary(name)
		}
	}

	opts := lua.Options{SkipOpenLibs: true}
	if cfg.CallStackSize > 0 {
		opts.CallStackSize = cfg.CallStackSize
	}
	if cfg.RegistrySize > 0 {
		opts.RegistrySize = cfg.RegistrySize
	}
	L := lua.NewState(opts)

	s := &State{
		L:         L,
		refs:      registry.NewRefTable(),
		hostFuncs: make(map[string]HostFunc),
		wrappers:  make(map[uint32]*lua.LUserData),
	}

	requested := make(map[string]bool, len(cfg.Libraries))
	for _, name := range cfg.Libraries {
		requested[name] = true
	}
	for _, name := range openOrder {
		if !requested[name] {
			continue
		}
		lib := libraryOpeners[name]
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.luaName)); err != nil {
			L.Close()
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err,
				"open library "+name)
		}
		Logger().Debug("opened library", zap.String("library", name))
	}

	// The base library bundles file loaders; a state without the io
	// library must not expose them either.
	if requested[LibBase] && !requested[LibIO] {
		L.SetGlobal("dofile", lua.LNil)
		L.SetGlobal("loadfile", lua.LNil)
	}

	return s, nil
}

// Refs exposes the reference registry, primarily for lifecycle observers.
func (s *State) Refs() *registry.RefTable { return s.refs }

// SetAsyncMode flags the state as executing on an off-thread worker. While
// set, every host function call is rejected (see hostcall.go).
func (s *State) SetAsyncMode(on bool) { s.asyncMode.Store(on) }

// AsyncMode reports whether off-thread mode is active.
func (s *State) AsyncMode() bool { return s.asyncMode.Load() }

// SetGlobal marshals a value and binds it under name.
func (s *State) SetGlobal(name string, v luaruntime.Value) error {
	lv, err := s.ToLua(v, 0)
	if err != nil {
		return err
	}
	s.L.SetGlobal(name, lv)
	return nil
}

// GetGlobal reads a global and marshals it out. Unset globals are nil.
func (s *State) GetGlobal(name string) (luaruntime.Value, error) {
	return s.FromLua(s.L.GetGlobal(name), 0)
}

// Execute compiles and runs source, returning every produced result. The
// stack is restored to its pre-call depth on both paths.
func (s *State) Execute(source, name string) ([]luaruntime.Value, error) {
	fn, err := s.L.Load(strings.NewReader(source), name)
	if err != nil {
		return nil, errors.RuntimeFault(errors.PhaseCompile, luaErrorMessage(err))
	}
	return s.runFunction(fn)
}

// ExecuteFile loads and runs a script file.
func (s *State) ExecuteFile(path string) ([]luaruntime.Value, error) {
	fn, err := s.L.LoadFile(path)
	if err != nil {
		return nil, errors.RuntimeFault(errors.PhaseCompile, luaErrorMessage(err))
	}
	return s.runFunction(fn)
}

// RunProto runs a previously compiled function prototype.
func (s *State) RunProto(proto *lua.FunctionProto) ([]luaruntime.Value, error) {
	return s.runFunction(s.L.NewFunctionFromProto(proto))
}

func (s *State) runFunction(fn *lua.LFunction) ([]luaruntime.Value, error) {
	L := s.L
	base := L.GetTop()
	defer L.SetTop(base)

	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		return nil, errors.RuntimeFault(errors.PhaseExecute, luaErrorMessage(err))
	}

	top := L.GetTop()
	results := make([]luaruntime.Value, 0, top-base)
	for i := base + 1; i <= top; i++ {
		v, err := s.FromLua(L.Get(i), 0)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, nil
}

// CallFunction invokes a function handle with positional arguments and
// returns all results.
func (s *State) CallFunction(h *luaruntime.Handle, args []luaruntime.Value) ([]luaruntime.Value, error) {
	fn, err := s.functionForHandle(h)
	if err != nil {
		return nil, err
	}

	L := s.L
	base := L.GetTop()
	defer L.SetTop(base)

	L.Push(fn)
	for i, a := range args {
		lv, err := s.ToLua(a, 0)
		if err != nil {
			return nil, errors.Wrap(errors.PhasePush, errors.KindInvalidData, err,
				"argument "+strconv.Itoa(i+1))
		}
		L.Push(lv)
	}
	if err := L.PCall(len(args), lua.MultRet, nil); err != nil {
		return nil, errors.RuntimeFault(errors.PhaseExecute, luaErrorMessage(err))
	}

	top := L.GetTop()
	results := make([]luaruntime.Value, 0, top-base)
	for i := base + 1; i <= top; i++ {
		v, err := s.FromLua(L.Get(i), 0)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, nil
}

func (s *State) functionForHandle(h *luaruntime.Handle) (*lua.LFunction, error) {
	if !h.Valid() {
		return nil, errors.InvalidHandle(errors.PhaseExecute, "function handle is invalid")
	}
	raw, ok := s.refs.GetTyped(h.ID(), registry.SlotFunction)
	if !ok {
		return nil, errors.NotFound(errors.PhaseRegistry, "function slot", strconv.Itoa(int(h.ID())))
	}
	return raw.(*lua.LFunction), nil
}

// Close releases every outstanding registry slot, then closes the
// interpreter. Release callbacks run before the LState is torn down.
func (s *State) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.refs.Close()
	s.wrappers = nil
	s.L.Close()
	return err
}

func luaErrorMessage(err error) string {
	if apiErr, ok := err.(*lua.ApiError); ok {
		return apiErr.Object.String()
	}
	return err.Error()
}
