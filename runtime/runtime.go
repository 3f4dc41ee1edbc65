package runtime

import (
	"sync/atomic"

	"go.uber.org/zap"

	luaruntime "github.com/wippyai/lua-runtime"
	"github.com/wippyai/lua-runtime/chunk"
	"github.com/wippyai/lua-runtime/engine"
	"github.com/wippyai/lua-runtime/errors"
	"github.com/wippyai/lua-runtime/registry"
)

// LibsAll opens every standard library, including io, os and debug.
func LibsAll() []string {
	return []string{
		engine.LibBase, engine.LibPackage, engine.LibTable, engine.LibString,
		engine.LibMath, engine.LibCoroutine, engine.LibIO, engine.LibOS,
		engine.LibDebug, engine.LibChannel,
	}
}

// LibsSafe opens the libraries that cannot touch the process environment.
func LibsSafe() []string {
	return []string{
		engine.LibBase, engine.LibPackage, engine.LibTable, engine.LibString,
		engine.LibMath, engine.LibCoroutine,
	}
}

// LibsNone builds a bare interpreter with no globals at all.
func LibsNone() []string {
	return []string{}
}

// Options configures a Runtime.
type Options struct {
	// Libraries selects the standard library surface by engine.Lib*
	// names. nil means LibsSafe; an empty slice means LibsNone.
	Libraries []string

	// CallStackSize and RegistrySize tune the interpreter; zero keeps
	// the defaults.
	CallStackSize int
	RegistrySize  int
}

// AsyncResult carries the outcome of an ExecuteAsync run.
type AsyncResult struct {
	Values []luaruntime.Value
	Err    error
}

// Runtime owns one interpreter. All operations are serialized through a
// busy flag; a second caller fails fast instead of queueing.
type Runtime struct {
	state  *engine.State
	busy   atomic.Bool
	closed atomic.Bool
}

// New constructs a runtime with the requested library surface.
func New(opts Options) (*Runtime, error) {
	libs := opts.Libraries
	if libs == nil {
		libs = LibsSafe()
	}
	state, err := engine.NewState(engine.Config{
		Libraries:     libs,
		CallStackSize: opts.CallStackSize,
		RegistrySize:  opts.RegistrySize,
	})
	if err != nil {
		return nil, err
	}

	rt := &Runtime{state: state}
	state.Refs().Subscribe(rt)
	Logger().Info("runtime created", zap.Strings("libraries", libs))
	return rt, nil
}

// OnRegistryEvent logs slot lifecycle transitions.
func (r *Runtime) OnRegistryEvent(e registry.Event) {
	switch e.Type {
	case registry.EventCreated:
		Logger().Debug("slot created",
			zap.Uint32("id", e.ID), zap.String("kind", e.Kind.String()))
	case registry.EventRetained:
		Logger().Debug("slot retained",
			zap.Uint32("id", e.ID), zap.Uint32("refcount", e.RefCount))
	case registry.EventReleased:
		Logger().Debug("slot released",
			zap.Uint32("id", e.ID), zap.String("kind", e.Kind.String()))
	}
}

// acquire claims the interpreter for one operation.
func (r *Runtime) acquire() error {
	if r.closed.Load() {
		return errors.Closed(errors.PhaseExecute, "runtime")
	}
	if !r.busy.CompareAndSwap(false, true) {
		return errors.Busy()
	}
	if r.closed.Load() {
		r.busy.Store(false)
		return errors.Closed(errors.PhaseExecute, "runtime")
	}
	return nil
}

func (r *Runtime) release() {
	r.busy.Store(false)
}

// Execute compiles and runs source, returning every value the script
// produced.
func (r *Runtime) Execute(source, name string) ([]luaruntime.Value, error) {
	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.release()
	return r.state.Execute(source, name)
}

// ExecuteFile loads and runs a script file.
func (r *Runtime) ExecuteFile(path string) ([]luaruntime.Value, error) {
	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.release()
	return r.state.ExecuteFile(path)
}

// ExecuteAsync runs source on a worker goroutine, keeping the interpreter
// exclusively owned until the run finishes. Host function calls made by
// the script are rejected for the duration; the returned channel delivers
// exactly one result.
func (r *Runtime) ExecuteAsync(source, name string) (<-chan AsyncResult, error) {
	if err := r.acquire(); err != nil {
		return nil, err
	}

	out := make(chan AsyncResult, 1)
	r.state.SetAsyncMode(true)
	go func() {
		var res AsyncResult
		// Ownership is returned before the result is delivered, so a
		// receiver never observes a busy runtime after reading it.
		defer func() {
			r.state.SetAsyncMode(false)
			r.release()
			out <- res
		}()
		res.Values, res.Err = r.state.Execute(source, name)
	}()
	return out, nil
}

// Compile validates source and packages it into a portable artifact that
// LoadAndRun accepts.
func (r *Runtime) Compile(source, name string, opts chunk.Options) ([]byte, error) {
	return chunk.Compile(source, name, opts)
}

// LoadAndRun executes a compiled artifact.
func (r *Runtime) LoadAndRun(data []byte) ([]luaruntime.Value, error) {
	c, err := chunk.Decode(data)
	if err != nil {
		return nil, err
	}
	proto, err := c.Proto()
	if err != nil {
		return nil, err
	}

	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.release()
	return r.state.RunProto(proto)
}

// SetGlobal binds a value under name.
func (r *Runtime) SetGlobal(name string, v luaruntime.Value) error {
	if err := r.acquire(); err != nil {
		return err
	}
	defer r.release()
	return r.state.SetGlobal(name, v)
}

// GetGlobal reads a global; unset globals are nil.
func (r *Runtime) GetGlobal(name string) (luaruntime.Value, error) {
	if err := r.acquire(); err != nil {
		return luaruntime.Nil(), err
	}
	defer r.release()
	return r.state.GetGlobal(name)
}

// RegisterFunction exposes fn as a script-callable global. Registering a
// name again replaces the previous function.
func (r *Runtime) RegisterFunction(name string, fn engine.HostFunc) error {
	if err := r.acquire(); err != nil {
		return err
	}
	defer r.release()
	return r.state.RegisterFunction(name, fn)
}

// BindObject exposes obj as a userdata global with permission-checked
// property access.
func (r *Runtime) BindObject(name string, obj any, opts engine.BindOptions) (*luaruntime.Handle, error) {
	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.release()
	return r.state.BindObject(name, obj, opts)
}

// InstallMetatable attaches metamethods to a global table.
func (r *Runtime) InstallMetatable(globalName string, entries []engine.MetaEntry) error {
	if err := r.acquire(); err != nil {
		return err
	}
	defer r.release()
	return r.state.InstallMetatable(globalName, entries)
}

// RegisterModule preloads a module for require.
func (r *Runtime) RegisterModule(m engine.Module) error {
	if err := r.acquire(); err != nil {
		return err
	}
	defer r.release()
	return r.state.RegisterModule(m)
}

// AddModulePath appends a search pattern to package.path.
func (r *Runtime) AddModulePath(pattern string) error {
	if err := r.acquire(); err != nil {
		return err
	}
	defer r.release()
	return r.state.AddSearchPath(pattern)
}

// Call invokes a function handle with positional arguments.
func (r *Runtime) Call(fn *luaruntime.Handle, args ...luaruntime.Value) ([]luaruntime.Value, error) {
	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.release()
	return r.state.CallFunction(fn, args)
}

// CreateCoroutine builds a suspended coroutine from a function handle.
func (r *Runtime) CreateCoroutine(fn *luaruntime.Handle) (*luaruntime.Handle, error) {
	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.release()
	return r.state.NewCoroutine(fn)
}

// Resume advances a coroutine until it yields, completes or fails.
func (r *Runtime) Resume(co *luaruntime.Handle, args ...luaruntime.Value) ([]luaruntime.Value, engine.ThreadStatus, error) {
	if err := r.acquire(); err != nil {
		return nil, engine.ThreadDead, err
	}
	defer r.release()
	return r.state.Resume(co, args)
}

// CoroutineStatus reports a coroutine's state without advancing it.
func (r *Runtime) CoroutineStatus(co *luaruntime.Handle) (engine.ThreadStatus, error) {
	if err := r.acquire(); err != nil {
		return engine.ThreadDead, err
	}
	defer r.release()
	return r.state.Status(co)
}

// Refs exposes the reference registry for inspection and observers.
func (r *Runtime) Refs() *registry.RefTable {
	return r.state.Refs()
}

// Close releases every outstanding handle and tears down the interpreter.
// A busy runtime refuses to close; wait for the running operation first.
func (r *Runtime) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if !r.busy.CompareAndSwap(false, true) {
		r.closed.Store(false)
		return errors.Busy()
	}
	defer r.busy.Store(false)

	err := r.state.Close()
	Logger().Info("runtime closed")
	return err
}
