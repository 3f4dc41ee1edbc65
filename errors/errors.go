package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in the bridge the error occurred
type Phase string

const (
	PhaseMarshal   Phase = "marshal"   // Lua to host conversion
	PhasePush      Phase = "push"      // host to Lua conversion
	PhaseExecute   Phase = "execute"   // script execution
	PhaseCompile   Phase = "compile"   // source compilation
	PhaseLoad      Phase = "load"      // compiled chunk loading
	PhaseHost      Phase = "host"      // host function invocation
	PhaseRegistry  Phase = "registry"  // reference registry operations
	PhaseConfig    Phase = "config"    // construction and configuration
	PhaseCoroutine Phase = "coroutine" // coroutine lifecycle
)

// Kind categorizes the error
type Kind string

const (
	KindDepthExceeded    Kind = "depth_exceeded"
	KindUnsupported      Kind = "unsupported"
	KindNotFound         Kind = "not_found"
	KindNotReadable      Kind = "not_readable"
	KindNotWritable      Kind = "not_writable"
	KindNotIndexable     Kind = "not_indexable"
	KindNotResumable     Kind = "not_resumable"
	KindDeadThread       Kind = "dead_thread"
	KindAsyncUnavailable Kind = "async_unavailable"
	KindBusy             Kind = "busy"
	KindInvalidHandle    Kind = "invalid_handle"
	KindInvalidInput     Kind = "invalid_input"
	KindInvalidData      Kind = "invalid_data"
	KindNotTable         Kind = "not_table"
	KindBadSearchPath    Kind = "bad_search_path"
	KindUnknownLibrary   Kind = "unknown_library"
	KindHostFault        Kind = "host_fault"
	KindRuntimeFault     Kind = "runtime_fault"
	KindClosed           Kind = "closed"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	GoType  string
	LuaType string
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.LuaType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.LuaType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", Lua type ")
			b.WriteString(e.LuaType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("Lua type ")
			b.WriteString(e.LuaType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.LuaType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the value path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// LuaType sets the Lua type name
func (b *Builder) LuaType(t string) *Builder {
	b.err.LuaType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// DepthExceeded creates a nesting depth error
func DepthExceeded(phase Phase, depth int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDepthExceeded,
		Detail: fmt.Sprintf("nesting depth exceeded at level %d", depth),
		Value:  depth,
	}
}

// Unsupported creates an unsupported value error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidHandle creates an invalid handle error
func InvalidHandle(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidHandle,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// NotReadable creates a property read permission error
func NotReadable(id uint32, key string) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindNotReadable,
		Detail: fmt.Sprintf("userdata %d is not readable (key %q)", id, key),
		Value:  id,
	}
}

// NotWritable creates a property write permission error
func NotWritable(id uint32, key string) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindNotWritable,
		Detail: fmt.Sprintf("userdata %d is not writable (key %q)", id, key),
		Value:  id,
	}
}

// NotIndexable creates an error for indexing a non-proxy userdata
func NotIndexable(id uint32) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindNotIndexable,
		Detail: fmt.Sprintf("userdata %d does not expose properties", id),
		Value:  id,
	}
}

// DeadThread creates an error for resuming a finished coroutine
func DeadThread(id uint32) *Error {
	return &Error{
		Phase:  PhaseCoroutine,
		Kind:   KindDeadThread,
		Detail: fmt.Sprintf("cannot resume dead coroutine %d", id),
		Value:  id,
	}
}

// NotResumable creates an error for resuming a thread the controller does
// not own
func NotResumable(id uint32) *Error {
	return &Error{
		Phase:  PhaseCoroutine,
		Kind:   KindNotResumable,
		Detail: fmt.Sprintf("thread %d was not created by this controller", id),
		Value:  id,
	}
}

// AsyncUnavailable creates the exclusivity violation error
func AsyncUnavailable(name string) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindAsyncUnavailable,
		Detail: fmt.Sprintf("host function %q unavailable while running off-thread", name),
	}
}

// Busy creates an error for overlapping executions
func Busy() *Error {
	return &Error{
		Phase:  PhaseExecute,
		Kind:   KindBusy,
		Detail: "an execution is already in flight",
	}
}

// HostFault wraps an error or recovered panic from host code
func HostFault(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindHostFault,
		Detail: fmt.Sprintf("host function %q failed", name),
		Cause:  cause,
	}
}

// RuntimeFault wraps an error raised by executed Lua code
func RuntimeFault(phase Phase, message string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindRuntimeFault,
		Detail: message,
	}
}

// NotTable creates an error for metatable installation on a non-aggregate
func NotTable(name string, luaType string) *Error {
	return &Error{
		Phase:   PhaseConfig,
		Kind:    KindNotTable,
		LuaType: luaType,
		Detail:  fmt.Sprintf("global %q is not a table", name),
	}
}

// BadSearchPath creates an error for a module path missing the placeholder
func BadSearchPath(path string) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindBadSearchPath,
		Detail: fmt.Sprintf("search path %q does not contain the '?' placeholder", path),
		Value:  path,
	}
}

// UnknownLibrary creates an error for an unrecognized library name
func UnknownLibrary(name string) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindUnknownLibrary,
		Detail: fmt.Sprintf("unknown library %q", name),
		Value:  name,
	}
}

// Closed creates an error for operations on a closed runtime or registry
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}

// Load creates a chunk loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// As delegates to the standard library so callers need not import both
// error packages.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Is delegates to the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
