// Package luaruntime provides a Go embedding bridge for the Lua scripting
// runtime.
//
// The library hosts a gopher-lua interpreter inside a Go process and exposes
// bidirectional call-through between the two type systems while preserving
// reference identity, lifetime, and error semantics across the boundary.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	luaruntime/          Root package with the Value model and handle types
//	├── runtime/         High-level API for executing scripts and binding hosts
//	├── engine/          Low-level gopher-lua integration: marshalling, host
//	│                    calls, property proxies, coroutines
//	├── registry/        Reference table for values that cross the boundary
//	│                    by handle, with refcounts and release callbacks
//	├── chunk/           Compiled-chunk artifact encoding
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Execute a script and read its results:
//
//	rt, err := runtime.New(runtime.Options{Libraries: runtime.LibsSafe()})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	values, err := rt.Execute("return 1 + 2, 'ok'", "demo")
//	fmt.Println(values[0].Int64(), values[1].Str()) // 3 ok
//
// # Value Model
//
// Every value crossing the boundary is represented as a Value, a closed
// tagged union over nil, bool, int64, float64, string, sequence, map, and
// four handle kinds (function, thread, table, userdata). Structural kinds
// are deep-copied at the boundary; handle kinds stand in for Lua values that
// cannot or should not be copied and reference a slot in the registry.
//
// # Handles and Lifetime
//
// A Handle pairs an integer slot id with the registry that owns it. Copies
// of a handle-bearing Value share one Handle; Release unregisters the slot
// exactly once and invalidates every alias. Host-owned userdata handles are
// reference counted: pushing one back into Lua increments its counter, and
// the release callback fires on the final decrement only.
//
// # Thread Safety
//
// A Runtime instance is not reentrant: exactly one execution (sync or async)
// may be in flight at a time, enforced by an atomic busy flag. Host-function
// callbacks are rejected while a script runs on the async worker, because
// host objects are assumed single-thread-affine. See the runtime package
// documentation for details.
package luaruntime
