// Package engine provides the low-level gopher-lua integration for the
// embedding bridge.
//
// This package wraps a *lua.LState to provide value marshalling between the
// host-neutral Value model and Lua's stack representation, host function
// call-through, property-proxied userdata, and cooperative coroutine
// control.
//
// # Architecture
//
// The central type is State, which owns:
//
//	*lua.LState        - the embedded interpreter instance
//	*registry.RefTable - slots anchoring values that cross by handle
//	host function map  - name-keyed, last registration wins
//	async flag         - rejects host calls during off-thread execution
//
// # Marshalling
//
// FromLua and ToLua convert recursively with an explicit depth counter.
// Exceeding MaxNestingDepth (100) on either direction fails with a
// depth_exceeded error instead of recursing unboundedly, which defends
// against cyclic or pathologically deep structures.
//
// Tables without a metatable are structurally copied: keys forming the
// contiguous sequence 1..N (N >= 0) produce a Sequence, anything else a
// Map with stringified keys. Tables with a metatable, functions, threads,
// and userdata are preserved by reference through the registry.
//
// gopher-lua has one number type (float64). Numbers that are exact 64-bit
// integers marshal as Int64, everything else as Float64, preserving the
// subtype split the host expects.
//
// # Host Calls
//
// RegisterFunction installs a trampoline that resolves the implementation
// by name at call time, so re-registering a name replaces the behavior for
// every subsequent call. The trampoline recovers panics and converts errors
// into Lua errors carrying the original message; nothing unwinds past the
// boundary as a Go panic.
//
// # Coroutines
//
// Threads created via NewCoroutine hold their seed function and a
// three-state machine (Suspended, transient Running, Dead). Resume drives
// one step of the cooperative scheduler and classifies the outcome; Dead is
// terminal. Threads that merely round-trip through the marshaller (created
// by Lua's own coroutine library) are anchored but not resumable from the
// host.
//
// # Thread Safety
//
// State is not reentrant. Exactly one execution may be in flight at a time;
// the runtime package enforces this with a busy flag. Registry mutations
// happen on the goroutine driving execution.
//
// Most users should use the runtime package for a simpler API.
// This package is for advanced use cases requiring direct control.
package engine
