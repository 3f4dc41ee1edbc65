// Package registry provides the reference table for values that cross the
// host/Lua boundary by handle instead of by structural copy.
//
// # Slots
//
// The RefTable maps integer ids to live slots. A slot anchors the underlying
// value (a Lua function, thread, metatabled table, foreign userdata, or a
// host object) so it stays reachable while any handle refers to it. Id 0 is
// reserved and always invalid.
//
//	table := registry.NewRefTable()
//
//	// Anchor a Lua value, get an id
//	id := table.Insert(registry.SlotFunction, fn)
//
//	// Retrieve by id
//	value, ok := table.Get(id)
//
//	// Unregister (fires the release callback for host objects)
//	table.Release(id)
//
// # Reference Counting
//
// Host-owned objects are reference counted: every push of the corresponding
// userdata handle back into Lua increments the counter, every handle release
// decrements it, and the release callback fires exactly once at the zero
// transition, after which the slot is erased. Decrementing an id with no
// counter is a no-op. Foreign (Lua-created) slots are never counted; they
// are released exactly once, tied to the handle's own destruction.
//
// # Observers
//
// Register observers to track slot lifecycle events:
//
//	table.Subscribe(obs) // EventCreated, EventRetained, EventReleased
//
// The runtime package subscribes an observer that logs events at Debug.
//
// # Teardown
//
// Close releases every outstanding slot (firing host release callbacks)
// before the interpreter is torn down. Release callbacks must tolerate being
// invoked during teardown, without touching state that is being destroyed.
//
// # Concurrency
//
// Mutations are expected on the goroutine that owns the runtime instance.
// The table still locks internally so that observers and teardown are safe,
// but the refcount protocol itself assumes the caller honors the runtime's
// busy flag.
package registry
