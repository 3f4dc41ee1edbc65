package luaruntime

import (
	"fmt"
	"sync/atomic"
)

// NoID is the id of an invalid handle. Registry slot ids start at 1.
const NoID uint32 = 0

// Releaser unregisters a registry slot. Implemented by registry.RefTable;
// the root package only needs the release half of its interface.
type Releaser interface {
	ReleaseSlot(id uint32) error
}

// Handle is a reference to a registry slot standing in for a Lua value that
// cannot or should not be structurally copied. Copies of a handle-bearing
// Value share one Handle, so releasing it invalidates every alias at once.
// Release must be called exactly once by the owning side; a released handle
// must never be pushed back across the boundary.
type Handle struct {
	id  atomic.Uint32
	rel Releaser

	opaque   bool
	proxy    bool
	readable bool
	writable bool
}

// NewHandle creates a handle for a function, thread, or metatabled-table
// slot.
func NewHandle(id uint32, rel Releaser) *Handle {
	h := &Handle{rel: rel}
	h.id.Store(id)
	return h
}

// NewUserdataHandle creates a handle for a userdata slot. opaque marks a
// value created inside the embedded runtime that is only ever round-tripped;
// host-owned objects always pass opaque=false, with proxy/readable/writable
// describing their property bridge (all false for a non-indexable binding).
func NewUserdataHandle(id uint32, rel Releaser, opaque, proxy, readable, writable bool) *Handle {
	h := &Handle{
		rel:      rel,
		opaque:   opaque,
		proxy:    proxy,
		readable: readable,
		writable: writable,
	}
	h.id.Store(id)
	return h
}

// ID returns the registry slot id, or NoID after release.
func (h *Handle) ID() uint32 {
	if h == nil {
		return NoID
	}
	return h.id.Load()
}

// Valid reports whether the handle still references a slot.
func (h *Handle) Valid() bool { return h.ID() != NoID }

// Opaque reports whether this is a foreign userdata handle (created by the
// embedded runtime, never inspected by the host).
func (h *Handle) Opaque() bool { return h.opaque }

// Proxy reports whether property get/set are bridged for this userdata.
func (h *Handle) Proxy() bool { return h.proxy }

// Readable reports whether the property bridge permits reads.
func (h *Handle) Readable() bool { return h.readable }

// Writable reports whether the property bridge permits writes.
func (h *Handle) Writable() bool { return h.writable }

// Release unregisters the underlying slot and invalidates the handle. The
// first call wins; subsequent calls fail with an error rather than touching
// the registry again.
func (h *Handle) Release() error {
	if h == nil {
		return fmt.Errorf("release of nil handle")
	}
	id := h.id.Swap(NoID)
	if id == NoID {
		return fmt.Errorf("handle already released")
	}
	if h.rel == nil {
		return nil
	}
	return h.rel.ReleaseSlot(id)
}
