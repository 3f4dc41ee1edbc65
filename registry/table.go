package registry

import (
	"sync"

	"github.com/wippyai/lua-runtime/errors"
)

// RefTable maps integer ids to live slots and tracks refcounts for
// host-owned objects. Slot storage reuses freed ids via a free list; id 0 is
// never allocated.
type RefTable struct {
	entries   []entry
	freeList  []uint32
	observers []Observer
	mu        sync.Mutex
	closed    bool
}

type entry struct {
	value    any
	release  ReleaseFunc
	refCount uint32
	kind     SlotKind
	readable bool
	writable bool
	valid    bool
}

// NewRefTable creates an empty reference table.
func NewRefTable() *RefTable {
	return &RefTable{
		entries:  make([]entry, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// Insert anchors a value and returns its slot id. Used for functions,
// threads, metatabled tables, and foreign userdata; host objects go through
// CreateHandle.
func (t *RefTable) Insert(kind SlotKind, value any) uint32 {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return NoID
	}
	id := t.insertLocked(entry{kind: kind, value: value, valid: true})
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, ID: id, Kind: kind, Value: value})
	return id
}

// CreateHandle allocates a slot for a host-owned object with the given
// property permissions. The refcount starts at one; release fires exactly
// once when it reaches zero.
func (t *RefTable) CreateHandle(obj any, readable, writable bool, release ReleaseFunc) uint32 {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return NoID
	}
	id := t.insertLocked(entry{
		kind:     SlotHostObject,
		value:    obj,
		release:  release,
		refCount: 1,
		readable: readable,
		writable: writable,
		valid:    true,
	})
	t.mu.Unlock()

	t.notify(Event{Type: EventCreated, ID: id, Kind: SlotHostObject, Value: obj, RefCount: 1})
	return id
}

func (t *RefTable) insertLocked(e entry) uint32 {
	if n := len(t.freeList); n > 0 {
		id := t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[id-1] = e
		return id
	}
	t.entries = append(t.entries, e)
	return uint32(len(t.entries))
}

// Get retrieves the anchored value. Unknown ids return (nil, false), never
// undefined behavior.
func (t *RefTable) Get(id uint32) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.lookupLocked(id)
	if !ok {
		return nil, false
	}
	return e.value, true
}

// GetTyped retrieves the anchored value only if the slot kind matches.
func (t *RefTable) GetTyped(id uint32, kind SlotKind) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.lookupLocked(id)
	if !ok || e.kind != kind {
		return nil, false
	}
	return e.value, true
}

// Kind returns the slot kind for an id.
func (t *RefTable) Kind(id uint32) (SlotKind, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.lookupLocked(id)
	if !ok {
		return 0, false
	}
	return e.kind, true
}

// HostObject returns the host object and its permissions for a host-owned
// slot.
func (t *RefTable) HostObject(id uint32) (HostObject, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.lookupLocked(id)
	if !ok || e.kind != SlotHostObject {
		return HostObject{}, false
	}
	return HostObject{Object: e.value, Readable: e.readable, Writable: e.writable}, true
}

func (t *RefTable) lookupLocked(id uint32) (*entry, bool) {
	if id == NoID || int(id) > len(t.entries) {
		return nil, false
	}
	e := &t.entries[id-1]
	if !e.valid {
		return nil, false
	}
	return e, true
}

// Increment bumps the refcount of a host-owned slot. Ids without a counter
// (unknown, or not host-owned) are ignored.
func (t *RefTable) Increment(id uint32) {
	t.mu.Lock()
	e, ok := t.lookupLocked(id)
	if !ok || e.kind != SlotHostObject {
		t.mu.Unlock()
		return
	}
	e.refCount++
	ev := Event{Type: EventRetained, ID: id, Kind: e.kind, Value: e.value, RefCount: e.refCount}
	t.mu.Unlock()

	t.notify(ev)
}

// Decrement drops the refcount of a host-owned slot. The zero transition
// fires the release callback exactly once and erases the slot. Decrementing
// an id with no counter is a no-op: never negative, never an error.
func (t *RefTable) Decrement(id uint32) {
	t.mu.Lock()
	e, ok := t.lookupLocked(id)
	if !ok || e.kind != SlotHostObject || e.refCount == 0 {
		t.mu.Unlock()
		return
	}
	e.refCount--
	if e.refCount > 0 {
		ev := Event{Type: EventReleased, ID: id, Kind: e.kind, Value: e.value, RefCount: e.refCount}
		t.mu.Unlock()
		t.notify(ev)
		return
	}
	ev, release, obj := t.eraseLocked(id, e)
	t.mu.Unlock()

	if release != nil {
		release(id, obj)
	}
	t.notify(ev)
}

// Release unregisters a slot regardless of kind. Host-owned slots behave as
// a single Decrement; all other slots are erased immediately. Unknown ids
// report not_found.
func (t *RefTable) Release(id uint32) error {
	t.mu.Lock()
	e, ok := t.lookupLocked(id)
	if !ok {
		t.mu.Unlock()
		return errors.New(errors.PhaseRegistry, errors.KindNotFound).
			Detail("slot %d not found", id).Build()
	}
	if e.kind == SlotHostObject {
		t.mu.Unlock()
		t.Decrement(id)
		return nil
	}
	ev, release, obj := t.eraseLocked(id, e)
	t.mu.Unlock()

	if release != nil {
		release(id, obj)
	}
	t.notify(ev)
	return nil
}

// ReleaseSlot implements luaruntime.Releaser.
func (t *RefTable) ReleaseSlot(id uint32) error {
	return t.Release(id)
}

func (t *RefTable) eraseLocked(id uint32, e *entry) (Event, ReleaseFunc, any) {
	ev := Event{Type: EventReleased, ID: id, Kind: e.kind, Value: e.value}
	release, obj := e.release, e.value
	*e = entry{}
	t.freeList = append(t.freeList, id)
	return ev, release, obj
}

// Len returns the number of live slots.
func (t *RefTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for i := range t.entries {
		if t.entries[i].valid {
			n++
		}
	}
	return n
}

// Each iterates live slots. The callback runs under the table lock and must
// not mutate the table.
func (t *RefTable) Each(fn func(id uint32, kind SlotKind, value any) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entries {
		if !t.entries[i].valid {
			continue
		}
		if !fn(uint32(i+1), t.entries[i].kind, t.entries[i].value) {
			return
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (t *RefTable) Subscribe(o Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *RefTable) Unsubscribe(o Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Close releases every outstanding slot and stops accepting inserts. Host
// release callbacks fire once per live host slot, regardless of remaining
// refcount, so no host object outlives the runtime.
func (t *RefTable) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true

	type pending struct {
		ev      Event
		release ReleaseFunc
		obj     any
		id      uint32
	}
	var outstanding []pending
	for i := range t.entries {
		if !t.entries[i].valid {
			continue
		}
		id := uint32(i + 1)
		ev, release, obj := t.eraseLocked(id, &t.entries[i])
		outstanding = append(outstanding, pending{ev: ev, release: release, obj: obj, id: id})
	}
	t.mu.Unlock()

	for _, p := range outstanding {
		if p.release != nil {
			p.release(p.id, p.obj)
		}
		t.notify(p.ev)
	}
	return nil
}

func (t *RefTable) notify(e Event) {
	t.mu.Lock()
	obs := make([]Observer, len(t.observers))
	copy(obs, t.observers)
	t.mu.Unlock()
	for _, o := range obs {
		o.OnRegistryEvent(e)
	}
}
