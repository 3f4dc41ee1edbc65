package registry

// NoID is the reserved invalid slot id.
const NoID uint32 = 0

// SlotKind identifies what a registry slot anchors.
type SlotKind uint8

const (
	SlotFunction SlotKind = iota
	SlotThread
	SlotTable
	SlotForeign    // userdata created inside the embedded runtime
	SlotHostObject // host-owned object exposed as userdata
)

var slotKindNames = [...]string{
	SlotFunction:   "function",
	SlotThread:     "thread",
	SlotTable:      "table",
	SlotForeign:    "foreign",
	SlotHostObject: "host_object",
}

func (k SlotKind) String() string {
	if int(k) < len(slotKindNames) {
		return slotKindNames[k]
	}
	return "unknown"
}

// ReleaseFunc is invoked exactly once when a host object's refcount reaches
// zero or the table is closed. It must be safe to call during teardown.
type ReleaseFunc func(id uint32, obj any)

// EventType enumerates slot lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventRetained
	EventReleased
)

// Event describes a slot lifecycle transition.
type Event struct {
	Value    any
	ID       uint32
	Kind     SlotKind
	Type     EventType
	RefCount uint32
}

// Observer receives slot lifecycle events.
type Observer interface {
	OnRegistryEvent(Event)
}

// HostObject carries the metadata of a host-owned slot.
type HostObject struct {
	Object   any
	Readable bool
	Writable bool
}
