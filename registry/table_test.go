package registry

import (
	"testing"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnRegistryEvent(e Event) {
	o.events = append(o.events, e)
}

func TestRefTable_Basic(t *testing.T) {
	table := NewRefTable()

	id := table.Insert(SlotFunction, "fn")
	if id == NoID {
		t.Fatal("Expected non-zero id")
	}

	val, ok := table.Get(id)
	if !ok || val != "fn" {
		t.Fatalf("Get returned %v, %v", val, ok)
	}

	// GetTyped with correct kind
	if _, ok := table.GetTyped(id, SlotFunction); !ok {
		t.Fatal("GetTyped with correct kind failed")
	}
	// GetTyped with wrong kind
	if _, ok := table.GetTyped(id, SlotThread); ok {
		t.Fatal("GetTyped with wrong kind should fail")
	}

	if err := table.Release(id); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Release")
	}
	if _, ok := table.Get(id); ok {
		t.Fatal("released slot should not resolve")
	}
}

func TestRefTable_UnknownID(t *testing.T) {
	table := NewRefTable()

	if _, ok := table.Get(99); ok {
		t.Fatal("unknown id should not resolve")
	}
	if _, ok := table.Get(NoID); ok {
		t.Fatal("id 0 must always be invalid")
	}
	if err := table.Release(99); err == nil {
		t.Fatal("releasing an unknown id should report not_found")
	}
	// Decrement with no counter is a no-op, never an error or panic.
	table.Decrement(99)
	table.Decrement(NoID)
}

func TestRefTable_RefCountRelease(t *testing.T) {
	table := NewRefTable()

	released := 0
	id := table.CreateHandle("obj", true, true, func(uint32, any) {
		released++
	})

	// Two increments require exactly two extra decrements before the
	// initial reference; release fires exactly once at the zero transition.
	table.Increment(id)
	table.Increment(id)

	table.Decrement(id)
	table.Decrement(id)
	if released != 0 {
		t.Fatalf("release fired early after %d decrements", 2)
	}

	table.Decrement(id) // drops the initial reference
	if released != 1 {
		t.Fatalf("release fired %d times, want 1", released)
	}

	// Further decrements are no-ops.
	table.Decrement(id)
	if released != 1 {
		t.Fatal("release must fire exactly once")
	}
	if _, ok := table.Get(id); ok {
		t.Fatal("slot should be erased at the zero transition")
	}
}

func TestRefTable_ReleaseOnHostObjectDecrements(t *testing.T) {
	table := NewRefTable()

	released := 0
	id := table.CreateHandle("obj", true, false, func(uint32, any) {
		released++
	})
	table.Increment(id)

	// Release on a host slot is one decrement, not an unconditional erase.
	if err := table.Release(id); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if released != 0 {
		t.Fatal("release callback fired with refs outstanding")
	}
	if err := table.Release(id); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if released != 1 {
		t.Fatalf("release fired %d times, want 1", released)
	}
}

func TestRefTable_IncrementNonHostSlotIgnored(t *testing.T) {
	table := NewRefTable()
	id := table.Insert(SlotForeign, "ud")

	// Foreign slots are never refcounted.
	table.Increment(id)
	table.Decrement(id)
	if _, ok := table.Get(id); !ok {
		t.Fatal("foreign slot must survive increment/decrement noise")
	}

	if err := table.Release(id); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, ok := table.Get(id); ok {
		t.Fatal("foreign slot released exactly once, tied to handle destruction")
	}
}

func TestRefTable_HostObjectPerms(t *testing.T) {
	table := NewRefTable()
	id := table.CreateHandle("obj", true, false, nil)

	ho, ok := table.HostObject(id)
	if !ok {
		t.Fatal("HostObject failed")
	}
	if !ho.Readable || ho.Writable {
		t.Fatal("permissions not carried")
	}

	fid := table.Insert(SlotForeign, "ud")
	if _, ok := table.HostObject(fid); ok {
		t.Fatal("foreign slot must not report as host object")
	}
}

func TestRefTable_IDReuse(t *testing.T) {
	table := NewRefTable()
	a := table.Insert(SlotFunction, "a")
	if err := table.Release(a); err != nil {
		t.Fatal(err)
	}
	b := table.Insert(SlotThread, "b")
	if b != a {
		t.Fatalf("expected freed id %d to be reused, got %d", a, b)
	}
	if v, ok := table.GetTyped(b, SlotThread); !ok || v != "b" {
		t.Fatal("reused slot should carry the new value and kind")
	}
}

func TestRefTable_Observer(t *testing.T) {
	table := NewRefTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	id := table.CreateHandle("obj", true, true, nil)
	if len(obs.events) != 1 || obs.events[0].Type != EventCreated {
		t.Fatalf("expected EventCreated, got %v", obs.events)
	}
	if obs.events[0].RefCount != 1 {
		t.Fatal("created host slot should report refcount 1")
	}

	table.Increment(id)
	if obs.events[1].Type != EventRetained || obs.events[1].RefCount != 2 {
		t.Fatalf("expected EventRetained rc=2, got %+v", obs.events[1])
	}

	table.Decrement(id)
	table.Decrement(id)
	last := obs.events[len(obs.events)-1]
	if last.Type != EventReleased {
		t.Fatalf("expected EventReleased last, got %+v", last)
	}

	table.Unsubscribe(obs)
	table.Insert(SlotFunction, "fn")
	if len(obs.events) != 4 {
		t.Fatalf("unsubscribed observer still notified: %d events", len(obs.events))
	}
}

func TestRefTable_CloseReleasesOutstanding(t *testing.T) {
	table := NewRefTable()

	released := make(map[uint32]int)
	h1 := table.CreateHandle("a", true, true, func(id uint32, _ any) { released[id]++ })
	h2 := table.CreateHandle("b", true, true, func(id uint32, _ any) { released[id]++ })
	table.Increment(h1) // extra refs do not survive teardown
	table.Insert(SlotFunction, "fn")

	if err := table.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if released[h1] != 1 || released[h2] != 1 {
		t.Fatalf("teardown releases: %v", released)
	}
	if table.Len() != 0 {
		t.Fatal("slots should be gone after Close")
	}
	if id := table.Insert(SlotFunction, "late"); id != NoID {
		t.Fatal("closed table must reject inserts")
	}
}
