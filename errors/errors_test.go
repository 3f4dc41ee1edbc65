package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestError_Format(t *testing.T) {
	err := New(PhaseMarshal, KindDepthExceeded).
		Path("t", "child").
		LuaType("table").
		Detail("nesting depth exceeded at level %d", 101).
		Build()

	msg := err.Error()
	for _, want := range []string{"[marshal]", "depth_exceeded", "t.child", "Lua type table", "101"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestError_Is(t *testing.T) {
	err := DeadThread(3)
	if !stderrors.Is(err, &Error{Phase: PhaseCoroutine, Kind: KindDeadThread}) {
		t.Fatal("Is should match on phase+kind")
	}
	if stderrors.Is(err, &Error{Phase: PhaseCoroutine, Kind: KindNotResumable}) {
		t.Fatal("Is should not match a different kind")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := HostFault("adder", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("cause should be reachable via Unwrap")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatal("cause message should appear in formatted error")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		err  *Error
		kind Kind
		want string
	}{
		{DepthExceeded(PhasePush, 101), KindDepthExceeded, "101"},
		{NotFound(PhaseRegistry, "slot", "9"), KindNotFound, `"9"`},
		{NotReadable(4, "name"), KindNotReadable, "not readable"},
		{NotWritable(4, "name"), KindNotWritable, "not writable"},
		{NotIndexable(2), KindNotIndexable, "does not expose"},
		{AsyncUnavailable("fetch"), KindAsyncUnavailable, "off-thread"},
		{Busy(), KindBusy, "in flight"},
		{BadSearchPath("/x"), KindBadSearchPath, "placeholder"},
		{UnknownLibrary("netw"), KindUnknownLibrary, "netw"},
		{NotTable("cfg", "number"), KindNotTable, "not a table"},
	}
	for _, tt := range tests {
		if tt.err.Kind != tt.kind {
			t.Errorf("got kind %q, want %q", tt.err.Kind, tt.kind)
		}
		if !strings.Contains(tt.err.Error(), tt.want) {
			t.Errorf("message %q missing %q", tt.err.Error(), tt.want)
		}
	}
}
