package engine

import (
	"strings"
	"testing"

	luaruntime "github.com/wippyai/lua-runtime"
	"github.com/wippyai/lua-runtime/errors"
)

func makeCoroutine(t *testing.T, s *State, source string) *luaruntime.Handle {
	t.Helper()
	results, err := s.Execute(source, "cofn")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if results[0].Kind() != luaruntime.KindFunction {
		t.Fatalf("expected function, got %s", results[0].Kind())
	}
	h, err := s.NewCoroutine(results[0].Handle())
	if err != nil {
		t.Fatalf("NewCoroutine: %v", err)
	}
	return h
}

func TestCoroutine_YieldResumeComplete(t *testing.T) {
	s := newTestState(t)

	co := makeCoroutine(t, s, `
		return function(a)
			local b = coroutine.yield(a + 1)
			return b * 2
		end
	`)

	st, err := s.Status(co)
	if err != nil || st != ThreadSuspended {
		t.Fatalf("new coroutine should be suspended, got %s (%v)", st, err)
	}

	out, st, err := s.Resume(co, []luaruntime.Value{luaruntime.Int(10)})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if st != ThreadSuspended {
		t.Fatalf("expected suspended after yield, got %s", st)
	}
	if len(out) != 1 || out[0].Int64() != 11 {
		t.Fatalf("unexpected yield values: %v", out)
	}

	out, st, err = s.Resume(co, []luaruntime.Value{luaruntime.Int(5)})
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if st != ThreadDead {
		t.Fatalf("expected dead after return, got %s", st)
	}
	if len(out) != 1 || out[0].Int64() != 10 {
		t.Fatalf("unexpected return values: %v", out)
	}
}

func TestCoroutine_ResumeDeadFails(t *testing.T) {
	s := newTestState(t)

	co := makeCoroutine(t, s, `return function() return "done" end`)

	if _, st, err := s.Resume(co, nil); err != nil || st != ThreadDead {
		t.Fatalf("first resume should complete: %s (%v)", st, err)
	}

	_, _, err := s.Resume(co, nil)
	if err == nil {
		t.Fatal("expected error resuming a dead coroutine")
	}
	var bridgeErr *errors.Error
	if !errors.As(err, &bridgeErr) || bridgeErr.Kind != errors.KindDeadThread {
		t.Fatalf("expected dead_thread, got %v", err)
	}

	st, err := s.Status(co)
	if err != nil || st != ThreadDead {
		t.Fatalf("status should stay dead: %s (%v)", st, err)
	}
}

func TestCoroutine_ErrorKills(t *testing.T) {
	s := newTestState(t)

	co := makeCoroutine(t, s, `
		return function()
			coroutine.yield(1)
			error("mid-flight failure")
		end
	`)

	if _, st, err := s.Resume(co, nil); err != nil || st != ThreadSuspended {
		t.Fatalf("first resume should yield: %s (%v)", st, err)
	}

	_, st, err := s.Resume(co, nil)
	if err == nil {
		t.Fatal("expected the script error to propagate")
	}
	if st != ThreadDead {
		t.Fatalf("failed coroutine should be dead, got %s", st)
	}
	if !strings.Contains(err.Error(), "mid-flight failure") {
		t.Fatalf("script message should survive: %v", err)
	}

	// Dead for good.
	if _, _, err := s.Resume(co, nil); err == nil {
		t.Fatal("expected error resuming after failure")
	}
}

func TestCoroutine_MultipleYieldValues(t *testing.T) {
	s := newTestState(t)

	co := makeCoroutine(t, s, `
		return function()
			coroutine.yield(1, "two", true)
			return "end"
		end
	`)

	out, st, err := s.Resume(co, nil)
	if err != nil || st != ThreadSuspended {
		t.Fatalf("Resume: %s (%v)", st, err)
	}
	if len(out) != 3 || out[0].Int64() != 1 || out[1].Str() != "two" || !out[2].Bool() {
		t.Fatalf("unexpected yield values: %v", out)
	}
}

func TestCoroutine_IndependentInstances(t *testing.T) {
	s := newTestState(t)

	results, err := s.Execute(`
		return function()
			local n = 0
			while true do
				n = n + 1
				coroutine.yield(n)
			end
		end
	`, "counter")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	fn := results[0].Handle()

	a, err := s.NewCoroutine(fn)
	if err != nil {
		t.Fatalf("NewCoroutine: %v", err)
	}
	b, err := s.NewCoroutine(fn)
	if err != nil {
		t.Fatalf("NewCoroutine: %v", err)
	}

	// Advancing one must not advance the other.
	for i := 0; i < 3; i++ {
		if _, _, err := s.Resume(a, nil); err != nil {
			t.Fatalf("Resume a: %v", err)
		}
	}
	out, _, err := s.Resume(b, nil)
	if err != nil {
		t.Fatalf("Resume b: %v", err)
	}
	if out[0].Int64() != 1 {
		t.Fatalf("coroutines must hold independent state, got %v", out[0])
	}
}

func TestCoroutine_ForeignThreadNotResumable(t *testing.T) {
	s := newTestState(t)

	results, err := s.Execute(`return coroutine.create(function() end)`, "foreign")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if results[0].Kind() != luaruntime.KindThread {
		t.Fatalf("expected thread handle, got %s", results[0].Kind())
	}

	_, _, err = s.Resume(results[0].Handle(), nil)
	if err == nil {
		t.Fatal("expected resume of a foreign thread to fail")
	}
	var bridgeErr *errors.Error
	if !errors.As(err, &bridgeErr) || bridgeErr.Kind != errors.KindNotResumable {
		t.Fatalf("expected not_resumable, got %v", err)
	}
}

func TestCoroutine_InvalidFunctionHandle(t *testing.T) {
	s := newTestState(t)

	results, err := s.Execute(`return function() end`, "fn")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	h := results[0].Handle()
	if err := h.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if _, err := s.NewCoroutine(h); err == nil {
		t.Fatal("expected error creating a coroutine from a released handle")
	}
}
