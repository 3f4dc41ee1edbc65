package engine

import (
	"strings"
	"testing"

	luaruntime "github.com/wippyai/lua-runtime"
	"github.com/wippyai/lua-runtime/errors"
)

func TestRegisterFunction_Basic(t *testing.T) {
	s := newTestState(t)

	err := s.RegisterFunction("add", func(args []luaruntime.Value) ([]luaruntime.Value, error) {
		return []luaruntime.Value{luaruntime.Int(args[0].Int64() + args[1].Int64())}, nil
	})
	if err != nil {
		t.Fatalf("RegisterFunction: %v", err)
	}

	results, err := s.Execute(`return add(2, 3)`, "call")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if results[0].Int64() != 5 {
		t.Fatalf("expected 5, got %v", results[0])
	}
}

func TestRegisterFunction_MultiReturn(t *testing.T) {
	s := newTestState(t)

	err := s.RegisterFunction("divmod", func(args []luaruntime.Value) ([]luaruntime.Value, error) {
		a, b := args[0].Int64(), args[1].Int64()
		return []luaruntime.Value{luaruntime.Int(a / b), luaruntime.Int(a % b)}, nil
	})
	if err != nil {
		t.Fatalf("RegisterFunction: %v", err)
	}

	results, err := s.Execute(`local q, r = divmod(17, 5) return q, r`, "divmod")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if results[0].Int64() != 3 || results[1].Int64() != 2 {
		t.Fatalf("expected 3, 2; got %v", results)
	}
}

func TestRegisterFunction_LastRegistrationWins(t *testing.T) {
	s := newTestState(t)

	first := func(args []luaruntime.Value) ([]luaruntime.Value, error) {
		return []luaruntime.Value{luaruntime.Str("first")}, nil
	}
	second := func(args []luaruntime.Value) ([]luaruntime.Value, error) {
		return []luaruntime.Value{luaruntime.Str("second")}, nil
	}

	if err := s.RegisterFunction("which", first); err != nil {
		t.Fatalf("RegisterFunction: %v", err)
	}
	if err := s.RegisterFunction("which", second); err != nil {
		t.Fatalf("RegisterFunction: %v", err)
	}

	results, err := s.Execute(`return which()`, "which")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if results[0].Str() != "second" {
		t.Fatalf("expected the later registration, got %v", results[0])
	}
}

func TestRegisterFunction_ReplacementSeenThroughCapturedReference(t *testing.T) {
	s := newTestState(t)

	if err := s.RegisterFunction("probe", func([]luaruntime.Value) ([]luaruntime.Value, error) {
		return []luaruntime.Value{luaruntime.Int(1)}, nil
	}); err != nil {
		t.Fatalf("RegisterFunction: %v", err)
	}

	// A script captures the global before replacement.
	if _, err := s.Execute(`captured = probe`, "capture"); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if err := s.RegisterFunction("probe", func([]luaruntime.Value) ([]luaruntime.Value, error) {
		return []luaruntime.Value{luaruntime.Int(2)}, nil
	}); err != nil {
		t.Fatalf("RegisterFunction: %v", err)
	}

	// The captured reference resolves by name at call time, so it
	// observes the replacement too.
	results, err := s.Execute(`return captured()`, "replay")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if results[0].Int64() != 2 {
		t.Fatalf("captured reference should see the replacement, got %v", results[0])
	}
}

func TestRegisterFunction_ErrorPropagatesToScript(t *testing.T) {
	s := newTestState(t)

	if err := s.RegisterFunction("fail", func([]luaruntime.Value) ([]luaruntime.Value, error) {
		return nil, errors.InvalidInput(errors.PhaseHost, "bad argument")
	}); err != nil {
		t.Fatalf("RegisterFunction: %v", err)
	}

	// pcall in the script observes the failure as a Lua error.
	results, err := s.Execute(`local ok, msg = pcall(fail) return ok, msg`, "pcall")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if results[0].Bool() {
		t.Fatal("pcall should report failure")
	}
	if !strings.Contains(results[1].Str(), "bad argument") {
		t.Fatalf("error message should reach the script, got %v", results[1])
	}
}

func TestRegisterFunction_PanicBecomesError(t *testing.T) {
	s := newTestState(t)

	if err := s.RegisterFunction("explode", func([]luaruntime.Value) ([]luaruntime.Value, error) {
		panic("kaboom")
	}); err != nil {
		t.Fatalf("RegisterFunction: %v", err)
	}

	_, err := s.Execute(`explode()`, "explode")
	if err == nil {
		t.Fatal("expected error from a panicking host function")
	}
	if !strings.Contains(err.Error(), "kaboom") {
		t.Fatalf("panic message should survive, got: %v", err)
	}
	if !strings.Contains(err.Error(), "explode") {
		t.Fatalf("function name should be identified, got: %v", err)
	}
}

func TestRegisterFunction_Validation(t *testing.T) {
	s := newTestState(t)

	if err := s.RegisterFunction("", func([]luaruntime.Value) ([]luaruntime.Value, error) {
		return nil, nil
	}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := s.RegisterFunction("noop", nil); err == nil {
		t.Fatal("expected error for nil function")
	}
}

func TestRegisterFunction_TableArguments(t *testing.T) {
	s := newTestState(t)

	var got luaruntime.Value
	if err := s.RegisterFunction("receive", func(args []luaruntime.Value) ([]luaruntime.Value, error) {
		got = args[0]
		return nil, nil
	}); err != nil {
		t.Fatalf("RegisterFunction: %v", err)
	}

	if _, err := s.Execute(`receive({kind = "report", pages = {1, 2}})`, "send"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	m := got.Map()
	if m["kind"].Str() != "report" {
		t.Fatalf("unexpected argument: %v", got)
	}
	if len(m["pages"].Sequence()) != 2 {
		t.Fatalf("nested sequence lost: %v", got)
	}
}

func TestAsyncMode_BlocksHostCalls(t *testing.T) {
	s := newTestState(t)

	if err := s.RegisterFunction("touch", func([]luaruntime.Value) ([]luaruntime.Value, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("RegisterFunction: %v", err)
	}

	s.SetAsyncMode(true)
	_, err := s.Execute(`touch()`, "async")
	if err == nil {
		t.Fatal("expected host call to be rejected in async mode")
	}
	if !strings.Contains(err.Error(), string(errors.KindAsyncUnavailable)) {
		t.Fatalf("expected async_unavailable, got: %v", err)
	}

	// Plain execution without host calls still works.
	if _, err := s.Execute(`return 1`, "pure"); err != nil {
		t.Fatalf("pure script should run in async mode: %v", err)
	}

	s.SetAsyncMode(false)
	if _, err := s.Execute(`touch()`, "sync"); err != nil {
		t.Fatalf("host call should work again: %v", err)
	}
}
