package engine

import (
	"strconv"

	lua "github.com/yuin/gopher-lua"

	luaruntime "github.com/wippyai/lua-runtime"
	"github.com/wippyai/lua-runtime/errors"
	"github.com/wippyai/lua-runtime/registry"
)

// ThreadStatus reports the lifecycle state of a controlled coroutine.
type ThreadStatus uint8

const (
	ThreadSuspended ThreadStatus = iota
	ThreadDead
)

func (st ThreadStatus) String() string {
	switch st {
	case ThreadSuspended:
		return "suspended"
	case ThreadDead:
		return "dead"
	}
	return "unknown"
}

// thread is a coroutine created and owned by this state. Only threads of
// this type are resumable through the controller; thread values captured
// from script output hold a bare *lua.LState and resume as not_resumable.
type thread struct {
	co     *lua.LState
	cancel func()
	fn     *lua.LFunction
	status ThreadStatus
}

// NewCoroutine creates a suspended coroutine that will run the function
// behind fnHandle, returning a thread handle for Resume and Status.
func (s *State) NewCoroutine(fnHandle *luaruntime.Handle) (*luaruntime.Handle, error) {
	fn, err := s.functionForHandle(fnHandle)
	if err != nil {
		return nil, err
	}

	co, cancel := s.L.NewThread()
	t := &thread{co: co, cancel: cancel, fn: fn, status: ThreadSuspended}
	id := s.refs.Insert(registry.SlotThread, t)
	return luaruntime.NewHandle(id, s.refs), nil
}

// Resume runs the coroutine until it yields, completes, or fails. Yielded
// and returned values are marshalled out. A completed or failed coroutine
// is dead; resuming it again is an error. A marshalling failure of yielded
// values also kills the coroutine, since its yield results were lost.
func (s *State) Resume(h *luaruntime.Handle, args []luaruntime.Value) ([]luaruntime.Value, ThreadStatus, error) {
	t, err := s.controlledThread(h)
	if err != nil {
		return nil, ThreadDead, err
	}
	if t.status == ThreadDead {
		return nil, ThreadDead, errors.DeadThread(h.ID())
	}

	largs := make([]lua.LValue, 0, len(args))
	for i, a := range args {
		lv, err := s.ToLua(a, 0)
		if err != nil {
			return nil, t.status, errors.Wrap(errors.PhasePush, errors.KindInvalidData, err,
				"resume argument "+strconv.Itoa(i+1))
		}
		largs = append(largs, lv)
	}

	st, rerr, rvals := s.L.Resume(t.co, t.fn, largs...)

	switch st {
	case lua.ResumeYield:
		out, err := s.marshalResumeValues(rvals)
		if err != nil {
			t.status = ThreadDead
			return nil, ThreadDead, err
		}
		return out, ThreadSuspended, nil
	case lua.ResumeOK:
		t.status = ThreadDead
		out, err := s.marshalResumeValues(rvals)
		if err != nil {
			return nil, ThreadDead, err
		}
		return out, ThreadDead, nil
	default:
		t.status = ThreadDead
		msg := "coroutine failed"
		if rerr != nil {
			msg = luaErrorMessage(rerr)
		}
		return nil, ThreadDead, errors.RuntimeFault(errors.PhaseCoroutine, msg)
	}
}

// Status reports the coroutine's state without advancing it.
func (s *State) Status(h *luaruntime.Handle) (ThreadStatus, error) {
	t, err := s.controlledThread(h)
	if err != nil {
		return ThreadDead, err
	}
	return t.status, nil
}

func (s *State) controlledThread(h *luaruntime.Handle) (*thread, error) {
	if !h.Valid() {
		return nil, errors.InvalidHandle(errors.PhaseCoroutine, "thread handle is invalid")
	}
	raw, ok := s.refs.GetTyped(h.ID(), registry.SlotThread)
	if !ok {
		return nil, errors.NotFound(errors.PhaseRegistry, "thread slot", strconv.Itoa(int(h.ID())))
	}
	t, ok := raw.(*thread)
	if !ok {
		// A thread value that surfaced from script output, not one built
		// through NewCoroutine. Its entry function is unknown, so it
		// cannot be driven from here.
		return nil, errors.NotResumable(h.ID())
	}
	return t, nil
}

func (s *State) marshalResumeValues(rvals []lua.LValue) ([]luaruntime.Value, error) {
	out := make([]luaruntime.Value, 0, len(rvals))
	for _, rv := range rvals {
		v, err := s.FromLua(rv, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
