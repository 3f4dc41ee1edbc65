package luaruntime

import (
	"fmt"
	"strconv"
)

// Kind discriminates the variants of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindSequence
	KindMap
	KindFunction
	KindThread
	KindTable
	KindUserdata
)

var kindNames = [...]string{
	KindNil:      "nil",
	KindBool:     "bool",
	KindInt64:    "int64",
	KindFloat64:  "float64",
	KindString:   "string",
	KindSequence: "sequence",
	KindMap:      "map",
	KindFunction: "function",
	KindThread:   "thread",
	KindTable:    "table",
	KindUserdata: "userdata",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsHandle reports whether values of this kind reference a registry slot
// rather than carrying a structural copy.
func (k Kind) IsHandle() bool {
	switch k {
	case KindFunction, KindThread, KindTable, KindUserdata:
		return true
	}
	return false
}

// Value is the host-neutral representation of a Lua value. The zero Value
// is nil. Compound values own their children; handle-bearing values share
// a single Handle across copies.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	seq  []Value
	m    map[string]Value
	h    *Handle
}

// Nil returns the nil Value.
func Nil() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps a 64-bit integer.
func Int(i int64) Value { return Value{kind: KindInt64, i: i} }

// Float wraps a float64.
func Float(f float64) Value { return Value{kind: KindFloat64, f: f} }

// Str wraps a string. The bytes are carried verbatim; no UTF-8 validity is
// assumed on either side of the boundary.
func Str(s string) Value { return Value{kind: KindString, s: s} }

// Seq wraps a sequence. The slice is owned by the Value.
func Seq(items []Value) Value { return Value{kind: KindSequence, seq: items} }

// MapOf wraps a string-keyed map. The map is owned by the Value; insertion
// order is irrelevant.
func MapOf(m map[string]Value) Value { return Value{kind: KindMap, m: m} }

// FuncValue wraps a FunctionHandle.
func FuncValue(h *Handle) Value { return Value{kind: KindFunction, h: h} }

// ThreadValue wraps a ThreadHandle.
func ThreadValue(h *Handle) Value { return Value{kind: KindThread, h: h} }

// TableValue wraps a TableHandle, a reference to an aggregate with attached
// behavior that must not be deep-copied.
func TableValue(h *Handle) Value { return Value{kind: KindTable, h: h} }

// UserdataValue wraps a UserdataHandle.
func UserdataValue(h *Handle) Value { return Value{kind: KindUserdata, h: h} }

// Kind returns the variant discriminant.
func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether the value is nil.
func (v Value) IsNil() bool { return v.kind == KindNil }

// Bool returns the boolean payload, or false for other kinds.
func (v Value) Bool() bool { return v.b }

// Int64 returns the integer payload, or 0 for other kinds.
func (v Value) Int64() int64 { return v.i }

// Float64 returns the float payload. For KindInt64 it returns the integer
// widened to float64, so numeric callers can read either kind uniformly.
func (v Value) Float64() float64 {
	if v.kind == KindInt64 {
		return float64(v.i)
	}
	return v.f
}

// Str returns the string payload, or "" for other kinds.
func (v Value) Str() string { return v.s }

// Sequence returns the sequence payload, or nil for other kinds.
func (v Value) Sequence() []Value { return v.seq }

// Map returns the map payload, or nil for other kinds.
func (v Value) Map() map[string]Value { return v.m }

// Handle returns the shared handle for handle kinds, or nil for structural
// kinds.
func (v Value) Handle() *Handle { return v.h }

// Equal reports deep equality. Structural kinds compare by content; handle
// kinds compare by slot id. Int64 and Float64 are distinct kinds and never
// compare equal, mirroring the embedded runtime's number subtypes.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt64:
		return v.i == o.i
	case KindFloat64:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindSequence:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, mv := range v.m {
			ov, ok := o.m[k]
			if !ok || !mv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		if v.h == nil || o.h == nil {
			return v.h == o.h
		}
		return v.h.ID() == o.h.ID()
	}
}

// String renders a short human-readable form, used in diagnostics and the
// CLI. It is not a serialization format.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.f, 'g', 14, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindSequence:
		return fmt.Sprintf("sequence(%d)", len(v.seq))
	case KindMap:
		return fmt.Sprintf("map(%d)", len(v.m))
	default:
		if v.h == nil {
			return v.kind.String() + "(invalid)"
		}
		return fmt.Sprintf("%s#%d", v.kind, v.h.ID())
	}
}
