// Package errors provides structured error types for the lua-runtime library.
//
// Errors are categorized by Phase (where in the bridge the error occurred)
// and Kind (error category). The Error type includes rich context: a value
// path, Go/Lua type names, and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseMarshal, errors.KindDepthExceeded).
//		Path("config", "children").
//		Detail("nesting depth %d exceeds %d", depth, max).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.DepthExceeded(errors.PhasePush, 101)
//	err := errors.NotFound(errors.PhaseRegistry, "slot", "42")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
