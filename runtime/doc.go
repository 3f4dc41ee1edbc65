// Package runtime provides the high-level API for embedding Lua.
//
// # Quick Start
//
//	rt, err := runtime.New(runtime.Options{Libraries: runtime.LibsSafe()})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	// Run a script and collect its results
//	results, err := rt.Execute(`return 1 + 2`, "calc")
//	fmt.Println(results[0].Int64()) // 3
//
// # Library Presets
//
// The standard library surface is chosen at construction:
//
//	LibsAll()   - every library, including io, os and debug
//	LibsSafe()  - base, package, table, string, math, coroutine
//	LibsNone()  - a bare interpreter with no globals
//
// Pass an explicit slice of engine.Lib* names for anything in between.
// Excluded libraries are never opened; their globals read as nil inside
// scripts, and file loaders (dofile, loadfile) are removed whenever the io
// library is excluded.
//
// # Host Functions and Objects
//
// Go functions become script-callable globals:
//
//	rt.RegisterFunction("fetch", func(args []luaruntime.Value) ([]luaruntime.Value, error) {
//	    ...
//	})
//
// Go objects become userdata with permission-checked property access:
//
//	h, err := rt.BindObject("config", cfg, engine.BindOptions{Readable: true})
//	defer h.Release()
//
// # Single Ownership
//
// A Runtime wraps one interpreter and admits one operation at a time.
// Concurrent calls fail fast with a busy error instead of queueing.
// ExecuteAsync moves one execution to a worker goroutine; while it runs,
// the interpreter stays exclusively owned by that goroutine and host
// function calls from the script are rejected.
package runtime
