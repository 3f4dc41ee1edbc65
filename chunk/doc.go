// Package chunk implements the portable compiled-script artifact.
//
// A chunk is a CBOR envelope carrying a script that has already been
// through the compiler once, so loading it later cannot fail with a syntax
// error. The envelope stores source rather than instruction dumps; the
// interpreter's internal function layout is not a stable serialization
// surface, and recompiling validated source produces an identical program.
//
// Compile validates and packages a script:
//
//	data, err := chunk.Compile(source, "startup", chunk.Options{StripDebug: true})
//
// Decode unpacks and re-validates the envelope:
//
//	c, err := chunk.Decode(data)
//	proto, err := c.Proto()
//
// With StripDebug set, local variable and upvalue names are removed from
// the compiled program. Source positions are kept so error tracebacks
// still carry line numbers.
package chunk
