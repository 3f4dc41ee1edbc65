package chunk

import (
	"strings"

	"github.com/fxamacker/cbor/v2"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/wippyai/lua-runtime/errors"
)

// FormatVersion is the envelope version this package writes and accepts.
const FormatVersion = 1

const magic = "LUAX"

// Options controls chunk compilation.
type Options struct {
	// StripDebug removes local variable and upvalue names from the
	// compiled program when the chunk is loaded.
	StripDebug bool
}

type envelope struct {
	Magic      string `cbor:"magic"`
	Version    uint8  `cbor:"version"`
	Name       string `cbor:"name"`
	StripDebug bool   `cbor:"strip_debug"`
	Source     string `cbor:"source"`
}

// Chunk is a decoded, validated artifact ready to produce a runnable
// program.
type Chunk struct {
	Name       string
	StripDebug bool

	source string
}

// Compile validates source under the given chunk name and packages it into
// an artifact. Syntax errors surface here, not at load time.
func Compile(source, name string, opts Options) ([]byte, error) {
	if name == "" {
		name = "chunk"
	}
	if _, err := compileSource(source, name); err != nil {
		return nil, err
	}

	data, err := cbor.Marshal(envelope{
		Magic:      magic,
		Version:    FormatVersion,
		Name:       name,
		StripDebug: opts.StripDebug,
		Source:     source,
	})
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCompile, errors.KindInvalidData, err, "encode chunk")
	}
	return data, nil
}

// Decode unpacks an artifact, rejecting envelopes with a wrong magic or an
// unsupported version.
func Decode(data []byte) (*Chunk, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, errors.Load("chunk envelope is malformed", err)
	}
	if env.Magic != magic {
		return nil, errors.Load("not a chunk artifact", nil)
	}
	if env.Version != FormatVersion {
		return nil, errors.Load("unsupported chunk version", nil)
	}
	return &Chunk{
		Name:       env.Name,
		StripDebug: env.StripDebug,
		source:     env.Source,
	}, nil
}

// Proto compiles the chunk into a runnable program, applying debug
// stripping when the artifact requests it.
func (c *Chunk) Proto() (*lua.FunctionProto, error) {
	proto, err := compileSource(c.source, c.Name)
	if err != nil {
		return nil, err
	}
	if c.StripDebug {
		stripDebugNames(proto)
	}
	return proto, nil
}

func compileSource(source, name string) (*lua.FunctionProto, error) {
	ast, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, errors.RuntimeFault(errors.PhaseCompile, err.Error())
	}
	proto, err := lua.Compile(ast, name)
	if err != nil {
		return nil, errors.RuntimeFault(errors.PhaseCompile, err.Error())
	}
	return proto, nil
}

// stripDebugNames clears identifier-level debug tables recursively. Source
// positions stay intact; removing them would break traceback rendering.
func stripDebugNames(proto *lua.FunctionProto) {
	proto.DbgLocals = nil
	proto.DbgUpvalues = nil
	for _, nested := range proto.FunctionPrototypes {
		stripDebugNames(nested)
	}
}
