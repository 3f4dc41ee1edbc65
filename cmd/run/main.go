package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"

	luaruntime "github.com/wippyai/lua-runtime"
	"github.com/wippyai/lua-runtime/chunk"
	"github.com/wippyai/lua-runtime/engine"
	"github.com/wippyai/lua-runtime/runtime"
)

// fileConfig mirrors the -config TOML file.
type fileConfig struct {
	Preset        string            `toml:"preset"`
	Libraries     []string          `toml:"libraries"`
	CallStackSize int               `toml:"call_stack_size"`
	RegistrySize  int               `toml:"registry_size"`
	ModulePaths   []string          `toml:"module_paths"`
	Globals       map[string]string `toml:"globals"`
}

func main() {
	var (
		scriptFile  = flag.String("script", "", "Path to Lua script file")
		inline      = flag.String("e", "", "Inline Lua source to run")
		chunkFile   = flag.String("chunk", "", "Path to compiled chunk artifact")
		configFile  = flag.String("config", "", "Path to TOML config file")
		preset      = flag.String("libs", "safe", "Library preset (all, safe, none) or comma-separated names")
		compileOut  = flag.String("compile", "", "Compile the script to this artifact path instead of running")
		stripDebug  = flag.Bool("strip", false, "Strip debug names when compiling")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		runtime.SetLogger(logger.Named("runtime"))
		engine.SetLogger(logger.Named("engine"))
	}

	cfg, err := loadConfig(*configFile, *preset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *scriptFile == "" && *inline == "" && *chunkFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -script <file.lua> [-libs all|safe|none] [-config file.toml]")
		fmt.Fprintln(os.Stderr, "       run -e '<source>'")
		fmt.Fprintln(os.Stderr, "       run -script <file.lua> -compile <out.chunk> [-strip]")
		fmt.Fprintln(os.Stderr, "       run -chunk <file.chunk>")
		fmt.Fprintln(os.Stderr, "       run -i  (interactive mode)")
		os.Exit(1)
	}

	if err := run(cfg, *scriptFile, *inline, *chunkFile, *compileOut, *stripDebug); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig merges the TOML file (if any) with the -libs flag; the file
// wins when both specify a library surface.
func loadConfig(path, preset string) (*fileConfig, error) {
	cfg := &fileConfig{Preset: preset}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if cfg.Preset == "" && cfg.Libraries == nil {
			cfg.Preset = preset
		}
	}
	return cfg, nil
}

func libraries(cfg *fileConfig) []string {
	if cfg.Libraries != nil {
		return cfg.Libraries
	}
	switch cfg.Preset {
	case "all":
		return runtime.LibsAll()
	case "none":
		return runtime.LibsNone()
	case "safe", "":
		return runtime.LibsSafe()
	default:
		// Explicit comma-separated library names.
		return strings.Split(cfg.Preset, ",")
	}
}

func newRuntime(cfg *fileConfig) (*runtime.Runtime, error) {
	rt, err := runtime.New(runtime.Options{
		Libraries:     libraries(cfg),
		CallStackSize: cfg.CallStackSize,
		RegistrySize:  cfg.RegistrySize,
	})
	if err != nil {
		return nil, err
	}

	for _, p := range cfg.ModulePaths {
		if err := rt.AddModulePath(p); err != nil {
			rt.Close()
			return nil, err
		}
	}
	for name, value := range cfg.Globals {
		if err := rt.SetGlobal(name, luaruntime.Str(value)); err != nil {
			rt.Close()
			return nil, err
		}
	}
	return rt, nil
}

func run(cfg *fileConfig, scriptFile, inline, chunkFile, compileOut string, stripDebug bool) error {
	source := inline
	name := "inline"
	if scriptFile != "" {
		data, err := os.ReadFile(scriptFile)
		if err != nil {
			return fmt.Errorf("read script: %w", err)
		}
		source = string(data)
		name = scriptFile
	}

	if compileOut != "" {
		if source == "" {
			return fmt.Errorf("compile requires -script or -e")
		}
		data, err := chunk.Compile(source, name, chunk.Options{StripDebug: stripDebug})
		if err != nil {
			return fmt.Errorf("compile: %w", err)
		}
		if err := os.WriteFile(compileOut, data, 0o644); err != nil {
			return fmt.Errorf("write artifact: %w", err)
		}
		fmt.Printf("Compiled %s -> %s (%d bytes)\n", name, compileOut, len(data))
		return nil
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	defer rt.Close()

	var results []luaruntime.Value
	if chunkFile != "" {
		data, err := os.ReadFile(chunkFile)
		if err != nil {
			return fmt.Errorf("read artifact: %w", err)
		}
		results, err = rt.LoadAndRun(data)
		if err != nil {
			return err
		}
	} else {
		results, err = rt.Execute(source, name)
		if err != nil {
			return err
		}
	}

	for _, v := range results {
		fmt.Println(formatValue(v))
	}
	return nil
}

func formatValue(v luaruntime.Value) string {
	switch v.Kind() {
	case luaruntime.KindString:
		return fmt.Sprintf("%q", v.Str())
	case luaruntime.KindSequence:
		parts := make([]string, len(v.Sequence()))
		for i, item := range v.Sequence() {
			parts[i] = formatValue(item)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case luaruntime.KindMap:
		parts := make([]string, 0, len(v.Map()))
		for k, item := range v.Map() {
			parts = append(parts, k+" = "+formatValue(item))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return v.String()
	}
}
