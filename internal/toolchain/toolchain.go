// Package toolchain resolves the paths to the external tools the driver
// invokes (compiler frontend, linker, archiver, module scanner library,
// diagnostic-serialization tool — all opaque external collaborators) and
// validates the resolved configuration before planning begins. Tool
// discovery itself — searching PATH, falling back to a well-known legacy
// name — is a surrounding concern; this package owns
// the override/fallback contract, not SDK
// or platform path-quoting logic.
package toolchain

import (
	"fmt"
	"os"
	"os/exec"
)

// Tool names the distinct external executables/libraries the planner emits
// jobs against.
type Tool string

const (
	ToolFrontend             Tool = "frontend"
	ToolLinker               Tool = "linker"
	ToolArchiver             Tool = "archiver"
	ToolModuleScannerLib     Tool = "module-scanner"
	ToolDiagnosticSerializer Tool = "diagnostic-serializer"
)

// canonicalName is the basename toolchain discovery searches PATH for.
var canonicalName = map[Tool]string{
	ToolFrontend:             "driver-frontend",
	ToolLinker:               "ld",
	ToolArchiver:             "ar",
	ToolModuleScannerLib:     "libScanDependencies.so",
	ToolDiagnosticSerializer: "driver-diagnostic-serializer",
}

// legacyName is the well-known fallback name used when canonicalName isn't
// found on PATH.
var legacyName = map[Tool]string{
	ToolFrontend: "swift-frontend",
}

// envOverride is the process-wide environment variable that overrides a
// tool's discovered path, e.g. SWIFT_DRIVER_SWIFT_FRONTEND_EXEC.
var envOverride = map[Tool]string{
	ToolFrontend:             "SWIFT_DRIVER_SWIFT_FRONTEND_EXEC",
	ToolLinker:               "SWIFT_DRIVER_LD_EXEC",
	ToolArchiver:             "SWIFT_DRIVER_AR_EXEC",
	ToolModuleScannerLib:     "SWIFT_DRIVER_SCANNER_LIB",
	ToolDiagnosticSerializer: "SWIFT_DRIVER_DIAGNOSTIC_SERIALIZER_EXEC",
}

// Capabilities records what a resolved tool supports, since the executor's
// response-file materialization depends on whether the target
// tool advertises response-file support.
type Capabilities struct {
	SupportsResponseFiles bool
}

// ResolvedTool is a tool's resolved path plus its capability bits.
type ResolvedTool struct {
	Path         string
	Capabilities Capabilities
}

// Config is the typed, validated toolchain configuration, populated from
// environment variables with documented defaults (the
// DefaultConfig/Load/Validate shape).
type Config struct {
	Tools map[Tool]ResolvedTool
}

// DefaultConfig returns a Config with every tool's default capability bits
// set; Tools is populated by Load.
func DefaultConfig() *Config {
	return &Config{
		Tools: map[Tool]ResolvedTool{
			ToolFrontend:             {Capabilities: Capabilities{SupportsResponseFiles: true}},
			ToolLinker:               {Capabilities: Capabilities{SupportsResponseFiles: true}},
			ToolArchiver:             {Capabilities: Capabilities{SupportsResponseFiles: false}},
			ToolDiagnosticSerializer: {Capabilities: Capabilities{SupportsResponseFiles: false}},
			ToolModuleScannerLib:     {Capabilities: Capabilities{SupportsResponseFiles: false}},
		},
	}
}

// Lookup abstracts exec.LookPath so tests can substitute a fake PATH search
// without touching the real filesystem.
type Lookup func(name string) (string, error)

// Load resolves every tool's path: an env-var override wins outright;
// otherwise the canonical name is searched for on PATH, falling back to the
// legacy name. lookup defaults to exec.LookPath when nil. Only an
// unresolvable frontend is an error; any other unresolved tool keeps an
// empty Path, which Validate reports when that tool is required.
func Load(lookup Lookup) (*Config, error) {
	if lookup == nil {
		lookup = exec.LookPath
	}
	cfg := DefaultConfig()

	for tool, rt := range cfg.Tools {
		path, err := resolveOne(tool, lookup)
		if err != nil {
			if tool == ToolFrontend {
				return nil, err
			}
			continue
		}
		rt.Path = path
		cfg.Tools[tool] = rt
	}
	return cfg, nil
}

func resolveOne(tool Tool, lookup Lookup) (string, error) {
	if envVar, ok := envOverride[tool]; ok {
		if override := os.Getenv(envVar); override != "" {
			return override, nil
		}
	}

	if name, ok := canonicalName[tool]; ok {
		if path, err := lookup(name); err == nil {
			return path, nil
		}
	}
	if legacy, ok := legacyName[tool]; ok {
		if path, err := lookup(legacy); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("tool-not-found: could not resolve a path for %s", tool)
}

// Validate checks the resolved configuration is usable before planning
// begins: every tool the planner may need must have a non-empty path.
func Validate(cfg *Config, required ...Tool) error {
	for _, tool := range required {
		rt, ok := cfg.Tools[tool]
		if !ok || rt.Path == "" {
			return fmt.Errorf("tool-not-found: no resolved path for required tool %s", tool)
		}
	}
	return nil
}
