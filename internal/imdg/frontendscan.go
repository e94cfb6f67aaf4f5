package imdg

import (
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/langtools/compilerdriver/internal/drivererr"
)

// scanOutput is the JSON document a frontend -scan-dependencies invocation
// prints: the main module plus every module transitively required, with
// kind-specific details.
type scanOutput struct {
	MainModuleName string       `json:"mainModuleName"`
	Modules        []scanModule `json:"modules"`
}

type scanModule struct {
	Kind               string      `json:"kind"`
	Name               string      `json:"name"`
	ModulePath         string      `json:"modulePath"`
	SourceFiles        []string    `json:"sourceFiles,omitempty"`
	DirectDependencies []scanDep   `json:"directDependencies,omitempty"`
	Details            scanDetails `json:"details"`
}

type scanDep struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

type scanDetails struct {
	InterfacePath      string   `json:"interfacePath,omitempty"`
	CompiledCandidates []string `json:"compiledCandidates,omitempty"`
	ContextHash        string   `json:"contextHash,omitempty"`
	CommandLine        []string `json:"commandLine,omitempty"`
	IsFramework        bool     `json:"isFramework,omitempty"`
	CacheKey           string   `json:"cacheKey,omitempty"`
	ModuleMapPath      string   `json:"moduleMapPath,omitempty"`
	CompiledModulePath string   `json:"compiledModulePath,omitempty"`
	HasBridgingHeader  bool     `json:"hasBridgingHeader,omitempty"`
}

var scanKinds = map[string]ModuleKind{
	"swift-source":            ModuleSwiftSource,
	"swift-interface":         ModuleSwiftInterface,
	"swift-prebuilt-external": ModuleSwiftPrebuiltExternal,
	"swift-placeholder":       ModuleSwiftPlaceholder,
	"clang":                   ModuleClang,
}

// ParseScanOutput decodes a -scan-dependencies JSON document into a Graph.
func ParseScanOutput(data []byte) (*Graph, error) {
	var out scanOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: decoding scanner output: %v", drivererr.ErrScanner, err)
	}
	if out.MainModuleName == "" {
		return nil, fmt.Errorf("%w: scanner output names no main module", drivererr.ErrScanner)
	}

	var g *Graph
	infos := make([]*Info, 0, len(out.Modules))
	for _, m := range out.Modules {
		kind, ok := scanKinds[m.Kind]
		if !ok {
			return nil, fmt.Errorf("%w: unknown module kind %q for %s", drivererr.ErrScanner, m.Kind, m.Name)
		}
		info := &Info{
			ID:          ID{Kind: kind, Name: m.Name},
			ModulePath:  m.ModulePath,
			SourceFiles: m.SourceFiles,
			Details: Details{
				InterfacePath:      m.Details.InterfacePath,
				CompiledCandidates: m.Details.CompiledCandidates,
				ContextHash:        m.Details.ContextHash,
				CommandLine:        m.Details.CommandLine,
				IsFramework:        m.Details.IsFramework,
				CacheKey:           m.Details.CacheKey,
				ModuleMapPath:      m.Details.ModuleMapPath,
				CompiledModulePath: m.Details.CompiledModulePath,
				HasBridgingHeader:  m.Details.HasBridgingHeader,
			},
		}
		for _, d := range m.DirectDependencies {
			depKind, ok := scanKinds[d.Kind]
			if !ok {
				return nil, fmt.Errorf("%w: unknown dependency kind %q on %s", drivererr.ErrScanner, d.Kind, m.Name)
			}
			info.Dependencies = append(info.Dependencies, ID{Kind: depKind, Name: d.Name})
		}
		if m.Name == out.MainModuleName {
			g = NewGraph(info.ID)
		}
		infos = append(infos, info)
	}
	if g == nil {
		return nil, fmt.Errorf("%w: main module %q not among scanned modules", drivererr.ErrScanner, out.MainModuleName)
	}
	for _, info := range infos {
		g.Add(info)
	}
	return g, nil
}

// FrontendScanner returns a ScanFunc that shells out to the frontend with
// -scan-dependencies and parses the JSON it prints. It is the scan function
// the CLI hands to the oracle, which wraps it with the usual memoization and
// CAS-conflict checks.
func FrontendScanner(frontendPath string) ScanFunc {
	return func(workingDir string, commandLine []string) (*Graph, error) {
		args := append([]string{"-scan-dependencies"}, commandLine...)
		cmd := exec.Command(frontendPath, args...)
		cmd.Dir = workingDir
		out, err := cmd.Output()
		if err != nil {
			return nil, fmt.Errorf("%w: scanning dependencies: %v", drivererr.ErrScanner, err)
		}
		return ParseScanOutput(out)
	}
}
