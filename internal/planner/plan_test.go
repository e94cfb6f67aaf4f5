package planner

import (
	"runtime"
	"strings"
	"testing"

	"github.com/langtools/compilerdriver/internal/imdg"
	"github.com/langtools/compilerdriver/internal/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultImage() string {
	if runtime.GOOS == "windows" {
		return "a.exe"
	}
	return "a.out"
}

// Compiling main.swift -> two jobs (compile, link); compile
// output is a temporary named "-main.o"; link output is a.out.
func TestCompileAndLink(t *testing.T) {
	in := Input{
		Kind:    options.KindBatch,
		Options: &options.Options{Inputs: []string{"main.swift"}},
	}
	jobs, diags := Plan(in)
	require.False(t, diags.HasErrors())
	require.Len(t, jobs, 2)

	compile := jobs[0]
	assert.Equal(t, KindCompile, compile.Kind)
	require.Len(t, compile.Outputs, 1)
	_, isLiteral := compile.Outputs[0].Path.Literal()
	assert.False(t, isLiteral, "the compile output is a scratch temporary")

	link := jobs[1]
	assert.Equal(t, KindLink, link.Kind)
	require.Len(t, link.Outputs, 1)
	lit, ok := link.Outputs[0].Path.Literal()
	require.True(t, ok)
	assert.Equal(t, defaultImage(), lit)
}

// -emit-module -emit-api-baseline foo.swift -> exactly one
// generateAPIBaseline job; -dump-sdk, -module foo, -I ., -o foo.api.json;
// never -abi.
func TestAPIBaselineOnly(t *testing.T) {
	in := Input{
		Kind: options.KindBatch,
		Options: &options.Options{
			EmitModule:      true,
			EmitAPIBaseline: true,
			Inputs:          []string{"foo.swift"},
		},
	}
	jobs, diags := Plan(in)
	require.False(t, diags.HasErrors())
	require.Len(t, jobs, 1)
	assert.Equal(t, KindGenerateAPIBaseline, jobs[0].Kind)

	args := jobs[0].LiteralArgs()
	assert.Contains(t, args, "-dump-sdk")
	assert.Contains(t, args, "-module")
	assert.Contains(t, args, "foo")
	assert.Contains(t, args, "-I")
	assert.Contains(t, args, ".")
	assert.Contains(t, args, "-o")
	assert.Contains(t, args, "foo.api.json")
	assert.NotContains(t, args, "-abi")
}

// An ABI baseline with an output-file-map override resolves the
// job's output to the mapped path and carries -abi.
func TestABIBaselineFromOutputFileMap(t *testing.T) {
	in := Input{
		Kind: options.KindBatch,
		Options: &options.Options{
			EmitModule:             true,
			EmitModuleInterface:    true,
			EnableLibraryEvolution: true,
			EmitDigesterBaseline:   true,
			DigesterMode:           "abi",
			Inputs:                 []string{"foo.swift"},
			Output:                 "/tmp/foo.swiftmodule",
		},
		OutputFileMap: OutputFileMap{
			"": {"abi-baseline-json": "/path/to/baseline.abi.json"},
		},
	}
	jobs, diags := Plan(in)
	require.False(t, diags.HasErrors())
	require.Len(t, jobs, 1)
	assert.Equal(t, KindGenerateABIBaseline, jobs[0].Kind)

	require.Len(t, jobs[0].Outputs, 1)
	lit, ok := jobs[0].Outputs[0].Path.Literal()
	require.True(t, ok)
	assert.Equal(t, "/path/to/baseline.abi.json", lit)
	assert.Contains(t, jobs[0].LiteralArgs(), "-abi")
}

// An invalid digester mode produces one diagnostic and no jobs.
func TestInvalidDigesterMode(t *testing.T) {
	in := Input{
		Kind: options.KindBatch,
		Options: &options.Options{
			EmitModule:           true,
			EmitDigesterBaseline: true,
			DigesterMode:         "notamode",
			Inputs:               []string{"foo.swift"},
		},
	}
	jobs, diags := Plan(in)
	assert.Empty(t, jobs)
	require.True(t, diags.HasErrors())

	found := false
	for _, d := range diags.Diagnostics() {
		if strings.Contains(d.Message, "notamode") {
			found = true
		}
	}
	assert.True(t, found, "expected a diagnostic mentioning the invalid digester mode")
}

func TestPlanImmediate_RequiresInPlace(t *testing.T) {
	in := Input{
		Kind:    options.KindInteractive,
		Options: &options.Options{Inputs: []string{"script.swift"}},
	}
	jobs, diags := Plan(in)
	require.False(t, diags.HasErrors())
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].RequiresInPlace)
}

func TestPlanInteractive_REPL(t *testing.T) {
	in := Input{
		Kind:    options.KindInteractive,
		Options: &options.Options{},
	}
	jobs, diags := Plan(in)
	require.False(t, diags.HasErrors())
	require.Len(t, jobs, 1)
	assert.Equal(t, KindREPL, jobs[0].Kind)
}

// Explicit module closure: the Mid module's compile job carries a
// module-file flag for each of its dependencies (Leaf and CLib), the CLib
// module map, and the flags that disable implicit module loading.
func TestExplicitModuleClosure(t *testing.T) {
	main := imdg.ID{Kind: imdg.ModuleSwiftSource, Name: "Main"}
	leaf := imdg.ID{Kind: imdg.ModuleSwiftInterface, Name: "Leaf"}
	mid := imdg.ID{Kind: imdg.ModuleSwiftInterface, Name: "Mid"}
	cLib := imdg.ID{Kind: imdg.ModuleClang, Name: "CLib"}

	g := imdg.NewGraph(main)
	g.Add(&imdg.Info{ID: main, Dependencies: []imdg.ID{mid}})
	g.Add(&imdg.Info{ID: mid, ModulePath: "Mid.swiftmodule", Dependencies: []imdg.ID{leaf, cLib},
		Details: imdg.Details{CommandLine: []string{"-frontend"}}})
	g.Add(&imdg.Info{ID: leaf, ModulePath: "Leaf.swiftmodule",
		Details: imdg.Details{CommandLine: []string{"-frontend"}, CacheKey: "leaf-key"}})
	g.Add(&imdg.Info{ID: cLib, ModulePath: "/x/CLib.pcm",
		Details: imdg.Details{CommandLine: []string{"-frontend"}, ModuleMapPath: "/x/module.modulemap"}})

	in := Input{
		Options: &options.Options{ExplicitModuleBuild: true},
		IMDG:    g,
	}
	jobs, err := PlanExplicitModuleJobs(in)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	var midJob *Job
	for _, j := range jobs {
		if j.Module == "Mid" {
			midJob = j
		}
	}
	require.NotNil(t, midJob)
	args := strings.Join(midJob.LiteralArgs(), " ")
	assert.Contains(t, args, "-swift-module-file=Leaf=leaf-key")
	assert.Contains(t, args, "-fmodule-file=CLib=/x/CLib.pcm")
	assert.Contains(t, args, "-fmodule-map-file=/x/module.modulemap")
	assert.Contains(t, args, "-disable-implicit-swift-modules")
	assert.Contains(t, args, "-fno-implicit-modules")
}

func TestExplicitModuleBuild_RejectsPlaceholder(t *testing.T) {
	main := imdg.ID{Kind: imdg.ModuleSwiftSource, Name: "Main"}
	ph := imdg.ID{Kind: imdg.ModuleSwiftPlaceholder, Name: "Ghost"}

	g := imdg.NewGraph(main)
	g.Add(&imdg.Info{ID: main, Dependencies: []imdg.ID{ph}})
	g.Add(&imdg.Info{ID: ph})

	in := Input{Options: &options.Options{ExplicitModuleBuild: true}, IMDG: g}
	_, err := PlanExplicitModuleJobs(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "placeholder")
}

func TestExplicitModuleBuild_RejectsBridgingHeaderPrebuilt(t *testing.T) {
	main := imdg.ID{Kind: imdg.ModuleSwiftSource, Name: "Main"}
	prebuilt := imdg.ID{Kind: imdg.ModuleSwiftPrebuiltExternal, Name: "Prebuilt"}

	g := imdg.NewGraph(main)
	g.Add(&imdg.Info{ID: main, Dependencies: []imdg.ID{prebuilt}})
	g.Add(&imdg.Info{ID: prebuilt, Details: imdg.Details{HasBridgingHeader: true}})

	in := Input{Options: &options.Options{ExplicitModuleBuild: true}, IMDG: g}
	_, err := PlanExplicitModuleJobs(in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bridging header")
}

func TestEmitModuleJob_PlannedAlongsideCompiles(t *testing.T) {
	in := Input{
		Kind: options.KindBatch,
		Options: &options.Options{
			EmitModule: true,
			Inputs:     []string{"a.swift", "b.swift"},
			Output:     "MyLib",
		},
	}
	jobs, diags := Plan(in)
	require.False(t, diags.HasErrors())

	var emit *Job
	compiles := 0
	for _, j := range jobs {
		switch j.Kind {
		case KindEmitModule:
			emit = j
		case KindCompile:
			compiles++
		}
	}
	require.NotNil(t, emit, "an emit-module job must be planned when -emit-module is set")
	assert.Equal(t, 2, compiles)

	require.NotEmpty(t, emit.Outputs)
	lit, ok := emit.Outputs[0].Path.Literal()
	require.True(t, ok)
	assert.Equal(t, "MyLib.swiftmodule", lit)
	assert.Len(t, emit.Inputs, 2, "the emit-module job consumes every source input")
}

func TestEmitModuleJob_InterfaceOutputs(t *testing.T) {
	in := Input{
		Kind: options.KindBatch,
		Options: &options.Options{
			EmitModule:             true,
			EmitModuleInterface:    true,
			EnableLibraryEvolution: true,
			Inputs:                 []string{"lib.swift"},
		},
	}
	jobs, diags := Plan(in)
	require.False(t, diags.HasErrors())

	var emit *Job
	for _, j := range jobs {
		if j.Kind == KindEmitModule {
			emit = j
		}
	}
	require.NotNil(t, emit)
	assert.Len(t, emit.Outputs, 2, "module plus textual interface")
	assert.Contains(t, emit.LiteralArgs(), "-enable-library-evolution")
}

func TestPCHJob_CompilesDependOnHeader(t *testing.T) {
	in := Input{
		Kind: options.KindBatch,
		Options: &options.Options{
			Inputs:           []string{"main.swift"},
			ImportObjCHeader: "bridge.h",
			PCHOutputDir:     "/pch",
		},
	}
	jobs, diags := Plan(in)
	require.False(t, diags.HasErrors())

	var pch, compile *Job
	for _, j := range jobs {
		switch j.Kind {
		case KindGeneratePCH:
			pch = j
		case KindCompile:
			compile = j
		}
	}
	require.NotNil(t, pch)
	require.NotNil(t, compile)

	lit, ok := pch.Outputs[0].Path.Literal()
	require.True(t, ok)
	assert.Equal(t, "/pch/bridge.pch", lit)

	assert.Len(t, compile.Inputs, 2, "compile depends on its source and the precompiled header")
	assert.Len(t, compile.PrimaryInputs, 1, "the header is not a primary input")
}

func TestCompareBaselineJob(t *testing.T) {
	in := Input{
		Kind: options.KindBatch,
		Options: &options.Options{
			EmitModule:                   true,
			EmitModuleInterface:          true,
			EnableLibraryEvolution:       true,
			EmitDigesterBaseline:         true,
			DigesterMode:                 "abi",
			CompareToBaselinePath:        "/baselines/old.abi.json",
			SerializeBreakingChangesPath: "/out/breaking.dia",
			Inputs:                       []string{"foo.swift"},
		},
	}
	jobs, diags := Plan(in)
	require.False(t, diags.HasErrors())

	var compare *Job
	for _, j := range jobs {
		if j.Kind == KindCompareABIBaseline {
			compare = j
		}
	}
	require.NotNil(t, compare, "a compare job must be planned for -compare-to-baseline-path")

	args := strings.Join(compare.LiteralArgs(), " ")
	assert.Contains(t, args, "-baseline-path /baselines/old.abi.json")
	assert.Contains(t, args, "-abi")
	assert.Contains(t, args, "-serialize-diagnostics-path")
}

func TestVerifyModuleInterfaceJob_GatedOnAllThreeFlags(t *testing.T) {
	main := imdg.ID{Kind: imdg.ModuleSwiftSource, Name: "Main"}
	g := imdg.NewGraph(main)

	in := Input{
		Options: &options.Options{
			ExplicitModuleBuild:          true,
			VerifyEmittedModuleInterface: true,
			EnableLibraryEvolution:       true,
		},
		IMDG: g,
	}
	jobs, err := PlanExplicitModuleJobs(in)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, KindVerifyModuleInterface, jobs[0].Kind)
	assert.Contains(t, jobs[0].LiteralArgs(), "-explicit-interface-module-build")
}
