package planner

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/langtools/compilerdriver/internal/diagnostic"
	"github.com/langtools/compilerdriver/internal/imdg"
	"github.com/langtools/compilerdriver/internal/options"
	"github.com/langtools/compilerdriver/internal/toolchain"
	"github.com/langtools/compilerdriver/internal/vpath"
)

// Input carries everything Plan needs beyond the resolved Options: the
// driver kind (which decides the planning mode), the resolved toolchain, and
// — for explicit module builds — the IMDG the scanner produced.
type Input struct {
	Kind          options.DriverKind
	Options       *options.Options
	Toolchain     *toolchain.Config
	OutputFileMap OutputFileMap
	IMDG          *imdg.Graph // nil unless Options.ExplicitModuleBuild
	CASPath       string
}

// Plan produces the DAG of jobs for one invocation. It
// validates options first; any validation error means no jobs
// are planned at all.
func Plan(in Input) ([]*Job, *diagnostic.Collector) {
	diags := options.Validate(in.Options)
	if diags.HasErrors() {
		return nil, diags
	}

	mode := options.ComputeMode(in.Kind, in.Options)

	if baselineJobs, ok := planBaselineOnly(in, diags); ok {
		return baselineJobs, diags
	}
	if diags.HasErrors() {
		return nil, diags
	}

	switch mode {
	case options.ModeInteractive:
		return []*Job{planREPLJob(in)}, diags
	case options.ModeImmediate:
		return []*Job{planImmediateJob(in)}, diags
	default:
		return planStandardOrWholeModule(in, diags)
	}
}

// planBaselineOnly handles the API/ABI baseline and digester invocations:
// when a baseline is requested, the planner emits
// exactly the requested baseline job(s) and nothing else. ok is false when
// no baseline was requested, so the caller falls through to normal planning.
func planBaselineOnly(in Input, diags *diagnostic.Collector) ([]*Job, bool) {
	o := in.Options
	wantAPI := o.EmitAPIBaseline || (o.EmitDigesterBaseline && (o.DigesterMode == "" || o.DigesterMode == "api"))
	wantABI := o.EmitABIBaseline || (o.EmitDigesterBaseline && o.DigesterMode == "abi")
	wantCompare := o.CompareToBaselinePath != ""
	if !wantAPI && !wantABI && !wantCompare {
		return nil, false
	}
	if o.DigesterMode != "" && o.DigesterMode != "api" && o.DigesterMode != "abi" {
		// Validate already reported CategoryInvalidEnumValue; produce no jobs.
		return nil, true
	}

	var primary string
	if len(o.Inputs) > 0 {
		primary = o.Inputs[0]
	}
	moduleName := moduleNameFromInput(primary)
	includePaths := o.IncludePaths
	if len(includePaths) == 0 {
		includePaths = []string{"."}
	}

	var jobs []*Job
	if wantAPI {
		out := deriveOutput(o.EmitAPIBaselinePath, in.OutputFileMap, "", "api-baseline-json", primary, ".api.json", vpath.FileAPIBaseline)
		jobs = append(jobs, baselineJob(KindGenerateAPIBaseline, moduleName, includePaths, out, false))
	}
	if wantABI {
		base := primary
		if v, ok := in.OutputFileMap.Get("", "swiftsourceinfo"); ok {
			base = replaceExt(v, "")
		}
		out := deriveOutput(o.EmitABIBaselinePath, in.OutputFileMap, "", "abi-baseline-json", base, ".abi.json", vpath.FileABIBaseline)
		jobs = append(jobs, baselineJob(KindGenerateABIBaseline, moduleName, includePaths, out, true))
	}
	if wantCompare {
		jobs = append(jobs, compareBaselineJob(o, moduleName, includePaths))
	}
	return jobs, true
}

// compareBaselineJob plans the baseline-comparison invocation for
// -compare-to-baseline-path, in the mode -digester-mode selects. The job has
// no planned outputs of its own unless breaking changes are being serialized.
func compareBaselineJob(o *options.Options, moduleName string, includePaths []string) *Job {
	kind := KindCompareAPIBaseline
	abi := o.DigesterMode == "abi"
	if abi {
		kind = KindCompareABIBaseline
	}

	args := []Arg{Lit("-diagnose-sdk"), Lit("-module"), Lit(moduleName)}
	for _, p := range includePaths {
		args = append(args, Lit("-I"), Lit(p))
	}
	if abi {
		args = append(args, Lit("-abi"))
	}
	args = append(args, Lit("-baseline-path"), Lit(o.CompareToBaselinePath))

	job := &Job{Module: moduleName, Kind: kind, Args: args}
	if o.SerializeBreakingChangesPath != "" {
		out := vpath.TypedPath{Path: vpath.Absolute(o.SerializeBreakingChangesPath), Type: vpath.FileSerializedDiagnostics}
		job.Args = append(job.Args, Lit("-serialize-diagnostics-path"), PathArg(out))
		job.Outputs = append(job.Outputs, out)
	}
	if o.DigesterBreakageAllowlistPath != "" {
		job.Args = append(job.Args, Lit("-breakage-allowlist-path"), Lit(o.DigesterBreakageAllowlistPath))
	}
	return job
}

func baselineJob(kind Kind, moduleName string, includePaths []string, out vpath.TypedPath, abi bool) *Job {
	args := []Arg{Lit("-dump-sdk"), Lit("-module"), Lit(moduleName)}
	for _, p := range includePaths {
		args = append(args, Lit("-I"), Lit(p))
	}
	if abi {
		args = append(args, Lit("-abi"))
	}
	args = append(args, Lit("-o"), PathArg(out))

	return &Job{
		Module:  moduleName,
		Kind:    kind,
		Args:    args,
		Outputs: []vpath.TypedPath{out},
	}
}

func planREPLJob(in Input) *Job {
	return &Job{
		Kind:            KindREPL,
		RequiresInPlace: true,
	}
}

func planImmediateJob(in Input) *Job {
	var inputs []vpath.TypedPath
	for _, f := range in.Options.Inputs {
		inputs = append(inputs, vpath.TypedPath{Path: vpath.Relative(f), Type: vpath.FileSource})
	}
	return &Job{
		Kind:            KindCompile,
		Inputs:          inputs,
		PrimaryInputs:   inputs,
		RequiresInPlace: true,
	}
}

// planStandardOrWholeModule plans the default build shape: a compile job
// per input feeding object outputs into one link job,
// generalized to whole-module mode where one compile job covers every
// input. Explicit module build jobs are interleaved when active.
func planStandardOrWholeModule(in Input, diags *diagnostic.Collector) ([]*Job, *diagnostic.Collector) {
	var jobs []*Job

	if in.Options.ExplicitModuleBuild {
		moduleJobs, err := PlanExplicitModuleJobs(in)
		if err != nil {
			category := diagnostic.CategoryUnsupportedConfiguration
			if strings.HasPrefix(err.Error(), "placeholder-module-in-explicit-build") {
				category = diagnostic.CategoryPlaceholderModule
			}
			diags.Error(category, "", 0, err.Error())
			return nil, diags
		}
		jobs = append(jobs, moduleJobs...)
	}

	var objects []vpath.TypedPath
	wholeModule := in.Options.WholeModuleOptimization

	var pch *vpath.TypedPath
	if in.Options.ImportObjCHeader != "" {
		pchJob := planPCHJob(in.Options)
		jobs = append(jobs, pchJob)
		pch = &pchJob.Outputs[0]
	}

	if wholeModule {
		objOut := deriveOutput("", in.OutputFileMap, "", "object", firstInputOr(in.Options.Inputs, in.Options.Output), ".o", vpath.FileObject)
		var inputs []vpath.TypedPath
		for _, f := range in.Options.Inputs {
			inputs = append(inputs, vpath.TypedPath{Path: vpath.Relative(f), Type: vpath.FileSource})
		}
		compileInputs := inputs
		if pch != nil {
			compileInputs = append(append([]vpath.TypedPath(nil), inputs...), *pch)
		}
		jobs = append(jobs, &Job{
			Kind: KindCompile, Inputs: compileInputs, PrimaryInputs: inputs,
			Outputs: []vpath.TypedPath{objOut},
			Args:    []Arg{Lit("-wmo")},
		})
		objects = append(objects, objOut)
	} else {
		for _, f := range in.Options.Inputs {
			srcIn := vpath.TypedPath{Path: vpath.Relative(f), Type: vpath.FileSource}
			objOut := deriveOutput("", in.OutputFileMap, f, "object", "", uniqueSuffix(f), vpath.FileObject)
			compileInputs := []vpath.TypedPath{srcIn}
			if pch != nil {
				compileInputs = append(compileInputs, *pch)
			}
			jobs = append(jobs, &Job{
				Kind: KindCompile, Inputs: compileInputs, PrimaryInputs: []vpath.TypedPath{srcIn},
				Outputs: []vpath.TypedPath{objOut},
			})
			objects = append(objects, objOut)
		}
	}

	if emitModule := planEmitModuleJob(in); emitModule != nil {
		jobs = append(jobs, emitModule)
	}

	if len(objects) == 0 {
		return jobs, diags
	}

	linkOut := deriveLinkOutput(in.Options.Output, in.OutputFileMap)
	linkJob := &Job{
		Kind: KindLink, Inputs: objects, Outputs: []vpath.TypedPath{linkOut},
	}
	if in.Options.ExplicitModuleBuild {
		linkJob.IsExplicitMainModuleJob = true
		if runtime.GOOS == "darwin" {
			autolink := vpath.TypedPath{Path: vpath.NewTemporary(".autolink"), Type: vpath.FileAutolinkData}
			jobs = append(jobs, &Job{Kind: KindAutolinkExtract, Inputs: objects, Outputs: []vpath.TypedPath{autolink}})
			linkJob.Inputs = append(linkJob.Inputs, autolink)
		}
	}
	jobs = append(jobs, linkJob)

	return jobs, diags
}

func firstInputOr(inputs []string, fallback string) string {
	if len(inputs) > 0 {
		return inputs[0]
	}
	return fallback
}

// uniqueSuffix names a per-file compile output's temp-scratch suffix, e.g.
// "-main.o", keeping temp names recognizable in debugging output.
func uniqueSuffix(sourcePath string) string {
	return "-" + moduleNameFromInput(sourcePath) + ".o"
}

// deriveLinkOutput resolves the link job's image output: an explicit -o,
// else an output-file-map entry, else the platform's default image name
// — never a
// scratch temporary, since the final linked product is the whole point of
// the build.
func deriveLinkOutput(explicit string, ofm OutputFileMap) vpath.TypedPath {
	if explicit != "" {
		return vpath.TypedPath{Path: vpath.Relative(explicit), Type: vpath.FileImage}
	}
	if v, ok := ofm.Get("", "image"); ok {
		return vpath.TypedPath{Path: vpath.Absolute(v), Type: vpath.FileImage}
	}
	return vpath.TypedPath{Path: vpath.Relative(defaultImageName()), Type: vpath.FileImage}
}

func defaultImageName() string {
	if runtime.GOOS == "windows" {
		return "a.exe"
	}
	return "a.out"
}

// planPCHJob precompiles the bridging header named by -import-objc-header.
// The output lands in -pch-output-dir when given, otherwise in the driver's
// scratch directory.
func planPCHJob(o *options.Options) *Job {
	header := vpath.TypedPath{Path: vpath.Relative(o.ImportObjCHeader), Type: vpath.FileSource}

	var out vpath.TypedPath
	if o.PCHOutputDir != "" {
		name := replaceExt(filepath.Base(o.ImportObjCHeader), ".pch")
		out = vpath.TypedPath{Path: vpath.Relative(filepath.Join(o.PCHOutputDir, name)), Type: vpath.FilePrecompiledHeader}
	} else {
		out = vpath.TypedPath{Path: vpath.NewTemporary(".pch"), Type: vpath.FilePrecompiledHeader}
	}

	return &Job{
		Kind:          KindGeneratePCH,
		Args:          []Arg{Lit("-emit-pch"), PathArg(header), Lit("-o"), PathArg(out)},
		Inputs:        []vpath.TypedPath{header},
		PrimaryInputs: []vpath.TypedPath{header},
		Outputs:       []vpath.TypedPath{out},
	}
}

// planEmitModuleJob plans the emit-module job when -emit-module (or an
// explicit -emit-module-path) is in effect: one job consuming every source
// input and producing the compiled module, plus the textual interface(s)
// when interface emission is requested. Output precedence matches deriveOutput.
func planEmitModuleJob(in Input) *Job {
	o := in.Options
	if !o.EmitModule && o.EmitModulePath == "" {
		return nil
	}

	base := o.Output
	if base == "" {
		base = firstInputOr(o.Inputs, "")
	}
	moduleOut := deriveOutput(o.EmitModulePath, in.OutputFileMap, "", "swiftmodule", base, ".swiftmodule", vpath.FileCompiledModule)

	var inputs []vpath.TypedPath
	for _, f := range o.Inputs {
		inputs = append(inputs, vpath.TypedPath{Path: vpath.Relative(f), Type: vpath.FileSource})
	}

	job := &Job{
		Module:        moduleNameFromInput(base),
		Kind:          KindEmitModule,
		Args:          []Arg{Lit("-emit-module"), Lit("-o"), PathArg(moduleOut)},
		Inputs:        inputs,
		PrimaryInputs: inputs,
		Outputs:       []vpath.TypedPath{moduleOut},
	}

	if o.EmitModuleInterface || o.EmitModuleInterfacePath != "" {
		ifaceOut := deriveOutput(o.EmitModuleInterfacePath, in.OutputFileMap, "", "swiftinterface", base, ".swiftinterface", vpath.FileTextualModuleInterface)
		job.Args = append(job.Args, Lit("-emit-module-interface-path"), PathArg(ifaceOut))
		job.Outputs = append(job.Outputs, ifaceOut)
	}
	if o.EmitPrivateModuleInterfacePath != "" {
		privOut := vpath.TypedPath{Path: vpath.Absolute(o.EmitPrivateModuleInterfacePath), Type: vpath.FilePrivateTextualModuleInterface}
		job.Args = append(job.Args, Lit("-emit-private-module-interface-path"), PathArg(privOut))
		job.Outputs = append(job.Outputs, privOut)
	}
	if o.EnableLibraryEvolution {
		job.Args = append(job.Args, Lit("-enable-library-evolution"))
	}
	return job
}
