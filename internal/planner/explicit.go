package planner

import (
	"fmt"

	"github.com/langtools/compilerdriver/internal/imdg"
	"github.com/langtools/compilerdriver/internal/vpath"
)

// PlanExplicitModuleJobs plans the explicit module build: one
// job per non-main module in the IMDG, each forbidden from loading modules
// implicitly and carrying every transitive dependency's module-file flags,
// fixed-point-closed so an indirect dependency gets the same flags a direct
// one would. A placeholder module anywhere in the graph is rejected
// outright; a prebuilt module with a bridging header is an unsupported
// caching configuration.
func PlanExplicitModuleJobs(in Input) ([]*Job, error) {
	g := in.IMDG
	if g == nil {
		return nil, nil
	}

	if placeholders := g.Placeholders(); len(placeholders) > 0 {
		return nil, fmt.Errorf("placeholder-module-in-explicit-build: %s", placeholders[0].Name)
	}

	var jobs []*Job
	for _, info := range g.NonMainModules() {
		if info.ID.Kind == imdg.ModuleSwiftPlaceholder {
			return nil, fmt.Errorf("placeholder-module-in-explicit-build: %s", info.ID.Name)
		}
		if info.Details.HasBridgingHeader {
			return nil, fmt.Errorf("unsupported-configuration-for-caching: module %s is a prebuilt module with a bridging header dependency", info.ID.Name)
		}
		if info.ID.Kind == imdg.ModuleSwiftPrebuiltExternal {
			continue // already built; nothing to plan
		}

		job, err := planModuleJob(in, g, info)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if verify := planVerifyInterfaceJob(in); verify != nil {
		jobs = append(jobs, verify)
	}

	return jobs, nil
}

func planModuleJob(in Input, g *imdg.Graph, info *imdg.Info) (*Job, error) {
	var kind Kind
	switch info.ID.Kind {
	case imdg.ModuleSwiftInterface:
		kind = KindCompileModuleFromInterface
	case imdg.ModuleClang:
		kind = KindGeneratePCM
	default:
		return nil, fmt.Errorf("invariant-violated: unexpected module kind %s for %s", info.ID.Kind, info.ID.Name)
	}

	var args []Arg
	for _, c := range info.Details.CommandLine {
		args = append(args, Lit(c))
	}
	args = append(args, Lit("-disable-implicit-swift-modules"), Lit("-fno-implicit-modules"))

	for _, depID := range g.TransitiveDependencies(info.ID) {
		dep, ok := g.Modules[depID]
		if !ok {
			continue
		}
		if dep.ID.Kind == imdg.ModuleSwiftPlaceholder {
			return nil, fmt.Errorf("placeholder-module-in-explicit-build: %s", dep.ID.Name)
		}
		switch dep.ID.Kind {
		case imdg.ModuleClang:
			args = append(args,
				Lit(fmt.Sprintf("-fmodule-file=%s=%s", dep.ID.Name, dep.ModulePath)),
				Lit("-fmodule-map-file="+dep.Details.ModuleMapPath),
				Lit("-fmodule-file-cache-key"), Lit(dep.Details.CacheKey),
			)
		default:
			args = append(args, Lit(fmt.Sprintf("-swift-module-file=%s=%s", dep.ID.Name, dep.Details.CacheKey)))
			for _, candidate := range dep.Details.CompiledCandidates {
				args = append(args, Lit("-candidate-module-file"), Lit(candidate))
			}
		}
	}

	if in.Options.CacheCompileJob {
		args = append(args, Lit("-cache-compile-job"), Lit("-cas-path"), Lit(in.CASPath))
	}

	var out vpath.TypedPath
	if info.ID.Kind == imdg.ModuleClang {
		out = vpath.TypedPath{Path: vpath.Relative(info.ModulePath), Type: vpath.FilePrecompiledClangModule}
	} else {
		out = vpath.TypedPath{Path: vpath.Relative(info.ModulePath), Type: vpath.FileCompiledModule}
	}

	return &Job{
		Module:  info.ID.Name,
		Kind:    kind,
		Args:    args,
		Outputs: []vpath.TypedPath{out},
	}, nil
}

// planVerifyInterfaceJob gates interface verification: when
// -verify-emitted-module-interface, -enable-library-evolution, and
// -explicit-module-build are all present, a separate job with no outputs
// verifies the emitted interface.
func planVerifyInterfaceJob(in Input) *Job {
	o := in.Options
	if !(o.VerifyEmittedModuleInterface && o.EnableLibraryEvolution && o.ExplicitModuleBuild) {
		return nil
	}
	return &Job{
		Kind: KindVerifyModuleInterface,
		Args: []Arg{
			Lit("-explicit-interface-module-build"),
			Lit("-explicit-swift-module-map-file"),
			Lit("-disable-implicit-swift-modules"),
			Lit("-input-file-key"),
		},
	}
}
