// Package planner implements the job planner: turning resolved
// options, per-input metadata, the toolchain, and (for explicit module
// builds) the inter-module dependency graph into a DAG of Job values with
// invariant-preserving command lines.
package planner

import (
	"fmt"

	"github.com/langtools/compilerdriver/internal/vpath"
)

// Kind is the job variant.
type Kind string

const (
	KindCompile                    Kind = "compile"
	KindCompileModuleFromInterface Kind = "compile-module-from-interface"
	KindGeneratePCM                Kind = "generate-pcm"
	KindLink                       Kind = "link"
	KindVerifyModuleInterface      Kind = "verify-module-interface"
	KindGenerateAPIBaseline        Kind = "generate-api-baseline"
	KindGenerateABIBaseline        Kind = "generate-abi-baseline"
	KindCompareAPIBaseline         Kind = "compare-api-baseline"
	KindCompareABIBaseline         Kind = "compare-abi-baseline"
	KindAutolinkExtract            Kind = "autolink-extract"
	KindGeneratePCH                Kind = "generate-pch"
	KindMergeModule                Kind = "merge-module"
	KindEmitModule                 Kind = "emit-module"
	KindREPL                       Kind = "repl"
)

// ArgKind distinguishes a Job argument's shape in its command-line
// template.
type ArgKind int

const (
	ArgLiteral ArgKind = iota
	ArgPath
	ArgSquashed
)

// Arg is one element of a Job's command-line template. A literal flag
// passes through unchanged; a path reference resolves through a
// vpath.Resolver at spawn time; a squashed argument (e.g. "-opt=A B")
// expands to one shell-safe token built from several paths.
type Arg struct {
	Kind     ArgKind
	Literal  string
	Path     vpath.TypedPath
	Prefix   string // ArgSquashed: the literal prefix, e.g. "--opt="
	Squashed []vpath.TypedPath
}

func Lit(s string) Arg               { return Arg{Kind: ArgLiteral, Literal: s} }
func PathArg(tp vpath.TypedPath) Arg { return Arg{Kind: ArgPath, Path: tp} }
func Squash(prefix string, ps ...vpath.TypedPath) Arg {
	return Arg{Kind: ArgSquashed, Prefix: prefix, Squashed: ps}
}

// Job is an immutable planned unit of work.
type Job struct {
	Module   string
	Kind     Kind
	ToolPath string

	SupportsResponseFiles bool

	Args          []Arg
	Inputs        []vpath.TypedPath
	PrimaryInputs []vpath.TypedPath
	Outputs       []vpath.TypedPath

	// RequiresInPlace marks a job that must run with the driver's own
	// stdin/stdout forwarded instead of captured — the interactive/
	// immediate-mode single-job case.
	RequiresInPlace bool

	// IsExplicitMainModuleJob marks the link job as the explicit
	// main-module job when explicit module build is active.
	IsExplicitMainModuleJob bool
}

// Resolve turns the Job's Args into a concrete argv using r. Path
// references and squashed groups are resolved through r; literals pass
// through unchanged.
func (j *Job) Resolve(r *vpath.Resolver) ([]string, error) {
	var out []string
	for _, a := range j.Args {
		switch a.Kind {
		case ArgLiteral:
			out = append(out, a.Literal)
		case ArgPath:
			s, err := r.Resolve(a.Path.Path)
			if err != nil {
				return nil, fmt.Errorf("resolving argument for job %s/%s: %w", j.Module, j.Kind, err)
			}
			out = append(out, s)
		case ArgSquashed:
			tok := a.Prefix
			for i, p := range a.Squashed {
				s, err := r.Resolve(p.Path)
				if err != nil {
					return nil, fmt.Errorf("resolving squashed argument for job %s/%s: %w", j.Module, j.Kind, err)
				}
				if i > 0 {
					tok += " "
				}
				tok += s
			}
			out = append(out, tok)
		}
	}
	return out, nil
}

// LiteralArgs returns every Arg that has a compile-time-known string form
// (ArgLiteral, plus ArgPath when the path is a literal VPath), for tests
// asserting which flags a job's command line contains without needing a
// Resolver. Path args whose VPath is a temporary are omitted.
func (j *Job) LiteralArgs() []string {
	var out []string
	for _, a := range j.Args {
		switch a.Kind {
		case ArgLiteral:
			out = append(out, a.Literal)
		case ArgPath:
			if s, ok := a.Path.Path.Literal(); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
