package options

import (
	"strconv"
	"strings"

	"github.com/langtools/compilerdriver/internal/diagnostic"
)

// joinedPrefixFlags are flags that accept the "-Ifoo" joined form in
// addition to "-I foo" (separate) and "-I=foo" (joined-equals).
var joinedPrefixFlags = map[string]func(*Options, string){
	"-I": func(o *Options, v string) { o.IncludePaths = append(o.IncludePaths, v) },
	"-F": func(o *Options, v string) { o.FrameworkPaths = append(o.FrameworkPaths, v) },
}

// valueFlags are flags that always take a value, either separate or
// joined-equals (e.g. "-sdk P" or "-sdk=P"), but not the bare-joined form.
var valueFlags = map[string]func(*Options, string){
	"-emit-module-path":                   func(o *Options, v string) { o.EmitModulePath = v },
	"-emit-module-interface-path":         func(o *Options, v string) { o.EmitModuleInterfacePath = v },
	"-emit-private-module-interface-path": func(o *Options, v string) { o.EmitPrivateModuleInterfacePath = v },
	"-emit-api-baseline-path":             func(o *Options, v string) { o.EmitAPIBaselinePath = v },
	"-emit-abi-baseline-path":             func(o *Options, v string) { o.EmitABIBaselinePath = v },
	"-emit-digester-baseline-path":        func(o *Options, v string) { o.EmitDigesterBaselinePath = v },
	"-digester-mode":                      func(o *Options, v string) { o.DigesterMode = v },
	"-compare-to-baseline-path":           func(o *Options, v string) { o.CompareToBaselinePath = v },
	"-serialize-breaking-changes-path":    func(o *Options, v string) { o.SerializeBreakingChangesPath = v },
	"-digester-breakage-allowlist-path":   func(o *Options, v string) { o.DigesterBreakageAllowlistPath = v },
	"-cas-path":                           func(o *Options, v string) { o.CASPath = v },
	"-sdk":                                func(o *Options, v string) { o.SDKPath = v },
	"-working-directory":                  func(o *Options, v string) { o.WorkingDirectory = v },
	"-output-file-map":                    func(o *Options, v string) { o.OutputFileMap = v },
	"-o":                                  func(o *Options, v string) { o.Output = v },
	"-driver-filelist-threshold":          func(o *Options, v string) { o.DriverFilelistThreshold, _ = strconv.Atoi(v) },
	"-driver-batch-count":                 func(o *Options, v string) { o.DriverBatchCount, _ = strconv.Atoi(v) },
	"-import-objc-header":                 func(o *Options, v string) { o.ImportObjCHeader = v },
	"-pch-output-dir":                     func(o *Options, v string) { o.PCHOutputDir = v },
}

// boolFlags are flags with no value.
var boolFlags = map[string]func(*Options){
	"-emit-module":                     func(o *Options) { o.EmitModule = true },
	"-emit-module-interface":           func(o *Options) { o.EmitModuleInterface = true },
	"-enable-library-evolution":        func(o *Options) { o.EnableLibraryEvolution = true },
	"-explicit-module-build":           func(o *Options) { o.ExplicitModuleBuild = true },
	"-verify-emitted-module-interface": func(o *Options) { o.VerifyEmittedModuleInterface = true },
	"-emit-api-baseline":               func(o *Options) { o.EmitAPIBaseline = true },
	"-emit-abi-baseline":               func(o *Options) { o.EmitABIBaseline = true },
	"-emit-digester-baseline":          func(o *Options) { o.EmitDigesterBaseline = true },
	"-cache-compile-job":               func(o *Options) { o.CacheCompileJob = true },
	"-Rcache-compile-job":              func(o *Options) { o.RCacheCompileJob = true },
	"-save-temps":                      func(o *Options) { o.SaveTemps = true },
	"-wmo":                             func(o *Options) { o.WholeModuleOptimization = true },
	"-whole-module-optimization":       func(o *Options) { o.WholeModuleOptimization = true },
	"-enable-batch-mode":               func(o *Options) { o.EnableBatchMode = true },
	"-parseable-output":                func(o *Options) { o.ParseableOutput = true },
	"-use-frontend-parseable-output":   func(o *Options) { o.UseFrontendParseableOutput = true },
}

// Parse recognizes joined (-Ifoo), separate (-I foo), joined-equals
// (-I=foo), and the "--" terminator after which remaining arguments pass
// through verbatim. Unrecognized "-"-prefixed tokens are reported as
// CategoryUnknownOption diagnostics; parsing continues past them so every
// bad flag in a single invocation is reported, not just the first.
func Parse(args []string) (*Options, *diagnostic.Collector) {
	o := &Options{}
	diags := diagnostic.NewCollector(false, false)

	i := 0
	for i < len(args) {
		arg := args[i]

		if arg == "--" {
			o.Extra = append(o.Extra, args[i+1:]...)
			break
		}

		if !strings.HasPrefix(arg, "-") || arg == "-" {
			o.Inputs = append(o.Inputs, arg)
			i++
			continue
		}

		// joined-equals form: "-flag=value"
		if name, value, ok := strings.Cut(arg, "="); ok {
			if setter, known := valueFlags[name]; known {
				setter(o, value)
				i++
				continue
			}
			if setter, known := joinedPrefixFlags[name]; known {
				setter(o, value)
				i++
				continue
			}
		}

		if setter, known := boolFlags[arg]; known {
			setter(o)
			i++
			continue
		}

		if setter, known := valueFlags[arg]; known {
			if i+1 >= len(args) {
				diags.Error(diagnostic.CategoryMissingValue, arg, 0,
					"missing argument for '"+arg+"'")
				i++
				continue
			}
			setter(o, args[i+1])
			i += 2
			continue
		}

		// separate form: "-I foo" / "-F foo"
		if setter, known := joinedPrefixFlags[arg]; known {
			if i+1 >= len(args) {
				diags.Error(diagnostic.CategoryMissingValue, arg, 0,
					"missing argument for '"+arg+"'")
				i++
				continue
			}
			setter(o, args[i+1])
			i += 2
			continue
		}

		// joined form: "-Ifoo" / "-Ffoo" — the first matching known prefix
		// wins; the known prefixes do not overlap.
		if consumed := tryJoinedPrefix(o, arg); consumed {
			i++
			continue
		}

		diags.Error(diagnostic.CategoryUnknownOption, arg, 0, "unknown option '"+arg+"'")
		i++
	}

	return o, diags
}

func tryJoinedPrefix(o *Options, arg string) bool {
	for prefix, setter := range joinedPrefixFlags {
		if strings.HasPrefix(arg, prefix) && len(arg) > len(prefix) {
			setter(o, arg[len(prefix):])
			return true
		}
	}
	return false
}
