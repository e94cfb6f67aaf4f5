package options

import "github.com/langtools/compilerdriver/internal/diagnostic"

// Validate enforces the cross-option gating rules. Each violation is
// its own diagnostic; Validate accumulates all of them rather than stopping
// at the first, matching the driver's "diagnostics before any job runs"
// propagation policy.
func Validate(o *Options) *diagnostic.Collector {
	diags := diagnostic.NewCollector(false, false)

	baselineRequested := o.EmitAPIBaseline || o.EmitABIBaseline || o.EmitDigesterBaseline
	if baselineRequested && !o.EmitModule && o.EmitModulePath == "" {
		flag := baselineFlagName(o)
		diags.Error(diagnostic.CategoryGatingViolation, flag, 0,
			"generating a baseline with '"+flag+"' is only supported with '-emit-module' or '-emit-module-path'")
	}

	if o.DigesterMode == "abi" {
		if !o.EnableLibraryEvolution {
			diags.Error(diagnostic.CategoryGatingViolation, "-digester-mode", 0,
				"'-digester-mode abi' cannot be specified if '-enable-library-evolution' is not present")
		}
		if !o.EmitModuleInterface {
			diags.Error(diagnostic.CategoryGatingViolation, "-digester-mode", 0,
				"'-digester-mode abi' cannot be specified if '-emit-module-interface' is not present")
		}
	} else if o.DigesterMode != "" && o.DigesterMode != "api" {
		diags.Error(diagnostic.CategoryInvalidEnumValue, "-digester-mode", 0,
			"invalid value '"+o.DigesterMode+"' in '-digester-mode'")
	}

	if o.SerializeBreakingChangesPath != "" && o.CompareToBaselinePath == "" {
		diags.Error(diagnostic.CategoryGatingViolation, "-serialize-breaking-changes-path", 0,
			"'-serialize-breaking-changes-path' cannot be specified if '-compare-to-baseline-path' is not present")
	}

	if o.ParseableOutput && o.UseFrontendParseableOutput {
		diags.Error(diagnostic.CategoryConflictingOptions, "-parseable-output", 0,
			"'-parseable-output' and '-use-frontend-parseable-output' cannot both be specified")
	}

	return diags
}

// baselineFlagName reports which baseline flag triggered the gating rule,
// so the diagnostic names the flag the user actually passed.
func baselineFlagName(o *Options) string {
	switch {
	case o.EmitAPIBaseline:
		return "-emit-api-baseline"
	case o.EmitABIBaseline:
		return "-emit-abi-baseline"
	case o.EmitDigesterBaseline:
		return "-emit-digester-baseline"
	default:
		return ""
	}
}
