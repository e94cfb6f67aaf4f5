// Package drivererr defines the stable error taxonomy the driver reports
// through. Each class maps to an exit-code bucket; callers pick the bucket
// with errors.Is instead of inspecting message text.
package drivererr

import "errors"

// Class sentinels. Wrap one of these with fmt.Errorf("...: %w", ErrX) so
// errors.Is(err, ErrX) still resolves after additional context is added.
var (
	// ErrUserInput covers unknown options, missing values, conflicting
	// options, invalid enum values, and gating-rule violations.
	ErrUserInput = errors.New("user input error")

	// ErrPlanning covers unsupported configurations, missing required
	// inputs, and invalid output-file-maps discovered while building jobs.
	ErrPlanning = errors.New("planning error")

	// ErrScanner covers the external module scanner: missing library,
	// unsupported caching, conflicting CAS options, placeholder modules.
	ErrScanner = errors.New("scanner error")

	// ErrIntegration covers MDG serialization version drift and malformed
	// per-file dependency records.
	ErrIntegration = errors.New("integration error")

	// ErrExecution covers tool-not-found, job crashes, input modified
	// during build, and response-file materialization failures.
	ErrExecution = errors.New("execution error")

	// ErrFatalInternal covers invariant violations that abort immediately
	// with a bug-report diagnostic (e.g. non-unique output in a job).
	ErrFatalInternal = errors.New("internal invariant violated")
)

// ExitCode classifies an error into the two exit-code buckets the driver
// process distinguishes: ordinary user/tool failures versus internal bugs.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, ErrFatalInternal) {
		return 2
	}
	return 1
}
