// Package diagnostic implements the driver's diagnostic engine: the shared
// sink that planning, validation, scanning, and integration errors accumulate
// into before any job executes. Each diagnostic carries a Class
// identifying its drivererr bucket, so the process picks an exit code once,
// at the end, from whatever accumulated.
package diagnostic

import (
	"fmt"
	"strings"

	"github.com/langtools/compilerdriver/internal/drivererr"
)

// Severity represents the severity level of a diagnostic.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Category names a specific diagnostic kind from the driver error taxonomy.
// Tests match on the stable message prefix these produce, not on Category
// directly, but Category drives which Class a diagnostic belongs to.
type Category string

const (
	CategoryUnknownOption               Category = "unknown-option"
	CategoryMissingValue                Category = "missing-value"
	CategoryConflictingOptions          Category = "conflicting-options"
	CategoryInvalidEnumValue            Category = "invalid-enum-value"
	CategoryGatingViolation             Category = "gating-violation"
	CategoryUnsupportedConfiguration    Category = "unsupported-configuration-for-caching"
	CategoryMissingRequiredInput        Category = "missing-required-input"
	CategoryInvalidOutputFileMap        Category = "invalid-output-file-map"
	CategoryScannerLibraryAbsent        Category = "scanner-library-absent"
	CategoryCachingNotSupported         Category = "caching-not-supported"
	CategoryConflictingCASOptions       Category = "conflicting-cas-options"
	CategoryPlaceholderModule           Category = "placeholder-module-in-explicit-build"
	CategoryMismatchedGraphVersion      Category = "mismatched-serialized-graph-version"
	CategoryMalformedDependencyRecord   Category = "malformed-dependency-record"
	CategoryToolNotFound                Category = "tool-not-found"
	CategoryJobCrashed                  Category = "job-crashed"
	CategoryInputUnexpectedlyModified   Category = "input-unexpectedly-modified"
	CategoryResponseFileMaterialization Category = "response-file-materialization-failed"
	CategoryInvariantViolated           Category = "invariant-violated"
)

// classOf maps a Category to the drivererr bucket it belongs to.
func classOf(cat Category) error {
	switch cat {
	case CategoryUnknownOption, CategoryMissingValue, CategoryConflictingOptions,
		CategoryInvalidEnumValue, CategoryGatingViolation:
		return drivererr.ErrUserInput
	case CategoryUnsupportedConfiguration, CategoryMissingRequiredInput, CategoryInvalidOutputFileMap:
		return drivererr.ErrPlanning
	case CategoryScannerLibraryAbsent, CategoryCachingNotSupported, CategoryConflictingCASOptions, CategoryPlaceholderModule:
		return drivererr.ErrScanner
	case CategoryMismatchedGraphVersion, CategoryMalformedDependencyRecord:
		return drivererr.ErrIntegration
	case CategoryToolNotFound, CategoryJobCrashed, CategoryInputUnexpectedlyModified, CategoryResponseFileMaterialization:
		return drivererr.ErrExecution
	case CategoryInvariantViolated:
		return drivererr.ErrFatalInternal
	default:
		return drivererr.ErrUserInput
	}
}

// Diagnostic represents a single structured diagnostic message.
type Diagnostic struct {
	Severity Severity
	Category Category
	File     string // source or option name the diagnostic is anchored to
	Line     int    // 1-based line number (0 = unknown)
	Column   int    // 1-based column number (0 = unknown)
	Message  string
	Hint     string // optional suggestion for fixing the issue
}

// Class returns the drivererr bucket this diagnostic's category belongs to.
func (d Diagnostic) Class() error { return classOf(d.Category) }

// String formats the diagnostic for display.
func (d Diagnostic) String() string {
	var sb strings.Builder

	if d.File != "" {
		sb.WriteString(d.File)
		if d.Line > 0 {
			sb.WriteString(fmt.Sprintf(":%d", d.Line))
			if d.Column > 0 {
				sb.WriteString(fmt.Sprintf(":%d", d.Column))
			}
		}
		sb.WriteString(" - ")
	}

	sb.WriteString(d.Severity.String())
	sb.WriteString(": ")

	if d.Category != "" {
		sb.WriteString("[")
		sb.WriteString(string(d.Category))
		sb.WriteString("] ")
	}

	sb.WriteString(d.Message)

	if d.Hint != "" {
		sb.WriteString("\n  hint: ")
		sb.WriteString(d.Hint)
	}

	return sb.String()
}

// Err converts the diagnostic into an error wrapping its drivererr class,
// so callers can errors.Is(err, drivererr.ErrUserInput) etc.
func (d Diagnostic) Err() error {
	return fmt.Errorf("%s: %w", d.Message, d.Class())
}

// Collector collects diagnostics during option parsing, validation,
// planning, scanning, and integration.
type Collector struct {
	diagnostics []Diagnostic
	strict      bool // if true, warnings become errors
	quiet       bool // if true, suppress warnings
}

// NewCollector creates a new diagnostic collector.
func NewCollector(strict, quiet bool) *Collector {
	return &Collector{strict: strict, quiet: quiet}
}

// Warn adds a warning diagnostic.
func (c *Collector) Warn(category Category, file string, line int, message string) {
	if c == nil || c.quiet {
		return
	}
	sev := SeverityWarning
	if c.strict {
		sev = SeverityError
	}
	c.diagnostics = append(c.diagnostics, Diagnostic{
		Severity: sev, Category: category, File: file, Line: line, Message: message,
	})
}

// WarnWithHint adds a warning with a suggestion.
func (c *Collector) WarnWithHint(category Category, file string, line int, message, hint string) {
	if c == nil || c.quiet {
		return
	}
	sev := SeverityWarning
	if c.strict {
		sev = SeverityError
	}
	c.diagnostics = append(c.diagnostics, Diagnostic{
		Severity: sev, Category: category, File: file, Line: line, Message: message, Hint: hint,
	})
}

// Error adds an error diagnostic.
func (c *Collector) Error(category Category, file string, line int, message string) {
	if c == nil {
		return
	}
	c.diagnostics = append(c.diagnostics, Diagnostic{
		Severity: SeverityError, Category: category, File: file, Line: line, Message: message,
	})
}

// Info adds an informational diagnostic.
func (c *Collector) Info(category Category, file string, line int, message string) {
	if c == nil || c.quiet {
		return
	}
	c.diagnostics = append(c.diagnostics, Diagnostic{
		Severity: SeverityInfo, Category: category, File: file, Line: line, Message: message,
	})
}

// Diagnostics returns all collected diagnostics.
func (c *Collector) Diagnostics() []Diagnostic {
	if c == nil {
		return nil
	}
	return c.diagnostics
}

// HasErrors returns true if any error-level diagnostics exist.
func (c *Collector) HasErrors() bool {
	if c == nil {
		return false
	}
	for _, d := range c.diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ErrorCount returns the number of error diagnostics.
func (c *Collector) ErrorCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, d := range c.diagnostics {
		if d.Severity == SeverityError {
			n++
		}
	}
	return n
}

// WarningCount returns the number of warning diagnostics.
func (c *Collector) WarningCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, d := range c.diagnostics {
		if d.Severity == SeverityWarning {
			n++
		}
	}
	return n
}

// FormatAll formats all diagnostics as a multi-line string.
func (c *Collector) FormatAll() string {
	if c == nil || len(c.diagnostics) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, d := range c.diagnostics {
		sb.WriteString(d.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// Summary returns a summary line like "2 warning(s), 1 error(s)".
func (c *Collector) Summary() string {
	if c == nil {
		return ""
	}
	warnings := c.WarningCount()
	errors := c.ErrorCount()

	var parts []string
	if errors > 0 {
		parts = append(parts, fmt.Sprintf("%d error(s)", errors))
	}
	if warnings > 0 {
		parts = append(parts, fmt.Sprintf("%d warning(s)", warnings))
	}
	if len(parts) == 0 {
		return "no issues"
	}
	return strings.Join(parts, ", ")
}

// AsError returns a single combined error if HasErrors, classified by the
// first error-severity diagnostic's Class (planning/validation/etc. errors
// are accumulated together and surfaced once, per the driver's error-propagation
// policy). Returns nil if there are no errors.
func (c *Collector) AsError() error {
	if c == nil || !c.HasErrors() {
		return nil
	}
	for _, d := range c.diagnostics {
		if d.Severity == SeverityError {
			return fmt.Errorf("%s: %w", c.FormatAll(), d.Class())
		}
	}
	return nil
}
