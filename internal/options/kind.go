// Package options implements the driver's option model: mapping
// a tokenized command line into a typed, validated Options record before any
// planning begins.
package options

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/langtools/compilerdriver/internal/drivererr"
)

// DriverKind is the dispatch mode the process starts in, decided before
// option parsing.
type DriverKind string

const (
	KindInteractive     DriverKind = "interactive"
	KindBatch           DriverKind = "batch"
	KindFrontend        DriverKind = "frontend"
	KindModuleWrap      DriverKind = "module-wrap"
	KindAutolinkExtract DriverKind = "autolink-extract"
	KindIndent          DriverKind = "indent"
)

var recognizedModes = map[string]DriverKind{
	"interactive":      KindInteractive,
	"batch":            KindBatch,
	"frontend":         KindFrontend,
	"module-wrap":      KindModuleWrap,
	"autolink-extract": KindAutolinkExtract,
	"indent":           KindIndent,
}

// basenameModes maps a program basename to the kind it implies, matching
// how a real driver dispatches on argv[0] when invoked under a different name.
var basenameModes = map[string]DriverKind{
	"driver-interactive":      KindInteractive,
	"driver-frontend":         KindFrontend,
	"driver-module-wrap":      KindModuleWrap,
	"driver-autolink-extract": KindAutolinkExtract,
	"driver-indent":           KindIndent,
}

// DetermineDriverKind dispatches on the program basename and an optional
// leading "--driver-mode=<kind>" argument. argv[0] is the program path as
// invoked (os.Args[0]); rest is every argument after it.
//
// Returns the resolved kind, the remaining arguments (with --driver-mode
// consumed if present), or a structured error on an unrecognized mode.
func DetermineDriverKind(argv0 string, rest []string) (DriverKind, []string, error) {
	if len(rest) > 0 && strings.HasPrefix(rest[0], "--driver-mode=") {
		mode := strings.TrimPrefix(rest[0], "--driver-mode=")
		kind, ok := recognizedModes[mode]
		if !ok {
			return "", nil, fmt.Errorf("%w: unknown driver mode %q", errUnknownMode, mode)
		}
		return kind, rest[1:], nil
	}

	base := filepath.Base(argv0)
	if kind, ok := basenameModes[base]; ok {
		return kind, rest, nil
	}

	return KindBatch, rest, nil
}

var errUnknownMode = drivererr.ErrUserInput
