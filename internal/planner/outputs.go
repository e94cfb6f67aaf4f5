package planner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/langtools/compilerdriver/internal/drivererr"
	"github.com/langtools/compilerdriver/internal/vpath"
)

// OutputFileMap is the parsed form of the "-output-file-map" JSON:
// source path (or "" for the whole-module scope) -> product key -> absolute
// path.
type OutputFileMap map[string]map[string]string

// LoadOutputFileMap reads and parses the -output-file-map JSON from disk. A
// missing or malformed file is an invalid-output-file-map planning error.
func LoadOutputFileMap(path string) (OutputFileMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("invalid-output-file-map: reading %s: %w", path, drivererr.ErrPlanning)
	}
	var m OutputFileMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid-output-file-map: parsing %s: %v: %w", path, err, drivererr.ErrPlanning)
	}
	return m, nil
}

// Get looks up one product for one source entry.
func (m OutputFileMap) Get(source, product string) (string, bool) {
	if m == nil {
		return "", false
	}
	entry, ok := m[source]
	if !ok {
		return "", false
	}
	v, ok := entry[product]
	return v, ok
}

// replaceExt swaps path's extension for newExt (which should include the
// leading dot, e.g. ".api.json").
func replaceExt(path, newExt string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + newExt
}

// deriveOutput resolves an output path by precedence:
//  1. an explicit per-product flag value
//  2. an output-file-map entry for sourceKey under product
//  3. derived from fallbackBase (the primary input, or -o) by extension swap
//  4. a scratch-directory temporary
func deriveOutput(explicit string, ofm OutputFileMap, sourceKey, product, fallbackBase, ext string, fileType vpath.FileType) vpath.TypedPath {
	if explicit != "" {
		return vpath.TypedPath{Path: vpath.Absolute(explicit), Type: fileType}
	}
	if v, ok := ofm.Get(sourceKey, product); ok {
		return vpath.TypedPath{Path: vpath.Absolute(v), Type: fileType}
	}
	if fallbackBase != "" {
		return vpath.TypedPath{Path: vpath.Relative(replaceExt(fallbackBase, ext)), Type: fileType}
	}
	return vpath.TypedPath{Path: vpath.NewTemporary(ext), Type: fileType}
}

// moduleNameFromInput derives a default module name from a primary input's
// basename, the way a driver with no explicit "-module-name" falls back to
// the name of the file it was handed.
func moduleNameFromInput(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
