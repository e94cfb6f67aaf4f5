// Package vpath implements the driver's virtual path model: a sum
// type naming paths as absolute, relative-to-working-directory, driver-scoped
// temporaries (with or without contents known up front), file-lists, or the
// standard streams. Resolving the same virtual path twice within one
// execution always yields the same concrete string.
package vpath

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Kind tags the variant of a VPath.
type Kind int

const (
	KindAbsolute Kind = iota
	KindRelative
	KindTemporary
	KindTemporaryKnownContents
	KindFileList
	KindStandardInput
	KindStandardOutput
)

func (k Kind) String() string {
	switch k {
	case KindAbsolute:
		return "absolute"
	case KindRelative:
		return "relative"
	case KindTemporary:
		return "temporary"
	case KindTemporaryKnownContents:
		return "temporary-known-contents"
	case KindFileList:
		return "file-list"
	case KindStandardInput:
		return "standard-input"
	case KindStandardOutput:
		return "standard-output"
	default:
		return "unknown"
	}
}

// VPath is an immutable virtual path. Two VPath values naming the same
// logical temporary must carry the same id so the resolver can recognize
// them as the same identity across calls.
type VPath struct {
	kind Kind

	// path holds the literal string for KindAbsolute/KindRelative.
	path string

	// id identifies a KindTemporary or KindFileList instance; it is what
	// the resolver memoizes a concrete name against.
	id string

	// suffix is appended to a generated temporary's basename, e.g.
	// "-main.o", so temp names stay recognizable in debugging output.
	suffix string

	// contents holds the known text for KindTemporaryKnownContents; paths
	// with identical contents resolve to the same backing file.
	contents string

	// entries holds the member paths for KindFileList.
	entries []VPath
}

// Absolute wraps an already-absolute path.
func Absolute(path string) VPath {
	return VPath{kind: KindAbsolute, path: path}
}

// Relative wraps a path resolved against the resolver's working directory.
func Relative(path string) VPath {
	return VPath{kind: KindRelative, path: path}
}

// NewTemporary allocates a fresh driver-scoped temporary identity. suffix is
// a display hint (e.g. "-main.o"), not a guarantee of the final extension.
func NewTemporary(suffix string) VPath {
	return VPath{kind: KindTemporary, id: uuid.NewString(), suffix: suffix}
}

// NewTemporaryWithKnownContents allocates a temporary whose contents are
// known at plan time. Two instances with identical contents (and suffix)
// resolve to the same backing file, so pass the same suffix family for
// content that is expected to dedupe.
func NewTemporaryWithKnownContents(contents, suffix string) VPath {
	return VPath{kind: KindTemporaryKnownContents, contents: contents, suffix: suffix}
}

// NewFileList allocates a newline-separated list of resolved entries,
// materialized on first reference.
func NewFileList(entries []VPath) VPath {
	return VPath{kind: KindFileList, id: uuid.NewString(), entries: entries}
}

// StandardInput names the process's stdin stream.
func StandardInput() VPath { return VPath{kind: KindStandardInput} }

// StandardOutput names the process's stdout stream.
func StandardOutput() VPath { return VPath{kind: KindStandardOutput} }

// Kind reports the variant of this path.
func (v VPath) Kind() Kind { return v.kind }

// Literal returns the path's string form when it is known without a
// Resolver — absolute and relative paths, and the standard streams. Plan
// time code that wants to embed a path directly into a Job's literal
// argument list (rather than a resolver-deferred path reference) uses this;
// it returns false for temporaries and file-lists, which only get a
// concrete name once a Resolver materializes them.
func (v VPath) Literal() (string, bool) {
	switch v.kind {
	case KindAbsolute, KindRelative:
		return v.path, true
	case KindStandardInput, KindStandardOutput:
		return "-", true
	default:
		return "", false
	}
}

// SameIdentity reports whether a and b name the same logical path: the same
// absolute/relative string, the same temporary or file-list identity, the
// same known-contents temporary, or either standard stream. The executor's
// scheduler uses this to find which job produces another job's input,
// since VPath itself isn't comparable with == (KindFileList carries a
// slice).
func SameIdentity(a, b VPath) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindAbsolute, KindRelative:
		return a.path == b.path
	case KindTemporary, KindFileList:
		return a.id == b.id
	case KindTemporaryKnownContents:
		return a.suffix == b.suffix && a.contents == b.contents
	case KindStandardInput, KindStandardOutput:
		return true
	default:
		return false
	}
}

// contentKey returns the dedup key for a known-contents temporary.
func (v VPath) contentKey() string {
	sum := sha256.Sum256([]byte(v.suffix + "\x00" + v.contents))
	return hex.EncodeToString(sum[:])
}

// FileType enumerates the typed-path kinds the driver plans jobs around.
type FileType string

const (
	FileSource                        FileType = "source"
	FileCompiledModule                FileType = "compiled-module"
	FileTextualModuleInterface        FileType = "textual-module-interface"
	FilePrivateTextualModuleInterface FileType = "private-textual-module-interface"
	FileObject                        FileType = "object"
	FileImage                         FileType = "image"
	FileStaticArchive                 FileType = "static-archive"
	FileDependencyInfo                FileType = "dependency-info"
	FilePerFileDependencyRecord       FileType = "per-file-dependency-record"
	FilePrecompiledHeader             FileType = "precompiled-header"
	FileClangModuleMap                FileType = "clang-module-map"
	FilePrecompiledClangModule        FileType = "precompiled-clang-module"
	FileAutolinkData                  FileType = "autolink-data"
	FileAPIBaseline                   FileType = "api-baseline"
	FileABIBaseline                   FileType = "abi-baseline"
	FileSerializedDiagnostics         FileType = "serialized-diagnostics"
)

// TypedPath pairs a virtual path with the kind of artifact it names.
type TypedPath struct {
	Path VPath
	Type FileType
}

// Resolver converts VPath values to concrete filesystem strings, lazily
// materializing temporaries and file-lists, and tracks everything it
// created so the executor can clean up afterward.
type Resolver struct {
	workingDir string
	scratchDir string

	mu          sync.Mutex
	tempNames   map[string]string // temp id -> concrete path
	contentName map[string]string // content key -> concrete path
	created     []string          // concrete paths this resolver materialized, in creation order
}

// NewResolver creates a resolver rooted at workingDir, scratching temporaries
// into scratchDir (created if absent).
func NewResolver(workingDir, scratchDir string) *Resolver {
	return &Resolver{
		workingDir:  workingDir,
		scratchDir:  scratchDir,
		tempNames:   make(map[string]string),
		contentName: make(map[string]string),
	}
}

// WorkingDir returns the resolver's working directory.
func (r *Resolver) WorkingDir() string { return r.workingDir }

// Resolve converts a VPath into a concrete, resolver-stable string. Resolving
// the same logical VPath (same kind + identity) twice always returns the
// same string.
func (r *Resolver) Resolve(v VPath) (string, error) {
	switch v.kind {
	case KindAbsolute:
		return v.path, nil
	case KindRelative:
		if filepath.IsAbs(v.path) {
			return v.path, nil
		}
		return filepath.Join(r.workingDir, v.path), nil
	case KindStandardInput:
		return "-", nil
	case KindStandardOutput:
		return "-", nil
	case KindTemporary:
		return r.resolveTemporary(v)
	case KindTemporaryKnownContents:
		return r.resolveKnownContents(v)
	case KindFileList:
		return r.resolveFileList(v)
	default:
		return "", fmt.Errorf("vpath: unresolvable kind %v", v.kind)
	}
}

func (r *Resolver) resolveTemporary(v VPath) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name, ok := r.tempNames[v.id]; ok {
		return name, nil
	}
	if err := os.MkdirAll(r.scratchDir, 0o755); err != nil {
		return "", fmt.Errorf("creating scratch directory %s: %w", r.scratchDir, err)
	}
	name := filepath.Join(r.scratchDir, uuid.NewString()+v.suffix)
	if err := os.WriteFile(name, nil, 0o644); err != nil {
		return "", fmt.Errorf("materializing temp %s: %w", name, err)
	}
	r.tempNames[v.id] = name
	r.created = append(r.created, name)
	return name, nil
}

func (r *Resolver) resolveKnownContents(v VPath) (string, error) {
	key := v.contentKey()

	r.mu.Lock()
	if name, ok := r.contentName[key]; ok {
		r.mu.Unlock()
		return name, nil
	}
	r.mu.Unlock()

	if err := os.MkdirAll(r.scratchDir, 0o755); err != nil {
		return "", fmt.Errorf("creating scratch directory %s: %w", r.scratchDir, err)
	}
	name := filepath.Join(r.scratchDir, uuid.NewString()+v.suffix)
	if err := os.WriteFile(name, []byte(v.contents), 0o644); err != nil {
		return "", fmt.Errorf("materializing known-contents temp %s: %w", name, err)
	}

	r.mu.Lock()
	// Another goroutine may have raced us; prefer whichever was recorded first.
	if existing, ok := r.contentName[key]; ok {
		r.mu.Unlock()
		os.Remove(name)
		return existing, nil
	}
	r.contentName[key] = name
	r.created = append(r.created, name)
	r.mu.Unlock()
	return name, nil
}

func (r *Resolver) resolveFileList(v VPath) (string, error) {
	r.mu.Lock()
	if name, ok := r.tempNames[v.id]; ok {
		r.mu.Unlock()
		return name, nil
	}
	r.mu.Unlock()

	lines := make([]string, 0, len(v.entries))
	for _, e := range v.entries {
		s, err := r.Resolve(e)
		if err != nil {
			return "", err
		}
		lines = append(lines, s)
	}

	if err := os.MkdirAll(r.scratchDir, 0o755); err != nil {
		return "", fmt.Errorf("creating scratch directory %s: %w", r.scratchDir, err)
	}
	name := filepath.Join(r.scratchDir, uuid.NewString()+".filelist")
	if err := os.WriteFile(name, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("materializing file-list %s: %w", name, err)
	}

	r.mu.Lock()
	r.tempNames[v.id] = name
	r.created = append(r.created, name)
	r.mu.Unlock()
	return name, nil
}

// Created returns the concrete paths this resolver has materialized so far,
// in the order they were created.
func (r *Resolver) Created() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.created))
	copy(out, r.created)
	return out
}

// Cleanup removes every path this resolver materialized, unless preserve
// is true (set when -save-temps is active or a job crashed).
func (r *Resolver) Cleanup(preserve bool) []error {
	if preserve {
		return nil
	}
	r.mu.Lock()
	paths := append([]string(nil), r.created...)
	r.mu.Unlock()

	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("removing temp %s: %w", p, err))
		}
	}
	return errs
}
