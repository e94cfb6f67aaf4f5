// Package cas implements the content-addressed store the driver uses for
// cached module builds. Each module build's inputs hash into a cache key;
// the frontend
// is invoked with "-cache-compile-job -cas-path <store>" and a per-module
// "-input-file-key". The store also tracks which -cas-path each scan has
// addressed so far: two scans of the same logical store under different
// paths is the conflicting-CAS-options condition the scanner oracle
// (internal/imdg) must surface as a dedicated error.
package cas

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// SchemaVersion is bumped when the on-disk entry format changes. A mismatch
// invalidates every entry under the store, forcing a full rebuild after a
// binary upgrade.
const SchemaVersion = 1

// Key is a content-addressed cache key: the hash of every input that
// determines a module build's output (source content, command line,
// transitive dependency keys).
type Key string

// KeyBuilder accumulates the ordered inputs that determine a module build
// (command line arguments, dependency keys, file contents) into a single
// cache key. One builder per build; Key() finalizes it.
type KeyBuilder struct {
	h *xxhash.Digest
}

// NewKeyBuilder allocates a fresh, empty key builder.
func NewKeyBuilder() *KeyBuilder {
	return &KeyBuilder{h: xxhash.New()}
}

// AddString folds s into the key, length-prefixed so concatenation
// boundaries can't be confused ("ab"+"c" != "a"+"bc").
func (b *KeyBuilder) AddString(s string) *KeyBuilder {
	fmt.Fprintf(b.h, "%d:%s,", len(s), s)
	return b
}

// AddBytes folds the contents of a file (or any byte blob) into the key.
func (b *KeyBuilder) AddBytes(p []byte) *KeyBuilder {
	fmt.Fprintf(b.h, "%d:", len(p))
	b.h.Write(p)
	b.h.Write([]byte{','})
	return b
}

// Key finalizes the builder into a cache key.
func (b *KeyBuilder) Key() Key {
	return Key(hex.EncodeToString(b.h.Sum(nil)))
}

// Store is a directory-backed content-addressed cache. One Store instance
// backs one -cas-path for the lifetime of a process.
type Store struct {
	root string

	mu   sync.Mutex
	seen map[string]bool // -cas-path values this process has registered
}

// Open prepares (creating if necessary) a CAS store rooted at dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cas store %s: %w", dir, err)
	}
	return &Store{root: dir, seen: make(map[string]bool)}, nil
}

// Root returns the store's backing directory.
func (s *Store) Root() string { return s.root }

// RegisterPath records that casPath was used to address this logical store
// and reports whether it conflicts with a previously registered path. The
// scanner oracle calls this once per get_dependencies invocation; a
// conflict means two scans addressed the same store under different
// -cas-path values, which the underlying CAS library refuses.
func (s *Store) RegisterPath(casPath string) (conflict bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.seen) > 0 && !s.seen[casPath] {
		return true
	}
	s.seen[casPath] = true
	return false
}

func (s *Store) entryPath(key Key) string {
	k := string(key)
	// Two-level fan-out keeps any single directory from holding every entry.
	if len(k) < 2 {
		k = "00" + k
	}
	return filepath.Join(s.root, k[:2], fmt.Sprintf("%s.v%d", k, SchemaVersion))
}

// Has reports whether key already has a cached artifact.
func (s *Store) Has(key Key) bool {
	_, err := os.Stat(s.entryPath(key))
	return err == nil
}

// Put stores data under key, atomically (write-temp, rename) so a crash
// mid-write never leaves a corrupt entry visible to Has/Get.
func (s *Store) Put(key Key, data []byte) error {
	path := s.entryPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cas shard for %s: %w", key, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing cas entry %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("committing cas entry %s: %w", key, err)
	}
	return nil
}

// Get loads the artifact stored under key. Returns false if absent.
func (s *Store) Get(key Key) ([]byte, bool) {
	data, err := os.ReadFile(s.entryPath(key))
	if err != nil {
		return nil, false
	}
	return data, true
}
