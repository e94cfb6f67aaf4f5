package cas

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyBuilder_Deterministic(t *testing.T) {
	k1 := NewKeyBuilder().AddString("module-a").AddString("-I.").Key()
	k2 := NewKeyBuilder().AddString("module-a").AddString("-I.").Key()
	assert.Equal(t, k1, k2)
}

func TestKeyBuilder_NoBoundaryConfusion(t *testing.T) {
	k1 := NewKeyBuilder().AddString("ab").AddString("c").Key()
	k2 := NewKeyBuilder().AddString("a").AddString("bc").Key()
	assert.NotEqual(t, k1, k2, "length-prefixing must prevent concatenation aliasing")
}

func TestKeyBuilder_DifferentInputsDifferentKeys(t *testing.T) {
	k1 := NewKeyBuilder().AddString("foo").Key()
	k2 := NewKeyBuilder().AddString("bar").Key()
	assert.NotEqual(t, k1, k2)
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	key := NewKeyBuilder().AddString("a.swiftmodule").Key()
	assert.False(t, s.Has(key))

	require.NoError(t, s.Put(key, []byte("compiled-module-bytes")))
	assert.True(t, s.Has(key))

	data, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, "compiled-module-bytes", string(data))
}

func TestStore_GetMissing(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, ok := s.Get(Key("does-not-exist"))
	assert.False(t, ok)
}

func TestStore_PutAtomicNoTempLeftover(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	key := NewKeyBuilder().AddString("x").Key()
	require.NoError(t, s.Put(key, []byte("v")))

	matches, _ := filepath.Glob(filepath.Join(dir, "*", "*.tmp"))
	assert.Empty(t, matches, "no .tmp files should remain after a successful Put")
}

func TestStore_RegisterPath_NoConflictOnFirstUse(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	assert.False(t, s.RegisterPath("/cas/store-a"))
}

func TestStore_RegisterPath_SamePathRepeatedIsFine(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.False(t, s.RegisterPath("/cas/store-a"))
	assert.False(t, s.RegisterPath("/cas/store-a"))
}

func TestStore_RegisterPath_DifferentPathConflicts(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.False(t, s.RegisterPath("/cas/store-a"))
	assert.True(t, s.RegisterPath("/cas/store-b"), "a second distinct -cas-path for the same store is a conflict")
}
