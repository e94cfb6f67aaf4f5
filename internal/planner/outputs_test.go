package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOutputFileMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ofm.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"": {"swift-dependencies": "/build/main.swiftdeps"},
		"foo.swift": {"object": "/build/foo.o", "swift-dependencies": "/build/foo.swiftdeps"}
	}`), 0o644))

	m, err := LoadOutputFileMap(path)
	require.NoError(t, err)

	v, ok := m.Get("", "swift-dependencies")
	require.True(t, ok)
	assert.Equal(t, "/build/main.swiftdeps", v)

	v, ok = m.Get("foo.swift", "object")
	require.True(t, ok)
	assert.Equal(t, "/build/foo.o", v)

	_, ok = m.Get("bar.swift", "object")
	assert.False(t, ok)
}

func TestLoadOutputFileMap_Missing(t *testing.T) {
	_, err := LoadOutputFileMap(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid-output-file-map")
}

func TestLoadOutputFileMap_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := LoadOutputFileMap(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid-output-file-map")
}

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, "foo.api.json", replaceExt("foo.swift", ".api.json"))
	assert.Equal(t, "/tmp/foo.o", replaceExt("/tmp/foo.swift", ".o"))
	assert.Equal(t, "noext.o", replaceExt("noext", ".o"))
}
