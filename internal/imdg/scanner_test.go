package imdg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFS struct{ present map[string]bool }

func (f fakeFS) Exists(path string) bool { return f.present[path] }

func TestVerifyOrCreate_MissingLibrary(t *testing.T) {
	o := NewOracle(OracleOptions{})
	fs := fakeFS{present: map[string]bool{}}

	_, err := o.VerifyOrCreate(fs, "/usr/lib/libScanner.so")
	require.Error(t, err)
}

func TestVerifyOrCreate_IdempotentOnSuccess(t *testing.T) {
	o := NewOracle(OracleOptions{})
	fs := fakeFS{present: map[string]bool{"/usr/lib/libScanner.so": true}}

	ok1, err := o.VerifyOrCreate(fs, "/usr/lib/libScanner.so")
	require.NoError(t, err)
	assert.True(t, ok1)

	ok2, err := o.VerifyOrCreate(fs, "/usr/lib/libScanner.so")
	require.NoError(t, err)
	assert.True(t, ok2)
}

func scanStub(g *Graph, calls *int) ScanFunc {
	return func(workingDir string, commandLine []string) (*Graph, error) {
		*calls++
		return g, nil
	}
}

func TestGetDependencies_MemoizesIdenticalCalls(t *testing.T) {
	calls := 0
	want := buildSampleGraph()
	o := NewOracle(OracleOptions{Scan: scanStub(want, &calls)})

	g1, err := o.GetDependencies("/proj", []string{"-module-name", "App"}, "")
	require.NoError(t, err)
	g2, err := o.GetDependencies("/proj", []string{"-module-name", "App"}, "")
	require.NoError(t, err)

	assert.Same(t, g1, g2)
	assert.Equal(t, 1, calls, "identical working dir + argument list must scan only once")
}

func TestGetDependencies_DifferentArgsRescans(t *testing.T) {
	calls := 0
	want := buildSampleGraph()
	o := NewOracle(OracleOptions{Scan: scanStub(want, &calls)})

	_, err := o.GetDependencies("/proj", []string{"-module-name", "App"}, "")
	require.NoError(t, err)
	_, err = o.GetDependencies("/proj", []string{"-module-name", "Other"}, "")
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

// TestConflictingCASOptions: the
// oracle is called twice with distinct -cas-path values; the second call
// fails with DependencyScanningError and exactly one scanner diagnostic is
// recorded with the exact message tools match on.
func TestConflictingCASOptions(t *testing.T) {
	calls := 0
	want := buildSampleGraph()
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	o := NewOracle(OracleOptions{SupportsCaching: true, Scan: scanStub(want, &calls)})

	_, err := o.GetDependencies("/proj", []string{"-module-name", "App"}, dir1)
	require.NoError(t, err)

	_, err = o.GetDependencies("/proj", []string{"-module-name", "App2"}, dir2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DependencyScanningError")

	diags := o.GetScannerDiagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, "error", diags[0].Severity)
	assert.Equal(t, "CAS error encountered: conflicting CAS options used in scanning service", diags[0].Message)
}

func TestGetDependencies_SameCASPathRepeatedIsFine(t *testing.T) {
	calls := 0
	want := buildSampleGraph()
	dir := t.TempDir()
	o := NewOracle(OracleOptions{SupportsCaching: true, Scan: scanStub(want, &calls)})

	_, err := o.GetDependencies("/proj", []string{"-x"}, dir)
	require.NoError(t, err)
	_, err = o.GetDependencies("/proj", []string{"-y"}, dir)
	require.NoError(t, err)

	assert.Empty(t, o.GetScannerDiagnostics())
}
