package imdg

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/langtools/compilerdriver/internal/cas"
	"github.com/langtools/compilerdriver/internal/drivererr"
)

// ScannerDiagnostic is one diagnostic the external scanner library collected
// during a scan.
type ScannerDiagnostic struct {
	Severity string // "error" | "warning"
	Message  string
}

// FileSystem abstracts the presence check verify_or_create performs,
// letting tests simulate a missing scanner library without touching disk.
type FileSystem interface {
	Exists(path string) bool
}

// OSFileSystem implements FileSystem against the real filesystem.
type OSFileSystem struct{}

func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ScanFunc performs the actual scan against the external scanner library.
// The library itself is an opaque non-goal; production wiring
// supplies a ScanFunc that shells out to or links against it. Oracle only
// owns the caching, idempotency, and CAS-conflict behavior around the call.
type ScanFunc func(workingDir string, commandLine []string) (*Graph, error)

// Oracle is the process-wide cache around the external scanner: two calls
// with equal working directory and argument list yield
// the same IMDG, concurrent calls are safe, and CAS-path conflicts between
// calls addressing the same store are rejected.
type Oracle struct {
	supportsCaching          bool
	supportsBinaryHeaderDeps bool
	scan                     ScanFunc

	mu          sync.Mutex
	verifiedLib string
	casStore    *cas.Store
	diagnostics []ScannerDiagnostic
	cache       map[string]*Graph
}

// OracleOptions configures capability probes and the scan implementation.
type OracleOptions struct {
	SupportsCaching          bool
	SupportsBinaryHeaderDeps bool
	Scan                     ScanFunc
}

// NewOracle constructs an Oracle. It should be created once per process and
// shared by every caller that needs dependency scans.
func NewOracle(opts OracleOptions) *Oracle {
	return &Oracle{
		supportsCaching:          opts.SupportsCaching,
		supportsBinaryHeaderDeps: opts.SupportsBinaryHeaderDeps,
		scan:                     opts.Scan,
		cache:                    make(map[string]*Graph),
	}
}

// VerifyOrCreate verifies the scanner library at libPath is present,
// guarded by a mutex for capability probes. Idempotent: a second
// call with the same libPath after a successful verification is a no-op.
func (o *Oracle) VerifyOrCreate(fs FileSystem, libPath string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.verifiedLib == libPath && libPath != "" {
		return true, nil
	}
	if !fs.Exists(libPath) {
		return false, fmt.Errorf("%w: scanner library not found at %s", drivererr.ErrScanner, libPath)
	}
	o.verifiedLib = libPath
	return true, nil
}

// SupportsCaching reports whether the scanner backing this oracle supports
// content-addressed caching.
func (o *Oracle) SupportsCaching() bool { return o.supportsCaching }

// SupportsBinaryHeaderDeps reports whether the scanner backing this oracle
// can report binary (as opposed to textual) clang header dependencies.
func (o *Oracle) SupportsBinaryHeaderDeps() bool { return o.supportsBinaryHeaderDeps }

// GetDependencies returns the IMDG for workingDir + commandLine, memoizing
// identical calls. casPath, when non-empty, is registered against the
// oracle's single CAS store; a second call with a different non-empty
// casPath fails with a DependencyScanningError and records the CAS-conflict
// diagnostic.
func (o *Oracle) GetDependencies(workingDir string, commandLine []string, casPath string) (*Graph, error) {
	key := workingDir + "\x00" + strings.Join(commandLine, "\x00")

	o.mu.Lock()
	if casPath != "" {
		if o.casStore == nil {
			store, err := cas.Open(casPath)
			if err != nil {
				o.mu.Unlock()
				return nil, fmt.Errorf("%w: %v", drivererr.ErrScanner, err)
			}
			o.casStore = store
		}
		if o.casStore.RegisterPath(casPath) {
			msg := "CAS error encountered: conflicting CAS options used in scanning service"
			o.diagnostics = append(o.diagnostics, ScannerDiagnostic{Severity: "error", Message: msg})
			o.mu.Unlock()
			return nil, fmt.Errorf("DependencyScanningError: %s: %w", msg, drivererr.ErrScanner)
		}
	}
	if g, ok := o.cache[key]; ok {
		o.mu.Unlock()
		return g, nil
	}
	scanFn := o.scan
	o.mu.Unlock()

	if scanFn == nil {
		return nil, fmt.Errorf("%w: no scan implementation configured", drivererr.ErrScanner)
	}
	g, err := scanFn(workingDir, commandLine)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.cache[key] = g
	o.mu.Unlock()
	return g, nil
}

// GetScannerDiagnostics returns every diagnostic collected by the scanner
// across all calls made through this oracle so far.
func (o *Oracle) GetScannerDiagnostics() []ScannerDiagnostic {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]ScannerDiagnostic, len(o.diagnostics))
	copy(out, o.diagnostics)
	return out
}
