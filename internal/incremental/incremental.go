// Package incremental implements the driver's incremental engine: deciding,
// from the persisted module dependency graph and the
// build-record sidecar, which inputs must be (re)compiled this invocation,
// and reintegrating each file's per-file dependency record after it compiles
// successfully. Reintegration failures never fail the build; they are
// recorded so the next invocation starts from a clean slate.
package incremental

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/langtools/compilerdriver/internal/mdg"
	"go.uber.org/zap"
)

// Engine wraps one invocation's incremental state: the MDG loaded at
// startup (or fresh, when none was persisted) and the logger summaries are
// traced through.
type Engine struct {
	graph  *mdg.Graph
	logger *zap.Logger
}

// NewEngine creates an engine over g. A nil logger disables tracing.
func NewEngine(g *mdg.Graph, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{graph: g, logger: logger}
}

// Graph exposes the engine's module dependency graph for change queries and
// serialization.
func (e *Engine) Graph() *mdg.Graph { return e.graph }

// LoadGraph reads a persisted MDG from path. A missing file seeds a fresh
// graph — the first build of a project has nothing to be incremental
// against — but a present-and-unreadable graph is an integration error the
// caller decides how to surface.
func LoadGraph(path string) (*mdg.Graph, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return mdg.New(), nil
	}
	if err != nil {
		return mdg.New(), fmt.Errorf("reading dependency graph %s: %w", path, err)
	}
	g, derr := mdg.Deserialize(data)
	if derr != nil {
		return mdg.New(), derr
	}
	return g, nil
}

// Stat reports an input's modification time; swapped out in tests.
type Stat func(path string) (time.Time, error)

func osStat(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// InputsToCompile decides which of inputs need compiling this run: an
// input with no build record, an input whose
// on-disk modification time is newer than its last good compile, or an
// input pulled in transitively because something it depends on changed.
// The result is restricted to the given inputs, sorted, and always includes
// each changed file itself (reflexivity).
func (e *Engine) InputsToCompile(inputs []string, stat Stat) []string {
	if stat == nil {
		stat = osStat
	}

	inputSet := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		inputSet[in] = true
	}

	need := make(map[string]bool)
	var changed []string
	for _, in := range inputs {
		rec, ok := e.graph.BuildRecordFor(in)
		if !ok {
			e.logger.Debug("input has no build record, scheduling compile", zap.String("input", in))
			need[in] = true
			continue
		}
		mod, err := stat(in)
		if err != nil {
			need[in] = true
			continue
		}
		if mod.UnixNano() > rec.LastGoodCompileUnixNano {
			changed = append(changed, in)
		}
	}

	for _, in := range changed {
		for _, dep := range e.graph.FindSwiftDepsToRecompileWhenWholeSwiftDepsChanges(in) {
			if inputSet[dep] {
				need[dep] = true
			}
		}
		// The closure is reflexive on a traced graph only for the first
		// query; the changed file itself is always scheduled regardless.
		need[in] = true
	}

	out := make([]string, 0, len(need))
	for in := range need {
		out = append(out, in)
	}
	sort.Strings(out)
	return out
}

// InvalidatedByExternal returns the inputs invalidated by a changed
// external dependency, restricted to the given inputs. Each external is
// processed at most once per run.
func (e *Engine) InvalidatedByExternal(externalPath string, inputs []string) []string {
	inputSet := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		inputSet[in] = true
	}
	var out []string
	for _, dep := range e.graph.FindUntracedSwiftDepsDependentOnExternal(externalPath) {
		if inputSet[dep] {
			out = append(out, dep)
		}
	}
	sort.Strings(out)
	return out
}

// Reintegrate applies one freshly-compiled file's dependency record to the
// graph and stamps its build record. recordData
// is the serialized per-file record the frontend emitted; a malformed
// record is an integration error the caller records without failing the
// build.
func (e *Engine) Reintegrate(sourceFile string, recordData []byte, compiledAt time.Time) error {
	rec, err := ParseRecord(recordData)
	if err != nil {
		return err
	}
	e.graph.Integrate(sourceFile, rec)
	e.graph.SetBuildRecord(sourceFile, mdg.BuildRecordEntry{
		LastGoodCompileUnixNano: compiledAt.UnixNano(),
		Status:                  "ok",
	})
	e.logger.Debug("reintegrated dependency record",
		zap.String("source", sourceFile),
		zap.Int("provides", len(rec.Provides)),
		zap.Int("uses", len(rec.Uses)))
	return nil
}

// Persist serializes the graph to path atomically (write-temp, rename), so
// a crash mid-write never leaves a truncated graph for the next invocation
// to choke on.
func (e *Engine) Persist(path string) error {
	data, err := e.graph.Serialize()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for dependency graph %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing dependency graph %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("committing dependency graph %s: %w", path, err)
	}
	return nil
}
