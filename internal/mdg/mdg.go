// Package mdg implements the driver's module dependency graph: the
// persistent, in-memory bipartite graph of provider and use nodes
// that drives incremental recompilation decisions. A Graph is built once per
// project and mutated as each file's per-file dependency record is
// integrated after a successful compile; it is reread from disk at the
// start of the next invocation.
package mdg

import (
	"fmt"
	"sort"
	"sync"
)

// Aspect distinguishes whether a key names a declaration's interface
// (public signature) or its implementation (body).
type Aspect int

const (
	AspectInterface Aspect = iota
	AspectImplementation
)

func (a Aspect) String() string {
	if a == AspectImplementation {
		return "implementation"
	}
	return "interface"
}

// DesignatorKind enumerates the key variants. The invariant that
// nominal/potentialMember carry only a context, member carries a context
// and a name, and the rest carry only a name is enforced by the constructor
// functions below, not by the struct shape itself.
type DesignatorKind string

const (
	DesignatorTopLevel          DesignatorKind = "topLevel"
	DesignatorNominal           DesignatorKind = "nominal"
	DesignatorPotentialMember   DesignatorKind = "potentialMember"
	DesignatorMember            DesignatorKind = "member"
	DesignatorDynamicLookup     DesignatorKind = "dynamicLookup"
	DesignatorExternalDepend    DesignatorKind = "externalDepend"
	DesignatorSourceFileProvide DesignatorKind = "sourceFileProvide"
)

// Designator identifies what a node provides or uses, independent of aspect.
type Designator struct {
	Kind    DesignatorKind
	Name    string // topLevel, member, dynamicLookup, externalDepend, sourceFileProvide
	Context string // nominal, potentialMember, member
}

func (d Designator) String() string {
	switch d.Kind {
	case DesignatorNominal, DesignatorPotentialMember:
		return fmt.Sprintf("%s(%s)", d.Kind, d.Context)
	case DesignatorMember:
		return fmt.Sprintf("%s(%s,%s)", d.Kind, d.Context, d.Name)
	default:
		return fmt.Sprintf("%s(%s)", d.Kind, d.Name)
	}
}

func TopLevel(name string) Designator   { return Designator{Kind: DesignatorTopLevel, Name: name} }
func Nominal(context string) Designator { return Designator{Kind: DesignatorNominal, Context: context} }
func PotentialMember(context string) Designator {
	return Designator{Kind: DesignatorPotentialMember, Context: context}
}
func Member(context, name string) Designator {
	return Designator{Kind: DesignatorMember, Context: context, Name: name}
}
func DynamicLookup(name string) Designator {
	return Designator{Kind: DesignatorDynamicLookup, Name: name}
}
func ExternalDependD(path string) Designator {
	return Designator{Kind: DesignatorExternalDepend, Name: path}
}
func SourceFileProvide(name string) Designator {
	return Designator{Kind: DesignatorSourceFileProvide, Name: name}
}

// Key pairs an aspect with a designator; it is the graph's node identity
// for lookups keyed by "what".
type Key struct {
	Aspect     Aspect
	Designator Designator
}

func (k Key) String() string { return fmt.Sprintf("%s:%s", k.Aspect, k.Designator) }

// ExternalDepend returns the interface-aspect key for an external
// dependency path, matching how the integrator and change-detection queries
// name externals.
func ExternalDepend(path string) Key {
	return Key{Aspect: AspectInterface, Designator: ExternalDependD(path)}
}

// Provided describes one declaration a compiled file provides.
type Provided struct {
	Key            Key
	Fingerprint    string
	HasFingerprint bool
}

// Used describes one declaration a compiled file depends on. Cascading is
// false for a noncascading ("implementation-only") use: the immediate user
// is recompiled when the used declaration changes, but that propagation
// does not continue past the user.
type Used struct {
	Key       Key
	Cascading bool
}

// Record is the per-file dependency artifact the integrator reads after a
// successful compile.
type Record struct {
	Provides []Provided
	Uses     []Used
}

type node struct {
	seq            int
	key            Key
	sourceFile     string
	provides       bool
	cascading      bool // meaningful only when !provides
	fingerprint    string
	hasFingerprint bool

	// traced marks a node as already processed by a change query this run,
	// so each node contributes to at most one invalidation set. Never serialized.
	traced bool
}

// BuildRecordEntry is the sidecar build-record row used for
// seeding incremental decisions on a fresh process.
type BuildRecordEntry struct {
	LastGoodCompileUnixNano int64
	Status                  string
}

// Graph is the module dependency graph. All exported methods are safe for
// concurrent use; the integrator enters an exclusive scope, readers
// (queries, serialization) enter a shared scope, matching the
// blocking_concurrent_mutation / blocking_concurrent_access_or_mutation
// discipline.
type Graph struct {
	mu sync.RWMutex

	nodes []*node

	bySourceFile map[string][]int // provides node indices, by source file
	defsByKey    map[Key][]int    // provides node indices, by key
	usesByKey    map[Key][]int    // use node indices that depend on this key

	externalFingerprint map[string]string
	tracedExternal      map[string]bool

	buildRecord map[string]BuildRecordEntry
}

// New creates an empty module dependency graph.
func New() *Graph {
	return &Graph{
		bySourceFile:        make(map[string][]int),
		defsByKey:           make(map[Key][]int),
		usesByKey:           make(map[Key][]int),
		externalFingerprint: make(map[string]string),
		tracedExternal:      make(map[string]bool),
		buildRecord:         make(map[string]BuildRecordEntry),
	}
}

// Integrate applies one file's freshly-compiled dependency record to the
// graph. Each provider maps to a node under its key — updated in
// place (new fingerprint) if one already exists for this file, created
// otherwise. Each use becomes a non-provides node if none exists yet, with an
// edge recorded from it to every def node currently matching its key. A
// whole-file provide under SourceFileProvide links the file's own identity
// into the graph so other files can depend on "this file changed" directly.
func (g *Graph) Integrate(sourceFile string, rec Record) {
	g.mu.Lock()
	defer g.mu.Unlock()

	allProvides := append([]Provided{{
		Key: Key{Aspect: AspectInterface, Designator: SourceFileProvide(sourceFile)},
	}}, rec.Provides...)

	for _, p := range allProvides {
		idx := g.findNode(sourceFile, p.Key, true)
		if idx < 0 {
			idx = g.addNode(&node{
				key: p.Key, sourceFile: sourceFile, provides: true,
				fingerprint: p.Fingerprint, hasFingerprint: p.HasFingerprint,
			})
			g.defsByKey[p.Key] = append(g.defsByKey[p.Key], idx)
		} else {
			n := g.nodes[idx]
			n.fingerprint = p.Fingerprint
			n.hasFingerprint = p.HasFingerprint
		}
	}

	for _, u := range rec.Uses {
		idx := g.findNode(sourceFile, u.Key, false)
		if idx < 0 {
			idx = g.addNode(&node{
				key: u.Key, sourceFile: sourceFile, provides: false, cascading: u.Cascading,
			})
			g.usesByKey[u.Key] = append(g.usesByKey[u.Key], idx)
		} else {
			g.nodes[idx].cascading = u.Cascading
		}
	}
}

func (g *Graph) findNode(sourceFile string, key Key, provides bool) int {
	for _, idx := range g.bySourceFile[sourceFile] {
		n := g.nodes[idx]
		if n.key == key && n.provides == provides {
			return idx
		}
	}
	return -1
}

func (g *Graph) addNode(n *node) int {
	n.seq = len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.bySourceFile[n.sourceFile] = append(g.bySourceFile[n.sourceFile], n.seq)
	return n.seq
}

// closure performs the shared BFS: starting from startKeys,
// visit every untraced use node keyed to a def currently in the frontier,
// add its owning file to the result, and — only for cascading uses — enqueue
// that file's own provided keys so the propagation continues one more hop.
// seedFiles pre-populates the visited set (used for reflexivity). Every use
// node the walk touches is marked traced, so a later query through the same
// node yields nothing; callers must hold the write lock.
func (g *Graph) closure(startKeys []Key, seedFiles []string) []string {
	visited := make(map[string]bool)
	for _, f := range seedFiles {
		visited[f] = true
	}

	frontier := append([]Key(nil), startKeys...)
	seenKeys := make(map[Key]bool)
	for _, k := range frontier {
		seenKeys[k] = true
	}

	for len(frontier) > 0 {
		var next []Key
		for _, key := range frontier {
			for _, useIdx := range g.usesByKey[key] {
				un := g.nodes[useIdx]
				if un.traced {
					continue
				}
				un.traced = true
				if visited[un.sourceFile] {
					continue
				}
				visited[un.sourceFile] = true
				if !un.cascading {
					continue
				}
				for _, defIdx := range g.bySourceFile[un.sourceFile] {
					dn := g.nodes[defIdx]
					if dn.provides && !seenKeys[dn.key] {
						seenKeys[dn.key] = true
						next = append(next, dn.key)
					}
				}
			}
		}
		frontier = next
	}

	out := make([]string, 0, len(visited))
	for f := range visited {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// FindSwiftDepsToRecompileWhenWholeSwiftDepsChanges computes the
// transitive closure, in the use direction, of every file that depends
// (directly or, via cascading uses, transitively) on anything sourceFile
// provides. The first query for a file is reflexive — the result always
// contains sourceFile itself — and traces every node it touches,
// so a second query for the same file within one run returns an empty set.
func (g *Graph) FindSwiftDepsToRecompileWhenWholeSwiftDepsChanges(sourceFile string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var keys []Key
	untraced := false
	for _, idx := range g.bySourceFile[sourceFile] {
		n := g.nodes[idx]
		if !n.provides {
			continue
		}
		if !n.traced {
			untraced = true
			n.traced = true
		}
		keys = append(keys, n.key)
	}
	if !untraced {
		return nil
	}
	return g.closure(keys, []string{sourceFile})
}

// FindUntracedSwiftDepsDependentOnExternal computes the closure
// starting from untraced nodes whose key is externalDepend(path). The traced
// bit ensures each external is processed at most once per run; a second
// call for the same path returns an empty set.
func (g *Graph) FindUntracedSwiftDepsDependentOnExternal(path string) []string {
	g.mu.Lock()
	if g.tracedExternal[path] {
		g.mu.Unlock()
		return nil
	}
	g.tracedExternal[path] = true
	defer g.mu.Unlock()
	return g.closure([]Key{ExternalDepend(path)}, nil)
}

// RecordExternalFingerprint registers (or updates) the fingerprint tracked
// for an external dependency, part of the "set of external dependencies with
// fingerprints" index.
func (g *Graph) RecordExternalFingerprint(path, fingerprint string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.externalFingerprint[path] = fingerprint
}

// SetBuildRecord upserts a build-record row for an input path.
func (g *Graph) SetBuildRecord(inputPath string, entry BuildRecordEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.buildRecord[inputPath] = entry
}

// BuildRecordFor returns the recorded build-record row for an input, if any.
func (g *Graph) BuildRecordFor(inputPath string) (BuildRecordEntry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.buildRecord[inputPath]
	return e, ok
}

// NodeDescriptions returns a canonical, sorted textual description of every
// node, used by the round-trip test to compare graphs without
// depending on internal sequence-number assignment.
func (g *Graph) NodeDescriptions() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		fp := ""
		if n.hasFingerprint {
			fp = n.fingerprint
		}
		out = append(out, fmt.Sprintf("%s|file=%s|provides=%v|cascading=%v|fp=%s",
			n.key, n.sourceFile, n.provides, n.cascading, fp))
	}
	sort.Strings(out)
	return out
}

// UseEdgeDescriptions returns, for every def key with at least one
// dependent use, a sorted description of the use nodes depending on it —
// the "map from def-description to set of use-descriptions" the round-trip
// property compares.
func (g *Graph) UseEdgeDescriptions() map[string][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string][]string)
	for key, useIdxs := range g.usesByKey {
		var uses []string
		for _, idx := range useIdxs {
			un := g.nodes[idx]
			uses = append(uses, fmt.Sprintf("%s|cascading=%v", un.sourceFile, un.cascading))
		}
		sort.Strings(uses)
		out[key.String()] = uses
	}
	return out
}

// FingerprintedExternalDescriptions returns the fingerprinted-external set
// as sorted "path=fingerprint" strings.
func (g *Graph) FingerprintedExternalDescriptions() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.externalFingerprint))
	for path, fp := range g.externalFingerprint {
		out = append(out, fmt.Sprintf("%s=%s", path, fp))
	}
	sort.Strings(out)
	return out
}
