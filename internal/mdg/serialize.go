package mdg

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/langtools/compilerdriver/internal/drivererr"
)

// FormatMajor/FormatMinor are the serialized graph's versioned container
// header. A reader
// that sees a different major version has no idea how to interpret the
// blocks that follow and refuses outright; a minor-version mismatch is the
// specific, named error callers match on.
const (
	FormatMajor = 1
	FormatMinor = 0
)

type wireNode struct {
	Aspect         Aspect
	DesigKind      DesignatorKind
	DesigName      string
	DesigContext   string
	SourceFile     string
	Provides       bool
	Cascading      bool
	Fingerprint    string
	HasFingerprint bool
}

type wireGraph struct {
	Major, Minor int
	Nodes        []wireNode
	ExternalFP   map[string]string
	BuildRecord  map[string]BuildRecordEntry
}

// Serialize writes the graph's nodes, def→use edges (implicit in node
// identity and reconstructed by Deserialize via Integrate-equivalent
// rebuilding), fingerprinted-external set, and build record into a
// versioned byte stream.
func (g *Graph) Serialize() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	wg := wireGraph{
		Major:       FormatMajor,
		Minor:       FormatMinor,
		ExternalFP:  g.externalFingerprint,
		BuildRecord: g.buildRecord,
	}
	for _, n := range g.nodes {
		wg.Nodes = append(wg.Nodes, wireNode{
			Aspect: n.key.Aspect, DesigKind: n.key.Designator.Kind,
			DesigName: n.key.Designator.Name, DesigContext: n.key.Designator.Context,
			SourceFile: n.sourceFile, Provides: n.provides, Cascading: n.cascading,
			Fingerprint: n.fingerprint, HasFingerprint: n.hasFingerprint,
		})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wg); err != nil {
		return nil, fmt.Errorf("serializing module dependency graph: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize reconstructs a Graph from Serialize's output. A minor-version
// mismatch is rejected with the mismatched-serialized-graph-version error
// above; readers never guess at how to interpret blocks from
// an incompatible minor version. A major-version mismatch is rejected the
// same way, since there is no older-reader-newer-writer contract specified
// for major versions either.
func Deserialize(data []byte) (*Graph, error) {
	var wg wireGraph
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&wg); err != nil {
		return nil, fmt.Errorf("decoding module dependency graph: %w", err)
	}
	if wg.Major != FormatMajor || wg.Minor != FormatMinor {
		return nil, fmt.Errorf("mismatched-serialized-graph-version(expected %d.%d, read %d.%d): %w",
			FormatMajor, FormatMinor, wg.Major, wg.Minor, drivererr.ErrIntegration)
	}

	g := New()
	g.externalFingerprint = wg.ExternalFP
	if g.externalFingerprint == nil {
		g.externalFingerprint = make(map[string]string)
	}
	g.buildRecord = wg.BuildRecord
	if g.buildRecord == nil {
		g.buildRecord = make(map[string]BuildRecordEntry)
	}

	for _, wn := range wg.Nodes {
		key := Key{Aspect: wn.Aspect, Designator: Designator{
			Kind: wn.DesigKind, Name: wn.DesigName, Context: wn.DesigContext,
		}}
		idx := g.addNode(&node{
			key: key, sourceFile: wn.SourceFile, provides: wn.Provides, cascading: wn.Cascading,
			fingerprint: wn.Fingerprint, hasFingerprint: wn.HasFingerprint,
		})
		if wn.Provides {
			g.defsByKey[key] = append(g.defsByKey[key], idx)
		} else {
			g.usesByKey[key] = append(g.usesByKey[key], idx)
		}
	}
	return g, nil
}
