package imdg

import "testing"

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSampleGraph() *Graph {
	main := ID{Kind: ModuleSwiftSource, Name: "App"}
	a := ID{Kind: ModuleSwiftInterface, Name: "A"}
	b := ID{Kind: ModuleClang, Name: "B"}
	c := ID{Kind: ModuleSwiftInterface, Name: "C"}

	g := NewGraph(main)
	g.Add(&Info{ID: main, Dependencies: []ID{a}})
	g.Add(&Info{ID: a, Dependencies: []ID{b}})
	g.Add(&Info{ID: b, Dependencies: []ID{c}})
	g.Add(&Info{ID: c})
	return g
}

func TestTransitiveDependencies(t *testing.T) {
	g := buildSampleGraph()
	deps := g.TransitiveDependencies(g.Main)
	names := make(map[string]bool)
	for _, id := range deps {
		names[id.Name] = true
	}
	assert.True(t, names["A"])
	assert.True(t, names["B"])
	assert.True(t, names["C"], "transitive closure must reach indirect dependencies")
}

func TestNonMainModules(t *testing.T) {
	g := buildSampleGraph()
	nonMain := g.NonMainModules()
	for _, info := range nonMain {
		assert.NotEqual(t, g.Main, info.ID)
	}
	assert.Len(t, nonMain, 3)
}

func TestPlaceholders(t *testing.T) {
	g := buildSampleGraph()
	placeholder := ID{Kind: ModuleSwiftPlaceholder, Name: "Outer"}
	g.Add(&Info{ID: placeholder})

	got := g.Placeholders()
	require.Len(t, got, 1)
	assert.Equal(t, placeholder, got[0])
}
