package executor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/langtools/compilerdriver/internal/planner"
	"github.com/langtools/compilerdriver/internal/toolchain"
	"github.com/langtools/compilerdriver/internal/vpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(path string) *toolchain.Config {
	return &toolchain.Config{
		Tools: map[toolchain.Tool]toolchain.ResolvedTool{
			toolchain.ToolFrontend: {Path: path},
			toolchain.ToolLinker:   {Path: path},
		},
	}
}

func TestRun_SingleJobSucceeds(t *testing.T) {
	dir := t.TempDir()
	job := &planner.Job{
		Kind: planner.KindCompile,
		Args: []planner.Arg{planner.Lit("hello")},
	}
	e := New(Options{WorkingDir: dir, ScratchDir: filepath.Join(dir, "scratch")}, testConfig("/bin/echo"), nil)
	report := e.Run(context.Background(), []*planner.Job{job})
	assert.False(t, report.Diags.HasErrors())
	assert.False(t, report.Aborted)
}

func TestRun_FailingJobAbortsDAG(t *testing.T) {
	dir := t.TempDir()
	compile := &planner.Job{Kind: planner.KindCompile}
	link := &planner.Job{Kind: planner.KindLink}

	cfg := &toolchain.Config{
		Tools: map[toolchain.Tool]toolchain.ResolvedTool{
			toolchain.ToolFrontend: {Path: "/bin/false"},
			toolchain.ToolLinker:   {Path: "/bin/echo"},
		},
	}
	e := New(Options{WorkingDir: dir, ScratchDir: filepath.Join(dir, "scratch")}, cfg, nil)
	report := e.Run(context.Background(), []*planner.Job{compile, link})
	assert.True(t, report.Diags.HasErrors())
	assert.True(t, report.Aborted)
}

func TestRun_LinkWaitsForCompile(t *testing.T) {
	obj := vpath.TypedPath{Path: vpath.NewTemporary(".o"), Type: vpath.FileObject}
	compile := &planner.Job{Kind: planner.KindCompile, Outputs: []vpath.TypedPath{obj}}
	link := &planner.Job{Kind: planner.KindLink, Inputs: []vpath.TypedPath{obj}}

	nodes := buildDAG([]*planner.Job{compile, link})
	require.Len(t, nodes, 2)
	assert.Empty(t, nodes[0].deps, "compile has no dependencies")
	assert.Equal(t, []int{0}, nodes[1].deps, "link depends on the job producing its object input")
}

func TestRun_TempCleanedUpByDefault(t *testing.T) {
	dir := t.TempDir()
	scratch := filepath.Join(dir, "scratch")
	job := &planner.Job{
		Kind:    planner.KindCompile,
		Outputs: []vpath.TypedPath{{Path: vpath.NewTemporary(".o"), Type: vpath.FileObject}},
	}
	e := New(Options{WorkingDir: dir, ScratchDir: scratch}, testConfig("/bin/echo"), nil)

	// Force materialization so Cleanup has something to remove.
	_, err := e.resolver.Resolve(job.Outputs[0].Path)
	require.NoError(t, err)

	report := e.Run(context.Background(), []*planner.Job{job})
	assert.False(t, report.Diags.HasErrors())

	remaining := e.resolver.Created()
	for _, p := range remaining {
		_, statErr := os.Stat(p)
		assert.Error(t, statErr, "temp should be removed after Run without -save-temps")
	}
}

func TestRun_SaveTempsPreservesFiles(t *testing.T) {
	dir := t.TempDir()
	scratch := filepath.Join(dir, "scratch")
	job := &planner.Job{Kind: planner.KindCompile}
	e := New(Options{WorkingDir: dir, ScratchDir: scratch, SaveTemps: true}, testConfig("/bin/echo"), nil)

	tmp := vpath.NewTemporary(".o")
	path, err := e.resolver.Resolve(tmp)
	require.NoError(t, err)

	report := e.Run(context.Background(), []*planner.Job{job})
	assert.False(t, report.Diags.HasErrors())

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "-save-temps must preserve materialized temporaries")
}

func TestLifecycleMessages_EmittedWhenParseableOutputEnabled(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	job := &planner.Job{Kind: planner.KindCompile, Module: "Main"}
	e := New(Options{
		WorkingDir:      dir,
		ScratchDir:      filepath.Join(dir, "scratch"),
		ParseableOutput: true,
		Messages:        &buf,
	}, testConfig("/bin/echo"), nil)

	report := e.Run(context.Background(), []*planner.Job{job})
	assert.False(t, report.Diags.HasErrors())

	out := buf.String()
	assert.Contains(t, out, `"kind"`)
	assert.Contains(t, out, `"Main"`)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.GreaterOrEqual(t, len(lines), 2, "expected at least a began and a finished message")
}

func TestBatchCompile_OneBeganPerPrimaryWithSyntheticPIDs(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	primaries := []vpath.TypedPath{
		{Path: vpath.Relative("a.swift"), Type: vpath.FileSource},
		{Path: vpath.Relative("b.swift"), Type: vpath.FileSource},
		{Path: vpath.Relative("c.swift"), Type: vpath.FileSource},
	}
	job := &planner.Job{
		Kind:          planner.KindCompile,
		Module:        "Main",
		Inputs:        primaries,
		PrimaryInputs: primaries,
	}
	e := New(Options{
		WorkingDir:      dir,
		ScratchDir:      filepath.Join(dir, "scratch"),
		ParseableOutput: true,
		Messages:        &buf,
	}, testConfig("/bin/echo"), nil)

	report := e.Run(context.Background(), []*planner.Job{job})
	assert.False(t, report.Diags.HasErrors())

	out := buf.String()
	assert.Contains(t, out, `"pid":-1000`)
	assert.Contains(t, out, `"pid":-1001`)
	assert.Contains(t, out, `"pid":-1002`)

	began := 0
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.Contains(line, `"command_executable"`) {
			began++
		}
	}
	assert.Equal(t, 3, began, "one began message per primary input")
}

func TestResponseFile_RequiresToolSupport(t *testing.T) {
	dir := t.TempDir()
	e := New(Options{
		WorkingDir:              dir,
		ScratchDir:              filepath.Join(dir, "scratch"),
		DriverFilelistThreshold: 1,
	}, &toolchain.Config{Tools: map[toolchain.Tool]toolchain.ResolvedTool{
		toolchain.ToolFrontend: {Path: "/bin/echo"},
	}}, nil)

	job := &planner.Job{Kind: planner.KindCompile}
	args := []string{"one", "two", "three"}

	got, err := e.maybeSquashToResponseFile(job, args)
	require.NoError(t, err)
	assert.Equal(t, args, got, "no response file without tool support")

	job.SupportsResponseFiles = true
	got, err = e.maybeSquashToResponseFile(job, args)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0], "@"), "inputs move into an @file")

	data, err := os.ReadFile(strings.TrimPrefix(got[0], "@"))
	require.NoError(t, err)
	for _, a := range args {
		assert.Contains(t, string(data), a, "response file must carry every original argument")
	}
}

func TestOrderedJSON_KeysSortedAndSlashEscaped(t *testing.T) {
	line := orderedJSON(map[string]any{
		"zeta":  "a/b",
		"alpha": 1,
	})
	assert.True(t, strings.Index(line, `"alpha"`) < strings.Index(line, `"zeta"`))
	assert.Contains(t, line, `a\/b`)
}
