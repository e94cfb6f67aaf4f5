package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/langtools/compilerdriver/internal/diagnostic"
	"github.com/langtools/compilerdriver/internal/drivererr"
	"github.com/langtools/compilerdriver/internal/driverlog"
	"github.com/langtools/compilerdriver/internal/executor"
	"github.com/langtools/compilerdriver/internal/imdg"
	"github.com/langtools/compilerdriver/internal/incremental"
	"github.com/langtools/compilerdriver/internal/options"
	"github.com/langtools/compilerdriver/internal/planner"
	"github.com/langtools/compilerdriver/internal/toolchain"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	kind, rest, err := options.DetermineDriverKind(os.Args[0], os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return drivererr.ExitCode(err)
	}

	opts, parseDiags := options.Parse(rest)
	printDiagnostics(parseDiags)
	if parseDiags.HasErrors() {
		return drivererr.ExitCode(parseDiags.AsError())
	}

	logger := driverlog.New(false)
	defer logger.Sync()

	var ofm planner.OutputFileMap
	if opts.OutputFileMap != "" {
		ofm, err = planner.LoadOutputFileMap(opts.OutputFileMap)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return drivererr.ExitCode(err)
		}
	}

	cfg, err := toolchain.Load(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return drivererr.ExitCode(fmt.Errorf("%v: %w", err, drivererr.ErrExecution))
	}

	workingDir := opts.WorkingDirectory
	if workingDir == "" {
		workingDir, _ = os.Getwd()
	}

	var moduleGraph *imdg.Graph
	if opts.ExplicitModuleBuild {
		moduleGraph, err = scanDependencies(cfg, workingDir, rest, opts.CASPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return drivererr.ExitCode(err)
		}
	}

	jobs, planDiags := planner.Plan(planner.Input{
		Kind:          kind,
		Options:       opts,
		Toolchain:     cfg,
		OutputFileMap: ofm,
		IMDG:          moduleGraph,
		CASPath:       opts.CASPath,
	})
	printDiagnostics(planDiags)
	if planDiags.HasErrors() {
		return drivererr.ExitCode(planDiags.AsError())
	}
	if len(jobs) == 0 {
		return 0
	}

	depsPath, _ := ofm.Get("", "swift-dependencies")
	engine := loadIncrementalState(depsPath, logger)
	jobs = pruneUpToDateCompiles(jobs, engine, logger)

	ex := executor.New(executor.Options{
		WorkingDir:              workingDir,
		ScratchDir:              scratchDir(),
		SaveTemps:               opts.SaveTemps,
		ParseableOutput:         opts.ParseableOutput,
		Messages:                os.Stdout,
		DriverFilelistThreshold: opts.DriverFilelistThreshold,
	}, cfg, logger)

	report := ex.Run(context.Background(), jobs)
	printDiagnostics(report.Diags)

	reintegrateRecords(jobs, ofm, engine, logger)
	if engine != nil && depsPath != "" {
		if perr := engine.Persist(depsPath); perr != nil {
			logger.Warn("persisting dependency graph failed", zap.Error(perr))
		}
	}

	if report.Diags.HasErrors() {
		return drivererr.ExitCode(report.Diags.AsError())
	}
	return 0
}

// scanDependencies runs the process-wide scanner oracle for an explicit
// module build, folding any scanner diagnostics into stderr.
func scanDependencies(cfg *toolchain.Config, workingDir string, args []string, casPath string) (*imdg.Graph, error) {
	frontend := cfg.Tools[toolchain.ToolFrontend].Path
	oracle := imdg.NewOracle(imdg.OracleOptions{
		SupportsCaching: casPath != "",
		Scan:            imdg.FrontendScanner(frontend),
	})
	g, err := oracle.GetDependencies(workingDir, args, casPath)
	for _, d := range oracle.GetScannerDiagnostics() {
		fmt.Fprintf(os.Stderr, "%s: %s\n", d.Severity, d.Message)
	}
	return g, err
}

// loadIncrementalState loads the persisted MDG named by the output-file-map
// (nil when no swift-dependencies entry exists, which disables incremental
// pruning and reintegration). A corrupt or version-drifted graph is logged
// and replaced with a fresh one; the build proceeds non-incrementally.
func loadIncrementalState(depsPath string, logger *zap.Logger) *incremental.Engine {
	if depsPath == "" {
		return nil
	}
	g, err := incremental.LoadGraph(depsPath)
	if err != nil {
		logger.Warn("dependency graph unusable, rebuilding from scratch", zap.Error(err))
	}
	return incremental.NewEngine(g, logger)
}

// pruneUpToDateCompiles drops per-file compile jobs whose primary input
// needs no recompile according to the incremental engine. Jobs of any other
// kind, and compiles with multiple primaries, always run.
func pruneUpToDateCompiles(jobs []*planner.Job, engine *incremental.Engine, logger *zap.Logger) []*planner.Job {
	if engine == nil {
		return jobs
	}

	var inputs []string
	for _, j := range jobs {
		if j.Kind == planner.KindCompile && len(j.PrimaryInputs) == 1 {
			if s, ok := j.PrimaryInputs[0].Path.Literal(); ok {
				inputs = append(inputs, s)
			}
		}
	}
	if len(inputs) == 0 {
		return jobs
	}

	need := make(map[string]bool)
	for _, in := range engine.InputsToCompile(inputs, nil) {
		need[in] = true
	}

	out := jobs[:0]
	for _, j := range jobs {
		if j.Kind == planner.KindCompile && len(j.PrimaryInputs) == 1 {
			if s, ok := j.PrimaryInputs[0].Path.Literal(); ok && !need[s] {
				logger.Debug("skipping up-to-date input", zap.String("input", s))
				continue
			}
		}
		out = append(out, j)
	}
	return out
}

// reintegrateRecords folds each compiled file's per-file dependency record
// back into the MDG. Failures are logged, never fatal: a record
// that cannot be integrated just costs a non-incremental rebuild of that
// file next time.
func reintegrateRecords(jobs []*planner.Job, ofm planner.OutputFileMap, engine *incremental.Engine, logger *zap.Logger) {
	if engine == nil {
		return
	}
	now := time.Now()
	for _, j := range jobs {
		if j.Kind != planner.KindCompile {
			continue
		}
		for _, primary := range j.PrimaryInputs {
			src, ok := primary.Path.Literal()
			if !ok {
				continue
			}
			recordPath, ok := ofm.Get(src, "swift-dependencies")
			if !ok {
				continue
			}
			data, err := os.ReadFile(recordPath)
			if err != nil {
				continue
			}
			if err := engine.Reintegrate(src, data, now); err != nil {
				logger.Warn("dependency record not integrated",
					zap.String("source", src), zap.Error(err))
			}
		}
	}
}

func printDiagnostics(c *diagnostic.Collector) {
	if c == nil {
		return
	}
	for _, d := range c.Diagnostics() {
		fmt.Fprintln(os.Stderr, d.String())
	}
}

// scratchDir names the per-process scratch directory temporaries and
// response files materialize into; exclusive to one executor.
func scratchDir() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("drivercli-%d", os.Getpid()))
}
