package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/langtools/compilerdriver/internal/diagnostic"
	"github.com/langtools/compilerdriver/internal/drivererr"
	"github.com/langtools/compilerdriver/internal/driverlog"
	"github.com/langtools/compilerdriver/internal/planner"
	"github.com/langtools/compilerdriver/internal/runner"
	"github.com/langtools/compilerdriver/internal/toolchain"
	"github.com/langtools/compilerdriver/internal/vpath"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Options configures one executor run.
type Options struct {
	Concurrency int // 0 defaults to runtime.NumCPU()

	WorkingDir string
	ScratchDir string

	SaveTemps bool

	// ParseableOutput, when set, writes one lifecycle message per line to
	// Messages. Nil disables lifecycle messages entirely.
	ParseableOutput bool
	Messages        io.Writer

	// DriverFilelistThreshold gates response-file materialization: when the
	// resolved argv exceeds this many entries, the whole argument list moves
	// into an @file instead, provided the tool supports it. 0 disables the
	// threshold.
	DriverFilelistThreshold int
}

// Executor runs a planned job DAG against a resolved toolchain.
type Executor struct {
	opts      Options
	toolchain *toolchain.Config
	logger    *zap.Logger
	resolver  *vpath.Resolver

	synthPID int32 // per-job quasi-pid counter, always negative
	batchPID int32 // batch-compile synthetic pid counter, starts at -1000
}

// New creates an Executor bound to cfg's resolved tool paths.
func New(opts Options, cfg *toolchain.Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = driverlog.Nop()
	}
	return &Executor{
		opts:      opts,
		toolchain: cfg,
		logger:    logger,
		resolver:  vpath.NewResolver(opts.WorkingDir, opts.ScratchDir),
		batchPID:  -999,
	}
}

// Report summarizes one Run.
type Report struct {
	// Diags accumulates execution-phase diagnostics: tool not found, job
	// crashed, input modified, response-file
	// materialization failed.
	Diags *diagnostic.Collector

	// Aborted is true when any job failed; jobs that had not yet started
	// at that point are skipped.
	Aborted bool
}

// Run executes jobs to completion or first abort. Temporaries
// are cleaned up on every exit path unless -save-temps was requested or an
// abnormal exit occurred.
func (e *Executor) Run(ctx context.Context, jobs []*planner.Job) *Report {
	diags := diagnostic.NewCollector(false, false)
	report := &Report{Diags: diags}

	if len(jobs) == 0 {
		return report
	}

	inputTimes, err := e.recordInputTimes(jobs)
	if err != nil {
		diags.Error(diagnostic.CategoryInputUnexpectedlyModified, "", 0, err.Error())
		return report
	}

	nodes := buildDAG(jobs)

	var abnormalExit int32 // atomic bool
	var aborted int32      // atomic bool

	concurrency := int64(e.opts.Concurrency)
	if concurrency <= 0 {
		concurrency = int64(runtime.NumCPU())
	}
	sem := semaphore.NewWeighted(concurrency)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for i := range nodes {
		i := i
		g.Go(func() error {
			n := nodes[i]
			defer close(n.done)

			for _, dep := range n.deps {
				select {
				case <-nodes[dep].done:
					if nodes[dep].err != nil || nodes[dep].skipped {
						n.skipped = true
						return nil
					}
				case <-gctx.Done():
					n.skipped = true
					return nil
				}
			}

			if atomic.LoadInt32(&aborted) != 0 {
				n.skipped = true
				return nil
			}

			if err := sem.Acquire(gctx, 1); err != nil {
				n.skipped = true
				return nil
			}
			defer sem.Release(1)

			if err := e.runOne(gctx, n.job, inputTimes, diags, &mu); err != nil {
				n.err = err
				atomic.StoreInt32(&aborted, 1)
				if isAbnormal(err) {
					atomic.StoreInt32(&abnormalExit, 1)
				}
				e.logger.Warn("job failed", zap.String("kind", string(n.job.Kind)), zap.Error(err))
			}
			return nil
		})
	}

	_ = g.Wait()

	report.Aborted = atomic.LoadInt32(&aborted) != 0
	preserve := e.opts.SaveTemps || atomic.LoadInt32(&abnormalExit) != 0
	for _, cerr := range e.resolver.Cleanup(preserve) {
		e.logger.Warn("cleanup error", zap.Error(cerr))
	}

	return report
}

type execErr struct {
	abnormal bool
	err      error
}

func (e execErr) Error() string { return e.err.Error() }
func (e execErr) Unwrap() error { return e.err }

func isAbnormal(err error) bool {
	ee, ok := err.(execErr)
	return ok && ee.abnormal
}

// runOne resolves, spawns, and reports the lifecycle of a single job.
func (e *Executor) runOne(ctx context.Context, job *planner.Job, inputTimes map[string]time.Time, diags *diagnostic.Collector, mu *sync.Mutex) error {
	toolPath := job.ToolPath
	if toolPath == "" {
		toolPath = e.toolPathFor(job.Kind)
	}
	if toolPath == "" {
		err := fmt.Errorf("tool-not-found: no resolved tool path for job kind %s", job.Kind)
		mu.Lock()
		diags.Error(diagnostic.CategoryToolNotFound, "", 0, err.Error())
		mu.Unlock()
		return execErr{err: fmt.Errorf("%w", drivererr.ErrExecution)}
	}

	if err := e.checkInputsUnmodified(job, inputTimes); err != nil {
		mu.Lock()
		diags.Error(diagnostic.CategoryInputUnexpectedlyModified, "", 0, err.Error())
		mu.Unlock()
		return execErr{err: fmt.Errorf("%w", drivererr.ErrExecution)}
	}

	args, err := job.Resolve(e.resolver)
	if err != nil {
		mu.Lock()
		diags.Error(diagnostic.CategoryResponseFileMaterialization, "", 0, err.Error())
		mu.Unlock()
		return execErr{err: fmt.Errorf("%w", drivererr.ErrExecution)}
	}

	args, err = e.maybeSquashToResponseFile(job, args)
	if err != nil {
		mu.Lock()
		diags.Error(diagnostic.CategoryResponseFileMaterialization, "", 0, err.Error())
		mu.Unlock()
		return execErr{err: fmt.Errorf("%w", drivererr.ErrExecution)}
	}

	r := runner.New(toolPath, args, e.opts.WorkingDir)
	r.InPlace = job.RequiresInPlace
	r.DisableStdin = !job.RequiresInPlace

	pid, realPID := e.jobPIDs(job)
	e.emitBegan(job, toolPath, args, pid, realPID)

	if startErr := r.Start(); startErr != nil {
		mu.Lock()
		diags.Error(diagnostic.CategoryJobCrashed, "", 0, fmt.Sprintf("job-crashed: %s", startErr))
		mu.Unlock()
		e.emitAbnormalExit(job, pid, realPID, startErr.Error())
		return execErr{abnormal: true, err: fmt.Errorf("starting job: %w", drivererr.ErrExecution)}
	}

	done := make(chan struct{})
	go func() { r.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		r.Stop()
		<-done
	}

	if err := e.checkInputsUnmodified(job, inputTimes); err != nil {
		mu.Lock()
		diags.Error(diagnostic.CategoryInputUnexpectedlyModified, "", 0, err.Error())
		mu.Unlock()
		// A final linker error following modification is tolerated; still
		// surface the diagnostic.
	}

	switch r.Classify() {
	case runner.ExitNormal:
		if r.ExitCode() == 0 {
			e.emitFinished(job, pid, realPID, 0, r.Output())
			return nil
		}
		e.emitFinished(job, pid, realPID, r.ExitCode(), r.Output())
		mu.Lock()
		diags.Error(diagnostic.CategoryJobCrashed, "", 0, fmt.Sprintf("job-crashed: %s exited with status %d", job.Kind, r.ExitCode()))
		mu.Unlock()
		return execErr{err: fmt.Errorf("%w", drivererr.ErrExecution)}
	case runner.ExitSignalled:
		e.emitSignalled(job, pid, realPID, r.Output())
		mu.Lock()
		diags.Error(diagnostic.CategoryJobCrashed, "", 0, fmt.Sprintf("job-crashed: %s terminated by signal", job.Kind))
		mu.Unlock()
		return execErr{err: fmt.Errorf("%w", drivererr.ErrExecution)}
	default:
		e.emitAbnormalExit(job, pid, realPID, "abnormal termination")
		mu.Lock()
		diags.Error(diagnostic.CategoryJobCrashed, "", 0, fmt.Sprintf("job-crashed: %s exited abnormally", job.Kind))
		mu.Unlock()
		return execErr{abnormal: true, err: fmt.Errorf("%w", drivererr.ErrExecution)}
	}
}

func toolForKind(kind planner.Kind) toolchain.Tool {
	if kind == planner.KindLink || kind == planner.KindAutolinkExtract {
		return toolchain.ToolLinker
	}
	return toolchain.ToolFrontend
}

func (e *Executor) toolPathFor(kind planner.Kind) string {
	if e.toolchain == nil {
		return ""
	}
	return e.toolchain.Tools[toolForKind(kind)].Path
}

func (e *Executor) supportsResponseFiles(job *planner.Job) bool {
	if job.SupportsResponseFiles {
		return true
	}
	if e.toolchain == nil {
		return false
	}
	return e.toolchain.Tools[toolForKind(job.Kind)].Capabilities.SupportsResponseFiles
}

// jobPIDs returns the message-stream pid and real_pid for a job; real OS
// pids aren't known until Start returns, so the stream carries a per-job
// quasi-pid the way observers of parseable output expect.
func (e *Executor) jobPIDs(job *planner.Job) (pid, realPID int) {
	n := int32(atomic.AddInt32(&e.synthPID, -1))
	return int(n), int(n)
}

// emitBegan writes the began message(s) for a job. A batch compile with k
// primary inputs gets one began message per primary with synthetic pids
// -1000, -1001, ... and a shared real_pid, so observers can correlate
// per-primary output with per-primary began/finished.
func (e *Executor) emitBegan(job *planner.Job, executable string, args []string, pid, realPID int) {
	if !e.opts.ParseableOutput || e.opts.Messages == nil {
		return
	}
	var outputs []pathEntry
	for _, out := range job.Outputs {
		if s, ok := out.Path.Literal(); ok {
			outputs = append(outputs, pathEntry{Path: s, Type: string(out.Type)})
		}
	}

	if job.Kind == planner.KindCompile && len(job.PrimaryInputs) > 1 {
		for _, primary := range job.PrimaryInputs {
			var inputs []string
			if s, ok := primary.Path.Literal(); ok {
				inputs = append(inputs, s)
			}
			synthetic := int(atomic.AddInt32(&e.batchPID, -1))
			e.writeLine(beganMessage(string(job.Kind), job.Module, synthetic, realPID, inputs, outputs, executable, args))
		}
		return
	}

	var inputs []string
	for _, in := range job.Inputs {
		if s, ok := in.Path.Literal(); ok {
			inputs = append(inputs, s)
		}
	}
	e.writeLine(beganMessage(string(job.Kind), job.Module, pid, realPID, inputs, outputs, executable, args))
}

func (e *Executor) emitFinished(job *planner.Job, pid, realPID, exitStatus int, output string) {
	if !e.opts.ParseableOutput || e.opts.Messages == nil {
		return
	}
	e.writeLine(finishedMessage(string(job.Kind), job.Module, pid, realPID, exitStatus, output))
}

func (e *Executor) emitSignalled(job *planner.Job, pid, realPID int, output string) {
	if !e.opts.ParseableOutput || e.opts.Messages == nil {
		return
	}
	e.writeLine(signalledMessage(string(job.Kind), job.Module, pid, realPID, output, "terminated by signal", 0))
}

func (e *Executor) emitAbnormalExit(job *planner.Job, pid, realPID int, exception string) {
	if !e.opts.ParseableOutput || e.opts.Messages == nil {
		return
	}
	e.writeLine(abnormalExitMessage(string(job.Kind), job.Module, pid, realPID, exception))
}

func (e *Executor) writeLine(line string) {
	w := bufio.NewWriter(e.opts.Messages)
	w.WriteString(line)
	w.WriteByte('\n')
	w.Flush()
}

// recordInputTimes stats every job's non-temporary inputs up front.
func (e *Executor) recordInputTimes(jobs []*planner.Job) (map[string]time.Time, error) {
	times := make(map[string]time.Time)
	for _, job := range jobs {
		for _, in := range job.Inputs {
			path, ok := in.Path.Literal()
			if !ok {
				continue
			}
			resolved := path
			if !isAbs(resolved) && e.opts.WorkingDir != "" {
				resolved = e.opts.WorkingDir + string(os.PathSeparator) + resolved
			}
			if _, already := times[resolved]; already {
				continue
			}
			info, err := os.Stat(resolved)
			if err != nil {
				// Missing inputs are a planning-time concern; the executor
				// only tracks modification of inputs that exist.
				continue
			}
			times[resolved] = info.ModTime()
		}
	}
	return times, nil
}

func (e *Executor) checkInputsUnmodified(job *planner.Job, recorded map[string]time.Time) error {
	for _, in := range job.Inputs {
		path, ok := in.Path.Literal()
		if !ok {
			continue
		}
		resolved := path
		if !isAbs(resolved) && e.opts.WorkingDir != "" {
			resolved = e.opts.WorkingDir + string(os.PathSeparator) + resolved
		}
		want, ok := recorded[resolved]
		if !ok {
			continue
		}
		info, err := os.Stat(resolved)
		if err != nil {
			return fmt.Errorf("input-unexpectedly-modified(%s): %w", path, err)
		}
		if !info.ModTime().Equal(want) {
			return fmt.Errorf("input-unexpectedly-modified(%s)", path)
		}
	}
	return nil
}

func isAbs(p string) bool {
	return len(p) > 0 && (p[0] == '/' || (len(p) > 2 && p[1] == ':'))
}

// maybeSquashToResponseFile rewrites args into a single "@file" token when
// the threshold is exceeded and the target tool advertises response-file
// support, either on the job itself or in the toolchain's
// capability bits for the tool the job runs.
func (e *Executor) maybeSquashToResponseFile(job *planner.Job, args []string) ([]string, error) {
	if e.opts.DriverFilelistThreshold <= 0 || len(args) <= e.opts.DriverFilelistThreshold {
		return args, nil
	}
	if !e.supportsResponseFiles(job) {
		return args, nil
	}
	if err := os.MkdirAll(e.opts.ScratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("response-file-materialization-failed: %w", err)
	}
	f, err := os.CreateTemp(e.opts.ScratchDir, "response-*.txt")
	if err != nil {
		return nil, fmt.Errorf("response-file-materialization-failed: %w", err)
	}
	defer f.Close()
	for _, a := range args {
		if _, err := fmt.Fprintln(f, a); err != nil {
			return nil, fmt.Errorf("response-file-materialization-failed: %w", err)
		}
	}
	return []string{"@" + f.Name()}, nil
}
