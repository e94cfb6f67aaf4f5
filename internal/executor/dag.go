// Package executor runs a planned DAG of jobs on a bounded worker pool
// : it resolves each job's virtual paths, spawns the tool
// process, emits parseable lifecycle messages, detects input modification,
// and cleans up temporaries according to the -save-temps / abnormal-exit
// policy.
package executor

import (
	"github.com/langtools/compilerdriver/internal/planner"
	"github.com/langtools/compilerdriver/internal/vpath"
)

// node is one job's position in the dependency DAG the scheduler derives
// from the planned job list: a job depends on every other job that
// produces one of its Inputs.
type node struct {
	job     *planner.Job
	deps    []int
	done    chan struct{}
	err     error
	skipped bool
}

// buildDAG derives job dependencies by matching each job's Inputs against
// every other job's Outputs. The planner never hands the
// executor explicit edges; the DAG is reconstructed from the shared VPath
// identities the planner wired between compile and link jobs.
func buildDAG(jobs []*planner.Job) []*node {
	nodes := make([]*node, len(jobs))
	for i, j := range jobs {
		nodes[i] = &node{job: j, done: make(chan struct{})}
	}
	for i, j := range jobs {
		for _, in := range j.Inputs {
			for p, producer := range jobs {
				if p == i {
					continue
				}
				if producesOutput(producer, in.Path) {
					nodes[i].deps = append(nodes[i].deps, p)
				}
			}
		}
	}
	return nodes
}

func producesOutput(j *planner.Job, want vpath.VPath) bool {
	for _, out := range j.Outputs {
		if vpath.SameIdentity(out.Path, want) {
			return true
		}
	}
	return false
}
