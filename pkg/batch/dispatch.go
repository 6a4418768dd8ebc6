// Package batch implements C11, the batch dispatcher: stride-interleaved
// fan-out of independent scenarios over a worker pool, one private model
// copy per worker, errgroup-based joining with per-scenario exception
// capture aggregated into a single error.
package batch

import (
	"runtime"

	"github.com/powergridmath/gridsolve/pkg/model"
	"golang.org/x/sync/errgroup"
)

// Worker owns one private copy of the base model and knows how to mutate
// it for a given scenario and run the configured solver against it.
type Worker interface {
	// Clone returns a fresh private copy for another worker's exclusive use.
	Clone() (Worker, error)
	// Reset restores this worker's copy to the base model's state, called
	// before every scenario when scenarios are not independent.
	Reset()
	// Apply mutates the private copy for scenario index s.
	Apply(s int) error
	// Solve runs the solver against the current state and returns its
	// output for scenario s.
	Solve(s int) (*model.SolverOutput, error)
}

// ThreadCount resolves the configured threading option into a worker count:
// negative or 1 means sequential, 0 means auto (min of scenario count and
// CPU count), and a positive value is capped at the scenario count.
func ThreadCount(threading, nScenarios int) int {
	if nScenarios <= 0 {
		return 1
	}
	switch {
	case threading < 0 || threading == 1:
		return 1
	case threading == 0:
		n := runtime.NumCPU()
		if n > nScenarios {
			n = nScenarios
		}
		if n < 1 {
			n = 1
		}
		return n
	default:
		n := threading
		if n > nScenarios {
			n = nScenarios
		}
		return n
	}
}

// Dispatcher runs NScenarios scenarios against Base, stride-partitioned
// across ThreadCount(Threading, NScenarios) workers.
type Dispatcher struct {
	Base        Worker
	NScenarios  int
	Independent bool
	Threading   int
}

// Run executes every scenario and writes its result into results[s]
// (pre-sized to NScenarios by the caller). A failed scenario leaves its
// result slot nil and is recorded in the returned BatchCalculationError;
// an all-succeeding run returns nil.
func (d *Dispatcher) Run(results []*model.SolverOutput) error {
	n := ThreadCount(d.Threading, d.NScenarios)
	exceptions := make([]string, d.NScenarios)

	var eg errgroup.Group
	for w := 0; w < n; w++ {
		w := w
		worker, err := d.Base.Clone()
		if err != nil {
			return err
		}
		eg.Go(func() error {
			for s := w; s < d.NScenarios; s += n {
				if !d.Independent {
					worker.Reset()
				}
				if err := worker.Apply(s); err != nil {
					exceptions[s] = err.Error()
					continue
				}
				out, err := worker.Solve(s)
				if err != nil {
					exceptions[s] = err.Error()
					continue
				}
				results[s] = out
			}
			return nil
		})
	}
	_ = eg.Wait()

	var failed []int
	var messages []string
	for s, msg := range exceptions {
		if msg != "" {
			failed = append(failed, s)
			messages = append(messages, msg)
		}
	}
	if len(failed) > 0 {
		return &model.BatchCalculationError{FailedScenarios: failed, Messages: messages}
	}
	return nil
}

// DetectIndependence reports whether every scenario's component-id ordering
// has identical length and content, the condition required to run scenarios
// in parallel without a Reset between them.
func DetectIndependence(ids [][]model.ID) bool {
	if len(ids) == 0 {
		return true
	}
	first := ids[0]
	for _, s := range ids[1:] {
		if len(s) != len(first) {
			return false
		}
		for i := range s {
			if s[i] != first[i] {
				return false
			}
		}
	}
	return true
}

// DetectTopologyCacheable reports whether the Y-bus structure and its LU
// pattern can be reused across the whole batch, given, per scenario,
// whether that scenario's update touched any switching-status attribute
// (branch from/to_status, branch3 status_1/2/3, source status).
func DetectTopologyCacheable(scenarioChangesSwitchingStatus []bool) bool {
	for _, changed := range scenarioChangesSwitchingStatus {
		if changed {
			return false
		}
	}
	return true
}
