package batch

import (
	"github.com/powergridmath/gridsolve/pkg/blocksolver"
	"github.com/powergridmath/gridsolve/pkg/model"
	"github.com/powergridmath/gridsolve/pkg/pf"
	"github.com/powergridmath/gridsolve/pkg/ybus"
)

// ScenarioInput is the per-scenario slice of a PowerFlowInput a batch
// varies; everything else (topology, Y-bus structure, branch/shunt
// parameters) is shared, read-only, base-model state.
type ScenarioInput struct {
	URef       []complex128
	SSpecified []complex128
}

// LinearWorker runs C7 (linear power flow) once per scenario against a
// shared Y-bus structure — the common case of a topology-cacheable batch,
// where only load/source setpoints vary. Each scenario's matrix is built
// and factorized afresh, since the loads enter its diagonal.
type LinearWorker struct {
	Topology  *model.MathModelTopology
	Param     *model.MathModelParam
	Structure *ybus.Structure
	Scenarios []ScenarioInput

	solver blocksolver.Solver
	input  *model.PowerFlowInput
}

// NewLinearWorker builds a worker owning its own solver instance, bound to
// the shared (read-only) topology/param/Y-bus structure.
func NewLinearWorker(t *model.MathModelTopology, p *model.MathModelParam, s *ybus.Structure, scenarios []ScenarioInput) (*LinearWorker, error) {
	solver, err := s.NewSolver()
	if err != nil {
		return nil, err
	}
	return &LinearWorker{Topology: t, Param: p, Structure: s, Scenarios: scenarios, solver: solver}, nil
}

func (w *LinearWorker) Clone() (Worker, error) {
	solver, err := w.Structure.NewSolver()
	if err != nil {
		return nil, err
	}
	return &LinearWorker{Topology: w.Topology, Param: w.Param, Structure: w.Structure, Scenarios: w.Scenarios, solver: solver}, nil
}

// Reset is a no-op: LinearWorker's Apply never mutates shared topology or
// parameter state, only the per-scenario PowerFlowInput it builds fresh.
func (w *LinearWorker) Reset() {}

func (w *LinearWorker) Apply(s int) error {
	sc := w.Scenarios[s]
	w.input = &model.PowerFlowInput{BlockSize: w.Param.BlockSize, URef: sc.URef, SSpecified: sc.SSpecified}
	return nil
}

func (w *LinearWorker) Solve(s int) (*model.SolverOutput, error) {
	return pf.SolveLinear(w.Topology, w.Param, w.Structure, w.solver, w.input)
}
