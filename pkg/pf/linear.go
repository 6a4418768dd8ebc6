package pf

import (
	"fmt"

	"github.com/powergridmath/gridsolve/pkg/blocksolver"
	"github.com/powergridmath/gridsolve/pkg/model"
	"github.com/powergridmath/gridsolve/pkg/ybus"
)

// SolveLinear runs C7: every load/gen is modelled as a constant-admittance
// y_load = -conj(s_spec), folded into the Y-bus diagonal alongside each
// source's series admittance; the right-hand side is the sum of
// y_source*u_ref per bus. One solve, no iteration.
func SolveLinear(t *model.MathModelTopology, param *model.MathModelParam, s *ybus.Structure, solver blocksolver.Solver, in *model.PowerFlowInput) (*model.SolverOutput, error) {
	bs := in.BlockSize
	admittance := s.BuildAdmittance(param)
	rhs := make([]complex128, t.BusCount*bs)

	for b := 0; b < t.BusCount; b++ {
		for _, lg := range t.LoadGensPerBus.Group(b) {
			sSpec := in.SSpecified[int(lg)*bs : (int(lg)+1)*bs]
			blockAddAt(admittance, s.BusEntry, b, bs, constYLoad(sSpec))
		}
		for _, si := range t.SourcesPerBus.Group(b) {
			y1 := param.SourceParam[si].Y1
			blockAddAt(admittance, s.BusEntry, b, bs, y1)
			uRef := in.URef[int(si)*bs : (int(si)+1)*bs]
			vecAddAt(rhs, b, bs, blockMulVec(y1, uRef, bs))
		}
	}

	lu := s.ScatterToLU(admittance)
	u := make([]complex128, t.BusCount*bs)
	if err := solver.Solve(lu, rhs, u, false); err != nil {
		return nil, fmt.Errorf("pf: linear solve: %w", err)
	}

	return projectOutput(t, param, s, admittance, u, bs), nil
}
