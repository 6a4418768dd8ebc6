package pf

import (
	"github.com/powergridmath/gridsolve/pkg/blocksolver"
	"github.com/powergridmath/gridsolve/pkg/model"
	"github.com/powergridmath/gridsolve/pkg/ybus"
)

// injectedCurrent computes one load/gen's current contribution as a
// function of its previous-iteration bus voltage, per load_gen_type.
func injectedCurrent(kind model.LoadGenType, sSpec, uBus []complex128) []complex128 {
	out := make([]complex128, len(sSpec))
	for k, s := range sSpec {
		u := uBus[k]
		switch kind {
		case model.ConstPQ:
			out[k] = cmplxConj(s / u)
		case model.ConstY:
			out[k] = cmplxConj(s) * u
		case model.ConstI:
			out[k] = cmplxConj(s * complex(cmplxAbs(u), 0) / u)
		}
	}
	return out
}

// SolveIterativeCurrent runs C8: a fixed-point iteration over bus voltage
// with a Y-bus diagonal modified once by each source's series admittance
// and prefactorised on the first iteration.
func SolveIterativeCurrent(t *model.MathModelTopology, param *model.MathModelParam, s *ybus.Structure, solver blocksolver.Solver, in *model.PowerFlowInput, opts model.CalculationOptions) (*model.SolverOutput, error) {
	bs := in.BlockSize
	admittance := s.BuildAdmittance(param)

	for b := 0; b < t.BusCount; b++ {
		for _, si := range t.SourcesPerBus.Group(b) {
			blockAddAt(admittance, s.BusEntry, b, bs, param.SourceParam[si].Y1)
		}
	}

	lu := s.ScatterToLU(admittance)
	if err := solver.Prefactorize(lu); err != nil {
		return nil, err
	}

	u := flatStart(t, averageURef(in, t.NumSources()), bs)
	uNew := make([]complex128, len(u))

	for iter := 1; ; iter++ {
		rhs := make([]complex128, t.BusCount*bs)

		for b := 0; b < t.BusCount; b++ {
			for _, lg := range t.LoadGensPerBus.Group(b) {
				sSpec := in.SSpecified[int(lg)*bs : (int(lg)+1)*bs]
				uBus := u[b*bs : (b+1)*bs]
				iInj := injectedCurrent(t.LoadGenType[lg], sSpec, uBus)
				vecAddAt(rhs, b, bs, iInj)
			}
			for _, si := range t.SourcesPerBus.Group(b) {
				uRef := in.URef[int(si)*bs : (int(si)+1)*bs]
				vecAddAt(rhs, b, bs, blockMulVec(param.SourceParam[si].Y1, uRef, bs))
			}
		}

		if err := solver.Solve(nil, rhs, uNew, true); err != nil {
			return nil, err
		}

		maxDev := maxAbsDiff(uNew, u)
		copy(u, uNew)
		if maxDev < opts.ErrTol {
			break
		}
		if iter >= opts.MaxIter {
			return nil, &model.IterationDivergeError{NIter: iter, MaxDev: maxDev, ErrTol: opts.ErrTol}
		}
	}

	return projectOutput(t, param, s, admittance, u, bs), nil
}
