// Package se implements C10, the iterative-linear weighted-least-squares
// state estimator: build a gain matrix from aggregated measurements,
// prefactorise it once, then iterate only the right-hand side (current
// reconstructed from the latest voltage estimate) to convergence.
package se

import (
	"fmt"
	"math"

	"github.com/powergridmath/gridsolve/pkg/blocksolver"
	"github.com/powergridmath/gridsolve/pkg/model"
	"github.com/powergridmath/gridsolve/pkg/ybus"
)

// hardConstraintWeight stands in for the infinite weight a variance-0 "hard
// constraint" measurement demands: large enough to pin the estimate to the
// measured value to well within any realistic ErrTol, but finite, so it
// never produces the Inf/NaN that 1/0 would poison the gain matrix with.
const hardConstraintWeight = 1e12

// weightFromVariance turns a measurement variance into a WLS weight,
// treating variance == 0 (a hard constraint, per the "variance = 0 means
// hard constraint" convention) as hardConstraintWeight instead of 1/0.
func weightFromVariance(variance float64) complex128 {
	if variance == 0 {
		return complex(hardConstraintWeight, 0)
	}
	return complex(1/variance, 0)
}

func cmplxAbsSE(c complex128) float64 { return math.Hypot(real(c), imag(c)) }

func maxAbsDiffSE(a, b []complex128) float64 {
	m := 0.0
	for i := range a {
		if d := cmplxAbsSE(a[i] - b[i]); d > m {
			m = d
		}
	}
	return m
}

func flatStartSE(t *model.MathModelTopology, bs int) []complex128 {
	u := make([]complex128, t.BusCount*bs)
	for b := 0; b < t.BusCount; b++ {
		rot := complex(math.Cos(t.PhaseShift[b]), math.Sin(t.PhaseShift[b]))
		for k := 0; k < bs; k++ {
			u[b*bs+k] = rot
		}
	}
	return u
}

// reconstructVoltage picks the voltage used to turn a power measurement
// into a current: the measured phasor where available, the measured
// magnitude riding the current estimate's angle when only magnitude was
// observed, or the current estimate itself when nothing was measured.
func reconstructVoltage(vm model.VoltageMeasurement, uCurBus []complex128) []complex128 {
	if !vm.HasValue {
		return uCurBus
	}
	if vm.HasAngle {
		return vm.Value
	}
	out := make([]complex128, len(uCurBus))
	for k, u := range uCurBus {
		mag := cmplxAbsSE(u)
		if mag == 0 {
			out[k] = complex(real(vm.Value[k]), 0)
			continue
		}
		out[k] = complex(real(vm.Value[k]), 0) * u / complex(mag, 0)
	}
	return out
}

func anyAngleMeasurement(in *model.StateEstimationInput) bool {
	for _, vm := range in.VoltageMeasurement {
		if vm.HasValue && vm.HasAngle {
			return true
		}
	}
	return false
}

func rotateToSlackZeroPhase(t *model.MathModelTopology, u []complex128, bs int) {
	slack := int(t.SlackBus)
	ref := u[slack*bs]
	mag := cmplxAbsSE(ref)
	if mag == 0 {
		return
	}
	rot := complex(real(ref)/mag, -imag(ref)/mag)
	for i := range u {
		u[i] *= rot
	}
}

// addBranchMeasurement folds one measured branch side into the G block at
// all four CSR slots spanning the branch's two buses, contributing the
// y_{m,b0}ᴴ·y_{m,b1} term for b0/b1 ranging over {from,to}.
func addBranchMeasurement(g []complex128, s *ybus.Structure, bs int, f, to model.Idx, ymF, ymT []complex128, weight complex128) {
	bb := bs * bs
	type slot struct {
		row, col model.Idx
		a, b     []complex128
	}
	slots := []slot{
		{f, f, ymF, ymF},
		{f, to, ymF, ymT},
		{to, f, ymT, ymF},
		{to, to, ymT, ymT},
	}
	for _, sl := range slots {
		if sl.row == model.NotConnected || sl.col == model.NotConnected {
			continue
		}
		k := s.Find(int32(sl.row), int32(sl.col))
		if k < 0 {
			continue
		}
		contrib := scaleBlockC(matMulC(conjTransposeC(sl.a, bs), sl.b, bs), weight)
		addBlock(g[int(k)*bb:int(k)*bb+bb], contrib)
	}
}

// buildGain assembles G, Q and R per CSR slot and scatters the resulting
// [[G,Qᴴ],[Q,R]] 2bs x 2bs blocks into the LU-pattern gain array.
func buildGain(t *model.MathModelTopology, param *model.MathModelParam, s *ybus.Structure, in *model.StateEstimationInput, admittance []complex128, bs int) []complex128 {
	nnz := s.NNZ()
	bb := bs * bs
	g := make([]complex128, nnz*bb)
	q := append([]complex128(nil), admittance...)
	r := make([]complex128, nnz*bb)

	for b := 0; b < t.BusCount; b++ {
		vm := in.VoltageMeasurement[b]
		if vm.HasValue {
			slot := s.BusEntry[b]
			addBlock(g[int(slot)*bb:int(slot)*bb+bb], identityBlockC(bs, weightFromVariance(vm.Variance)))
		}
		for _, si := range t.ShuntsPerBus.Group(b) {
			if !in.ShuntConnected[si] {
				continue
			}
			pm := in.ShuntPower[si]
			if !pm.HasValue {
				continue
			}
			ys := param.ShuntParam[si]
			contrib := scaleBlockC(matMulC(conjTransposeC(ys, bs), ys, bs), weightFromVariance(pm.Variance))
			slot := s.BusEntry[b]
			addBlock(g[int(slot)*bb:int(slot)*bb+bb], contrib)
		}

		pmInj := in.BusInjectionPower[b]
		slot := s.BusEntry[b]
		if pmInj.HasValue {
			addBlock(r[int(slot)*bb:int(slot)*bb+bb], identityBlockC(bs, complex(-pmInj.Variance, 0)))
		} else {
			addBlock(r[int(slot)*bb:int(slot)*bb+bb], identityBlockC(bs, complex(-1, 0)))
		}
	}

	for bi, ends := range t.BranchBusIdx {
		f, to := ends[0], ends[1]
		bp := param.BranchParam[bi]
		if fp := in.BranchFromPower[bi]; fp.HasValue {
			addBranchMeasurement(g, s, bs, f, to, bp.Yff, bp.Yft, weightFromVariance(fp.Variance))
		}
		if tp := in.BranchToPower[bi]; tp.HasValue {
			addBranchMeasurement(g, s, bs, f, to, bp.Ytf, bp.Ytt, weightFromVariance(tp.Variance))
		}
	}

	invMap := make([]int32, nnz)
	for p, yk := range s.MapLUYBus {
		if yk >= 0 {
			invMap[yk] = int32(p)
		}
	}

	full := 2 * bs
	gain := make([]complex128, len(s.ColIndicesLU)*full*full)
	for k := 0; k < nnz; k++ {
		tk := int(s.TransposeEntry[k])
		qh := conjTransposeC(q[tk*bb:tk*bb+bb], bs)
		writeGainBlock(gain, int(invMap[k]), bs, g[k*bb:k*bb+bb], qh, q[k*bb:k*bb+bb], r[k*bb:k*bb+bb])
	}
	return gain
}

func writeGainBlock(gain []complex128, pos, bs int, g, qh, q, r []complex128) {
	full := 2 * bs
	bb := full * full
	base := pos * bb
	put := func(rowOff, colOff int, block []complex128) {
		for a := 0; a < bs; a++ {
			for b := 0; b < bs; b++ {
				gain[base+(rowOff+a)*full+(colOff+b)] = block[a*bs+b]
			}
		}
	}
	put(0, 0, g)
	put(0, bs, qh)
	put(bs, 0, q)
	put(bs, bs, r)
}

// Solve runs C10 to convergence and projects the result back onto buses,
// branches and appliances.
func Solve(t *model.MathModelTopology, param *model.MathModelParam, s *ybus.Structure, in *model.StateEstimationInput, opts model.CalculationOptions) (*model.SolverOutput, error) {
	bs := in.BlockSize
	admittance := s.BuildAdmittance(param)

	gain := buildGain(t, param, s, in, admittance, bs)
	solver := blocksolver.New(s.RowIndptrLU, s.ColIndicesLU, 2*bs)
	if err := solver.Prefactorize(gain); err != nil {
		return nil, fmt.Errorf("se: gain matrix prefactorisation: %w", err)
	}

	u := flatStartSE(t, bs)
	uNew := make([]complex128, len(u))

	for iter := 1; ; iter++ {
		uRecon := make([]complex128, t.BusCount*bs)
		for b := 0; b < t.BusCount; b++ {
			copy(uRecon[b*bs:(b+1)*bs], reconstructVoltage(in.VoltageMeasurement[b], u[b*bs:(b+1)*bs]))
		}

		eta := make([]complex128, t.BusCount*bs)
		tau := make([]complex128, t.BusCount*bs)

		for b := 0; b < t.BusCount; b++ {
			vm := in.VoltageMeasurement[b]
			if vm.HasValue {
				w := weightFromVariance(vm.Variance)
				uB := uRecon[b*bs : (b+1)*bs]
				for k := 0; k < bs; k++ {
					eta[b*bs+k] += w * uB[k]
				}
			}
			for _, si := range t.ShuntsPerBus.Group(b) {
				if !in.ShuntConnected[si] {
					continue
				}
				pm := in.ShuntPower[si]
				if !pm.HasValue {
					continue
				}
				uB := uRecon[b*bs : (b+1)*bs]
				iShunt := make([]complex128, bs)
				for k := range iShunt {
					iShunt[k] = cmplxConjC(pm.Value[k] / uB[k])
				}
				contrib := blockMulVecC(conjTransposeC(param.ShuntParam[si], bs), iShunt, bs)
				w := weightFromVariance(pm.Variance)
				for k := 0; k < bs; k++ {
					eta[b*bs+k] += w * contrib[k]
				}
			}
			if pmInj := in.BusInjectionPower[b]; pmInj.HasValue {
				uB := uRecon[b*bs : (b+1)*bs]
				for k := 0; k < bs; k++ {
					tau[b*bs+k] = cmplxConjC(pmInj.Value[k] / uB[k])
				}
			}
		}

		for bi, ends := range t.BranchBusIdx {
			f, to := ends[0], ends[1]
			bp := param.BranchParam[bi]
			if fp := in.BranchFromPower[bi]; fp.HasValue && f != model.NotConnected {
				uF := uRecon[int(f)*bs : (int(f)+1)*bs]
				iF := make([]complex128, bs)
				for k := range iF {
					iF[k] = cmplxConjC(fp.Value[k] / uF[k])
				}
				w := weightFromVariance(fp.Variance)
				contribF := blockMulVecC(conjTransposeC(bp.Yff, bs), iF, bs)
				for k := 0; k < bs; k++ {
					eta[int(f)*bs+k] += w * contribF[k]
				}
				if to != model.NotConnected {
					contribT := blockMulVecC(conjTransposeC(bp.Yft, bs), iF, bs)
					for k := 0; k < bs; k++ {
						eta[int(to)*bs+k] += w * contribT[k]
					}
				}
			}
			if tp := in.BranchToPower[bi]; tp.HasValue && to != model.NotConnected {
				uT := uRecon[int(to)*bs : (int(to)+1)*bs]
				iT := make([]complex128, bs)
				for k := range iT {
					iT[k] = cmplxConjC(tp.Value[k] / uT[k])
				}
				w := weightFromVariance(tp.Variance)
				contribT := blockMulVecC(conjTransposeC(bp.Ytt, bs), iT, bs)
				for k := 0; k < bs; k++ {
					eta[int(to)*bs+k] += w * contribT[k]
				}
				if f != model.NotConnected {
					contribF := blockMulVecC(conjTransposeC(bp.Ytf, bs), iT, bs)
					for k := 0; k < bs; k++ {
						eta[int(f)*bs+k] += w * contribF[k]
					}
				}
			}
		}

		rhs := make([]complex128, t.BusCount*2*bs)
		for b := 0; b < t.BusCount; b++ {
			for k := 0; k < bs; k++ {
				rhs[b*2*bs+k] = eta[b*bs+k]
				rhs[b*2*bs+bs+k] = tau[b*bs+k]
			}
		}
		x := make([]complex128, len(rhs))
		if err := solver.Solve(nil, rhs, x, true); err != nil {
			return nil, fmt.Errorf("se: gain matrix solve: %w", err)
		}
		for b := 0; b < t.BusCount; b++ {
			for k := 0; k < bs; k++ {
				uNew[b*bs+k] = x[b*2*bs+k]
			}
		}

		maxDev := maxAbsDiffSE(uNew, u)
		copy(u, uNew)
		if maxDev < opts.ErrTol {
			break
		}
		if iter >= opts.MaxIter {
			return nil, &model.IterationDivergeError{NIter: iter, MaxDev: maxDev, ErrTol: opts.ErrTol}
		}
	}

	if !anyAngleMeasurement(in) {
		rotateToSlackZeroPhase(t, u, bs)
	}

	return projectSE(t, param, s, in, admittance, u, bs), nil
}
