// Package pf implements the three power-flow solvers C7-C9: a one-shot
// linear solve treating loads as constant impedance, a fixed-point
// iteration on injected current, and a polar-coordinate Newton-Raphson
// solve. All three consume a subgrid's Y-bus structure/values and produce
// a SolverOutput via the branch/shunt flow calculations of pkg/ybus.
package pf

import (
	"math"

	"github.com/powergridmath/gridsolve/pkg/model"
	"github.com/powergridmath/gridsolve/pkg/ybus"
)

func blockAddAt(admittance []complex128, busEntry []int32, bus int, blockSize int, contribution []complex128) {
	bb := blockSize * blockSize
	slot := int(busEntry[bus])
	dst := admittance[slot*bb : (slot+1)*bb]
	for i := range dst {
		dst[i] += contribution[i]
	}
}

func vecAddAt(dst []complex128, bus, blockSize int, v []complex128) {
	base := bus * blockSize
	for i := 0; i < blockSize; i++ {
		dst[base+i] += v[i]
	}
}

func blockMulVec(a, v []complex128, bs int) []complex128 {
	out := make([]complex128, bs)
	for i := 0; i < bs; i++ {
		var acc complex128
		for k := 0; k < bs; k++ {
			acc += a[i*bs+k] * v[k]
		}
		out[i] = acc
	}
	return out
}

// constYLoad converts a constant-power load/gen specification into the
// constant-admittance model C7 requires: y = -conj(s)/|u|^2 evaluated at
// unit voltage, i.e. y_load = -conj(s_spec) under the flat-start
// assumption (voltages are not yet known for a one-shot linear solve).
func constYLoad(sSpec []complex128) []complex128 {
	y := make([]complex128, len(sSpec))
	for i, s := range sSpec {
		y[i] = complex(-real(s), imag(s))
	}
	return y
}

// maxAbsDiff returns max_i |a[i]-b[i]|, the shared convergence metric for
// every fixed-point / Newton iteration.
func maxAbsDiff(a, b []complex128) float64 {
	m := 0.0
	for i := range a {
		d := cmplxAbs(a[i] - b[i])
		if d > m {
			m = d
		}
	}
	return m
}

func cmplxAbs(c complex128) float64 { return math.Hypot(real(c), imag(c)) }

// flatStart builds the initial bus-voltage guess: the average source
// reference, rotated per-bus by the subgrid's accumulated intrinsic phase
// shift (used by C8 and C9; shared since both state their initial guess
// identically modulo which "average" they start from).
func flatStart(t *model.MathModelTopology, uRefAvg []complex128, blockSize int) []complex128 {
	u := make([]complex128, t.BusCount*blockSize)
	for b := 0; b < t.BusCount; b++ {
		rot := complex(math.Cos(t.PhaseShift[b]), math.Sin(t.PhaseShift[b]))
		for k := 0; k < blockSize; k++ {
			u[b*blockSize+k] = uRefAvg[k] * rot
		}
	}
	return u
}

func averageURef(in *model.PowerFlowInput, numSources int) []complex128 {
	bs := in.BlockSize
	avg := make([]complex128, bs)
	if numSources == 0 {
		return avg
	}
	for s := 0; s < numSources; s++ {
		for k := 0; k < bs; k++ {
			avg[k] += in.URef[s*bs+k]
		}
	}
	for k := range avg {
		avg[k] /= complex(float64(numSources), 0)
	}
	return avg
}

// projectOutput runs C4's derived-quantity calculations and the bus
// injection sum to populate a SolverOutput from converged voltages u.
func projectOutput(t *model.MathModelTopology, param *model.MathModelParam, s *ybus.Structure, admittance []complex128, u []complex128, blockSize int) *model.SolverOutput {
	out := model.NewSolverOutput(t, blockSize)
	copy(out.U, u)

	for bi, bf := range ybus.CalculateBranchFlow(t, param, u, blockSize) {
		copy(out.BranchSF[bi*blockSize:(bi+1)*blockSize], bf.Sf)
		copy(out.BranchST[bi*blockSize:(bi+1)*blockSize], bf.St)
		copy(out.BranchIF[bi*blockSize:(bi+1)*blockSize], bf.If)
		copy(out.BranchIT[bi*blockSize:(bi+1)*blockSize], bf.It)
	}
	for si, sf := range ybus.CalculateShuntFlow(t, param, s, u, blockSize) {
		copy(out.ShuntS[si*blockSize:(si+1)*blockSize], sf.S)
		copy(out.ShuntI[si*blockSize:(si+1)*blockSize], sf.I)
	}

	bb := blockSize * blockSize
	for b := 0; b < t.BusCount; b++ {
		for k := s.RowIndptr[b]; k < s.RowIndptr[b+1]; k++ {
			col := int(s.ColIndices[k])
			block := admittance[int(k)*bb : int(k)*bb+bb]
			contrib := blockMulVec(block, u[col*blockSize:(col+1)*blockSize], blockSize)
			vecAddAt(out.BusInjection, b, blockSize, contrib)
		}
	}
	for b := 0; b < t.BusCount; b++ {
		ib := out.BusInjection[b*blockSize : (b+1)*blockSize]
		ub := u[b*blockSize : (b+1)*blockSize]
		for k := range ib {
			ib[k] = ub[k] * cmplxConj(ib[k])
		}
	}
	return out
}

func cmplxConj(c complex128) complex128 { return complex(real(c), -imag(c)) }
