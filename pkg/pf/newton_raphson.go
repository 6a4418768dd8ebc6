package pf

import (
	"fmt"
	"math"

	"github.com/powergridmath/gridsolve/pkg/blocksolver"
	"github.com/powergridmath/gridsolve/pkg/model"
	"github.com/powergridmath/gridsolve/pkg/ybus"
)

func matMul(a, b []float64, bs int) []float64 {
	out := make([]float64, bs*bs)
	for i := 0; i < bs; i++ {
		for j := 0; j < bs; j++ {
			var acc float64
			for k := 0; k < bs; k++ {
				acc += a[i*bs+k] * b[k*bs+j]
			}
			out[i*bs+j] = acc
		}
	}
	return out
}

func matSub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func matAdd(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func matNeg(a []float64) []float64 {
	out := make([]float64, len(a))
	for i, v := range a {
		out[i] = -v
	}
	return out
}

// outerCS returns c = Re(ui)Re(uj)^T + Im(ui)Im(uj)^T and
// s = Im(ui)Re(uj)^T - Re(ui)Im(uj)^T, bs x bs row-major.
func outerCS(ui, uj []complex128, bs int) (c, s []float64) {
	c = make([]float64, bs*bs)
	s = make([]float64, bs*bs)
	for a := 0; a < bs; a++ {
		for b := 0; b < bs; b++ {
			c[a*bs+b] = real(ui[a])*real(uj[b]) + imag(ui[a])*imag(uj[b])
			s[a*bs+b] = imag(ui[a])*real(uj[b]) - real(ui[a])*imag(uj[b])
		}
	}
	return
}

func reMatOf(y []complex128) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = real(v)
	}
	return out
}

func imMatOf(y []complex128) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = imag(v)
	}
	return out
}

func sumRows(m []float64, bs int) []float64 {
	out := make([]float64, bs)
	for a := 0; a < bs; a++ {
		var acc float64
		for b := 0; b < bs; b++ {
			acc += m[a*bs+b]
		}
		out[a] = acc
	}
	return out
}

func addDiag(m []float64, bs int, v []float64) {
	for a := 0; a < bs; a++ {
		m[a*bs+a] += v[a]
	}
}

func subDiag(m []float64, bs int, v []float64) {
	for a := 0; a < bs; a++ {
		m[a*bs+a] -= v[a]
	}
}

// SolveNewtonRaphson runs C9: polar-coordinate Newton-Raphson with a
// block Jacobian sharing the Y-bus sparsity pattern (2x2 blocks for
// symmetric subgrids, 6x6 for asymmetric).
func SolveNewtonRaphson(t *model.MathModelTopology, param *model.MathModelParam, s *ybus.Structure, in *model.PowerFlowInput, opts model.CalculationOptions) (*model.SolverOutput, error) {
	bs := in.BlockSize
	admittance := s.BuildAdmittance(param)

	invMap := make([]int32, s.NNZ())
	for p, yk := range s.MapLUYBus {
		if yk >= 0 {
			invMap[yk] = int32(p)
		}
	}

	jSolver := blocksolver.New(s.RowIndptrLU, s.ColIndicesLU, 2*bs)

	uRefAvg := averageURef(in, t.NumSources())
	uStart := flatStart(t, uRefAvg, bs)
	theta := make([]float64, t.BusCount*bs)
	v := make([]float64, t.BusCount*bs)
	for i, u := range uStart {
		theta[i] = math.Atan2(imag(u), real(u))
		v[i] = cmplxAbs(u)
	}

	u := make([]complex128, t.BusCount*bs)
	reconstructU := func() {
		for b := 0; b < t.BusCount; b++ {
			for k := 0; k < bs; k++ {
				idx := b*bs + k
				u[idx] = complex(v[idx]*math.Cos(theta[idx]), v[idx]*math.Sin(theta[idx]))
			}
		}
	}
	reconstructU()

	bb := 2 * bs * 2 * bs
	for iter := 1; ; iter++ {
		jac := make([]complex128, len(s.ColIndicesLU)*bb)
		dpq := make([]complex128, t.BusCount*bs)

		for b := 0; b < t.BusCount; b++ {
			negPcal := make([]float64, bs)
			negQcal := make([]float64, bs)

			diagH := make([]float64, bs*bs)
			diagN := make([]float64, bs*bs)

			for k := s.RowIndptr[b]; k < s.RowIndptr[b+1]; k++ {
				j := int(s.ColIndices[k])
				y := admittance[int(k)*bs*bs : int(k)*bs*bs+bs*bs]
				c, sMat := outerCS(u[b*bs:(b+1)*bs], u[j*bs:(j+1)*bs], bs)
				g, bMat := reMatOf(y), imMatOf(y)
				h := matSub(matMul(g, sMat, bs), matMul(bMat, c, bs))
				n := matAdd(matMul(g, c, bs), matMul(bMat, sMat, bs))

				rowH, rowN := sumRows(h, bs), sumRows(n, bs)
				for a := range negPcal {
					negPcal[a] += rowN[a]
					negQcal[a] += rowH[a]
				}

				if j == b {
					diagH = matAdd(diagH, h)
					diagN = matAdd(diagN, n)
					continue
				}
				writeOffDiagBlock(jac, int(invMap[k]), bs, h, n)
			}

			for _, si := range t.SourcesPerBus.Group(b) {
				y := param.SourceParam[si].Y1
				c, sMat := outerCS(u[b*bs:(b+1)*bs], uRefAvg, bs)
				g, bMat := reMatOf(y), imMatOf(y)
				h := matSub(matMul(g, sMat, bs), matMul(bMat, c, bs))
				n := matAdd(matMul(g, c, bs), matMul(bMat, sMat, bs))

				rowH, rowN := sumRows(h, bs), sumRows(n, bs)
				for a := range negPcal {
					negPcal[a] += rowN[a]
					negQcal[a] += rowH[a]
				}
				diagH = matAdd(diagH, h)
				diagN = matAdd(diagN, n)
			}

			for _, lg := range t.LoadGensPerBus.Group(b) {
				sSpec := in.SSpecified[int(lg)*bs : (int(lg)+1)*bs]
				vBus := v[b*bs : (b+1)*bs]
				for a, sp := range sSpec {
					switch t.LoadGenType[lg] {
					case model.ConstPQ:
						dpq[b*bs+a] += sp
					case model.ConstY:
						dpq[b*bs+a] += sp * complex(vBus[a]*vBus[a], 0)
						diagN[a*bs+a] -= real(sp) * 2 * vBus[a] * vBus[a]
						diagH[a*bs+a] -= imag(sp) * 2 * vBus[a] * vBus[a]
					case model.ConstI:
						dpq[b*bs+a] += sp * complex(vBus[a], 0)
						diagN[a*bs+a] -= real(sp) * vBus[a]
						diagH[a*bs+a] -= imag(sp) * vBus[a]
					}
				}
			}

			// M starts as -N (pre-correction), L as H (pre-correction);
			// H += -Q_cal_i, N -= -P_cal_i, M -= -P_cal_i, L -= -Q_cal_i.
			mBlock := matSub(matNeg(diagN), diagMat(negPcal, bs))
			lBlock := matSub(diagH, diagMat(negQcal, bs))
			diagH = matAdd(diagH, diagMat(negQcal, bs))
			diagN = matSub(diagN, diagMat(negPcal, bs))

			diagK := s.BusEntry[b]
			writeDiagBlock(jac, int(invMap[diagK]), bs, diagH, diagN, mBlock, lBlock)

			for a := range negPcal {
				dpq[b*bs+a] += complex(negPcal[a], negQcal[a])
			}
		}

		dx := make([]complex128, t.BusCount*2*bs)
		rhs := make([]complex128, t.BusCount*2*bs)
		for b := 0; b < t.BusCount; b++ {
			for a := 0; a < bs; a++ {
				rhs[b*2*bs+a] = complex(real(dpq[b*bs+a]), 0)
				rhs[b*2*bs+bs+a] = complex(imag(dpq[b*bs+a]), 0)
			}
		}
		if err := jSolver.Solve(jac, rhs, dx, false); err != nil {
			return nil, fmt.Errorf("pf: newton-raphson jacobian solve: %w", err)
		}

		uOld := append([]complex128(nil), u...)
		for b := 0; b < t.BusCount; b++ {
			for a := 0; a < bs; a++ {
				idx := b*bs + a
				theta[idx] += real(dx[b*2*bs+a])
				v[idx] += v[idx] * real(dx[b*2*bs+bs+a])
			}
		}
		reconstructU()

		maxDev := maxAbsDiff(u, uOld)
		if maxDev < opts.ErrTol {
			break
		}
		if iter >= opts.MaxIter {
			return nil, &model.IterationDivergeError{NIter: iter, MaxDev: maxDev, ErrTol: opts.ErrTol}
		}
	}

	return projectOutput(t, param, s, admittance, u, bs), nil
}

func diagMat(v []float64, bs int) []float64 {
	out := make([]float64, bs*bs)
	for a := 0; a < bs; a++ {
		out[a*bs+a] = v[a]
	}
	return out
}

// writeOffDiagBlock assembles [[H,N],[-N,H]] into the 2bs x 2bs Jacobian
// block at LU position pos.
func writeOffDiagBlock(jac []complex128, pos, bs int, h, n []float64) {
	writeDiagBlock(jac, pos, bs, h, n, matNeg(n), h)
}

func writeDiagBlock(jac []complex128, pos, bs int, h, n, m, l []float64) {
	full := 2 * bs
	bb := full * full
	base := pos * bb
	put := func(rowOff, colOff int, block []float64) {
		for a := 0; a < bs; a++ {
			for b := 0; b < bs; b++ {
				jac[base+(rowOff+a)*full+(colOff+b)] = complex(block[a*bs+b], 0)
			}
		}
	}
	put(0, 0, h)
	put(0, bs, n)
	put(bs, 0, m)
	put(bs, bs, l)
}
