package se

import (
	"math"

	"github.com/powergridmath/gridsolve/pkg/model"
	"github.com/powergridmath/gridsolve/pkg/ybus"
)

type applianceRef struct {
	isSource bool
	idx      int32
	measured bool
	pm       model.PowerMeasurement
}

// projectSE computes branch/shunt flows and bus injection from the
// converged voltage, then splits each bus's calculated injection across
// its connected sources and load/gens.
func projectSE(t *model.MathModelTopology, param *model.MathModelParam, s *ybus.Structure, in *model.StateEstimationInput, admittance, u []complex128, bs int) *model.SolverOutput {
	out := model.NewSolverOutput(t, bs)
	copy(out.U, u)

	for bi, bf := range ybus.CalculateBranchFlow(t, param, u, bs) {
		copy(out.BranchSF[bi*bs:(bi+1)*bs], bf.Sf)
		copy(out.BranchST[bi*bs:(bi+1)*bs], bf.St)
		copy(out.BranchIF[bi*bs:(bi+1)*bs], bf.If)
		copy(out.BranchIT[bi*bs:(bi+1)*bs], bf.It)
	}
	for si, sf := range ybus.CalculateShuntFlow(t, param, s, u, bs) {
		copy(out.ShuntS[si*bs:(si+1)*bs], sf.S)
		copy(out.ShuntI[si*bs:(si+1)*bs], sf.I)
	}

	bb := bs * bs
	for b := 0; b < t.BusCount; b++ {
		for k := s.RowIndptr[b]; k < s.RowIndptr[b+1]; k++ {
			col := int(s.ColIndices[k])
			block := admittance[int(k)*bb : int(k)*bb+bb]
			contrib := blockMulVecC(block, u[col*bs:(col+1)*bs], bs)
			for a := 0; a < bs; a++ {
				out.BusInjection[b*bs+a] += contrib[a]
			}
		}
	}
	for b := 0; b < t.BusCount; b++ {
		ib := out.BusInjection[b*bs : (b+1)*bs]
		ub := u[b*bs : (b+1)*bs]
		for k := range ib {
			ib[k] = ub[k] * cmplxConjC(ib[k])
		}
	}

	for b := 0; b < t.BusCount; b++ {
		splitBusInjection(t, in, out, b, bs)
	}
	return out
}

func splitBusInjection(t *model.MathModelTopology, in *model.StateEstimationInput, out *model.SolverOutput, b, bs int) {
	var apps []applianceRef
	for _, si := range t.SourcesPerBus.Group(b) {
		if !in.SourceConnected[si] {
			continue
		}
		pm := in.SourcePower[si]
		apps = append(apps, applianceRef{true, si, pm.HasValue, pm})
	}
	for _, li := range t.LoadGensPerBus.Group(b) {
		if !in.LoadGenConnected[li] {
			continue
		}
		pm := in.LoadGenPower[li]
		apps = append(apps, applianceRef{false, li, pm.HasValue, pm})
	}
	if len(apps) == 0 {
		return
	}

	sCalc := out.BusInjection[b*bs : (b+1)*bs]
	pmInj := in.BusInjectionPower[b]
	allMeasured := pmInj.HasValue
	for _, a := range apps {
		if !a.measured {
			allMeasured = false
		}
	}

	if allMeasured {
		muDenom := pmInj.Variance
		if muDenom <= 0 {
			muDenom = 1
		}
		residual := make([]complex128, bs)
		for k := 0; k < bs; k++ {
			residual[k] = (pmInj.Value[k] - sCalc[k]) / complex(muDenom, 0)
		}
		minVar := math.Inf(1)
		for _, a := range apps {
			if a.pm.Variance > 0 && a.pm.Variance < minVar {
				minVar = a.pm.Variance
			}
		}
		if math.IsInf(minVar, 1) {
			minVar = 1
		}
		for _, a := range apps {
			ratio := complex(a.pm.Variance/minVar, 0)
			share := make([]complex128, bs)
			for k := 0; k < bs; k++ {
				share[k] = a.pm.Value[k] - ratio*residual[k]
			}
			writeApplianceShare(out, t, a, share, b, bs)
		}
		return
	}

	remainder := append([]complex128(nil), sCalc...)
	var unmeasured []applianceRef
	for _, a := range apps {
		if a.measured {
			for k := 0; k < bs; k++ {
				remainder[k] -= a.pm.Value[k]
			}
			writeApplianceShare(out, t, a, a.pm.Value, b, bs)
		} else {
			unmeasured = append(unmeasured, a)
		}
	}
	if len(unmeasured) == 0 {
		return
	}
	share := make([]complex128, bs)
	for k := 0; k < bs; k++ {
		share[k] = remainder[k] / complex(float64(len(unmeasured)), 0)
	}
	for _, a := range unmeasured {
		writeApplianceShare(out, t, a, share, b, bs)
	}
}

func writeApplianceShare(out *model.SolverOutput, t *model.MathModelTopology, a applianceRef, share []complex128, bus, bs int) {
	uBus := out.U[bus*bs : (bus+1)*bs]
	current := make([]complex128, bs)
	for k := range current {
		current[k] = cmplxConjC(share[k] / uBus[k])
	}
	if a.isSource {
		copy(out.SourceS[int(a.idx)*bs:(int(a.idx)+1)*bs], share)
		copy(out.SourceI[int(a.idx)*bs:(int(a.idx)+1)*bs], current)
		return
	}
	copy(out.LoadGenS[int(a.idx)*bs:(int(a.idx)+1)*bs], share)
	copy(out.LoadGenI[int(a.idx)*bs:(int(a.idx)+1)*bs], current)
}
