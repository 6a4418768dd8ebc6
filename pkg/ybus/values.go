package ybus

import "github.com/powergridmath/gridsolve/pkg/model"

func blockAdd(dst, src []complex128) {
	for i := range dst {
		dst[i] += src[i]
	}
}

func (s *Structure) contribution(e Element, param *model.MathModelParam) []complex128 {
	switch e.Type {
	case ElemBranchFF:
		return param.BranchParam[e.Idx].Yff
	case ElemBranchFT:
		return param.BranchParam[e.Idx].Yft
	case ElemBranchTF:
		return param.BranchParam[e.Idx].Ytf
	case ElemBranchTT:
		return param.BranchParam[e.Idx].Ytt
	case ElemShunt:
		if e.Idx < 0 {
			return nil // artificial diagonal for an isolated leaf bus
		}
		return param.ShuntParam[e.Idx]
	default:
		return nil
	}
}

// BuildAdmittance computes admittance[k] = sum of contributions mapped to
// CSR slot k.
func (s *Structure) BuildAdmittance(param *model.MathModelParam) []complex128 {
	bb := s.BlockSize * s.BlockSize
	admittance := make([]complex128, s.NNZ()*bb)
	for k := 0; k < s.NNZ(); k++ {
		for ei := s.ElementIndptr[k]; ei < s.ElementIndptr[k+1]; ei++ {
			c := s.contribution(s.Elements[ei], param)
			if c == nil {
				continue
			}
			blockAdd(admittance[k*bb:(k+1)*bb], c)
		}
	}
	return admittance
}

// UpdateAdmittance recomputes only the CSR slots whose element list
// intersects changedBranches or changedShunts. The caller must invalidate
// any solver's cached prefactorisation afterwards.
func (s *Structure) UpdateAdmittance(admittance []complex128, param *model.MathModelParam, changedBranches, changedShunts []int32) {
	branchSet := toSet(changedBranches)
	shuntSet := toSet(changedShunts)
	bb := s.BlockSize * s.BlockSize

	for k := 0; k < s.NNZ(); k++ {
		touched := false
		for ei := s.ElementIndptr[k]; ei < s.ElementIndptr[k+1]; ei++ {
			e := s.Elements[ei]
			switch e.Type {
			case ElemBranchFF, ElemBranchFT, ElemBranchTF, ElemBranchTT:
				if branchSet[e.Idx] {
					touched = true
				}
			case ElemShunt:
				if e.Idx >= 0 && shuntSet[e.Idx] {
					touched = true
				}
			}
		}
		if !touched {
			continue
		}
		block := admittance[k*bb : (k+1)*bb]
		for i := range block {
			block[i] = 0
		}
		for ei := s.ElementIndptr[k]; ei < s.ElementIndptr[k+1]; ei++ {
			c := s.contribution(s.Elements[ei], param)
			if c == nil {
				continue
			}
			blockAdd(block, c)
		}
	}
}

func toSet(xs []int32) map[int32]bool {
	m := make(map[int32]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

// BranchFlow is the result of CalculateBranchFlow for one branch: flat
// phasors of length BlockSize.
type BranchFlow struct {
	Sf, St, If, It []complex128
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

func conjVec(v []complex128) []complex128 {
	out := make([]complex128, len(v))
	for i, c := range v {
		out[i] = complex(real(c), -imag(c))
	}
	return out
}

func mulElemwise(u, iConj []complex128) []complex128 {
	out := make([]complex128, len(u))
	for i := range u {
		out[i] = u[i] * iConj[i]
	}
	return out
}

// CalculateBranchFlow computes per-branch (s_f, s_t, i_f, i_t) from
// converged bus voltages u. Disconnected sides are treated as zero voltage.
func CalculateBranchFlow(t *model.MathModelTopology, param *model.MathModelParam, u []complex128, blockSize int) []BranchFlow {
	bs := blockSize
	out := make([]BranchFlow, len(t.BranchBusIdx))
	zero := make([]complex128, bs)

	busVoltage := func(idx model.Idx) []complex128 {
		if idx == model.NotConnected {
			return zero
		}
		return u[int(idx)*bs : int(idx+1)*bs]
	}

	for bi, bus := range t.BranchBusIdx {
		uf := busVoltage(bus[0])
		ut := busVoltage(bus[1])
		bp := param.BranchParam[bi]

		iF := addVec(blockMulVec(bp.Yff, uf, bs), blockMulVec(bp.Yft, ut, bs))
		iT := addVec(blockMulVec(bp.Ytf, uf, bs), blockMulVec(bp.Ytt, ut, bs))
		sF := mulElemwise(uf, conjVec(iF))
		sT := mulElemwise(ut, conjVec(iT))

		out[bi] = BranchFlow{Sf: sF, St: sT, If: iF, It: iT}
	}
	return out
}

func addVec(a, b []complex128) []complex128 {
	out := make([]complex128, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// ShuntFlow is one shunt's (s, i) in the "appliance -> node" injection
// convention, so the injection is negative for a positive-real y_shunt and
// non-zero bus voltage.
type ShuntFlow struct {
	S, I []complex128
}

// CalculateShuntFlow computes every shunt's (s, i) from converged voltages.
func CalculateShuntFlow(t *model.MathModelTopology, param *model.MathModelParam, s *Structure, u []complex128, blockSize int) []ShuntFlow {
	bs := blockSize
	out := make([]ShuntFlow, t.NumShunts())
	for si := range out {
		bus := s.ShuntBus[si]
		ub := u[int(bus)*bs : int(bus+1)*bs]
		negY := negateBlock(param.ShuntParam[si])
		i := blockMulVec(negY, ub, bs)
		sh := mulElemwise(ub, conjVec(i))
		out[si] = ShuntFlow{S: sh, I: i}
	}
	return out
}

func negateBlock(b []complex128) []complex128 {
	out := make([]complex128, len(b))
	for i, c := range b {
		out[i] = -c
	}
	return out
}
