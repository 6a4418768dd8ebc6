package ybus_test

import (
	"testing"

	"github.com/powergridmath/gridsolve/pkg/model"
	"github.com/powergridmath/gridsolve/pkg/sparsemap"
	"github.com/powergridmath/gridsolve/pkg/ybus"
	"github.com/stretchr/testify/require"
)

// twoBusRadial builds a single-phase two-bus topology: bus 0 is slack, bus 1
// carries a shunt load, one branch joins them.
func twoBusRadial(t *testing.T) (*model.MathModelTopology, *model.MathModelParam) {
	t.Helper()
	shuntMap, err := sparsemap.Build([]int32{1}, 2)
	require.NoError(t, err)

	topo := &model.MathModelTopology{
		BusCount:     2,
		PhaseShift:   []float64{0, 0},
		SlackBus:     0,
		BranchBusIdx: [][2]model.Idx{{0, 1}},
		ShuntsPerBus: shuntMap,
	}

	branchY := model.BranchParam{
		Yff: []complex128{10 - 20i},
		Yft: []complex128{-10 + 20i},
		Ytf: []complex128{-10 + 20i},
		Ytt: []complex128{10 - 20i},
	}
	param := &model.MathModelParam{
		BlockSize:   1,
		BranchParam: []model.BranchParam{branchY},
		ShuntParam:  [][]complex128{{0.5 + 0.2i}},
	}
	return topo, param
}

func TestBuildStructureTwoBus(t *testing.T) {
	topo, _ := twoBusRadial(t)
	s, err := ybus.Build(topo, 1)
	require.NoError(t, err)

	require.Equal(t, 2, s.BusCount)
	require.Equal(t, 4, s.NNZ()) // (0,0) (0,1) (1,0) (1,1)
	for i, j := range s.BusEntry {
		require.Equal(t, int32(i), s.ColIndices[j])
	}

	for k := range s.ColIndices {
		tk := s.TransposeEntry[k]
		row := -1
		for r := 0; r < s.BusCount; r++ {
			if k >= int(s.RowIndptr[r]) && k < int(s.RowIndptr[r+1]) {
				row = r
			}
		}
		require.Equal(t, int32(row), s.ColIndices[tk])
	}
}

func TestBuildAdmittanceSumsContributions(t *testing.T) {
	topo, param := twoBusRadial(t)
	s, err := ybus.Build(topo, 1)
	require.NoError(t, err)

	adm := s.BuildAdmittance(param)

	// bus 1's diagonal must fold in both the branch Ytt and the shunt.
	diagSlot := s.BusEntry[1]
	want := param.BranchParam[0].Ytt[0] + param.ShuntParam[0][0]
	require.InDelta(t, real(want), real(adm[diagSlot]), 1e-9)
	require.InDelta(t, imag(want), imag(adm[diagSlot]), 1e-9)
}

func TestUpdateAdmittanceOnlyTouchesChangedSlots(t *testing.T) {
	topo, param := twoBusRadial(t)
	s, err := ybus.Build(topo, 1)
	require.NoError(t, err)

	adm := s.BuildAdmittance(param)
	before := append([]complex128(nil), adm...)

	param.ShuntParam[0][0] = 1.5 + 0.1i
	s.UpdateAdmittance(adm, param, nil, []int32{0})

	diagSlot := s.BusEntry[1]
	other := s.BusEntry[0]
	require.NotEqual(t, before[diagSlot], adm[diagSlot])
	require.Equal(t, before[other], adm[other])
}

func TestCalculateBranchFlowConservesCurrentAtEachEnd(t *testing.T) {
	topo, param := twoBusRadial(t)
	u := []complex128{1 + 0i, 0.95 - 0.02i}

	flows := ybus.CalculateBranchFlow(topo, param, u, 1)
	require.Len(t, flows, 1)
	f := flows[0]

	// series branch with no shunt leg: i_f == -i_t for this symmetric pi.
	require.InDelta(t, real(f.If[0]), -real(f.It[0]), 1e-9)
	require.InDelta(t, imag(f.If[0]), -imag(f.It[0]), 1e-9)
}

func TestCalculateShuntFlowSignConvention(t *testing.T) {
	topo, param := twoBusRadial(t)
	s, err := ybus.Build(topo, 1)
	require.NoError(t, err)

	u := []complex128{1 + 0i, 1 + 0i}
	flows := ybus.CalculateShuntFlow(topo, param, s, u, 1)
	require.Len(t, flows, 1)

	// y_shunt has positive real part (a draw), so injection current is
	// negative real at unit voltage.
	require.Less(t, real(flows[0].I[0]), 0.0)
}

func TestBuildIsolatedBusGetsArtificialDiagonal(t *testing.T) {
	topo := &model.MathModelTopology{
		BusCount:     2,
		BranchBusIdx: [][2]model.Idx{{0, model.NotConnected}},
	}
	s, err := ybus.Build(topo, 1)
	require.NoError(t, err)
	require.Equal(t, int32(1), s.RowIndptr[2]-s.RowIndptr[1])
	require.Equal(t, int32(1), s.ColIndices[s.BusEntry[1]])
}
