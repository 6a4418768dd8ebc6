package topology_test

import (
	"testing"

	"github.com/powergridmath/gridsolve/pkg/model"
	"github.com/powergridmath/gridsolve/pkg/topology"
	"github.com/stretchr/testify/require"
)

func TestDecomposeRadialTwoBus(t *testing.T) {
	in := topology.Input{
		NumNodes: 2,
		Branches: []topology.BranchEndpoints{
			{From: 0, To: 1, FromConnected: true, ToConnected: true, PhaseShift: 0},
		},
		Sources: []topology.SourceRef{{Node: 0, Energized: true}},
	}
	res := topology.Decompose(in)
	require.Len(t, res.Subgrids, 1)
	sg := res.Subgrids[0]
	require.Equal(t, 2, sg.BusCount)
	require.False(t, sg.HasCycle)
	require.NotEqual(t, model.NotAssignedIdx, sg.SlackBus)

	// slack (source) bus must be last in the radial reverse-DFS order
	require.EqualValues(t, sg.BusCount-1, sg.SlackBus)
	require.Equal(t, int32(0), res.NodeCoupling[0].Subgrid)
	require.Equal(t, int32(0), res.NodeCoupling[1].Subgrid)
}

func TestDecomposeIsolatedNodeUnreachable(t *testing.T) {
	in := topology.Input{
		NumNodes: 2,
		Sources:  []topology.SourceRef{{Node: 0, Energized: true}},
	}
	res := topology.Decompose(in)
	require.Len(t, res.Subgrids, 1)
	require.Equal(t, 1, res.Subgrids[0].BusCount)
	require.Equal(t, model.Unreachable, res.NodeCoupling[1])
}

func TestDecomposeTriangleDetectsCycleButSkipsReorderBelowFour(t *testing.T) {
	// triangle 0-1-2-0, source at 0
	in := topology.Input{
		NumNodes: 3,
		Branches: []topology.BranchEndpoints{
			{From: 0, To: 1, FromConnected: true, ToConnected: true},
			{From: 1, To: 2, FromConnected: true, ToConnected: true},
			{From: 2, To: 0, FromConnected: true, ToConnected: true},
		},
		Sources: []topology.SourceRef{{Node: 0, Energized: true}},
	}
	res := topology.Decompose(in)
	require.Len(t, res.Subgrids, 1)
	sg := res.Subgrids[0]
	require.Equal(t, 3, sg.BusCount)
	require.True(t, sg.HasCycle)
	// only three nodes lie on the cycle, so the reverse-discovery order is
	// kept and the source bus (discovered first) comes last
	require.EqualValues(t, sg.BusCount-1, sg.SlackBus)
	for _, p := range res.NodeCoupling {
		require.Equal(t, int32(0), p.Subgrid)
	}
}

func TestDecomposeAccumulatesPhaseShift(t *testing.T) {
	in := topology.Input{
		NumNodes: 3,
		Branches: []topology.BranchEndpoints{
			{From: 0, To: 1, FromConnected: true, ToConnected: true, PhaseShift: 0.1},
			{From: 1, To: 2, FromConnected: true, ToConnected: true, PhaseShift: 0.2},
		},
		Sources: []topology.SourceRef{{Node: 0, Energized: true}},
	}
	res := topology.Decompose(in)
	sg := res.Subgrids[0]
	pos1 := res.NodeCoupling[1].Pos
	pos2 := res.NodeCoupling[2].Pos
	require.InDelta(t, 0.1, sg.PhaseShift[pos1], 1e-12)
	require.InDelta(t, 0.3, sg.PhaseShift[pos2], 1e-12)
}

func TestDecomposeTwoSeparateSubgrids(t *testing.T) {
	in := topology.Input{
		NumNodes: 4,
		Branches: []topology.BranchEndpoints{
			{From: 0, To: 1, FromConnected: true, ToConnected: true},
			{From: 2, To: 3, FromConnected: true, ToConnected: true},
		},
		Sources: []topology.SourceRef{
			{Node: 0, Energized: true},
			{Node: 2, Energized: true},
		},
	}
	res := topology.Decompose(in)
	require.Len(t, res.Subgrids, 2)
	require.NotEqual(t, res.NodeCoupling[0].Subgrid, res.NodeCoupling[2].Subgrid)
}
