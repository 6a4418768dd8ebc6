package coupling_test

import (
	"testing"

	"github.com/powergridmath/gridsolve/pkg/coupling"
	"github.com/powergridmath/gridsolve/pkg/model"
	"github.com/powergridmath/gridsolve/pkg/topology"
	"github.com/stretchr/testify/require"
)

func TestBuildTwoBusRadialWithShuntAndSensor(t *testing.T) {
	topoIn := topology.Input{
		NumNodes: 2,
		Branches: []topology.BranchEndpoints{
			{From: 0, To: 1, FromConnected: true, ToConnected: true},
		},
		Sources: []topology.SourceRef{{Node: 0, Energized: true}},
	}
	res := topology.Decompose(topoIn)

	in := coupling.Input{
		Branches: []coupling.Branch{{From: 0, To: 1, FromConnected: true, ToConnected: true}},
		Shunts:   []coupling.Shunt{{Node: 1}},
		Sources:  []coupling.Source{{Node: 0}},
		LoadGens: []coupling.LoadGen{{Node: 1, Type: model.ConstPQ}},
		VoltageSensors: []coupling.VoltageSensor{
			{Node: 1},
		},
		PowerSensors: []coupling.PowerSensor{
			{Kind: coupling.PowerSensorShunt, ObjectIdx: 0},
		},
	}

	tops, cpl, err := coupling.Build(in, res)
	require.NoError(t, err)
	require.Len(t, tops, 1)

	t0 := tops[0]
	require.Equal(t, 1, t0.NumBranches())
	require.Equal(t, 1, t0.NumShunts())
	require.Equal(t, 1, t0.NumLoadGens())
	require.Equal(t, 1, t0.NumSources())

	require.Equal(t, int32(0), cpl.Branch[0].Subgrid)
	require.Equal(t, int32(0), cpl.Shunt[0].Subgrid)
	require.Equal(t, int32(0), cpl.Source[0].Subgrid)

	// the voltage sensor's stored position is the bus it observes, not a
	// per-sensor-class slot
	shuntBusPos := cpl.Shunt[0]
	busOfShunt := res.NodeCoupling[1]
	require.Equal(t, busOfShunt.Pos, cpl.VoltageSensor[0].Pos)
	_ = shuntBusPos

	// the power sensor's stored position is the measured shunt's position
	require.Equal(t, cpl.Shunt[0], cpl.PowerSensor[0])
	require.Equal(t, 1, t0.PowerSensorsPerShunt.Count(int(cpl.Shunt[0].Pos)))

	// ZeroInjection must be allocated, not nil, so downstream state
	// estimation aggregation can index it for every bus without panicking
	require.Len(t, t0.ZeroInjection, t0.BusCount)
}

func TestBuildBranch3ExpandsToThreeLegsInSameSubgrid(t *testing.T) {
	// three terminals (0,1,2) plus a synthesized internal node (vertex 3)
	topoIn := topology.Input{
		NumNodes: 3,
		Branch3s: []topology.Branch3Endpoints{
			{Nodes: [3]int{0, 1, 2}, Connected: [3]bool{true, true, true}},
		},
		Sources: []topology.SourceRef{{Node: 0, Energized: true}},
	}
	res := topology.Decompose(topoIn)

	in := coupling.Input{
		Branch3s: []coupling.Branch3{
			{Nodes: [3]int{0, 1, 2}, Connected: [3]bool{true, true, true}},
		},
	}
	tops, cpl, err := coupling.Build(in, res)
	require.NoError(t, err)
	require.Len(t, tops, 1)
	require.Equal(t, 3, tops[0].NumBranches())

	b3 := cpl.Branch3[0]
	require.Equal(t, int32(0), b3.Subgrid)
	require.ElementsMatch(t, []model.Idx{0, 1, 2}, b3.Pos[:])
}

func TestBuildUnreachableComponentGetsSentinelPosition(t *testing.T) {
	topoIn := topology.Input{NumNodes: 2, Sources: []topology.SourceRef{{Node: 0, Energized: true}}}
	res := topology.Decompose(topoIn)

	in := coupling.Input{Shunts: []coupling.Shunt{{Node: 1}}}
	_, cpl, err := coupling.Build(in, res)
	require.NoError(t, err)
	require.Equal(t, model.Unreachable, cpl.Shunt[0])
}
