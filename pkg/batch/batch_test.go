package batch_test

import (
	"testing"

	"github.com/powergridmath/gridsolve/pkg/batch"
	"github.com/powergridmath/gridsolve/pkg/model"
	"github.com/powergridmath/gridsolve/pkg/sparsemap"
	"github.com/powergridmath/gridsolve/pkg/ybus"
	"github.com/stretchr/testify/require"
)

func TestThreadCountRules(t *testing.T) {
	require.Equal(t, 1, batch.ThreadCount(-1, 10))
	require.Equal(t, 1, batch.ThreadCount(1, 10))
	require.Equal(t, 4, batch.ThreadCount(4, 10))
	require.Equal(t, 3, batch.ThreadCount(8, 3))
	require.GreaterOrEqual(t, batch.ThreadCount(0, 10), 1)
}

func TestDetectIndependence(t *testing.T) {
	require.True(t, batch.DetectIndependence([][]model.ID{{1, 2}, {1, 2}, {1, 2}}))
	require.False(t, batch.DetectIndependence([][]model.ID{{1, 2}, {2, 1}}))
	require.False(t, batch.DetectIndependence([][]model.ID{{1, 2}, {1}}))
}

func TestDetectTopologyCacheable(t *testing.T) {
	require.True(t, batch.DetectTopologyCacheable([]bool{false, false, false}))
	require.False(t, batch.DetectTopologyCacheable([]bool{false, true, false}))
}

func buildSingleSourceTopo() (*model.MathModelTopology, *model.MathModelParam) {
	sourceMap, _ := sparsemap.Build([]int32{0}, 1)
	topo := &model.MathModelTopology{
		BusCount:      1,
		PhaseShift:    []float64{0},
		SlackBus:      0,
		SourcesPerBus: sourceMap,
	}
	param := &model.MathModelParam{
		BlockSize:   1,
		SourceParam: []model.SourceParam{{Y1: []complex128{1000}}},
	}
	return topo, param
}

func TestDispatcherRunsAllScenariosSuccessfully(t *testing.T) {
	topo, param := buildSingleSourceTopo()
	s, err := ybus.Build(topo, 1)
	require.NoError(t, err)

	scenarios := []batch.ScenarioInput{
		{URef: []complex128{1.00 + 0i}},
		{URef: []complex128{1.01 + 0i}},
		{URef: []complex128{1.02 + 0i}},
	}
	w, err := batch.NewLinearWorker(topo, param, s, scenarios)
	require.NoError(t, err)

	d := &batch.Dispatcher{Base: w, NScenarios: len(scenarios), Independent: true, Threading: 0}
	results := make([]*model.SolverOutput, len(scenarios))
	require.NoError(t, d.Run(results))

	for i, r := range results {
		require.NotNil(t, r)
		require.InDelta(t, real(scenarios[i].URef[0]), real(r.U[0]), 1e-6)
	}
}

func TestDispatcherSequentialWhenThreadingIsOne(t *testing.T) {
	topo, param := buildSingleSourceTopo()
	s, err := ybus.Build(topo, 1)
	require.NoError(t, err)

	scenarios := []batch.ScenarioInput{{URef: []complex128{1 + 0i}}, {URef: []complex128{0.98 + 0i}}}
	w, err := batch.NewLinearWorker(topo, param, s, scenarios)
	require.NoError(t, err)

	d := &batch.Dispatcher{Base: w, NScenarios: len(scenarios), Independent: true, Threading: 1}
	results := make([]*model.SolverOutput, len(scenarios))
	require.NoError(t, d.Run(results))
	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
}
