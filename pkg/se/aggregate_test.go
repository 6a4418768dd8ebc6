package se_test

import (
	"testing"

	"github.com/powergridmath/gridsolve/pkg/model"
	"github.com/powergridmath/gridsolve/pkg/se"
	"github.com/powergridmath/gridsolve/pkg/sparsemap"
	"github.com/stretchr/testify/require"
)

// TestAggregateVoltageInverseVarianceWeighted checks that two voltage
// sensors observing the same bus merge with the noisier one pulling the
// result less.
func TestAggregateVoltageInverseVarianceWeighted(t *testing.T) {
	sensorBus, err := sparsemap.Build([]int32{0, 0}, 1)
	require.NoError(t, err)

	topo := &model.MathModelTopology{
		BusCount:             1,
		ZeroInjection:        []bool{false},
		VoltageSensorsPerBus: sensorBus,
	}

	raw := []se.RawVoltageMeasurement{
		{Value: []complex128{1.00 + 0i}, HasAngle: true, Variance: 1e-4},
		{Value: []complex128{1.10 + 0i}, HasAngle: true, Variance: 1e-2},
	}

	in := se.Aggregate(topo, 1, raw, nil, nil, nil, nil, nil, nil, nil, nil)
	require.True(t, in.VoltageMeasurement[0].HasValue)
	require.True(t, in.VoltageMeasurement[0].HasAngle)
	require.InDelta(t, 1.00099, real(in.VoltageMeasurement[0].Value[0]), 1e-3)
}

// TestAggregateVoltageMagnitudeOnlyWhenAnySensorLacksAngle checks that one
// angle-less sensor downgrades the merged measurement to magnitude-only.
func TestAggregateVoltageMagnitudeOnlyWhenAnySensorLacksAngle(t *testing.T) {
	sensorBus, err := sparsemap.Build([]int32{0, 0}, 1)
	require.NoError(t, err)
	topo := &model.MathModelTopology{BusCount: 1, ZeroInjection: []bool{false}, VoltageSensorsPerBus: sensorBus}

	raw := []se.RawVoltageMeasurement{
		{Value: []complex128{1.0 + 0i}, HasAngle: true, Variance: 1e-4},
		{Value: []complex128{1.0 + 0i}, HasAngle: false, Variance: 1e-4},
	}
	in := se.Aggregate(topo, 1, raw, nil, nil, nil, nil, nil, nil, nil, nil)
	require.False(t, in.VoltageMeasurement[0].HasAngle)
}

// TestAggregateVoltageHardConstraintIgnoresSoftSensors checks that a
// variance-0 sensor at a bus overrides every finite-variance sensor there
// and merges to a finite, non-NaN result with Variance left at 0.
func TestAggregateVoltageHardConstraintIgnoresSoftSensors(t *testing.T) {
	sensorBus, err := sparsemap.Build([]int32{0, 0}, 1)
	require.NoError(t, err)
	topo := &model.MathModelTopology{BusCount: 1, ZeroInjection: []bool{false}, VoltageSensorsPerBus: sensorBus}

	raw := []se.RawVoltageMeasurement{
		{Value: []complex128{1.00 + 0i}, HasAngle: true, Variance: 1e-4},
		{Value: []complex128{1.02 + 0i}, HasAngle: true, Variance: 0},
	}
	in := se.Aggregate(topo, 1, raw, nil, nil, nil, nil, nil, nil, nil, nil)
	require.True(t, in.VoltageMeasurement[0].HasValue)
	require.Equal(t, 0.0, in.VoltageMeasurement[0].Variance)
	require.InDelta(t, 1.02, real(in.VoltageMeasurement[0].Value[0]), 1e-12)
}

// TestAggregateBusInjectionRequiresAllConnectedAppliancesMeasured checks
// that a partially-measured bus does not get an aggregated injection
// measurement unless flagged zero-injection.
func TestAggregateBusInjectionRequiresAllConnectedAppliancesMeasured(t *testing.T) {
	loadMap, err := sparsemap.Build([]int32{0, 0}, 1)
	require.NoError(t, err)
	topo := &model.MathModelTopology{
		BusCount:       1,
		ZeroInjection:  []bool{false},
		LoadGensPerBus: loadMap,
		LoadGenType:    []model.LoadGenType{model.ConstPQ, model.ConstPQ},
	}

	// No PowerSensorsPerLoadGen grouping is set, so neither load-gen
	// receives a merged measurement, and bus-injection aggregation must
	// not synthesize one either.
	in := se.Aggregate(topo, 1, nil, nil, nil, nil, nil, nil, nil, nil, nil)
	require.False(t, in.LoadGenPower[0].HasValue)
	require.False(t, in.BusInjectionPower[0].HasValue)
}

// TestNormalizeVariancesScalesBySmallestPositive checks the normalisation
// pass divides every variance by the minimum positive one present.
func TestNormalizeVariancesScalesBySmallestPositive(t *testing.T) {
	in := &model.StateEstimationInput{
		VoltageMeasurement: []model.VoltageMeasurement{
			{HasValue: true, Variance: 2e-4},
			{HasValue: true, Variance: 4e-4},
		},
	}
	se.NormalizeVariances(in)
	require.InDelta(t, 1.0, in.VoltageMeasurement[0].Variance, 1e-12)
	require.InDelta(t, 2.0, in.VoltageMeasurement[1].Variance, 1e-12)
}
