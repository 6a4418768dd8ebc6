package dataset_test

import (
	"testing"

	"github.com/powergridmath/gridsolve/pkg/dataset"
	"github.com/powergridmath/gridsolve/pkg/model"
	"github.com/stretchr/testify/require"
)

func TestSingleBufferReturnsAllValues(t *testing.T) {
	b := dataset.NewSingle([]float64{1, 2, 3})
	vals, err := b.Scenario(0)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2, 3}, vals)

	_, err = b.Scenario(1)
	require.Error(t, err)
}

func TestHomogeneousBatchSplitsEvenly(t *testing.T) {
	b := dataset.NewBatchHomogeneous([]float64{1, 2, 3, 4, 5, 6}, 3)
	vals, err := b.Scenario(1)
	require.NoError(t, err)
	require.Equal(t, []float64{3, 4}, vals)
}

func TestRaggedBatchHonorsIndptr(t *testing.T) {
	b := dataset.NewBatchRagged([]float64{1, 2, 3, 4, 5}, []int32{0, 2, 2, 5}, 3)
	vals, err := b.Scenario(0)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2}, vals)

	vals, err = b.Scenario(1)
	require.NoError(t, err)
	require.Empty(t, vals)

	vals, err = b.Scenario(2)
	require.NoError(t, err)
	require.Equal(t, []float64{3, 4, 5}, vals)
}

func TestRaggedBatchRejectsOutOfBoundsIndptr(t *testing.T) {
	b := dataset.NewBatchRagged([]float64{1, 2}, []int32{0, 5}, 1)
	_, err := b.Scenario(0)
	require.Error(t, err)
}

func TestSentinels(t *testing.T) {
	require.True(t, dataset.IsUnchanged(model.NaNSentinel))
	require.False(t, dataset.IsUnchanged(1.5))
	require.True(t, dataset.IsIntUnchanged(model.IntSentinel))
	require.False(t, dataset.IsIntUnchanged(5))
}
