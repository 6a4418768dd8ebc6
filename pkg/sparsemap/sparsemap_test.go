package sparsemap_test

import (
	"testing"

	"github.com/powergridmath/gridsolve/pkg/sparsemap"
	"github.com/stretchr/testify/require"
)

func TestBuildGroupsStably(t *testing.T) {
	// items 0..5 tagged with parent bus (group) ids
	group := []int32{2, 0, 1, 0, 2, -1}
	m, err := sparsemap.Build(group, 3)
	require.NoError(t, err)

	require.Equal(t, []int32{0, 2, 3, 5}, m.Indptr)
	require.Equal(t, []int32{1, 3}, m.Group(0))
	require.Equal(t, []int32{2}, m.Group(1))
	require.Equal(t, []int32{0, 4}, m.Group(2))
	require.Equal(t, 2, m.Count(0))
}

func TestBuildRejectsOutOfRange(t *testing.T) {
	_, err := sparsemap.Build([]int32{5}, 3)
	require.Error(t, err)
}

func TestBuildEmpty(t *testing.T) {
	m, err := sparsemap.Build(nil, 4)
	require.NoError(t, err)
	require.Equal(t, []int32{0, 0, 0, 0, 0}, m.Indptr)
	require.Empty(t, m.Reorder)
}
