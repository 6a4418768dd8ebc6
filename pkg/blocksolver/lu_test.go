package blocksolver_test

import (
	"math/cmplx"
	"testing"

	"github.com/powergridmath/gridsolve/pkg/blocksolver"
	"github.com/stretchr/testify/require"
)

// A 3x3 scalar (block size 1) tridiagonal system, diagonally dominant so no
// pivoting surprises arise.
func TestBlockLUSolverScalarTridiagonal(t *testing.T) {
	rowIndptr := []int32{0, 2, 5, 7}
	colIndices := []int32{0, 1, 0, 1, 2, 1, 2}
	values := []complex128{
		4, -1,
		-1, 4, -1,
		-1, 4,
	}
	solver := blocksolver.New(rowIndptr, colIndices, 1)
	require.NoError(t, solver.Prefactorize(values))

	b := []complex128{1, 2, 3}
	x := make([]complex128, 3)
	require.NoError(t, solver.Solve(values, b, x, true))

	// Verify A x == b by hand-expanding the tridiagonal pattern.
	residual := []complex128{
		4*x[0] - x[1] - b[0],
		-x[0] + 4*x[1] - x[2] - b[1],
		-x[1] + 4*x[2] - b[2],
	}
	for _, r := range residual {
		require.Less(t, cmplx.Abs(r), 1e-9)
	}
}

func TestBlockLUSolverSingular(t *testing.T) {
	rowIndptr := []int32{0, 1, 2}
	colIndices := []int32{0, 1}
	values := []complex128{0, 0}
	solver := blocksolver.New(rowIndptr, colIndices, 1)
	err := solver.Prefactorize(values)
	require.Error(t, err)
	var singular *blocksolver.SingularMatrixError
	require.ErrorAs(t, err, &singular)
}

// A 2-block system with 3x3 blocks, diagonal-only off-block coupling for
// simplicity, checked by direct residual.
func TestBlockLUSolverAsymmetricBlocks(t *testing.T) {
	rowIndptr := []int32{0, 2, 4}
	colIndices := []int32{0, 1, 0, 1}

	diag := func(v complex128) []complex128 {
		return []complex128{v, 0, 0, 0, v, 0, 0, 0, v}
	}
	off := func(v complex128) []complex128 {
		return []complex128{v, 0, 0, 0, v, 0, 0, 0, v}
	}

	var values []complex128
	values = append(values, diag(5)...)
	values = append(values, off(-1)...)
	values = append(values, off(-1)...)
	values = append(values, diag(5)...)

	solver := blocksolver.New(rowIndptr, colIndices, 3)
	require.NoError(t, solver.Prefactorize(values))

	b := make([]complex128, 6)
	for i := range b {
		b[i] = complex(float64(i+1), 0)
	}
	x := make([]complex128, 6)
	require.NoError(t, solver.Solve(values, b, x, true))

	// residual for the block-diagonal-dominant system
	for phase := 0; phase < 3; phase++ {
		r0 := 5*x[phase] - x[3+phase] - b[phase]
		r1 := -x[phase] + 5*x[3+phase] - b[3+phase]
		require.Less(t, cmplx.Abs(r0), 1e-9)
		require.Less(t, cmplx.Abs(r1), 1e-9)
	}
}

func TestInvalidatePrefactorizationForcesRefactor(t *testing.T) {
	rowIndptr := []int32{0, 1}
	colIndices := []int32{0}
	solver := blocksolver.New(rowIndptr, colIndices, 1)
	require.NoError(t, solver.Prefactorize([]complex128{2}))
	solver.InvalidatePrefactorization()

	x := make([]complex128, 1)
	require.NoError(t, solver.Solve([]complex128{4}, []complex128{8}, x, false))
	require.InDelta(t, 2.0, real(x[0]), 1e-9)
}
