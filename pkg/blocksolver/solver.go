package blocksolver

// Solver is the C1 prefactorize/solve contract, satisfied by both
// BlockLUSolver (general block size, used for asymmetric 3x3 Y-bus matrices)
// and ScalarSparseSolver (block size 1 only, backed by
// github.com/edp1096/sparse, used for symmetric Y-bus matrices — see
// DESIGN.md).
type Solver interface {
	Prefactorize(values []complex128) error
	Solve(values, b, x []complex128, usePrefactor bool) error
	InvalidatePrefactorization()
	BlockSize() int
	Size() int
}
