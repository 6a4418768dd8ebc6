package blocksolver

import "fmt"

// SingularMatrixError is raised when LU factorisation encounters a zero (or
// numerically unusable) pivot. It never reports IterationDiverge — that
// belongs to the outer power-flow/state-estimation solvers.
type SingularMatrixError struct {
	BlockRow int
}

func (e *SingularMatrixError) Error() string {
	return fmt.Sprintf("blocksolver: singular matrix at block row %d", e.BlockRow)
}
