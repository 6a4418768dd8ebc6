package blocksolver

import (
	"fmt"

	"github.com/edp1096/sparse"
)

// ScalarSparseSolver is the block-size-1 instantiation of C1, backed by
// github.com/edp1096/sparse — the same library toy-spice's
// pkg/matrix.CircuitMatrix wraps for its nodal-admittance solve. It is the
// solver ybus.Structure.NewSolver returns for symmetric (single-phase-
// equivalent) Y-bus matrices; asymmetric subgrids get BlockLUSolver instead
// (see DESIGN.md for why the 3x3 case cannot go through this library). The
// Newton-Raphson Jacobian and the state-estimation gain matrix always use
// BlockLUSolver, whatever the subgrid's symmetry.
//
// Unlike CircuitMatrix this type runs the matrix permanently in separated-
// complex-vector mode (Configuration.SeparatedComplexVectors = true): the
// teacher's non-separated RHS layout interleaves differently from its own
// solution layout, which this solver avoids by always keeping real and
// imaginary parts in their own arrays.
type ScalarSparseSolver struct {
	n      int
	mat    *sparse.Matrix
	config *sparse.Configuration

	rowIndptr  []int32
	colIndices []int32

	state state
}

// NewScalarSparse builds a block-size-1 solver over the given CSR pattern
// (0-based; internally translated to the library's 1-based indexing).
func NewScalarSparse(rowIndptr, colIndices []int32) (*ScalarSparseSolver, error) {
	n := len(rowIndptr) - 1

	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 true,
		SeparatedComplexVectors: true,
		Expandable:              false,
		Translate:               false,
		ModifiedNodal:           false,
		TiesMultiplier:          5,
		PrinterWidth:            140,
		Annotate:                0,
	}

	mat, err := sparse.Create(int64(n), config)
	if err != nil {
		return nil, fmt.Errorf("blocksolver: creating scalar sparse matrix: %w", err)
	}

	s := &ScalarSparseSolver{
		n:          n,
		mat:        mat,
		config:     config,
		rowIndptr:  rowIndptr,
		colIndices: colIndices,
		state:      unfactored,
	}

	// Register every pattern position once so later Factor calls see the
	// full fill-in structure even where a particular solve's values happen
	// to be zero (mirrors CircuitMatrix.SetupElements).
	for i := 0; i < n; i++ {
		for pos := rowIndptr[i]; pos < rowIndptr[i+1]; pos++ {
			j := colIndices[pos]
			mat.GetElement(int64(i+1), int64(j+1))
		}
	}

	return s, nil
}

func (s *ScalarSparseSolver) BlockSize() int { return 1 }
func (s *ScalarSparseSolver) Size() int      { return s.n }

func (s *ScalarSparseSolver) loadValues(values []complex128) {
	s.mat.Clear()
	for i := 0; i < s.n; i++ {
		for pos := s.rowIndptr[i]; pos < s.rowIndptr[i+1]; pos++ {
			j := s.colIndices[pos]
			v := values[pos]
			e := s.mat.GetElement(int64(i+1), int64(j+1))
			e.Real += real(v)
			e.Imag += imag(v)
		}
	}
}

func (s *ScalarSparseSolver) Prefactorize(values []complex128) error {
	s.loadValues(values)
	if err := s.mat.Factor(); err != nil {
		return &SingularMatrixError{}
	}
	s.state = factored
	return nil
}

func (s *ScalarSparseSolver) InvalidatePrefactorization() {
	s.state = unfactored
}

func (s *ScalarSparseSolver) Solve(values, b, x []complex128, usePrefactor bool) error {
	if !usePrefactor || s.state != factored {
		s.loadValues(values)
		if err := s.mat.Factor(); err != nil {
			return &SingularMatrixError{}
		}
		if !usePrefactor {
			defer func() { s.state = unfactored }()
		} else {
			s.state = factored
		}
	}

	rhsReal := make([]float64, s.n+1)
	rhsImag := make([]float64, s.n+1)
	for i := 0; i < s.n; i++ {
		rhsReal[i+1] = real(b[i])
		rhsImag[i+1] = imag(b[i])
	}

	solReal, solImag, err := s.mat.SolveComplex(rhsReal, rhsImag)
	if err != nil {
		return fmt.Errorf("blocksolver: scalar sparse solve: %w", err)
	}

	for i := 0; i < s.n; i++ {
		x[i] = complex(solReal[i+1], solImag[i+1])
	}
	return nil
}
