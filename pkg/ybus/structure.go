// Package ybus implements C3 (structure) and C4 (values): the nodal
// admittance matrix's sparsity pattern, its LU fill-in extension, and the
// admittance values themselves.
package ybus

import (
	"fmt"
	"sort"

	"github.com/powergridmath/gridsolve/pkg/blocksolver"
	"github.com/powergridmath/gridsolve/pkg/model"
	"github.com/powergridmath/gridsolve/pkg/sparsemap"
)

// ElementType tags one raw contribution folded into a Y-bus CSR slot.
type ElementType int

const (
	ElemBranchFF ElementType = iota
	ElemBranchFT
	ElemBranchTF
	ElemBranchTT
	ElemShunt
)

// Element is one y_bus_element entry: which branch/shunt param contributes
// to the CSR slot it is grouped under.
type Element struct {
	Type ElementType
	Idx  int32
}

// Structure is C3's output, the YBusStructure entity.
type Structure struct {
	BlockSize int
	BusCount  int

	RowIndptr  []int32
	ColIndices []int32

	BusEntry       []int32 // CSR slot of (i,i), per bus
	ElementIndptr  []int32 // y_bus_entry_indptr, len(RowIndptr's nnz)+1
	Elements       []Element
	TransposeEntry []int32 // CSR index of (j,i) for CSR index of (i,j)

	RowIndptrLU  []int32
	ColIndicesLU []int32
	DiagLU       []int32
	MapLUYBus    []int32 // -1 for pure fill-in positions

	ShuntBus []int32 // bus index per shunt, derived from ShuntsPerBus
}

type rawEntry struct {
	row, col int32
	elem     Element
}

// Build computes the Y-bus sparsity pattern and its LU fill-in extension
// from a subgrid's topology.
func Build(t *model.MathModelTopology, blockSize int) (*Structure, error) {
	var raw []rawEntry

	for bi, bus := range t.BranchBusIdx {
		f, to := bus[0], bus[1]
		if f != model.NotConnected && to != model.NotConnected {
			raw = append(raw,
				rawEntry{int32(f), int32(f), Element{ElemBranchFF, int32(bi)}},
				rawEntry{int32(f), int32(to), Element{ElemBranchFT, int32(bi)}},
				rawEntry{int32(to), int32(f), Element{ElemBranchTF, int32(bi)}},
				rawEntry{int32(to), int32(to), Element{ElemBranchTT, int32(bi)}},
			)
		} else if f != model.NotConnected {
			raw = append(raw, rawEntry{int32(f), int32(f), Element{ElemBranchFF, int32(bi)}})
		} else if to != model.NotConnected {
			raw = append(raw, rawEntry{int32(to), int32(to), Element{ElemBranchTT, int32(bi)}})
		}
	}

	shuntBus := make([]int32, t.NumShunts())
	for b := 0; b < t.BusCount; b++ {
		for _, si := range t.ShuntsPerBus.Group(b) {
			raw = append(raw, rawEntry{int32(b), int32(b), Element{ElemShunt, si}})
			shuntBus[si] = int32(b)
		}
	}

	// Ensure every bus has at least its diagonal represented, even isolated
	// leaf buses with neither branch nor shunt.
	hasDiag := make([]bool, t.BusCount)
	for _, r := range raw {
		if r.row == r.col {
			hasDiag[r.row] = true
		}
	}
	for b := 0; b < t.BusCount; b++ {
		if !hasDiag[b] {
			raw = append(raw, rawEntry{int32(b), int32(b), Element{ElemShunt, -1}})
		}
	}

	// Group by row (C2), then sort within each row by column — together
	// equivalent to a lexicographic counting sort on (row, col).
	rowTags := make([]int32, len(raw))
	for i, r := range raw {
		rowTags[i] = r.row
	}
	byRow, err := sparsemap.Build(rowTags, t.BusCount)
	if err != nil {
		return nil, fmt.Errorf("ybus: grouping by row: %w", err)
	}

	rowIndptr := make([]int32, t.BusCount+1)
	var colIndices []int32
	var elementIndptr []int32
	var elements []Element
	var busEntry []int32
	elementIndptr = append(elementIndptr, 0)

	for b := 0; b < t.BusCount; b++ {
		idxs := byRow.Group(b)
		sorted := append([]int32(nil), idxs...)
		sort.Slice(sorted, func(i, j int) bool { return raw[sorted[i]].col < raw[sorted[j]].col })

		i := 0
		for i < len(sorted) {
			col := raw[sorted[i]].col
			j := i
			for j < len(sorted) && raw[sorted[j]].col == col {
				elements = append(elements, raw[sorted[j]].elem)
				j++
			}
			elementIndptr = append(elementIndptr, int32(len(elements)))
			if col == int32(b) {
				busEntry = append(busEntry, int32(len(colIndices)))
			}
			colIndices = append(colIndices, col)
			i = j
		}
		rowIndptr[b+1] = int32(len(colIndices))
	}

	s := &Structure{
		BlockSize:     blockSize,
		BusCount:      t.BusCount,
		RowIndptr:     rowIndptr,
		ColIndices:    colIndices,
		BusEntry:      busEntry,
		ElementIndptr: elementIndptr,
		Elements:      elements,
		ShuntBus:      shuntBus,
	}
	s.TransposeEntry = computeTransposeEntry(rowIndptr, colIndices)
	s.buildLUPattern()
	return s, nil
}

func computeTransposeEntry(rowIndptr, colIndices []int32) []int32 {
	n := len(rowIndptr) - 1
	pos := make(map[[2]int32]int32, len(colIndices))
	for i := 0; i < n; i++ {
		for k := rowIndptr[i]; k < rowIndptr[i+1]; k++ {
			pos[[2]int32{int32(i), colIndices[k]}] = k
		}
	}
	out := make([]int32, len(colIndices))
	for i := 0; i < n; i++ {
		for k := rowIndptr[i]; k < rowIndptr[i+1]; k++ {
			j := colIndices[k]
			out[k] = pos[[2]int32{j, int32(i)}]
		}
	}
	return out
}

// buildLUPattern runs symbolic elimination in natural order 0..n-1 over the
// Y-bus pattern, recording fill-in.
func (s *Structure) buildLUPattern() {
	n := s.BusCount
	adj := make([]map[int32]bool, n)
	for i := 0; i < n; i++ {
		adj[i] = make(map[int32]bool)
		for k := s.RowIndptr[i]; k < s.RowIndptr[i+1]; k++ {
			adj[i][s.ColIndices[k]] = true
		}
	}

	for p := 0; p < n; p++ {
		var below []int32
		for j := range adj[p] {
			if j > int32(p) {
				below = append(below, j)
			}
		}
		for _, i := range below {
			for _, j := range below {
				if i == j {
					continue
				}
				adj[i][j] = true
			}
		}
	}

	rowIndptrLU := make([]int32, n+1)
	var colIndicesLU []int32
	diagLU := make([]int32, n)
	for i := 0; i < n; i++ {
		cols := make([]int32, 0, len(adj[i]))
		for j := range adj[i] {
			cols = append(cols, j)
		}
		sort.Slice(cols, func(a, b int) bool { return cols[a] < cols[b] })
		for _, j := range cols {
			if j == int32(i) {
				diagLU[i] = int32(len(colIndicesLU))
			}
			colIndicesLU = append(colIndicesLU, j)
		}
		rowIndptrLU[i+1] = int32(len(colIndicesLU))
	}

	yBusPos := make(map[[2]int32]int32, len(s.ColIndices))
	for i := 0; i < n; i++ {
		for k := s.RowIndptr[i]; k < s.RowIndptr[i+1]; k++ {
			yBusPos[[2]int32{int32(i), s.ColIndices[k]}] = k
		}
	}
	mapLUYBus := make([]int32, len(colIndicesLU))
	pos := 0
	for i := 0; i < n; i++ {
		for k := rowIndptrLU[i]; k < rowIndptrLU[i+1]; k++ {
			if yk, ok := yBusPos[[2]int32{int32(i), colIndicesLU[k]}]; ok {
				mapLUYBus[pos] = yk
			} else {
				mapLUYBus[pos] = -1
			}
			pos++
		}
	}

	s.RowIndptrLU = rowIndptrLU
	s.ColIndicesLU = colIndicesLU
	s.DiagLU = diagLU
	s.MapLUYBus = mapLUYBus
}

// Find returns the CSR slot of (row,col) in the Y-bus pattern, or -1.
func (s *Structure) Find(row, col int32) int32 {
	lo, hi := s.RowIndptr[row], s.RowIndptr[row+1]
	cols := s.ColIndices[lo:hi]
	idx := sort.Search(len(cols), func(k int) bool { return cols[k] >= col })
	if idx < len(cols) && cols[idx] == col {
		return lo + int32(idx)
	}
	return -1
}

// NewSolver builds the C1 block solver bound to this structure's LU
// pattern: the scalar sparse adapter for single-phase subgrids, or the
// hand-rolled block LU for three-phase ones (see DESIGN.md).
func (s *Structure) NewSolver() (blocksolver.Solver, error) {
	if s.BlockSize == 1 {
		return blocksolver.NewScalarSparse(s.RowIndptrLU, s.ColIndicesLU)
	}
	return blocksolver.New(s.RowIndptrLU, s.ColIndicesLU, s.BlockSize), nil
}

// NNZ returns the number of Y-bus CSR slots.
func (s *Structure) NNZ() int { return len(s.ColIndices) }

// ScatterToLU expands a Y-bus-ordered admittance array into the (larger)
// LU-pattern-ordered array the block solver expects, leaving pure fill-in
// positions at zero.
func (s *Structure) ScatterToLU(admittance []complex128) []complex128 {
	bb := s.BlockSize * s.BlockSize
	out := make([]complex128, len(s.MapLUYBus)*bb)
	for k, yk := range s.MapLUYBus {
		if yk < 0 {
			continue
		}
		copy(out[k*bb:(k+1)*bb], admittance[int(yk)*bb:int(yk+1)*bb])
	}
	return out
}
