// Package sparsemap builds the grouping CSR used throughout the topology
// and coupling packages (C2) to turn "per-component parent group" lists into
// "per-group list of component indices".
package sparsemap

import "fmt"

// Mapping is the result of grouping N items tagged with a group id in
// [0, G) into a CSR structure: Indptr has length G+1, Reorder has length N.
// Reorder[Indptr[g]:Indptr[g+1]] lists, in stable (input) order, the indices
// of items whose tag equals g.
type Mapping struct {
	Indptr  []int32
	Reorder []int32
}

// Build runs a single counting-sort pass over group, which must contain
// values in [0, numGroups) or -1 (meaning "no group" — such items are
// omitted from Reorder and do not affect Indptr counts beyond that).
//
// Algorithm: O(N+G). First pass counts occurrences per group and turns the
// counts into Indptr via a prefix sum. Second pass walks the input again in
// order and places each index at the next free slot of its group's range,
// which is what keeps the result stably-ordered relative to input order.
func Build(group []int32, numGroups int) (Mapping, error) {
	if numGroups < 0 {
		return Mapping{}, fmt.Errorf("sparsemap: Build: numGroups must be >= 0, got %d", numGroups)
	}

	indptr := make([]int32, numGroups+1)
	for _, g := range group {
		if g == -1 {
			continue
		}
		if int(g) < 0 || int(g) >= numGroups {
			return Mapping{}, fmt.Errorf("sparsemap: Build: group tag %d out of range [0,%d)", g, numGroups)
		}
		indptr[g+1]++
	}
	for g := 0; g < numGroups; g++ {
		indptr[g+1] += indptr[g]
	}

	n := indptr[numGroups]
	reorder := make([]int32, n)
	cursor := make([]int32, numGroups)
	copy(cursor, indptr[:numGroups])

	for i, g := range group {
		if g == -1 {
			continue
		}
		reorder[cursor[g]] = int32(i)
		cursor[g]++
	}

	return Mapping{Indptr: indptr, Reorder: reorder}, nil
}

// Group returns the slice of item indices belonging to group g, or nil if g
// is out of range.
func (m Mapping) Group(g int) []int32 {
	if g < 0 || g+1 >= len(m.Indptr) {
		return nil
	}
	return m.Reorder[m.Indptr[g]:m.Indptr[g+1]]
}

// Count returns the number of items in group g.
func (m Mapping) Count(g int) int {
	if g < 0 || g+1 >= len(m.Indptr) {
		return 0
	}
	return int(m.Indptr[g+1] - m.Indptr[g])
}
