package model

// BranchParam carries one branch's pi-equivalent admittance blocks, each a
// flat row-major block of size BlockSize*BlockSize (1 for symmetric, 3 for
// asymmetric subgrids).
type BranchParam struct {
	Yff, Yft, Ytf, Ytt []complex128
}

// SourceParam carries a source's positive- and zero-sequence series
// admittance blocks. Symmetric subgrids only ever use Y1.
type SourceParam struct {
	Y1, Y0 []complex128
}

// MathModelParam is the per-subgrid parameter entity: same ordering as the
// owning MathModelTopology, rebuilt whenever any branch or shunt parameter
// changes (Y-bus admittance values are then recomputed from it by
// pkg/ybus, C4).
type MathModelParam struct {
	BlockSize int

	BranchParam []BranchParam
	ShuntParam  [][]complex128 // per shunt, block of size BlockSize^2
	SourceParam []SourceParam
}
