package model

// PowerFlowInput is the per-scenario input to C7/C8/C9. URef and
// SSpecified are flat phasor arrays: BlockSize complex128 values per
// source / per load-gen respectively (1 for symmetric, 3 for asymmetric).
type PowerFlowInput struct {
	BlockSize  int
	URef       []complex128 // len NumSources * BlockSize
	SSpecified []complex128 // len NumLoadGens * BlockSize
}

// PowerMeasurement is one aggregated power measurement: the
// inverse-variance-weighted merge of every sensor attached to the same
// observation point. HasValue is false when no sensor observes that point.
type PowerMeasurement struct {
	HasValue bool
	Value    []complex128 // BlockSize complex128
	Variance float64
}

// VoltageMeasurement is one aggregated voltage measurement. HasAngle is
// false when any contributing sensor lacked phase information, in which
// case Value carries only a magnitude-consistent phasor (angle undefined)
// and solvers must treat it as magnitude-only.
type VoltageMeasurement struct {
	HasValue bool
	HasAngle bool
	Value    []complex128
	Variance float64
}

// StateEstimationInput is the per-scenario input to C10.
type StateEstimationInput struct {
	BlockSize int

	ShuntConnected   []bool
	LoadGenConnected []bool
	SourceConnected  []bool

	VoltageMeasurement []VoltageMeasurement // len BusCount

	SourcePower     []PowerMeasurement // len NumSources
	LoadGenPower    []PowerMeasurement // len NumLoadGens
	ShuntPower      []PowerMeasurement // len NumShunts
	BranchFromPower []PowerMeasurement // len NumBranches
	BranchToPower   []PowerMeasurement // len NumBranches

	// BusInjectionPower is the partial/aggregated injection measurement per
	// bus used by the over-determined result-projection split; populated by
	// the measurement-aggregation pass, not by the caller.
	BusInjectionPower []PowerMeasurement // len BusCount
}

// SolverOutput is the per-subgrid, per-solve result entity. It is not
// retained between solves.
type SolverOutput struct {
	BlockSize int

	U             []complex128 // len BusCount * BlockSize
	BusInjection  []complex128 // len BusCount * BlockSize

	BranchSF, BranchST []complex128 // len NumBranches * BlockSize
	BranchIF, BranchIT []complex128

	SourceS, SourceI   []complex128 // len NumSources * BlockSize
	LoadGenS, LoadGenI []complex128 // len NumLoadGens * BlockSize
	ShuntS, ShuntI     []complex128 // len NumShunts * BlockSize
}

// NewSolverOutput allocates a zeroed SolverOutput sized for topology t.
func NewSolverOutput(t *MathModelTopology, blockSize int) *SolverOutput {
	bs := blockSize
	return &SolverOutput{
		BlockSize:    bs,
		U:            make([]complex128, t.BusCount*bs),
		BusInjection: make([]complex128, t.BusCount*bs),
		BranchSF:     make([]complex128, t.NumBranches()*bs),
		BranchST:     make([]complex128, t.NumBranches()*bs),
		BranchIF:     make([]complex128, t.NumBranches()*bs),
		BranchIT:     make([]complex128, t.NumBranches()*bs),
		SourceS:      make([]complex128, t.NumSources()*bs),
		SourceI:      make([]complex128, t.NumSources()*bs),
		LoadGenS:     make([]complex128, t.NumLoadGens()*bs),
		LoadGenI:     make([]complex128, t.NumLoadGens()*bs),
		ShuntS:       make([]complex128, t.NumShunts()*bs),
		ShuntI:       make([]complex128, t.NumShunts()*bs),
	}
}
