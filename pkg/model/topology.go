package model

import "github.com/powergridmath/gridsolve/pkg/sparsemap"

// MathModelTopology is the per-subgrid topology entity. It is built once
// per topology reset (C6, consuming C5's subgrid discovery) and shared
// immutably across parameter-only updates and across every scenario of a
// cache_topology batch.
type MathModelTopology struct {
	BusCount int

	// PhaseShift holds each bus's intrinsic phase shift accumulated during
	// C5's DFS, radians, relative to the subgrid's slack bus.
	PhaseShift []float64

	// ZeroInjection marks buses treated as zero-injection for state
	// estimation bus-injection aggregation purposes. C6 allocates it
	// false-by-default, sized to BusCount; the caller flips individual
	// entries true as needed.
	ZeroInjection []bool

	SlackBus Idx

	// BranchBusIdx holds (from, to) bus indices per math-level branch
	// (three-winding transformers already expanded to three legs by C6).
	// NotConnected (-1) marks a disconnected side.
	BranchBusIdx [][2]Idx

	LoadGenType []LoadGenType

	ShuntsPerBus           sparsemap.Mapping
	LoadGensPerBus         sparsemap.Mapping
	SourcesPerBus          sparsemap.Mapping
	VoltageSensorsPerBus   sparsemap.Mapping
	PowerSensorsPerSource  sparsemap.Mapping
	PowerSensorsPerLoadGen sparsemap.Mapping
	PowerSensorsPerShunt   sparsemap.Mapping
	PowerSensorsPerBranchF sparsemap.Mapping
	PowerSensorsPerBranchT sparsemap.Mapping
}

func (t *MathModelTopology) NumBranches() int { return len(t.BranchBusIdx) }
func (t *MathModelTopology) NumShunts() int   { return len(t.ShuntsPerBus.Reorder) }
func (t *MathModelTopology) NumLoadGens() int { return len(t.LoadGenType) }
func (t *MathModelTopology) NumSources() int  { return len(t.SourcesPerBus.Reorder) }
