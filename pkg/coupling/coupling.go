// Package coupling implements C6: mapping every physical component to its
// (subgrid, position) and building each subgrid's MathModelTopology
// component arrays from C5's topology.Result.
package coupling

import (
	"fmt"

	"github.com/powergridmath/gridsolve/pkg/model"
	"github.com/powergridmath/gridsolve/pkg/sparsemap"
	"github.com/powergridmath/gridsolve/pkg/topology"
)

// PowerSensorKind selects which per-class object array a power sensor
// observes: sources, load_gens, shunts, branch-from, or branch-to.
type PowerSensorKind int

const (
	PowerSensorSource PowerSensorKind = iota
	PowerSensorLoadGen
	PowerSensorShunt
	PowerSensorBranchFrom
	PowerSensorBranchTo
	numPowerSensorKinds
)

// Branch is one physical two-terminal branch (line, link, or two-winding
// transformer) referencing physical node indices.
type Branch struct {
	From, To                   int
	FromConnected, ToConnected bool
}

// Branch3 is a three-winding transformer; each terminal expands to a
// math-level branch to a synthesized internal star bus.
type Branch3 struct {
	Nodes     [3]int
	Connected [3]bool
}

type Shunt struct{ Node int }

type LoadGen struct {
	Node int
	Type model.LoadGenType
}

type Source struct{ Node int }

type VoltageSensor struct{ Node int }

// PowerSensor observes one object of a given class, identified by that
// class's physical-space index.
type PowerSensor struct {
	Kind      PowerSensorKind
	ObjectIdx int
}

// Input is the physical-space component graph C6 couples onto the
// subgrids topology.Decompose discovered. Node indices here must match
// those passed to topology.Input.
type Input struct {
	Branches       []Branch
	Branch3s       []Branch3
	Shunts         []Shunt
	LoadGens       []LoadGen
	Sources        []Source
	VoltageSensors []VoltageSensor
	PowerSensors   []PowerSensor
}

type subgridBuilder struct {
	busCount int

	branchBusIdx [][2]model.Idx
	loadGenType  []model.LoadGenType

	shuntBusTag         []int32
	loadGenBusTag       []int32
	sourceBusTag        []int32
	voltageSensorBusTag []int32

	powerSensorObjTag [numPowerSensorKinds][]int32
}

// Build runs C6 over in, given C5's subgrid discovery, and returns one
// MathModelTopology per subgrid plus the global component coupling.
// ZeroInjection comes back allocated false-for-every-bus; flipping
// individual buses to zero-injection is a modelling choice outside
// coupling's bus-graph traversal, left to the caller.
func Build(in Input, topo topology.Result) ([]*model.MathModelTopology, model.ComponentToMathCoupling, error) {
	builders := make([]*subgridBuilder, len(topo.Subgrids))
	for i, sg := range topo.Subgrids {
		builders[i] = &subgridBuilder{busCount: sg.BusCount}
	}

	coupling := model.ComponentToMathCoupling{
		Branch:        make([]model.Position, len(in.Branches)),
		Branch3:       make([]model.Branch3Position, len(in.Branch3s)),
		Shunt:         make([]model.Position, len(in.Shunts)),
		LoadGen:       make([]model.Position, len(in.LoadGens)),
		Source:        make([]model.Position, len(in.Sources)),
		VoltageSensor: make([]model.Position, len(in.VoltageSensors)),
		PowerSensor:   make([]model.Position, len(in.PowerSensors)),
	}

	nodePos := func(node int) model.Position {
		if node < 0 || node >= len(topo.NodeCoupling) {
			return model.Unreachable
		}
		return topo.NodeCoupling[node]
	}

	for bi, b := range in.Branches {
		fp, tp := model.Unreachable, model.Unreachable
		if b.FromConnected {
			fp = nodePos(b.From)
		}
		if b.ToConnected {
			tp = nodePos(b.To)
		}
		sg, fIdx, tIdx, ok := resolveBranchSubgrid(fp, tp)
		if !ok {
			coupling.Branch[bi] = model.Unreachable
			continue
		}
		bld := builders[sg]
		localIdx := len(bld.branchBusIdx)
		bld.branchBusIdx = append(bld.branchBusIdx, [2]model.Idx{fIdx, tIdx})
		coupling.Branch[bi] = model.Position{Subgrid: int32(sg), Pos: model.Idx(localIdx)}
	}

	for bi, b3 := range in.Branch3s {
		starPos := topo.Branch3Bus[bi]
		if starPos.Subgrid == -1 {
			coupling.Branch3[bi] = model.Branch3Position{Subgrid: -1, Pos: [3]model.Idx{model.NotConnected, model.NotConnected, model.NotConnected}}
			continue
		}
		bld := builders[starPos.Subgrid]
		var legs [3]model.Idx
		for i := 0; i < 3; i++ {
			termPos := model.NotConnected
			if b3.Connected[i] {
				termPos = nodePos(b3.Nodes[i]).Pos
			}
			localIdx := len(bld.branchBusIdx)
			bld.branchBusIdx = append(bld.branchBusIdx, [2]model.Idx{termPos, starPos.Pos})
			legs[i] = model.Idx(localIdx)
		}
		coupling.Branch3[bi] = model.Branch3Position{Subgrid: starPos.Subgrid, Pos: legs}
	}

	for si, s := range in.Shunts {
		p := nodePos(s.Node)
		if p.Subgrid == -1 {
			coupling.Shunt[si] = model.Unreachable
			continue
		}
		bld := builders[p.Subgrid]
		localIdx := len(bld.shuntBusTag)
		bld.shuntBusTag = append(bld.shuntBusTag, int32(p.Pos))
		coupling.Shunt[si] = model.Position{Subgrid: p.Subgrid, Pos: model.Idx(localIdx)}
	}

	for li, l := range in.LoadGens {
		p := nodePos(l.Node)
		if p.Subgrid == -1 {
			coupling.LoadGen[li] = model.Unreachable
			continue
		}
		bld := builders[p.Subgrid]
		localIdx := len(bld.loadGenBusTag)
		bld.loadGenBusTag = append(bld.loadGenBusTag, int32(p.Pos))
		bld.loadGenType = append(bld.loadGenType, l.Type)
		coupling.LoadGen[li] = model.Position{Subgrid: p.Subgrid, Pos: model.Idx(localIdx)}
	}

	for si, s := range in.Sources {
		p := nodePos(s.Node)
		if p.Subgrid == -1 {
			coupling.Source[si] = model.Unreachable
			continue
		}
		bld := builders[p.Subgrid]
		localIdx := len(bld.sourceBusTag)
		bld.sourceBusTag = append(bld.sourceBusTag, int32(p.Pos))
		coupling.Source[si] = model.Position{Subgrid: p.Subgrid, Pos: model.Idx(localIdx)}
	}

	// Voltage sensor coupling stores the observed bus's position directly,
	// not a per-sensor-class array slot.
	for vi, v := range in.VoltageSensors {
		p := nodePos(v.Node)
		coupling.VoltageSensor[vi] = p
		if p.Subgrid == -1 {
			continue
		}
		bld := builders[p.Subgrid]
		bld.voltageSensorBusTag = append(bld.voltageSensorBusTag, int32(p.Pos))
	}

	// Power sensor coupling stores the measured object's own position, so
	// that aggregation (C10) can look up every sensor for a given object.
	for pi, ps := range in.PowerSensors {
		objPos, err := resolvePowerSensorObject(coupling, ps)
		if err != nil {
			return nil, model.ComponentToMathCoupling{}, fmt.Errorf("coupling: power sensor %d: %w", pi, err)
		}
		coupling.PowerSensor[pi] = objPos
		if objPos.Subgrid == -1 {
			continue
		}
		bld := builders[objPos.Subgrid]
		bld.powerSensorObjTag[ps.Kind] = append(bld.powerSensorObjTag[ps.Kind], int32(objPos.Pos))
	}

	topologies := make([]*model.MathModelTopology, len(topo.Subgrids))
	for i, sg := range topo.Subgrids {
		t, err := builders[i].finish(sg)
		if err != nil {
			return nil, model.ComponentToMathCoupling{}, fmt.Errorf("coupling: subgrid %d: %w", i, err)
		}
		topologies[i] = t
	}
	return topologies, coupling, nil
}

func resolveBranchSubgrid(fp, tp model.Position) (sg int, fIdx, tIdx model.Idx, ok bool) {
	fConnected := fp.Subgrid != -1
	tConnected := tp.Subgrid != -1
	switch {
	case fConnected && tConnected:
		if fp.Subgrid != tp.Subgrid {
			return 0, 0, 0, false
		}
		return int(fp.Subgrid), fp.Pos, tp.Pos, true
	case fConnected:
		return int(fp.Subgrid), fp.Pos, model.NotConnected, true
	case tConnected:
		return int(tp.Subgrid), model.NotConnected, tp.Pos, true
	default:
		return 0, 0, 0, false
	}
}

func resolvePowerSensorObject(c model.ComponentToMathCoupling, ps PowerSensor) (model.Position, error) {
	idx := ps.ObjectIdx
	switch ps.Kind {
	case PowerSensorSource:
		if idx < 0 || idx >= len(c.Source) {
			return model.Position{}, fmt.Errorf("source index %d out of range", idx)
		}
		return c.Source[idx], nil
	case PowerSensorLoadGen:
		if idx < 0 || idx >= len(c.LoadGen) {
			return model.Position{}, fmt.Errorf("load_gen index %d out of range", idx)
		}
		return c.LoadGen[idx], nil
	case PowerSensorShunt:
		if idx < 0 || idx >= len(c.Shunt) {
			return model.Position{}, fmt.Errorf("shunt index %d out of range", idx)
		}
		return c.Shunt[idx], nil
	case PowerSensorBranchFrom, PowerSensorBranchTo:
		if idx < 0 || idx >= len(c.Branch) {
			return model.Position{}, fmt.Errorf("branch index %d out of range", idx)
		}
		return c.Branch[idx], nil
	default:
		return model.Position{}, fmt.Errorf("unknown power sensor kind %d", ps.Kind)
	}
}

type mappingSpec struct {
	dst *sparsemap.Mapping
	tag []int32
	n   int
}

func (b *subgridBuilder) finish(sg topology.Subgrid) (*model.MathModelTopology, error) {
	branchCount := len(b.branchBusIdx)

	var shuntsPerBus, loadGensPerBus, sourcesPerBus, voltageSensorsPerBus sparsemap.Mapping
	var powerSensorsPerSource, powerSensorsPerLoadGen, powerSensorsPerShunt sparsemap.Mapping
	var powerSensorsPerBranchF, powerSensorsPerBranchT sparsemap.Mapping

	specs := []mappingSpec{
		{&shuntsPerBus, b.shuntBusTag, b.busCount},
		{&loadGensPerBus, b.loadGenBusTag, b.busCount},
		{&sourcesPerBus, b.sourceBusTag, b.busCount},
		{&voltageSensorsPerBus, b.voltageSensorBusTag, b.busCount},
		{&powerSensorsPerSource, b.powerSensorObjTag[PowerSensorSource], len(b.sourceBusTag)},
		{&powerSensorsPerLoadGen, b.powerSensorObjTag[PowerSensorLoadGen], len(b.loadGenBusTag)},
		{&powerSensorsPerShunt, b.powerSensorObjTag[PowerSensorShunt], len(b.shuntBusTag)},
		{&powerSensorsPerBranchF, b.powerSensorObjTag[PowerSensorBranchFrom], branchCount},
		{&powerSensorsPerBranchT, b.powerSensorObjTag[PowerSensorBranchTo], branchCount},
	}
	for _, sp := range specs {
		built, err := sparsemap.Build(sp.tag, sp.n)
		if err != nil {
			return nil, err
		}
		*sp.dst = built
	}

	return &model.MathModelTopology{
		BusCount:      b.busCount,
		PhaseShift:    append([]float64(nil), sg.PhaseShift...),
		ZeroInjection: make([]bool, b.busCount),
		SlackBus:      sg.SlackBus,
		BranchBusIdx:  b.branchBusIdx,
		LoadGenType:   b.loadGenType,

		ShuntsPerBus:           shuntsPerBus,
		LoadGensPerBus:         loadGensPerBus,
		SourcesPerBus:          sourcesPerBus,
		VoltageSensorsPerBus:   voltageSensorsPerBus,
		PowerSensorsPerSource:  powerSensorsPerSource,
		PowerSensorsPerLoadGen: powerSensorsPerLoadGen,
		PowerSensorsPerShunt:   powerSensorsPerShunt,
		PowerSensorsPerBranchF: powerSensorsPerBranchF,
		PowerSensorsPerBranchT: powerSensorsPerBranchT,
	}, nil
}
