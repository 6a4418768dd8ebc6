package se

import (
	"math"

	"github.com/powergridmath/gridsolve/pkg/model"
	"github.com/powergridmath/gridsolve/pkg/sparsemap"
)

// RawVoltageMeasurement is one voltage sensor's reading before aggregation.
type RawVoltageMeasurement struct {
	Value    []complex128
	HasAngle bool
	Variance float64
}

// RawPowerMeasurement is one power sensor's reading before aggregation.
type RawPowerMeasurement struct {
	Value    []complex128
	Variance float64
}

// selectHardConstraints returns the subset of ids whose variance is exactly
// zero — a hard constraint, per the "variance = 0 means hard constraint"
// convention — along with whether any were found. A zero-variance sensor
// carries infinite weight in ordinary inverse-variance weighting, which
// would produce +Inf/NaN; when one is present it overrides every soft
// (finite-variance) sensor at the same observation point entirely, so only
// the hard sensors are merged (by plain averaging, since each is exact).
func selectHardConstraints(ids []int32, variance func(int32) float64) (selected []int32, hard bool) {
	var h []int32
	for _, id := range ids {
		if variance(id) == 0 {
			h = append(h, id)
		}
	}
	if len(h) > 0 {
		return h, true
	}
	return ids, false
}

// aggregateVoltage merges every voltage sensor observing the same bus into
// one measurement via inverse-variance weighting: if any contributing
// sensor lacks phase, the merged measurement keeps magnitude only. A
// variance-0 sensor is a hard constraint and is merged by plain averaging
// instead, with the result's Variance left at 0 so downstream gain
// assembly treats it as an equality constraint rather than a weighted one.
func aggregateVoltage(grouping sparsemap.Mapping, raw []RawVoltageMeasurement, busCount, blockSize int) []model.VoltageMeasurement {
	out := make([]model.VoltageMeasurement, busCount)
	for b := 0; b < busCount; b++ {
		ids := grouping.Group(b)
		if len(ids) == 0 {
			continue
		}
		source, hard := selectHardConstraints(ids, func(id int32) float64 { return raw[id].Variance })

		hasAngle := true
		for _, id := range source {
			if !raw[id].HasAngle {
				hasAngle = false
				break
			}
		}

		// Every sensor contributes on the same footing the merged result
		// ends up with: once any sensor in the group lacks phase, every
		// sensor's contribution is folded in as its magnitude (abs, not
		// just the real part — a full phasor's real part understates its
		// magnitude once angle is discarded), so neither a full-phasor
		// sensor's imaginary part nor its in-phase/quadrature split leaks
		// into a merged value that is reported as magnitude-only.
		value := make([]complex128, blockSize)
		var sumW float64
		for _, id := range source {
			m := raw[id]
			w := 1.0
			if !hard {
				w = 1 / m.Variance
			}
			sumW += w
			for k := range value {
				if hasAngle {
					value[k] += complex(w, 0) * m.Value[k]
				} else {
					value[k] += complex(w*cmplxAbsSE(m.Value[k]), 0)
				}
			}
		}
		for k := range value {
			value[k] /= complex(sumW, 0)
		}
		variance := 0.0
		if !hard {
			variance = 1 / sumW
		}
		out[b] = model.VoltageMeasurement{HasValue: true, HasAngle: hasAngle, Value: value, Variance: variance}
	}
	return out
}

// aggregatePower merges every power sensor observing the same object, with
// the same variance-0 hard-constraint handling as aggregateVoltage.
func aggregatePower(grouping sparsemap.Mapping, raw []RawPowerMeasurement, numObjects, blockSize int) []model.PowerMeasurement {
	out := make([]model.PowerMeasurement, numObjects)
	for o := 0; o < numObjects; o++ {
		ids := grouping.Group(o)
		if len(ids) == 0 {
			continue
		}
		source, hard := selectHardConstraints(ids, func(id int32) float64 { return raw[id].Variance })

		value := make([]complex128, blockSize)
		var sumW float64
		for _, id := range source {
			m := raw[id]
			w := 1.0
			if !hard {
				w = 1 / m.Variance
			}
			sumW += w
			for k := range value {
				value[k] += complex(w, 0) * m.Value[k]
			}
		}
		for k := range value {
			value[k] /= complex(sumW, 0)
		}
		variance := 0.0
		if !hard {
			variance = 1 / sumW
		}
		out[o] = model.PowerMeasurement{HasValue: true, Value: value, Variance: variance}
	}
	return out
}

// aggregateBusInjection sums the measured power of every connected
// load/gen and source at a bus into one injection measurement, usable in
// the gain matrix only when every connected appliance is measured (or the
// bus is flagged zero-injection); otherwise HasValue is false and result
// projection falls back to its non-over-determined split using the
// per-object measurements directly.
func aggregateBusInjection(t *model.MathModelTopology, sourcePower, loadGenPower []model.PowerMeasurement, blockSize int) []model.PowerMeasurement {
	out := make([]model.PowerMeasurement, t.BusCount)
	for b := 0; b < t.BusCount; b++ {
		sources := t.SourcesPerBus.Group(b)
		loadGens := t.LoadGensPerBus.Group(b)

		if len(sources) == 0 && len(loadGens) == 0 {
			if t.ZeroInjection[b] {
				out[b] = model.PowerMeasurement{HasValue: true, Value: make([]complex128, blockSize), Variance: 0}
			}
			continue
		}

		value := make([]complex128, blockSize)
		var sumVar float64
		allMeasured := true
		for _, si := range sources {
			pm := sourcePower[si]
			if !pm.HasValue {
				allMeasured = false
				continue
			}
			for k := range value {
				value[k] += pm.Value[k]
			}
			sumVar += pm.Variance
		}
		for _, li := range loadGens {
			pm := loadGenPower[li]
			if !pm.HasValue {
				allMeasured = false
				continue
			}
			for k := range value {
				value[k] += pm.Value[k]
			}
			sumVar += pm.Variance
		}

		if allMeasured || t.ZeroInjection[b] {
			out[b] = model.PowerMeasurement{HasValue: true, Value: value, Variance: sumVar}
		}
	}
	return out
}

// NormalizeVariances scales every finite positive variance in in by the
// smallest positive variance present, so the largest weight is 1.
func NormalizeVariances(in *model.StateEstimationInput) {
	min := math.Inf(1)
	scan := func(v float64) {
		if v > 0 && v < min {
			min = v
		}
	}
	for _, m := range in.VoltageMeasurement {
		if m.HasValue {
			scan(m.Variance)
		}
	}
	for _, list := range [][]model.PowerMeasurement{in.SourcePower, in.LoadGenPower, in.ShuntPower, in.BranchFromPower, in.BranchToPower, in.BusInjectionPower} {
		for _, m := range list {
			if m.HasValue {
				scan(m.Variance)
			}
		}
	}
	if math.IsInf(min, 1) || min <= 0 {
		return
	}
	div := func(v float64) float64 { return v / min }
	for i, m := range in.VoltageMeasurement {
		if m.HasValue {
			in.VoltageMeasurement[i].Variance = div(m.Variance)
		}
	}
	for _, list := range [][]model.PowerMeasurement{in.SourcePower, in.LoadGenPower, in.ShuntPower, in.BranchFromPower, in.BranchToPower, in.BusInjectionPower} {
		for i, m := range list {
			if m.HasValue {
				list[i].Variance = div(m.Variance)
			}
		}
	}
}

// Aggregate builds a StateEstimationInput from raw per-sensor readings,
// running the merge-by-observation-point and variance-normalisation
// passes before the gain matrix is ever assembled.
func Aggregate(t *model.MathModelTopology, blockSize int,
	rawVoltage []RawVoltageMeasurement,
	rawSourcePower, rawLoadGenPower, rawShuntPower, rawBranchFromPower, rawBranchToPower []RawPowerMeasurement,
	shuntConnected, loadGenConnected, sourceConnected []bool,
) *model.StateEstimationInput {
	in := &model.StateEstimationInput{
		BlockSize:        blockSize,
		ShuntConnected:   shuntConnected,
		LoadGenConnected: loadGenConnected,
		SourceConnected:  sourceConnected,

		VoltageMeasurement: aggregateVoltage(t.VoltageSensorsPerBus, rawVoltage, t.BusCount, blockSize),
		SourcePower:        aggregatePower(t.PowerSensorsPerSource, rawSourcePower, t.NumSources(), blockSize),
		LoadGenPower:       aggregatePower(t.PowerSensorsPerLoadGen, rawLoadGenPower, t.NumLoadGens(), blockSize),
		ShuntPower:         aggregatePower(t.PowerSensorsPerShunt, rawShuntPower, t.NumShunts(), blockSize),
		BranchFromPower:    aggregatePower(t.PowerSensorsPerBranchF, rawBranchFromPower, t.NumBranches(), blockSize),
		BranchToPower:      aggregatePower(t.PowerSensorsPerBranchT, rawBranchToPower, t.NumBranches(), blockSize),
	}
	in.BusInjectionPower = aggregateBusInjection(t, in.SourcePower, in.LoadGenPower, blockSize)
	NormalizeVariances(in)
	return in
}
