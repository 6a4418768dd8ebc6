// Package dataset implements the external dataset boundary: typed-erased
// Single/Batch buffer descriptors, NaN/Int sentinel "leave unchanged"
// handling, and indptr bounds-checking.
package dataset

import (
	"fmt"

	"github.com/powergridmath/gridsolve/pkg/model"
)

// Buffer is one component attribute's values across every scenario: either
// Single (Indptr nil, NBatches 1) or Batch, ragged when Indptr is set or
// homogeneous (len(Values)/NBatches items each) when it is nil.
type Buffer struct {
	Values   []float64
	Indptr   []int32
	NBatches int
}

// NewSingle wraps one scenario's worth of values.
func NewSingle(values []float64) Buffer {
	return Buffer{Values: values, NBatches: 1}
}

// NewBatchHomogeneous wraps nBatches scenarios of equal length.
func NewBatchHomogeneous(values []float64, nBatches int) Buffer {
	return Buffer{Values: values, NBatches: nBatches}
}

// NewBatchRagged wraps nBatches scenarios whose lengths vary per
// indptr[s+1]-indptr[s].
func NewBatchRagged(values []float64, indptr []int32, nBatches int) Buffer {
	return Buffer{Values: values, Indptr: indptr, NBatches: nBatches}
}

// Scenario returns the value slice belonging to scenario s, bounds-checking
// indptr so a misaligned or truncated buffer is refused rather than read
// out of bounds.
func (b Buffer) Scenario(s int) ([]float64, error) {
	if s < 0 || s >= b.NBatches {
		return nil, fmt.Errorf("dataset: scenario %d out of range [0,%d)", s, b.NBatches)
	}
	if b.Indptr == nil {
		if b.NBatches == 0 {
			return nil, fmt.Errorf("dataset: homogeneous batch has zero scenarios")
		}
		if len(b.Values)%b.NBatches != 0 {
			return nil, fmt.Errorf("dataset: homogeneous batch length %d not divisible by n_batches %d", len(b.Values), b.NBatches)
		}
		per := len(b.Values) / b.NBatches
		return b.Values[s*per : (s+1)*per], nil
	}
	if len(b.Indptr) != b.NBatches+1 {
		return nil, fmt.Errorf("dataset: indptr length %d does not match n_batches+1 %d", len(b.Indptr), b.NBatches+1)
	}
	lo, hi := b.Indptr[s], b.Indptr[s+1]
	if lo < 0 || hi < lo || int(hi) > len(b.Values) {
		return nil, fmt.Errorf("dataset: indptr bounds [%d,%d) invalid for a buffer of length %d", lo, hi, len(b.Values))
	}
	return b.Values[lo:hi], nil
}

// Dataset is a tagged union over component-type name -> Buffer: the input,
// update or result boundary object passed across the external API.
type Dataset map[string]Buffer

// Get returns the buffer for a component type, if present.
func (d Dataset) Get(component string) (Buffer, bool) {
	b, ok := d[component]
	return b, ok
}

// IsUnchanged reports whether v is the update dataset's "leave unchanged"
// sentinel for a numeric attribute.
func IsUnchanged(v float64) bool { return model.IsNaNSentinel(v) }

// IsIntUnchanged reports whether v is the update dataset's "leave
// unchanged" sentinel for an IntS/ID attribute.
func IsIntUnchanged(v int32) bool { return v == model.IntSentinel }
