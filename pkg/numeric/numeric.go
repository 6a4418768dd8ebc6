// Package numeric provides symmetric/asymmetric scalar and block types. The
// Y-bus, topology, power-flow and state-estimation packages do not import
// it; they work on flat complex128 slices with an explicit block size.
//
// Two symmetry modes coexist throughout this repository: "symmetric" uses
// plain complex128 scalars and 1x1 admittance blocks, "asymmetric" uses
// 3-vectors and 3x3 tensors, one row/column per phase.
package numeric

import "math"

// Symmetry selects between the single-phase equivalent (Sym) and full
// three-phase (Asym) representation of a subgrid; BlockSize gives the
// matching block size.
type Symmetry int

const (
	Sym Symmetry = iota
	Asym
)

func (s Symmetry) BlockSize() int {
	if s == Asym {
		return 3
	}
	return 1
}

func (s Symmetry) String() string {
	if s == Asym {
		return "asymmetric"
	}
	return "symmetric"
}

// Vec3 is a per-phase complex triplet, used for asymmetric voltages,
// currents and powers.
type Vec3 [3]complex128

func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]}
}

func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]}
}

func (v Vec3) Scale(k complex128) Vec3 {
	return Vec3{v[0] * k, v[1] * k, v[2] * k}
}

func (v Vec3) Conj() Vec3 {
	return Vec3{cmplxConj(v[0]), cmplxConj(v[1]), cmplxConj(v[2])}
}

// MaxAbsDiff returns max_i |v[i]-w[i]|.
func (v Vec3) MaxAbsDiff(w Vec3) float64 {
	m := 0.0
	for i := range v {
		if d := cmplxAbs(v[i] - w[i]); d > m {
			m = d
		}
	}
	return m
}

// Tensor3 is a 3x3 complex admittance/impedance block in row-major order.
type Tensor3 [3][3]complex128

// MulVec computes T*v.
func (t Tensor3) MulVec(v Vec3) Vec3 {
	var out Vec3
	for i := 0; i < 3; i++ {
		var acc complex128
		for j := 0; j < 3; j++ {
			acc += t[i][j] * v[j]
		}
		out[i] = acc
	}
	return out
}

func (t Tensor3) Add(o Tensor3) Tensor3 {
	var out Tensor3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = t[i][j] + o[i][j]
		}
	}
	return out
}

func (t Tensor3) Scale(k complex128) Tensor3 {
	var out Tensor3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = t[i][j] * k
		}
	}
	return out
}

// ConjTranspose returns T^H.
func (t Tensor3) ConjTranspose() Tensor3 {
	var out Tensor3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[j][i] = cmplxConj(t[i][j])
		}
	}
	return out
}

func cmplxConj(c complex128) complex128 { return complex(real(c), -imag(c)) }
func cmplxAbs(c complex128) float64     { return math.Hypot(real(c), imag(c)) }

// SequenceMatrix is the standard symmetrical-components transform
// A = [[1,1,1],[1,a^2,a],[1,a,a^2]], a = exp(j*120deg), used to convert
// between phase and sequence (positive/negative/zero) quantities for
// asymmetric components whose parameters are given in sequence form.
// A^-1 = (1/3) * conj(A)^T for this unitary-up-to-scale matrix.
func SequenceMatrix() Tensor3 {
	a := complexFromPolar(1, 2*math.Pi/3)
	a2 := a * a
	return Tensor3{
		{1, 1, 1},
		{1, a2, a},
		{1, a, a2},
	}
}

func SequenceMatrixInverse() Tensor3 {
	a := complexFromPolar(1, 2*math.Pi/3)
	a2 := a * a
	m := Tensor3{
		{1, 1, 1},
		{1, a, a2},
		{1, a2, a},
	}
	return m.Scale(complex(1.0/3.0, 0))
}

func complexFromPolar(r, theta float64) complex128 {
	return complex(r*math.Cos(theta), r*math.Sin(theta))
}
