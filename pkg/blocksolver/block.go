package blocksolver

import "math/cmplx"

// Dense complex B x B block helpers, row-major flat storage. B is 1 for
// symmetric subgrids and 3 for asymmetric ones; these helpers are written
// generically over B so the same elimination code in lu.go serves both.

func blockMul(a, b []complex128, bs int, out []complex128) {
	for i := 0; i < bs; i++ {
		for j := 0; j < bs; j++ {
			var acc complex128
			for k := 0; k < bs; k++ {
				acc += a[i*bs+k] * b[k*bs+j]
			}
			out[i*bs+j] = acc
		}
	}
}

func blockMulVec(a, v []complex128, bs int, out []complex128) {
	for i := 0; i < bs; i++ {
		var acc complex128
		for k := 0; k < bs; k++ {
			acc += a[i*bs+k] * v[k]
		}
		out[i] = acc
	}
}

func blockSub(a, b []complex128, bs int) {
	for i := range a {
		a[i] -= b[i]
	}
}

func vecSub(a, b []complex128) {
	for i := range a {
		a[i] -= b[i]
	}
}

// blockInvert computes the inverse of a B x B complex block via Gauss-Jordan
// elimination with pivoting confined within the block, never across block
// boundaries. Returns SingularMatrixError if no usable pivot is found.
func blockInvert(a []complex128, bs int) ([]complex128, error) {
	// augmented [A | I], size bs x 2bs
	aug := make([]complex128, bs*2*bs)
	for i := 0; i < bs; i++ {
		copy(aug[i*2*bs:i*2*bs+bs], a[i*bs:i*bs+bs])
		aug[i*2*bs+bs+i] = 1
	}

	for col := 0; col < bs; col++ {
		piv := col
		best := cmplx.Abs(aug[piv*2*bs+col])
		for r := col + 1; r < bs; r++ {
			if m := cmplx.Abs(aug[r*2*bs+col]); m > best {
				piv, best = r, m
			}
		}
		if best == 0 {
			return nil, &SingularMatrixError{}
		}
		if piv != col {
			for k := 0; k < 2*bs; k++ {
				aug[col*2*bs+k], aug[piv*2*bs+k] = aug[piv*2*bs+k], aug[col*2*bs+k]
			}
		}
		pv := aug[col*2*bs+col]
		for k := 0; k < 2*bs; k++ {
			aug[col*2*bs+k] /= pv
		}
		for r := 0; r < bs; r++ {
			if r == col {
				continue
			}
			factor := aug[r*2*bs+col]
			if factor == 0 {
				continue
			}
			for k := 0; k < 2*bs; k++ {
				aug[r*2*bs+k] -= factor * aug[col*2*bs+k]
			}
		}
	}

	out := make([]complex128, bs*bs)
	for i := 0; i < bs; i++ {
		copy(out[i*bs:i*bs+bs], aug[i*2*bs+bs:i*2*bs+2*bs])
	}
	return out, nil
}
