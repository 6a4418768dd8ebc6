package se

// matMulC returns a*b, both bs x bs row-major complex blocks.
func matMulC(a, b []complex128, bs int) []complex128 {
	out := make([]complex128, bs*bs)
	for i := 0; i < bs; i++ {
		for j := 0; j < bs; j++ {
			var acc complex128
			for k := 0; k < bs; k++ {
				acc += a[i*bs+k] * b[k*bs+j]
			}
			out[i*bs+j] = acc
		}
	}
	return out
}

// conjTransposeC returns aᴴ.
func conjTransposeC(a []complex128, bs int) []complex128 {
	out := make([]complex128, bs*bs)
	for i := 0; i < bs; i++ {
		for j := 0; j < bs; j++ {
			out[j*bs+i] = cmplxConjC(a[i*bs+j])
		}
	}
	return out
}

func cmplxConjC(c complex128) complex128 { return complex(real(c), -imag(c)) }

func addBlock(dst, src []complex128) {
	for i := range dst {
		dst[i] += src[i]
	}
}

func scaleBlockC(a []complex128, scalar complex128) []complex128 {
	out := make([]complex128, len(a))
	for i, v := range a {
		out[i] = v * scalar
	}
	return out
}

func identityBlockC(bs int, scalar complex128) []complex128 {
	out := make([]complex128, bs*bs)
	for i := 0; i < bs; i++ {
		out[i*bs+i] = scalar
	}
	return out
}

// blockMulVecC returns a*v, a bs x bs block, v a bs vector.
func blockMulVecC(a, v []complex128, bs int) []complex128 {
	out := make([]complex128, bs)
	for i := 0; i < bs; i++ {
		var acc complex128
		for j := 0; j < bs; j++ {
			acc += a[i*bs+j] * v[j]
		}
		out[i] = acc
	}
	return out
}
