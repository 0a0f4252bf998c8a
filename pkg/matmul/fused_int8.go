package matmul

// FusedInt8MatMul computes out = in · dequant(weights, scales) in a single
// pass, without materializing the dequantized weight matrix.
//
//	in      is M×K float32 (row-major)
//	weights is K×N int8 (row-major)
//	scales  is K×numGroups float32, numGroups = ceil(N/groupSize)
//	out     is M×N float32 (row-major, overwritten)
//
// Column j of row k dequantizes as float32(weights[k][j]) *
// scales[k][j/groupSize]; j/groupSize must index a valid scale slot for
// every column, which holds by construction of numGroups. Non-positive
// dimensions are a no-op; a non-positive groupSize panics.
func FusedInt8MatMul(out, in []float32, weights []int8, scales []float32, m, k, n, groupSize int) {
	if m <= 0 || k <= 0 || n <= 0 {
		return
	}
	if groupSize <= 0 {
		panic("matmul: groupSize must be positive")
	}
	numGroups := (n + groupSize - 1) / groupSize

	for i := 0; i < m; i++ {
		inRow := in[i*k : i*k+k]
		outRow := out[i*n : i*n+n]
		clear(outRow)

		for kk := 0; kk < k; kk++ {
			a := inRow[kk]
			if a == 0 {
				continue
			}
			wRow := weights[kk*n : kk*n+n]
			sRow := scales[kk*numGroups : kk*numGroups+numGroups]

			// Walk whole scale groups so a*scale is hoisted per group.
			for g := 0; g < numGroups; g++ {
				j0 := g * groupSize
				j1 := min(j0+groupSize, n)
				as := a * sRow[g]
				for j := j0; j < j1; j++ {
					outRow[j] += as * float32(wRow[j])
				}
			}
		}
	}
}
