package matmul

import (
	"github.com/samcharles93/zatile/pkg/floatx"
	"github.com/samcharles93/zatile/pkg/tile"
)

// The 16-bit drivers run the same blocked algorithm as MatMulAT but widen
// each operand chunk to float32 right before the rank-1 update and narrow
// the finished tile right after extraction. Accumulation is always float32;
// only storage is 16-bit.

// MatMulATF16 computes C = A·B for binary16 operands. Shapes and
// preconditions match MatMulAT.
func MatMulATF16(c, at, b []floatx.Float16, m, n, k int, cfg Config) {
	if m <= 0 || n <= 0 || k <= 0 {
		return
	}
	checkTiled32(m, n)
	matMulRowsF16(c, at, b, m, n, k, cfg.blockSize(tile.Width32), n, 0)
}

// MatMulATF16Strided is MatMulATF16 writing into a sub-region of a larger
// output: rows of c are ldc elements apart and the tile columns land at
// column offset coff. Used when the output is assembled incrementally from
// transposed input strips.
func MatMulATF16Strided(c, at, b []floatx.Float16, m, n, k, ldc, coff int, cfg Config) {
	if m <= 0 || n <= 0 || k <= 0 {
		return
	}
	checkTiled32(m, n)
	matMulRowsF16(c, at, b, m, n, k, cfg.blockSize(tile.Width32), ldc, coff)
}

func matMulRowsF16(c, at, b []floatx.Float16, m, n, k, blockSize, ldc, coff int) {
	var (
		acc    tile.Accumulator32
		uw, vw [tile.Width32]float32
		row    [tile.Width32]float32
	)
	for i0 := 0; i0 < m; i0 += blockSize {
		iEnd := min(i0+blockSize, m)
		for j0 := 0; j0 < n; j0 += blockSize {
			jEnd := min(j0+blockSize, n)

			for ti := i0; ti < iEnd; ti += tile.Width32 {
				for tj := j0; tj < jEnd; tj += tile.Width32 {
					acc.Zero()
					for kk := 0; kk < k; kk++ {
						aOff := kk*m + ti
						bOff := kk*n + tj
						floatx.Float16ToFloat32Slice(uw[:], at[aOff:aOff+tile.Width32])
						floatx.Float16ToFloat32Slice(vw[:], b[bOff:bOff+tile.Width32])
						acc.RankOne(uw[:], vw[:])
					}
					for r := 0; r < tile.Width32; r++ {
						acc.StoreRow(r, row[:])
						cOff := (ti+r)*ldc + coff + tj
						floatx.Float32ToFloat16Slice(c[cOff:cOff+tile.Width32], row[:])
					}
				}
			}
		}
	}
}

// MatMulATBF16 computes C = A·B for bfloat16 operands. Shapes and
// preconditions match MatMulAT.
func MatMulATBF16(c, at, b []floatx.BFloat16, m, n, k int, cfg Config) {
	if m <= 0 || n <= 0 || k <= 0 {
		return
	}
	checkTiled32(m, n)
	matMulRowsBF16(c, at, b, m, n, k, cfg.blockSize(tile.Width32), n, 0)
}

// MatMulATBF16Strided is the strided bfloat16 variant; see
// MatMulATF16Strided.
func MatMulATBF16Strided(c, at, b []floatx.BFloat16, m, n, k, ldc, coff int, cfg Config) {
	if m <= 0 || n <= 0 || k <= 0 {
		return
	}
	checkTiled32(m, n)
	matMulRowsBF16(c, at, b, m, n, k, cfg.blockSize(tile.Width32), ldc, coff)
}

func matMulRowsBF16(c, at, b []floatx.BFloat16, m, n, k, blockSize, ldc, coff int) {
	var (
		acc    tile.Accumulator32
		uw, vw [tile.Width32]float32
		row    [tile.Width32]float32
	)
	for i0 := 0; i0 < m; i0 += blockSize {
		iEnd := min(i0+blockSize, m)
		for j0 := 0; j0 < n; j0 += blockSize {
			jEnd := min(j0+blockSize, n)

			for ti := i0; ti < iEnd; ti += tile.Width32 {
				for tj := j0; tj < jEnd; tj += tile.Width32 {
					acc.Zero()
					for kk := 0; kk < k; kk++ {
						aOff := kk*m + ti
						bOff := kk*n + tj
						floatx.BFloat16ToFloat32Slice(uw[:], at[aOff:aOff+tile.Width32])
						floatx.BFloat16ToFloat32Slice(vw[:], b[bOff:bOff+tile.Width32])
						acc.RankOne(uw[:], vw[:])
					}
					for r := 0; r < tile.Width32; r++ {
						acc.StoreRow(r, row[:])
						cOff := (ti+r)*ldc + coff + tj
						floatx.Float32ToBFloat16Slice(c[cOff:cOff+tile.Width32], row[:])
					}
				}
			}
		}
	}
}
