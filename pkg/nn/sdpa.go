// Package nn implements scaled dot-product attention on top of the tiled
// outer-product engine, using a streaming (online) softmax so the full
// seqLen×kvLen score matrix is never materialized. Memory is
// O(seqLen·headDim) regardless of kvLen.
package nn

import (
	"math"

	"github.com/samcharles93/zatile/internal/fastmath"
	"github.com/samcharles93/zatile/pkg/tile"
)

// SDPA computes out = softmax(scale·Q·Kᵗ + mask)·V.
//
//	q    is seqLen×headDim (row-major)
//	kt   is headDim×kvLen (K pre-transposed, row-major)
//	v    is kvLen×headDim (row-major)
//	mask is seqLen×kvLen additive, or nil
//	out  is seqLen×headDim (row-major, overwritten)
//
// Query rows are processed in tiles of 16; for each row a running max,
// running sum and output accumulator are maintained across key/value
// column tiles. Whenever the max increases, the sum and the accumulated
// output row are rescaled by exp(oldMax-newMax), which keeps the result
// identical to an unblocked softmax. Rows whose final sum is exactly zero
// (fully masked) are left all-zero rather than dividing to NaN.
//
// seqLen and kvLen need not be tile multiples; padding query rows
// contribute zero to the score tile and padding key columns get zero
// weight. Non-positive dimensions return immediately.
func SDPA(out, q, kt, v, mask []float32, seqLen, kvLen, headDim int, scale float32) {
	if seqLen <= 0 || kvLen <= 0 || headDim <= 0 {
		return
	}

	negInf := float32(math.Inf(-1))

	var (
		acc        tile.Accumulator32
		qCol, ktRw [tile.Width32]float32
		sRow, pRow [tile.Width32]float32
		mArr, lArr [tile.Width32]float32
	)

	for qi := 0; qi < seqLen; qi += tile.Width32 {
		qRows := min(tile.Width32, seqLen-qi)

		for r := range tile.Width32 {
			mArr[r] = negInf
			lArr[r] = 0
		}
		for r := 0; r < qRows; r++ {
			off := (qi + r) * headDim
			clear(out[off : off+headDim])
		}

		for kj := 0; kj < kvLen; kj += tile.Width32 {
			kCols := min(tile.Width32, kvLen-kj)

			// Score sub-tile S = Q_block · Kᵗ_block via rank-1 updates
			// over headDim. Q columns are gathered strided from
			// row-major Q, zero-padded past seqLen; Kᵗ rows are
			// contiguous, zero-padded past kvLen.
			acc.Zero()
			for dd := 0; dd < headDim; dd++ {
				for r := range tile.Width32 {
					if qi+r < seqLen {
						qCol[r] = q[(qi+r)*headDim+dd]
					} else {
						qCol[r] = 0
					}
				}
				ktOff := dd*kvLen + kj
				if kCols == tile.Width32 {
					acc.RankOne(qCol[:], kt[ktOff:])
				} else {
					copy(ktRw[:kCols], kt[ktOff:ktOff+kCols])
					clear(ktRw[kCols:])
					acc.RankOne(qCol[:], ktRw[:])
				}
			}

			for row := 0; row < qRows; row++ {
				acc.StoreRow(row, sRow[:])

				// Scale + mask, find the new row max. Out-of-range
				// columns are forced to -Inf so they cannot win.
				rowMax := mArr[row]
				for col := range tile.Width32 {
					if kj+col >= kvLen {
						sRow[col] = negInf
						continue
					}
					sRow[col] *= scale
					if mask != nil {
						sRow[col] += mask[(qi+row)*kvLen+kj+col]
					}
					if sRow[col] > rowMax {
						rowMax = sRow[col]
					}
				}

				mPrev := mArr[row]
				mNew := rowMax
				mArr[row] = mNew

				oOff := (qi + row) * headDim
				if mPrev != negInf {
					alpha := fastmath.Exp32(mPrev - mNew)
					lArr[row] *= alpha
					scaleRow(out[oOff:oOff+headDim], alpha)
				}

				if mNew == negInf {
					// Every score so far is -Inf; the whole tile has
					// zero weight and exp(-Inf - -Inf) is undefined.
					continue
				}

				rowSum := float32(0)
				for col := range tile.Width32 {
					if kj+col >= kvLen {
						pRow[col] = 0
						continue
					}
					w := fastmath.Exp32(sRow[col] - mNew)
					pRow[col] = w
					rowSum += w
				}
				lArr[row] += rowSum

				for col := 0; col < kCols; col++ {
					w := pRow[col]
					if w == 0 {
						continue
					}
					vOff := (kj + col) * headDim
					axpyRow(out[oOff:oOff+headDim], v[vOff:vOff+headDim], w)
				}
			}
		}

		for r := 0; r < qRows; r++ {
			if lArr[r] == 0 {
				continue
			}
			oOff := (qi + r) * headDim
			scaleRow(out[oOff:oOff+headDim], 1/lArr[r])
		}
	}
}

// SDPA64 is the float64 driver with 8-wide tiles. Semantics match SDPA.
func SDPA64(out, q, kt, v, mask []float64, seqLen, kvLen, headDim int, scale float64) {
	if seqLen <= 0 || kvLen <= 0 || headDim <= 0 {
		return
	}

	negInf := math.Inf(-1)

	var (
		acc        tile.Accumulator64
		qCol, ktRw [tile.Width64]float64
		sRow, pRow [tile.Width64]float64
		mArr, lArr [tile.Width64]float64
	)

	for qi := 0; qi < seqLen; qi += tile.Width64 {
		qRows := min(tile.Width64, seqLen-qi)

		for r := range tile.Width64 {
			mArr[r] = negInf
			lArr[r] = 0
		}
		for r := 0; r < qRows; r++ {
			off := (qi + r) * headDim
			clear(out[off : off+headDim])
		}

		for kj := 0; kj < kvLen; kj += tile.Width64 {
			kCols := min(tile.Width64, kvLen-kj)

			acc.Zero()
			for dd := 0; dd < headDim; dd++ {
				for r := range tile.Width64 {
					if qi+r < seqLen {
						qCol[r] = q[(qi+r)*headDim+dd]
					} else {
						qCol[r] = 0
					}
				}
				ktOff := dd*kvLen + kj
				if kCols == tile.Width64 {
					acc.RankOne(qCol[:], kt[ktOff:])
				} else {
					copy(ktRw[:kCols], kt[ktOff:ktOff+kCols])
					clear(ktRw[kCols:])
					acc.RankOne(qCol[:], ktRw[:])
				}
			}

			for row := 0; row < qRows; row++ {
				acc.StoreRow(row, sRow[:])

				rowMax := mArr[row]
				for col := range tile.Width64 {
					if kj+col >= kvLen {
						sRow[col] = negInf
						continue
					}
					sRow[col] *= scale
					if mask != nil {
						sRow[col] += mask[(qi+row)*kvLen+kj+col]
					}
					if sRow[col] > rowMax {
						rowMax = sRow[col]
					}
				}

				mPrev := mArr[row]
				mNew := rowMax
				mArr[row] = mNew

				oOff := (qi + row) * headDim
				if mPrev != negInf {
					alpha := fastmath.Exp64(mPrev - mNew)
					lArr[row] *= alpha
					for p := oOff; p < oOff+headDim; p++ {
						out[p] *= alpha
					}
				}

				if mNew == negInf {
					continue
				}

				rowSum := float64(0)
				for col := range tile.Width64 {
					if kj+col >= kvLen {
						pRow[col] = 0
						continue
					}
					w := fastmath.Exp64(sRow[col] - mNew)
					pRow[col] = w
					rowSum += w
				}
				lArr[row] += rowSum

				for col := 0; col < kCols; col++ {
					w := pRow[col]
					if w == 0 {
						continue
					}
					vOff := (kj + col) * headDim
					for p := 0; p < headDim; p++ {
						out[oOff+p] += w * v[vOff+p]
					}
				}
			}
		}

		for r := 0; r < qRows; r++ {
			if lArr[r] == 0 {
				continue
			}
			oOff := (qi + r) * headDim
			inv := 1 / lArr[r]
			for p := oOff; p < oOff+headDim; p++ {
				out[p] *= inv
			}
		}
	}
}
