// Package matmul implements cache-blocked tiled matrix multiplication on
// top of the outer-product accumulator in pkg/tile.
//
// All drivers share one calling convention: the A operand is supplied
// pre-transposed (K-major) so that the per-K column loads feeding the
// accumulator are contiguous, B is K×N row-major, and C is M×N row-major.
// Buffers are caller-owned; the drivers never allocate on the hot path.
package matmul

import "github.com/samcharles93/zatile/pkg/tile"

// Tuned for L1 on the reference machine; any multiple of the tile width
// works and changes only iteration order, not which products are summed.
const defaultBlockSize = 48

// Config carries the runtime-tunable blocking parameters.
type Config struct {
	// BlockSize is the M/N cache block edge. It is rounded up to a
	// multiple of the tile width; zero or negative selects the default.
	BlockSize int
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{BlockSize: defaultBlockSize}
}

func (c Config) blockSize(width int) int {
	bs := c.BlockSize
	if bs <= 0 {
		bs = defaultBlockSize
	}
	if rem := bs % width; rem != 0 {
		bs += width - rem
	}
	return bs
}

// MatMulAT computes C = A·B for float32 with A supplied transposed.
//
//	at is K×M (row-major, so rows are original A columns)
//	b  is K×N (row-major)
//	c  is M×N (row-major, overwritten)
//
// M and N must be multiples of tile.Width32; the driver panics otherwise
// rather than reading out of bounds. K has no alignment requirement and is
// always swept in full per tile: blocking K would force the accumulator
// through memory round-trips mid-tile. Non-positive dimensions are a no-op.
func MatMulAT(c, at, b []float32, m, n, k int, cfg Config) {
	if m <= 0 || n <= 0 || k <= 0 {
		return
	}
	checkTiled32(m, n)
	var acc tile.Accumulator32
	matMulRows32(&acc, c, at, b, m, n, k, 0, m, cfg.blockSize(tile.Width32))
}

// matMulRows32 runs the blocked driver over output rows [rs, re), both
// multiples of the tile width. The accumulator is owned by the caller so a
// worker can reuse one across its whole row range.
func matMulRows32(acc *tile.Accumulator32, c, at, b []float32, m, n, k, rs, re, blockSize int) {
	for i0 := rs; i0 < re; i0 += blockSize {
		iEnd := min(i0+blockSize, re)
		for j0 := 0; j0 < n; j0 += blockSize {
			jEnd := min(j0+blockSize, n)

			for ti := i0; ti < iEnd; ti += tile.Width32 {
				for tj := j0; tj < jEnd; tj += tile.Width32 {
					acc.Zero()
					for kk := 0; kk < k; kk++ {
						// A column at[kk, ti:ti+16] and B row
						// b[kk, tj:tj+16], both contiguous.
						acc.RankOne(at[kk*m+ti:], b[kk*n+tj:])
					}
					acc.Store(c[ti*n+tj:], n)
				}
			}
		}
	}
}

// MatMulAT64 is the float64 driver with 8×8 tiles. M and N must be
// multiples of tile.Width64.
func MatMulAT64(c, at, b []float64, m, n, k int, cfg Config) {
	if m <= 0 || n <= 0 || k <= 0 {
		return
	}
	checkTiled64(m, n)
	blockSize := cfg.blockSize(tile.Width64)

	var acc tile.Accumulator64
	for i0 := 0; i0 < m; i0 += blockSize {
		iEnd := min(i0+blockSize, m)
		for j0 := 0; j0 < n; j0 += blockSize {
			jEnd := min(j0+blockSize, n)

			for ti := i0; ti < iEnd; ti += tile.Width64 {
				for tj := j0; tj < jEnd; tj += tile.Width64 {
					acc.Zero()
					for kk := 0; kk < k; kk++ {
						acc.RankOne(at[kk*m+ti:], b[kk*n+tj:])
					}
					acc.Store(c[ti*n+tj:], n)
				}
			}
		}
	}
}

func checkTiled32(m, n int) {
	if m%tile.Width32 != 0 || n%tile.Width32 != 0 {
		panic("matmul: M and N must be multiples of 16")
	}
}

func checkTiled64(m, n int) {
	if m%tile.Width64 != 0 || n%tile.Width64 != 0 {
		panic("matmul: M and N must be multiples of 8")
	}
}
