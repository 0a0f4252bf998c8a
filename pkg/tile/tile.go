// Package tile implements the outer-product accumulator at the heart of the
// tiled matmul and attention drivers.
//
// An accumulator holds one square output sub-block and is built up by
// repeated rank-1 updates acc[i][j] += u[i]*v[j] over the shared K
// dimension. The tile width is fixed per element type: 16 for float32, 8
// for float64. The accumulator is an explicit value rather than implicit
// machine state; callers zero it at tile entry and read it out at tile
// exit, and must not share one accumulator across concurrent tiles.
package tile

import "simd/archsimd"

const (
	// Width32 is the native tile width for float32 accumulation.
	Width32 = 16
	// Width64 is the native tile width for float64 accumulation.
	Width64 = 8
)

// Accumulator32 is a 16×16 float32 accumulator tile.
//
// The zero value is ready to use, but Zero must still be called before each
// tile's K loop: the accumulator carries whatever the previous tile left
// behind, there is no implicit reset.
type Accumulator32 struct {
	data [Width32 * Width32]float32
}

// Zero clears the accumulator.
func (a *Accumulator32) Zero() {
	clear(a.data[:])
}

// RankOne accumulates the outer product of u and v: a[i][j] += u[i]*v[j].
// Both slices must hold at least Width32 elements.
func (a *Accumulator32) RankOne(u, v []float32) {
	u = u[:Width32]
	v = v[:Width32]

	if cpu.HasAVX2 {
		vlo := archsimd.LoadFloat32x8Slice(v[:8])
		vhi := archsimd.LoadFloat32x8Slice(v[8:])
		for i := range Width32 {
			row := a.data[i*Width32 : i*Width32+Width32]
			vu := archsimd.BroadcastFloat32x8(u[i])
			acc0 := archsimd.LoadFloat32x8Slice(row[:8])
			acc0 = acc0.Add(vlo.Mul(vu))
			acc0.StoreSlice(row[:8])
			acc1 := archsimd.LoadFloat32x8Slice(row[8:])
			acc1 = acc1.Add(vhi.Mul(vu))
			acc1.StoreSlice(row[8:])
		}
		return
	}

	for i := range Width32 {
		ui := u[i]
		row := a.data[i*Width32 : i*Width32+Width32]
		for j, vj := range v {
			row[j] += ui * vj
		}
	}
}

// StoreRow copies row i of the tile into dst. dst must hold at least
// Width32 elements.
func (a *Accumulator32) StoreRow(i int, dst []float32) {
	copy(dst[:Width32], a.data[i*Width32:i*Width32+Width32])
}

// Store reads the whole tile out row by row into dst, whose rows are
// stride elements apart.
func (a *Accumulator32) Store(dst []float32, stride int) {
	for i := range Width32 {
		copy(dst[i*stride:i*stride+Width32], a.data[i*Width32:i*Width32+Width32])
	}
}

// Accumulator64 is the 8×8 float64 accumulator tile.
type Accumulator64 struct {
	data [Width64 * Width64]float64
}

// Zero clears the accumulator.
func (a *Accumulator64) Zero() {
	clear(a.data[:])
}

// RankOne accumulates the outer product of u and v: a[i][j] += u[i]*v[j].
// Both slices must hold at least Width64 elements.
func (a *Accumulator64) RankOne(u, v []float64) {
	u = u[:Width64]
	v = v[:Width64]
	for i := range Width64 {
		ui := u[i]
		row := a.data[i*Width64 : i*Width64+Width64]
		for j, vj := range v {
			row[j] += ui * vj
		}
	}
}

// StoreRow copies row i of the tile into dst. dst must hold at least
// Width64 elements.
func (a *Accumulator64) StoreRow(i int, dst []float64) {
	copy(dst[:Width64], a.data[i*Width64:i*Width64+Width64])
}

// Store reads the whole tile out row by row into dst, whose rows are
// stride elements apart.
func (a *Accumulator64) Store(dst []float64, stride int) {
	for i := range Width64 {
		copy(dst[i*stride:i*stride+Width64], a.data[i*Width64:i*Width64+Width64])
	}
}
