package nn

import (
	"math"

	"simd/archsimd"

	"github.com/samcharles93/zatile/internal/fastmath"
)

// CPUFeatures holds detected CPU capabilities, checked once at init.
type CPUFeatures struct {
	HasAVX2 bool
}

var cpu CPUFeatures

func init() {
	cpu.HasAVX2 = archsimd.X86.AVX2()
}

// scaleRow multiplies dst in place by s.
func scaleRow(dst []float32, s float32) {
	n := len(dst)
	i := 0
	if cpu.HasAVX2 {
		vs := archsimd.BroadcastFloat32x8(s)
		for ; i+8 <= n; i += 8 {
			v := archsimd.LoadFloat32x8Slice(dst[i:])
			v = v.Mul(vs)
			v.StoreSlice(dst[i:])
		}
	}
	for ; i < n; i++ {
		dst[i] *= s
	}
}

// axpyRow computes dst += w * src.
func axpyRow(dst, src []float32, w float32) {
	n := len(dst)
	i := 0
	if cpu.HasAVX2 {
		vw := archsimd.BroadcastFloat32x8(w)
		for ; i+8 <= n; i += 8 {
			vd := archsimd.LoadFloat32x8Slice(dst[i:])
			vs := archsimd.LoadFloat32x8Slice(src[i:])
			vd = vd.Add(vs.Mul(vw))
			vd.StoreSlice(dst[i:])
		}
	}
	for ; i < n; i++ {
		dst[i] += w * src[i]
	}
}

// Softmax computes softmax over x in place with max subtraction for
// stability. A slice whose maximum is -Inf is left untouched (every weight
// would be zero).
func Softmax(x []float32) {
	if len(x) == 0 {
		return
	}
	maxv := x[0]
	for _, v := range x[1:] {
		if v > maxv {
			maxv = v
		}
	}
	if maxv == float32(math.Inf(-1)) {
		return
	}
	var sum float32
	for i := range x {
		x[i] = fastmath.Exp32(x[i] - maxv)
		sum += x[i]
	}
	if sum == 0 {
		return
	}
	inv := 1 / sum
	for i := range x {
		x[i] *= inv
	}
}
