package floatx

import (
	"math"
	"math/rand"
	"testing"
)

func TestFloat16RoundTripExact(t *testing.T) {
	// Every one of these is exactly representable in binary16 and must
	// survive narrow-then-widen bit for bit.
	values := []float32{
		0, 1, -1, 0.5, -0.5, 2, 1.5, -1.5, 0.25, 1024, -1024,
		65504, -65504, // largest finite binary16
		0.0009765625,  // 2^-10
		6.103515625e-5, // 2^-14, smallest normal
	}
	for _, v := range values {
		got := Float16FromFloat32(v).Float32()
		if got != v {
			t.Fatalf("round trip %g -> %g", v, got)
		}
	}
}

func TestFloat16RoundToNearestEven(t *testing.T) {
	cases := []struct{ in, want float32 }{
		// Halfway between 1.0 and 1+2^-10: ties to even, down.
		{1 + 0x1p-11, 1},
		// Halfway between 1+2^-10 and 1+2^-9: ties to even, up.
		{1 + 3*0x1p-11, 1 + 0x1p-9},
		// Just above halfway rounds up.
		{1 + 0x1p-11 + 0x1p-20, 1 + 0x1p-10},
		// Halfway between 65504 and 65536 overflows to Inf after rounding.
		{65520, float32(math.Inf(1))},
	}
	for _, c := range cases {
		got := Float16FromFloat32(c.in).Float32()
		if got != c.want {
			t.Fatalf("narrow %g: got %g, want %g", c.in, got, c.want)
		}
	}
}

func TestFloat16Specials(t *testing.T) {
	if got := Float16FromFloat32(float32(math.Inf(1))); got != 0x7C00 {
		t.Fatalf("+Inf: got %#04x", uint16(got))
	}
	if got := Float16FromFloat32(float32(math.Inf(-1))); got != 0xFC00 {
		t.Fatalf("-Inf: got %#04x", uint16(got))
	}
	if got := Float16FromFloat32(float32(math.NaN())); !math.IsNaN(float64(got.Float32())) {
		t.Fatalf("NaN did not survive narrowing: %#04x", uint16(got))
	}
	// Values past the binary16 range overflow to Inf.
	if got := Float16FromFloat32(1e9).Float32(); !math.IsInf(float64(got), 1) {
		t.Fatalf("1e9: got %g, want +Inf", got)
	}
	// Values in the subnormal band flush to signed zero.
	if got := Float16FromFloat32(0x1p-15); got != 0 {
		t.Fatalf("2^-15: got %#04x, want +0", uint16(got))
	}
	if got := Float16FromFloat32(-0x1p-15); got != 0x8000 {
		t.Fatalf("-2^-15: got %#04x, want -0", uint16(got))
	}
}

func TestFloat16WidenSubnormal(t *testing.T) {
	// Narrowing flushes subnormals, but widening externally produced
	// subnormal bit patterns must still be exact.
	if got := Float16(1).Float32(); got != 0x1p-24 {
		t.Fatalf("smallest subnormal: got %g, want %g", got, 0x1p-24)
	}
	if got := Float16(0x83FF).Float32(); got != -(0x3FF * 0x1p-24) {
		t.Fatalf("largest negative subnormal: got %g", got)
	}
	if got := Float16(0x8000).Float32(); math.Float32bits(got) != 0x80000000 {
		t.Fatalf("-0 widened to %#08x", math.Float32bits(got))
	}
}

func TestBFloat16RoundTripExact(t *testing.T) {
	values := []float32{0, 1, -1, 0.5, 2, -2, 0.25, 1024, 3.140625, 0x1p100, -0x1p-100}
	for _, v := range values {
		got := BFloat16FromFloat32(v).Float32()
		if got != v {
			t.Fatalf("round trip %g -> %g", v, got)
		}
	}
}

func TestBFloat16RoundToNearestEven(t *testing.T) {
	cases := []struct{ in, want float32 }{
		{1 + 0x1p-8, 1},             // ties to even, down
		{1 + 3*0x1p-8, 1 + 0x1p-6},  // ties to even, up
		{1 + 0x1p-8 + 0x1p-16, 1 + 0x1p-7},
	}
	for _, c := range cases {
		got := BFloat16FromFloat32(c.in).Float32()
		if got != c.want {
			t.Fatalf("narrow %g: got %g, want %g", c.in, got, c.want)
		}
	}
}

func TestBFloat16Specials(t *testing.T) {
	if got := BFloat16FromFloat32(float32(math.Inf(1))); got != 0x7F80 {
		t.Fatalf("+Inf: got %#04x", uint16(got))
	}
	if got := BFloat16FromFloat32(float32(math.NaN())); !math.IsNaN(float64(got.Float32())) {
		t.Fatalf("NaN did not survive narrowing: %#04x", uint16(got))
	}
	// Rounding must not carry a NaN payload into Inf.
	weird := math.Float32frombits(0x7F800001)
	if got := BFloat16FromFloat32(weird); !math.IsNaN(float64(got.Float32())) {
		t.Fatalf("minimal NaN payload became %#04x", uint16(got))
	}
}

func TestWidenIsExactForAllBFloat16(t *testing.T) {
	// bfloat16 -> float32 -> bfloat16 is the identity for every finite bit
	// pattern.
	for b := 0; b < 1<<16; b++ {
		v := BFloat16(b)
		f := v.Float32()
		if math.IsNaN(float64(f)) {
			continue
		}
		if got := BFloat16FromFloat32(f); got != v {
			t.Fatalf("pattern %#04x: round trip gave %#04x", b, uint16(got))
		}
	}
}

func TestSliceConverters(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	src := make([]float32, 100)
	for i := range src {
		src[i] = rng.Float32()*16 - 8
	}

	h := make([]Float16, len(src))
	Float32ToFloat16Slice(h, src)
	back := make([]float32, len(src))
	Float16ToFloat32Slice(back, h)
	for i := range src {
		if d := math.Abs(float64(back[i] - src[i])); d > 8*0x1p-11 {
			t.Fatalf("f16 slice element %d: %g vs %g", i, back[i], src[i])
		}
	}

	bf := make([]BFloat16, len(src))
	Float32ToBFloat16Slice(bf, src)
	BFloat16ToFloat32Slice(back, bf)
	for i := range src {
		if d := math.Abs(float64(back[i] - src[i])); d > 8*0x1p-8 {
			t.Fatalf("bf16 slice element %d: %g vs %g", i, back[i], src[i])
		}
	}
}
