// Package fastmath holds the scalar polynomial approximations shared by the
// tiled kernels. There is one implementation of each function; the kernels
// must not carry private copies.
package fastmath

import "math"

// Exponential constants. ln2 is split into a high and a low part so the
// range reduction r = x - k*ln2 keeps full precision.
const (
	invLn2f float32 = 1.44269504088896341
	ln2Hif  float32 = 0.693359375
	ln2Lof  float32 = -2.12194440e-4

	// Below this, exp underflows float32; the input is clamped rather than
	// letting the exponent-bit construction wrap.
	expLowf float32 = -87.3365

	invLn2d = 1.4426950408889634
	ln2Hid  = 0.6931471803691238
	ln2Lod  = 1.9082149292705877e-10

	expLowd = -708.396
)

// Exp32 computes e**x for float32 using range reduction and a 6-term Horner
// polynomial. Accuracy is about 1 ulp across the reduced domain, which is
// what the online-softmax drivers need; it is not a bit-exact math.Exp
// replacement.
//
// The argument is clamped below at -87.3365 (the softmax drivers only ever
// pass non-positive arguments, so no upper clamp is applied).
func Exp32(x float32) float32 {
	if x < expLowf {
		x = expLowf
	}

	// k = round(x / ln2)
	kf := x * invLn2f
	var ki int32
	if kf >= 0 {
		ki = int32(kf + 0.5)
	} else {
		ki = int32(kf - 0.5)
	}
	kff := float32(ki)

	// Two-part reduction: r = x - k*ln2.
	r := x - kff*ln2Hif
	r = r - kff*ln2Lof

	p := float32(0.001388888888888889)
	p = 0.008333333333333333 + p*r
	p = 0.041666666666666664 + p*r
	p = 0.16666666666666666 + p*r
	p = 0.5 + p*r
	p = 1.0 + p*r
	p = 1.0 + p*r

	// 2^k via direct exponent-bit construction.
	scale := math.Float32frombits(uint32(ki+127) << 23)
	return p * scale
}

// Exp64 is the float64 twin of Exp32, with an 8-term polynomial and a lower
// clamp at -708.396.
func Exp64(x float64) float64 {
	if x < expLowd {
		x = expLowd
	}

	kf := x * invLn2d
	var ki int64
	if kf >= 0 {
		ki = int64(kf + 0.5)
	} else {
		ki = int64(kf - 0.5)
	}
	kff := float64(ki)

	r := x - kff*ln2Hid
	r = r - kff*ln2Lod

	p := 2.48015873015873015873e-5
	p = 1.98412698412698412698e-4 + p*r
	p = 1.38888888888888888889e-3 + p*r
	p = 8.33333333333333333333e-3 + p*r
	p = 4.16666666666666666667e-2 + p*r
	p = 1.66666666666666666667e-1 + p*r
	p = 0.5 + p*r
	p = 1.0 + p*r
	p = 1.0 + p*r

	scale := math.Float64frombits(uint64(ki+1023) << 52)
	return p * scale
}
