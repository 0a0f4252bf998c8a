// Package floatx provides 16-bit float storage types and their conversions
// to and from float32.
//
// Two layouts are supported: IEEE 754 binary16 (Float16) and bfloat16
// (BFloat16, the upper half of a float32). Conversions are pure bit
// manipulation so they behave identically on every platform. The narrowing
// direction rounds to nearest even.
package floatx

import "math"

// Float16 is an IEEE 754 binary16 value stored as its bit pattern.
type Float16 uint16

// BFloat16 is a bfloat16 value stored as its bit pattern. The format is the
// upper 16 bits of the equivalent float32.
type BFloat16 uint16

// f32ExpAdjust shifts between the float32 exponent bias (127) and the
// float16 exponent bias (15): (127-15) << 23.
const f32ExpAdjust = uint32(112) << 23

// Float16FromFloat32 narrows f to binary16.
//
// Normalized values are converted by subtracting the exponent bias
// difference and shifting the mantissa right 13 bits with round to nearest
// even. Values too large for binary16 become Inf, values too small become
// signed zero, and NaN stays NaN.
func Float16FromFloat32(f float32) Float16 {
	bits := math.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23) & 0xFF
	mant := bits & 0x7FFFFF

	switch {
	case exp == 0xFF:
		if mant != 0 {
			return Float16(sign | 0x7E00) // quiet NaN
		}
		return Float16(sign | 0x7C00)
	case exp > 127+15:
		// Overflow to Inf.
		return Float16(sign | 0x7C00)
	case exp < 127-14:
		// Underflow; binary16 subnormals are flushed to zero.
		return Float16(sign)
	}

	// Exponent bias adjust, then round-to-nearest-even: add 0xFFF plus the
	// bit about to become the new LSB, and let the carry propagate into the
	// exponent field (this promotes 0x3FF.8 style mantissas correctly).
	v := bits - f32ExpAdjust
	v += (v >> 13 & 1) + 0xFFF
	return Float16(sign | uint16(v>>13)&0x7FFF)
}

// Float32 widens h to float32. Exact for every finite binary16 value.
func (h Float16) Float32() float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h>>10) & 0x1F
	mant := uint32(h) & 0x3FF

	switch exp {
	case 0:
		if mant == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal: value is mant * 2^-24.
		f := float32(mant) / (1 << 24)
		if sign != 0 {
			f = -f
		}
		return f
	case 0x1F:
		out := sign | 0x7F800000
		if mant != 0 {
			out |= mant << 13
		}
		return math.Float32frombits(out)
	}

	// The common path used by the tiled kernels: shift the mantissa left 13
	// and add the exponent bias difference.
	return math.Float32frombits(sign | (uint32(h&0x7FFF)<<13 + f32ExpAdjust))
}

// BFloat16FromFloat32 narrows f to bfloat16 with round to nearest even.
// NaN is preserved (a payload bit is forced so rounding cannot quiet it to
// Inf).
func BFloat16FromFloat32(f float32) BFloat16 {
	bits := math.Float32bits(f)
	if bits&0x7F800000 == 0x7F800000 && bits&0x7FFFFF != 0 {
		return BFloat16(bits>>16 | 0x40)
	}
	bits += (bits >> 16 & 1) + 0x7FFF
	return BFloat16(bits >> 16)
}

// Float32 widens b to float32. Exact for every bfloat16 value.
func (b BFloat16) Float32() float32 {
	return math.Float32frombits(uint32(b) << 16)
}

// Float16ToFloat32Slice widens src into dst. dst must be at least as long
// as src.
func Float16ToFloat32Slice(dst []float32, src []Float16) {
	for i, h := range src {
		dst[i] = h.Float32()
	}
}

// Float32ToFloat16Slice narrows src into dst. dst must be at least as long
// as src.
func Float32ToFloat16Slice(dst []Float16, src []float32) {
	for i, f := range src {
		dst[i] = Float16FromFloat32(f)
	}
}

// BFloat16ToFloat32Slice widens src into dst.
func BFloat16ToFloat32Slice(dst []float32, src []BFloat16) {
	for i, b := range src {
		dst[i] = b.Float32()
	}
}

// Float32ToBFloat16Slice narrows src into dst.
func Float32ToBFloat16Slice(dst []BFloat16, src []float32) {
	for i, f := range src {
		dst[i] = BFloat16FromFloat32(f)
	}
}
