package nn

import (
	"math"
	"math/rand"
	"testing"
)

func randSlice(rng *rand.Rand, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = rng.Float32()*2 - 1
	}
	return s
}

// transposeK builds the headDim×kvLen layout the driver takes from a
// kvLen×headDim K matrix.
func transposeK(k []float32, kvLen, headDim int) []float32 {
	kt := make([]float32, headDim*kvLen)
	for i := 0; i < kvLen; i++ {
		for d := 0; d < headDim; d++ {
			kt[d*kvLen+i] = k[i*headDim+d]
		}
	}
	return kt
}

// referenceSDPA materializes the full score matrix and computes softmax
// with math.Exp in float64.
func referenceSDPA(q, k, v, mask []float32, seqLen, kvLen, headDim int, scale float32) []float32 {
	out := make([]float32, seqLen*headDim)
	scores := make([]float64, kvLen)
	for i := 0; i < seqLen; i++ {
		for j := 0; j < kvLen; j++ {
			var dot float64
			for d := 0; d < headDim; d++ {
				dot += float64(q[i*headDim+d]) * float64(k[j*headDim+d])
			}
			s := dot * float64(scale)
			if mask != nil {
				s += float64(mask[i*kvLen+j])
			}
			scores[j] = s
		}
		maxs := math.Inf(-1)
		for _, s := range scores {
			if s > maxs {
				maxs = s
			}
		}
		var sum float64
		weights := make([]float64, kvLen)
		for j, s := range scores {
			if math.IsInf(maxs, -1) {
				continue
			}
			weights[j] = math.Exp(s - maxs)
			sum += weights[j]
		}
		if sum == 0 {
			continue
		}
		for j := 0; j < kvLen; j++ {
			w := weights[j] / sum
			for d := 0; d < headDim; d++ {
				out[i*headDim+d] += float32(w * float64(v[j*headDim+d]))
			}
		}
	}
	return out
}

func compareSlices(t *testing.T, got, want []float32, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: %d vs %d", len(got), len(want))
	}
	for i := range got {
		if d := math.Abs(float64(got[i] - want[i])); d > tol {
			t.Fatalf("element %d: got %g, want %g (diff %g)", i, got[i], want[i], d)
		}
	}
}

func TestSDPAMatchesReference(t *testing.T) {
	shapes := []struct{ seqLen, kvLen, headDim int }{
		{4, 4, 8},
		{16, 16, 16},
		{20, 25, 16}, // neither dimension a tile multiple
		{33, 7, 32},
		{5, 40, 64},
	}
	rng := rand.New(rand.NewSource(1))
	for _, s := range shapes {
		scale := float32(1.0 / math.Sqrt(float64(s.headDim)))
		q := randSlice(rng, s.seqLen*s.headDim)
		k := randSlice(rng, s.kvLen*s.headDim)
		v := randSlice(rng, s.kvLen*s.headDim)
		kt := transposeK(k, s.kvLen, s.headDim)

		got := make([]float32, s.seqLen*s.headDim)
		SDPA(got, q, kt, v, nil, s.seqLen, s.kvLen, s.headDim, scale)

		want := referenceSDPA(q, k, v, nil, s.seqLen, s.kvLen, s.headDim, scale)
		compareSlices(t, got, want, 1e-4)
	}
}

func TestSDPAWithMask(t *testing.T) {
	const seqLen, kvLen, headDim = 8, 12, 16
	rng := rand.New(rand.NewSource(2))
	scale := float32(1.0 / math.Sqrt(float64(headDim)))
	q := randSlice(rng, seqLen*headDim)
	k := randSlice(rng, kvLen*headDim)
	v := randSlice(rng, kvLen*headDim)
	kt := transposeK(k, kvLen, headDim)

	// Causal-style mask with a bias on the visible part.
	negInf := float32(math.Inf(-1))
	mask := make([]float32, seqLen*kvLen)
	for i := 0; i < seqLen; i++ {
		for j := 0; j < kvLen; j++ {
			if j > i {
				mask[i*kvLen+j] = negInf
			} else {
				mask[i*kvLen+j] = 0.1 * float32(j)
			}
		}
	}

	got := make([]float32, seqLen*headDim)
	SDPA(got, q, kt, v, mask, seqLen, kvLen, headDim, scale)

	want := referenceSDPA(q, k, v, mask, seqLen, kvLen, headDim, scale)
	compareSlices(t, got, want, 1e-4)
}

func TestSDPAFullyMaskedRowIsZero(t *testing.T) {
	const seqLen, kvLen, headDim = 3, 5, 8
	rng := rand.New(rand.NewSource(3))
	q := randSlice(rng, seqLen*headDim)
	k := randSlice(rng, kvLen*headDim)
	v := randSlice(rng, kvLen*headDim)
	kt := transposeK(k, kvLen, headDim)

	negInf := float32(math.Inf(-1))
	mask := make([]float32, seqLen*kvLen)
	// Row 1 fully masked, others open.
	for j := 0; j < kvLen; j++ {
		mask[1*kvLen+j] = negInf
	}

	got := make([]float32, seqLen*headDim)
	SDPA(got, q, kt, v, mask, seqLen, kvLen, headDim, 1)

	for d := 0; d < headDim; d++ {
		if x := got[1*headDim+d]; x != 0 || math.IsNaN(float64(x)) {
			t.Fatalf("masked row element %d = %g, want 0", d, x)
		}
	}
	// Open rows still match the reference.
	want := referenceSDPA(q, k, v, mask, seqLen, kvLen, headDim, 1)
	compareSlices(t, got, want, 1e-4)
}

func TestSDPASingleRowReturnsV(t *testing.T) {
	// One query, one key: softmax of a single logit is 1, so the output
	// must be V's row exactly.
	q := []float32{0.3, -0.2, 0.9, 0.5}
	k := []float32{1, 2, 3, 4}
	v := []float32{-1.5, 2.25, 0.125, 7}
	kt := transposeK(k, 1, 4)

	got := make([]float32, 4)
	SDPA(got, q, kt, v, nil, 1, 1, 4, 1)

	for i := range got {
		if got[i] != v[i] {
			t.Fatalf("element %d: got %g, want %g", i, got[i], v[i])
		}
	}
}

func TestSDPADegenerateDims(t *testing.T) {
	out := []float32{5}
	SDPA(out, nil, nil, nil, nil, 0, 1, 1, 1)
	SDPA(out, nil, nil, nil, nil, 1, 0, 1, 1)
	SDPA(out, nil, nil, nil, nil, 1, 1, -3, 1)
	if out[0] != 5 {
		t.Fatalf("degenerate call wrote output")
	}
}

func TestSDPA64MatchesReference(t *testing.T) {
	const seqLen, kvLen, headDim = 10, 13, 8
	rng := rand.New(rand.NewSource(4))
	scale := 1.0 / math.Sqrt(float64(headDim))

	q := make([]float64, seqLen*headDim)
	k := make([]float64, kvLen*headDim)
	v := make([]float64, kvLen*headDim)
	for i := range q {
		q[i] = rng.Float64()*2 - 1
	}
	for i := range k {
		k[i] = rng.Float64()*2 - 1
		v[i] = rng.Float64()*2 - 1
	}
	kt := make([]float64, headDim*kvLen)
	for i := 0; i < kvLen; i++ {
		for d := 0; d < headDim; d++ {
			kt[d*kvLen+i] = k[i*headDim+d]
		}
	}

	got := make([]float64, seqLen*headDim)
	SDPA64(got, q, kt, v, nil, seqLen, kvLen, headDim, scale)

	// Direct reference.
	scores := make([]float64, kvLen)
	for i := 0; i < seqLen; i++ {
		for j := 0; j < kvLen; j++ {
			var dot float64
			for d := 0; d < headDim; d++ {
				dot += q[i*headDim+d] * k[j*headDim+d]
			}
			scores[j] = dot * scale
		}
		maxs := math.Inf(-1)
		for _, s := range scores {
			if s > maxs {
				maxs = s
			}
		}
		var sum float64
		for j := range scores {
			scores[j] = math.Exp(scores[j] - maxs)
			sum += scores[j]
		}
		for d := 0; d < headDim; d++ {
			var acc float64
			for j := 0; j < kvLen; j++ {
				acc += scores[j] / sum * v[j*headDim+d]
			}
			if diff := math.Abs(got[i*headDim+d] - acc); diff > 1e-9 {
				t.Fatalf("row %d dim %d: diff %g", i, d, diff)
			}
		}
	}
}

func TestSoftmax(t *testing.T) {
	x := []float32{1, 2, 3, 4}
	Softmax(x)
	var sum float32
	for i := 1; i < len(x); i++ {
		if x[i] <= x[i-1] {
			t.Fatalf("softmax not monotone over monotone input: %v", x)
		}
	}
	for _, v := range x {
		sum += v
	}
	if d := math.Abs(float64(sum) - 1); d > 1e-5 {
		t.Fatalf("softmax sum = %g", sum)
	}

	// All -Inf input stays untouched rather than producing NaN.
	negInf := float32(math.Inf(-1))
	y := []float32{negInf, negInf}
	Softmax(y)
	for _, v := range y {
		if !math.IsInf(float64(v), -1) {
			t.Fatalf("expected -Inf preserved, got %g", v)
		}
	}
}

func BenchmarkSDPA(b *testing.B) {
	const seqLen, kvLen, headDim = 128, 128, 64
	rng := rand.New(rand.NewSource(5))
	scale := float32(1.0 / math.Sqrt(float64(headDim)))
	q := randSlice(rng, seqLen*headDim)
	k := randSlice(rng, kvLen*headDim)
	v := randSlice(rng, kvLen*headDim)
	kt := transposeK(k, kvLen, headDim)
	out := make([]float32, seqLen*headDim)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SDPA(out, q, kt, v, nil, seqLen, kvLen, headDim, scale)
	}
}
