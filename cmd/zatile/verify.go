package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/zatile/pkg/floatx"
	"github.com/samcharles93/zatile/pkg/matmul"
	"github.com/samcharles93/zatile/pkg/nn"
)

// verifyCmd cross-checks every driver against a naive reference on random
// inputs. It is the same comparison the unit tests run, packaged so results
// can be checked quickly on new hardware.
func verifyCmd() *cli.Command {
	var seed int64

	flags := append([]cli.Flag{}, commonKernelFlags()...)
	flags = append(flags,
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "rng seed for the test inputs",
			Value:       1,
			Destination: &seed,
		},
	)

	return &cli.Command{
		Name:  "verify",
		Usage: "Check kernels against naive references",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfgFile, err := loadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			applyKernelConfig(cmd, cfgFile)
			cfg := kernelConfig()
			rng := rand.New(rand.NewSource(seed))

			failed := false
			report := func(name string, diff, tol float64) {
				status := "ok"
				if diff > tol {
					status = "FAIL"
					failed = true
				}
				fmt.Printf("%-22s max|diff| = %.3g (tol %.0e) %s\n", name, diff, tol, status)
			}

			report("matmul f32", verifyMatMul32(rng, cfg), 1e-4)
			report("matmul f32 parallel", verifyParallel(rng, cfg), 1e-4)
			report("matmul f64", verifyMatMul64(rng, cfg), 1e-12)
			report("matmul f16", verifyMatMulF16(rng, cfg), 5e-2)
			report("matmul bf16", verifyMatMulBF16(rng, cfg), 5e-1)
			report("fused int8", verifyFusedInt8(rng), 1e-4)
			report("sdpa f32", verifySDPA(rng), 1e-4)

			if failed {
				return cli.Exit("verification failed", 1)
			}
			return nil
		},
	}
}

func randSlice(rng *rand.Rand, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = rng.Float32()*2 - 1
	}
	return s
}

// naiveMatMulAT multiplies against the same transposed-A layout the
// drivers take.
func naiveMatMulAT(c, at, b []float32, m, n, k int) {
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum float32
			for kk := 0; kk < k; kk++ {
				sum += at[kk*m+i] * b[kk*n+j]
			}
			c[i*n+j] = sum
		}
	}
}

func maxAbsDiff(a, b []float32) float64 {
	var maxAbs float64
	for i := range a {
		d := math.Abs(float64(a[i] - b[i]))
		if d > maxAbs {
			maxAbs = d
		}
	}
	return maxAbs
}

func verifyMatMul32(rng *rand.Rand, cfg matmul.Config) float64 {
	const m, n, k = 64, 80, 37
	at := randSlice(rng, k*m)
	b := randSlice(rng, k*n)
	got := make([]float32, m*n)
	want := make([]float32, m*n)
	matmul.MatMulAT(got, at, b, m, n, k, cfg)
	naiveMatMulAT(want, at, b, m, n, k)
	return maxAbsDiff(got, want)
}

func verifyParallel(rng *rand.Rand, cfg matmul.Config) float64 {
	const m, n, k = 96, 64, 50
	at := randSlice(rng, k*m)
	b := randSlice(rng, k*n)
	got := make([]float32, m*n)
	want := make([]float32, m*n)
	matmul.Parallel(got, at, b, m, n, k, cfg, int(workers))
	naiveMatMulAT(want, at, b, m, n, k)
	return maxAbsDiff(got, want)
}

func verifyMatMul64(rng *rand.Rand, cfg matmul.Config) float64 {
	const m, n, k = 32, 40, 21
	at := make([]float64, k*m)
	b := make([]float64, k*n)
	for i := range at {
		at[i] = rng.Float64()*2 - 1
	}
	for i := range b {
		b[i] = rng.Float64()*2 - 1
	}
	got := make([]float64, m*n)
	matmul.MatMulAT64(got, at, b, m, n, k, cfg)

	var maxAbs float64
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum float64
			for kk := 0; kk < k; kk++ {
				sum += at[kk*m+i] * b[kk*n+j]
			}
			if d := math.Abs(got[i*n+j] - sum); d > maxAbs {
				maxAbs = d
			}
		}
	}
	return maxAbs
}

func verifyMatMulF16(rng *rand.Rand, cfg matmul.Config) float64 {
	const m, n, k = 32, 32, 24
	atf := randSlice(rng, k*m)
	bf := randSlice(rng, k*n)
	at := make([]floatx.Float16, k*m)
	b := make([]floatx.Float16, k*n)
	floatx.Float32ToFloat16Slice(at, atf)
	floatx.Float32ToFloat16Slice(b, bf)

	got := make([]floatx.Float16, m*n)
	matmul.MatMulATF16(got, at, b, m, n, k, cfg)

	// Reference in f32 over the rounded operands.
	atw := make([]float32, k*m)
	bw := make([]float32, k*n)
	floatx.Float16ToFloat32Slice(atw, at)
	floatx.Float16ToFloat32Slice(bw, b)
	want := make([]float32, m*n)
	naiveMatMulAT(want, atw, bw, m, n, k)

	gotw := make([]float32, m*n)
	floatx.Float16ToFloat32Slice(gotw, got)
	return maxAbsDiff(gotw, want)
}

func verifyMatMulBF16(rng *rand.Rand, cfg matmul.Config) float64 {
	const m, n, k = 32, 32, 24
	atf := randSlice(rng, k*m)
	bf := randSlice(rng, k*n)
	at := make([]floatx.BFloat16, k*m)
	b := make([]floatx.BFloat16, k*n)
	floatx.Float32ToBFloat16Slice(at, atf)
	floatx.Float32ToBFloat16Slice(b, bf)

	got := make([]floatx.BFloat16, m*n)
	matmul.MatMulATBF16(got, at, b, m, n, k, cfg)

	atw := make([]float32, k*m)
	bw := make([]float32, k*n)
	floatx.BFloat16ToFloat32Slice(atw, at)
	floatx.BFloat16ToFloat32Slice(bw, b)
	want := make([]float32, m*n)
	naiveMatMulAT(want, atw, bw, m, n, k)

	gotw := make([]float32, m*n)
	floatx.BFloat16ToFloat32Slice(gotw, got)
	return maxAbsDiff(gotw, want)
}

func verifyFusedInt8(rng *rand.Rand) float64 {
	const m, k, n, groupSize = 8, 24, 32, 8
	numGroups := (n + groupSize - 1) / groupSize
	in := randSlice(rng, m*k)
	weights := make([]int8, k*n)
	for i := range weights {
		weights[i] = int8(rng.Intn(256) - 128)
	}
	scales := randSlice(rng, k*numGroups)

	got := make([]float32, m*n)
	matmul.FusedInt8MatMul(got, in, weights, scales, m, k, n, groupSize)

	want := make([]float32, m*n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum float32
			for kk := 0; kk < k; kk++ {
				w := float32(weights[kk*n+j]) * scales[kk*numGroups+j/groupSize]
				sum += in[i*k+kk] * w
			}
			want[i*n+j] = sum
		}
	}
	return maxAbsDiff(got, want)
}

func verifySDPA(rng *rand.Rand) float64 {
	const seqLen, kvLen, headDim = 20, 25, 16
	scale := float32(1.0 / math.Sqrt(float64(headDim)))
	q := randSlice(rng, seqLen*headDim)
	kmat := randSlice(rng, kvLen*headDim)
	v := randSlice(rng, kvLen*headDim)

	kt := make([]float32, headDim*kvLen)
	for i := 0; i < kvLen; i++ {
		for d := 0; d < headDim; d++ {
			kt[d*kvLen+i] = kmat[i*headDim+d]
		}
	}

	got := make([]float32, seqLen*headDim)
	nn.SDPA(got, q, kt, v, nil, seqLen, kvLen, headDim, scale)

	want := referenceSDPA(q, kmat, v, nil, seqLen, kvLen, headDim, scale)
	return maxAbsDiff(got, want)
}

// referenceSDPA materializes the full score matrix and uses exact softmax.
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
		for j := range scores {
			if math.IsInf(maxs, -1) {
				scores[j] = 0
				continue
			}
			scores[j] = math.Exp(scores[j] - maxs)
			sum += scores[j]
		}
		if sum == 0 {
			continue
		}
		for j := 0; j < kvLen; j++ {
			w := scores[j] / sum
			for d := 0; d < headDim; d++ {
				out[i*headDim+d] += float32(w * float64(v[j*headDim+d]))
			}
		}
	}
	return out
}
