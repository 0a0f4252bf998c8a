package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/zatile/internal/hostinfo"
	"github.com/samcharles93/zatile/pkg/floatx"
	"github.com/samcharles93/zatile/pkg/matmul"
	"github.com/samcharles93/zatile/pkg/nn"
)

func benchmarkCmd() *cli.Command {
	var (
		size       int64
		warmupRuns int64
		benchRuns  int64
	)

	flags := append([]cli.Flag{}, commonKernelFlags()...)
	flags = append(flags,
		&cli.Int64Flag{
			Name:        "size",
			Aliases:     []string{"s"},
			Usage:       "square problem size (multiple of 16)",
			Value:       256,
			Destination: &size,
		},
		&cli.Int64Flag{
			Name:        "warmup",
			Usage:       "number of warmup runs",
			Value:       1,
			Destination: &warmupRuns,
		},
		&cli.Int64Flag{
			Name:        "runs",
			Usage:       "number of benchmark runs",
			Value:       3,
			Destination: &benchRuns,
		},
	)

	return &cli.Command{
		Name:  "benchmark",
		Usage: "Run standardized kernel benchmarks",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfgFile, err := loadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			applyKernelConfig(cmd, cfgFile)
			cfg := kernelConfig()

			dim := int(size)
			if dim <= 0 || dim%16 != 0 {
				return cli.Exit("error: size must be a positive multiple of 16", 1)
			}

			fmt.Println("=== Zatile Benchmark ===")
			fmt.Printf("Size:       %d\n", dim)
			fmt.Printf("BlockSize:  %d\n", cfg.BlockSize)
			fmt.Printf("CPU:        %s\n", hostinfo.Detect())
			fmt.Printf("CPUs:       %d\n", runtime.NumCPU())
			fmt.Printf("GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))
			fmt.Printf("Warmup:     %d runs\n", warmupRuns)
			fmt.Printf("Runs:       %d\n", benchRuns)
			fmt.Println()

			rng := rand.New(rand.NewSource(42))
			at := randSlice(rng, dim*dim)
			b := randSlice(rng, dim*dim)
			c := make([]float32, dim*dim)

			// 2*M*N*K flops per matmul.
			flops := 2 * float64(dim) * float64(dim) * float64(dim)

			bench := func(name string, fn func()) {
				for range int(warmupRuns) {
					fn()
				}
				best := time.Duration(math.MaxInt64)
				for range int(benchRuns) {
					start := time.Now()
					fn()
					if d := time.Since(start); d < best {
						best = d
					}
				}
				fmt.Printf("%-18s %12s   %8.2f GFLOP/s\n",
					name, best.Round(time.Microsecond), flops/best.Seconds()/1e9)
			}

			bench("matmul f32", func() {
				matmul.MatMulAT(c, at, b, dim, dim, dim, cfg)
			})
			bench("matmul f32 par", func() {
				matmul.Parallel(c, at, b, dim, dim, dim, cfg, int(workers))
			})

			at16 := make([]floatx.Float16, dim*dim)
			b16 := make([]floatx.Float16, dim*dim)
			c16 := make([]floatx.Float16, dim*dim)
			floatx.Float32ToFloat16Slice(at16, at)
			floatx.Float32ToFloat16Slice(b16, b)
			bench("matmul f16", func() {
				matmul.MatMulATF16(c16, at16, b16, dim, dim, dim, cfg)
			})

			atb := make([]floatx.BFloat16, dim*dim)
			bb := make([]floatx.BFloat16, dim*dim)
			cb := make([]floatx.BFloat16, dim*dim)
			floatx.Float32ToBFloat16Slice(atb, at)
			floatx.Float32ToBFloat16Slice(bb, b)
			bench("matmul bf16", func() {
				matmul.MatMulATBF16(cb, atb, bb, dim, dim, dim, cfg)
			})

			// Attention at headDim 64: Q·Kᵗ plus the weighted V pass.
			headDim := 64
			q := randSlice(rng, dim*headDim)
			kt := randSlice(rng, headDim*dim)
			v := randSlice(rng, dim*headDim)
			out := make([]float32, dim*headDim)
			scale := float32(1.0 / math.Sqrt(float64(headDim)))
			flops = 4 * float64(dim) * float64(dim) * float64(headDim)
			bench("sdpa f32", func() {
				nn.SDPA(out, q, kt, v, nil, dim, dim, headDim, scale)
			})

			return nil
		},
	}
}
