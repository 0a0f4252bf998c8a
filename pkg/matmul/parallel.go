package matmul

import (
	"runtime"

	"github.com/samcharles93/zatile/pkg/tile"
)

type matmulTask struct {
	c, at, b  []float32
	m, n, k   int
	rs, re    int
	blockSize int
	done      chan struct{}
}

type matmulPool struct {
	size      int
	tasks     chan matmulTask
	doneSlots chan chan struct{}
}

func newMatmulPool() *matmulPool {
	size := runtime.GOMAXPROCS(0)
	if size < 1 {
		size = 1
	}
	p := &matmulPool{
		size:      size,
		tasks:     make(chan matmulTask, size*2),
		doneSlots: make(chan chan struct{}, size),
	}
	for i := 0; i < size; i++ {
		p.doneSlots <- make(chan struct{}, 1)
	}
	for w := 0; w < size; w++ {
		// One accumulator per worker: each goroutine gets its own
		// accumulator context, which is what makes concurrent tiles safe.
		go func() {
			var acc tile.Accumulator32
			for task := range p.tasks {
				matMulRows32(&acc, task.c, task.at, task.b, task.m, task.n, task.k, task.rs, task.re, task.blockSize)
				task.done <- struct{}{}
			}
		}()
	}
	return p
}

var matmulWorkPool = newMatmulPool()

// Parallel computes C = A·B like MatMulAT, splitting ranges of output row
// tiles across a persistent worker pool. workers <= 0 selects GOMAXPROCS.
// Row ranges are disjoint, so workers never write the same C element.
func Parallel(c, at, b []float32, m, n, k int, cfg Config, workers int) {
	if m <= 0 || n <= 0 || k <= 0 {
		return
	}
	checkTiled32(m, n)
	blockSize := cfg.blockSize(tile.Width32)

	rowTiles := m / tile.Width32
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > rowTiles {
		workers = rowTiles
	}
	if workers > matmulWorkPool.size {
		workers = matmulWorkPool.size
	}
	if workers <= 1 {
		var acc tile.Accumulator32
		matMulRows32(&acc, c, at, b, m, n, k, 0, m, blockSize)
		return
	}

	// Chunk in whole row tiles so every range stays tile-aligned.
	chunk := (rowTiles + workers - 1) / workers * tile.Width32

	done := <-matmulWorkPool.doneSlots
	active := 0
	for rs := 0; rs < m; rs += chunk {
		re := min(rs+chunk, m)
		active++
		matmulWorkPool.tasks <- matmulTask{
			c:         c,
			at:        at,
			b:         b,
			m:         m,
			n:         n,
			k:         k,
			rs:        rs,
			re:        re,
			blockSize: blockSize,
			done:      done,
		}
	}
	for i := 0; i < active; i++ {
		<-done
	}
	matmulWorkPool.doneSlots <- done
}
