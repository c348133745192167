package deconv

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// laneWorkers is the process-wide default number of goroutines that split
// the PE groups of one input pixel between them. 0 or 1 means sequential.
//
// Set via SetLaneWorkers, typically wired to --core-workers.
var laneWorkers atomic.Int32

// SetLaneWorkers sets the default lane goroutine count for cores built
// without WithWorkers. n <= 1 disables parallelism.
func SetLaneWorkers(n int) {
	const maxInt32 = int(^uint32(0) >> 1)

	if n < 0 {
		n = 0
	}

	if n > maxInt32 {
		n = maxInt32
	}

	laneWorkers.Store(int32(n))
}

func getLaneWorkers() int { return int(laneWorkers.Load()) }

// parallelFor splits [0, n) into contiguous chunks and runs fn(lo, hi) on
// each. With workers <= 1 the call is sequential. The first error wins.
func parallelFor(n, workers int, fn func(lo, hi int) error) error {
	if workers <= 1 || n <= 1 {
		return fn(0, n)
	}

	if workers > n {
		workers = n
	}

	var g errgroup.Group

	chunk := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)

		g.Go(func() error { return fn(lo, hi) })
	}

	return g.Wait()
}
