// Package parallel distributes data-parallel work over disjoint regions of a
// grid.
//
// An [Executor] only promises that every cell of the region is handed to
// exactly one invocation of fn and that ForEachRegion returns after all of
// them finished. Callers must produce identical results for any partitioning.
package parallel

import (
	"runtime"
	"sync"

	"github.com/cwbudde/algo-montage/registration/surface"
)

// MinParallelCells is the region size below which [Strips] runs inline.
const MinParallelCells = 64 * 64

// Executor applies fn to disjoint sub-regions covering region.
type Executor interface {
	ForEachRegion(region surface.Region, fn func(surface.Region))
}

// Sequential runs fn once over the whole region on the calling goroutine.
type Sequential struct{}

// ForEachRegion implements Executor.
func (Sequential) ForEachRegion(region surface.Region, fn func(surface.Region)) {
	if region.Len() == 0 {
		return
	}
	fn(region)
}

// Strips splits the region along its slowest axis and processes the strips
// on a fixed pool of goroutines.
type Strips struct {
	// Workers is the pool size. Zero or negative uses GOMAXPROCS.
	Workers int
	// StripsPerWorker controls load balancing granularity. Zero means 4.
	StripsPerWorker int
}

// ForEachRegion implements Executor.
func (s Strips) ForEachRegion(region surface.Region, fn func(surface.Region)) {
	n := region.Len()
	if n == 0 {
		return
	}

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers == 1 || n < MinParallelCells {
		fn(region)
		return
	}

	perWorker := s.StripsPerWorker
	if perWorker <= 0 {
		perWorker = 4
	}

	strips := region.Split(workers * perWorker)
	if len(strips) < workers {
		workers = len(strips)
	}

	work := make(chan surface.Region, len(strips))
	for _, r := range strips {
		work <- r
	}
	close(work)

	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for r := range work {
				fn(r)
			}
		})
	}
	wg.Wait()
}

// Default returns the executor used when none is configured.
func Default() Executor {
	return Strips{}
}
