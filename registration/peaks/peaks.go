// Package peaks extracts and filters candidate maxima of an adjusted
// correlation surface.
//
// Extraction is delegated to an [Extractor]; the package ships [TopN], which
// returns the largest samples regardless of neighbourhood, and [LocalMaxima].
// A blurred peak shows up in TopN as a cluster of adjacent samples, which
// [Merge] folds back into a single candidate.
package peaks

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/cwbudde/algo-montage/registration/surface"
)

// ErrInvalidCount is returned when a negative number of peaks is requested.
var ErrInvalidCount = errors.New("peaks: invalid peak count")

// Peak is a candidate maximum at an absolute surface index.
type Peak struct {
	Index []int
	Value float64
}

// Extractor finds the n largest candidates of a surface, sorted descending
// by value with a deterministic tie order.
type Extractor interface {
	FindTopPeaks(s *surface.Surface, n int) ([]Peak, error)
}

// CandidateCount returns how many candidates to extract for requested final
// offsets on a surface of dim axes: ceil(requested/2) * (3^dim - 1).
func CandidateCount(requested, dim int) int {
	if requested <= 0 || dim <= 0 {
		return 0
	}
	neighbours := 1
	for range dim {
		neighbours *= 3
	}
	return (requested + 1) / 2 * (neighbours - 1)
}

// TopN returns the n largest samples of the whole surface.
// Equal values are ordered by ascending position in the sample buffer.
type TopN struct{}

// FindTopPeaks implements Extractor.
func (TopN) FindTopPeaks(s *surface.Surface, n int) ([]Peak, error) {
	return findTop(s, n, nil)
}

// LocalMaxima returns the n largest samples that are not smaller than any of
// their in-bounds face neighbours.
type LocalMaxima struct{}

// FindTopPeaks implements Extractor.
func (LocalMaxima) FindTopPeaks(s *surface.Surface, n int) ([]Peak, error) {
	strides := s.Strides()
	var idx []int
	return findTop(s, n, func(pos int) bool {
		idx = s.IndexOf(pos, idx)
		v := s.Data[pos]
		for d, stride := range strides {
			rel := idx[d] - s.Index[d]
			if rel > 0 && s.Data[pos-stride] > v {
				return false
			}
			if rel < s.Size[d]-1 && s.Data[pos+stride] > v {
				return false
			}
		}
		return true
	})
}

func findTop(s *surface.Surface, n int, accept func(pos int) bool) ([]Peak, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, n)
	}
	if s == nil || len(s.Data) == 0 || n == 0 {
		return nil, nil
	}

	h := make(minHeap, 0, n)
	for pos, v := range s.Data {
		if len(h) == n && !better(entry{v, pos}, h[0]) {
			continue
		}
		if accept != nil && !accept(pos) {
			continue
		}
		if len(h) < n {
			heap.Push(&h, entry{v, pos})
			continue
		}
		h[0] = entry{v, pos}
		heap.Fix(&h, 0)
	}

	out := make([]Peak, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		e := heap.Pop(&h).(entry)
		out[i] = Peak{Index: s.IndexOf(e.pos, nil), Value: e.value}
	}
	return out, nil
}

type entry struct {
	value float64
	pos   int
}

// better orders by value, then by lower position.
func better(a, b entry) bool {
	if a.value != b.value {
		return a.value > b.value
	}
	return a.pos < b.pos
}

// minHeap keeps the worst retained entry at the root.
type minHeap []entry

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return better(h[j], h[i]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(entry)) }
func (h *minHeap) Pop() any {
	old := *h
	e := old[len(old)-1]
	*h = old[:len(old)-1]
	return e
}
