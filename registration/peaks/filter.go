package peaks

import (
	"sort"
)

// mergeRadius is the wrapped Chebyshev distance below which two candidates
// belong to the same blurred peak.
const mergeRadius = 2

// TrimNonPositive drops the first non-positive candidate and everything after
// it. peaks must be sorted descending.
func TrimNonPositive(peaks []Peak) []Peak {
	cut := sort.Search(len(peaks), func(i int) bool { return !(peaks[i].Value > 0) })
	return peaks[:cut]
}

// WrappedDistance returns the Chebyshev distance between a and b on a torus
// of the given per-axis size.
func WrappedDistance(a, b, size []int) int {
	dist := 0
	for d, s := range size {
		d1 := a[d] - b[d]
		if d1 < 0 {
			d1 = -d1
		}
		if d1 > s/2 {
			d1 = s - d1
		}
		dist = max(dist, d1)
	}
	return dist
}

// Merge folds every candidate into the earliest preceding survivor within
// wrapped Chebyshev distance 1, adding its value to that survivor. The
// returned slice reuses the backing array of peaks.
func Merge(peaks []Peak, size []int) []Peak {
	i := 1
	for i < len(peaks) {
		k := 0
		for ; k < i; k++ {
			if WrappedDistance(peaks[i].Index, peaks[k].Index, size) < mergeRadius {
				break
			}
		}

		if k < i {
			peaks[k].Value += peaks[i].Value
			peaks = append(peaks[:i], peaks[i+1:]...)
			continue
		}
		i++
	}
	return peaks
}

// SortDescending orders peaks by decreasing value. Equal values keep their
// relative order.
func SortDescending(peaks []Peak) {
	sort.SliceStable(peaks, func(a, b int) bool {
		return peaks[a].Value > peaks[b].Value
	})
}

// Truncate keeps at most n peaks.
func Truncate(peaks []Peak, n int) []Peak {
	if n < 0 {
		n = 0
	}
	if len(peaks) > n {
		return peaks[:n]
	}
	return peaks
}

// Filter trims non-positive candidates, merges and re-sorts them when
// mergePeaks > 0, and keeps at most requested peaks.
// The input slice is modified.
func Filter(peaks []Peak, size []int, mergePeaks, requested int) []Peak {
	peaks = TrimNonPositive(peaks)
	if mergePeaks > 0 {
		peaks = Merge(peaks, size)
		SortDescending(peaks)
	}
	return Truncate(peaks, requested)
}
