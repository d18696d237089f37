package surface

// Region is an axis-aligned box of absolute indices.
type Region struct {
	Index []int
	Size  []int
}

// Len returns the number of cells in the region.
func (r Region) Len() int {
	if len(r.Size) == 0 {
		return 0
	}
	n := 1
	for _, s := range r.Size {
		if s <= 0 {
			return 0
		}
		n *= s
	}
	return n
}

// Split cuts the region into at most n contiguous strips along its last
// (slowest varying) axis. Strips never overlap and together cover r.
func (r Region) Split(n int) []Region {
	if len(r.Size) == 0 || r.Len() == 0 {
		return nil
	}

	last := len(r.Size) - 1
	extent := r.Size[last]
	if n > extent {
		n = extent
	}
	if n <= 1 {
		return []Region{r}
	}

	out := make([]Region, 0, n)
	base := extent / n
	rem := extent % n
	start := r.Index[last]
	for i := range n {
		w := base
		if i < rem {
			w++
		}
		sub := Region{
			Index: append([]int(nil), r.Index...),
			Size:  append([]int(nil), r.Size...),
		}
		sub.Index[last] = start
		sub.Size[last] = w
		out = append(out, sub)
		start += w
	}
	return out
}

// Rows calls fn for every axis-0 row of r inside g. idx holds the absolute
// index of the first cell of the row and pos its position in g.Data; the row
// spans g.Data[pos : pos+r.Size[0]]. idx is reused between calls.
func (r Region) Rows(g *Grid, fn func(idx []int, pos int)) {
	if r.Len() == 0 {
		return
	}

	dim := len(r.Size)
	idx := append([]int(nil), r.Index...)
	for {
		fn(idx, g.Linear(idx))

		d := 1
		for ; d < dim; d++ {
			idx[d]++
			if idx[d] < r.Index[d]+r.Size[d] {
				break
			}
			idx[d] = r.Index[d]
		}
		if d == dim {
			return
		}
	}
}
