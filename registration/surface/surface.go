package surface

import (
	"errors"
	"fmt"
)

// Errors returned by grid construction and validation.
var (
	ErrEmpty         = errors.New("surface: empty grid")
	ErrShapeMismatch = errors.New("surface: shape mismatch")
	ErrBadSpacing    = errors.New("surface: spacing must be positive")
)

// Grid is a dense N-dimensional array of real samples.
type Grid struct {
	Size    []int
	Index   []int
	Spacing []float64
	Data    []float64
}

// NewGrid allocates a zero-filled grid with the given size, a zero starting
// index and unit spacing.
func NewGrid(size ...int) (*Grid, error) {
	if len(size) == 0 {
		return nil, ErrEmpty
	}

	n := 1
	for d, s := range size {
		if s <= 0 {
			return nil, fmt.Errorf("%w: axis %d has size %d", ErrEmpty, d, s)
		}
		n *= s
	}

	spacing := make([]float64, len(size))
	for d := range spacing {
		spacing[d] = 1
	}

	return &Grid{
		Size:    append([]int(nil), size...),
		Index:   make([]int, len(size)),
		Spacing: spacing,
		Data:    make([]float64, n),
	}, nil
}

// Dim returns the number of axes.
func (g *Grid) Dim() int {
	return len(g.Size)
}

// Len returns the number of samples described by Size.
func (g *Grid) Len() int {
	if len(g.Size) == 0 {
		return 0
	}
	n := 1
	for _, s := range g.Size {
		n *= s
	}
	return n
}

// Validate checks that the grid is non-empty and internally consistent.
// Spacing is validated separately by [Grid.ValidateSpacing].
func (g *Grid) Validate() error {
	if g == nil || len(g.Size) == 0 {
		return ErrEmpty
	}

	for d, s := range g.Size {
		if s <= 0 {
			return fmt.Errorf("%w: axis %d has size %d", ErrEmpty, d, s)
		}
	}

	if len(g.Index) != len(g.Size) || len(g.Spacing) != len(g.Size) {
		return fmt.Errorf("%w: size has %d axes, index %d, spacing %d",
			ErrShapeMismatch, len(g.Size), len(g.Index), len(g.Spacing))
	}

	if len(g.Data) != g.Len() {
		return fmt.Errorf("%w: data length %d, want %d", ErrShapeMismatch, len(g.Data), g.Len())
	}

	return nil
}

// ValidateSpacing reports an error if any axis has non-positive spacing.
func (g *Grid) ValidateSpacing() error {
	for d, sp := range g.Spacing {
		if !(sp > 0) {
			return fmt.Errorf("%w: axis %d has spacing %v", ErrBadSpacing, d, sp)
		}
	}
	return nil
}

// Region returns the largest possible region of the grid.
func (g *Grid) Region() Region {
	return Region{
		Index: append([]int(nil), g.Index...),
		Size:  append([]int(nil), g.Size...),
	}
}

// Strides returns the linear step for a unit move along each axis.
func (g *Grid) Strides() []int {
	strides := make([]int, len(g.Size))
	step := 1
	for d, s := range g.Size {
		strides[d] = step
		step *= s
	}
	return strides
}

// Linear converts an absolute index into a position in Data.
// The index must lie inside the grid.
func (g *Grid) Linear(idx []int) int {
	pos := 0
	step := 1
	for d, s := range g.Size {
		pos += (idx[d] - g.Index[d]) * step
		step *= s
	}
	return pos
}

// IndexOf converts a position in Data into an absolute index, writing it to dst.
func (g *Grid) IndexOf(pos int, dst []int) []int {
	if cap(dst) < len(g.Size) {
		dst = make([]int, len(g.Size))
	}
	dst = dst[:len(g.Size)]
	for d, s := range g.Size {
		dst[d] = pos%s + g.Index[d]
		pos /= s
	}
	return dst
}

// IsInside reports whether idx lies within the grid.
func (g *Grid) IsInside(idx []int) bool {
	if len(idx) != len(g.Size) {
		return false
	}
	for d, s := range g.Size {
		rel := idx[d] - g.Index[d]
		if rel < 0 || rel >= s {
			return false
		}
	}
	return true
}

// At returns the sample at the absolute index idx.
func (g *Grid) At(idx ...int) float64 {
	return g.Data[g.Linear(idx)]
}

// Set stores v at the absolute index idx.
func (g *Grid) Set(v float64, idx ...int) {
	g.Data[g.Linear(idx)] = v
}

// CloneShape returns a grid with the same geometry and a fresh zero-filled buffer.
func (g *Grid) CloneShape() Grid {
	return Grid{
		Size:    append([]int(nil), g.Size...),
		Index:   append([]int(nil), g.Index...),
		Spacing: append([]float64(nil), g.Spacing...),
		Data:    make([]float64, len(g.Data)),
	}
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() Grid {
	c := g.CloneShape()
	copy(c.Data, g.Data)
	return c
}

// SameShape reports whether g and o have identical size and starting index.
func (g *Grid) SameShape(o *Grid) bool {
	if len(g.Size) != len(o.Size) {
		return false
	}
	for d := range g.Size {
		if g.Size[d] != o.Size[d] || g.Index[d] != o.Index[d] {
			return false
		}
	}
	return true
}

// Image is a grid placed in physical space.
type Image struct {
	Grid
	Origin []float64
}

// NewImage allocates a zero-filled image with a zero origin.
func NewImage(size ...int) (*Image, error) {
	g, err := NewGrid(size...)
	if err != nil {
		return nil, err
	}
	return &Image{Grid: *g, Origin: make([]float64, len(size))}, nil
}

// Surface is a correlation response between a fixed and a moving image.
type Surface struct {
	Grid
	FixedOrigin  []float64
	MovingOrigin []float64
}

// New allocates a zero-filled surface with zero origins.
func New(size ...int) (*Surface, error) {
	g, err := NewGrid(size...)
	if err != nil {
		return nil, err
	}
	return &Surface{
		Grid:         *g,
		FixedOrigin:  make([]float64, len(size)),
		MovingOrigin: make([]float64, len(size)),
	}, nil
}

// Validate checks the grid and that both origins match its dimension.
func (s *Surface) Validate() error {
	if s == nil {
		return ErrEmpty
	}
	if err := s.Grid.Validate(); err != nil {
		return err
	}
	if len(s.FixedOrigin) != s.Dim() || len(s.MovingOrigin) != s.Dim() {
		return fmt.Errorf("%w: origins have %d and %d axes, want %d",
			ErrShapeMismatch, len(s.FixedOrigin), len(s.MovingOrigin), s.Dim())
	}
	return nil
}

// ExpectedOffset returns MovingOrigin - FixedOrigin.
func (s *Surface) ExpectedOffset() []float64 {
	out := make([]float64, s.Dim())
	for d := range out {
		out[d] = s.MovingOrigin[d] - s.FixedOrigin[d]
	}
	return out
}

// AdjustedSize returns Size + Index per axis, the index one past the last
// sample, used as the reference of the wrapped (mirror) hypothesis.
func (s *Surface) AdjustedSize() []int {
	out := make([]int, s.Dim())
	for d := range out {
		out[d] = s.Size[d] + s.Index[d]
	}
	return out
}

// CloneShape returns a surface with the same geometry and origins and a
// fresh zero-filled buffer.
func (s *Surface) CloneShape() *Surface {
	return &Surface{
		Grid:         s.Grid.CloneShape(),
		FixedOrigin:  append([]float64(nil), s.FixedOrigin...),
		MovingOrigin: append([]float64(nil), s.MovingOrigin...),
	}
}

// Clone returns a deep copy of the surface.
func (s *Surface) Clone() *Surface {
	c := s.CloneShape()
	copy(c.Data, s.Data)
	return c
}
