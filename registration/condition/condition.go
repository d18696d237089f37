// Package condition reshapes a raw phase-correlation surface so that genuine
// off-centre peaks dominate.
//
// Two passes are applied, each a pure per-cell map:
//
//  1. Distance bias: every sample is attenuated by exp(k*dist) where dist is
//     the squared index distance to the nearer of the direct and the wrapped
//     (mirror) expected peak position and k = -bias / sum(adjustedSize^2).
//  2. Zero suppression: cells within city-block distance 4 of the starting
//     index, and cells lying on a zero-index hyperplane, are damped by
//     (d+3)/(strength+d+3).
//
// The expected peak positions are kept fractional: an expected offset that is
// not a whole number of samples biases towards the exact position instead of
// a truncated index.
//
// Neither pass mutates its input, and both give identical results for any
// region partitioning of the [parallel.Executor] they run on.
package condition

import (
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-montage/registration/diag"
	"github.com/cwbudde/algo-montage/registration/parallel"
	"github.com/cwbudde/algo-montage/registration/surface"
)

// Diagnostic labels emitted after each pass.
const (
	LabelBiased         = "adjusted"
	LabelZeroSuppressed = "adjusted-zero-suppressed"
)

// zeroNeighborhood is the city-block radius around the starting index that
// receives neighbourhood damping.
const zeroNeighborhood = 4

// Params holds the conditioning strengths.
type Params struct {
	BiasTowardsExpected float64
	ZeroSuppression     float64
}

// Conditioner runs both passes on an executor and reports to a sink.
type Conditioner struct {
	Params Params
	Exec   parallel.Executor
	Sink   diag.Sink
}

// Condition returns the adjusted surface for s. s is left untouched.
func (c Conditioner) Condition(s *surface.Surface) *surface.Surface {
	exec := c.Exec
	if exec == nil {
		exec = parallel.Sequential{}
	}
	sink := c.Sink
	if sink == nil {
		sink = diag.Nop{}
	}

	out := Bias(s, c.Params.BiasTowardsExpected, exec)
	sink.EmitDiagnosticSurface(out, LabelBiased)

	SuppressZero(out, c.Params.ZeroSuppression, exec)
	sink.EmitDiagnosticSurface(out, LabelZeroSuppressed)

	return out
}

// Condition is the one-shot form of [Conditioner.Condition] running sequentially.
func Condition(s *surface.Surface, p Params) *surface.Surface {
	return Conditioner{Params: p}.Condition(s)
}

// hypotheses holds the per-axis expected peak positions in index units.
type hypotheses struct {
	direct []float64
	mirror []float64
	k      float64
}

func newHypotheses(s *surface.Surface, bias float64) hypotheses {
	dim := s.Dim()
	expected := s.ExpectedOffset()
	adjusted := s.AdjustedSize()

	h := hypotheses{
		direct: make([]float64, dim),
		mirror: make([]float64, dim),
	}

	extent := 0.0
	for d := range dim {
		a := float64(adjusted[d])
		extent += a * a
		shift := expected[d] / s.Spacing[d]
		h.direct[d] = shift + float64(s.Index[d])
		h.mirror[d] = shift + a
	}
	if extent > 0 {
		h.k = -bias / extent
	}
	return h
}

// axisDistance returns the squared distance from i to the nearer hypothesis on axis d.
func (h hypotheses) axisDistance(d, i int) float64 {
	x := float64(i)
	dd := (h.direct[d] - x) * (h.direct[d] - x)
	dm := (h.mirror[d] - x) * (h.mirror[d] - x)
	if dd <= dm {
		return dd
	}
	return dm
}

// Bias returns a new surface with every sample attenuated by its squared
// distance to the expected offset.
func Bias(s *surface.Surface, bias float64, exec parallel.Executor) *surface.Surface {
	out := s.CloneShape()
	h := newHypotheses(s, bias)

	exec.ForEachRegion(s.Region(), func(r surface.Region) {
		width := r.Size[0]
		weights := make([]float64, width)

		// axis-0 distances are the same for every row of the region
		row := make([]float64, width)
		for x := range width {
			row[x] = h.axisDistance(0, r.Index[0]+x)
		}

		r.Rows(&s.Grid, func(idx []int, pos int) {
			rest := 0.0
			for d := 1; d < len(idx); d++ {
				rest += h.axisDistance(d, idx[d])
			}
			for x := range width {
				weights[x] = math.Exp(h.k * (row[x] + rest))
			}
			vecmath.MulBlock(out.Data[pos:pos+width], s.Data[pos:pos+width], weights)
		})
	})

	return out
}

// damping returns (d+3)/(strength+d+3).
func damping(d, strength float64) float64 {
	return (d + 3) / (strength + d + 3)
}

// SuppressZero damps, in place, the neighbourhood of the starting index and
// the zero-index hyperplanes of s.
func SuppressZero(s *surface.Surface, strength float64, exec parallel.Executor) {
	dim := s.Dim()

	// percentage scale per axis
	dimFactor := make([]float64, dim)
	for d := range dim {
		dimFactor[d] = 100.0 / float64(s.Size[d])
	}

	exec.ForEachRegion(s.Region(), func(r surface.Region) {
		idx := make([]int, dim)
		r.Rows(&s.Grid, func(start []int, pos int) {
			copy(idx, start)

			// rows farther than the neighbourhood and off every hyperplane
			// of axes >= 1 only need the axis-0 hyperplane cell
			rest := 0
			onPlane := false
			for d := 1; d < dim; d++ {
				rest += idx[d] - s.Index[d]
				if idx[d] == s.Index[d] {
					onPlane = true
				}
			}

			for x := range r.Size[0] {
				idx[0] = r.Index[0] + x
				dist := rest + idx[0] - s.Index[0]
				if !onPlane && dist >= zeroNeighborhood && idx[0] != s.Index[0] {
					continue
				}

				v := s.Data[pos+x]
				if dist < zeroNeighborhood {
					v *= damping(float64(dist), strength)
				}
				for d := range dim {
					if idx[d] != s.Index[d] {
						continue
					}
					distD := idx[d] - s.Index[d]
					if distD > s.Size[d]/2 {
						distD = s.Size[d] - distD
					}
					v *= damping(float64(distD)*dimFactor[d], strength)
				}
				s.Data[pos+x] = v
			}
		})
	})
}
