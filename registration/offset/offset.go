// Package offset converts ranked surface peaks into physical displacements.
//
// Each peak may first be refined to sub-sample precision with an
// [interp.Method]. The (possibly fractional) index is then mapped to two
// candidate displacements per axis: the direct one, measured from the
// surface's starting index, and the mirror one, measured from the opposite
// edge. Circular correlation cannot tell them apart, so the one with the
// smaller magnitude is chosen, ties going to the direct hypothesis.
package offset

import (
	"errors"
	"log/slog"
	"math"

	"github.com/cwbudde/algo-montage/registration/interp"
	"github.com/cwbudde/algo-montage/registration/peaks"
	"github.com/cwbudde/algo-montage/registration/surface"
)

// Estimate is a displacement between the fixed and the moving image.
type Estimate struct {
	Offset     []float64
	Confidence float64
}

// Resolver turns peaks into estimates.
type Resolver struct {
	Method interp.Method
	// Logger receives interpolation fallbacks at debug level. Nil disables logging.
	Logger *slog.Logger
}

// Resolve converts peaks, in order, into estimates. adjusted is the surface
// the peaks were extracted from; it supplies the interpolation neighbours.
func (r Resolver) Resolve(adjusted *surface.Surface, ranked []peaks.Peak) []Estimate {
	expected := adjusted.ExpectedOffset()
	adjustedSize := adjusted.AdjustedSize()

	out := make([]Estimate, 0, len(ranked))
	for rank, p := range ranked {
		index := r.Refine(adjusted, p, rank)

		offset := make([]float64, len(index))
		for d, x := range index {
			direct := expected[d] - adjusted.Spacing[d]*(x-float64(adjusted.Index[d]))
			mirror := expected[d] - adjusted.Spacing[d]*(x-float64(adjustedSize[d]))
			offset[d] = Nearer(direct, mirror)
		}

		out = append(out, Estimate{Offset: offset, Confidence: p.Value})
	}
	return out
}

// Nearer returns whichever of direct and mirror has the smaller magnitude,
// preferring direct on a tie.
func Nearer(direct, mirror float64) float64 {
	if math.Abs(direct) <= math.Abs(mirror) {
		return direct
	}
	return mirror
}

// Refine returns the continuous index of p. The centre sample of the fit is
// p.Value, which after merging is the summed confidence rather than the
// surface sample; the outer samples are read from s. Axes whose neighbours
// fall outside the surface, or whose samples do not admit the interpolation
// model, keep their integer coordinate.
func (r Resolver) Refine(s *surface.Surface, p peaks.Peak, rank int) []float64 {
	idx := p.Index
	out := make([]float64, len(idx))
	for d, v := range idx {
		out[d] = float64(v)
	}
	if r.Method == interp.None {
		return out
	}

	probe := append([]int(nil), idx...)
	y1 := p.Value
	for d := range idx {
		probe[d] = idx[d] - 1
		if !s.IsInside(probe) {
			probe[d] = idx[d]
			continue
		}
		y0 := s.At(probe...)

		probe[d] = idx[d] + 1
		if !s.IsInside(probe) {
			probe[d] = idx[d]
			continue
		}
		y2 := s.At(probe...)
		probe[d] = idx[d]

		shift, err := r.Method.Shift(y0, y1, y2)
		if err != nil {
			if r.Logger != nil && errors.Is(err, interp.ErrDomain) {
				r.Logger.Debug("peak interpolation skipped",
					slog.Int("rank", rank),
					slog.Int("axis", d),
					slog.String("method", r.Method.String()),
					slog.Float64("y0", y0),
					slog.Float64("y1", y1),
					slog.Float64("y2", y2),
				)
			}
			continue
		}
		out[d] += shift
	}
	return out
}
