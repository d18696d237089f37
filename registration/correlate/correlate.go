// Package correlate computes phase-correlation surfaces of N-dimensional images.
//
// The surface is the inverse FFT of the normalized cross-power spectrum
//
//	R = conj(F) * M / |conj(F) * M|
//
// of the fixed image F and the moving image M. If the moving image equals the
// fixed one circularly shifted so that moving(i) = fixed(i + t), the surface
// peaks at relative index t (modulo the size), which the registration
// optimizer reports as the offset -t*spacing + (movingOrigin - fixedOrigin).
//
// Transforms are separable: a 1-D plan per axis length is applied along every
// line of that axis.
package correlate

import (
	"errors"
	"fmt"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-montage/registration/surface"
	"github.com/cwbudde/algo-montage/registration/window"
)

// Errors returned by PhaseCorrelate.
var (
	ErrEmptyInput    = errors.New("correlate: empty input")
	ErrShapeMismatch = errors.New("correlate: fixed and moving images differ in shape")
)

// magnitudeFloor is the cross-power magnitude below which a bin is zeroed.
const magnitudeFloor = 1e-12

// Option configures PhaseCorrelate.
type Option func(*config)

type config struct {
	window     window.Type
	windowOpts []window.Option
}

// WithWindow tapers both images with a separable window before transforming.
func WithWindow(t window.Type, opts ...window.Option) Option {
	return func(c *config) {
		c.window = t
		c.windowOpts = append([]window.Option(nil), opts...)
	}
}

// PhaseCorrelate returns the phase-correlation surface of fixed and moving.
// Neither input is modified.
func PhaseCorrelate(fixed, moving *surface.Image, opts ...Option) (*surface.Surface, error) {
	if fixed == nil || moving == nil {
		return nil, ErrEmptyInput
	}
	if err := fixed.Validate(); err != nil {
		return nil, fmt.Errorf("%w: fixed: %w", ErrEmptyInput, err)
	}
	if err := moving.Validate(); err != nil {
		return nil, fmt.Errorf("%w: moving: %w", ErrEmptyInput, err)
	}
	if !sameGeometry(&fixed.Grid, &moving.Grid) {
		return nil, fmt.Errorf("%w: %v vs %v", ErrShapeMismatch, fixed.Size, moving.Size)
	}
	if len(fixed.Origin) != fixed.Dim() || len(moving.Origin) != moving.Dim() {
		return nil, fmt.Errorf("%w: origin dimension", ErrShapeMismatch)
	}

	cfg := config{window: window.TypeRectangular}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	f := prepare(&fixed.Grid, cfg)
	m := prepare(&moving.Grid, cfg)

	t := newTransformer(fixed.Size)
	if err := t.forward(f); err != nil {
		return nil, err
	}
	if err := t.forward(m); err != nil {
		return nil, err
	}

	crossPower(f, m)

	if err := t.inverse(f); err != nil {
		return nil, err
	}

	out := &surface.Surface{
		Grid:         fixed.CloneShape(),
		FixedOrigin:  append([]float64(nil), fixed.Origin...),
		MovingOrigin: append([]float64(nil), moving.Origin...),
	}
	for i, v := range f {
		out.Data[i] = real(v)
	}
	return out, nil
}

func sameGeometry(a, b *surface.Grid) bool {
	if !a.SameShape(b) {
		return false
	}
	for d := range a.Spacing {
		if a.Spacing[d] != b.Spacing[d] {
			return false
		}
	}
	return true
}

// prepare returns the (optionally windowed) samples of g as complex values.
func prepare(g *surface.Grid, cfg config) []complex128 {
	samples := g.Data
	if cfg.window != window.TypeRectangular {
		c := g.Clone()
		window.ApplySeparable(&c, cfg.window, cfg.windowOpts...)
		samples = c.Data
	}

	out := make([]complex128, len(samples))
	for i, v := range samples {
		out[i] = complex(v, 0)
	}
	return out
}

// crossPower overwrites f with conj(f)*m normalized to unit magnitude.
func crossPower(f, m []complex128) {
	re := make([]float64, len(f))
	im := make([]float64, len(f))
	for i := range f {
		p := complex(real(f[i]), -imag(f[i])) * m[i]
		re[i] = real(p)
		im[i] = imag(p)
	}

	mag := make([]float64, len(f))
	vecmath.Magnitude(mag, re, im)

	for i := range f {
		if mag[i] < magnitudeFloor {
			f[i] = 0
			continue
		}
		f[i] = complex(re[i]/mag[i], im[i]/mag[i])
	}
}

// transformer applies 1-D FFTs along every axis of a grid.
type transformer struct {
	size    []int
	strides []int
	plans   map[int]*algofft.Plan[complex128]
}

func newTransformer(size []int) *transformer {
	strides := make([]int, len(size))
	step := 1
	for d, s := range size {
		strides[d] = step
		step *= s
	}
	return &transformer{
		size:    size,
		strides: strides,
		plans:   make(map[int]*algofft.Plan[complex128]),
	}
}

func (t *transformer) plan(n int) (*algofft.Plan[complex128], error) {
	if p, ok := t.plans[n]; ok {
		return p, nil
	}
	p, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("correlate: failed to create FFT plan of size %d: %w", n, err)
	}
	t.plans[n] = p
	return p, nil
}

func (t *transformer) forward(data []complex128) error {
	return t.apply(data, false)
}

func (t *transformer) inverse(data []complex128) error {
	return t.apply(data, true)
}

func (t *transformer) apply(data []complex128, inverse bool) error {
	for d, n := range t.size {
		if n == 1 {
			continue
		}
		p, err := t.plan(n)
		if err != nil {
			return err
		}

		stride := t.strides[d]
		src := make([]complex128, n)
		dst := make([]complex128, n)
		for outer := 0; outer < len(data); outer += stride * n {
			for inner := range stride {
				base := outer + inner
				for k := range n {
					src[k] = data[base+k*stride]
				}

				if inverse {
					err = p.Inverse(dst, src)
				} else {
					err = p.Forward(dst, src)
				}
				if err != nil {
					if inverse {
						return fmt.Errorf("correlate: inverse FFT failed: %w", err)
					}
					return fmt.Errorf("correlate: forward FFT failed: %w", err)
				}

				for k := range n {
					data[base+k*stride] = dst[k]
				}
			}
		}
	}
	return nil
}
