// Package interp provides three-point peak interpolators used to refine a
// discrete correlation peak to sub-sample precision.
//
// Both models take the samples one step before the peak (y0), at the peak
// (y1) and one step after it (y2) and return the fractional shift of the true
// extremum relative to the peak sample.
//
//   - [Parabolic]: vertex of the parabola through the three samples.
//   - [Cosine]:    phase of a cosine lobe fitted to the three samples,
//     better suited to the sinc-like peaks of phase correlation.
package interp

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrDomain is returned when the samples do not admit the requested model.
var ErrDomain = errors.New("interp: samples outside interpolation domain")

// Method selects the peak interpolation model.
type Method int

const (
	None Method = iota
	Parabolic
	Cosine
)

// String returns the lower-case method name.
func (m Method) String() string {
	switch m {
	case None:
		return "none"
	case Parabolic:
		return "parabolic"
	case Cosine:
		return "cosine"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	return m >= None && m <= Cosine
}

// ParseMethod converts a method name as produced by String.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return None, nil
	case "parabolic", "parabola":
		return Parabolic, nil
	case "cosine", "cos":
		return Cosine, nil
	}
	return None, fmt.Errorf("interp: unknown method %q", s)
}

// Shift returns the sub-sample shift predicted by m. None always yields 0.
func (m Method) Shift(y0, y1, y2 float64) (float64, error) {
	switch m {
	case None:
		return 0, nil
	case Parabolic:
		return ParabolicShift(y0, y1, y2)
	case Cosine:
		return CosineShift(y0, y1, y2)
	}
	return 0, fmt.Errorf("interp: unknown method %d", int(m))
}

// ParabolicShift returns (y0-y2) / (2*(y0-2*y1+y2)).
// Collinear samples have no vertex and yield ErrDomain.
func ParabolicShift(y0, y1, y2 float64) (float64, error) {
	den := 2 * (y0 - 2*y1 + y2)
	if den == 0 {
		return 0, ErrDomain
	}
	return finite((y0 - y2) / den)
}

// CosineShift fits y = A*cos(omega*x + theta) and returns -theta/(omega*pi).
func CosineShift(y0, y1, y2 float64) (float64, error) {
	if y1 == 0 {
		return 0, ErrDomain
	}

	c := (y0 + y2) / (2 * y1)
	if c < -1 || c > 1 || math.IsNaN(c) {
		return 0, ErrDomain
	}

	omega := math.Acos(c)
	s := math.Sin(omega)
	if omega == 0 || s == 0 {
		return 0, ErrDomain
	}

	theta := math.Atan((y0 - y2) / (2 * y1 * s))
	return finite(-theta / omega / math.Pi)
}

func finite(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrDomain
	}
	return v, nil
}
