package registration

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-montage/registration/interp"
	"github.com/cwbudde/algo-montage/registration/surface"
)

// Errors returned by [Optimizer.ComputeOffsets].
var (
	ErrInvalidConfig = errors.New("registration: invalid config")
	ErrEmptyInput    = errors.New("registration: empty input")
)

const (
	defaultZeroSuppression      = 5.0
	defaultBiasTowardsExpected  = 1.0
	defaultMergePeaks           = 1
	defaultRequestedOffsetCount = 4
)

// Config holds the peak search parameters.
type Config struct {
	// ZeroSuppression is the strength of the damping applied around the
	// zero offset and along zero-index hyperplanes. Must be positive.
	ZeroSuppression float64
	// BiasTowardsExpected is the strength of the penalty on peaks far from
	// the offset implied by the image origins. Zero disables it.
	BiasTowardsExpected float64
	// MergePeaks enables merging of adjacent candidates when positive.
	MergePeaks int
	// PeakInterpolation selects sub-sample refinement.
	PeakInterpolation interp.Method
	// RequestedOffsetCount is the maximum number of estimates returned.
	RequestedOffsetCount int

	// NormalizeConfidences divides every confidence by the highest one.
	NormalizeConfidences bool
	// ConfidenceScale multiplies every confidence after normalization.
	// 0 and 1 leave confidences unscaled.
	ConfidenceScale float64
}

// DefaultConfig returns the parameters used for montage tile registration.
func DefaultConfig() Config {
	return Config{
		ZeroSuppression:      defaultZeroSuppression,
		BiasTowardsExpected:  defaultBiasTowardsExpected,
		MergePeaks:           defaultMergePeaks,
		PeakInterpolation:    interp.Parabolic,
		RequestedOffsetCount: defaultRequestedOffsetCount,
	}
}

// Validate reports the first parameter outside its domain.
func (c Config) Validate() error {
	switch {
	case !(c.ZeroSuppression > 0):
		return fmt.Errorf("%w: zero suppression must be > 0: %v", ErrInvalidConfig, c.ZeroSuppression)
	case !(c.BiasTowardsExpected >= 0):
		return fmt.Errorf("%w: bias towards expected must be >= 0: %v", ErrInvalidConfig, c.BiasTowardsExpected)
	case c.MergePeaks < 0:
		return fmt.Errorf("%w: merge peaks must be >= 0: %d", ErrInvalidConfig, c.MergePeaks)
	case !c.PeakInterpolation.Valid():
		return fmt.Errorf("%w: unknown peak interpolation %v", ErrInvalidConfig, c.PeakInterpolation)
	case c.RequestedOffsetCount <= 0:
		return fmt.Errorf("%w: requested offset count must be > 0: %d", ErrInvalidConfig, c.RequestedOffsetCount)
	case c.ConfidenceScale < 0:
		return fmt.Errorf("%w: confidence scale must be >= 0: %v", ErrInvalidConfig, c.ConfidenceScale)
	}
	return nil
}

// validateSurface maps surface geometry problems onto the package errors.
func validateSurface(s *surface.Surface) error {
	if s == nil {
		return fmt.Errorf("%w: no surface", ErrEmptyInput)
	}
	if err := s.Validate(); err != nil {
		if errors.Is(err, surface.ErrEmpty) {
			return fmt.Errorf("%w: %w", ErrEmptyInput, err)
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := s.ValidateSpacing(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
