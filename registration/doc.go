// Package registration estimates the translation between two images from
// their phase-correlation surface.
//
// The surface is processed in four stages:
//
//  1. Conditioning ([condition]): peaks far from the offset implied by the
//     image origins are attenuated and the uninformative zero-offset peak and
//     zero-index hyperplanes are damped.
//  2. Extraction ([peaks.Extractor]): the largest candidates are collected.
//  3. Filtering ([peaks.Filter]): non-positive candidates are dropped and
//     adjacent candidates of one blurred peak are merged and re-ranked.
//  4. Resolution ([offset.Resolver]): each peak is optionally refined to
//     sub-sample precision and converted to a physical offset, choosing
//     between the direct and the wrapped interpretation per axis.
//
// # Usage
//
//	corr, err := correlate.PhaseCorrelate(fixed, moving)
//	if err != nil {
//		return err
//	}
//	estimates, err := registration.ComputeOffsets(corr, registration.DefaultConfig())
//
// For repeated use with custom collaborators create an [Optimizer]:
//
//	opt := registration.NewOptimizer(cfg,
//		registration.WithExecutor(parallel.Strips{Workers: 4}),
//		registration.WithExtractor(peaks.LocalMaxima{}),
//	)
//	estimates, err := opt.ComputeOffsets(corr)
//
// # Confidences
//
// A confidence is the (possibly merged) value of the adjusted surface at the
// peak. Its scale depends on the input; use [Config.NormalizeConfidences] or
// [Config.ConfidenceScale] when a fixed range is more convenient.
//
// # Errors
//
// Parameter problems yield [ErrInvalidConfig], a missing or zero-extent
// surface [ErrEmptyInput]. Both are detected before any surface work.
package registration
