package registration

import (
	"log/slog"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-montage/registration/condition"
	"github.com/cwbudde/algo-montage/registration/diag"
	"github.com/cwbudde/algo-montage/registration/offset"
	"github.com/cwbudde/algo-montage/registration/parallel"
	"github.com/cwbudde/algo-montage/registration/peaks"
	"github.com/cwbudde/algo-montage/registration/surface"
)

// Option configures the collaborators of an [Optimizer].
type Option func(*Optimizer)

// WithExecutor sets the executor for the conditioning passes.
func WithExecutor(e parallel.Executor) Option {
	return func(o *Optimizer) {
		if e != nil {
			o.exec = e
		}
	}
}

// WithExtractor sets the peak extractor.
func WithExtractor(e peaks.Extractor) Option {
	return func(o *Optimizer) {
		if e != nil {
			o.extractor = e
		}
	}
}

// WithSink sets the diagnostic sink receiving the adjusted surfaces.
func WithSink(s diag.Sink) Option {
	return func(o *Optimizer) {
		if s != nil {
			o.sink = s
		}
	}
}

// Optimizer finds the offsets encoded in a phase-correlation surface.
// It keeps no per-call state and may be used from several goroutines as
// long as its collaborators allow it.
type Optimizer struct {
	cfg       Config
	exec      parallel.Executor
	extractor peaks.Extractor
	sink      diag.Sink
}

// NewOptimizer creates an optimizer. cfg is validated on every call to
// ComputeOffsets, not here.
func NewOptimizer(cfg Config, opts ...Option) *Optimizer {
	o := &Optimizer{
		cfg:       cfg,
		exec:      parallel.Default(),
		extractor: peaks.TopN{},
		sink:      diag.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// Config returns the optimizer's parameters.
func (o *Optimizer) Config() Config {
	return o.cfg
}

// ComputeOffsets is a one-shot form of [Optimizer.ComputeOffsets] with the
// default collaborators.
func ComputeOffsets(s *surface.Surface, cfg Config) ([]offset.Estimate, error) {
	return NewOptimizer(cfg).ComputeOffsets(s)
}

// ComputeOffsets returns up to RequestedOffsetCount estimates ordered by
// decreasing confidence. A surface without positive candidates yields an
// empty slice and no error. Errors from the extractor are returned unchanged.
func (o *Optimizer) ComputeOffsets(s *surface.Surface) ([]offset.Estimate, error) {
	cfg := o.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateSurface(s); err != nil {
		return nil, err
	}

	logger := Logger()

	adjusted := condition.Conditioner{
		Params: condition.Params{
			BiasTowardsExpected: cfg.BiasTowardsExpected,
			ZeroSuppression:     cfg.ZeroSuppression,
		},
		Exec: o.exec,
		Sink: o.sink,
	}.Condition(s)

	n := peaks.CandidateCount(cfg.RequestedOffsetCount, s.Dim())
	candidates, err := o.extractor.FindTopPeaks(adjusted, n)
	if err != nil {
		return nil, err
	}
	extracted := len(candidates)

	// same steps as peaks.Filter, split to log the merge
	ranked := peaks.TrimNonPositive(candidates)
	if cfg.MergePeaks > 0 {
		before := len(ranked)
		ranked = peaks.Merge(ranked, s.Size)
		peaks.SortDescending(ranked)
		logger.Debug("peaks merged",
			slog.Int("candidates", before),
			slog.Int("merged", before-len(ranked)),
		)
	}
	ranked = peaks.Truncate(ranked, cfg.RequestedOffsetCount)

	logger.Debug("peak search",
		slog.Int("requested", cfg.RequestedOffsetCount),
		slog.Int("extracted", extracted),
		slog.Int("kept", len(ranked)),
	)

	estimates := offset.Resolver{
		Method: cfg.PeakInterpolation,
		Logger: logger,
	}.Resolve(adjusted, ranked)

	postProcessConfidences(estimates, cfg)
	return estimates, nil
}

func postProcessConfidences(estimates []offset.Estimate, cfg Config) {
	if len(estimates) == 0 {
		return
	}
	normalize := cfg.NormalizeConfidences && estimates[0].Confidence > 0
	scale := cfg.ConfidenceScale != 0 && cfg.ConfidenceScale != 1
	if !normalize && !scale {
		return
	}

	conf := make([]float64, len(estimates))
	for i, e := range estimates {
		conf[i] = e.Confidence
	}
	if normalize {
		floats.Scale(1/conf[0], conf)
	}
	if scale {
		floats.Scale(cfg.ConfidenceScale, conf)
	}
	for i := range estimates {
		estimates[i].Confidence = conf[i]
	}
}
