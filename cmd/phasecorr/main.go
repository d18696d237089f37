// Command phasecorr demonstrates phase-correlation registration on a
// synthetic image pair.
//
// A pseudo-random textured image is generated, a circularly shifted copy is
// made, and the ranked offset estimates recovered from their phase
// correlation are printed.
//
// Usage:
//
//	phasecorr [flags]
//
// Examples:
//
//	phasecorr -size 64x64 -shift 5,-3
//	phasecorr -size 32x32x16 -shift 2,1,-4 -interp cosine -count 3
//	phasecorr -window hann -v
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/algo-montage/registration"
	"github.com/cwbudde/algo-montage/registration/correlate"
	"github.com/cwbudde/algo-montage/registration/diag"
	"github.com/cwbudde/algo-montage/registration/interp"
	"github.com/cwbudde/algo-montage/registration/offset"
	"github.com/cwbudde/algo-montage/registration/parallel"
	"github.com/cwbudde/algo-montage/registration/surface"
	"github.com/cwbudde/algo-montage/registration/window"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

type options struct {
	size    []int
	shift   []int
	seed    int64
	workers int
	window  window.Type
	verbose bool
	cfg     registration.Config
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	def := registration.DefaultConfig()

	fs := flag.NewFlagSet("phasecorr", flag.ContinueOnError)
	fs.SetOutput(stderr)
	size := fs.String("size", "64x64", "image size per axis, e.g. 64x64 or 32x32x16")
	shift := fs.String("shift", "5,-3", "circular shift per axis applied to the moving image")
	count := fs.Int("count", def.RequestedOffsetCount, "number of offsets to report")
	method := fs.String("interp", def.PeakInterpolation.String(), "peak interpolation: none, parabolic, cosine")
	zs := fs.Float64("zs", def.ZeroSuppression, "zero suppression strength")
	bias := fs.Float64("bias", def.BiasTowardsExpected, "bias towards the expected offset")
	merge := fs.Int("merge", def.MergePeaks, "merge adjacent peaks when > 0")
	win := fs.String("window", "rectangular", "apodization window: rectangular, hann, hamming, blackman, tukey")
	normalize := fs.Bool("normalize", false, "normalize confidences so the best is 1")
	workers := fs.Int("workers", 0, "conditioning workers (0 = GOMAXPROCS)")
	seed := fs.Int64("seed", 1, "random seed of the synthetic image")
	verbose := fs.Bool("v", false, "debug logging to stderr")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: phasecorr [flags]\n\n")
		fmt.Fprintf(stderr, "Registers a synthetic image against a circularly shifted copy.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	var opts options
	var err error
	if opts.size, err = parseInts(*size, "x"); err != nil {
		return options{}, fmt.Errorf("invalid -size: %w", err)
	}
	if opts.shift, err = parseInts(*shift, ","); err != nil {
		return options{}, fmt.Errorf("invalid -shift: %w", err)
	}
	if len(opts.shift) != len(opts.size) {
		return options{}, fmt.Errorf("-shift has %d axes, -size has %d", len(opts.shift), len(opts.size))
	}

	m, err := interp.ParseMethod(*method)
	if err != nil {
		return options{}, err
	}
	if opts.window, err = window.Parse(strings.ToLower(*win)); err != nil {
		return options{}, err
	}

	opts.seed = *seed
	opts.workers = *workers
	opts.verbose = *verbose
	opts.cfg = registration.Config{
		ZeroSuppression:      *zs,
		BiasTowardsExpected:  *bias,
		MergePeaks:           *merge,
		PeakInterpolation:    m,
		RequestedOffsetCount: *count,
		NormalizeConfidences: *normalize,
	}
	return opts, nil
}

func parseInts(s, sep string) ([]int, error) {
	parts := strings.Split(s, sep)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	var sink diag.Sink = diag.Nop{}
	if opts.verbose {
		logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		registration.SetLogger(logger)
		defer registration.SetLogger(nil)
		sink = diag.LogSink{Logger: logger, Level: slog.LevelDebug}
	}

	fixed, err := surface.NewImage(opts.size...)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(opts.seed))
	for i := range fixed.Data {
		fixed.Data[i] = rng.Float64()
	}
	moving := shiftImage(fixed, opts.shift)

	corr, err := correlate.PhaseCorrelate(fixed, moving, correlate.WithWindow(opts.window))
	if err != nil {
		return err
	}

	opt := registration.NewOptimizer(opts.cfg,
		registration.WithExecutor(parallel.Strips{Workers: opts.workers}),
		registration.WithSink(sink),
	)
	estimates, err := opt.ComputeOffsets(corr)
	if err != nil {
		return err
	}

	return printEstimates(stdout, estimates)
}

// shiftImage returns a copy of img with out(i) = img(i + shift), wrapping.
// img must start at index zero, as images from surface.NewImage do.
func shiftImage(img *surface.Image, shift []int) *surface.Image {
	out := &surface.Image{Grid: img.CloneShape(), Origin: append([]float64(nil), img.Origin...)}
	src := make([]int, img.Dim())
	var idx []int
	for pos := range out.Data {
		idx = img.IndexOf(pos, idx)
		for d, s := range img.Size {
			src[d] = ((idx[d]+shift[d])%s + s) % s
		}
		out.Data[pos] = img.At(src...)
	}
	return out
}

func printEstimates(w io.Writer, estimates []offset.Estimate) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "Rank\tOffset\tConfidence\n"); err != nil {
		return fmt.Errorf("failed to write output header: %w", err)
	}
	if _, err := fmt.Fprintf(tw, "----\t------\t----------\n"); err != nil {
		return fmt.Errorf("failed to write output header: %w", err)
	}

	for i, e := range estimates {
		parts := make([]string, len(e.Offset))
		for d, v := range e.Offset {
			parts[d] = strconv.FormatFloat(v, 'f', 3, 64)
		}
		if _, err := fmt.Fprintf(tw, "%d\t(%s)\t%.6g\n", i+1, strings.Join(parts, ", "), e.Confidence); err != nil {
			return fmt.Errorf("failed to write output row: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}
