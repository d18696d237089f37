package registration

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cwbudde/algo-montage/internal/testutil"
	"github.com/cwbudde/algo-montage/registration/condition"
	"github.com/cwbudde/algo-montage/registration/diag"
	"github.com/cwbudde/algo-montage/registration/interp"
	"github.com/cwbudde/algo-montage/registration/offset"
	"github.com/cwbudde/algo-montage/registration/parallel"
	"github.com/cwbudde/algo-montage/registration/peaks"
	"github.com/cwbudde/algo-montage/registration/surface"
)

func TestSingleImpulseScenario(t *testing.T) {
	s := testutil.ImpulseSurface(10, []int{2, 3}, 8, 8)
	cfg := Config{
		ZeroSuppression:      10,
		BiasTowardsExpected:  0,
		MergePeaks:           1,
		PeakInterpolation:    interp.None,
		RequestedOffsetCount: 1,
	}

	got, err := ComputeOffsets(s, cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := []offset.Estimate{{Offset: []float64{-2, -3}, Confidence: 10}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("estimates (-want +got):\n%s", diff)
	}
}

func TestNonPositiveSurfaceYieldsNoOffsets(t *testing.T) {
	for _, count := range []int{1, 3, 50} {
		s, _ := surface.New(16, 16)
		for i := range s.Data {
			s.Data[i] = -float64(i % 5)
		}
		cfg := DefaultConfig()
		cfg.RequestedOffsetCount = count

		got, err := ComputeOffsets(s, cfg)
		if err != nil {
			t.Fatalf("count %d: %v", count, err)
		}
		if got == nil || len(got) != 0 {
			t.Fatalf("count %d: got %v want empty slice", count, got)
		}
	}
}

func TestMergedPeaksOutrankSingleSample(t *testing.T) {
	s, _ := surface.New(32, 32)
	s.Set(5, 10, 10)
	s.Set(3, 11, 10)
	s.Set(6, 20, 5)

	cfg := Config{
		ZeroSuppression:      5,
		MergePeaks:           1,
		PeakInterpolation:    interp.None,
		RequestedOffsetCount: 2,
	}
	got, err := ComputeOffsets(s, cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := []offset.Estimate{
		{Offset: []float64{-10, -10}, Confidence: 8},
		{Offset: []float64{12, -5}, Confidence: 6},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("estimates (-want +got):\n%s", diff)
	}

	cfg.MergePeaks = 0
	got, err = ComputeOffsets(s, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Confidence != 6 || got[1].Confidence != 5 {
		t.Fatalf("without merging: got %+v", got)
	}
}

func TestMergedPeakRefinement(t *testing.T) {
	s, _ := surface.New(32)
	s.Set(1, 9)
	s.Set(4, 10)
	s.Set(3, 11)

	cfg := DefaultConfig()
	cfg.BiasTowardsExpected = 0
	cfg.RequestedOffsetCount = 1

	got, err := ComputeOffsets(s, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d estimates want 1", len(got))
	}
	// two candidates merge into confidence 7, which is the centre of the fit
	testutil.RequireNearlyEqual(t, "confidence", got[0].Confidence, 7, 0)
	testutil.RequireNearlyEqual(t, "offset", got[0].Offset[0], -10.1, 1e-12)
}

func TestTruncatesToAvailablePeaks(t *testing.T) {
	s, _ := surface.New(32, 32)
	s.Set(4, 10, 10)
	s.Set(3, 20, 20)
	s.Set(2, 5, 25)

	cfg := DefaultConfig()
	cfg.BiasTowardsExpected = 0
	cfg.RequestedOffsetCount = 10

	got, err := ComputeOffsets(s, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d estimates want 3", len(got))
	}
}

func TestConfidencesNonIncreasing(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		s := testutil.NoiseSurface(seed, 1, 24, 20)
		s.MovingOrigin = []float64{float64(seed % 7), -float64(seed % 5)}

		cfg := DefaultConfig()
		cfg.RequestedOffsetCount = 8
		cfg.PeakInterpolation = interp.Method(seed % 3)

		got, err := NewOptimizer(cfg, WithExecutor(parallel.Sequential{})).ComputeOffsets(s)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		for i := 1; i < len(got); i++ {
			if got[i].Confidence > got[i-1].Confidence {
				t.Fatalf("seed %d: rank %d confidence %v > %v", seed, i, got[i].Confidence, got[i-1].Confidence)
			}
		}
		for i, e := range got {
			if !(e.Confidence > 0) {
				t.Fatalf("seed %d: rank %d non-positive confidence %v", seed, i, e.Confidence)
			}
		}
	}
}

func TestInvalidConfig(t *testing.T) {
	valid := DefaultConfig()
	for name, mutate := range map[string]func(*Config){
		"zero suppression zero":     func(c *Config) { c.ZeroSuppression = 0 },
		"zero suppression negative": func(c *Config) { c.ZeroSuppression = -1 },
		"count zero":                func(c *Config) { c.RequestedOffsetCount = 0 },
		"count negative":            func(c *Config) { c.RequestedOffsetCount = -3 },
		"bias negative":             func(c *Config) { c.BiasTowardsExpected = -0.5 },
		"merge negative":            func(c *Config) { c.MergePeaks = -1 },
		"unknown interpolation":     func(c *Config) { c.PeakInterpolation = interp.Method(9) },
		"negative scale":            func(c *Config) { c.ConfidenceScale = -2 },
	} {
		cfg := valid
		mutate(&cfg)

		ext := &countingExtractor{}
		s := testutil.ImpulseSurface(1, []int{3, 3}, 8, 8)
		if _, err := NewOptimizer(cfg, WithExtractor(ext)).ComputeOffsets(s); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: got %v want ErrInvalidConfig", name, err)
		}
		if ext.calls != 0 {
			t.Fatalf("%s: extractor called", name)
		}
	}
}

func TestInvalidSurface(t *testing.T) {
	cfg := DefaultConfig()

	s := testutil.ImpulseSurface(1, []int{3, 3}, 8, 8)
	s.Spacing[1] = 0
	if _, err := ComputeOffsets(s, cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("zero spacing: got %v want ErrInvalidConfig", err)
	}

	s = testutil.ImpulseSurface(1, []int{3, 3}, 8, 8)
	s.Spacing[0] = -1
	if _, err := ComputeOffsets(s, cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("negative spacing: got %v want ErrInvalidConfig", err)
	}

	if _, err := ComputeOffsets(nil, cfg); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("nil surface: got %v want ErrEmptyInput", err)
	}

	empty := &surface.Surface{
		Grid: surface.Grid{
			Size:    []int{0, 4},
			Index:   []int{0, 0},
			Spacing: []float64{1, 1},
		},
		FixedOrigin:  []float64{0, 0},
		MovingOrigin: []float64{0, 0},
	}
	if _, err := ComputeOffsets(empty, cfg); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("zero extent: got %v want ErrEmptyInput", err)
	}

	s = testutil.ImpulseSurface(1, []int{3, 3}, 8, 8)
	s.FixedOrigin = []float64{0}
	if _, err := ComputeOffsets(s, cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("origin mismatch: got %v want ErrInvalidConfig", err)
	}
}

var errBoom = errors.New("extraction failed")

type failingExtractor struct{}

func (failingExtractor) FindTopPeaks(*surface.Surface, int) ([]peaks.Peak, error) {
	return nil, errBoom
}

type countingExtractor struct {
	calls int
	n     int
}

func (c *countingExtractor) FindTopPeaks(s *surface.Surface, n int) ([]peaks.Peak, error) {
	c.calls++
	c.n = n
	return peaks.TopN{}.FindTopPeaks(s, n)
}

func TestExtractionErrorPropagatesUnchanged(t *testing.T) {
	s := testutil.ImpulseSurface(1, []int{3, 3}, 8, 8)
	got, err := NewOptimizer(DefaultConfig(), WithExtractor(failingExtractor{})).ComputeOffsets(s)
	if err != errBoom { //nolint:errorlint
		t.Fatalf("got %v want errBoom itself", err)
	}
	if got != nil {
		t.Fatalf("partial results exposed: %v", got)
	}
}

func TestExtractorReceivesOversampledCount(t *testing.T) {
	s := testutil.NoiseSurface(4, 1, 8, 8, 4)
	cfg := DefaultConfig()
	cfg.RequestedOffsetCount = 3

	ext := &countingExtractor{}
	if _, err := NewOptimizer(cfg, WithExtractor(ext)).ComputeOffsets(s); err != nil {
		t.Fatal(err)
	}
	if ext.n != 2*26 {
		t.Fatalf("got n=%d want %d", ext.n, 2*26)
	}
}

func TestSinkReceivesAdjustedSurfaces(t *testing.T) {
	s := testutil.NoiseSurface(9, 1, 16, 16)
	var rec diag.Recorder
	if _, err := NewOptimizer(DefaultConfig(), WithSink(&rec)).ComputeOffsets(s); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{condition.LabelBiased, condition.LabelZeroSuppressed}, rec.Labels()); diff != "" {
		t.Fatalf("labels (-want +got):\n%s", diff)
	}
}

func TestConfidencePostProcessing(t *testing.T) {
	s, _ := surface.New(32, 32)
	s.Set(4, 10, 10)
	s.Set(2, 20, 20)

	cfg := Config{
		ZeroSuppression:      5,
		RequestedOffsetCount: 2,
		NormalizeConfidences: true,
		ConfidenceScale:      1000,
	}
	got, err := ComputeOffsets(s, cfg)
	if err != nil {
		t.Fatal(err)
	}
	testutil.RequireNearlyEqual(t, "rank 0", got[0].Confidence, 1000, 1e-9)
	testutil.RequireNearlyEqual(t, "rank 1", got[1].Confidence, 500, 1e-9)

	cfg.NormalizeConfidences = false
	got, _ = ComputeOffsets(s, cfg)
	testutil.RequireNearlyEqual(t, "scaled", got[0].Confidence, 4000, 1e-9)
}

func TestLoggerReceivesPeakSearch(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	s := testutil.ImpulseSurface(1, []int{3, 3}, 8, 8)
	if _, err := ComputeOffsets(s, DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "peak search") {
		t.Fatalf("missing log record:\n%s", buf.String())
	}

	buf.Reset()
	m, _ := surface.New(32, 32)
	m.Set(5, 10, 10)
	m.Set(3, 11, 10)
	if _, err := ComputeOffsets(m, DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "peaks merged") || !strings.Contains(buf.String(), "merged=1") {
		t.Fatalf("missing merge record:\n%s", buf.String())
	}

	SetLogger(nil)
	if Logger().Enabled(t.Context(), slog.LevelError) {
		t.Fatal("nil logger should restore silent default")
	}
}

func TestConcurrentInvocations(t *testing.T) {
	opt := NewOptimizer(DefaultConfig())

	const n = 8
	want := make([][]offset.Estimate, n)
	for i := range n {
		var err error
		want[i], err = opt.ComputeOffsets(testutil.NoiseSurface(int64(i), 1, 20, 20))
		if err != nil {
			t.Fatal(err)
		}
	}

	got := make([][]offset.Estimate, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			got[i], _ = opt.ComputeOffsets(testutil.NoiseSurface(int64(i), 1, 20, 20))
		})
	}
	wg.Wait()

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("concurrent results differ (-want +got):\n%s", diff)
	}
}
