package correlate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-montage/internal/testutil"
	"github.com/cwbudde/algo-montage/registration/surface"
	"github.com/cwbudde/algo-montage/registration/window"
)

func argmax(t *testing.T, s *surface.Surface) []int {
	t.Helper()
	testutil.RequireFinite(t, s.Data)
	return s.IndexOf(floats.MaxIdx(s.Data), nil)
}

func TestCircularShiftPeaksAtShift(t *testing.T) {
	for _, tc := range []struct {
		size  []int
		shift []int
		want  []int
	}{
		{[]int{32, 32}, []int{5, -3}, []int{5, 29}},
		{[]int{16, 8}, []int{0, 2}, []int{0, 2}},
		{[]int{64}, []int{-10}, []int{54}},
		{[]int{8, 8, 8}, []int{1, 2, 3}, []int{1, 2, 3}},
	} {
		fixed := testutil.NoiseImage(3, 1, tc.size...)
		moving := testutil.CircularShift(fixed, tc.shift)

		s, err := PhaseCorrelate(fixed, moving)
		if err != nil {
			t.Fatalf("size %v: %v", tc.size, err)
		}
		if diff := cmp.Diff(tc.want, argmax(t, s)); diff != "" {
			t.Fatalf("size %v shift %v: peak (-want +got):\n%s", tc.size, tc.shift, diff)
		}
	}
}

func TestSurfaceGeometryFollowsFixed(t *testing.T) {
	fixed := testutil.NoiseImage(5, 1, 16, 16)
	fixed.Index = []int{1, 2}
	fixed.Spacing = []float64{0.5, 0.25}
	fixed.Origin = []float64{10, 20}

	moving := testutil.CircularShift(fixed, []int{2, 3})
	moving.Origin = []float64{11, 19}

	s, err := PhaseCorrelate(fixed, moving)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(fixed.Index, s.Index); diff != "" {
		t.Fatalf("index (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(fixed.Spacing, s.Spacing); diff != "" {
		t.Fatalf("spacing (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{1, -1}, s.ExpectedOffset()); diff != "" {
		t.Fatalf("expected offset (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{3, 5}, argmax(t, s)); diff != "" {
		t.Fatalf("peak (-want +got):\n%s", diff)
	}
}

func TestWindowedCorrelationKeepsPeak(t *testing.T) {
	fixed := testutil.NoiseImage(8, 1, 32, 32)
	moving := testutil.CircularShift(fixed, []int{3, 4})

	s, err := PhaseCorrelate(fixed, moving, WithWindow(window.TypeTukey, window.WithAlpha(0.25)))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{3, 4}, argmax(t, s)); diff != "" {
		t.Fatalf("peak (-want +got):\n%s", diff)
	}
}

func TestInputsUnchanged(t *testing.T) {
	fixed := testutil.NoiseImage(8, 1, 8, 8)
	moving := testutil.CircularShift(fixed, []int{1, 1})
	fixedCopy := append([]float64(nil), fixed.Data...)

	if _, err := PhaseCorrelate(fixed, moving, WithWindow(window.TypeHann)); err != nil {
		t.Fatal(err)
	}
	testutil.RequireSliceNearlyEqual(t, fixed.Data, fixedCopy, 0)
}

func TestErrors(t *testing.T) {
	a := testutil.NoiseImage(1, 1, 8, 8)
	b := testutil.NoiseImage(1, 1, 8, 4)

	if _, err := PhaseCorrelate(nil, a); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("nil: got %v", err)
	}
	if _, err := PhaseCorrelate(a, b); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("size mismatch: got %v", err)
	}

	c := testutil.NoiseImage(1, 1, 8, 8)
	c.Spacing[0] = 2
	if _, err := PhaseCorrelate(a, c); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("spacing mismatch: got %v", err)
	}

	d := testutil.NoiseImage(1, 1, 8, 8)
	d.Data = d.Data[:3]
	if _, err := PhaseCorrelate(a, d); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("bad data: got %v", err)
	}
}
