package testutil

import (
	"math/rand"

	"github.com/cwbudde/algo-montage/registration/surface"
)

// NoiseSurface returns a surface filled with uniform noise in
// [-amplitude, amplitude) drawn from a fixed seed.
func NoiseSurface(seed int64, amplitude float64, size ...int) *surface.Surface {
	s, err := surface.New(size...)
	if err != nil {
		panic(err)
	}
	fillNoise(s.Data, seed, amplitude)
	return s
}

// ImpulseSurface returns a zero surface with value at the absolute index at.
func ImpulseSurface(value float64, at []int, size ...int) *surface.Surface {
	s, err := surface.New(size...)
	if err != nil {
		panic(err)
	}
	s.Set(value, at...)
	return s
}

// NoiseImage returns an image filled with uniform noise in [0, amplitude).
func NoiseImage(seed int64, amplitude float64, size ...int) *surface.Image {
	img, err := surface.NewImage(size...)
	if err != nil {
		panic(err)
	}
	rng := rand.New(rand.NewSource(seed))
	for i := range img.Data {
		img.Data[i] = rng.Float64() * amplitude
	}
	return img
}

// CircularShift returns a copy of img whose sample at index i equals the
// sample of img at i+shift, wrapping around every axis.
func CircularShift(img *surface.Image, shift []int) *surface.Image {
	out := &surface.Image{
		Grid:   img.Clone(),
		Origin: append([]float64(nil), img.Origin...),
	}

	dim := img.Dim()
	src := make([]int, dim)
	var idx []int
	for pos := range out.Data {
		idx = img.IndexOf(pos, idx)
		for d := range dim {
			rel := (idx[d] - img.Index[d] + shift[d]) % img.Size[d]
			if rel < 0 {
				rel += img.Size[d]
			}
			src[d] = rel + img.Index[d]
		}
		out.Data[pos] = img.Data[img.Linear(src)]
	}
	return out
}

func fillNoise(dst []float64, seed int64, amplitude float64) {
	rng := rand.New(rand.NewSource(seed))
	for i := range dst {
		dst[i] = (rng.Float64()*2 - 1) * amplitude
	}
}
