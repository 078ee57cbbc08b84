package main

import (
	"math"
	"math/rand"
	"testing"
)

func TestRefineLoopEnd(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	pattern := make([]float32, 5000)
	for i := range pattern {
		pattern[i] = float32(rng.NormFloat64())
	}
	var samples []float32
	for i := 0; i < 3; i++ {
		samples = append(samples, pattern...)
	}

	for _, offset := range []int{-37, 0, 12, 50} {
		end, corr := RefineLoopEnd(samples, 1000, 6000+offset, 64, 1024)
		if end != 6000 {
			t.Errorf("offset %d: expected loop end 6000 but got %d", offset, end)
		}
		if math.Abs(float64(corr)-1) > 1e-3 {
			t.Errorf("offset %d: expected correlation 1 but got %f", offset, corr)
		}
	}

	// The true seam is out of reach.
	end, corr := RefineLoopEnd(samples, 1000, 6100, 64, 1024)
	if end == 6000 || end < 6100-64 || end > 6100+64 {
		t.Errorf("unexpected loop end %d", end)
	}
	if corr > 0.5 {
		t.Errorf("unexpectedly high correlation %f", corr)
	}
}

func TestRefineLoopEndBounds(t *testing.T) {
	samples := make([]float32, 100)
	if end, corr := RefineLoopEnd(samples, 90, 50, 10, 20); end != 50 || corr != -1 {
		t.Errorf("expected unchanged loop end but got %d (%f)", end, corr)
	}
	if end, corr := RefineLoopEnd(samples, 0, 95, 2, 20); end != 95 || corr != -1 {
		t.Errorf("expected unchanged loop end but got %d (%f)", end, corr)
	}
}

func TestSeamCorrelations(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	samples := make([]float32, 3000)
	for i := range samples {
		samples[i] = float32(rng.NormFloat64())
	}
	reference := samples[100:164]

	index := 0
	for corr := range SeamCorrelations(reference, SlidingWindows(samples, 0, 2000, 64)) {
		window := samples[index : index+64]
		var dot, norm1, norm2 float64
		for i, x := range window {
			dot += float64(x) * float64(reference[i])
			norm1 += float64(x) * float64(x)
			norm2 += float64(reference[i]) * float64(reference[i])
		}
		expected := dot / math.Sqrt(norm1*norm2)
		if math.Abs(expected-float64(corr)) > 1e-3 {
			t.Errorf("window %d: expected %f but got %f", index, expected, corr)
		}
		index++
	}
	if index != 2000 {
		t.Errorf("expected 2000 correlations but got %d", index)
	}
}
