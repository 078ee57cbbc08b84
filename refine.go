package main

import (
	"math"

	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

const (
	BufferSize   = 128
	NormInterval = 1024
)

// A Window is a slice of audio along with its norm.
type Window struct {
	Start int
	Data  []float32
	Norm  float32
}

// RefineLoopEnd moves a loop end, given in samples, by at
// most maxShift samples so that the audio following the new
// end best matches the audio following loopStart.
//
// It returns the new loop end and the normalized correlation
// of the match. If no shift can be compared, the original
// loop end is returned with a correlation of -1.
func RefineLoopEnd(samples []float32, loopStart, loopEnd, maxShift,
	compareLength int) (int, float32) {
	if loopStart+compareLength > len(samples) || compareLength <= 0 {
		return loopEnd, -1
	}
	reference := samples[loopStart : loopStart+compareLength]
	start := essentials.MaxInt(0, loopEnd-maxShift)
	end := essentials.MinInt(loopEnd+maxShift+1, len(samples)-compareLength+1)
	if start >= end {
		return loopEnd, -1
	}

	bestEnd := loopEnd
	bestCorrelation := float32(-1)
	index := start
	for corr := range SeamCorrelations(reference, SlidingWindows(samples, start, end, compareLength)) {
		if corr > bestCorrelation {
			bestCorrelation = corr
			bestEnd = index
		}
		index++
	}
	return bestEnd, bestCorrelation
}

// SlidingWindows streams every window of the given length
// that starts in [start, end).
//
// Norms are updated incrementally and recomputed every
// NormInterval windows to limit rounding drift.
func SlidingWindows(samples []float32, start, end, length int) <-chan Window {
	res := make(chan Window, 1)
	go func() {
		defer close(res)
		var sqNorm float32
		for i := start; i < end; i++ {
			vec := samples[i : i+length]
			if (i-start)%NormInterval == 0 {
				sqNorm = blas32.Nrm2(blas32.Vector{N: len(vec), Inc: 1, Data: vec})
				sqNorm *= sqNorm
			} else {
				sqNorm -= samples[i-1] * samples[i-1]
				sqNorm += vec[length-1] * vec[length-1]
			}
			res <- Window{
				Start: i,
				Data:  vec,
				Norm:  float32(math.Sqrt(math.Max(0, float64(sqNorm)))),
			}
		}
	}()
	return res
}

// SeamCorrelations computes the cosine similarity between
// the reference and each window, in order.
//
// Windows are batched into matrices of BufferSize rows so
// that the dot products are computed by a single Gemv.
func SeamCorrelations(reference []float32, windows <-chan Window) <-chan float32 {
	res := make(chan float32, 1)
	refVec := blas32.Vector{N: len(reference), Inc: 1, Data: reference}
	refNorm := blas32.Nrm2(refVec)
	go func() {
		defer close(res)
		var batch []float32
		var norms []float32
		flush := func() {
			if len(norms) == 0 {
				return
			}
			matrix := blas32.General{
				Rows:   len(norms),
				Cols:   len(reference),
				Stride: len(reference),
				Data:   batch,
			}
			dots := blas32.Vector{N: len(norms), Inc: 1, Data: make([]float32, len(norms))}
			blas32.Gemv(blas.NoTrans, 1, matrix, refVec, 0, dots)
			for i, d := range dots.Data {
				res <- d / (norms[i] * refNorm)
			}
			batch = batch[:0]
			norms = norms[:0]
		}
		for window := range windows {
			batch = append(batch, window.Data...)
			norms = append(norms, window.Norm)
			if len(norms) == BufferSize {
				flush()
			}
		}
		flush()
	}()
	return res
}
