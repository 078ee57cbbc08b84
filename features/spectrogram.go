// Package features computes the per-frame features used to
// search for loop points: chroma, loudness, and beats.
//
// Frame-level features are stored as blas32.General matrices
// with one column per STFT frame.
package features

import (
	"math"

	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// FrameLength is the number of samples in each STFT window.
	FrameLength = 2048

	// HopLength is the number of samples between consecutive
	// STFT frames.
	HopLength = 512
)

// NumFrames gets the number of STFT frames for a signal.
//
// Frames are centered at multiples of HopLength, so the
// first frame is centered on the first sample.
func NumFrames(numSamples int) int {
	if numSamples == 0 {
		return 0
	}
	return 1 + numSamples/HopLength
}

// PowerSpectrogram computes the squared magnitude of the
// short-time Fourier transform of a mono signal.
//
// The result has FrameLength/2+1 rows (one per frequency
// bin) and NumFrames(len(samples)) columns.
func PowerSpectrogram(samples []float32) blas32.General {
	numFrames := NumFrames(len(samples))
	numBins := FrameLength/2 + 1
	res := blas32.General{
		Rows:   numBins,
		Cols:   numFrames,
		Stride: numFrames,
		Data:   make([]float32, numBins*numFrames),
	}
	if numFrames == 0 {
		return res
	}

	fft := fourier.NewFFT(FrameLength)
	window := hannWindow(FrameLength)
	frame := make([]float64, FrameLength)
	var coeffs []complex128
	for t := 0; t < numFrames; t++ {
		offset := t*HopLength - FrameLength/2
		for i := range frame {
			idx := offset + i
			if idx < 0 || idx >= len(samples) {
				frame[i] = 0
			} else {
				frame[i] = float64(samples[idx]) * window[i]
			}
		}
		coeffs = fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			res.Data[k*res.Stride+t] = float32(real(c)*real(c) + imag(c)*imag(c))
		}
	}
	return res
}

// FFTFrequencies gets the center frequency, in Hz, of each
// row of a PowerSpectrogram.
func FFTFrequencies(sampleRate int) []float64 {
	res := make([]float64, FrameLength/2+1)
	for i := range res {
		res[i] = float64(i) * float64(sampleRate) / FrameLength
	}
	return res
}

func hannWindow(size int) []float64 {
	res := make([]float64, size)
	for i := range res {
		res[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(size))
	}
	return res
}
