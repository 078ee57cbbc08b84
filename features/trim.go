package features

import (
	"math"

	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/floats"
)

// DefaultTrimDB is the level, in decibels below the loudest
// frame, under which leading and trailing audio is silent.
const DefaultTrimDB = 40.0

// TrimSilence finds the range [start, end) of samples from
// the first to the last frame whose RMS is within topDB of
// the loudest frame.
//
// Frames are centered like PowerSpectrogram frames. If no
// frame is louder than any other, the whole signal is kept.
func TrimSilence(samples []float32, topDB float64) (start, end int) {
	numFrames := NumFrames(len(samples))
	if numFrames == 0 {
		return 0, 0
	}
	rms := make([]float64, numFrames)
	for t := range rms {
		lo := essentials.MaxInt(0, t*HopLength-FrameLength/2)
		hi := essentials.MinInt(len(samples), t*HopLength+FrameLength/2)
		frame := blas32.Vector{N: hi - lo, Inc: 1, Data: samples[lo:hi]}
		rms[t] = float64(blas32.Nrm2(frame)) / math.Sqrt(FrameLength)
	}

	threshold := floats.Max(rms) * math.Pow(10, -topDB/20)
	first, last := -1, -1
	for t, x := range rms {
		if x > threshold {
			if first < 0 {
				first = t
			}
			last = t
		}
	}
	if first < 0 {
		return 0, len(samples)
	}
	return first * HopLength, essentials.MinInt(len(samples), (last+1)*HopLength)
}
