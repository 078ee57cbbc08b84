package features

import (
	"math"

	"gonum.org/v1/gonum/blas/blas32"
)

const (
	// NumPitchClasses is the number of rows in a chromagram.
	NumPitchClasses = 12

	// MinChromaFreq is the lowest frequency, in Hz, that
	// contributes to a chromagram.
	MinChromaFreq = 32.7
)

// Chroma folds a PowerSpectrogram into pitch classes.
//
// Row 0 of the result corresponds to C, and tuning assumes
// A4 is 440 Hz. Each column is scaled so that its largest
// entry is 1, except for silent columns which remain 0.
func Chroma(power blas32.General, sampleRate int) blas32.General {
	res := blas32.General{
		Rows:   NumPitchClasses,
		Cols:   power.Cols,
		Stride: power.Cols,
		Data:   make([]float32, NumPitchClasses*power.Cols),
	}
	if power.Cols == 0 {
		return res
	}

	nyquist := float64(sampleRate) / 2
	for k, freq := range FFTFrequencies(sampleRate)[:power.Rows] {
		if freq < MinChromaFreq || freq > nyquist {
			continue
		}
		class := pitchClass(freq)
		src := power.Data[k*power.Stride : k*power.Stride+power.Cols]
		dst := blas32.Vector{N: power.Cols, Inc: 1, Data: res.Data[class*res.Stride:]}
		blas32.Axpy(1, blas32.Vector{N: power.Cols, Inc: 1, Data: src}, dst)
	}

	for t := 0; t < res.Cols; t++ {
		col := blas32.Vector{N: res.Rows, Inc: res.Stride, Data: res.Data[t:]}
		var peak float32
		for i := 0; i < col.N; i++ {
			if x := col.Data[i*col.Inc]; x > peak {
				peak = x
			}
		}
		if peak > 0 {
			blas32.Scal(1/peak, col)
		}
	}
	return res
}

func pitchClass(freq float64) int {
	midi := int(math.Round(12*math.Log2(freq/440) + 69))
	return ((midi % NumPitchClasses) + NumPitchClasses) % NumPitchClasses
}
