package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	minPower    = 1e-10
	topDB       = 80.0
	minWeightDB = -80.0
)

// AWeighting computes the A-weighting, in decibels, for
// each frequency.
func AWeighting(freqs []float64) []float64 {
	res := make([]float64, len(freqs))
	for i, f := range freqs {
		f2 := f * f
		num := 12194.0 * 12194.0 * f2 * f2
		den := (f2 + 20.6*20.6) * math.Sqrt((f2+107.7*107.7)*(f2+737.9*737.9)) *
			(f2 + 12194.0*12194.0)
		res[i] = math.Max(minWeightDB, 2.0+20*math.Log10(num/den))
	}
	return res
}

// PowerDB converts a PowerSpectrogram into perceptually
// weighted decibels.
//
// Each bin is A-weighted, then expressed in dB relative to
// the median weighted power of the whole spectrogram.
// Values more than 80 dB below the loudest value are
// clipped.
func PowerDB(power blas32.General, sampleRate int) blas32.General {
	res := blas32.General{
		Rows:   power.Rows,
		Cols:   power.Cols,
		Stride: power.Cols,
		Data:   make([]float32, power.Rows*power.Cols),
	}
	if power.Rows == 0 || power.Cols == 0 {
		return res
	}

	weights := AWeighting(FFTFrequencies(sampleRate)[:power.Rows])
	weighted := make([]float64, 0, len(res.Data))
	for i := 0; i < power.Rows; i++ {
		scale := math.Pow(10, weights[i]/10)
		row := power.Data[i*power.Stride : i*power.Stride+power.Cols]
		for _, x := range row {
			weighted = append(weighted, float64(x)*scale)
		}
	}

	sorted := append([]float64{}, weighted...)
	sort.Float64s(sorted)
	refDB := 10 * math.Log10(math.Max(minPower, median(sorted)))

	for i, x := range weighted {
		weighted[i] = 10*math.Log10(math.Max(minPower, x)) - refDB
	}
	floor := floats.Max(weighted) - topDB
	for i, x := range weighted {
		res.Data[i] = float32(math.Max(floor, x))
	}
	return res
}

// median averages the two middle values of an even-length
// sorted slice.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return stat.Quantile(0.5, stat.Empirical, sorted, nil)
	}
	return stat.Mean(sorted[n/2-1:n/2+1], nil)
}
