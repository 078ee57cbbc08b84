package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultTempo is the tempo, in BPM, reported when no
	// periodicity can be found.
	DefaultTempo = 120.0

	minTempo = 60.0
	maxTempo = 240.0
)

// OnsetStrength computes the mean positive change in
// loudness across bins between consecutive frames.
//
// The first frame has zero onset strength.
func OnsetStrength(powerDB blas32.General) []float32 {
	res := make([]float32, powerDB.Cols)
	if powerDB.Rows == 0 {
		return res
	}
	for i := 0; i < powerDB.Rows; i++ {
		row := powerDB.Data[i*powerDB.Stride : i*powerDB.Stride+powerDB.Cols]
		for t := 1; t < len(row); t++ {
			if diff := row[t] - row[t-1]; diff > 0 {
				res[t] += diff
			}
		}
	}
	blas32.Scal(1/float32(powerDB.Rows), blas32.Vector{N: len(res), Inc: 1, Data: res})
	return res
}

// FrameRate gets the number of frames per second.
func FrameRate(sampleRate int) float64 {
	return float64(sampleRate) / HopLength
}

// EstimateTempo estimates the tempo, in BPM, from the
// autocorrelation of an onset envelope.
func EstimateTempo(onset []float32, sampleRate int) float64 {
	frameRate := FrameRate(sampleRate)
	minLag := int(math.Max(1, math.Round(60*frameRate/maxTempo)))
	maxLag := int(math.Round(60 * frameRate / minTempo))
	if maxLag >= len(onset) {
		maxLag = len(onset) - 1
	}
	if minLag > maxLag {
		return DefaultTempo
	}

	centered := make([]float64, len(onset))
	for i, x := range onset {
		centered[i] = float64(x)
	}
	mean := stat.Mean(centered, nil)
	for i := range centered {
		centered[i] -= mean
	}

	bestLag := 0
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := lag; i < len(centered); i++ {
			corr += centered[i] * centered[i-lag]
		}
		corr /= float64(len(centered) - lag)
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return DefaultTempo
	}
	return 60 * frameRate / float64(bestLag)
}

// Beats picks beat frames from an onset envelope.
//
// Beats are local maxima which exceed the mean onset
// strength. Stronger peaks take priority, and no two beats
// are closer than minSeparation frames.
// The result is sorted in ascending order.
func Beats(onset []float32, minSeparation int) []int {
	if len(onset) < 3 {
		return nil
	}
	values := make([]float64, len(onset))
	for i, x := range onset {
		values[i] = float64(x)
	}
	mean := stat.Mean(values, nil)

	var peaks []int
	for i := 1; i < len(onset)-1; i++ {
		if values[i] > mean && values[i] > values[i-1] && values[i] >= values[i+1] {
			peaks = append(peaks, i)
		}
	}
	sort.SliceStable(peaks, func(i, j int) bool {
		return values[peaks[i]] > values[peaks[j]]
	})

	var res []int
	taken := make([]bool, len(onset))
	for _, p := range peaks {
		if nearbyBeat(taken, p, minSeparation) {
			continue
		}
		taken[p] = true
		res = append(res, p)
	}
	sort.Ints(res)
	return res
}

func nearbyBeat(taken []bool, frame, distance int) bool {
	for i := frame - distance + 1; i < frame+distance; i++ {
		if i >= 0 && i < len(taken) && taken[i] {
			return true
		}
	}
	return false
}

// AllFrames lists every frame index in [start, end).
//
// This can be used in place of Beats to search every frame.
func AllFrames(start, end int) []int {
	var res []int
	for i := start; i < end; i++ {
		res = append(res, i)
	}
	return res
}
