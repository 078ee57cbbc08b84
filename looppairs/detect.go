// Package looppairs searches for pairs of beats which
// could serve as seamless loop boundaries.
//
// Feature matrices are laid out with one row per chroma
// channel (or power band) and one column per frame.
// All frame indices refer to columns of these matrices.
package looppairs

import (
	"errors"
	"fmt"

	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/blas/blas32"
)

// A Pair is a candidate loop, where playback jumps from
// LoopEnd back to LoopStart.
type Pair struct {
	LoopStart int
	LoopEnd   int

	ChromaDistance     float32
	LoudnessDifference float32
}

// Length returns the number of frames in the loop.
func (p Pair) Length() int {
	return p.LoopEnd - p.LoopStart
}

// Params configures the filters applied to each pair.
type Params struct {
	// Tolerances[i] is the largest chroma distance allowed
	// when beats[i] is used as a loop end.
	Tolerances []float32

	// MinDuration and MaxDuration are inclusive bounds on
	// the loop length, in frames.
	MinDuration int
	MaxDuration int

	// LoudnessTolerance is the largest allowed difference in
	// peak loudness, in decibels.
	LoudnessTolerance float32
}

// Detect finds every pair of beats that passes the
// duration, chroma, and loudness filters in p.
//
// The beats must be in ascending order. Pairs are ordered by
// the position of the loop end in beats, then by the position
// of the loop start.
//
// For a given loop end, the scan over loop starts stops at
// the first start which is too close to the end.
// Starts after the end are always skipped.
//
// Comparisons involving NaN features fail, so such pairs are
// never returned.
func Detect(chroma, powerDB blas32.General, beats []int, p *Params) ([]Pair, error) {
	if err := checkInputs(chroma, powerDB, beats, p); err != nil {
		return nil, err
	}
	var res []Pair
	if chroma.Cols == 0 || powerDB.Cols == 0 {
		return res, nil
	}
	scratch := make([]float32, chroma.Rows)
	for endPos := range beats {
		res = scanStarts(res, chroma, powerDB, beats, endPos, p, scratch)
	}
	return res, nil
}

// DetectConcurrent is like Detect, but splits the work across
// up to maxGos Goroutines.
//
// If maxGos is 0, GOMAXPROCS Goroutines are used.
// The result is identical to the result of Detect.
func DetectConcurrent(chroma, powerDB blas32.General, beats []int, p *Params,
	maxGos int) ([]Pair, error) {
	if err := checkInputs(chroma, powerDB, beats, p); err != nil {
		return nil, err
	}
	var res []Pair
	if chroma.Cols == 0 || powerDB.Cols == 0 || len(beats) == 0 {
		return res, nil
	}
	perEnd := make([][]Pair, len(beats))
	essentials.ConcurrentMap(maxGos, len(beats), func(endPos int) {
		scratch := make([]float32, chroma.Rows)
		perEnd[endPos] = scanStarts(nil, chroma, powerDB, beats, endPos, p, scratch)
	})
	for _, pairs := range perEnd {
		res = append(res, pairs...)
	}
	return res, nil
}

func scanStarts(res []Pair, chroma, powerDB blas32.General, beats []int, endPos int,
	p *Params, scratch []float32) []Pair {
	loopEnd := beats[endPos]
	endChroma := Column(chroma, loopEnd)
	endPower := Column(powerDB, loopEnd)
	tolerance := p.Tolerances[endPos]
	for _, loopStart := range beats {
		if loopStart > loopEnd {
			// Unsigned lengths would wrap around and be
			// rejected as too long.
			continue
		}
		loopLength := loopEnd - loopStart
		if loopLength < p.MinDuration {
			break
		} else if loopLength > p.MaxDuration {
			continue
		}
		distance := ChromaDistance(endChroma, Column(chroma, loopStart), scratch)
		if !(distance <= tolerance) {
			continue
		}
		loudness := LoudnessDifference(endPower, Column(powerDB, loopStart))
		if !(loudness <= p.LoudnessTolerance) {
			continue
		}
		res = append(res, Pair{
			LoopStart:          loopStart,
			LoopEnd:            loopEnd,
			ChromaDistance:     distance,
			LoudnessDifference: loudness,
		})
	}
	return res
}

func checkInputs(chroma, powerDB blas32.General, beats []int, p *Params) (err error) {
	defer essentials.AddCtxTo("detect loop pairs", &err)
	if p == nil {
		return errors.New("missing parameters")
	}
	if len(p.Tolerances) != len(beats) {
		return fmt.Errorf("got %d tolerances for %d beats", len(p.Tolerances), len(beats))
	}
	if p.MinDuration < 0 || p.MaxDuration < 0 {
		return fmt.Errorf("invalid duration window [%d, %d]", p.MinDuration, p.MaxDuration)
	}
	if chroma.Cols == 0 || powerDB.Cols == 0 {
		return nil
	}
	for i, b := range beats {
		if b < 0 || b >= chroma.Cols || b >= powerDB.Cols {
			return fmt.Errorf("beat %d (frame %d) out of range for %d chroma and %d power frames",
				i, b, chroma.Cols, powerDB.Cols)
		}
	}
	return nil
}
