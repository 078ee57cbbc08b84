package features

import (
	"fmt"

	"github.com/unixpickle/audio-loop/looppairs"
	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/blas/blas32"
)

// DefaultNoteDeviation is the fraction of a beat's chroma
// magnitude that another beat's chroma may deviate by.
const DefaultNoteDeviation = 0.0875

// Tolerances computes the acceptable chroma distance for
// each beat when it is used as a loop end.
//
// The tolerance for a beat is factor times the norm of the
// beat's chroma vector.
func Tolerances(chroma blas32.General, beats []int, factor float32) ([]float32, error) {
	res := make([]float32, len(beats))
	for i, b := range beats {
		if b < 0 || b >= chroma.Cols {
			return nil, essentials.AddCtx("chroma tolerances",
				fmt.Errorf("beat %d (frame %d) out of range for %d frames", i, b, chroma.Cols))
		}
		col := looppairs.Column(chroma, b)
		if col.N > 0 {
			res[i] = factor * blas32.Nrm2(col)
		}
	}
	return res, nil
}
