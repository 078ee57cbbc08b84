package looppairs

import (
	"math"

	"gonum.org/v1/gonum/blas/blas32"
)

// Column returns a strided view of column j of m.
//
// The view shares m's backing data, so no copying is done.
func Column(m blas32.General, j int) blas32.Vector {
	if m.Rows == 0 {
		return blas32.Vector{Inc: 1}
	}
	return blas32.Vector{
		N:    m.Rows,
		Inc:  m.Stride,
		Data: m.Data[j:],
	}
}

// ChromaDistance computes the Euclidean distance between
// two equal-length vectors.
//
// The scratch slice must have room for a.N elements.
// It is overwritten with a-b.
func ChromaDistance(a, b blas32.Vector, scratch []float32) float32 {
	if a.N == 0 && b.N == 0 {
		return 0
	}
	diff := blas32.Vector{N: a.N, Inc: 1, Data: scratch[:a.N]}
	blas32.Copy(a, diff)
	blas32.Axpy(-1, b, diff)
	return blas32.Nrm2(diff)
}

// LoudnessDifference computes the absolute difference
// between the loudest bands of two power vectors.
//
// The maximum of an empty vector is negative infinity.
func LoudnessDifference(a, b blas32.Vector) float32 {
	return float32(math.Abs(float64(vecMax(a) - vecMax(b))))
}

func vecMax(v blas32.Vector) float32 {
	res := float32(math.Inf(-1))
	for i := 0; i < v.N; i++ {
		// NaN entries never win, matching a max() fold.
		if x := v.Data[i*v.Inc]; x > res {
			res = x
		}
	}
	return res
}
