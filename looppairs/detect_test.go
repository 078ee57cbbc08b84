package looppairs

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"gonum.org/v1/gonum/blas/blas32"
)

func TestDetectScenario(t *testing.T) {
	chroma := matrix(2, []float32{
		1, 0, 1, 0,
		0, 1, 0, 0.5,
	})
	powerDB := matrix(2, []float32{
		-10, -3, -12, 4,
		-4, -20, -4, 1,
	})
	p := &Params{
		Tolerances:        []float32{0, 0, 0, 0},
		MinDuration:       1,
		MaxDuration:       3,
		LoudnessTolerance: 0.5,
	}
	pairs, err := Detect(chroma, powerDB, []int{0, 1, 2, 3}, p)
	if err != nil {
		t.Fatal(err)
	}
	expected := []Pair{{LoopStart: 0, LoopEnd: 2}}
	if !reflect.DeepEqual(pairs, expected) {
		t.Errorf("expected %v but got %v", expected, pairs)
	}
}

func TestDetectEmpty(t *testing.T) {
	chroma := matrix(2, []float32{1, 0, 1, 0})
	powerDB := matrix(1, []float32{1, 1})
	emptyMatrix := blas32.General{Rows: 2, Stride: 0}

	testCases := map[string]struct {
		Chroma  blas32.General
		PowerDB blas32.General
		Beats   []int
		Params  *Params
	}{
		"NoBeats": {chroma, powerDB, nil, &Params{MaxDuration: 10}},
		"SingleBeat": {chroma, powerDB, []int{1}, &Params{
			Tolerances:        []float32{10},
			MinDuration:       1,
			MaxDuration:       10,
			LoudnessTolerance: 10,
		}},
		"NoColumns": {emptyMatrix, powerDB, []int{0, 1}, &Params{
			Tolerances:  []float32{1, 1},
			MaxDuration: 10,
		}},
		"NoColumnsNoBeats": {emptyMatrix, emptyMatrix, nil, &Params{MaxDuration: 10}},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			pairs, err := Detect(tc.Chroma, tc.PowerDB, tc.Beats, tc.Params)
			if err != nil {
				t.Fatal(err)
			}
			if len(pairs) != 0 {
				t.Errorf("expected no pairs but got %v", pairs)
			}
			for _, maxGos := range []int{0, 1, 4} {
				pairs, err := DetectConcurrent(tc.Chroma, tc.PowerDB, tc.Beats, tc.Params, maxGos)
				if err != nil {
					t.Fatalf("maxGos=%d: %v", maxGos, err)
				}
				if len(pairs) != 0 {
					t.Errorf("maxGos=%d: expected no pairs but got %v", maxGos, pairs)
				}
			}
		})
	}
}

func TestDetectSelfPair(t *testing.T) {
	chroma := matrix(1, []float32{1, 2, 3})
	powerDB := matrix(1, []float32{0, 0, 0})
	pairs, err := Detect(chroma, powerDB, []int{0, 1, 2}, &Params{
		Tolerances:  []float32{0, 0, 0},
		MinDuration: 0,
		MaxDuration: 0,
	})
	if err != nil {
		t.Fatal(err)
	}
	expected := []Pair{
		{LoopStart: 0, LoopEnd: 0},
		{LoopStart: 1, LoopEnd: 1},
		{LoopStart: 2, LoopEnd: 2},
	}
	if !reflect.DeepEqual(pairs, expected) {
		t.Errorf("expected %v but got %v", expected, pairs)
	}
}

func TestDetectInclusiveBounds(t *testing.T) {
	chroma := matrix(1, make([]float32, 10))
	powerDB := matrix(1, make([]float32, 10))
	beats := []int{0, 2, 5, 9}
	pairs, err := Detect(chroma, powerDB, beats, &Params{
		Tolerances:  make([]float32, 4),
		MinDuration: 3,
		MaxDuration: 7,
	})
	if err != nil {
		t.Fatal(err)
	}
	expected := []Pair{
		{LoopStart: 0, LoopEnd: 5},
		{LoopStart: 2, LoopEnd: 5},
		{LoopStart: 2, LoopEnd: 9},
		{LoopStart: 5, LoopEnd: 9},
	}
	if !reflect.DeepEqual(pairs, expected) {
		t.Errorf("expected %v but got %v", expected, pairs)
	}
}

func TestDetectEndTolerance(t *testing.T) {
	chroma := matrix(1, []float32{0, 0.5, 1, 1.5})
	powerDB := matrix(1, make([]float32, 4))
	pairs, err := Detect(chroma, powerDB, []int{0, 1, 2, 3}, &Params{
		// Only the last beat accepts any chroma difference.
		Tolerances:  []float32{0, 0, 0, 1},
		MinDuration: 1,
		MaxDuration: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	expected := []Pair{
		{LoopStart: 1, LoopEnd: 3, ChromaDistance: 1},
		{LoopStart: 2, LoopEnd: 3, ChromaDistance: 0.5},
	}
	if !reflect.DeepEqual(pairs, expected) {
		t.Errorf("expected %v but got %v", expected, pairs)
	}
}

func TestDetectEarlyBreak(t *testing.T) {
	// With an unsorted beat list, the too-short start 4 hides
	// the valid pair (3, 5).
	chroma := matrix(1, make([]float32, 6))
	powerDB := matrix(1, make([]float32, 6))
	pairs, err := Detect(chroma, powerDB, []int{0, 4, 3, 5}, &Params{
		Tolerances:  make([]float32, 4),
		MinDuration: 2,
		MaxDuration: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	expected := []Pair{
		{LoopStart: 0, LoopEnd: 4},
		{LoopStart: 0, LoopEnd: 3},
		{LoopStart: 0, LoopEnd: 5},
	}
	if !reflect.DeepEqual(pairs, expected) {
		t.Errorf("expected %v but got %v", expected, pairs)
	}
}

func TestDetectNaN(t *testing.T) {
	nan := float32(math.NaN())
	chroma := matrix(1, []float32{1, nan, 1})
	powerDB := matrix(1, []float32{0, 0, nan})
	pairs, err := Detect(chroma, powerDB, []int{0, 1, 2}, &Params{
		Tolerances:        []float32{1, 1, 1},
		MinDuration:       1,
		MaxDuration:       2,
		LoudnessTolerance: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 0 {
		t.Errorf("expected no pairs but got %v", pairs)
	}
}

func TestDetectErrors(t *testing.T) {
	chroma := matrix(1, []float32{1, 2, 3})
	powerDB := matrix(1, []float32{1, 2})
	testCases := map[string]struct {
		Beats  []int
		Params *Params
	}{
		"NilParams":    {[]int{0}, nil},
		"ShortTol":     {[]int{0, 1}, &Params{Tolerances: []float32{1}}},
		"LongTol":      {[]int{0}, &Params{Tolerances: []float32{1, 1}}},
		"NegativeBeat": {[]int{-1, 1}, &Params{Tolerances: []float32{1, 1}}},
		"PowerRange":   {[]int{0, 2}, &Params{Tolerances: []float32{1, 1}}},
		"ChromaRange":  {[]int{0, 3}, &Params{Tolerances: []float32{1, 1}}},
		"NegativeMin":  {[]int{0}, &Params{Tolerances: []float32{1}, MinDuration: -1}},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			pairs, err := Detect(chroma, powerDB, tc.Beats, tc.Params)
			if err == nil {
				t.Error("expected an error")
			}
			if pairs != nil {
				t.Errorf("expected no result but got %v", pairs)
			}
			_, err = DetectConcurrent(chroma, powerDB, tc.Beats, tc.Params, 2)
			if err == nil {
				t.Error("expected an error from concurrent search")
			}
		})
	}
}

func TestDetectProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(1337))
	chroma, powerDB, beats, p := randomInputs(rng, 300, 80)

	pairs, err := Detect(chroma, powerDB, beats, p)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) == 0 {
		t.Fatal("expected some pairs")
	}

	endPos := map[int]int{}
	for i, b := range beats {
		endPos[b] = i
	}
	found := map[[2]int]bool{}
	lastEnd, lastStart := -1, -1
	for _, pair := range pairs {
		if pair.Length() < p.MinDuration || pair.Length() > p.MaxDuration {
			t.Errorf("pair %v violates duration window", pair)
		}
		if pair.ChromaDistance > p.Tolerances[endPos[pair.LoopEnd]] {
			t.Errorf("pair %v violates chroma tolerance", pair)
		}
		if pair.LoudnessDifference > p.LoudnessTolerance {
			t.Errorf("pair %v violates loudness tolerance", pair)
		}
		if pair.LoopEnd < lastEnd || (pair.LoopEnd == lastEnd && pair.LoopStart <= lastStart) {
			t.Errorf("pair %v is out of order", pair)
		}
		lastEnd, lastStart = pair.LoopEnd, pair.LoopStart
		found[[2]int{pair.LoopStart, pair.LoopEnd}] = true
	}

	// The beats are sorted, so no valid pair is pruned.
	scratch := make([]float32, chroma.Rows)
	for i, end := range beats {
		for _, start := range beats {
			length := end - start
			if length < p.MinDuration || length > p.MaxDuration {
				continue
			}
			d := ChromaDistance(Column(chroma, end), Column(chroma, start), scratch)
			l := LoudnessDifference(Column(powerDB, end), Column(powerDB, start))
			if d <= p.Tolerances[i] && l <= p.LoudnessTolerance && !found[[2]int{start, end}] {
				t.Errorf("missing pair (%d, %d)", start, end)
			}
		}
	}

	again, _ := Detect(chroma, powerDB, beats, p)
	if !reflect.DeepEqual(pairs, again) {
		t.Error("results are not deterministic")
	}
}

func TestDetectConcurrent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	chroma, powerDB, beats, p := randomInputs(rng, 500, 120)
	expected, err := Detect(chroma, powerDB, beats, p)
	if err != nil {
		t.Fatal(err)
	}
	for _, maxGos := range []int{0, 1, 3, 16} {
		actual, err := DetectConcurrent(chroma, powerDB, beats, p, maxGos)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(actual, expected) {
			t.Errorf("maxGos=%d: results differ from serial search", maxGos)
		}
	}
}

func BenchmarkDetect(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	chroma, powerDB, beats, p := randomInputs(rng, 5000, 400)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Detect(chroma, powerDB, beats, p)
	}
}

func BenchmarkDetectConcurrent(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	chroma, powerDB, beats, p := randomInputs(rng, 5000, 400)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DetectConcurrent(chroma, powerDB, beats, p, 0)
	}
}

// randomInputs creates features where chroma and loudness
// take on a few discrete values, so that many pairs match.
func randomInputs(rng *rand.Rand, frames, numBeats int) (chroma, powerDB blas32.General,
	beats []int, p *Params) {
	chromaData := make([]float32, 12*frames)
	powerData := make([]float32, 8*frames)
	for i := 0; i < frames; i++ {
		class := rng.Intn(3)
		for j := 0; j < 12; j++ {
			chromaData[j*frames+i] = float32((class+j)%3) / 2
		}
		level := float32(rng.Intn(4)) / 2
		for j := 0; j < 8; j++ {
			powerData[j*frames+i] = level - float32(j)
		}
	}
	chroma = matrix(12, chromaData)
	powerDB = matrix(8, powerData)

	isBeat := make([]bool, frames)
	for _, idx := range rng.Perm(frames)[:numBeats] {
		isBeat[idx] = true
	}
	for i, x := range isBeat {
		if x {
			beats = append(beats, i)
		}
	}
	tolerances := make([]float32, len(beats))
	for i := range tolerances {
		tolerances[i] = float32(rng.Intn(2))
	}
	p = &Params{
		Tolerances:        tolerances,
		MinDuration:       frames / 10,
		MaxDuration:       frames / 2,
		LoudnessTolerance: 0.5,
	}
	return chroma, powerDB, beats, p
}

func matrix(rows int, data []float32) blas32.General {
	cols := len(data) / rows
	return blas32.General{
		Rows:   rows,
		Cols:   cols,
		Stride: cols,
		Data:   data,
	}
}
