package main

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/unixpickle/audio-loop/features"
	"github.com/unixpickle/audio-loop/looppairs"
	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/blas/blas32"
)

// ApproxSearchRadius is the distance, in seconds, searched
// around approximate loop points.
const ApproxSearchRadius = 2.0

// Options controls how loop points are searched for.
type Options struct {
	// MinDurationMultiplier gives the shortest loop as a
	// fraction of the track, unless MinLoopDuration is set.
	MinDurationMultiplier float64

	// Loop duration bounds in seconds. Zero means unset.
	MinLoopDuration float64
	MaxLoopDuration float64

	// Approximate loop points in seconds. Negative means
	// unset; both must be set to take effect.
	ApproxLoopStart float64
	ApproxLoopEnd   float64

	// BruteForce uses every frame as a beat.
	BruteForce bool

	NoteDeviation     float32
	LoudnessTolerance float32

	// TrimDB is the level below the peak under which leading
	// and trailing audio is ignored, or 0 to analyze the whole
	// track.
	TrimDB float64

	// Workers is the maximum number of search Goroutines,
	// or 0 for GOMAXPROCS.
	Workers int
}

// DefaultOptions creates the default search options.
func DefaultOptions() *Options {
	return &Options{
		MinDurationMultiplier: 0.35,
		ApproxLoopStart:       -1,
		ApproxLoopEnd:         -1,
		NoteDeviation:         features.DefaultNoteDeviation,
		LoudnessTolerance:     0.75,
		TrimDB:                features.DefaultTrimDB,
	}
}

func (o *Options) hasApprox() bool {
	return o.ApproxLoopStart >= 0 || o.ApproxLoopEnd >= 0
}

// An Analysis stores the features of a track and the
// candidate loop pairs found in it.
//
// Features and beats index frames of the trimmed audio,
// which starts TrimOffset samples into the track. Pairs
// index frames of the whole track.
type Analysis struct {
	SampleRate int
	NumSamples int
	TrimOffset int

	Chroma  blas32.General
	PowerDB blas32.General

	Tempo float64
	Beats []int

	MinDuration int
	MaxDuration int

	Pairs []looppairs.Pair
}

// Duration gets the track duration in seconds.
func (a *Analysis) Duration() float64 {
	return float64(a.NumSamples) / float64(a.SampleRate)
}

// Analyze extracts features from a mono track and finds
// every candidate loop pair.
func Analyze(samples []float32, sampleRate int, opts *Options) (res *Analysis, err error) {
	defer essentials.AddCtxTo("analyze", &err)
	if len(samples) == 0 {
		return nil, errors.New("audio clip is empty")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	if opts.hasApprox() {
		if opts.ApproxLoopStart < 0 || opts.ApproxLoopEnd < 0 {
			return nil, errors.New("both approximate loop points must be specified")
		}
		if opts.ApproxLoopEnd <= opts.ApproxLoopStart {
			return nil, errors.New("approximate loop end must come after loop start")
		}
	}

	trimStart, trimEnd := 0, len(samples)
	if opts.TrimDB > 0 {
		trimStart, trimEnd = features.TrimSilence(samples, opts.TrimDB)
	}
	power := features.PowerSpectrogram(normalize(samples[trimStart:trimEnd]))
	res = &Analysis{
		SampleRate: sampleRate,
		NumSamples: len(samples),
		TrimOffset: trimStart,
		Chroma:     features.Chroma(power, sampleRate),
		PowerDB:    features.PowerDB(power, sampleRate),
	}
	res.MinDuration, res.MaxDuration = res.durationWindow(opts)

	if opts.hasApprox() {
		res.Tempo = features.DefaultTempo
		res.Beats, res.MinDuration, res.MaxDuration = res.approxBeats(opts)
	} else {
		onset := features.OnsetStrength(res.PowerDB)
		res.Tempo = features.EstimateTempo(onset, sampleRate)
		if opts.BruteForce {
			res.Beats = features.AllFrames(0, res.Chroma.Cols)
		} else {
			framesPerBeat := 60 * features.FrameRate(sampleRate) / res.Tempo
			minSep := essentials.MaxInt(1, int(math.Round(framesPerBeat/2)))
			res.Beats = features.Beats(onset, minSep)
		}
	}

	tolerances, err := features.Tolerances(res.Chroma, res.Beats, opts.NoteDeviation)
	if err != nil {
		return nil, err
	}
	res.Pairs, err = looppairs.DetectConcurrent(res.Chroma, res.PowerDB, res.Beats,
		&looppairs.Params{
			Tolerances:        tolerances,
			MinDuration:       res.MinDuration,
			MaxDuration:       res.MaxDuration,
			LoudnessTolerance: opts.LoudnessTolerance,
		}, opts.Workers)
	if err != nil {
		return nil, err
	}
	if res.TrimOffset > 0 {
		for i := range res.Pairs {
			res.Pairs[i].LoopStart = res.untrimFrame(res.Pairs[i].LoopStart)
			res.Pairs[i].LoopEnd = res.untrimFrame(res.Pairs[i].LoopEnd)
		}
	}
	return res, nil
}

// untrimFrame converts a frame of the trimmed audio into a
// frame of the whole track.
func (a *Analysis) untrimFrame(frame int) int {
	return (FramesToSamples(frame) + a.TrimOffset) / features.HopLength
}

func (a *Analysis) durationWindow(opts *Options) (minFrames, maxFrames int) {
	if opts.MinLoopDuration > 0 {
		minFrames = SecondsToFrames(opts.MinLoopDuration, a.SampleRate)
	} else {
		minSeconds := math.Floor(opts.MinDurationMultiplier * a.Duration())
		minFrames = SecondsToFrames(minSeconds, a.SampleRate)
	}
	if opts.MaxLoopDuration > 0 {
		maxFrames = SecondsToFrames(opts.MaxLoopDuration, a.SampleRate)
	} else {
		maxFrames = SecondsToFrames(a.Duration(), a.SampleRate)
	}
	return
}

// approxBeats lists every frame near the approximate loop
// points, along with a duration window which admits any
// pair of those frames.
func (a *Analysis) approxBeats(opts *Options) (beats []int, minFrames, maxFrames int) {
	radius := SecondsToFrames(ApproxSearchRadius, a.SampleRate)
	offset := float64(a.TrimOffset) / float64(a.SampleRate)
	start := SecondsToFrames(opts.ApproxLoopStart-offset, a.SampleRate)
	end := SecondsToFrames(opts.ApproxLoopEnd-offset, a.SampleRate)
	totalFrames := essentials.MinInt(SecondsToFrames(a.Duration(), a.SampleRate), a.Chroma.Cols)

	minFrames = essentials.MaxInt(0, (end-radius)-(start+radius)-1)
	maxFrames = (end + radius) - (start - radius) + 1

	frames := map[int]bool{}
	for _, center := range []int{start, end} {
		for _, f := range features.AllFrames(essentials.MaxInt(0, center-radius),
			essentials.MinInt(totalFrames, center+radius)) {
			frames[f] = true
		}
	}
	for f := range frames {
		beats = append(beats, f)
	}
	sort.Ints(beats)
	return
}

func normalize(samples []float32) []float32 {
	var peak float32
	for _, x := range samples {
		if x < 0 {
			x = -x
		}
		if x > peak {
			peak = x
		}
	}
	if peak == 0 {
		return samples
	}
	res := make([]float32, len(samples))
	for i, x := range samples {
		res[i] = x / peak
	}
	return res
}

// SecondsToFrames converts a time to an STFT frame index.
func SecondsToFrames(seconds float64, sampleRate int) int {
	return int(math.Floor(seconds * float64(sampleRate) / features.HopLength))
}

// FramesToSeconds converts an STFT frame index to a time.
func FramesToSeconds(frame, sampleRate int) float64 {
	return float64(FramesToSamples(frame)) / float64(sampleRate)
}

// FramesToSamples converts an STFT frame index to a sample
// index.
func FramesToSamples(frame int) int {
	return frame * features.HopLength
}

// FormatTime formats a time as mm:ss.sss.
func FormatTime(seconds float64) string {
	return fmt.Sprintf("%02.0f:%06.3f", math.Floor(seconds/60), math.Mod(seconds, 60))
}
