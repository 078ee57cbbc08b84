package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/unixpickle/audio-loop/features"
	"github.com/unixpickle/audio-loop/looppairs"
	"github.com/unixpickle/essentials"
)

func main() {
	var inputFile string
	var outputFile string
	var limit int
	var pairIndex int
	var numLoops int
	var refineWindow float64
	var jsonOutput bool
	var exportDir string
	var exportFormat string
	var splitExport bool
	var txtExport bool
	var extendLength float64
	var fadeLength float64
	var keepOutro bool
	opts := DefaultOptions()
	flag.StringVar(&inputFile, "input", "", "path to input audio file")
	flag.StringVar(&outputFile, "output", "", "path to output audio file (optional)")
	flag.Float64Var(&opts.MinDurationMultiplier, "min-duration-multiplier",
		opts.MinDurationMultiplier, "minimum loop duration as a fraction of the track")
	flag.Float64Var(&opts.MinLoopDuration, "min-loop-duration", 0,
		"minimum loop duration in seconds (overrides multiplier)")
	flag.Float64Var(&opts.MaxLoopDuration, "max-loop-duration", 0,
		"maximum loop duration in seconds (default: track length)")
	flag.Float64Var(&opts.ApproxLoopStart, "approx-loop-start", -1,
		"approximate loop start in seconds")
	flag.Float64Var(&opts.ApproxLoopEnd, "approx-loop-end", -1,
		"approximate loop end in seconds")
	flag.BoolVar(&opts.BruteForce, "brute-force", false,
		"use every frame as a candidate instead of detected beats")
	noteDeviation := flag.Float64("note-deviation", float64(opts.NoteDeviation),
		"allowed chroma deviation as a fraction of chroma magnitude")
	loudnessTolerance := flag.Float64("loudness-tolerance", float64(opts.LoudnessTolerance),
		"allowed loudness difference in decibels")
	flag.Float64Var(&opts.TrimDB, "trim-db", opts.TrimDB,
		"ignore leading and trailing audio this many dB below the peak (0 to disable)")
	flag.IntVar(&opts.Workers, "workers", 0, "search Goroutines (0 for GOMAXPROCS)")
	flag.IntVar(&limit, "limit", 10, "number of candidate pairs to print (0 for all)")
	flag.IntVar(&pairIndex, "pair", 0, "index of the candidate pair to render")
	flag.IntVar(&numLoops, "num-loops", 1, "number of times to loop")
	flag.Float64Var(&refineWindow, "refine-window", 0.02,
		"seconds to search around the loop end when rendering (0 to disable)")
	flag.BoolVar(&jsonOutput, "json", false, "print candidate pairs as JSON")
	flag.StringVar(&exportDir, "export-dir", "",
		"directory for exported files (default: input file's directory)")
	flag.StringVar(&exportFormat, "export-format", "wav", "file extension of exported audio")
	flag.BoolVar(&splitExport, "split", false, "export the intro, loop, and outro as separate files")
	flag.BoolVar(&txtExport, "txt", false, "append the loop points, in samples, to "+LoopTxtName)
	flag.Float64Var(&extendLength, "extend", 0,
		"export the track extended to this many seconds (0 to disable)")
	flag.Float64Var(&fadeLength, "fade", 5, "fade-out length in seconds for -extend")
	flag.BoolVar(&keepOutro, "keep-outro", false,
		"finish -extend with the outro instead of fading out")
	flag.Parse()
	if inputFile == "" {
		fmt.Fprintln(os.Stderr, "Missing required -input flag.")
		fmt.Fprintln(os.Stderr)
		flag.Usage()
		os.Exit(1)
	}
	if numLoops < 0 {
		essentials.Die(fmt.Sprintf("invalid -num-loops %d: must not be negative", numLoops))
	}
	opts.NoteDeviation = float32(*noteDeviation)
	opts.LoudnessTolerance = float32(*loudnessTolerance)

	startTime := time.Now()
	samples, sampleRate, err := ReadSamples(inputFile)
	essentials.Must(err)
	if len(samples) == 0 {
		essentials.Die("audio clip is empty")
	}

	analysis, err := Analyze(samples, sampleRate, opts)
	if err != nil {
		essentials.Die(err)
	}
	logStatus(jsonOutput, "analyzed %s (%s, %d frames) in %v\n", inputFile,
		FormatTime(analysis.Duration()), analysis.Chroma.Cols, time.Since(startTime))
	logStatus(jsonOutput, "detected %d beats at %.0f bpm\n", len(analysis.Beats), analysis.Tempo)
	logStatus(jsonOutput, "found %d candidate loop pairs\n", len(analysis.Pairs))
	if len(analysis.Pairs) == 0 {
		essentials.Die("no loop points found with current parameters")
	}

	shown := analysis.Pairs
	if limit > 0 && limit < len(shown) {
		shown = shown[:limit]
	}
	if jsonOutput {
		printJSON(analysis, shown)
	} else {
		printPairs(analysis, shown)
	}

	if outputFile == "" && !splitExport && !txtExport && extendLength <= 0 {
		return
	}
	if pairIndex < 0 || pairIndex >= len(analysis.Pairs) {
		essentials.Die(fmt.Sprintf("pair index %d out of range [0, %d)", pairIndex,
			len(analysis.Pairs)))
	}
	pair := analysis.Pairs[pairIndex]
	loopStart := FramesToSamples(pair.LoopStart)
	loopEnd := essentials.MinInt(FramesToSamples(pair.LoopEnd), len(samples))
	if maxShift := int(refineWindow * float64(sampleRate)); maxShift > 0 {
		var corr float32
		loopEnd, corr = RefineLoopEnd(samples, loopStart, loopEnd, maxShift, features.FrameLength)
		logStatus(jsonOutput, "refined loop end to %s (correlation=%.3f)\n",
			FormatTime(float64(loopEnd)/float64(sampleRate)), corr)
	}
	if loopEnd <= loopStart {
		essentials.Die("loop is empty after refinement")
	}
	if outputFile != "" {
		essentials.Must(WriteSamples(outputFile, sampleRate,
			RenderLoop(samples, loopStart, loopEnd, numLoops)))
	}

	if exportDir == "" {
		exportDir = filepath.Dir(inputFile)
	}
	inputName := filepath.Base(inputFile)
	basePath := filepath.Join(exportDir, strings.TrimSuffix(inputName, filepath.Ext(inputName)))
	ext := "." + strings.TrimPrefix(exportFormat, ".")
	if splitExport {
		paths, err := ExportSplit(basePath, ext, sampleRate, samples, loopStart, loopEnd)
		essentials.Must(err)
		logStatus(jsonOutput, "exported %s\n", strings.Join(paths, ", "))
	}
	if txtExport {
		essentials.Must(AppendLoopTxt(exportDir, loopStart, loopEnd, inputName))
		logStatus(jsonOutput, "appended loop points to %s\n",
			filepath.Join(exportDir, LoopTxtName))
	}
	if extendLength > 0 {
		extended, err := ExtendLoop(samples, loopStart, loopEnd,
			int(extendLength*float64(sampleRate)), int(fadeLength*float64(sampleRate)), keepOutro)
		if err != nil {
			essentials.Die(err)
		}
		path := basePath + "-extended" + ext
		essentials.Must(WriteSamples(path, sampleRate, extended))
		logStatus(jsonOutput, "exported %s (%s)\n", path,
			FormatTime(float64(len(extended))/float64(sampleRate)))
	}
}

func logStatus(quiet bool, format string, args ...interface{}) {
	if !quiet {
		fmt.Printf(format, args...)
	}
}

func printPairs(a *Analysis, pairs []looppairs.Pair) {
	fmt.Printf("%-6s %-10s %-10s %-10s %-10s\n", "index", "start", "end", "distance", "loudness")
	for i, p := range pairs {
		fmt.Printf(
			"%-6d %-10s %-10s %-10.4f %-10.4f\n",
			i,
			FormatTime(FramesToSeconds(p.LoopStart, a.SampleRate)),
			FormatTime(FramesToSeconds(p.LoopEnd, a.SampleRate)),
			p.ChromaDistance,
			p.LoudnessDifference,
		)
	}
}

type jsonPair struct {
	LoopStart          int     `json:"loop_start"`
	LoopEnd            int     `json:"loop_end"`
	LoopStartSeconds   float64 `json:"loop_start_seconds"`
	LoopEndSeconds     float64 `json:"loop_end_seconds"`
	ChromaDistance     float32 `json:"chroma_distance"`
	LoudnessDifference float32 `json:"loudness_difference"`
}

func printJSON(a *Analysis, pairs []looppairs.Pair) {
	out := make([]jsonPair, len(pairs))
	for i, p := range pairs {
		out[i] = jsonPair{
			LoopStart:          FramesToSamples(p.LoopStart),
			LoopEnd:            FramesToSamples(p.LoopEnd),
			LoopStartSeconds:   FramesToSeconds(p.LoopStart, a.SampleRate),
			LoopEndSeconds:     FramesToSeconds(p.LoopEnd, a.SampleRate),
			ChromaDistance:     p.ChromaDistance,
			LoudnessDifference: p.LoudnessDifference,
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	essentials.Must(enc.Encode(out))
}
