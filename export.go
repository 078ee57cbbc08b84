package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/unixpickle/essentials"
)

// LoopTxtName is the file that AppendLoopTxt writes to.
const LoopTxtName = "loops.txt"

// SplitLoop divides a track into the audio before the loop,
// the loop itself, and the audio after it.
func SplitLoop(samples []float32, loopStart, loopEnd int) (intro, loop, outro []float32) {
	return samples[:loopStart], samples[loopStart:loopEnd], samples[loopEnd:]
}

// ExportSplit writes the intro, loop, and outro of a track to
// basePath+"-intro"+ext, basePath+"-loop"+ext, and
// basePath+"-outro"+ext.
func ExportSplit(basePath, ext string, sampleRate int, samples []float32,
	loopStart, loopEnd int) (paths []string, err error) {
	defer essentials.AddCtxTo("export split", &err)
	intro, loop, outro := SplitLoop(samples, loopStart, loopEnd)
	parts := []struct {
		Name    string
		Samples []float32
	}{
		{"intro", intro},
		{"loop", loop},
		{"outro", outro},
	}
	for _, part := range parts {
		path := basePath + "-" + part.Name + ext
		if err := WriteSamples(path, sampleRate, part.Samples); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// AppendLoopTxt appends a "loopStart loopEnd name" line to
// the LoopTxtName file in dir, creating it if necessary.
func AppendLoopTxt(dir string, loopStart, loopEnd int, name string) (err error) {
	defer essentials.AddCtxTo("export loop points", &err)
	f, err := os.OpenFile(filepath.Join(dir, LoopTxtName),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "%d %d %s\n", loopStart, loopEnd, name); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ExtendLoop lengthens a track to targetLength samples by
// repeating the section between loopStart and loopEnd.
//
// By default, the track ends during the last repetition,
// which is cut short and faded out over its final fadeLength
// samples. If keepOutro is set, the last repetition is
// played in full and followed by the rest of the track, so
// the result may be longer than targetLength.
func ExtendLoop(samples []float32, loopStart, loopEnd, targetLength, fadeLength int,
	keepOutro bool) (res []float32, err error) {
	defer essentials.AddCtxTo("extend loop", &err)
	if loopStart < 0 || loopEnd <= loopStart || loopEnd > len(samples) {
		return nil, fmt.Errorf("invalid loop [%d, %d) for %d samples", loopStart, loopEnd,
			len(samples))
	}
	if targetLength < len(samples) {
		return nil, errors.New("extended length must be at least the track length")
	}
	intro, loop, outro := SplitLoop(samples, loopStart, loopEnd)

	loopTotal := targetLength - len(intro)
	if keepOutro {
		loopTotal -= len(outro)
	}
	loopFactor := float64(loopTotal) / float64(len(loop))
	numLoops := int(loopFactor)

	var final []float32
	if keepOutro {
		final = loop
	} else {
		partial := int(float64(len(loop)) * (loopFactor - float64(numLoops)))
		final = append([]float32{}, loop[:partial]...)
		fadeOut(final, essentials.MinInt(fadeLength, partial))
	}

	res = make([]float32, 0, len(intro)+numLoops*len(loop)+len(final)+len(outro))
	res = append(res, intro...)
	for i := 0; i < numLoops; i++ {
		res = append(res, loop...)
	}
	res = append(res, final...)
	if keepOutro {
		res = append(res, outro...)
	}
	return res, nil
}

// fadeOut scales the last n samples by a ramp from 1 to 0.
func fadeOut(samples []float32, n int) {
	if n < 2 {
		return
	}
	tail := samples[len(samples)-n:]
	for i := range tail {
		tail[i] *= 1 - float32(i)/float32(n-1)
	}
}
