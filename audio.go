package main

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/ffmpego"
)

const wavScale = 32767

// ReadSamples decodes an audio file into mono samples.
//
// WAV files are decoded directly; other formats are decoded
// by ffmpeg.
func ReadSamples(path string) (samples []float32, sampleRate int, err error) {
	defer essentials.AddCtxTo("read samples", &err)
	if strings.ToLower(filepath.Ext(path)) == ".wav" {
		return readWAV(path)
	}

	reader, err := ffmpego.NewAudioReader(path)
	if err != nil {
		return nil, 0, err
	}
	defer reader.Close()

	buf := make([]float64, 65536)
	for {
		count, err := reader.ReadSamples(buf)
		for _, x := range buf[:count] {
			samples = append(samples, float32(x))
		}
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, 0, err
		}
	}
	return samples, reader.AudioInfo().Frequency, nil
}

func readWAV(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, errors.New("invalid WAV file")
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}
	numChannels := buf.Format.NumChannels
	if numChannels < 1 {
		return nil, 0, errors.New("WAV file has no channels")
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth < 1 {
		bitDepth = int(decoder.BitDepth)
	}
	scale := 1 / float32(int(1)<<uint(bitDepth-1))

	res := make([]float32, len(buf.Data)/numChannels)
	for i := range res {
		var sum float32
		for _, x := range buf.Data[i*numChannels : (i+1)*numChannels] {
			sum += float32(x)
		}
		res[i] = sum * scale / float32(numChannels)
	}
	return res, buf.Format.SampleRate, nil
}

// WriteSamples encodes mono samples to an audio file.
//
// WAV files are encoded directly as 16-bit PCM; other formats
// are encoded by ffmpeg.
func WriteSamples(path string, sampleRate int, samples []float32) (err error) {
	defer essentials.AddCtxTo("write samples", &err)
	if strings.ToLower(filepath.Ext(path)) == ".wav" {
		return writeWAV(path, sampleRate, samples)
	}
	samples64 := make([]float64, len(samples))
	for i, x := range samples {
		samples64[i] = float64(x)
	}
	writer, err := ffmpego.NewAudioWriter(path, sampleRate)
	if err != nil {
		return err
	}
	if err := writer.WriteSamples(samples64); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

func writeWAV(path string, sampleRate int, samples []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	data := make([]int, len(samples))
	for i, x := range samples {
		data[i] = int(math.Round(math.Max(-1, math.Min(1, float64(x))) * wavScale))
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           data,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// RenderLoop extends a track by repeating the section
// between loopStart and loopEnd, given in samples.
//
// The result plays up to loopEnd, jumps back to loopStart
// numLoops times, and then finishes the track. A negative
// numLoops is treated as 0.
func RenderLoop(samples []float32, loopStart, loopEnd, numLoops int) []float32 {
	numLoops = essentials.MaxInt(0, numLoops)
	loop := samples[loopStart:loopEnd]
	res := make([]float32, 0, len(samples)+numLoops*len(loop))
	res = append(res, samples[:loopEnd]...)
	for i := 0; i < numLoops; i++ {
		res = append(res, loop...)
	}
	return append(res, samples[loopEnd:]...)
}
