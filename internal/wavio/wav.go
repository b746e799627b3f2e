// Package wavio reads and writes the planar float32 audio the colourizer
// commands work on.
package wavio

import (
	"fmt"
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// Audio is planar audio: one slice per channel, all of equal length.
type Audio struct {
	SampleRate int
	Channels   [][]float32
}

// Frames returns the number of samples per channel.
func (a *Audio) Frames() int {
	if a == nil || len(a.Channels) == 0 {
		return 0
	}
	return len(a.Channels[0])
}

// Read decodes a PCM WAV file into planar channels.
func Read(path string) (*Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("invalid wav buffer: %s", path)
	}
	if buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid wav sample-rate: %d", buf.Format.SampleRate)
	}
	return &Audio{
		SampleRate: buf.Format.SampleRate,
		Channels:   Deinterleave(buf.Data, buf.Format.NumChannels),
	}, nil
}

// Write encodes a as 16-bit PCM, creating parent directories as needed.
func Write(path string, a *Audio) error {
	if a == nil || len(a.Channels) == 0 {
		return fmt.Errorf("no channels to write")
	}
	if a.SampleRate <= 0 {
		return fmt.Errorf("invalid sample-rate: %d", a.SampleRate)
	}
	data, err := Interleave(a.Channels)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	numCh := len(a.Channels)
	enc := wav.NewEncoder(f, a.SampleRate, 16, numCh, 1)
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  a.SampleRate,
			NumChannels: numCh,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return enc.Close()
}

// Interleave packs planar channels frame by frame.
func Interleave(channels [][]float32) ([]float32, error) {
	if len(channels) == 0 {
		return nil, nil
	}
	frames := len(channels[0])
	for c, ch := range channels {
		if len(ch) != frames {
			return nil, fmt.Errorf("channel %d length %d, want %d", c, len(ch), frames)
		}
	}
	numCh := len(channels)
	out := make([]float32, frames*numCh)
	for i := 0; i < frames; i++ {
		for c, ch := range channels {
			out[i*numCh+c] = ch[i]
		}
	}
	return out, nil
}

// Deinterleave splits interleaved samples into numCh planar channels.
// A trailing partial frame is dropped.
func Deinterleave(data []float32, numCh int) [][]float32 {
	if numCh < 1 {
		return nil
	}
	frames := len(data) / numCh
	out := make([][]float32, numCh)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < numCh; c++ {
			out[c][i] = data[i*numCh+c]
		}
	}
	return out
}

// Resample converts every channel of a to toRate. It returns a unchanged
// when the rates already match.
func Resample(a *Audio, toRate int) (*Audio, error) {
	if a == nil {
		return nil, fmt.Errorf("nil audio")
	}
	if toRate <= 0 {
		return nil, fmt.Errorf("invalid target sample-rate: %d", toRate)
	}
	if a.SampleRate == toRate {
		return a, nil
	}
	out := &Audio{SampleRate: toRate, Channels: make([][]float32, len(a.Channels))}
	for c, ch := range a.Channels {
		r, err := dspresample.NewForRates(
			float64(a.SampleRate),
			float64(toRate),
			dspresample.WithQuality(dspresample.QualityBest),
		)
		if err != nil {
			return nil, err
		}
		in := make([]float64, len(ch))
		for i, v := range ch {
			in[i] = float64(v)
		}
		res := r.Process(in)
		out.Channels[c] = make([]float32, len(res))
		for i, v := range res {
			out.Channels[c][i] = float32(v)
		}
	}
	return out, nil
}

// Mono averages all channels.
func Mono(a *Audio) []float64 {
	n := a.Frames()
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	for _, ch := range a.Channels {
		for i := 0; i < n; i++ {
			out[i] += float64(ch[i])
		}
	}
	scale := 1.0 / float64(len(a.Channels))
	for i := range out {
		out[i] *= scale
	}
	return out
}
