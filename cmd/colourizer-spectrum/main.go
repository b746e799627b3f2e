package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/algo-colourizer/analysis"
	"github.com/cwbudde/algo-colourizer/colourizer"
	"github.com/cwbudde/algo-colourizer/internal/wavio"
	"github.com/cwbudde/algo-colourizer/preset"
	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/signal"
)

func main() {
	input := flag.String("input", "", "Input WAV (optional; white noise is used when empty)")
	duration := flag.Float64("duration", 5.0, "Noise duration in seconds when no input is given")
	sampleRate := flag.Int("sample-rate", 48000, "Sample rate for generated noise")
	presetPath := flag.String("preset", "", "Preset JSON file path (optional)")
	scale := flag.String("scale", "", "Scale override: name[:root], note list or pitch classes")
	fftSize := flag.Int("fft-size", 8192, "STFT size (power of two)")
	skip := flag.Float64("skip", 1.0, "Seconds to skip before analysis while the filters settle")
	all := flag.Bool("all", false, "Report every note instead of only the enabled ones")
	jsonPath := flag.String("json", "", "Optional path for a JSON copy of the report")
	flag.Parse()

	params := colourizer.NewDefaultParams()
	if *presetPath != "" {
		p, err := preset.LoadJSON(*presetPath)
		if err != nil {
			die("preset: %v", err)
		}
		params = p
	}
	if *scale != "" {
		names, err := colourizer.ParseScaleSpec(*scale)
		if err != nil {
			die("scale: %v", err)
		}
		params.Scale = names
		params.PitchClasses = nil
	}

	var src *wavio.Audio
	if *input != "" {
		a, err := wavio.Read(*input)
		if err != nil {
			die("input: %v", err)
		}
		src = a
	} else {
		n := int(*duration * float64(*sampleRate))
		gen := signal.NewGenerator(core.WithSampleRate(float64(*sampleRate)))
		noise, err := gen.WhiteNoise(0.25, n)
		if err != nil {
			die("noise: %v", err)
		}
		ch := make([]float32, len(noise))
		for i, v := range noise {
			ch[i] = float32(v)
		}
		src = &wavio.Audio{SampleRate: *sampleRate, Channels: [][]float32{ch}}
	}
	sr := src.SampleRate
	dry := wavio.Mono(src)
	fmt.Printf("Input: %d frames @ %d Hz (%.2fs)\n", len(dry), sr, float64(len(dry))/float64(sr))

	proc := colourizer.NewProcessor(float64(sr), len(src.Channels), params)
	proc.ProcessBlock(src.Channels)
	wet := wavio.Mono(src)

	start := int(*skip * float64(sr))
	if start < 0 || start >= len(dry) {
		start = 0
	}
	bands := noteBands(proc.Bank(), float64(sr), *all)
	report, err := analysis.BandReport(dry[start:], wet[start:], sr, *fftSize, bands)
	if err != nil {
		die("analysis: %v", err)
	}

	fmt.Printf("Peak out=%.4f  RMS in=%.4f out=%.4f\n\n", analysis.PeakAbs(wet), analysis.RMS(dry), analysis.RMS(wet))
	fmt.Printf("%-5s %9s %9s %9s %9s\n", "note", "Hz", "in dB", "out dB", "gain")
	for _, b := range report {
		fmt.Printf("%-5s %9.2f %9.2f %9.2f %+9.2f\n", b.Name, b.CenterHz, b.InputDB, b.OutputDB, b.GainDB)
	}

	if *jsonPath != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			die("json: %v", err)
		}
		if err := os.WriteFile(*jsonPath, append(data, '\n'), 0o644); err != nil {
			die("json: %v", err)
		}
		fmt.Printf("\nWrote %s\n", *jsonPath)
	}
}

// noteBands lists the semitone band of each reported note below Nyquist.
func noteBands(bank *colourizer.FilterBank, sampleRate float64, all bool) []analysis.Band {
	var bands []analysis.Band
	for n := colourizer.MinNote; n <= colourizer.MaxNote; n++ {
		if !all && !bank.IsActive(n) {
			continue
		}
		f := bank.CenterFrequency(n)
		if f >= sampleRate/2 {
			continue
		}
		bands = append(bands, analysis.SemitoneBand(n.String(), f))
	}
	return bands
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
