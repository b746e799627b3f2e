package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-colourizer/analysis"
	"github.com/cwbudde/algo-colourizer/colourizer"
	"github.com/cwbudde/algo-colourizer/internal/wavio"
	"github.com/cwbudde/algo-colourizer/preset"
	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/signal"
)

func main() {
	input := flag.String("input", "", "Input WAV file path (optional; test tones are generated when empty)")
	tones := flag.String("tone", "440,220", "Comma-separated test tone frequencies in Hz, used without -input")
	amplitude := flag.Float64("amplitude", 0.25, "Amplitude of each generated test tone")
	duration := flag.Float64("duration", 4.0, "Duration of generated test tones in seconds")
	sampleRate := flag.Int("sample-rate", 0, "Processing sample rate in Hz (0 = input rate, 44100 for tones)")
	presetPath := flag.String("preset", "", "Preset JSON file path (optional)")
	scale := flag.String("scale", "", "Scale override: name[:root], note list (A4,C#5) or pitch classes (A,C#,E)")
	mode := flag.String("mode", "", "Processing mode override: mono or multi")
	dryWet := flag.Float64("dry-wet", -1, "Dry/wet mix override in [0,1]")
	output := flag.String("output", "colourized.wav", "Output WAV file path")
	blockSize := flag.Int("block-size", 512, "Processing block size in frames")
	flag.Parse()

	params := colourizer.NewDefaultParams()
	if *presetPath != "" {
		p, err := preset.LoadJSON(*presetPath)
		if err != nil {
			die("Error loading preset %q: %v", *presetPath, err)
		}
		params = p
	}
	if *scale != "" {
		names, err := colourizer.ParseScaleSpec(*scale)
		if err != nil {
			die("Error parsing -scale: %v", err)
		}
		params.Scale = names
		params.PitchClasses = nil
	}
	if *mode != "" {
		m, ok := colourizer.ParseMode(*mode)
		if !ok {
			die("Invalid -mode %q (expected mono or multi)", *mode)
		}
		params.Mode = m
	}
	if *dryWet >= 0 {
		params.DryWet = *dryWet
	}
	if *blockSize < 1 {
		die("-block-size must be >= 1")
	}

	var (
		src   *wavio.Audio
		freqs []float64
		err   error
	)
	if *input != "" {
		src, err = wavio.Read(*input)
		if err != nil {
			die("Error reading %q: %v", *input, err)
		}
		if *sampleRate > 0 && *sampleRate != src.SampleRate {
			fmt.Printf("Resampling %d Hz -> %d Hz\n", src.SampleRate, *sampleRate)
			src, err = wavio.Resample(src, *sampleRate)
			if err != nil {
				die("Error resampling: %v", err)
			}
		}
	} else {
		sr := *sampleRate
		if sr <= 0 {
			sr = 44100
		}
		freqs, err = parseFrequencies(*tones)
		if err != nil {
			die("Error parsing -tone: %v", err)
		}
		src, err = generateTones(freqs, *amplitude, *duration, sr)
		if err != nil {
			die("Error generating tones: %v", err)
		}
	}

	fmt.Printf("Colourizing %d frames x %d channels at %d Hz (%d notes, boost %.1f dB, Q %.1f, mode %s)...\n",
		src.Frames(), len(src.Channels), src.SampleRate, len(params.ScaleNotes()), params.BoostDB, params.Q, params.Mode)

	dry := wavio.Mono(src)
	proc := colourizer.NewProcessor(float64(src.SampleRate), len(src.Channels), params)
	render(proc, src.Channels, *blockSize)

	if err := wavio.Write(*output, src); err != nil {
		die("Error writing %q: %v", *output, err)
	}
	fmt.Printf("Successfully wrote %s (%d frames)\n", *output, src.Frames())

	wet := wavio.Mono(src)
	fmt.Printf("Peak %.4f, RMS in %.4f, RMS out %.4f\n", analysis.PeakAbs(wet), analysis.RMS(dry), analysis.RMS(wet))
	if len(freqs) >= 2 {
		skip := len(wet) - src.SampleRate
		m, err := analysis.Isolation(dry, wet, freqs[0], freqs[1], src.SampleRate, skip)
		if err != nil {
			die("Error measuring isolation: %v", err)
		}
		fmt.Printf("%.2f Hz: %+.2f dB, %.2f Hz: %+.2f dB, isolation %.2f dB, settle %.3fs\n",
			freqs[0], m.PassGainDB, freqs[1], m.RejectGainDB, m.IsolationDB, m.SettleSeconds)
	}
}

func render(proc *colourizer.Processor, channels [][]float32, blockSize int) {
	frames := len(channels[0])
	views := make([][]float32, len(channels))
	for start := 0; start < frames; start += blockSize {
		end := start + blockSize
		if end > frames {
			end = frames
		}
		for c := range channels {
			views[c] = channels[c][start:end]
		}
		proc.ProcessBlock(views)
	}
}

func generateTones(freqs []float64, amp, seconds float64, sampleRate int) (*wavio.Audio, error) {
	n := int(seconds * float64(sampleRate))
	if n < 1 {
		return nil, fmt.Errorf("duration too short: %gs", seconds)
	}
	gen := signal.NewGenerator(core.WithSampleRate(float64(sampleRate)))
	mix := make([]float32, n)
	for _, f := range freqs {
		x, err := gen.Sine(f, amp, n)
		if err != nil {
			return nil, err
		}
		for i, v := range x {
			mix[i] += float32(v)
		}
	}
	right := append([]float32(nil), mix...)
	return &wavio.Audio{SampleRate: sampleRate, Channels: [][]float32{mix, right}}, nil
}

func parseFrequencies(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid frequency %q", part)
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no frequencies")
	}
	return out, nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
