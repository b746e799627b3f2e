package colourizer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/signal"
	"github.com/cwbudde/algo-dsp/dsp/spectrum"
)

func makeSine(t *testing.T, sampleRate, freqHz, amp float64, n int) []float64 {
	t.Helper()
	gen := signal.NewGenerator(core.WithSampleRate(sampleRate))
	x, err := gen.Sine(freqHz, amp, n)
	if err != nil {
		t.Fatalf("sine: %v", err)
	}
	return x
}

func makeNoise(n int, amp float64, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	x := make([]float64, n)
	for i := range x {
		x[i] = amp * (r.Float64()*2 - 1)
	}
	return x
}

// toneAmplitude measures the amplitude of freqHz over x. x should hold an
// integer number of cycles.
func toneAmplitude(t *testing.T, x []float64, freqHz, sampleRate float64) float64 {
	t.Helper()
	p, err := spectrum.AnalyzeBlock(x, freqHz, sampleRate)
	if err != nil {
		t.Fatalf("goertzel: %v", err)
	}
	if p <= 0 {
		return 0
	}
	return 2 * math.Sqrt(p) / float64(len(x))
}

func runBank(b *FilterBank, ch int, x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = b.ProcessSample(ch, v)
	}
	return out
}

func toFloat32(x []float64) []float32 {
	out := make([]float32, len(x))
	for i, v := range x {
		out[i] = float32(v)
	}
	return out
}

func toFloat64(x []float32) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = float64(v)
	}
	return out
}

func peakAbs(x []float64) float64 {
	peak := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
