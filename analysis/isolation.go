package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-dsp/dsp/spectrum"
)

// Metrics describes how well a filtered signal keeps one tone and rejects another.
type Metrics struct {
	SampleRate int `json:"sample_rate"`
	Frames     int `json:"frames"`

	PassInput   float64 `json:"pass_input"`
	PassLevel   float64 `json:"pass_level"`
	RejectInput float64 `json:"reject_input"`
	RejectLevel float64 `json:"reject_level"`

	PassGainDB   float64 `json:"pass_gain_db"`
	RejectGainDB float64 `json:"reject_gain_db"`
	IsolationDB  float64 `json:"isolation_db"`

	SettleSeconds float64 `json:"settle_seconds"`
	Peak          float64 `json:"peak"`
	Finite        bool    `json:"finite"`

	// Score is lower for better isolation, unity pass gain and fast settling.
	Score float64 `json:"score"`
}

// ToneLevel returns the amplitude of the component at freqHz measured over
// samples with the Goertzel algorithm. Exact for an integer number of cycles.
func ToneLevel(samples []float64, freqHz float64, sampleRate int) (float64, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	p, err := spectrum.AnalyzeBlock(samples, freqHz, float64(sampleRate))
	if err != nil {
		return 0, err
	}
	if p <= 0 {
		return 0, nil
	}
	return 2 * math.Sqrt(p) / float64(len(samples)), nil
}

// Isolation compares input and output over the analysis window starting at
// skip frames. passHz is the tone that should survive and rejectHz the one
// that should be removed. Tone levels are measured through a Hann window so
// that neighbouring semitones do not leak into each other.
func Isolation(input, output []float64, passHz, rejectHz float64, sampleRate int, skip int) (Metrics, error) {
	m := Metrics{SampleRate: sampleRate, Frames: len(output)}
	n := len(input)
	if len(output) < n {
		n = len(output)
	}
	if sampleRate <= 0 || n == 0 {
		return m, fmt.Errorf("empty analysis window")
	}
	if skip < 0 || skip >= n {
		skip = 0
	}
	in := input[skip:n]
	out := output[skip:n]

	m.Finite = AllFinite(output)
	m.Peak = PeakAbs(output)
	if !m.Finite {
		m.Score = 1
		return m, nil
	}

	win := hannWindow(len(in))
	in = applyWindow(in, win)
	out = applyWindow(out, win)

	var err error
	if m.PassInput, err = windowedToneLevel(in, passHz, sampleRate); err != nil {
		return m, err
	}
	if m.PassLevel, err = windowedToneLevel(out, passHz, sampleRate); err != nil {
		return m, err
	}
	if m.RejectInput, err = windowedToneLevel(in, rejectHz, sampleRate); err != nil {
		return m, err
	}
	if m.RejectLevel, err = windowedToneLevel(out, rejectHz, sampleRate); err != nil {
		return m, err
	}

	m.PassGainDB = ratioDB(m.PassLevel, m.PassInput)
	m.RejectGainDB = ratioDB(m.RejectLevel, m.RejectInput)
	m.IsolationDB = m.PassGainDB - m.RejectGainDB
	m.SettleSeconds = SettleTime(output[:n], sampleRate, 0.9)

	isoNorm := clamp01(1 - m.IsolationDB/80.0)
	passNorm := clamp01(math.Abs(m.PassGainDB) / 12.0)
	settleNorm := clamp01(m.SettleSeconds / 2.0)
	m.Score = clamp01(0.6*isoNorm + 0.25*passNorm + 0.15*settleNorm)
	return m, nil
}

// windowedToneLevel expects x already multiplied by a periodic Hann window
// and undoes its coherent gain of 0.5.
func windowedToneLevel(x []float64, freqHz float64, sampleRate int) (float64, error) {
	v, err := ToneLevel(x, freqHz, sampleRate)
	return 2 * v, err
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

func applyWindow(x, w []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] * w[i]
	}
	return out
}

// SettleTime returns the time in seconds until the RMS envelope first
// reaches fraction of its final value.
func SettleTime(x []float64, sampleRate int, fraction float64) float64 {
	if sampleRate <= 0 {
		return 0
	}
	frame := sampleRate / 100
	if frame < 16 {
		frame = 16
	}
	env := rmsEnvelope(x, frame, frame)
	if len(env) < 4 {
		return 0
	}
	final := rms1(env[len(env)*3/4:])
	if final <= 1e-12 {
		return 0
	}
	for i, v := range env {
		if v >= fraction*final {
			return float64(i*frame) / float64(sampleRate)
		}
	}
	return float64(len(x)) / float64(sampleRate)
}

// Band names a frequency region to report on.
type Band struct {
	Name     string  `json:"name"`
	CenterHz float64 `json:"center_hz"`
	LoHz     float64 `json:"lo_hz"`
	HiHz     float64 `json:"hi_hz"`
}

// BandLevel is the averaged STFT level of one band for input and output.
type BandLevel struct {
	Band
	InputDB  float64 `json:"input_db"`
	OutputDB float64 `json:"output_db"`
	GainDB   float64 `json:"gain_db"`
}

// SemitoneBand returns the band of half a semitone either side of centerHz.
func SemitoneBand(name string, centerHz float64) Band {
	r := math.Pow(2, 1.0/24.0)
	return Band{Name: name, CenterHz: centerHz, LoHz: centerHz / r, HiHz: centerHz * r}
}

// BandReport averages Hann-windowed STFT magnitudes of input and output over
// each band.
func BandReport(input, output []float64, sampleRate int, fftSize int, bands []Band) ([]BandLevel, error) {
	if fftSize < 16 || fftSize&(fftSize-1) != 0 {
		return nil, fmt.Errorf("fft size must be a power of two >= 16: %d", fftSize)
	}
	plan, err := algofft.NewPlanReal64(fftSize)
	if err != nil {
		return nil, fmt.Errorf("fft plan: %w", err)
	}
	avgIn, err := averageSpectrum(plan, input, fftSize)
	if err != nil {
		return nil, err
	}
	avgOut, err := averageSpectrum(plan, output, fftSize)
	if err != nil {
		return nil, err
	}

	binHz := float64(sampleRate) / float64(fftSize)
	nBins := fftSize / 2
	out := make([]BandLevel, 0, len(bands))
	for _, b := range bands {
		loK := int(math.Floor(b.LoHz / binHz))
		hiK := int(math.Ceil(b.HiHz / binHz))
		if loK < 1 {
			loK = 1
		}
		if hiK >= nBins {
			hiK = nBins - 1
		}
		if loK > hiK {
			continue
		}
		var inPow, outPow float64
		for k := loK; k <= hiK; k++ {
			inPow += avgIn[k] * avgIn[k]
			outPow += avgOut[k] * avgOut[k]
		}
		cnt := float64(hiK - loK + 1)
		inDB := 10 * math.Log10(math.Max(inPow/cnt, 1e-24))
		outDB := 10 * math.Log10(math.Max(outPow/cnt, 1e-24))
		out = append(out, BandLevel{Band: b, InputDB: inDB, OutputDB: outDB, GainDB: outDB - inDB})
	}
	return out, nil
}

func averageSpectrum(plan *algofft.PlanReal64, x []float64, fftSize int) ([]float64, error) {
	hop := fftSize / 2
	hann := make([]float64, fftSize)
	for i := range hann {
		hann[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(fftSize-1))
	}
	spec := make([]complex128, fftSize/2+1)
	buf := make([]float64, fftSize)
	avg := make([]float64, fftSize/2+1)

	frames := 0
	for pos := 0; pos == 0 || pos+fftSize <= len(x); pos += hop {
		for i := range buf {
			buf[i] = 0
			if pos+i < len(x) {
				buf[i] = x[pos+i] * hann[i]
			}
		}
		plan.Forward(spec, buf)
		for k := range avg {
			avg[k] += cmplx.Abs(spec[k])
		}
		frames++
		if pos+fftSize >= len(x) {
			break
		}
	}
	if frames == 0 {
		return avg, fmt.Errorf("no analysis frames")
	}
	scale := 1.0 / float64(frames)
	for k := range avg {
		avg[k] *= scale
	}
	return avg, nil
}

// PeakAbs returns the largest absolute sample value.
func PeakAbs(x []float64) float64 {
	peak := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

// RMS returns the root mean square of x.
func RMS(x []float64) float64 {
	return rms1(x)
}

// AllFinite reports whether x contains no NaN or Inf.
func AllFinite(x []float64) bool {
	for _, v := range x {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

func ratioDB(num, den float64) float64 {
	return linToDB(num) - linToDB(den)
}

func rms1(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func rmsEnvelope(x []float64, frame int, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	n := 1 + (len(x)-frame)/hop
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * hop
		out[i] = rms1(x[start : start+frame])
	}
	return out
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
