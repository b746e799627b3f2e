package dsp

import (
	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
)

// Biquad holds the Direct Form I delay registers of one second-order filter
// for one channel. Coefficients live outside so that many channels can share
// a single design (no heap allocations in Step).
type Biquad struct {
	// State (previous samples)
	x1, x2 float64 // input history
	y1, y2 float64 // output history
}

// Step processes one sample with the given coefficients and updates the
// registers in place.
func (b *Biquad) Step(c *biquad.Coefficients, input float64) float64 {
	// Direct Form I implementation
	output := c.B0*input + c.B1*b.x1 + c.B2*b.x2 - c.A1*b.y1 - c.A2*b.y2
	output = core.FlushDenormals(output)

	b.x2 = b.x1
	b.x1 = input
	b.y2 = b.y1
	b.y1 = output

	return output
}

// Reset clears the filter state
func (b *Biquad) Reset() {
	b.x1, b.x2 = 0, 0
	b.y1, b.y2 = 0, 0
}

// State returns the registers as [x1, x2, y1, y2].
func (b *Biquad) State() [4]float64 {
	return [4]float64{b.x1, b.x2, b.y1, b.y2}
}

// Filter pairs a coefficient set with a single channel of state.
type Filter struct {
	coeffs biquad.Coefficients
	state  Biquad
}

// NewFilter creates a filter with zeroed state.
func NewFilter(c biquad.Coefficients) *Filter {
	return &Filter{coeffs: c}
}

// NewPeakFilter designs a peaking filter and wraps it.
func NewPeakFilter(centerHz, sampleRate, q, gainDB float64) *Filter {
	return NewFilter(DesignPeak(centerHz, sampleRate, q, gainDB))
}

// Coefficients returns the loaded coefficients.
func (f *Filter) Coefficients() biquad.Coefficients {
	return f.coeffs
}

// SetCoefficients swaps the coefficients and keeps the state.
func (f *Filter) SetCoefficients(c biquad.Coefficients) {
	f.coeffs = c
}

// ProcessSample processes one sample through the filter
func (f *Filter) ProcessSample(x float64) float64 {
	return f.state.Step(&f.coeffs, x)
}

// ProcessBlock filters buf in place.
func (f *Filter) ProcessBlock(buf []float64) {
	for i, x := range buf {
		buf[i] = f.state.Step(&f.coeffs, x)
	}
}

// Reset clears the filter state
func (f *Filter) Reset() {
	f.state.Reset()
}
