package dsp

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
)

// MinQ is the smallest quality factor DesignPeak accepts; lower values are clamped.
const MinQ = 0.05

// Identity returns the pass-through coefficient set.
func Identity() biquad.Coefficients {
	return biquad.Coefficients{B0: 1}
}

// IsIdentity reports whether c passes its input through unchanged.
func IsIdentity(c biquad.Coefficients) bool {
	return c.B0 == 1 && c.B1 == 0 && c.B2 == 0 && c.A1 == 0 && c.A2 == 0
}

// DesignPeak creates a peaking EQ biquad (RBJ cookbook) normalized by a0.
//
// A gain of 0 dB yields the exact identity so that wet minus dry cancels to
// zero. Center frequencies outside (0, Nyquist) and non-positive sample
// rates also yield the identity instead of an aliased or unstable filter.
func DesignPeak(centerHz, sampleRate, q, gainDB float64) biquad.Coefficients {
	if !isFinite(centerHz) || !isFinite(sampleRate) || !isFinite(q) || !isFinite(gainDB) {
		return Identity()
	}
	if gainDB == 0 || sampleRate <= 0 || centerHz <= 0 || centerHz >= sampleRate/2 {
		return Identity()
	}
	if q < MinQ {
		q = MinQ
	}

	w0 := 2.0 * math.Pi * centerHz / sampleRate
	sw, cw := math.Sincos(w0)
	alpha := sw / (2.0 * q)
	a := math.Pow(10, gainDB/40.0)

	b0 := 1.0 + alpha*a
	b1 := -2.0 * cw
	b2 := 1.0 - alpha*a
	a0 := 1.0 + alpha/a
	a1 := -2.0 * cw
	a2 := 1.0 - alpha/a

	// Normalize by a0
	c := biquad.Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
	if !isFinite(c.B0) || !isFinite(c.B1) || !isFinite(c.B2) || !isFinite(c.A1) || !isFinite(c.A2) {
		return Identity()
	}
	return c
}

// PeakGain returns the linear magnitude of a peaking filter at its center.
func PeakGain(gainDB float64) float64 {
	return math.Pow(10, gainDB/20.0)
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
