package colourizer

import (
	"math"

	"github.com/cwbudde/algo-colourizer/dsp"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
)

// FilterBank owns one peaking filter per note from C0 to B8 and mixes the
// enabled notes as the sum of (wet - dry) over every active filter.
//
// With a high boost and a high Q each (wet - dry) term is close to zero
// except in a narrow band around its note, so the sum keeps only the enabled
// pitches. A FilterBank is not safe for concurrent use; see Controls for the
// hand-off from a control thread.
type FilterBank struct {
	sampleRate float64
	q          float64
	boostDB    float64

	freqs  [NumNotes]float64
	coeffs [NumNotes]biquad.Coefficients
	bypass [NumNotes]bool // identity coefficients contribute exactly zero
	active [NumNotes]bool
	gains  [NumNotes]float64

	// live lists active, non-bypassed notes in ascending order.
	live    [NumNotes]Note
	numLive int

	state [][NumNotes]dsp.Biquad
}

type bankConfig struct {
	q        float64
	boostDB  float64
	channels int
	scale    []string
	hasScale bool
}

// BankOption configures NewFilterBank.
type BankOption func(*bankConfig)

// WithQ sets the quality factor of every note filter.
func WithQ(q float64) BankOption {
	return func(c *bankConfig) {
		if q > 0 {
			c.q = q
		}
	}
}

// WithBoostDB sets the gain given to notes activated by SetScale.
func WithBoostDB(db float64) BankOption {
	return func(c *bankConfig) {
		c.boostDB = db
	}
}

// WithChannels preallocates filter state for n channels.
func WithChannels(n int) BankOption {
	return func(c *bankConfig) {
		if n > 0 {
			c.channels = n
		}
	}
}

// WithScale sets the initial scale instead of the default one.
func WithScale(names []string) BankOption {
	return func(c *bankConfig) {
		c.scale = names
		c.hasScale = true
	}
}

// NewFilterBank creates a bank of NumNotes peaking filters at sampleRate.
func NewFilterBank(sampleRate float64, opts ...BankOption) *FilterBank {
	cfg := bankConfig{
		q:        DefaultQ,
		boostDB:  DefaultBoostDB,
		channels: 2,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	b := &FilterBank{
		sampleRate: sampleRate,
		q:          cfg.q,
		boostDB:    cfg.boostDB,
		state:      make([][NumNotes]dsp.Biquad, cfg.channels),
	}
	for n := MinNote; n <= MaxNote; n++ {
		b.freqs[n] = n.Frequency()
	}
	b.redesignAll()

	scale := cfg.scale
	if !cfg.hasScale {
		scale = DefaultScale()
	}
	b.SetScale(scale)
	return b
}

// SetScale activates exactly the named notes with the default boost and
// deactivates every other note. Names that cannot be resolved are skipped
// and returned; the rest of the scale is still applied.
func (b *FilterBank) SetScale(names []string) (rejected []string) {
	active, gains, rejected := scaleTables(names, b.boostDB, &b.gains)
	b.apply(&active, &gains, b.q)
	return rejected
}

// SetGains replaces the per-note gain table (dB). Active flags are kept.
func (b *FilterBank) SetGains(gains [NumNotes]float64) {
	active := b.active
	b.apply(&active, &gains, b.q)
}

// SetNoteGain changes the gain of a single note.
func (b *FilterBank) SetNoteGain(n Note, gainDB float64) {
	if !n.Valid() {
		return
	}
	active := b.active
	gains := b.gains
	gains[n] = gainDB
	b.apply(&active, &gains, b.q)
}

// SetQ changes the quality factor of every filter.
func (b *FilterBank) SetQ(q float64) {
	if !(q > 0) {
		return
	}
	active := b.active
	gains := b.gains
	b.apply(&active, &gains, q)
}

// SetSampleRate recomputes every coefficient set for the new rate and resets
// all filter state. It must not run concurrently with processing.
func (b *FilterBank) SetSampleRate(sampleRate float64) {
	if !(sampleRate > 0) || math.IsInf(sampleRate, 0) {
		b.Reset()
		return
	}
	b.sampleRate = sampleRate
	b.redesignAll()
	b.Reset()
}

// SetChannels resizes per-channel filter state; all state is cleared.
func (b *FilterBank) SetChannels(n int) {
	if n < 1 {
		n = 1
	}
	if n == len(b.state) {
		b.Reset()
		return
	}
	b.state = make([][NumNotes]dsp.Biquad, n)
}

// Reset clears the delay registers of every filter on every channel.
func (b *FilterBank) Reset() {
	for ch := range b.state {
		b.state[ch] = [NumNotes]dsp.Biquad{}
	}
}

// ProcessSample filters one sample of channel ch and returns the sum of
// (wet - dry) over all active notes. The result is not normalized. With no
// active notes the output is zero. Out-of-range channels yield zero.
func (b *FilterBank) ProcessSample(ch int, x float64) float64 {
	if ch < 0 || ch >= len(b.state) {
		return 0
	}
	regs := &b.state[ch]
	var sum float64
	for i := 0; i < b.numLive; i++ {
		n := b.live[i]
		w := regs[n].Step(&b.coeffs[n], x)
		sum += w - x
	}
	return sum
}

// ProcessBlock filters buf of channel ch in place.
func (b *FilterBank) ProcessBlock(ch int, buf []float64) {
	for i, x := range buf {
		buf[i] = b.ProcessSample(ch, x)
	}
}

// NumFilters returns the number of note filters owned by the bank.
func (b *FilterBank) NumFilters() int { return len(b.coeffs) }

// SampleRate returns the current sample rate in Hz.
func (b *FilterBank) SampleRate() float64 { return b.sampleRate }

// Channels returns the number of channels with allocated state.
func (b *FilterBank) Channels() int { return len(b.state) }

// Q returns the quality factor used by every filter.
func (b *FilterBank) Q() float64 { return b.q }

// BoostDB returns the gain SetScale assigns to active notes.
func (b *FilterBank) BoostDB() float64 { return b.boostDB }

// CenterFrequency returns the center frequency of the filter for n.
func (b *FilterBank) CenterFrequency(n Note) float64 {
	if !n.Valid() {
		return 0
	}
	return b.freqs[n]
}

// IsActive reports whether n contributes to the output.
func (b *FilterBank) IsActive(n Note) bool {
	return n.Valid() && b.active[n]
}

// Gain returns the stored gain of n in dB.
func (b *FilterBank) Gain(n Note) float64 {
	if !n.Valid() {
		return 0
	}
	return b.gains[n]
}

// Gains returns a copy of the gain table.
func (b *FilterBank) Gains() [NumNotes]float64 { return b.gains }

// Coefficients returns the loaded coefficients of n.
func (b *FilterBank) Coefficients(n Note) biquad.Coefficients {
	if !n.Valid() {
		return dsp.Identity()
	}
	return b.coeffs[n]
}

// ActiveNotes returns the active notes in ascending order.
func (b *FilterBank) ActiveNotes() []Note {
	out := make([]Note, 0, NumNotes)
	for n := MinNote; n <= MaxNote; n++ {
		if b.active[n] {
			out = append(out, n)
		}
	}
	return out
}

// apply installs new activation and gain tables. Coefficients are recomputed
// only for notes whose gain changed (all notes when q changes). Notes that
// start contributing get cleared registers. It does not allocate.
func (b *FilterBank) apply(active *[NumNotes]bool, gains *[NumNotes]float64, q float64) {
	qChanged := q != b.q
	b.q = q
	for n := MinNote; n <= MaxNote; n++ {
		wasLive := b.active[n] && !b.bypass[n]
		if qChanged || gains[n] != b.gains[n] {
			b.gains[n] = gains[n]
			b.redesign(n)
		}
		b.active[n] = active[n]
		if !wasLive && b.active[n] && !b.bypass[n] {
			b.resetNote(n)
		}
	}
	b.rebuildLive()
}

func (b *FilterBank) redesignAll() {
	for n := MinNote; n <= MaxNote; n++ {
		b.redesign(n)
	}
	b.rebuildLive()
}

func (b *FilterBank) redesign(n Note) {
	c := dsp.DesignPeak(b.freqs[n], b.sampleRate, b.q, b.gains[n])
	b.coeffs[n] = c
	b.bypass[n] = dsp.IsIdentity(c)
}

func (b *FilterBank) rebuildLive() {
	b.numLive = 0
	for n := MinNote; n <= MaxNote; n++ {
		if b.active[n] && !b.bypass[n] {
			b.live[b.numLive] = n
			b.numLive++
		}
	}
}

func (b *FilterBank) resetNote(n Note) {
	for ch := range b.state {
		b.state[ch][n].Reset()
	}
}

// scaleTables resolves names into an activation table and a gain table in
// which every active note carries boostDB. Inactive gains are copied from
// current. Duplicate and enharmonic names map onto the same slot.
func scaleTables(names []string, boostDB float64, current *[NumNotes]float64) (active [NumNotes]bool, gains [NumNotes]float64, rejected []string) {
	gains = *current
	for _, name := range names {
		n, ok := ParseNote(name)
		if !ok {
			rejected = append(rejected, name)
			continue
		}
		active[n] = true
		gains[n] = boostDB
	}
	return active, gains, rejected
}

// MakeupGain returns the factor that brings an isolated band boosted by
// boostDB back to unity: 1 / (10^(boostDB/20) - 1).
func MakeupGain(boostDB float64) float64 {
	d := dsp.PeakGain(boostDB) - 1
	if math.Abs(d) < 1e-9 {
		return 1
	}
	return 1 / d
}
