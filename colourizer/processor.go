package colourizer

import (
	"math"

	"github.com/cwbudde/algo-approx"
)

// Processor drives a FilterBank from host audio blocks. It applies the input
// gain, the makeup gain and the dry/wet mix, and picks up parameter changes
// published through Controls at the start of every block.
//
// Expected call sequence: NewProcessor (or SetSampleRate / SetChannels when
// the host reconfigures), then ProcessBlock or ProcessInterleaved from the
// audio thread. Configuration calls must not overlap processing.
type Processor struct {
	sampleRate float64
	channels   int

	bank     *FilterBank
	controls *Controls
	applied  *Settings

	mode          Mode
	dryWet        float64
	makeup        float64
	makeupEnabled bool

	gain        float64 // smoothed input gain
	targetGain  float64
	smoothingMS float64
	smoothCoeff float64
}

// NewProcessor creates a processor for the given sample rate and channel count.
func NewProcessor(sampleRate float64, channels int, params *Params) *Processor {
	if params == nil {
		params = NewDefaultParams()
	}
	if channels < 1 {
		channels = 1
	}
	controls := NewControls(params)
	s := controls.Snapshot()

	p := &Processor{
		sampleRate:    sampleRate,
		channels:      channels,
		controls:      controls,
		makeupEnabled: params.MakeupEnabled,
		smoothingMS:   params.GainSmoothingMS,
		bank: NewFilterBank(sampleRate,
			WithQ(s.Q),
			WithBoostDB(s.BoostDB),
			WithChannels(channels),
			WithScale(nil),
		),
	}
	p.adopt(s)
	p.targetGain = controls.InputGain()
	p.gain = p.targetGain
	p.updateSmoothing()
	return p
}

// Controls returns the parameter hand-off shared with the control thread.
func (p *Processor) Controls() *Controls { return p.controls }

// Bank exposes the underlying filter bank. It must only be touched from the
// audio thread or while processing is stopped.
func (p *Processor) Bank() *FilterBank { return p.bank }

// SampleRate returns the current sample rate in Hz.
func (p *Processor) SampleRate() float64 { return p.sampleRate }

// Channels returns the configured channel count.
func (p *Processor) Channels() int { return p.channels }

// SetSampleRate reinitializes the processor for a new sample rate: every
// coefficient set is recomputed and all filter state is cleared.
func (p *Processor) SetSampleRate(sampleRate float64) {
	p.bank.SetSampleRate(sampleRate)
	p.sampleRate = p.bank.SampleRate()
	p.updateSmoothing()
	p.gain = p.controls.InputGain()
	p.targetGain = p.gain
}

// SetChannels reallocates per-channel state for n channels.
func (p *Processor) SetChannels(n int) {
	if n < 1 {
		n = 1
	}
	p.channels = n
	p.bank.SetChannels(n)
}

// Reset clears all filter state and snaps the input gain to its target.
func (p *Processor) Reset() {
	p.bank.Reset()
	p.gain = p.controls.InputGain()
	p.targetGain = p.gain
}

// BeginBlock picks up the latest published settings. ProcessBlock and
// ProcessInterleaved call it themselves; hosts that feed frames through
// ProcessFrame call it once per block.
func (p *Processor) BeginBlock() {
	if s := p.controls.Snapshot(); s != p.applied {
		p.adopt(s)
	}
	p.targetGain = p.controls.InputGain()
}

// ProcessBlock processes planar channel buffers in place.
func (p *Processor) ProcessBlock(buffers [][]float32) {
	if len(buffers) == 0 {
		return
	}
	p.BeginBlock()
	p.ensureChannels(len(buffers))

	frames := len(buffers[0])
	for _, ch := range buffers[1:] {
		if len(ch) < frames {
			frames = len(ch)
		}
	}

	mix := p.dryWet
	for i := 0; i < frames; i++ {
		g := p.nextGain()
		if p.mode == ModeMono {
			var sum float64
			for _, ch := range buffers {
				sum += float64(ch[i])
			}
			wet := p.bank.ProcessSample(0, g*sum/float64(len(buffers))) * p.makeup
			for _, ch := range buffers {
				dry := float64(ch[i])
				ch[i] = float32(dry*(1-mix) + wet*mix)
			}
			continue
		}
		for c, ch := range buffers {
			dry := float64(ch[i])
			wet := p.bank.ProcessSample(c, g*dry) * p.makeup
			ch[i] = float32(dry*(1-mix) + wet*mix)
		}
	}
}

// ProcessInterleaved processes an interleaved buffer with the given channel
// count in place. Trailing samples that do not form a full frame are left
// untouched.
func (p *Processor) ProcessInterleaved(buf []float32, channels int) {
	if channels < 1 || len(buf) < channels {
		return
	}
	p.BeginBlock()
	p.ensureChannels(channels)

	frames := len(buf) / channels
	mix := p.dryWet
	for i := 0; i < frames; i++ {
		frame := buf[i*channels : (i+1)*channels]
		g := p.nextGain()
		if p.mode == ModeMono {
			var sum float64
			for _, s := range frame {
				sum += float64(s)
			}
			wet := p.bank.ProcessSample(0, g*sum/float64(channels)) * p.makeup
			for c, s := range frame {
				dry := float64(s)
				frame[c] = float32(dry*(1-mix) + wet*mix)
			}
			continue
		}
		for c, s := range frame {
			dry := float64(s)
			wet := p.bank.ProcessSample(c, g*dry) * p.makeup
			frame[c] = float32(dry*(1-mix) + wet*mix)
		}
	}
}

// ProcessFrame processes one sample per channel in place without picking up
// new settings.
func (p *Processor) ProcessFrame(frame []float64) {
	if len(frame) == 0 {
		return
	}
	g := p.nextGain()
	mix := p.dryWet
	if p.mode == ModeMono {
		var sum float64
		for _, s := range frame {
			sum += s
		}
		wet := p.bank.ProcessSample(0, g*sum/float64(len(frame))) * p.makeup
		for c, dry := range frame {
			frame[c] = dry*(1-mix) + wet*mix
		}
		return
	}
	for c, dry := range frame {
		wet := p.bank.ProcessSample(c, g*dry) * p.makeup
		frame[c] = dry*(1-mix) + wet*mix
	}
}

func (p *Processor) adopt(s *Settings) {
	p.bank.boostDB = s.BoostDB
	p.bank.apply(&s.Active, &s.Gains, s.Q)
	if p.applied != nil && s.Mode != p.mode {
		p.bank.Reset()
	}
	p.mode = s.Mode
	p.dryWet = s.DryWet
	p.makeup = 1
	if p.makeupEnabled {
		p.makeup = MakeupGain(s.BoostDB)
	}
	p.applied = s
}

// ensureChannels grows the bank if the host delivers more channels than
// configured. This allocates, so hosts should call SetChannels up front.
func (p *Processor) ensureChannels(n int) {
	if p.mode == ModeMulti && n > p.bank.Channels() {
		p.SetChannels(n)
	}
}

func (p *Processor) nextGain() float64 {
	p.gain = p.targetGain + p.smoothCoeff*(p.gain-p.targetGain)
	return p.gain
}

func (p *Processor) updateSmoothing() {
	if p.smoothingMS <= 0 || p.sampleRate <= 0 {
		p.smoothCoeff = 0
		return
	}
	samples := p.smoothingMS * 0.001 * p.sampleRate
	c := float64(approx.FastExp(float32(-1.0 / samples)))
	if !(c >= 0 && c < 1) {
		c = math.Exp(-1.0 / samples)
	}
	p.smoothCoeff = c
}
