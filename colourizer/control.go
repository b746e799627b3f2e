package colourizer

import (
	"math"
	"sync/atomic"
)

// Settings is an immutable parameter snapshot published by Controls.
// Once stored it must not be modified.
type Settings struct {
	Active  [NumNotes]bool
	Gains   [NumNotes]float64
	Q       float64
	BoostDB float64
	DryWet  float64
	Mode    Mode
}

// ActiveCount returns the number of active notes.
func (s *Settings) ActiveCount() int {
	count := 0
	for _, a := range s.Active {
		if a {
			count++
		}
	}
	return count
}

// Controls hands parameter changes from a control thread to the audio
// thread. Writers build a new Settings and publish it with compare-and-swap;
// the audio thread loads the latest pointer once per block and never blocks.
type Controls struct {
	settings  atomic.Pointer[Settings]
	inputGain atomic.Uint64 // float64 bits
}

// NewControls creates controls initialized from params.
func NewControls(params *Params) *Controls {
	if params == nil {
		params = NewDefaultParams()
	}
	s := &Settings{
		Q:       params.Q,
		BoostDB: params.BoostDB,
		DryWet:  clampUnit(params.DryWet),
		Mode:    params.Mode,
	}
	if !(s.Q > 0) {
		s.Q = DefaultQ
	}
	var zero [NumNotes]float64
	s.Active, s.Gains, _ = scaleTables(params.ScaleNotes(), s.BoostDB, &zero)
	for n, g := range params.NoteGains {
		if n.Valid() {
			s.Gains[n] = g
		}
	}

	c := &Controls{}
	c.settings.Store(s)
	c.SetInputGain(params.InputGain)
	return c
}

// Snapshot returns the latest published settings.
func (c *Controls) Snapshot() *Settings {
	return c.settings.Load()
}

// update applies fn to a copy of the current settings and publishes it,
// retrying if another writer got there first.
func (c *Controls) update(fn func(s *Settings)) *Settings {
	for {
		cur := c.settings.Load()
		next := *cur
		fn(&next)
		if c.settings.CompareAndSwap(cur, &next) {
			return &next
		}
	}
}

// SetScale replaces the active note set. Names that cannot be resolved are
// returned as not applied.
func (c *Controls) SetScale(names []string) []string {
	var rejected []string
	c.update(func(s *Settings) {
		s.Active, s.Gains, rejected = scaleTables(names, s.BoostDB, &s.Gains)
	})
	return rejected
}

// SetGains replaces the per-note gain table (dB).
func (c *Controls) SetGains(gains [NumNotes]float64) {
	c.update(func(s *Settings) {
		s.Gains = gains
	})
}

// SetNoteGain changes the gain of one note.
func (c *Controls) SetNoteGain(n Note, gainDB float64) {
	if !n.Valid() {
		return
	}
	c.update(func(s *Settings) {
		s.Gains[n] = gainDB
	})
}

// SetQ changes the quality factor of every note filter.
func (c *Controls) SetQ(q float64) {
	if !(q > 0) || math.IsInf(q, 0) {
		return
	}
	c.update(func(s *Settings) {
		s.Q = q
	})
}

// SetDryWet sets the output mix, clamped to [0, 1].
func (c *Controls) SetDryWet(mix float64) {
	mix = clampUnit(mix)
	c.update(func(s *Settings) {
		s.DryWet = mix
	})
}

// SetMode selects mono or multi-channel routing.
func (c *Controls) SetMode(m Mode) {
	c.update(func(s *Settings) {
		s.Mode = m
	})
}

// SetInputGain sets the linear input gain, clamped to [MinInputGain, MaxInputGain].
func (c *Controls) SetInputGain(g float64) {
	if math.IsNaN(g) {
		g = MaxInputGain
	}
	g = math.Max(MinInputGain, math.Min(MaxInputGain, g))
	c.inputGain.Store(math.Float64bits(g))
}

// InputGain returns the current linear input gain.
func (c *Controls) InputGain() float64 {
	return math.Float64frombits(c.inputGain.Load())
}

func clampUnit(x float64) float64 {
	if math.IsNaN(x) {
		return 1
	}
	return math.Max(0, math.Min(1, x))
}
