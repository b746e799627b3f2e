package colourizer

// Mode selects how multi-channel audio is routed through the filter bank.
type Mode int

const (
	// ModeMulti runs one bank channel per audio channel.
	ModeMulti Mode = iota
	// ModeMono averages all channels, filters once and writes the result to every channel.
	ModeMono
)

// String returns the preset spelling of the mode.
func (m Mode) String() string {
	switch m {
	case ModeMono:
		return "mono"
	case ModeMulti:
		return "multi"
	default:
		return "unknown"
	}
}

// ParseMode resolves "mono" or "multi".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "mono":
		return ModeMono, true
	case "multi":
		return ModeMulti, true
	}
	return 0, false
}

const (
	// DefaultBoostDB is the peaking gain applied to every note activated by SetScale.
	DefaultBoostDB = 40.0
	// DefaultQ sets the width of each note band before the boost narrows it further.
	DefaultQ = 50.0

	MinInputGain = 0.5
	MaxInputGain = 1.0
)

// Params holds all preset parameters.
type Params struct {
	// Scale lists explicit note names ("A4", "C#3").
	Scale []string
	// PitchClasses lists octave-less spellings expanded over every octave.
	PitchClasses []string

	BoostDB float64
	Q       float64

	// NoteGains overrides the gain (dB) of individual notes after the scale is applied.
	NoteGains map[Note]float64

	InputGain       float64
	DryWet          float64 // 0 = dry, 1 = wet
	Mode            Mode
	MakeupEnabled   bool
	GainSmoothingMS float64
}

// NewDefaultParams creates default parameters.
func NewDefaultParams() *Params {
	return &Params{
		Scale:           DefaultScale(),
		BoostDB:         DefaultBoostDB,
		Q:               DefaultQ,
		NoteGains:       make(map[Note]float64),
		InputGain:       1.0,
		DryWet:          1.0,
		Mode:            ModeMulti,
		MakeupEnabled:   true,
		GainSmoothingMS: 50.0,
	}
}

// ScaleNotes returns the combined note names of Scale and PitchClasses.
func (p *Params) ScaleNotes() []string {
	if p == nil {
		return DefaultScale()
	}
	names := make([]string, 0, len(p.Scale))
	names = append(names, p.Scale...)
	if len(p.PitchClasses) > 0 {
		expanded, _ := ExpandPitchClasses(p.PitchClasses)
		names = append(names, expanded...)
	}
	return names
}

// Clone returns a deep copy.
func (p *Params) Clone() *Params {
	if p == nil {
		return NewDefaultParams()
	}
	d := *p
	d.Scale = append([]string(nil), p.Scale...)
	d.PitchClasses = append([]string(nil), p.PitchClasses...)
	d.NoteGains = make(map[Note]float64, len(p.NoteGains))
	for k, v := range p.NoteGains {
		d.NoteGains[k] = v
	}
	return &d
}
