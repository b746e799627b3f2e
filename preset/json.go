package preset

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cwbudde/algo-colourizer/colourizer"
)

// File is the JSON schema for colourizer presets.
type File struct {
	// ScaleName selects a built-in scale, transposed to Root.
	ScaleName string `json:"scale_name,omitempty"`
	Root      string `json:"root,omitempty"`
	// Scale lists explicit note names. Present but empty means no notes.
	Scale        []string `json:"scale"`
	PitchClasses []string `json:"pitch_classes,omitempty"`

	BoostDB         *float64           `json:"boost_db"`
	Q               *float64           `json:"q"`
	InputGain       *float64           `json:"input_gain"`
	DryWet          *float64           `json:"dry_wet"`
	Mode            string             `json:"mode"`
	Makeup          *bool              `json:"makeup"`
	GainSmoothingMS *float64           `json:"gain_smoothing_ms"`
	NoteGains       map[string]float64 `json:"note_gains,omitempty"`
}

// LoadJSON loads a preset JSON file and applies it on top of default params.
func LoadJSON(path string) (*colourizer.Params, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	p := colourizer.NewDefaultParams()
	if err := ApplyFile(p, &f); err != nil {
		return nil, err
	}
	return p, nil
}

// ApplyFile applies a parsed preset file onto an existing params object.
// Any of scale_name, scale or pitch_classes replaces the destination scale.
func ApplyFile(dst *colourizer.Params, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination params")
	}
	if f == nil {
		return nil
	}

	if f.ScaleName == "" && strings.TrimSpace(f.Root) != "" {
		return fmt.Errorf("root requires scale_name")
	}
	if f.ScaleName != "" || f.Scale != nil || f.PitchClasses != nil {
		var scale []string
		if f.ScaleName != "" {
			names, err := colourizer.ScaleByName(f.ScaleName, f.Root)
			if err != nil {
				return fmt.Errorf("scale_name: %w", err)
			}
			scale = append(scale, names...)
		}
		for _, name := range f.Scale {
			if _, ok := colourizer.ParseNote(name); !ok {
				return fmt.Errorf("invalid scale note %q", name)
			}
			scale = append(scale, name)
		}
		for _, pc := range f.PitchClasses {
			if _, ok := colourizer.ParsePitchClass(pc); !ok {
				return fmt.Errorf("invalid pitch class %q", pc)
			}
		}
		dst.Scale = scale
		dst.PitchClasses = append([]string(nil), f.PitchClasses...)
	}

	if f.BoostDB != nil {
		if !finite(*f.BoostDB) || *f.BoostDB < 0 || *f.BoostDB > 60 {
			return fmt.Errorf("boost_db must be in [0,60]")
		}
		dst.BoostDB = *f.BoostDB
	}
	if f.Q != nil {
		if !finite(*f.Q) || *f.Q <= 0 || *f.Q > 1000 {
			return fmt.Errorf("q must be in (0,1000]")
		}
		dst.Q = *f.Q
	}
	if f.InputGain != nil {
		if *f.InputGain < colourizer.MinInputGain || *f.InputGain > colourizer.MaxInputGain {
			return fmt.Errorf("input_gain must be in [%g,%g]", colourizer.MinInputGain, colourizer.MaxInputGain)
		}
		dst.InputGain = *f.InputGain
	}
	if f.DryWet != nil {
		if *f.DryWet < 0 || *f.DryWet > 1 {
			return fmt.Errorf("dry_wet must be in [0,1]")
		}
		dst.DryWet = *f.DryWet
	}
	if f.Mode != "" {
		m, ok := colourizer.ParseMode(strings.ToLower(strings.TrimSpace(f.Mode)))
		if !ok {
			return fmt.Errorf("mode must be \"mono\" or \"multi\", got %q", f.Mode)
		}
		dst.Mode = m
	}
	if f.Makeup != nil {
		dst.MakeupEnabled = *f.Makeup
	}
	if f.GainSmoothingMS != nil {
		if !finite(*f.GainSmoothingMS) || *f.GainSmoothingMS < 0 {
			return fmt.Errorf("gain_smoothing_ms must be >= 0")
		}
		dst.GainSmoothingMS = *f.GainSmoothingMS
	}

	if len(f.NoteGains) == 0 {
		return nil
	}
	if dst.NoteGains == nil {
		dst.NoteGains = make(map[colourizer.Note]float64)
	}
	keys := make([]string, 0, len(f.NoteGains))
	for k := range f.NoteGains {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n, ok := colourizer.ParseNote(k)
		if !ok {
			return fmt.Errorf("invalid note_gains key %q (expected C0..B8)", k)
		}
		g := f.NoteGains[k]
		if !finite(g) || g < -60 || g > 60 {
			return fmt.Errorf("note_gains[%s] must be in [-60,60]", n)
		}
		dst.NoteGains[n] = g
	}
	return nil
}

// FromParams converts params into a preset file. Scale notes are written
// explicitly in canonical spelling.
func FromParams(p *colourizer.Params) *File {
	if p == nil {
		p = colourizer.NewDefaultParams()
	}
	boost := p.BoostDB
	q := p.Q
	inputGain := p.InputGain
	dryWet := p.DryWet
	makeup := p.MakeupEnabled
	smoothing := p.GainSmoothingMS

	f := &File{
		Scale:           canonicalScale(p.ScaleNotes()),
		BoostDB:         &boost,
		Q:               &q,
		InputGain:       &inputGain,
		DryWet:          &dryWet,
		Mode:            p.Mode.String(),
		Makeup:          &makeup,
		GainSmoothingMS: &smoothing,
	}
	if len(p.NoteGains) > 0 {
		f.NoteGains = make(map[string]float64, len(p.NoteGains))
		for n, g := range p.NoteGains {
			if n.Valid() {
				f.NoteGains[n.String()] = g
			}
		}
	}
	return f
}

// SaveJSON writes params as an indented preset file, creating parent
// directories as needed.
func SaveJSON(path string, p *colourizer.Params) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(FromParams(p), "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}

func canonicalScale(names []string) []string {
	var seen [colourizer.NumNotes]bool
	for _, name := range names {
		if n, ok := colourizer.ParseNote(name); ok {
			seen[n] = true
		}
	}
	out := []string{}
	for n := colourizer.MinNote; n <= colourizer.MaxNote; n++ {
		if seen[n] {
			out = append(out, n.String())
		}
	}
	return out
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
