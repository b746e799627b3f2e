package colourizer

import (
	"fmt"
	"sort"
	"strings"
)

// scaleIntervals lists semitone offsets from the root for each named scale.
var scaleIntervals = map[string][]int{
	"chromatic":        {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	"major":            {0, 2, 4, 5, 7, 9, 11},
	"minor":            {0, 2, 3, 5, 7, 8, 10},
	"pentatonic":       {0, 2, 4, 7, 9},
	"minor-pentatonic": {0, 3, 5, 7, 10},
	"miyako-bushi":     {0, 1, 5, 7, 8},
	"whole-tone":       {0, 2, 4, 6, 8, 10},
	"harmonic-minor":   {0, 2, 3, 5, 7, 8, 11},
	"blues":            {0, 3, 5, 6, 7, 10},
	"dorian":           {0, 2, 3, 5, 7, 9, 10},
	"mixolydian":       {0, 2, 4, 5, 7, 9, 10},
	"hirajoshi":        {0, 2, 3, 7, 8},
	"ryukyu":           {0, 4, 5, 7, 11},
	"natural-minor":    {0, 2, 3, 5, 7, 8, 10},
	"major-pentatonic": {0, 2, 4, 7, 9},
	"in-sen":           {0, 1, 5, 7, 10},
}

// DefaultScaleName is the scale a new bank starts with.
const DefaultScaleName = "miyako-bushi"

// ScaleNames returns the built-in scale names in sorted order.
func ScaleNames() []string {
	names := make([]string, 0, len(scaleIntervals))
	for k := range scaleIntervals {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ScalePitchClasses returns the pitch classes of a named scale on root.
func ScalePitchClasses(name string, root string) ([]int, error) {
	intervals, ok := scaleIntervals[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown scale %q", name)
	}
	if strings.TrimSpace(root) == "" {
		root = "C"
	}
	rootPC, ok := ParsePitchClass(root)
	if !ok {
		return nil, fmt.Errorf("invalid scale root %q", root)
	}
	out := make([]int, len(intervals))
	for i, iv := range intervals {
		out[i] = (rootPC + iv) % 12
	}
	return out, nil
}

// ScaleByName returns the note names of a named scale over every octave.
func ScaleByName(name string, root string) ([]string, error) {
	pcs, err := ScalePitchClasses(name, root)
	if err != nil {
		return nil, err
	}
	return notesForPitchClasses(pcs), nil
}

// DefaultScale returns the note names of the initial bank scale.
func DefaultScale() []string {
	names, _ := ScaleByName(DefaultScaleName, "C")
	return names
}

// ExpandPitchClasses turns octave-less spellings into note names across
// C0..B8. Unresolvable spellings are returned in rejected.
func ExpandPitchClasses(classes []string) (names []string, rejected []string) {
	pcs := make([]int, 0, len(classes))
	for _, c := range classes {
		pc, ok := ParsePitchClass(c)
		if !ok {
			rejected = append(rejected, c)
			continue
		}
		pcs = append(pcs, pc)
	}
	return notesForPitchClasses(pcs), rejected
}

func notesForPitchClasses(pcs []int) []string {
	var member [12]bool
	for _, pc := range pcs {
		member[pc] = true
	}
	names := make([]string, 0, len(pcs)*(MaxOctave+1))
	for n := MinNote; n <= MaxNote; n++ {
		if member[n.PitchClass()] {
			names = append(names, n.String())
		}
	}
	return names
}

// ParseScaleSpec resolves a command-line scale description. It accepts a
// built-in scale name with an optional root ("major", "minor:D"), a
// comma-separated list of note names ("A4,C#5") or a comma-separated list of
// pitch classes expanded over every octave ("A,C#,E").
func ParseScaleSpec(spec string) ([]string, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty scale")
	}
	name, root, _ := strings.Cut(spec, ":")
	if _, ok := scaleIntervals[strings.ToLower(strings.TrimSpace(name))]; ok {
		return ScaleByName(name, root)
	}

	parts := strings.Split(spec, ",")
	var notes, classes []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, ok := ParseNote(part); ok {
			notes = append(notes, part)
			continue
		}
		if _, ok := ParsePitchClass(part); ok {
			classes = append(classes, part)
			continue
		}
		return nil, fmt.Errorf("invalid note or pitch class %q", part)
	}
	if len(classes) > 0 {
		expanded, _ := ExpandPitchClasses(classes)
		notes = append(notes, expanded...)
	}
	return notes, nil
}
