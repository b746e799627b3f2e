package colourizer

import (
	"fmt"
	"math"
	"strings"
)

// Note is a semitone index from C0 (0) through B8 (107).
type Note int

const (
	// NumNotes is the size of the note arena: 9 octaves of 12 semitones.
	NumNotes = 108
	MinNote  = Note(0)
	MaxNote  = Note(NumNotes - 1)

	// NoteA4 is the tuning reference index.
	NoteA4 = Note(57)
	// ReferencePitch is the frequency of A4 in Hz.
	ReferencePitch = 440.0

	MaxOctave = 8
)

var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteFromParts builds a note from a pitch class (0 = C) and an octave.
func NoteFromParts(pitchClass, octave int) (Note, bool) {
	if pitchClass < 0 || pitchClass > 11 {
		return 0, false
	}
	n := Note(octave*12 + pitchClass)
	if !n.Valid() {
		return 0, false
	}
	return n, true
}

// Valid reports whether n lies within C0..B8.
func (n Note) Valid() bool {
	return n >= MinNote && n <= MaxNote
}

// PitchClass returns the semitone within the octave (0 = C).
func (n Note) PitchClass() int {
	return int(n) % 12
}

// Octave returns the octave number in scientific pitch notation.
func (n Note) Octave() int {
	return int(n) / 12
}

// Frequency returns the equal-tempered center frequency in Hz.
func (n Note) Frequency() float64 {
	return ReferencePitch * math.Pow(2, float64(n-NoteA4)/12.0)
}

// String returns the canonical sharp spelling, e.g. "C#4".
func (n Note) String() string {
	if !n.Valid() {
		return fmt.Sprintf("Note(%d)", int(n))
	}
	return fmt.Sprintf("%s%d", pitchClassNames[n.PitchClass()], n.Octave())
}

// ParseNote resolves a note name such as "A4", "c#3", "Db5" or "Fs2".
//
// Sharps are written '#' or 's', flats 'b' or 'f'. Matching ignores case and
// surrounding whitespace. Names outside the spelling grammar or outside
// C0..B8 are rejected.
func ParseNote(name string) (Note, bool) {
	s := strings.ToLower(strings.TrimSpace(name))
	if len(s) < 2 {
		return 0, false
	}
	last := s[len(s)-1]
	if last < '0' || last > '9' {
		return 0, false
	}
	octave := int(last - '0')
	if octave > MaxOctave {
		return 0, false
	}

	pc, shift, ok := parseSpelling(s[:len(s)-1])
	if !ok {
		return 0, false
	}
	n := Note(octave*12 + pc + shift)
	if !n.Valid() {
		return 0, false
	}
	return n, true
}

// ParsePitchClass resolves an octave-less spelling such as "g#" or "Bb".
func ParsePitchClass(name string) (int, bool) {
	s := strings.ToLower(strings.TrimSpace(name))
	pc, shift, ok := parseSpelling(s)
	if !ok {
		return 0, false
	}
	return (pc + shift + 12) % 12, true
}

// MustParseNote is ParseNote for literals known to be valid.
func MustParseNote(name string) Note {
	n, ok := ParseNote(name)
	if !ok {
		panic(fmt.Sprintf("colourizer: invalid note name %q", name))
	}
	return n
}

// parseSpelling returns the natural pitch class and the accidental offset.
// The offset can move a note into the neighbouring octave (Cb).
func parseSpelling(s string) (int, int, bool) {
	if len(s) == 0 || len(s) > 2 {
		return 0, 0, false
	}
	var pc int
	switch s[0] {
	case 'c':
		pc = 0
	case 'd':
		pc = 2
	case 'e':
		pc = 4
	case 'f':
		pc = 5
	case 'g':
		pc = 7
	case 'a':
		pc = 9
	case 'b':
		pc = 11
	default:
		return 0, 0, false
	}
	if len(s) == 1 {
		return pc, 0, true
	}

	switch s[1] {
	case '#', 's':
		// E#, B# are not part of the spelling set.
		if pc == 4 || pc == 11 {
			return 0, 0, false
		}
		return pc, 1, true
	case 'b', 'f':
		// Fb is not part of the spelling set; Cb is (B of the octave below).
		if pc == 5 {
			return 0, 0, false
		}
		return pc, -1, true
	}
	return 0, 0, false
}
