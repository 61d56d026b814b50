package chroma

import (
	"fmt"
	"slices"
	"strings"
)

// PitchClass is an octave-independent chromatic note (0=C, 1=C#, ..., 11=B)
type PitchClass int

const (
	C PitchClass = iota
	CSharp
	D
	DSharp
	E
	F
	FSharp
	G
	GSharp
	A
	ASharp
	B
)

// NumPitchClasses is the size of the chromatic scale
const NumPitchClasses = 12

var pitchClassNames = [NumPitchClasses]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flatAliases = map[string]PitchClass{
	"DB": CSharp,
	"EB": DSharp,
	"GB": FSharp,
	"AB": GSharp,
	"BB": ASharp,
}

// String returns the sharp spelling of the pitch class
func (pc PitchClass) String() string {
	if !pc.Valid() {
		return fmt.Sprintf("PitchClass(%d)", int(pc))
	}
	return pitchClassNames[pc]
}

// Valid reports whether pc is one of the twelve chromatic classes
func (pc PitchClass) Valid() bool {
	return pc >= 0 && pc < NumPitchClasses
}

// Interval returns the ascending semitone distance from root to pc, mod 12
func (pc PitchClass) Interval(root PitchClass) int {
	return ((int(pc)-int(root))%NumPitchClasses + NumPitchClasses) % NumPitchClasses
}

// Transpose moves pc by the given number of semitones, wrapping at the octave
func (pc PitchClass) Transpose(semitones int) PitchClass {
	return PitchClass(((int(pc)+semitones)%NumPitchClasses + NumPitchClasses) % NumPitchClasses)
}

// ParsePitchClass accepts sharp names ("C#") and flat aliases ("Db").
// A trailing octave number ("A4") is ignored.
func ParsePitchClass(name string) (PitchClass, error) {
	s := strings.TrimSpace(name)
	s = strings.TrimRight(s, "0123456789-")
	if s == "" {
		return 0, fmt.Errorf("empty pitch class name %q", name)
	}

	upper := strings.ToUpper(s[:1]) + s[1:]
	for i, n := range pitchClassNames {
		if n == upper {
			return PitchClass(i), nil
		}
	}
	if pc, ok := flatAliases[strings.ToUpper(s)]; ok {
		return pc, nil
	}
	return 0, fmt.Errorf("unknown pitch class %q", name)
}

// Names converts pitch classes to their string names, preserving order
func Names(classes []PitchClass) []string {
	names := make([]string, len(classes))
	for i, pc := range classes {
		names[i] = pc.String()
	}
	return names
}

// SortChromatic returns the distinct valid classes in ascending chromatic order
func SortChromatic(classes []PitchClass) []PitchClass {
	var seen [NumPitchClasses]bool
	out := make([]PitchClass, 0, len(classes))
	for _, pc := range classes {
		if !pc.Valid() || seen[pc] {
			continue
		}
		seen[pc] = true
		out = append(out, pc)
	}
	slices.Sort(out)
	return out
}
