package chroma

import (
	"fmt"
	"math"
)

const (
	// MinOctave and MaxOctave bound the reference note table
	MinOctave = 1
	MaxOctave = 8

	anchorOctave = 4
)

// Fourth-octave anchor frequencies in Hz, indexed by pitch class
var anchorFrequencies = [NumPitchClasses]float64{
	261.63, 277.18, 293.66, 311.13, 329.63, 349.23,
	369.99, 392.00, 415.30, 440.00, 466.16, 493.88,
}

// Note is a pitch class at a specific octave
type Note struct {
	Class     PitchClass `json:"class"`
	Octave    int        `json:"octave"`
	Frequency float64    `json:"frequency"` // Reference frequency in Hz
}

func (n Note) String() string {
	return fmt.Sprintf("%s%d", n.Class, n.Octave)
}

// referenceTable is ordered octave-major, then pitch class
var referenceTable = buildReferenceTable()

func buildReferenceTable() []Note {
	notes := make([]Note, 0, (MaxOctave-MinOctave+1)*NumPitchClasses)
	for octave := MinOctave; octave <= MaxOctave; octave++ {
		scale := math.Pow(2, float64(octave-anchorOctave))
		for pc, freq := range anchorFrequencies {
			notes = append(notes, Note{
				Class:     PitchClass(pc),
				Octave:    octave,
				Frequency: freq * scale,
			})
		}
	}
	return notes
}

// ReferenceFrequency returns the table frequency for a pitch class and octave
func ReferenceFrequency(pc PitchClass, octave int) (float64, bool) {
	if !pc.Valid() || octave < MinOctave || octave > MaxOctave {
		return 0, false
	}
	return referenceTable[(octave-MinOctave)*NumPitchClasses+int(pc)].Frequency, true
}

// MappingTolerance widens the base tolerance for higher reference notes
func MappingTolerance(base, refFreq float64) float64 {
	return base * (1 + 0.1*refFreq/440.0)
}

// NearestNote maps a frequency onto the reference table.
// A reference is a candidate only when |freq-ref| is within its own
// MappingTolerance; among candidates the smallest relative distance wins.
// ok is false when no reference accepts the frequency.
func NearestNote(freq, tolerance float64) (note Note, ok bool) {
	if math.IsNaN(freq) || math.IsInf(freq, 0) || freq <= 0 {
		return Note{}, false
	}
	if !(tolerance > 0) || math.IsInf(tolerance, 1) {
		return Note{}, false
	}

	bestRelative := math.Inf(1)
	for _, ref := range referenceTable {
		distance := math.Abs(freq - ref.Frequency)
		if distance > MappingTolerance(tolerance, ref.Frequency) {
			continue
		}
		if relative := distance / ref.Frequency; relative < bestRelative {
			bestRelative = relative
			note = ref
			ok = true
		}
	}
	return note, ok
}
