package tonal

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
)

// KeyMode represents major or minor mode
type KeyMode int

const (
	KeyModeMajor KeyMode = iota
	KeyModeMinor
)

func (m KeyMode) String() string {
	if m == KeyModeMinor {
		return "minor"
	}
	return "major"
}

// Krumhansl-Schmuckler profiles (empirically derived), tonic first
var (
	majorProfile = []float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = []float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// KeyEstimate is the most likely key of the pitch classes heard so far
type KeyEstimate struct {
	Tonic       chroma.PitchClass `json:"tonic"`
	Mode        KeyMode           `json:"mode"`
	Name        string            `json:"name"`        // e.g. "A minor"
	Correlation float64           `json:"correlation"` // Pearson correlation with the key profile
	Clarity     float64           `json:"clarity"`     // (best - second best) / best
}

// KeyTracker accumulates a decaying pitch-class histogram across blocks
// and correlates it with the 24 major and minor key profiles.
type KeyTracker struct {
	histogram [chroma.NumPitchClasses]float64
	decay     float64
}

// NewKeyTracker creates a tracker. decay in (0,1] scales the histogram
// before each observation; 1 never forgets.
func NewKeyTracker(decay float64) *KeyTracker {
	if decay <= 0 || decay > 1 {
		decay = 1
	}
	return &KeyTracker{decay: decay}
}

// Observe adds one block's pitch classes with the given weight
func (kt *KeyTracker) Observe(notes []chroma.PitchClass, weight float64) {
	if len(notes) == 0 || weight <= 0 {
		return
	}
	for i := range kt.histogram {
		kt.histogram[i] *= kt.decay
	}
	for _, pc := range notes {
		if pc.Valid() {
			kt.histogram[pc] += weight
		}
	}
}

// Reset forgets everything observed
func (kt *KeyTracker) Reset() {
	kt.histogram = [chroma.NumPitchClasses]float64{}
}

// Estimate returns the best-correlated key. ok is false until the
// histogram holds at least two distinct pitch classes.
func (kt *KeyTracker) Estimate() (KeyEstimate, bool) {
	distinct := 0
	for _, v := range kt.histogram {
		if v > 0 {
			distinct++
		}
	}
	if distinct < 2 {
		return KeyEstimate{}, false
	}

	hist := kt.histogram[:]
	scores := make([]float64, 0, 2*chroma.NumPitchClasses)
	best := KeyEstimate{Correlation: math.Inf(-1)}

	for _, mode := range []KeyMode{KeyModeMajor, KeyModeMinor} {
		profile := majorProfile
		if mode == KeyModeMinor {
			profile = minorProfile
		}
		for tonic := 0; tonic < chroma.NumPitchClasses; tonic++ {
			corr := stat.Correlation(hist, rotateProfile(profile, tonic), nil)
			if math.IsNaN(corr) {
				continue
			}
			scores = append(scores, corr)
			if corr > best.Correlation {
				best = KeyEstimate{
					Tonic:       chroma.PitchClass(tonic),
					Mode:        mode,
					Correlation: corr,
				}
			}
		}
	}
	if math.IsInf(best.Correlation, -1) {
		return KeyEstimate{}, false
	}

	best.Name = best.Tonic.String() + " " + best.Mode.String()
	best.Clarity = clarity(scores)
	return best, true
}

// rotateProfile maps a tonic-first profile onto absolute pitch classes
func rotateProfile(profile []float64, tonic int) []float64 {
	out := make([]float64, len(profile))
	for pc := range out {
		out[pc] = profile[(pc-tonic+len(profile))%len(profile)]
	}
	return out
}

func clarity(scores []float64) float64 {
	if len(scores) < 2 {
		return 0.0
	}
	sorted := slices.Clone(scores)
	slices.Sort(sorted)
	slices.Reverse(sorted)

	if sorted[0] > 0 {
		return (sorted[0] - sorted[1]) / sorted[0]
	}
	return 0.0
}

// RelativeKey returns the relative major or minor of a key
func RelativeKey(tonic chroma.PitchClass, mode KeyMode) (chroma.PitchClass, KeyMode) {
	if mode == KeyModeMajor {
		return tonic.Transpose(-3), KeyModeMinor
	}
	return tonic.Transpose(3), KeyModeMajor
}
