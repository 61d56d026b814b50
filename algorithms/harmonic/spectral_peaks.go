package harmonic

import (
	"math"
	"slices"

	"github.com/RyanBlaney/sonido-chords/algorithms/spectral"
)

// DefaultMinPeakDistance is the minimum spacing between picked peaks, in bins
const DefaultMinPeakDistance = 15

// SpectralPeak represents a detected spectral peak
type SpectralPeak struct {
	Frequency float64 `json:"frequency"` // Peak frequency in Hz
	Magnitude float64 `json:"magnitude"` // Peak magnitude
	BinIndex  int     `json:"bin_index"` // Original FFT bin index
}

// PeakPicker selects local maxima above a threshold, keeping at most one
// peak per MinDistance bins so a single spectral lobe yields a single peak
type PeakPicker struct {
	MinDistance int  // Minimum distance between kept peaks, in bins
	Refine      bool // Parabolic interpolation of peak frequency
}

// NewPeakPicker creates a peak picker with the given minimum bin distance
func NewPeakPicker(minDistance int) *PeakPicker {
	return &PeakPicker{MinDistance: max(minDistance, 1)}
}

// Pick returns the peaks of the spectrum whose magnitude is at least
// threshold, sorted by magnitude (descending). The comparison is inclusive
// so a threshold equal to the maximum still keeps the strongest peak.
func (pp *PeakPicker) Pick(s *spectral.Spectrum, threshold float64) []SpectralPeak {
	mags := s.Magnitudes
	if s.Len() < 3 || math.IsNaN(threshold) {
		return nil
	}

	var peaks []SpectralPeak
	for i := 1; i < len(mags)-1; i++ {
		// Strict on the left, inclusive on the right so a flat top yields its first bin
		if mags[i] > mags[i-1] && mags[i] >= mags[i+1] && mags[i] >= threshold {
			peaks = append(peaks, SpectralPeak{
				Frequency: s.Frequencies[i],
				Magnitude: mags[i],
				BinIndex:  i,
			})
		}
	}

	// Stable sort keeps lower bins first among equal magnitudes
	slices.SortStableFunc(peaks, func(a, b SpectralPeak) int {
		switch {
		case a.Magnitude > b.Magnitude:
			return -1
		case a.Magnitude < b.Magnitude:
			return 1
		default:
			return 0
		}
	})

	kept := peaks[:0]
	for _, candidate := range peaks {
		crowded := false
		for _, k := range kept {
			if abs(candidate.BinIndex-k.BinIndex) < pp.MinDistance {
				crowded = true
				break
			}
		}
		if !crowded {
			kept = append(kept, candidate)
		}
	}

	if pp.Refine {
		for i := range kept {
			kept[i] = refine(s, kept[i])
		}
	}

	return kept
}

// refine moves a peak to the vertex of the parabola through its bin and
// its two neighbours
func refine(s *spectral.Spectrum, peak SpectralPeak) SpectralPeak {
	i := peak.BinIndex
	if i <= 0 || i >= len(s.Magnitudes)-1 {
		return peak
	}

	y1, y2, y3 := s.Magnitudes[i-1], s.Magnitudes[i], s.Magnitudes[i+1]
	denom := 2.0 * (2.0*y2 - y1 - y3)
	if math.Abs(denom) < 1e-10 {
		return peak
	}

	offset := (y3 - y1) / denom
	a := 0.5 * (y1 - 2.0*y2 + y3)
	b := 0.5 * (y3 - y1)

	peak.Frequency = (float64(i) + offset) * s.Resolution
	peak.Magnitude = y2 + a*offset*offset + b*offset
	return peak
}

// AdaptiveLimit caps the number of notes taken from peakCount peaks:
// round(0.3*peakCount) clamped to [3, 12]
func AdaptiveLimit(peakCount int) int {
	limit := int(math.Round(0.3 * float64(peakCount)))
	return min(max(limit, 3), 12)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
