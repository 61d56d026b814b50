package tonal

import (
	"math"
	"sync"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
	"github.com/RyanBlaney/sonido-chords/algorithms/common"
	"github.com/RyanBlaney/sonido-chords/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-chords/algorithms/spectral"
	"github.com/RyanBlaney/sonido-chords/algorithms/windowing"
)

// NoteDetectionParams configures spectral note detection
type NoteDetectionParams struct {
	Sensitivity     float64 `json:"sensitivity"`       // Fraction of the strongest bin used as peak threshold (0.01-1.0)
	FreqTolerance   float64 `json:"freq_tolerance"`    // Base note-mapping tolerance in Hz
	MinFrequency    float64 `json:"min_frequency"`     // Lowest accepted reference note (Hz)
	MaxFrequency    float64 `json:"max_frequency"`     // Highest accepted reference note (Hz)
	MinPeakDistance int     `json:"min_peak_distance"` // Minimum spacing between peaks, in bins
	SilenceFloor    float64 `json:"silence_floor"`     // Peak amplitude at or below which a block is silent
	RefinePeaks     bool    `json:"refine_peaks"`      // Parabolic interpolation of peak frequencies
}

// DefaultNoteDetectionParams returns the default detection parameters
func DefaultNoteDetectionParams() NoteDetectionParams {
	return NoteDetectionParams{
		Sensitivity:     0.1,
		FreqTolerance:   10.0,
		MinFrequency:    50.0,
		MaxFrequency:    5000.0,
		MinPeakDistance: harmonic.DefaultMinPeakDistance,
		SilenceFloor:    0.005,
		RefinePeaks:     false,
	}
}

// DetectedNote is a spectral peak mapped onto the reference note table
type DetectedNote struct {
	chroma.Note
	PeakFrequency float64 `json:"peak_frequency"` // Measured peak frequency in Hz
	Magnitude     float64 `json:"magnitude"`      // Peak magnitude
}

// NoteAnalysis holds the intermediate results of one analyzed block
type NoteAnalysis struct {
	PeakAmplitude float64                 `json:"peak_amplitude"` // Largest |sample| before normalization
	RMS           float64                 `json:"rms"`
	Silent        bool                    `json:"silent"`         // Below the silence floor; no transform was run
	Degenerate    bool                    `json:"degenerate"`     // Block held NaN or Inf samples
	Peaks         []harmonic.SpectralPeak `json:"peaks"`          // Retained peaks, strongest first
	Notes         []DetectedNote          `json:"notes"`          // One per pitch class, strongest first
	PitchClasses  []chroma.PitchClass     `json:"pitch_classes"`  // Chromatic order
}

// NoteDetector turns one block of samples into the set of pitch classes
// present in it. It keeps no state between calls and is safe for
// concurrent use.
type NoteDetector struct {
	params  NoteDetectionParams
	fft     *spectral.FFT
	picker  *harmonic.PeakPicker
	scratch sync.Pool
}

// NewNoteDetector creates a note detector. Out-of-range parameters are
// clamped rather than rejected.
func NewNoteDetector(params NoteDetectionParams) *NoteDetector {
	defaults := DefaultNoteDetectionParams()
	if common.Finite(params.Sensitivity) {
		params.Sensitivity = common.Clamp(params.Sensitivity, 0.01, 1.0)
	} else {
		params.Sensitivity = defaults.Sensitivity
	}
	if !common.PositiveFinite(params.FreqTolerance) {
		params.FreqTolerance = defaults.FreqTolerance
	}
	if !common.PositiveFinite(params.MinFrequency) {
		params.MinFrequency = defaults.MinFrequency
	}
	if !common.PositiveFinite(params.MaxFrequency) || params.MaxFrequency <= params.MinFrequency {
		params.MaxFrequency = defaults.MaxFrequency
	}
	if params.MinPeakDistance <= 0 {
		params.MinPeakDistance = defaults.MinPeakDistance
	}
	if !(params.SilenceFloor >= 0) || math.IsInf(params.SilenceFloor, 1) {
		params.SilenceFloor = defaults.SilenceFloor
	}

	picker := harmonic.NewPeakPicker(params.MinPeakDistance)
	picker.Refine = params.RefinePeaks

	return &NoteDetector{
		params: params,
		fft:    spectral.NewFFT(),
		picker: picker,
		scratch: sync.Pool{
			New: func() any { return new([]float64) },
		},
	}
}

// Params returns the effective (clamped) parameters
func (nd *NoteDetector) Params() NoteDetectionParams {
	return nd.params
}

// Analyze returns the distinct pitch classes detected in block, in
// chromatic order. Silent or degenerate blocks yield an empty set.
func (nd *NoteDetector) Analyze(block []float32, sampleRate int) []chroma.PitchClass {
	return nd.AnalyzeDetailed(block, sampleRate).PitchClasses
}

// AnalyzeDetailed is Analyze with the intermediate peaks and notes
func (nd *NoteDetector) AnalyzeDetailed(block []float32, sampleRate int) NoteAnalysis {
	result := NoteAnalysis{PitchClasses: []chroma.PitchClass{}}
	if len(block) == 0 || sampleRate <= 0 {
		result.Silent = true
		return result
	}

	bufPtr := nd.scratch.Get().(*[]float64)
	defer nd.scratch.Put(bufPtr)
	samples := common.Float32To64(*bufPtr, block)
	*bufPtr = samples

	peak, finite := common.PeakAbs(samples)
	if !finite {
		result.Degenerate = true
		return result
	}
	result.PeakAmplitude = peak
	result.RMS = common.RMS(samples)
	if peak <= nd.params.SilenceFloor {
		result.Silent = true
		return result
	}

	common.NormalizePeak(samples, peak)
	if err := windowing.HannFor(len(samples)).ApplyInPlace(samples); err != nil {
		return result
	}

	spectrum := nd.fft.MagnitudeSpectrum(samples, sampleRate)
	threshold := nd.params.Sensitivity * spectrum.MaxMagnitude()

	peaks := nd.picker.Pick(spectrum, threshold)
	if limit := harmonic.AdaptiveLimit(len(peaks)); len(peaks) > limit {
		peaks = peaks[:limit]
	}
	result.Peaks = peaks

	var seen [chroma.NumPitchClasses]bool
	for _, p := range peaks {
		note, ok := chroma.NearestNote(p.Frequency, nd.params.FreqTolerance)
		if !ok {
			continue
		}
		if note.Frequency < nd.params.MinFrequency || note.Frequency > nd.params.MaxFrequency {
			continue
		}
		// Peaks arrive strongest first, so the first hit per class wins
		if seen[note.Class] {
			continue
		}
		seen[note.Class] = true
		result.Notes = append(result.Notes, DetectedNote{
			Note:          note,
			PeakFrequency: p.Frequency,
			Magnitude:     p.Magnitude,
		})
	}

	for pc, present := range seen {
		if present {
			result.PitchClasses = append(result.PitchClasses, chroma.PitchClass(pc))
		}
	}

	return result
}
