package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-chords/algorithms/common"
	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
)

// ErrInvalidConfig is returned when a setting cannot be clamped into range
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the tunable parameters of the chord detection pipeline
type Config struct {
	// Capture
	SampleRate int `json:"sample_rate"`
	BlockSize  int `json:"block_size"` // Samples per analyzed block
	QueueSize  int `json:"queue_size"` // Blocks buffered between capture and analysis

	// Note detection
	Sensitivity   float64 `json:"sensitivity"`    // 0.01-1.0
	FreqTolerance float64 `json:"freq_tolerance"` // Hz
	MinFrequency  float64 `json:"min_frequency"`
	MaxFrequency  float64 `json:"max_frequency"`
	RefinePeaks   bool    `json:"refine_peaks"`

	// Chord classification
	ConfidenceThreshold float64 `json:"confidence_threshold"` // 0.3-1.0
	MaxPersistence      int     `json:"max_persistence"`
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() *Config {
	notes := tonal.DefaultNoteDetectionParams()
	chords := tonal.DefaultChordClassifierParams()

	return &Config{
		SampleRate:          44100,
		BlockSize:           4096,
		QueueSize:           8,
		Sensitivity:         notes.Sensitivity,
		FreqTolerance:       notes.FreqTolerance,
		MinFrequency:        notes.MinFrequency,
		MaxFrequency:        notes.MaxFrequency,
		RefinePeaks:         notes.RefinePeaks,
		ConfidenceThreshold: chords.ConfidenceThreshold,
		MaxPersistence:      chords.MaxPersistence,
	}
}

// Load reads a JSON file over the defaults. Missing keys keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate must be positive, got %d", ErrInvalidConfig, c.SampleRate)
	case c.BlockSize <= 0:
		return fmt.Errorf("%w: block size must be positive, got %d", ErrInvalidConfig, c.BlockSize)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	}
	return nil
}

// Clamp pulls out-of-range settings back into range and describes each
// adjustment it made.
func (c *Config) Clamp() []string {
	var notes []string
	defaults := DefaultConfig()

	if !common.Finite(c.Sensitivity) {
		notes = append(notes, fmt.Sprintf("sensitivity %v reset to %.3f", c.Sensitivity, defaults.Sensitivity))
		c.Sensitivity = defaults.Sensitivity
	} else if v := common.Clamp(c.Sensitivity, 0.01, 1.0); v != c.Sensitivity {
		notes = append(notes, fmt.Sprintf("sensitivity %.3f clamped to %.3f", c.Sensitivity, v))
		c.Sensitivity = v
	}
	if !common.Finite(c.ConfidenceThreshold) {
		notes = append(notes, fmt.Sprintf("confidence threshold %v reset to %.3f", c.ConfidenceThreshold, defaults.ConfidenceThreshold))
		c.ConfidenceThreshold = defaults.ConfidenceThreshold
	} else if v := common.Clamp(c.ConfidenceThreshold, 0.3, 1.0); v != c.ConfidenceThreshold {
		notes = append(notes, fmt.Sprintf("confidence threshold %.3f clamped to %.3f", c.ConfidenceThreshold, v))
		c.ConfidenceThreshold = v
	}
	if !common.PositiveFinite(c.FreqTolerance) {
		notes = append(notes, fmt.Sprintf("frequency tolerance %.2f reset to %.2f", c.FreqTolerance, defaults.FreqTolerance))
		c.FreqTolerance = defaults.FreqTolerance
	}
	if c.MaxPersistence < 0 {
		notes = append(notes, fmt.Sprintf("max persistence %d raised to 0", c.MaxPersistence))
		c.MaxPersistence = 0
	}
	if !common.PositiveFinite(c.MinFrequency) || !common.PositiveFinite(c.MaxFrequency) || c.MaxFrequency <= c.MinFrequency {
		notes = append(notes, fmt.Sprintf("frequency range [%.1f, %.1f] reset to [%.1f, %.1f]",
			c.MinFrequency, c.MaxFrequency, defaults.MinFrequency, defaults.MaxFrequency))
		c.MinFrequency = defaults.MinFrequency
		c.MaxFrequency = defaults.MaxFrequency
	}

	return notes
}

// NoteDetectionParams derives the note detector parameters
func (c *Config) NoteDetectionParams() tonal.NoteDetectionParams {
	params := tonal.DefaultNoteDetectionParams()
	params.Sensitivity = c.Sensitivity
	params.FreqTolerance = c.FreqTolerance
	params.MinFrequency = c.MinFrequency
	params.MaxFrequency = c.MaxFrequency
	params.RefinePeaks = c.RefinePeaks
	return params
}

// ChordClassifierParams derives the chord classifier parameters
func (c *Config) ChordClassifierParams() tonal.ChordClassifierParams {
	return tonal.ChordClassifierParams{
		ConfidenceThreshold: c.ConfidenceThreshold,
		MaxPersistence:      c.MaxPersistence,
	}
}
