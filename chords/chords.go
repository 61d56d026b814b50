package chords

import (
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
)

// Block is one fixed-size frame of mono audio. Producers must not modify
// Samples after sending a Block.
type Block struct {
	Samples    []float32 `json:"-"`
	SampleRate int       `json:"sample_rate"`
	Sequence   uint64    `json:"sequence"`
	Captured   time.Time `json:"captured"`
}

// Duration returns the time span covered by the block
func (b Block) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Result is the pipeline output for one block
type Result struct {
	Sequence   uint64            `json:"sequence"`
	Label      string            `json:"label"`
	Status     tonal.ChordStatus `json:"status"`
	Root       string            `json:"root,omitempty"`
	Quality    string            `json:"quality,omitempty"`
	Score      float64           `json:"score"` // Score of the chord the label names
	Notes      []string          `json:"notes"` // Detected pitch classes, chromatic order
	Level      float64           `json:"level"` // Peak amplitude of the raw block
	LevelDB    float64           `json:"level_db"`
	RMS        float64           `json:"rms"`
	Silent     bool              `json:"silent"`
	Changed    bool              `json:"changed"` // Label differs from the previous result
	Key        string            `json:"key,omitempty"`
	Relative   string            `json:"relative_key,omitempty"` // Relative major or minor of Key
	KeyClarity float64           `json:"key_clarity,omitempty"`
	Captured   time.Time         `json:"captured"`
	Elapsed    time.Duration     `json:"elapsed"` // Analysis time

	Envelope []float64 `json:"-"` // Coarse per-column peak levels for display
}

func (r Result) String() string {
	return fmt.Sprintf("#%d %s [%s]", r.Sequence, r.Label, r.Status)
}

// Committed reports whether the result names a chord the classifier is
// confident in, either freshly confirmed or held.
func (r Result) Committed() bool {
	return r.Status == tonal.StatusConfirmed || r.Status == tonal.StatusHeld
}

// Stats summarizes a session
type Stats struct {
	SessionID     string    `json:"session_id"`
	Started       time.Time `json:"started"`
	Blocks        uint64    `json:"blocks"`
	Silent        uint64    `json:"silent"`
	Confirmed     uint64    `json:"confirmed"`
	Held          uint64    `json:"held"`
	LowConfidence uint64    `json:"low_confidence"`
	Unrecognized  uint64    `json:"unrecognized"`
	Insufficient  uint64    `json:"insufficient"`
	Dropped       uint64    `json:"dropped"` // Blocks lost before analysis
	Changes       uint64    `json:"changes"`
	Key           string    `json:"key,omitempty"` // Latest session key estimate
	MeanLevel     float64   `json:"mean_level"`
	MeanElapsedMS float64   `json:"mean_elapsed_ms"`
}
