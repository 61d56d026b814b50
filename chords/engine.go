package chords

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
	"github.com/RyanBlaney/sonido-chords/algorithms/common"
	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/config"
	"github.com/RyanBlaney/sonido-chords/logging"
)

// EnvelopeColumns is the width of Result.Envelope
const EnvelopeColumns = 48

// keyDecay lets the key estimate follow modulations over a few hundred blocks
const keyDecay = 0.995

// Engine runs note detection and chord classification over a stream of
// blocks. Process calls are serialized internally; the classifier state
// carries over from one block to the next.
type Engine struct {
	cfg        *config.Config
	detector   *tonal.NoteDetector
	classifier *tonal.ChordClassifier
	keys       *tonal.KeyTracker
	sessionID  string
	logger     logging.Logger

	mu        sync.Mutex
	stats     Stats
	levelSum  float64
	elapsed   time.Duration
	latest    Result
	hasLatest bool
}

// NewEngine creates an engine. Out-of-range settings are clamped and
// logged; settings that cannot be clamped are rejected.
func NewEngine(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	c := *cfg
	if err := c.Validate(); err != nil {
		return nil, err
	}

	sessionID := uuid.New().String()
	logger := logging.WithFields(logging.Fields{
		"component": "chord_engine",
		"session":   sessionID,
	})

	for _, note := range c.Clamp() {
		logger.Warn("Adjusted configuration", logging.Fields{"adjustment": note})
	}

	logger.Debug("Engine created", logging.Fields{
		"sample_rate":          c.SampleRate,
		"block_size":           c.BlockSize,
		"sensitivity":          c.Sensitivity,
		"freq_tolerance":       c.FreqTolerance,
		"confidence_threshold": c.ConfidenceThreshold,
		"max_persistence":      c.MaxPersistence,
	})

	return &Engine{
		cfg:        &c,
		detector:   tonal.NewNoteDetector(c.NoteDetectionParams()),
		classifier: tonal.NewChordClassifier(c.ChordClassifierParams()),
		keys:       tonal.NewKeyTracker(keyDecay),
		sessionID:  sessionID,
		logger:     logger,
		stats: Stats{
			SessionID: sessionID,
			Started:   time.Now(),
		},
	}, nil
}

// Config returns the effective configuration
func (e *Engine) Config() config.Config {
	return *e.cfg
}

// SessionID identifies this engine in logs and feeds
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Process analyzes a single block
func (e *Engine) Process(b Block) Result {
	start := time.Now()

	sampleRate := b.SampleRate
	if sampleRate <= 0 {
		sampleRate = e.cfg.SampleRate
	}
	analysis := e.detector.AnalyzeDetailed(b.Samples, sampleRate)

	e.mu.Lock()
	defer e.mu.Unlock()

	chord := e.classifier.Classify(analysis.PitchClasses)
	e.keys.Observe(analysis.PitchClasses, 1)
	key, hasKey := e.keys.Estimate()

	result := Result{
		Sequence: b.Sequence,
		Label:    chord.Label,
		Status:   chord.Status,
		Notes:    chroma.Names(chord.Notes),
		Level:    analysis.PeakAmplitude,
		LevelDB:  common.AmplitudeToDB(analysis.PeakAmplitude),
		RMS:      analysis.RMS,
		Silent:   analysis.Silent,
		Captured: b.Captured,
		Envelope: Envelope(b.Samples, EnvelopeColumns),
	}
	if chord.Chord != nil {
		result.Root = chord.Chord.Root.String()
		result.Quality = chord.Chord.Quality
		result.Score = chord.Chord.Score
	}
	if hasKey {
		result.Key = key.Name
		tonic, mode := tonal.RelativeKey(key.Tonic, key.Mode)
		result.Relative = tonic.String() + " " + mode.String()
		result.KeyClarity = key.Clarity
	}
	result.Changed = !e.hasLatest || e.latest.Label != result.Label
	result.Elapsed = time.Since(start)

	e.record(result)

	if result.Changed {
		e.logger.Debug("Chord label changed", logging.Fields{
			"sequence": b.Sequence,
			"label":    result.Label,
			"status":   result.Status.String(),
			"notes":    result.Notes,
		})
	}
	if analysis.Degenerate {
		e.logger.Debug("Skipped block with non-finite samples", logging.Fields{"sequence": b.Sequence})
	}

	return result
}

func (e *Engine) record(r Result) {
	s := &e.stats
	s.Blocks++
	if r.Silent {
		s.Silent++
	}
	switch r.Status {
	case tonal.StatusConfirmed:
		s.Confirmed++
	case tonal.StatusHeld:
		s.Held++
	case tonal.StatusLowConfidence:
		s.LowConfidence++
	case tonal.StatusUnrecognized:
		s.Unrecognized++
	case tonal.StatusInsufficient:
		s.Insufficient++
	}
	if r.Changed && e.hasLatest {
		s.Changes++
	}

	e.levelSum += r.Level
	e.elapsed += r.Elapsed
	s.MeanLevel = e.levelSum / float64(s.Blocks)
	s.MeanElapsedMS = float64(e.elapsed.Microseconds()) / 1000 / float64(s.Blocks)

	if r.Key != "" && r.Key != s.Key {
		e.logger.Debug("Key estimate changed", logging.Fields{"key": r.Key, "clarity": r.KeyClarity})
		s.Key = r.Key
	}

	e.latest = r
	e.hasLatest = true
}

// Run consumes blocks until the channel is closed or ctx is done, passing
// each result to sink. It returns nil when the channel closes.
func (e *Engine) Run(ctx context.Context, blocks <-chan Block, sink func(Result)) error {
	e.logger.Info("Chord engine started")
	defer func() {
		e.logger.Info("Chord engine stopped", logging.Fields{"blocks": e.Stats().Blocks})
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-blocks:
			if !ok {
				return nil
			}
			result := e.Process(b)
			if sink != nil {
				sink(result)
			}
		}
	}
}

// RecordDropped counts blocks a source discarded before analysis
func (e *Engine) RecordDropped(n uint64) {
	e.mu.Lock()
	e.stats.Dropped += n
	e.mu.Unlock()
}

// Latest returns the most recent result, if any
func (e *Engine) Latest() (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest, e.hasLatest
}

// Stats returns a snapshot of the session counters
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Reset clears the classifier state and the session counters
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.classifier.Reset()
	e.keys.Reset()
	e.stats = Stats{SessionID: e.sessionID, Started: time.Now()}
	e.levelSum = 0
	e.elapsed = 0
	e.latest = Result{}
	e.hasLatest = false
}

// Envelope reduces samples to columns peak-absolute values
func Envelope(samples []float32, columns int) []float64 {
	if columns <= 0 || len(samples) == 0 {
		return nil
	}
	columns = min(columns, len(samples))

	out := make([]float64, columns)
	for c := 0; c < columns; c++ {
		lo := c * len(samples) / columns
		hi := (c + 1) * len(samples) / columns
		var peak float32
		for _, s := range samples[lo:hi] {
			if s < 0 {
				s = -s
			}
			if s > peak {
				peak = s
			}
		}
		out[c] = float64(peak)
	}
	return out
}
