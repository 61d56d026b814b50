package capture

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
	"github.com/RyanBlaney/sonido-chords/chords"
)

// ParseTone accepts a frequency in Hz ("440") or a note name with an
// optional octave ("A", "C#3", "Eb5"). Octave defaults to 4.
func ParseTone(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, fmt.Errorf("tone frequency must be positive: %q", s)
		}
		return f, nil
	}

	pc, err := chroma.ParsePitchClass(s)
	if err != nil {
		return 0, err
	}

	octave := 4
	if digits := strings.TrimLeft(s, "ABCDEFGabcdefg#b"); digits != "" {
		octave, err = strconv.Atoi(digits)
		if err != nil {
			return 0, fmt.Errorf("invalid octave in %q: %w", s, err)
		}
	}

	freq, ok := chroma.ReferenceFrequency(pc, octave)
	if !ok {
		return 0, fmt.Errorf("octave %d of %q outside the note table", octave, s)
	}
	return freq, nil
}

// ToneSource synthesizes blocks of equally weighted sine tones
type ToneSource struct {
	Frequencies []float64
	Amplitude   float64 // Peak amplitude of the mix
	SampleRate  int
	BlockSize   int
	Blocks      int  // Number of blocks to emit; 0 runs until cancelled
	Realtime    bool // Pace blocks at their audio duration

	started atomic.Bool
}

// NewToneSource builds a tone source from note names or frequencies
func NewToneSource(tones []string, sampleRate, blockSize int) (*ToneSource, error) {
	if len(tones) == 0 {
		return nil, fmt.Errorf("at least one tone is required")
	}
	freqs := make([]float64, len(tones))
	for i, t := range tones {
		f, err := ParseTone(t)
		if err != nil {
			return nil, err
		}
		freqs[i] = f
	}
	return &ToneSource{
		Frequencies: freqs,
		Amplitude:   0.8,
		SampleRate:  sampleRate,
		BlockSize:   blockSize,
	}, nil
}

// Synthesize renders blockSize samples starting at sample offset
func (ts *ToneSource) Synthesize(offset int64) []float32 {
	if len(ts.Frequencies) == 0 || ts.SampleRate <= 0 {
		return make([]float32, ts.BlockSize)
	}

	mix := make([]float64, ts.BlockSize)
	tone := make([]float64, ts.BlockSize)
	for _, f := range ts.Frequencies {
		step := 2 * math.Pi * f / float64(ts.SampleRate)
		for i := range tone {
			tone[i] = math.Sin(step * float64(offset+int64(i)))
		}
		floats.Add(mix, tone)
	}
	floats.Scale(ts.Amplitude/float64(len(ts.Frequencies)), mix)

	out := make([]float32, len(mix))
	for i, v := range mix {
		out[i] = float32(v)
	}
	return out
}

// Stream emits synthesized blocks with continuous phase
func (ts *ToneSource) Stream(ctx context.Context, out chan<- chords.Block) error {
	if !ts.started.CompareAndSwap(false, true) {
		return ErrSourceClosed
	}
	if ts.BlockSize <= 0 || ts.SampleRate <= 0 {
		return fmt.Errorf("tone source needs positive block size and sample rate")
	}

	blockDuration := time.Duration(ts.BlockSize) * time.Second / time.Duration(ts.SampleRate)
	p := newPacer(blockDuration)
	start := time.Now()

	for seq := uint64(0); ts.Blocks == 0 || seq < uint64(ts.Blocks); seq++ {
		if ts.Realtime {
			if err := p.wait(ctx); err != nil {
				return finish(err)
			}
		}

		offset := int64(seq) * int64(ts.BlockSize)
		block := chords.Block{
			Samples:    ts.Synthesize(offset),
			SampleRate: ts.SampleRate,
			Sequence:   seq,
			Captured:   start.Add(time.Duration(seq) * blockDuration),
		}
		if err := send(ctx, out, block); err != nil {
			return finish(err)
		}
	}
	return nil
}
