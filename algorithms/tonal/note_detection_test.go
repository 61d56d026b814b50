package tonal

import (
	"math"
	"sync"
	"testing"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSampleRate = 44100
	testBlockSize  = 4096
)

func sineMix(amplitude float64, freqs ...float64) []float32 {
	block := make([]float32, testBlockSize)
	for i := range block {
		t := float64(i) / testSampleRate
		var v float64
		for _, f := range freqs {
			v += math.Sin(2 * math.Pi * f * t)
		}
		block[i] = float32(amplitude * v / float64(len(freqs)))
	}
	return block
}

func TestAnalyzeSilence(t *testing.T) {
	nd := NewNoteDetector(DefaultNoteDetectionParams())

	t.Run("zeros", func(t *testing.T) {
		res := nd.AnalyzeDetailed(make([]float32, testBlockSize), testSampleRate)
		assert.True(t, res.Silent)
		assert.Empty(t, res.PitchClasses)
		assert.NotNil(t, res.PitchClasses)
	})

	t.Run("below floor", func(t *testing.T) {
		res := nd.AnalyzeDetailed(sineMix(0.004, 440), testSampleRate)
		assert.True(t, res.Silent)
		assert.Empty(t, res.Peaks)
	})

	t.Run("empty block", func(t *testing.T) {
		assert.Empty(t, nd.Analyze(nil, testSampleRate))
	})
}

func TestAnalyzeDegenerateBlock(t *testing.T) {
	nd := NewNoteDetector(DefaultNoteDetectionParams())
	block := sineMix(0.5, 440)
	block[100] = float32(math.NaN())

	res := nd.AnalyzeDetailed(block, testSampleRate)
	assert.True(t, res.Degenerate)
	assert.Empty(t, res.PitchClasses)

	block[100] = float32(math.Inf(1))
	assert.Empty(t, nd.Analyze(block, testSampleRate))
}

func TestAnalyzeSingleTone(t *testing.T) {
	nd := NewNoteDetector(DefaultNoteDetectionParams())

	res := nd.AnalyzeDetailed(sineMix(0.5, 440), testSampleRate)
	require.Equal(t, []chroma.PitchClass{chroma.A}, res.PitchClasses)
	require.Len(t, res.Notes, 1)
	assert.Equal(t, 4, res.Notes[0].Octave)
	assert.InDelta(t, 440, res.Notes[0].PeakFrequency, 11)
	assert.InDelta(t, 0.5, res.PeakAmplitude, 0.01)
}

func TestAnalyzeTriad(t *testing.T) {
	nd := NewNoteDetector(DefaultNoteDetectionParams())

	// Spread across octaves so no two peaks share a suppression window
	notes := nd.Analyze(sineMix(0.8, 130.81, 329.63, 783.99), testSampleRate)
	assert.Equal(t, []chroma.PitchClass{chroma.C, chroma.E, chroma.G}, notes)
}

func TestAnalyzeCloseVoicing(t *testing.T) {
	nd := NewNoteDetector(DefaultNoteDetectionParams())
	closeTriad := []float64{261.63, 329.63, 392.00} // C4 E4 G4

	t.Run("default block merges neighbours", func(t *testing.T) {
		// 15 bins at 4096 samples span about 161 Hz, wider than the triad
		notes := nd.Analyze(sineMix(0.8, closeTriad...), testSampleRate)
		assert.Less(t, len(notes), 3)
	})

	t.Run("longer block resolves the triad", func(t *testing.T) {
		block := make([]float32, 16384)
		for i := range block {
			var v float64
			for _, f := range closeTriad {
				v += math.Sin(2 * math.Pi * f * float64(i) / testSampleRate)
			}
			block[i] = float32(0.8 * v / 3)
		}
		assert.Equal(t, []chroma.PitchClass{chroma.C, chroma.E, chroma.G}, nd.Analyze(block, testSampleRate))
	})
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	nd := NewNoteDetector(DefaultNoteDetectionParams())
	block := sineMix(0.7, 130.81, 329.63, 783.99)

	first := nd.AnalyzeDetailed(block, testSampleRate)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, nd.AnalyzeDetailed(block, testSampleRate))
	}
}

func TestAnalyzeConcurrentUse(t *testing.T) {
	nd := NewNoteDetector(DefaultNoteDetectionParams())
	blocks := [][]float32{
		sineMix(0.5, 440),
		sineMix(0.8, 130.81, 329.63, 783.99),
		make([]float32, testBlockSize),
	}
	want := make([][]chroma.PitchClass, len(blocks))
	for i, b := range blocks {
		want[i] = nd.Analyze(b, testSampleRate)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				idx := (w + i) % len(blocks)
				assert.Equal(t, want[idx], nd.Analyze(blocks[idx], testSampleRate))
			}
		}()
	}
	wg.Wait()
}

func TestNewNoteDetectorClampsParams(t *testing.T) {
	nd := NewNoteDetector(NoteDetectionParams{Sensitivity: 5, FreqTolerance: -1})
	p := nd.Params()

	assert.Equal(t, 1.0, p.Sensitivity)
	assert.Equal(t, 10.0, p.FreqTolerance)
	assert.Equal(t, 50.0, p.MinFrequency)
	assert.Equal(t, 5000.0, p.MaxFrequency)
	assert.Equal(t, 15, p.MinPeakDistance)
}

func TestNewNoteDetectorRejectsNonFiniteParams(t *testing.T) {
	nd := NewNoteDetector(NoteDetectionParams{
		Sensitivity:   math.NaN(),
		FreqTolerance: math.NaN(),
		MinFrequency:  math.NaN(),
		MaxFrequency:  math.Inf(1),
		SilenceFloor:  math.NaN(),
	})
	assert.Equal(t, DefaultNoteDetectionParams(), nd.Params())

	t.Run("off-table tone stays unmapped", func(t *testing.T) {
		// 1015 Hz sits between B5 and C6, outside both tolerances
		assert.Empty(t, nd.Analyze(sineMix(0.8, 1015), testSampleRate))
	})

	t.Run("in-tune tone still maps", func(t *testing.T) {
		assert.Equal(t, []chroma.PitchClass{chroma.A}, nd.Analyze(sineMix(0.8, 440), testSampleRate))
	})
}
