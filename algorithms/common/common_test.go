package common

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeakAbs(t *testing.T) {
	peak, finite := PeakAbs([]float64{0.1, -0.7, 0.3})
	assert.True(t, finite)
	assert.Equal(t, 0.7, peak)

	_, finite = PeakAbs([]float64{0.1, math.NaN()})
	assert.False(t, finite)
	_, finite = PeakAbs([]float64{math.Inf(-1)})
	assert.False(t, finite)

	peak, finite = PeakAbs(nil)
	assert.True(t, finite)
	assert.Zero(t, peak)
}

func TestNormalizePeak(t *testing.T) {
	x := []float64{0.25, -0.5}
	NormalizePeak(x, 0.5)
	assert.Equal(t, []float64{0.5, -1}, x)

	zeros := []float64{0, 0}
	NormalizePeak(zeros, 0)
	assert.Equal(t, []float64{0, 0}, zeros)
}

func TestMathHelpers(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(3, 0, 1))
	assert.Equal(t, 0.01, Clamp(0, 0.01, 1))
	assert.Equal(t, 0.3, Clamp(math.NaN(), 0.3, 1))
	assert.Equal(t, 1.0, Clamp(math.Inf(1), 0.3, 1))
	assert.True(t, Finite(0.5))
	assert.False(t, Finite(math.NaN()))
	assert.False(t, Finite(math.Inf(-1)))
	assert.True(t, PositiveFinite(1e-9))
	assert.False(t, PositiveFinite(0))
	assert.False(t, PositiveFinite(math.NaN()))
	assert.False(t, PositiveFinite(math.Inf(1)))
	assert.InDelta(t, 0.0, AmplitudeToDB(1), 1e-12)
	assert.Equal(t, -120.0, AmplitudeToDB(0))
	assert.InDelta(t, 1.0, RMS([]float64{1, -1, 1, -1}), 1e-12)

	assert.Zero(t, RMS(nil))

	w := Float32To64(nil, []float32{0.5, -0.25})
	assert.Equal(t, []float64{0.5, -0.25}, w)
}

func collect(blocks *[][]float32) func([]float32) error {
	return func(b []float32) error {
		*blocks = append(*blocks, b)
		return nil
	}
}

func TestBlockAssemblerCutsFixedBlocks(t *testing.T) {
	ba, err := NewBlockAssembler(4, 0)
	require.NoError(t, err)

	var blocks [][]float32
	require.NoError(t, ba.Write([]float32{1, 2, 3}, collect(&blocks)))
	assert.Empty(t, blocks)
	require.NoError(t, ba.Write([]float32{4, 5, 6, 7, 8, 9}, collect(&blocks)))

	require.Len(t, blocks, 2)
	assert.Equal(t, []float32{1, 2, 3, 4}, blocks[0])
	assert.Equal(t, []float32{5, 6, 7, 8}, blocks[1])
	assert.Equal(t, 1, ba.Buffered())

	require.NoError(t, ba.Flush(collect(&blocks)))
	require.Len(t, blocks, 3)
	assert.Equal(t, []float32{9, 0, 0, 0}, blocks[2])
	assert.Zero(t, ba.Buffered())
}

func TestBlockAssemblerOverlap(t *testing.T) {
	ba, err := NewBlockAssembler(4, 2)
	require.NoError(t, err)

	var blocks [][]float32
	require.NoError(t, ba.Write([]float32{1, 2, 3, 4, 5, 6}, collect(&blocks)))

	require.Len(t, blocks, 2)
	assert.Equal(t, []float32{1, 2, 3, 4}, blocks[0])
	assert.Equal(t, []float32{3, 4, 5, 6}, blocks[1])

	// Only the overlap tail is buffered; nothing new to flush
	require.NoError(t, ba.Flush(collect(&blocks)))
	assert.Len(t, blocks, 2)
}

func TestBlockAssemblerStopsOnEmitError(t *testing.T) {
	ba, err := NewBlockAssembler(2, 0)
	require.NoError(t, err)

	stop := errors.New("stop")
	calls := 0
	err = ba.Write([]float32{1, 2, 3, 4}, func([]float32) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)

	_, err = NewBlockAssembler(0, 0)
	assert.Error(t, err)
}
