package spectral

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMagnitudeSpectrumAxis(t *testing.T) {
	f := NewFFT()
	s := f.MagnitudeSpectrum(make([]float64, 8), 8000)

	require.Equal(t, 5, s.Len())
	assert.Equal(t, 1000.0, s.Resolution)
	assert.Equal(t, []float64{0, 1000, 2000, 3000, 4000}, s.Frequencies)
	assert.Equal(t, 0.0, s.MaxMagnitude())
}

func TestMagnitudeSpectrumFindsTone(t *testing.T) {
	const (
		n    = 1024
		rate = 1024
		bin  = 50
	)
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * bin * float64(i) / rate)
	}

	s := NewFFT().MagnitudeSpectrum(x, rate)

	best := 0
	for k, m := range s.Magnitudes {
		if m > s.Magnitudes[best] {
			best = k
		}
	}
	assert.Equal(t, bin, best)
	assert.InDelta(t, float64(n)/2, s.MaxMagnitude(), 1e-6)
}

func TestMagnitudeSpectrumEmpty(t *testing.T) {
	assert.Equal(t, 0, NewFFT().MagnitudeSpectrum(nil, 44100).Len())
	assert.Equal(t, 0, NewFFT().MagnitudeSpectrum([]float64{1, 2}, 0).Len())
}
