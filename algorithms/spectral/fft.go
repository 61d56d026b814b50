package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Spectrum is a one-sided magnitude spectrum with its frequency axis
type Spectrum struct {
	Frequencies []float64 // Bin center frequencies in Hz, ascending
	Magnitudes  []float64 // |X[k]|, non-negative
	Resolution  float64   // Hz per bin
}

// Len returns the number of bins
func (s *Spectrum) Len() int {
	return len(s.Magnitudes)
}

// MaxMagnitude returns the largest magnitude in the spectrum
func (s *Spectrum) MaxMagnitude() float64 {
	peak := 0.0
	for _, m := range s.Magnitudes {
		if m > peak {
			peak = m
		}
	}
	return peak
}

// FFT provides Fast Fourier Transform functionality
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the full complex FFT of a real signal using mjibson/go-dsp,
// which handles non-power-of-2 sizes
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// MagnitudeSpectrum computes the one-sided spectrum (bins 0..N/2) of a real
// signal sampled at sampleRate
func (f *FFT) MagnitudeSpectrum(x []float64, sampleRate int) *Spectrum {
	n := len(x)
	if n == 0 || sampleRate <= 0 {
		return &Spectrum{}
	}

	full := f.Compute(x)
	bins := n/2 + 1
	resolution := float64(sampleRate) / float64(n)

	spectrum := &Spectrum{
		Frequencies: make([]float64, bins),
		Magnitudes:  make([]float64, bins),
		Resolution:  resolution,
	}
	for k := 0; k < bins; k++ {
		spectrum.Frequencies[k] = float64(k) * resolution
		spectrum.Magnitudes[k] = cmplx.Abs(full[k])
	}

	return spectrum
}
