package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Epsilon guards divisions by near-zero magnitudes
const Epsilon = 1e-10

// Float32To64 widens src into dst, reallocating dst only when it is too short
func Float32To64(dst []float64, src []float32) []float64 {
	if cap(dst) < len(src) {
		dst = make([]float64, len(src))
	}
	dst = dst[:len(src)]
	for i, v := range src {
		dst[i] = float64(v)
	}
	return dst
}

// PeakAbs returns the largest absolute sample value. finite is false when
// any sample is NaN or infinite; the returned peak is then meaningless.
func PeakAbs(x []float64) (peak float64, finite bool) {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak, true
}

// NormalizePeak scales x in place so its largest absolute value becomes 1
func NormalizePeak(x []float64, peak float64) {
	if len(x) == 0 {
		return
	}
	floats.Scale(1.0/math.Max(peak, Epsilon), x)
}

// Clamp limits v to [lo, hi]. NaN clamps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

// Finite reports whether v is neither NaN nor infinite
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// PositiveFinite reports whether v is a finite value above zero
func PositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// AmplitudeToDB converts a linear amplitude to dBFS with a -120 dB floor
func AmplitudeToDB(amplitude float64) float64 {
	if amplitude <= 1e-6 {
		return -120.0
	}
	return 20 * math.Log10(amplitude)
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Sqrt(floats.Dot(data, data) / float64(len(data)))
}
