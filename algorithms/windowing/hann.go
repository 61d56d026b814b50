package windowing

import (
	"fmt"
	"math"
	"sync"
)

// Hann represents a Hann (raised cosine) window
type Hann struct {
	size         int
	symmetric    bool
	coefficients []float64
}

// NewHann creates a new Hann window
func NewHann(size int, symmetric bool) *Hann {
	h := &Hann{
		size:      size,
		symmetric: symmetric,
	}
	h.generate()
	return h
}

var hannCache sync.Map // int -> *Hann

// HannFor returns a shared symmetric Hann window of the given size.
// Coefficients are generated once per size and never mutated afterwards.
func HannFor(size int) *Hann {
	if w, ok := hannCache.Load(size); ok {
		return w.(*Hann)
	}
	w, _ := hannCache.LoadOrStore(size, NewHann(size, true))
	return w.(*Hann)
}

func (h *Hann) generate() {
	if h.size <= 0 {
		h.coefficients = nil
		return
	}
	h.coefficients = make([]float64, h.size)
	if h.size == 1 {
		h.coefficients[0] = 1.0
		return
	}

	denominator := float64(h.size)
	if h.symmetric {
		denominator = float64(h.size - 1)
	}

	for i := 0; i < h.size; i++ {
		h.coefficients[i] = 0.5 * (1.0 - math.Cos(2*math.Pi*float64(i)/denominator))
	}
}

// ApplyInPlace applies the window to a signal in-place
func (h *Hann) ApplyInPlace(signal []float64) error {
	if len(signal) != h.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(signal), h.size)
	}

	for i := 0; i < h.size; i++ {
		signal[i] *= h.coefficients[i]
	}

	return nil
}
