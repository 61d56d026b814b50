package chroma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePitchClass(t *testing.T) {
	cases := map[string]PitchClass{
		"C":   C,
		"c#":  CSharp,
		"Db":  CSharp,
		"Bb4": ASharp,
		"A4":  A,
		"B":   B,
		" G ": G,
	}
	for in, want := range cases {
		got, err := ParsePitchClass(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "H", "X#", "42"} {
		_, err := ParsePitchClass(bad)
		assert.Error(t, err, bad)
	}
}

func TestIntervalAndTranspose(t *testing.T) {
	assert.Equal(t, 4, E.Interval(C))
	assert.Equal(t, 8, C.Interval(E))
	assert.Equal(t, 0, G.Interval(G))
	assert.Equal(t, D, B.Transpose(3))
	assert.Equal(t, A, C.Transpose(-3))
}

func TestSortChromatic(t *testing.T) {
	in := []PitchClass{G, C, E, C, PitchClass(14), G}
	assert.Equal(t, []PitchClass{C, E, G}, SortChromatic(in))
	assert.Equal(t, []string{"C", "E", "G"}, Names(SortChromatic(in)))
	assert.Equal(t, "PitchClass(14)", PitchClass(14).String())
}
