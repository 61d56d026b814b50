package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-chords/chords"
	"github.com/RyanBlaney/sonido-chords/config"
	"github.com/RyanBlaney/sonido-chords/logging"
	"github.com/RyanBlaney/sonido-chords/transcode"
)

func init() {
	logging.SetGlobalLogger(&logging.NoOpLogger{})
}

func TestParseTone(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: "440", want: 440},
		{in: "A", want: 440},
		{in: "A4", want: 440},
		{in: "C3", want: 261.63 / 2},
		{in: "Eb5", want: 311.13 * 2},
		{in: " g ", want: 392},
		{in: "H2", wantErr: true},
		{in: "C9", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "inf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTone(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func collect(t *testing.T, src Source, buffer int) []chords.Block {
	t.Helper()
	out := make(chan chords.Block, buffer)
	require.NoError(t, src.Stream(context.Background(), out))
	close(out)

	var blocks []chords.Block
	for b := range out {
		blocks = append(blocks, b)
	}
	return blocks
}

func TestToneSourceStream(t *testing.T) {
	ts, err := NewToneSource([]string{"A4"}, 8000, 100)
	require.NoError(t, err)
	ts.Blocks = 3

	blocks := collect(t, ts, 3)
	require.Len(t, blocks, 3)
	for i, b := range blocks {
		assert.Equal(t, uint64(i), b.Sequence)
		assert.Len(t, b.Samples, 100)
		assert.Equal(t, 8000, b.SampleRate)
	}

	// Phase continues across block boundaries
	whole := ts.Synthesize(0)
	next := ts.Synthesize(100)
	assert.Equal(t, next, blocks[1].Samples)
	assert.Equal(t, whole, blocks[0].Samples)

	assert.ErrorIs(t, ts.Stream(context.Background(), make(chan chords.Block, 1)), ErrSourceClosed)
}

func TestToneSourceStopsOnCancel(t *testing.T) {
	ts, err := NewToneSource([]string{"440"}, 8000, 64)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan chords.Block)
	done := make(chan error, 1)
	go func() { done <- ts.Stream(ctx, out) }()

	<-out
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("tone source did not stop")
	}
}

func TestToneSourceDrivesEngine(t *testing.T) {
	ts, err := NewToneSource([]string{"C3", "E4", "G5"}, 44100, 4096)
	require.NoError(t, err)
	ts.Blocks = 2

	engine, err := chords.NewEngine(config.DefaultConfig())
	require.NoError(t, err)

	for _, b := range collect(t, ts, 2) {
		assert.Equal(t, "C major", engine.Process(b).Label)
	}
}

type fakeDecoder struct {
	chunks   [][]float32
	rate     int
	err      error
	probeErr error
	streamed bool
}

func (f *fakeDecoder) SampleRate() int { return f.rate }

func (f *fakeDecoder) Probe(ctx context.Context, path string) (*transcode.AudioMetadata, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return &transcode.AudioMetadata{SampleRate: 48000, Channels: 2, Codec: "pcm_s16le"}, nil
}

func (f *fakeDecoder) Stream(ctx context.Context, path string, fn func([]float32) error) (int64, error) {
	f.streamed = true
	var total int64
	for _, c := range f.chunks {
		if err := fn(c); err != nil {
			return total, err
		}
		total += int64(len(c))
	}
	return total, f.err
}

func TestFileSourceBlocks(t *testing.T) {
	dec := &fakeDecoder{
		rate:   1000,
		chunks: [][]float32{{1, 2, 3}, {4, 5}, {6, 7, 8, 9}},
	}
	fs := NewFileSourceWithDecoder("song.wav", 4, dec)

	blocks := collect(t, fs, 8)
	require.Len(t, blocks, 3)
	assert.Equal(t, []float32{1, 2, 3, 4}, blocks[0].Samples)
	assert.Equal(t, []float32{5, 6, 7, 8}, blocks[1].Samples)
	assert.Equal(t, []float32{9, 0, 0, 0}, blocks[2].Samples)
	assert.Equal(t, 4*time.Millisecond, blocks[1].Captured.Sub(blocks[0].Captured))
	assert.Equal(t, uint64(2), blocks[2].Sequence)
}

func TestFileSourceOverlap(t *testing.T) {
	dec := &fakeDecoder{rate: 1000, chunks: [][]float32{{1, 2, 3, 4, 5, 6}}}
	fs := NewFileSourceWithDecoder("song.wav", 4, dec)
	fs.HopSize = 2

	blocks := collect(t, fs, 8)
	require.Len(t, blocks, 2)
	assert.Equal(t, []float32{1, 2, 3, 4}, blocks[0].Samples)
	assert.Equal(t, []float32{3, 4, 5, 6}, blocks[1].Samples)
}

func TestFileSourceDecodeError(t *testing.T) {
	boom := errors.New("boom")
	fs := NewFileSourceWithDecoder("song.wav", 4, &fakeDecoder{rate: 1000, err: boom})

	err := fs.Stream(context.Background(), make(chan chords.Block, 1))
	assert.ErrorIs(t, err, boom)
}

func TestFileSourceWithoutAudioStream(t *testing.T) {
	noAudio := errors.New("no audio stream found")
	dec := &fakeDecoder{rate: 1000, chunks: [][]float32{{1, 2, 3, 4}}, probeErr: noAudio}
	fs := NewFileSourceWithDecoder("video.mp4", 4, dec)

	out := make(chan chords.Block, 4)
	err := fs.Stream(context.Background(), out)

	assert.ErrorIs(t, err, noAudio)
	assert.False(t, dec.streamed)
	assert.Empty(t, out)
}

func TestFileSourceCancelIsClean(t *testing.T) {
	dec := &fakeDecoder{rate: 1000, chunks: [][]float32{{1, 2, 3, 4, 5, 6, 7, 8}}}
	fs := NewFileSourceWithDecoder("song.wav", 4, dec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, fs.Stream(ctx, make(chan chords.Block)))
}
