package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeF32LE(samples ...float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}

func TestReadSamplesChunks(t *testing.T) {
	data := encodeF32LE(0.1, -0.2, 0.3, -0.4, 0.5)
	data = append(data, 0x01, 0x02) // truncated trailing sample

	var chunks [][]float32
	total, err := readSamples(bytes.NewReader(data), 2, func(s []float32) error {
		chunks = append(chunks, append([]float32(nil), s...))
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Equal(t, [][]float32{{0.1, -0.2}, {0.3, -0.4}, {0.5}}, chunks)
}

func TestReadSamplesStopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	total, err := readSamples(bytes.NewReader(encodeF32LE(1, 2, 3, 4)), 1, func([]float32) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, int64(1), total)
}

func TestReadSamplesEmpty(t *testing.T) {
	total, err := readSamples(bytes.NewReader(nil), 16, func([]float32) error {
		t.Fatal("callback must not run for empty input")
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestParseFFprobeOutput(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		want    *AudioMetadata
		wantErr bool
		noAudio bool
	}{
		{
			name: "stereo mp3",
			json: `{"streams":[{"codec_type":"audio","codec_name":"mp3","sample_rate":"48000","channels":2,"duration":"12.5","bit_rate":"192000","codec_long_name":"MP3"}]}`,
			want: &AudioMetadata{SampleRate: 48000, Channels: 2, Codec: "mp3", Duration: 12.5, Bitrate: 192000, Format: "MP3"},
		},
		{
			name: "missing numbers fall back",
			json: `{"streams":[{"codec_type":"audio","codec_name":"pcm_s16le","channels":1}]}`,
			want: &AudioMetadata{SampleRate: 44100, Channels: 1, Codec: "pcm_s16le"},
		},
		{name: "no streams", json: `{"streams":[]}`, wantErr: true, noAudio: true},
		{name: "video stream", json: `{"streams":[{"codec_type":"video","channels":1}]}`, wantErr: true, noAudio: true},
		{name: "bad channels", json: `{"streams":[{"codec_type":"audio","channels":0}]}`, wantErr: true},
		{name: "malformed", json: `{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFFprobeOutput([]byte(tt.json))
			if tt.wantErr {
				assert.Error(t, err)
				if tt.noAudio {
					assert.ErrorIs(t, err, ErrNoAudioStream)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildFFmpegArgs(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.TargetSampleRate = 22050
	args := NewDecoder(cfg).buildFFmpegArgs("song.flac")

	assert.Contains(t, args, "f32le")
	assert.Equal(t, "pipe:1", args[len(args)-1])
	assert.Subset(t, args, []string{"-i", "song.flac", "-ac", "1", "-ar", "22050"})
	assert.NotContains(t, args, "-t")
}

// fakeFFprobe writes a shell script that prints output and exits
func fakeFFprobe(t *testing.T, output string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "ffprobe")
	script := "#!/bin/sh\nprintf '%s' '" + output + "'\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestProbe(t *testing.T) {
	t.Run("audio file", func(t *testing.T) {
		cfg := DefaultDecoderConfig()
		cfg.FFprobePath = fakeFFprobe(t, `{"streams":[{"codec_type":"audio","codec_name":"flac","sample_rate":"96000","channels":2,"duration":"3.0"}]}`)

		meta, err := NewDecoder(cfg).Probe(context.Background(), "song.flac")
		require.NoError(t, err)
		assert.Equal(t, "flac", meta.Codec)
		assert.Equal(t, 96000, meta.SampleRate)
		assert.Equal(t, 2, meta.Channels)
		assert.Equal(t, 3.0, meta.Duration)
	})

	t.Run("no audio stream", func(t *testing.T) {
		cfg := DefaultDecoderConfig()
		cfg.FFprobePath = fakeFFprobe(t, `{"streams":[]}`)

		_, err := NewDecoder(cfg).Probe(context.Background(), "video.mp4")
		assert.ErrorIs(t, err, ErrNoAudioStream)
	})

	t.Run("missing binary", func(t *testing.T) {
		cfg := DefaultDecoderConfig()
		cfg.FFprobePath = filepath.Join(t.TempDir(), "does-not-exist")

		_, err := NewDecoder(cfg).Probe(context.Background(), "song.flac")
		assert.Error(t, err)
	})
}
