package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-chords/logging"
)

// ErrNoAudioStream is returned by Probe when the input has no audio
var ErrNoAudioStream = errors.New("no audio stream")

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	TargetSampleRate int           `json:"target_sample_rate"`
	ChunkSamples     int           `json:"chunk_samples"` // Samples handed to the callback per read
	MaxDuration      time.Duration `json:"max_duration"`  // 0 decodes the whole input
	ResampleQuality  string        `json:"resample_quality"` // "fast", "medium", "high"
	FFmpegPath       string        `json:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path"`
	ProbeTimeout     time.Duration `json:"probe_timeout"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 44100,
		ChunkSamples:     4096,
		MaxDuration:      0,
		ResampleQuality:  "medium",
		FFmpegPath:       "ffmpeg",  // Assume in PATH
		FFprobePath:      "ffprobe", // Assume in PATH
		ProbeTimeout:     15 * time.Second,
	}
}

// AudioMetadata holds detected audio properties from FFprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// Decoder turns any ffmpeg-readable input into mono float32 PCM
type Decoder struct {
	config *DecoderConfig
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	if config.ChunkSamples <= 0 {
		config.ChunkSamples = DefaultDecoderConfig().ChunkSamples
	}
	return &Decoder{config: config}
}

// SampleRate returns the rate the decoder resamples to
func (d *Decoder) SampleRate() int {
	return d.config.TargetSampleRate
}

// Probe uses ffprobe to read the first audio stream's properties
func (d *Decoder) Probe(ctx context.Context, path string) (*AudioMetadata, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "Probe",
		"path":      path,
	})

	if d.config.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.ProbeTimeout)
		defer cancel()
	}

	args := []string{
		"-v", "quiet", // Suppress verbose output
		"-print_format", "json", // JSON output
		"-show_streams",          // Show stream info
		"-select_streams", "a:0", // First audio stream only
		path,
	}

	output, err := exec.CommandContext(ctx, d.config.FFprobePath, args...).Output()
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	metadata, err := parseFFprobeOutput(output)
	if err != nil {
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
	})

	return metadata, nil
}

// Stream decodes path with ffmpeg and hands samples to fn in chunks of
// ChunkSamples as they arrive. The slice passed to fn is reused between
// calls. Stream stops at the end of input, when ctx is done or when fn
// returns an error, and reports the number of samples delivered.
func (d *Decoder) Stream(ctx context.Context, path string, fn func(samples []float32) error) (int64, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "Stream",
		"path":      path,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	args := d.buildFFmpegArgs(path)
	cmd := exec.CommandContext(ctx, d.config.FFmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("failed to open ffmpeg output: %w", err)
	}

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	startTime := time.Now()
	total, readErr := readSamples(stdout, d.config.ChunkSamples, fn)
	if readErr != nil {
		// Stop ffmpeg before waiting so a blocked writer cannot hang Wait
		cancel()
	}
	waitErr := cmd.Wait()

	switch {
	case readErr != nil:
		return total, readErr
	case ctx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled):
		return total, ctx.Err()
	case waitErr != nil:
		logger.Error(waitErr, "Ffmpeg decode failed", logging.Fields{
			"stderr": stderr.String(),
		})
		return total, fmt.Errorf("ffmpeg decode failed: %w, stderr: %s", waitErr, stderr.String())
	}

	logger.Debug("Decode completed", logging.Fields{
		"samples":     total,
		"decode_time": time.Since(startTime).Seconds(),
	})

	return total, nil
}

// buildFFmpegArgs builds the ffmpeg arguments for mono f32le output on stdout
func (d *Decoder) buildFFmpegArgs(path string) []string {
	args := []string{
		"-v", "error",
		"-i", path,
		"-vn",
		"-map", "0:a:0?",
	}

	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.3f", d.config.MaxDuration.Seconds()))
	}

	args = append(args,
		"-f", "f32le", // Raw float32 little-endian
		"-ac", "1",
		"-ar", strconv.Itoa(d.config.TargetSampleRate),
	)

	switch d.config.ResampleQuality {
	case "fast":
		args = append(args, "-af", "aresample=resampler=soxr:precision=16")
	case "medium":
		args = append(args, "-af", "aresample=resampler=soxr:precision=20")
	case "high":
		args = append(args, "-af", "aresample=resampler=soxr:precision=28")
	}

	return append(args, "pipe:1")
}

// readSamples reads little-endian float32 samples from r in chunks. A
// trailing partial sample is discarded.
func readSamples(r io.Reader, chunkSamples int, fn func([]float32) error) (int64, error) {
	raw := make([]byte, chunkSamples*4)
	samples := make([]float32, chunkSamples)
	var total int64

	for {
		n, err := io.ReadFull(r, raw)
		count := n / 4
		if count > 0 {
			out := decodeF32LE(samples[:count], raw[:count*4])
			if cbErr := fn(out); cbErr != nil {
				return total, cbErr
			}
			total += int64(count)
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return total, nil
		default:
			return total, fmt.Errorf("failed to read decoded audio: %w", err)
		}
	}
}

func decodeF32LE(dst []float32, raw []byte) []float32 {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return dst
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, ErrNoAudioStream
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("%w: first stream is %s", ErrNoAudioStream, stream.CodecType)
	}

	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil {
		sampleRate = 44100 // Fallback to common sample rate
	}

	duration, err := strconv.ParseFloat(stream.Duration, 64)
	if err != nil {
		duration = 0
	}

	bitrate, err := strconv.Atoi(stream.BitRate)
	if err != nil {
		bitrate = 0
	}

	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}
