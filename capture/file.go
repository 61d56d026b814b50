package capture

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/RyanBlaney/sonido-chords/algorithms/common"
	"github.com/RyanBlaney/sonido-chords/chords"
	"github.com/RyanBlaney/sonido-chords/logging"
	"github.com/RyanBlaney/sonido-chords/transcode"
)

// SampleStreamer inspects and decodes an audio file into mono samples
type SampleStreamer interface {
	Probe(ctx context.Context, path string) (*transcode.AudioMetadata, error)
	Stream(ctx context.Context, path string, fn func(samples []float32) error) (int64, error)
	SampleRate() int
}

// FileSource decodes an audio file and cuts it into blocks. Captured
// times are file positions offset from the moment streaming started.
type FileSource struct {
	Path      string
	BlockSize int
	HopSize   int  // <= 0 for back-to-back blocks
	Realtime  bool // Pace blocks at their audio duration

	decoder SampleStreamer
	started atomic.Bool
	logger  logging.Logger
}

// NewFileSource creates a file source decoding through ffmpeg at sampleRate
func NewFileSource(path string, sampleRate, blockSize int) *FileSource {
	cfg := transcode.DefaultDecoderConfig()
	cfg.TargetSampleRate = sampleRate
	cfg.ChunkSamples = blockSize
	return NewFileSourceWithDecoder(path, blockSize, transcode.NewDecoder(cfg))
}

// NewFileSourceWithDecoder creates a file source over any sample streamer
func NewFileSourceWithDecoder(path string, blockSize int, decoder SampleStreamer) *FileSource {
	return &FileSource{
		Path:      path,
		BlockSize: blockSize,
		decoder:   decoder,
		logger: logging.WithFields(logging.Fields{
			"component": "file_source",
			"path":      path,
		}),
	}
}

// Stream probes the file, then decodes it and sends each block, blocking
// on a full queue. A file without an audio stream fails before decoding.
// The trailing partial block is zero-padded.
func (fs *FileSource) Stream(ctx context.Context, out chan<- chords.Block) error {
	if !fs.started.CompareAndSwap(false, true) {
		return ErrSourceClosed
	}

	assembler, err := common.NewBlockAssembler(fs.BlockSize, fs.HopSize)
	if err != nil {
		return err
	}

	sampleRate := fs.decoder.SampleRate()
	if sampleRate <= 0 {
		return fmt.Errorf("decoder sample rate must be positive: %d", sampleRate)
	}
	hop := fs.HopSize
	if hop <= 0 || hop > fs.BlockSize {
		hop = fs.BlockSize
	}
	hopDuration := time.Duration(hop) * time.Second / time.Duration(sampleRate)

	meta, err := fs.decoder.Probe(ctx, fs.Path)
	if err != nil {
		return finish(fmt.Errorf("failed to probe %s: %w", fs.Path, err))
	}
	fs.logger.Info("Decoding file", logging.Fields{
		"codec":       meta.Codec,
		"format":      meta.Format,
		"input_rate":  meta.SampleRate,
		"channels":    meta.Channels,
		"duration":    meta.Duration,
		"target_rate": sampleRate,
	})

	p := newPacer(hopDuration)
	start := time.Now()
	var seq uint64

	emit := func(samples []float32) error {
		if fs.Realtime {
			if err := p.wait(ctx); err != nil {
				return err
			}
		}
		block := chords.Block{
			Samples:    samples,
			SampleRate: sampleRate,
			Sequence:   seq,
			Captured:   start.Add(time.Duration(seq) * hopDuration),
		}
		seq++
		return send(ctx, out, block)
	}

	decoded, err := fs.decoder.Stream(ctx, fs.Path, func(samples []float32) error {
		return assembler.Write(samples, emit)
	})
	if err != nil {
		return finish(fmt.Errorf("failed to decode %s: %w", fs.Path, err))
	}
	tail := assembler.Buffered()
	if err := assembler.Flush(emit); err != nil {
		return finish(err)
	}

	fs.logger.Info("File decoded", logging.Fields{
		"samples": decoded,
		"blocks":  seq,
		"tail":    tail,
		"seconds": float64(decoded) / float64(sampleRate),
	})
	return nil
}
