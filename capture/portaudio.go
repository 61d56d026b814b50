package capture

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/RyanBlaney/sonido-chords/chords"
	"github.com/RyanBlaney/sonido-chords/logging"
)

// InputDevice describes a capture-capable audio device
type InputDevice struct {
	Index             int     `json:"index"`
	Name              string  `json:"name"`
	HostAPI           string  `json:"host_api"`
	Channels          int     `json:"channels"`
	DefaultSampleRate float64 `json:"default_sample_rate"`
	Default           bool    `json:"default"`
}

// ListInputDevices returns every device with at least one input channel
func ListInputDevices() ([]InputDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}

	var inputs []InputDevice
	for _, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		dev := InputDevice{
			Index:             d.Index,
			Name:              d.Name,
			Channels:          d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           d.Name == defaultName,
		}
		if d.HostApi != nil {
			dev.HostAPI = d.HostApi.Name
		}
		inputs = append(inputs, dev)
	}
	return inputs, nil
}

// PortAudioSource captures mono float32 blocks from an input device. The
// audio callback never blocks: when the queue is full the block is dropped
// and counted.
type PortAudioSource struct {
	SampleRate int
	BlockSize  int
	Device     string       // Case-insensitive substring of the device name; empty selects the default
	OnDrop     func(uint64) // Called from the audio thread with the number of blocks just dropped

	dropped atomic.Uint64
	started atomic.Bool
	logger  logging.Logger
}

// NewPortAudioSource creates a live capture source
func NewPortAudioSource(sampleRate, blockSize int, device string) *PortAudioSource {
	return &PortAudioSource{
		SampleRate: sampleRate,
		BlockSize:  blockSize,
		Device:     device,
		logger: logging.WithFields(logging.Fields{
			"component": "portaudio_source",
		}),
	}
}

// Dropped returns the number of blocks discarded because the queue was full
func (ps *PortAudioSource) Dropped() uint64 {
	return ps.dropped.Load()
}

// Stream captures until ctx is done
func (ps *PortAudioSource) Stream(ctx context.Context, out chan<- chords.Block) error {
	if !ps.started.CompareAndSwap(false, true) {
		return ErrSourceClosed
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	defer portaudio.Terminate()

	device, err := ps.selectDevice()
	if err != nil {
		return err
	}

	params := portaudio.LowLatencyParameters(device, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(ps.SampleRate)
	params.FramesPerBuffer = ps.BlockSize

	var seq uint64
	callback := func(in []float32) {
		block := chords.Block{
			Samples:    slices.Clone(in),
			SampleRate: ps.SampleRate,
			Sequence:   seq,
			Captured:   time.Now(),
		}
		seq++

		select {
		case out <- block:
		default:
			ps.dropped.Add(1)
			if ps.OnDrop != nil {
				ps.OnDrop(1)
			}
		}
	}

	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return fmt.Errorf("failed to open input stream on %s: %w", device.Name, err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("failed to start input stream: %w", err)
	}

	ps.logger.Info("Listening", logging.Fields{
		"device":      device.Name,
		"sample_rate": ps.SampleRate,
		"block_size":  ps.BlockSize,
	})

	<-ctx.Done()

	if err := stream.Stop(); err != nil {
		ps.logger.Warn("Failed to stop input stream", logging.Fields{"error": err.Error()})
	}
	ps.logger.Info("Stopped listening", logging.Fields{"dropped": ps.Dropped()})
	return nil
}

func (ps *PortAudioSource) selectDevice() (*portaudio.DeviceInfo, error) {
	if ps.Device == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil || device == nil {
			return nil, fmt.Errorf("%w: %v", ErrNoInputDevice, err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	// A bare number selects by index, as printed by the devices command
	if idx, err := strconv.Atoi(ps.Device); err == nil {
		for _, d := range devices {
			if d.Index == idx && d.MaxInputChannels > 0 {
				return d, nil
			}
		}
		return nil, fmt.Errorf("%w: no input device at index %d", ErrNoInputDevice, idx)
	}

	want := strings.ToLower(ps.Device)
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), want) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: nothing matches %q", ErrNoInputDevice, ps.Device)
}
