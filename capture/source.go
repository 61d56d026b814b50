package capture

import (
	"context"
	"errors"
	"time"

	"github.com/RyanBlaney/sonido-chords/chords"
)

var (
	// ErrSourceClosed is returned when a single-use source is streamed twice
	ErrSourceClosed = errors.New("audio source already closed")

	// ErrNoInputDevice is returned when no capture device is available
	ErrNoInputDevice = errors.New("no audio input device")
)

// Source produces audio blocks until it is exhausted or ctx is done.
// Stream returns nil on exhaustion and on cancellation; it never closes out.
type Source interface {
	Stream(ctx context.Context, out chan<- chords.Block) error
}

// send delivers a block, blocking until the consumer is ready or ctx is done
func send(ctx context.Context, out chan<- chords.Block, b chords.Block) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- b:
		return nil
	}
}

// pacer spaces emitted blocks at real-time intervals
type pacer struct {
	start    time.Time
	interval time.Duration
	count    int64
}

func newPacer(interval time.Duration) *pacer {
	return &pacer{start: time.Now(), interval: interval}
}

// wait blocks until the next block is due
func (p *pacer) wait(ctx context.Context) error {
	due := p.start.Add(time.Duration(p.count) * p.interval)
	p.count++

	delay := time.Until(due)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// finish maps cancellation to a clean stop
func finish(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
