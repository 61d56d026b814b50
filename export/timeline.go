package export

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/chords"
	"github.com/RyanBlaney/sonido-chords/logging"
)

const (
	// DefaultBPM is the tempo written into exported files
	DefaultBPM = 120.0

	ticksPerQuarter = 960
	middleC         = 60
	velocity        = 90
)

// ChordEvent is one committed chord held over a span of the session
type ChordEvent struct {
	Label   string            `json:"label"`
	Root    chroma.PitchClass `json:"root"`
	Quality string            `json:"quality"`
	Start   time.Duration     `json:"start"`
	End     time.Duration     `json:"end"`
}

// Timeline records committed chord changes from a result stream. Results
// that are not committed end the current chord.
type Timeline struct {
	events   []ChordEvent
	open     *ChordEvent
	origin   time.Time
	started  bool
	lastSeen time.Duration
	step     time.Duration
}

// NewTimeline creates an empty timeline
func NewTimeline() *Timeline {
	return &Timeline{}
}

// Observe folds one result into the timeline. Results must arrive in
// capture order.
func (t *Timeline) Observe(r chords.Result) {
	if !t.started {
		t.origin = r.Captured
		t.started = true
	}
	at := r.Captured.Sub(t.origin)
	if at > t.lastSeen {
		t.step = at - t.lastSeen
	}
	t.lastSeen = at

	if !r.Committed() || r.Root == "" {
		t.close(at)
		return
	}

	if t.open != nil && t.open.Label == r.Label {
		return
	}
	t.close(at)

	root, err := chroma.ParsePitchClass(r.Root)
	if err != nil {
		return
	}
	t.open = &ChordEvent{
		Label:   r.Label,
		Root:    root,
		Quality: r.Quality,
		Start:   at,
	}
}

func (t *Timeline) close(at time.Duration) {
	if t.open == nil {
		return
	}
	t.open.End = at
	t.events = append(t.events, *t.open)
	t.open = nil
}

// Events returns the recorded chords, including one still sounding
func (t *Timeline) Events() []ChordEvent {
	out := make([]ChordEvent, len(t.events), len(t.events)+1)
	copy(out, t.events)
	if t.open != nil {
		ev := *t.open
		ev.End = t.lastSeen + t.step
		if ev.End <= ev.Start {
			ev.End = ev.Start + time.Second
		}
		out = append(out, ev)
	}
	return out
}

// Voicing returns the MIDI keys of a chord built upward from root in
// the fourth octave
func Voicing(root chroma.PitchClass, quality string) ([]uint8, error) {
	q, ok := tonal.LookupQuality(quality)
	if !ok {
		return nil, fmt.Errorf("unknown chord quality %q", quality)
	}
	if !root.Valid() {
		return nil, fmt.Errorf("invalid root %v", root)
	}

	keys := make([]uint8, len(q.Intervals))
	for i, interval := range q.Intervals {
		keys[i] = uint8(middleC + int(root) + interval)
	}
	return keys, nil
}

func ticks(d time.Duration, bpm float64) uint32 {
	return uint32(math.Round(d.Seconds() * bpm / 60 * ticksPerQuarter))
}

// SMF renders the timeline as a single-track Standard MIDI File. Each
// chord start also carries a marker with its label.
func (t *Timeline) SMF(bpm float64) (*smf.SMF, error) {
	if bpm <= 0 {
		bpm = DefaultBPM
	}

	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName("sonido-chords"))
	track.Add(0, smf.MetaTempo(bpm))

	var cursor uint32
	for _, ev := range t.Events() {
		keys, err := Voicing(ev.Root, ev.Quality)
		if err != nil {
			return nil, err
		}

		start := max(ticks(ev.Start, bpm), cursor)
		end := max(ticks(ev.End, bpm), start+1)

		track.Add(start-cursor, smf.MetaMarker(ev.Label))
		for _, k := range keys {
			track.Add(0, midi.NoteOn(0, k, velocity))
		}
		for i, k := range keys {
			delta := uint32(0)
			if i == 0 {
				delta = end - start
			}
			track.Add(delta, midi.NoteOff(0, k))
		}
		cursor = end
	}
	track.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)
	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}
	return s, nil
}

// WriteMIDI writes the timeline as a Standard MIDI File to w
func (t *Timeline) WriteMIDI(w io.Writer, bpm float64) error {
	s, err := t.SMF(bpm)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write MIDI: %w", err)
	}
	return nil
}

// WriteFile writes the timeline to a .mid file
func (t *Timeline) WriteFile(path string, bpm float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := t.WriteMIDI(f, bpm); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	logging.WithFields(logging.Fields{
		"component": "midi_export",
	}).Info("Wrote chord timeline", logging.Fields{
		"path":   path,
		"chords": len(t.Events()),
	})
	return nil
}
