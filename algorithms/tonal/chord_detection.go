package tonal

import (
	"fmt"
	"math"
	"slices"

	"github.com/RyanBlaney/sonido-chords/algorithms/chroma"
	"github.com/RyanBlaney/sonido-chords/algorithms/common"
)

// ChordQuality is a named interval pattern relative to a root
type ChordQuality struct {
	Name      string `json:"name"`
	Intervals []int  `json:"intervals"` // Sorted semitone offsets from the root, 0-14
}

// Iteration order matters: ties keep the first quality encountered.
var chordQualities = []ChordQuality{
	{Name: "major", Intervals: []int{0, 4, 7}},
	{Name: "minor", Intervals: []int{0, 3, 7}},
	{Name: "diminished", Intervals: []int{0, 3, 6}},
	{Name: "augmented", Intervals: []int{0, 4, 8}},
	{Name: "sus2", Intervals: []int{0, 2, 7}},
	{Name: "sus4", Intervals: []int{0, 5, 7}},
	{Name: "major7", Intervals: []int{0, 4, 7, 11}},
	{Name: "minor7", Intervals: []int{0, 3, 7, 10}},
	{Name: "dominant7", Intervals: []int{0, 4, 7, 10}},
	{Name: "7sus4", Intervals: []int{0, 5, 7, 10}},
	{Name: "minor6", Intervals: []int{0, 3, 7, 9}},
	{Name: "major6", Intervals: []int{0, 4, 7, 9}},
	{Name: "add9", Intervals: []int{0, 4, 7, 14}},
}

var intervalWeights = map[int]float64{
	0:  1.0,
	3:  0.8,
	4:  0.8,
	7:  0.7,
	10: 0.6,
	11: 0.6,
}

const (
	defaultIntervalWeight = 0.5
	extensionPenalty      = 0.1
	foreignPenalty        = 0.2
	essentialBonus        = 0.2
)

// Extra tones that read as extensions cost less than other foreign tones
var extensionIntervals = map[int]bool{2: true, 9: true, 13: true, 14: true}

var essentialIntervals = map[int]bool{0: true, 3: true, 4: true, 7: true}

// Result labels that are not chord names
const (
	LabelInsufficientData = "Insufficient data"
	LabelNoChord          = "No chord recognized"
	lowConfidenceSuffix   = " (low confidence)"
)

// ChordQualities returns a copy of the quality table in scoring order
func ChordQualities() []ChordQuality {
	out := make([]ChordQuality, len(chordQualities))
	for i, q := range chordQualities {
		out[i] = ChordQuality{Name: q.Name, Intervals: slices.Clone(q.Intervals)}
	}
	return out
}

// LookupQuality finds a quality by name
func LookupQuality(name string) (ChordQuality, bool) {
	for _, q := range chordQualities {
		if q.Name == name {
			return ChordQuality{Name: q.Name, Intervals: slices.Clone(q.Intervals)}, true
		}
	}
	return ChordQuality{}, false
}

// IntervalWeight returns the scoring weight of a pattern interval
func IntervalWeight(interval int) float64 {
	if w, ok := intervalWeights[interval]; ok {
		return w
	}
	return defaultIntervalWeight
}

// ChordCandidate is a scored (root, quality) hypothesis
type ChordCandidate struct {
	Root    chroma.PitchClass `json:"root"`
	Quality string            `json:"quality"`
	Score   float64           `json:"score"` // Normalized score including penalties and bonus
}

// Label returns "<root> <quality>", e.g. "C# minor7"
func (c ChordCandidate) Label() string {
	return fmt.Sprintf("%s %s", c.Root, c.Quality)
}

// offsetSet holds semitone offsets from a root, always within 0-11
type offsetSet [chroma.NumPitchClasses]bool

func (o *offsetSet) has(interval int) bool {
	return interval >= 0 && interval < len(o) && o[interval]
}

func offsetsFrom(root chroma.PitchClass, notes []chroma.PitchClass) offsetSet {
	var o offsetSet
	for _, pc := range notes {
		o[pc.Interval(root)] = true
	}
	return o
}

// MatchScore scores detected offsets against a quality's intervals.
// Offsets are mod 12, so pattern intervals 13 and 14 never match directly;
// they only influence the extension penalty.
func MatchScore(offsets []int, quality ChordQuality) float64 {
	var o offsetSet
	for _, off := range offsets {
		o[((off%12)+12)%12] = true
	}
	return matchScore(&o, quality)
}

func matchScore(o *offsetSet, quality ChordQuality) float64 {
	if len(quality.Intervals) == 0 {
		return math.Inf(-1)
	}

	score := 0.0
	essentialsPresent := true
	for _, interval := range quality.Intervals {
		present := o.has(interval)
		if present {
			score += IntervalWeight(interval)
		}
		if essentialIntervals[interval] && !present {
			essentialsPresent = false
		}
	}

	for off, present := range o {
		if !present || slices.Contains(quality.Intervals, off) {
			continue
		}
		if extensionIntervals[off] {
			score -= extensionPenalty
		} else {
			score -= foreignPenalty
		}
	}

	normalized := score / float64(len(quality.Intervals))
	if essentialsPresent {
		normalized += essentialBonus
	}
	return normalized
}

// BestCandidate scores every (root, quality) pair, trying each note as the
// root in chromatic order. ok is false for fewer than two distinct notes.
func BestCandidate(notes []chroma.PitchClass) (best ChordCandidate, ok bool) {
	distinct := chroma.SortChromatic(notes)
	if len(distinct) < 2 {
		return ChordCandidate{}, false
	}

	bestScore := math.Inf(-1)
	for _, root := range distinct {
		offsets := offsetsFrom(root, distinct)
		for _, quality := range chordQualities {
			if score := matchScore(&offsets, quality); score > bestScore {
				bestScore = score
				best = ChordCandidate{Root: root, Quality: quality.Name, Score: score}
				ok = true
			}
		}
	}
	return best, ok
}

// ChordStatus describes how a result label was reached
type ChordStatus int

const (
	StatusInsufficient  ChordStatus = iota // Fewer than two notes and nothing held
	StatusConfirmed                        // Best candidate met the confidence threshold
	StatusHeld                             // Previous confirmed chord repeated
	StatusLowConfidence                    // Best candidate reported below threshold
	StatusUnrecognized                     // No candidate at all
)

func (s ChordStatus) String() string {
	switch s {
	case StatusInsufficient:
		return "insufficient"
	case StatusConfirmed:
		return "confirmed"
	case StatusHeld:
		return "held"
	case StatusLowConfidence:
		return "low_confidence"
	case StatusUnrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in JSON
func (s ChordStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ChordResult is the outcome of classifying one block's notes
type ChordResult struct {
	Label       string              `json:"label"`
	Status      ChordStatus         `json:"status"`
	Chord       *ChordCandidate     `json:"chord,omitempty"`     // Chord the label names (held or current)
	Candidate   *ChordCandidate     `json:"candidate,omitempty"` // Best candidate of this block
	Notes       []chroma.PitchClass `json:"notes"`
	Persistence int                 `json:"persistence"`
}

// ClassifierState is the hysteresis memory of one classifier
type ClassifierState struct {
	Previous    *ChordCandidate `json:"previous,omitempty"` // Last confirmed chord; nil when empty
	Persistence int             `json:"persistence"`        // Consecutive blocks the previous chord was held
}

// Empty reports whether no chord is being held
func (s ClassifierState) Empty() bool {
	return s.Previous == nil
}

// ChordClassifierParams configures chord classification
type ChordClassifierParams struct {
	ConfidenceThreshold float64 `json:"confidence_threshold"` // Minimum normalized score to confirm (0.3-1.0)
	MaxPersistence      int     `json:"max_persistence"`      // Blocks a confirmed chord may be held without evidence
}

// DefaultChordClassifierParams returns the default classifier parameters
func DefaultChordClassifierParams() ChordClassifierParams {
	return ChordClassifierParams{
		ConfidenceThreshold: 0.6,
		MaxPersistence:      3,
	}
}

// ChordClassifier names the chord formed by a set of pitch classes and
// keeps the label stable across short gaps in evidence.
//
// A ChordClassifier is not safe for concurrent use: callers must serialize
// Detect/Classify on one instance.
type ChordClassifier struct {
	params ChordClassifierParams
	state  ClassifierState
}

// NewChordClassifier creates a classifier in the empty state. The threshold
// is clamped to [0.3, 1.0] (NaN or Inf falls back to the default) and
// negative persistence to zero.
func NewChordClassifier(params ChordClassifierParams) *ChordClassifier {
	if common.Finite(params.ConfidenceThreshold) {
		params.ConfidenceThreshold = common.Clamp(params.ConfidenceThreshold, 0.3, 1.0)
	} else {
		params.ConfidenceThreshold = DefaultChordClassifierParams().ConfidenceThreshold
	}
	params.MaxPersistence = max(params.MaxPersistence, 0)
	return &ChordClassifier{params: params}
}

// Params returns the effective (clamped) parameters
func (cc *ChordClassifier) Params() ChordClassifierParams {
	return cc.params
}

// State returns a copy of the hysteresis state
func (cc *ChordClassifier) State() ClassifierState {
	s := cc.state
	if s.Previous != nil {
		prev := *s.Previous
		s.Previous = &prev
	}
	return s
}

// Reset returns the classifier to the empty state
func (cc *ChordClassifier) Reset() {
	cc.state = ClassifierState{}
}

// Detect classifies notes and returns the display label
func (cc *ChordClassifier) Detect(notes []chroma.PitchClass) string {
	return cc.Classify(notes).Label
}

// Classify classifies notes, updating the hysteresis state
func (cc *ChordClassifier) Classify(notes []chroma.PitchClass) ChordResult {
	distinct := chroma.SortChromatic(notes)
	best, ok := BestCandidate(distinct)

	var candidate *ChordCandidate
	if ok {
		candidate = &best
	}

	result := decide(&cc.state, cc.params, candidate, len(distinct) < 2)
	result.Notes = distinct
	return result
}

// decide applies the confidence threshold and the persistence window.
// state is mutated in place.
func decide(state *ClassifierState, params ChordClassifierParams, candidate *ChordCandidate, insufficient bool) ChordResult {
	result := ChordResult{Candidate: candidate}

	switch {
	case candidate != nil && candidate.Score >= params.ConfidenceThreshold:
		committed := *candidate
		state.Previous = &committed
		state.Persistence = 0
		result.Status = StatusConfirmed
		result.Label = committed.Label()
		result.Chord = candidate

	case state.Previous != nil && state.Persistence < params.MaxPersistence:
		state.Persistence++
		held := *state.Previous
		result.Status = StatusHeld
		result.Label = held.Label()
		result.Chord = &held

	default:
		state.Persistence = 0
		switch {
		case candidate != nil:
			// The held chord survives; only an evidence-free block clears it
			result.Status = StatusLowConfidence
			result.Label = candidate.Label() + lowConfidenceSuffix
			result.Chord = candidate
		case insufficient:
			state.Previous = nil
			result.Status = StatusInsufficient
			result.Label = LabelInsufficientData
		default:
			state.Previous = nil
			result.Status = StatusUnrecognized
			result.Label = LabelNoChord
		}
	}

	result.Persistence = state.Persistence
	return result
}
