package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// WordBoundaryTolerance is how far a word may overrun its segment edges.
const WordBoundaryTolerance = 0.25

type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start_sec"`
	End   float64 `json:"end_sec"`
}

// UnmarshalJSON accepts both start_sec/end_sec and the short start/end keys.
func (w *Word) UnmarshalJSON(b []byte) error {
	var raw struct {
		Word     string   `json:"word"`
		StartSec *float64 `json:"start_sec"`
		EndSec   *float64 `json:"end_sec"`
		Start    *float64 `json:"start"`
		End      *float64 `json:"end"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	w.Word = raw.Word
	w.Start = pick(raw.StartSec, raw.Start)
	w.End = pick(raw.EndSec, raw.End)
	return nil
}

type Segment struct {
	Start float64 `json:"start_sec"`
	End   float64 `json:"end_sec"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// NewSegment builds a Segment and rejects it if its timing is unusable.
func NewSegment(start, end float64, text string, words []Word) (Segment, error) {
	s := Segment{Start: start, End: end, Text: strings.TrimSpace(text)}
	if len(words) > 0 {
		s.Words = make([]Word, len(words))
		for i, w := range words {
			w.Word = strings.TrimSpace(w.Word)
			s.Words[i] = w
		}
	}
	if err := s.Validate(); err != nil {
		return Segment{}, err
	}
	return s, nil
}

func (s Segment) Duration() float64 { return s.End - s.Start }

func (s Segment) HasWordTiming() bool { return len(s.Words) > 0 }

func (s Segment) Validate() error {
	if !finite(s.Start) || !finite(s.End) {
		return fmt.Errorf("%w: segment bounds must be finite", ErrInputValidation)
	}
	if s.Start < 0 {
		return fmt.Errorf("%w: segment start %.3f is negative", ErrInputValidation, s.Start)
	}
	if s.End <= s.Start {
		return fmt.Errorf("%w: segment end %.3f must be after start %.3f", ErrInputValidation, s.End, s.Start)
	}
	lo := s.Start - WordBoundaryTolerance
	hi := s.End + WordBoundaryTolerance
	prev := math.Inf(-1)
	for i, w := range s.Words {
		if w.Word == "" {
			return fmt.Errorf("%w: word %d is empty", ErrInputValidation, i)
		}
		if !finite(w.Start) || !finite(w.End) {
			return fmt.Errorf("%w: word %d (%q) has non-finite timing", ErrInputValidation, i, w.Word)
		}
		if w.End < w.Start {
			return fmt.Errorf("%w: word %d (%q) ends before it starts", ErrInputValidation, i, w.Word)
		}
		if w.Start < prev {
			return fmt.Errorf("%w: word %d (%q) starts at %.3f, before previous word at %.3f", ErrInputValidation, i, w.Word, w.Start, prev)
		}
		if w.Start < lo || w.End > hi {
			return fmt.Errorf("%w: word %d (%q) [%.3f, %.3f] is outside segment [%.3f, %.3f]", ErrInputValidation, i, w.Word, w.Start, w.End, s.Start, s.End)
		}
		prev = w.Start
	}
	return nil
}

// ValidateSequence checks an ordered playback list. The list is never
// re-sorted: a segment that starts before its predecessor starts is rejected.
// Overlap in order is allowed; auto-generated subtitles often overlap slightly.
func ValidateSequence(segs []Segment) error {
	if len(segs) == 0 {
		return fmt.Errorf("%w: no segments", ErrInputValidation)
	}
	for i, s := range segs {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("segment %d: %w", i+1, err)
		}
		if i > 0 && s.Start < segs[i-1].Start {
			return fmt.Errorf("%w: segment %d starts at %.3f, before segment %d starts at %.3f", ErrInputValidation, i+1, s.Start, i, segs[i-1].Start)
		}
	}
	return nil
}

// CaptionCue is one subtitle event. Times are on whatever timeline the
// producer chose: absolute for a track, clip-local after ClipLocal.
type CaptionCue struct {
	Start float64
	End   float64
	Text  string
}

// Clip is one extracted, encoded segment owned by a single run.
type Clip struct {
	Index    int     `json:"index"`
	Path     string  `json:"path"`
	Duration float64 `json:"duration_sec"`
}

type AssemblyResult struct {
	OutputPath string  `json:"output_path"`
	Duration   float64 `json:"duration_sec"`
	Clips      []Clip  `json:"clips"`
}

type MediaInfo struct {
	Duration float64
	Width    int
	Height   int
	HasAudio bool
}

func pick(primary, fallback *float64) float64 {
	if primary != nil {
		return *primary
	}
	if fallback != nil {
		return *fallback
	}
	return math.NaN()
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
