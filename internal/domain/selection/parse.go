// Package selection turns raw selector (LLM) output into validated segments.
package selection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/forPelevin/reelcut/internal/types"
)

var fenceRE = regexp.MustCompile("(?m)^```(?:json)?\\s*|```$")

// Sanitize strips what selectors tend to wrap around JSON: code fences,
// stray backticks, a BOM and non-printable characters.
func Sanitize(s string) string {
	s = fenceRE.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "`", "")
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return r
		}
		if !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

type rawSegment struct {
	StartSec *float64     `json:"start_sec"`
	EndSec   *float64     `json:"end_sec"`
	Start    *float64     `json:"start"`
	End      *float64     `json:"end"`
	Text     string       `json:"text"`
	Words    []types.Word `json:"words"`
}

// Parse decodes a JSON array of segments, or the same array wrapped as
// {"timestamps": [...]}. It never substitutes a default list.
func Parse(b []byte) ([]types.Segment, error) {
	clean := Sanitize(string(b))
	if clean == "" {
		return nil, fmt.Errorf("%w: empty content", types.ErrSelectorOutput)
	}

	raws, err := decode([]byte(clean))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSelectorOutput, err)
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("%w: no segments", types.ErrSelectorOutput)
	}

	out := make([]types.Segment, 0, len(raws))
	for i, r := range raws {
		start, ok1 := first(r.StartSec, r.Start)
		end, ok2 := first(r.EndSec, r.End)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: segment %d is missing start_sec/end_sec", types.ErrInputValidation, i+1)
		}
		seg, err := types.NewSegment(start, end, r.Text, r.Words)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i+1, err)
		}
		out = append(out, seg)
	}
	if err := types.ValidateSequence(out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadFile reads selector output from disk.
func LoadFile(path string) ([]types.Segment, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: segments file %s", types.ErrMissingSource, path)
		}
		return nil, fmt.Errorf("read segments: %w", err)
	}
	return Parse(b)
}

// Format re-serializes segments in the canonical shape.
func Format(segs []types.Segment) ([]byte, error) {
	return json.MarshalIndent(segs, "", "  ")
}

func decode(b []byte) ([]rawSegment, error) {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.HasPrefix(b, []byte("[")):
		var arr []rawSegment
		if err := strictUnmarshal(b, &arr); err != nil {
			return nil, err
		}
		return arr, nil
	case bytes.HasPrefix(b, []byte("{")):
		var wrapped struct {
			Timestamps *[]rawSegment `json:"timestamps"`
		}
		if err := strictUnmarshal(b, &wrapped); err != nil {
			return nil, err
		}
		if wrapped.Timestamps == nil {
			return nil, errors.New(`object has no "timestamps" array`)
		}
		return *wrapped.Timestamps, nil
	default:
		// Chatty preface: take the outermost JSON value, if there is one.
		if inner, ok := locateJSON(b); ok {
			return decode(inner)
		}
		return nil, fmt.Errorf("expected a JSON array or object, got %q", truncate(string(b), 40))
	}
}

func locateJSON(b []byte) ([]byte, bool) {
	start := bytes.IndexAny(b, "[{")
	if start < 0 {
		return nil, false
	}
	closer := byte(']')
	if b[start] == '{' {
		closer = '}'
	}
	end := bytes.LastIndexByte(b, closer)
	if end <= start {
		return nil, false
	}
	return b[start : end+1], true
}

// strictUnmarshal rejects trailing text after the first JSON value.
func strictUnmarshal(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected content after JSON value")
	}
	return nil
}

func first(a, b *float64) (float64, bool) {
	if a != nil {
		return *a, true
	}
	if b != nil {
		return *b, true
	}
	return 0, false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
