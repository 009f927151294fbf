package types

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestNewSegment_Validation(t *testing.T) {
	tests := []struct {
		name    string
		start   float64
		end     float64
		words   []Word
		wantErr bool
	}{
		{"plain", 1, 2, nil, false},
		{"zero length", 2, 2, nil, true},
		{"inverted", 3, 2, nil, true},
		{"negative start", -1, 2, nil, true},
		{"nan end", 0, math.NaN(), nil, true},
		{"words ok", 10, 12, []Word{{Word: "a", Start: 10, End: 10.5}, {Word: "b", Start: 10.5, End: 12}}, false},
		{"word overrun tolerated", 10, 12, []Word{{Word: "a", Start: 9.9, End: 12.1}}, false},
		{"word far outside", 10, 12, []Word{{Word: "a", Start: 13, End: 14}}, true},
		{"words out of order", 10, 12, []Word{{Word: "a", Start: 11, End: 11.5}, {Word: "b", Start: 10.2, End: 10.4}}, true},
		{"word ends before start", 10, 12, []Word{{Word: "a", Start: 11, End: 10.5}}, true},
		{"empty word", 10, 12, []Word{{Word: "  ", Start: 10, End: 11}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSegment(tt.start, tt.end, "text", tt.words)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				if !errors.Is(err, ErrInputValidation) {
					t.Fatalf("expected ErrInputValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewSegment_TrimsText(t *testing.T) {
	s, err := NewSegment(0, 1, "  hi  ", []Word{{Word: " hi ", Start: 0, End: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if s.Text != "hi" || s.Words[0].Word != "hi" {
		t.Fatalf("expected trimmed text, got %q / %q", s.Text, s.Words[0].Word)
	}
}

func TestValidateSequence(t *testing.T) {
	a := Segment{Start: 0, End: 5}
	b := Segment{Start: 5, End: 9}
	c := Segment{Start: 4, End: 6}

	if err := ValidateSequence([]Segment{a, b}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateSequence(nil); !errors.Is(err, ErrInputValidation) {
		t.Fatalf("expected ErrInputValidation for empty list, got %v", err)
	}
	if err := ValidateSequence([]Segment{b, a}); !errors.Is(err, ErrInputValidation) {
		t.Fatalf("expected ErrInputValidation for out-of-order list, got %v", err)
	}
	if err := ValidateSequence([]Segment{b, c}); !errors.Is(err, ErrInputValidation) {
		t.Fatalf("expected ErrInputValidation for a segment starting before its predecessor, got %v", err)
	}
	if err := ValidateSequence([]Segment{a, c}); err != nil {
		t.Fatalf("in-order overlap should be accepted: %v", err)
	}
	err := ValidateSequence([]Segment{a, {Start: 10, End: 10}})
	if err == nil || !strings.Contains(err.Error(), "segment 2") {
		t.Fatalf("expected error naming segment 2, got %v", err)
	}
}

func TestWord_UnmarshalJSONKeys(t *testing.T) {
	var ws []Word
	in := `[{"word":"a","start_sec":1.5,"end_sec":2},{"word":"b","start":2,"end":2.5}]`
	if err := json.Unmarshal([]byte(in), &ws); err != nil {
		t.Fatal(err)
	}
	if ws[0].Start != 1.5 || ws[0].End != 2 || ws[1].Start != 2 || ws[1].End != 2.5 {
		t.Fatalf("unexpected words: %+v", ws)
	}

	var missing Word
	if err := json.Unmarshal([]byte(`{"word":"x"}`), &missing); err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(missing.Start) {
		t.Fatalf("expected NaN start for missing timing, got %v", missing.Start)
	}
}

func TestProcessError_IsExternalProcess(t *testing.T) {
	var err error = &ProcessError{Tool: "ffmpeg", Op: "extract", ExitCode: 1, StderrTail: "boom"}
	if !errors.Is(err, ErrExternalProcess) {
		t.Fatalf("expected ProcessError to match ErrExternalProcess")
	}
	if !strings.Contains(err.Error(), "exit 1") || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("unexpected message: %s", err)
	}
}
