package subtitles

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/forPelevin/reelcut/internal/types"
)

// WindowSize is how many words one karaoke cue shows.
const WindowSize = 3

// Style is the fixed presentation record written into every caption file.
type Style struct {
	Name            string `yaml:"-"`
	PlayResX        int    `yaml:"-"`
	PlayResY        int    `yaml:"-"`
	Fontname        string `yaml:"font_name"`
	Fontsize        int    `yaml:"font_size"`
	PrimaryColour   string `yaml:"primary_colour"`
	SecondaryColour string `yaml:"secondary_colour"`
	OutlineColour   string `yaml:"outline_colour"`
	BackColour      string `yaml:"back_colour"`
	Bold            bool   `yaml:"bold"`
	Outline         int    `yaml:"outline"`
	Shadow          int    `yaml:"shadow"`
	Alignment       int    `yaml:"alignment"`
	MarginL         int    `yaml:"margin_l"`
	MarginR         int    `yaml:"margin_r"`
	MarginV         int    `yaml:"margin_v"`
}

// DefaultStyle is tuned for a 1080x1920 portrait canvas. Already-sung words
// take PrimaryColour, upcoming ones SecondaryColour.
func DefaultStyle() Style {
	return Style{
		Name:            "Reel",
		PlayResX:        1080,
		PlayResY:        1920,
		Fontname:        "Arial",
		Fontsize:        84,
		PrimaryColour:   "&H0000D7FF",
		SecondaryColour: "&H00FFFFFF",
		OutlineColour:   "&H00000000",
		BackColour:      "&H64000000",
		Bold:            true,
		Outline:         6,
		Shadow:          2,
		Alignment:       2,
		MarginL:         60,
		MarginR:         60,
		MarginV:         320,
	}
}

// BuildTrack turns the ordered segments into caption cues on the absolute
// source timeline. Word-timed segments are cut into disjoint windows of
// WindowSize words; segments without word timing get a single plain cue.
func BuildTrack(segs []types.Segment) []types.CaptionCue {
	var out []types.CaptionCue
	for _, s := range segs {
		if !s.HasWordTiming() {
			out = append(out, types.CaptionCue{Start: s.Start, End: s.End, Text: sanitizeASS(s.Text)})
			continue
		}
		out = append(out, windows(s.Words, 0)...)
	}
	return out
}

// ClipLocal builds the cues of the clip cut from seg, using only seg's own
// words, on the clip clock where seg.Start is zero. Words overrunning the
// segment are clamped to it so the {\k} of a clamped word covers only the
// part that is on screen; words left with nothing inside are dropped.
func ClipLocal(seg types.Segment) []types.CaptionCue {
	if !seg.HasWordTiming() {
		return []types.CaptionCue{{Start: 0, End: seg.Duration(), Text: sanitizeASS(seg.Text)}}
	}
	words := make([]types.Word, 0, len(seg.Words))
	for _, w := range seg.Words {
		start, end := math.Max(w.Start, seg.Start), math.Min(w.End, seg.End)
		if end < start || (end == start && w.End > w.Start) {
			continue
		}
		words = append(words, types.Word{Word: w.Word, Start: start, End: end})
	}
	return windows(words, seg.Start)
}

// windows groups words into WindowSize cues timed relative to origin.
func windows(words []types.Word, origin float64) []types.CaptionCue {
	out := make([]types.CaptionCue, 0, (len(words)+WindowSize-1)/WindowSize)
	for i := 0; i < len(words); i += WindowSize {
		j := min(i+WindowSize, len(words))
		out = append(out, karaokeCue(words[i:j], origin))
	}
	return out
}

func karaokeCue(words []types.Word, origin float64) types.CaptionCue {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		parts = append(parts, fmt.Sprintf("{\\k%d}%s", Centiseconds(w.End-w.Start), sanitizeASS(w.Word)))
	}
	return types.CaptionCue{
		Start: words[0].Start - origin,
		End:   words[len(words)-1].End - origin,
		Text:  strings.Join(parts, " "),
	}
}

// Centiseconds truncates a duration in seconds to whole hundredths.
// The epsilon only absorbs binary representation error (0.29*100 = 28.999...).
func Centiseconds(sec float64) int {
	if sec <= 0 {
		return 0
	}
	return int(math.Floor(sec*100 + 1e-6))
}

// RenderASS writes a complete ASS document for the cues.
func RenderASS(st Style, cues []types.CaptionCue) string {
	var b strings.Builder
	b.WriteString(assHeader(st))
	b.WriteString("\n\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, c := range cues {
		b.WriteString("Dialogue: 0,")
		b.WriteString(assTime(dur(c.Start)))
		b.WriteString(",")
		b.WriteString(assTime(dur(c.End)))
		b.WriteString(",")
		b.WriteString(st.Name)
		b.WriteString(",,0,0,0,,")
		b.WriteString(c.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func assHeader(st Style) string {
	bold := 0
	if st.Bold {
		bold = -1
	}
	return strings.TrimSpace(fmt.Sprintf(`
[Script Info]
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
WrapStyle: 0
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: %s,%s,%d,%s,%s,%s,%s,%d,0,0,0,100,100,0,0,1,%d,%d,%d,%d,%d,%d,1
`,
		st.PlayResX, st.PlayResY,
		st.Name, st.Fontname, st.Fontsize,
		st.PrimaryColour, st.SecondaryColour, st.OutlineColour, st.BackColour,
		bold, st.Outline, st.Shadow, st.Alignment, st.MarginL, st.MarginR, st.MarginV,
	))
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// dur rounds to the nearest microsecond so 10.2 does not print as 10.19.
func dur(sec float64) time.Duration {
	return time.Duration(math.Round(sec*1e6)) * time.Microsecond
}
