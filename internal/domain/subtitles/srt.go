package subtitles

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/forPelevin/reelcut/internal/types"
)

var (
	srtTimingRE = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2}),(\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2}),(\d{3})`)
	vttTimingRE = regexp.MustCompile(`^((?:\d{2,}:)?\d{2}:\d{2})[.,](\d{3})\s*-->\s*((?:\d{2,}:)?\d{2}:\d{2})[.,](\d{3})`)
	blankLineRE = regexp.MustCompile(`\n\s*\n`)
)

// ParseSRT converts SubRip blocks 1:1 into word-less segments. Blocks whose
// second line is not a timing line are skipped; a block with unusable timing
// fails the whole parse.
func ParseSRT(content string) ([]types.Segment, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimPrefix(content, "\ufeff")

	var out []types.Segment
	for _, block := range blankLineRE.Split(strings.TrimSpace(content), -1) {
		lines := nonEmptyLines(block)
		if len(lines) < 2 {
			continue
		}
		m := srtTimingRE.FindStringSubmatch(lines[1])
		if m == nil {
			continue
		}
		start := clockSeconds(m[1], m[2], m[3], m[4])
		end := clockSeconds(m[5], m[6], m[7], m[8])
		seg, err := types.NewSegment(start, end, strings.Join(lines[2:], " "), nil)
		if err != nil {
			return nil, fmt.Errorf("subtitle block %s: %w", lines[0], err)
		}
		out = append(out, seg)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no subtitle blocks found", types.ErrInputValidation)
	}
	return out, nil
}

// VTTToSRT rewrites a WebVTT document as SubRip: header and NOTE/STYLE
// blocks dropped, cues numbered, cue settings stripped, hours made explicit.
func VTTToSRT(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimPrefix(content, "\ufeff")

	var b strings.Builder
	n := 0
	for _, block := range blankLineRE.Split(strings.TrimSpace(content), -1) {
		lines := nonEmptyLines(block)
		idx := -1
		for i, l := range lines {
			if strings.Contains(l, "-->") {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		m := vttTimingRE.FindStringSubmatch(lines[idx])
		if m == nil {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d\n%s,%s --> %s,%s\n", n, fullClock(m[1]), m[2], fullClock(m[3]), m[4])
		for _, l := range lines[idx+1:] {
			b.WriteString(stripVTTTags(l))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// LooksLikeVTT reports whether content starts with a WEBVTT header.
func LooksLikeVTT(content string) bool {
	content = strings.TrimPrefix(strings.TrimSpace(content), "\ufeff")
	return strings.HasPrefix(content, "WEBVTT")
}

var vttTagRE = regexp.MustCompile(`<[^>]*>`)

func stripVTTTags(s string) string {
	return strings.TrimSpace(vttTagRE.ReplaceAllString(s, ""))
}

func fullClock(s string) string {
	if strings.Count(s, ":") == 1 {
		return "00:" + s
	}
	return s
}

func clockSeconds(h, m, s, ms string) float64 {
	hi, _ := strconv.Atoi(h)
	mi, _ := strconv.Atoi(m)
	si, _ := strconv.Atoi(s)
	msi, _ := strconv.Atoi(ms)
	return float64(hi*3600+mi*60+si) + float64(msi)/1000
}

func nonEmptyLines(block string) []string {
	var out []string
	for _, l := range strings.Split(block, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
