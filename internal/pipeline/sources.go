package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/reelcut/internal/domain/selection"
	"github.com/forPelevin/reelcut/internal/domain/subtitles"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

// LoadSegments reads selector JSON, SubRip or WebVTT into a validated
// playback list. The format is chosen by extension, then by content.
func LoadSegments(path string) ([]types.Segment, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		return selection.LoadFile(path)
	}
	content, err := readSource(path)
	if err != nil {
		return nil, err
	}
	segs, err := parseSubtitles(content, ext)
	if err != nil {
		return nil, err
	}
	if err := types.ValidateSequence(segs); err != nil {
		return nil, err
	}
	return segs, nil
}

func parseSubtitles(content, ext string) ([]types.Segment, error) {
	switch {
	case ext == ".vtt" || subtitles.LooksLikeVTT(content):
		return subtitles.ParseSRT(subtitles.VTTToSRT(content))
	case ext == ".srt":
		return subtitles.ParseSRT(content)
	default:
		trimmed := strings.TrimSpace(content)
		if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "```") {
			return selection.Parse([]byte(content))
		}
		return subtitles.ParseSRT(content)
	}
}

// SelectConfig drives one selector call over a subtitle file.
type SelectConfig struct {
	SubtitlePath string
	// OutputPath defaults to <base>.short.json, with a trailing .en dropped
	// from the base so the result sits next to the video it belongs to.
	OutputPath string
	Selector   ports.Selector
}

// Select asks the selector for a highlight passage and writes it as
// selector JSON. Unparseable selector output writes nothing.
func Select(ctx context.Context, cfg SelectConfig) (string, []types.Segment, error) {
	if cfg.Selector == nil {
		return "", nil, errors.New("select: selector is not configured")
	}
	content, err := readSource(cfg.SubtitlePath)
	if err != nil {
		return "", nil, err
	}
	if subtitles.LooksLikeVTT(content) || strings.EqualFold(filepath.Ext(cfg.SubtitlePath), ".vtt") {
		content = subtitles.VTTToSRT(content)
	}

	raw, err := cfg.Selector.Select(ctx, content)
	if err != nil {
		return "", nil, err
	}
	segs, err := selection.Parse([]byte(raw))
	if err != nil {
		return "", nil, err
	}
	b, err := selection.Format(segs)
	if err != nil {
		return "", nil, fmt.Errorf("format selection: %w", err)
	}

	out := cfg.OutputPath
	if out == "" {
		out = ShortPath(cfg.SubtitlePath)
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return "", nil, fmt.Errorf("write selection: %w", err)
	}
	return out, segs, nil
}

// ShortPath maps video.en.srt (or video.srt) to video.short.json.
func ShortPath(subtitlePath string) string {
	base := strings.TrimSuffix(subtitlePath, filepath.Ext(subtitlePath))
	base = strings.TrimSuffix(base, ".en")
	return base + ".short.json"
}

func readSource(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", types.ErrMissingSource, path)
		}
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return string(b), nil
}
