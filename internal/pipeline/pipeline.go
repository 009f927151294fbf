package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/forPelevin/reelcut/internal/domain/subtitles"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/reelcut/internal/types"
	"github.com/forPelevin/reelcut/internal/usecase"
)

type Config struct {
	InputVideo string

	// At most one of SegmentsPath and SubtitlePath is set. With neither,
	// sources next to InputVideo are discovered.
	SegmentsPath string
	SubtitlePath string

	// OutputPath defaults to <dir>/<stem>_processed<ext>.
	OutputPath string

	// WorkRoot is where per-run directories go. Defaults to ".cache".
	WorkRoot    string
	Workers     int
	KeepWorkDir bool

	FFmpegPath  string
	FFprobePath string
	FontsDir    string
	Profile     ffmpeg.EncodeProfile
	Style       subtitles.Style

	Logger zerolog.Logger

	// Encoder replaces the ffmpeg adapter when set.
	Encoder ports.Encoder
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.InputVideo) == "" {
		return fmt.Errorf("%w: input video is empty", types.ErrInputValidation)
	}
	if _, err := os.Stat(c.InputVideo); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: input video %s", types.ErrMissingSource, c.InputVideo)
		}
		return fmt.Errorf("stat input: %w", err)
	}
	if c.SegmentsPath != "" && c.SubtitlePath != "" {
		return fmt.Errorf("%w: segments and subtitles are mutually exclusive", types.ErrInputValidation)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0", types.ErrInputValidation)
	}
	return nil
}

func Run(ctx context.Context, cfg Config) (types.AssemblyResult, error) {
	if err := cfg.Validate(); err != nil {
		return types.AssemblyResult{}, err
	}
	log := cfg.Logger.With().Str("component", "pipeline").Logger()

	src, err := resolveSource(cfg)
	if err != nil {
		return types.AssemblyResult{}, err
	}
	log.Info().Str("source", src).Msg("loading segments")
	segs, err := LoadSegments(src)
	if err != nil {
		return types.AssemblyResult{}, err
	}

	enc := cfg.Encoder
	if enc == nil {
		enc = ffmpeg.New(cfg.Logger, ffmpeg.Options{
			FFmpegPath:  cfg.FFmpegPath,
			FFprobePath: cfg.FFprobePath,
			Profile:     cfg.Profile,
		})
	}

	workRoot := cfg.WorkRoot
	if workRoot == "" {
		workRoot = ".cache"
	}
	runDir := buildRunDir(filepath.Join(workRoot, "runs"), cfg.InputVideo, time.Now().UTC(), uuid.New())
	out := cfg.OutputPath
	if out == "" {
		out = OutputPath(cfg.InputVideo)
	}
	workers := cfg.Workers
	if workers == 0 {
		workers = 2
	}
	log.Info().Str("run_dir", runDir).Str("output", out).Int("segments", len(segs)).Int("workers", workers).Msg("starting run")

	uc := usecase.New(usecase.Deps{
		Encoder: enc,
		Logger:  cfg.Logger,
		Observer: func(from, to usecase.State) {
			log.Info().Str("from", from.String()).Str("to", to.String()).Msg("run state")
		},
	})
	res, err := uc.Assemble(ctx, usecase.Input{
		Source:     cfg.InputVideo,
		Segments:   segs,
		RunDir:     runDir,
		OutputPath: out,
		Workers:    workers,
		Style:      cfg.Style,
		FontsDir:   cfg.FontsDir,
	})
	if err != nil {
		log.Warn().Str("run_dir", runDir).Msg("run dir kept for inspection")
		return types.AssemblyResult{}, err
	}

	if !cfg.KeepWorkDir {
		if err := os.RemoveAll(runDir); err != nil {
			log.Warn().Err(err).Str("run_dir", runDir).Msg("remove run dir")
		}
	}
	return res, nil
}

// OutputPath is <dir>/<stem>_processed<ext> for the input video.
func OutputPath(input string) string {
	ext := filepath.Ext(input)
	stem := strings.TrimSuffix(filepath.Base(input), ext)
	return filepath.Join(filepath.Dir(input), stem+"_processed"+ext)
}

// resolveSource picks the explicit source or discovers <stem>.short.json,
// then <stem>.en.srt, then <stem>.en.vtt next to the video.
func resolveSource(cfg Config) (string, error) {
	switch {
	case cfg.SegmentsPath != "":
		return cfg.SegmentsPath, nil
	case cfg.SubtitlePath != "":
		return cfg.SubtitlePath, nil
	}
	base := strings.TrimSuffix(cfg.InputVideo, filepath.Ext(cfg.InputVideo))
	tried := make([]string, 0, 3)
	for _, suffix := range []string{".short.json", ".en.srt", ".en.vtt"} {
		p := base + suffix
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		tried = append(tried, filepath.Base(p))
	}
	return "", fmt.Errorf("%w: no segments or subtitles next to %s (tried %s)", types.ErrMissingSource, filepath.Base(cfg.InputVideo), strings.Join(tried, ", "))
}

func buildRunDir(root, input string, now time.Time, id uuid.UUID) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	return filepath.Join(root, fmt.Sprintf("%s-%s-%s", name, ts, id.String()[:8]))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
