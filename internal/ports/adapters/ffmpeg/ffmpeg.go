package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/forPelevin/reelcut/internal/domain/filtergraph"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

const defaultStderrLimit = 8 << 10

// EncodeProfile is applied to every extracted clip and to the merge, so the
// xfade inputs always agree on codec and pixel format.
type EncodeProfile struct {
	VideoCodec   string `yaml:"video_codec"`
	Preset       string `yaml:"preset"`
	CRF          int    `yaml:"crf"`
	PixFmt       string `yaml:"pix_fmt"`
	AudioCodec   string `yaml:"audio_codec"`
	AudioBitrate string `yaml:"audio_bitrate"`
}

func DefaultProfile() EncodeProfile {
	return EncodeProfile{
		VideoCodec:   "libx264",
		Preset:       "slow",
		CRF:          18,
		PixFmt:       "yuv420p",
		AudioCodec:   "aac",
		AudioBitrate: "192k",
	}
}

func (p EncodeProfile) args() []string {
	return []string{
		"-c:v", p.VideoCodec,
		"-preset", p.Preset,
		"-crf", strconv.Itoa(p.CRF),
		"-pix_fmt", p.PixFmt,
		"-c:a", p.AudioCodec,
		"-b:a", p.AudioBitrate,
	}
}

type Options struct {
	FFmpegPath  string
	FFprobePath string
	Profile     EncodeProfile
	// StderrLimit bounds how much trailing stderr is kept for error reports.
	StderrLimit int
}

type runFunc func(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error

type Adapter struct {
	logger      zerolog.Logger
	ffmpeg      string
	ffprobe     string
	profile     EncodeProfile
	stderrLimit int
	run         runFunc
}

var _ ports.Encoder = (*Adapter)(nil)

func New(logger zerolog.Logger, opts Options) *Adapter {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}
	if opts.Profile == (EncodeProfile{}) {
		opts.Profile = DefaultProfile()
	}
	if opts.StderrLimit <= 0 {
		opts.StderrLimit = defaultStderrLimit
	}
	return &Adapter{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpeg:      opts.FFmpegPath,
		ffprobe:     opts.FFprobePath,
		profile:     opts.Profile,
		stderrLimit: opts.StderrLimit,
		run:         execRun,
	}
}

func execRun(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Probe reads duration, frame size and audio presence with ffprobe.
func (a *Adapter) Probe(ctx context.Context, path string) (types.MediaInfo, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}
	var out bytes.Buffer
	if err := a.exec(ctx, a.ffprobe, "probe", args, &out); err != nil {
		return types.MediaInfo{}, err
	}

	var pr probeResult
	if err := json.Unmarshal(out.Bytes(), &pr); err != nil {
		return types.MediaInfo{}, &types.ProcessError{Tool: "ffprobe", Op: "probe", Err: fmt.Errorf("parse output: %w", err)}
	}

	var info types.MediaInfo
	if d, err := strconv.ParseFloat(strings.TrimSpace(pr.Format.Duration), 64); err == nil {
		info.Duration = d
	}
	for _, s := range pr.Streams {
		switch s.CodecType {
		case "video":
			if info.Width == 0 {
				info.Width, info.Height = s.Width, s.Height
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if info.Duration <= 0 {
		return types.MediaInfo{}, &types.ProcessError{Tool: "ffprobe", Op: "probe", Err: fmt.Errorf("no duration reported for %s", path)}
	}
	return info, nil
}

type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Extract trims, crops and burns captions in one encode. Seeking is done on
// the input side so the clip and its captions both start at zero.
func (a *Adapter) Extract(ctx context.Context, req ports.ExtractRequest) error {
	args, err := a.extractArgs(req)
	if err != nil {
		return err
	}
	return a.exec(ctx, a.ffmpeg, "extract", args, io.Discard)
}

func (a *Adapter) extractArgs(req ports.ExtractRequest) ([]string, error) {
	if req.Input == "" || req.Output == "" {
		return nil, fmt.Errorf("%w: extract needs input and output paths", types.ErrInputValidation)
	}
	if req.End <= req.Start {
		return nil, fmt.Errorf("%w: extract window [%.3f, %.3f) is empty", types.ErrInputValidation, req.Start, req.End)
	}
	if req.CropWidth%2 != 0 || req.CropHeight%2 != 0 {
		return nil, fmt.Errorf("%w: crop %dx%d must be even", types.ErrInputValidation, req.CropWidth, req.CropHeight)
	}

	var vf filtergraph.Chain
	if req.CropWidth > 0 && req.CropHeight > 0 {
		vf = append(vf, filtergraph.Crop(req.CropWidth, req.CropHeight))
	}
	if req.CaptionsPath != "" {
		vf = append(vf, filtergraph.ASS(req.CaptionsPath, req.FontsDir))
	}

	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-ss", fmtSeconds(req.Start),
		"-to", fmtSeconds(req.End),
		"-i", req.Input,
	}
	if len(vf) > 0 {
		args = append(args, "-vf", vf.String())
	}
	args = append(args, a.profile.args()...)
	args = append(args, "-movflags", "+faststart", req.Output)
	return args, nil
}

// Merge runs the crossfade graph over the inputs in order.
func (a *Adapter) Merge(ctx context.Context, req ports.MergeRequest) error {
	args, err := a.mergeArgs(req)
	if err != nil {
		return err
	}
	return a.exec(ctx, a.ffmpeg, "merge", args, io.Discard)
}

func (a *Adapter) mergeArgs(req ports.MergeRequest) ([]string, error) {
	if len(req.Inputs) < 2 {
		return nil, fmt.Errorf("%w: merge needs at least two inputs, got %d", types.ErrInputValidation, len(req.Inputs))
	}
	if len(req.Graph) == 0 || req.VideoLabel == "" || req.AudioLabel == "" {
		return nil, fmt.Errorf("%w: merge needs a graph and output labels", types.ErrInputValidation)
	}
	args := []string{"-y", "-hide_banner", "-loglevel", "error"}
	for _, in := range req.Inputs {
		args = append(args, "-i", in)
	}
	args = append(args,
		"-filter_complex", req.Graph.String(),
		"-map", "["+req.VideoLabel+"]",
		"-map", "["+req.AudioLabel+"]",
	)
	args = append(args, a.profile.args()...)
	args = append(args, "-movflags", "+faststart", req.Output)
	return args, nil
}

// exec is the single path every external invocation goes through.
func (a *Adapter) exec(ctx context.Context, bin, op string, args []string, stdout io.Writer) error {
	start := time.Now()
	var stderr bytes.Buffer
	a.logger.Debug().Str("op", op).Str("bin", bin).Strs("args", args).Msg("exec")

	err := a.run(ctx, bin, args, stdout, &limitedWriter{w: &stderr, limit: a.stderrLimit})
	elapsed := time.Since(start)
	if err == nil {
		a.logger.Debug().Str("op", op).Dur("elapsed", elapsed).Msg("exec done")
		return nil
	}

	pe := &types.ProcessError{Tool: toolName(bin), Op: op, ExitCode: -1, StderrTail: stderr.String(), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		pe.ExitCode = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		pe.Err = ctx.Err()
	}
	a.logger.Warn().
		Str("op", op).
		Int("exit_code", pe.ExitCode).
		Dur("elapsed", elapsed).
		Str("stderr_tail", truncate(pe.StderrTail, 512)).
		Msg("exec failed")
	return pe
}

func toolName(bin string) string {
	if i := strings.LastIndexAny(bin, `/\`); i >= 0 {
		bin = bin[i+1:]
	}
	return strings.TrimSuffix(bin, ".exe")
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter keeps only the last limit bytes written to it.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
