package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/forPelevin/reelcut/internal/domain/subtitles"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

// State is a step of one assembly run.
type State int

const (
	Idle State = iota
	Extracting
	Merging
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Extracting:
		return "extracting"
	case Merging:
		return "merging"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StageError reports the stage a run failed in and why.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string { return e.Stage.String() + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Observer is told about every state transition of a run.
type Observer func(from, to State)

type Deps struct {
	Encoder  ports.Encoder
	Logger   zerolog.Logger
	Observer Observer
}

// Coordinator drives one segment list through extraction and merge.
type Coordinator struct{ d Deps }

func New(d Deps) *Coordinator { return &Coordinator{d: d} }

type Input struct {
	Source   string
	Segments []types.Segment
	// RunDir holds every intermediate file of the run and is left in place on failure.
	RunDir     string
	OutputPath string
	Workers    int
	Style      subtitles.Style
	FontsDir   string
}

// CropWidth is the widest even width with a 9:16 ratio at the given height.
func CropWidth(height int) int {
	return height * 9 / 16 / 2 * 2
}

type run struct {
	c     *Coordinator
	in    Input
	log   zerolog.Logger
	state State
}

func (r *run) enter(s State) {
	from := r.state
	r.state = s
	r.log.Debug().Str("from", from.String()).Str("to", s.String()).Msg("state")
	if r.c.d.Observer != nil {
		r.c.d.Observer(from, s)
	}
}

func (r *run) fail(err error) error {
	stage := r.state
	r.enter(Failed)
	r.log.Error().Err(err).Str("stage", stage.String()).Msg("assembly failed")
	return &StageError{Stage: stage, Err: err}
}

// Assemble renders in.Segments from in.Source into one captioned portrait
// video at in.OutputPath. Either the output is complete or it does not exist.
func (c *Coordinator) Assemble(ctx context.Context, in Input) (types.AssemblyResult, error) {
	if in.Style == (subtitles.Style{}) {
		in.Style = subtitles.DefaultStyle()
	}
	r := &run{c: c, in: in, log: c.d.Logger.With().Str("component", "assemble").Str("run_dir", in.RunDir).Logger(), state: Idle}
	start := time.Now()

	info, err := r.prepare(ctx)
	if err != nil {
		return types.AssemblyResult{}, r.fail(err)
	}

	r.enter(Extracting)
	clips, err := r.extract(ctx, info)
	if err != nil {
		return types.AssemblyResult{}, r.fail(err)
	}

	r.enter(Merging)
	total, err := r.merge(ctx, clips)
	if err != nil {
		return types.AssemblyResult{}, r.fail(err)
	}

	r.enter(Done)
	r.log.Info().
		Int("clips", len(clips)).
		Float64("duration_sec", total).
		Dur("elapsed", time.Since(start)).
		Str("output", in.OutputPath).
		Msg("assembly done")
	return types.AssemblyResult{OutputPath: in.OutputPath, Duration: total, Clips: clips}, nil
}

// prepare checks everything it can before the first encoder run and writes
// the full caption track for inspection.
func (r *run) prepare(ctx context.Context) (types.MediaInfo, error) {
	in := r.in
	if err := types.ValidateSequence(in.Segments); err != nil {
		return types.MediaInfo{}, err
	}
	if in.RunDir == "" || in.OutputPath == "" {
		return types.MediaInfo{}, fmt.Errorf("%w: run dir and output path are required", types.ErrInputValidation)
	}
	if r.c.d.Encoder == nil {
		return types.MediaInfo{}, errors.New("assemble: encoder is not configured")
	}

	st, err := os.Stat(in.Source)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return types.MediaInfo{}, fmt.Errorf("%w: source video %s", types.ErrMissingSource, in.Source)
	case err != nil:
		return types.MediaInfo{}, fmt.Errorf("stat source: %w", err)
	case st.IsDir():
		return types.MediaInfo{}, fmt.Errorf("%w: source %s is a directory", types.ErrInputValidation, in.Source)
	}

	info, err := r.c.d.Encoder.Probe(ctx, in.Source)
	if err != nil {
		return types.MediaInfo{}, fmt.Errorf("probe source: %w", err)
	}
	if info.Height <= 0 || info.Width <= 0 {
		return types.MediaInfo{}, fmt.Errorf("%w: source has no video stream", types.ErrInputValidation)
	}
	if w := CropWidth(info.Height); w <= 0 || w > info.Width {
		return types.MediaInfo{}, fmt.Errorf("%w: source %dx%d is too narrow for a %dpx portrait crop", types.ErrInputValidation, info.Width, info.Height, w)
	}
	if len(in.Segments) > 1 && !info.HasAudio {
		return types.MediaInfo{}, fmt.Errorf("%w: crossfading %d segments needs an audio stream", types.ErrInputValidation, len(in.Segments))
	}
	for i, s := range in.Segments {
		if s.Start >= info.Duration {
			return types.MediaInfo{}, fmt.Errorf("%w: segment %d starts at %.3f, after the source ends at %.3f", types.ErrInputValidation, i+1, s.Start, info.Duration)
		}
	}

	for _, dir := range []string{in.RunDir, filepath.Join(in.RunDir, "clips"), filepath.Join(in.RunDir, "subs")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return types.MediaInfo{}, fmt.Errorf("create run dir: %w", err)
		}
	}
	track := subtitles.BuildTrack(in.Segments)
	if err := writeFile(filepath.Join(in.RunDir, "captions.ass"), []byte(subtitles.RenderASS(in.Style, track))); err != nil {
		return types.MediaInfo{}, err
	}
	return info, nil
}

func writeFile(path string, b []byte) error {
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
