package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/forPelevin/reelcut/internal/domain/crossfade"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

// merge stitches the clips into a staged file inside the run dir and then
// publishes it. It returns the planned output duration.
func (r *run) merge(ctx context.Context, clips []types.Clip) (float64, error) {
	durations := make([]float64, len(clips))
	inputs := make([]string, len(clips))
	for i, c := range clips {
		durations[i] = c.Duration
		inputs[i] = c.Path
	}
	plan, err := crossfade.NewPlan(durations)
	if err != nil {
		return 0, err
	}

	staged := filepath.Join(r.in.RunDir, "output"+filepath.Ext(r.in.OutputPath))
	if plan.Passthrough {
		r.log.Info().Str("clip", inputs[0]).Msg("single clip, copying through")
		if err := copyFile(inputs[0], staged); err != nil {
			return 0, fmt.Errorf("copy single clip: %w", err)
		}
	} else {
		r.log.Info().
			Int("clips", len(inputs)).
			Float64("transition_sec", plan.TransDur).
			Floats64("offsets", plan.Offsets).
			Msg("merging with crossfades")
		err := r.c.d.Encoder.Merge(ctx, ports.MergeRequest{
			Inputs:     inputs,
			Output:     staged,
			Graph:      plan.Graph(),
			VideoLabel: crossfade.VideoOut,
			AudioLabel: crossfade.AudioOut,
		})
		if err != nil {
			return 0, err
		}
	}
	if err := requireFile(staged); err != nil {
		return 0, err
	}
	if err := publish(staged, r.in.OutputPath); err != nil {
		return 0, err
	}
	return plan.Total, nil
}

// publish moves the finished file into place. A cross-device rename falls
// back to copy and remove.
func publish(staged, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.Rename(staged, dst); err == nil {
		return nil
	}
	tmp := dst + ".partial"
	if err := copyFile(staged, tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish output: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish output: %w", err)
	}
	return os.Remove(staged)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()
	_, err = io.Copy(out, in)
	return err
}
