package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/reelcut/internal/logging"
	"github.com/forPelevin/reelcut/internal/pipeline"
	"github.com/forPelevin/reelcut/internal/types"
)

type assembleFlags struct {
	segments string
	srt      string
	out      string
	workDir  string
	workers  int
	keepWork bool
	timeout  time.Duration
	asJSON   bool
}

func newAssembleCmd(a *app) *cobra.Command {
	var f assembleFlags
	cmd := &cobra.Command{
		Use:   "assemble <video>",
		Short: "Cut, caption, crop and crossfade the selected segments into one clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.assemble(cmd, f, args[0])
		},
	}

	cmd.Flags().StringVar(&f.segments, "segments", "", "Selector JSON with the segments to keep")
	cmd.Flags().StringVar(&f.srt, "srt", "", "SRT or VTT file whose cues are the segments")
	cmd.Flags().StringVar(&f.out, "out", "", "Output path (default <dir>/<stem>_processed<ext>)")
	cmd.Flags().StringVar(&f.workDir, "work-dir", "", "Root for per-run working directories")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Parallel clip extractions")
	cmd.Flags().BoolVar(&f.keepWork, "keep-work", false, "Keep the run directory after success")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 3*time.Hour, "Abort the run after this long")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func (a *app) assemble(cmd *cobra.Command, f assembleFlags, input string) error {
	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	cfg := pipeline.Config{
		InputVideo:   absIn,
		SegmentsPath: f.segments,
		SubtitlePath: f.srt,
		OutputPath:   f.out,
		WorkRoot:     a.cfg.WorkDir,
		Workers:      a.cfg.Workers,
		KeepWorkDir:  a.cfg.KeepWorkDir || f.keepWork,
		FFmpegPath:   a.cfg.FFmpeg.FFmpegPath,
		FFprobePath:  a.cfg.FFmpeg.FFprobePath,
		FontsDir:     a.cfg.FFmpeg.FontsDir,
		Profile:      a.cfg.Encode,
		Style:        a.cfg.Captions,
		Logger:       logging.Component(a.log, "cli"),
	}
	if f.workDir != "" {
		cfg.WorkRoot = f.workDir
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = f.workers
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	res, err := pipeline.Run(ctx, cfg)
	if err != nil {
		return err
	}
	return printResult(cmd, res, f.asJSON)
}

func printResult(cmd *cobra.Command, res types.AssemblyResult, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprintf(out, "%s (%.2fs from %d clips)\n", res.OutputPath, res.Duration, len(res.Clips))
	return nil
}
