package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/forPelevin/reelcut/internal/domain/crossfade"
	"github.com/forPelevin/reelcut/internal/pipeline"
)

// newSegmentsCmd parses and validates a segment source without touching
// any media.
func newSegmentsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "segments <file>",
		Short: "Validate a selector JSON or SRT file and print the planned reel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			segs, err := pipeline.LoadSegments(args[0])
			if err != nil {
				return err
			}
			a.log.Debug().Str("file", args[0]).Int("segments", len(segs)).Msg("segments loaded")

			durations := make([]float64, len(segs))
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tSTART\tEND\tDUR\tWORDS\tTEXT")
			for i, s := range segs {
				durations[i] = s.Duration()
				fmt.Fprintf(tw, "%d\t%.2f\t%.2f\t%.2f\t%d\t%s\n", i+1, s.Start, s.End, s.Duration(), len(s.Words), clip(s.Text, 48))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			plan, err := crossfade.NewPlan(durations)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reel: %d clips, transition %.3fs, ~%.2fs total\n", len(segs), plan.TransDur, plan.Total)
			return nil
		},
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
