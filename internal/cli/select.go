package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/reelcut/internal/logging"
	"github.com/forPelevin/reelcut/internal/pipeline"
	"github.com/forPelevin/reelcut/internal/ports/adapters/openrouter"
)

func newSelectCmd(a *app) *cobra.Command {
	var (
		out     string
		model   string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "select <subtitle-file>",
		Short: "Ask the LLM for a highlight passage and write <base>.short.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			or := a.cfg.OpenRouter
			if or.APIKey == "" {
				return errors.New("OPENROUTER_API_KEY is required (set it in .env)")
			}
			if err := openrouter.ValidateBaseURL(or.BaseURL, or.AllowedHosts); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if model != "" {
				or.Model = model
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			sel := openrouter.New(logging.Component(a.log, "openrouter"), or.APIKey, or.Model, or.BaseURL)
			path, segs, err := pipeline.Select(ctx, pipeline.SelectConfig{
				SubtitlePath: args[0],
				OutputPath:   out,
				Selector:     sel,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d segments)\n", path, len(segs))
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output path (default <base>.short.json)")
	cmd.Flags().StringVar(&model, "model", "", "OpenRouter model, overrides OPENROUTER_MODEL")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Abort the request after this long")
	return cmd
}
