package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"murmur/internal/logging"
	"murmur/internal/subtitles"
	"murmur/internal/vad"
)

func newTrimCommand(ctx *commandContext) *cobra.Command {
	var (
		output string
		format string
		factor float64
	)

	cmd := &cobra.Command{
		Use:   "trim <audio> <subtitles>",
		Short: "Tighten subtitle timestamps to the speech they cover",
		Long: `Tighten subtitle timestamps to the speech they cover.

Leading and trailing silence is trimmed from every cue using an energy
threshold derived from the cue's own loudness. Cues with malformed timestamps
are reported and kept unchanged.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			outFormat, err := resolveFormat(format, output)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("factor") {
				factor = cfg.Trim.AdaptiveFactor
			}
			list, err := subtitles.ReadFile(args[1])
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			loaded, err := ctx.loadAudio(cmd.Context(), logger, args[0], "")
			if err != nil {
				return err
			}

			progress := newProgressReporter(cmd, logger, "trim", "trimming")
			entries, status, entryErrs, err := subtitles.OptimizeTimestamps(
				cmd.Context(), loaded.Data, subtitles.ToEntries(list), float32(factor), progress.update)
			progress.finish()
			if err != nil {
				return err
			}
			if status == vad.StatusCancelled {
				return cmd.Context().Err()
			}
			for _, entryErr := range entryErrs {
				logging.WarnWithContext(logger, "subtitle left untrimmed", "trim_entry_skipped",
					logging.Int("index", entryErr.Index+1),
					logging.Error(entryErr.Err),
					logging.String(logging.FieldImpact, "cue keeps its original timestamps"),
				)
			}

			trimmed, _ := subtitles.ToSubtitles(entries)
			fmt.Fprintf(cmd.ErrOrStderr(), "Trimmed %d of %d subtitles\n", len(list)-len(entryErrs), len(list))
			return emitSubtitles(cmd, output, outFormat, trimmed)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (\"-\" or empty for stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: srt, vtt or txt")
	cmd.Flags().Float64Var(&factor, "factor", 0, "Adaptive threshold factor (defaults to trim.adaptive_factor)")
	return cmd
}

func newSplitCommand(ctx *commandContext) *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "split <subtitles> <index>",
		Short: "Split one subtitle into two at the best word boundary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid subtitle index %q: %w", args[1], err)
			}
			outFormat, err := resolveFormat(format, output)
			if err != nil {
				return err
			}
			list, err := subtitles.ReadFile(args[0])
			if err != nil {
				return err
			}
			updated, ok, err := list.Split(index - 1)
			if err != nil {
				return fmt.Errorf("split subtitle %d: %w", index, err)
			}
			if !ok {
				return fmt.Errorf("subtitle %d cannot be split", index)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Split subtitle %d\n", index)
			return emitSubtitles(cmd, output, outFormat, updated)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (\"-\" or empty for stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: srt, vtt or txt")
	return cmd
}
