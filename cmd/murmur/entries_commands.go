package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"murmur/internal/store"
	"murmur/internal/subtitles"
)

func newEntriesCommand(ctx *commandContext) *cobra.Command {
	entriesCmd := &cobra.Command{
		Use:     "entries",
		Aliases: []string{"entry"},
		Short:   "Inspect stored transcripts",
	}

	entriesCmd.AddCommand(newEntriesListCommand(ctx))
	entriesCmd.AddCommand(newEntriesShowCommand(ctx))
	entriesCmd.AddCommand(newEntriesExportCommand(ctx))
	entriesCmd.AddCommand(newEntriesDeleteCommand(ctx))

	return entriesCmd
}

func newEntriesListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				entries, err := st.List(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					if entries == nil {
						entries = []*store.Entry{}
					}
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No stored transcripts")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						entry.ID,
						sourceLabel(entry.SourcePath),
						entry.Language,
						formatDurationMS(entry.DurationMS()),
						strconv.Itoa(len(entry.Subtitles)),
						humanize.Time(entry.CreatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Source", "Lang", "Duration", "Cues", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func newEntriesShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a stored transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				entry, err := st.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, entry)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:         %s\n", entry.ID)
				fmt.Fprintf(out, "Source:     %s\n", entry.SourcePath)
				fmt.Fprintf(out, "Model:      %s\n", entry.Model)
				fmt.Fprintf(out, "Language:   %s\n", entry.Language)
				fmt.Fprintf(out, "Duration:   %s\n", formatDurationMS(entry.DurationMS()))
				fmt.Fprintf(out, "Confidence: %.2f\n", entry.Result.AverageConfidence())
				fmt.Fprintf(out, "Created:    %s (%s)\n", entry.CreatedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(entry.CreatedAt))
				fmt.Fprintf(out, "Updated:    %s\n", humanize.Time(entry.UpdatedAt))
				if len(entry.Subtitles) == 0 {
					fmt.Fprintln(out, "No subtitles")
					return nil
				}
				rows := make([][]string, 0, len(entry.Subtitles))
				for _, sub := range entry.Subtitles {
					rows = append(rows, []string{
						strconv.Itoa(sub.Index),
						subtitles.FormatSRT(sub.StartMS),
						subtitles.FormatSRT(sub.EndMS),
						sub.Text,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Start", "End", "Text"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

func newEntriesExportCommand(ctx *commandContext) *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export the subtitles of a stored transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := resolveFormat(format, output)
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				entry, err := st.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return emitSubtitles(cmd, output, outFormat, entry.Subtitles)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (\"-\" or empty for stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: srt, vtt or txt")
	return cmd
}

func newEntriesDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored transcript",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				if err := st.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func sourceLabel(path string) string {
	if path == "" {
		return "-"
	}
	return filepath.Base(path)
}
