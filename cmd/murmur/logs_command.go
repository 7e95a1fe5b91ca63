package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"murmur/internal/logging"
	"murmur/internal/logs"
	"murmur/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow  bool
		lines   int
		filters logstream.Filters
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display server logs",
		Long: `Display server logs.

Events come from the running server's /v1/logs endpoint. When no server is
reachable the local log file is tailed instead; filters need a server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := logs.NewStreamClient(cfg.Server.Bind, cfg.Server.Token)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printed, err := logstream.Stream(cmd.Context(), client, cfg.LogPath(),
				logstream.Options{Lines: lines, Follow: follow, Filters: filters},
				func(evt logging.LogEvent) { fmt.Fprintln(out, formatLogEvent(evt)) },
				func(line string) { fmt.Fprintln(out, line) },
			)
			if err != nil {
				return err
			}
			if !printed && !follow {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&filters.JobID, "job", "", "Only show events for this job")
	cmd.Flags().StringVar(&filters.Component, "component", "", "Only show events from this component")
	cmd.Flags().StringVar(&filters.Level, "level", "", "Minimum level (debug, info, warn, error)")
	return cmd
}

func formatLogEvent(evt logging.LogEvent) string {
	level := strings.ToUpper(strings.TrimSpace(evt.Level))
	if level == "" {
		level = "INFO"
	}
	parts := []string{evt.Timestamp.Local().Format("2006-01-02 15:04:05"), level}
	if component := strings.TrimSpace(evt.Component); component != "" {
		parts = append(parts, "["+component+"]")
	}
	if job := strings.TrimSpace(evt.JobID); job != "" {
		parts = append(parts, "job "+job)
	}
	line := strings.Join(parts, " ")
	if message := strings.TrimSpace(evt.Message); message != "" {
		line += ": " + message
	}

	var b strings.Builder
	b.WriteString(line)
	for _, detail := range evt.Details {
		if strings.TrimSpace(detail.Label) == "" || strings.TrimSpace(detail.Value) == "" {
			continue
		}
		fmt.Fprintf(&b, "\n    - %s: %s", detail.Label, detail.Value)
	}
	return b.String()
}
