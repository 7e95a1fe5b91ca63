package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"murmur/internal/config"
	"murmur/internal/deps"
	"murmur/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server, dependency and storage status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			sections := []struct {
				title string
				lines []string
			}{
				{"Server", serverStatusLines(cmd.Context(), cfg, colorize)},
				{"Dependencies", dependencyStatusLines(cfg, colorize)},
				{"Model", modelStatusLines(cfg, colorize)},
				{"Storage", storageStatusLines(cmd.Context(), cfg, colorize)},
			}
			for i, section := range sections {
				if i > 0 {
					fmt.Fprintln(stdout)
				}
				for _, line := range renderSectionHeader(section.title, colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range section.lines {
					fmt.Fprintln(stdout, line)
				}
			}
			return nil
		},
	}
}

func serverStatusLines(ctx context.Context, cfg *config.Config, colorize bool) []string {
	probe := preflight.ProbeServer(ctx, cfg.Server.Bind)
	kind := statusOK
	if !probe.Running {
		kind = statusError
	}
	lines := []string{renderStatusLine("API", kind, probe.Summary(), colorize)}
	auth := "Disabled"
	if strings.TrimSpace(cfg.Server.Token) != "" {
		auth = "Bearer token"
	}
	lines = append(lines, renderStatusLine("Auth", statusInfo, auth, colorize))
	return lines
}

func dependencyStatusLines(cfg *config.Config, colorize bool) []string {
	statuses := preflight.CheckSystemDeps(cfg)
	lines := make([]string, 0, len(statuses)+1)
	for _, dep := range statuses {
		lines = append(lines, dependencyStatusLine(dep, colorize))
	}
	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, dep := range missing {
			names = append(names, dep.Name)
		}
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(names, ", "), colorize))
	}
	return lines
}

func dependencyStatusLine(dep deps.Status, colorize bool) string {
	if dep.Available {
		return renderStatusLine(dep.Name, statusOK, dep.Path, colorize)
	}
	kind := statusError
	detail := dep.Detail
	if dep.Optional {
		kind = statusWarn
		detail += " (optional)"
	}
	return renderStatusLine(dep.Name, kind, detail, colorize)
}

func modelStatusLines(cfg *config.Config, colorize bool) []string {
	lines := []string{resultStatusLine(preflight.CheckModelPath("Model", cfg.Transcription.ModelPath), colorize)}
	if strings.TrimSpace(cfg.Transcription.VADModelPath) != "" {
		lines = append(lines, resultStatusLine(preflight.CheckModelFile("VAD model", cfg.Transcription.VADModelPath), colorize))
	}
	lang := cfg.Transcription.Language
	if lang == "" {
		lang = "auto"
	}
	lines = append(lines, renderStatusLine("Language", statusInfo, lang, colorize))
	lines = append(lines, renderStatusLine("Chunking", statusInfo, yesNo(cfg.ChunkingEnabled()), colorize))
	return lines
}

func storageStatusLines(ctx context.Context, cfg *config.Config, colorize bool) []string {
	return []string{
		resultStatusLine(preflight.CheckDirectoryAccess("Data directory", cfg.Paths.DataDir), colorize),
		resultStatusLine(preflight.CheckDirectoryAccess("Log directory", cfg.Paths.LogDir), colorize),
		resultStatusLine(preflight.CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir), colorize),
		resultStatusLine(preflight.CheckDatabase(ctx, cfg), colorize),
	}
}

func resultStatusLine(result preflight.Result, colorize bool) string {
	if result.Passed {
		return renderStatusLine(result.Name, statusOK, result.Detail, colorize)
	}
	return renderStatusLine(result.Name, statusError, result.Detail, colorize)
}
