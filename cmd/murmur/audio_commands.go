package main

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"murmur/internal/audio"
	"murmur/internal/media/ffmpeg"
	"murmur/internal/subtitles"
	"murmur/internal/vad"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "convert <media> <output.wav>",
		Short: "Extract the speech track as 16 kHz mono WAV",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			conv := ffmpeg.NewConverter(cfg.FFmpegBinary(), cfg.FFprobeBinary(), ffmpeg.WithLogger(logger))
			result, err := conv.ConvertToWhisperWAV(cmd.Context(), args[0], args[1], lang)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, stream %s)\n",
				result.Path,
				formatDurationMS(result.Data.DurationMS()),
				result.Selection.PrimaryLabel(),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&lang, "language", "l", "", "Preferred audio stream language")
	return cmd
}

type vadReport struct {
	Source            string     `json:"source"`
	DurationMS        uint64     `json:"duration_ms"`
	Threshold         float32    `json:"threshold"`
	LeadingSilenceMS  uint64     `json:"leading_silence_ms"`
	TrailingSilenceMS uint64     `json:"trailing_silence_ms"`
	Segments          []vad.Span `json:"segments"`
}

func newVADCommand(ctx *commandContext) *cobra.Command {
	var (
		threshold float32
		frameMS   uint64
		shiftMS   uint64
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "vad <audio>",
		Short: "Detect speech segments with the energy detector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			loaded, err := ctx.loadAudio(cmd.Context(), logger, args[0], "")
			if err != nil {
				return err
			}
			data := loaded.Data
			detector := vad.New(data.SampleRate)
			if cmd.Flags().Changed("threshold") {
				detector = detector.WithThreshold(threshold)
			}
			if cmd.Flags().Changed("frame-ms") {
				detector = detector.WithFrameSizeMS(frameMS)
			}
			if cmd.Flags().Changed("shift-ms") {
				detector = detector.WithFrameShiftMS(shiftMS)
			}

			report := vadReport{
				Source:            args[0],
				DurationMS:        data.DurationMS(),
				Threshold:         detector.Threshold,
				LeadingSilenceMS:  detector.DetectLeadingSilenceMS(data.Samples),
				TrailingSilenceMS: detector.DetectTrailingSilenceMS(data.Samples),
				Segments:          detector.DetectActiveSegments(data.Samples),
			}
			if report.Segments == nil {
				report.Segments = []vad.Span{}
			}
			if asJSON {
				return writeJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Source:           %s\n", filepath.Base(report.Source))
			fmt.Fprintf(out, "Duration:         %s\n", formatDurationMS(report.DurationMS))
			fmt.Fprintf(out, "Leading silence:  %s\n", formatDurationMS(report.LeadingSilenceMS))
			fmt.Fprintf(out, "Trailing silence: %s\n", formatDurationMS(report.TrailingSilenceMS))
			if len(report.Segments) == 0 {
				fmt.Fprintln(out, "No speech detected")
				return nil
			}
			rows := make([][]string, 0, len(report.Segments))
			for i, span := range report.Segments {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					subtitles.FormatSRT(span.StartMS),
					subtitles.FormatSRT(span.EndMS),
					formatDurationMS(span.EndMS - span.StartMS),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Start", "End", "Length"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().Float32Var(&threshold, "threshold", 0, "RMS threshold separating speech from silence")
	cmd.Flags().Uint64Var(&frameMS, "frame-ms", 0, "Analysis frame length in milliseconds")
	cmd.Flags().Uint64Var(&shiftMS, "shift-ms", 0, "Frame hop in milliseconds")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

type rmsReport struct {
	Source     string  `json:"source"`
	DurationMS uint64  `json:"duration_ms"`
	RMS        float32 `json:"rms"`
	DBFS       float64 `json:"dbfs"`
}

func newRMSCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  time.Duration
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "rms <audio>",
		Short: "Measure the loudness of the opening of a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			loaded, err := ctx.loadAudio(cmd.Context(), logger, args[0], "")
			if err != nil {
				return err
			}
			rms := vad.EstimateRMS(loaded.Data, limit)
			report := rmsReport{
				Source:     args[0],
				DurationMS: loaded.Data.DurationMS(),
				RMS:        rms,
				DBFS:       dbfs(rms),
			}
			if asJSON {
				return writeJSON(cmd, report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "RMS %.6f (%s dBFS)\n", report.RMS, humanize.FtoaWithDigits(report.DBFS, 1))
			return nil
		},
	}

	cmd.Flags().DurationVar(&limit, "limit", 30*time.Second, "Measure at most this much audio (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	return cmd
}

// silenceFloorDBFS is reported for digital silence.
const silenceFloorDBFS = -120.0

func dbfs(rms float32) float64 {
	if rms <= 0 {
		return silenceFloorDBFS
	}
	return max(20*math.Log10(float64(rms)), silenceFloorDBFS)
}

type waveformWindow struct {
	StartMS uint64    `json:"start_ms"`
	EndMS   uint64    `json:"end_ms"`
	Samples []float32 `json:"samples"`
}

func newWaveformCommand(ctx *commandContext) *cobra.Command {
	var (
		windows    []string
		subsPath   string
		maxSamples int
	)

	cmd := &cobra.Command{
		Use:   "waveform <audio>",
		Short: "Print downsampled waveform previews as JSON",
		Long: `Print downsampled waveform previews as JSON.

Windows come from --window START-END (milliseconds, repeatable) or from the
cues of --subtitles. Without either the whole recording is one window.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spans, err := parseWindows(windows)
			if err != nil {
				return err
			}
			if subsPath != "" {
				list, err := subtitles.ReadFile(subsPath)
				if err != nil {
					return err
				}
				for _, sub := range list {
					spans = append(spans, audio.Window{StartMS: sub.StartMS, EndMS: sub.EndMS})
				}
			}

			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			loaded, err := ctx.loadAudio(cmd.Context(), logger, args[0], "")
			if err != nil {
				return err
			}
			if len(spans) == 0 {
				spans = []audio.Window{{StartMS: 0, EndMS: loaded.Data.DurationMS()}}
			}

			previews := audio.Waveform(loaded.Data, spans, maxSamples)
			out := make([]waveformWindow, 0, len(spans))
			for i, span := range spans {
				samples := previews[i]
				if samples == nil {
					samples = []float32{}
				}
				out = append(out, waveformWindow{StartMS: span.StartMS, EndMS: span.EndMS, Samples: samples})
			}
			return writeJSON(cmd, out)
		},
	}

	cmd.Flags().StringArrayVarP(&windows, "window", "w", nil, "Window as START-END in milliseconds")
	cmd.Flags().StringVarP(&subsPath, "subtitles", "s", "", "Use the cues of this SRT or WebVTT file as windows")
	cmd.Flags().IntVar(&maxSamples, "samples", 200, "Maximum samples per window (0 keeps every sample)")
	return cmd
}

func parseWindows(values []string) ([]audio.Window, error) {
	out := make([]audio.Window, 0, len(values))
	for _, value := range values {
		startRaw, endRaw, ok := strings.Cut(strings.TrimSpace(value), "-")
		if !ok {
			return nil, fmt.Errorf("invalid window %q: expected START-END", value)
		}
		start, err := strconv.ParseUint(strings.TrimSpace(startRaw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid window start %q: %w", startRaw, err)
		}
		end, err := strconv.ParseUint(strings.TrimSpace(endRaw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid window end %q: %w", endRaw, err)
		}
		if end < start {
			return nil, fmt.Errorf("invalid window %q: end before start", value)
		}
		out = append(out, audio.Window{StartMS: start, EndMS: end})
	}
	return out, nil
}
