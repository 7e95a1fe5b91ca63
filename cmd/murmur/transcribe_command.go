package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"murmur/internal/jobs"
	"murmur/internal/language"
	"murmur/internal/logging"
	"murmur/internal/store"
	"murmur/internal/subtitles"
	"murmur/internal/transcription"
)

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var (
		lang      string
		output    string
		format    string
		translate bool
		noStore   bool
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "transcribe <media>",
		Short: "Transcribe a media file into subtitles",
		Long: `Transcribe a media file into subtitles.

Non-WAV input is converted with ffmpeg first. The transcript is stored in the
local database unless --no-store is set, and a stored transcript for the same
audio and model is reused unless --force is set. Subtitles go to stdout when
--output is empty or "-".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if lang != "" && !language.Valid(lang) {
				return fmt.Errorf("unknown language %q", lang)
			}
			outFormat, err := resolveFormat(format, output)
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			source := args[0]
			var st *store.Store
			var fingerprint string
			if !noStore {
				st, err = ctx.openStore()
				if err != nil {
					return err
				}
				defer st.Close()
				fingerprint, err = store.FingerprintFile(source)
				if err != nil {
					return err
				}
			}

			model := jobs.ModelName(cfg.Transcription.ModelPath)
			if st != nil && !force {
				lookup := lang
				if lookup == language.Auto {
					lookup = ""
				}
				entry, err := st.FindByFingerprint(cmd.Context(), fingerprint, model, lookup)
				if err != nil {
					logging.WarnWithContext(logger, "transcript cache lookup failed", "cache_lookup_failed",
						logging.Error(err),
						logging.String(logging.FieldImpact, "audio is transcribed again"),
					)
				}
				if entry != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Reusing stored transcript %s\n", entry.ID)
					return emitSubtitles(cmd, output, outFormat, entry.Subtitles)
				}
			}

			loaded, err := ctx.loadAudio(cmd.Context(), logger, source, lang)
			if err != nil {
				return err
			}
			if loaded.Converted {
				fmt.Fprintf(cmd.ErrOrStderr(), "Converted %s (%s)\n", filepath.Base(source), loaded.Selection.PrimaryLabel())
			}

			runCfg := *cfg
			runCfg.Transcription.Translate = runCfg.Transcription.Translate || translate
			engine, err := newEngine(&runCfg, logger)
			if err != nil {
				return err
			}
			defer engine.Close()
			if lang != "" {
				engine, err = engine.ForLanguage(lang)
				if err != nil {
					return err
				}
			}

			progress := newProgressReporter(cmd, logger, "transcription", "transcribing")
			result, err := engine.Transcribe(cmd.Context(), loaded.Data, transcription.ObserverFuncs{Progress: progress.update})
			progress.finish()
			if err != nil {
				return fmt.Errorf("transcribe %s: %w", source, err)
			}

			final, list := jobs.PostProcess(cfg, logger, *result)
			if st != nil {
				entryLang := engine.Config().Language
				if entryLang == "" {
					entryLang = final.Language
				}
				entry := &store.Entry{
					SourcePath:  source,
					Fingerprint: fingerprint,
					Model:       model,
					Language:    entryLang,
					Result:      final,
					Subtitles:   list,
				}
				if err := st.Create(cmd.Context(), entry); err != nil {
					return fmt.Errorf("store transcript: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Stored transcript %s\n", entry.ID)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Transcribed %s of audio in %s (%d segments, %.2fx real time)\n",
				formatDurationMS(final.AudioDurationMS),
				final.ProcessingTime().Round(10*time.Millisecond),
				len(final.Segments),
				final.RealTimeFactor(),
			)
			return emitSubtitles(cmd, output, outFormat, list)
		},
	}

	cmd.Flags().StringVarP(&lang, "language", "l", "", "Spoken language (ISO code or \"auto\"); defaults to transcription.language")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Subtitle output path (\"-\" or empty for stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Subtitle format: srt, vtt or txt (defaults to the output extension, then srt)")
	cmd.Flags().BoolVar(&translate, "translate", false, "Translate speech to English")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not read or write the transcript database")
	cmd.Flags().BoolVar(&force, "force", false, "Transcribe again even when a stored transcript exists")
	return cmd
}

// resolveFormat picks the subtitle format from the flag, then the output
// extension, then SRT.
func resolveFormat(flag, output string) (subtitles.Format, error) {
	if flag = strings.TrimSpace(flag); flag != "" {
		return subtitles.ParseFormat(flag)
	}
	if output != "" && output != "-" {
		if format, err := subtitles.FormatFromPath(output); err == nil {
			return format, nil
		}
	}
	return subtitles.SRT, nil
}

func emitSubtitles(cmd *cobra.Command, output string, format subtitles.Format, list subtitles.List) error {
	if output == "" || output == "-" {
		body, err := subtitles.Encode(format, list)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), body)
		return err
	}
	if err := subtitles.WriteFile(output, format, list); err != nil {
		return fmt.Errorf("write subtitles: %w", err)
	}
	info, err := os.Stat(output)
	if err == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d subtitles to %s (%s)\n", len(list), output, humanize.IBytes(uint64(info.Size())))
	}
	return nil
}

func formatDurationMS(ms uint64) string {
	return (time.Duration(ms) * time.Millisecond).Round(time.Millisecond).String()
}
