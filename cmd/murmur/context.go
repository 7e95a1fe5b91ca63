package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"murmur/internal/config"
	"murmur/internal/logging"
	"murmur/internal/media/ffmpeg"
	"murmur/internal/services/whisperx"
	"murmur/internal/store"
	"murmur/internal/transcription"
)

// newModelLoader builds the inference backend for commands that transcribe.
// Tests swap it for an in-process model.
var newModelLoader = func(cfg *config.Config, logger *slog.Logger) transcription.Loader {
	return whisperx.NewLoader(whisperx.ConfigFromSettings(cfg), whisperx.WithLogger(logger))
}

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.TrimSpace(*c.logLevelFlag); level != "" {
				cfg.Logging.Level = strings.ToLower(level)
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// logger returns a logger writing to stderr and the murmur log file.
func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

func (c *commandContext) openStore() (*store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func (c *commandContext) withStore(fn func(*store.Store) error) error {
	st, err := c.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

// loadAudio returns engine-ready samples for path, converting through
// ffmpeg when it is not already a compatible WAV file.
func (c *commandContext) loadAudio(ctx context.Context, logger *slog.Logger, path, language string) (ffmpeg.Result, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return ffmpeg.Result{}, err
	}
	conv := ffmpeg.NewConverter(cfg.FFmpegBinary(), cfg.FFprobeBinary(), ffmpeg.WithLogger(logger))
	return conv.Load(ctx, path, cfg.Paths.WorkDir, language)
}

func newEngine(cfg *config.Config, logger *slog.Logger) (*transcription.Engine, error) {
	engine, err := transcription.New(transcription.FromSettings(cfg), newModelLoader(cfg, logger), logger)
	if err != nil {
		return nil, fmt.Errorf("start transcription engine: %w", err)
	}
	return engine, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
