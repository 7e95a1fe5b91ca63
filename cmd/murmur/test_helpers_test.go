package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"murmur/internal/config"
	"murmur/internal/testsupport"
	"murmur/internal/transcription"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	opts = append([]testsupport.ConfigOption{
		testsupport.WithModelFile(),
		testsupport.WithChunking(0, 0),
		testsupport.WithStubbedBinaries(),
	}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	configPath := filepath.Join(base, "murmur.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := config.Encode(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// scriptedModel returns the same segments from every session.
type scriptedModel struct {
	mu       sync.Mutex
	segments []transcription.RawSegment
	runs     int
}

func (m *scriptedModel) NewSession() (transcription.Session, error) {
	return &scriptedSession{model: m}, nil
}

func (m *scriptedModel) Close() error { return nil }

func (m *scriptedModel) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

type scriptedSession struct {
	model *scriptedModel
}

func (s *scriptedSession) Run(_ context.Context, _ []float32, _ transcription.Params, hooks transcription.Hooks) ([]transcription.RawSegment, error) {
	s.model.mu.Lock()
	s.model.runs++
	s.model.mu.Unlock()
	if hooks.Progress != nil {
		hooks.Progress(100)
	}
	return s.model.segments, nil
}

func (s *scriptedSession) Close() error { return nil }

func (s *scriptedSession) DetectedLanguage() string { return "en" }

// useModel routes engine construction to model for the rest of the test.
func useModel(t *testing.T, model transcription.Model) {
	t.Helper()
	previous := newModelLoader
	newModelLoader = func(*config.Config, *slog.Logger) transcription.Loader {
		return func(transcription.Config) (transcription.Model, error) { return model, nil }
	}
	t.Cleanup(func() { newModelLoader = previous })
}
