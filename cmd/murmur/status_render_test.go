package main

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"murmur/internal/logging"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("API", statusError, "not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "API:", "[ERROR] not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("API", statusOK, "ok", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestRenderStatusLineWithoutMessage(t *testing.T) {
	got := renderStatusLine("Auth", statusInfo, "  ", false)
	if !strings.HasSuffix(got, "[INFO]") {
		t.Fatalf("expected bare badge, got %q", got)
	}
}

func TestRenderTableAlignsColumns(t *testing.T) {
	out := renderTable([]string{"#", "Text"}, [][]string{{"1", "hello"}, {"10"}}, []columnAlignment{alignRight, alignLeft})
	for _, want := range []string{"#", "Text", "hello", "10"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty table without headers")
	}
}

func TestParseWindows(t *testing.T) {
	got, err := parseWindows([]string{"0-500", " 1000 - 2000 "})
	if err != nil {
		t.Fatalf("parseWindows: %v", err)
	}
	if len(got) != 2 || got[1].StartMS != 1000 || got[1].EndMS != 2000 {
		t.Fatalf("unexpected windows: %+v", got)
	}
	for _, bad := range []string{"500", "a-b", "10-5"} {
		if _, err := parseWindows([]string{bad}); err == nil {
			t.Fatalf("expected %q to fail", bad)
		}
	}
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		flag, output string
		want         string
	}{
		{"", "", "srt"},
		{"", "-", "srt"},
		{"", "out.vtt", "vtt"},
		{"txt", "out.vtt", "txt"},
		{"", "out.unknown", "srt"},
	}
	for _, tt := range tests {
		got, err := resolveFormat(tt.flag, tt.output)
		if err != nil {
			t.Fatalf("resolveFormat(%q, %q): %v", tt.flag, tt.output, err)
		}
		if string(got) != tt.want {
			t.Fatalf("resolveFormat(%q, %q) = %q, want %q", tt.flag, tt.output, got, tt.want)
		}
	}
	if _, err := resolveFormat("ass", ""); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestFormatLogEvent(t *testing.T) {
	evt := logging.LogEvent{
		Timestamp: time.Date(2026, 3, 1, 12, 30, 0, 0, time.Local),
		Level:     "warn",
		Component: "jobs",
		JobID:     "abc",
		Message:   "chunk retried",
		Details:   []logging.DetailField{{Label: "Chunk", Value: "3"}, {Label: "", Value: "x"}},
	}
	got := formatLogEvent(evt)
	want := "2026-03-01 12:30:00 WARN [jobs] job abc: chunk retried\n    - Chunk: 3"
	if got != want {
		t.Fatalf("formatLogEvent = %q, want %q", got, want)
	}
}
