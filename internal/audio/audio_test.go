package audio

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestMSToSampleIndexFloors(t *testing.T) {
	tests := []struct {
		ms   uint64
		rate uint32
		want int
	}{
		{0, 16000, 0},
		{1, 16000, 16},
		{1000, 16000, 16000},
		{1, 44100, 44},
		{3, 44100, 132},
	}
	for _, tt := range tests {
		if got := MSToSampleIndex(tt.ms, tt.rate); got != tt.want {
			t.Errorf("MSToSampleIndex(%d, %d) = %d, want %d", tt.ms, tt.rate, got, tt.want)
		}
	}
}

func TestSamplesToMSFloors(t *testing.T) {
	if got := SamplesToMS(15999, 16000); got != 999 {
		t.Fatalf("SamplesToMS(15999) = %d, want 999", got)
	}
	if got := SamplesToMS(0, 16000); got != 0 {
		t.Fatalf("SamplesToMS(0) = %d, want 0", got)
	}
	if got := SamplesToMS(10, 0); got != 0 {
		t.Fatalf("SamplesToMS with zero rate = %d, want 0", got)
	}
}

func TestDurationUsesChannels(t *testing.T) {
	data := Data{Samples: make([]float32, 32000), SampleRate: 16000, Channels: 2}
	if got := data.DurationMS(); got != 1000 {
		t.Fatalf("DurationMS = %d, want 1000", got)
	}
	if got := data.Duration(); got != 1.0 {
		t.Fatalf("Duration = %v, want 1.0", got)
	}
}

func TestToMonoAveragesFrames(t *testing.T) {
	data := Data{Samples: []float32{1, 0, 0.5, 0.5, -1, 1}, SampleRate: 16000, Channels: 2}
	mono := data.ToMono()
	want := []float32{0.5, 0.5, 0}
	if mono.Channels != 1 || len(mono.Samples) != len(want) {
		t.Fatalf("unexpected mono shape: %+v", mono)
	}
	for i := range want {
		if mono.Samples[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, mono.Samples[i], want[i])
		}
	}
}

func TestRequireWhisperCompatible(t *testing.T) {
	if err := (Data{SampleRate: 16000, Channels: 1}).RequireWhisperCompatible(); err != nil {
		t.Fatalf("expected compatible audio, got %v", err)
	}
	if err := (Data{SampleRate: 44100, Channels: 1}).RequireWhisperCompatible(); !errors.Is(err, ErrSampleRate) {
		t.Fatalf("expected ErrSampleRate, got %v", err)
	}
	if err := (Data{SampleRate: 16000, Channels: 2}).RequireWhisperCompatible(); !errors.Is(err, ErrChannels) {
		t.Fatalf("expected ErrChannels, got %v", err)
	}
}

func TestSliceClampsToStream(t *testing.T) {
	samples := make([]float32, 1600)
	if got := Slice(samples, 16000, 50, 500); len(got) != 800 {
		t.Fatalf("expected slice clamped to 800 samples, got %d", len(got))
	}
	if got := Slice(samples, 16000, 200, 100); got != nil {
		t.Fatalf("expected nil for inverted range, got %d samples", len(got))
	}
}

func TestWAVRoundTrip(t *testing.T) {
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := WriteWAVFile(path, Data{Samples: samples, SampleRate: 16000, Channels: 1}); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}
	decoded, err := ReadWAVFile(path)
	if err != nil {
		t.Fatalf("ReadWAVFile: %v", err)
	}
	if !decoded.IsWhisperCompatible() {
		t.Fatalf("expected 16 kHz mono, got %d Hz %d ch", decoded.SampleRate, decoded.Channels)
	}
	if len(decoded.Samples) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(decoded.Samples), len(samples))
	}
	for i := range samples {
		if math.Abs(float64(decoded.Samples[i]-samples[i])) > 0.001 {
			t.Fatalf("sample %d = %v, want ~%v", i, decoded.Samples[i], samples[i])
		}
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("definitely not riff"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadWAVFile(path); err == nil {
		t.Fatal("expected error for invalid wav")
	}
	if _, err := ReadWAV(bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error for empty stream")
	}
}

func TestIsWAVPath(t *testing.T) {
	if !IsWAVPath("/tmp/Audio.WAV") {
		t.Fatal("expected uppercase extension to match")
	}
	if IsWAVPath("/tmp/audio.mp3") {
		t.Fatal("expected mp3 to be rejected")
	}
}

func TestWaveformDownsamples(t *testing.T) {
	samples := make([]float32, 16000)
	for i := range samples {
		samples[i] = 1
	}
	data := Data{Samples: samples, SampleRate: 16000, Channels: 1}
	previews := Waveform(data, []Window{{0, 1000}, {500, 500}, {0, 5}}, 100)
	if len(previews) != 3 {
		t.Fatalf("expected 3 previews, got %d", len(previews))
	}
	if len(previews[0]) != 100 {
		t.Errorf("expected 100 preview points, got %d", len(previews[0]))
	}
	for _, v := range previews[0] {
		if v != 1 {
			t.Fatalf("expected averaged value 1, got %v", v)
		}
	}
	if previews[1] != nil {
		t.Errorf("expected nil preview for empty window")
	}
	if len(previews[2]) != 80 {
		t.Errorf("expected short window copied verbatim, got %d points", len(previews[2]))
	}
}
