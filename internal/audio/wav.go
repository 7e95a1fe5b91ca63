package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// ErrNotWAV reports a file that is not a decodable RIFF/WAVE stream.
var ErrNotWAV = errors.New("not a valid wav file")

// IsWAVPath reports whether the path carries a .wav extension.
func IsWAVPath(path string) bool {
	return strings.EqualFold(filepath.Ext(strings.TrimSpace(path)), ".wav")
}

// ReadWAVFile decodes a PCM WAV file.
func ReadWAVFile(path string) (Data, error) {
	file, err := os.Open(path)
	if err != nil {
		return Data{}, fmt.Errorf("open wav: %w", err)
	}
	defer file.Close()
	data, err := ReadWAV(file)
	if err != nil {
		return Data{}, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// ReadWAV decodes a PCM WAV stream into normalized float samples.
func ReadWAV(r io.ReadSeeker) (Data, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return Data{}, ErrNotWAV
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Data{}, fmt.Errorf("decode pcm: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return Data{}, ErrNotWAV
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(decoder.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return Data{}, fmt.Errorf("decode pcm: unsupported bit depth %d", bitDepth)
	}
	scale := float32(uint64(1) << uint(bitDepth-1))
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}
	return Data{
		Samples:    samples,
		SampleRate: uint32(buf.Format.SampleRate),
		Channels:   uint16(buf.Format.NumChannels),
	}, nil
}

// WriteWAVFile encodes samples as 16-bit PCM WAV at path.
func WriteWAVFile(path string, data Data) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure wav dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if err := WriteWAV(file, data); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

// WriteWAV encodes samples as 16-bit PCM. Samples outside [-1, 1] are clipped.
func WriteWAV(w io.WriteSeeker, data Data) error {
	channels := int(data.Channels)
	if channels <= 0 {
		channels = 1
	}
	if data.SampleRate == 0 {
		return fmt.Errorf("encode pcm: sample rate required")
	}
	ints := make([]int, len(data.Samples))
	for i, s := range data.Samples {
		ints[i] = int(clip(s) * 32767)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: int(data.SampleRate)},
		Data:           ints,
		SourceBitDepth: 16,
	}
	encoder := wav.NewEncoder(w, int(data.SampleRate), 16, channels, wavFormatPCM)
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("encode pcm: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

func clip(v float32) float32 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}
