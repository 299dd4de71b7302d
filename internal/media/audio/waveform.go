package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Waveform holds mono audio samples normalized to [-1, 1].
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the waveform length in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// RMS returns the root-mean-square level of the waveform.
func (w Waveform) RMS() float64 {
	if len(w.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range w.Samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(w.Samples)))
}

// ExtractOptions bounds a waveform extraction.
type ExtractOptions struct {
	SampleRate    int
	WindowSeconds int
	StartSeconds  float64
}

// Extract decodes the first audio stream of path into a mono waveform
// via ffmpeg. The window bound keeps correlation memory predictable on
// long recordings.
func Extract(ctx context.Context, binary, path string, opts ExtractOptions) (Waveform, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if opts.SampleRate <= 0 {
		return Waveform{}, fmt.Errorf("audio extract: invalid sample rate %d", opts.SampleRate)
	}

	args := []string{"-v", "error", "-nostdin"}
	if opts.StartSeconds > 0 {
		args = append(args, "-ss", strconv.FormatFloat(opts.StartSeconds, 'f', 3, 64))
	}
	args = append(args, "-i", path)
	if opts.WindowSeconds > 0 {
		args = append(args, "-t", strconv.Itoa(opts.WindowSeconds))
	}
	args = append(args,
		"-map", "0:a:0",
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(opts.SampleRate),
		"-f", "s16le",
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, binary, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	output, err := cmd.Output()
	if err != nil {
		return Waveform{}, fmt.Errorf("audio extract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return FromPCM16(output, opts.SampleRate), nil
}

// FromPCM16 converts little-endian signed 16-bit PCM into a waveform.
// A trailing odd byte is dropped.
func FromPCM16(payload []byte, sampleRate int) Waveform {
	count := len(payload) / 2
	samples := make([]float64, count)
	for i := 0; i < count; i++ {
		raw := int16(binary.LittleEndian.Uint16(payload[i*2:]))
		samples[i] = float64(raw) / 32768.0
	}
	return Waveform{Samples: samples, SampleRate: sampleRate}
}

// IsSilent reports whether the waveform carries no usable signal. A
// silent track cannot anchor a correlation, so callers fall back or
// fail alignment outright.
func (w Waveform) IsSilent() bool {
	return w.RMS() < 1e-4
}
