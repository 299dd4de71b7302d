package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpegSource decodes a video file into raw RGBA frames by piping
// ffmpeg rawvideo output. The caller supplies the frame dimensions,
// typically from an ffprobe inspection.
type FFmpegSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
	width  int
	height int
	buf    []byte
	done   bool
}

// NewFFmpegSource starts an ffmpeg decode of path at the given
// dimensions. The process runs until the stream ends or Close is
// called.
func NewFFmpegSource(ctx context.Context, binary, path string, width, height int) (*FFmpegSource, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ffmpeg source: invalid dimensions %dx%d", width, height)
	}

	args := []string{
		"-v", "error",
		"-nostdin",
		"-i", path,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg source: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg source: start %s: %w", path, err)
	}
	return &FFmpegSource{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		width:  width,
		height: height,
		buf:    make([]byte, width*height*3),
	}, nil
}

// Next implements Source. Frames arrive as packed rgb24 and are
// expanded into RGBA with full alpha.
func (s *FFmpegSource) Next() (*image.RGBA, error) {
	if s.done {
		return nil, io.EOF
	}
	_, err := io.ReadFull(s.stdout, s.buf)
	if err == io.EOF {
		s.done = true
		if waitErr := s.cmd.Wait(); waitErr != nil {
			return nil, fmt.Errorf("ffmpeg source: decode failed: %w: %s", waitErr, strings.TrimSpace(s.stderr.String()))
		}
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("ffmpeg source: truncated frame: %w", err)
	}

	frame := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	src := s.buf
	dst := frame.Pix
	for i, j := 0, 0; i < len(src); i, j = i+3, j+4 {
		dst[j] = src[i]
		dst[j+1] = src[i+1]
		dst[j+2] = src[i+2]
		dst[j+3] = 0xFF
	}
	return frame, nil
}

// Close terminates the decode if still running.
func (s *FFmpegSource) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	s.stdout.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	return nil
}

// FFmpegSink encodes raw RGBA frames into a video file by piping
// rawvideo into ffmpeg.
type FFmpegSink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	width  int
	height int
	buf    []byte
	closed bool
}

// SinkOptions configures the encode side of an FFmpegSink.
type SinkOptions struct {
	Width     int
	Height    int
	FrameRate float64
	Codec     string
	PixelFmt  string
}

// NewFFmpegSink starts an ffmpeg encode writing to path.
func NewFFmpegSink(ctx context.Context, binary, path string, opts SinkOptions) (*FFmpegSink, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("ffmpeg sink: invalid dimensions %dx%d", opts.Width, opts.Height)
	}
	if opts.FrameRate <= 0 {
		return nil, fmt.Errorf("ffmpeg sink: invalid frame rate %v", opts.FrameRate)
	}
	codec := opts.Codec
	if codec == "" {
		codec = "libx264"
	}
	pixFmt := opts.PixelFmt
	if pixFmt == "" {
		pixFmt = "yuv420p"
	}

	args := []string{
		"-v", "error",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-r", strconv.FormatFloat(opts.FrameRate, 'f', -1, 64),
		"-i", "pipe:0",
		"-c:v", codec,
		"-pix_fmt", pixFmt,
		path,
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg sink: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg sink: start %s: %w", path, err)
	}
	return &FFmpegSink{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		width:  opts.Width,
		height: opts.Height,
		buf:    make([]byte, opts.Width*opts.Height*3),
	}, nil
}

// Write implements Sink. The frame must match the sink dimensions.
func (s *FFmpegSink) Write(frame *image.RGBA) error {
	if s.closed {
		return fmt.Errorf("ffmpeg sink: write after close")
	}
	bounds := frame.Bounds()
	if bounds.Dx() != s.width || bounds.Dy() != s.height {
		return fmt.Errorf("ffmpeg sink: frame is %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), s.width, s.height)
	}
	src := frame.Pix
	dst := s.buf
	for i, j := 0, 0; j < len(dst); i, j = i+4, j+3 {
		dst[j] = src[i]
		dst[j+1] = src[i+1]
		dst[j+2] = src[i+2]
	}
	if _, err := s.stdin.Write(dst); err != nil {
		return fmt.Errorf("ffmpeg sink: write frame: %w: %s", err, strings.TrimSpace(s.stderr.String()))
	}
	return nil
}

// Close flushes the encode and waits for ffmpeg to finish the file.
func (s *FFmpegSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.stdin.Close(); err != nil {
		return fmt.Errorf("ffmpeg sink: close pipe: %w", err)
	}
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg sink: encode failed: %w: %s", err, strings.TrimSpace(s.stderr.String()))
	}
	return nil
}
