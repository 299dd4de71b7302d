package stage

import (
	"context"
	"fmt"
	"math"

	"sideline/internal/config"
	"sideline/internal/media/ffprobe"
	"sideline/internal/media/video"
)

// MediaInfo is the probe summary stages need to plan frame work.
type MediaInfo struct {
	Width      int
	Height     int
	FPS        float64
	FrameCount int
}

// Media abstracts probing and frame stream access so the pipeline can
// run against in-memory streams in tests.
type Media interface {
	Probe(ctx context.Context, path string) (MediaInfo, error)
	OpenVideo(ctx context.Context, path string) (video.Source, error)
	OpenOutput(ctx context.Context, path string, opts video.SinkOptions) (video.Sink, error)
}

// NewFFmpegMedia returns the production Media backed by the configured
// ffmpeg and ffprobe binaries.
func NewFFmpegMedia(cfg *config.Config) Media {
	return &ffmpegMedia{cfg: cfg}
}

type ffmpegMedia struct {
	cfg *config.Config
}

func (m *ffmpegMedia) Probe(ctx context.Context, path string) (MediaInfo, error) {
	result, err := ffprobe.Inspect(ctx, m.cfg.FFprobeBinary(), path)
	if err != nil {
		return MediaInfo{}, err
	}
	stream := result.FirstVideoStream()
	if stream == nil {
		return MediaInfo{}, fmt.Errorf("%s: no video stream", path)
	}
	info := MediaInfo{
		Width:  stream.Width,
		Height: stream.Height,
		FPS:    result.FrameRate(),
	}
	if info.Width <= 0 || info.Height <= 0 {
		return MediaInfo{}, fmt.Errorf("%s: missing stream dimensions", path)
	}
	if frames := parsePositiveInt(stream.NBFrames); frames > 0 {
		info.FrameCount = frames
	} else if info.FPS > 0 {
		info.FrameCount = int(math.Floor(result.DurationSeconds() * info.FPS))
	}
	return info, nil
}

func (m *ffmpegMedia) OpenVideo(ctx context.Context, path string) (video.Source, error) {
	info, err := m.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	return video.NewFFmpegSource(ctx, m.cfg.FFmpegBinary(), path, info.Width, info.Height)
}

func (m *ffmpegMedia) OpenOutput(ctx context.Context, path string, opts video.SinkOptions) (video.Sink, error) {
	return video.NewFFmpegSink(ctx, m.cfg.FFmpegBinary(), path, opts)
}

func parsePositiveInt(value string) int {
	var n int
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil || n < 0 {
		return 0
	}
	return n
}
