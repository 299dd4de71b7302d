package align

import (
	"context"
	"fmt"
	"log/slog"

	"sideline/internal/config"
	"sideline/internal/logging"
	"sideline/internal/media/audio"
	"sideline/internal/media/ffprobe"
	"sideline/internal/services"
)

// Aligner resolves the temporal offset between the two camera sources.
// Strategy selection happens once per session: the metadata path wins
// when both containers carry a parsable start timecode, otherwise the
// audio cross-correlation fallback runs. Neither path guesses; when
// both are unusable the aligner fails.
type Aligner struct {
	cfg     *config.Config
	logger  *slog.Logger
	probe   func(ctx context.Context, binary, path string) (ffprobe.Result, error)
	extract func(ctx context.Context, binary, path string, opts audio.ExtractOptions) (audio.Waveform, error)
}

// New builds an Aligner using the configured tool paths and sync
// bounds.
func New(cfg *config.Config, logger *slog.Logger) *Aligner {
	return &Aligner{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "align"),
		probe:   ffprobe.Inspect,
		extract: audio.Extract,
	}
}

// SetProbe swaps the container probe, for tests.
func (a *Aligner) SetProbe(fn func(ctx context.Context, binary, path string) (ffprobe.Result, error)) {
	a.probe = fn
}

// SetExtract swaps the waveform extractor, for tests.
func (a *Aligner) SetExtract(fn func(ctx context.Context, binary, path string, opts audio.ExtractOptions) (audio.Waveform, error)) {
	a.extract = fn
}

// Align probes both sources, selects a strategy, and returns the
// resolved offset. The chosen strategy and its rationale are logged
// and recorded on the offset.
func (a *Aligner) Align(ctx context.Context, leftPath, rightPath string) (Offset, error) {
	logger := logging.WithContext(ctx, a.logger)

	leftSeconds, leftFPS, leftErr := a.probeTimecode(ctx, leftPath)
	rightSeconds, _, rightErr := a.probeTimecode(ctx, rightPath)

	if leftErr == nil && rightErr == nil {
		offset := Offset{
			Seconds:    rightSeconds - leftSeconds,
			Method:     MethodMetadata,
			Confidence: 1.0,
			Rationale:  "both sources carry parsable container timecodes",
		}
		logger.Info("alignment strategy selected",
			slog.String("strategy", offset.Method),
			slog.String("rationale", offset.Rationale),
			slog.Float64("offset_seconds", offset.Seconds),
			slog.Float64("left_fps", leftFPS),
		)
		return offset, nil
	}

	rationale := metadataFailureRationale(leftErr, rightErr)
	logger.Info("alignment strategy selected",
		slog.String("strategy", MethodCrossCorrelation),
		slog.String("rationale", rationale),
	)

	offset, err := a.correlateAudio(ctx, leftPath, rightPath)
	if err != nil {
		return Offset{}, err
	}
	offset.Rationale = rationale
	logger.Info("audio correlation complete",
		slog.Float64("offset_seconds", offset.Seconds),
		slog.Float64("confidence", offset.Confidence),
	)
	return offset, nil
}

func (a *Aligner) correlateAudio(ctx context.Context, leftPath, rightPath string) (Offset, error) {
	opts := audio.ExtractOptions{
		SampleRate:    a.cfg.Sync.SampleRate,
		WindowSeconds: a.cfg.Sync.WindowSeconds,
	}
	left, err := a.extract(ctx, a.cfg.FFmpegBinary(), leftPath, opts)
	if err != nil {
		return Offset{}, services.Wrap(services.ErrAlignmentUnavailable, "Aligning", "extract-audio", leftPath, err)
	}
	right, err := a.extract(ctx, a.cfg.FFmpegBinary(), rightPath, opts)
	if err != nil {
		return Offset{}, services.Wrap(services.ErrAlignmentUnavailable, "Aligning", "extract-audio", rightPath, err)
	}

	if left.IsSilent() || right.IsSilent() {
		return Offset{}, services.Wrap(services.ErrAlignmentUnavailable, "Aligning", "correlate",
			"audio track is silent, no sync signal", nil)
	}

	result, err := Correlate(left.Samples, right.Samples, a.cfg.Sync.SampleRate, a.cfg.Sync.MaxOffsetSeconds)
	if err != nil {
		return Offset{}, services.Wrap(services.ErrAlignmentUnavailable, "Aligning", "correlate", "", err)
	}
	return Offset{
		Seconds:    result.LagSeconds,
		Method:     MethodCrossCorrelation,
		Confidence: result.Confidence,
	}, nil
}

// probeTimecode inspects one source and resolves its embedded start
// timecode to seconds.
func (a *Aligner) probeTimecode(ctx context.Context, path string) (seconds, fps float64, err error) {
	result, err := a.probe(ctx, a.cfg.FFprobeBinary(), path)
	if err != nil {
		return 0, 0, err
	}
	tc, ok := result.Timecode()
	if !ok {
		return 0, 0, fmt.Errorf("%s: no timecode tag", path)
	}
	fps = result.FrameRate()
	seconds, err = ParseTimecode(tc, fps)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", path, err)
	}
	return seconds, fps, nil
}

func metadataFailureRationale(leftErr, rightErr error) string {
	switch {
	case leftErr != nil && rightErr != nil:
		return fmt.Sprintf("timecode unusable on both sources (left: %v; right: %v)", leftErr, rightErr)
	case leftErr != nil:
		return fmt.Sprintf("timecode unusable on left source: %v", leftErr)
	default:
		return fmt.Sprintf("timecode unusable on right source: %v", rightErr)
	}
}
