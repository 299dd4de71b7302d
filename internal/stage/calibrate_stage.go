package stage

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os/exec"
	"sort"

	"sideline/internal/align"
	"sideline/internal/calibrate"
	"sideline/internal/calibration"
	"sideline/internal/config"
	"sideline/internal/logging"
	"sideline/internal/media/video"
	"sideline/internal/services"
	"sideline/internal/session"
)

// candidateFractions are the stream positions probed for a usable
// calibration pair. Early frames may carry lens caps or slates; late
// frames may be motion-blurred. Several candidates make one bad scene
// survivable.
var candidateFractions = []float64{0.10, 0.25, 0.50, 0.75}

// GeometricCalibrator estimates the transform from candidate frame
// pairs. Satisfied by calibrate.Calibrator.
type GeometricCalibrator interface {
	CalibrateBest(ctx context.Context, pairs []calibrate.FramePair) (calibrate.Result, error)
}

// CalibrateStage samples aligned frame pairs, estimates the geometric
// calibration, and persists the record.
type CalibrateStage struct {
	cfg        *config.Config
	logger     *slog.Logger
	media      Media
	calibrator GeometricCalibrator
	records    *calibration.Store
}

// NewCalibrate builds the calibration stage with production media
// access and calibrator.
func NewCalibrate(cfg *config.Config, records *calibration.Store, logger *slog.Logger) *CalibrateStage {
	return &CalibrateStage{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "calibrate-stage"),
		media:      NewFFmpegMedia(cfg),
		calibrator: calibrate.New(cfg, logger),
		records:    records,
	}
}

// SetMedia swaps the media backend, for tests.
func (s *CalibrateStage) SetMedia(m Media) { s.media = m }

// SetCalibrator swaps the calibrator, for tests.
func (s *CalibrateStage) SetCalibrator(c GeometricCalibrator) { s.calibrator = c }

// Prepare confirms the session carries a resolved offset.
func (s *CalibrateStage) Prepare(ctx context.Context, sess *session.Session) error {
	if sess.OffsetSeconds == nil {
		return services.Wrap(services.ErrValidation, "Calibrating", "prepare",
			"session has no resolved offset; align first", nil)
	}
	sess.SetProgress("Calibrating", "Estimating geometric transform", 0)
	return nil
}

// Execute samples candidate pairs, calibrates, and saves the record.
func (s *CalibrateStage) Execute(ctx context.Context, sess *session.Session) error {
	logger := logging.WithContext(ctx, s.logger)

	leftInfo, err := s.media.Probe(ctx, sess.LeftSource)
	if err != nil {
		return services.Wrap(services.ErrSourceDecode, "Calibrating", "probe", sess.LeftSource, err)
	}
	rightInfo, err := s.media.Probe(ctx, sess.RightSource)
	if err != nil {
		return services.Wrap(services.ErrSourceDecode, "Calibrating", "probe", sess.RightSource, err)
	}

	offset := align.Offset{Seconds: *sess.OffsetSeconds, Method: sess.OffsetMethod, Confidence: sess.OffsetConfidence}
	fps := leftInfo.FPS
	if fps <= 0 {
		fps = rightInfo.FPS
	}
	leftSkip, rightSkip := offset.FrameSkips(fps)

	usable := minInt(leftInfo.FrameCount-leftSkip, rightInfo.FrameCount-rightSkip)
	if usable <= 0 {
		return services.Wrap(services.ErrValidation, "Calibrating", "sample",
			fmt.Sprintf("offset %.3fs leaves no overlapping frames", offset.Seconds), nil)
	}

	indices := candidateIndices(usable)
	leftFrames, err := s.sampleFrames(ctx, sess.LeftSource, leftSkip, indices)
	if err != nil {
		return services.Wrap(services.ErrSourceDecode, "Calibrating", "sample", sess.LeftSource, err)
	}
	rightFrames, err := s.sampleFrames(ctx, sess.RightSource, rightSkip, indices)
	if err != nil {
		return services.Wrap(services.ErrSourceDecode, "Calibrating", "sample", sess.RightSource, err)
	}

	pairs := make([]calibrate.FramePair, 0, len(indices))
	for i := range indices {
		pairs = append(pairs, calibrate.FramePair{
			Left:  leftFrames[i],
			Right: rightFrames[i],
			Label: fmt.Sprintf("frame %d", indices[i]),
		})
	}

	result, err := s.calibrator.CalibrateBest(ctx, pairs)
	if err != nil {
		return err
	}

	record := calibration.NewRecord(sess.SessionKey, result, offset, s.cfg.Blend.Curve,
		calibration.Resolution{Width: leftInfo.Width, Height: leftInfo.Height},
		calibration.Resolution{Width: rightInfo.Width, Height: rightInfo.Height},
	)
	path, err := s.records.Save(record)
	if err != nil {
		return err
	}

	sess.CalibrationPath = path
	sess.Status = session.StatusCalibrated
	sess.SetProgress("Calibrating",
		fmt.Sprintf("Calibrated with %d inliers (ratio %.2f)", result.Inliers, result.InlierRatio), 100)
	logger.Info("session calibrated",
		slog.Int("inliers", result.Inliers),
		slog.Float64("inlier_ratio", result.InlierRatio),
		slog.String("record", path),
	)
	return nil
}

// HealthCheck verifies the decode tool and the record directory.
func (s *CalibrateStage) HealthCheck(ctx context.Context) Health {
	if _, err := exec.LookPath(s.cfg.FFmpegBinary()); err != nil {
		return Unhealthy("calibrate", fmt.Sprintf("%s not found in PATH", s.cfg.FFmpegBinary()))
	}
	return Healthy("calibrate")
}

// sampleFrames decodes one pass through a source, capturing the frames
// at the requested aligned indices. Indices are relative to the
// post-skip stream and must be sorted ascending.
func (s *CalibrateStage) sampleFrames(ctx context.Context, path string, skip int, indices []int) ([]*image.RGBA, error) {
	src, err := s.media.OpenVideo(ctx, path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if skip > 0 {
		if err := video.Skip(src, skip); err != nil {
			return nil, err
		}
	}

	frames := make([]*image.RGBA, 0, len(indices))
	pos := 0
	for _, target := range indices {
		if target > pos {
			if err := video.Skip(src, target-pos); err != nil {
				return nil, err
			}
			pos = target
		}
		frame, err := src.Next()
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", target, err)
		}
		pos++
		frames = append(frames, video.Clone(frame))
	}
	return frames, nil
}

// candidateIndices maps the probe fractions onto a stream of the given
// usable length, deduplicated and sorted.
func candidateIndices(usable int) []int {
	seen := make(map[int]struct{})
	var indices []int
	for _, fraction := range candidateFractions {
		idx := int(fraction * float64(usable))
		if idx >= usable {
			idx = usable - 1
		}
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
