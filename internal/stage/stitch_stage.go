package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"

	"sideline/internal/align"
	"sideline/internal/calibration"
	"sideline/internal/config"
	"sideline/internal/logging"
	"sideline/internal/media/video"
	"sideline/internal/services"
	"sideline/internal/session"
	"sideline/internal/stitch"
)

// StitchStage composes the full aligned streams into the panoramic
// output using the session's persisted calibration.
type StitchStage struct {
	cfg     *config.Config
	store   *session.Store
	logger  *slog.Logger
	media   Media
	records *calibration.Store
}

// NewStitch builds the stitch stage with production media access.
func NewStitch(cfg *config.Config, store *session.Store, records *calibration.Store, logger *slog.Logger) *StitchStage {
	return &StitchStage{
		cfg:     cfg,
		store:   store,
		logger:  logging.NewComponentLogger(logger, "stitch-stage"),
		media:   NewFFmpegMedia(cfg),
		records: records,
	}
}

// SetMedia swaps the media backend, for tests.
func (s *StitchStage) SetMedia(m Media) { s.media = m }

// Prepare loads the calibration record to fail fast before decoding
// starts, and fixes the output path.
func (s *StitchStage) Prepare(ctx context.Context, sess *session.Session) error {
	if _, err := s.records.Load(sess.SessionKey); err != nil {
		return err
	}
	sess.OutputPath = filepath.Join(s.cfg.Paths.OutputDir, sess.SessionKey+"_panorama.mp4")
	sess.SetProgress("Stitching", "Composing panoramic stream", 0)
	return nil
}

// Execute streams both sources through the compositor into the output
// file. A stream-length mismatch stops at the shorter stream and
// completes the session partially; every other failure aborts.
func (s *StitchStage) Execute(ctx context.Context, sess *session.Session) error {
	logger := logging.WithContext(ctx, s.logger)

	record, err := s.records.Load(sess.SessionKey)
	if err != nil {
		return err
	}

	leftInfo, err := s.media.Probe(ctx, sess.LeftSource)
	if err != nil {
		return services.Wrap(services.ErrSourceDecode, "Stitching", "probe", sess.LeftSource, err)
	}
	if leftInfo.Width != record.LeftResolution.Width || leftInfo.Height != record.LeftResolution.Height {
		return services.Wrap(services.ErrValidation, "Stitching", "probe",
			fmt.Sprintf("left source is %dx%d but calibration was computed at %dx%d",
				leftInfo.Width, leftInfo.Height, record.LeftResolution.Width, record.LeftResolution.Height), nil)
	}
	rightInfo, err := s.media.Probe(ctx, sess.RightSource)
	if err != nil {
		return services.Wrap(services.ErrSourceDecode, "Stitching", "probe", sess.RightSource, err)
	}
	if rightInfo.Width != record.RightResolution.Width || rightInfo.Height != record.RightResolution.Height {
		return services.Wrap(services.ErrValidation, "Stitching", "probe",
			fmt.Sprintf("right source is %dx%d but calibration was computed at %dx%d",
				rightInfo.Width, rightInfo.Height, record.RightResolution.Width, record.RightResolution.Height), nil)
	}

	offset := align.Offset{Seconds: record.Offset.Seconds}
	fps := leftInfo.FPS
	if fps <= 0 {
		fps = 30
	}
	leftSkip, rightSkip := offset.FrameSkips(fps)

	left, err := s.media.OpenVideo(ctx, sess.LeftSource)
	if err != nil {
		return services.Wrap(services.ErrSourceDecode, "Stitching", "open", sess.LeftSource, err)
	}
	defer left.Close()
	right, err := s.media.OpenVideo(ctx, sess.RightSource)
	if err != nil {
		return services.Wrap(services.ErrSourceDecode, "Stitching", "open", sess.RightSource, err)
	}
	defer right.Close()

	if leftSkip > 0 {
		if err := video.Skip(left, leftSkip); err != nil {
			return services.Wrap(services.ErrSourceDecode, "Stitching", "skip", sess.LeftSource, err)
		}
	}
	if rightSkip > 0 {
		if err := video.Skip(right, rightSkip); err != nil {
			return services.Wrap(services.ErrSourceDecode, "Stitching", "skip", sess.RightSource, err)
		}
	}

	sink, err := s.media.OpenOutput(ctx, sess.OutputPath, video.SinkOptions{
		Width:     record.CanvasWidth,
		Height:    record.CanvasHeight,
		FrameRate: fps,
		Codec:     s.cfg.Stitch.OutputCodec,
		PixelFmt:  s.cfg.Stitch.OutputPixelFmt,
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "Stitching", "open-output", sess.OutputPath, err)
	}

	compositor, err := stitch.NewCompositor(s.cfg, s.logger, record)
	if err != nil {
		sink.Close()
		return err
	}

	total := leftInfo.FrameCount - leftSkip
	frames, runErr := compositor.Run(ctx, left, right, sink, func(done int) {
		sess.FramesStitched = int64(done)
		percent := 0.0
		if total > 0 {
			percent = float64(done) / float64(total) * 100
			if percent > 100 {
				percent = 100
			}
		}
		sess.SetProgress("Stitching", fmt.Sprintf("Composed %d frames", done), percent)
		if err := s.store.UpdateProgress(ctx, sess); err != nil {
			logger.Warn("progress persist failed", slog.String("error", err.Error()))
		}
	})
	sess.FramesStitched = int64(frames)

	if closeErr := sink.Close(); closeErr != nil && runErr == nil {
		runErr = services.Wrap(services.ErrExternalTool, "Stitching", "finalize", sess.OutputPath, closeErr)
	}

	if runErr != nil {
		if errors.Is(runErr, services.ErrStreamLengthMismatch) {
			// The shorter stream bounds the output; what was composed
			// is a valid panorama and the session completes partially.
			sess.Partial = true
			sess.Warning = fmt.Sprintf("source streams diverged after %d frames", frames)
		}
		return runErr
	}

	sess.Status = session.StatusCompleted
	sess.SetProgress("Done", fmt.Sprintf("Stitched %d frames", frames), 100)
	logger.Info("session stitched",
		slog.Int("frames", frames),
		slog.String("output", sess.OutputPath),
	)
	return nil
}

// HealthCheck verifies the encode tool and output directory.
func (s *StitchStage) HealthCheck(ctx context.Context) Health {
	if _, err := exec.LookPath(s.cfg.FFmpegBinary()); err != nil {
		return Unhealthy("stitch", fmt.Sprintf("%s not found in PATH", s.cfg.FFmpegBinary()))
	}
	return Healthy("stitch")
}
