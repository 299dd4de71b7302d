package stage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"sideline/internal/align"
	"sideline/internal/config"
	"sideline/internal/logging"
	"sideline/internal/services"
	"sideline/internal/session"
)

// TemporalAligner resolves the offset between the two sources.
// Satisfied by align.Aligner.
type TemporalAligner interface {
	Align(ctx context.Context, leftPath, rightPath string) (align.Offset, error)
}

// AlignStage resolves and persists the temporal offset for a session.
type AlignStage struct {
	cfg     *config.Config
	logger  *slog.Logger
	aligner TemporalAligner
}

// NewAlign builds the alignment stage with the production aligner.
func NewAlign(cfg *config.Config, logger *slog.Logger) *AlignStage {
	return &AlignStage{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "align-stage"),
		aligner: align.New(cfg, logger),
	}
}

// SetAligner swaps the aligner, for tests.
func (s *AlignStage) SetAligner(a TemporalAligner) {
	s.aligner = a
}

// Prepare verifies both source files exist before any decoding starts.
func (s *AlignStage) Prepare(ctx context.Context, sess *session.Session) error {
	for _, path := range []string{sess.LeftSource, sess.RightSource} {
		if strings.TrimSpace(path) == "" {
			return services.Wrap(services.ErrValidation, "Aligning", "prepare", "session is missing a source path", nil)
		}
		if _, err := os.Stat(path); err != nil {
			return services.Wrap(services.ErrValidation, "Aligning", "prepare",
				fmt.Sprintf("source not readable: %s", path), err)
		}
	}
	sess.SetProgress("Aligning", "Resolving temporal offset", 0)
	return nil
}

// Execute runs strategy selection and stores the offset on the session.
func (s *AlignStage) Execute(ctx context.Context, sess *session.Session) error {
	offset, err := s.aligner.Align(ctx, sess.LeftSource, sess.RightSource)
	if err != nil {
		return err
	}
	sess.SetOffset(offset.Seconds, offset.Method, offset.Confidence)
	sess.Status = session.StatusAligned
	sess.SetProgress("Aligning", fmt.Sprintf("Offset %s", offset), 100)
	logging.WithContext(ctx, s.logger).Info("session aligned",
		slog.Float64("offset_seconds", offset.Seconds),
		slog.String("method", offset.Method),
		slog.Float64("confidence", offset.Confidence),
	)
	return nil
}

// HealthCheck verifies the external probe and decode tools resolve.
func (s *AlignStage) HealthCheck(ctx context.Context) Health {
	for _, binary := range []string{s.cfg.FFprobeBinary(), s.cfg.FFmpegBinary()} {
		if _, err := exec.LookPath(binary); err != nil {
			return Unhealthy("align", fmt.Sprintf("%s not found in PATH", binary))
		}
	}
	return Healthy("align")
}
