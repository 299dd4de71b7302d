package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sideline/internal/logging"
	"sideline/internal/services"
	"sideline/internal/session"
)

// RunSession drives one session from its current status to completion
// or failure. The processing lock is held for the whole run. Stages
// are not retried; a failed session stays failed until an operator
// retries it explicitly.
func (m *Manager) RunSession(ctx context.Context, sess *session.Session) error {
	return m.RunUntil(ctx, sess, session.StatusCompleted)
}

// RunUntil advances a session stage by stage and stops once the target
// status is reached, letting callers run a prefix of the pipeline.
func (m *Manager) RunUntil(ctx context.Context, sess *session.Session, target session.Status) error {
	if err := m.acquireLock(); err != nil {
		return err
	}
	defer m.releaseLock()

	if sess.IsTerminal() {
		return fmt.Errorf("session %s is already %s", sess.SessionKey, sess.Status)
	}

	runID := newRunID()
	ctx = services.WithRunID(services.WithSessionID(ctx, sess.ID), runID)
	logger := logging.WithContext(ctx, m.logger).With(
		slog.String(logging.FieldSessionKey, sess.SessionKey),
		slog.String(logging.FieldRunID, runID),
	)
	logger.Info("pipeline run started", slog.String("status", string(sess.Status)))
	runStart := time.Now()

	for sess.Status != target {
		stg, ok := m.stageForStatus(sess.Status)
		if !ok {
			break
		}
		if err := m.runStage(ctx, logger, stg, sess); err != nil {
			m.setLastError(err)
			return err
		}
	}

	logger.Info("pipeline run finished",
		slog.String("status", string(sess.Status)),
		slog.String("result", sess.CompletionLabel()),
		slog.Duration("run_duration", time.Since(runStart)),
	)
	m.setLastError(nil)
	return nil
}

// ProcessNext runs the oldest pending session, if any. The bool
// reports whether a session was found.
func (m *Manager) ProcessNext(ctx context.Context) (*session.Session, bool, error) {
	sess, err := m.store.NextForStatuses(ctx, session.StatusPending, session.StatusAligned, session.StatusCalibrated)
	if err != nil {
		return nil, false, err
	}
	if sess == nil {
		return nil, false, nil
	}
	err = m.RunSession(ctx, sess)
	return sess, true, err
}

// Recover rolls sessions stranded in a processing status back to the
// start of their interrupted stage, typically after a crash.
func (m *Manager) Recover(ctx context.Context) (int64, error) {
	affected, err := m.store.ResetStuckProcessing(ctx)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		m.logger.Info("recovered interrupted sessions", slog.Int64("count", affected))
	}
	return affected, nil
}

func (m *Manager) runStage(ctx context.Context, logger *slog.Logger, stg pipelineStage, sess *session.Session) error {
	ctx = services.WithPhase(ctx, stg.name)
	stageLogger := logger.With(slog.String(logging.FieldPhase, stg.name))

	if stg.handler == nil {
		err := fmt.Errorf("stage %s has no handler", stg.name)
		m.persistFailure(ctx, stageLogger, sess, err)
		return err
	}

	// Move to the processing status first so an interrupted run is
	// visible and recoverable.
	sess.Status = stg.processing
	sess.ErrorMessage = ""
	if err := m.store.Update(ctx, sess); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}

	stageStart := time.Now()
	stageLogger.Info("stage started", slog.String(logging.FieldEventType, "stage_start"))

	if err := stg.handler.Prepare(ctx, sess); err != nil {
		m.persistFailure(ctx, stageLogger, sess, err)
		return err
	}
	if err := m.store.Update(ctx, sess); err != nil {
		return fmt.Errorf("persist stage preparation: %w", err)
	}

	if err := stg.handler.Execute(ctx, sess); err != nil {
		if errors.Is(err, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return err
		}
		m.persistFailure(ctx, stageLogger, sess, err)
		return err
	}

	// A handler normally advances the status itself; fall back to the
	// configured done status when it only did its work.
	if sess.Status == stg.processing {
		sess.Status = stg.done
	}
	if err := m.store.Update(ctx, sess); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}
	stageLogger.Info("stage completed",
		slog.String(logging.FieldEventType, "stage_complete"),
		slog.String("next_status", string(sess.Status)),
		slog.Duration("stage_duration", time.Since(stageStart)),
	)
	return nil
}

// persistFailure maps the stage error onto the session's final state.
// Most failures mark the session failed; a stream-length mismatch
// still completes it, flagged partial with a warning.
func (m *Manager) persistFailure(ctx context.Context, logger *slog.Logger, sess *session.Session, stageErr error) {
	resolved := services.FailureStatus(stageErr)
	if resolved == session.StatusCompleted {
		sess.Status = session.StatusCompleted
		sess.Partial = true
		if sess.Warning == "" {
			sess.Warning = stageErr.Error()
		}
		sess.SetProgress("Done", sess.Warning, 100)
	} else {
		sess.SetFailed(stageErr.Error())
	}

	logger.Error("stage failed",
		slog.String(logging.FieldEventType, "stage_failure"),
		slog.String("resolved_status", string(resolved)),
		slog.String(logging.FieldErrorHint, errorHint(stageErr)),
		slog.String("error", stageErr.Error()),
	)

	if err := m.store.Update(ctx, sess); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutdown during failure persist")
		} else {
			logger.Error("failed to persist stage failure", slog.String("error", err.Error()))
		}
	}
}

// errorHint gives operators a next step for the common failure
// classes.
func errorHint(err error) string {
	switch {
	case errors.Is(err, services.ErrAlignmentUnavailable):
		return "sources carry no usable sync signal; check audio tracks and timecode metadata"
	case services.IsCalibrationQuality(err):
		return "calibration quality too low; retry with relaxed thresholds or pick better-lit footage"
	case errors.Is(err, services.ErrCalibrationNotFound):
		return "no calibration record for this session; run calibration first"
	case errors.Is(err, services.ErrExternalTool):
		return "ffmpeg failed; check the tool installation and the log for its stderr"
	default:
		return ""
	}
}
