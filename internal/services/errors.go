package services

import (
	"errors"
	"fmt"
	"strings"

	"sideline/internal/session"
)

var (
	// ErrAlignmentUnavailable reports that no usable sync signal exists.
	ErrAlignmentUnavailable = errors.New("alignment unavailable")
	// ErrInsufficientCorrespondences reports too few reliable matches.
	ErrInsufficientCorrespondences = errors.New("insufficient correspondences")
	// ErrLowInlierRatio reports a homography fit below the acceptance gate.
	ErrLowInlierRatio = errors.New("low inlier ratio")
	// ErrDegenerateTransform reports a near-singular or implausible homography.
	ErrDegenerateTransform = errors.New("degenerate transform")
	// ErrCalibrationNotFound reports a calibration store miss.
	ErrCalibrationNotFound = errors.New("calibration not found")
	// ErrStreamLengthMismatch reports that one source ended before the other.
	ErrStreamLengthMismatch = errors.New("stream length mismatch")
	// ErrSourceDecode reports an unreadable or corrupt source.
	ErrSourceDecode = errors.New("source decode error")

	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes phase context while tagging it
// with the provided marker for later status classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, phase, operation, message string, err error) error {
	detail := buildDetail(phase, operation, message)
	if marker == nil {
		marker = ErrSourceDecode
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsCalibrationQuality reports whether err is one of the calibration
// acceptance failures an operator may retry with relaxed parameters.
func IsCalibrationQuality(err error) bool {
	return errors.Is(err, ErrInsufficientCorrespondences) ||
		errors.Is(err, ErrLowInlierRatio) ||
		errors.Is(err, ErrDegenerateTransform)
}

// FailureStatus maps a phase error to the session status the orchestrator
// should persist after the phase fails. A stream-length mismatch is the one
// recoverable case: the session still completes, with a partial flag.
func FailureStatus(err error) session.Status {
	if errors.Is(err, ErrStreamLengthMismatch) {
		return session.StatusCompleted
	}
	return session.StatusFailed
}

func buildDetail(phase, operation, message string) string {
	parts := make([]string, 0, 3)
	if phase = strings.TrimSpace(phase); phase != "" {
		parts = append(parts, phase)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
