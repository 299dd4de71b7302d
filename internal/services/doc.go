// Package services defines the shared error taxonomy for the stitching
// pipeline and helpers for annotating errors with phase context.
//
// Every failure a pipeline phase can produce carries one of the exported
// sentinel markers so the orchestrator and CLI can classify it without
// string matching:
//
//   - ErrAlignmentUnavailable: neither timecode metadata nor audio yielded
//     a usable temporal offset
//   - ErrInsufficientCorrespondences, ErrLowInlierRatio,
//     ErrDegenerateTransform: calibration quality failures
//   - ErrCalibrationNotFound: calibration store miss
//   - ErrStreamLengthMismatch: sources ended at different frame counts
//     (non-fatal; the session completes partially)
//   - ErrSourceDecode: unreadable or corrupt source media (fatal)
package services
