// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// This package has no sideline-specific dependencies and could be extracted
// as a standalone library.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties
//   - Format: container-level metadata (duration, size, bitrate, tags)
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns parsed Result
//   - Parse: decodes a JSON payload without running the binary
//
// Helper methods on Result expose the camera metadata the pipeline
// needs: frame rate, resolution, and the embedded start timecode.
package ffprobe
