// Package video streams decoded RGBA frames in and out of media files.
//
// The Source and Sink interfaces decouple the compositing pipeline
// from ffmpeg: FFmpegSource and FFmpegSink pipe rawvideo rgb24 through
// a subprocess, while MemorySource and MemorySink keep frames in
// memory for tests and for calibration sampling.
package video
