// Package stitch composes time-matched frame pairs into a panoramic
// output stream using a persisted calibration record. The left frame
// is placed unwarped on the canvas, the right frame is resampled
// through the inverse homography with bilinear interpolation, and the
// overlap is blended column by column with the record's weight curve.
package stitch
