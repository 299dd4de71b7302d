// Package calibration defines the versioned calibration record and its
// file-backed store. Records are human-readable JSON, one per capture
// session, written atomically and validated on every load.
package calibration
