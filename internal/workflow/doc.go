// Package workflow advances capture sessions through the processing
// pipeline.
//
// The Manager binds the align, calibrate, and stitch handlers to the
// session status lifecycle and drives one session at a time under a
// file-based processing lock. Each stage transitions its session to a
// processing status before work starts, so interrupted runs are
// visible and Recover can roll them back to the start of the
// interrupted stage. Failures persist the classified final status and
// an operator hint; nothing is retried automatically.
package workflow
