// Package stage defines the pipeline stage contract and the three
// concrete stages the workflow manager drives: temporal alignment,
// geometric calibration, and stitching. Stages mutate the session they
// are handed; the manager owns persistence and status transitions
// around each call.
package stage
