// Package logging builds slog loggers for the stitching pipeline with a
// human-oriented console handler and an optional JSON handler, plus attr
// helpers and standardized field keys shared across components.
package logging
