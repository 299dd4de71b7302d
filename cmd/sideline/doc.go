// Package main hosts the sideline CLI entrypoint and command graph.
//
// The Cobra-based command tree drives the pipeline directly: registering
// capture sessions, resolving temporal offsets, fitting and caching the
// geometric calibration, and running the stitch pass. It centralizes
// configuration resolution and structured logging setup so subcommands can
// focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
