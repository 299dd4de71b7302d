// Package config loads, normalizes, and validates the TOML configuration
// for the stitching pipeline. Calibration acceptance thresholds and the
// blend curve live here rather than in code so operators can relax them
// per rig without a rebuild.
package config
