package testsupport

import (
	"path/filepath"
	"testing"

	"sideline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.CalibrationDir = filepath.Join(base, "calibrations")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithRelaxedCalibration lowers the acceptance thresholds so small synthetic
// frames with sparse texture can still pass the quality gate.
func WithRelaxedCalibration() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Calibration.MinMatches = 4
		cfg.Calibration.MinInliers = 4
		cfg.Calibration.MinInlierRatio = 0.2
	}
}
