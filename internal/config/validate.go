package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateCalibration(); err != nil {
		return err
	}
	if err := c.validateBlend(); err != nil {
		return err
	}
	if err := c.validateStitch(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.SampleRate < 4000 {
		return fmt.Errorf("sync.sample_rate %d is too low; need at least 4000 Hz", c.Sync.SampleRate)
	}
	if c.Sync.MaxOffsetSeconds > float64(c.Sync.WindowSeconds) {
		return fmt.Errorf("sync.max_offset_seconds %.1f exceeds the %ds analysis window", c.Sync.MaxOffsetSeconds, c.Sync.WindowSeconds)
	}
	return nil
}

func (c *Config) validateCalibration() error {
	if c.Calibration.OverlapFraction <= 0 || c.Calibration.OverlapFraction >= 1 {
		return errors.New("calibration.overlap_fraction must be between 0 and 1 exclusive")
	}
	if c.Calibration.MinMatches < 4 {
		return errors.New("calibration.min_matches must be at least 4 (homography minimum)")
	}
	if c.Calibration.MinInlierRatio <= 0 || c.Calibration.MinInlierRatio > 1 {
		return errors.New("calibration.min_inlier_ratio must be between 0 and 1")
	}
	if c.Calibration.MatchRatio <= 0 || c.Calibration.MatchRatio >= 1 {
		return errors.New("calibration.match_ratio must be between 0 and 1 exclusive")
	}
	return nil
}

func (c *Config) validateBlend() error {
	switch c.Blend.Curve {
	case "linear", "smoothstep":
		return nil
	default:
		return fmt.Errorf("blend.curve: unsupported value %q (expected linear or smoothstep)", c.Blend.Curve)
	}
}

func (c *Config) validateStitch() error {
	if c.Stitch.PipelineDepth > 64 {
		return errors.New("stitch.pipeline_depth above 64 buffers more frames than is useful")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format: unsupported value %q (expected console or json)", c.Logging.Format)
	}
}
