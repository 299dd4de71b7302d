package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSync()
	c.normalizeCalibration()
	c.normalizeStitch()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		c.Paths.LibraryDir = defaultLibraryDir
	}
	if strings.TrimSpace(c.Paths.CalibrationDir) == "" {
		c.Paths.CalibrationDir = defaultCalibrationDir
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.CalibrationDir, err = expandPath(c.Paths.CalibrationDir); err != nil {
		return fmt.Errorf("paths.calibration_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSync() {
	if c.Sync.SampleRate <= 0 {
		c.Sync.SampleRate = defaultSyncSampleRate
	}
	if c.Sync.WindowSeconds <= 0 {
		c.Sync.WindowSeconds = defaultSyncWindowSeconds
	}
	if c.Sync.MaxOffsetSeconds <= 0 {
		c.Sync.MaxOffsetSeconds = defaultSyncMaxOffsetSeconds
	}
}

func (c *Config) normalizeCalibration() {
	if c.Calibration.OverlapFraction <= 0 {
		c.Calibration.OverlapFraction = defaultOverlapFraction
	}
	if c.Calibration.MaxFeatures <= 0 {
		c.Calibration.MaxFeatures = defaultMaxFeatures
	}
	if c.Calibration.MatchRatio <= 0 {
		c.Calibration.MatchRatio = defaultMatchRatio
	}
	if c.Calibration.MinMatches <= 0 {
		c.Calibration.MinMatches = defaultMinMatches
	}
	if c.Calibration.MinInliers <= 0 {
		c.Calibration.MinInliers = defaultMinInliers
	}
	if c.Calibration.MinInlierRatio <= 0 {
		c.Calibration.MinInlierRatio = defaultMinInlierRatio
	}
	if c.Calibration.RansacThreshold <= 0 {
		c.Calibration.RansacThreshold = defaultRansacThreshold
	}
	if c.Calibration.RansacIterations <= 0 {
		c.Calibration.RansacIterations = defaultRansacIterations
	}
}

func (c *Config) normalizeStitch() {
	if c.Stitch.PipelineDepth <= 0 {
		c.Stitch.PipelineDepth = defaultPipelineDepth
	}
	if c.Stitch.ProgressInterval <= 0 {
		c.Stitch.ProgressInterval = defaultProgressInterval
	}
	if strings.TrimSpace(c.Stitch.OutputCodec) == "" {
		c.Stitch.OutputCodec = defaultOutputCodec
	}
	if strings.TrimSpace(c.Stitch.OutputPixelFmt) == "" {
		c.Stitch.OutputPixelFmt = defaultOutputPixelFmt
	}
	if strings.TrimSpace(c.Blend.Curve) == "" {
		c.Blend.Curve = defaultBlendCurve
	}
	c.Blend.Curve = strings.ToLower(strings.TrimSpace(c.Blend.Curve))
}

func (c *Config) normalizeLogging() {
	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
}
