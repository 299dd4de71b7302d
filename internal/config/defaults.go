package config

const (
	defaultLibraryDir     = "~/.local/share/sideline/library"
	defaultCalibrationDir = "~/.local/share/sideline/calibrations"
	defaultOutputDir      = "~/.local/share/sideline/output"
	defaultLogDir         = "~/.local/share/sideline/logs"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"

	defaultSyncSampleRate       = 16000
	defaultSyncWindowSeconds    = 60
	defaultSyncMaxOffsetSeconds = 30.0

	defaultOverlapFraction  = 0.35
	defaultMaxFeatures      = 1500
	defaultMatchRatio       = 0.75
	defaultMinMatches       = 10
	defaultMinInliers       = 15
	defaultMinInlierRatio   = 0.30
	defaultRansacThreshold  = 5.0
	defaultRansacIterations = 2000

	defaultBlendCurve = "linear"

	defaultPipelineDepth    = 4
	defaultProgressInterval = 100
	defaultOutputCodec      = "libx264"
	defaultOutputPixelFmt   = "yuv420p"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LibraryDir:     defaultLibraryDir,
			CalibrationDir: defaultCalibrationDir,
			OutputDir:      defaultOutputDir,
			LogDir:         defaultLogDir,
		},
		Sync: Sync{
			SampleRate:       defaultSyncSampleRate,
			WindowSeconds:    defaultSyncWindowSeconds,
			MaxOffsetSeconds: defaultSyncMaxOffsetSeconds,
		},
		Calibration: Calibration{
			OverlapFraction:  defaultOverlapFraction,
			MaxFeatures:      defaultMaxFeatures,
			MatchRatio:       defaultMatchRatio,
			MinMatches:       defaultMinMatches,
			MinInliers:       defaultMinInliers,
			MinInlierRatio:   defaultMinInlierRatio,
			RansacThreshold:  defaultRansacThreshold,
			RansacIterations: defaultRansacIterations,
		},
		Blend: Blend{
			Curve: defaultBlendCurve,
		},
		Stitch: Stitch{
			PipelineDepth:    defaultPipelineDepth,
			ProgressInterval: defaultProgressInterval,
			OutputCodec:      defaultOutputCodec,
			OutputPixelFmt:   defaultOutputPixelFmt,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
