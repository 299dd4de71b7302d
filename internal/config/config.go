package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LibraryDir     string `toml:"library_dir"`
	CalibrationDir string `toml:"calibration_dir"`
	OutputDir      string `toml:"output_dir"`
	LogDir         string `toml:"log_dir"`
}

// Tools contains external binary names or paths.
type Tools struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// Sync contains configuration for temporal alignment.
type Sync struct {
	// SampleRate is the audio extraction rate in Hz for the correlation fallback.
	SampleRate int `toml:"sample_rate"`
	// WindowSeconds bounds how much audio is correlated from each source.
	WindowSeconds int `toml:"window_seconds"`
	// MaxOffsetSeconds bounds the lag search range.
	MaxOffsetSeconds float64 `toml:"max_offset_seconds"`
}

// Calibration contains the acceptance thresholds for the homography fit.
// The thresholds are operational choices, not derived values; tune them per
// rig and document deviations from the defaults.
type Calibration struct {
	// OverlapFraction is the expected shared horizontal band of each frame.
	OverlapFraction float64 `toml:"overlap_fraction"`
	// MaxFeatures caps keypoints detected per frame.
	MaxFeatures int `toml:"max_features"`
	// MatchRatio is the Lowe ratio-test cutoff for descriptor matches.
	MatchRatio float64 `toml:"match_ratio"`
	MinMatches int     `toml:"min_matches"`
	MinInliers int     `toml:"min_inliers"`
	// MinInlierRatio rejects fits where inliers/matches falls below this value.
	MinInlierRatio float64 `toml:"min_inlier_ratio"`
	// RansacThreshold is the inlier reprojection distance in pixels.
	RansacThreshold float64 `toml:"ransac_threshold"`
	// RansacIterations bounds the sample-and-fit budget.
	RansacIterations int `toml:"ransac_iterations"`
}

// Blend contains seam blending configuration.
type Blend struct {
	// Curve selects the weight ramp across the blend region: "linear" or "smoothstep".
	Curve string `toml:"curve"`
}

// Stitch contains configuration for the batch compositing pass.
type Stitch struct {
	// PipelineDepth is the bounded buffer size between decode and compositing.
	PipelineDepth int `toml:"pipeline_depth"`
	// ProgressInterval is the frame count between persisted progress updates.
	ProgressInterval int    `toml:"progress_interval"`
	OutputCodec      string `toml:"output_codec"`
	OutputPixelFmt   string `toml:"output_pixel_fmt"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for sideline.
//
// Configuration sections by subsystem:
//   - Paths: library, calibration, output, and log directories
//   - Tools: ffmpeg/ffprobe binary overrides
//   - Sync: audio fallback alignment parameters
//   - Calibration: homography fit acceptance thresholds
//   - Blend: seam weight curve selection
//   - Stitch: compositing pipeline tuning and output encoding
//   - Logging: log format and level
type Config struct {
	Paths       Paths       `toml:"paths"`
	Tools       Tools       `toml:"tools"`
	Sync        Sync        `toml:"sync"`
	Calibration Calibration `toml:"calibration"`
	Blend       Blend       `toml:"blend"`
	Stitch      Stitch      `toml:"stitch"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/sideline/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("sideline.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LibraryDir, c.Paths.CalibrationDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for decode, encode, and
// audio extraction.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Tools.FFmpeg); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable used for source inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Tools.FFprobe); bin != "" {
		return bin
	}
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
