package calibrate

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math/rand"

	"sideline/internal/config"
	"sideline/internal/logging"
	"sideline/internal/services"
)

// Result is a successful geometric calibration of one frame pair.
type Result struct {
	Homography  Homography
	Canvas      Canvas
	Blend       BlendRegion
	Matches     int
	Inliers     int
	InlierRatio float64
}

// Calibrator estimates the projective transform between an aligned
// frame pair and derives the output canvas geometry.
type Calibrator struct {
	cfg      *config.Config
	logger   *slog.Logger
	detector Detector
	rng      *rand.Rand
}

// New builds a Calibrator with the default corner detector. The RANSAC
// seed is fixed so repeated runs over the same session produce the
// same calibration.
func New(cfg *config.Config, logger *slog.Logger) *Calibrator {
	return &Calibrator{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "calibrate"),
		detector: ShiTomasiDetector{},
		rng:      rand.New(rand.NewSource(1)),
	}
}

// SetDetector swaps the feature detector.
func (c *Calibrator) SetDetector(d Detector) {
	c.detector = d
}

// Calibrate estimates the transform for one aligned frame pair. The
// quality gates reject calibrations that cannot be trusted; nothing
// below threshold is ever silently accepted.
func (c *Calibrator) Calibrate(ctx context.Context, left, right *image.RGBA) (Result, error) {
	logger := logging.WithContext(ctx, c.logger)
	settings := c.cfg.Calibration

	leftBounds := left.Bounds()
	rightBounds := right.Bounds()

	// Feature search is restricted to the expected overlap band: the
	// right edge of the left frame and the left edge of the right
	// frame. Content outside the band cannot correspond.
	bandWidth := int(float64(leftBounds.Dx()) * settings.OverlapFraction)
	leftRegion := image.Rect(leftBounds.Max.X-bandWidth, leftBounds.Min.Y, leftBounds.Max.X, leftBounds.Max.Y)
	rightBand := int(float64(rightBounds.Dx()) * settings.OverlapFraction)
	rightRegion := image.Rect(rightBounds.Min.X, rightBounds.Min.Y, rightBounds.Min.X+rightBand, rightBounds.Max.Y)

	leftFeatures := c.detector.Detect(left, leftRegion, settings.MaxFeatures)
	rightFeatures := c.detector.Detect(right, rightRegion, settings.MaxFeatures)
	matches := Match(leftFeatures, rightFeatures, settings.MatchRatio)
	logger.Debug("feature matching complete",
		slog.Int("left_features", len(leftFeatures)),
		slog.Int("right_features", len(rightFeatures)),
		slog.Int("matches", len(matches)),
	)
	if len(matches) < settings.MinMatches {
		return Result{}, services.Wrap(services.ErrInsufficientCorrespondences, "Calibrating", "match",
			fmt.Sprintf("%d correspondences, need %d", len(matches), settings.MinMatches), nil)
	}

	fit, ok := ransacHomography(matches, settings.RansacIterations, settings.RansacThreshold, c.rng)
	if !ok {
		return Result{}, services.Wrap(services.ErrInsufficientCorrespondences, "Calibrating", "ransac",
			"no consensus transform found", nil)
	}
	if !plausibleTransform(fit.homography) {
		return Result{}, services.Wrap(services.ErrDegenerateTransform, "Calibrating", "ransac",
			fmt.Sprintf("implausible transform, det %.3g", fit.homography.Det()), nil)
	}

	inlierRatio := float64(len(fit.inliers)) / float64(len(matches))
	if len(fit.inliers) < settings.MinInliers || inlierRatio < settings.MinInlierRatio {
		return Result{}, services.Wrap(services.ErrLowInlierRatio, "Calibrating", "ransac",
			fmt.Sprintf("%d inliers of %d matches (ratio %.2f)", len(fit.inliers), len(matches), inlierRatio), nil)
	}

	canvas, blend, err := deriveCanvas(fit.homography,
		leftBounds.Dx(), leftBounds.Dy(), rightBounds.Dx(), rightBounds.Dy())
	if err != nil {
		return Result{}, services.Wrap(services.ErrDegenerateTransform, "Calibrating", "canvas", "", err)
	}

	logger.Info("calibration accepted",
		slog.Int("matches", len(matches)),
		slog.Int("inliers", len(fit.inliers)),
		slog.Float64("inlier_ratio", inlierRatio),
		slog.Int("canvas_width", canvas.Width),
		slog.Int("canvas_height", canvas.Height),
	)
	return Result{
		Homography:  fit.homography,
		Canvas:      canvas,
		Blend:       blend,
		Matches:     len(matches),
		Inliers:     len(fit.inliers),
		InlierRatio: inlierRatio,
	}, nil
}

// FramePair is one aligned candidate pair for calibration.
type FramePair struct {
	Left  *image.RGBA
	Right *image.RGBA
	// Label identifies the pair in logs, typically its position in the
	// stream.
	Label string
}

// CalibrateBest runs calibration over several candidate pairs and
// keeps the result with the highest inlier ratio. Scenes change over a
// recording; a pair with motion blur or a featureless view fails while
// another succeeds. The last failure is returned only when every
// candidate fails.
func (c *Calibrator) CalibrateBest(ctx context.Context, pairs []FramePair) (Result, error) {
	logger := logging.WithContext(ctx, c.logger)
	var best Result
	var lastErr error
	found := false
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		result, err := c.Calibrate(ctx, pair.Left, pair.Right)
		if err != nil {
			logger.Debug("candidate pair rejected",
				slog.String("pair", pair.Label),
				slog.String("reason", err.Error()),
			)
			lastErr = err
			continue
		}
		if !found || result.InlierRatio > best.InlierRatio {
			best = result
			found = true
		}
	}
	if !found {
		if lastErr == nil {
			return Result{}, services.Wrap(services.ErrInsufficientCorrespondences, "Calibrating", "candidates",
				"no candidate frame pairs", nil)
		}
		return Result{}, lastErr
	}
	return best, nil
}
