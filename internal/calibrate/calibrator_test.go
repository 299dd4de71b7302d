package calibrate_test

import (
	"context"
	"errors"
	"image/color"
	"math"
	"testing"

	"sideline/internal/calibrate"
	"sideline/internal/logging"
	"sideline/internal/services"
	"sideline/internal/testsupport"
)

var solidGray = color.RGBA{R: 128, G: 128, B: 128, A: 255}

func TestCalibrateRecoversTranslation(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRelaxedCalibration())
	left, right := testsupport.OverlappingPair(320, 240, 120, 5)
	shift := float64(320 - 120)

	calibrator := calibrate.New(cfg, logging.NewNop())
	result, err := calibrator.Calibrate(context.Background(), left, right)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}

	x, y := result.Homography.Apply(50, 120)
	if math.Abs(x-(50+shift)) > 1.5 || math.Abs(y-120) > 1.5 {
		t.Fatalf("transform maps (50,120) to (%.2f, %.2f), want (%.0f, 120)", x, y, 50+shift)
	}
	if result.Inliers < cfg.Calibration.MinInliers {
		t.Fatalf("inliers = %d, below configured floor", result.Inliers)
	}
	if result.Canvas.Width < 320 || result.Canvas.Height < 240 {
		t.Fatalf("canvas = %dx%d, smaller than one source frame", result.Canvas.Width, result.Canvas.Height)
	}
	if result.Blend.XEnd <= result.Blend.XStart {
		t.Fatalf("empty blend region [%d, %d)", result.Blend.XStart, result.Blend.XEnd)
	}
}

func TestCalibrateFailsOnDisjointScenes(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRelaxedCalibration())
	left := testsupport.TexturedImage(320, 240, 21)
	right := testsupport.TexturedImage(320, 240, 99)

	calibrator := calibrate.New(cfg, logging.NewNop())
	_, err := calibrator.Calibrate(context.Background(), left, right)
	if err == nil {
		t.Fatal("expected failure for unrelated scenes")
	}
	if !services.IsCalibrationQuality(err) {
		t.Fatalf("expected a calibration quality error, got %v", err)
	}
}

func TestCalibrateFailsOnFeaturelessFrames(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRelaxedCalibration())
	left := testsupport.SolidFrame(320, 240, solidGray)
	right := testsupport.SolidFrame(320, 240, solidGray)

	calibrator := calibrate.New(cfg, logging.NewNop())
	_, err := calibrator.Calibrate(context.Background(), left, right)
	if !errors.Is(err, services.ErrInsufficientCorrespondences) {
		t.Fatalf("expected ErrInsufficientCorrespondences, got %v", err)
	}
}

func TestCalibrateBestPicksUsablePair(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRelaxedCalibration())
	goodLeft, goodRight := testsupport.OverlappingPair(320, 240, 120, 5)

	pairs := []calibrate.FramePair{
		{Left: testsupport.SolidFrame(320, 240, solidGray), Right: testsupport.SolidFrame(320, 240, solidGray), Label: "10%"},
		{Left: goodLeft, Right: goodRight, Label: "25%"},
	}
	calibrator := calibrate.New(cfg, logging.NewNop())
	result, err := calibrator.CalibrateBest(context.Background(), pairs)
	if err != nil {
		t.Fatalf("CalibrateBest failed: %v", err)
	}
	if result.Inliers == 0 {
		t.Fatal("expected the textured pair to produce inliers")
	}
}

func TestCalibrateBestFailsWhenAllPairsFail(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRelaxedCalibration())
	pairs := []calibrate.FramePair{
		{Left: testsupport.SolidFrame(320, 240, solidGray), Right: testsupport.SolidFrame(320, 240, solidGray), Label: "50%"},
	}
	calibrator := calibrate.New(cfg, logging.NewNop())
	if _, err := calibrator.CalibrateBest(context.Background(), pairs); err == nil {
		t.Fatal("expected failure when every candidate fails")
	}
}
