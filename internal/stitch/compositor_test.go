package stitch_test

import (
	"context"
	"errors"
	"image"
	"runtime"
	"testing"
	"time"

	"sideline/internal/calibration"
	"sideline/internal/logging"
	"sideline/internal/media/video"
	"sideline/internal/services"
	"sideline/internal/session"
	"sideline/internal/stitch"
	"sideline/internal/testsupport"
)

// translationRecord builds a record for a pure horizontal shift, the
// geometry produced by testsupport.OverlappingPair.
func translationRecord(frameW, frameH, overlap int) *calibration.Record {
	shift := frameW - overlap
	return &calibration.Record{
		Version:      calibration.CurrentVersion,
		SessionKey:   "2026-03-15",
		Homography:   [9]float64{1, 0, float64(shift), 0, 1, 0, 0, 0, 1},
		CanvasWidth:  frameW + shift,
		CanvasHeight: frameH,
		BlendXStart:  shift,
		BlendXEnd:    frameW,
		BlendCurve:   stitch.CurveLinear,
		Offset: calibration.TemporalOffset{
			Seconds: 0, Method: "metadata", Confidence: 1,
		},
		Matches:         40,
		Inliers:         32,
		InlierRatio:     0.8,
		LeftResolution:  calibration.Resolution{Width: frameW, Height: frameH},
		RightResolution: calibration.Resolution{Width: frameW, Height: frameH},
		CreatedAt:       time.Now().UTC(),
	}
}

func TestComposeReconstructsScene(t *testing.T) {
	const frameW, frameH, overlap = 64, 48, 24
	cfg := testsupport.NewConfig(t)
	left, right := testsupport.OverlappingPair(frameW, frameH, overlap, 9)
	record := translationRecord(frameW, frameH, overlap)

	compositor, err := stitch.NewCompositor(cfg, logging.NewNop(), record)
	if err != nil {
		t.Fatalf("NewCompositor failed: %v", err)
	}

	sink := &video.MemorySink{}
	frames, err := compositor.Run(context.Background(),
		video.NewMemorySource(left), video.NewMemorySource(right), sink, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if frames != 1 || len(sink.Frames) != 1 {
		t.Fatalf("composed %d frames, want 1", frames)
	}

	out := sink.Frames[0]
	bounds := out.Bounds()
	if bounds.Dx() != record.CanvasWidth || bounds.Dy() != record.CanvasHeight {
		t.Fatalf("output is %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), record.CanvasWidth, record.CanvasHeight)
	}

	// Left of the blend region the canvas must be the left frame
	// verbatim; right of it, the warped right frame. Both views were
	// cut from one scene, so the seams must agree with the sources.
	shift := frameW - overlap
	for y := 0; y < frameH; y += 7 {
		for x := 0; x < shift; x += 5 {
			if out.RGBAAt(x, y) != left.RGBAAt(x, y) {
				t.Fatalf("pixel (%d,%d) differs from left frame", x, y)
			}
		}
		for x := frameW + 1; x < record.CanvasWidth-1; x += 5 {
			got := out.RGBAAt(x, y)
			want := right.RGBAAt(x-shift, y)
			if absDiff(got.R, want.R) > 1 || absDiff(got.G, want.G) > 1 || absDiff(got.B, want.B) > 1 {
				t.Fatalf("pixel (%d,%d) = %v, want right-frame %v", x, y, got, want)
			}
		}
	}
}

func TestComposeBlendsIdenticalContentLosslessly(t *testing.T) {
	const frameW, frameH, overlap = 64, 48, 24
	cfg := testsupport.NewConfig(t)
	left, right := testsupport.OverlappingPair(frameW, frameH, overlap, 9)
	record := translationRecord(frameW, frameH, overlap)

	compositor, err := stitch.NewCompositor(cfg, logging.NewNop(), record)
	if err != nil {
		t.Fatalf("NewCompositor failed: %v", err)
	}
	sink := &video.MemorySink{}
	if _, err := compositor.Run(context.Background(),
		video.NewMemorySource(left), video.NewMemorySource(right), sink, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Inside the blend region both sources show the same scene pixels,
	// so blending must not alter them beyond rounding.
	out := sink.Frames[0]
	shift := frameW - overlap
	for y := 2; y < frameH-2; y += 9 {
		for x := shift + 1; x < frameW-1; x += 3 {
			got := out.RGBAAt(x, y)
			want := left.RGBAAt(x, y)
			if absDiff(got.R, want.R) > 2 || absDiff(got.G, want.G) > 2 || absDiff(got.B, want.B) > 2 {
				t.Fatalf("blend region pixel (%d,%d) = %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestComposeIdentityHardSeamKeepsLeftFrame(t *testing.T) {
	const frameW, frameH = 48, 32
	cfg := testsupport.NewConfig(t)
	left := testsupport.TexturedImage(frameW, frameH, 3)
	right := testsupport.TexturedImage(frameW, frameH, 4)

	// Identity transform with a hard seam at the right edge: the right
	// frame never wins a column, so the canvas is the left frame.
	record := translationRecord(frameW, frameH, frameW)
	record.BlendXStart = frameW
	record.BlendXEnd = frameW

	compositor, err := stitch.NewCompositor(cfg, logging.NewNop(), record)
	if err != nil {
		t.Fatalf("NewCompositor failed: %v", err)
	}
	sink := &video.MemorySink{}
	if _, err := compositor.Run(context.Background(),
		video.NewMemorySource(left), video.NewMemorySource(right), sink, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	out := sink.Frames[0]
	for y := 0; y < frameH; y++ {
		for x := 0; x < frameW; x++ {
			if out.RGBAAt(x, y) != left.RGBAAt(x, y) {
				t.Fatalf("pixel (%d,%d) altered by identity compose", x, y)
			}
		}
	}
}

func TestRunReportsStreamLengthMismatch(t *testing.T) {
	const frameW, frameH, overlap = 64, 48, 24
	cfg := testsupport.NewConfig(t)
	left, right := testsupport.OverlappingPair(frameW, frameH, overlap, 9)
	record := translationRecord(frameW, frameH, overlap)

	compositor, err := stitch.NewCompositor(cfg, logging.NewNop(), record)
	if err != nil {
		t.Fatalf("NewCompositor failed: %v", err)
	}

	leftFrames := testsupport.FrameSequence(left, 5)
	rightFrames := testsupport.FrameSequence(right, 7)
	sink := &video.MemorySink{}
	frames, err := compositor.Run(context.Background(),
		video.NewMemorySource(leftFrames...), video.NewMemorySource(rightFrames...), sink, nil)
	if !errors.Is(err, services.ErrStreamLengthMismatch) {
		t.Fatalf("expected ErrStreamLengthMismatch, got %v", err)
	}
	if frames != 5 || len(sink.Frames) != 5 {
		t.Fatalf("composed %d frames, want 5", frames)
	}
	if services.FailureStatus(err) != session.StatusCompleted {
		t.Fatal("length mismatch must still complete the session")
	}
}

func TestRunReportsProgress(t *testing.T) {
	const frameW, frameH, overlap = 64, 48, 24
	cfg := testsupport.NewConfig(t)
	cfg.Stitch.ProgressInterval = 2
	left, right := testsupport.OverlappingPair(frameW, frameH, overlap, 9)
	record := translationRecord(frameW, frameH, overlap)

	compositor, err := stitch.NewCompositor(cfg, logging.NewNop(), record)
	if err != nil {
		t.Fatalf("NewCompositor failed: %v", err)
	}

	var reports []int
	sink := &video.MemorySink{}
	frames, err := compositor.Run(context.Background(),
		video.NewMemorySource(testsupport.FrameSequence(left, 6)...),
		video.NewMemorySource(testsupport.FrameSequence(right, 6)...),
		sink,
		func(n int) { reports = append(reports, n) })
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if frames != 6 {
		t.Fatalf("composed %d frames, want 6", frames)
	}
	if len(reports) != 3 || reports[0] != 2 || reports[2] != 6 {
		t.Fatalf("progress reports = %v, want [2 4 6]", reports)
	}
}

func TestNewCompositorRejectsInvalidRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	record := translationRecord(64, 48, 24)
	record.CanvasWidth = 0
	if _, err := stitch.NewCompositor(cfg, logging.NewNop(), record); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

// failingSink rejects every frame, forcing Run to bail out on the
// first write.
type failingSink struct{}

func (failingSink) Write(*image.RGBA) error { return errors.New("sink full") }
func (failingSink) Close() error            { return nil }

func TestRunReleasesDecodersOnEarlyExit(t *testing.T) {
	const frameW, frameH, overlap = 64, 48, 24
	cfg := testsupport.NewConfig(t)
	cfg.Stitch.PipelineDepth = 2
	left, right := testsupport.OverlappingPair(frameW, frameH, overlap, 9)
	record := translationRecord(frameW, frameH, overlap)

	compositor, err := stitch.NewCompositor(cfg, logging.NewNop(), record)
	if err != nil {
		t.Fatalf("NewCompositor failed: %v", err)
	}

	baseline := runtime.NumGoroutine()
	_, err = compositor.Run(context.Background(),
		video.NewMemorySource(testsupport.FrameSequence(left, 50)...),
		video.NewMemorySource(testsupport.FrameSequence(right, 50)...),
		failingSink{}, nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}

	// Both decoders ran well ahead of the single composed frame; they
	// must wind down once Run returns.
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > baseline {
		if time.Now().After(deadline) {
			t.Fatalf("%d goroutines still running, started with %d",
				runtime.NumGoroutine(), baseline)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
