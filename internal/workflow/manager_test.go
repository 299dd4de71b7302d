package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"sideline/internal/align"
	"sideline/internal/calibration"
	"sideline/internal/config"
	"sideline/internal/logging"
	"sideline/internal/media/video"
	"sideline/internal/services"
	"sideline/internal/session"
	"sideline/internal/stage"
	"sideline/internal/testsupport"
	"sideline/internal/workflow"
)

// fakeMedia serves in-memory frame streams keyed by source path.
type fakeMedia struct {
	streams map[string][]*image.RGBA
	infos   map[string]stage.MediaInfo
	outputs map[string]*video.MemorySink
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{
		streams: make(map[string][]*image.RGBA),
		infos:   make(map[string]stage.MediaInfo),
		outputs: make(map[string]*video.MemorySink),
	}
}

func (f *fakeMedia) addStream(path string, frames []*image.RGBA, fps float64) {
	bounds := frames[0].Bounds()
	f.streams[path] = frames
	f.infos[path] = stage.MediaInfo{
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		FPS:        fps,
		FrameCount: len(frames),
	}
}

func (f *fakeMedia) Probe(ctx context.Context, path string) (stage.MediaInfo, error) {
	info, ok := f.infos[path]
	if !ok {
		return stage.MediaInfo{}, fmt.Errorf("no such stream %s", path)
	}
	return info, nil
}

func (f *fakeMedia) OpenVideo(ctx context.Context, path string) (video.Source, error) {
	frames, ok := f.streams[path]
	if !ok {
		return nil, fmt.Errorf("no such stream %s", path)
	}
	return video.NewMemorySource(frames...), nil
}

func (f *fakeMedia) OpenOutput(ctx context.Context, path string, opts video.SinkOptions) (video.Sink, error) {
	sink := &video.MemorySink{}
	f.outputs[path] = sink
	return sink, nil
}

// stubAligner returns a fixed offset without touching any media.
type stubAligner struct {
	offset align.Offset
	err    error
}

func (s stubAligner) Align(ctx context.Context, leftPath, rightPath string) (align.Offset, error) {
	return s.offset, s.err
}

// pipelineFixture wires a full manager over fake media.
type pipelineFixture struct {
	cfg     *config.Config
	store   *session.Store
	records *calibration.Store
	media   *fakeMedia
	manager *workflow.Manager
	sess    *session.Session
}

func newPipelineFixture(t *testing.T, aligner stage.TemporalAligner, leftFrames, rightFrames []*image.RGBA) *pipelineFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithRelaxedCalibration())
	store := testsupport.MustOpenStore(t, cfg)
	records := calibration.NewStore(cfg)
	logger := logging.NewNop()

	leftPath := filepath.Join(t.TempDir(), "left.mp4")
	rightPath := filepath.Join(t.TempDir(), "right.mp4")
	for _, path := range []string{leftPath, rightPath} {
		if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
			t.Fatalf("write stub source: %v", err)
		}
	}

	media := newFakeMedia()
	media.addStream(leftPath, leftFrames, 30)
	media.addStream(rightPath, rightFrames, 30)

	alignStage := stage.NewAlign(cfg, logger)
	alignStage.SetAligner(aligner)
	calibrateStage := stage.NewCalibrate(cfg, records, logger)
	calibrateStage.SetMedia(media)
	stitchStage := stage.NewStitch(cfg, store, records, logger)
	stitchStage.SetMedia(media)

	manager := workflow.NewManager(cfg, store, logger, workflow.StageSet{
		Aligner:    alignStage,
		Calibrator: calibrateStage,
		Stitcher:   stitchStage,
	})
	sess := testsupport.NewSession(t, store, "2026-03-15", leftPath, rightPath)
	return &pipelineFixture{cfg: cfg, store: store, records: records, media: media, manager: manager, sess: sess}
}

func TestRunSessionCompletesPipeline(t *testing.T) {
	left, right := testsupport.OverlappingPair(320, 240, 120, 5)
	fx := newPipelineFixture(t,
		stubAligner{offset: align.Offset{Seconds: 0, Method: align.MethodMetadata, Confidence: 1}},
		testsupport.FrameSequence(left, 6),
		testsupport.FrameSequence(right, 6),
	)

	if err := fx.manager.RunSession(context.Background(), fx.sess); err != nil {
		t.Fatalf("RunSession failed: %v", err)
	}

	stored, err := fx.store.GetByID(context.Background(), fx.sess.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != session.StatusCompleted || stored.Partial {
		t.Fatalf("session state = %s partial=%v, want completed", stored.Status, stored.Partial)
	}
	if stored.OffsetSeconds == nil || *stored.OffsetSeconds != 0 || stored.OffsetMethod != align.MethodMetadata {
		t.Fatalf("offset not persisted: %#v", stored)
	}
	if stored.CalibrationPath == "" {
		t.Fatal("calibration path not persisted")
	}
	if _, err := fx.records.Load("2026-03-15"); err != nil {
		t.Fatalf("calibration record not saved: %v", err)
	}
	if stored.FramesStitched != 6 {
		t.Fatalf("frames stitched = %d, want 6", stored.FramesStitched)
	}

	sink, ok := fx.media.outputs[stored.OutputPath]
	if !ok {
		t.Fatalf("no output stream written at %q", stored.OutputPath)
	}
	if len(sink.Frames) != 6 {
		t.Fatalf("output has %d frames, want 6", len(sink.Frames))
	}
}

func TestRunSessionAppliesOffsetSkips(t *testing.T) {
	left, right := testsupport.OverlappingPair(320, 240, 120, 5)
	// Right started 0.1s (3 frames at 30fps) after left: the aligned
	// streams share len-3 frames.
	fx := newPipelineFixture(t,
		stubAligner{offset: align.Offset{Seconds: 0.1, Method: align.MethodCrossCorrelation, Confidence: 4}},
		testsupport.FrameSequence(left, 9),
		testsupport.FrameSequence(right, 6),
	)

	if err := fx.manager.RunSession(context.Background(), fx.sess); err != nil {
		t.Fatalf("RunSession failed: %v", err)
	}
	stored, err := fx.store.GetByID(context.Background(), fx.sess.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != session.StatusCompleted || stored.Partial {
		t.Fatalf("session state = %s partial=%v, want clean completion", stored.Status, stored.Partial)
	}
	if stored.FramesStitched != 6 {
		t.Fatalf("frames stitched = %d, want 6", stored.FramesStitched)
	}
}

func TestRunSessionCompletesPartiallyOnStreamMismatch(t *testing.T) {
	left, right := testsupport.OverlappingPair(320, 240, 120, 5)
	fx := newPipelineFixture(t,
		stubAligner{offset: align.Offset{Seconds: 0, Method: align.MethodMetadata, Confidence: 1}},
		testsupport.FrameSequence(left, 5),
		testsupport.FrameSequence(right, 8),
	)

	err := fx.manager.RunSession(context.Background(), fx.sess)
	if !errors.Is(err, services.ErrStreamLengthMismatch) {
		t.Fatalf("expected ErrStreamLengthMismatch, got %v", err)
	}

	stored, getErr := fx.store.GetByID(context.Background(), fx.sess.ID)
	if getErr != nil {
		t.Fatalf("GetByID failed: %v", getErr)
	}
	if stored.Status != session.StatusCompleted {
		t.Fatalf("status = %s, want completed", stored.Status)
	}
	if !stored.Partial || stored.Warning == "" {
		t.Fatalf("expected partial completion with warning, got %#v", stored)
	}
	if stored.CompletionLabel() != "Done(partial)" {
		t.Fatalf("label = %s", stored.CompletionLabel())
	}
	if stored.FramesStitched != 5 {
		t.Fatalf("frames stitched = %d, want 5", stored.FramesStitched)
	}
}

func TestRunSessionRejectsMismatchedRightResolution(t *testing.T) {
	left, right := testsupport.OverlappingPair(320, 240, 120, 5)
	fx := newPipelineFixture(t,
		stubAligner{offset: align.Offset{Seconds: 0, Method: align.MethodMetadata, Confidence: 1}},
		testsupport.FrameSequence(left, 4),
		testsupport.FrameSequence(right, 4),
	)

	if err := fx.manager.RunUntil(context.Background(), fx.sess, session.StatusCalibrated); err != nil {
		t.Fatalf("RunUntil failed: %v", err)
	}

	// The right source re-encoded at another resolution after
	// calibration: stitching must refuse instead of warping with the
	// stale geometry.
	swapped := testsupport.TexturedImage(640, 480, 5)
	fx.media.addStream(fx.sess.RightSource, testsupport.FrameSequence(swapped, 4), 30)

	err := fx.manager.RunSession(context.Background(), fx.sess)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	stored, getErr := fx.store.GetByID(context.Background(), fx.sess.ID)
	if getErr != nil {
		t.Fatalf("GetByID failed: %v", getErr)
	}
	if stored.Status != session.StatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
}

func TestRunSessionFailsWhenAlignmentUnavailable(t *testing.T) {
	left, right := testsupport.OverlappingPair(320, 240, 120, 5)
	alignErr := services.Wrap(services.ErrAlignmentUnavailable, "Aligning", "correlate", "audio track is silent", nil)
	fx := newPipelineFixture(t,
		stubAligner{err: alignErr},
		testsupport.FrameSequence(left, 4),
		testsupport.FrameSequence(right, 4),
	)

	err := fx.manager.RunSession(context.Background(), fx.sess)
	if !errors.Is(err, services.ErrAlignmentUnavailable) {
		t.Fatalf("expected ErrAlignmentUnavailable, got %v", err)
	}

	stored, getErr := fx.store.GetByID(context.Background(), fx.sess.ID)
	if getErr != nil {
		t.Fatalf("GetByID failed: %v", getErr)
	}
	if stored.Status != session.StatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
	if stored.ErrorMessage == "" {
		t.Fatal("expected persisted error message")
	}
	if fx.manager.LastError() == nil {
		t.Fatal("manager did not record the failure")
	}
}

func TestRunSessionRefusesTerminalSession(t *testing.T) {
	left, right := testsupport.OverlappingPair(320, 240, 120, 5)
	fx := newPipelineFixture(t,
		stubAligner{offset: align.Offset{Method: align.MethodMetadata, Confidence: 1}},
		testsupport.FrameSequence(left, 4),
		testsupport.FrameSequence(right, 4),
	)
	fx.sess.Status = session.StatusFailed
	if err := fx.manager.RunSession(context.Background(), fx.sess); err == nil {
		t.Fatal("expected refusal for a terminal session")
	}
}

func TestRecoverRollsBackInterruptedSessions(t *testing.T) {
	left, right := testsupport.OverlappingPair(320, 240, 120, 5)
	fx := newPipelineFixture(t,
		stubAligner{offset: align.Offset{Method: align.MethodMetadata, Confidence: 1}},
		testsupport.FrameSequence(left, 4),
		testsupport.FrameSequence(right, 4),
	)

	fx.sess.Status = session.StatusCalibrating
	if err := fx.store.Update(context.Background(), fx.sess); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	affected, err := fx.manager.Recover(context.Background())
	if err != nil {
		t.Fatalf("Recover failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("recovered %d sessions, want 1", affected)
	}
	stored, err := fx.store.GetByID(context.Background(), fx.sess.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != session.StatusAligned {
		t.Fatalf("status = %s, want aligned", stored.Status)
	}
}

func TestProcessNextPicksOldestActionableSession(t *testing.T) {
	left, right := testsupport.OverlappingPair(320, 240, 120, 5)
	fx := newPipelineFixture(t,
		stubAligner{offset: align.Offset{Method: align.MethodMetadata, Confidence: 1}},
		testsupport.FrameSequence(left, 4),
		testsupport.FrameSequence(right, 4),
	)

	sess, found, err := fx.manager.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("ProcessNext failed: %v", err)
	}
	if !found || sess.ID != fx.sess.ID {
		t.Fatalf("ProcessNext picked %#v", sess)
	}

	if _, found, err = fx.manager.ProcessNext(context.Background()); err != nil {
		t.Fatalf("second ProcessNext failed: %v", err)
	} else if found {
		t.Fatal("expected no actionable session after completion")
	}
}
