package session_test

import (
	"context"
	"errors"
	"testing"

	"sideline/internal/session"
	"sideline/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	sess, err := store.NewSession(ctx, "2026-03-15", "/captures/left.mp4", "/captures/right.mp4")
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if sess.ID == 0 {
		t.Fatal("expected session ID to be assigned")
	}
	if sess.Status != session.StatusPending {
		t.Fatalf("status = %s, want pending", sess.Status)
	}

	fetched, err := store.GetByKey(ctx, "2026-03-15")
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if fetched == nil || fetched.ID != sess.ID {
		t.Fatalf("unexpected fetched session: %#v", fetched)
	}
}

func TestNewSessionRejectsDuplicateKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewSession(t, store, "2026-03-15", "/a/left.mp4", "/a/right.mp4")
	if _, err := store.NewSession(ctx, "2026-03-15", "/b/left.mp4", "/b/right.mp4"); !errors.Is(err, session.ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
}

func TestUpdateRoundTripsOffsetAndArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	sess := testsupport.NewSession(t, store, "2026-03-15", "/a/left.mp4", "/a/right.mp4")

	sess.Status = session.StatusAligned
	sess.SetOffset(1.25, "audio", 0.87)
	sess.CalibrationPath = "/cal/2026-03-15_cal.json"
	if err := store.Update(ctx, sess); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.OffsetSeconds == nil || *fetched.OffsetSeconds != 1.25 {
		t.Fatalf("offset not persisted: %#v", fetched.OffsetSeconds)
	}
	if fetched.OffsetMethod != "audio" || fetched.OffsetConfidence != 0.87 {
		t.Fatalf("offset metadata not persisted: %s %v", fetched.OffsetMethod, fetched.OffsetConfidence)
	}
	if fetched.CalibrationPath != "/cal/2026-03-15_cal.json" {
		t.Fatalf("calibration path = %q", fetched.CalibrationPath)
	}
}

func TestCompletedSessionIsImmutable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	sess := testsupport.NewSession(t, store, "2026-03-15", "/a/left.mp4", "/a/right.mp4")
	sess.Status = session.StatusCompleted
	sess.FramesStitched = 300
	if err := store.Update(ctx, sess); err != nil {
		t.Fatalf("Update to completed failed: %v", err)
	}

	sess.OutputPath = "/tampered.mp4"
	if err := store.Update(ctx, sess); !errors.Is(err, session.ErrSessionImmutable) {
		t.Fatalf("expected ErrSessionImmutable, got %v", err)
	}
}

func TestResetStuckProcessingRollsBack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		key      string
		stuck    session.Status
		rollback session.Status
	}{
		{"2026-03-01", session.StatusAligning, session.StatusPending},
		{"2026-03-02", session.StatusCalibrating, session.StatusAligned},
		{"2026-03-03", session.StatusStitching, session.StatusCalibrated},
	}
	for _, tc := range cases {
		sess := testsupport.NewSession(t, store, tc.key, "/l.mp4", "/r.mp4")
		sess.Status = tc.stuck
		if err := store.Update(ctx, sess); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	affected, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if affected != int64(len(cases)) {
		t.Fatalf("affected = %d, want %d", affected, len(cases))
	}
	for _, tc := range cases {
		fetched, err := store.GetByKey(ctx, tc.key)
		if err != nil {
			t.Fatalf("GetByKey failed: %v", err)
		}
		if fetched.Status != tc.rollback {
			t.Fatalf("%s: status = %s, want %s", tc.key, fetched.Status, tc.rollback)
		}
	}
}

func TestRetryFailedClearsPartialState(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	sess := testsupport.NewSession(t, store, "2026-03-15", "/l.mp4", "/r.mp4")
	sess.SetFailed("calibrating: low inlier ratio")
	sess.FramesStitched = 42
	if err := store.Update(ctx, sess); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	affected, err := store.RetryFailed(ctx, sess.ID)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("affected = %d, want 1", affected)
	}
	fetched, err := store.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != session.StatusPending {
		t.Fatalf("status = %s, want pending", fetched.Status)
	}
	if fetched.ErrorMessage != "" || fetched.FramesStitched != 0 {
		t.Fatalf("retry did not clear failure state: %#v", fetched)
	}
}

func TestStatsAndNextForStatuses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewSession(t, store, "2026-03-01", "/l1.mp4", "/r1.mp4")
	testsupport.NewSession(t, store, "2026-03-02", "/l2.mp4", "/r2.mp4")

	next, err := store.NextForStatuses(ctx, session.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest pending session, got %#v", next)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[session.StatusPending] != 2 {
		t.Fatalf("pending count = %d, want 2", stats[session.StatusPending])
	}
}

func TestCompletionLabel(t *testing.T) {
	s := session.Session{Status: session.StatusCompleted}
	if s.CompletionLabel() != "Done" {
		t.Fatalf("label = %s", s.CompletionLabel())
	}
	s.Partial = true
	if s.CompletionLabel() != "Done(partial)" {
		t.Fatalf("label = %s", s.CompletionLabel())
	}
	s = session.Session{Status: session.StatusFailed}
	if s.CompletionLabel() != "Failed" {
		t.Fatalf("label = %s", s.CompletionLabel())
	}
	s = session.Session{Status: session.StatusStitching}
	if s.CompletionLabel() != "Stitching" {
		t.Fatalf("label = %s", s.CompletionLabel())
	}
}
