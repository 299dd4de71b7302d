package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"sideline/internal/session"
	"sideline/internal/testsupport"
)

func TestConfigInitCreatesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
}

func TestStatusWithoutSessions(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "No sessions yet")
}

func TestStatusListsSessions(t *testing.T) {
	env := setupCLITestEnv(t)

	store := testsupport.MustOpenStore(t, env.cfg)
	sess := testsupport.NewSession(t, store, "2025-06-07", "/footage/left.mp4", "/footage/right.mp4")
	sess.SetOffset(1.25, "metadata", 1.0)
	if err := store.Update(context.Background(), sess); err != nil {
		t.Fatalf("update session: %v", err)
	}
	store.Close()

	out, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "2025-06-07")
	requireContains(t, out, "+1.250s (metadata)")

	out, err = runCLI(t, []string{"status", "--counts"}, env.configPath)
	if err != nil {
		t.Fatalf("status --counts: %v", err)
	}
	requireContains(t, out, "Pending")
}

func TestShowDisplaysSessionDetail(t *testing.T) {
	env := setupCLITestEnv(t)

	store := testsupport.MustOpenStore(t, env.cfg)
	sess := testsupport.NewSession(t, store, "2025-06-08", "/footage/left.mp4", "/footage/right.mp4")
	sess.SetFailed("alignment unavailable: no audio track")
	if err := store.Update(context.Background(), sess); err != nil {
		t.Fatalf("update session: %v", err)
	}
	store.Close()

	out, err := runCLI(t, []string{"show", "2025-06-08"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Session 2025-06-08")
	requireContains(t, out, "/footage/left.mp4")
	requireContains(t, out, "no audio track")
}

func TestShowUnknownSessionFails(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, err := runCLI(t, []string{"show", "2031-01-01"}, env.configPath); err == nil {
		t.Fatal("expected show of unknown session to fail")
	}
}

func TestRetryResetsFailedSession(t *testing.T) {
	env := setupCLITestEnv(t)

	store := testsupport.MustOpenStore(t, env.cfg)
	sess := testsupport.NewSession(t, store, "2025-06-09", "/footage/left.mp4", "/footage/right.mp4")
	sess.SetFailed("boom")
	if err := store.Update(context.Background(), sess); err != nil {
		t.Fatalf("update session: %v", err)
	}
	id := sess.ID
	store.Close()

	out, err := runCLI(t, []string{"retry", strconv.FormatInt(id, 10)}, env.configPath)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	requireContains(t, out, "Reset 1 sessions for retry")

	store = testsupport.MustOpenStore(t, env.cfg)
	defer store.Close()
	reloaded, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if reloaded.Status != session.StatusPending {
		t.Fatalf("expected pending after retry, got %s", reloaded.Status)
	}
}

func TestRetryRejectsBadIDs(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, err := runCLI(t, []string{"retry", "zero"}, env.configPath); err == nil {
		t.Fatal("expected invalid id to fail")
	}
}

func TestSessionViews(t *testing.T) {
	if got := formatStatusLabel(session.StatusCalibrating); got != "Calibrating" {
		t.Fatalf("formatStatusLabel = %q", got)
	}
	offset := -0.5
	sess := &session.Session{OffsetSeconds: &offset, OffsetMethod: "cross-correlation"}
	if got := formatOffset(sess); got != "-0.500s (cross-correlation)" {
		t.Fatalf("formatOffset = %q", got)
	}
	if got := formatOffset(&session.Session{}); got != "-" {
		t.Fatalf("formatOffset on empty = %q", got)
	}
}
