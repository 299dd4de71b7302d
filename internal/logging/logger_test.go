package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandlerFormatsComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	logger := slog.New(newPrettyHandler(&buf, level, false))
	logger = NewComponentLogger(logger, "aligner")
	logger.Info("offset resolved", Float64("offset_seconds", 1.25), String("method", "audio"))

	out := buf.String()
	if !strings.Contains(out, "INFO") {
		t.Fatalf("missing level label: %q", out)
	}
	if !strings.Contains(out, "aligner: offset resolved") {
		t.Fatalf("component prefix not rendered: %q", out)
	}
	if !strings.Contains(out, "offset_seconds=1.25") || !strings.Contains(out, "method=audio") {
		t.Fatalf("attrs not rendered: %q", out)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	logger := slog.New(newPrettyHandler(&buf, level, false))
	logger.Warn("stopping early", String("reason", "right stream ended"))

	if !strings.Contains(buf.String(), `reason="right stream ended"`) {
		t.Fatalf("value with spaces not quoted: %q", buf.String())
	}
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)

	logger := slog.New(newPrettyHandler(&buf, level, false))
	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("info record emitted below level: %q", buf.String())
	}
	logger.Error("kept")
	if !strings.Contains(buf.String(), "ERROR kept") {
		t.Fatalf("error record missing: %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Level: "info", Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	if got := parseLevel("verbose"); got != slog.LevelInfo {
		t.Fatalf("parseLevel(verbose) = %v, want info", got)
	}
	if got := parseLevel("debug"); got != slog.LevelDebug {
		t.Fatalf("parseLevel(debug) = %v, want debug", got)
	}
}
