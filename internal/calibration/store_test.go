package calibration_test

import (
	"errors"
	"os"
	"testing"

	"sideline/internal/align"
	"sideline/internal/calibrate"
	"sideline/internal/calibration"
	"sideline/internal/services"
	"sideline/internal/testsupport"
)

func sampleRecord(sessionKey string) *calibration.Record {
	result := calibrate.Result{
		Homography:  calibrate.Homography{1, 0, 400, 0, 1, 0, 0, 0, 1},
		Canvas:      calibrate.Canvas{Width: 1040, Height: 480},
		Blend:       calibrate.BlendRegion{XStart: 400, XEnd: 640},
		Matches:     80,
		Inliers:     62,
		InlierRatio: 0.775,
	}
	offset := align.Offset{Seconds: 0.5, Method: align.MethodCrossCorrelation, Confidence: 3.2}
	res := calibration.Resolution{Width: 640, Height: 480}
	return calibration.NewRecord(sessionKey, result, offset, "linear", res, res)
}

func TestStoreRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := calibration.NewStore(cfg)

	record := sampleRecord("2026-03-15")
	path, err := store.Save(record)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("record file missing: %v", err)
	}

	loaded, err := store.Load("2026-03-15")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Homography != record.Homography {
		t.Fatalf("homography changed across round trip: %v", loaded.Homography)
	}
	if loaded.Offset != record.Offset {
		t.Fatalf("temporal offset changed: %#v", loaded.Offset)
	}
	if loaded.BlendXStart != 400 || loaded.BlendXEnd != 640 {
		t.Fatalf("blend region changed: [%d, %d)", loaded.BlendXStart, loaded.BlendXEnd)
	}
}

func TestSaveOverwritesExistingRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := calibration.NewStore(cfg)

	first := sampleRecord("2026-03-15")
	if _, err := store.Save(first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	second := sampleRecord("2026-03-15")
	second.Inliers = 70
	if _, err := store.Save(second); err != nil {
		t.Fatalf("re-Save failed: %v", err)
	}

	loaded, err := store.Load("2026-03-15")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Inliers != 70 {
		t.Fatalf("overwrite not applied, inliers = %d", loaded.Inliers)
	}
}

func TestLoadMissingRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := calibration.NewStore(cfg)
	_, err := store.Load("2026-01-01")
	if !errors.Is(err, services.ErrCalibrationNotFound) {
		t.Fatalf("expected ErrCalibrationNotFound, got %v", err)
	}
}

func TestLoadRejectsSessionKeyMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := calibration.NewStore(cfg)

	record := sampleRecord("2026-03-15")
	if _, err := store.Save(record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	// Copy the record file under another session's name.
	payload, err := os.ReadFile(store.Path("2026-03-15"))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if err := os.WriteFile(store.Path("2026-04-01"), payload, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, err := store.Load("2026-04-01"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSaveRejectsInvalidRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := calibration.NewStore(cfg)

	record := sampleRecord("2026-03-15")
	record.CanvasWidth = 0
	if _, err := store.Save(record); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestValidateCatchesCorruption(t *testing.T) {
	record := sampleRecord("2026-03-15")
	record.Homography[4] = 0
	record.Homography[0] = 0
	record.Homography[8] = 0
	if err := record.Validate(); err == nil {
		t.Fatal("expected validation failure for zeroed homography")
	}

	record = sampleRecord("2026-03-15")
	record.BlendXEnd = record.BlendXStart - 1
	if err := record.Validate(); err == nil {
		t.Fatal("expected validation failure for inverted blend region")
	}

	// A hard seam (start == end) is valid.
	record = sampleRecord("2026-03-15")
	record.BlendXEnd = record.BlendXStart
	if err := record.Validate(); err != nil {
		t.Fatalf("hard seam rejected: %v", err)
	}
}
