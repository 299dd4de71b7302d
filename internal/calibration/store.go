package calibration

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"sideline/internal/config"
	"sideline/internal/services"
)

// Store persists calibration records as JSON files keyed by session,
// one file per session. Saving the same session again overwrites the
// previous record.
type Store struct {
	dir string
}

// NewStore builds a store rooted at the configured calibration
// directory.
func NewStore(cfg *config.Config) *Store {
	return &Store{dir: cfg.Paths.CalibrationDir}
}

// Path returns the record file path for a session key.
func (s *Store) Path(sessionKey string) string {
	return filepath.Join(s.dir, sessionKey+"_calibration.json")
}

// Save validates and writes the record. The write is atomic: a temp
// file in the same directory is renamed over the target, so a crash
// never leaves a half-written record behind.
func (s *Store) Save(record *Record) (string, error) {
	if err := record.Validate(); err != nil {
		return "", services.Wrap(services.ErrValidation, "Calibrating", "save-record", "", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("calibration store: %w", err)
	}

	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("calibration store: encode: %w", err)
	}
	payload = append(payload, '\n')

	target := s.Path(record.SessionKey)
	tmp, err := os.CreateTemp(s.dir, ".calibration-*.tmp")
	if err != nil {
		return "", fmt.Errorf("calibration store: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("calibration store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("calibration store: close: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("calibration store: rename: %w", err)
	}
	return target, nil
}

// Load retrieves and validates the record for a session. A stored
// record whose session key disagrees with the requested one is
// rejected; calibrations are never reused across sessions.
func (s *Store) Load(sessionKey string) (*Record, error) {
	payload, err := os.ReadFile(s.Path(sessionKey))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrCalibrationNotFound, "Stitching", "load-record", sessionKey, nil)
		}
		return nil, fmt.Errorf("calibration store: %w", err)
	}

	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, services.Wrap(services.ErrValidation, "Stitching", "load-record", sessionKey, err)
	}
	if err := record.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "Stitching", "load-record", sessionKey, err)
	}
	if record.SessionKey != sessionKey {
		return nil, services.Wrap(services.ErrValidation, "Stitching", "load-record",
			fmt.Sprintf("record belongs to session %s, not %s", record.SessionKey, sessionKey), nil)
	}
	return &record, nil
}

// Remove deletes the record for a session if one exists.
func (s *Store) Remove(sessionKey string) error {
	err := os.Remove(s.Path(sessionKey))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("calibration store: %w", err)
	}
	return nil
}
