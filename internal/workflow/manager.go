package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"sideline/internal/config"
	"sideline/internal/logging"
	"sideline/internal/session"
	"sideline/internal/stage"
)

// StageSet bundles the concrete pipeline handlers the manager drives.
type StageSet struct {
	Aligner    stage.Handler
	Calibrator stage.Handler
	Stitcher   stage.Handler
}

// pipelineStage binds a handler to the status transitions around it.
type pipelineStage struct {
	name       string
	handler    stage.Handler
	start      session.Status
	processing session.Status
	done       session.Status
}

// Manager advances sessions through the alignment, calibration, and
// stitch stages. A processing lock enforces one pipeline run per
// library at a time; sessions themselves run one stage after another
// with no internal retries.
type Manager struct {
	cfg    *config.Config
	store  *session.Store
	logger *slog.Logger
	stages []pipelineStage
	lock   *flock.Flock

	mu      sync.Mutex
	lastErr error
	lastRun time.Time
}

// NewManager wires the stage set into the pipeline order.
func NewManager(cfg *config.Config, store *session.Store, logger *slog.Logger, set StageSet) *Manager {
	return &Manager{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "workflow"),
		stages: []pipelineStage{
			{name: "align", handler: set.Aligner, start: session.StatusPending, processing: session.StatusAligning, done: session.StatusAligned},
			{name: "calibrate", handler: set.Calibrator, start: session.StatusAligned, processing: session.StatusCalibrating, done: session.StatusCalibrated},
			{name: "stitch", handler: set.Stitcher, start: session.StatusCalibrated, processing: session.StatusStitching, done: session.StatusCompleted},
		},
		lock: flock.New(filepath.Join(cfg.Paths.LibraryDir, "sideline.lock")),
	}
}

// LastError reports the most recent stage failure, for status output.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// LastRun reports when the most recent pipeline run finished.
func (m *Manager) LastRun() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRun
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = err
	m.lastRun = time.Now()
}

// stageForStatus finds the stage that starts from the given status.
func (m *Manager) stageForStatus(status session.Status) (pipelineStage, bool) {
	for _, stg := range m.stages {
		if stg.start == status {
			return stg, true
		}
	}
	return pipelineStage{}, false
}

// acquireLock takes the processing lock or reports who holds it.
func (m *Manager) acquireLock() error {
	ok, err := m.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire processing lock: %w", err)
	}
	if !ok {
		return errors.New("another sideline process is already running against this library")
	}
	return nil
}

func (m *Manager) releaseLock() {
	if err := m.lock.Unlock(); err != nil {
		m.logger.Warn("failed to release processing lock", slog.String("error", err.Error()))
	}
}

// Health reports per-stage readiness.
func (m *Manager) Health(ctx context.Context) []stage.Health {
	checks := make([]stage.Health, 0, len(m.stages))
	for _, stg := range m.stages {
		if stg.handler == nil {
			checks = append(checks, stage.Unhealthy(stg.name, "handler not configured"))
			continue
		}
		checks = append(checks, stg.handler.HealthCheck(ctx))
	}
	return checks
}

// newRunID tags one pipeline run for log correlation.
func newRunID() string {
	return uuid.NewString()
}
