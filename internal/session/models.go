package session

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a capture session.
type Status string

const (
	StatusPending     Status = "pending"
	StatusAligning    Status = "aligning"
	StatusAligned     Status = "aligned"
	StatusCalibrating Status = "calibrating"
	StatusCalibrated  Status = "calibrated"
	StatusStitching   Status = "stitching"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusAligning,
	StatusAligned,
	StatusCalibrating,
	StatusCalibrated,
	StatusStitching,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusAligning:    {},
	StatusCalibrating: {},
	StatusStitching:   {},
}

// stageRollbackTransitions map an in-flight status back to the last stable
// status when a crashed run is reset.
var stageRollbackTransitions = map[Status]Status{
	StatusAligning:    StatusPending,
	StatusCalibrating: StatusAligned,
	StatusStitching:   StatusCalibrated,
}

// HealthSummary describes aggregated session counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// Session represents one recorded match: two raw sources and the derived
// artifacts produced by the pipeline. Persisted in SQLite.
type Session struct {
	ID          int64
	SessionKey  string
	LeftSource  string
	RightSource string
	Status      Status

	OffsetSeconds    *float64
	OffsetMethod     string
	OffsetConfidence float64

	CalibrationPath string
	OutputPath      string
	FramesStitched  int64

	// Partial marks a completed session whose output stopped at the shorter
	// stream. Warning carries the operator-facing explanation.
	Partial bool
	Warning string

	ErrorMessage    string
	ProgressPhase   string
	ProgressPercent float64
	ProgressMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight phase.
func (s Session) IsProcessing() bool {
	_, ok := processingStatuses[s.Status]
	return ok
}

// IsTerminal reports whether the session reached a final state.
func (s Session) IsTerminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// Phase maps a status to the pipeline phase name used in progress output.
func (s Status) Phase() string {
	switch s {
	case StatusPending:
		return "Idle"
	case StatusAligning, StatusAligned:
		return "Aligning"
	case StatusCalibrating, StatusCalibrated:
		return "Calibrating"
	case StatusStitching:
		return "Stitching"
	case StatusCompleted:
		return "Done"
	case StatusFailed:
		return "Failed"
	default:
		return string(s)
	}
}

// CompletionLabel renders the unambiguous completion status: Done,
// Done(partial), or Failed. Non-terminal sessions report their phase.
func (s Session) CompletionLabel() string {
	switch {
	case s.Status == StatusCompleted && s.Partial:
		return "Done(partial)"
	case s.Status == StatusCompleted:
		return "Done"
	case s.Status == StatusFailed:
		return "Failed"
	default:
		return s.Status.Phase()
	}
}

// SetProgress updates all three progress fields together.
func (s *Session) SetProgress(phase, message string, percent float64) {
	s.ProgressPhase = phase
	s.ProgressMessage = message
	s.ProgressPercent = percent
}

// SetFailed marks the session as failed with the given error message.
func (s *Session) SetFailed(message string) {
	s.Status = StatusFailed
	s.ErrorMessage = message
	s.ProgressPhase = "Failed"
	s.ProgressPercent = 0
	s.ProgressMessage = message
}

// SetOffset records the resolved temporal offset on the session.
func (s *Session) SetOffset(seconds float64, method string, confidence float64) {
	v := seconds
	s.OffsetSeconds = &v
	s.OffsetMethod = method
	s.OffsetConfidence = confidence
}
