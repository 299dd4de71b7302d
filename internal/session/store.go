package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sideline/internal/config"
)

// ErrSessionExists reports a duplicate session key on insert.
var ErrSessionExists = errors.New("session already exists")

// ErrSessionImmutable reports an update attempt on a completed session.
var ErrSessionImmutable = errors.New("session is immutable once completed")

// Store manages capture session persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the session ledger and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LibraryDir, "sessions.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the ledger file location.
func (s *Store) Path() string {
	return s.path
}

// NewSession inserts a pending session for a pair of raw sources.
func (s *Store) NewSession(ctx context.Context, key, leftSource, rightSource string) (*Session, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("session key is required")
	}
	if strings.TrimSpace(leftSource) == "" || strings.TrimSpace(rightSource) == "" {
		return nil, errors.New("both source paths are required")
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO capture_sessions (
            session_key, left_source, right_source, status,
            created_at, updated_at, progress_phase, progress_percent
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key,
		leftSource,
		rightSource,
		StatusPending,
		timestamp,
		timestamp,
		StatusPending.Phase(),
		0.0,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, fmt.Errorf("%w: %s", ErrSessionExists, key)
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a session by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM capture_sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// GetByKey fetches a session by its date-based key.
func (s *Store) GetByKey(ctx context.Context, key string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM capture_sessions WHERE session_key = ?`, strings.TrimSpace(key))
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by key: %w", err)
	}
	return sess, nil
}

// Update persists changes to an existing session. A session that already
// completed is immutable; retries go through RetryFailed instead.
func (s *Store) Update(ctx context.Context, sess *Session) error {
	if sess == nil {
		return errors.New("session is nil")
	}

	current, err := s.GetByID(ctx, sess.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("session %d not found", sess.ID)
	}
	if current.Status == StatusCompleted {
		return fmt.Errorf("%w: %s", ErrSessionImmutable, current.SessionKey)
	}

	sess.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE capture_sessions
         SET left_source = ?, right_source = ?, status = ?,
             offset_seconds = ?, offset_method = ?, offset_confidence = ?,
             calibration_path = ?, output_path = ?, frames_stitched = ?,
             partial = ?, warning = ?, error_message = ?,
             progress_phase = ?, progress_percent = ?, progress_message = ?,
             updated_at = ?
         WHERE id = ?`,
		sess.LeftSource,
		sess.RightSource,
		sess.Status,
		nullableFloat(sess.OffsetSeconds),
		nullableString(sess.OffsetMethod),
		sess.OffsetConfidence,
		nullableString(sess.CalibrationPath),
		nullableString(sess.OutputPath),
		sess.FramesStitched,
		boolToInt(sess.Partial),
		nullableString(sess.Warning),
		nullableString(sess.ErrorMessage),
		nullableString(sess.ProgressPhase),
		sess.ProgressPercent,
		nullableString(sess.ProgressMessage),
		sess.UpdatedAt.Format(time.RFC3339Nano),
		sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// UpdateProgress persists only the progress fields and frame counter. This is
// the hot path during stitching and skips the immutability read.
func (s *Store) UpdateProgress(ctx context.Context, sess *Session) error {
	if sess == nil {
		return errors.New("session is nil")
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE capture_sessions
         SET progress_phase = ?, progress_percent = ?, progress_message = ?,
             frames_stitched = ?, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?)`,
		nullableString(sess.ProgressPhase),
		sess.ProgressPercent,
		nullableString(sess.ProgressMessage),
		sess.FramesStitched,
		now.Format(time.RFC3339Nano),
		sess.ID,
		StatusCompleted,
		StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// List returns sessions filtered by status set (or all when none is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Session, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + sessionColumns + ` FROM capture_sessions`
	orderClause := ` ORDER BY created_at`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// NextForStatuses returns the oldest session matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Session, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + sessionColumns + ` FROM capture_sessions WHERE status IN (` + placeholders + `) ORDER BY created_at LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ResetStuckProcessing rolls sessions stranded in a processing state by a
// crashed run back to the last stable status.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	var total int64
	for from, to := range stageRollbackTransitions {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE capture_sessions
             SET status = ?, progress_phase = ?, progress_percent = 0,
                 progress_message = 'Reset from interrupted run', updated_at = ?
             WHERE status = ?`,
			to,
			to.Phase(),
			time.Now().UTC().Format(time.RFC3339Nano),
			from,
		)
		if err != nil {
			return total, fmt.Errorf("reset stuck sessions: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += affected
	}
	return total, nil
}

// RetryFailed moves failed sessions back to pending for reprocessing. The
// caller decides whether to relax calibration thresholds before re-running.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE capture_sessions
            SET status = ?, progress_phase = 'Retry requested', progress_percent = 0,
                progress_message = NULL, error_message = NULL, partial = 0,
                warning = NULL, frames_stitched = 0, updated_at = ?
            WHERE status = ?`,
			StatusPending,
			timestamp,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed sessions: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, StatusPending, timestamp)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE capture_sessions
        SET status = ?, progress_phase = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL, partial = 0,
            warning = NULL, frames_stitched = 0, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = '` + string(StatusFailed) + `'`
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry selected sessions: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of sessions grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM capture_sessions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates ledger state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusFailed:
			health.Failed += count
		case StatusCompleted:
			health.Completed += count
		default:
			if _, ok := processingStatuses[status]; ok {
				health.Processing += count
			}
		}
	}
	return health, nil
}

// Remove deletes a session by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM capture_sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed sessions from the ledger.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM capture_sessions WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

const sessionColumns = "id, session_key, left_source, right_source, status, offset_seconds, offset_method, offset_confidence, calibration_path, output_path, frames_stitched, partial, warning, error_message, progress_phase, progress_percent, progress_message, created_at, updated_at"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id               int64
		sessionKey       string
		leftSource       string
		rightSource      string
		statusStr        string
		offsetSeconds    sql.NullFloat64
		offsetMethod     sql.NullString
		offsetConfidence sql.NullFloat64
		calibrationPath  sql.NullString
		outputPath       sql.NullString
		framesStitched   sql.NullInt64
		partial          sql.NullInt64
		warning          sql.NullString
		errorMessage     sql.NullString
		progressPhase    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sessionKey,
		&leftSource,
		&rightSource,
		&statusStr,
		&offsetSeconds,
		&offsetMethod,
		&offsetConfidence,
		&calibrationPath,
		&outputPath,
		&framesStitched,
		&partial,
		&warning,
		&errorMessage,
		&progressPhase,
		&progressPercent,
		&progressMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	sess := &Session{
		ID:               id,
		SessionKey:       sessionKey,
		LeftSource:       leftSource,
		RightSource:      rightSource,
		Status:           Status(statusStr),
		OffsetMethod:     offsetMethod.String,
		OffsetConfidence: offsetConfidence.Float64,
		CalibrationPath:  calibrationPath.String,
		OutputPath:       outputPath.String,
		FramesStitched:   framesStitched.Int64,
		Warning:          warning.String,
		ErrorMessage:     errorMessage.String,
		ProgressPhase:    progressPhase.String,
		ProgressPercent:  progressPercent.Float64,
		ProgressMessage:  progressMessage.String,
	}
	if offsetSeconds.Valid {
		v := offsetSeconds.Float64
		sess.OffsetSeconds = &v
	}
	if partial.Valid {
		sess.Partial = partial.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		sess.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		sess.UpdatedAt = updated
	}
	return sess, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
