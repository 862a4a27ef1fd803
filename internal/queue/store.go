package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MaFalana/HWC-POTREE-API/internal/config"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the job database at cfg.DatabasePath().
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the job database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
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

// Path returns the filesystem location of the database.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const jobColumns = `id, project_id, status, current_step, progress_message, error_message,
	file_path, remote_staging_path, retry_count, created_at, updated_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job         Job
		status      string
		step        string
		createdAt   string
		updatedAt   string
		completedAt sql.NullString
	)
	err := row.Scan(
		&job.ID,
		&job.ProjectID,
		&status,
		&step,
		&job.ProgressMessage,
		&job.ErrorMessage,
		&job.FilePath,
		&job.RemoteStagingPath,
		&job.RetryCount,
		&createdAt,
		&updatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Status = Status(status)
	job.CurrentStep = Step(step)
	if job.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if job.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if completedAt.Valid && completedAt.String != "" {
		done, err := parseTimestamp(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		job.CompletedAt = &done
	}
	return &job, nil
}

// timestampLayout keeps a fixed-width fraction so that lexicographic order
// on the stored text matches chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func parseTimestamp(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, value)
}

func formatTimestamp(value time.Time) string {
	return value.UTC().Format(timestampLayout)
}

// Enqueue inserts a new pending job. The id is caller supplied so that API
// clients can poll on the identifier they generated.
func (s *Store) Enqueue(ctx context.Context, job *Job) (*Job, error) {
	if job == nil {
		return nil, errors.New("job is nil")
	}
	if strings.TrimSpace(job.ID) == "" {
		return nil, errors.New("job id is required")
	}
	if strings.TrimSpace(job.ProjectID) == "" {
		return nil, errors.New("project id is required")
	}

	now := time.Now().UTC()
	timestamp := formatTimestamp(now)

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            id, project_id, status, current_step, progress_message,
            error_message, file_path, remote_staging_path, retry_count,
            created_at, updated_at, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		job.ID,
		job.ProjectID,
		StatusPending,
		StepMetadata,
		"Queued for processing",
		"",
		job.FilePath,
		job.RemoteStagingPath,
		0,
		timestamp,
		timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, job.ID)
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, job.ID)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: jobs.id")
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ClaimNext atomically promotes the oldest pending job to processing and
// returns it. The claim is a single UPDATE so that concurrent workers can
// never both win the same job. Returns (nil, nil) when the queue is empty.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	timestamp := formatTimestamp(time.Now().UTC())

	var (
		job     *Job
		scanErr error
	)
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx,
			`UPDATE jobs
             SET status = ?, progress_message = ?, updated_at = ?
             WHERE id IN (
                 SELECT id FROM jobs WHERE status = ? ORDER BY created_at, id LIMIT 1
             )
             RETURNING `+jobColumns,
			StatusProcessing,
			"Claimed by worker",
			timestamp,
			StatusPending,
		)
		job, scanErr = scanJob(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return job, nil
}

// UpdateProgress merges a partial update into a processing job. Nil fields in
// the update are preserved, and the pipeline step may only move forward.
func (s *Store) UpdateProgress(ctx context.Context, id string, update ProgressUpdate) (*Job, error) {
	ctx = ensureContext(ctx)

	var result *Job
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
		job, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("load job: %w", err)
		}
		if job.Status != StatusProcessing {
			return fmt.Errorf("%w: %s is %s", ErrNotProcessing, id, job.Status)
		}

		if update.CurrentStep != nil {
			next := *update.CurrentStep
			if next.Rank() < 0 {
				return fmt.Errorf("unknown pipeline step %q", next)
			}
			if next.Rank() < job.CurrentStep.Rank() {
				return fmt.Errorf("%w: %s -> %s", ErrStepRegression, job.CurrentStep, next)
			}
			job.CurrentStep = next
		}
		if update.ProgressMessage != nil {
			job.ProgressMessage = *update.ProgressMessage
		}
		if update.FilePath != nil {
			job.FilePath = *update.FilePath
		}
		if update.RetryCount != nil {
			job.RetryCount = *update.RetryCount
		}
		job.UpdatedAt = time.Now().UTC()

		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs
             SET current_step = ?, progress_message = ?, file_path = ?, retry_count = ?, updated_at = ?
             WHERE id = ?`,
			job.CurrentStep,
			job.ProgressMessage,
			job.FilePath,
			job.RetryCount,
			formatTimestamp(job.UpdatedAt),
			id,
		); err != nil {
			return fmt.Errorf("update job: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit update: %w", err)
		}
		result = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkTerminal moves a processing job to completed or failed, recording the
// completion timestamp. errorMessage is only stored for failures.
func (s *Store) MarkTerminal(ctx context.Context, id string, status Status, errorMessage string) (*Job, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("status %q is not terminal", status)
	}
	if status == StatusCompleted {
		errorMessage = ""
	}

	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	timestamp := formatTimestamp(now)

	progress := "Processing complete"
	step := string(StepCompleted)
	if status == StatusFailed {
		progress = "Processing failed"
		step = ""
	}

	var query string
	var args []any
	if step == "" {
		// Failed jobs keep their current step so operators can see where
		// processing stopped.
		query = `UPDATE jobs
             SET status = ?, progress_message = ?, error_message = ?, updated_at = ?, completed_at = ?
             WHERE id = ? AND status = ?`
		args = []any{status, progress, errorMessage, timestamp, timestamp, id, StatusProcessing}
	} else {
		query = `UPDATE jobs
             SET status = ?, current_step = ?, progress_message = ?, error_message = ?, updated_at = ?, completed_at = ?
             WHERE id = ? AND status = ?`
		args = []any{status, step, progress, errorMessage, timestamp, timestamp, id, StatusProcessing}
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("mark terminal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		job, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: %s is %s", ErrNotProcessing, id, job.Status)
	}

	return s.GetByID(ctx, id)
}

// ListByProject returns all jobs for a project ordered newest first.
func (s *Store) ListByProject(ctx context.Context, projectID string) ([]*Job, error) {
	return s.queryJobs(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE project_id = ? ORDER BY created_at DESC, id DESC`,
		projectID,
	)
}

// List returns jobs matching the optional status filter, newest first.
func (s *Store) List(ctx context.Context, status Status, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}
	if status == "" {
		return s.queryJobs(ensureContext(ctx),
			`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	}
	return s.queryJobs(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		status, limit)
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Stats counts jobs per status for operator tooling.
func (s *Store) Stats(ctx context.Context) (StatusCounts, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return StatusCounts{}, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var counts StatusCounts
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return StatusCounts{}, fmt.Errorf("scan stats: %w", err)
		}
		switch Status(status) {
		case StatusPending:
			counts.Pending = count
		case StatusProcessing:
			counts.Processing = count
		case StatusCompleted:
			counts.Completed = count
		case StatusFailed:
			counts.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return StatusCounts{}, fmt.Errorf("iterate stats: %w", err)
	}
	return counts, nil
}

// ActiveFilePaths returns the staged input path of every job that has not
// reached a terminal status. The staging sweep uses it to keep inputs of
// waiting jobs out of the reaper's reach.
func (s *Store) ActiveFilePaths(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT file_path FROM jobs WHERE status IN (?, ?) AND file_path != ''`,
		StatusPending, StatusProcessing,
	)
	if err != nil {
		return nil, fmt.Errorf("query active file paths: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan file path: %w", err)
		}
		paths[path] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file paths: %w", err)
	}
	return paths, nil
}

// Purge deletes every job created before the cutoff regardless of status and
// returns the number of rows removed.
func (s *Store) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.execWithRetry(ensureContext(ctx),
		`DELETE FROM jobs WHERE created_at < ?`,
		formatTimestamp(olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return removed, nil
}
