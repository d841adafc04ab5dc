package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/personakit/personakit/internal/store"
)

// ErrNoTask is returned by ClaimNext when no runnable task exists.
var ErrNoTask = errors.New("no runnable task")

// Store persists outbox tasks.
type Store struct {
	db *sql.DB
}

// NewStore creates a task store on the shared database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Enqueue inserts a pending task runnable immediately.
func (s *Store) Enqueue(ctx context.Context, taskType string, payload any) (Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Task{}, fmt.Errorf("begin enqueue: %w", err)
	}
	defer tx.Rollback()

	task, err := s.EnqueueTx(ctx, tx, taskType, payload)
	if err != nil {
		return Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return Task{}, fmt.Errorf("commit enqueue: %w", err)
	}
	return task, nil
}

// EnqueueTx inserts a pending task inside the caller's transaction. Callers
// writing domain state and a task together use this so both commit or
// neither does.
func (s *Store) EnqueueTx(ctx context.Context, tx *sql.Tx, taskType string, payload any) (Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("marshal task payload: %w", err)
	}

	now := time.Now().UTC()
	task := Task{
		ID:        uuid.NewString(),
		Type:      taskType,
		Payload:   body,
		Status:    StatusPending,
		RunAfter:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbox_tasks (id, task_type, payload, status, run_after, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Type, string(body), task.Status,
		store.FormatTime(task.RunAfter), store.FormatTime(task.CreatedAt), store.FormatTime(task.UpdatedAt))
	if err != nil {
		return Task{}, fmt.Errorf("insert outbox task: %w", err)
	}
	return task, nil
}

// ClaimNext atomically claims the oldest runnable pending task. The claim is
// a single UPDATE so concurrent dispatchers never receive the same task.
func (s *Store) ClaimNext(ctx context.Context) (*Task, error) {
	now := store.FormatTime(time.Now().UTC())
	row := s.db.QueryRowContext(ctx, `
		UPDATE outbox_tasks
		SET status = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM outbox_tasks
			WHERE status = ? AND run_after <= ?
			ORDER BY created_at
			LIMIT 1
		)
		RETURNING id, task_type, payload, status, attempts, last_error, run_after, created_at, updated_at`,
		StatusInProgress, now, StatusPending, now)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoTask
	}
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	return task, nil
}

// Complete marks a task as successfully processed.
func (s *Store) Complete(ctx context.Context, id string) error {
	now := store.FormatTime(time.Now().UTC())
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox_tasks
		SET status = ?, updated_at = ?, completed_at = ?
		WHERE id = ?`,
		StatusDone, now, now, id)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

// Fail records a processing failure. Below maxAttempts the task is requeued
// with delayed run_after; at or above it the task lands in failed and stays
// there until an operator retries it.
func (s *Store) Fail(ctx context.Context, task *Task, failure error, maxAttempts int, delay time.Duration) error {
	attempts := task.Attempts + 1
	status := StatusPending
	runAfter := time.Now().UTC().Add(delay)
	if attempts >= maxAttempts {
		status = StatusFailed
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox_tasks
		SET status = ?, attempts = ?, last_error = ?, run_after = ?, updated_at = ?
		WHERE id = ?`,
		status, attempts, failure.Error(), store.FormatTime(runAfter),
		store.FormatTime(time.Now().UTC()), task.ID)
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	task.Attempts = attempts
	task.Status = status
	return nil
}

// RetryFailed requeues a failed task with a fresh attempt budget.
func (s *Store) RetryFailed(ctx context.Context, id string) error {
	now := store.FormatTime(time.Now().UTC())
	res, err := s.db.ExecContext(ctx, `
		UPDATE outbox_tasks
		SET status = ?, attempts = 0, last_error = '', run_after = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		StatusPending, now, now, id, StatusFailed)
	if err != nil {
		return fmt.Errorf("retry task: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task %s is not in failed state", id)
	}
	return nil
}

// List returns tasks filtered by status (empty status means all), newest first.
func (s *Store) List(ctx context.Context, status string, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, task_type, payload, status, attempts, last_error, run_after, created_at, updated_at
		FROM outbox_tasks`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// PendingCount returns the number of pending tasks.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox_tasks WHERE status = ?`, StatusPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

// CleanupOld deletes done tasks past the retention window and returns how
// many were removed. Failed tasks are kept for inspection. Timestamps are
// stored at second precision, so the comparison is inclusive: a task
// finished in the cutoff second is already past retention.
func (s *Store) CleanupOld(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := store.FormatTime(time.Now().UTC().Add(-retention))
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM outbox_tasks
		WHERE status = ? AND completed_at IS NOT NULL AND completed_at <= ?`,
		StatusDone, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup tasks: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		task     Task
		payload  string
		runAfter string
		created  string
		updated  string
	)
	err := row.Scan(&task.ID, &task.Type, &payload, &task.Status,
		&task.Attempts, &task.LastError, &runAfter, &created, &updated)
	if err != nil {
		return nil, err
	}
	task.Payload = []byte(payload)
	task.RunAfter = store.ParseTime(runAfter)
	task.CreatedAt = store.ParseTime(created)
	task.UpdatedAt = store.ParseTime(updated)
	return &task, nil
}
