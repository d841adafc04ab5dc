// Package outbox implements transactional task enqueueing and a worker
// dispatcher with at-least-once delivery. Tasks are written in the same
// transaction as the state change that produced them, then claimed and
// processed asynchronously.
package outbox

import (
	"errors"
	"time"
)

// Task statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Task types handled by the dispatcher.
const (
	TaskProcessObservation = "process_observation"
	TaskProcessFeedback    = "process_feedback"
)

// Task is a unit of asynchronous work persisted in the outbox.
type Task struct {
	ID          string
	Type        string
	Payload     []byte
	Status      string
	Attempts    int
	LastError   string
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps an error so the dispatcher fails the task immediately
// instead of requeueing it. Use for malformed payloads and other errors a
// retry cannot fix.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
