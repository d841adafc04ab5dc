package outbox

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDispatcherCompletesTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Enqueue(ctx, TaskProcessObservation, nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	d := NewDispatcher(s, DispatcherConfig{Workers: 1, PollInterval: 10 * time.Millisecond}, nil)
	handled := make(chan string, 1)
	d.Register(TaskProcessObservation, func(ctx context.Context, task Task) error {
		handled <- task.ID
		return nil
	})

	runCtx, cancel := context.WithCancel(ctx)
	go d.Run(runCtx)
	defer cancel()

	var taskID string
	select {
	case taskID = <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("task was never handled")
	}

	waitForStatus(t, s, taskID, StatusDone)
}

func TestDispatcherPermanentErrorFailsImmediately(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.Enqueue(ctx, TaskProcessObservation, nil)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	d := NewDispatcher(s, DispatcherConfig{Workers: 1, PollInterval: 10 * time.Millisecond, MaxAttempts: 3}, nil)
	calls := 0
	d.Register(TaskProcessObservation, func(ctx context.Context, task Task) error {
		calls++
		return Permanent(errors.New("malformed payload"))
	})

	runCtx, cancel := context.WithCancel(ctx)
	go d.Run(runCtx)
	defer cancel()

	waitForStatus(t, s, task.ID, StatusFailed)
	if calls != 1 {
		t.Errorf("permanent error must not be retried, handler ran %d times", calls)
	}
}

func TestDispatcherUnknownTypeFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task, err := s.Enqueue(ctx, "no_such_type", nil)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	d := NewDispatcher(s, DispatcherConfig{Workers: 1, PollInterval: 10 * time.Millisecond}, nil)
	runCtx, cancel := context.WithCancel(ctx)
	go d.Run(runCtx)
	defer cancel()

	waitForStatus(t, s, task.ID, StatusFailed)
}

func TestPermanentWrapping(t *testing.T) {
	base := errors.New("bad")
	wrapped := Permanent(base)
	if !IsPermanent(wrapped) {
		t.Error("expected wrapped error to be permanent")
	}
	if !errors.Is(wrapped, base) {
		t.Error("expected Unwrap to reach the base error")
	}
	if IsPermanent(base) {
		t.Error("plain error must not be permanent")
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) must be nil")
	}
}

func waitForStatus(t *testing.T, s *Store, taskID, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		tasks, err := s.List(context.Background(), want, 50)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for _, task := range tasks {
			if task.ID == taskID {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("task %s never reached status %s", taskID, want)
}
