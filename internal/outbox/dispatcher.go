package outbox

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/personakit/personakit/internal/metrics"
)

// Handler processes one claimed task. Returning nil completes the task;
// returning an error wrapped with Permanent fails it immediately; any other
// error requeues it with backoff until attempts run out.
type Handler func(ctx context.Context, task Task) error

// DispatcherConfig controls the worker pool and retry policy.
type DispatcherConfig struct {
	Workers      int
	PollInterval time.Duration
	MaxAttempts  int
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	Retention    time.Duration
}

// DefaultDispatcherConfig returns the standard worker settings.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:      2,
		PollInterval: 5 * time.Second,
		MaxAttempts:  3,
		BackoffBase:  time.Minute,
		BackoffCap:   time.Hour,
		Retention:    7 * 24 * time.Hour,
	}
}

// Dispatcher claims pending tasks and routes them to registered handlers.
type Dispatcher struct {
	store  *Store
	cfg    DispatcherConfig
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher creates a dispatcher with defaults filled in.
func NewDispatcher(store *Store, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = def.BackoffCap
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a task type. Later registrations replace
// earlier ones.
func (d *Dispatcher) Register(taskType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[taskType] = h
}

// Run processes tasks until the context is cancelled. Each worker drains
// runnable tasks, then sleeps for the poll interval. A background ticker
// removes done tasks past retention.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("Outbox dispatcher starting",
		"workers", d.cfg.Workers, "poll_interval", d.cfg.PollInterval)

	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			d.workerLoop(ctx, worker)
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.cleanupLoop(ctx)
	}()

	<-ctx.Done()
	wg.Wait()
	d.logger.Info("Outbox dispatcher stopped")
}

func (d *Dispatcher) workerLoop(ctx context.Context, worker int) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		d.drain(ctx, worker)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// drain claims and processes tasks until none are runnable.
func (d *Dispatcher) drain(ctx context.Context, worker int) {
	for ctx.Err() == nil {
		task, err := d.store.ClaimNext(ctx)
		if err == ErrNoTask {
			return
		}
		if err != nil {
			d.logger.Error("Task claim failed", "worker", worker, "error", err)
			return
		}
		d.process(ctx, worker, task)
	}
}

func (d *Dispatcher) process(ctx context.Context, worker int, task *Task) {
	d.mu.RLock()
	handler, ok := d.handlers[task.Type]
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn("No handler for task type", "task_id", task.ID, "task_type", task.Type)
		d.failTask(ctx, task, Permanent(errUnknownTaskType(task.Type)))
		return
	}

	err := handler(ctx, *task)
	if err == nil {
		if cerr := d.store.Complete(ctx, task.ID); cerr != nil {
			d.logger.Error("Task completion failed", "task_id", task.ID, "error", cerr)
			return
		}
		metrics.TasksProcessed.WithLabelValues(task.Type, "done").Inc()
		d.logger.Debug("Task completed", "worker", worker, "task_id", task.ID, "task_type", task.Type)
		return
	}

	d.failTask(ctx, task, err)
}

func (d *Dispatcher) failTask(ctx context.Context, task *Task, err error) {
	attempts := d.cfg.MaxAttempts
	if IsPermanent(err) {
		// Skip straight to failed regardless of remaining attempts.
		attempts = task.Attempts + 1
	}

	if ferr := d.store.Fail(ctx, task, err, attempts, Backoff(d.cfg, task.Attempts)); ferr != nil {
		d.logger.Error("Task failure update failed", "task_id", task.ID, "error", ferr)
		return
	}

	if task.Status == StatusFailed {
		metrics.TasksProcessed.WithLabelValues(task.Type, "failed").Inc()
		d.logger.Error("Task failed permanently",
			"task_id", task.ID, "task_type", task.Type, "attempts", task.Attempts, "error", err)
	} else {
		metrics.TasksProcessed.WithLabelValues(task.Type, "retried").Inc()
		d.logger.Warn("Task failed, requeued",
			"task_id", task.ID, "task_type", task.Type, "attempts", task.Attempts, "error", err)
	}
}

func (d *Dispatcher) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := d.store.CleanupOld(ctx, d.cfg.Retention)
			if err != nil {
				d.logger.Error("Task cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				d.logger.Info("Cleaned up done tasks", "removed", removed)
			}
			if pending, err := d.store.PendingCount(ctx); err == nil {
				metrics.TasksPending.Set(float64(pending))
			}
		}
	}
}

// Backoff returns the requeue delay after the given number of prior
// attempts: base doubled per attempt, capped, with up to 50% random jitter
// so requeued tasks do not thunder back in lockstep.
func Backoff(cfg DispatcherConfig, attempts int) time.Duration {
	delay := cfg.BackoffBase
	for i := 0; i < attempts && delay < cfg.BackoffCap; i++ {
		delay *= 2
	}
	if delay > cfg.BackoffCap {
		delay = cfg.BackoffCap
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter
}

type errUnknownTaskType string

func (e errUnknownTaskType) Error() string { return "unknown task type: " + string(e) }
