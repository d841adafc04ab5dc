package mindscape

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/personakit/personakit/internal/observation"
	"github.com/personakit/personakit/internal/outbox"
	"github.com/personakit/personakit/internal/retry"
	"github.com/personakit/personakit/internal/staleness"
	"github.com/personakit/personakit/internal/store"
)

type updaterFixture struct {
	observations *observation.Store
	mindscapes   *Store
	tasks        *outbox.Store
	bus          *staleness.Bus
	updater      *Updater
}

func newUpdaterFixture(t *testing.T) *updaterFixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	tasks := outbox.NewStore(st.DB())
	observations := observation.NewStore(st.DB(), tasks)
	mindscapes := NewStore(st.DB())
	bus := staleness.NewBus()
	retryCfg := retry.Config{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	return &updaterFixture{
		observations: observations,
		mindscapes:   mindscapes,
		tasks:        tasks,
		bus:          bus,
		updater:      NewUpdater(observations, mindscapes, bus, retryCfg, nil),
	}
}

func TestHandleTaskUpdatesMindscapeAndPublishes(t *testing.T) {
	f := newUpdaterFixture(t)
	ctx := context.Background()
	events := f.bus.Subscribe()

	obs, err := f.observations.Record(ctx, "alice", "work_session",
		map[string]any{"duration_minutes": 90.0}, nil)
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	task, err := f.tasks.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := f.updater.HandleTask(ctx, *task); err != nil {
		t.Fatalf("handle: %v", err)
	}

	ms, err := f.mindscapes.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("get mindscape: %v", err)
	}
	if ms.Version != 1 {
		t.Errorf("expected version 1, got %d", ms.Version)
	}
	if got := ms.Traits["work.focus_duration"].Value; got != 90.0 {
		t.Errorf("expected focus duration 90, got %v", got)
	}

	select {
	case ev := <-events:
		if ev.PersonID != obs.PersonID || ev.Version != 1 {
			t.Errorf("unexpected event %+v", ev)
		}
		if len(ev.ChangedPaths) != 1 || ev.ChangedPaths[0] != "work.focus_duration" {
			t.Errorf("unexpected changed paths %v", ev.ChangedPaths)
		}
	default:
		t.Error("expected a staleness event")
	}
}

func TestHandleTaskReplaySkipsReapply(t *testing.T) {
	f := newUpdaterFixture(t)
	ctx := context.Background()

	if _, err := f.observations.Record(ctx, "alice", "work_session",
		map[string]any{"duration_minutes": 60.0}, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	task, err := f.tasks.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	// Simulate redelivery of the same task.
	for i := 0; i < 2; i++ {
		if err := f.updater.HandleTask(ctx, *task); err != nil {
			t.Fatalf("handle %d: %v", i, err)
		}
	}

	ms, err := f.mindscapes.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ms.Version != 1 {
		t.Errorf("replay must not double-apply, version=%d", ms.Version)
	}
	if got := ms.Traits["work.focus_duration"].SampleSize; got != 1 {
		t.Errorf("replay must not double-merge, samples=%d", got)
	}
}

func TestHandleTaskMalformedPayloadIsPermanent(t *testing.T) {
	f := newUpdaterFixture(t)
	ctx := context.Background()

	err := f.updater.HandleTask(ctx, outbox.Task{ID: "t1", Payload: []byte("not json")})
	if !outbox.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}

	payload, _ := json.Marshal(map[string]string{"observation_id": "", "person_id": ""})
	err = f.updater.HandleTask(ctx, outbox.Task{ID: "t2", Payload: payload})
	if !outbox.IsPermanent(err) {
		t.Fatalf("expected permanent error for empty ids, got %v", err)
	}
}

func TestHandleTaskInvalidObservationIsPermanent(t *testing.T) {
	f := newUpdaterFixture(t)
	ctx := context.Background()

	if _, err := f.observations.Record(ctx, "alice", "work_session",
		map[string]any{"duration_minutes": "ninety"}, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	task, err := f.tasks.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := f.updater.HandleTask(ctx, *task); !outbox.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestHandleTaskDeletedObservationIsNoop(t *testing.T) {
	f := newUpdaterFixture(t)
	ctx := context.Background()

	obs, err := f.observations.Record(ctx, "alice", "work_session",
		map[string]any{"duration_minutes": 60.0}, nil)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := f.observations.Delete(ctx, obs.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	task, err := f.tasks.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := f.updater.HandleTask(ctx, *task); err != nil {
		t.Fatalf("deleted observation must be a no-op, got %v", err)
	}

	ms, _ := f.mindscapes.Get(ctx, "alice")
	if ms.Version != 0 {
		t.Errorf("no update expected, version=%d", ms.Version)
	}
}
