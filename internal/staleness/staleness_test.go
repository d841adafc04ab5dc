package staleness

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe()

	ev := Event{PersonID: "alice", Version: 3, OccurredAt: time.Now().UTC()}
	if err := bus.Publish(context.Background(), ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case got := <-ch:
			if got.PersonID != "alice" || got.Version != 3 {
				t.Errorf("subscriber %s: unexpected event %+v", name, got)
			}
		default:
			t.Errorf("subscriber %s: no event delivered", name)
		}
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()

	// Fill the buffer and one more; Publish must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			bus.Publish(context.Background(), Event{PersonID: "alice", Version: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	if len(ch) != cap(ch) {
		t.Errorf("expected full buffer, got %d/%d", len(ch), cap(ch))
	}
}

type failingPublisher struct{ err error }

func (p failingPublisher) Publish(ctx context.Context, ev Event) error { return p.err }

type countingPublisher struct{ n int }

func (p *countingPublisher) Publish(ctx context.Context, ev Event) error {
	p.n++
	return nil
}

func TestFanoutAttemptsAllAndReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	counter := &countingPublisher{}
	fanout := Fanout{failingPublisher{err: boom}, counter}

	err := fanout.Publish(context.Background(), Event{PersonID: "alice"})
	if !errors.Is(err, boom) {
		t.Errorf("expected first error, got %v", err)
	}
	if counter.n != 1 {
		t.Errorf("later publishers must still run, n=%d", counter.n)
	}
}
