package ingest

import (
	"context"
	"testing"
	"time"
)

func TestDebouncer_TouchAfterFireDeliversOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDebouncer(ctx, 5*time.Millisecond)
	defer d.stop()

	d.touch("a.json")
	// Let the timer fire; its send blocks because nobody is receiving yet.
	time.Sleep(50 * time.Millisecond)
	d.touch("a.json")

	accepted := 0
	for i := 0; i < 2; i++ {
		select {
		case f := <-d.ready:
			if d.accept(f) {
				accepted++
			}
		case <-time.After(time.Second):
			t.Fatalf("expected two deliveries, got %d", i)
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted delivery, got %d", accepted)
	}
	if len(d.timers) != 0 {
		t.Fatalf("expected no pending timers, got %d", len(d.timers))
	}
}

func TestDebouncer_RepeatedTouchesCollapse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newDebouncer(ctx, 40*time.Millisecond)
	defer d.stop()

	for i := 0; i < 5; i++ {
		d.touch("a.json")
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case f := <-d.ready:
		if !d.accept(f) {
			t.Fatalf("expected the only delivery to be accepted")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a delivery")
	}

	select {
	case f := <-d.ready:
		t.Fatalf("unexpected second delivery %+v", f)
	case <-time.After(100 * time.Millisecond):
	}
}
