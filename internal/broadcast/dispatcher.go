package broadcast

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/LeventeLantos/wa-inbox/internal/metrics"
)

const sinkTimeout = 5 * time.Second

// Dispatcher decouples writers from delivery. Publish never blocks: when the
// queue is full the event is dropped and counted.
type Dispatcher struct {
	queue  chan Event
	sinks  []Sink
	done   chan struct{}
	closed atomic.Bool
}

func NewDispatcher(size int, sinks ...Sink) *Dispatcher {
	if size <= 0 {
		size = 256
	}
	return &Dispatcher{
		queue: make(chan Event, size),
		sinks: sinks,
		done:  make(chan struct{}),
	}
}

func (d *Dispatcher) Publish(_ context.Context, event string, payload any) {
	if d.closed.Load() {
		return
	}
	ev, err := NewEvent(event, payload)
	if err != nil {
		slog.Error("broadcast encode failed", "event", event, "err", err)
		return
	}

	select {
	case d.queue <- ev:
		metrics.BroadcastEvents.WithLabelValues(event).Inc()
	default:
		metrics.BroadcastDropped.WithLabelValues("dispatcher").Inc()
		slog.Warn("broadcast queue full, event dropped", "event", event)
	}
}

// Run delivers queued events to every sink until ctx is done or Close is called.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev Event) {
	for _, s := range d.sinks {
		sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		if err := s.Send(sctx, ev); err != nil {
			slog.Warn("broadcast sink failed", "event", ev.Name, "err", err)
		}
		cancel()
	}
}

func (d *Dispatcher) Close() {
	if d.closed.CompareAndSwap(false, true) {
		close(d.done)
	}
}

// Drain closes the dispatcher and delivers whatever is still queued.
func (d *Dispatcher) Drain(ctx context.Context) {
	d.Close()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ctx, ev)
		default:
			return
		}
	}
}
