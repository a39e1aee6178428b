package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch calls fn for every .json file created or written under dir once the
// file has been quiet for settle. It blocks until ctx is done.
func Watch(ctx context.Context, dir string, settle time.Duration, fn func(context.Context, Item)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	slog.Info("watching payload directory", "dir", dir)

	d := newDebouncer(ctx, settle)
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isPayloadFile(ev.Name) || !(ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)) {
				continue
			}
			d.touch(ev.Name)

		case f := <-d.ready:
			if d.accept(f) {
				fn(ctx, readItem(f.name))
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("payload watcher error", "err", err)
		}
	}
}

type fired struct {
	name string
	seq  uint64
}

type pending struct {
	timer *time.Timer
	seq   uint64
}

// debouncer is owned by one goroutine; only the timer callbacks run elsewhere
// and they only send on ready.
type debouncer struct {
	ctx    context.Context
	settle time.Duration
	ready  chan fired
	timers map[string]*pending
	seq    uint64
}

func newDebouncer(ctx context.Context, settle time.Duration) *debouncer {
	return &debouncer{
		ctx:    ctx,
		settle: settle,
		ready:  make(chan fired),
		timers: make(map[string]*pending),
	}
}

// touch restarts the quiet period for name. A timer that already fired is
// superseded by a new sequence number, and its delivery is dropped by accept.
func (d *debouncer) touch(name string) {
	if p, ok := d.timers[name]; ok && p.timer.Stop() {
		p.timer.Reset(d.settle)
		return
	}

	d.seq++
	f := fired{name: name, seq: d.seq}
	d.timers[name] = &pending{
		seq: d.seq,
		timer: time.AfterFunc(d.settle, func() {
			select {
			case d.ready <- f:
			case <-d.ctx.Done():
			}
		}),
	}
}

func (d *debouncer) accept(f fired) bool {
	p, ok := d.timers[f.name]
	if !ok || p.seq != f.seq {
		return false
	}
	delete(d.timers, f.name)
	return true
}

func (d *debouncer) stop() {
	for _, p := range d.timers {
		p.timer.Stop()
	}
}
