package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LeventeLantos/wa-inbox/internal/metrics"
	"github.com/LeventeLantos/wa-inbox/internal/model"
	"github.com/LeventeLantos/wa-inbox/internal/payload"
)

type Reconciler interface {
	Reconcile(ctx context.Context, in payload.Intent) (model.Message, error)
}

type Failure struct {
	Name string
	Err  error
}

// Report is the tally of one batch. Every item lands in exactly one bucket.
type Report struct {
	Total     int
	Inbound   int
	Status    int
	NoOp      int
	Malformed int
	Failed    int
	Failures  []Failure
}

func (r Report) Applied() int { return r.Inbound + r.Status }

// Driver applies a batch of payloads. With one worker items are processed in
// order; with more they run on a bounded pool and per-id atomicity is left to
// the store.
type Driver struct {
	rec     Reconciler
	workers int
}

func NewDriver(rec Reconciler, workers int) *Driver {
	if workers <= 0 {
		workers = 1
	}
	return &Driver{rec: rec, workers: workers}
}

type outcome struct {
	result string
	err    error
}

// Run never stops early on a bad item. Items not started before ctx is done
// are reported as failed with the context error.
func (d *Driver) Run(ctx context.Context, items []Item) Report {
	start := time.Now()
	outcomes := make([]outcome, len(items))

	var g errgroup.Group
	g.SetLimit(d.workers)
	for i, it := range items {
		if err := ctx.Err(); err != nil {
			outcomes[i] = outcome{result: "failed", err: err}
			continue
		}
		g.Go(func() error {
			outcomes[i] = d.apply(ctx, it)
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Total: len(items)}
	for i, o := range outcomes {
		metrics.PayloadsProcessed.WithLabelValues(o.result).Inc()
		switch o.result {
		case "inbound":
			rep.Inbound++
		case "status":
			rep.Status++
		case "noop":
			rep.NoOp++
		case "malformed":
			rep.Malformed++
			slog.Warn("payload skipped", "file", items[i].Name, "err", o.err)
		default:
			rep.Failed++
			rep.Failures = append(rep.Failures, Failure{Name: items[i].Name, Err: o.err})
			slog.Error("payload failed", "file", items[i].Name, "err", o.err)
		}
	}

	slog.Info("ingest batch completed",
		"total", rep.Total,
		"inbound", rep.Inbound,
		"status", rep.Status,
		"noop", rep.NoOp,
		"malformed", rep.Malformed,
		"failed", rep.Failed,
		"workers", d.workers,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rep
}

func (d *Driver) apply(ctx context.Context, it Item) outcome {
	if it.Err != nil {
		return outcome{result: "failed", err: it.Err}
	}

	in, err := payload.Normalize(it.Data)
	if err != nil {
		if errors.Is(err, payload.ErrMalformedPayload) {
			return outcome{result: "malformed", err: err}
		}
		return outcome{result: "failed", err: err}
	}
	if in.Kind == payload.KindNone {
		return outcome{result: in.Kind.String()}
	}

	if _, err := d.rec.Reconcile(ctx, in); err != nil {
		return outcome{result: "failed", err: err}
	}
	return outcome{result: in.Kind.String()}
}
