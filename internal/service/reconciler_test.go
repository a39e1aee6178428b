package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LeventeLantos/wa-inbox/internal/model"
	"github.com/LeventeLantos/wa-inbox/internal/payload"
	"github.com/LeventeLantos/wa-inbox/internal/repo"
	"github.com/LeventeLantos/wa-inbox/internal/service"
)

func mustNormalize(t *testing.T, data []byte) payload.Intent {
	t.Helper()
	in, err := payload.Normalize(data)
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	return in
}

func TestReconciler_InboundThenReadStatus(t *testing.T) {
	t.Parallel()

	r := repo.NewMemoryMessageRepo()
	rec := service.NewReconciler(r)
	ctx := context.Background()

	if _, err := rec.Reconcile(ctx, mustNormalize(t, inboundPayload("m1", "555", "Alice", "hi", 1000))); err != nil {
		t.Fatalf("inbound Reconcile() error: %v", err)
	}
	got, err := rec.Reconcile(ctx, mustNormalize(t, statusPayload("m1", "555", "read", 2000)))
	if err != nil {
		t.Fatalf("status Reconcile() error: %v", err)
	}

	if got.Body != "hi" || got.Status != model.Read || !got.FromMe || got.Name != "Alice" {
		t.Fatalf("unexpected record %+v", got)
	}
	if !got.CreatedAt.Equal(time.UnixMilli(2000 * 1000)) {
		t.Fatalf("expected createdAt of the status event, got %v", got.CreatedAt)
	}
}

func TestReconciler_StatusBeforeInbound(t *testing.T) {
	t.Parallel()

	r := repo.NewMemoryMessageRepo()
	rec := service.NewReconciler(r)
	ctx := context.Background()

	got, err := rec.Reconcile(ctx, mustNormalize(t, statusPayload("m2", "555", "delivered", 1500)))
	if err != nil {
		t.Fatalf("status Reconcile() error: %v", err)
	}
	if got.Body != model.BusinessAccountBody || got.Type != model.DefaultType || got.Name != "" {
		t.Fatalf("expected insert defaults, got %+v", got)
	}
	if got.Status != model.Delivered || !got.FromMe || got.WaID != "555" {
		t.Fatalf("expected always-set fields, got %+v", got)
	}

	got, err = rec.Reconcile(ctx, mustNormalize(t, inboundPayload("m2", "555", "Bob", "late", 1000)))
	if err != nil {
		t.Fatalf("inbound Reconcile() error: %v", err)
	}
	if got.Body != "late" || got.Name != "Bob" || got.FromMe || got.Status != model.Delivered {
		t.Fatalf("expected inbound to overwrite every field, got %+v", got)
	}
}

func TestReconciler_ReplayIsIdempotent(t *testing.T) {
	t.Parallel()

	r := repo.NewMemoryMessageRepo()
	rec := service.NewReconciler(r)
	ctx := context.Background()

	events := [][]byte{
		inboundPayload("m1", "555", "Alice", "hi", 1000),
		statusPayload("m1", "555", "delivered", 1500),
		statusPayload("m1", "555", "read", 2000),
	}
	apply := func() []model.Message {
		for _, e := range events {
			if _, err := rec.Reconcile(ctx, mustNormalize(t, e)); err != nil {
				t.Fatalf("Reconcile() error: %v", err)
			}
		}
		all, err := r.FindAll(ctx)
		if err != nil {
			t.Fatalf("FindAll() error: %v", err)
		}
		return all
	}

	first := apply()
	second := apply()
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected exactly one record, got %d then %d", len(first), len(second))
	}
	if first[0].Body != second[0].Body || first[0].Status != second[0].Status ||
		!first[0].CreatedAt.Equal(second[0].CreatedAt) || first[0].Name != second[0].Name {
		t.Fatalf("replay changed state: %+v vs %+v", first[0], second[0])
	}
}

func TestReconciler_StoreDown(t *testing.T) {
	t.Parallel()

	called := false
	rec := service.NewReconciler(downRepo{}).WithHooks(func(context.Context, payload.Intent, model.Message) {
		called = true
	})

	_, err := rec.Reconcile(context.Background(), mustNormalize(t, statusPayload("m1", "1", "read", 1)))
	if !errors.Is(err, service.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if !errors.Is(err, errDown) {
		t.Fatalf("expected the store error to stay in the chain, got %v", err)
	}
	if called {
		t.Fatalf("hooks must not run for failed writes")
	}
}

func TestReconciler_HooksSeeStoredRecord(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	c := &fakeCache{ok: true}
	rec := service.NewReconciler(repo.NewMemoryMessageRepo()).
		WithHooks(service.InvalidateHook(c), service.BroadcastHook(pub))
	ctx := context.Background()

	_, _ = rec.Reconcile(ctx, mustNormalize(t, inboundPayload("m1", "555", "Alice", "hi", 1000)))
	_, _ = rec.Reconcile(ctx, mustNormalize(t, statusPayload("m1", "555", "read", 2000)))

	events := pub.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].event != service.EventNewMessage || events[1].event != service.EventMessageUpdated {
		t.Fatalf("unexpected event names %q, %q", events[0].event, events[1].event)
	}
	if events[1].msg.Body != "hi" || events[1].msg.Status != model.Read {
		t.Fatalf("expected merged record in event, got %+v", events[1].msg)
	}
	if c.invalidates != 2 {
		t.Fatalf("expected 2 invalidations, got %d", c.invalidates)
	}
}

func TestUpsertFor(t *testing.T) {
	t.Parallel()

	if _, err := service.UpsertFor(payload.Intent{Kind: payload.KindNone, ID: "x"}); !errors.Is(err, service.ErrNoIntent) {
		t.Fatalf("expected ErrNoIntent, got %v", err)
	}
	if _, err := service.UpsertFor(payload.Intent{Kind: payload.KindStatus}); !errors.Is(err, service.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty id, got %v", err)
	}

	u, err := service.UpsertFor(payload.Intent{Kind: payload.KindStatus, ID: "m1", WaID: "1", Status: model.Read})
	if err != nil {
		t.Fatalf("UpsertFor() error: %v", err)
	}
	if u.Set.Body != nil || u.Set.Name != nil || u.Set.Type != nil {
		t.Fatalf("status write must not touch body, name or type: %+v", u.Set)
	}
	if u.SetOnInsert.Body == nil || *u.SetOnInsert.Body != model.BusinessAccountBody {
		t.Fatalf("expected placeholder body on insert, got %+v", u.SetOnInsert)
	}
	if u.Set.FromMe == nil || !*u.Set.FromMe {
		t.Fatalf("expected from_me=true, got %+v", u.Set)
	}
}
