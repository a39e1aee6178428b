package service

import (
	"context"
	"fmt"
	"time"

	"github.com/LeventeLantos/wa-inbox/internal/metrics"
	"github.com/LeventeLantos/wa-inbox/internal/model"
	"github.com/LeventeLantos/wa-inbox/internal/payload"
	"github.com/LeventeLantos/wa-inbox/internal/repo"
)

// StoredHook runs after a successful write with the intent and the record as
// it now exists in the store.
type StoredHook func(ctx context.Context, in payload.Intent, stored model.Message)

// Reconciler turns intents into single atomic upserts.
type Reconciler struct {
	repo  repo.MessageRepository
	hooks []StoredHook
}

func NewReconciler(r repo.MessageRepository) *Reconciler {
	return &Reconciler{repo: r}
}

func (r *Reconciler) WithHooks(hooks ...StoredHook) *Reconciler {
	r.hooks = append(r.hooks, hooks...)
	return r
}

func (r *Reconciler) Reconcile(ctx context.Context, in payload.Intent) (model.Message, error) {
	u, err := UpsertFor(in)
	if err != nil {
		return model.Message{}, err
	}

	start := time.Now()
	stored, err := r.repo.Upsert(ctx, u)
	metrics.StoreLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Upserts.WithLabelValues(in.Kind.String(), "error").Inc()
		return model.Message{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	metrics.Upserts.WithLabelValues(in.Kind.String(), "ok").Inc()

	for _, h := range r.hooks {
		h(ctx, in, stored)
	}
	return stored, nil
}

// UpsertFor maps an intent onto always-set and insert-only field groups.
// Inbound intents overwrite every field. Status intents only touch status,
// from_me, wa_id and createdAt, and leave the placeholder body for inserts.
func UpsertFor(in payload.Intent) (repo.Upsert, error) {
	if in.ID == "" {
		return repo.Upsert{}, fmt.Errorf("%w: intent has no id", ErrValidation)
	}

	switch in.Kind {
	case payload.KindInbound:
		return repo.Upsert{
			ID: in.ID,
			Set: repo.Fields{
				WaID:      &in.WaID,
				Name:      &in.Name,
				Body:      &in.Body,
				Type:      &in.Type,
				Status:    &in.Status,
				FromMe:    &in.FromMe,
				CreatedAt: &in.CreatedAt,
				Metadata:  in.Metadata,
			},
		}, nil

	case payload.KindStatus:
		fromMe := true
		body := model.BusinessAccountBody
		return repo.Upsert{
			ID: in.ID,
			Set: repo.Fields{
				Status:    &in.Status,
				FromMe:    &fromMe,
				WaID:      &in.WaID,
				CreatedAt: &in.CreatedAt,
			},
			SetOnInsert: repo.Fields{
				Body: &body,
			},
		}, nil

	default:
		return repo.Upsert{}, ErrNoIntent
	}
}
