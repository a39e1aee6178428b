package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LeventeLantos/wa-inbox/internal/cache"
	"github.com/LeventeLantos/wa-inbox/internal/metrics"
	"github.com/LeventeLantos/wa-inbox/internal/model"
	"github.com/LeventeLantos/wa-inbox/internal/payload"
	"github.com/LeventeLantos/wa-inbox/internal/repo"
)

const (
	EventNewMessage     = "newMessage"
	EventMessageUpdated = "messageUpdated"
)

// Publisher hands an event to the live-update layer. Implementations must not
// block the caller.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any)
}

// Inbox is the query side plus the two write entry points used by the API.
type Inbox struct {
	repo   repo.MessageRepository
	rec    *Reconciler
	sender *Sender
	cache  cache.ConversationCache
}

func NewInbox(r repo.MessageRepository, rec *Reconciler, sender *Sender) *Inbox {
	return &Inbox{repo: r, rec: rec, sender: sender}
}

func (s *Inbox) WithCache(c cache.ConversationCache) *Inbox {
	s.cache = c
	return s
}

func (s *Inbox) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	fill := false
	var gen int64
	if s.cache != nil {
		convs, ok, err := s.cache.Get(ctx)
		switch {
		case err != nil:
			metrics.CacheLookups.WithLabelValues("error").Inc()
			slog.Warn("conversation cache read failed", "err", err)
		case ok:
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return convs, nil
		default:
			metrics.CacheLookups.WithLabelValues("miss").Inc()
		}

		// Must be read before FindAll.
		if gen, err = s.cache.Generation(ctx); err != nil {
			slog.Warn("conversation cache generation read failed", "err", err)
		} else {
			fill = true
		}
	}

	msgs, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	convs := Aggregate(msgs)

	if fill {
		if err := s.cache.Set(ctx, gen, convs); err != nil {
			slog.Warn("conversation cache write failed", "err", err)
		}
	}
	return convs, nil
}

func (s *Inbox) ListMessages(ctx context.Context, waID string) ([]model.Message, error) {
	waID = strings.TrimSpace(waID)
	if waID == "" {
		return nil, fmt.Errorf("%w: wa_id is required", ErrValidation)
	}

	msgs, err := s.repo.FindByWaID(ctx, waID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}

func (s *Inbox) SendMessage(ctx context.Context, req SendRequest) (model.Message, error) {
	return s.sender.Send(ctx, req)
}

// ApplyWebhook runs one raw payload through normalization and reconciliation.
// A payload with nothing to apply returns KindNone and no error.
func (s *Inbox) ApplyWebhook(ctx context.Context, data []byte) (payload.Kind, error) {
	in, err := payload.Normalize(data)
	if err != nil {
		metrics.PayloadsProcessed.WithLabelValues("malformed").Inc()
		return payload.KindNone, err
	}
	if in.Kind == payload.KindNone {
		metrics.PayloadsProcessed.WithLabelValues(in.Kind.String()).Inc()
		return payload.KindNone, nil
	}

	if _, err := s.rec.Reconcile(ctx, in); err != nil {
		metrics.PayloadsProcessed.WithLabelValues("failed").Inc()
		return in.Kind, err
	}
	metrics.PayloadsProcessed.WithLabelValues(in.Kind.String()).Inc()
	return in.Kind, nil
}

func (s *Inbox) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// BroadcastHook publishes every stored record. Inbound writes go out as
// newMessage, status writes as messageUpdated.
func BroadcastHook(p Publisher) StoredHook {
	return func(ctx context.Context, in payload.Intent, stored model.Message) {
		event := EventNewMessage
		if in.Kind == payload.KindStatus {
			event = EventMessageUpdated
		}
		p.Publish(ctx, event, stored)
	}
}

// InvalidateHook drops the cached conversation list after every write.
func InvalidateHook(c cache.ConversationCache) StoredHook {
	return func(ctx context.Context, _ payload.Intent, _ model.Message) {
		if err := c.Invalidate(ctx); err != nil {
			slog.Warn("conversation cache invalidate failed", "err", err)
		}
	}
}
