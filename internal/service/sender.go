package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/LeventeLantos/wa-inbox/internal/model"
	"github.com/LeventeLantos/wa-inbox/internal/payload"
)

const localIDPrefix = "local-"

// SendClient forwards an outbound message to an external relay.
type SendClient interface {
	Send(ctx context.Context, phoneNumber, message string) (remoteMessageID string, err error)
}

type SendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// Sender records outbound messages. With a client configured the relay must
// accept the message first and its id becomes the record id.
type Sender struct {
	rec        *Reconciler
	client     SendClient
	contentMax int
	now        func() time.Time
}

func NewSender(rec *Reconciler, contentMax int) *Sender {
	return &Sender{
		rec:        rec,
		contentMax: contentMax,
		now:        time.Now,
	}
}

func (s *Sender) WithRelay(client SendClient) *Sender {
	s.client = client
	return s
}

func (s *Sender) Send(ctx context.Context, req SendRequest) (model.Message, error) {
	to := strings.TrimSpace(req.To)
	if to == "" || strings.TrimSpace(req.Body) == "" {
		return model.Message{}, fmt.Errorf("%w: to and body are required", ErrValidation)
	}
	if s.contentMax > 0 && utf8.RuneCountInString(req.Body) > s.contentMax {
		return model.Message{}, fmt.Errorf("%w: body exceeds %d chars", ErrValidation, s.contentMax)
	}

	id := localIDPrefix + ulid.Make().String()
	if s.client != nil {
		remoteID, err := s.client.Send(ctx, to, req.Body)
		if err != nil {
			return model.Message{}, fmt.Errorf("%w: %w", ErrRelayFailed, err)
		}
		id = remoteID
	}

	return s.rec.Reconcile(ctx, payload.Intent{
		Kind:      payload.KindInbound,
		ID:        id,
		WaID:      to,
		Body:      req.Body,
		Type:      model.DefaultType,
		Status:    model.Sent,
		FromMe:    true,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	})
}
