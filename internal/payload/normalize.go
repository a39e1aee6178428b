package payload

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LeventeLantos/wa-inbox/internal/model"
)

var ErrMalformedPayload = errors.New("malformed payload")

type Kind int

const (
	// KindNone marks a well-formed change that carries neither messages nor statuses.
	KindNone Kind = iota
	KindInbound
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindInbound:
		return "inbound"
	case KindStatus:
		return "status"
	default:
		return "noop"
	}
}

// Intent describes one change to apply to the message store.
type Intent struct {
	Kind      Kind
	ID        string
	WaID      string
	Name      string
	Body      string
	Type      string
	Status    model.Status
	FromMe    bool
	CreatedAt time.Time
	Metadata  map[string]any
}

// Normalize decodes data and derives at most one intent from it. A payload with
// no messages and no statuses yields an Intent of KindNone and a nil error.
func Normalize(data []byte) (Intent, error) {
	env, err := Decode(data)
	if err != nil {
		return Intent{}, err
	}
	return FromEnvelope(env)
}

func FromEnvelope(env Envelope) (Intent, error) {
	change, ok := env.Change()
	if !ok {
		return Intent{}, fmt.Errorf("%w: missing metaData.entry[0].changes[0].value", ErrMalformedPayload)
	}

	switch {
	case len(change.Messages) > 0:
		return inboundIntent(change)
	case len(change.Statuses) > 0:
		return statusIntent(change.Statuses[0])
	default:
		return Intent{Kind: KindNone}, nil
	}
}

func inboundIntent(change *ChangeValue) (Intent, error) {
	msg := change.Messages[0]
	if len(change.Contacts) == 0 {
		return Intent{}, fmt.Errorf("%w: message %q has no contact", ErrMalformedPayload, msg.ID)
	}
	contact := change.Contacts[0]

	if strings.TrimSpace(msg.ID) == "" {
		return Intent{}, fmt.Errorf("%w: message id is empty", ErrMalformedPayload)
	}
	if contact.WaID == "" {
		return Intent{}, fmt.Errorf("%w: contact wa_id is empty", ErrMalformedPayload)
	}
	if !msg.Timestamp.Set {
		return Intent{}, fmt.Errorf("%w: message %q has no timestamp", ErrMalformedPayload, msg.ID)
	}

	body := model.UnsupportedBody
	if msg.Text != nil && msg.Text.Body != "" {
		body = msg.Text.Body
	}
	typ := msg.Type
	if typ == "" {
		typ = model.DefaultType
	}

	return Intent{
		Kind:      KindInbound,
		ID:        msg.ID,
		WaID:      contact.WaID,
		Name:      contact.Profile.Name,
		Body:      body,
		Type:      typ,
		Status:    model.Delivered,
		FromMe:    false,
		CreatedAt: msg.Timestamp.Time(),
		Metadata:  change.Metadata,
	}, nil
}

func statusIntent(st StatusEvent) (Intent, error) {
	if strings.TrimSpace(st.ID) == "" {
		return Intent{}, fmt.Errorf("%w: status id is empty", ErrMalformedPayload)
	}
	if st.RecipientID == "" {
		return Intent{}, fmt.Errorf("%w: status %q has no recipient_id", ErrMalformedPayload, st.ID)
	}
	if st.Status == "" {
		return Intent{}, fmt.Errorf("%w: status %q has no status value", ErrMalformedPayload, st.ID)
	}
	if !st.Timestamp.Set {
		return Intent{}, fmt.Errorf("%w: status %q has no timestamp", ErrMalformedPayload, st.ID)
	}

	return Intent{
		Kind:      KindStatus,
		ID:        st.ID,
		WaID:      st.RecipientID,
		Status:    model.Status(st.Status),
		FromMe:    true,
		CreatedAt: st.Timestamp.Time(),
	}, nil
}
