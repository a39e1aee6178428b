package repo

import (
	"context"
	"time"

	"github.com/LeventeLantos/wa-inbox/internal/model"
)

// MessageRepository is the canonical message store. Upsert must be a single
// atomic write per id; callers never read before writing.
type MessageRepository interface {
	Upsert(ctx context.Context, u Upsert) (model.Message, error)
	FindByWaID(ctx context.Context, waID string) ([]model.Message, error)
	FindAll(ctx context.Context) ([]model.Message, error)
	Ping(ctx context.Context) error
	Close() error
}

// Fields holds the optional columns of a write. Nil means "leave untouched".
type Fields struct {
	WaID      *string
	Name      *string
	Body      *string
	Type      *string
	Status    *model.Status
	FromMe    *bool
	CreatedAt *time.Time
	Metadata  map[string]any
}

// Upsert is a write keyed by ID. Set applies on insert and on update;
// SetOnInsert only when the record did not exist yet.
type Upsert struct {
	ID          string
	Set         Fields
	SetOnInsert Fields
}

// field names as they appear in the document stores and JSON
const (
	fieldWaID      = "wa_id"
	fieldName      = "name"
	fieldBody      = "body"
	fieldType      = "type"
	fieldStatus    = "status"
	fieldFromMe    = "from_me"
	fieldCreatedAt = "createdAt"
	fieldMetadata  = "metadata"
)

var fieldOrder = []string{
	fieldWaID, fieldName, fieldBody, fieldType, fieldStatus, fieldFromMe, fieldCreatedAt, fieldMetadata,
}

func (f Fields) values() map[string]any {
	out := make(map[string]any, len(fieldOrder))
	if f.WaID != nil {
		out[fieldWaID] = *f.WaID
	}
	if f.Name != nil {
		out[fieldName] = *f.Name
	}
	if f.Body != nil {
		out[fieldBody] = *f.Body
	}
	if f.Type != nil {
		out[fieldType] = *f.Type
	}
	if f.Status != nil {
		out[fieldStatus] = string(*f.Status)
	}
	if f.FromMe != nil {
		out[fieldFromMe] = *f.FromMe
	}
	if f.CreatedAt != nil {
		out[fieldCreatedAt] = f.CreatedAt.UTC()
	}
	if f.Metadata != nil {
		out[fieldMetadata] = f.Metadata
	}
	return out
}

func (f Fields) applyTo(m *model.Message) {
	if f.WaID != nil {
		m.WaID = *f.WaID
	}
	if f.Name != nil {
		m.Name = *f.Name
	}
	if f.Body != nil {
		m.Body = *f.Body
	}
	if f.Type != nil {
		m.Type = *f.Type
	}
	if f.Status != nil {
		m.Status = *f.Status
	}
	if f.FromMe != nil {
		m.FromMe = *f.FromMe
	}
	if f.CreatedAt != nil {
		m.CreatedAt = f.CreatedAt.UTC()
	}
	if f.Metadata != nil {
		m.Metadata = f.Metadata
	}
}

// inserted is the record a fresh insert would produce.
func (u Upsert) inserted(now time.Time) model.Message {
	m := model.NewMessage(u.ID)
	m.CreatedAt = now.UTC()
	u.SetOnInsert.applyTo(&m)
	u.Set.applyTo(&m)
	return m
}
