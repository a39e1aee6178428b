package model

import "time"

type Status string

const (
	Sent      Status = "sent"
	Delivered Status = "delivered"
	Read      Status = "read"
)

const (
	DefaultType = "text"

	// UnsupportedBody stands in for inbound messages that carry no text body.
	UnsupportedBody = "Unsupported message type"
	// BusinessAccountBody is the body of a record first seen through a status update.
	BusinessAccountBody = "Message sent from Business Account"
)

type Message struct {
	ID        string         `json:"id" bson:"id"`
	WaID      string         `json:"wa_id" bson:"wa_id"`
	Name      string         `json:"name,omitempty" bson:"name,omitempty"`
	Body      string         `json:"body" bson:"body"`
	Type      string         `json:"type" bson:"type"`
	Status    Status         `json:"status" bson:"status"`
	FromMe    bool           `json:"from_me" bson:"from_me"`
	Metadata  map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt" bson:"createdAt"`
}

// NewMessage returns a record carrying only the insert defaults.
func NewMessage(id string) Message {
	return Message{
		ID:     id,
		Type:   DefaultType,
		Status: Sent,
	}
}

// Conversation is the derived summary of one counterparty's thread.
type Conversation struct {
	WaID        string    `json:"wa_id"`
	Name        *string   `json:"name"`
	LastMessage string    `json:"lastMessage"`
	Timestamp   time.Time `json:"timestamp"`
}
