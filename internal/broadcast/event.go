// Package broadcast fans stored message events out to websocket clients,
// other instances (Redis pub/sub) and an optional AMQP exchange.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrClosed = errors.New("broadcaster closed")

// Event is the frame pushed to clients: {"event": "...", "payload": {...}}.
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func NewEvent(name string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Payload: b}, nil
}

func (e Event) Frame() ([]byte, error) {
	return json.Marshal(e)
}

// Sink receives events from the Dispatcher.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}
