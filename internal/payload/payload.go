// Package payload decodes WhatsApp Cloud API webhook deliveries and turns them
// into intents the message store can apply.
package payload

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Envelope is the outer shape of one stored webhook delivery.
type Envelope struct {
	MetaData *struct {
		Entry []Entry `json:"entry"`
	} `json:"metaData"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string       `json:"field"`
	Value *ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string         `json:"messaging_product"`
	Metadata         map[string]any `json:"metadata"`
	Contacts         []Contact      `json:"contacts"`
	Messages         []Message      `json:"messages"`
	Statuses         []StatusEvent  `json:"statuses"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type Message struct {
	ID        string       `json:"id"`
	From      string       `json:"from"`
	Timestamp EpochSeconds `json:"timestamp"`
	Type      string       `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
}

type StatusEvent struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	Timestamp   EpochSeconds `json:"timestamp"`
	RecipientID string       `json:"recipient_id"`
}

// Largest accepted epoch, 9999-12-31T23:59:59Z. Negative epochs are rejected too.
var maxEpochSeconds = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC).Unix()

// EpochSeconds accepts both "1712345678" and 1712345678, since providers are
// not consistent about quoting timestamps.
type EpochSeconds struct {
	Set     bool
	Seconds int64
}

func (e *EpochSeconds) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid epoch timestamp %s: %w", string(data), err)
	}
	if v < 0 || v > maxEpochSeconds {
		return fmt.Errorf("epoch timestamp %d out of range", v)
	}
	e.Set = true
	e.Seconds = v
	return nil
}

func (e EpochSeconds) Time() time.Time {
	return time.Unix(e.Seconds, 0).UTC()
}

// Decode parses one raw delivery. Shape problems are left to Normalize.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return env, nil
}

// Change returns the value at metaData.entry[0].changes[0].value.
func (e Envelope) Change() (*ChangeValue, bool) {
	if e.MetaData == nil || len(e.MetaData.Entry) == 0 {
		return nil, false
	}
	changes := e.MetaData.Entry[0].Changes
	if len(changes) == 0 || changes[0].Value == nil {
		return nil, false
	}
	return changes[0].Value, true
}
