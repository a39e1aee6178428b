package payload

import (
	"errors"
	"testing"
	"time"

	"github.com/LeventeLantos/wa-inbox/internal/model"
)

const inboundJSON = `{
  "payload_type": "whatsapp_webhook",
  "_id": "conv1-msg1-user",
  "metaData": {
    "entry": [{
      "changes": [{
        "field": "messages",
        "value": {
          "messaging_product": "whatsapp",
          "metadata": {"display_phone_number": "918329446654", "phone_number_id": "629305560276479"},
          "contacts": [{"profile": {"name": "Ravi Kumar"}, "wa_id": "919937320320"}],
          "messages": [{
            "from": "919937320320",
            "id": "wamid.HBgMOTE5OTY3NTc4NzIwFQIAEhggMTIzQURFRjEyMzQ1Njc4OTA=",
            "timestamp": "1754400000",
            "text": {"body": "Hi, I'd like to know more about your services."},
            "type": "text"
          }]
        }
      }],
      "id": "30164062719905277"
    }],
    "gs_app_id": "conv1-app",
    "object": "whatsapp_business_account"
  }
}`

const statusJSON = `{
  "metaData": {
    "entry": [{
      "changes": [{
        "field": "messages",
        "value": {
          "messaging_product": "whatsapp",
          "statuses": [{
            "id": "wamid.HBgMOTE5OTY3NTc4NzIwFQIAEhggMTIzQURFRjEyMzQ1Njc4OTA=",
            "recipient_id": "919937320320",
            "status": "read",
            "timestamp": "1754400010"
          }]
        }
      }]
    }]
  }
}`

func TestNormalize_InboundMessage(t *testing.T) {
	in, err := Normalize([]byte(inboundJSON))
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}

	if in.Kind != KindInbound {
		t.Fatalf("expected inbound intent, got %s", in.Kind)
	}
	if in.ID != "wamid.HBgMOTE5OTY3NTc4NzIwFQIAEhggMTIzQURFRjEyMzQ1Njc4OTA=" {
		t.Fatalf("unexpected id %q", in.ID)
	}
	if in.WaID != "919937320320" || in.Name != "Ravi Kumar" {
		t.Fatalf("unexpected sender wa_id=%q name=%q", in.WaID, in.Name)
	}
	if in.Body != "Hi, I'd like to know more about your services." {
		t.Fatalf("unexpected body %q", in.Body)
	}
	if in.Type != "text" || in.Status != model.Delivered || in.FromMe {
		t.Fatalf("unexpected type=%q status=%q fromMe=%v", in.Type, in.Status, in.FromMe)
	}
	if want := time.Unix(1754400000, 0).UTC(); !in.CreatedAt.Equal(want) {
		t.Fatalf("expected createdAt %v, got %v", want, in.CreatedAt)
	}
	if in.Metadata["phone_number_id"] != "629305560276479" {
		t.Fatalf("expected change metadata to be carried, got %v", in.Metadata)
	}
}

func TestNormalize_StatusUpdate(t *testing.T) {
	in, err := Normalize([]byte(statusJSON))
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}

	if in.Kind != KindStatus {
		t.Fatalf("expected status intent, got %s", in.Kind)
	}
	if in.Status != model.Read || !in.FromMe || in.WaID != "919937320320" {
		t.Fatalf("unexpected status intent %+v", in)
	}
	if in.Body != "" || in.Name != "" {
		t.Fatalf("status intent must not carry body or name, got %+v", in)
	}
	if want := time.Unix(1754400010, 0).UTC(); !in.CreatedAt.Equal(want) {
		t.Fatalf("expected createdAt %v, got %v", want, in.CreatedAt)
	}
}

func TestNormalize_UnsupportedTypeUsesPlaceholder(t *testing.T) {
	raw := `{"metaData":{"entry":[{"changes":[{"value":{
		"contacts":[{"profile":{"name":"Neha"},"wa_id":"929967673820"}],
		"messages":[{"id":"m-img","timestamp":"1754401000","type":"image","image":{"id":"x"}}]
	}}]}]}}`

	in, err := Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if in.Body != model.UnsupportedBody {
		t.Fatalf("expected placeholder body, got %q", in.Body)
	}
	if in.Type != "image" {
		t.Fatalf("expected type image, got %q", in.Type)
	}
}

func TestNormalize_NumericTimestamp(t *testing.T) {
	raw := `{"metaData":{"entry":[{"changes":[{"value":{
		"statuses":[{"id":"m1","recipient_id":"555","status":"delivered","timestamp":2000}]
	}}]}]}}`

	in, err := Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if want := time.UnixMilli(2000 * 1000).UTC(); !in.CreatedAt.Equal(want) {
		t.Fatalf("expected %v, got %v", want, in.CreatedAt)
	}
}

func TestNormalize_MessagesWinOverStatuses(t *testing.T) {
	raw := `{"metaData":{"entry":[{"changes":[{"value":{
		"contacts":[{"profile":{"name":"A"},"wa_id":"1"}],
		"messages":[{"id":"m1","timestamp":"10","type":"text","text":{"body":"x"}}],
		"statuses":[{"id":"m1","recipient_id":"1","status":"read","timestamp":"20"}]
	}}]}]}}`

	in, err := Normalize([]byte(raw))
	if err != nil {
		t.Fatalf("Normalize() error: %v", err)
	}
	if in.Kind != KindInbound {
		t.Fatalf("expected exactly the inbound intent, got %s", in.Kind)
	}
}

func TestNormalize_NoOp(t *testing.T) {
	cases := map[string]string{
		"empty value":    `{"metaData":{"entry":[{"changes":[{"value":{}}]}]}}`,
		"empty messages": `{"metaData":{"entry":[{"changes":[{"value":{"messages":[],"statuses":[]}}]}]}}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			in, err := Normalize([]byte(raw))
			if err != nil {
				t.Fatalf("expected no error for no-op payload, got %v", err)
			}
			if in.Kind != KindNone {
				t.Fatalf("expected KindNone, got %s", in.Kind)
			}
		})
	}
}

func TestNormalize_Malformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"no metaData", `{"payload_type":"whatsapp_webhook"}`},
		{"no entry", `{"metaData":{}}`},
		{"empty entry", `{"metaData":{"entry":[]}}`},
		{"no changes", `{"metaData":{"entry":[{}]}}`},
		{"no value", `{"metaData":{"entry":[{"changes":[{"field":"messages"}]}]}}`},
		{"value wrong type", `{"metaData":{"entry":[{"changes":[{"value":"oops"}]}]}}`},
		{"message without contact", `{"metaData":{"entry":[{"changes":[{"value":{
			"messages":[{"id":"m1","timestamp":"1","type":"text","text":{"body":"x"}}]}}]}]}}`},
		{"message without timestamp", `{"metaData":{"entry":[{"changes":[{"value":{
			"contacts":[{"wa_id":"1"}],
			"messages":[{"id":"m1","type":"text","text":{"body":"x"}}]}}]}]}}`},
		{"bad timestamp", `{"metaData":{"entry":[{"changes":[{"value":{
			"statuses":[{"id":"m1","recipient_id":"1","status":"read","timestamp":"yesterday"}]}}]}]}}`},
		{"status without recipient", `{"metaData":{"entry":[{"changes":[{"value":{
			"statuses":[{"id":"m1","status":"read","timestamp":"1"}]}}]}]}}`},
		{"timestamp past year 9999", `{"metaData":{"entry":[{"changes":[{"value":{
			"statuses":[{"id":"m1","recipient_id":"1","status":"read","timestamp":"300000000000"}]}}]}]}}`},
		{"timestamp overflowing millis", `{"metaData":{"entry":[{"changes":[{"value":{
			"statuses":[{"id":"m1","recipient_id":"1","status":"read","timestamp":"9300000000000000"}]}}]}]}}`},
		{"negative timestamp", `{"metaData":{"entry":[{"changes":[{"value":{
			"contacts":[{"wa_id":"1"}],
			"messages":[{"id":"m1","timestamp":-5,"type":"text","text":{"body":"x"}}]}}]}]}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize([]byte(tc.raw))
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !errors.Is(err, ErrMalformedPayload) {
				t.Fatalf("expected ErrMalformedPayload, got %v", err)
			}
		})
	}
}

func TestEpochSeconds_Bounds(t *testing.T) {
	var e EpochSeconds
	if err := e.UnmarshalJSON([]byte(`"253402300799"`)); err != nil {
		t.Fatalf("expected last second of year 9999 to be accepted, got %v", err)
	}
	got := e.Time()
	if got.Year() != 9999 {
		t.Fatalf("expected year 9999, got %v", got)
	}
	if _, err := got.MarshalJSON(); err != nil {
		t.Fatalf("expected accepted timestamp to encode, got %v", err)
	}

	if err := e.UnmarshalJSON([]byte(`"253402300800"`)); err == nil {
		t.Fatalf("expected year 10000 to be rejected")
	}
	if err := e.UnmarshalJSON([]byte(`0`)); err != nil || !e.Time().Equal(time.Unix(0, 0)) {
		t.Fatalf("expected epoch zero to be accepted, got %v %v", e.Time(), err)
	}
}
