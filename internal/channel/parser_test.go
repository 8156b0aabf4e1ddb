package channel

import (
	"testing"

	"github.com/lgabs/wachat/internal/store"
)

func TestParsePushNewMessage(t *testing.T) {
	raw := []byte(`{
		"type": "new_message",
		"account_id": "acc1",
		"conversation_id": "c1",
		"message": {
			"id": "m1",
			"direction": "incoming",
			"message_type": "text",
			"content": "hello",
			"timestamp": 1700000000000,
			"status": "delivered",
			"phone_number": "5511999990000"
		}
	}`)

	evt, ok := ParsePush(raw)
	if !ok {
		t.Fatal("payload should parse")
	}
	msg, ok := evt.(*MessageEvent)
	if !ok {
		t.Fatalf("event type = %T, want *MessageEvent", evt)
	}
	if msg.ConversationID != "c1" || msg.Message.ID != "m1" || msg.Message.Status != store.StatusDelivered {
		t.Errorf("unexpected event: %+v", msg)
	}
}

func TestParsePushStatusUpdate(t *testing.T) {
	raw := []byte(`{"type":"status_update","message_id":"m1","status":"read"}`)

	evt, ok := ParsePush(raw)
	if !ok {
		t.Fatal("payload should parse")
	}
	st, ok := evt.(*StatusEvent)
	if !ok {
		t.Fatalf("event type = %T, want *StatusEvent", evt)
	}
	if st.MessageID != "m1" || st.Status != store.StatusRead {
		t.Errorf("unexpected event: %+v", st)
	}
}

func TestParsePushFailedStatusCarriesError(t *testing.T) {
	raw := []byte(`{"type":"status_update","message_id":"m1","status":"failed","error_message":"number unreachable"}`)

	evt, _ := ParsePush(raw)
	st := evt.(*StatusEvent)
	if st.Status != store.StatusFailed || st.ErrorMessage != "number unreachable" {
		t.Errorf("unexpected event: %+v", st)
	}
}

func TestParsePushMalformedDropped(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{nope`},
		{"unknown type", `{"type":"reaction_added","message_id":"m1"}`},
		{"message without id", `{"type":"new_message","conversation_id":"c1","message":{"content":"x"}}`},
		{"message without conversation", `{"type":"new_message","message":{"id":"m1"}}`},
		{"status without message id", `{"type":"status_update","status":"read"}`},
		{"status with unknown value", `{"type":"status_update","message_id":"m1","status":"vanished"}`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if evt, ok := ParsePush([]byte(tt.raw)); ok {
				t.Errorf("payload should be dropped, got %+v", evt)
			}
		})
	}
}

func TestNormalizeBodyPlaceholders(t *testing.T) {
	if got := normalizeBody("image", ""); got != "[Image]" {
		t.Errorf("image placeholder = %q", got)
	}
	if got := normalizeBody("image", "a caption"); got != "a caption" {
		t.Errorf("caption should win, got %q", got)
	}
	if got := normalizeBody("audio", ""); got != "[Audio Message]" {
		t.Errorf("audio placeholder = %q", got)
	}
	if got := normalizeBody("text", ""); got != "" {
		t.Errorf("text stays empty, got %q", got)
	}
}
