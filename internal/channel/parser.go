package channel

import (
	"encoding/json"

	"github.com/lgabs/wachat/internal/store"
)

// rawNotification mirrors the backend's push payload shape.
type rawNotification struct {
	Type           string      `json:"type"`
	AccountID      string      `json:"account_id"`
	ConversationID string      `json:"conversation_id"`
	Message        *rawMessage `json:"message"`

	// status_update fields
	MessageID    string `json:"message_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

type rawMessage struct {
	ID          string `json:"id"`
	Direction   string `json:"direction"`
	MessageType string `json:"message_type"`
	Content     string `json:"content"`
	Timestamp   int64  `json:"timestamp"`
	Status      string `json:"status"`
	PhoneNumber string `json:"phone_number"`
}

// ParsePush normalizes one raw push payload into exactly one typed
// event: *MessageEvent or *StatusEvent. Malformed payloads return
// (nil, false) and are dropped with no mutation; the push channel is
// best-effort by contract.
func ParsePush(raw []byte) (any, bool) {
	var n rawNotification
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, false
	}

	switch n.Type {
	case "new_message":
		if n.ConversationID == "" || n.Message == nil || n.Message.ID == "" {
			return nil, false
		}
		status, ok := store.ParseStatus(n.Message.Status)
		if !ok {
			status = store.StatusDelivered
		}
		return &MessageEvent{
			AccountID:      n.AccountID,
			ConversationID: n.ConversationID,
			Message: store.Message{
				ID:             n.Message.ID,
				ConversationID: n.ConversationID,
				Direction:      store.Direction(n.Message.Direction),
				MessageType:    n.Message.MessageType,
				Body:           normalizeBody(n.Message.MessageType, n.Message.Content),
				Timestamp:      n.Message.Timestamp,
				Status:         status,
			},
		}, true

	case "status_update":
		if n.MessageID == "" {
			return nil, false
		}
		status, ok := store.ParseStatus(n.Status)
		if !ok {
			return nil, false
		}
		return &StatusEvent{
			MessageID:    n.MessageID,
			Status:       status,
			ErrorMessage: n.ErrorMessage,
		}, true
	}

	return nil, false
}

// normalizeBody substitutes a placeholder for media messages that carry
// no caption, so previews always have something to show.
func normalizeBody(messageType, content string) string {
	if content != "" {
		return content
	}
	switch messageType {
	case "image":
		return "[Image]"
	case "video":
		return "[Video]"
	case "audio":
		return "[Audio Message]"
	case "document":
		return "[Document]"
	case "sticker":
		return "[Sticker]"
	case "location":
		return "[Location]"
	case "contacts":
		return "[Contact]"
	default:
		return content
	}
}
