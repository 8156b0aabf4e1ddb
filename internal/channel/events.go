// Package channel contains the two event producers feeding the
// reconciler: a push adapter subscribed to the backend's notification
// feed and a poll adapter refreshing state on a fixed interval. Both
// emit the same normalized event payloads on the bus under the
// "channel." namespace.
package channel

import "github.com/lgabs/wachat/internal/store"

// MessageEvent is a normalized inbound or outbound message notification.
type MessageEvent struct {
	AccountID      string
	ConversationID string
	Message        store.Message
}

// StatusEvent is a normalized delivery-status update. The raw payload
// carries no conversation id; the reconciler resolves it against the
// loaded conversation.
type StatusEvent struct {
	MessageID    string
	Status       store.Status
	ErrorMessage string
}

// ConversationsSnapshot is a poll result with the full summary list for
// an account.
type ConversationsSnapshot struct {
	AccountID     string
	Conversations []store.Conversation
}

// MessagesSnapshot is a poll result with the full ordered message list
// for a conversation.
type MessagesSnapshot struct {
	ConversationID string
	Messages       []store.Message
}
