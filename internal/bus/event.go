package bus

import "time"

// Event represents a domain event published on the bus.
//
// Kinds used across the app:
//
//	channel.message       normalized inbound message (push or poll)
//	channel.status        normalized delivery status update
//	channel.conversations conversation-summary snapshot from a poll cycle
//	channel.messages      message-list snapshot for the active conversation
//	view.messages         change-set: a conversation's message list changed
//	view.conversations    change-set: the conversation index changed
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
