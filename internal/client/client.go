package client

import (
	"context"
	"fmt"

	"github.com/lgabs/wachat/internal/store"
)

// Client is the contract the sync core depends on for talking to the
// chat backend. Transport details are opaque to the core: both channels
// are best-effort and every call may fail without harming loaded state.
type Client interface {
	FetchAccounts(ctx context.Context) ([]store.Account, error)
	FetchConversations(ctx context.Context, accountID string) ([]store.Conversation, error)
	FetchMessages(ctx context.Context, conversationID string) ([]store.Message, error)
	SendMessage(ctx context.Context, conversationID, body string) (store.Message, error)
	MarkAsRead(ctx context.Context, conversationID string) error
	GetOrCreateConversation(ctx context.Context, accountID, phoneNumber string) (string, error)
	SubscribePush(ctx context.Context, accountID string, onEvent func(raw []byte)) (Subscription, error)
}

// Subscription is a handle to an active push subscription.
type Subscription interface {
	Cancel()
}

// SendError is returned when the backend rejects or fails an outbound
// message. The reason ends up attached to the failed optimistic entry.
type SendError struct {
	Reason string
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed: %s", e.Reason)
}
