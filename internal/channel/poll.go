package channel

import (
	"context"
	"sync"
	"time"

	"github.com/lgabs/wachat/internal/bus"
	"github.com/lgabs/wachat/internal/client"
	"go.uber.org/zap"
)

// PollAdapter refreshes the active account's conversation summaries and
// the active conversation's message list on a fixed interval. Each fetch
// result is published independently as a snapshot event.
type PollAdapter struct {
	client   client.Client
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration

	// sendInFlight reports whether an optimistic send is pending for the
	// conversation. A cycle that would race such a send is deferred to
	// the next tick, so a stale read cannot clobber the pending entry.
	sendInFlight func(conversationID string) bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewPollAdapter creates a poll adapter. sendInFlight may be nil, in
// which case no cycle is ever deferred.
func NewPollAdapter(c client.Client, b *bus.Bus, interval time.Duration, sendInFlight func(string) bool, logger *zap.Logger) *PollAdapter {
	if sendInFlight == nil {
		sendInFlight = func(string) bool { return false }
	}
	return &PollAdapter{
		client:       c,
		bus:          b,
		logger:       logger,
		interval:     interval,
		sendInFlight: sendInFlight,
	}
}

// Start begins polling scoped to the given account and conversation.
// Restarting with a new scope cancels the old one; fetches already in
// flight for the old scope have their completions dropped, not aborted.
func (p *PollAdapter) Start(ctx context.Context, accountID, conversationID string) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	old := p.cancel
	p.cancel = cancel
	p.mu.Unlock()
	if old != nil {
		old()
	}
	go p.loop(ctx, accountID, conversationID)
}

// Stop halts the polling loop. Safe from any goroutine.
func (p *PollAdapter) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (p *PollAdapter) loop(ctx context.Context, accountID, conversationID string) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.cycle(ctx, accountID, conversationID)
		case <-ctx.Done():
			return
		}
	}
}

func (p *PollAdapter) cycle(ctx context.Context, accountID, conversationID string) {
	if conversationID != "" && p.sendInFlight(conversationID) {
		p.logger.Debug("poll cycle deferred, send in flight",
			zap.String("conversation_id", conversationID))
		return
	}

	if accountID != "" {
		convs, err := p.client.FetchConversations(ctx, accountID)
		switch {
		case err != nil:
			p.logger.Warn("poll: fetch conversations failed", zap.Error(err))
		case ctx.Err() == nil:
			p.bus.Publish(bus.Event{
				Kind:      "channel.conversations",
				Timestamp: time.Now(),
				Payload:   &ConversationsSnapshot{AccountID: accountID, Conversations: convs},
			})
		}
	}

	if conversationID != "" {
		msgs, err := p.client.FetchMessages(ctx, conversationID)
		switch {
		case err != nil:
			p.logger.Warn("poll: fetch messages failed", zap.Error(err))
		case ctx.Err() == nil:
			p.bus.Publish(bus.Event{
				Kind:      "channel.messages",
				Timestamp: time.Now(),
				Payload:   &MessagesSnapshot{ConversationID: conversationID, Messages: msgs},
			})
		}
	}
}
