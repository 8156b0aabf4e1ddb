package channel

import (
	"context"
	"sync"
	"time"

	"github.com/lgabs/wachat/internal/bus"
	"github.com/lgabs/wachat/internal/client"
	"go.uber.org/zap"
)

// PushAdapter subscribes to the backend's per-account push feed and
// publishes each payload as exactly one normalized bus event. No
// buffering or coalescing happens here.
type PushAdapter struct {
	client client.Client
	bus    *bus.Bus
	logger *zap.Logger

	mu  sync.Mutex
	sub client.Subscription
}

// NewPushAdapter creates a push adapter.
func NewPushAdapter(c client.Client, b *bus.Bus, logger *zap.Logger) *PushAdapter {
	return &PushAdapter{client: c, bus: b, logger: logger}
}

// Start subscribes to the account's push channel. A subscription failure
// is returned to the caller but is non-fatal: the poll adapter remains
// the designed fallback.
func (p *PushAdapter) Start(ctx context.Context, accountID string) error {
	sub, err := p.client.SubscribePush(ctx, accountID, p.handleRaw)
	if err != nil {
		return err
	}
	p.mu.Lock()
	old := p.sub
	p.sub = sub
	p.mu.Unlock()
	if old != nil {
		old.Cancel()
	}
	p.logger.Info("push subscription active", zap.String("account_id", accountID))
	return nil
}

// Stop cancels the current subscription. Called when the account
// selection changes or the core is disposed, possibly from different
// goroutines.
func (p *PushAdapter) Stop() {
	p.mu.Lock()
	sub := p.sub
	p.sub = nil
	p.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

func (p *PushAdapter) handleRaw(raw []byte) {
	evt, ok := ParsePush(raw)
	if !ok {
		p.logger.Debug("dropping malformed push payload", zap.Int("bytes", len(raw)))
		return
	}

	switch evt.(type) {
	case *MessageEvent:
		p.bus.Publish(bus.Event{Kind: "channel.message", Timestamp: time.Now(), Payload: evt})
	case *StatusEvent:
		p.bus.Publish(bus.Event{Kind: "channel.status", Timestamp: time.Now(), Payload: evt})
	}
}
