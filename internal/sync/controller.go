package sync

import (
	"context"
	"fmt"
	stdsync "sync"

	"go.uber.org/zap"

	"github.com/lgabs/wachat/internal/channel"
	"github.com/lgabs/wachat/internal/client"
	"github.com/lgabs/wachat/internal/store"
)

// Controller owns the session selection lifecycle: which account and
// conversation are in focus, and the start/stop of the poll adapter and
// push subscription as that focus moves. Timer and subscription handles
// live here, never in globals.
type Controller struct {
	recon  *Reconciler
	push   *channel.PushAdapter
	poll   *channel.PollAdapter
	client client.Client
	logger *zap.Logger

	// pushEnabled is the capability flag: without it the push adapter is
	// never started and polling is the only channel.
	pushEnabled bool

	mu       stdsync.Mutex
	ctx      context.Context
	accounts []store.Account
}

// NewController creates a session controller.
func NewController(recon *Reconciler, push *channel.PushAdapter, poll *channel.PollAdapter, c client.Client, pushEnabled bool, logger *zap.Logger) *Controller {
	return &Controller{
		recon:       recon,
		push:        push,
		poll:        poll,
		client:      c,
		pushEnabled: pushEnabled,
		logger:      logger,
	}
}

// Start loads the account list and focuses the first active account.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	c.recon.Start(ctx)

	accounts, err := c.client.FetchAccounts(ctx)
	if err != nil {
		return fmt.Errorf("fetch accounts: %w", err)
	}
	c.mu.Lock()
	c.accounts = accounts
	c.mu.Unlock()

	for _, acc := range accounts {
		if acc.Active {
			c.SelectAccount(acc.ID)
			return nil
		}
	}
	c.logger.Warn("no active account available")
	return nil
}

// Accounts returns the loaded account list.
func (c *Controller) Accounts() []store.Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]store.Account, len(c.accounts))
	copy(out, c.accounts)
	return out
}

// SelectAccount moves the account focus: the old push subscription and
// poll scope are torn down and new ones started. Push subscription
// failure degrades silently to poll-only.
func (c *Controller) SelectAccount(accountID string) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()

	c.push.Stop()
	c.poll.Stop()
	c.recon.SwitchAccount(accountID)

	if c.pushEnabled {
		if err := c.push.Start(ctx, accountID); err != nil {
			c.logger.Warn("push subscription failed, running poll-only", zap.Error(err))
		}
	}
	c.poll.Start(ctx, accountID, "")
	c.logger.Info("account selected", zap.String("account_id", accountID))
}

// SelectConversation focuses a conversation: activates it in the
// reconciler and rescopes polling to include its message list.
func (c *Controller) SelectConversation(conversationID string) error {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()

	if err := c.recon.OnActivate(ctx, conversationID); err != nil {
		return err
	}
	sel := c.recon.Selection()
	c.poll.Start(ctx, sel.AccountID, conversationID)
	return nil
}

// StartConversation opens (or creates) a conversation with the phone
// number on the focused account and selects it.
func (c *Controller) StartConversation(phoneNumber string) (string, error) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()

	conversationID, err := c.recon.StartConversation(ctx, phoneNumber)
	if err != nil {
		return "", err
	}
	sel := c.recon.Selection()
	c.poll.Start(ctx, sel.AccountID, conversationID)
	return conversationID, nil
}

// Send sends a message in the focused conversation.
func (c *Controller) Send(body string) (store.Message, error) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()

	sel := c.recon.Selection()
	if sel.ConversationID == "" {
		return store.Message{}, fmt.Errorf("no conversation selected")
	}
	return c.recon.OnLocalSend(ctx, sel.ConversationID, body)
}

// Dispose tears down the poll timer and push subscription
// unconditionally and stops the reconciler loop.
func (c *Controller) Dispose() {
	c.push.Stop()
	c.poll.Stop()
	c.recon.Stop()
	c.logger.Info("session controller disposed")
}
