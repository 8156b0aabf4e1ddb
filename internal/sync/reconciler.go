// Package sync reconciles conversation and message updates arriving
// from the push and poll channels with locally originated actions. All
// state mutation funnels through the Reconciler, which serializes on one
// mutex: correctness rests on the stores' idempotent, order-tolerant
// merge rules, not on cross-channel sequencing.
package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lgabs/wachat/internal/archive"
	"github.com/lgabs/wachat/internal/bus"
	"github.com/lgabs/wachat/internal/channel"
	"github.com/lgabs/wachat/internal/client"
	"github.com/lgabs/wachat/internal/store"
)

const previewLen = 100

// Selection is the (account, conversation) pair currently in focus.
type Selection struct {
	AccountID      string
	ConversationID string
}

// Reconciler applies normalized channel events and local actions to the
// message store and conversation index, and publishes change-set events
// for renderers. Push-channel and local events win over concurrently
// arriving poll snapshots because snapshots only ever pass through the
// same monotonic merge rules.
type Reconciler struct {
	mu       stdsync.Mutex
	messages *store.MessageStore
	index    *store.ConversationIndex
	client   client.Client
	archive  *archive.DB
	bus      *bus.Bus
	logger   *zap.Logger

	selection Selection
	inFlight  map[string]int

	cancel context.CancelFunc
}

// NewReconciler creates a reconciler. archiveDB may be nil to run
// without the history archive.
func NewReconciler(c client.Client, b *bus.Bus, archiveDB *archive.DB, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		messages: store.NewMessageStore(),
		index:    store.NewConversationIndex(),
		client:   c,
		archive:  archiveDB,
		bus:      b,
		logger:   logger,
		inFlight: make(map[string]int),
	}
}

// Start subscribes to normalized channel events on the bus.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	ch, unsub := r.bus.Subscribe("channel.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				r.dispatch(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the event loop.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Reconciler) dispatch(evt bus.Event) {
	switch payload := evt.Payload.(type) {
	case *channel.MessageEvent:
		r.OnPushMessage(payload)
	case *channel.StatusEvent:
		r.OnStatusUpdate(payload)
	case *channel.ConversationsSnapshot:
		r.OnPollSnapshot(payload)
	case *channel.MessagesSnapshot:
		r.OnMessagesSnapshot(payload)
	}
}

// Selection returns the current focus pair.
func (r *Reconciler) Selection() Selection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selection
}

// SendInFlight reports whether an optimistic send is pending for the
// conversation. The poll adapter uses this to defer cycles that would
// race the pending entry.
func (r *Reconciler) SendInFlight(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight[conversationID] > 0
}

// Messages returns the loaded messages for a conversation, oldest first.
func (r *Reconciler) Messages(conversationID string) []store.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages.List(conversationID)
}

// Conversations returns the summaries for the selected account in
// recency order. Summaries of other accounts stay in the index so their
// unread bookkeeping survives account switches.
func (r *Reconciler) Conversations() []store.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.index.List()
	if r.selection.AccountID == "" {
		return all
	}
	out := all[:0:0]
	for _, c := range all {
		if c.AccountID == r.selection.AccountID {
			out = append(out, c)
		}
	}
	return out
}

// OnPushMessage handles a normalized message notification from the push
// channel. The summary patch applies even when the conversation is not
// focused so the list stays current; the unread increment skips the
// active conversation.
func (r *Reconciler) OnPushMessage(evt *channel.MessageEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.selection.AccountID != "" && evt.AccountID != "" && evt.AccountID != r.selection.AccountID {
		return
	}

	changed := r.messages.Upsert(evt.ConversationID, evt.Message)

	// Summary first so a first-contact conversation exists before its
	// unread counter is touched.
	r.index.ApplySummaryPatch(evt.ConversationID, summaryFromMessage(evt.AccountID, evt.Message))
	if evt.Message.Direction == store.Incoming {
		r.index.IncrementUnread(evt.ConversationID)
	}

	r.mirrorMessage(evt.ConversationID, evt.Message.ID)
	r.mirrorSummary(evt.ConversationID)
	if changed {
		r.notifyMessages(evt.ConversationID)
	}
	r.notifyConversations()
}

// OnStatusUpdate patches a message's delivery status by id. Updates for
// messages outside the loaded conversation are dropped; the next poll
// snapshot for that conversation carries the terminal status anyway.
func (r *Reconciler) OnStatusUpdate(evt *channel.StatusEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversationID := r.selection.ConversationID
	if conversationID == "" {
		return
	}
	if !r.messages.PatchStatus(conversationID, evt.MessageID, evt.Status, evt.ErrorMessage) {
		return
	}
	r.mirrorMessage(conversationID, evt.MessageID)
	r.notifyMessages(conversationID)
}

// OnPollSnapshot merges a conversation-summary snapshot. Unread counts
// are trusted for every conversation except the active one, which the
// user is looking at and is therefore forced to zero.
func (r *Reconciler) OnPollSnapshot(snap *channel.ConversationsSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for _, conv := range snap.Conversations {
		patch := summaryFromConversation(conv)
		if conv.ID == r.selection.ConversationID {
			zero := 0
			patch.UnreadCount = &zero
		}
		if r.index.ApplySummaryPatch(conv.ID, patch) {
			changed = true
		}
		r.mirrorSummary(conv.ID)
	}
	if changed {
		r.notifyConversations()
	}
}

// OnMessagesSnapshot replaces the active conversation's message list
// with a poll result. Snapshots for a conversation that is no longer
// focused are stale completions and are dropped.
func (r *Reconciler) OnMessagesSnapshot(snap *channel.MessagesSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snap.ConversationID != r.selection.ConversationID {
		return
	}
	if !r.messages.ReplaceSnapshot(snap.ConversationID, snap.Messages) {
		return
	}
	for _, m := range snap.Messages {
		r.mirrorMessage(snap.ConversationID, m.ID)
	}
	r.notifyMessages(snap.ConversationID)
}

// OnLocalSend optimistically inserts a pending message, issues the
// outbound call, and reconciles the result. The server assigns its own
// message id, so confirmation replaces the optimistic entry instead of
// patching it; a transient duplicate never becomes visible.
func (r *Reconciler) OnLocalSend(ctx context.Context, conversationID, body string) (store.Message, error) {
	optimistic := store.Message{
		ID:             "local-" + uuid.NewString(),
		ConversationID: conversationID,
		Direction:      store.Outgoing,
		MessageType:    "text",
		Body:           body,
		Timestamp:      time.Now().UnixMilli(),
		Status:         store.StatusPending,
	}

	r.mu.Lock()
	r.messages.Upsert(conversationID, optimistic)
	r.index.ApplySummaryPatch(conversationID, summaryFromMessage(r.selection.AccountID, optimistic))
	r.inFlight[conversationID]++
	r.notifyMessages(conversationID)
	r.notifyConversations()
	r.mu.Unlock()

	confirmed, err := r.client.SendMessage(ctx, conversationID, body)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inFlight[conversationID]--

	if err != nil {
		reason := err.Error()
		var sendErr *client.SendError
		if errors.As(err, &sendErr) {
			reason = sendErr.Reason
		}
		r.messages.PatchStatus(conversationID, optimistic.ID, store.StatusFailed, reason)
		r.notifyMessages(conversationID)
		r.logger.Warn("send failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		failed, _ := r.messages.Get(conversationID, optimistic.ID)
		return failed, err
	}

	confirmed.ConversationID = conversationID
	r.messages.Confirm(conversationID, optimistic.ID, confirmed)
	r.index.ApplySummaryPatch(conversationID, summaryFromMessage(r.selection.AccountID, confirmed))
	r.mirrorMessage(conversationID, confirmed.ID)
	r.mirrorSummary(conversationID)
	r.notifyMessages(conversationID)
	r.notifyConversations()
	return confirmed, nil
}

// OnMarkRead issues the mark-as-read call and clears the local unread
// counter on success.
func (r *Reconciler) OnMarkRead(ctx context.Context, conversationID string) error {
	if err := r.client.MarkAsRead(ctx, conversationID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index.ClearUnread(conversationID)
	r.mirrorSummary(conversationID)
	r.notifyConversations()
	return nil
}

// OnActivate focuses a conversation: selection moves, its unread counter
// clears, a full message load replaces the list, and the conversation is
// marked read upstream. A load completing after focus moved again is
// discarded.
func (r *Reconciler) OnActivate(ctx context.Context, conversationID string) error {
	r.mu.Lock()
	r.selection.ConversationID = conversationID
	r.index.SetActive(conversationID)
	r.index.ClearUnread(conversationID)
	r.notifyConversations()
	r.mu.Unlock()

	msgs, err := r.client.FetchMessages(ctx, conversationID)
	if err != nil {
		r.logger.Warn("message load failed, keeping prior state",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
	} else {
		r.OnMessagesSnapshot(&channel.MessagesSnapshot{
			ConversationID: conversationID,
			Messages:       msgs,
		})
	}

	if err := r.OnMarkRead(ctx, conversationID); err != nil {
		r.logger.Warn("mark as read failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
	}
	return nil
}

// SwitchAccount moves the account focus and drops the conversation
// focus. Summaries already indexed are kept.
func (r *Reconciler) SwitchAccount(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selection = Selection{AccountID: accountID}
	r.index.SetActive("")
	r.notifyConversations()
}

// StartConversation gets or creates a conversation for the phone number
// on the selected account and focuses it.
func (r *Reconciler) StartConversation(ctx context.Context, phoneNumber string) (string, error) {
	r.mu.Lock()
	accountID := r.selection.AccountID
	r.mu.Unlock()

	conversationID, err := r.client.GetOrCreateConversation(ctx, accountID, phoneNumber)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	phone := phoneNumber
	r.index.ApplySummaryPatch(conversationID, store.SummaryPatch{
		AccountID:   &accountID,
		PhoneNumber: &phone,
	})
	r.mu.Unlock()

	return conversationID, r.OnActivate(ctx, conversationID)
}

// Callers hold r.mu for everything below.

func (r *Reconciler) notifyMessages(conversationID string) {
	r.bus.Publish(bus.Event{Kind: "view.messages", Timestamp: time.Now(), Payload: conversationID})
}

func (r *Reconciler) notifyConversations() {
	r.bus.Publish(bus.Event{Kind: "view.conversations", Timestamp: time.Now()})
}

// mirrorMessage persists a loaded message to the archive, best-effort.
func (r *Reconciler) mirrorMessage(conversationID, messageID string) {
	if r.archive == nil {
		return
	}
	msg, ok := r.messages.Get(conversationID, messageID)
	if !ok {
		return
	}
	if err := r.archive.UpsertMessage(&msg); err != nil {
		r.logger.Warn("archive message write failed", zap.Error(err))
	}
}

// mirrorSummary persists a conversation summary to the archive.
func (r *Reconciler) mirrorSummary(conversationID string) {
	if r.archive == nil {
		return
	}
	conv, ok := r.index.Get(conversationID)
	if !ok {
		return
	}
	if err := r.archive.UpsertConversation(&conv); err != nil {
		r.logger.Warn("archive summary write failed", zap.Error(err))
	}
}

func summaryFromMessage(accountID string, msg store.Message) store.SummaryPatch {
	preview := truncate(msg.Body, previewLen)
	patch := store.SummaryPatch{
		LastMessageAt:      &msg.Timestamp,
		LastMessagePreview: &preview,
	}
	if accountID != "" {
		patch.AccountID = &accountID
	}
	return patch
}

func summaryFromConversation(conv store.Conversation) store.SummaryPatch {
	return store.SummaryPatch{
		AccountID:          &conv.AccountID,
		Name:               &conv.Name,
		PhoneNumber:        &conv.PhoneNumber,
		LastMessageAt:      &conv.LastMessageAt,
		LastMessagePreview: &conv.LastMessagePreview,
		UnreadCount:        &conv.UnreadCount,
	}
}

// truncate trims to maxLen characters, never mid-rune, marking the cut
// with an ellipsis.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
