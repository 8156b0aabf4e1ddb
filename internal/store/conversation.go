package store

import "sort"

// ConversationIndex maps conversation ids to summary records and keeps
// them sorted by recency. Like MessageStore it is single-writer: only the
// reconciler mutates it.
type ConversationIndex struct {
	summaries map[string]*Conversation
	order     []*Conversation
	activeID  string
}

// NewConversationIndex creates an empty index.
func NewConversationIndex() *ConversationIndex {
	return &ConversationIndex{
		summaries: make(map[string]*Conversation),
	}
}

// SetActive records the currently viewed conversation. Unread increments
// for the active conversation are no-ops.
func (x *ConversationIndex) SetActive(conversationID string) {
	x.activeID = conversationID
}

// Active returns the currently viewed conversation id.
func (x *ConversationIndex) Active() string {
	return x.activeID
}

// ApplySummaryPatch merges the present fields of patch into the stored
// summary, creating it if absent, and re-sorts by last activity. Returns
// whether any field changed.
func (x *ConversationIndex) ApplySummaryPatch(conversationID string, patch SummaryPatch) bool {
	c, ok := x.summaries[conversationID]
	changed := !ok
	if !ok {
		c = &Conversation{ID: conversationID}
		x.summaries[conversationID] = c
		x.order = append(x.order, c)
	}

	if patch.AccountID != nil && *patch.AccountID != c.AccountID {
		c.AccountID = *patch.AccountID
		changed = true
	}
	if patch.Name != nil && *patch.Name != c.Name {
		c.Name = *patch.Name
		changed = true
	}
	if patch.PhoneNumber != nil && *patch.PhoneNumber != c.PhoneNumber {
		c.PhoneNumber = *patch.PhoneNumber
		changed = true
	}
	// Recency only moves forward: a stale snapshot must not pull the
	// conversation back down the list or revert its preview.
	stale := false
	if patch.LastMessageAt != nil {
		switch {
		case *patch.LastMessageAt > c.LastMessageAt:
			c.LastMessageAt = *patch.LastMessageAt
			changed = true
		case *patch.LastMessageAt < c.LastMessageAt:
			stale = true
		}
	}
	if patch.LastMessagePreview != nil && !stale && *patch.LastMessagePreview != c.LastMessagePreview {
		c.LastMessagePreview = *patch.LastMessagePreview
		changed = true
	}
	if patch.UnreadCount != nil && *patch.UnreadCount != c.UnreadCount && *patch.UnreadCount >= 0 {
		c.UnreadCount = *patch.UnreadCount
		changed = true
	}

	if changed {
		x.resort()
	}
	return changed
}

// IncrementUnread bumps the unread counter unless the conversation is the
// active one, which the user is looking at right now.
func (x *ConversationIndex) IncrementUnread(conversationID string) {
	if conversationID == x.activeID {
		return
	}
	if c, ok := x.summaries[conversationID]; ok {
		c.UnreadCount++
	}
}

// ClearUnread zeroes the unread counter unconditionally.
func (x *ConversationIndex) ClearUnread(conversationID string) {
	if c, ok := x.summaries[conversationID]; ok {
		c.UnreadCount = 0
	}
}

// Get returns a copy of a summary.
func (x *ConversationIndex) Get(conversationID string) (Conversation, bool) {
	c, ok := x.summaries[conversationID]
	if !ok {
		return Conversation{}, false
	}
	return *c, true
}

// List returns a fresh snapshot of summaries in current sort order,
// most recent activity first. Callers may re-invoke freely.
func (x *ConversationIndex) List() []Conversation {
	out := make([]Conversation, len(x.order))
	for i, c := range x.order {
		out[i] = *c
	}
	return out
}

func (x *ConversationIndex) resort() {
	sort.SliceStable(x.order, func(i, j int) bool {
		return x.order[i].LastMessageAt > x.order[j].LastMessageAt
	})
}
