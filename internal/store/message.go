package store

// MessageStore holds the ordered, deduplicated message lists for loaded
// conversations. It is written only by the reconciler, which serializes
// all mutation, so the store itself carries no lock.
type MessageStore struct {
	ordered map[string][]*Message
	byID    map[string]map[string]*Message
}

// NewMessageStore creates an empty message store.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		ordered: make(map[string][]*Message),
		byID:    make(map[string]map[string]*Message),
	}
}

// Upsert inserts the message if its id is absent from the conversation,
// otherwise merges fields under the status monotonicity rule. A patch that
// would regress status is silently discarded; stale delayed updates are
// expected from both channels. Returns whether a visible change occurred.
// Unknown conversation ids auto-create an empty list.
func (s *MessageStore) Upsert(conversationID string, msg Message) bool {
	idx := s.byID[conversationID]
	if idx == nil {
		idx = make(map[string]*Message)
		s.byID[conversationID] = idx
	}

	if existing, ok := idx[msg.ID]; ok {
		return merge(existing, &msg)
	}

	msg.ConversationID = conversationID
	s.insert(conversationID, &msg)
	return true
}

// insert appends unless the timestamp is strictly earlier than its
// predecessor, in which case the message is placed at its temporal
// position. This tolerates push events that arrive late relative to a
// poll snapshot already containing newer context.
func (s *MessageStore) insert(conversationID string, msg *Message) {
	list := s.ordered[conversationID]
	pos := len(list)
	if msg.Timestamp > 0 {
		for pos > 0 && list[pos-1].Timestamp > msg.Timestamp {
			pos--
		}
	}
	list = append(list, nil)
	copy(list[pos+1:], list[pos:])
	list[pos] = msg
	s.ordered[conversationID] = list
	s.byID[conversationID][msg.ID] = msg
}

// merge applies a patch to an existing message. Status moves only forward
// (or into failed); other fields update when the patch carries them.
func merge(existing *Message, patch *Message) bool {
	changed := false
	if patch.Status != "" && existing.Status.CanTransition(patch.Status) {
		existing.Status = patch.Status
		if patch.Status == StatusFailed {
			existing.ErrorMessage = patch.ErrorMessage
		}
		changed = true
	}
	if patch.Body != "" && patch.Body != existing.Body {
		existing.Body = patch.Body
		changed = true
	}
	if patch.MessageType != "" && patch.MessageType != existing.MessageType {
		existing.MessageType = patch.MessageType
		changed = true
	}
	if patch.Timestamp > 0 && existing.Timestamp == 0 {
		existing.Timestamp = patch.Timestamp
		changed = true
	}
	return changed
}

// PatchStatus applies a status update to a message by id. Returns false
// when the message is not loaded or the transition is not accepted.
func (s *MessageStore) PatchStatus(conversationID, messageID string, status Status, errorMessage string) bool {
	idx := s.byID[conversationID]
	if idx == nil {
		return false
	}
	msg, ok := idx[messageID]
	if !ok {
		return false
	}
	return merge(msg, &Message{ID: messageID, Status: status, ErrorMessage: errorMessage})
}

// ReplaceSnapshot applies a full poll snapshot for a conversation as a
// vector of upserts. The merge always runs: in poll-only mode the
// snapshot is the sole carrier of status advances, so even a
// same-shaped list must pass through the per-message rules. The return
// value reports whether anything actually changed, letting callers skip
// the re-render for a no-op snapshot.
func (s *MessageStore) ReplaceSnapshot(conversationID string, msgs []Message) bool {
	changed := false
	for _, m := range msgs {
		if s.Upsert(conversationID, m) {
			changed = true
		}
	}
	return changed
}

// Confirm replaces an optimistic entry with its server-confirmed message
// in a single mutation, so the list never shows both. The confirmed entry
// is inserted even when the optimistic one is already gone.
func (s *MessageStore) Confirm(conversationID, optimisticID string, confirmed Message) bool {
	s.remove(conversationID, optimisticID)
	s.Upsert(conversationID, confirmed)
	return true
}

func (s *MessageStore) remove(conversationID, messageID string) {
	idx := s.byID[conversationID]
	if idx == nil {
		return
	}
	if _, ok := idx[messageID]; !ok {
		return
	}
	delete(idx, messageID)
	list := s.ordered[conversationID]
	for i, m := range list {
		if m.ID == messageID {
			s.ordered[conversationID] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Get returns a copy of a loaded message.
func (s *MessageStore) Get(conversationID, messageID string) (Message, bool) {
	idx := s.byID[conversationID]
	if idx == nil {
		return Message{}, false
	}
	msg, ok := idx[messageID]
	if !ok {
		return Message{}, false
	}
	return *msg, true
}

// List returns the conversation's messages oldest-first. The returned
// slice is a copy and safe to hand to a renderer.
func (s *MessageStore) List(conversationID string) []Message {
	list := s.ordered[conversationID]
	out := make([]Message, len(list))
	for i, m := range list {
		out[i] = *m
	}
	return out
}
