package archive

import (
	"time"

	"github.com/lgabs/wachat/internal/store"
)

// UpsertConversation inserts or updates a conversation summary. Recency
// fields only move forward, matching the in-memory index rules.
func (db *DB) UpsertConversation(c *store.Conversation) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (id, account_id, name, phone_number, last_message_at, last_message_preview, unread_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			name = excluded.name,
			phone_number = excluded.phone_number,
			last_message_at = MAX(conversations.last_message_at, excluded.last_message_at),
			last_message_preview = CASE WHEN excluded.last_message_at >= conversations.last_message_at THEN excluded.last_message_preview ELSE conversations.last_message_preview END,
			unread_count = excluded.unread_count,
			updated_at = excluded.updated_at`,
		c.ID, c.AccountID, c.Name, c.PhoneNumber, c.LastMessageAt, c.LastMessagePreview, c.UnreadCount, now)
	return err
}

// UpsertMessage inserts or updates a message (idempotent on
// conversation_id + msg_id).
func (db *DB) UpsertMessage(m *store.Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (conversation_id, msg_id, direction, message_type, body, status, error_message, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, msg_id) DO UPDATE SET
			body = excluded.body,
			status = excluded.status,
			error_message = excluded.error_message`,
		m.ConversationID, m.ID, string(m.Direction), m.MessageType, m.Body, string(m.Status), m.ErrorMessage, m.Timestamp, now)
	return err
}

// ListConversations returns archived summaries for an account sorted by
// recency.
func (db *DB) ListConversations(accountID string, limit int) ([]store.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, account_id, name, phone_number, last_message_at, last_message_preview, unread_count
		FROM conversations
		WHERE account_id = ?
		ORDER BY last_message_at DESC
		LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []store.Conversation
	for rows.Next() {
		var c store.Conversation
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Name, &c.PhoneNumber, &c.LastMessageAt, &c.LastMessagePreview, &c.UnreadCount); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// ListMessages returns archived messages for a conversation using keyset
// pagination by timestamp, newest page first.
func (db *DB) ListMessages(conversationID string, beforeTs int64, limit int) ([]store.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT conversation_id, msg_id, direction, message_type, body, status, error_message, timestamp
		FROM messages
		WHERE conversation_id = ? AND timestamp < ?
		ORDER BY timestamp DESC
		LIMIT ?`, conversationID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []store.Message
	for rows.Next() {
		var m store.Message
		var direction, status string
		if err := rows.Scan(&m.ConversationID, &m.ID, &direction, &m.MessageType, &m.Body, &status, &m.ErrorMessage, &m.Timestamp); err != nil {
			return nil, err
		}
		m.Direction = store.Direction(direction)
		m.Status = store.Status(status)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
