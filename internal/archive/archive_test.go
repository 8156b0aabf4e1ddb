package archive

import (
	"path/filepath"
	"testing"

	"github.com/lgabs/wachat/internal/store"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUpsertMessageIdempotent(t *testing.T) {
	db := testDB(t)

	msg := &store.Message{
		ConversationID: "c1", ID: "m1", Direction: store.Incoming,
		MessageType: "text", Body: "hello", Status: store.StatusDelivered, Timestamp: 1000,
	}
	if err := db.UpsertMessage(msg); err != nil {
		t.Fatal(err)
	}
	msg.Status = store.StatusRead
	if err := db.UpsertMessage(msg); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("c1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Status != store.StatusRead {
		t.Errorf("status = %s, want read (updated)", msgs[0].Status)
	}
}

func TestUpsertConversationKeepsNewerRecency(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertConversation(&store.Conversation{
		ID: "c1", AccountID: "acc1", LastMessageAt: 2000, LastMessagePreview: "newer",
	}); err != nil {
		t.Fatal(err)
	}
	// Stale write with older activity.
	if err := db.UpsertConversation(&store.Conversation{
		ID: "c1", AccountID: "acc1", LastMessageAt: 1000, LastMessagePreview: "older",
	}); err != nil {
		t.Fatal(err)
	}

	convs, err := db.ListConversations("acc1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 {
		t.Fatalf("got %d conversations, want 1", len(convs))
	}
	if convs[0].LastMessageAt != 2000 || convs[0].LastMessagePreview != "newer" {
		t.Errorf("stale write applied: %+v", convs[0])
	}
}

func TestListConversationsScopedToAccount(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertConversation(&store.Conversation{ID: "c1", AccountID: "acc1", LastMessageAt: 1000})
	_ = db.UpsertConversation(&store.Conversation{ID: "c2", AccountID: "acc2", LastMessageAt: 2000})

	convs, err := db.ListConversations("acc1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || convs[0].ID != "c1" {
		t.Errorf("got %+v, want only acc1 conversations", convs)
	}
}
