package store

import "testing"

func TestUpsertInsertAndDedup(t *testing.T) {
	s := NewMessageStore()

	if !s.Upsert("c1", Message{ID: "m1", Body: "hello", Timestamp: 1000, Status: StatusSent}) {
		t.Fatal("first upsert should report a change")
	}
	// Same message again: nothing visible changes.
	if s.Upsert("c1", Message{ID: "m1", Body: "hello", Timestamp: 1000, Status: StatusSent}) {
		t.Error("identical upsert should not report a change")
	}

	msgs := s.List("c1")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
}

func TestUpsertStatusMonotonic(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want Status
	}{
		{"forward sent->delivered", StatusSent, StatusDelivered, StatusDelivered},
		{"forward pending->read", StatusPending, StatusRead, StatusRead},
		{"regress delivered->sent dropped", StatusDelivered, StatusSent, StatusDelivered},
		{"regress read->pending dropped", StatusRead, StatusPending, StatusRead},
		{"into failed from sent", StatusSent, StatusFailed, StatusFailed},
		{"into failed from read", StatusRead, StatusFailed, StatusFailed},
		{"out of failed dropped", StatusFailed, StatusDelivered, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMessageStore()
			s.Upsert("c1", Message{ID: "m1", Status: tt.from, Timestamp: 1})
			s.Upsert("c1", Message{ID: "m1", Status: tt.to, Timestamp: 1})
			got, _ := s.Get("c1", "m1")
			if got.Status != tt.want {
				t.Errorf("status = %s, want %s", got.Status, tt.want)
			}
		})
	}
}

func TestPatchStatusIdempotent(t *testing.T) {
	s := NewMessageStore()
	s.Upsert("c1", Message{ID: "m1", Status: StatusSent, Timestamp: 1})

	if !s.PatchStatus("c1", "m1", StatusDelivered, "") {
		t.Fatal("first patch should apply")
	}
	if s.PatchStatus("c1", "m1", StatusDelivered, "") {
		t.Error("repeated patch should be a no-op")
	}
	got, _ := s.Get("c1", "m1")
	if got.Status != StatusDelivered {
		t.Errorf("status = %s, want delivered", got.Status)
	}
}

func TestPatchStatusUnknownMessage(t *testing.T) {
	s := NewMessageStore()
	if s.PatchStatus("c1", "missing", StatusRead, "") {
		t.Error("patch for unloaded message should report no change")
	}
	if s.PatchStatus("nope", "missing", StatusRead, "") {
		t.Error("patch for unknown conversation should report no change")
	}
}

func TestPatchStatusFailedCarriesError(t *testing.T) {
	s := NewMessageStore()
	s.Upsert("c1", Message{ID: "m1", Status: StatusSent, Timestamp: 1})
	s.PatchStatus("c1", "m1", StatusFailed, "rate limited")

	got, _ := s.Get("c1", "m1")
	if got.Status != StatusFailed || got.ErrorMessage != "rate limited" {
		t.Errorf("got status=%s err=%q, want failed with reason", got.Status, got.ErrorMessage)
	}
}

func TestInsertLateArrivalTemporalPosition(t *testing.T) {
	s := NewMessageStore()
	// Poll snapshot already delivered newer context.
	s.Upsert("c1", Message{ID: "m1", Timestamp: 1000})
	s.Upsert("c1", Message{ID: "m3", Timestamp: 3000})
	// Push event arrives late with an older timestamp.
	s.Upsert("c1", Message{ID: "m2", Timestamp: 2000})

	msgs := s.List("c1")
	ids := []string{msgs[0].ID, msgs[1].ID, msgs[2].ID}
	if ids[0] != "m1" || ids[1] != "m2" || ids[2] != "m3" {
		t.Errorf("order = %v, want [m1 m2 m3]", ids)
	}
}

func TestInsertEqualTimestampsKeepArrivalOrder(t *testing.T) {
	s := NewMessageStore()
	s.Upsert("c1", Message{ID: "a", Timestamp: 1000})
	s.Upsert("c1", Message{ID: "b", Timestamp: 1000})

	msgs := s.List("c1")
	if msgs[0].ID != "a" || msgs[1].ID != "b" {
		t.Errorf("order = [%s %s], want arrival order [a b]", msgs[0].ID, msgs[1].ID)
	}
}

func TestReplaceSnapshotNoOpReportsUnchanged(t *testing.T) {
	s := NewMessageStore()
	s.Upsert("c1", Message{ID: "m1", Timestamp: 1000})
	s.Upsert("c1", Message{ID: "m2", Timestamp: 2000})

	snap := []Message{
		{ID: "m1", Timestamp: 1000},
		{ID: "m2", Timestamp: 2000},
	}
	if s.ReplaceSnapshot("c1", snap) {
		t.Error("snapshot identical to current state should report no change")
	}
}

func TestReplaceSnapshotSameShapeStatusAdvance(t *testing.T) {
	s := NewMessageStore()
	s.Upsert("c1", Message{ID: "m1", Timestamp: 1000, Status: StatusSent})

	// Same size and last id as the current list, but the snapshot
	// carries a forward status. In poll-only mode this is the only way
	// the advance ever arrives.
	snap := []Message{
		{ID: "m1", Timestamp: 1000, Status: StatusDelivered},
	}
	if !s.ReplaceSnapshot("c1", snap) {
		t.Fatal("snapshot carrying a status advance should report a change")
	}
	got, _ := s.Get("c1", "m1")
	if got.Status != StatusDelivered {
		t.Errorf("m1 status = %s, want delivered", got.Status)
	}
}

func TestReplaceSnapshotUnion(t *testing.T) {
	s := NewMessageStore()
	s.Upsert("c1", Message{ID: "m1", Timestamp: 1000, Status: StatusDelivered})

	snap := []Message{
		{ID: "m1", Timestamp: 1000, Status: StatusSent}, // stale status
		{ID: "m2", Timestamp: 2000, Status: StatusSent},
	}
	if !s.ReplaceSnapshot("c1", snap) {
		t.Fatal("snapshot with a new message should report a change")
	}

	msgs := s.List("c1")
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	// The stale snapshot must not regress the delivered status.
	got, _ := s.Get("c1", "m1")
	if got.Status != StatusDelivered {
		t.Errorf("m1 status = %s, want delivered (stale snapshot must not regress)", got.Status)
	}
}

func TestConfirmReplacesOptimisticEntry(t *testing.T) {
	s := NewMessageStore()
	s.Upsert("c1", Message{ID: "tmp-1", Body: "hi", Timestamp: 1000, Status: StatusPending})

	s.Confirm("c1", "tmp-1", Message{ID: "42", Body: "hi", Timestamp: 1000, Status: StatusSent})

	msgs := s.List("c1")
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want exactly 1 after confirmation", len(msgs))
	}
	if msgs[0].ID != "42" {
		t.Errorf("id = %s, want 42", msgs[0].ID)
	}
	if _, ok := s.Get("c1", "tmp-1"); ok {
		t.Error("optimistic entry still present after confirmation")
	}
}

func TestConfirmWithoutOptimisticEntry(t *testing.T) {
	s := NewMessageStore()
	s.Confirm("c1", "tmp-gone", Message{ID: "42", Body: "hi", Timestamp: 1000, Status: StatusSent})

	if _, ok := s.Get("c1", "42"); !ok {
		t.Error("confirmed message missing")
	}
}

func TestNoDuplicationAcrossChannels(t *testing.T) {
	s := NewMessageStore()
	// Push first, then the same message inside a poll snapshot, then push again.
	s.Upsert("c1", Message{ID: "m1", Body: "x", Timestamp: 1000, Status: StatusSent})
	s.ReplaceSnapshot("c1", []Message{
		{ID: "m1", Body: "x", Timestamp: 1000, Status: StatusSent},
		{ID: "m2", Body: "y", Timestamp: 2000, Status: StatusSent},
	})
	s.Upsert("c1", Message{ID: "m2", Body: "y", Timestamp: 2000, Status: StatusSent})

	seen := map[string]int{}
	for _, m := range s.List("c1") {
		seen[m.ID]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("message %s appears %d times, want 1", id, n)
		}
	}
}

func TestUpsertAutoCreatesConversation(t *testing.T) {
	s := NewMessageStore()
	if !s.Upsert("new-conv", Message{ID: "m1"}) {
		t.Fatal("upsert into unknown conversation should insert")
	}
	if len(s.List("new-conv")) != 1 {
		t.Error("conversation list not auto-created")
	}
}
