package sync

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lgabs/wachat/internal/bus"
	"github.com/lgabs/wachat/internal/channel"
	"github.com/lgabs/wachat/internal/store"
)

func testController(fc *fakeClient, pushEnabled bool) *Controller {
	b := bus.New()
	r := NewReconciler(fc, b, nil, zap.NewNop())
	push := channel.NewPushAdapter(fc, b, zap.NewNop())
	poll := channel.NewPollAdapter(fc, b, time.Hour, r.SendInFlight, zap.NewNop())
	return NewController(r, push, poll, fc, pushEnabled, zap.NewNop())
}

func TestControllerStartSelectsActiveAccount(t *testing.T) {
	fc := newFakeClient()
	fc.accounts = []store.Account{
		{ID: "dormant", Active: false},
		{ID: "acc1", Name: "Main", Active: true},
	}
	c := testController(fc, true)
	defer c.Dispose()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sel := c.recon.Selection(); sel.AccountID != "acc1" {
		t.Errorf("selected account = %q, want acc1 (first active)", sel.AccountID)
	}
	fc.mu.Lock()
	subs := len(fc.subs)
	fc.mu.Unlock()
	if subs != 1 {
		t.Errorf("push subscriptions = %d, want 1", subs)
	}
}

func TestControllerPushDisabledSkipsSubscription(t *testing.T) {
	fc := newFakeClient()
	fc.accounts = []store.Account{{ID: "acc1", Active: true}}
	c := testController(fc, false)
	defer c.Dispose()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	fc.mu.Lock()
	subs := len(fc.subs)
	fc.mu.Unlock()
	if subs != 0 {
		t.Errorf("push subscriptions = %d, want 0 when disabled", subs)
	}
}

func TestControllerAccountSwitchCancelsOldSubscription(t *testing.T) {
	fc := newFakeClient()
	fc.accounts = []store.Account{{ID: "acc1", Active: true}}
	c := testController(fc, true)
	defer c.Dispose()

	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	c.SelectAccount("acc2")

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if len(fc.subs) != 2 {
		t.Fatalf("subscriptions = %d, want 2", len(fc.subs))
	}
	if !fc.subs[0].cancelled {
		t.Error("old account's subscription still active after switch")
	}
	if fc.subs[1].cancelled {
		t.Error("new account's subscription should be active")
	}
}

func TestControllerSendRequiresSelection(t *testing.T) {
	fc := newFakeClient()
	fc.accounts = []store.Account{{ID: "acc1", Active: true}}
	c := testController(fc, false)
	defer c.Dispose()
	_ = c.Start(context.Background())

	if _, err := c.Send("hello"); err == nil {
		t.Error("send without a focused conversation should fail")
	}
}

func TestControllerSelectConversationThenSend(t *testing.T) {
	fc := newFakeClient()
	fc.accounts = []store.Account{{ID: "acc1", Active: true}}
	fc.sendResp = store.Message{ID: "42", Status: store.StatusSent, Timestamp: 1000}
	c := testController(fc, false)
	defer c.Dispose()
	_ = c.Start(context.Background())

	if err := c.SelectConversation("c1"); err != nil {
		t.Fatal(err)
	}
	msg, err := c.Send("hello")
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "42" {
		t.Errorf("sent id = %s, want 42", msg.ID)
	}
}

func TestControllerDisposeCancelsSubscription(t *testing.T) {
	fc := newFakeClient()
	fc.accounts = []store.Account{{ID: "acc1", Active: true}}
	c := testController(fc, true)
	_ = c.Start(context.Background())

	c.Dispose()

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if len(fc.subs) != 1 || !fc.subs[0].cancelled {
		t.Error("dispose must cancel the push subscription")
	}
}
