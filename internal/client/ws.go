package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
)

// SubscribePush opens a websocket to the backend's per-account push feed
// and invokes onEvent with each raw payload. The read loop runs until the
// subscription is cancelled or the connection drops; reconnecting is the
// caller's concern (polling is the designed fallback).
func (c *HTTPClient) SubscribePush(ctx context.Context, accountID string, onEvent func(raw []byte)) (Subscription, error) {
	wsURL := toWebsocketURL(c.baseURL) + "/api/push?account_id=" + accountID

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe push: %w", err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &wsSubscription{cancel: cancel}

	go func() {
		defer conn.Close(websocket.StatusNormalClosure, "")
		for {
			_, data, err := conn.Read(subCtx)
			if err != nil {
				return
			}
			onEvent(data)
		}
	}()

	return sub, nil
}

type wsSubscription struct {
	cancel context.CancelFunc
}

func (s *wsSubscription) Cancel() {
	s.cancel()
}

func toWebsocketURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}
