package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lgabs/wachat/internal/store"
)

// HTTPClient talks to the chat backend REST API.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewHTTPClient creates a client for the given base URL. token is sent
// as a bearer token on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type accountJSON struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type conversationJSON struct {
	ID                 string `json:"id"`
	AccountID          string `json:"account_id"`
	Name               string `json:"display_name"`
	PhoneNumber        string `json:"phone_number"`
	LastMessageAt      int64  `json:"last_message_at"`
	LastMessagePreview string `json:"last_message_preview"`
	UnreadCount        int    `json:"unread_count"`
}

type messageJSON struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Direction      string `json:"direction"`
	MessageType    string `json:"message_type"`
	Content        string `json:"content"`
	Timestamp      int64  `json:"timestamp"`
	Status         string `json:"status"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

func (c *HTTPClient) FetchAccounts(ctx context.Context) ([]store.Account, error) {
	var raw []accountJSON
	if err := c.get(ctx, "/api/accounts", &raw); err != nil {
		return nil, fmt.Errorf("fetch accounts: %w", err)
	}
	accounts := make([]store.Account, 0, len(raw))
	for _, a := range raw {
		accounts = append(accounts, store.Account{ID: a.ID, Name: a.Name, Active: a.Active})
	}
	return accounts, nil
}

func (c *HTTPClient) FetchConversations(ctx context.Context, accountID string) ([]store.Conversation, error) {
	var raw []conversationJSON
	path := "/api/conversations"
	if accountID != "" {
		path = "/api/accounts/" + accountID + "/conversations"
	}
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, fmt.Errorf("fetch conversations: %w", err)
	}
	convs := make([]store.Conversation, 0, len(raw))
	for _, v := range raw {
		convs = append(convs, decodeConversation(v))
	}
	return convs, nil
}

func (c *HTTPClient) FetchMessages(ctx context.Context, conversationID string) ([]store.Message, error) {
	var raw []messageJSON
	if err := c.get(ctx, "/api/conversations/"+conversationID+"/messages", &raw); err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	msgs := make([]store.Message, 0, len(raw))
	for _, m := range raw {
		msgs = append(msgs, decodeMessage(m))
	}
	return msgs, nil
}

func (c *HTTPClient) SendMessage(ctx context.Context, conversationID, body string) (store.Message, error) {
	payload, err := json.Marshal(map[string]string{"content": body})
	if err != nil {
		return store.Message{}, &SendError{Reason: err.Error()}
	}
	var raw messageJSON
	if err := c.post(ctx, "/api/conversations/"+conversationID+"/messages", payload, &raw); err != nil {
		return store.Message{}, &SendError{Reason: err.Error()}
	}
	return decodeMessage(raw), nil
}

func (c *HTTPClient) MarkAsRead(ctx context.Context, conversationID string) error {
	if err := c.post(ctx, "/api/conversations/"+conversationID+"/read", nil, nil); err != nil {
		return fmt.Errorf("mark as read: %w", err)
	}
	return nil
}

func (c *HTTPClient) GetOrCreateConversation(ctx context.Context, accountID, phoneNumber string) (string, error) {
	payload, err := json.Marshal(map[string]string{"phone_number": phoneNumber})
	if err != nil {
		return "", err
	}
	var resp struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := c.post(ctx, "/api/accounts/"+accountID+"/conversations", payload, &resp); err != nil {
		return "", fmt.Errorf("get or create conversation: %w", err)
	}
	if resp.ConversationID == "" {
		return "", fmt.Errorf("get or create conversation: empty id in response")
	}
	return resp.ConversationID, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *HTTPClient) post(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d body=%q", resp.StatusCode, truncateBody(data))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeConversation(v conversationJSON) store.Conversation {
	return store.Conversation{
		ID:                 v.ID,
		AccountID:          v.AccountID,
		Name:               v.Name,
		PhoneNumber:        v.PhoneNumber,
		LastMessageAt:      v.LastMessageAt,
		LastMessagePreview: v.LastMessagePreview,
		UnreadCount:        v.UnreadCount,
	}
}

func decodeMessage(m messageJSON) store.Message {
	status, ok := store.ParseStatus(m.Status)
	if !ok {
		status = store.StatusPending
	}
	return store.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Direction:      store.Direction(m.Direction),
		MessageType:    m.MessageType,
		Body:           m.Content,
		Timestamp:      m.Timestamp,
		Status:         status,
		ErrorMessage:   m.ErrorMessage,
	}
}

func truncateBody(data []byte) string {
	const max = 256
	if len(data) > max {
		data = data[:max]
	}
	return string(data)
}
