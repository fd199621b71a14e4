// Package loqui is the Go client SDK for the Loqui chat platform.
//
// It implements the message synchronization and optimistic-send pipeline on
// top of the hosted backend: a per-conversation Synchronizer merges the local
// cache, a server fetch, and a realtime change feed into one ordered message
// list, and tracks optimistic placeholder state while sends are in flight.
//
// Example:
//
//	client := loqui.NewClient("tok-...")
//	cache := loqui.NewConversationCache(loqui.NewMemoryStorage())
//	sync := loqui.NewSynchronizer(client, cache, client.OpenStream)
//	sync.OnUpdate(func(msgs []loqui.Message) { render(msgs) })
//	sync.Activate(ctx, peerID, me)
//	defer sync.Deactivate()
//
//	msg, err := sync.Send(ctx, "hello")
package loqui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.loqui.chat"
	DefaultTimeout = 30 * time.Second
)

// Client talks to the hosted chat backend. It is safe for concurrent use and
// is intended to be created once at startup and injected into the components
// that need it.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// NewClient creates a new Loqui client authenticated with the given token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken sets or updates the auth token.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, query map[string]string) (*apiResult, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		params := url.Values{}
		for k, v := range query {
			params.Set(k, v)
		}
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result apiResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

func apiErr(result *apiResult, fallback string) error {
	if result.Error != nil {
		return result.Error
	}
	return fmt.Errorf("%s", fallback)
}

// FetchMessages returns every message exchanged between userA and userB,
// ordered ascending by creation time. The backend applies the pair filter:
// (sender=a AND receiver=b) OR (sender=b AND receiver=a).
func (c *Client) FetchMessages(ctx context.Context, userA, userB string) ([]Message, error) {
	result, err := c.doRequest(ctx, http.MethodGet, "/api/chat/messages", nil, map[string]string{
		"user_a": userA,
		"user_b": userB,
	})
	if err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, apiErr(result, "fetch messages failed")
	}

	var msgs []Message
	if err := result.decode(&msgs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return msgs, nil
}

// InsertMessage writes a new message and returns the server-assigned record.
func (c *Client) InsertMessage(ctx context.Context, msg NewMessage) (*Message, error) {
	result, err := c.doRequest(ctx, http.MethodPost, "/api/chat/messages", msg, nil)
	if err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, apiErr(result, "insert message failed")
	}

	var inserted Message
	if err := result.decode(&inserted); err != nil {
		return nil, fmt.Errorf("failed to decode inserted message: %w", err)
	}
	return &inserted, nil
}

// UpdateReadReceipts tags all given message ids with readAt in one batch.
func (c *Client) UpdateReadReceipts(ctx context.Context, ids []string, readAt time.Time) error {
	payload := map[string]interface{}{
		"ids":     ids,
		"read_at": readAt.UTC().Format(time.RFC3339Nano),
	}
	result, err := c.doRequest(ctx, http.MethodPost, "/api/chat/receipts", payload, nil)
	if err != nil {
		return err
	}
	if !result.OK {
		return apiErr(result, "update read receipts failed")
	}
	return nil
}

// GetCurrentSession returns the authenticated identity, or an error when the
// token is missing or expired.
func (c *Client) GetCurrentSession(ctx context.Context) (*Session, error) {
	result, err := c.doRequest(ctx, http.MethodGet, "/api/session", nil, nil)
	if err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, apiErr(result, "no active session")
	}

	var session Session
	if err := result.decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &session, nil
}

// FetchContacts lists the peers the current user can converse with, including
// their last known presence status.
func (c *Client) FetchContacts(ctx context.Context) ([]Contact, error) {
	result, err := c.doRequest(ctx, http.MethodGet, "/api/contacts", nil, nil)
	if err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, apiErr(result, "fetch contacts failed")
	}

	var contacts []Contact
	if err := result.decode(&contacts); err != nil {
		return nil, fmt.Errorf("failed to decode contacts: %w", err)
	}
	return contacts, nil
}

// wsURL returns the realtime endpoint scoped to a conversation peer.
func (c *Client) wsURL(peerID string) string {
	base := strings.Replace(c.baseURL, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/ws?token=" + url.QueryEscape(c.token) + "&peer=" + url.QueryEscape(peerID)
}

// OpenStream creates a realtime subscription scoped to the conversation with
// peerID. The returned stream is not started; it satisfies the Synchronizer's
// StreamOpener signature.
func (c *Client) OpenStream(peerID string) EventStream {
	return newSubscription(c.wsURL(peerID), &SubscriptionConfig{AutoReconnect: true})
}
