package loqui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okEnvelope(t *testing.T, w http.ResponseWriter, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	json.NewEncoder(w).Encode(apiResult{OK: true, Data: raw})
}

func TestFetchMessages(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/api/chat/messages", r.URL.Path)
		assert.Equal("alice", r.URL.Query().Get("user_a"))
		assert.Equal("bob", r.URL.Query().Get("user_b"))
		assert.Equal("Bearer tok-123", r.Header.Get("Authorization"))

		okEnvelope(t, w, []Message{
			{ID: "m1", Content: "hi", SenderID: "alice", ReceiverID: "bob",
				CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		})
	}))
	defer srv.Close()

	client := NewClient("tok-123", WithBaseURL(srv.URL))
	msgs, err := client.FetchMessages(context.Background(), "alice", "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal("m1", msgs[0].ID)
	assert.Equal("hi", msgs[0].Content)
}

func TestFetchMessagesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResult{
			OK:    false,
			Error: &APIError{Code: "unauthorized", Message: "token expired"},
		})
	}))
	defer srv.Close()

	client := NewClient("stale", WithBaseURL(srv.URL))
	_, err := client.FetchMessages(context.Background(), "alice", "bob")
	require.Error(t, err)

	apiError, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, "unauthorized", apiError.Code)
}

func TestInsertMessage(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodPost, r.Method)
		assert.Equal("/api/chat/messages", r.URL.Path)
		assert.Equal("application/json", r.Header.Get("Content-Type"))

		var payload NewMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal("hello", payload.Content)

		okEnvelope(t, w, Message{
			ID: "srv-1", Content: payload.Content,
			SenderID: payload.SenderID, ReceiverID: payload.ReceiverID,
			CreatedAt: time.Now().UTC(),
		})
	}))
	defer srv.Close()

	client := NewClient("tok", WithBaseURL(srv.URL))
	msg, err := client.InsertMessage(context.Background(), NewMessage{
		Content: "hello", SenderID: "alice", ReceiverID: "bob",
	})
	require.NoError(t, err)
	assert.Equal("srv-1", msg.ID)
}

func TestUpdateReadReceipts(t *testing.T) {
	assert := assert.New(t)

	readAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/api/chat/receipts", r.URL.Path)

		var payload struct {
			IDs    []string `json:"ids"`
			ReadAt string   `json:"read_at"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal([]string{"m1", "m2"}, payload.IDs)
		assert.Equal(readAt.Format(time.RFC3339Nano), payload.ReadAt)

		json.NewEncoder(w).Encode(apiResult{OK: true})
	}))
	defer srv.Close()

	client := NewClient("tok", WithBaseURL(srv.URL))
	err := client.UpdateReadReceipts(context.Background(), []string{"m1", "m2"}, readAt)
	assert.NoError(err)
}

func TestGetCurrentSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/session", r.URL.Path)
		okEnvelope(t, w, Session{UserID: "usr-42"})
	}))
	defer srv.Close()

	client := NewClient("tok", WithBaseURL(srv.URL))
	session, err := client.GetCurrentSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "usr-42", session.UserID)
}

func TestFetchContacts(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		okEnvelope(t, w, []Contact{
			{ID: "bob", DisplayName: "Bob", Status: "online"},
			{ID: "carol", DisplayName: "Carol"},
		})
	}))
	defer srv.Close()

	client := NewClient("tok", WithBaseURL(srv.URL))
	contacts, err := client.FetchContacts(context.Background())
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal("Bob", contacts[0].DisplayName)
	assert.Equal("online", contacts[0].Status)
}

func TestWSURL(t *testing.T) {
	assert := assert.New(t)

	client := NewClient("tok&1", WithBaseURL("https://api.example.com"))
	assert.Equal("wss://api.example.com/ws?token=tok%261&peer=bob", client.wsURL("bob"))

	client = NewClient("tok", WithBaseURL("http://localhost:8080"))
	assert.Equal("ws://localhost:8080/ws?token=tok&peer=bob", client.wsURL("bob"))
}
