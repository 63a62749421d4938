package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientReply(t *testing.T) {
	var got replyRequest
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/reply", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		auth = r.Header.Get("Authorization")

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, AccessToken: "token-123"})
	err := client.Reply(context.Background(), "rt-1", "您好", "請選擇功能")
	require.NoError(t, err)

	assert.Equal(t, "Bearer token-123", auth)
	assert.Equal(t, "rt-1", got.ReplyToken)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, textMessage{Type: "text", Text: "您好"}, got.Messages[0])
}

func TestClientPush(t *testing.T) {
	var got pushRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/bot/message/push", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, AccessToken: "token-123"})
	err := client.Push(context.Background(), "U123", "預約成功！")
	require.NoError(t, err)

	assert.Equal(t, "U123", got.To)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "預約成功！", got.Messages[0].Text)
}

func TestClientRejectedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Invalid reply token"}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL})
	err := client.Reply(context.Background(), "stale-token", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestValidateSignature(t *testing.T) {
	secret := "channel-secret"
	body := []byte(`{"events":[]}`)

	// value computed by the sender side of the same scheme
	sig := signBody(secret, body)

	assert.True(t, ValidateSignature(secret, body, sig))
	assert.False(t, ValidateSignature(secret, []byte(`{"events":[{}]}`), sig), "tampered body")
	assert.False(t, ValidateSignature("other-secret", body, sig), "wrong secret")
	assert.False(t, ValidateSignature(secret, body, ""), "missing header")
}
