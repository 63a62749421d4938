package chat

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/clinicware/outpatient-queue/internal/redis"
)

const testChannelSecret = "test-channel-secret"

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newTestWebhook(t *testing.T) (*WebhookHandler, *mockMessenger) {
	t.Helper()

	machine, messenger, _, _, _ := newTestMachine(t)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	deduper := redisclient.NewRedisDeduper(rdb, time.Hour)

	return NewWebhookHandler(machine, deduper, testChannelSecret, nil, nil), messenger
}

func postWebhook(t *testing.T, h *WebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/webhook", bytes.NewReader(body))
	req.Header.Set(signatureHeader, signature)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h, messenger := newTestWebhook(t)

	body := []byte(`{"destination":"x","events":[]}`)
	rec := postWebhook(t, h, body, "bogus")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, messenger.replies)
	assert.Empty(t, messenger.pushes)
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	h, _ := newTestWebhook(t)

	body := []byte(`{not json`)
	rec := postWebhook(t, h, body, signBody(testChannelSecret, body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookDispatchesTextMessage(t *testing.T) {
	h, messenger := newTestWebhook(t)

	body := []byte(`{
		"destination": "x",
		"events": [{
			"type": "message",
			"webhookEventId": "evt-1",
			"replyToken": "rt-1",
			"source": {"type": "user", "userId": "U1"},
			"message": {"type": "text", "id": "m1", "text": "hello"}
		}]
	}`)
	rec := postWebhook(t, h, body, signBody(testChannelSecret, body))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, messenger.replies, 1)
	assert.Equal(t, msgMenu, messenger.replies[0])
}

func TestWebhookDispatchesFollow(t *testing.T) {
	h, messenger := newTestWebhook(t)

	body := []byte(`{
		"destination": "x",
		"events": [{
			"type": "follow",
			"webhookEventId": "evt-follow",
			"replyToken": "rt-2",
			"source": {"type": "user", "userId": "U1"}
		}]
	}`)
	rec := postWebhook(t, h, body, signBody(testChannelSecret, body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{msgWelcome}, messenger.replies)
}

func TestWebhookDeduplicatesRedelivery(t *testing.T) {
	h, messenger := newTestWebhook(t)

	body := []byte(`{
		"destination": "x",
		"events": [{
			"type": "message",
			"webhookEventId": "evt-once",
			"replyToken": "rt-1",
			"source": {"type": "user", "userId": "U1"},
			"message": {"type": "text", "id": "m1", "text": "hello"}
		}]
	}`)
	sig := signBody(testChannelSecret, body)

	rec := postWebhook(t, h, body, sig)
	assert.Equal(t, http.StatusOK, rec.Code)

	// channel redelivers the same event
	rec = postWebhook(t, h, body, sig)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Len(t, messenger.replies, 1, "redelivered event must be handled once")
}

func TestWebhookIgnoresNonUserSources(t *testing.T) {
	h, messenger := newTestWebhook(t)

	body := []byte(`{
		"destination": "x",
		"events": [{
			"type": "message",
			"webhookEventId": "evt-group",
			"replyToken": "rt-1",
			"source": {"type": "group", "userId": ""},
			"message": {"type": "text", "id": "m1", "text": "hello"}
		}]
	}`)
	rec := postWebhook(t, h, body, signBody(testChannelSecret, body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, messenger.replies)
	assert.Empty(t, messenger.pushes)
}

func TestWebhookProcessesAllEventsInEnvelope(t *testing.T) {
	h, messenger := newTestWebhook(t)

	body := []byte(`{
		"destination": "x",
		"events": [
			{
				"type": "message",
				"webhookEventId": "evt-a",
				"replyToken": "rt-a",
				"source": {"type": "user", "userId": "U1"},
				"message": {"type": "text", "id": "m1", "text": "hi"}
			},
			{
				"type": "follow",
				"webhookEventId": "evt-b",
				"replyToken": "rt-b",
				"source": {"type": "user", "userId": "U2"}
			}
		]
	}`)
	rec := postWebhook(t, h, body, signBody(testChannelSecret, body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, messenger.replies, 2)
}
