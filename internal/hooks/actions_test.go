package hooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func localURL(server *httptest.Server) string {
	return strings.Replace(server.URL, "127.0.0.1", "localhost", 1)
}

func fastWebhookHandler() *WebhookHandler {
	h := NewWebhookHandler()
	h.backoff = []time.Duration{time.Millisecond, time.Millisecond}
	return h
}

func TestHandleLogWarning(t *testing.T) {
	hook := &Hook{ID: "h", Name: "Warn", Params: map[string]any{"message": "slow routing"}}
	assert.NoError(t, handleLogWarning(hook, NewTraceEvent(EventTraceFailed, testTrace("s", false))))

	hook.Params = map[string]any{}
	assert.NoError(t, handleLogWarning(hook, &EventContext{Event: EventFeedStatusChanged}))
}

func TestWebhookHandler_DeliversSignedPayload(t *testing.T) {
	var body []byte
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		signature = r.Header.Get("X-Hook-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	hook := &Hook{ID: "wh", Params: map[string]any{"url": localURL(server), "secret": "s3cret"}}
	require.NoError(t, fastWebhookHandler().Handle(hook, NewTraceEvent(EventTraceFailed, testTrace("s1", false))))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "trace_failed", payload["event"])
	assert.Equal(t, "s1", payload["session_id"])
	assert.Equal(t, "GeneralAgent", payload["final_agent"])
	assert.Equal(t, "timeout", payload["error"])

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(body)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), signature)
}

func TestWebhookHandler_RejectsBadURLs(t *testing.T) {
	h := fastWebhookHandler()
	ctx := &EventContext{Event: EventTraceCommitted}

	assert.Error(t, h.Handle(&Hook{Params: map[string]any{}}, ctx))
	assert.Error(t, h.Handle(&Hook{Params: map[string]any{"url": "http://example.com/hook"}}, ctx))
}

func TestWebhookHandler_RetriesThenFails(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	hook := &Hook{Params: map[string]any{"url": localURL(server)}}
	err := fastWebhookHandler().Handle(hook, &EventContext{Event: EventTraceCommitted})
	assert.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestWebhookHandler_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	h := fastWebhookHandler()
	hook := &Hook{Params: map[string]any{"url": localURL(server)}}
	for i := 0; i < webhookRateLimit; i++ {
		require.NoError(t, h.Handle(hook, &EventContext{Event: EventTraceCommitted}))
	}
	err := h.Handle(hook, &EventContext{Event: EventTraceCommitted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}
