// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hooks

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

const webhookRateLimit = 10 // per URL per minute

// RegisterBuiltInActions registers the default action handlers.
func RegisterBuiltInActions(m *HookManager) {
	m.RegisterAction(ActionLogWarning, handleLogWarning)
	wh := NewWebhookHandler()
	m.RegisterAction(ActionNotifyWebhook, wh.Handle)
}

func handleLogWarning(hook *Hook, ctx *EventContext) error {
	msg, _ := hook.Params["message"].(string)
	if msg == "" {
		msg = "Hook triggered"
	}
	entry := log.WithField("session", ctx.SessionID)
	if ctx.Trace != nil {
		entry = entry.WithField("trace", ctx.Trace.ID).WithField("agent", ctx.Trace.FinalAgent)
	}
	entry.Warnf("[Hook: %s] %s (Event: %s)", hook.Name, msg, ctx.Event)
	return nil
}

// WebhookHandler posts events to HTTP endpoints with per-URL rate limiting and retries.
type WebhookHandler struct {
	mu           sync.Mutex
	rateLimiters map[string]*rateLimiter
	backoff      []time.Duration
	client       *http.Client
}

type rateLimiter struct {
	count    int
	lastTime time.Time
}

// NewWebhookHandler returns a handler retrying after 1s, 2s and 4s.
func NewWebhookHandler() *WebhookHandler {
	return &WebhookHandler{
		rateLimiters: make(map[string]*rateLimiter),
		backoff:      []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		client:       &http.Client{Timeout: 5 * time.Second},
	}
}

func webhookPayload(hook *Hook, ctx *EventContext) map[string]interface{} {
	payload := map[string]interface{}{
		"event":     ctx.Event,
		"timestamp": ctx.Timestamp,
		"hook_id":   hook.ID,
	}
	if ctx.SessionID != "" {
		payload["session_id"] = ctx.SessionID
	}
	if ctx.Trace != nil {
		payload["trace_id"] = ctx.Trace.ID
		payload["query"] = ctx.Trace.Query
		payload["final_agent"] = ctx.Trace.FinalAgent
		payload["final_confidence"] = ctx.Trace.FinalConfidence
		payload["success"] = ctx.Trace.Success
		if ctx.Trace.Error != "" {
			payload["error"] = ctx.Trace.Error
		}
	}
	if ctx.FeedState != "" {
		payload["feed_state"] = ctx.FeedState
	}
	if ctx.Message != "" {
		payload["message"] = ctx.Message
	}
	if len(ctx.Data) > 0 {
		payload["data"] = ctx.Data
	}
	return payload
}

// Handle implements ActionHandler.
func (h *WebhookHandler) Handle(hook *Hook, ctx *EventContext) error {
	url, _ := hook.Params["url"].(string)
	if url == "" {
		return fmt.Errorf("missing webhook url")
	}

	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://localhost") {
		return fmt.Errorf("insecure webhook url (must be https or localhost): %s", url)
	}

	if !h.checkRateLimit(url) {
		return fmt.Errorf("rate limit exceeded for webhook: %s", url)
	}

	body, err := json.Marshal(webhookPayload(hook, ctx))
	if err != nil {
		return err
	}
	secret, _ := hook.Params["secret"].(string)

	var lastErr error
	for i := 0; i <= len(h.backoff); i++ {
		if i > 0 {
			time.Sleep(h.backoff[i-1])
		}

		lastErr = h.post(url, secret, body)
		if lastErr == nil {
			return nil
		}
		log.Warnf("Webhook attempt %d failed: %v", i+1, lastErr)
	}

	return fmt.Errorf("webhook failed after retries: %w", lastErr)
}

func (h *WebhookHandler) post(url, secret string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "AgentHive-Hooks/1.0")

	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		req.Header.Set("X-Hook-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (h *WebhookHandler) checkRateLimit(url string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	limiter, exists := h.rateLimiters[url]
	if !exists {
		limiter = &rateLimiter{lastTime: now}
		h.rateLimiters[url] = limiter
	}

	if now.Sub(limiter.lastTime) > time.Minute {
		limiter.count = 0
		limiter.lastTime = now
	}

	if limiter.count >= webhookRateLimit {
		return false
	}

	limiter.count++
	return true
}
