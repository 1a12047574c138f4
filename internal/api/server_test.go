package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h3nok/AgentHive-sub001/internal/api/handlers/debug"
	"github.com/h3nok/AgentHive-sub001/internal/buildinfo"
	"github.com/h3nok/AgentHive-sub001/internal/classifier"
	"github.com/h3nok/AgentHive-sub001/internal/config"
	"github.com/h3nok/AgentHive-sub001/internal/livefeed"
	"github.com/h3nok/AgentHive-sub001/internal/pipeline"
	"github.com/h3nok/AgentHive-sub001/internal/routing"
	"github.com/h3nok/AgentHive-sub001/internal/tracestore"
)

type fixture struct {
	server *Server
	store  *tracestore.Store
	pipe   *pipeline.Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	store, err := tracestore.New(routing.DefaultSettings())
	require.NoError(t, err)
	require.NoError(t, store.Open(context.Background(), cfg.LiveFeed.SessionID))

	pipe := pipeline.New(classifier.Default(), store, pipeline.Options{
		Debounce:  20 * time.Millisecond,
		SessionID: cfg.LiveFeed.SessionID,
	})
	b := livefeed.NewBroadcaster()
	t.Cleanup(func() {
		pipe.Close()
		b.Close()
		_ = store.Close()
	})

	srv := NewServer(cfg, debug.NewHandler(store, pipe, b))
	gin.SetMode(gin.TestMode)
	return &fixture{server: srv, store: store, pipe: pipe}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func seed(t *testing.T, s *tracestore.Store) {
	t.Helper()
	for _, tr := range []*routing.RouterTrace{
		{ID: "a", FinalAgent: "ChartAgent", FinalConfidence: 1, TotalLatencyMs: 10, Success: true,
			Steps: []routing.RoutingStep{{ID: "a0", Agent: "ChartAgent", Confidence: 1, Method: routing.MethodRegex}}},
		{ID: "b", FinalAgent: "GeneralAgent", FinalConfidence: 0, TotalLatencyMs: 20, Success: false, Error: routing.ErrorTimeout,
			Steps: []routing.RoutingStep{{ID: "b0", Agent: "GeneralAgent", Confidence: 0, Method: routing.MethodFallback}}},
		{ID: "c", FinalAgent: "ChartAgent", FinalConfidence: 1, TotalLatencyMs: 30, Success: true,
			Steps: []routing.RoutingStep{{ID: "c0", Agent: "ChartAgent", Confidence: 1, Method: routing.MethodRegex}}},
	} {
		require.NoError(t, s.Insert(tr))
	}
}

type tracesResponse struct {
	View     string                 `json:"view"`
	Traces   []*routing.RouterTrace `json:"traces"`
	Count    int                    `json:"count"`
	Retained int                    `json:"retained"`
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "ok", body["status"])
	build, ok := body["build"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, buildinfo.Version, build["version"])
}

func TestTracesAndStats(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store)

	w := f.do(t, http.MethodPatch, "/v0/debug/filters", map[string]any{"showErrors": false})
	require.Equal(t, http.StatusOK, w.Code)
	filters := decode[routing.RoutingFilters](t, w)
	assert.False(t, filters.ShowErrors)

	w = f.do(t, http.MethodGet, "/v0/debug/traces", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[tracesResponse](t, w)
	assert.Equal(t, "filtered", resp.View)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 3, resp.Retained)

	w = f.do(t, http.MethodGet, "/v0/debug/traces?view=all", nil)
	resp = decode[tracesResponse](t, w)
	assert.Equal(t, 3, resp.Count)

	w = f.do(t, http.MethodGet, "/v0/debug/traces?view=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/v0/debug/stats", nil)
	stats := decode[routing.RoutingStats](t, w)
	assert.Equal(t, 3, stats.TotalTraces)
	assert.InDelta(t, 20, stats.AvgLatency, 1e-9)
	assert.InDelta(t, 66.7, stats.AvgConfidence, 0.1)
	assert.InDelta(t, 66.7, stats.SuccessRate, 0.1)

	w = f.do(t, http.MethodGet, "/v0/debug/traces/b", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, routing.ErrorTimeout, decode[routing.RouterTrace](t, w).Error)

	w = f.do(t, http.MethodGet, "/v0/debug/traces/zzz", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodDelete, "/v0/debug/traces", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, f.store.Len())
	w = f.do(t, http.MethodGet, "/v0/debug/stats", nil)
	assert.Equal(t, routing.RoutingStats{}, decode[routing.RoutingStats](t, w))
}

func TestActiveTrace(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store)

	type activeResponse struct {
		ID    string               `json:"id"`
		Trace *routing.RouterTrace `json:"trace"`
	}

	w := f.do(t, http.MethodPut, "/v0/debug/active", map[string]string{"id": "c"})
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[activeResponse](t, w)
	assert.Equal(t, "c", got.ID)
	require.NotNil(t, got.Trace)
	assert.Equal(t, "ChartAgent", got.Trace.FinalAgent)

	f.store.ClearTraces()
	w = f.do(t, http.MethodGet, "/v0/debug/active", nil)
	got = decode[activeResponse](t, w)
	assert.Empty(t, got.ID)
	assert.Nil(t, got.Trace)

	w = f.do(t, http.MethodPut, "/v0/debug/active", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettings(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store)

	w := f.do(t, http.MethodPatch, "/v0/debug/settings", map[string]any{"maxTraces": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPatch, "/v0/debug/settings", map[string]any{"maxTraces": 1, "autoScroll": false})
	require.Equal(t, http.StatusOK, w.Code)
	settings := decode[routing.RoutingSettings](t, w)
	assert.Equal(t, 1, settings.MaxTraces)
	assert.False(t, settings.AutoScroll)
	assert.Equal(t, 1, f.store.Len())

	w = f.do(t, http.MethodGet, "/v0/debug/settings", nil)
	assert.Equal(t, settings, decode[routing.RoutingSettings](t, w))

	w = f.do(t, http.MethodPatch, "/v0/debug/filters", map[string]any{"method": "telepathy"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedAndSnapshot(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store)

	w := f.do(t, http.MethodGet, "/v0/debug/feed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var feed struct {
		Enabled bool            `json:"enabled"`
		Session string          `json:"session"`
		Status  livefeed.Status `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &feed))
	assert.False(t, feed.Enabled)
	assert.Equal(t, "local", feed.Session)
	assert.Equal(t, livefeed.StateDisconnected, feed.Status.State)

	w = f.do(t, http.MethodGet, "/v0/debug/snapshot", nil)
	snap := decode[tracestore.Snapshot](t, w)
	assert.Equal(t, 3, snap.TotalRetained)
	assert.Len(t, snap.Traces, 3)
	assert.Equal(t, 3, snap.Stats.TotalTraces)
}

func TestInputAndDecision(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v0/debug/input", map[string]string{"text": "sales forecast"})
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool { return f.store.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	var got struct {
		Query    string                   `json:"query"`
		State    pipeline.State           `json:"state"`
		Decision *routing.RoutingDecision `json:"decision"`
	}
	require.Eventually(t, func() bool {
		w = f.do(t, http.MethodGet, "/v0/debug/decision", nil)
		return json.Unmarshal(w.Body.Bytes(), &got) == nil && got.Decision != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "sales forecast", got.Query)
	assert.Equal(t, pipeline.StateSettled, got.State)
	assert.Equal(t, "ChartAgent", got.Decision.SelectedAgent)

	w = f.do(t, http.MethodPost, "/v0/debug/input", map[string]string{"text": ""})
	require.Equal(t, http.StatusAccepted, w.Code)
	w = f.do(t, http.MethodGet, "/v0/debug/decision", nil)
	got.Decision = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Nil(t, got.Decision)
	assert.Equal(t, pipeline.StateIdle, got.State)

	w = f.do(t, http.MethodPost, "/v0/debug/input", map[string]int{"value": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMissingPipeline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, err := tracestore.New(routing.DefaultSettings())
	require.NoError(t, err)
	srv := NewServer(config.Default(), debug.NewHandler(store, nil, nil))

	for _, path := range []string{"/v0/debug/decision", "/v0/debug/stream"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		srv.Handler().ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}
