// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package debug implements the routing debug surface: read access to the trace store and
// the decision pipeline, and the store's four mutator actions.
package debug

import (
	"github.com/gin-gonic/gin"

	"github.com/h3nok/AgentHive-sub001/internal/livefeed"
	"github.com/h3nok/AgentHive-sub001/internal/pipeline"
	"github.com/h3nok/AgentHive-sub001/internal/tracestore"
)

// Handler serves /v0/debug. The pipeline and broadcaster are optional; their routes
// answer 503 when absent.
type Handler struct {
	store       *tracestore.Store
	pipeline    *pipeline.Pipeline
	broadcaster *livefeed.Broadcaster
}

// NewHandler creates a debug handler over store.
func NewHandler(store *tracestore.Store, p *pipeline.Pipeline, b *livefeed.Broadcaster) *Handler {
	return &Handler{store: store, pipeline: p, broadcaster: b}
}

// Register mounts every debug route on r.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/v0/debug")

	g.GET("/traces", h.ListTraces)
	g.GET("/traces/:id", h.GetTrace)
	g.DELETE("/traces", h.ClearTraces)
	g.GET("/stats", h.GetStats)
	g.GET("/active", h.GetActive)
	g.PUT("/active", h.PutActive)

	g.GET("/filters", h.GetFilters)
	g.PATCH("/filters", h.PatchFilters)
	g.GET("/settings", h.GetSettings)
	g.PATCH("/settings", h.PatchSettings)

	g.GET("/feed", h.GetFeed)
	g.GET("/snapshot", h.GetSnapshot)
	g.GET("/stream", h.Stream)

	g.POST("/input", h.PostInput)
	g.GET("/decision", h.GetDecision)
}
