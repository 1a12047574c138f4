// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package debug

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListTraces returns the filtered view, or every retained trace with view=all.
// GET /v0/debug/traces
func (h *Handler) ListTraces(c *gin.Context) {
	view := c.DefaultQuery("view", "filtered")
	switch view {
	case "filtered":
		traces := h.store.Filtered()
		c.JSON(http.StatusOK, gin.H{"view": view, "traces": traces, "count": len(traces), "retained": h.store.Len()})
	case "all":
		traces := h.store.Traces()
		c.JSON(http.StatusOK, gin.H{"view": view, "traces": traces, "count": len(traces), "retained": len(traces)})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "view must be filtered or all"})
	}
}

// GetTrace returns one retained trace.
// GET /v0/debug/traces/:id
func (h *Handler) GetTrace(c *gin.Context) {
	trace, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "trace not found"})
		return
	}
	c.JSON(http.StatusOK, trace)
}

// ClearTraces empties the buffer and the active selection.
// DELETE /v0/debug/traces
func (h *Handler) ClearTraces(c *gin.Context) {
	h.store.ClearTraces()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// GetStats returns statistics over every retained trace.
// GET /v0/debug/stats
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Stats())
}

type activeRequest struct {
	ID string `json:"id"`
}

// GetActive returns the selected id and the trace it resolves to, if still retained.
// GET /v0/debug/active
func (h *Handler) GetActive(c *gin.Context) {
	h.writeActive(c)
}

// PutActive selects a trace for detail display. An empty id clears the selection.
// PUT /v0/debug/active
func (h *Handler) PutActive(c *gin.Context) {
	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	h.store.SetActiveTrace(req.ID)
	h.writeActive(c)
}

func (h *Handler) writeActive(c *gin.Context) {
	trace, _ := h.store.ActiveTrace()
	c.JSON(http.StatusOK, gin.H{"id": h.store.ActiveTraceID(), "trace": trace})
}
