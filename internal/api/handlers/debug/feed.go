// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package debug

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetFeed returns the live feed connection status.
// GET /v0/debug/feed
func (h *Handler) GetFeed(c *gin.Context) {
	settings := h.store.Settings()
	c.JSON(http.StatusOK, gin.H{
		"enabled": settings.EnableLiveUpdates,
		"session": h.store.SessionID(),
		"status":  h.store.FeedStatus(),
	})
}

// GetSnapshot returns everything the debug view renders in one consistent read.
// GET /v0/debug/snapshot
func (h *Handler) GetSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Snapshot())
}

// Stream upgrades to a websocket carrying this process's committed traces.
// GET /v0/debug/stream
func (h *Handler) Stream(c *gin.Context) {
	if h.broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trace stream not available"})
		return
	}
	h.broadcaster.Handle(c)
}
