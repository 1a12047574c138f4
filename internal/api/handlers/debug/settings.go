// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package debug

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/h3nok/AgentHive-sub001/internal/tracestore"
)

// GetFilters returns the current filters.
// GET /v0/debug/filters
func (h *Handler) GetFilters(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Filters())
}

// PatchFilters merges a partial filter update.
// PATCH /v0/debug/filters
func (h *Handler) PatchFilters(c *gin.Context) {
	var patch tracestore.FiltersPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	filters, err := h.store.UpdateFilters(patch)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, filters)
}

// GetSettings returns the current settings.
// GET /v0/debug/settings
func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Settings())
}

// PatchSettings merges a partial settings update.
// PATCH /v0/debug/settings
func (h *Handler) PatchSettings(c *gin.Context) {
	var patch tracestore.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}
	settings, err := h.store.UpdateSettings(patch)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}
