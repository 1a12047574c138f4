// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package debug

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type inputRequest struct {
	Text *string `json:"text"`
}

// PostInput feeds the current input value into the decision pipeline. The decision is
// committed asynchronously once the input settles.
// POST /v0/debug/input
func (h *Handler) PostInput(c *gin.Context) {
	if h.pipeline == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decision pipeline not available"})
		return
	}
	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"text\": string}"})
		return
	}

	h.pipeline.Input(*req.Text)
	c.JSON(http.StatusAccepted, gin.H{
		"generation": h.pipeline.Generation(),
		"state":      h.pipeline.State(),
	})
}

// GetDecision returns the pipeline state and its latest committed decision.
// GET /v0/debug/decision
func (h *Handler) GetDecision(c *gin.Context) {
	if h.pipeline == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decision pipeline not available"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"query":      h.pipeline.Query(),
		"state":      h.pipeline.State(),
		"generation": h.pipeline.Generation(),
		"decision":   h.pipeline.Decision(),
		"trace":      h.pipeline.LastTrace(),
	})
}
