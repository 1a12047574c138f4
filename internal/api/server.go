// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api hosts the HTTP server exposing the routing debug surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/h3nok/AgentHive-sub001/internal/api/handlers/debug"
	"github.com/h3nok/AgentHive-sub001/internal/buildinfo"
	"github.com/h3nok/AgentHive-sub001/internal/config"
	"github.com/h3nok/AgentHive-sub001/internal/logging"
)

// Server wraps the gin engine and its http.Server.
type Server struct {
	engine *gin.Engine
	server *http.Server
}

// NewServer builds the engine and mounts the debug routes.
func NewServer(cfg *config.Config, h *debug.Handler) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(cfg.LiveFeed.SessionID), gin.Recovery())
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "session": cfg.LiveFeed.SessionID, "build": buildinfo.Current()})
	})
	h.Register(engine)

	return &Server{
		engine: engine,
		server: &http.Server{
			Addr:              cfg.ListenAddr(),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Stop is called. It returns nil after a graceful stop.
func (s *Server) Start() error {
	log.Infof("Debug surface listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("debug surface: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully. Hijacked websocket streams are closed by the
// broadcaster, not here.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
