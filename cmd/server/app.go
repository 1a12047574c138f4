// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/h3nok/AgentHive-sub001/internal/api"
	"github.com/h3nok/AgentHive-sub001/internal/api/handlers/debug"
	"github.com/h3nok/AgentHive-sub001/internal/classifier"
	"github.com/h3nok/AgentHive-sub001/internal/config"
	"github.com/h3nok/AgentHive-sub001/internal/hooks"
	"github.com/h3nok/AgentHive-sub001/internal/livefeed"
	"github.com/h3nok/AgentHive-sub001/internal/pipeline"
	"github.com/h3nok/AgentHive-sub001/internal/routing"
	"github.com/h3nok/AgentHive-sub001/internal/tracestore"
)

const shutdownTimeout = 5 * time.Second

// app owns every long-lived component of the server.
type app struct {
	cfg *config.Config

	bus         *hooks.EventBus
	hookManager *hooks.HookManager
	watcher     *classifier.Watcher
	store       *tracestore.Store
	pipeline    *pipeline.Pipeline
	broadcaster *livefeed.Broadcaster
	server      *api.Server
}

// newApp wires the components. On error everything started so far is released.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, bus: hooks.NewEventBus()}
	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg
	matcher, err := a.buildMatcher()
	if err != nil {
		return err
	}
	if cfg.Hooks.Enabled {
		if err := a.startHooks(); err != nil {
			return err
		}
	}

	a.store, err = tracestore.New(routing.RoutingSettings{
		MaxTraces:         cfg.TraceStore.MaxTraces,
		AutoScroll:        cfg.TraceStore.AutoScroll,
		EnableLiveUpdates: cfg.TraceStore.EnableLiveUpdates,
	})
	if err != nil {
		return err
	}
	a.store.SetEventBus(a.bus)
	source, err := a.feedSource()
	if err != nil {
		return err
	}
	a.store.AttachFeed(source)
	if err := a.store.Open(ctx, cfg.LiveFeed.SessionID); err != nil {
		return err
	}

	a.pipeline = pipeline.New(matcher, a.store, pipeline.Options{
		Debounce:  cfg.Debounce(),
		Timeout:   cfg.EvaluationTimeout(),
		SessionID: cfg.LiveFeed.SessionID,
		Bus:       a.bus,
	})

	a.broadcaster = livefeed.NewBroadcaster()
	a.broadcaster.Attach(a.bus)

	a.server = api.NewServer(cfg, debug.NewHandler(a.store, a.pipeline, a.broadcaster))
	return nil
}

// buildMatcher returns the built-in rules unless a rules file is configured, in which
// case the file is optionally watched for edits.
func (a *app) buildMatcher() (pipeline.Matcher, error) {
	rc := a.cfg.Routing
	if rc.RulesFile == "" {
		c, err := classifier.New(classifier.DefaultRules(), rc.FallbackAgent)
		if err != nil {
			return nil, err
		}
		return classifier.NewStatic(c), nil
	}

	if !rc.WatchRules {
		c, err := classifier.LoadFile(rc.RulesFile, rc.FallbackAgent)
		if err != nil {
			return nil, err
		}
		log.Infof("Loaded %d routing rules from %s", len(c.Rules()), rc.RulesFile)
		return classifier.NewStatic(c), nil
	}

	w, err := classifier.NewWatcher(rc.RulesFile, rc.FallbackAgent)
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("failed to watch rules file: %w", err)
	}
	a.watcher = w
	log.Infof("Watching routing rules in %s", rc.RulesFile)
	return w, nil
}

func (a *app) startHooks() error {
	m, err := hooks.NewHookManager(a.cfg.Hooks.Dir, a.bus)
	if err != nil {
		return err
	}
	a.hookManager = m
	if err := m.LoadHooks(); err != nil {
		return fmt.Errorf("failed to load hooks: %w", err)
	}
	m.SubscribeToAllEvents()
	if err := m.StartWatcher(); err != nil {
		log.Warnf("Hooks hot reload disabled: %v", err)
	}
	return nil
}

// feedSource picks the inbound feed. Without a URL the store follows this process's
// own commits over the event bus.
func (a *app) feedSource() (livefeed.Source, error) {
	lf := a.cfg.LiveFeed
	if lf.URL == "" {
		return livefeed.NewBusSource(a.bus), nil
	}
	src, err := livefeed.NewWebSocketSource(lf.URL, a.cfg.ReconnectDelay(), a.cfg.HandshakeTimeout())
	if err != nil {
		return nil, err
	}
	log.Infof("Live feed source: %s (session %s)", lf.URL, lf.SessionID)
	return src, nil
}

// run serves the debug surface until ctx is cancelled or the listener fails, then
// releases every component.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Stop(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err := g.Wait()
	a.close()
	return err
}

// close releases components in reverse dependency order. Nil components are skipped.
func (a *app) close() {
	if a.pipeline != nil {
		a.pipeline.Close()
	}
	if a.broadcaster != nil {
		a.broadcaster.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && !errors.Is(err, tracestore.ErrNoSession) {
			log.Warnf("Failed to close trace store: %v", err)
		}
	}
	if a.hookManager != nil {
		a.hookManager.Close()
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}
	a.bus.Shutdown()
}
