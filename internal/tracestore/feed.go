// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tracestore

import (
	log "github.com/sirupsen/logrus"

	"github.com/h3nok/AgentHive-sub001/internal/hooks"
	"github.com/h3nok/AgentHive-sub001/internal/livefeed"
	"github.com/h3nok/AgentHive-sub001/internal/routing"
)

// syncFeed acquires or releases the live subscription so that one exists exactly when a
// session is open, live updates are enabled and a source is attached.
func (s *Store) syncFeed() {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()

	s.mu.RLock()
	want := s.open && s.settings.EnableLiveUpdates && s.source != nil
	sessionID := s.sessionID
	ctx := s.ctx
	s.mu.RUnlock()

	if s.sub != nil && (!want || s.subSession != sessionID) {
		s.releaseFeedLocked()
	}
	if !want || s.sub != nil {
		return
	}

	s.mu.Lock()
	s.feedToken++
	token := s.feedToken
	s.mu.Unlock()

	sub, err := s.source.Subscribe(ctx, sessionID,
		func(t *routing.RouterTrace) { s.ingest(token, t) },
		func(st livefeed.Status) { s.setFeedStatus(token, st) })
	if err != nil {
		log.WithField("session", sessionID).Errorf("Failed to subscribe to live feed: %v", err)
		s.setFeedStatus(token, livefeed.NewStatus(livefeed.StateError, err.Error()))
		return
	}
	s.sub = sub
	s.subSession = sessionID
	log.WithField("session", sessionID).Debug("Live feed subscription acquired")
}

// releaseFeedLocked drops the current subscription. Callers hold feedMu but not mu.
func (s *Store) releaseFeedLocked() {
	if s.sub == nil {
		return
	}
	sub := s.sub
	s.sub = nil

	s.mu.Lock()
	s.feedToken++
	token := s.feedToken
	s.mu.Unlock()

	if err := sub.Close(); err != nil {
		log.Warnf("Error closing live feed subscription: %v", err)
	}
	s.setFeedStatus(token, livefeed.NewStatus(livefeed.StateDisconnected, ""))
	log.WithField("session", s.subSession).Debug("Live feed subscription released")
	s.subSession = ""
}

// ingest inserts a trace delivered by the subscription identified by token. Deliveries
// from released subscriptions, after Close or while live updates are off are dropped, as are
// traces already retained (replays after a reconnect, or local commits echoed back).
func (s *Store) ingest(token uint64, t *routing.RouterTrace) {
	if err := t.Validate(); err != nil {
		log.Warnf("Dropping invalid live trace: %v", err)
		return
	}

	s.mu.Lock()
	if token != s.feedToken || !s.open || !s.settings.EnableLiveUpdates {
		s.mu.Unlock()
		return
	}
	if _, dup := s.getLocked(t.ID); dup {
		s.mu.Unlock()
		log.Debugf("Skipping live trace %s already retained", t.ID)
		return
	}
	t = t.Clone()
	s.insertLocked(t)
	s.mu.Unlock()

	s.publish(hooks.NewTraceEvent(hooks.EventTraceIngested, t))
	if !t.Success {
		s.publish(hooks.NewTraceEvent(hooks.EventTraceFailed, t))
	}
}

func (s *Store) setFeedStatus(token uint64, st livefeed.Status) {
	s.mu.Lock()
	if token != s.feedToken {
		s.mu.Unlock()
		return
	}
	changed := s.feed.State != st.State || s.feed.Message != st.Message
	s.feed = st
	sessionID := s.sessionID
	s.mu.Unlock()

	if !changed {
		return
	}
	log.WithField("session", sessionID).Infof("Live feed status: %s %s", st.State, st.Message)
	s.publish(&hooks.EventContext{
		Event:     hooks.EventFeedStatusChanged,
		Timestamp: st.Since,
		SessionID: sessionID,
		FeedState: string(st.State),
		Message:   st.Message,
	})
}

func (s *Store) publish(evt *hooks.EventContext) {
	bus := s.eventBus()
	if bus != nil {
		bus.Publish(evt)
	}
}

func (s *Store) eventBus() *hooks.EventBus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bus
}
