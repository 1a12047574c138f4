// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package tracestore keeps the bounded, observable history of routing decisions for an
// observation session.
package tracestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/h3nok/AgentHive-sub001/internal/hooks"
	"github.com/h3nok/AgentHive-sub001/internal/livefeed"
	"github.com/h3nok/AgentHive-sub001/internal/routing"
)

var (
	// ErrInvalidMaxTraces is returned when a settings update sets maxTraces below 1.
	ErrInvalidMaxTraces = errors.New("maxTraces must be at least 1")
	// ErrSessionOpen is returned by Open when a session is already open.
	ErrSessionOpen = errors.New("observation session already open")
	// ErrNoSession is returned by Close when no session is open.
	ErrNoSession = errors.New("no observation session open")
)

// Store is an owned trace buffer with its filters, settings, active selection and live
// feed subscription. Traces handed out by the store are shared and must not be modified.
type Store struct {
	mu        sync.RWMutex
	buf       *ring
	activeID  string
	filters   routing.RoutingFilters
	settings  routing.RoutingSettings
	sessionID string
	open      bool
	ctx       context.Context
	feed      livefeed.Status
	feedToken uint64
	bus       *hooks.EventBus

	// feedMu serializes subscription changes. It is never held by feed callbacks.
	feedMu     sync.Mutex
	source     livefeed.Source
	sub        livefeed.Subscription
	subSession string
}

// New creates an empty store with the given settings.
func New(settings routing.RoutingSettings) (*Store, error) {
	if settings.MaxTraces < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxTraces, settings.MaxTraces)
	}
	return &Store{
		buf:      newRing(settings.MaxTraces),
		filters:  routing.DefaultFilters(),
		settings: settings,
		ctx:      context.Background(),
		feed:     livefeed.NewStatus(livefeed.StateDisconnected, ""),
	}, nil
}

// SetEventBus makes the store publish ingestion and feed status events on bus.
func (s *Store) SetEventBus(bus *hooks.EventBus) {
	s.mu.Lock()
	s.bus = bus
	s.mu.Unlock()
}

// AttachFeed sets the live source used while live updates are enabled and a session is
// open. Any current subscription is replaced.
func (s *Store) AttachFeed(source livefeed.Source) {
	s.feedMu.Lock()
	s.source = source
	s.releaseFeedLocked()
	s.feedMu.Unlock()
	s.syncFeed()
}

// Open starts an observation session. The live subscription is acquired here when
// live updates are enabled.
func (s *Store) Open(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	if s.open {
		s.mu.Unlock()
		return ErrSessionOpen
	}
	s.open = true
	s.sessionID = sessionID
	s.ctx = ctx
	s.mu.Unlock()

	log.WithField("session", sessionID).Info("Observation session opened")
	s.syncFeed()
	return nil
}

// Close ends the session. The live subscription is released and the buffer cleared;
// filters and settings are kept.
func (s *Store) Close() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrNoSession
	}
	s.open = false
	// Deliveries already in flight from the current subscription are dropped.
	s.feedToken++
	sessionID := s.sessionID
	s.sessionID = ""
	s.buf.clear()
	s.activeID = ""
	s.ctx = context.Background()
	s.mu.Unlock()

	s.syncFeed()
	log.WithField("session", sessionID).Info("Observation session closed")
	return nil
}

// SessionID returns the open session, or "" when none is open.
func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// Insert appends trace and evicts the oldest entries beyond maxTraces.
func (s *Store) Insert(trace *routing.RouterTrace) error {
	if err := trace.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.insertLocked(trace.Clone())
	s.mu.Unlock()
	return nil
}

func (s *Store) insertLocked(trace *routing.RouterTrace) {
	if evicted := s.buf.push(trace); evicted != nil {
		log.Debugf("Evicted trace %s (maxTraces=%d)", evicted.ID, s.settings.MaxTraces)
	}
}

// SetActiveTrace selects a trace for detail display. The id is resolved on every read,
// so selecting an unknown or later-evicted id simply yields no active trace. An empty
// id clears the selection.
func (s *Store) SetActiveTrace(id string) {
	s.mu.Lock()
	s.activeID = id
	s.mu.Unlock()
}

// ActiveTraceID returns the raw selection.
func (s *Store) ActiveTraceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// ActiveTrace resolves the selection against the buffer.
func (s *Store) ActiveTrace() (*routing.RouterTrace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(s.activeID)
}

// Get returns the retained trace with id.
func (s *Store) Get(id string) (*routing.RouterTrace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id string) (*routing.RouterTrace, bool) {
	if id == "" {
		return nil, false
	}
	var found *routing.RouterTrace
	s.buf.each(func(t *routing.RouterTrace) bool {
		if t.ID == id {
			found = t
		}
		return found == nil
	})
	return found, found != nil
}

// ClearTraces empties the buffer and the selection. Filters and settings are untouched.
func (s *Store) ClearTraces() {
	s.mu.Lock()
	s.buf.clear()
	s.activeID = ""
	s.mu.Unlock()
}

// Traces returns every retained trace in insertion order.
func (s *Store) Traces() []*routing.RouterTrace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.items()
}

// Len reports the number of retained traces.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf.len()
}

// Filtered returns the traces passing the current filters in insertion order.
func (s *Store) Filtered() []*routing.RouterTrace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filteredLocked()
}

func (s *Store) filteredLocked() []*routing.RouterTrace {
	out := make([]*routing.RouterTrace, 0, s.buf.len())
	s.buf.each(func(t *routing.RouterTrace) bool {
		if s.filters.Matches(t) {
			out = append(out, t)
		}
		return true
	})
	return out
}

// Stats summarizes the whole buffer, ignoring filters.
func (s *Store) Stats() routing.RoutingStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return routing.ComputeStats(s.buf.items())
}

// Filters returns the current filters.
func (s *Store) Filters() routing.RoutingFilters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// Settings returns the current settings.
func (s *Store) Settings() routing.RoutingSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// FeedStatus returns the live feed connection status.
func (s *Store) FeedStatus() livefeed.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feed
}

// UpdateFilters merges the set fields of patch into the filters.
func (s *Store) UpdateFilters(patch FiltersPatch) (routing.RoutingFilters, error) {
	if err := patch.Validate(); err != nil {
		return routing.RoutingFilters{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	patch.apply(&s.filters)
	return s.filters, nil
}

// UpdateSettings merges the set fields of patch into the settings. Lowering maxTraces
// evicts the oldest traces at once; toggling live updates acquires or releases the feed.
func (s *Store) UpdateSettings(patch SettingsPatch) (routing.RoutingSettings, error) {
	if err := patch.Validate(); err != nil {
		return routing.RoutingSettings{}, err
	}

	s.mu.Lock()
	prevLive := s.settings.EnableLiveUpdates
	patch.apply(&s.settings)
	if s.settings.MaxTraces != s.buf.capacity {
		evicted := s.buf.resize(s.settings.MaxTraces)
		if len(evicted) > 0 {
			log.Debugf("Evicted %d traces after maxTraces changed to %d", len(evicted), s.settings.MaxTraces)
		}
	}
	settings := s.settings
	s.mu.Unlock()

	if settings.EnableLiveUpdates != prevLive {
		s.syncFeed()
	}
	return settings, nil
}

// Snapshot is a consistent view of everything the debug surface reads.
type Snapshot struct {
	SessionID     string                  `json:"sessionId"`
	Traces        []*routing.RouterTrace  `json:"traces"`
	TotalRetained int                     `json:"totalRetained"`
	Stats         routing.RoutingStats    `json:"stats"`
	ActiveTraceID string                  `json:"activeTraceId,omitempty"`
	ActiveTrace   *routing.RouterTrace    `json:"activeTrace"`
	Filters       routing.RoutingFilters  `json:"filters"`
	Settings      routing.RoutingSettings `json:"settings"`
	Feed          livefeed.Status         `json:"feed"`
}

// Snapshot returns the filtered view together with stats, selection, filters, settings
// and feed status taken under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	active, _ := s.getLocked(s.activeID)
	return Snapshot{
		SessionID:     s.sessionID,
		Traces:        s.filteredLocked(),
		TotalRetained: s.buf.len(),
		Stats:         routing.ComputeStats(s.buf.items()),
		ActiveTraceID: s.activeID,
		ActiveTrace:   active,
		Filters:       s.filters,
		Settings:      s.settings,
		Feed:          s.feed,
	}
}
