// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package livefeed

import (
	"context"
	"fmt"
	"sync"

	"github.com/h3nok/AgentHive-sub001/internal/hooks"
)

// BusSource delivers traces committed by another in-process pipeline through the
// event bus. It never fails once subscribed, so it reports connected immediately.
type BusSource struct {
	bus *hooks.EventBus
}

// NewBusSource returns a source reading trace_committed events from bus.
func NewBusSource(bus *hooks.EventBus) *BusSource {
	return &BusSource{bus: bus}
}

type busSubscription struct {
	sub    *hooks.Subscription
	mu     sync.Mutex
	closed bool
	stop   chan struct{}
}

func (s *busSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.sub.Unsubscribe()
	close(s.stop)
	return nil
}

// Subscribe implements Source.
func (b *BusSource) Subscribe(ctx context.Context, sessionID string, onTrace TraceHandler, onStatus StatusHandler) (Subscription, error) {
	if onTrace == nil {
		return nil, fmt.Errorf("trace handler cannot be nil")
	}
	if onStatus == nil {
		onStatus = func(Status) {}
	}

	s := &busSubscription{stop: make(chan struct{})}
	s.sub = b.bus.SubscribeWithFilter(hooks.EventTraceCommitted, func(evt *hooks.EventContext) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		onTrace(evt.Trace.Clone())
	}, func(evt *hooks.EventContext) bool {
		return evt.Trace != nil && (sessionID == "" || evt.Trace.SessionID == sessionID)
	})
	onStatus(NewStatus(StateConnected, ""))

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.stop:
		}
	}()
	return s, nil
}
