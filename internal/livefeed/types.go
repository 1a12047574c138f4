// Copyright 2026 The AgentHive Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package livefeed delivers RouterTrace records produced outside the local decision
// pipeline, typically by a remote session, and publishes local traces to remote observers.
package livefeed

import (
	"context"
	"time"

	"github.com/h3nok/AgentHive-sub001/internal/routing"
)

// State is the connection state of a feed.
type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateError        State = "error"
)

// Status is the observable connection status of a feed. Message is set for StateError.
type Status struct {
	State   State     `json:"state"`
	Message string    `json:"message,omitempty"`
	Since   time.Time `json:"since"`
}

// NewStatus stamps a status with the current time.
func NewStatus(state State, message string) Status {
	return Status{State: state, Message: message, Since: time.Now()}
}

// TraceHandler receives each trace delivered by a feed.
type TraceHandler func(*routing.RouterTrace)

// StatusHandler receives connection status changes.
type StatusHandler func(Status)

// Source is an inbound stream of traces scoped to a session.
type Source interface {
	// Subscribe starts delivering traces for sessionID until the subscription is closed
	// or ctx is cancelled. Handlers are called from the source's own goroutine.
	Subscribe(ctx context.Context, sessionID string, onTrace TraceHandler, onStatus StatusHandler) (Subscription, error)
}

// Subscription is a live feed registration.
type Subscription interface {
	// Close stops delivery and waits until no handler is running.
	Close() error
}
